package chiron

import (
	"encoding/json"
	"fmt"
)

// Snapshot serializes the complete state, including any active battle.
func Snapshot(st *State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return data, nil
}

// Restore rebuilds a state from a snapshot, upgrading older layouts.
func Restore(data []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	if err := Upgrade(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Upgrade migrates a state decoded from an older snapshot to the current
// layout. Version 0 snapshots predate per-unit max HP and morale; version 1
// snapshots predate fuel and the handle counters.
func Upgrade(st *State) error {
	if st.Version > SnapshotVersion {
		return fmt.Errorf("snapshot version %d is newer than supported %d", st.Version, SnapshotVersion)
	}
	if st.Map == nil {
		return fmt.Errorf("snapshot has no map")
	}
	if len(st.Map.Tiles) != st.Map.Width*st.Map.Height {
		return fmt.Errorf("snapshot map has %d tiles, want %d", len(st.Map.Tiles), st.Map.Width*st.Map.Height)
	}
	if st.Units == nil {
		st.Units = make(map[UnitID]*Unit)
	}
	if st.Bases == nil {
		st.Bases = make(map[BaseID]*Base)
	}
	if st.Phase == "" {
		st.Phase = PhasePlayerTurn
	}
	if st.Version < 1 {
		for _, u := range st.Units {
			if u.MaxHP <= 0 {
				u.MaxHP = DefaultMaxHP
			}
			if u.HP <= 0 || u.HP > u.MaxHP {
				u.HP = u.MaxHP
			}
			if u.Morale == 0 {
				u.Morale = MoraleGreen
			}
		}
	}
	if st.Version < 2 {
		for id, u := range st.Units {
			if id >= st.NextUnitID {
				st.NextUnitID = id + 1
			}
			if u.Category == AirUnit && u.MaxFuel == 0 {
				u.MaxFuel, u.Fuel = 2, 2
			}
		}
		for id := range st.Bases {
			if id >= st.NextBaseID {
				st.NextBaseID = id + 1
			}
		}
		st.NextUnitID = max(st.NextUnitID, 1)
		st.NextBaseID = max(st.NextBaseID, 1)
	}
	st.Version = SnapshotVersion
	return nil
}

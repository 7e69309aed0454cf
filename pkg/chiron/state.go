package chiron

import (
	"errors"
	"fmt"
	"slices"
)

// Phase is a state of the turn sequencer.
type Phase string

const (
	PhasePlayerTurn   Phase = "player_turn"
	PhaseAIProcessing Phase = "ai_processing"
	PhaseUpkeep       Phase = "upkeep"
	PhaseNewTurn      Phase = "new_turn"
)

// SnapshotVersion is the current layout of State. Older snapshots are
// migrated by Upgrade.
const SnapshotVersion = 2

// State is the complete, flat game state. Everything the engine mutates
// lives here, so a JSON round trip reconstructs the game exactly.
type State struct {
	Version      int       `json:"version"`
	Turn         int       `json:"turn"`
	Phase        Phase     `json:"phase"`
	HumanFaction FactionID `json:"human_faction"`
	Map          *Grid     `json:"map"`
	Factions     []Faction `json:"factions"` // indexed by FactionID

	Relations []RelationEntry `json:"relations,omitempty"`

	Units      map[UnitID]*Unit `json:"units"`
	Bases      map[BaseID]*Base `json:"bases"`
	NextUnitID UnitID           `json:"next_unit_id"`
	NextBaseID BaseID           `json:"next_base_id"`

	Battle    *Battle   `json:"battle,omitempty"`
	Decisions Decisions `json:"decisions"`

	Events      []Event `json:"events,omitempty"`
	EventCursor int     `json:"event_cursor,omitempty"`

	AI             AICursor         `json:"ai"`
	PendingBuilds  []CompletedBuild `json:"pending_builds,omitempty"`
	Selected       UnitID           `json:"selected,omitempty"`
	LastActionHold bool             `json:"last_action_hold,omitempty"`
}

// CompletedBuild is a production result waiting to be spawned at the start
// of the next turn.
type CompletedBuild struct {
	Base BaseID `json:"base"`
	Item string `json:"item"`
}

// NewState returns an empty state on the given grid.
func NewState(g *Grid) *State {
	return &State{
		Version:      SnapshotVersion,
		Turn:         1,
		Phase:        PhasePlayerTurn,
		HumanFaction: NoHuman,
		Map:          g,
		Factions:     []Faction{{ID: Natives, Name: "Planet"}},
		Units:        make(map[UnitID]*Unit),
		Bases:        make(map[BaseID]*Base),
		NextUnitID:   1,
		NextBaseID:   1,
	}
}

// AddFaction appends a faction and returns its id.
func (st *State) AddFaction(name string, human bool) FactionID {
	id := FactionID(len(st.Factions))
	st.Factions = append(st.Factions, Faction{ID: id, Name: name, Human: human})
	if human {
		st.HumanFaction = id
	}
	return id
}

// Faction returns the faction with the given id, or nil.
func (st *State) Faction(id FactionID) *Faction {
	if id < 0 || int(id) >= len(st.Factions) {
		return nil
	}
	return &st.Factions[id]
}

// Unit returns the unit with the given handle, or nil.
func (st *State) Unit(id UnitID) *Unit {
	return st.Units[id]
}

// Base returns the base with the given handle, or nil.
func (st *State) Base(id BaseID) *Base {
	return st.Bases[id]
}

// BaseAt returns the base on (x, y), or nil.
func (st *State) BaseAt(x, y int) *Base {
	t := st.Map.At(x, y)
	if t == nil || t.Base == 0 {
		return nil
	}
	return st.Bases[t.Base]
}

// UnitsAt returns the units stacked on (x, y) in arrival order.
func (st *State) UnitsAt(x, y int) []*Unit {
	t := st.Map.At(x, y)
	if t == nil {
		return nil
	}
	units := make([]*Unit, 0, len(t.Units))
	for _, id := range t.Units {
		units = append(units, st.Units[id])
	}
	return units
}

// Defender returns the unit at stack index 0 on (x, y), or nil.
func (st *State) Defender(x, y int) *Unit {
	t := st.Map.At(x, y)
	if t == nil || len(t.Units) == 0 {
		return nil
	}
	return st.Units[t.Units[0]]
}

// UnitsOf returns a faction's units ordered by handle.
func (st *State) UnitsOf(f FactionID) []*Unit {
	var units []*Unit
	for _, u := range st.Units {
		if u.Faction == f {
			units = append(units, u)
		}
	}
	slices.SortFunc(units, func(a, b *Unit) int { return int(a.ID - b.ID) })
	return units
}

// BasesOf returns a faction's bases ordered by handle.
func (st *State) BasesOf(f FactionID) []*Base {
	var bases []*Base
	for _, b := range st.Bases {
		if b.Faction == f {
			bases = append(bases, b)
		}
	}
	slices.SortFunc(bases, func(a, b *Base) int { return int(a.ID - b.ID) })
	return bases
}

// placeUnit puts u on top of the stack at (x, y) and enrolls it in a
// friendly base garrison.
func (st *State) placeUnit(u *Unit, x, y int) {
	x = st.Map.Wrap(x)
	u.X, u.Y = x, y
	t := st.Map.At(x, y)
	t.Units = append(t.Units, u.ID)
	if b := st.BaseAt(x, y); b != nil && b.Faction == u.Faction && !slices.Contains(b.Garrison, u.ID) {
		b.Garrison = append(b.Garrison, u.ID)
	}
}

// detachUnit removes u from its tile stack and from any garrison there.
func (st *State) detachUnit(u *Unit) {
	t := st.Map.At(u.X, u.Y)
	if t == nil {
		return
	}
	t.Units = deleteID(t.Units, u.ID)
	if b := st.BaseAt(u.X, u.Y); b != nil {
		b.Garrison = deleteID(b.Garrison, u.ID)
	}
}

// relocate moves u and any cargo it carries to (x, y).
func (st *State) relocate(u *Unit, x, y int) {
	st.detachUnit(u)
	st.placeUnit(u, x, y)
	for _, cid := range u.Cargo {
		if c := st.Units[cid]; c != nil {
			st.detachUnit(c)
			st.placeUnit(c, x, y)
		}
	}
}

// removeUnit deletes a unit and everything it carries from the world.
func (st *State) removeUnit(id UnitID) {
	u := st.Units[id]
	if u == nil {
		return
	}
	for _, cid := range slices.Clone(u.Cargo) {
		st.removeUnit(cid)
	}
	if u.CarriedBy != 0 {
		if carrier := st.Units[u.CarriedBy]; carrier != nil {
			carrier.Cargo = deleteID(carrier.Cargo, id)
		}
	}
	st.detachUnit(u)
	delete(st.Units, id)
	if st.Selected == id {
		st.Selected = 0
	}
}

// removeBase deletes a base and clears its tile reference in one step.
func (st *State) removeBase(b *Base) {
	if t := st.Map.At(b.X, b.Y); t != nil && t.Base == b.ID {
		t.Base = 0
	}
	delete(st.Bases, b.ID)
}

// spawn creates a unit from a prototype at (x, y).
func (st *State) spawn(p Prototype, f FactionID, x, y int) *Unit {
	u := p.newUnit(st.NextUnitID, f, st.Map.Wrap(x), y)
	st.NextUnitID++
	st.Units[u.ID] = u
	st.placeUnit(u, u.X, u.Y)
	return u
}

// addBase founds a base at (x, y) for faction f.
func (st *State) addBase(name string, f FactionID, x, y int) *Base {
	x = st.Map.Wrap(x)
	b := &Base{ID: st.NextBaseID, Name: name, Faction: f, X: x, Y: y, Population: 1}
	st.NextBaseID++
	st.Bases[b.ID] = b
	st.Map.At(x, y).Base = b.ID
	for _, u := range st.UnitsAt(x, y) {
		if u.Faction == f {
			b.Garrison = append(b.Garrison, u.ID)
		}
	}
	if fac := st.Faction(f); fac != nil {
		fac.FoundedBase = true
	}
	return b
}

// Clone returns a deep copy of the state.
func (st *State) Clone() *State {
	c := *st
	g := *st.Map
	g.Tiles = make([]Tile, len(st.Map.Tiles))
	for i, t := range st.Map.Tiles {
		t.Units = slices.Clone(t.Units)
		g.Tiles[i] = t
	}
	c.Map = &g
	c.Factions = make([]Faction, len(st.Factions))
	for i, f := range st.Factions {
		f.Techs = slices.Clone(f.Techs)
		f.Contacts = slices.Clone(f.Contacts)
		c.Factions[i] = f
	}
	c.Relations = slices.Clone(st.Relations)
	c.Units = make(map[UnitID]*Unit, len(st.Units))
	for id, u := range st.Units {
		cu := *u
		cu.Cargo = slices.Clone(u.Cargo)
		if u.Work != nil {
			w := *u.Work
			cu.Work = &w
		}
		c.Units[id] = &cu
	}
	c.Bases = make(map[BaseID]*Base, len(st.Bases))
	for id, b := range st.Bases {
		cb := *b
		cb.Garrison = slices.Clone(b.Garrison)
		cb.Facilities = slices.Clone(b.Facilities)
		c.Bases[id] = &cb
	}
	if st.Battle != nil {
		bt := *st.Battle
		bt.Record.Rounds = slices.Clone(st.Battle.Record.Rounds)
		c.Battle = &bt
	}
	c.Decisions = st.Decisions.clone()
	c.Events = slices.Clone(st.Events)
	c.AI.Queue = slices.Clone(st.AI.Queue)
	c.PendingBuilds = slices.Clone(st.PendingBuilds)
	return &c
}

// Validate checks the cross-cutting invariants of the state and returns
// every violation found.
func (st *State) Validate() error {
	var errs []error
	seen := make(map[UnitID]int)
	for i := range st.Map.Tiles {
		t := &st.Map.Tiles[i]
		x, y := i%st.Map.Width, i/st.Map.Width
		for _, id := range t.Units {
			seen[id]++
			u := st.Units[id]
			if u == nil {
				errs = append(errs, fmt.Errorf("tile (%d,%d) lists missing unit %d", x, y, id))
				continue
			}
			if u.X != x || u.Y != y {
				errs = append(errs, fmt.Errorf("unit %d at (%d,%d) stacked on (%d,%d)", id, u.X, u.Y, x, y))
			}
		}
		if t.Base != 0 {
			b := st.Bases[t.Base]
			if b == nil || b.X != x || b.Y != y {
				errs = append(errs, fmt.Errorf("tile (%d,%d) base reference %d disagrees", x, y, t.Base))
			}
		}
	}
	for id, u := range st.Units {
		if seen[id] != 1 {
			errs = append(errs, fmt.Errorf("unit %d appears on %d tiles", id, seen[id]))
		}
		if u.MovesLeft < 0 {
			errs = append(errs, fmt.Errorf("unit %d has negative movement %.2f", id, u.MovesLeft))
		}
	}
	for id, b := range st.Bases {
		if t := st.Map.At(b.X, b.Y); t == nil || t.Base != id {
			errs = append(errs, fmt.Errorf("base %d not referenced by its tile", id))
		}
		for _, gid := range b.Garrison {
			u := st.Units[gid]
			if u == nil || u.X != b.X || u.Y != b.Y || u.Faction != b.Faction {
				errs = append(errs, fmt.Errorf("base %d garrison holds foreign or absent unit %d", id, gid))
			}
		}
	}
	return errors.Join(errs...)
}

func deleteID[T comparable](s []T, v T) []T {
	return slices.DeleteFunc(s, func(e T) bool { return e == v })
}

package chiron

import (
	"errors"
	"fmt"
)

// ErrWrongPhase is returned when an action is not valid in the current
// phase. State is unchanged.
var ErrWrongPhase = errors.New("not valid in this phase")

// AIStage is the position of the sequencer within one faction's turn.
type AIStage int

const (
	AIStageStart AIStage = iota
	AIStageUnits
	AIStageBases
)

// AICursor tracks progress through computer-controlled processing so Step
// can resume where it stopped.
type AICursor struct {
	FactionIdx int      `json:"faction_idx"`
	Stage      AIStage  `json:"stage"`
	Queue      []UnitID `json:"queue,omitempty"`
	Pos        int      `json:"pos"`
}

// Healing rates in hit points per turn.
const (
	HealInBase  = 3
	HealInField = 1
)

// EndTurn finishes the human faction's turn and hands control to the
// computer factions.
func (s *Sim) EndTurn() error {
	st := s.State
	if st.Phase != PhasePlayerTurn {
		return ErrWrongPhase
	}
	if st.Battle != nil {
		return ErrBattleActive
	}
	s.resetUnits(st.HumanFaction)
	st.LastActionHold = false
	st.Phase = PhaseAIProcessing
	st.AI = AICursor{}
	s.Log.Debug().Int("turn", st.Turn).Msg("Player turn ended")
	return nil
}

// Step advances the sequencer by one unit of work: one computer unit, one
// faction boundary, one upkeep event or the start of a new turn. It reports
// whether more calls are needed before the player can act again. While a
// battle is being played back Step does nothing; drive Update instead.
func (s *Sim) Step() bool {
	st := s.State
	if st.Battle != nil {
		return st.Phase != PhasePlayerTurn
	}
	switch st.Phase {
	case PhaseAIProcessing:
		s.stepAI()
		return true
	case PhaseUpkeep:
		if st.EventCursor < len(st.Events) {
			st.EventCursor++
		}
		if st.EventCursor >= len(st.Events) {
			st.Phase = PhaseNewTurn
		}
		return true
	case PhaseNewTurn:
		s.beginTurn()
		return false
	}
	return false
}

func (s *Sim) stepAI() {
	st := s.State
	c := &st.AI
	if c.FactionIdx >= len(st.Factions) {
		s.finishAI()
		return
	}
	f := &st.Factions[c.FactionIdx]
	if f.ID == st.HumanFaction || f.Eliminated {
		c.FactionIdx++
		c.Stage = AIStageStart
		return
	}
	switch c.Stage {
	case AIStageStart:
		s.heal(f.ID)
		s.resetUnits(f.ID)
		s.advanceWork(f.ID)
		c.Queue = c.Queue[:0]
		for _, u := range st.UnitsOf(f.ID) {
			c.Queue = append(c.Queue, u.ID)
		}
		c.Pos = 0
		c.Stage = AIStageUnits
	case AIStageUnits:
		if c.Pos >= len(c.Queue) {
			c.Stage = AIStageBases
			return
		}
		u := st.Unit(c.Queue[c.Pos])
		c.Pos++
		if u != nil && u.Faction == f.ID && u.MovesLeft > 0 {
			s.Decider.Decide(s, u)
		}
	case AIStageBases:
		s.processBases(f.ID)
		s.checkElimination(f.ID)
		c.FactionIdx++
		c.Stage = AIStageStart
		c.Queue = nil
		c.Pos = 0
	}
}

// finishAI runs the end-of-round bookkeeping and enters upkeep.
func (s *Sim) finishAI() {
	st := s.State
	if f := st.Faction(st.HumanFaction); f != nil && !f.Eliminated {
		s.processBases(st.HumanFaction)
	}
	for _, e := range s.Commerce.Exchange(st) {
		s.queue(e)
	}
	st.AI = AICursor{}
	st.Phase = PhaseUpkeep
	st.EventCursor = 0
	s.Log.Debug().Int("turn", st.Turn).Int("events", len(st.Events)).Msg("Upkeep")
}

// processBases runs research once and production for every base of f.
func (s *Sim) processBases(f FactionID) {
	st := s.State
	fac := st.Faction(f)
	if tech := s.Research.Accumulate(st, f); tech != "" {
		s.queue(Event{Kind: EventTechDiscovered, Faction: f, Text: fmt.Sprintf("%s discovered %s", fac.Name, tech), Value: tech})
	}
	for _, b := range st.BasesOf(f) {
		b.NewlyCaptured = false
		item := s.Production.ProcessBase(st, b)
		if item == "" {
			continue
		}
		st.PendingBuilds = append(st.PendingBuilds, CompletedBuild{Base: b.ID, Item: item})
		s.queue(Event{Kind: EventProduction, Faction: f, Text: fmt.Sprintf("%s completed %s", b.Name, item), Value: item})
	}
}

// beginTurn starts the next turn and returns control to the player.
func (s *Sim) beginTurn() {
	st := s.State
	st.Turn++
	st.Events = nil
	st.EventCursor = 0
	s.heal(st.HumanFaction)
	s.advanceWork(st.HumanFaction)
	s.spawnBuilds()
	st.Phase = PhasePlayerTurn
	if st.Unit(st.Selected) == nil {
		st.Selected = 0
		s.NextUnit()
	}
	s.Log.Debug().Int("turn", st.Turn).Msg("New turn")
}

// spawnBuilds turns last turn's completed production into units or
// facilities at the base that built them.
func (s *Sim) spawnBuilds() {
	st := s.State
	for _, cb := range st.PendingBuilds {
		b := st.Base(cb.Base)
		if b == nil {
			continue
		}
		if _, ok := s.Rules.Prototypes[cb.Item]; ok {
			if _, err := s.Spawn(b.ID, cb.Item); err != nil {
				s.Log.Warn().Err(err).Str("base", b.Name).Msg("Could not spawn build")
			}
			continue
		}
		fac := Facility(cb.Item)
		if _, ok := s.Rules.Facilities[cb.Item]; ok && !b.Has(fac) {
			b.Facilities = append(b.Facilities, fac)
		}
	}
	st.PendingBuilds = nil
}

// resetUnits restores movement for faction f and burns fuel for aircraft
// away from a friendly base.
func (s *Sim) resetUnits(f FactionID) {
	st := s.State
	for _, u := range st.UnitsOf(f) {
		if u.MaxFuel > 0 {
			if b := st.BaseAt(u.X, u.Y); b != nil && b.Faction == f {
				u.Fuel = u.MaxFuel
			} else {
				u.Fuel--
				if u.Fuel <= 0 {
					s.queue(Event{Kind: EventUnitLost, Faction: f, Text: u.Name + " ran out of fuel", Value: u.Name})
					st.removeUnit(u.ID)
					continue
				}
			}
		}
		u.MovesLeft = float64(u.MaxMoves)
		u.MovesThisTurn = 0
		u.Held = false
		u.Dropped = false
	}
}

// heal restores hit points for faction f: more inside a friendly base, a
// little for units that stayed put. It consumes the per-turn Moved flag.
func (s *Sim) heal(f FactionID) {
	st := s.State
	for _, u := range st.UnitsOf(f) {
		if u.HP < u.MaxHP {
			if b := st.BaseAt(u.X, u.Y); b != nil && b.Faction == f {
				u.HP = min(u.MaxHP, u.HP+HealInBase)
			} else if !u.Moved {
				u.HP = min(u.MaxHP, u.HP+HealInField)
			}
		}
		u.Moved = false
	}
}

// advanceWork progresses every work order of faction f by one turn and
// completes those that are done.
func (s *Sim) advanceWork(f FactionID) {
	st := s.State
	for _, u := range st.UnitsOf(f) {
		if u.Work == nil {
			continue
		}
		u.Work.TurnsLeft--
		if u.Work.TurnsLeft > 0 {
			continue
		}
		t := st.Map.At(u.X, u.Y)
		t.Improvements |= u.Work.Kind
		if u.Work.Kind == Forest {
			t.Fungus = false
		}
		u.Work = nil
	}
}

// idle reports whether a human unit still wants orders this turn.
func idle(u *Unit) bool {
	return u.MovesLeft > 0 && !u.Held && u.Work == nil
}

// NextUnit selects the next human unit that can still act, cycling by
// handle after the current selection. It returns 0 and leaves the selection
// alone when nothing can act or a decision is pending.
func (s *Sim) NextUnit() UnitID {
	st := s.State
	if st.Decisions.Pending() || st.Battle != nil {
		return 0
	}
	units := st.UnitsOf(st.HumanFaction)
	start := 0
	for i, u := range units {
		if u.ID == st.Selected {
			start = i + 1
			break
		}
	}
	for i := range units {
		u := units[(start+i)%len(units)]
		if idle(u) {
			st.Selected = u.ID
			return u.ID
		}
	}
	return 0
}

// ShouldAutoEndTurn reports whether the player's turn can end on its own:
// every human unit is held, working or out of movement, the last action was
// not an explicit hold, and nothing is pending.
func (s *Sim) ShouldAutoEndTurn() bool {
	st := s.State
	if st.Phase != PhasePlayerTurn || st.LastActionHold || st.Battle != nil || st.Decisions.Pending() {
		return false
	}
	for _, u := range st.UnitsOf(st.HumanFaction) {
		if idle(u) {
			return false
		}
	}
	return true
}

// MaybeAutoEndTurn ends the turn if ShouldAutoEndTurn allows it.
func (s *Sim) MaybeAutoEndTurn() bool {
	if !s.ShouldAutoEndTurn() {
		return false
	}
	return s.EndTurn() == nil
}

// Drain plays back the active battle to completion in dt steps.
func (s *Sim) Drain(dt float64) {
	if dt <= 0 {
		dt = s.Rules.Tuning.RoundDelay
	}
	for s.Update(dt) {
	}
}

// RunToPlayerTurn drives battles and the sequencer until control returns
// to the player or limit steps have run. It reports whether the player turn
// was reached.
func (s *Sim) RunToPlayerTurn(dt float64, limit int) bool {
	for i := 0; i < limit; i++ {
		if s.State.Battle != nil {
			s.Drain(dt)
			continue
		}
		if !s.Step() && s.State.Phase == PhasePlayerTurn {
			return true
		}
	}
	return s.State.Phase == PhasePlayerTurn && s.State.Battle == nil
}

package chiron

import (
	"errors"
	"fmt"
)

// Rejection reasons. MoveError wraps one of these.
var (
	ErrNoUnit        = errors.New("no such unit")
	ErrNoMoves       = errors.New("no movement left")
	ErrBattleActive  = errors.New("a battle is in progress")
	ErrOutOfBounds   = errors.New("target is off the map")
	ErrNotAdjacent   = errors.New("target is not adjacent")
	ErrTerrain       = errors.New("terrain is not passable for this unit")
	ErrZoneOfControl = errors.New("zone of control")
	ErrCannotAttack  = errors.New("unit cannot attack")
	ErrHostileBase   = errors.New("unit cannot enter a hostile base")
	ErrTreatyBreak   = errors.New("attack would break a treaty")
	ErrMoveFailed    = errors.New("not enough movement to complete the step")
)

// MoveError describes why a move was rejected. State is unchanged when a
// MoveError is returned.
type MoveError struct {
	Unit    UnitID
	X, Y    int
	Err     error
	Message string
}

func (e *MoveError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unit %d to (%d,%d): %v", e.Unit, e.X, e.Y, e.Err)
	}
	return fmt.Sprintf("unit %d to (%d,%d): %v: %s", e.Unit, e.X, e.Y, e.Err, e.Message)
}

func (e *MoveError) Unwrap() error { return e.Err }

func reject(u UnitID, x, y int, err error, msg string) *MoveError {
	return &MoveError{Unit: u, X: x, Y: y, Err: err, Message: msg}
}

// Outcome reports what a successful TryMove did.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeMoved
	OutcomeBoarded
	OutcomeAttacked
	OutcomeCaptured
	OutcomeDestroyed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMoved:
		return "moved"
	case OutcomeBoarded:
		return "boarded"
	case OutcomeAttacked:
		return "attacked"
	case OutcomeCaptured:
		return "captured"
	case OutcomeDestroyed:
		return "destroyed"
	}
	return "none"
}

// TryMove attempts a single step of unit id onto (x, y). Moving onto a
// hostile stack starts a battle instead; the attacker stays put until the
// battle is finished. Every check runs before any mutation.
func (s *Sim) TryMove(id UnitID, x, y int) (Outcome, error) {
	st := s.State
	u := st.Unit(id)
	if u == nil {
		return OutcomeNone, reject(id, x, y, ErrNoUnit, "")
	}
	if st.Battle != nil {
		return OutcomeNone, reject(id, x, y, ErrBattleActive, "")
	}
	if u.MovesLeft <= 0 {
		return OutcomeNone, reject(id, x, y, ErrNoMoves, "")
	}
	if !st.Map.Valid(x, y) {
		return OutcomeNone, reject(id, x, y, ErrOutOfBounds, "")
	}
	x = st.Map.Wrap(x)
	if st.Map.Distance(u.X, u.Y, x, y) != 1 {
		return OutcomeNone, reject(id, x, y, ErrNotAdjacent, "")
	}

	origin, dest := st.Map.At(u.X, u.Y), st.Map.At(x, y)
	def := st.Defender(x, y)
	attack := def != nil && st.Hostile(u.Faction, def.Faction)

	var carrier *Unit
	if attack {
		if err := s.checkAttackTerrain(u, origin, dest); err != nil {
			return OutcomeNone, reject(id, x, y, err, "")
		}
	} else {
		switch {
		case u.Category == LandUnit && dest.Terrain == Ocean:
			carrier = s.transportAt(x, y, u)
			if carrier == nil {
				return OutcomeNone, reject(id, x, y, ErrTerrain, "no transport with free capacity")
			}
		case u.Category == SeaUnit && dest.Terrain == Land:
			if b := st.BaseAt(x, y); b == nil || st.Hostile(b.Faction, u.Faction) {
				return OutcomeNone, reject(id, x, y, ErrTerrain, "naval units only enter friendly bases")
			}
		}
		if b := st.BaseAt(x, y); b != nil && st.Hostile(b.Faction, u.Faction) {
			if u.Category != LandUnit || !u.CanAttack() {
				return OutcomeNone, reject(id, x, y, ErrHostileBase, "")
			}
			if st.RelationOf(b.Faction, u.Faction) == Treaty {
				return OutcomeNone, reject(id, x, y, ErrHostileBase, "base belongs to a treaty partner")
			}
		}
	}

	if u.Category == LandUnit && origin.Terrain == Land && s.zocBlocked(u, x, y, attack) {
		return OutcomeNone, reject(id, x, y, ErrZoneOfControl, "")
	}

	if attack {
		return s.beginAttack(u, def, x, y)
	}

	cost := s.MoveCost(u, u.X, u.Y, x, y)
	if carrier == nil && u.MovesLeft < 1 && cost >= 1 && !s.chance(u.MovesLeft) {
		return OutcomeNone, reject(id, x, y, ErrMoveFailed, fmt.Sprintf("%.2f moves left", u.MovesLeft))
	}
	drain := false
	if u.Category == LandUnit && u.Faction != Natives && dest.Terrain == Land && dest.Fungus && len(dest.Units) == 0 {
		drain = s.chance(s.FungusDrainChance(u.Faction))
	}

	if carrier != nil {
		s.board(u, carrier)
		return OutcomeBoarded, nil
	}
	s.step(u, x, y, cost)
	if drain {
		u.MovesLeft = 0
	}
	return s.arrive(u), nil
}

// MoveCost returns the movement points a step from (fx, fy) to (tx, ty)
// costs for u.
func (s *Sim) MoveCost(u *Unit, fx, fy, tx, ty int) float64 {
	if u.Category == AirUnit {
		return 1
	}
	g := s.State.Map
	from, to := g.At(fx, fy), g.At(tx, ty)
	if u.Category == SeaUnit {
		if to.Terrain == Ocean && to.Fungus {
			return 1 + s.Rules.Tuning.SeaFungusPenalty
		}
		return 1
	}
	fromBase, toBase := from.Base != 0, to.Base != 0
	if (fromBase || from.Improvements.Has(MagTube)) && (toBase || to.Improvements.Has(MagTube)) {
		return 0
	}
	cost := 1.0
	if (fromBase || from.Improvements.Has(Road)) && (toBase || to.Improvements.Has(Road)) {
		cost = 1.0 / 3
	} else if d := g.DirectionTo(fx, fy, tx, ty); d >= 0 && from.HasRiver(d) {
		cost = 1.0 / 3
	}
	if to.Terrain == Land && to.Rocky && cost == 1 {
		cost++
	}
	return cost
}

// FungusDrainChance is the chance that a land unit of faction f loses all
// remaining movement entering unoccupied land fungus.
func (s *Sim) FungusDrainChance(f FactionID) float64 {
	planet := 0
	if fac := s.State.Faction(f); fac != nil {
		planet = fac.Planet
	}
	t := s.Rules.Tuning
	return max(0, t.FungusBaseChance-t.FungusPlanetStep*float64(planet))
}

// ZoneOfControl reports whether the tile is adjacent to a unit hostile to f.
func (s *Sim) ZoneOfControl(f FactionID, x, y int) bool {
	st := s.State
	for _, p := range st.Map.Neighbors(x, y) {
		for _, other := range st.UnitsAt(p.X, p.Y) {
			if other.Role != Artifact && st.Hostile(f, other.Faction) {
				return true
			}
		}
	}
	return false
}

func (s *Sim) zocBlocked(u *Unit, x, y int, attack bool) bool {
	st := s.State
	if attack {
		return false
	}
	if st.BaseAt(u.X, u.Y) != nil || st.BaseAt(x, y) != nil {
		return false
	}
	for _, other := range st.UnitsAt(x, y) {
		if other.Faction == u.Faction {
			return false
		}
	}
	return s.ZoneOfControl(u.Faction, u.X, u.Y) && s.ZoneOfControl(u.Faction, x, y)
}

func (s *Sim) checkAttackTerrain(u *Unit, origin, dest *Tile) error {
	if !u.CanAttack() {
		return ErrCannotAttack
	}
	switch u.Category {
	case LandUnit:
		if dest.Terrain == Ocean {
			return ErrTerrain
		}
		if origin.Terrain == Ocean && !u.Abilities.Has(Amphibious) {
			return fmt.Errorf("%w: amphibious pods required", ErrTerrain)
		}
	case SeaUnit:
		if dest.Terrain == Land {
			return ErrTerrain
		}
	}
	return nil
}

// transportAt returns a transport on (x, y) owned by u's faction with room
// for u.
func (s *Sim) transportAt(x, y int, u *Unit) *Unit {
	for _, t := range s.State.UnitsAt(x, y) {
		if t.Faction == u.Faction && t.ID != u.ID && t.FreeCapacity() > 0 {
			return t
		}
	}
	return nil
}

func (s *Sim) unload(u *Unit) {
	if u.CarriedBy == 0 {
		return
	}
	if c := s.State.Unit(u.CarriedBy); c != nil {
		c.Cargo = deleteID(c.Cargo, u.ID)
	}
	u.CarriedBy = 0
}

// board loads u onto carrier. Boarding ends the unit's turn.
func (s *Sim) board(u, carrier *Unit) {
	s.unload(u)
	s.State.relocate(u, carrier.X, carrier.Y)
	carrier.Cargo = append(carrier.Cargo, u.ID)
	u.CarriedBy = carrier.ID
	u.MovesLeft = 0
	s.touch(u)
	s.Log.Debug().Int("unit", int(u.ID)).Int("transport", int(carrier.ID)).Msg("Unit boarded transport")
}

// moveEpsilon absorbs the rounding left by fractional road and river costs.
const moveEpsilon = 1e-9

// step relocates u and charges cost.
func (s *Sim) step(u *Unit, x, y int, cost float64) {
	if s.State.Map.At(x, y).Terrain == Land {
		s.unload(u)
	}
	s.State.relocate(u, x, y)
	u.MovesLeft -= cost
	if u.MovesLeft < moveEpsilon {
		u.MovesLeft = 0
	}
	s.touch(u)
}

// touch records that u acted this turn and trips the runaway guard.
func (s *Sim) touch(u *Unit) {
	st := s.State
	u.MovesThisTurn++
	u.Moved = true
	u.Held = false
	u.Work = nil
	if u.Faction == st.HumanFaction {
		st.LastActionHold = false
	}
	if u.MovesThisTurn > s.Rules.Tuning.MaxMovesPerTurn {
		u.MovesLeft = 0
		st.Decisions.MoveOverflow = append(st.Decisions.MoveOverflow, u.ID)
		s.Log.Warn().Int("unit", int(u.ID)).Int("moves", u.MovesThisTurn).Msg("Movement overflow guard tripped")
	}
}

// arrive runs the arrival side effects of a completed step.
func (s *Sim) arrive(u *Unit) Outcome {
	st := s.State
	t := st.Map.At(u.X, u.Y)
	if t.SupplyPod {
		s.collectPod(u, t)
	}
	if t.Monolith {
		s.visitMonolith(u, t)
	}
	s.captureArtifacts(u)
	if b := st.BaseAt(u.X, u.Y); b != nil && b.Faction != u.Faction && st.Hostile(b.Faction, u.Faction) {
		return s.captureBase(u, b)
	}
	s.Log.Debug().Int("unit", int(u.ID)).Int("x", u.X).Int("y", u.Y).Float64("movesLeft", u.MovesLeft).Msg("Unit moved")
	return OutcomeMoved
}

// beginAttack hands a hostile encounter to the combat resolver.
func (s *Sim) beginAttack(u, def *Unit, x, y int) (Outcome, error) {
	st := s.State
	if st.RelationOf(u.Faction, def.Faction) == Treaty {
		if u.Faction == st.HumanFaction {
			st.Decisions.TreatyBreak = &PendingAttack{Unit: u.ID, X: x, Y: y, Victim: def.Faction}
			return OutcomeNone, reject(u.ID, x, y, ErrTreatyBreak, "confirmation required")
		}
		st.SetRelation(u.Faction, def.Faction, Vendetta)
		if def.Faction == st.HumanFaction {
			st.Decisions.SurpriseAttack = &SurpriseAttack{Aggressor: u.Faction, X: x, Y: y}
		}
	}
	u.Work = nil
	def.Work = nil
	u.Held = false
	if u.Faction == st.HumanFaction {
		st.LastActionHold = false
	}
	s.ResolveCombat(u, def, x, y)
	return OutcomeAttacked, nil
}

// ConfirmTreatyBreak declares vendetta on the pending victim and carries
// out the attack the player asked for.
func (s *Sim) ConfirmTreatyBreak() (Outcome, error) {
	st := s.State
	p := st.Decisions.TreatyBreak
	if p == nil {
		return OutcomeNone, errors.New("no treaty break pending")
	}
	st.Decisions.TreatyBreak = nil
	u := st.Unit(p.Unit)
	if u == nil {
		return OutcomeNone, reject(p.Unit, p.X, p.Y, ErrNoUnit, "")
	}
	st.SetRelation(u.Faction, p.Victim, Vendetta)
	return s.TryMove(p.Unit, p.X, p.Y)
}

// captureBase resolves entering an undefended hostile base.
func (s *Sim) captureBase(u *Unit, b *Base) Outcome {
	st := s.State
	prev := b.Faction
	b.Population--
	if b.Population <= 0 {
		st.removeBase(b)
		for _, other := range st.Units {
			if other.Support == b.ID {
				other.Support = 0
			}
		}
		s.queue(Event{Kind: EventBaseDestroyed, Faction: prev, Text: fmt.Sprintf("%s was destroyed", b.Name), Value: b.Name})
		s.Log.Debug().Str("base", b.Name).Int("by", int(u.Faction)).Msg("Base destroyed")
		s.checkElimination(prev)
		return OutcomeDestroyed
	}
	b.Faction = u.Faction
	b.NewlyCaptured = true
	b.Garrison = b.Garrison[:0]
	for _, other := range st.UnitsAt(b.X, b.Y) {
		if other.Faction == b.Faction {
			b.Garrison = append(b.Garrison, other.ID)
		}
	}
	for _, other := range st.Units {
		if other.Support == b.ID && other.Faction == prev {
			other.Support = 0
		}
	}
	s.queue(Event{Kind: EventBaseCaptured, Faction: u.Faction, Text: fmt.Sprintf("%s captured %s", st.Faction(u.Faction).Name, b.Name), Value: b.Name})
	s.Log.Debug().Str("base", b.Name).Int("by", int(u.Faction)).Msg("Base captured")
	s.checkElimination(prev)
	return OutcomeCaptured
}

// checkElimination retires a faction that has lost every base it founded.
func (s *Sim) checkElimination(f FactionID) {
	st := s.State
	fac := st.Faction(f)
	if fac == nil || f == Natives || fac.Eliminated || !fac.FoundedBase {
		return
	}
	if len(st.BasesOf(f)) > 0 {
		return
	}
	fac.Eliminated = true
	for _, u := range st.UnitsOf(f) {
		st.removeUnit(u.ID)
	}
	s.queue(Event{Kind: EventFactionEliminated, Faction: f, Text: fac.Name + " has been eliminated", Value: fac.Name})
	s.Log.Info().Str("faction", fac.Name).Msg("Faction eliminated")
}

// visitMonolith heals u and grants a one-time morale step.
func (s *Sim) visitMonolith(u *Unit, t *Tile) {
	u.HP = u.MaxHP
	if !u.MonolithUsed {
		u.MonolithUsed = true
		u.Morale = min(MoraleMax, u.Morale+1)
	}
	if s.chance(s.Rules.Tuning.MonolithConsumeChance) {
		t.Monolith = false
	}
}

// captureArtifacts takes over undefended hostile artifacts next to u.
func (s *Sim) captureArtifacts(u *Unit) {
	st := s.State
	for _, p := range st.Map.Neighbors(u.X, u.Y) {
		if st.BaseAt(p.X, p.Y) != nil {
			continue
		}
		stack := st.UnitsAt(p.X, p.Y)
		if len(stack) == 0 {
			continue
		}
		defended := false
		for _, o := range stack {
			if !st.Hostile(u.Faction, o.Faction) || o.Role != Artifact {
				defended = true
				break
			}
		}
		if defended {
			continue
		}
		for _, o := range stack {
			st.detachUnit(o)
			o.Faction = u.Faction
			o.Support = 0
			st.placeUnit(o, p.X, p.Y)
			s.queue(Event{Kind: EventArtifact, Faction: u.Faction, Text: "Alien artifact recovered"})
		}
	}
}

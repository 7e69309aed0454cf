package chiron

import (
	"errors"
	"fmt"
)

// Rejection reasons for unit actions other than moving.
var (
	ErrWrongRole           = errors.New("unit cannot perform this action")
	ErrOutOfRange          = errors.New("target is out of range")
	ErrNoTarget            = errors.New("nothing to target")
	ErrInvalidSite         = errors.New("site is not suitable")
	ErrInsufficientCredits = errors.New("not enough credits")
	ErrUnknownItem         = errors.New("unknown build item")
)

// BombardRange is the maximum distance of an artillery strike.
const BombardRange = 2

// AirdropRange is the maximum distance of an airdrop.
const AirdropRange = 8

// BombardResult reports the damage of one artillery strike.
type BombardResult struct {
	Hit       bool           `json:"hit"`
	Damage    map[UnitID]int `json:"damage,omitempty"`
	Destroyed []UnitID       `json:"destroyed,omitempty"`
}

// Bombard fires artillery at the stack on (x, y). A single strength roll
// decides the hit; each unit in the stack then takes 1-3 damage. Land units
// are never reduced below 1 HP and nothing fires back. Bombarding spends all
// remaining movement.
func (s *Sim) Bombard(id UnitID, x, y int) (BombardResult, error) {
	st := s.State
	u := st.Unit(id)
	switch {
	case u == nil:
		return BombardResult{}, reject(id, x, y, ErrNoUnit, "")
	case st.Battle != nil:
		return BombardResult{}, reject(id, x, y, ErrBattleActive, "")
	case !u.Abilities.Has(Artillery):
		return BombardResult{}, reject(id, x, y, ErrWrongRole, "artillery required")
	case u.MovesLeft <= 0:
		return BombardResult{}, reject(id, x, y, ErrNoMoves, "")
	case !st.Map.Valid(x, y):
		return BombardResult{}, reject(id, x, y, ErrOutOfBounds, "")
	}
	x = st.Map.Wrap(x)
	if d := st.Map.Distance(u.X, u.Y, x, y); d == 0 || d > BombardRange {
		return BombardResult{}, reject(id, x, y, ErrOutOfRange, "")
	}
	def := st.Defender(x, y)
	if def == nil || !st.Hostile(u.Faction, def.Faction) {
		return BombardResult{}, reject(id, x, y, ErrNoTarget, "")
	}
	if st.RelationOf(u.Faction, def.Faction) == Treaty {
		return BombardResult{}, reject(id, x, y, ErrTreatyBreak, "")
	}

	odds := Odds(
		Strength(u.Attack, u.HP, s.Modifiers(u, false, def)),
		Strength(def.Defense, def.HP, s.Modifiers(def, true, u)),
	)
	res := BombardResult{Hit: s.Rand.Float64() < odds}
	u.MovesLeft = 0
	u.Held = false
	u.Work = nil
	if u.Faction == st.HumanFaction {
		st.LastActionHold = false
	}
	if !res.Hit {
		return res, nil
	}
	res.Damage = make(map[UnitID]int)
	for _, t := range st.UnitsAt(x, y) {
		if !st.Hostile(u.Faction, t.Faction) {
			continue
		}
		t.Work = nil
		dmg := 1 + s.Rand.Intn(3)
		floor := 0
		if t.Category == LandUnit {
			floor = 1
		}
		after := max(floor, t.HP-dmg)
		res.Damage[t.ID] = t.HP - after
		t.HP = after
		if t.HP <= 0 {
			res.Destroyed = append(res.Destroyed, t.ID)
		}
	}
	for _, did := range res.Destroyed {
		if t := st.Unit(did); t != nil {
			s.destroy(t, u)
		}
	}
	s.Log.Debug().Int("unit", int(id)).Int("x", x).Int("y", y).Int("hits", len(res.Damage)).Msg("Bombardment")
	return res, nil
}

// ProbeAction is a covert operation against a foreign base.
type ProbeAction string

const (
	ProbeStealTech ProbeAction = "steal_tech"
	ProbeSabotage  ProbeAction = "sabotage"
	ProbeSeizeBase ProbeAction = "seize_base"
)

// ProbeResult reports a covert operation.
type ProbeResult struct {
	Success bool   `json:"success"`
	Cost    int    `json:"cost,omitempty"`
	Value   string `json:"value,omitempty"` // stolen tech or sabotaged facility
}

// ProbeChance is the success probability of a probe team with the given
// morale against a base.
func ProbeChance(morale int, b *Base) float64 {
	p := min(0.95, 0.5+0.1*float64(morale))
	if b != nil && b.Has(CovertOpsCenter) {
		p /= 2
	}
	return p
}

// Probe runs a covert operation from a probe team against the adjacent
// foreign base on (x, y). A failed operation costs the probe team.
func (s *Sim) Probe(id UnitID, x, y int, action ProbeAction) (ProbeResult, error) {
	st := s.State
	u := st.Unit(id)
	switch {
	case u == nil:
		return ProbeResult{}, reject(id, x, y, ErrNoUnit, "")
	case st.Battle != nil:
		return ProbeResult{}, reject(id, x, y, ErrBattleActive, "")
	case u.Role != Probe:
		return ProbeResult{}, reject(id, x, y, ErrWrongRole, "probe team required")
	case u.MovesLeft <= 0:
		return ProbeResult{}, reject(id, x, y, ErrNoMoves, "")
	case !st.Map.Valid(x, y):
		return ProbeResult{}, reject(id, x, y, ErrOutOfBounds, "")
	}
	x = st.Map.Wrap(x)
	if st.Map.Distance(u.X, u.Y, x, y) != 1 {
		return ProbeResult{}, reject(id, x, y, ErrNotAdjacent, "")
	}
	b := st.BaseAt(x, y)
	if b == nil || b.Faction == u.Faction {
		return ProbeResult{}, reject(id, x, y, ErrNoTarget, "no foreign base")
	}
	if !st.Hostile(u.Faction, b.Faction) {
		return ProbeResult{}, reject(id, x, y, ErrNoTarget, "base belongs to a pact partner")
	}
	fac := st.Faction(u.Faction)
	var res ProbeResult
	switch action {
	case ProbeStealTech, ProbeSabotage:
	case ProbeSeizeBase:
		res.Cost = b.Population * s.Rules.Tuning.SeizeCostPerPop
		if fac.Credits < res.Cost {
			return ProbeResult{}, reject(id, x, y, ErrInsufficientCredits, fmt.Sprintf("need %d", res.Cost))
		}
	default:
		return ProbeResult{}, reject(id, x, y, ErrWrongRole, fmt.Sprintf("unknown probe action %q", action))
	}

	u.Work = nil
	u.Held = false
	if u.Faction == st.HumanFaction {
		st.LastActionHold = false
	}
	if !s.chance(ProbeChance(u.Morale, b)) {
		s.queue(Event{Kind: EventUnitLost, Faction: u.Faction, Text: u.Name + " was captured at " + b.Name, Value: u.Name})
		st.removeUnit(u.ID)
		return ProbeResult{Cost: res.Cost}, nil
	}
	res.Success = true
	u.MovesLeft = 0
	switch action {
	case ProbeStealTech:
		res.Value = s.Research.StealTech(st, b.Faction, u.Faction)
		if res.Value != "" {
			s.queue(Event{Kind: EventTechDiscovered, Faction: u.Faction, Text: "Stole " + res.Value, Value: res.Value})
		}
	case ProbeSabotage:
		if n := len(b.Facilities); n > 0 {
			res.Value = string(b.Facilities[n-1])
			b.Facilities = b.Facilities[:n-1]
		} else {
			res.Value = b.Production
			b.Production = ""
		}
	case ProbeSeizeBase:
		fac.Credits -= res.Cost
		s.seize(b, u.Faction)
		res.Value = b.Name
	}
	s.Log.Debug().Int("unit", int(id)).Str("action", string(action)).Str("base", b.Name).Msg("Probe succeeded")
	return res, nil
}

// seize hands base b and the previous owner's units inside it to f.
func (s *Sim) seize(b *Base, f FactionID) {
	st := s.State
	prev := b.Faction
	b.Faction = f
	b.NewlyCaptured = true
	b.Garrison = b.Garrison[:0]
	for _, o := range st.UnitsAt(b.X, b.Y) {
		if o.Faction == prev {
			o.Faction = f
		}
		if o.Faction == f {
			b.Garrison = append(b.Garrison, o.ID)
		}
	}
	for _, o := range st.Units {
		if o.Support == b.ID && o.Faction == prev {
			o.Support = 0
		}
	}
	s.queue(Event{Kind: EventBaseCaptured, Faction: f, Text: fmt.Sprintf("%s subverted %s", st.Faction(f).Name, b.Name), Value: b.Name})
	s.checkElimination(prev)
}

// Airdrop drops u from a friendly base onto a land tile within range. The
// unit keeps at most one movement point and fights at a penalty this turn.
func (s *Sim) Airdrop(id UnitID, x, y int) error {
	st := s.State
	u := st.Unit(id)
	switch {
	case u == nil:
		return reject(id, x, y, ErrNoUnit, "")
	case st.Battle != nil:
		return reject(id, x, y, ErrBattleActive, "")
	case !u.Abilities.Has(Airdrop) || u.Category != LandUnit:
		return reject(id, x, y, ErrWrongRole, "drop pods required")
	case u.MovesLeft <= 0 || u.Dropped:
		return reject(id, x, y, ErrNoMoves, "")
	case !st.Map.Valid(x, y):
		return reject(id, x, y, ErrOutOfBounds, "")
	}
	if b := st.BaseAt(u.X, u.Y); b == nil || b.Faction != u.Faction {
		return reject(id, x, y, ErrInvalidSite, "must start in a friendly base")
	}
	x = st.Map.Wrap(x)
	if d := st.Map.Distance(u.X, u.Y, x, y); d == 0 || d > AirdropRange {
		return reject(id, x, y, ErrOutOfRange, "")
	}
	if st.Map.At(x, y).Terrain != Land {
		return reject(id, x, y, ErrTerrain, "")
	}
	for _, o := range st.UnitsAt(x, y) {
		if st.Hostile(u.Faction, o.Faction) {
			return reject(id, x, y, ErrInvalidSite, "landing zone occupied")
		}
	}
	if b := st.BaseAt(x, y); b != nil && st.Hostile(b.Faction, u.Faction) {
		return reject(id, x, y, ErrHostileBase, "")
	}
	s.unload(u)
	st.relocate(u, x, y)
	u.Dropped = true
	u.MovesLeft = min(u.MovesLeft, 1)
	s.touch(u)
	s.arrive(u)
	return nil
}

// FoundBase consumes a colonizer to found a base on its tile.
func (s *Sim) FoundBase(id UnitID, name string) (*Base, error) {
	st := s.State
	u := st.Unit(id)
	if u == nil {
		return nil, reject(id, 0, 0, ErrNoUnit, "")
	}
	x, y := u.X, u.Y
	switch {
	case st.Battle != nil:
		return nil, reject(id, x, y, ErrBattleActive, "")
	case u.Role != Colonizer:
		return nil, reject(id, x, y, ErrWrongRole, "colonizer required")
	case u.MovesLeft <= 0:
		return nil, reject(id, x, y, ErrNoMoves, "")
	case st.Map.At(x, y).Terrain != Land:
		return nil, reject(id, x, y, ErrTerrain, "")
	}
	for _, b := range st.Bases {
		if st.Map.Distance(b.X, b.Y, x, y) <= 2 {
			return nil, reject(id, x, y, ErrInvalidSite, "too close to "+b.Name)
		}
	}
	fac := st.Faction(u.Faction)
	if name == "" {
		name = fmt.Sprintf("%s %d", fac.Name, len(st.BasesOf(u.Faction))+1)
	}
	st.removeUnit(u.ID)
	b := st.addBase(name, u.Faction, x, y)
	s.queue(Event{Kind: EventBaseFounded, Faction: u.Faction, Text: fmt.Sprintf("%s founded %s", fac.Name, name), Value: name})
	s.Log.Debug().Str("base", name).Int("faction", int(u.Faction)).Msg("Base founded")
	return b, nil
}

// StartTerraform sets a worker to building kind on its tile. Moving or
// fighting cancels the work.
func (s *Sim) StartTerraform(id UnitID, kind Improvement) error {
	st := s.State
	u := st.Unit(id)
	if u == nil {
		return reject(id, 0, 0, ErrNoUnit, "")
	}
	t := st.Map.At(u.X, u.Y)
	turns, ok := s.Rules.TerraformTurns[kind]
	switch {
	case st.Battle != nil:
		return reject(id, u.X, u.Y, ErrBattleActive, "")
	case u.Role != Worker:
		return reject(id, u.X, u.Y, ErrWrongRole, "worker required")
	case !ok:
		return reject(id, u.X, u.Y, ErrUnknownItem, fmt.Sprintf("improvement %d", kind))
	case t.Terrain != Land:
		return reject(id, u.X, u.Y, ErrTerrain, "")
	case t.Improvements.Has(kind):
		return reject(id, u.X, u.Y, ErrInvalidSite, "already built")
	}
	u.Work = &WorkOrder{Kind: kind, TurnsLeft: max(1, turns)}
	u.Held = false
	u.MovesLeft = 0
	if u.Faction == st.HumanFaction {
		st.LastActionHold = false
	}
	return nil
}

// Hold skips u for the rest of the turn. A hold by the human player stops
// the turn from ending automatically.
func (s *Sim) Hold(id UnitID) error {
	st := s.State
	u := st.Unit(id)
	if u == nil {
		return reject(id, 0, 0, ErrNoUnit, "")
	}
	if st.Battle != nil {
		return reject(id, u.X, u.Y, ErrBattleActive, "")
	}
	u.Held = true
	if u.Faction == st.HumanFaction {
		st.LastActionHold = true
	}
	return nil
}

// Spawn creates a unit of the named prototype in base bid, supported by it.
func (s *Sim) Spawn(bid BaseID, proto string) (*Unit, error) {
	st := s.State
	b := st.Base(bid)
	if b == nil {
		return nil, fmt.Errorf("spawn: no base %d", bid)
	}
	p, err := s.Rules.Prototype(proto)
	if err != nil {
		return nil, fmt.Errorf("spawn: %w: %w", ErrUnknownItem, err)
	}
	u := st.spawn(p, b.Faction, b.X, b.Y)
	u.Support = b.ID
	return u, nil
}

package bot

import (
	"github.com/freeeve/chiron/pkg/chiron"
)

// Env is what rule conditions see about one unit. Field names are the
// identifiers available inside a condition.
type Env struct {
	Turn      int
	Credits   int
	Role      string
	Domain    string
	HP        int
	MaxHP     int
	Moves     float64
	Attack    int
	Defense   int
	Artillery bool
	CanAttack bool
	InBase    bool
	Garrison  int // own units in the unit's base, itself included

	BestOdds       float64 // best round odds against an adjacent attackable enemy
	TargetsInRange int     // hostile stacks within bombardment range
	EnemyBaseDist  int     // distance to the nearest enemy base, -1 when none is known
	HomeDist       int     // distance to the nearest own base, -1 when there is none
	CanFound       bool
	NeedsWork      bool // the tile lacks an improvement a worker could build
}

// newEnv evaluates the situation of u.
func (s *RuleStrategy) newEnv(sim *chiron.Sim, u *chiron.Unit) Env {
	st := sim.State
	env := Env{
		Turn:          st.Turn,
		Role:          u.Role.String(),
		Domain:        u.Category.String(),
		HP:            u.HP,
		MaxHP:         u.MaxHP,
		Moves:         u.MovesLeft,
		Attack:        u.Attack,
		Defense:       u.Defense,
		Artillery:     u.Abilities.Has(chiron.Artillery),
		CanAttack:     u.CanAttack(),
		EnemyBaseDist: -1,
		HomeDist:      -1,
	}
	if f := st.Faction(u.Faction); f != nil {
		env.Credits = f.Credits
	}
	if b := st.BaseAt(u.X, u.Y); b != nil && b.Faction == u.Faction {
		env.InBase = true
		env.Garrison = len(b.Garrison)
	}
	if env.CanAttack {
		if _, odds := bestTarget(sim, u); odds > 0 {
			env.BestOdds = odds
		}
	}
	if env.Artillery {
		env.TargetsInRange = len(bombardTargets(sim, u))
	}
	for _, b := range st.Bases {
		d := st.Map.Distance(u.X, u.Y, b.X, b.Y)
		switch {
		case b.Faction == u.Faction:
			if env.HomeDist < 0 || d < env.HomeDist {
				env.HomeDist = d
			}
		case targetable(st, u.Faction, b.Faction):
			if env.EnemyBaseDist < 0 || d < env.EnemyBaseDist {
				env.EnemyBaseDist = d
			}
		}
	}
	if u.Role == chiron.Colonizer {
		env.CanFound = canFound(st, u.X, u.Y)
	}
	if u.Role == chiron.Worker {
		_, env.NeedsWork = nextImprovement(st.Map.At(u.X, u.Y))
	}
	return env
}

// targetable reports whether f is willing to fight owner. Treaty and pact
// partners are left alone.
func targetable(st *chiron.State, f, owner chiron.FactionID) bool {
	if f == owner {
		return false
	}
	rel := st.RelationOf(f, owner)
	return rel == chiron.Vendetta || rel == chiron.NoContact
}

// bestTarget returns the adjacent enemy stack u has the best odds against.
func bestTarget(sim *chiron.Sim, u *chiron.Unit) (chiron.Point, float64) {
	st := sim.State
	var best chiron.Point
	bestOdds := 0.0
	for _, p := range st.Map.Neighbors(u.X, u.Y) {
		def := st.Defender(p.X, p.Y)
		if def == nil || !targetable(st, u.Faction, def.Faction) {
			continue
		}
		att := chiron.Strength(u.Attack, u.HP, sim.Modifiers(u, false, def))
		dfn := chiron.Strength(def.Defense, def.HP, sim.Modifiers(def, true, u))
		if odds := chiron.Odds(att, dfn); odds > bestOdds {
			best, bestOdds = p, odds
		}
	}
	return best, bestOdds
}

// bombardTargets lists tiles within range holding targetable units.
func bombardTargets(sim *chiron.Sim, u *chiron.Unit) []chiron.Point {
	st := sim.State
	var pts []chiron.Point
	r := chiron.BombardRange
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			x, y := st.Map.Wrap(u.X+dx), u.Y+dy
			if (dx == 0 && dy == 0) || !st.Map.Valid(x, y) {
				continue
			}
			if def := st.Defender(x, y); def != nil && targetable(st, u.Faction, def.Faction) {
				pts = append(pts, chiron.Point{X: x, Y: y})
			}
		}
	}
	return pts
}

// canFound mirrors the site rules of FoundBase: open land with no base
// within two tiles.
func canFound(st *chiron.State, x, y int) bool {
	t := st.Map.At(x, y)
	if t == nil || t.Terrain != chiron.Land || t.Base != 0 {
		return false
	}
	for _, b := range st.Bases {
		if st.Map.Distance(x, y, b.X, b.Y) <= 2 {
			return false
		}
	}
	return true
}

// nextImprovement picks what a worker should build on t.
func nextImprovement(t *chiron.Tile) (chiron.Improvement, bool) {
	if t == nil || t.Terrain != chiron.Land {
		return 0, false
	}
	if t.Fungus {
		return chiron.Forest, !t.Improvements.Has(chiron.Forest)
	}
	for _, imp := range []chiron.Improvement{chiron.Road, chiron.Farm, chiron.Mine} {
		if imp == chiron.Farm && t.Rocky {
			continue
		}
		if imp == chiron.Mine && !t.Rocky {
			continue
		}
		if !t.Improvements.Has(imp) {
			return imp, true
		}
	}
	return 0, false
}

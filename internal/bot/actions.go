package bot

import (
	"sort"

	"github.com/freeeve/chiron/pkg/chiron"
)

// Each action reports whether it changed anything. Engine rejections leave
// the state untouched, so a false return is always safe to ignore.

func attack(sim *chiron.Sim, u *chiron.Unit) bool {
	p, odds := bestTarget(sim, u)
	if odds <= 0 {
		return false
	}
	_, err := sim.TryMove(u.ID, p.X, p.Y)
	return err == nil
}

func bombard(sim *chiron.Sim, u *chiron.Unit) bool {
	targets := bombardTargets(sim, u)
	if len(targets) == 0 {
		return false
	}
	// Hit the biggest stack.
	best, most := targets[0], 0
	for _, p := range targets {
		if n := len(sim.State.UnitsAt(p.X, p.Y)); n > most {
			best, most = p, n
		}
	}
	_, err := sim.Bombard(u.ID, best.X, best.Y)
	return err == nil
}

func found(sim *chiron.Sim, u *chiron.Unit) bool {
	_, err := sim.FoundBase(u.ID, "")
	return err == nil
}

func terraform(sim *chiron.Sim, u *chiron.Unit) bool {
	imp, ok := nextImprovement(sim.State.Map.At(u.X, u.Y))
	if !ok {
		return false
	}
	return sim.StartTerraform(u.ID, imp) == nil
}

func hold(sim *chiron.Sim, u *chiron.Unit) bool {
	return sim.Hold(u.ID) == nil
}

// advance steps toward the nearest targetable base.
func advance(sim *chiron.Sim, u *chiron.Unit) bool {
	st := sim.State
	var goal *chiron.Base
	best := -1
	for _, b := range st.Bases {
		if !targetable(st, u.Faction, b.Faction) {
			continue
		}
		d := st.Map.Distance(u.X, u.Y, b.X, b.Y)
		if best < 0 || d < best || (d == best && b.ID < goal.ID) {
			goal, best = b, d
		}
	}
	if goal == nil {
		return false
	}
	return stepToward(sim, u, goal.X, goal.Y, goal.Faction)
}

// retreat steps toward the nearest own base.
func retreat(sim *chiron.Sim, u *chiron.Unit) bool {
	st := sim.State
	var home *chiron.Base
	best := -1
	for _, b := range st.BasesOf(u.Faction) {
		if d := st.Map.Distance(u.X, u.Y, b.X, b.Y); best < 0 || d < best {
			home, best = b, d
		}
	}
	if home == nil || best == 0 {
		return false
	}
	return stepToward(sim, u, home.X, home.Y, u.Faction)
}

// explore moves to a random open neighbor, preferring supply pods.
func explore(sim *chiron.Sim, u *chiron.Unit) bool {
	st := sim.State
	nbrs := st.Map.Neighbors(u.X, u.Y)
	for _, p := range nbrs {
		if st.Map.At(p.X, p.Y).SupplyPod && open(st, u, p) {
			if _, err := sim.TryMove(u.ID, p.X, p.Y); err == nil {
				return true
			}
		}
	}
	botShuffle(sim.Rand, len(nbrs), func(i, j int) { nbrs[i], nbrs[j] = nbrs[j], nbrs[i] })
	for _, p := range nbrs {
		if !open(st, u, p) {
			continue
		}
		if _, err := sim.TryMove(u.ID, p.X, p.Y); err == nil {
			return true
		}
	}
	return false
}

// stepToward tries the neighbors of u that close the distance to (gx, gy),
// nearest first. Stacks of faction goal may be entered at the goal itself,
// which turns the step into an attack on an enemy base.
func stepToward(sim *chiron.Sim, u *chiron.Unit, gx, gy int, goal chiron.FactionID) bool {
	st := sim.State
	here := st.Map.Distance(u.X, u.Y, gx, gy)
	nbrs := st.Map.Neighbors(u.X, u.Y)
	sort.SliceStable(nbrs, func(i, j int) bool {
		return st.Map.Distance(nbrs[i].X, nbrs[i].Y, gx, gy) < st.Map.Distance(nbrs[j].X, nbrs[j].Y, gx, gy)
	})
	for _, p := range nbrs {
		if st.Map.Distance(p.X, p.Y, gx, gy) >= here {
			break
		}
		atGoal := p.X == gx && p.Y == gy
		if !open(st, u, p) && !(atGoal && goal != u.Faction) {
			continue
		}
		if _, err := sim.TryMove(u.ID, p.X, p.Y); err == nil {
			return true
		}
	}
	return false
}

// open reports whether p holds no foreign units.
func open(st *chiron.State, u *chiron.Unit, p chiron.Point) bool {
	d := st.Defender(p.X, p.Y)
	return d == nil || d.Faction == u.Faction
}

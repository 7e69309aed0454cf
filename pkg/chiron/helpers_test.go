package chiron

import (
	"math"
	"testing"
)

const (
	testHuman FactionID = 1
	testAlien FactionID = 2
)

// scriptedRand replays fixed draws. When a queue runs dry Float64 returns
// 0.5 and Intn returns 0.
type scriptedRand struct {
	floats []float64
	ints   []int
}

func (r *scriptedRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.5
	}
	f := r.floats[0]
	r.floats = r.floats[1:]
	return f
}

func (r *scriptedRand) Intn(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

// newTestSim returns a 12x8 all-land world with a human faction (1) and a
// computer faction (2) that have not met.
func newTestSim(rng Rand) *Sim {
	g := NewGrid(12, 8)
	for y := 1; y < g.Height-1; y++ {
		for x := 0; x < g.Width; x++ {
			g.At(x, y).Terrain = Land
		}
	}
	st := NewState(g)
	st.AddFaction("Humans", true)
	st.AddFaction("Aliens", false)
	if rng == nil {
		rng = &scriptedRand{}
	}
	return NewSim(st, rng)
}

func spawnAt(t *testing.T, s *Sim, proto string, f FactionID, x, y int) *Unit {
	t.Helper()
	p, err := s.Rules.Prototype(proto)
	if err != nil {
		t.Fatal(err)
	}
	return s.State.spawn(p, f, x, y)
}

func setOcean(s *Sim, x, y int) {
	s.State.Map.At(x, y).Terrain = Ocean
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func product(mods []Modifier) float64 {
	v := 1.0
	for _, m := range mods {
		v *= m.Factor
	}
	return v
}

func hasModifier(mods []Modifier, name string) bool {
	for _, m := range mods {
		if m.Name == name {
			return true
		}
	}
	return false
}

func mustValid(t *testing.T, st *State) {
	t.Helper()
	if err := st.Validate(); err != nil {
		t.Fatalf("state invalid: %v", err)
	}
}

// recordingDecider remembers the order in which units were offered.
type recordingDecider struct {
	seen []UnitID
}

func (d *recordingDecider) Decide(_ *Sim, u *Unit) {
	d.seen = append(d.seen, u.ID)
}

package chiron

import (
	"errors"
	"fmt"
)

// ScenarioConfig describes a generated starting position.
type ScenarioConfig struct {
	Width      int
	Height     int
	LandRatio  float64 // share of non-void tiles that become land
	AIFactions int
	Human      bool // faction 1 is played by a human
	Names      []string
	Worms      int // native units placed on fungus
}

// DefaultScenario is a small two-continent start for four factions.
func DefaultScenario() ScenarioConfig {
	return ScenarioConfig{Width: 40, Height: 24, LandRatio: 0.45, AIFactions: 3, Human: true, Worms: 3}
}

var defaultNames = []string{
	"Gaians", "Hive", "University", "Morganites", "Spartans", "Believers", "Peacekeepers",
}

// NewScenario generates a map and places every faction with a starting
// base, a scout, a colonizer and a worker.
func NewScenario(cfg ScenarioConfig, rng Rand) (*State, error) {
	if cfg.Width < 8 || cfg.Height < 6 {
		return nil, fmt.Errorf("scenario: map %dx%d too small", cfg.Width, cfg.Height)
	}
	total := cfg.AIFactions
	if cfg.Human {
		total++
	}
	if total < 1 {
		return nil, errors.New("scenario: no factions")
	}
	if cfg.LandRatio <= 0 || cfg.LandRatio > 1 {
		cfg.LandRatio = 0.45
	}

	g := NewGrid(cfg.Width, cfg.Height)
	raiseLand(g, cfg.LandRatio, rng)
	decorate(g, rng)

	st := NewState(g)
	rules := DefaultRuleset()
	starts := pickStarts(g, total, rng)
	if len(starts) < total {
		return nil, fmt.Errorf("scenario: room for %d of %d factions", len(starts), total)
	}
	for i := 0; i < total; i++ {
		name := fmt.Sprintf("Faction %d", i+1)
		if i < len(cfg.Names) {
			name = cfg.Names[i]
		} else if i < len(defaultNames) {
			name = defaultNames[i]
		}
		f := st.AddFaction(name, cfg.Human && i == 0)
		p := starts[i]
		t := g.At(p.X, p.Y)
		t.SupplyPod, t.Monolith, t.Fungus = false, false, false
		b := st.addBase(name+" Landing", f, p.X, p.Y)
		b.Production = ProtoScout
		for _, proto := range []string{ProtoScout, ProtoColony, ProtoFormer} {
			u := st.spawn(rules.Prototypes[proto], f, p.X, p.Y)
			u.Support = b.ID
		}
	}
	worm := rules.Prototypes[ProtoMindWorm]
	for i := 0; i < cfg.Worms; i++ {
		if p, ok := randomTile(g, rng, func(t *Tile) bool {
			return t.Terrain == Land && t.Fungus && t.Base == 0 && len(t.Units) == 0
		}); ok {
			st.spawn(worm, Natives, p.X, p.Y)
		}
	}
	return st, nil
}

// raiseLand grows land masses from random seeds until the target share of
// the map is land.
func raiseLand(g *Grid, ratio float64, rng Rand) {
	target := int(float64(g.Width*(g.Height-2)) * ratio)
	land := 0
	for land < target {
		x, y := rng.Intn(g.Width), 1+rng.Intn(g.Height-2)
		for steps := 0; steps < 40 && land < target; steps++ {
			if t := g.At(x, y); t.Terrain == Ocean {
				t.Terrain = Land
				land++
			}
			nx, ny := x+rng.Intn(3)-1, y+rng.Intn(3)-1
			if g.Valid(nx, ny) {
				x, y = g.Wrap(nx), ny
			}
		}
	}
}

// decorate scatters terrain features over the map.
func decorate(g *Grid, rng Rand) {
	for y := 1; y < g.Height-1; y++ {
		for x := 0; x < g.Width; x++ {
			t := g.At(x, y)
			if t.Terrain != Land {
				if rng.Float64() < 0.05 {
					t.Fungus = true
				}
				continue
			}
			t.Altitude = 1000 * rng.Intn(4)
			t.Rocky = rng.Float64() < 0.15
			t.Fungus = !t.Rocky && rng.Float64() < 0.12
			t.SupplyPod = rng.Float64() < 0.04
			t.Monolith = rng.Float64() < 0.005
			if rng.Float64() < 0.06 {
				d := Direction(rng.Intn(8))
				off := dirOffsets[d]
				if n := g.At(x+off[0], y+off[1]); n != nil && n.Terrain == Land {
					g.SetRiver(x, y, d)
				}
			}
		}
	}
}

// pickStarts chooses n land tiles spread far apart: each pick is the best
// of several random candidates by distance to the picks so far.
func pickStarts(g *Grid, n int, rng Rand) []Point {
	var starts []Point
	for len(starts) < n {
		best, bestScore, found := Point{}, -1, false
		for try := 0; try < 60; try++ {
			p, ok := randomTile(g, rng, func(t *Tile) bool { return t.Terrain == Land && t.Base == 0 })
			if !ok {
				return starts
			}
			score := g.Width + g.Height
			for _, s := range starts {
				score = min(score, g.Distance(p.X, p.Y, s.X, s.Y))
			}
			if score > bestScore {
				best, bestScore, found = p, score, true
			}
		}
		if !found || (len(starts) > 0 && bestScore <= 2) {
			return starts
		}
		starts = append(starts, best)
	}
	return starts
}

// randomTile samples up to a few hundred tiles for one matching ok.
func randomTile(g *Grid, rng Rand, ok func(*Tile) bool) (Point, bool) {
	for i := 0; i < 400; i++ {
		x, y := rng.Intn(g.Width), 1+rng.Intn(g.Height-2)
		if ok(g.At(x, y)) {
			return Point{x, y}, true
		}
	}
	return Point{}, false
}

// PlaceUnit creates a unit for f at (x, y) outside of production, for
// scenario setup and editors. The tile must suit the unit's domain and hold
// no foreign units.
func (s *Sim) PlaceUnit(proto string, f FactionID, x, y int) (*Unit, error) {
	st := s.State
	p, err := s.Rules.Prototype(proto)
	if err != nil {
		return nil, fmt.Errorf("place unit: %w: %w", ErrUnknownItem, err)
	}
	if st.Faction(f) == nil {
		return nil, fmt.Errorf("place unit: no faction %d", f)
	}
	if !st.Map.Valid(x, y) {
		return nil, fmt.Errorf("place unit: %w", ErrOutOfBounds)
	}
	t := st.Map.At(x, y)
	switch {
	case p.Category == LandUnit && t.Terrain != Land:
		return nil, fmt.Errorf("place unit: %w: land unit at sea", ErrTerrain)
	case p.Category == SeaUnit && t.Terrain != Ocean && t.Base == 0:
		return nil, fmt.Errorf("place unit: %w: ship on land", ErrTerrain)
	}
	if d := st.Defender(x, y); d != nil && d.Faction != f {
		return nil, fmt.Errorf("place unit: %w: tile held by another faction", ErrInvalidSite)
	}
	u := st.spawn(p, f, x, y)
	if b := st.BaseAt(x, y); b != nil && b.Faction == f {
		u.Support = b.ID
	}
	return u, nil
}

// PlaceBase creates a base for f at (x, y) without spending a colonizer.
func (s *Sim) PlaceBase(name string, f FactionID, x, y int) (*Base, error) {
	st := s.State
	if st.Faction(f) == nil {
		return nil, fmt.Errorf("place base: no faction %d", f)
	}
	if !st.Map.Valid(x, y) {
		return nil, fmt.Errorf("place base: %w", ErrOutOfBounds)
	}
	t := st.Map.At(x, y)
	if t.Terrain != Land || t.Base != 0 {
		return nil, fmt.Errorf("place base: %w", ErrInvalidSite)
	}
	if d := st.Defender(x, y); d != nil && d.Faction != f {
		return nil, fmt.Errorf("place base: %w: tile held by another faction", ErrInvalidSite)
	}
	return st.addBase(name, f, x, y), nil
}

package chiron

// Terrain classifies a tile for movement purposes.
type Terrain int

const (
	Land  Terrain = iota // Land tile (land units, air units)
	Ocean                // Ocean tile (sea units, air units, carried land units)
	Void                 // Border tile, never enterable
)

func (t Terrain) String() string {
	switch t {
	case Land:
		return "land"
	case Ocean:
		return "ocean"
	}
	return "void"
}

// Improvement is a bitset of tile infrastructure.
type Improvement uint16

const (
	Road Improvement = 1 << iota
	MagTube
	Farm
	Mine
	Sensor
	Bunker
	Forest
)

// Has reports whether all bits of o are present.
func (i Improvement) Has(o Improvement) bool { return i&o == o }

// Direction indexes the eight neighbors of a tile, clockwise from north.
type Direction int

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var dirOffsets = [8][2]int{
	{0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

// Opposite returns the direction pointing back.
func (d Direction) Opposite() Direction { return (d + 4) % 8 }

// Tile is a single cell of the world grid.
type Tile struct {
	Terrain      Terrain     `json:"terrain"`
	Rocky        bool        `json:"rocky,omitempty"`
	Fungus       bool        `json:"fungus,omitempty"`
	Altitude     int         `json:"altitude,omitempty"`
	Improvements Improvement `json:"improvements,omitempty"`
	Rivers       uint8       `json:"rivers,omitempty"` // edge bitmask indexed by Direction
	Monolith     bool        `json:"monolith,omitempty"`
	SupplyPod    bool        `json:"supply_pod,omitempty"`
	Base         BaseID      `json:"base,omitempty"`
	Units        []UnitID    `json:"units,omitempty"` // arrival order; index 0 defends
}

// HasRiver reports whether the edge toward d carries a river.
func (t *Tile) HasRiver(d Direction) bool { return t.Rivers&(1<<uint(d)) != 0 }

// Grid is the horizontally wrapping tile map. Rows 0 and Height-1 are void.
type Grid struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Tiles  []Tile `json:"tiles"`
}

// NewGrid returns a grid of ocean tiles with void border rows.
func NewGrid(width, height int) *Grid {
	g := &Grid{Width: width, Height: height, Tiles: make([]Tile, width*height)}
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			t := g.At(x, y)
			t.Terrain = Ocean
			if y == 0 || y == height-1 {
				t.Terrain = Void
			}
		}
	}
	return g
}

// Wrap normalizes x into [0, Width).
func (g *Grid) Wrap(x int) int {
	x %= g.Width
	if x < 0 {
		x += g.Width
	}
	return x
}

// Valid reports whether (x, y) names an enterable tile after wrapping x.
func (g *Grid) Valid(x, y int) bool {
	if y < 0 || y >= g.Height {
		return false
	}
	return g.Tiles[y*g.Width+g.Wrap(x)].Terrain != Void
}

// At returns the tile at (x, y) with x wrapped, or nil when y is out of range.
func (g *Grid) At(x, y int) *Tile {
	if y < 0 || y >= g.Height {
		return nil
	}
	return &g.Tiles[y*g.Width+g.Wrap(x)]
}

// dx returns the shortest signed horizontal offset from x1 to x2.
func (g *Grid) dx(x1, x2 int) int {
	d := g.Wrap(x2) - g.Wrap(x1)
	if d > g.Width/2 {
		d -= g.Width
	} else if d < -g.Width/2 {
		d += g.Width
	}
	return d
}

// Distance is the Chebyshev distance with horizontal wrap.
func (g *Grid) Distance(x1, y1, x2, y2 int) int {
	return max(abs(g.dx(x1, x2)), abs(y2-y1))
}

// Manhattan is the Manhattan distance with horizontal wrap.
func (g *Grid) Manhattan(x1, y1, x2, y2 int) int {
	return abs(g.dx(x1, x2)) + abs(y2-y1)
}

// DirectionTo returns the direction of an adjacent tile, or -1.
func (g *Grid) DirectionTo(x1, y1, x2, y2 int) Direction {
	ddx, ddy := g.dx(x1, x2), y2-y1
	for d, off := range dirOffsets {
		if off[0] == ddx && off[1] == ddy {
			return Direction(d)
		}
	}
	return -1
}

// Point is a wrapped grid coordinate.
type Point struct {
	X, Y int
}

// Neighbors returns the in-bounds, non-void neighbors of (x, y) in
// Direction order.
func (g *Grid) Neighbors(x, y int) []Point {
	pts := make([]Point, 0, 8)
	for _, off := range dirOffsets {
		nx, ny := g.Wrap(x+off[0]), y+off[1]
		if g.Valid(nx, ny) {
			pts = append(pts, Point{nx, ny})
		}
	}
	return pts
}

// SetRiver marks the edge between (x, y) and its neighbor in direction d on
// both tiles.
func (g *Grid) SetRiver(x, y int, d Direction) {
	off := dirOffsets[d]
	a := g.At(x, y)
	b := g.At(x+off[0], y+off[1])
	if a == nil || b == nil {
		return
	}
	a.Rivers |= 1 << uint(d)
	b.Rivers |= 1 << uint(d.Opposite())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

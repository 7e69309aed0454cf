package chiron

// UnitID is a stable handle into State.Units. Zero means no unit.
type UnitID int

// Category is the movement domain of a unit.
type Category int

const (
	LandUnit Category = iota
	SeaUnit
	AirUnit
)

func (c Category) String() string {
	switch c {
	case LandUnit:
		return "land"
	case SeaUnit:
		return "sea"
	}
	return "air"
}

// Role is the closed set of behaviors a unit can have.
type Role int

const (
	Combatant Role = iota
	Colonizer
	Transport
	Worker
	Courier
	Artifact
	Probe
)

func (r Role) String() string {
	switch r {
	case Combatant:
		return "combatant"
	case Colonizer:
		return "colonizer"
	case Transport:
		return "transport"
	case Worker:
		return "worker"
	case Courier:
		return "courier"
	case Artifact:
		return "artifact"
	}
	return "probe"
}

// Chassis determines base speed and a few combat bonuses.
type Chassis int

const (
	Infantry Chassis = iota
	Speeder
	Hovertank
	Foil
	Cruiser
	Needlejet
	Copter
)

// Mobile reports whether the chassis earns the open-ground assault bonus.
func (c Chassis) Mobile() bool { return c == Speeder || c == Hovertank }

// Mode is the damage type of a weapon or armor.
type Mode int

const (
	Projectile Mode = iota
	Energy
	Binary
	Psi
)

// Ability is a bitset of special capabilities.
type Ability uint16

const (
	Amphibious Ability = 1 << iota
	Artillery
	Cloaking
	Trance
	AAA
	Jamming
	Blink
	Airdrop
)

// Has reports whether all bits of o are present.
func (a Ability) Has(o Ability) bool { return a&o == o }

// Morale tiers. Modifiers are relative to MoraleGreen.
const (
	MoraleVeryGreen = 0
	MoraleGreen     = 1
	MoraleMax       = 7
)

// WorkOrder is an in-progress terraform job.
type WorkOrder struct {
	Kind      Improvement `json:"kind"`
	TurnsLeft int         `json:"turns_left"`
}

// Unit is a single piece on the map. Zero values are valid defaults for
// every field; Version tracks the struct layout for snapshot upgrades.
type Unit struct {
	ID        UnitID    `json:"id"`
	Name      string    `json:"name"`
	Faction   FactionID `json:"faction"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Category  Category  `json:"category"`
	Role      Role      `json:"role"`
	Chassis   Chassis   `json:"chassis"`
	Attack    int       `json:"attack"`
	Defense   int       `json:"defense"`
	Weapon    Mode      `json:"weapon"`
	Armor     Mode      `json:"armor"`
	Abilities Ability   `json:"abilities,omitempty"`

	MovesLeft     float64 `json:"moves_left"`
	MaxMoves      int     `json:"max_moves"`
	MovesThisTurn int     `json:"moves_this_turn,omitempty"`
	HP            int     `json:"hp"`
	MaxHP         int     `json:"max_hp"`
	Morale        int     `json:"morale"`
	Kills         int     `json:"kills,omitempty"`

	Capacity  int      `json:"capacity,omitempty"`
	Cargo     []UnitID `json:"cargo,omitempty"`
	CarriedBy UnitID   `json:"carried_by,omitempty"`

	Fuel    int `json:"fuel,omitempty"`
	MaxFuel int `json:"max_fuel,omitempty"`

	Support      BaseID     `json:"support,omitempty"`
	Work         *WorkOrder `json:"work,omitempty"`
	Held         bool       `json:"held,omitempty"`
	Dropped      bool       `json:"dropped,omitempty"`
	MonolithUsed bool       `json:"monolith_used,omitempty"`
	Moved        bool       `json:"moved,omitempty"`
}

// CanAttack reports whether the unit may initiate combat.
func (u *Unit) CanAttack() bool {
	return u.Attack > 0 && (u.Role == Combatant || u.Role == Probe)
}

// FreeCapacity returns how many more units this transport can carry.
func (u *Unit) FreeCapacity() int {
	if u.Role != Transport {
		return 0
	}
	return u.Capacity - len(u.Cargo)
}

// Prototype is a buildable unit design.
type Prototype struct {
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	Role      Role     `json:"role"`
	Chassis   Chassis  `json:"chassis"`
	Attack    int      `json:"attack"`
	Defense   int      `json:"defense"`
	Weapon    Mode     `json:"weapon"`
	Armor     Mode     `json:"armor"`
	Abilities Ability  `json:"abilities"`
	Moves     int      `json:"moves"`
	HP        int      `json:"hp"`
	Capacity  int      `json:"capacity"`
	Fuel      int      `json:"fuel"`
}

// newUnit instantiates p for a faction at (x, y) without placing it.
func (p Prototype) newUnit(id UnitID, f FactionID, x, y int) *Unit {
	hp := p.HP
	if hp <= 0 {
		hp = DefaultMaxHP
	}
	return &Unit{
		ID:        id,
		Name:      p.Name,
		Faction:   f,
		X:         x,
		Y:         y,
		Category:  p.Category,
		Role:      p.Role,
		Chassis:   p.Chassis,
		Attack:    p.Attack,
		Defense:   p.Defense,
		Weapon:    p.Weapon,
		Armor:     p.Armor,
		Abilities: p.Abilities,
		MovesLeft: float64(p.Moves),
		MaxMoves:  p.Moves,
		HP:        hp,
		MaxHP:     hp,
		Morale:    MoraleGreen,
		Capacity:  p.Capacity,
		Fuel:      p.Fuel,
		MaxFuel:   p.Fuel,
	}
}

// DefaultMaxHP is the hit point pool of a standard unit.
const DefaultMaxHP = 10

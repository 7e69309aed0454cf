package chiron

// FactionID identifies a faction. Faction 0 is native life.
type FactionID int

// Natives is the faction that owns planetary life forms.
const Natives FactionID = 0

// NoHuman is the HumanFaction of a game played only by computer factions.
const NoHuman FactionID = -1

// Faction is a player, human or computer controlled.
type Faction struct {
	ID          FactionID   `json:"id"`
	Name        string      `json:"name"`
	Human       bool        `json:"human,omitempty"`
	Planet      int         `json:"planet,omitempty"` // PLANET social rating
	Credits     int         `json:"credits,omitempty"`
	Techs       []string    `json:"techs,omitempty"`
	Contacts    []FactionID `json:"contacts,omitempty"`
	FoundedBase bool        `json:"founded_base,omitempty"`
	Eliminated  bool        `json:"eliminated,omitempty"`
}

// HasContact reports whether f has met other.
func (f *Faction) HasContact(other FactionID) bool {
	for _, c := range f.Contacts {
		if c == other {
			return true
		}
	}
	return false
}

// HasTech reports whether f knows tech.
func (f *Faction) HasTech(tech string) bool {
	for _, t := range f.Techs {
		if t == tech {
			return true
		}
	}
	return false
}

// Relation is the diplomatic status between two factions.
type Relation int

const (
	NoContact Relation = iota
	Treaty
	Pact
	Vendetta
)

func (r Relation) String() string {
	switch r {
	case Treaty:
		return "treaty"
	case Pact:
		return "pact"
	case Vendetta:
		return "vendetta"
	}
	return "none"
}

// RelationEntry stores a symmetric relation between A and B.
type RelationEntry struct {
	A      FactionID `json:"a"`
	B      FactionID `json:"b"`
	Status Relation  `json:"status"`
}

// RelationOf returns the relation between a and b. A faction is always in
// pact with itself.
func (st *State) RelationOf(a, b FactionID) Relation {
	if a == b {
		return Pact
	}
	for _, r := range st.Relations {
		if (r.A == a && r.B == b) || (r.A == b && r.B == a) {
			return r.Status
		}
	}
	return NoContact
}

// SetRelation records the relation between a and b.
func (st *State) SetRelation(a, b FactionID, rel Relation) {
	for i := range st.Relations {
		r := &st.Relations[i]
		if (r.A == a && r.B == b) || (r.A == b && r.B == a) {
			r.Status = rel
			return
		}
	}
	st.Relations = append(st.Relations, RelationEntry{A: a, B: b, Status: rel})
}

// Hostile reports whether units of a and b fight when they meet.
func (st *State) Hostile(a, b FactionID) bool {
	return st.RelationOf(a, b) != Pact
}

// Facility is a base improvement the core reads for combat.
type Facility string

const (
	PerimeterDefense Facility = "Perimeter Defense"
	AerospaceComplex Facility = "Aerospace Complex"
	CovertOpsCenter  Facility = "Covert Ops Center"
	CommandCenter    Facility = "Command Center"
	NavalYard        Facility = "Naval Yard"
	BiologyLab       Facility = "Biology Lab"
	RecyclingTanks   Facility = "Recycling Tanks"
	NetworkNode      Facility = "Network Node"
)

// BaseID is a stable handle into State.Bases. Zero means no base.
type BaseID int

// Base is a settlement. Its tile's Base handle always points back at it.
type Base struct {
	ID            BaseID     `json:"id"`
	Name          string     `json:"name"`
	Faction       FactionID  `json:"faction"`
	X             int        `json:"x"`
	Y             int        `json:"y"`
	Population    int        `json:"population"`
	Garrison      []UnitID   `json:"garrison,omitempty"`
	Facilities    []Facility `json:"facilities,omitempty"`
	Production    string     `json:"production,omitempty"`
	NewlyCaptured bool       `json:"newly_captured,omitempty"`
}

// Has reports whether the base has built fac.
func (b *Base) Has(fac Facility) bool {
	for _, f := range b.Facilities {
		if f == fac {
			return true
		}
	}
	return false
}

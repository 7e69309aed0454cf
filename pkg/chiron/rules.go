package chiron

import "fmt"

// Tuning holds the numeric constants of the engine.
type Tuning struct {
	RoundDelay            float64 // seconds per displayed combat round
	FinishDelay           float64 // seconds after the last round before state changes
	MonolithConsumeChance float64
	FungusBaseChance      float64 // chance to lose all movement entering land fungus
	FungusPlanetStep      float64 // reduction per PLANET rating point
	SeaFungusPenalty      float64
	MaxMovesPerTurn       int
	PodWeights            PodWeights
	PodCredits            int
	SeizeCostPerPop       int
}

// PodWeights are the relative weights of supply pod outcomes.
type PodWeights struct {
	Tech     int
	Artifact int
	Contact  int
	Credits  int
	River    int
}

// Ruleset is the catalog of buildable units, facilities and tuning.
type Ruleset struct {
	Prototypes     map[string]Prototype
	Facilities     map[string]Facility
	TerraformTurns map[Improvement]int
	Techs          []string
	Tuning         Tuning
}

// Prototype names used by the engine itself.
const (
	ProtoScout     = "Scout Patrol"
	ProtoColony    = "Colony Pod"
	ProtoFormer    = "Former"
	ProtoArtifact  = "Alien Artifact"
	ProtoTransport = "Transport Foil"
	ProtoMindWorm  = "Mind Worms"
)

// DefaultTuning returns the standard constants.
func DefaultTuning() Tuning {
	return Tuning{
		RoundDelay:            0.3,
		FinishDelay:           0.5,
		MonolithConsumeChance: 0.05,
		FungusBaseChance:      0.5,
		FungusPlanetStep:      0.1,
		SeaFungusPenalty:      2,
		MaxMovesPerTurn:       100,
		PodWeights:            PodWeights{Tech: 2, Artifact: 1, Contact: 2, Credits: 4, River: 1},
		PodCredits:            25,
		SeizeCostPerPop:       50,
	}
}

// DefaultRuleset returns the built-in catalog.
func DefaultRuleset() *Ruleset {
	protos := []Prototype{
		{Name: ProtoScout, Category: LandUnit, Role: Combatant, Chassis: Infantry, Attack: 1, Defense: 1, Moves: 1},
		{Name: ProtoColony, Category: LandUnit, Role: Colonizer, Chassis: Infantry, Moves: 1},
		{Name: ProtoFormer, Category: LandUnit, Role: Worker, Chassis: Infantry, Moves: 1},
		{Name: ProtoArtifact, Category: LandUnit, Role: Artifact, Chassis: Infantry, Moves: 1},
		{Name: ProtoTransport, Category: SeaUnit, Role: Transport, Chassis: Foil, Defense: 1, Moves: 4, Capacity: 2},
		{Name: ProtoMindWorm, Category: LandUnit, Role: Combatant, Chassis: Infantry, Attack: 1, Defense: 1, Weapon: Psi, Armor: Psi, Moves: 1},
		{Name: "Gatling Rover", Category: LandUnit, Role: Combatant, Chassis: Speeder, Attack: 2, Defense: 1, Moves: 2},
		{Name: "Laser Squad", Category: LandUnit, Role: Combatant, Chassis: Infantry, Attack: 2, Defense: 1, Weapon: Energy, Moves: 1},
		{Name: "Synthmetal Garrison", Category: LandUnit, Role: Combatant, Chassis: Infantry, Attack: 1, Defense: 2, Armor: Projectile, Moves: 1},
		{Name: "Artillery Battery", Category: LandUnit, Role: Combatant, Chassis: Speeder, Attack: 2, Defense: 1, Abilities: Artillery, Moves: 2},
		{Name: "Marine Detachment", Category: LandUnit, Role: Combatant, Chassis: Infantry, Attack: 2, Defense: 1, Abilities: Amphibious, Moves: 1},
		{Name: "Empath Guard", Category: LandUnit, Role: Combatant, Chassis: Infantry, Attack: 1, Defense: 2, Abilities: Trance, Moves: 1},
		{Name: "AAA Garrison", Category: LandUnit, Role: Combatant, Chassis: Infantry, Attack: 1, Defense: 2, Abilities: AAA, Moves: 1},
		{Name: "Hovertank", Category: LandUnit, Role: Combatant, Chassis: Hovertank, Attack: 4, Defense: 2, Weapon: Energy, Moves: 3},
		{Name: "Gunship Foil", Category: SeaUnit, Role: Combatant, Chassis: Foil, Attack: 2, Defense: 1, Moves: 4},
		{Name: "Needlejet", Category: AirUnit, Role: Combatant, Chassis: Needlejet, Attack: 3, Defense: 1, Moves: 8, Fuel: 2},
		{Name: "Probe Team", Category: LandUnit, Role: Probe, Chassis: Speeder, Moves: 2},
		{Name: "Supply Crawler", Category: LandUnit, Role: Courier, Chassis: Infantry, Moves: 1},
	}
	r := &Ruleset{
		Prototypes: make(map[string]Prototype, len(protos)),
		Facilities: map[string]Facility{},
		TerraformTurns: map[Improvement]int{
			Road: 1, MagTube: 3, Farm: 2, Mine: 3, Sensor: 2, Bunker: 3, Forest: 2,
		},
		Techs: []string{
			"Biogenetics", "Industrial Base", "Information Networks", "Applied Physics",
			"Social Psych", "Doctrine: Mobility", "Centauri Ecology", "Nonlinear Mathematics",
			"Planetary Networks", "Synthetic Fossil Fuels", "High Energy Chemistry", "Secrets of the Human Brain",
		},
		Tuning: DefaultTuning(),
	}
	for _, p := range protos {
		r.Prototypes[p.Name] = p
	}
	for _, f := range []Facility{PerimeterDefense, AerospaceComplex, CovertOpsCenter, CommandCenter, NavalYard, BiologyLab, RecyclingTanks, NetworkNode} {
		r.Facilities[string(f)] = f
	}
	return r
}

// Prototype looks up a unit design by name.
func (r *Ruleset) Prototype(name string) (Prototype, error) {
	p, ok := r.Prototypes[name]
	if !ok {
		return Prototype{}, fmt.Errorf("unknown prototype %q", name)
	}
	return p, nil
}

// --- default collaborators ---

// defaultProduction completes the base's queued item every few turns and
// grows population.
type defaultProduction struct{}

const productionInterval = 5

func (defaultProduction) ProcessBase(st *State, b *Base) string {
	if (st.Turn+int(b.ID))%productionInterval != 0 {
		return ""
	}
	if b.Population < 8 && st.Turn%(productionInterval*2) == 0 {
		b.Population++
	}
	if b.Production == "" {
		return ProtoScout
	}
	return b.Production
}

// defaultResearch completes one technology every few turns per faction, in
// ruleset order.
type defaultResearch struct{ techs []string }

const researchInterval = 8

func (r defaultResearch) Accumulate(st *State, f FactionID) string {
	if (st.Turn+int(f))%researchInterval != 0 {
		return ""
	}
	return r.GrantTech(st, f)
}

func (r defaultResearch) GrantTech(st *State, f FactionID) string {
	fac := st.Faction(f)
	if fac == nil {
		return ""
	}
	for _, t := range r.techs {
		if !fac.HasTech(t) {
			fac.Techs = append(fac.Techs, t)
			return t
		}
	}
	return ""
}

func (defaultResearch) StealTech(st *State, from, to FactionID) string {
	src, dst := st.Faction(from), st.Faction(to)
	if src == nil || dst == nil {
		return ""
	}
	for _, t := range src.Techs {
		if !dst.HasTech(t) {
			dst.Techs = append(dst.Techs, t)
			return t
		}
	}
	return ""
}

// defaultCommerce pays each faction one credit per base for every treaty or
// pact partner.
type defaultCommerce struct{}

func (defaultCommerce) Exchange(st *State) []Event {
	var events []Event
	for i := range st.Factions {
		f := &st.Factions[i]
		if f.ID == Natives || f.Eliminated {
			continue
		}
		partners := 0
		for j := range st.Factions {
			other := st.Factions[j].ID
			if other == f.ID || st.Factions[j].Eliminated {
				continue
			}
			if rel := st.RelationOf(f.ID, other); rel == Treaty || rel == Pact {
				partners++
			}
		}
		income := partners * len(st.BasesOf(f.ID))
		if income == 0 {
			continue
		}
		f.Credits += income
		events = append(events, Event{
			Kind:    EventIncome,
			Faction: f.ID,
			Text:    fmt.Sprintf("%s receives %d credits from commerce", f.Name, income),
			Value:   fmt.Sprint(income),
		})
	}
	return events
}

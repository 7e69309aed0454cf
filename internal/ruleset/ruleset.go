// Package ruleset loads unit prototypes, facilities and tuning constants
// from YAML and turns them into a chiron.Ruleset.
package ruleset

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/freeeve/chiron/pkg/chiron"
)

// File is the on-disk layout of a rules file.
type File struct {
	Tuning     Tuning         `yaml:"tuning"`
	Prototypes []Prototype    `yaml:"prototypes"`
	Facilities []string       `yaml:"facilities"`
	Terraform  map[string]int `yaml:"terraform"`
	Techs      []string       `yaml:"techs"`
}

// Tuning mirrors chiron.Tuning. Fields missing from the file keep their
// built-in values.
type Tuning struct {
	RoundDelay            float64    `yaml:"round_delay"`
	FinishDelay           float64    `yaml:"finish_delay"`
	MonolithConsumeChance float64    `yaml:"monolith_consume_chance"`
	FungusBaseChance      float64    `yaml:"fungus_base_chance"`
	FungusPlanetStep      float64    `yaml:"fungus_planet_step"`
	SeaFungusPenalty      float64    `yaml:"sea_fungus_penalty"`
	MaxMovesPerTurn       int        `yaml:"max_moves_per_turn"`
	PodCredits            int        `yaml:"pod_credits"`
	SeizeCostPerPop       int        `yaml:"seize_cost_per_pop"`
	PodWeights            PodWeights `yaml:"pod_weights"`
}

type PodWeights struct {
	Tech     int `yaml:"tech"`
	Artifact int `yaml:"artifact"`
	Contact  int `yaml:"contact"`
	Credits  int `yaml:"credits"`
	River    int `yaml:"river"`
}

// Prototype is a unit design with its enums spelled out by name.
type Prototype struct {
	Name      string   `yaml:"name"`
	Category  string   `yaml:"category"`
	Role      string   `yaml:"role"`
	Chassis   string   `yaml:"chassis"`
	Attack    int      `yaml:"attack"`
	Defense   int      `yaml:"defense"`
	Weapon    string   `yaml:"weapon"`
	Armor     string   `yaml:"armor"`
	Abilities []string `yaml:"abilities"`
	Moves     int      `yaml:"moves"`
	HP        int      `yaml:"hp"`
	Capacity  int      `yaml:"capacity"`
	Fuel      int      `yaml:"fuel"`
}

var (
	categories = map[string]chiron.Category{"land": chiron.LandUnit, "sea": chiron.SeaUnit, "air": chiron.AirUnit}
	roles      = map[string]chiron.Role{
		"combatant": chiron.Combatant, "colonizer": chiron.Colonizer, "transport": chiron.Transport,
		"worker": chiron.Worker, "courier": chiron.Courier, "artifact": chiron.Artifact, "probe": chiron.Probe,
	}
	chassis = map[string]chiron.Chassis{
		"infantry": chiron.Infantry, "speeder": chiron.Speeder, "hovertank": chiron.Hovertank,
		"foil": chiron.Foil, "cruiser": chiron.Cruiser, "needlejet": chiron.Needlejet, "copter": chiron.Copter,
	}
	modes = map[string]chiron.Mode{
		"projectile": chiron.Projectile, "energy": chiron.Energy, "binary": chiron.Binary, "psi": chiron.Psi,
	}
	abilities = map[string]chiron.Ability{
		"amphibious": chiron.Amphibious, "artillery": chiron.Artillery, "cloaking": chiron.Cloaking,
		"trance": chiron.Trance, "aaa": chiron.AAA, "jamming": chiron.Jamming, "blink": chiron.Blink,
		"airdrop": chiron.Airdrop,
	}
	improvements = map[string]chiron.Improvement{
		"road": chiron.Road, "mag_tube": chiron.MagTube, "farm": chiron.Farm, "mine": chiron.Mine,
		"sensor": chiron.Sensor, "bunker": chiron.Bunker, "forest": chiron.Forest,
	}
)

// Load reads a rules file. An empty path returns the built-in ruleset.
func Load(path string) (*chiron.Ruleset, error) {
	if path == "" {
		return chiron.DefaultRuleset(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset: %w", err)
	}
	r, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("ruleset %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a rules file on top of the built-in ruleset. Prototypes are
// merged by name; facilities, terraform times and techs replace the
// defaults when present.
func Parse(data []byte) (*chiron.Ruleset, error) {
	r := chiron.DefaultRuleset()
	f := File{Tuning: fromTuning(r.Tuning)}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	r.Tuning = f.Tuning.toTuning()
	if r.Tuning.RoundDelay <= 0 || r.Tuning.FinishDelay < 0 {
		return nil, fmt.Errorf("round_delay must be positive and finish_delay non-negative")
	}
	if w := r.Tuning.PodWeights; w.Tech+w.Artifact+w.Contact+w.Credits+w.River <= 0 {
		return nil, fmt.Errorf("pod_weights must not all be zero")
	}

	for i, p := range f.Prototypes {
		proto, err := p.toPrototype()
		if err != nil {
			return nil, fmt.Errorf("prototype %d: %w", i, err)
		}
		r.Prototypes[proto.Name] = proto
	}
	if len(f.Facilities) > 0 {
		r.Facilities = make(map[string]chiron.Facility, len(f.Facilities))
		for _, name := range f.Facilities {
			r.Facilities[name] = chiron.Facility(name)
		}
	}
	if len(f.Terraform) > 0 {
		r.TerraformTurns = make(map[chiron.Improvement]int, len(f.Terraform))
		for name, turns := range f.Terraform {
			imp, ok := improvements[strings.ToLower(name)]
			if !ok {
				return nil, fmt.Errorf("unknown improvement %q", name)
			}
			if turns <= 0 {
				return nil, fmt.Errorf("terraform %s: turns must be positive", name)
			}
			r.TerraformTurns[imp] = turns
		}
	}
	if len(f.Techs) > 0 {
		r.Techs = f.Techs
	}
	return r, nil
}

func (p Prototype) toPrototype() (chiron.Prototype, error) {
	if p.Name == "" {
		return chiron.Prototype{}, fmt.Errorf("missing name")
	}
	out := chiron.Prototype{
		Name:     p.Name,
		Attack:   p.Attack,
		Defense:  p.Defense,
		Moves:    p.Moves,
		HP:       p.HP,
		Capacity: p.Capacity,
		Fuel:     p.Fuel,
	}
	var err error
	if out.Category, err = lookup(categories, "category", p.Category, "land"); err != nil {
		return out, err
	}
	if out.Role, err = lookup(roles, "role", p.Role, "combatant"); err != nil {
		return out, err
	}
	if out.Chassis, err = lookup(chassis, "chassis", p.Chassis, "infantry"); err != nil {
		return out, err
	}
	if out.Weapon, err = lookup(modes, "weapon", p.Weapon, "projectile"); err != nil {
		return out, err
	}
	if out.Armor, err = lookup(modes, "armor", p.Armor, "projectile"); err != nil {
		return out, err
	}
	for _, a := range p.Abilities {
		bit, err := lookup(abilities, "ability", a, "")
		if err != nil {
			return out, err
		}
		out.Abilities |= bit
	}
	if out.Moves <= 0 {
		return out, fmt.Errorf("%s: moves must be positive", p.Name)
	}
	if out.Category == chiron.AirUnit && out.Fuel <= 0 {
		return out, fmt.Errorf("%s: air units need fuel", p.Name)
	}
	return out, nil
}

// Improvement resolves a terraform kind by its rules-file name.
func Improvement(name string) (chiron.Improvement, error) {
	return lookup(improvements, "improvement", name, "")
}

func lookup[T any](table map[string]T, kind, name, fallback string) (T, error) {
	if name == "" {
		name = fallback
	}
	v, ok := table[strings.ToLower(name)]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s %q", kind, name)
	}
	return v, nil
}

func fromTuning(t chiron.Tuning) Tuning {
	return Tuning{
		RoundDelay:            t.RoundDelay,
		FinishDelay:           t.FinishDelay,
		MonolithConsumeChance: t.MonolithConsumeChance,
		FungusBaseChance:      t.FungusBaseChance,
		FungusPlanetStep:      t.FungusPlanetStep,
		SeaFungusPenalty:      t.SeaFungusPenalty,
		MaxMovesPerTurn:       t.MaxMovesPerTurn,
		PodCredits:            t.PodCredits,
		SeizeCostPerPop:       t.SeizeCostPerPop,
		PodWeights:            PodWeights(t.PodWeights),
	}
}

func (t Tuning) toTuning() chiron.Tuning {
	return chiron.Tuning{
		RoundDelay:            t.RoundDelay,
		FinishDelay:           t.FinishDelay,
		MonolithConsumeChance: t.MonolithConsumeChance,
		FungusBaseChance:      t.FungusBaseChance,
		FungusPlanetStep:      t.FungusPlanetStep,
		SeaFungusPenalty:      t.SeaFungusPenalty,
		MaxMovesPerTurn:       t.MaxMovesPerTurn,
		PodCredits:            t.PodCredits,
		SeizeCostPerPop:       t.SeizeCostPerPop,
		PodWeights:            chiron.PodWeights(t.PodWeights),
	}
}

package ruleset

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/chiron/pkg/chiron"
)

const sample = `
tuning:
  round_delay: 0.1
  pod_credits: 40
  pod_weights:
    tech: 0
    artifact: 0
    contact: 0
    credits: 1
    river: 0
prototypes:
  - name: Chopper
    category: air
    role: combatant
    chassis: copter
    attack: 3
    defense: 1
    weapon: energy
    abilities: [jamming, AAA]
    moves: 6
    fuel: 1
  - name: Scout Patrol
    attack: 2
    defense: 1
    moves: 1
terraform:
  road: 2
  mag_tube: 4
techs: [Biogenetics, "Doctrine: Flexibility"]
`

func TestParse_MergesOverDefaults(t *testing.T) {
	r, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 0.1, r.Tuning.RoundDelay)
	assert.Equal(t, chiron.DefaultTuning().FinishDelay, r.Tuning.FinishDelay)
	assert.Equal(t, 40, r.Tuning.PodCredits)
	assert.Equal(t, chiron.PodWeights{Credits: 1}, r.Tuning.PodWeights)

	chopper, err := r.Prototype("Chopper")
	require.NoError(t, err)
	assert.Equal(t, chiron.AirUnit, chopper.Category)
	assert.Equal(t, chiron.Copter, chopper.Chassis)
	assert.Equal(t, chiron.Energy, chopper.Weapon)
	assert.Equal(t, chiron.Projectile, chopper.Armor)
	assert.True(t, chopper.Abilities.Has(chiron.Jamming|chiron.AAA))

	scout, err := r.Prototype(chiron.ProtoScout)
	require.NoError(t, err)
	assert.Equal(t, 2, scout.Attack)

	_, err = r.Prototype(chiron.ProtoFormer)
	assert.NoError(t, err, "unlisted defaults survive the merge")

	assert.Equal(t, map[chiron.Improvement]int{chiron.Road: 2, chiron.MagTube: 4}, r.TerraformTurns)
	assert.Equal(t, []string{"Biogenetics", "Doctrine: Flexibility"}, r.Techs)
	assert.Contains(t, r.Facilities, string(chiron.PerimeterDefense))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown chassis", "prototypes:\n  - {name: X, chassis: tripod, moves: 1}\n", "unknown chassis"},
		{"unknown ability", "prototypes:\n  - {name: X, abilities: [teleport], moves: 1}\n", "unknown ability"},
		{"no moves", "prototypes:\n  - {name: X}\n", "moves must be positive"},
		{"air without fuel", "prototypes:\n  - {name: X, category: air, moves: 4}\n", "need fuel"},
		{"unnamed", "prototypes:\n  - {moves: 1}\n", "missing name"},
		{"bad improvement", "terraform: {moat: 2}\n", "unknown improvement"},
		{"zero weights", "tuning: {pod_weights: {tech: 0, artifact: 0, contact: 0, credits: 0, river: 0}}\n", "pod_weights"},
		{"bad delay", "tuning: {round_delay: 0}\n", "round_delay"},
		{"not yaml", "prototypes: [\n", "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, chiron.DefaultRuleset().Tuning, r.Tuning)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))
	r, err = Load(path)
	require.NoError(t, err)
	assert.Contains(t, r.Prototypes, "Chopper")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParsedRulesDriveTheEngine(t *testing.T) {
	r, err := Parse([]byte(sample))
	require.NoError(t, err)

	cfg := chiron.DefaultScenario()
	cfg.AIFactions = 1
	st, err := chiron.NewScenario(cfg, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	sim := chiron.NewSim(st, rand.New(rand.NewSource(3)), chiron.WithRules(r))
	bases := st.BasesOf(st.HumanFaction)
	require.Len(t, bases, 1)
	b := bases[0]

	u, err := sim.Spawn(b.ID, "Chopper")
	require.NoError(t, err)
	assert.Equal(t, 6, u.MaxMoves)
	assert.Equal(t, 1, u.MaxFuel)
}

func TestImprovement(t *testing.T) {
	imp, err := Improvement("road")
	require.NoError(t, err)
	assert.Equal(t, chiron.Road, imp)

	_, err = Improvement("moat")
	assert.Error(t, err)
}

// Package bot is the faction-decision layer: it steers computer-controlled
// units by evaluating prioritized rules against each unit's situation.
package bot

import (
	"errors"
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"

	"github.com/freeeve/chiron/pkg/chiron"
)

// Action is what a unit does when its rule fires.
type Action string

const (
	ActionAttack    Action = "attack"
	ActionBombard   Action = "bombard"
	ActionFound     Action = "found"
	ActionTerraform Action = "terraform"
	ActionAdvance   Action = "advance"
	ActionRetreat   Action = "retreat"
	ActionExplore   Action = "explore"
	ActionHold      Action = "hold"
)

var actions = map[Action]func(*chiron.Sim, *chiron.Unit) bool{
	ActionAttack:    attack,
	ActionBombard:   bombard,
	ActionFound:     found,
	ActionTerraform: terraform,
	ActionAdvance:   advance,
	ActionRetreat:   retreat,
	ActionExplore:   explore,
	ActionHold:      hold,
}

// Rule is a condition/action pair. Higher priorities are tried first; when
// the action cannot be carried out the next matching rule gets a chance.
type Rule struct {
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`
	When     string `yaml:"when"`
	Action   Action `yaml:"action"`

	program *vm.Program
}

// RuleStrategy implements chiron.Decider.
type RuleStrategy struct {
	name  string
	rules []*Rule
	log   zerolog.Logger
}

// NewRuleStrategy compiles every condition against Env. A rule that fails to
// compile or names an unknown action is an error.
func NewRuleStrategy(name string, rules []Rule, log zerolog.Logger) (*RuleStrategy, error) {
	compiled := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if _, ok := actions[r.Action]; !ok {
			return nil, fmt.Errorf("rule %q: unknown action %q", r.Name, r.Action)
		}
		prog, err := expr.Compile(r.When, expr.Env(Env{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Name, err)
		}
		r.program = prog
		compiled = append(compiled, &r)
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority > compiled[j].Priority
	})
	return &RuleStrategy{name: name, rules: compiled, log: log}, nil
}

// Name returns the strategy's name.
func (s *RuleStrategy) Name() string { return s.name }

// maxActions bounds how many actions one unit takes per Decide call.
const maxActions = 16

// Decide acts for u until it runs out of movement, starts a battle, or no
// rule applies. Working units are left alone.
func (s *RuleStrategy) Decide(sim *chiron.Sim, u *chiron.Unit) {
	if u.Work != nil {
		return
	}
	id := u.ID
	for i := 0; i < maxActions; i++ {
		u = sim.State.Unit(id)
		if u == nil || u.MovesLeft <= 0 || u.Held || u.Work != nil || sim.State.Battle != nil {
			return
		}
		rule := s.fire(sim, u)
		if rule == nil {
			_ = sim.Hold(id)
			return
		}
		s.log.Debug().Str("rule", rule.Name).Int("unit", int(id)).Msg("Rule fired")
		if rule.Action == ActionHold {
			return
		}
	}
}

// fire runs the first matching rule whose action succeeds.
func (s *RuleStrategy) fire(sim *chiron.Sim, u *chiron.Unit) *Rule {
	env := s.newEnv(sim, u)
	for _, r := range s.rules {
		out, err := vm.Run(r.program, env)
		if err != nil {
			s.log.Warn().Err(err).Str("rule", r.Name).Msg("Rule condition error")
			continue
		}
		if match, _ := out.(bool); !match {
			continue
		}
		if actions[r.Action](sim, u) {
			return r
		}
	}
	return nil
}

// DefaultRules is the standard doctrine.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "bombard-targets", Priority: 100, When: "Artillery && TargetsInRange > 0", Action: ActionBombard},
		{Name: "strike-weak", Priority: 90, When: "CanAttack && BestOdds >= 0.6", Action: ActionAttack},
		{Name: "found-colony", Priority: 80, When: `Role == "colonizer" && CanFound`, Action: ActionFound},
		{Name: "seek-site", Priority: 75, When: `Role == "colonizer"`, Action: ActionExplore},
		{Name: "improve-tile", Priority: 70, When: `Role == "worker" && NeedsWork`, Action: ActionTerraform},
		{Name: "hold-garrison", Priority: 60, When: `Role == "combatant" && InBase && Garrison <= 1`, Action: ActionHold},
		{Name: "fall-back", Priority: 55, When: "HP * 2 < MaxHP && HomeDist > 0", Action: ActionRetreat},
		{Name: "mend", Priority: 54, When: "HP < MaxHP && InBase", Action: ActionHold},
		{Name: "press-attack", Priority: 40, When: "CanAttack && EnemyBaseDist > 0", Action: ActionAdvance},
		{Name: "wander", Priority: 10, When: "true", Action: ActionExplore},
	}
}

// aggressiveRules attacks at worse odds and keeps fewer defenders home.
func aggressiveRules() []Rule {
	rules := DefaultRules()
	for i := range rules {
		switch rules[i].Name {
		case "strike-weak":
			rules[i].When = "CanAttack && BestOdds >= 0.45"
		case "hold-garrison":
			rules[i].When = `Role == "combatant" && InBase && Garrison <= 1 && Turn < 20`
		}
	}
	return rules
}

// randomRules only wanders.
func randomRules() []Rule {
	return []Rule{
		{Name: "found-colony", Priority: 10, When: `Role == "colonizer" && CanFound`, Action: ActionFound},
		{Name: "wander", Priority: 1, When: "true", Action: ActionExplore},
	}
}

// ErrUnknownDifficulty is returned for an unrecognized difficulty name.
var ErrUnknownDifficulty = errors.New("unknown bot difficulty")

// StrategyForDifficulty returns the decider for a difficulty level. The empty
// string selects "medium".
func StrategyForDifficulty(difficulty string, log zerolog.Logger) (*RuleStrategy, error) {
	switch difficulty {
	case "easy", "random":
		return NewRuleStrategy("random", randomRules(), log)
	case "", "medium":
		return NewRuleStrategy("medium", DefaultRules(), log)
	case "hard":
		return NewRuleStrategy("hard", aggressiveRules(), log)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDifficulty, difficulty)
}

// Command sim plays a game between computer factions only and prints a JSON
// summary. It is used to tune rules and bot strategies without a server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/chiron/internal/bot"
	"github.com/freeeve/chiron/internal/repository/sqlite"
	"github.com/freeeve/chiron/internal/ruleset"
	"github.com/freeeve/chiron/pkg/chiron"
)

// stepLimit bounds the sequencer work in one round so a stuck game cannot
// spin forever.
const stepLimit = 100000

type options struct {
	Turns      int
	Seed       int64
	Difficulty string
	AIFactions int
	Width      int
	Height     int
	RulesPath  string
}

// factionSummary is one faction's standing at the end of the run.
type factionSummary struct {
	Name       string `json:"name"`
	Bases      int    `json:"bases"`
	Units      int    `json:"units"`
	Population int    `json:"population"`
	Credits    int    `json:"credits"`
	Techs      int    `json:"techs"`
	Eliminated bool   `json:"eliminated,omitempty"`
}

type summary struct {
	Seed       int64            `json:"seed"`
	Difficulty string           `json:"difficulty"`
	Turn       int              `json:"turn"`
	Winner     string           `json:"winner,omitempty"`
	Factions   []factionSummary `json:"factions"`
	Elapsed    string           `json:"elapsed"`
}

func main() {
	var (
		opts     options
		savePath string
		debug    bool
	)
	def := chiron.DefaultScenario()
	flag.IntVar(&opts.Turns, "turns", 50, "number of turns to play")
	flag.Int64Var(&opts.Seed, "seed", 0, "random seed (0 = time based)")
	flag.StringVar(&opts.Difficulty, "difficulty", "medium", "bot difficulty (easy, medium, hard)")
	flag.IntVar(&opts.AIFactions, "factions", 4, "number of computer factions")
	flag.IntVar(&opts.Width, "width", def.Width, "map width")
	flag.IntVar(&opts.Height, "height", def.Height, "map height")
	flag.StringVar(&opts.RulesPath, "rules", "", "ruleset YAML (default built-in rules)")
	flag.StringVar(&savePath, "save", "", "sqlite file to store the final state in")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	sum, st, err := run(opts, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Simulation failed")
	}

	if savePath != "" {
		if err := save(savePath, sum, st); err != nil {
			log.Fatal().Err(err).Str("path", savePath).Msg("Save failed")
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		log.Fatal().Err(err).Msg("Encode summary")
	}
}

// run plays opts.Turns rounds or until one faction is left.
func run(opts options, logger zerolog.Logger) (*summary, *chiron.State, error) {
	start := time.Now()
	rules := chiron.DefaultRuleset()
	if opts.RulesPath != "" {
		r, err := ruleset.Load(opts.RulesPath)
		if err != nil {
			return nil, nil, err
		}
		rules = r
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	cfg := chiron.DefaultScenario()
	cfg.Human = false
	cfg.AIFactions = opts.AIFactions
	cfg.Width, cfg.Height = opts.Width, opts.Height
	st, err := chiron.NewScenario(cfg, rng)
	if err != nil {
		return nil, nil, fmt.Errorf("new scenario: %w", err)
	}

	strategy, err := bot.StrategyForDifficulty(opts.Difficulty, logger)
	if err != nil {
		return nil, nil, err
	}
	sim := chiron.NewSim(st, rng,
		chiron.WithLogger(logger),
		chiron.WithDecider(strategy),
		chiron.WithRules(rules),
	)

	for sim.State.Turn < opts.Turns {
		if winner(sim.State) != "" {
			break
		}
		if err := sim.EndTurn(); err != nil {
			return nil, nil, fmt.Errorf("turn %d: %w", sim.State.Turn, err)
		}
		if !sim.RunToPlayerTurn(rules.Tuning.RoundDelay, stepLimit) {
			return nil, nil, fmt.Errorf("turn %d did not finish in %d steps", sim.State.Turn, stepLimit)
		}
		logger.Debug().Int("turn", sim.State.Turn).Int("units", len(sim.State.Units)).Msg("Round complete")
	}
	if err := sim.State.Validate(); err != nil {
		return nil, nil, fmt.Errorf("final state invalid: %w", err)
	}

	sum := &summary{
		Seed:       opts.Seed,
		Difficulty: strategy.Name(),
		Turn:       sim.State.Turn,
		Winner:     winner(sim.State),
		Elapsed:    time.Since(start).Round(time.Millisecond).String(),
	}
	for i := range sim.State.Factions {
		f := &sim.State.Factions[i]
		fs := factionSummary{
			Name:       f.Name,
			Units:      len(sim.State.UnitsOf(f.ID)),
			Credits:    f.Credits,
			Techs:      len(f.Techs),
			Eliminated: f.Eliminated,
		}
		for _, b := range sim.State.BasesOf(f.ID) {
			fs.Bases++
			fs.Population += b.Population
		}
		sum.Factions = append(sum.Factions, fs)
	}
	return sum, sim.State, nil
}

// winner names the only faction still standing, natives aside.
func winner(st *chiron.State) string {
	name, alive := "", 0
	for _, f := range st.Factions {
		if f.ID != chiron.Natives && !f.Eliminated {
			name = f.Name
			alive++
		}
	}
	if alive == 1 {
		return name
	}
	return ""
}

func save(path string, sum *summary, st *chiron.State) error {
	store, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	data, err := chiron.Snapshot(st)
	if err != nil {
		return err
	}
	gameID := fmt.Sprintf("sim-%d", sum.Seed)
	slot, err := store.Save(context.Background(), gameID, fmt.Sprintf("Turn %d", st.Turn), st.Turn, data)
	if err != nil {
		return err
	}
	log.Info().Str("saveId", slot.ID).Str("gameId", gameID).Int("turn", st.Turn).Msg("State saved")
	return nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/chiron/internal/bot"
	"github.com/freeeve/chiron/internal/logger"
	"github.com/freeeve/chiron/internal/metrics"
	"github.com/freeeve/chiron/internal/model"
	"github.com/freeeve/chiron/internal/repository"
	"github.com/freeeve/chiron/internal/ruleset"
	"github.com/freeeve/chiron/pkg/chiron"
)

var (
	ErrGameNotFound       = errors.New("game not found")
	ErrNotYourGame        = errors.New("not your game")
	ErrGameNotActive      = errors.New("game is not active")
	ErrUnitNotFound       = errors.New("unit not found")
	ErrNotYourUnit        = errors.New("unit belongs to another faction")
	ErrUnknownImprovement = errors.New("unknown improvement")
	ErrUnknownProbeAction = errors.New("unknown probe action")
	ErrUnknownDecision    = errors.New("unknown decision")
	ErrSavesDisabled      = errors.New("save slots are not configured")
	ErrSaveNotFound       = errors.New("save not found")
)

// Settings shape newly created games.
type Settings struct {
	MapWidth   int
	MapHeight  int
	AIFactions int
}

// GameView is a point-in-time copy of a game for clients.
type GameView struct {
	Game  model.Game    `json:"game"`
	State *chiron.State `json:"state"`
	Event *chiron.Event `json:"event,omitempty"`
}

// liveGame is a loaded game. mu guards every field.
type liveGame struct {
	mu     sync.Mutex
	game   model.Game
	sim    *chiron.Sim
	seen   int                  // events already broadcast this turn
	battle *chiron.BattleRecord // battle being played back, if any
}

// GameService owns the loaded games and serializes every change to each one.
type GameService struct {
	gameRepo    repository.GameRepository
	turnRepo    repository.TurnRepository
	cache       repository.GameCache
	saves       repository.SaveStore
	broadcaster Broadcaster
	metrics     *metrics.Recorder
	rules       *chiron.Ruleset
	settings    Settings
	seed        func() int64
	games       sync.Map // gameID -> *liveGame
}

// NewGameService creates a GameService.
func NewGameService(gameRepo repository.GameRepository, turnRepo repository.TurnRepository, cache repository.GameCache, broadcaster Broadcaster, settings Settings) *GameService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &GameService{
		gameRepo:    gameRepo,
		turnRepo:    turnRepo,
		cache:       cache,
		broadcaster: broadcaster,
		rules:       chiron.DefaultRuleset(),
		settings:    settings,
		seed:        rand.Int63,
	}
}

// SetSaveStore enables named save slots.
func (s *GameService) SetSaveStore(saves repository.SaveStore) { s.saves = saves }

// SetMetrics attaches a metrics recorder.
func (s *GameService) SetMetrics(m *metrics.Recorder) { s.metrics = m }

// SetRules replaces the ruleset used by games loaded from now on.
func (s *GameService) SetRules(r *chiron.Ruleset) {
	if r != nil {
		s.rules = r
	}
}

// CreateGame generates a new scenario for creatorID and starts it.
func (s *GameService) CreateGame(ctx context.Context, name, creatorID, difficulty string) (*GameView, error) {
	if difficulty == "" {
		difficulty = "medium"
	}
	if _, err := bot.StrategyForDifficulty(difficulty, log.Logger); err != nil {
		return nil, err
	}
	seed := s.seed()
	game, err := s.gameRepo.Create(ctx, name, creatorID, difficulty, seed)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}

	cfg := chiron.DefaultScenario()
	if s.settings.MapWidth > 0 {
		cfg.Width = s.settings.MapWidth
	}
	if s.settings.MapHeight > 0 {
		cfg.Height = s.settings.MapHeight
	}
	if s.settings.AIFactions > 0 {
		cfg.AIFactions = s.settings.AIFactions
	}
	st, err := chiron.NewScenario(cfg, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, fmt.Errorf("generate scenario: %w", err)
	}
	sim, err := s.newSim(game, st)
	if err != nil {
		return nil, err
	}
	lg := &liveGame{game: *game, sim: sim, seen: len(st.Events)}
	s.games.Store(game.ID, lg)

	snap, err := chiron.Snapshot(st)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if _, err := s.turnRepo.CreateTurn(ctx, game.ID, st.Turn, snap, nil); err != nil {
		return nil, fmt.Errorf("record turn: %w", err)
	}
	if err := s.cache.SetGameState(ctx, game.ID, snap); err != nil {
		return nil, fmt.Errorf("cache state: %w", err)
	}
	if err := s.cache.MarkActive(ctx, game.ID); err != nil {
		return nil, fmt.Errorf("mark active: %w", err)
	}

	gameLog := logger.ForGame(ctx, game.ID)
	gameLog.Info().
		Str("creator", creatorID).
		Str("difficulty", difficulty).
		Int64("seed", seed).
		Int("factions", len(st.Factions)).
		Msg("Game created")
	return lg.view(), nil
}

// newSim wraps st with the game's decider. The random source is derived
// from the game seed and the turn so a reloaded game stays reproducible.
func (s *GameService) newSim(game *model.Game, st *chiron.State) (*chiron.Sim, error) {
	engineLog := logger.ForEngine(game.ID)
	strategy, err := bot.StrategyForDifficulty(game.BotDifficulty, engineLog)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(game.Seed + int64(st.Turn)))
	return chiron.NewSim(st, rng,
		chiron.WithLogger(engineLog),
		chiron.WithDecider(strategy),
		chiron.WithRules(s.rules),
	), nil
}

// load returns a loaded game, restoring it from the cache or the latest
// turn row when it is not in memory.
func (s *GameService) load(ctx context.Context, gameID string) (*liveGame, error) {
	if v, ok := s.games.Load(gameID); ok {
		return v.(*liveGame), nil
	}
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	if game == nil {
		return nil, ErrGameNotFound
	}

	data, err := s.cache.GetGameState(ctx, gameID)
	if err != nil {
		return nil, err
	}
	source := "cache"
	if data == nil {
		rec, err := s.turnRepo.LatestTurn(ctx, gameID)
		if err != nil {
			return nil, fmt.Errorf("latest turn: %w", err)
		}
		if rec == nil {
			return nil, fmt.Errorf("game %s has no stored state", gameID)
		}
		data, source = rec.State, "turn"
	}
	st, err := chiron.Restore(data)
	if err != nil {
		return nil, fmt.Errorf("restore game %s: %w", gameID, err)
	}
	sim, err := s.newSim(game, st)
	if err != nil {
		return nil, err
	}
	lg := &liveGame{game: *game, sim: sim, seen: len(st.Events)}
	if st.Battle != nil {
		rec := st.Battle.Record
		lg.battle = &rec
	}
	actual, loaded := s.games.LoadOrStore(gameID, lg)
	if !loaded {
		gameLog := logger.ForGame(ctx, gameID)
		gameLog.Info().
			Str("source", source).
			Int("turn", st.Turn).
			Str("phase", string(st.Phase)).
			Msg("Game loaded")
	}
	return actual.(*liveGame), nil
}

// RecoverActiveGames loads every active game so the runner resumes them
// after a restart.
func (s *GameService) RecoverActiveGames(ctx context.Context) {
	ids := map[string]bool{}
	if cached, err := s.cache.ActiveGames(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to list cached active games")
	} else {
		for _, id := range cached {
			ids[id] = true
		}
	}
	games, err := s.gameRepo.ListActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list active games")
	}
	for _, g := range games {
		ids[g.ID] = true
	}

	recovered := 0
	for id := range ids {
		lg, err := s.load(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("gameId", id).Msg("Failed to recover game")
			continue
		}
		if lg.game.Status != model.StatusActive {
			s.games.Delete(id)
			continue
		}
		if err := s.cache.MarkActive(ctx, id); err != nil {
			log.Warn().Err(err).Str("gameId", id).Msg("Failed to mark game active")
		}
		recovered++
	}
	log.Info().Int("recovered", recovered).Msg("Active game recovery complete")
}

// Get returns a copy of a game the user created.
func (s *GameService) Get(ctx context.Context, gameID, userID string) (*GameView, error) {
	lg, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lg.game.CreatorID != userID {
		return nil, ErrNotYourGame
	}
	return lg.view(), nil
}

// ListGames returns the games a user created.
func (s *GameService) ListGames(ctx context.Context, userID string) ([]model.Game, error) {
	return s.gameRepo.ListByUser(ctx, userID)
}

// DeleteGame removes a game and its cached state.
func (s *GameService) DeleteGame(ctx context.Context, gameID, userID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return fmt.Errorf("find game: %w", err)
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.CreatorID != userID {
		return ErrNotYourGame
	}
	s.games.Delete(gameID)
	if err := s.cache.DeleteGameData(ctx, gameID); err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Msg("Failed to delete cached game data")
	}
	return s.gameRepo.Delete(ctx, gameID)
}

// LoadedGames returns the ids of loaded active games in a stable order.
func (s *GameService) LoadedGames() []string {
	var ids []string
	s.games.Range(func(k, v any) bool {
		lg := v.(*liveGame)
		lg.mu.Lock()
		active := lg.game.Status == model.StatusActive
		lg.mu.Unlock()
		if active {
			ids = append(ids, k.(string))
		}
		return true
	})
	sort.Strings(ids)
	return ids
}

// ActiveCount returns the number of loaded active games.
func (s *GameService) ActiveCount() int {
	return len(s.LoadedGames())
}

// --- Player actions ---

// act runs fn against a game the user created. When turn is set the game
// must be in the player's turn. Accepted changes are persisted and
// broadcast.
func (s *GameService) act(ctx context.Context, gameID, userID, action string, turn bool, fn func(lg *liveGame) error) error {
	lg, err := s.load(ctx, gameID)
	if err != nil {
		return err
	}
	lg.mu.Lock()
	defer lg.mu.Unlock()

	if lg.game.CreatorID != userID {
		return ErrNotYourGame
	}
	if lg.game.Status != model.StatusActive {
		return ErrGameNotActive
	}
	if turn && lg.sim.State.Phase != chiron.PhasePlayerTurn {
		return chiron.ErrWrongPhase
	}
	before := lg.mark()
	if err := fn(lg); err != nil {
		s.metrics.Rejected(ctx, action)
		gameLog := logger.ForGame(ctx, gameID)
		gameLog.Debug().Err(err).Str("action", action).Msg("Action rejected")
		return err
	}
	s.metrics.Move(ctx, action)
	if err := s.afterChange(ctx, lg, before); err != nil {
		gameLog := logger.ForGame(ctx, gameID)
		gameLog.Error().Err(err).Str("action", action).Msg("Failed to persist action")
	}
	return nil
}

// ownUnit returns a unit of the human faction.
func ownUnit(lg *liveGame, id chiron.UnitID) (*chiron.Unit, error) {
	st := lg.sim.State
	u := st.Unit(id)
	if u == nil {
		return nil, ErrUnitNotFound
	}
	if u.Faction != st.HumanFaction {
		return nil, ErrNotYourUnit
	}
	return u, nil
}

// Move steps a unit onto an adjacent tile, attacking if it is occupied.
func (s *GameService) Move(ctx context.Context, gameID, userID string, unitID chiron.UnitID, x, y int) (chiron.Outcome, error) {
	var out chiron.Outcome
	err := s.act(ctx, gameID, userID, "move", true, func(lg *liveGame) error {
		if _, err := ownUnit(lg, unitID); err != nil {
			return err
		}
		var err error
		out, err = lg.sim.TryMove(unitID, x, y)
		return err
	})
	return out, err
}

// Hold skips a unit for the rest of the turn.
func (s *GameService) Hold(ctx context.Context, gameID, userID string, unitID chiron.UnitID) error {
	return s.act(ctx, gameID, userID, "hold", true, func(lg *liveGame) error {
		if _, err := ownUnit(lg, unitID); err != nil {
			return err
		}
		return lg.sim.Hold(unitID)
	})
}

// Bombard fires an artillery unit at a tile.
func (s *GameService) Bombard(ctx context.Context, gameID, userID string, unitID chiron.UnitID, x, y int) (chiron.BombardResult, error) {
	var res chiron.BombardResult
	err := s.act(ctx, gameID, userID, "bombard", true, func(lg *liveGame) error {
		if _, err := ownUnit(lg, unitID); err != nil {
			return err
		}
		var err error
		res, err = lg.sim.Bombard(unitID, x, y)
		return err
	})
	return res, err
}

// Probe runs a probe-team action against an adjacent base.
func (s *GameService) Probe(ctx context.Context, gameID, userID string, unitID chiron.UnitID, x, y int, action string) (chiron.ProbeResult, error) {
	var res chiron.ProbeResult
	pa := chiron.ProbeAction(action)
	switch pa {
	case chiron.ProbeStealTech, chiron.ProbeSabotage, chiron.ProbeSeizeBase:
	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownProbeAction, action)
	}
	err := s.act(ctx, gameID, userID, "probe", true, func(lg *liveGame) error {
		if _, err := ownUnit(lg, unitID); err != nil {
			return err
		}
		var err error
		res, err = lg.sim.Probe(unitID, x, y, pa)
		return err
	})
	return res, err
}

// Airdrop drops a unit onto a tile within range of its base.
func (s *GameService) Airdrop(ctx context.Context, gameID, userID string, unitID chiron.UnitID, x, y int) error {
	return s.act(ctx, gameID, userID, "airdrop", true, func(lg *liveGame) error {
		if _, err := ownUnit(lg, unitID); err != nil {
			return err
		}
		return lg.sim.Airdrop(unitID, x, y)
	})
}

// FoundBase turns a colonizer into a new base.
func (s *GameService) FoundBase(ctx context.Context, gameID, userID string, unitID chiron.UnitID, name string) (chiron.Base, error) {
	var base chiron.Base
	err := s.act(ctx, gameID, userID, "found", true, func(lg *liveGame) error {
		if _, err := ownUnit(lg, unitID); err != nil {
			return err
		}
		b, err := lg.sim.FoundBase(unitID, name)
		if err != nil {
			return err
		}
		base = *b
		return nil
	})
	return base, err
}

// Terraform starts a work order. improvement is a rules-file name such as
// "road" or "mine".
func (s *GameService) Terraform(ctx context.Context, gameID, userID string, unitID chiron.UnitID, improvement string) error {
	imp, err := ruleset.Improvement(improvement)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownImprovement, improvement)
	}
	return s.act(ctx, gameID, userID, "terraform", true, func(lg *liveGame) error {
		if _, err := ownUnit(lg, unitID); err != nil {
			return err
		}
		return lg.sim.StartTerraform(unitID, imp)
	})
}

// EndTurn hands control to the computer factions.
func (s *GameService) EndTurn(ctx context.Context, gameID, userID string) error {
	return s.act(ctx, gameID, userID, "end_turn", true, func(lg *liveGame) error {
		return lg.sim.EndTurn()
	})
}

// ClearDecision dismisses a pending-decision flag. It is accepted in any
// phase since computer factions raise surprise attacks during their turn.
func (s *GameService) ClearDecision(ctx context.Context, gameID, userID, kind string) error {
	dk := chiron.DecisionKind(kind)
	switch dk {
	case chiron.DecisionTreatyBreak, chiron.DecisionSurpriseAttack, chiron.DecisionMoveOverflow, chiron.DecisionNewContact:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDecision, kind)
	}
	return s.act(ctx, gameID, userID, "clear_decision", false, func(lg *liveGame) error {
		lg.sim.ClearDecision(dk)
		return nil
	})
}

// ConfirmTreatyBreak carries out the attack waiting on a treaty-break
// confirmation.
func (s *GameService) ConfirmTreatyBreak(ctx context.Context, gameID, userID string) (chiron.Outcome, error) {
	var out chiron.Outcome
	err := s.act(ctx, gameID, userID, "treaty_break", true, func(lg *liveGame) error {
		var err error
		out, err = lg.sim.ConfirmTreatyBreak()
		return err
	})
	return out, err
}

// --- Save slots ---

// Save stores the current state under a named slot.
func (s *GameService) Save(ctx context.Context, gameID, userID, name string) (*model.SaveSlot, error) {
	if s.saves == nil {
		return nil, ErrSavesDisabled
	}
	lg, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lg.game.CreatorID != userID {
		return nil, ErrNotYourGame
	}
	snap, err := chiron.Snapshot(lg.sim.State)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if name == "" {
		name = fmt.Sprintf("Turn %d", lg.sim.State.Turn)
	}
	slot, err := s.saves.Save(ctx, gameID, name, lg.sim.State.Turn, snap)
	if err != nil {
		return nil, err
	}
	gameLog := logger.ForGame(ctx, gameID)
	gameLog.Info().Str("save", slot.ID).Int("turn", slot.Turn).Msg("Game saved")
	return slot, nil
}

// ListSaves returns the save slots of a game.
func (s *GameService) ListSaves(ctx context.Context, gameID, userID string) ([]model.SaveSlot, error) {
	if s.saves == nil {
		return nil, ErrSavesDisabled
	}
	if _, err := s.Get(ctx, gameID, userID); err != nil {
		return nil, err
	}
	return s.saves.ListByGame(ctx, gameID)
}

// LoadSave replaces the running state with a saved one.
func (s *GameService) LoadSave(ctx context.Context, gameID, userID, saveID string) (*GameView, error) {
	if s.saves == nil {
		return nil, ErrSavesDisabled
	}
	slot, err := s.saves.Get(ctx, saveID)
	if err != nil {
		return nil, err
	}
	if slot == nil || slot.GameID != gameID {
		return nil, ErrSaveNotFound
	}
	st, err := chiron.Restore(slot.State)
	if err != nil {
		return nil, fmt.Errorf("restore save %s: %w", saveID, err)
	}

	lg, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lg.game.CreatorID != userID {
		return nil, ErrNotYourGame
	}
	if lg.game.Status != model.StatusActive {
		return nil, ErrGameNotActive
	}
	sim, err := s.newSim(&lg.game, st)
	if err != nil {
		return nil, err
	}
	lg.sim = sim
	lg.seen = len(st.Events)
	lg.battle = nil
	if st.Battle != nil {
		rec := st.Battle.Record
		lg.battle = &rec
	}
	if err := s.persist(ctx, lg); err != nil {
		return nil, err
	}
	if err := s.gameRepo.UpdateProgress(ctx, gameID, st.Turn, string(st.Phase)); err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}
	lg.game.Turn, lg.game.Phase = st.Turn, string(st.Phase)
	s.emit(ctx, gameID, EventGameLoaded, map[string]any{"save": slot.ID, "turn": st.Turn})
	gameLog := logger.ForGame(ctx, gameID)
	gameLog.Info().Str("save", slot.ID).Int("turn", st.Turn).Msg("Save loaded")
	return lg.view(), nil
}

// --- Ticking ---

// Advance drives one tick of a game: battle playback by dt seconds, then
// one sequencer step outside the player's turn. During the player's turn it
// ends the turn once nothing is left to do.
func (s *GameService) Advance(ctx context.Context, gameID string, dt float64) error {
	lg, err := s.load(ctx, gameID)
	if err != nil {
		return err
	}
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lg.game.Status != model.StatusActive {
		return nil
	}

	sim := lg.sim
	before := lg.mark()
	changed := false
	if sim.State.Battle != nil {
		sim.Update(dt)
		changed = true
	}
	if sim.State.Battle == nil {
		if sim.State.Phase != chiron.PhasePlayerTurn {
			sim.Step()
			changed = true
		} else if sim.MaybeAutoEndTurn() {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.afterChange(ctx, lg, before)
}

// checkpoint records what afterChange compares against.
type checkpoint struct {
	turn   int
	events []chiron.Event
}

func (lg *liveGame) mark() checkpoint {
	return checkpoint{turn: lg.sim.State.Turn, events: lg.sim.State.Events}
}

// afterChange broadcasts what changed since before, records a new turn,
// checks for the end of the game and caches the snapshot.
func (s *GameService) afterChange(ctx context.Context, lg *liveGame, before checkpoint) error {
	st := lg.sim.State
	id := lg.game.ID

	switch {
	case lg.battle == nil && st.Battle != nil:
		rec := st.Battle.Record
		lg.battle = &rec
		s.emit(ctx, id, EventBattleStarted, rec)
	case lg.battle != nil && st.Battle == nil:
		s.metrics.Battle(ctx, string(lg.battle.Victor))
		s.emit(ctx, id, EventBattleFinished, lg.battle)
		lg.battle = nil
	}

	if st.Turn != before.turn || lg.seen > len(st.Events) {
		lg.seen = 0
	}
	for _, e := range st.Events[lg.seen:] {
		switch e.Kind {
		case chiron.EventBaseCaptured:
			s.metrics.BaseLost(ctx, "captured")
		case chiron.EventBaseDestroyed:
			s.metrics.BaseLost(ctx, "destroyed")
		}
		s.emit(ctx, id, EventEngine, e)
	}
	lg.seen = len(st.Events)

	if err := s.persist(ctx, lg); err != nil {
		return err
	}

	if st.Turn != before.turn {
		if err := s.recordTurn(ctx, lg, before.events); err != nil {
			return err
		}
	}
	if st.Phase == chiron.PhaseUpkeep && lg.game.Phase != string(chiron.PhaseUpkeep) {
		s.emit(ctx, id, EventUpkeep, map[string]any{"turn": st.Turn, "events": len(st.Events)})
	}
	lg.game.Phase = string(st.Phase)
	return s.checkFinished(ctx, lg)
}

// recordTurn stores the state at the start of a new turn along with the
// events of the turn that ended.
func (s *GameService) recordTurn(ctx context.Context, lg *liveGame, events []chiron.Event) error {
	st := lg.sim.State
	snap, err := chiron.Snapshot(st)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	var evJSON json.RawMessage
	if len(events) > 0 {
		if evJSON, err = json.Marshal(events); err != nil {
			return fmt.Errorf("encode events: %w", err)
		}
	}
	if _, err := s.turnRepo.CreateTurn(ctx, lg.game.ID, st.Turn, snap, evJSON); err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	if err := s.gameRepo.UpdateProgress(ctx, lg.game.ID, st.Turn, string(st.Phase)); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	lg.game.Turn = st.Turn
	s.metrics.Turn(ctx)
	s.emit(ctx, lg.game.ID, EventTurnStarted, map[string]any{"turn": st.Turn})
	gameLog := logger.ForGame(ctx, lg.game.ID)
	gameLog.Info().Int("turn", st.Turn).Int("events", len(events)).Msg("Turn started")
	return nil
}

// checkFinished ends the game when one faction is left or the human
// faction has been eliminated.
func (s *GameService) checkFinished(ctx context.Context, lg *liveGame) error {
	st := lg.sim.State
	var alive []*chiron.Faction
	for i := range st.Factions {
		f := &st.Factions[i]
		if f.ID != chiron.Natives && !f.Eliminated {
			alive = append(alive, f)
		}
	}
	winner := ""
	switch {
	case len(alive) == 1:
		winner = alive[0].Name
	case st.HumanFaction != chiron.NoHuman && st.Faction(st.HumanFaction).Eliminated:
	default:
		return nil
	}

	if err := s.gameRepo.SetFinished(ctx, lg.game.ID, winner); err != nil {
		return fmt.Errorf("finish game: %w", err)
	}
	lg.game.Status = model.StatusFinished
	lg.game.Winner = winner
	if err := s.cache.UnmarkActive(ctx, lg.game.ID); err != nil {
		log.Warn().Err(err).Str("gameId", lg.game.ID).Msg("Failed to unmark finished game")
	}
	s.emit(ctx, lg.game.ID, EventGameFinished, map[string]any{"winner": winner, "turn": st.Turn})
	gameLog := logger.ForGame(ctx, lg.game.ID)
	gameLog.Info().Str("winner", winner).Int("turn", st.Turn).Msg("Game finished")
	return nil
}

// persist caches the current snapshot.
func (s *GameService) persist(ctx context.Context, lg *liveGame) error {
	snap, err := chiron.Snapshot(lg.sim.State)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := s.cache.SetGameState(ctx, lg.game.ID, snap); err != nil {
		return fmt.Errorf("cache state: %w", err)
	}
	return nil
}

// emit sends an event to local clients and publishes it on the game's
// channel.
func (s *GameService) emit(ctx context.Context, gameID, eventType string, data any) {
	s.broadcaster.BroadcastGameEvent(gameID, eventType, data)
	msg, err := json.Marshal(map[string]any{"type": eventType, "game_id": gameID, "data": data})
	if err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("Failed to encode event")
		return
	}
	if err := s.cache.PublishEvent(ctx, gameID, msg); err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Str("type", eventType).Msg("Failed to publish event")
	}
}

func (lg *liveGame) view() *GameView {
	v := &GameView{Game: lg.game, State: lg.sim.State.Clone()}
	v.Game.Turn = lg.sim.State.Turn
	v.Game.Phase = string(lg.sim.State.Phase)
	if e := lg.sim.CurrentEvent(); e != nil {
		ev := *e
		v.Event = &ev
	}
	return v
}

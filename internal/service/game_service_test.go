package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/freeeve/chiron/internal/bot"
	"github.com/freeeve/chiron/internal/model"
	"github.com/freeeve/chiron/internal/repository/sqlite"
	"github.com/freeeve/chiron/pkg/chiron"
)

type fixture struct {
	svc   *GameService
	games *mockGameRepo
	turns *mockTurnRepo
	cache *mockCache
	bc    *recordingBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		games: newMockGameRepo(),
		turns: newMockTurnRepo(),
		cache: newMockCache(),
		bc:    &recordingBroadcaster{},
	}
	f.svc = f.newService()
	return f
}

// newService returns a fresh service over the fixture's stores, as after a
// restart.
func (f *fixture) newService() *GameService {
	svc := NewGameService(f.games, f.turns, f.cache, f.bc, Settings{AIFactions: 2})
	svc.seed = func() int64 { return 42 }
	return svc
}

func (f *fixture) create(t *testing.T) *GameView {
	t.Helper()
	v, err := f.svc.CreateGame(context.Background(), "Test Game", "user-1", "")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	return v
}

func (f *fixture) live(t *testing.T, id string) *liveGame {
	t.Helper()
	lg, err := f.svc.load(context.Background(), id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return lg
}

// runToTurn ticks the game until it reaches turn in the player's phase.
func (f *fixture) runToTurn(t *testing.T, id string, turn int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 100000; i++ {
		st := f.live(t, id).sim.State
		if st.Turn >= turn && st.Phase == chiron.PhasePlayerTurn && st.Battle == nil {
			return
		}
		if err := f.svc.Advance(ctx, id, 1.0); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	t.Fatalf("game did not reach turn %d", turn)
}

func humanUnit(t *testing.T, v *GameView, role chiron.Role) *chiron.Unit {
	t.Helper()
	for _, u := range v.State.UnitsOf(v.State.HumanFaction) {
		if u.Role == role {
			return u
		}
	}
	t.Fatalf("no human %s unit", role)
	return nil
}

func TestCreateGame(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)

	if v.Game.Status != model.StatusActive {
		t.Errorf("status = %s", v.Game.Status)
	}
	if v.Game.BotDifficulty != "medium" {
		t.Errorf("difficulty = %s, want medium", v.Game.BotDifficulty)
	}
	if v.Game.Seed != 42 {
		t.Errorf("seed = %d", v.Game.Seed)
	}
	if v.State.Turn != 1 || v.State.Phase != chiron.PhasePlayerTurn {
		t.Errorf("turn %d phase %s", v.State.Turn, v.State.Phase)
	}
	// Natives, the human and two computer factions.
	if len(v.State.Factions) != 4 {
		t.Errorf("expected 4 factions, got %d", len(v.State.Factions))
	}
	if err := v.State.Validate(); err != nil {
		t.Errorf("invalid state: %v", err)
	}
	if f.cache.states[v.Game.ID] == nil {
		t.Error("state not cached")
	}
	if !f.cache.active[v.Game.ID] {
		t.Error("game not marked active")
	}
	if len(f.turns.turns[v.Game.ID]) != 1 {
		t.Error("expected a turn row for turn 1")
	}
}

func TestCreateGameUnknownDifficulty(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateGame(context.Background(), "Test", "user-1", "godlike")
	if !errors.Is(err, bot.ErrUnknownDifficulty) {
		t.Fatalf("expected ErrUnknownDifficulty, got %v", err)
	}
	if len(f.games.games) != 0 {
		t.Error("no game should be created")
	}
}

func TestGetChecksCreator(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, v.Game.ID, "user-2"); !errors.Is(err, ErrNotYourGame) {
		t.Errorf("expected ErrNotYourGame, got %v", err)
	}
	if _, err := f.svc.Get(ctx, "missing", "user-1"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("expected ErrGameNotFound, got %v", err)
	}
	got, err := f.svc.Get(ctx, v.Game.ID, "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.State.Turn = 99
	if f.live(t, v.Game.ID).sim.State.Turn != 1 {
		t.Error("view must not alias the live state")
	}
}

func TestActionOwnership(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	ctx := context.Background()
	scout := humanUnit(t, v, chiron.Combatant)

	if err := f.svc.Hold(ctx, v.Game.ID, "user-2", scout.ID); !errors.Is(err, ErrNotYourGame) {
		t.Errorf("expected ErrNotYourGame, got %v", err)
	}
	if err := f.svc.Hold(ctx, v.Game.ID, "user-1", 9999); !errors.Is(err, ErrUnitNotFound) {
		t.Errorf("expected ErrUnitNotFound, got %v", err)
	}
	var foreign chiron.UnitID
	for _, u := range v.State.Units {
		if u.Faction != v.State.HumanFaction {
			foreign = u.ID
			break
		}
	}
	if err := f.svc.Hold(ctx, v.Game.ID, "user-1", foreign); !errors.Is(err, ErrNotYourUnit) {
		t.Errorf("expected ErrNotYourUnit, got %v", err)
	}
	if err := f.svc.Hold(ctx, v.Game.ID, "user-1", scout.ID); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if !f.live(t, v.Game.ID).sim.State.Unit(scout.ID).Held {
		t.Error("scout should be held")
	}
}

func TestMoveRejectionLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	scout := humanUnit(t, v, chiron.Combatant)

	_, err := f.svc.Move(context.Background(), v.Game.ID, "user-1", scout.ID, scout.X+3, scout.Y)
	var me *chiron.MoveError
	if !errors.As(err, &me) {
		t.Fatalf("expected MoveError, got %v", err)
	}
	u := f.live(t, v.Game.ID).sim.State.Unit(scout.ID)
	if u.X != scout.X || u.Y != scout.Y || u.MovesLeft != scout.MovesLeft {
		t.Error("rejected move changed the unit")
	}
}

func TestValidationErrors(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	ctx := context.Background()
	former := humanUnit(t, v, chiron.Worker)

	if err := f.svc.Terraform(ctx, v.Game.ID, "user-1", former.ID, "moat"); !errors.Is(err, ErrUnknownImprovement) {
		t.Errorf("expected ErrUnknownImprovement, got %v", err)
	}
	if _, err := f.svc.Probe(ctx, v.Game.ID, "user-1", former.ID, 0, 0, "bribe"); !errors.Is(err, ErrUnknownProbeAction) {
		t.Errorf("expected ErrUnknownProbeAction, got %v", err)
	}
	if err := f.svc.ClearDecision(ctx, v.Game.ID, "user-1", "regret"); !errors.Is(err, ErrUnknownDecision) {
		t.Errorf("expected ErrUnknownDecision, got %v", err)
	}
	if err := f.svc.ClearDecision(ctx, v.Game.ID, "user-1", string(chiron.DecisionNewContact)); err != nil {
		t.Errorf("ClearDecision: %v", err)
	}
}

func TestTerraformStartsWork(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	former := humanUnit(t, v, chiron.Worker)

	if err := f.svc.Terraform(context.Background(), v.Game.ID, "user-1", former.ID, "road"); err != nil {
		t.Fatalf("Terraform: %v", err)
	}
	u := f.live(t, v.Game.ID).sim.State.Unit(former.ID)
	if u.Work == nil || u.Work.Kind != chiron.Road {
		t.Errorf("work = %+v", u.Work)
	}
}

func TestEndTurnRunsComputerFactions(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	ctx := context.Background()
	id := v.Game.ID

	if err := f.svc.EndTurn(ctx, id, "user-1"); err != nil {
		t.Fatalf("EndTurn: %v", err)
	}
	scout := humanUnit(t, v, chiron.Combatant)
	if err := f.svc.Hold(ctx, id, "user-1", scout.ID); !errors.Is(err, chiron.ErrWrongPhase) {
		t.Errorf("expected ErrWrongPhase during computer turn, got %v", err)
	}

	f.runToTurn(t, id, 2)

	lg := f.live(t, id)
	if err := lg.sim.State.Validate(); err != nil {
		t.Fatalf("invalid state: %v", err)
	}
	if f.games.games[id].Turn != 2 {
		t.Errorf("game progress turn = %d", f.games.games[id].Turn)
	}
	rec, _ := f.turns.LatestTurn(ctx, id)
	if rec == nil || rec.Turn != 2 {
		t.Fatalf("expected turn row for turn 2, got %+v", rec)
	}
	if f.bc.count(EventTurnStarted) != 1 {
		t.Errorf("turn_started broadcast %d times", f.bc.count(EventTurnStarted))
	}
	if len(f.cache.published[id]) == 0 {
		t.Error("no events published")
	}
}

func TestAdvanceAutoEndsTurn(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	id := v.Game.ID

	lg := f.live(t, id)
	for _, u := range lg.sim.State.UnitsOf(lg.sim.State.HumanFaction) {
		u.MovesLeft = 0
	}
	if err := f.svc.Advance(context.Background(), id, 0.1); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if lg.sim.State.Phase != chiron.PhaseAIProcessing {
		t.Errorf("phase = %s, want ai_processing", lg.sim.State.Phase)
	}
}

func TestAdvanceWaitsForPlayer(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	id := v.Game.ID

	for i := 0; i < 5; i++ {
		if err := f.svc.Advance(context.Background(), id, 0.1); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	if st := f.live(t, id).sim.State; st.Phase != chiron.PhasePlayerTurn || st.Turn != 1 {
		t.Errorf("turn %d phase %s", st.Turn, st.Phase)
	}
}

func TestGameFinishesWhenOneFactionRemains(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	ctx := context.Background()
	id := v.Game.ID

	lg := f.live(t, id)
	st := lg.sim.State
	for i := range st.Factions {
		if fac := &st.Factions[i]; fac.ID != chiron.Natives && fac.ID != st.HumanFaction {
			fac.Eliminated = true
		}
	}
	if err := f.svc.EndTurn(ctx, id, "user-1"); err != nil {
		t.Fatalf("EndTurn: %v", err)
	}

	g := f.games.games[id]
	if g.Status != model.StatusFinished {
		t.Fatalf("status = %s", g.Status)
	}
	if g.Winner != st.Faction(st.HumanFaction).Name {
		t.Errorf("winner = %q", g.Winner)
	}
	if f.cache.active[id] {
		t.Error("finished game still active")
	}
	if f.bc.count(EventGameFinished) != 1 {
		t.Error("game_finished not broadcast")
	}
	if err := f.svc.EndTurn(ctx, id, "user-1"); !errors.Is(err, ErrGameNotActive) {
		t.Errorf("expected ErrGameNotActive, got %v", err)
	}
	if len(f.svc.LoadedGames()) != 0 {
		t.Error("finished game should not be ticked")
	}
}

func TestRecoverFromCache(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	ctx := context.Background()
	id := v.Game.ID

	if err := f.svc.EndTurn(ctx, id, "user-1"); err != nil {
		t.Fatalf("EndTurn: %v", err)
	}
	f.runToTurn(t, id, 2)

	restarted := f.newService()
	restarted.RecoverActiveGames(ctx)
	if got := restarted.LoadedGames(); len(got) != 1 || got[0] != id {
		t.Fatalf("recovered %v", got)
	}
	got, err := restarted.Get(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State.Turn != 2 {
		t.Errorf("recovered turn %d, want 2", got.State.Turn)
	}
}

func TestRecoverFromTurnRow(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	ctx := context.Background()
	id := v.Game.ID

	delete(f.cache.states, id)
	restarted := f.newService()
	got, err := restarted.Get(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State.Turn != 1 || len(got.State.Units) != len(v.State.Units) {
		t.Errorf("restored turn %d with %d units", got.State.Turn, len(got.State.Units))
	}
}

func TestDeleteGame(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	ctx := context.Background()
	id := v.Game.ID

	if err := f.svc.DeleteGame(ctx, id, "user-2"); !errors.Is(err, ErrNotYourGame) {
		t.Errorf("expected ErrNotYourGame, got %v", err)
	}
	if err := f.svc.DeleteGame(ctx, id, "user-1"); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	if _, err := f.svc.Get(ctx, id, "user-1"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("expected ErrGameNotFound, got %v", err)
	}
	if f.cache.states[id] != nil {
		t.Error("cached state not deleted")
	}
}

func TestSavesDisabled(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	if _, err := f.svc.Save(context.Background(), v.Game.ID, "user-1", "slot"); !errors.Is(err, ErrSavesDisabled) {
		t.Errorf("expected ErrSavesDisabled, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	store, err := sqlite.Open("")
	if err != nil {
		t.Fatalf("open save store: %v", err)
	}
	defer store.Close()

	f := newFixture(t)
	f.svc.SetSaveStore(store)
	v := f.create(t)
	ctx := context.Background()
	id := v.Game.ID

	slot, err := f.svc.Save(ctx, id, "user-1", "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if slot.Name != "Turn 1" || slot.Turn != 1 {
		t.Errorf("slot = %+v", slot)
	}

	if err := f.svc.EndTurn(ctx, id, "user-1"); err != nil {
		t.Fatalf("EndTurn: %v", err)
	}
	f.runToTurn(t, id, 2)

	slots, err := f.svc.ListSaves(ctx, id, "user-1")
	if err != nil || len(slots) != 1 {
		t.Fatalf("ListSaves = %v, %v", slots, err)
	}
	if _, err := f.svc.LoadSave(ctx, id, "user-1", "missing"); !errors.Is(err, ErrSaveNotFound) {
		t.Errorf("expected ErrSaveNotFound, got %v", err)
	}

	got, err := f.svc.LoadSave(ctx, id, "user-1", slot.ID)
	if err != nil {
		t.Fatalf("LoadSave: %v", err)
	}
	if got.State.Turn != 1 || got.Game.Turn != 1 {
		t.Errorf("loaded turn %d / %d, want 1", got.State.Turn, got.Game.Turn)
	}
	if f.games.games[id].Turn != 1 {
		t.Errorf("progress not rewound: %d", f.games.games[id].Turn)
	}
	if f.bc.count(EventGameLoaded) != 1 {
		t.Error("game_loaded not broadcast")
	}
}

func TestRunnerTickAdvancesGames(t *testing.T) {
	f := newFixture(t)
	v := f.create(t)
	ctx := context.Background()
	id := v.Game.ID

	if err := f.svc.EndTurn(ctx, id, "user-1"); err != nil {
		t.Fatalf("EndTurn: %v", err)
	}
	r := NewRunner(f.svc, time.Second)
	for i := 0; i < 100000 && f.live(t, id).sim.State.Turn < 2; i++ {
		r.Tick(ctx)
	}
	if f.live(t, id).sim.State.Turn != 2 {
		t.Fatal("runner did not reach turn 2")
	}
	if f.svc.ActiveCount() != 1 {
		t.Errorf("active count = %d", f.svc.ActiveCount())
	}
}

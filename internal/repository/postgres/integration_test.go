//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/freeeve/chiron/internal/model"
	"github.com/freeeve/chiron/internal/testutil"
)

var testDB *sql.DB

func setup(t *testing.T) {
	t.Helper()
	if testDB == nil {
		testDB = testutil.SetupDB(t)
	}
	testutil.CleanupDB(t, testDB)
}

func createTestUser(t *testing.T, suffix string) *model.User {
	t.Helper()
	u, err := NewUserRepo(testDB).Upsert(context.Background(), "dev", "dev-"+suffix, "User "+suffix)
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return u
}

func createTestGame(t *testing.T, creator *model.User, name string) *model.Game {
	t.Helper()
	g, err := NewGameRepo(testDB).Create(context.Background(), name, creator.ID, "", 42)
	if err != nil {
		t.Fatalf("create test game: %v", err)
	}
	return g
}

// --- UserRepo ---

func TestUserUpsert(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)
	ctx := context.Background()

	u1, err := repo.Upsert(ctx, "dev", "dev-1", "Alice")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if u1.ID == "" || u1.DisplayName != "Alice" {
		t.Fatalf("unexpected user: %+v", u1)
	}

	u2, err := repo.Upsert(ctx, "dev", "dev-1", "Alicia")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if u2.ID != u1.ID {
		t.Fatalf("upsert should keep the ID: %s vs %s", u1.ID, u2.ID)
	}
	if u2.DisplayName != "Alicia" {
		t.Fatalf("expected updated name, got %s", u2.DisplayName)
	}
}

func TestUserFindByID(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)
	created := createTestUser(t, "find")

	found, err := repo.FindByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatal("expected to find user by ID")
	}

	missing, err := repo.FindByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for missing user")
	}
}

// --- GameRepo ---

func TestGameCreateAndFind(t *testing.T) {
	setup(t)
	repo := NewGameRepo(testDB)
	u := createTestUser(t, "creator")

	g := createTestGame(t, u, "Planetfall")
	if g.Status != model.StatusActive || g.Turn != 1 || g.Seed != 42 || g.BotDifficulty != "medium" {
		t.Fatalf("unexpected game: %+v", g)
	}

	found, err := repo.FindByID(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("find game: %v", err)
	}
	if found == nil || found.Name != "Planetfall" || found.CreatorID != u.ID {
		t.Fatalf("unexpected found game: %+v", found)
	}

	missing, err := repo.FindByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != nil || missing != nil {
		t.Fatalf("missing game: %+v, %v", missing, err)
	}
}

func TestGameProgressAndFinish(t *testing.T) {
	setup(t)
	repo := NewGameRepo(testDB)
	ctx := context.Background()
	u := createTestUser(t, "p")
	g1 := createTestGame(t, u, "One")
	g2 := createTestGame(t, u, "Two")

	if err := repo.UpdateProgress(ctx, g1.ID, 7, "ai_processing"); err != nil {
		t.Fatalf("update progress: %v", err)
	}
	if err := repo.SetFinished(ctx, g2.ID, "Gaians"); err != nil {
		t.Fatalf("set finished: %v", err)
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != g1.ID || active[0].Turn != 7 || active[0].Phase != "ai_processing" {
		t.Fatalf("unexpected active games: %+v", active)
	}

	done, _ := repo.FindByID(ctx, g2.ID)
	if done.Status != model.StatusFinished || done.Winner != "Gaians" || done.FinishedAt == nil {
		t.Fatalf("unexpected finished game: %+v", done)
	}

	mine, err := repo.ListByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 games, got %d", len(mine))
	}
}

func TestGameDeleteCascades(t *testing.T) {
	setup(t)
	ctx := context.Background()
	u := createTestUser(t, "d")
	g := createTestGame(t, u, "Doomed")
	turns := NewTurnRepo(testDB)
	if _, err := turns.CreateTurn(ctx, g.ID, 1, json.RawMessage(`{"turn":1}`), nil); err != nil {
		t.Fatalf("create turn: %v", err)
	}

	if err := NewGameRepo(testDB).Delete(ctx, g.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	latest, err := turns.LatestTurn(ctx, g.ID)
	if err != nil || latest != nil {
		t.Fatalf("expected turns to be removed, got %+v, %v", latest, err)
	}
}

// --- TurnRepo ---

func TestTurnCreateAndLatest(t *testing.T) {
	setup(t)
	repo := NewTurnRepo(testDB)
	ctx := context.Background()
	g := createTestGame(t, createTestUser(t, "t"), "History")

	if _, err := repo.CreateTurn(ctx, g.ID, 1, json.RawMessage(`{"turn":1}`), nil); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	events := json.RawMessage(`[{"kind":"income","text":"+5 credits"}]`)
	if _, err := repo.CreateTurn(ctx, g.ID, 2, json.RawMessage(`{"turn":2}`), events); err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	// Re-recording a turn replaces it.
	if _, err := repo.CreateTurn(ctx, g.ID, 2, json.RawMessage(`{"turn":2,"phase":"player_turn"}`), events); err != nil {
		t.Fatalf("turn 2 again: %v", err)
	}

	latest, err := repo.LatestTurn(ctx, g.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	var st map[string]any
	if err := json.Unmarshal(latest.State, &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if latest.Turn != 2 || st["phase"] != "player_turn" {
		t.Fatalf("unexpected latest turn: %d %s", latest.Turn, latest.State)
	}

	all, err := repo.ListTurns(ctx, g.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].Turn != 1 || all[0].Events != nil || all[1].Events == nil {
		t.Fatalf("unexpected turn list: %+v", all)
	}
}

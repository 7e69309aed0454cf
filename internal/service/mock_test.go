package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/freeeve/chiron/internal/model"
)

type mockGameRepo struct {
	mu    sync.Mutex
	games map[string]*model.Game
}

func newMockGameRepo() *mockGameRepo {
	return &mockGameRepo{games: make(map[string]*model.Game)}
}

func (m *mockGameRepo) Create(_ context.Context, name, creatorID, botDifficulty string, seed int64) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := &model.Game{
		ID:            fmt.Sprintf("game-%d", len(m.games)+1),
		Name:          name,
		CreatorID:     creatorID,
		Status:        model.StatusActive,
		Seed:          seed,
		Turn:          1,
		Phase:         "player_turn",
		BotDifficulty: botDifficulty,
		CreatedAt:     time.Now(),
	}
	m.games[g.ID] = g
	cp := *g
	return &cp, nil
}

func (m *mockGameRepo) FindByID(_ context.Context, id string) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (m *mockGameRepo) ListActive(_ context.Context) ([]model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Game
	for _, g := range m.games {
		if g.Status == model.StatusActive {
			result = append(result, *g)
		}
	}
	return result, nil
}

func (m *mockGameRepo) ListByUser(_ context.Context, userID string) ([]model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Game
	for _, g := range m.games {
		if g.CreatorID == userID {
			result = append(result, *g)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockGameRepo) UpdateProgress(_ context.Context, gameID string, turn int, phase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.games[gameID]; ok {
		g.Turn = turn
		g.Phase = phase
	}
	return nil
}

func (m *mockGameRepo) SetFinished(_ context.Context, gameID, winner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.games[gameID]; ok {
		now := time.Now()
		g.Status = model.StatusFinished
		g.Winner = winner
		g.FinishedAt = &now
	}
	return nil
}

func (m *mockGameRepo) Delete(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, gameID)
	return nil
}

type mockTurnRepo struct {
	mu    sync.Mutex
	turns map[string][]model.TurnRecord
}

func newMockTurnRepo() *mockTurnRepo {
	return &mockTurnRepo{turns: make(map[string][]model.TurnRecord)}
}

func (m *mockTurnRepo) CreateTurn(_ context.Context, gameID string, turn int, state, events json.RawMessage) (*model.TurnRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := model.TurnRecord{
		ID:        fmt.Sprintf("turn-%s-%d", gameID, turn),
		GameID:    gameID,
		Turn:      turn,
		State:     state,
		Events:    events,
		CreatedAt: time.Now(),
	}
	recs := m.turns[gameID]
	for i := range recs {
		if recs[i].Turn == turn {
			recs[i] = rec
			return &rec, nil
		}
	}
	m.turns[gameID] = append(recs, rec)
	return &rec, nil
}

func (m *mockTurnRepo) LatestTurn(_ context.Context, gameID string) (*model.TurnRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.turns[gameID]
	if len(recs) == 0 {
		return nil, nil
	}
	rec := recs[len(recs)-1]
	return &rec, nil
}

func (m *mockTurnRepo) ListTurns(_ context.Context, gameID string) ([]model.TurnRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.TurnRecord(nil), m.turns[gameID]...), nil
}

type mockCache struct {
	mu        sync.Mutex
	states    map[string]json.RawMessage
	active    map[string]bool
	published map[string][]json.RawMessage
}

func newMockCache() *mockCache {
	return &mockCache{
		states:    make(map[string]json.RawMessage),
		active:    make(map[string]bool),
		published: make(map[string][]json.RawMessage),
	}
}

func (c *mockCache) SetGameState(_ context.Context, gameID string, state json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[gameID] = state
	return nil
}

func (c *mockCache) GetGameState(_ context.Context, gameID string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[gameID], nil
}

func (c *mockCache) MarkActive(_ context.Context, gameID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[gameID] = true
	return nil
}

func (c *mockCache) UnmarkActive(_ context.Context, gameID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, gameID)
	return nil
}

func (c *mockCache) ActiveGames(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id := range c.active {
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *mockCache) PublishEvent(_ context.Context, gameID string, event json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published[gameID] = append(c.published[gameID], event)
	return nil
}

func (c *mockCache) DeleteGameData(_ context.Context, gameID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, gameID)
	delete(c.active, gameID)
	return nil
}

type recordedEvent struct {
	gameID    string
	eventType string
	data      any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) BroadcastGameEvent(gameID, eventType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{gameID, eventType, data})
}

func (b *recordingBroadcaster) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

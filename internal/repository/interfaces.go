package repository

import (
	"context"
	"encoding/json"

	"github.com/freeeve/chiron/internal/model"
)

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName string) (*model.User, error)
}

// GameRepository defines game data operations.
type GameRepository interface {
	Create(ctx context.Context, name, creatorID, botDifficulty string, seed int64) (*model.Game, error)
	FindByID(ctx context.Context, id string) (*model.Game, error)
	ListActive(ctx context.Context) ([]model.Game, error)
	ListByUser(ctx context.Context, userID string) ([]model.Game, error)
	UpdateProgress(ctx context.Context, gameID string, turn int, phase string) error
	SetFinished(ctx context.Context, gameID, winner string) error
	Delete(ctx context.Context, gameID string) error
}

// TurnRepository stores the per-turn engine snapshots.
type TurnRepository interface {
	CreateTurn(ctx context.Context, gameID string, turn int, state, events json.RawMessage) (*model.TurnRecord, error)
	LatestTurn(ctx context.Context, gameID string) (*model.TurnRecord, error)
	ListTurns(ctx context.Context, gameID string) ([]model.TurnRecord, error)
}

// GameCache defines live game state operations (Redis).
type GameCache interface {
	SetGameState(ctx context.Context, gameID string, state json.RawMessage) error
	GetGameState(ctx context.Context, gameID string) (json.RawMessage, error)
	MarkActive(ctx context.Context, gameID string) error
	UnmarkActive(ctx context.Context, gameID string) error
	ActiveGames(ctx context.Context) ([]string, error)
	PublishEvent(ctx context.Context, gameID string, event json.RawMessage) error
	DeleteGameData(ctx context.Context, gameID string) error
}

// SaveStore defines named local save slots.
type SaveStore interface {
	Save(ctx context.Context, gameID, name string, turn int, state []byte) (*model.SaveSlot, error)
	Get(ctx context.Context, id string) (*model.SaveSlot, error)
	ListByGame(ctx context.Context, gameID string) ([]model.SaveSlot, error)
	Delete(ctx context.Context, id string) error
}

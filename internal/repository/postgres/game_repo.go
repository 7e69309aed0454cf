package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/chiron/internal/model"
)

// GameRepo handles game database operations.
type GameRepo struct {
	db *sql.DB
}

// NewGameRepo creates a GameRepo.
func NewGameRepo(db *sql.DB) *GameRepo {
	return &GameRepo{db: db}
}

const gameColumns = `id, name, creator_id, status, seed, turn, phase, bot_difficulty, winner,
		created_at, updated_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(s scanner) (*model.Game, error) {
	var g model.Game
	var winner sql.NullString
	err := s.Scan(&g.ID, &g.Name, &g.CreatorID, &g.Status, &g.Seed, &g.Turn, &g.Phase, &g.BotDifficulty, &winner,
		&g.CreatedAt, &g.UpdatedAt, &g.FinishedAt)
	if err != nil {
		return nil, err
	}
	g.Winner = winner.String
	return &g, nil
}

// Create inserts a new active game.
func (r *GameRepo) Create(ctx context.Context, name, creatorID, botDifficulty string, seed int64) (*model.Game, error) {
	if botDifficulty == "" {
		botDifficulty = "medium"
	}
	g, err := scanGame(r.db.QueryRowContext(ctx,
		`INSERT INTO games (name, creator_id, bot_difficulty, seed)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+gameColumns,
		name, creatorID, botDifficulty, seed,
	))
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return g, nil
}

// FindByID returns a game by ID.
func (r *GameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	return g, nil
}

// ListActive returns every game still in progress, oldest first.
func (r *GameRepo) ListActive(ctx context.Context) ([]model.Game, error) {
	return r.list(ctx, "list active games",
		`SELECT `+gameColumns+` FROM games WHERE status = 'active' ORDER BY created_at`)
}

// ListByUser returns the games a user created, most recent first.
func (r *GameRepo) ListByUser(ctx context.Context, userID string) ([]model.Game, error) {
	return r.list(ctx, "list user games",
		`SELECT `+gameColumns+` FROM games WHERE creator_id = $1 ORDER BY created_at DESC LIMIT 50`, userID)
}

func (r *GameRepo) list(ctx context.Context, op, query string, args ...any) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

// UpdateProgress records the turn and phase a game has reached.
func (r *GameRepo) UpdateProgress(ctx context.Context, gameID string, turn int, phase string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET turn = $1, phase = $2, updated_at = now() WHERE id = $3`,
		turn, phase, gameID,
	)
	if err != nil {
		return fmt.Errorf("update game progress: %w", err)
	}
	return nil
}

// SetFinished marks a game as finished.
func (r *GameRepo) SetFinished(ctx context.Context, gameID, winner string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET status = 'finished', winner = $1, finished_at = now(), updated_at = now() WHERE id = $2`,
		winner, gameID,
	)
	if err != nil {
		return fmt.Errorf("set finished: %w", err)
	}
	return nil
}

// Delete removes a game and its turn history.
func (r *GameRepo) Delete(ctx context.Context, gameID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	return nil
}

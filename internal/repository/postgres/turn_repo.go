package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/freeeve/chiron/internal/model"
)

// TurnRepo stores one engine snapshot per game turn.
type TurnRepo struct {
	db *sql.DB
}

// NewTurnRepo creates a TurnRepo.
func NewTurnRepo(db *sql.DB) *TurnRepo {
	return &TurnRepo{db: db}
}

// CreateTurn records the snapshot for a turn. Recording the same turn twice
// replaces the earlier snapshot.
func (r *TurnRepo) CreateTurn(ctx context.Context, gameID string, turn int, state, events json.RawMessage) (*model.TurnRecord, error) {
	var ev any
	if len(events) > 0 {
		ev = []byte(events)
	}
	t, err := scanTurn(r.db.QueryRowContext(ctx,
		`INSERT INTO turns (game_id, turn, state, events)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (game_id, turn)
		 DO UPDATE SET state = EXCLUDED.state, events = EXCLUDED.events, created_at = now()
		 RETURNING id, game_id, turn, state, events, created_at`,
		gameID, turn, []byte(state), ev,
	))
	if err != nil {
		return nil, fmt.Errorf("create turn: %w", err)
	}
	return t, nil
}

// LatestTurn returns the most recent turn snapshot for a game.
func (r *TurnRepo) LatestTurn(ctx context.Context, gameID string) (*model.TurnRecord, error) {
	t, err := scanTurn(r.db.QueryRowContext(ctx,
		`SELECT id, game_id, turn, state, events, created_at
		 FROM turns WHERE game_id = $1 ORDER BY turn DESC LIMIT 1`, gameID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest turn: %w", err)
	}
	return t, nil
}

// ListTurns returns every recorded turn for a game in order. Snapshots are
// omitted to keep the listing small.
func (r *TurnRepo) ListTurns(ctx context.Context, gameID string) ([]model.TurnRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, turn, events, created_at
		 FROM turns WHERE game_id = $1 ORDER BY turn`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []model.TurnRecord
	for rows.Next() {
		var t model.TurnRecord
		var events []byte
		if err := rows.Scan(&t.ID, &t.GameID, &t.Turn, &events, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Events = events
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func scanTurn(s scanner) (*model.TurnRecord, error) {
	var t model.TurnRecord
	var state, events []byte
	if err := s.Scan(&t.ID, &t.GameID, &t.Turn, &state, &events, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.State, t.Events = state, events
	return &t, nil
}

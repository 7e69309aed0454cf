package model

import (
	"encoding/json"
	"time"
)

// User represents a registered player.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Game status values.
const (
	StatusActive   = "active"
	StatusFinished = "finished"
)

// Game is one running or finished campaign.
type Game struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	CreatorID     string     `json:"creator_id"`
	Status        string     `json:"status"` // active, finished
	Seed          int64      `json:"seed"`
	Turn          int        `json:"turn"`
	Phase         string     `json:"phase"`
	BotDifficulty string     `json:"bot_difficulty"`
	Winner        string     `json:"winner,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// TurnRecord is the engine snapshot taken at the start of a turn.
type TurnRecord struct {
	ID        string          `json:"id"`
	GameID    string          `json:"game_id"`
	Turn      int             `json:"turn"`
	State     json.RawMessage `json:"state"`
	Events    json.RawMessage `json:"events,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaveSlot is a named local save of a full engine snapshot.
type SaveSlot struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	Name      string    `json:"name"`
	Turn      int       `json:"turn"`
	State     []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

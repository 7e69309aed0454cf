// Package sqlite keeps named save slots in a local SQLite file through GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/freeeve/chiron/internal/model"
)

// saveRow is the table layout of a save slot.
type saveRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	GameID    string `gorm:"index;size:36;not null"`
	Name      string `gorm:"not null"`
	Turn      int
	State     []byte `gorm:"not null"`
	CreatedAt time.Time
}

func (saveRow) TableName() string { return "saves" }

func (r saveRow) toModel() model.SaveSlot {
	return model.SaveSlot{
		ID:        r.ID,
		GameID:    r.GameID,
		Name:      r.Name,
		Turn:      r.Turn,
		State:     r.State,
		CreatedAt: r.CreatedAt,
	}
}

// SaveStore implements repository.SaveStore on SQLite.
type SaveStore struct {
	db *gorm.DB
}

// Open opens (creating if needed) the save database at path. An empty path
// opens a private in-memory database.
func Open(path string) (*SaveStore, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open save db: %w", err)
	}
	if path == "" {
		// Every connection to :memory: is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open save db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if err := db.AutoMigrate(&saveRow{}); err != nil {
		return nil, fmt.Errorf("migrate save db: %w", err)
	}
	return &SaveStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *SaveStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save stores a snapshot under a new slot id.
func (s *SaveStore) Save(ctx context.Context, gameID, name string, turn int, state []byte) (*model.SaveSlot, error) {
	if len(state) == 0 {
		return nil, errors.New("save: empty state")
	}
	row := saveRow{
		ID:        uuid.NewString(),
		GameID:    gameID,
		Name:      name,
		Turn:      turn,
		State:     state,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	slot := row.toModel()
	return &slot, nil
}

// Get returns a slot with its snapshot, or nil when it does not exist.
func (s *SaveStore) Get(ctx context.Context, id string) (*model.SaveSlot, error) {
	var row saveRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get save: %w", err)
	}
	slot := row.toModel()
	return &slot, nil
}

// ListByGame returns a game's slots, newest first, without snapshots.
func (s *SaveStore) ListByGame(ctx context.Context, gameID string) ([]model.SaveSlot, error) {
	var rows []saveRow
	err := s.db.WithContext(ctx).
		Select("id", "game_id", "name", "turn", "created_at").
		Where("game_id = ?", gameID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	slots := make([]model.SaveSlot, 0, len(rows))
	for _, r := range rows {
		slots = append(slots, r.toModel())
	}
	return slots, nil
}

// Delete removes a slot. Deleting a missing slot is not an error.
func (s *SaveStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&saveRow{}).Error; err != nil {
		return fmt.Errorf("delete save: %w", err)
	}
	return nil
}

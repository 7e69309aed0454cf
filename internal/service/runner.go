package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Runner advances every loaded game on a fixed tick.
type Runner struct {
	svc      *GameService
	interval time.Duration
}

// NewRunner creates a Runner. Each tick plays back interval of battle time.
func NewRunner(svc *GameService, interval time.Duration) *Runner {
	return &Runner{svc: svc, interval: interval}
}

// Start ticks until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Msg("Game runner started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Game runner stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick advances each loaded game once.
func (r *Runner) Tick(ctx context.Context) {
	dt := r.interval.Seconds()
	for _, id := range r.svc.LoadedGames() {
		if err := r.svc.Advance(ctx, id, dt); err != nil {
			log.Error().Err(err).Str("gameId", id).Msg("Failed to advance game")
		}
	}
}

// Package metrics exposes game counters through the global OpenTelemetry
// meter provider. Without a configured provider every instrument is a no-op.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/freeeve/chiron/internal/metrics"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Recorder holds the game instruments. A nil *Recorder records nothing.
type Recorder struct {
	moves    metric.Int64Counter
	battles  metric.Int64Counter
	turns    metric.Int64Counter
	captures metric.Int64Counter
	rejected metric.Int64Counter
	active   metric.Int64ObservableGauge
}

// New creates the instruments. activeGames, when non-nil, is polled for the
// number of games currently loaded.
func New(activeGames func() int) (*Recorder, error) {
	m := meter()
	r := &Recorder{}

	var err error
	r.moves, err = m.Int64Counter(
		"chiron.moves",
		metric.WithDescription("Unit actions accepted by the engine"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating moves counter: %w", err)
	}

	r.rejected, err = m.Int64Counter(
		"chiron.moves.rejected",
		metric.WithDescription("Unit actions rejected by the engine"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	r.battles, err = m.Int64Counter(
		"chiron.battles",
		metric.WithDescription("Battles finished, by victor"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating battles counter: %w", err)
	}

	r.turns, err = m.Int64Counter(
		"chiron.turns",
		metric.WithDescription("Game turns completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating turns counter: %w", err)
	}

	r.captures, err = m.Int64Counter(
		"chiron.bases.lost",
		metric.WithDescription("Bases captured or destroyed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating captures counter: %w", err)
	}

	r.active, err = m.Int64ObservableGauge(
		"chiron.games.active",
		metric.WithDescription("Games loaded in memory"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating active games gauge: %w", err)
	}
	if activeGames != nil {
		_, err = m.RegisterCallback(
			func(ctx context.Context, o metric.Observer) error {
				o.ObserveInt64(r.active, int64(activeGames()))
				return nil
			},
			r.active,
		)
		if err != nil {
			return nil, fmt.Errorf("registering active games callback: %w", err)
		}
	}

	return r, nil
}

// Move counts an accepted action of the given kind ("move", "bombard", ...).
func (r *Recorder) Move(ctx context.Context, action string) {
	if r == nil {
		return
	}
	r.moves.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// Rejected counts an action the engine refused.
func (r *Recorder) Rejected(ctx context.Context, action string) {
	if r == nil {
		return
	}
	r.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// Battle counts a finished battle.
func (r *Recorder) Battle(ctx context.Context, victor string) {
	if r == nil {
		return
	}
	r.battles.Add(ctx, 1, metric.WithAttributes(attribute.String("victor", victor)))
}

// Turn counts a completed game turn.
func (r *Recorder) Turn(ctx context.Context) {
	if r == nil {
		return
	}
	r.turns.Add(ctx, 1)
}

// BaseLost counts a base changing hands ("captured") or being razed
// ("destroyed").
func (r *Recorder) BaseLost(ctx context.Context, how string) {
	if r == nil {
		return
	}
	r.captures.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", how)))
}

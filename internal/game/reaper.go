package game

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/triviashow/backend/internal/metrics"
)

// ReaperWorker periodically sweeps the instance registry for stale
// never-started instances and keeps the active-instance gauge current.
type ReaperWorker struct {
	registry *Registry
	logger   zerolog.Logger
	interval time.Duration
}

func NewReaperWorker(registry *Registry, interval time.Duration, logger zerolog.Logger) *ReaperWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReaperWorker{
		registry: registry,
		logger:   logger.With().Str("component", "instance_reaper").Logger(),
		interval: interval,
	}
}

// Run blocks until context cancellation.
func (w *ReaperWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// run immediately
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ReaperWorker) tick(ctx context.Context) {
	if err := w.registry.Reap(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("instance sweep failed")
	}
	ids, err := w.registry.Store().ListActiveIDs(ctx)
	if err != nil {
		return
	}
	metrics.ActiveInstances.Set(float64(len(ids)))
}

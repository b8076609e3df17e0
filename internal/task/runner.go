// Package task supervises detached background work.
package task

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stebratori/jobBolt-backend/internal/observability/logging"
	"github.com/stebratori/jobBolt-backend/internal/observability/metrics"
)

// Runner spawns background tasks that outlive the request that
// triggered them. A task failure or panic is recovered, logged, and
// counted; it never propagates to the caller.
type Runner struct {
	wg      sync.WaitGroup
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewRunner creates a background task runner.
func NewRunner() *Runner {
	return &Runner{
		metrics: metrics.DefaultMetrics,
		log:     logging.WithComponent("task-runner"),
	}
}

// Spawn runs fn on its own goroutine. The returned control is
// immediate; the task's outcome surfaces through logs and metrics
// only.
func (r *Runner) Spawn(ctx context.Context, name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.metrics.BackgroundPanics.Inc()
				r.log.Error().
					Str("task", name).
					Interface("panic", rec).
					Msg("Background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			r.log.Error().
				Err(err).
				Str("task", name).
				Msg("Background task failed")
			return
		}
		r.log.Debug().Str("task", name).Msg("Background task finished")
	}()
}

// Wait blocks until all spawned tasks have finished. Used on shutdown
// to drain in-flight analysis runs.
func (r *Runner) Wait() {
	r.wg.Wait()
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner executes cycles for every tracked query on a repeating interval.
// Cycles for one query never overlap: the next tick waits until the previous
// cycle has reached DONE or SKIPPED. Different queries run independently.
type Runner struct {
	pipeline *Pipeline
	queries  []QueryConfig
	interval time.Duration
	logger   *slog.Logger
}

// NewRunner creates a Runner over the given query configurations.
func NewRunner(p *Pipeline, queries []QueryConfig, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		pipeline: p,
		queries:  queries,
		interval: interval,
		logger:   logger.With(slog.String("component", "runner")),
	}
}

// Run starts one loop per query under an errgroup and blocks until the
// context is cancelled. Cycle errors (alert-store persistence failures) are
// logged and retried on the next tick rather than stopping the loop.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.queries) == 0 {
		return fmt.Errorf("runner: no queries configured")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, q := range r.queries {
		g.Go(func() error {
			r.runLoop(ctx, q)
			return ctx.Err()
		})
	}
	return g.Wait()
}

// runLoop is the sequential per-query cycle loop. The ticker only fires the
// next cycle after the previous one has returned, preserving the no-overlap
// invariant the alert store depends on.
func (r *Runner) runLoop(ctx context.Context, q QueryConfig) {
	log := r.logger.With(slog.String("query", q.Query))

	// Run immediately on start.
	r.runOnce(ctx, q, log)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("query loop stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx, q, log)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, q QueryConfig, log *slog.Logger) {
	res, err := r.pipeline.RunCycle(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error("cycle failed, will retry next tick",
			slog.String("cycle_id", res.ID),
			slog.String("error", err.Error()),
		)
	}
}

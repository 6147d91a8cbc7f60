package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dealbot/internal/pipeline"
	"github.com/alanyoungcy/dealbot/internal/server"
	"github.com/alanyoungcy/dealbot/internal/server/handler"
)

// shutdownTimeout bounds graceful HTTP server shutdown.
const shutdownTimeout = 10 * time.Second

// MonitorMode runs the polling pipeline (and the alert archiver when
// enabled) without the HTTP API.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startPipeline(ctx, g, deps)
	return g.Wait()
}

// ServerMode serves the read-only HTTP API without polling. Useful when a
// separate monitor process owns the pipeline.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the pipeline and the HTTP API in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startPipeline(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	return g.Wait()
}

// startPipeline launches the per-query polling loops and, when configured,
// the alert archiver.
func (a *App) startPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	p := pipeline.New(deps.Fetchers, deps.AlertStore, deps.Snapshots, deps.DealSink, a.logger)

	queries := make([]pipeline.QueryConfig, 0, len(a.cfg.Queries))
	for _, q := range a.cfg.Queries {
		queries = append(queries, pipeline.QueryConfig{
			Query:             q.Query,
			ThresholdFraction: q.ThresholdFraction,
			TrimFraction:      q.TrimFraction,
			MinSamples:        q.MinSamples,
			SourceTimeout:     q.SourceTimeout.Duration,
		})
	}

	runner := pipeline.NewRunner(p, queries, a.cfg.Pipeline.PollInterval.Duration, a.logger)
	g.Go(func() error {
		return runner.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}
}

// startHTTPServer builds the handlers and runs the read API until the
// context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	health := handler.NewHealthHandler(a.logger)
	health.AddCheck("postgres", deps.PG.Ping)
	health.AddCheck("redis", deps.Redis.Ping)

	queries := make([]handler.QueryInfo, 0, len(a.cfg.Queries))
	for _, q := range a.cfg.Queries {
		queries = append(queries, handler.QueryInfo{
			Query:             q.Query,
			ThresholdFraction: q.ThresholdFraction,
			TrimFraction:      q.TrimFraction,
			MinSamples:        q.MinSamples,
		})
	}

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		},
		server.Handlers{
			Health:  health,
			Queries: handler.NewQueryHandler(queries, deps.Snapshots, deps.AlertStore, a.logger),
		},
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	})
}

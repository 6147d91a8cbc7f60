package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/dealbot/internal/blob/s3"
	"github.com/alanyoungcy/dealbot/internal/cache/redis"
	"github.com/alanyoungcy/dealbot/internal/config"
	"github.com/alanyoungcy/dealbot/internal/domain"
	"github.com/alanyoungcy/dealbot/internal/notify"
	"github.com/alanyoungcy/dealbot/internal/pipeline"
	"github.com/alanyoungcy/dealbot/internal/source/ebay"
	"github.com/alanyoungcy/dealbot/internal/source/facebook"
	"github.com/alanyoungcy/dealbot/internal/store/postgres"
)

// Dependencies bundles every dependency that the application modes need to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Clients, kept for health probes.
	PG    *postgres.Client
	Redis *redis.Client

	// Stores and caches
	AlertStore  domain.AlertStore
	Snapshots   domain.SnapshotCache
	RateLimiter domain.RateLimiter

	// Marketplace sources
	Fetchers []pipeline.SourceFetcher

	// Blob storage; nil unless archiving is enabled.
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
	DealSink *notify.DealNotifier
}

// maxQueryItems returns the largest per-query max_items, used to size the
// shared source fetchers.
func maxQueryItems(queries []config.QueryConfig) int {
	n := 0
	for _, q := range queries {
		if q.MaxItems > n {
			n = q.MaxItems
		}
	}
	return n
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL: alert record persistence ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	deps.PG = pgClient
	deps.AlertStore = postgres.NewAlertStore(pgClient.Pool())

	// --- Redis: snapshot read view and API rate limiting ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.Snapshots = redis.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- Marketplace sources ---
	maxItems := maxQueryItems(cfg.Queries)
	if cfg.Sources.Ebay.Enabled {
		deps.Fetchers = append(deps.Fetchers, ebay.NewFetcher(ebay.Config{
			ClientID:      cfg.Sources.Ebay.ClientID,
			ClientSecret:  cfg.Sources.Ebay.ClientSecret,
			MarketplaceID: cfg.Sources.Ebay.MarketplaceID,
			BaseURL:       cfg.Sources.Ebay.BaseURL,
			TokenURL:      cfg.Sources.Ebay.TokenURL,
			MaxItems:      maxItems,
		}))
	}
	if cfg.Sources.Facebook.Enabled {
		deps.Fetchers = append(deps.Fetchers, facebook.NewFetcher(facebook.Config{
			BaseURL:     cfg.Sources.Facebook.BaseURL,
			ProfileDir:  cfg.Sources.Facebook.ProfileDir,
			ScrollSteps: cfg.Sources.Facebook.ScrollSteps,
			Headless:    cfg.Sources.Facebook.Headless,
			MaxItems:    maxItems,
		}, logger))
	}

	// --- S3 blob storage: alert archive (only when enabled) ---
	if cfg.Pipeline.ArchiveEnabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		retention := time.Duration(cfg.Pipeline.ArchiveRetentionDays) * 24 * time.Hour
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.AlertStore,
			retention,
			cfg.Pipeline.ArchiveInterval.Duration,
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	warnIfUndeliverable(cfg.Mode, len(senders), logger)
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	deps.DealSink = notify.NewDealNotifier(deps.Notifier)

	return deps, cleanup, nil
}

// warnIfUndeliverable flags a monitoring configuration with no notification
// senders. Emitted deals are still recorded as alerted, so without a sender
// they are silently lost.
func warnIfUndeliverable(mode string, senderCount int, logger *slog.Logger) {
	if senderCount > 0 || strings.ToLower(mode) == "server" {
		return
	}
	logger.Warn("no notification senders configured; deals will be recorded but not delivered",
		slog.String("mode", mode),
	)
}

// Package config defines the top-level configuration for the deal monitor
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by DEALBOT_* environment
// variables.
type Config struct {
	Queries  []QueryConfig  `toml:"queries"`
	Sources  SourcesConfig  `toml:"sources"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// QueryConfig describes one tracked search query and its deal parameters.
type QueryConfig struct {
	Query             string   `toml:"query"`
	ThresholdFraction float64  `toml:"threshold_fraction"`
	TrimFraction      float64  `toml:"trim_fraction"`
	MinSamples        int      `toml:"min_samples"`
	SourceTimeout     duration `toml:"source_timeout"`
	MaxItems          int      `toml:"max_items"`
}

// SourcesConfig holds per-marketplace collector parameters.
type SourcesConfig struct {
	Ebay     EbayConfig     `toml:"ebay"`
	Facebook FacebookConfig `toml:"facebook"`
}

// EbayConfig holds eBay Browse API credentials and endpoints.
type EbayConfig struct {
	Enabled       bool   `toml:"enabled"`
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	MarketplaceID string `toml:"marketplace_id"`
	BaseURL       string `toml:"base_url"`
	TokenURL      string `toml:"token_url"`
}

// FacebookConfig holds Facebook Marketplace scraping parameters.
type FacebookConfig struct {
	Enabled     bool   `toml:"enabled"`
	BaseURL     string `toml:"base_url"`
	ProfileDir  string `toml:"profile_dir"`
	ScrollSteps int    `toml:"scroll_steps"`
	Headless    bool   `toml:"headless"`
}

// PipelineConfig holds polling and archival parameters.
type PipelineConfig struct {
	PollInterval         duration `toml:"poll_interval"`
	ArchiveEnabled       bool     `toml:"archive_enabled"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ArchiveInterval      duration `toml:"archive_interval"`
}

// PostgresConfig holds PostgreSQL connection parameters for the alert store.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the snapshot cache.
type RedisConfig struct {
	Addr        string   `toml:"addr"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	PoolSize    int      `toml:"pool_size"`
	MaxRetries  int      `toml:"max_retries"`
	TLSEnabled  bool     `toml:"tls_enabled"`
	SnapshotTTL duration `toml:"snapshot_ttl"`
}

// S3Config holds S3-compatible object storage parameters for the alert
// archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters for the read-only view API.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Sources: SourcesConfig{
			Ebay: EbayConfig{
				Enabled:       true,
				MarketplaceID: "EBAY_GB",
				BaseURL:       "https://api.ebay.com/buy/browse/v1",
				TokenURL:      "https://api.ebay.com/identity/v1/oauth2/token",
			},
			Facebook: FacebookConfig{
				Enabled:     true,
				BaseURL:     "https://www.facebook.com",
				ScrollSteps: 3,
				Headless:    true,
			},
		},
		Pipeline: PipelineConfig{
			PollInterval:         duration{10 * time.Minute},
			ArchiveEnabled:       false,
			ArchiveRetentionDays: 90,
			ArchiveInterval:      duration{24 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "dealbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DB:          0,
			PoolSize:    10,
			MaxRetries:  3,
			TLSEnabled:  false,
			SnapshotTTL: duration{24 * time.Hour},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "dealbot-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"deal_found", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// queryDefaults fills zero-valued per-query knobs with the documented
// defaults.
func queryDefaults(q *QueryConfig) {
	if q.ThresholdFraction == 0 {
		q.ThresholdFraction = 0.20
	}
	if q.TrimFraction == 0 {
		q.TrimFraction = 0.10
	}
	if q.MinSamples == 0 {
		q.MinSamples = 3
	}
	if q.SourceTimeout.Duration == 0 {
		q.SourceTimeout = duration{45 * time.Second}
	}
	if q.MaxItems == 0 {
		q.MaxItems = 50
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. It also applies per-query
// defaults.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Queries — required for monitoring modes.
	needsQueries := c.Mode == "monitor" || c.Mode == "full"
	if needsQueries && len(c.Queries) == 0 {
		errs = append(errs, "queries: at least one tracked query is required for mode "+c.Mode)
	}
	for i := range c.Queries {
		q := &c.Queries[i]
		queryDefaults(q)
		if strings.TrimSpace(q.Query) == "" {
			errs = append(errs, fmt.Sprintf("queries[%d]: query must not be empty", i))
		}
		if q.ThresholdFraction <= 0 || q.ThresholdFraction >= 1 {
			errs = append(errs, fmt.Sprintf("queries[%d]: threshold_fraction must be in (0, 1), got %g", i, q.ThresholdFraction))
		}
		if q.TrimFraction < 0 || q.TrimFraction >= 0.5 {
			errs = append(errs, fmt.Sprintf("queries[%d]: trim_fraction must be in [0, 0.5), got %g", i, q.TrimFraction))
		}
		if q.MinSamples < 1 {
			errs = append(errs, fmt.Sprintf("queries[%d]: min_samples must be >= 1", i))
		}
	}

	// Sources — at least one must be enabled for monitoring modes.
	if needsQueries && !c.Sources.Ebay.Enabled && !c.Sources.Facebook.Enabled {
		errs = append(errs, "sources: at least one source must be enabled for mode "+c.Mode)
	}
	if c.Sources.Ebay.Enabled {
		if c.Sources.Ebay.ClientID == "" || c.Sources.Ebay.ClientSecret == "" {
			errs = append(errs, "sources.ebay: client_id and client_secret are required when enabled")
		}
		if c.Sources.Ebay.BaseURL == "" {
			errs = append(errs, "sources.ebay: base_url must not be empty")
		}
	}
	if c.Sources.Facebook.Enabled && c.Sources.Facebook.BaseURL == "" {
		errs = append(errs, "sources.facebook: base_url must not be empty")
	}

	// Pipeline
	if c.Pipeline.PollInterval.Duration <= 0 {
		errs = append(errs, "pipeline: poll_interval must be positive")
	}
	if c.Pipeline.ArchiveEnabled && c.Pipeline.ArchiveRetentionDays < 1 {
		errs = append(errs, "pipeline: archive_retention_days must be >= 1 when archiving is enabled")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only needed when archiving.
	if c.Pipeline.ArchiveEnabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 1 {
			errs = append(errs, "server: rate_limit must be >= 1")
		}
		if c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

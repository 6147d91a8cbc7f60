package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DEALBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DEALBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── eBay ──
	setBool(&cfg.Sources.Ebay.Enabled, "DEALBOT_EBAY_ENABLED")
	setStr(&cfg.Sources.Ebay.ClientID, "DEALBOT_EBAY_CLIENT_ID")
	setStr(&cfg.Sources.Ebay.ClientSecret, "DEALBOT_EBAY_CLIENT_SECRET")
	setStr(&cfg.Sources.Ebay.MarketplaceID, "DEALBOT_EBAY_MARKETPLACE_ID")
	setStr(&cfg.Sources.Ebay.BaseURL, "DEALBOT_EBAY_BASE_URL")
	setStr(&cfg.Sources.Ebay.TokenURL, "DEALBOT_EBAY_TOKEN_URL")

	// ── Facebook ──
	setBool(&cfg.Sources.Facebook.Enabled, "DEALBOT_FACEBOOK_ENABLED")
	setStr(&cfg.Sources.Facebook.BaseURL, "DEALBOT_FACEBOOK_BASE_URL")
	setStr(&cfg.Sources.Facebook.ProfileDir, "DEALBOT_FACEBOOK_PROFILE_DIR")
	setInt(&cfg.Sources.Facebook.ScrollSteps, "DEALBOT_FACEBOOK_SCROLL_STEPS")
	setBool(&cfg.Sources.Facebook.Headless, "DEALBOT_FACEBOOK_HEADLESS")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.PollInterval, "DEALBOT_PIPELINE_POLL_INTERVAL")
	setBool(&cfg.Pipeline.ArchiveEnabled, "DEALBOT_PIPELINE_ARCHIVE_ENABLED")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "DEALBOT_PIPELINE_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Pipeline.ArchiveInterval, "DEALBOT_PIPELINE_ARCHIVE_INTERVAL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DEALBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DEALBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DEALBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DEALBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DEALBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DEALBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DEALBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DEALBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DEALBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DEALBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "DEALBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DEALBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DEALBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DEALBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DEALBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DEALBOT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.SnapshotTTL, "DEALBOT_REDIS_SNAPSHOT_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "DEALBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DEALBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "DEALBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DEALBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DEALBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DEALBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DEALBOT_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DEALBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DEALBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DEALBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "DEALBOT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "DEALBOT_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "DEALBOT_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DEALBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DEALBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DEALBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DEALBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DEALBOT_MODE")
	setStr(&cfg.LogLevel, "DEALBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

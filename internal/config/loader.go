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
// built-in defaults, applies SUREBOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known SUREBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setFloat64(&cfg.Engine.MinProfitPct, "SUREBOT_ENGINE_MIN_PROFIT_PCT")
	setFloat64(&cfg.Engine.MaxTotalStake, "SUREBOT_ENGINE_MAX_TOTAL_STAKE")
	setFloat64(&cfg.Engine.MinRiskScore, "SUREBOT_ENGINE_MIN_RISK_SCORE")
	setFloat64(&cfg.Engine.MinLiquidityRatio, "SUREBOT_ENGINE_MIN_LIQUIDITY_RATIO")
	setDuration(&cfg.Engine.MaxQuoteAge, "SUREBOT_ENGINE_MAX_QUOTE_AGE")
	setDuration(&cfg.Engine.FreshnessWindow, "SUREBOT_ENGINE_FRESHNESS_WINDOW")
	setDuration(&cfg.Engine.ScanInterval, "SUREBOT_ENGINE_SCAN_INTERVAL")

	// ── Allocator ──
	setFloat64(&cfg.Allocator.Bankroll, "SUREBOT_ALLOCATOR_BANKROLL")
	setFloat64(&cfg.Allocator.MaxExposureRatio, "SUREBOT_ALLOCATOR_MAX_EXPOSURE_RATIO")
	setFloat64(&cfg.Allocator.KellyFraction, "SUREBOT_ALLOCATOR_KELLY_FRACTION")
	setFloat64(&cfg.Allocator.MinReliability, "SUREBOT_ALLOCATOR_MIN_RELIABILITY")
	setFloat64(&cfg.Allocator.MinProfitRate, "SUREBOT_ALLOCATOR_MIN_PROFIT_RATE")
	setFloat64(&cfg.Allocator.BalancePenalty, "SUREBOT_ALLOCATOR_BALANCE_PENALTY")
	setFloat64(&cfg.Allocator.MinAdjustment, "SUREBOT_ALLOCATOR_MIN_ADJUSTMENT")

	// ── Books ──
	setStringSlice(&cfg.Books.ExchangeSources, "SUREBOT_BOOKS_EXCHANGE_SOURCES")

	// ── Database ──
	setStr(&cfg.Database.DSN, "SUREBOT_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "SUREBOT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "SUREBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "SUREBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "SUREBOT_DATABASE_NAME")
	setStr(&cfg.Database.User, "SUREBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "SUREBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "SUREBOT_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "SUREBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "SUREBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "SUREBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SUREBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SUREBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SUREBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SUREBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SUREBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SUREBOT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Namespace, "SUREBOT_REDIS_NAMESPACE")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SUREBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SUREBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "SUREBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SUREBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SUREBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SUREBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SUREBOT_S3_FORCE_PATH_STYLE")

	// ── Feed ──
	setStr(&cfg.Feed.URL, "SUREBOT_FEED_URL")
	setDuration(&cfg.Feed.ReconnectInterval, "SUREBOT_FEED_RECONNECT_INTERVAL")
	setDuration(&cfg.Feed.MaxReconnectWait, "SUREBOT_FEED_MAX_RECONNECT_WAIT")
	setDuration(&cfg.Feed.PingInterval, "SUREBOT_FEED_PING_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SUREBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SUREBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SUREBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SUREBOT_NOTIFY_EVENTS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SUREBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "SUREBOT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "SUREBOT_ARCHIVE_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.Mode, "SUREBOT_MODE")
	setStr(&cfg.LogLevel, "SUREBOT_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

// Package config defines the top-level configuration for the arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SUREBOT_* environment
// variables.
type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Allocator AllocatorConfig `toml:"allocator"`
	Books     BooksConfig     `toml:"books"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Feed      FeedConfig      `toml:"feed"`
	Notify    NotifyConfig    `toml:"notify"`
	Archive   ArchiveConfig   `toml:"archive"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// EngineConfig holds detection and validation parameters.
type EngineConfig struct {
	MinProfitPct      float64  `toml:"min_profit_pct"`
	MaxTotalStake     float64  `toml:"max_total_stake"`
	MinRiskScore      float64  `toml:"min_risk_score"`
	MinLiquidityRatio float64  `toml:"min_liquidity_ratio"`
	MaxQuoteAge       duration `toml:"max_quote_age"`
	FreshnessWindow   duration `toml:"freshness_window"`
	ScanInterval      duration `toml:"scan_interval"`
}

// AllocatorConfig holds stake-sizing parameters.
type AllocatorConfig struct {
	Bankroll         float64 `toml:"bankroll"`
	MaxExposureRatio float64 `toml:"max_exposure_ratio"`
	KellyFraction    float64 `toml:"kelly_fraction"`
	MinReliability   float64 `toml:"min_reliability"`
	MinProfitRate    float64 `toml:"min_profit_rate"`
	BalancePenalty   float64 `toml:"balance_penalty"`
	MinAdjustment    float64 `toml:"min_adjustment"`
}

// BooksConfig holds the per-source reliability table and the exchange list.
type BooksConfig struct {
	// Reliability maps source id -> 0-1 reliability weight. Sources absent
	// from the table are rejected at detection time.
	Reliability map[string]float64 `toml:"reliability"`
	// ExchangeSources lists exchange-style sources assumed to carry
	// sufficient liquidity for any stake.
	ExchangeSources []string `toml:"exchange_sources"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// Namespace prefixes every key, channel, and stream this instance touches.
	Namespace string `toml:"namespace"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// FeedConfig holds the quote feed connection parameters.
type FeedConfig struct {
	URL               string   `toml:"url"`
	ReconnectInterval duration `toml:"reconnect_interval"`
	MaxReconnectWait  duration `toml:"max_reconnect_wait"`
	PingInterval      duration `toml:"ping_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
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
// Anything security-sensitive (credentials, endpoints) is left empty and must
// come from the TOML file or environment.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			MinProfitPct:      1.0,
			MaxTotalStake:     1000,
			MinRiskScore:      0.70,
			MinLiquidityRatio: 2.0,
			MaxQuoteAge:       duration{30 * time.Second},
			FreshnessWindow:   duration{5 * time.Minute},
			ScanInterval:      duration{2 * time.Second},
		},
		Allocator: AllocatorConfig{
			Bankroll:         10000,
			MaxExposureRatio: 0.25,
			KellyFraction:    0.5,
			MinReliability:   0.7,
			MinProfitRate:    0.002,
			BalancePenalty:   0.5,
			MinAdjustment:    1.0,
		},
		Books: BooksConfig{
			Reliability:     map[string]float64{},
			ExchangeSources: []string{},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "surebot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			Namespace:  "surebot",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "surebot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Feed: FeedConfig{
			ReconnectInterval: duration{time.Second},
			MaxReconnectWait:  duration{time.Minute},
			PingInterval:      duration{30 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_detected", "plan_sized", "error"},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"monitor": true,
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
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, monitor, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.MinProfitPct < 0 {
		errs = append(errs, "engine: min_profit_pct must be >= 0")
	}
	if c.Engine.MaxTotalStake <= 0 {
		errs = append(errs, "engine: max_total_stake must be > 0")
	}
	if c.Engine.MinRiskScore < 0 || c.Engine.MinRiskScore > 1 {
		errs = append(errs, "engine: min_risk_score must be in [0,1]")
	}
	if c.Engine.MinLiquidityRatio < 1 {
		errs = append(errs, "engine: min_liquidity_ratio must be >= 1")
	}
	if c.Engine.FreshnessWindow.Duration <= 0 {
		errs = append(errs, "engine: freshness_window must be > 0")
	}

	// Allocator
	if c.Allocator.Bankroll <= 0 {
		errs = append(errs, "allocator: bankroll must be > 0")
	}
	if c.Allocator.MaxExposureRatio <= 0 || c.Allocator.MaxExposureRatio > 1 {
		errs = append(errs, "allocator: max_exposure_ratio must be in (0,1]")
	}
	if c.Allocator.KellyFraction <= 0 || c.Allocator.KellyFraction > 1 {
		errs = append(errs, "allocator: kelly_fraction must be in (0,1]")
	}
	if c.Allocator.MinReliability < 0 || c.Allocator.MinReliability > 1 {
		errs = append(errs, "allocator: min_reliability must be in [0,1]")
	}
	if c.Allocator.MinProfitRate < 0 {
		errs = append(errs, "allocator: min_profit_rate must be >= 0")
	}
	if c.Allocator.BalancePenalty < 0 || c.Allocator.BalancePenalty > 1 {
		errs = append(errs, "allocator: balance_penalty must be in [0,1]")
	}

	// Books
	if len(c.Books.Reliability) == 0 {
		errs = append(errs, "books: reliability table must not be empty")
	}
	for source, w := range c.Books.Reliability {
		if w < 0 || w > 1 {
			errs = append(errs, fmt.Sprintf("books: reliability for %q must be in [0,1], got %.4f", source, w))
		}
	}
	for _, source := range c.Books.ExchangeSources {
		if _, ok := c.Books.Reliability[source]; !ok {
			errs = append(errs, fmt.Sprintf("books: exchange source %q missing from reliability table", source))
		}
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 settings are required only when archival is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// The feed URL is required for modes that consume live quotes.
	if c.Mode == "scan" || c.Mode == "full" {
		if c.Feed.URL == "" {
			errs = append(errs, "feed: url must not be empty for mode "+c.Mode)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

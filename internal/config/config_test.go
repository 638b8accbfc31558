package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValidGivenBooksAndFeed(t *testing.T) {
	cfg := Defaults()
	cfg.Books.Reliability = map[string]float64{"bet365": 0.9}
	cfg.Feed.URL = "wss://quotes.example.com/stream"

	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.LogLevel = "loud"
	cfg.Engine.MaxTotalStake = 0
	cfg.Allocator.Bankroll = -5
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown mode")
	require.Contains(t, err.Error(), "unknown log_level")
	require.Contains(t, err.Error(), "max_total_stake")
	require.Contains(t, err.Error(), "bankroll")
	require.Contains(t, err.Error(), "redis: addr")
}

func TestValidateExchangeSourceMustBeKnown(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	cfg.Books.Reliability = map[string]float64{"bet365": 0.9}
	cfg.Books.ExchangeSources = []string{"betfair"}

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), `exchange source "betfair"`)
}

func TestValidateArchiveRequiresS3(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	cfg.Books.Reliability = map[string]float64{"bet365": 0.9}
	cfg.Archive.Enabled = true
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "s3: bucket")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "monitor"
log_level = "debug"

[engine]
min_profit_pct = 2.5
max_quote_age = "45s"

[books]
exchange_sources = ["pinnacle"]

[books.reliability]
bet365 = 0.9
pinnacle = 0.95
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "monitor", cfg.Mode)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 2.5, cfg.Engine.MinProfitPct)
	require.Equal(t, 45*time.Second, cfg.Engine.MaxQuoteAge.Duration)
	// Untouched fields keep their defaults.
	require.Equal(t, 1000.0, cfg.Engine.MaxTotalStake)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "surebot", cfg.Redis.Namespace)
	require.Equal(t, 0.95, cfg.Books.Reliability["pinnacle"])
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "monitor"

[books.reliability]
bet365 = 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("SUREBOT_MODE", "scan")
	t.Setenv("SUREBOT_ALLOCATOR_BANKROLL", "50000")
	t.Setenv("SUREBOT_ENGINE_FRESHNESS_WINDOW", "10m")
	t.Setenv("SUREBOT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("SUREBOT_DATABASE_RUN_MIGRATIONS", "false")
	t.Setenv("SUREBOT_BOOKS_EXCHANGE_SOURCES", "bet365, betfair")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "scan", cfg.Mode)
	require.Equal(t, 50000.0, cfg.Allocator.Bankroll)
	require.Equal(t, 10*time.Minute, cfg.Engine.FreshnessWindow.Duration)
	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	require.False(t, cfg.Database.RunMigrations)
	require.Equal(t, []string{"bet365", "betfair"}, cfg.Books.ExchangeSources)
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "monitor"`), 0o600))

	t.Setenv("SUREBOT_ALLOCATOR_BANKROLL", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	// Unparseable values leave the default in place.
	require.Equal(t, 10000.0, cfg.Allocator.Bankroll)
}

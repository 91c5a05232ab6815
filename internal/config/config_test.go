package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "bitget", cfg.Scan.ExchangeA)
	assert.Equal(t, "mexc", cfg.Scan.ExchangeB)
	assert.Equal(t, "USDT", cfg.Scan.QuoteAsset)
	assert.Contains(t, cfg.Scan.Exclude, "USDC/USDT")
	assert.Equal(t, 10000.0, cfg.Scan.MinVolume24h)
	assert.Equal(t, 10*time.Minute, cfg.Scan.Timeout)

	assert.Equal(t, 1000.0, cfg.Arbitrage.DepthThreshold)
	assert.Equal(t, 7.0, cfg.Arbitrage.MinLiquidityScore)
	assert.Equal(t, 5, cfg.Arbitrage.TopN)
	assert.Equal(t, 10000.0, cfg.Arbitrage.Liquidity.DepthReference)
	assert.Equal(t, 0.5, cfg.Arbitrage.Liquidity.DepthWeight)

	assert.True(t, cfg.Notify.Enabled)
	assert.Equal(t, 0.5, cfg.Notify.MinSpreadThreshold)
	assert.Equal(t, time.Second, cfg.Notify.Interval)

	assert.Equal(t, "results", cfg.Output.Dir)
	assert.False(t, cfg.Database.Enabled())

	require.Contains(t, cfg.Exchanges, "bitget")
	require.Contains(t, cfg.Exchanges, "mexc")
	assert.Equal(t, "https://api.mexc.com", cfg.Exchanges["mexc"].BaseURL)
	assert.Equal(t, 100*time.Millisecond, cfg.Exchanges["bitget"].MinInterval)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
scan:
  concurrency: 8
  symbols: ["BTC/USDT", "ETH/USDT"]
  aliases_b:
    NEIROETH/USDT: NEIRO/USDT
arbitrage:
  depth_threshold: 2500
  top_n: 10
notify:
  interval: 2s
exchanges:
  mexc:
    api_key: from-file
    min_interval: 250ms
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("ARBSCAN_ARBITRAGE_MIN_LIQUIDITY_SCORE", "6.5")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Scan.Concurrency)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, cfg.Scan.Symbols)
	assert.Equal(t, "NEIRO/USDT", cfg.Scan.AliasesB["neiroeth/usdt"])
	assert.Equal(t, 2500.0, cfg.Arbitrage.DepthThreshold)
	assert.Equal(t, 10, cfg.Arbitrage.TopN)
	assert.Equal(t, 6.5, cfg.Arbitrage.MinLiquidityScore)
	assert.Equal(t, 2*time.Second, cfg.Notify.Interval)
	assert.Equal(t, "from-file", cfg.Exchanges["mexc"].APIKey)
	assert.Equal(t, 250*time.Millisecond, cfg.Exchanges["mexc"].MinInterval)
	assert.Equal(t, "https://api.mexc.com", cfg.Exchanges["mexc"].BaseURL)
}

func TestLoadConfig_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("scan: [unclosed"), 0o644))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	base, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"same exchange twice", func(c *Config) { c.Scan.ExchangeB = "BITGET" }, "must differ"},
		{"unknown exchange", func(c *Config) { c.Scan.ExchangeB = "kraken" }, "exchanges.kraken"},
		{"zero concurrency", func(c *Config) { c.Scan.Concurrency = 0 }, "scan.concurrency"},
		{"zero top n", func(c *Config) { c.Arbitrage.TopN = 0 }, "top_n"},
		{"liquidity above scale", func(c *Config) { c.Arbitrage.MinLiquidityScore = 11 }, "0-10"},
		{"negative depth", func(c *Config) { c.Arbitrage.DepthThreshold = -1 }, "negative"},
		{"s3 without bucket", func(c *Config) { c.Output.S3.Enabled = true }, "bucket"},
		{"notify interval disabled", func(c *Config) { c.Notify.Interval = 0 }, "notify.interval"},
		{"notify interval below one second", func(c *Config) { c.Notify.Interval = 500 * time.Millisecond }, "notify.interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Exchanges = map[string]ExchangeConfig{"bitget": base.Exchanges["bitget"], "mexc": base.Exchanges["mexc"]}
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDatabaseConfig_ConnString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "arb", Password: "secret", DBName: "scans"}
	assert.True(t, d.Enabled())
	assert.Equal(t, "postgres://arb:secret@db:5432/scans?sslmode=disable", d.ConnString())
}

func TestLoadConfig_CredentialsFromEnv(t *testing.T) {
	t.Setenv("ARBSCAN_DATABASE_HOST", "db")
	t.Setenv("ARBSCAN_DATABASE_USER", "arb")
	t.Setenv("ARBSCAN_DATABASE_PASSWORD", "secret")
	t.Setenv("ARBSCAN_DATABASE_DBNAME", "scans")
	t.Setenv("ARBSCAN_REDIS_PASSWORD", "redis-secret")
	t.Setenv("ARBSCAN_REDIS_DB", "3")
	t.Setenv("ARBSCAN_OUTPUT_S3_BUCKET", "archive")
	t.Setenv("ARBSCAN_OUTPUT_S3_ACCESS_KEY", "AKIA")
	t.Setenv("ARBSCAN_OUTPUT_S3_SECRET_KEY", "s3-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "postgres://arb:secret@db:5432/scans?sslmode=disable", cfg.Database.ConnString())
	assert.Equal(t, "redis-secret", cfg.Redis.Password)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "archive", cfg.Output.S3.Bucket)
	assert.Equal(t, "AKIA", cfg.Output.S3.AccessKey)
	assert.Equal(t, "s3-secret", cfg.Output.S3.SecretKey)
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"arbscan/internal/arbitrage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Scan      ScanConfig
	Arbitrage ArbitrageConfig
	Notify    NotifyConfig
	Output    OutputConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Metrics   MetricsConfig
	Log       LogConfig
	Exchanges map[string]ExchangeConfig
}

// ScanConfig defines which exchanges and symbols are scanned.
type ScanConfig struct {
	ExchangeA      string            `mapstructure:"exchange_a"`
	ExchangeB      string            `mapstructure:"exchange_b"`
	QuoteAsset     string            `mapstructure:"quote_asset"`
	Symbols        []string          `mapstructure:"symbols"`
	Exclude        []string          `mapstructure:"exclude"`
	AliasesA       map[string]string `mapstructure:"aliases_a"`
	AliasesB       map[string]string `mapstructure:"aliases_b"`
	NetworkAliases map[string]string `mapstructure:"network_aliases"`
	Concurrency    int               `mapstructure:"concurrency"`
	MinVolume24h   float64           `mapstructure:"min_volume_24h"`
	Timeout        time.Duration     `mapstructure:"timeout"`
}

// ArbitrageConfig defines the ranking tunables.
type ArbitrageConfig struct {
	DepthThreshold    float64                  `mapstructure:"depth_threshold"`
	MinLiquidityScore float64                  `mapstructure:"min_liquidity_score"`
	TopN              int                      `mapstructure:"top_n"`
	Liquidity         arbitrage.LiquidityModel `mapstructure:"liquidity"`
}

// Thresholds returns the ranking filters.
func (c ArbitrageConfig) Thresholds() arbitrage.Thresholds {
	return arbitrage.Thresholds{
		MinLiquidityScore: c.MinLiquidityScore,
		DepthThreshold:    c.DepthThreshold,
	}
}

// NotifyConfig defines notification delivery.
type NotifyConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	MinSpreadThreshold float64       `mapstructure:"min_spread_threshold"`
	Interval           time.Duration `mapstructure:"interval"`
	TelegramToken      string        `mapstructure:"telegram_token"`
	TelegramChatID     string        `mapstructure:"telegram_chat_id"`
	DiscordWebhookURL  string        `mapstructure:"discord_webhook_url"`
}

// OutputConfig defines where ranked results are written.
type OutputConfig struct {
	Dir    string   `mapstructure:"dir"`
	Prefix string   `mapstructure:"prefix"`
	S3     S3Config `mapstructure:"s3"`
}

// S3Config defines the optional archive bucket for result files.
type S3Config struct {
	Enabled        bool   `mapstructure:"enabled"`
	Endpoint       string `mapstructure:"endpoint"`
	Region         string `mapstructure:"region"`
	Bucket         string `mapstructure:"bucket"`
	KeyPrefix      string `mapstructure:"key_prefix"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// Enabled reports whether a run ledger database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// ConnString builds a postgres connection URL.
func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

// RedisConfig defines the optional network-support cache.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MetricsConfig defines the Prometheus Pushgateway target.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LogConfig defines logger output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ExchangeConfig defines settings for a specific exchange.
type ExchangeConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	SecretKey   string        `mapstructure:"secret_key"`
	BaseURL     string        `mapstructure:"base_url"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	Burst       int           `mapstructure:"burst"`
	Timeout     time.Duration `mapstructure:"timeout"`
	BookLevels  int           `mapstructure:"book_levels"`
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory, if present, is loaded first so credentials can stay
// out of the config file. A missing config file is not an error; defaults apply.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ARBSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("config: read: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("config: unmarshal: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	th := arbitrage.DefaultThresholds()
	liq := arbitrage.DefaultLiquidityModel()

	v.SetDefault("scan.exchange_a", "bitget")
	v.SetDefault("scan.exchange_b", "mexc")
	v.SetDefault("scan.quote_asset", "USDT")
	v.SetDefault("scan.exclude", []string{"USDC/USDT", "FDUSD/USDT", "TUSD/USDT", "DAI/USDT", "USDE/USDT", "PYUSD/USDT"})
	v.SetDefault("scan.concurrency", 4)
	v.SetDefault("scan.min_volume_24h", 10000)
	v.SetDefault("scan.timeout", 10*time.Minute)

	v.SetDefault("arbitrage.depth_threshold", th.DepthThreshold)
	v.SetDefault("arbitrage.min_liquidity_score", th.MinLiquidityScore)
	v.SetDefault("arbitrage.top_n", arbitrage.DefaultTopN)
	v.SetDefault("arbitrage.liquidity.depth_reference", liq.DepthReference)
	v.SetDefault("arbitrage.liquidity.volume_reference", liq.VolumeReference)
	v.SetDefault("arbitrage.liquidity.depth_weight", liq.DepthWeight)

	v.SetDefault("notify.enabled", true)
	v.SetDefault("notify.min_spread_threshold", 0.5)
	v.SetDefault("notify.interval", time.Second)
	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_chat_id", "")
	v.SetDefault("notify.discord_webhook_url", "")

	v.SetDefault("output.dir", "results")
	v.SetDefault("output.prefix", "arbitrage_opportunities")
	v.SetDefault("output.s3.enabled", false)
	v.SetDefault("output.s3.region", "us-east-1")
	v.SetDefault("output.s3.key_prefix", "scans/")
	v.SetDefault("output.s3.endpoint", "")
	v.SetDefault("output.s3.bucket", "")
	v.SetDefault("output.s3.access_key", "")
	v.SetDefault("output.s3.secret_key", "")
	v.SetDefault("output.s3.force_path_style", false)

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 6*time.Hour)

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "arbscan")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("exchanges.bitget.base_url", "https://api.bitget.com")
	v.SetDefault("exchanges.bitget.min_interval", 100*time.Millisecond)
	v.SetDefault("exchanges.bitget.book_levels", 5)
	v.SetDefault("exchanges.mexc.base_url", "https://api.mexc.com")
	v.SetDefault("exchanges.mexc.min_interval", 100*time.Millisecond)
	v.SetDefault("exchanges.mexc.book_levels", 5)
	v.SetDefault("exchanges.mexc.api_key", "")
	v.SetDefault("exchanges.mexc.secret_key", "")
}

// Validate checks the configuration for values that make a scan impossible.
func (c Config) Validate() error {
	var errs []error
	if c.Scan.ExchangeA == "" || c.Scan.ExchangeB == "" {
		errs = append(errs, errors.New("scan.exchange_a and scan.exchange_b are required"))
	}
	if c.Scan.ExchangeA != "" && strings.EqualFold(c.Scan.ExchangeA, c.Scan.ExchangeB) {
		errs = append(errs, fmt.Errorf("scan exchanges must differ, both are %q", c.Scan.ExchangeA))
	}
	for _, name := range []string{c.Scan.ExchangeA, c.Scan.ExchangeB} {
		if _, ok := c.Exchanges[strings.ToLower(name)]; name != "" && !ok {
			errs = append(errs, fmt.Errorf("exchanges.%s is not configured", name))
		}
	}
	if c.Scan.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("scan.concurrency must be at least 1, got %d", c.Scan.Concurrency))
	}
	if c.Arbitrage.TopN < 1 {
		errs = append(errs, fmt.Errorf("arbitrage.top_n must be at least 1, got %d", c.Arbitrage.TopN))
	}
	if c.Arbitrage.DepthThreshold < 0 || c.Arbitrage.MinLiquidityScore < 0 {
		errs = append(errs, errors.New("arbitrage thresholds must not be negative"))
	}
	if c.Arbitrage.MinLiquidityScore > 10 {
		errs = append(errs, fmt.Errorf("arbitrage.min_liquidity_score %.2f exceeds the 0-10 scale", c.Arbitrage.MinLiquidityScore))
	}
	if c.Notify.Interval < time.Second {
		errs = append(errs, fmt.Errorf("notify.interval must be at least 1s, got %s", c.Notify.Interval))
	}
	if c.Output.S3.Enabled && c.Output.S3.Bucket == "" {
		errs = append(errs, errors.New("output.s3.bucket is required when output.s3.enabled is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

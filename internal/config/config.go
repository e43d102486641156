package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Buy capacity policies understood by the ledger.
const (
	BuyCapacityPlain   = "plain"
	BuyCapacityBlended = "blended"
)

// Config holds all configuration for the application.
type Config struct {
	Telegram Telegram `mapstructure:"telegram"`
	Feed     Feed     `mapstructure:"feed"`
	Poller   Poller   `mapstructure:"poller"`
	Alerts   Alerts   `mapstructure:"alerts"`
	Ledger   Ledger   `mapstructure:"ledger"`
	Digest   Digest   `mapstructure:"digest"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Telegram holds the configuration for the chat front-end.
type Telegram struct {
	Token       string        `mapstructure:"token"`
	AdminID     int64         `mapstructure:"admin_id"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// Feed holds the configuration for the Bybit price feed.
type Feed struct {
	BaseURL        string        `mapstructure:"base_url"`
	Category       string        `mapstructure:"category"`
	Quote          string        `mapstructure:"quote"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Poller holds the configuration for the price polling loop.
type Poller struct {
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
}

// Alerts holds the alert thresholds. Percentages are decimal strings.
type Alerts struct {
	DrawdownThreshold string `mapstructure:"drawdown_threshold"`
}

// Threshold returns the drawdown step in percent. It is zero when the value
// does not parse; Validate reports that case.
func (a Alerts) Threshold() decimal.Decimal {
	d, _ := decimal.NewFromString(a.DrawdownThreshold)
	return d
}

// Ledger holds the allocation and order rules. Fractions and amounts are
// decimal strings so they never pass through float64.
type Ledger struct {
	LiquidityDirection  string `mapstructure:"liquidity_direction"`
	InvestableDirection string `mapstructure:"investable_direction"`
	BuyCapacity         string `mapstructure:"buy_capacity"`
	EntryFraction       string `mapstructure:"entry_fraction"`
	ReserveFraction     string `mapstructure:"reserve_fraction"`
	MinEntryBalance     string `mapstructure:"min_entry_balance"`
}

// Digest holds the configuration for the scheduled portfolio summary.
type Digest struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// Server holds the configuration for the dashboard server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory is loaded first when present.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}
	err = config.Validate()
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_id", 0)
	v.SetDefault("telegram.poll_timeout", 10*time.Second)

	v.SetDefault("feed.base_url", "https://api.bybit.com")
	v.SetDefault("feed.category", "spot")
	v.SetDefault("feed.quote", "USDT")
	v.SetDefault("feed.rate_limit", 20) // requests per second
	v.SetDefault("feed.rate_limit_burst", 15)
	v.SetDefault("feed.timeout", 60*time.Second)

	v.SetDefault("poller.interval", 60*time.Second)
	v.SetDefault("poller.concurrency", 15)

	v.SetDefault("alerts.drawdown_threshold", "10")

	v.SetDefault("ledger.liquidity_direction", "Liquidity")
	v.SetDefault("ledger.investable_direction", "Working Capital")
	v.SetDefault("ledger.buy_capacity", BuyCapacityBlended)
	v.SetDefault("ledger.entry_fraction", "0.10")
	v.SetDefault("ledger.reserve_fraction", "0.02")
	v.SetDefault("ledger.min_entry_balance", "5")

	v.SetDefault("digest.enabled", false)
	v.SetDefault("digest.schedule", "0 0 9 * * *")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.dsn", "cryptofolio.db")
}

// Validate rejects configuration values the application cannot run with.
func (c Config) Validate() error {
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be positive, got %s", c.Poller.Interval)
	}
	if c.Poller.Concurrency <= 0 {
		return fmt.Errorf("poller.concurrency must be positive, got %d", c.Poller.Concurrency)
	}

	threshold, err := decimal.NewFromString(c.Alerts.DrawdownThreshold)
	if err != nil {
		return fmt.Errorf("alerts.drawdown_threshold: %w", err)
	}
	if !threshold.IsPositive() || threshold.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return fmt.Errorf("alerts.drawdown_threshold must be within (0, 100), got %s", threshold)
	}

	switch c.Ledger.BuyCapacity {
	case BuyCapacityPlain, BuyCapacityBlended:
	default:
		return fmt.Errorf("ledger.buy_capacity must be %q or %q, got %q",
			BuyCapacityPlain, BuyCapacityBlended, c.Ledger.BuyCapacity)
	}
	if c.Ledger.LiquidityDirection == "" || c.Ledger.InvestableDirection == "" {
		return errors.New("ledger directions must be named")
	}
	if c.Ledger.LiquidityDirection == c.Ledger.InvestableDirection {
		return errors.New("ledger.liquidity_direction and ledger.investable_direction must differ")
	}
	for key, raw := range map[string]string{
		"ledger.entry_fraction":    c.Ledger.EntryFraction,
		"ledger.reserve_fraction":  c.Ledger.ReserveFraction,
		"ledger.min_entry_balance": c.Ledger.MinEntryBalance,
	} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s must not be negative, got %s", key, d)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Sources    SourcesConfig    `mapstructure:"sources"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ProviderConfig toggles one upstream provider and optionally overrides its
// base URL (useful for proxies and tests).
type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
}

// OnChainConfig configures the on-chain transfer feed.
type OnChainConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	BaseURL         string  `mapstructure:"base_url"`
	APIKey          string  `mapstructure:"api_key"`
	HotThresholdUSD float64 `mapstructure:"hot_threshold_usd"`
}

// SourcesConfig holds upstream provider configuration
type SourcesConfig struct {
	Timeout         time.Duration  `mapstructure:"timeout"`
	AnnouncementTTL time.Duration  `mapstructure:"announcement_ttl"`
	TickerTTL       time.Duration  `mapstructure:"ticker_ttl"`
	Binance         ProviderConfig `mapstructure:"binance"`
	OKX             ProviderConfig `mapstructure:"okx"`
	Bybit           ProviderConfig `mapstructure:"bybit"`
	OnChain         OnChainConfig  `mapstructure:"onchain"`
}

// AggregatorConfig holds aggregation behavior configuration
type AggregatorConfig struct {
	DefaultLimit  int           `mapstructure:"default_limit"`
	FetchLimit    int           `mapstructure:"fetch_limit"`
	AggregateTTL  time.Duration `mapstructure:"aggregate_ttl"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// AlertsConfig holds alert evaluator configuration
type AlertsConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("FEEDPULSE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Source defaults. Announcement caches run minutes, ticker caches
	// seconds: price staleness is user-visible, stale announcements are not.
	v.SetDefault("sources.timeout", "10s")
	v.SetDefault("sources.announcement_ttl", "5m")
	v.SetDefault("sources.ticker_ttl", "30s")
	v.SetDefault("sources.binance.enabled", true)
	v.SetDefault("sources.okx.enabled", true)
	v.SetDefault("sources.bybit.enabled", true)
	v.SetDefault("sources.onchain.enabled", false)
	v.SetDefault("sources.onchain.hot_threshold_usd", 1000000)

	// Aggregator defaults
	v.SetDefault("aggregator.default_limit", 20)
	v.SetDefault("aggregator.fetch_limit", 50)
	v.SetDefault("aggregator.aggregate_ttl", "1m")
	v.SetDefault("aggregator.fetch_timeout", "12s")
	v.SetDefault("aggregator.sweep_interval", "5m")

	// Alert evaluator defaults
	v.SetDefault("alerts.interval", "30s")

	// Telegram defaults
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/feedpulse.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Sources.Timeout < time.Second {
		return fmt.Errorf("sources.timeout must be at least 1 second")
	}
	if c.Sources.AnnouncementTTL < 10*time.Second {
		return fmt.Errorf("sources.announcement_ttl must be at least 10 seconds")
	}
	if c.Sources.TickerTTL < time.Second {
		return fmt.Errorf("sources.ticker_ttl must be at least 1 second")
	}
	if !c.Sources.Binance.Enabled && !c.Sources.OKX.Enabled && !c.Sources.Bybit.Enabled && !c.Sources.OnChain.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}
	if c.Sources.OnChain.Enabled && c.Sources.OnChain.BaseURL == "" {
		return fmt.Errorf("sources.onchain.base_url is required when onchain is enabled")
	}

	if c.Aggregator.DefaultLimit < 1 {
		return fmt.Errorf("aggregator.default_limit must be at least 1")
	}
	if c.Aggregator.FetchLimit < 1 {
		return fmt.Errorf("aggregator.fetch_limit must be at least 1")
	}
	if c.Aggregator.AggregateTTL < time.Second {
		return fmt.Errorf("aggregator.aggregate_ttl must be at least 1 second")
	}
	if c.Aggregator.FetchTimeout <= c.Sources.Timeout {
		return fmt.Errorf("aggregator.fetch_timeout must exceed sources.timeout")
	}
	if c.Aggregator.SweepInterval < time.Minute {
		return fmt.Errorf("aggregator.sweep_interval must be at least 1 minute")
	}

	if c.Alerts.Interval < 5*time.Second {
		return fmt.Errorf("alerts.interval must be at least 5 seconds")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

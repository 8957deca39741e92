package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

const minimalConfig = `
storage:
  db_path: /tmp/test.db
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Sources.Timeout != 10*time.Second {
		t.Errorf("sources.timeout = %v, want 10s default", cfg.Sources.Timeout)
	}
	if cfg.Sources.AnnouncementTTL != 5*time.Minute {
		t.Errorf("sources.announcement_ttl = %v, want 5m default", cfg.Sources.AnnouncementTTL)
	}
	if cfg.Sources.TickerTTL != 30*time.Second {
		t.Errorf("sources.ticker_ttl = %v, want 30s default", cfg.Sources.TickerTTL)
	}
	if !cfg.Sources.Binance.Enabled || !cfg.Sources.OKX.Enabled || !cfg.Sources.Bybit.Enabled {
		t.Error("exchange sources should default to enabled")
	}
	if cfg.Sources.OnChain.Enabled {
		t.Error("onchain source should default to disabled")
	}
	if cfg.Aggregator.DefaultLimit != 20 {
		t.Errorf("aggregator.default_limit = %d, want 20", cfg.Aggregator.DefaultLimit)
	}
	if cfg.Aggregator.AggregateTTL != time.Minute {
		t.Errorf("aggregator.aggregate_ttl = %v, want 1m", cfg.Aggregator.AggregateTTL)
	}
	if cfg.Alerts.Interval != 30*time.Second {
		t.Errorf("alerts.interval = %v, want 30s", cfg.Alerts.Interval)
	}
	if cfg.Telegram.Enabled {
		t.Error("telegram should default to disabled")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %s/%s, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  timeout: 5s
  okx:
    enabled: false
aggregator:
  default_limit: 50
storage:
  db_path: /tmp/test.db
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Sources.Timeout != 5*time.Second {
		t.Errorf("sources.timeout = %v, want 5s", cfg.Sources.Timeout)
	}
	if cfg.Sources.OKX.Enabled {
		t.Error("okx should be disabled by the file")
	}
	if !cfg.Sources.Binance.Enabled {
		t.Error("binance default should survive a partial sources section")
	}
	if cfg.Aggregator.DefaultLimit != 50 {
		t.Errorf("aggregator.default_limit = %d, want 50", cfg.Aggregator.DefaultLimit)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load succeeded on a missing file")
	}
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := Load(writeConfig(t, minimalConfig))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"timeout too small", func(c *Config) { c.Sources.Timeout = 100 * time.Millisecond }},
		{"announcement ttl too small", func(c *Config) { c.Sources.AnnouncementTTL = time.Second }},
		{"no sources enabled", func(c *Config) {
			c.Sources.Binance.Enabled = false
			c.Sources.OKX.Enabled = false
			c.Sources.Bybit.Enabled = false
		}},
		{"onchain without base url", func(c *Config) { c.Sources.OnChain.Enabled = true }},
		{"zero default limit", func(c *Config) { c.Aggregator.DefaultLimit = 0 }},
		{"fetch timeout below source timeout", func(c *Config) { c.Aggregator.FetchTimeout = 5 * time.Second }},
		{"sweep interval too small", func(c *Config) { c.Aggregator.SweepInterval = time.Second }},
		{"alert interval too small", func(c *Config) { c.Alerts.Interval = time.Second }},
		{"telegram enabled without token", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "1" }},
		{"telegram enabled without chat id", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.BotToken = "t" }},
		{"empty db path", func(c *Config) { c.Storage.DBPath = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}

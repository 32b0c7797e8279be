// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Browser BrowserConfig `mapstructure:"browser"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	AI      AIConfig      `mapstructure:"ai"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// BrowserConfig governs the chromedp session.
type BrowserConfig struct {
	Headless          bool   `mapstructure:"headless"`
	UserAgent         string `mapstructure:"user_agent"`
	BaseURL           string `mapstructure:"base_url"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
}

// CrawlConfig governs the crawl loop and extraction pipeline.
type CrawlConfig struct {
	MaxItemsPerKeyword int    `mapstructure:"max_items_per_keyword"`
	MaxRowProbes       int    `mapstructure:"max_row_probes"`
	RetryAttempts      int    `mapstructure:"retry_attempts"`
	RetryDelayMs       int    `mapstructure:"retry_delay_ms"`
	InterruptSweeps    int    `mapstructure:"interrupt_sweeps"`
	SnapshotDir        string `mapstructure:"snapshot_dir"`
	RelevanceFilter    bool   `mapstructure:"relevance_filter"`
}

// AIConfig configures the optional text-understanding model.
type AIConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BaseURL       string `mapstructure:"base_url"`
	Model         string `mapstructure:"model"`
	MaxInputChars int    `mapstructure:"max_input_chars"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BIDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "bidwatch-bot/0.1")
	v.SetDefault("browser.base_url", "https://www.g2b.go.kr")
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("crawl.max_items_per_keyword", 100)
	v.SetDefault("crawl.max_row_probes", 20)
	v.SetDefault("crawl.retry_attempts", 3)
	v.SetDefault("crawl.retry_delay_ms", 1000)
	v.SetDefault("crawl.interrupt_sweeps", 5)
	v.SetDefault("crawl.snapshot_dir", "results")
	v.SetDefault("crawl.relevance_filter", false)
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.base_url", "http://localhost:11434")
	v.SetDefault("ai.model", "llama3.1")
	v.SetDefault("ai.max_input_chars", 24000)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Browser.BaseURL == "" {
		return fmt.Errorf("browser.base_url must be set")
	}
	if c.Browser.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Crawl.MaxItemsPerKeyword <= 0 {
		return fmt.Errorf("crawl.max_items_per_keyword must be > 0")
	}
	if c.Crawl.RetryAttempts <= 0 {
		return fmt.Errorf("crawl.retry_attempts must be > 0")
	}
	if c.Crawl.InterruptSweeps <= 0 {
		return fmt.Errorf("crawl.interrupt_sweeps must be > 0")
	}
	if c.AI.Enabled && c.AI.Model == "" {
		return fmt.Errorf("ai.model must be set when ai is enabled")
	}
	return nil
}

// NavTimeout converts the configured navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSeconds) * time.Second
}

// RetryDelay converts the configured retry delay into a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Crawl.RetryDelayMs) * time.Millisecond
}

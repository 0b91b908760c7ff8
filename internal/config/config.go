// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Download DownloadConfig `mapstructure:"download"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StoreConfig sets where crawl artifacts live on disk.
type StoreConfig struct {
	MetadataFile string `mapstructure:"metadata_file"`
	StatusLog    string `mapstructure:"status_log"`
	OutputDir    string `mapstructure:"output_dir"`
}

// CrawlerConfig governs orchestrator behavior.
type CrawlerConfig struct {
	BaseURL         string   `mapstructure:"base_url"`
	ListingURLs     []string `mapstructure:"listing_urls"`
	SkipExisting    bool     `mapstructure:"skip_existing"`
	CheckpointEvery int      `mapstructure:"checkpoint_every"`
}

// BrowserConfig configures the headless rendering session.
type BrowserConfig struct {
	Headless        bool   `mapstructure:"headless"`
	UserAgent       string `mapstructure:"user_agent"`
	NavTimeoutSec   int    `mapstructure:"nav_timeout_seconds"`
	NavDelayMs      int    `mapstructure:"nav_delay_ms"`
	MaxScrollRounds int    `mapstructure:"max_scroll_rounds"`
	ScrollSettleMs  int    `mapstructure:"scroll_settle_ms"`
}

// DownloadConfig configures the image fetch pool.
type DownloadConfig struct {
	Concurrency    int `mapstructure:"concurrency"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRetries     int `mapstructure:"max_retries"`
}

// ServerConfig controls the inspection API.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from an optional file plus GGCRAWL_* environment
// variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GGCRAWL")
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
	v.SetDefault("store.metadata_file", "data/metadata.json")
	v.SetDefault("store.status_log", "data/status.jsonl")
	v.SetDefault("store.output_dir", "data/images")

	v.SetDefault("crawler.base_url", "https://ggstore.com")
	v.SetDefault("crawler.listing_urls", []string{"https://ggstore.com/collections/all"})
	v.SetDefault("crawler.skip_existing", true)
	v.SetDefault("crawler.checkpoint_every", 10)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("browser.nav_delay_ms", 1500)
	v.SetDefault("browser.max_scroll_rounds", 50)
	v.SetDefault("browser.scroll_settle_ms", 750)

	v.SetDefault("download.concurrency", 5)
	v.SetDefault("download.timeout_seconds", 30)
	v.SetDefault("download.max_retries", 3)

	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("crawler.base_url must be set")
	}
	if len(c.Crawler.ListingURLs) == 0 {
		return fmt.Errorf("crawler.listing_urls must not be empty")
	}
	if c.Store.MetadataFile == "" || c.Store.OutputDir == "" || c.Store.StatusLog == "" {
		return fmt.Errorf("store paths must all be set")
	}
	if c.Download.Concurrency <= 0 {
		return fmt.Errorf("download.concurrency must be > 0")
	}
	if c.Browser.NavTimeoutSec <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// NavDelay converts the configured delay into a duration.
func (c BrowserConfig) NavDelay() time.Duration {
	return time.Duration(c.NavDelayMs) * time.Millisecond
}

// NavTimeout converts the configured timeout into a duration.
func (c BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// ScrollSettle converts the configured settle pause into a duration.
func (c BrowserConfig) ScrollSettle() time.Duration {
	return time.Duration(c.ScrollSettleMs) * time.Millisecond
}

// Timeout converts the configured download timeout into a duration.
func (c DownloadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

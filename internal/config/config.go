package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/s166harth/lastfm-recommender/pkg/recommend"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig    `yaml:"database"`
	Window   WindowConfig      `yaml:"window"`
	Weights  recommend.Weights `yaml:"weights"`
	Sources  SourcesConfig     `yaml:"sources"`
	Schedule ScheduleConfig    `yaml:"schedule"`
	Digest   DigestConfig      `yaml:"digest"`
	Server   ServerConfig      `yaml:"server"`
	Filter   FilterConfig      `yaml:"filter"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WindowConfig bounds the trailing analysis window and fixes the
// calendar-day boundary used for the consistency metric.
type WindowConfig struct {
	Days     int    `yaml:"days"`
	Timezone string `yaml:"timezone"`
}

// Location resolves the configured timezone.
func (w WindowConfig) Location() (*time.Location, error) {
	if w.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return nil, fmt.Errorf("window timezone %q: %w", w.Timezone, err)
	}
	return loc, nil
}

// SourcesConfig holds configuration for all scrobble sources.
type SourcesConfig struct {
	LastFM LastFMConfig `yaml:"lastfm"`
	Feeds  FeedsConfig  `yaml:"feeds"`
	Import ImportConfig `yaml:"import"`
}

// LastFMConfig for the Last.fm API collector.
type LastFMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	APIKey   string `yaml:"api_key"`
	Username string `yaml:"username"`
}

// FeedsConfig for the recent-tracks feed collector.
type FeedsConfig struct {
	Enabled bool       `yaml:"enabled"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// FeedItem is a single recent-tracks feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ImportConfig for the local export-file collector.
type ImportConfig struct {
	Enabled bool     `yaml:"enabled"`
	Paths   []string `yaml:"paths"`
}

// ScheduleConfig configures fetch and refresh intervals for the daemon.
type ScheduleConfig struct {
	FetchInterval   string `yaml:"fetch_interval"`
	RefreshInterval string `yaml:"refresh_interval"`
}

// ParseFetchInterval returns the fetch interval as time.Duration.
func (s ScheduleConfig) ParseFetchInterval() time.Duration {
	d, err := time.ParseDuration(s.FetchInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

// ParseRefreshInterval returns the refresh interval as time.Duration.
func (s ScheduleConfig) ParseRefreshInterval() time.Duration {
	d, err := time.ParseDuration(s.RefreshInterval)
	if err != nil {
		return 6 * time.Hour
	}
	return d
}

// DigestConfig configures digest destinations. A digest announces songs
// that newly enter the ranked list.
type DigestConfig struct {
	Limit   int           `yaml:"limit"`
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook digests.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook digests.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook digests.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// FilterConfig configures scrobble exclusion.
type FilterConfig struct {
	ExcludeArtists  []string `yaml:"exclude_artists"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./lastfm-recommender.db"},
		Window: WindowConfig{
			Days:     recommend.DefaultWindowDays,
			Timezone: "UTC",
		},
		Weights: recommend.DefaultWeights,
		Sources: SourcesConfig{
			LastFM: LastFMConfig{Enabled: true},
		},
		Schedule: ScheduleConfig{
			FetchInterval:   "1h",
			RefreshInterval: "6h",
		},
		Digest: DigestConfig{Limit: 10},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file, applies env var overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration the engine would otherwise fail on
// mid-run.
func (c *Config) Validate() error {
	if c.Window.Days < 0 {
		return fmt.Errorf("window days must be positive, got %d", c.Window.Days)
	}
	if _, err := c.Window.Location(); err != nil {
		return err
	}
	if c.Weights.Frequency < 0 || c.Weights.Consistency < 0 ||
		c.Weights.ArtistAffinity < 0 || c.Weights.AlbumAffinity < 0 {
		return fmt.Errorf("weights must be non-negative: %+v", c.Weights)
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LFMREC_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		cfg.Sources.LastFM.APIKey = v
	}
	if v := os.Getenv("LASTFM_USERNAME"); v != "" {
		cfg.Sources.LastFM.Username = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Digest.Slack.WebhookURL = v
		cfg.Digest.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Digest.Discord.WebhookURL = v
		cfg.Digest.Discord.Enabled = true
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/destradar/pkg/geo"
	"github.com/elonfeng/destradar/pkg/provider"
	"github.com/elonfeng/destradar/pkg/rank"
)

// Config is the root configuration.
type Config struct {
	Database    DatabaseConfig             `yaml:"database"`
	Log         LogConfig                  `yaml:"log"`
	Search      SearchConfig               `yaml:"search"`
	Prefs       rank.Prefs                 `yaml:"prefs"`
	Weights     rank.Weights               `yaml:"weights"`
	Providers   ProvidersConfig            `yaml:"providers"`
	Schedule    ScheduleConfig             `yaml:"schedule"`
	Alerts      AlertsConfig               `yaml:"alerts"`
	Server      ServerConfig               `yaml:"server"`
	Export      ExportConfig               `yaml:"export"`
	Coordinates map[string]geo.Coordinates `yaml:"coordinates"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// SearchConfig is the default search used by the CLI and the watch job.
type SearchConfig struct {
	Origin         string   `yaml:"origin"`
	Candidates     []string `yaml:"candidates"`
	Currency       string   `yaml:"currency"`
	TripOffsetDays int      `yaml:"trip_offset_days"`
	TripLengthDays int      `yaml:"trip_length_days"`
	FallbackOrigin string   `yaml:"fallback_origin"`
	Concurrency    int      `yaml:"concurrency"`
}

// Dates returns the trip window relative to now: start is TripOffsetDays
// ahead and end TripLengthDays after that.
func (s SearchConfig) Dates(now time.Time) (string, string) {
	start := now.AddDate(0, 0, s.TripOffsetDays)
	end := start.AddDate(0, 0, s.TripLengthDays)
	return start.Format(rank.DateLayout), end.Format(rank.DateLayout)
}

// ProvidersConfig holds configuration for all signal adapters.
type ProvidersConfig struct {
	Timeout     string            `yaml:"timeout"`
	MaxRetries  int               `yaml:"max_retries"`
	Amadeus     AmadeusConfig     `yaml:"amadeus"`
	OpenWeather OpenWeatherConfig `yaml:"openweather"`
	Yelp        YelpConfig        `yaml:"yelp"`
	Feeds       FeedsConfig       `yaml:"feeds"`
}

// ParseTimeout returns the per-request provider timeout.
func (p ProvidersConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Backoff returns the retry policy for provider requests.
func (p ProvidersConfig) Backoff() provider.Backoff {
	b := provider.DefaultBackoff
	b.MaxRetries = p.MaxRetries
	return b
}

// AmadeusConfig for flight and hotel pricing.
type AmadeusConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	BaseURL      string `yaml:"base_url"`
}

// OpenWeatherConfig for weather suitability.
type OpenWeatherConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// YelpConfig for business-count activity density.
type YelpConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// FeedsConfig for event-feed activity density. When enabled it replaces Yelp.
type FeedsConfig struct {
	Enabled         bool                 `yaml:"enabled"`
	RadiusKM        float64              `yaml:"radius_km"`
	Saturation      float64              `yaml:"saturation"`
	ExtraKeywords   map[string][]string  `yaml:"extra_keywords"`
	ExcludeKeywords []string             `yaml:"exclude_keywords"`
	Feeds           []provider.EventFeed `yaml:"feeds"`
}

// ScheduleConfig configures the watch job.
type ScheduleConfig struct {
	WatchInterval string `yaml:"watch_interval"`
}

// ParseWatchInterval returns the watch interval as time.Duration.
func (s ScheduleConfig) ParseWatchInterval() time.Duration {
	d, err := time.ParseDuration(s.WatchInterval)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ExportConfig configures CSV snapshot uploads.
type ExportConfig struct {
	MinIO MinIOConfig `yaml:"minio"`
}

// MinIOConfig for an S3-compatible bucket.
type MinIOConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./destradar.db"},
		Log:      LogConfig{Level: "info", Format: "console"},
		Search: SearchConfig{
			Origin:         "JFK",
			Candidates:     []string{"MIA", "LAX", "LIS", "BCN", "YYZ"},
			Currency:       "USD",
			TripOffsetDays: 30,
			TripLengthDays: 7,
			FallbackOrigin: rank.DefaultFallbackOrigin,
			Concurrency:    1,
		},
		Prefs:   rank.DefaultPrefs(),
		Weights: rank.DefaultWeights(),
		Providers: ProvidersConfig{
			Timeout:    "30s",
			MaxRetries: 0,
			Feeds: FeedsConfig{
				RadiusKM:   provider.DefaultFeedRadiusKM,
				Saturation: provider.DefaultFeedSaturation,
			},
		},
		Schedule: ScheduleConfig{WatchInterval: "6h"},
		Server:   ServerConfig{Port: 8080},
		Export: ExportConfig{
			MinIO: MinIOConfig{Bucket: "destradar", Prefix: "runs/"},
		},
	}
}

// Load reads configuration from a YAML file, then a .env file if present,
// and applies environment overrides. A missing file at path is not an error
// when path is the default location.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = "./config.yaml"

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("config weights: %w", err)
	}
	if c.Schedule.WatchInterval != "" {
		if _, err := time.ParseDuration(c.Schedule.WatchInterval); err != nil {
			return fmt.Errorf("config schedule.watch_interval %q: %w", c.Schedule.WatchInterval, err)
		}
	}
	if c.Providers.Timeout != "" {
		if _, err := time.ParseDuration(c.Providers.Timeout); err != nil {
			return fmt.Errorf("config providers.timeout %q: %w", c.Providers.Timeout, err)
		}
	}
	if c.Search.TripLengthDays < 0 {
		return fmt.Errorf("config search.trip_length_days must not be negative")
	}
	if fb := c.Search.FallbackOrigin; fb != "" {
		if _, ok := geo.NewTable(c.Coordinates).Lookup(fb); !ok {
			return fmt.Errorf("config search.fallback_origin %q has no coordinates", fb)
		}
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DESTRADAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("AMADEUS_CLIENT_ID"); v != "" {
		cfg.Providers.Amadeus.ClientID = v
	}
	if v := os.Getenv("AMADEUS_CLIENT_SECRET"); v != "" {
		cfg.Providers.Amadeus.ClientSecret = v
	}
	if v := os.Getenv("OPENWEATHER_API_KEY"); v != "" {
		cfg.Providers.OpenWeather.APIKey = v
	}
	if v := os.Getenv("YELP_API_KEY"); v != "" {
		cfg.Providers.Yelp.APIKey = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.Export.MinIO.Endpoint = v
		cfg.Export.MinIO.Enabled = true
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.Export.MinIO.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.Export.MinIO.SecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.Export.MinIO.Bucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" || v == "1" {
		cfg.Export.MinIO.UseSSL = true
	}
}

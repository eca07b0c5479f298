package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
search:
  origin: LAX
  candidates: [CUN, HNL]
weights:
  cost: 0.5
prefs:
  target_temp_c: 28
coordinates:
  OPO:
    lat: 41.2481
    lon: -8.6814
providers:
  feeds:
    enabled: true
    feeds:
      - name: porto
        url: https://example.com/porto.xml
        lat: 41.15
        lon: -8.61
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "LAX", cfg.Search.Origin)
	assert.Equal(t, []string{"CUN", "HNL"}, cfg.Search.Candidates)
	assert.Equal(t, "USD", cfg.Search.Currency, "unset fields keep defaults")
	assert.Equal(t, 0.5, cfg.Weights.Cost)
	assert.Equal(t, 0.30, cfg.Weights.Weather)
	assert.Equal(t, 28.0, cfg.Prefs.TargetTempC)
	assert.Equal(t, 6.0, cfg.Prefs.TempToleranceC)
	assert.Equal(t, 41.2481, cfg.Coordinates["OPO"].Lat)
	require.Len(t, cfg.Providers.Feeds.Feeds, 1)
	assert.Equal(t, "porto", cfg.Providers.Feeds.Feeds[0].Name)
	assert.Equal(t, 50.0, cfg.Providers.Feeds.RadiusKM)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DESTRADAR_DB_PATH", "/tmp/x.db")
	t.Setenv("AMADEUS_CLIENT_ID", "id")
	t.Setenv("AMADEUS_CLIENT_SECRET", "secret")
	t.Setenv("OPENWEATHER_API_KEY", "ow")
	t.Setenv("YELP_API_KEY", "yelp")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.test/x")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, "id", cfg.Providers.Amadeus.ClientID)
	assert.Equal(t, "secret", cfg.Providers.Amadeus.ClientSecret)
	assert.Equal(t, "ow", cfg.Providers.OpenWeather.APIKey)
	assert.Equal(t, "yelp", cfg.Providers.Yelp.APIKey)
	assert.True(t, cfg.Alerts.Slack.Enabled)
	assert.True(t, cfg.Export.MinIO.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"negative weight":  "weights:\n  cost: -0.1\n",
		"bad interval":     "schedule:\n  watch_interval: often\n",
		"bad timeout":      "providers:\n  timeout: soon\n",
		"malformed yaml":   "search: [\n",
		"negative length":  "search:\n  trip_length_days: -2\n",
		"unknown fallback": "search:\n  fallback_origin: QQQ\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestScheduleAndTimeoutFallbacks(t *testing.T) {
	assert.Equal(t, 6*time.Hour, ScheduleConfig{}.ParseWatchInterval())
	assert.Equal(t, 90*time.Minute, ScheduleConfig{WatchInterval: "90m"}.ParseWatchInterval())
	assert.Equal(t, 30*time.Second, ProvidersConfig{Timeout: "-1s"}.ParseTimeout())
	assert.Equal(t, 3, ProvidersConfig{MaxRetries: 3}.Backoff().MaxRetries)
	assert.Zero(t, Default().Providers.Backoff().MaxRetries, "failed fetches fall back without retrying by default")
}

func TestSearchDates(t *testing.T) {
	s := SearchConfig{TripOffsetDays: 30, TripLengthDays: 7}
	start, end := s.Dates(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-11-17", start)
	assert.Equal(t, "2026-11-24", end)
}

func TestFallbackOriginFromCoordinates(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
search:
  fallback_origin: OPO
coordinates:
  OPO:
    lat: 41.2481
    lon: -8.6814
`))
	require.NoError(t, err)
	assert.Equal(t, "OPO", cfg.Search.FallbackOrigin)
}

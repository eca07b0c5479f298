package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/destradar/pkg/rank"
)

func TestSuitability(t *testing.T) {
	prefs := rank.DefaultPrefs()

	tests := []struct {
		name  string
		temps []float64
		rains []float64
		want  float64
	}{
		{"ideal", []float64{24, 24}, []float64{0, 0}, 1},
		{"too hot saturates temp penalty", []float64{36}, []float64{0}, 0.4},
		{"wet saturates rain penalty", []float64{24}, []float64{5}, 0.6},
		{"both saturated", []float64{0}, []float64{10}, 0},
		{"half temp penalty", []float64{27}, []float64{0}, 0.7},
		{"empty forecast", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Suitability(tt.temps, tt.rains, prefs), 1e-9)
		})
	}
}

func TestSuitabilityToleranceFloors(t *testing.T) {
	prefs := rank.Prefs{TargetTempC: 20, TempToleranceC: 0, RainToleranceMM: 0}

	// tolerance floors are 1 °C and 0.1 mm
	assert.InDelta(t, 1-0.6*0.5-0.4*0.5, Suitability([]float64{20.5}, []float64{0.05}, prefs), 1e-9)
}

func TestOpenWeatherScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("appid"))
		assert.Equal(t, "25.7617", r.URL.Query().Get("lat"))
		_, _ = w.Write([]byte(`{"list":[
			{"main":{"temp":297.15},"rain":{"3h":1.5}},
			{"main":{}}
		]}`))
	}))
	defer srv.Close()

	ow := NewOpenWeather("key", srv.URL, 0, Backoff{})
	score, err := ow.WeatherScore(context.Background(), 25.7617, -80.1918, rank.DefaultPrefs())
	require.NoError(t, err)

	// mean 22 °C against 24±6, mean rain 0.75 mm against 3 mm
	assert.InDelta(t, 1-0.6*(2.0/6.0)-0.4*0.25, score, 1e-9)
}

func TestOpenWeatherEmptyForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"list":[]}`))
	}))
	defer srv.Close()

	score, err := NewOpenWeather("key", srv.URL, 0, Backoff{}).WeatherScore(context.Background(), 0, 0, rank.DefaultPrefs())
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestOpenWeatherNotConfigured(t *testing.T) {
	_, err := NewOpenWeather("", "", 0, Backoff{}).WeatherScore(context.Background(), 0, 0, rank.DefaultPrefs())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

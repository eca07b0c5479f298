package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/elonfeng/destradar/pkg/rank"
)

// DefaultOpenWeatherURL is the 5 day / 3 hour forecast endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/forecast"

// defaultKelvin stands in for forecast entries without a temperature (20 °C).
const defaultKelvin = 293.15

// OpenWeather rates forecast suitability against traveller preferences.
type OpenWeather struct {
	http    *resilientClient
	apiKey  string
	baseURL string
}

// NewOpenWeather creates an OpenWeather adapter. An empty key makes every
// call return ErrNotConfigured.
func NewOpenWeather(apiKey, baseURL string, timeout time.Duration, backoff Backoff) *OpenWeather {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenWeather{
		http:    newResilientClient("openweather", &http.Client{Timeout: timeout}, backoff),
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

type forecastResponse struct {
	List []struct {
		Main struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		Rain map[string]float64 `json:"rain"`
	} `json:"list"`
}

// WeatherScore fetches the forecast at lat/lon and scores it with Suitability.
func (o *OpenWeather) WeatherScore(ctx context.Context, lat, lon float64, prefs rank.Prefs) (float64, error) {
	if o.apiKey == "" {
		return 0, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("appid", o.apiKey)
	reqURL := o.baseURL + "?" + params.Encode()

	resp, err := o.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return 0, fmt.Errorf("fetch forecast: %w", err)
	}
	defer resp.Body.Close()

	var fc forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return 0, fmt.Errorf("decode forecast: %w", err)
	}

	tempsC := make([]float64, 0, len(fc.List))
	rains := make([]float64, 0, len(fc.List))
	for _, it := range fc.List {
		k := defaultKelvin
		if it.Main.Temp != nil {
			k = *it.Main.Temp
		}
		tempsC = append(tempsC, k-273.15)
		rains = append(rains, it.Rain["3h"])
	}
	return Suitability(tempsC, rains, prefs), nil
}

// Suitability scores a forecast series in [0,1]. Temperature distance from
// the target weighs 0.6 and mean rainfall 0.4; an empty series scores 0.
func Suitability(tempsC, rainsMM []float64, prefs rank.Prefs) float64 {
	if len(tempsC) == 0 {
		return 0
	}
	avgTemp := mean(tempsC)
	avgRain := mean(rainsMM)

	tempPenalty := math.Min(1, math.Abs(avgTemp-prefs.TargetTempC)/math.Max(1, prefs.TempToleranceC))
	rainPenalty := math.Min(1, avgRain/math.Max(0.1, prefs.RainToleranceMM))
	return math.Max(0, 1-0.6*tempPenalty-0.4*rainPenalty)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAmadeusServer(t *testing.T, flights, hotels any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/security/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "id", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":1799}`))
	})
	mux.HandleFunc("GET /v2/shopping/flight-offers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "JFK", r.URL.Query().Get("originLocationCode"))
		assert.Equal(t, "MIA", r.URL.Query().Get("destinationLocationCode"))
		assert.Equal(t, "2026-11-08", r.URL.Query().Get("returnDate"))
		_ = json.NewEncoder(w).Encode(flights)
	})
	mux.HandleFunc("GET /v3/shopping/hotel-offers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "MIA", r.URL.Query().Get("cityCode"))
		_ = json.NewEncoder(w).Encode(hotels)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func flightOffers(totals ...string) map[string]any {
	var data []map[string]any
	for _, v := range totals {
		data = append(data, map[string]any{"price": map[string]any{"grandTotal": v}})
	}
	return map[string]any{"data": data}
}

func TestAmadeusFlightCostCheapestOffer(t *testing.T) {
	srv := newAmadeusServer(t, flightOffers("512.40", "430.10", "n/a", "-5"), nil)
	a := NewAmadeus(AmadeusConfig{ClientID: "id", ClientSecret: "secret", BaseURL: srv.URL})

	cost, err := a.FlightCost(context.Background(), "JFK", "MIA", "2026-11-01", "2026-11-08", "USD")
	require.NoError(t, err)
	assert.Equal(t, 430.10, cost)
}

func TestAmadeusFlightCostNoOffers(t *testing.T) {
	srv := newAmadeusServer(t, flightOffers(), nil)
	a := NewAmadeus(AmadeusConfig{ClientID: "id", ClientSecret: "secret", BaseURL: srv.URL})

	_, err := a.FlightCost(context.Background(), "JFK", "MIA", "2026-11-01", "2026-11-08", "USD")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestAmadeusHotelCostMean(t *testing.T) {
	hotels := map[string]any{"data": []map[string]any{
		{"offers": []map[string]any{
			{"price": map[string]any{"total": "100.00"}},
			{"price": map[string]any{"total": "200.00"}},
		}},
		{"offers": []map[string]any{
			{"price": map[string]any{"total": "bogus"}},
			{"price": map[string]any{"total": "150"}},
		}},
	}}
	srv := newAmadeusServer(t, nil, hotels)
	a := NewAmadeus(AmadeusConfig{ClientID: "id", ClientSecret: "secret", BaseURL: srv.URL})

	cost, err := a.HotelCost(context.Background(), "MIA", "2026-11-01", "2026-11-08", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 150.0, cost, 1e-9)
}

func TestAmadeusNotConfigured(t *testing.T) {
	a := NewAmadeus(AmadeusConfig{})

	_, err := a.FlightCost(context.Background(), "JFK", "MIA", "2026-11-01", "2026-11-08", "USD")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = a.HotelCost(context.Background(), "MIA", "2026-11-01", "2026-11-08", "USD")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

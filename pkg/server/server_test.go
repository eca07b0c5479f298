package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/destradar/internal/config"
	"github.com/elonfeng/destradar/internal/store"
	"github.com/elonfeng/destradar/pkg/geo"
	"github.com/elonfeng/destradar/pkg/rank"
)

type fares map[string]float64

func (f fares) FlightCost(_ context.Context, _, dest, _, _, _ string) (float64, error) {
	v, ok := f[dest]
	if !ok {
		return 0, errors.New("no fare")
	}
	return v, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.SQLiteStore) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	agg := rank.NewAggregator(rank.Sources{Flights: fares{"MIA": 200, "LAX": 400}}, geo.NewTable(nil))
	defaults := Defaults{
		Search: config.SearchConfig{
			Origin:         "JFK",
			Candidates:     []string{"MIA", "LAX"},
			Currency:       "USD",
			TripOffsetDays: 30,
			TripLengthDays: 7,
		},
		Prefs:   rank.DefaultPrefs(),
		Weights: rank.Weights{Cost: 1},
	}
	srv := New(rank.NewEngine(agg, nil), st, defaults, 0, nil)
	srv.now = func() time.Time { return time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC) }

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

type rankResponse struct {
	RunID   int64         `json:"run_id"`
	Request rank.Request  `json:"request"`
	Data    []rank.Ranked `json:"data"`
	Count   int           `json:"count"`
	Dropped []string      `json:"dropped"`
}

func postRank(t *testing.T, ts *httptest.Server, body string) (*http.Response, rankResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/rank", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out rankResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRankUsesDefaults(t *testing.T) {
	ts, st := newTestServer(t)

	resp, out := postRank(t, ts, `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "JFK", out.Request.Origin)
	assert.Equal(t, "2026-11-17", out.Request.StartDate)
	assert.Equal(t, "2026-11-24", out.Request.EndDate)
	require.Len(t, out.Data, 2)
	assert.Equal(t, "MIA", out.Data[0].Destination, "cost-only weights favour the cheaper fare")
	assert.Empty(t, out.Dropped)

	run, err := st.GetRun(context.Background(), out.RunID)
	require.NoError(t, err)
	assert.Equal(t, "api", run.Trigger)
	assert.Len(t, run.Ranked, 2)
}

func TestRankExplicitRequest(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, out := postRank(t, ts, `{
		"origin": "lax",
		"start_date": "2026-12-01",
		"end_date": "2026-12-05",
		"candidates": ["mia", "QQQ", "LAX"],
		"weights": {"cost": 0, "weather": 0, "activity": 0, "travel": 1},
		"prefs": {"target_temp_c": 30}
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "LAX", out.Request.Origin)
	assert.Equal(t, 30.0, out.Request.Prefs.TargetTempC)
	assert.Equal(t, 6.0, out.Request.Prefs.TempToleranceC, "unset prefs keep their defaults")
	assert.Equal(t, []string{"QQQ"}, out.Dropped)
	require.Len(t, out.Data, 2)
	assert.Equal(t, "LAX", out.Data[0].Destination, "travel-only weights favour the shortest trip")
}

func TestRankCustomCategoriesLeaveDefaultsIntact(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, out := postRank(t, ts, `{"candidates": ["MIA"], "prefs": {"categories": ["nightlife"]}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"nightlife"}, out.Request.Prefs.Categories)

	resp, out = postRank(t, ts, `{"candidates": ["MIA"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, rank.DefaultPrefs().Categories, out.Request.Prefs.Categories)
}

func TestRankRejectsInvalidBodies(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := map[string]string{
		"malformed json":  `{"origin":`,
		"unknown field":   `{"destinations": ["MIA"]}`,
		"bad date":        `{"start_date": "01/11/2026"}`,
		"bad code":        `{"candidates": ["M1A"]}`,
		"end before":      `{"start_date": "2026-12-05", "end_date": "2026-12-01"}`,
		"negative weight": `{"weights": {"cost": -1}}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			resp, _ := postRank(t, ts, body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestRunsEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	_, first := postRank(t, ts, `{}`)
	_, second := postRank(t, ts, `{"candidates": ["LAX"]}`)

	resp, err := http.Get(ts.URL + "/api/v1/runs?limit=1")
	require.NoError(t, err)
	var list struct {
		Data  []store.Run `json:"data"`
		Count int         `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Equal(t, 1, list.Count)
	assert.Equal(t, second.RunID, list.Data[0].ID)

	resp, err = http.Get(fmt.Sprintf("%s/api/v1/runs/%d", ts.URL, first.RunID))
	require.NoError(t, err)
	var run store.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	resp.Body.Close()
	assert.Equal(t, first.RunID, run.ID)
	assert.Len(t, run.Ranked, 2)

	resp, err = http.Get(fmt.Sprintf("%s/api/v1/runs/%d/csv", ts.URL, first.RunID))
	require.NoError(t, err)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	rows, err := csv.NewReader(resp.Body).ReadAll()
	resp.Body.Close()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, rank.Columns, rows[0])
}

func TestRunNotFoundAndBadInput(t *testing.T) {
	ts, _ := newTestServer(t)

	for path, want := range map[string]int{
		"/api/v1/runs/999":     http.StatusNotFound,
		"/api/v1/runs/999/csv": http.StatusNotFound,
		"/api/v1/runs/abc":     http.StatusBadRequest,
		"/api/v1/runs?limit=0": http.StatusBadRequest,
	} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	postRank(t, ts, `{}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}

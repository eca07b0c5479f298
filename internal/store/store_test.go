package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/destradar/pkg/rank"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(origin string, dests ...string) *rank.Result {
	var ranked []rank.Ranked
	for i, d := range dests {
		c := rank.Candidate{
			Origin: origin, Destination: d, StartDate: "2026-11-01", EndDate: "2026-11-08", Currency: "USD",
			FlightCost: rank.Known(300 + float64(i)*100), HotelCost: rank.Unavailable(),
			WeatherScore: 0.5, ActivityScore: 0.25, TravelTimeHours: 4, Lat: 1, Lon: 2,
		}
		c.TotalCost = rank.Sum(c.FlightCost, c.HotelCost)
		if i == 0 {
			c.Fallbacks = []rank.Signal{rank.SignalHotel}
		}
		ranked = append(ranked, rank.Ranked{
			Feature: rank.Feature{Candidate: c, NormTotalCost: float64(i), NormTravelTime: 0.5},
			Score:   1 - float64(i)*0.1,
		})
	}
	return &rank.Result{
		Request: rank.Request{Origin: origin, StartDate: "2026-11-01", EndDate: "2026-11-08", Currency: "USD"},
		Weights: rank.DefaultWeights().Normalize(),
		Ranked:  ranked,
		Dropped: []string{"XXX"},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveRun(ctx, sampleResult("JFK", "MIA", "LAX"), "cli")
	require.NoError(t, err)
	require.Positive(t, id)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "JFK", run.Origin)
	assert.Equal(t, "cli", run.Trigger)
	assert.Equal(t, 2, run.CandidateCount)
	assert.Equal(t, []string{"XXX"}, run.Dropped)
	assert.InDelta(t, 0.35, run.Weights.Cost, 1e-9)
	assert.False(t, run.CreatedAt.IsZero())

	require.Len(t, run.Ranked, 2)
	mia := run.Ranked[0]
	assert.Equal(t, "MIA", mia.Destination)
	flight, ok := mia.FlightCost.Value()
	require.True(t, ok)
	assert.Equal(t, 300.0, flight)
	assert.False(t, mia.HotelCost.Available(), "unavailable cost survives the round trip")
	assert.Equal(t, []rank.Signal{rank.SignalHotel}, mia.Fallbacks)
	assert.Equal(t, 1.0, mia.Score)

	assert.Equal(t, "LAX", run.Ranked[1].Destination)
	assert.Nil(t, run.Ranked[1].Fallbacks)
	assert.Equal(t, 1.0, run.Ranked[1].NormTotalCost)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.LatestRun(context.Background(), "JFK", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndLatestRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveRun(ctx, sampleResult("JFK", "MIA"), "cli")
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, sampleResult("LAX", "HNL"), "api")
	require.NoError(t, err)
	third, err := s.SaveRun(ctx, sampleResult("JFK", "LIS", "BCN"), "schedule")
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, third, runs[0].ID, "newest first")
	assert.Equal(t, "LAX", runs[1].Origin)
	assert.Empty(t, runs[0].Ranked, "listing does not load results")

	latest, err := s.LatestRun(ctx, "JFK", "")
	require.NoError(t, err)
	assert.Equal(t, third, latest.ID)
	top, ok := latest.Result().Top()
	require.True(t, ok)
	assert.Equal(t, "LIS", top.Destination)
}

func TestLatestRunByTrigger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	scheduled, err := s.SaveRun(ctx, sampleResult("JFK", "MIA"), "schedule")
	require.NoError(t, err)
	adhoc, err := s.SaveRun(ctx, sampleResult("JFK", "HNL"), "api")
	require.NoError(t, err)

	latest, err := s.LatestRun(ctx, "JFK", "schedule")
	require.NoError(t, err)
	assert.Equal(t, scheduled, latest.ID)

	latest, err = s.LatestRun(ctx, "JFK", "")
	require.NoError(t, err)
	assert.Equal(t, adhoc, latest.ID)

	_, err = s.LatestRun(ctx, "JFK", "cli")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveEmptyRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res := &rank.Result{Request: rank.Request{Origin: "JFK", StartDate: "2026-11-01", EndDate: "2026-11-08", Currency: "USD"}}
	id, err := s.SaveRun(ctx, res, "cli")
	require.NoError(t, err)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, run.Ranked)
	assert.Empty(t, run.Dropped)
	_, ok := run.Result().Top()
	assert.False(t, ok)
}

func TestCorruptColumnsSurfaceErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveRun(ctx, sampleResult("JFK", "MIA"), "cli")
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, "UPDATE results SET fallbacks = 'not json' WHERE run_id = ?", id)
	require.NoError(t, err)
	_, err = s.GetRun(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode run")

	_, err = s.db.ExecContext(ctx, "UPDATE runs SET weights = '{' WHERE id = ?", id)
	require.NoError(t, err)
	_, err = s.ListRuns(ctx, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights")
}

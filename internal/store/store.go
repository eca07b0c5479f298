package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/destradar/pkg/rank"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Run is a persisted ranking run. Ranked is only populated by GetRun and
// LatestRun.
type Run struct {
	ID             int64         `db:"id" json:"id"`
	Origin         string        `db:"origin" json:"origin"`
	StartDate      string        `db:"start_date" json:"start_date"`
	EndDate        string        `db:"end_date" json:"end_date"`
	Currency       string        `db:"currency" json:"currency"`
	WeightsJSON    string        `db:"weights" json:"-"`
	Weights        rank.Weights  `db:"-" json:"weights"`
	DroppedJSON    string        `db:"dropped" json:"-"`
	Dropped        []string      `db:"-" json:"dropped,omitempty"`
	CandidateCount int           `db:"candidate_count" json:"candidate_count"`
	Trigger        string        `db:"triggered_by" json:"triggered_by"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	Ranked         []rank.Ranked `db:"-" json:"ranked,omitempty"`
}

// Result rebuilds the pipeline result the run was saved from.
func (r *Run) Result() *rank.Result {
	return &rank.Result{
		Request: rank.Request{
			Origin:    r.Origin,
			StartDate: r.StartDate,
			EndDate:   r.EndDate,
			Currency:  r.Currency,
		},
		Weights: r.Weights,
		Ranked:  r.Ranked,
		Dropped: r.Dropped,
	}
}

// resultRow is one ranked record as stored. Costs are nullable so an
// unavailable cost stays distinguishable from zero.
type resultRow struct {
	RunID           int64           `db:"run_id"`
	Position        int             `db:"position"`
	Origin          string          `db:"origin"`
	Destination     string          `db:"destination"`
	StartDate       string          `db:"start_date"`
	EndDate         string          `db:"end_date"`
	Currency        string          `db:"currency"`
	FlightCost      sql.NullFloat64 `db:"flight_cost"`
	HotelCost       sql.NullFloat64 `db:"avg_hotel_cost"`
	TotalCost       sql.NullFloat64 `db:"total_cost"`
	WeatherScore    float64         `db:"weather_score"`
	ActivityScore   float64         `db:"activity_score"`
	TravelTimeHours float64         `db:"travel_time_hours"`
	Lat             float64         `db:"lat"`
	Lon             float64         `db:"lon"`
	NormTotalCost   float64         `db:"norm_total_cost"`
	NormTravelTime  float64         `db:"norm_travel_time"`
	Score           float64         `db:"score"`
	Fallbacks       string          `db:"fallbacks"`
}

// Store is the persistence interface.
type Store interface {
	SaveRun(ctx context.Context, res *rank.Result, trigger string) (int64, error)
	GetRun(ctx context.Context, id int64) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	LatestRun(ctx context.Context, origin, trigger string) (*Run, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// a single writer avoids SQLITE_BUSY between the server and the watch job
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun stores a result and its ranked records in one transaction and
// returns the new run id.
func (s *SQLiteStore) SaveRun(ctx context.Context, res *rank.Result, trigger string) (int64, error) {
	weightsJSON, err := json.Marshal(res.Weights)
	if err != nil {
		return 0, fmt.Errorf("encode weights: %w", err)
	}
	dropped := res.Dropped
	if dropped == nil {
		dropped = []string{}
	}
	droppedJSON, _ := json.Marshal(dropped)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	out, err := tx.ExecContext(ctx, `
		INSERT INTO runs (origin, start_date, end_date, currency, weights, dropped, candidate_count, triggered_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.Request.Origin, res.Request.StartDate, res.Request.EndDate, res.Request.Currency,
		string(weightsJSON), string(droppedJSON), len(res.Ranked), trigger, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := out.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert run id: %w", err)
	}

	for i, r := range res.Ranked {
		row := toRow(runID, i, r)
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO results (run_id, position, origin, destination, start_date, end_date, currency,
				flight_cost, avg_hotel_cost, total_cost, weather_score, activity_score, travel_time_hours,
				lat, lon, norm_total_cost, norm_travel_time, score, fallbacks)
			VALUES (:run_id, :position, :origin, :destination, :start_date, :end_date, :currency,
				:flight_cost, :avg_hotel_cost, :total_cost, :weather_score, :activity_score, :travel_time_hours,
				:lat, :lon, :norm_total_cost, :norm_travel_time, :score, :fallbacks)
		`, row)
		if err != nil {
			return 0, fmt.Errorf("insert result %s: %w", r.Destination, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	return s.withResults(ctx, &run)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, "SELECT * FROM runs ORDER BY id DESC LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	for i := range runs {
		if err := decodeRun(&runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// LatestRun returns the most recent run for origin started by trigger. An
// empty trigger matches runs from any trigger.
func (s *SQLiteStore) LatestRun(ctx context.Context, origin, trigger string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, `
		SELECT * FROM runs
		WHERE origin = ? AND (? = '' OR triggered_by = ?)
		ORDER BY id DESC LIMIT 1
	`, origin, trigger, trigger)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run %s: %w", origin, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest run %s: %w", origin, err)
	}
	return s.withResults(ctx, &run)
}

func (s *SQLiteStore) withResults(ctx context.Context, run *Run) (*Run, error) {
	if err := decodeRun(run); err != nil {
		return nil, err
	}

	var rows []resultRow
	err := s.db.SelectContext(ctx, &rows, "SELECT * FROM results WHERE run_id = ? ORDER BY position", run.ID)
	if err != nil {
		return nil, fmt.Errorf("get results %d: %w", run.ID, err)
	}

	run.Ranked = make([]rank.Ranked, 0, len(rows))
	for _, row := range rows {
		r, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode run %d: %w", run.ID, err)
		}
		run.Ranked = append(run.Ranked, r)
	}
	return run, nil
}

func decodeRun(run *Run) error {
	if err := json.Unmarshal([]byte(run.WeightsJSON), &run.Weights); err != nil {
		return fmt.Errorf("decode run %d weights: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(run.DroppedJSON), &run.Dropped); err != nil {
		return fmt.Errorf("decode run %d dropped: %w", run.ID, err)
	}
	return nil
}

func toRow(runID int64, pos int, r rank.Ranked) resultRow {
	fallbacks := r.Fallbacks
	if fallbacks == nil {
		fallbacks = []rank.Signal{}
	}
	fallbacksJSON, _ := json.Marshal(fallbacks)

	return resultRow{
		RunID:           runID,
		Position:        pos,
		Origin:          r.Origin,
		Destination:     r.Destination,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		Currency:        r.Currency,
		FlightCost:      nullCost(r.FlightCost),
		HotelCost:       nullCost(r.HotelCost),
		TotalCost:       nullCost(r.TotalCost),
		WeatherScore:    r.WeatherScore,
		ActivityScore:   r.ActivityScore,
		TravelTimeHours: r.TravelTimeHours,
		Lat:             r.Lat,
		Lon:             r.Lon,
		NormTotalCost:   r.NormTotalCost,
		NormTravelTime:  r.NormTravelTime,
		Score:           r.Score,
		Fallbacks:       string(fallbacksJSON),
	}
}

func fromRow(row resultRow) (rank.Ranked, error) {
	var fallbacks []rank.Signal
	if err := json.Unmarshal([]byte(row.Fallbacks), &fallbacks); err != nil {
		return rank.Ranked{}, fmt.Errorf("result %s fallbacks: %w", row.Destination, err)
	}
	if len(fallbacks) == 0 {
		fallbacks = nil
	}

	return rank.Ranked{
		Feature: rank.Feature{
			Candidate: rank.Candidate{
				Origin:          row.Origin,
				Destination:     row.Destination,
				StartDate:       row.StartDate,
				EndDate:         row.EndDate,
				Currency:        row.Currency,
				FlightCost:      costOf(row.FlightCost),
				HotelCost:       costOf(row.HotelCost),
				TotalCost:       costOf(row.TotalCost),
				WeatherScore:    row.WeatherScore,
				ActivityScore:   row.ActivityScore,
				TravelTimeHours: row.TravelTimeHours,
				Lat:             row.Lat,
				Lon:             row.Lon,
				Fallbacks:       fallbacks,
			},
			NormTotalCost:  row.NormTotalCost,
			NormTravelTime: row.NormTravelTime,
		},
		Score: row.Score,
	}, nil
}

func nullCost(c rank.Cost) sql.NullFloat64 {
	v, ok := c.Value()
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func costOf(n sql.NullFloat64) rank.Cost {
	if !n.Valid {
		return rank.Unavailable()
	}
	return rank.Known(n.Float64)
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/elonfeng/destradar/internal/config"
	"github.com/elonfeng/destradar/internal/metrics"
	"github.com/elonfeng/destradar/internal/store"
	"github.com/elonfeng/destradar/pkg/alert"
	"github.com/elonfeng/destradar/pkg/rank"
)

// Ranker runs the ranking pipeline.
type Ranker interface {
	Run(ctx context.Context, req rank.Request, w rank.Weights) (*rank.Result, error)
}

// Watch is the search re-ranked on every tick. Trip dates are recomputed
// relative to the tick time.
type Watch struct {
	Search  config.SearchConfig
	Prefs   rank.Prefs
	Weights rank.Weights
}

// Request builds the ranking request for a tick at now.
func (w Watch) Request(now time.Time) rank.Request {
	start, end := w.Search.Dates(now)
	return rank.Request{
		Origin:       w.Search.Origin,
		StartDate:    start,
		EndDate:      end,
		Destinations: w.Search.Candidates,
		Currency:     w.Search.Currency,
		Prefs:        w.Prefs,
	}
}

// Outcome describes one tick.
type Outcome struct {
	RunID    int64
	Top      string
	Previous string
	Changed  bool
	Alerted  bool
}

// Scheduler periodically re-ranks the watch search, persists each run and
// notifies when the top destination changes.
type Scheduler struct {
	cron     *gocron.Scheduler
	ranker   Ranker
	store    store.Store
	alertMgr *alert.Manager
	watch    Watch
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a new scheduler.
func New(r Ranker, s store.Store, alertMgr *alert.Manager, watch Watch, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if alertMgr == nil {
		alertMgr = alert.NewManager(nil)
	}
	return &Scheduler{
		cron:     gocron.NewScheduler(time.UTC),
		ranker:   r,
		store:    s,
		alertMgr: alertMgr,
		watch:    watch,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules the watch job and starts the underlying scheduler. The
// first tick runs immediately; overlapping ticks are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.Every(s.interval).SingletonMode().Do(func() {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("watch tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule watch job: %w", err)
	}

	s.cron.StartAsync()
	s.logger.Info("scheduler running",
		zap.String("origin", s.watch.Search.Origin),
		zap.Strings("candidates", s.watch.Search.Candidates),
		zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

// Tick ranks the watch search once, stores the run and alerts when the top
// destination differs from the previous scheduled run for the same origin.
// The first scheduled run for an origin only records a baseline.
func (s *Scheduler) Tick(ctx context.Context) (*Outcome, error) {
	started := time.Now()
	res, err := s.ranker.Run(ctx, s.watch.Request(s.now()), s.watch.Weights)
	metrics.ObserveRun(metrics.TriggerSchedule, started, res, err)
	if err != nil {
		return nil, fmt.Errorf("rank watch search: %w", err)
	}

	var (
		previous    string
		hasPrevious bool
	)
	// ad hoc cli and api runs use other candidate sets and never become the baseline
	prev, err := s.store.LatestRun(ctx, res.Request.Origin, metrics.TriggerSchedule)
	switch {
	case err == nil:
		hasPrevious = true
		if top, ok := prev.Result().Top(); ok {
			previous = top.Destination
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("load previous run: %w", err)
	}

	runID, err := s.store.SaveRun(ctx, res, metrics.TriggerSchedule)
	if err != nil {
		return nil, fmt.Errorf("save watch run: %w", err)
	}

	out := &Outcome{RunID: runID, Previous: previous}
	if top, ok := res.Top(); ok {
		out.Top = top.Destination
	}
	out.Changed = hasPrevious && out.Top != previous

	s.logger.Info("watch run stored",
		zap.Int64("run_id", runID),
		zap.String("top", out.Top),
		zap.String("previous", previous),
		zap.Bool("changed", out.Changed))

	if !out.Changed || !s.alertMgr.HasNotifiers() {
		return out, nil
	}

	err = s.alertMgr.Broadcast(ctx, alert.NewTopChange(res, runID, previous))
	metrics.ObserveAlert(err)
	if err != nil {
		s.logger.Warn("alert delivery failed", zap.Int64("run_id", runID), zap.Error(err))
		return out, nil
	}
	out.Alerted = true
	return out, nil
}

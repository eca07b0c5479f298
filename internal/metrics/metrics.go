// Package metrics exposes Prometheus instruments for ranking runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/elonfeng/destradar/pkg/rank"
)

var (
	RankRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "destradar_rank_runs_total",
			Help: "Total number of ranking runs by trigger and outcome",
		},
		[]string{"trigger", "status"},
	)

	RankDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "destradar_rank_duration_seconds",
			Help:    "Duration of ranking runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"trigger"},
	)

	SignalFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "destradar_signal_fallbacks_total",
			Help: "Signals that resolved to their fallback value",
		},
		[]string{"signal"},
	)

	CandidatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "destradar_candidates_dropped_total",
			Help: "Candidates dropped for unknown coordinates",
		},
	)

	RankedCandidates = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "destradar_ranked_candidates",
			Help: "Number of candidates in the latest run per origin",
		},
		[]string{"origin"},
	)

	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "destradar_alerts_total",
			Help: "Top destination change notifications by outcome",
		},
		[]string{"status"},
	)
)

// Trigger values label what started a run.
const (
	TriggerCLI      = "cli"
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
)

// Observer records aggregator fallbacks and drops. It satisfies rank.Observer.
type Observer struct{}

func (Observer) SignalFallback(s rank.Signal, _ string, _ error) {
	SignalFallbacks.WithLabelValues(string(s)).Inc()
}

func (Observer) CandidateDropped(string) {
	CandidatesDropped.Inc()
}

// ObserveRun records the outcome and latency of one ranking run.
func ObserveRun(trigger string, started time.Time, res *rank.Result, err error) {
	RankDuration.WithLabelValues(trigger).Observe(time.Since(started).Seconds())
	if err != nil {
		RankRuns.WithLabelValues(trigger, "error").Inc()
		return
	}
	RankRuns.WithLabelValues(trigger, "ok").Inc()
	if res != nil {
		RankedCandidates.WithLabelValues(res.Request.Origin).Set(float64(len(res.Ranked)))
	}
}

// ObserveAlert counts a notification attempt.
func ObserveAlert(err error) {
	if err != nil {
		AlertsSent.WithLabelValues("error").Inc()
		return
	}
	AlertsSent.WithLabelValues("ok").Inc()
}

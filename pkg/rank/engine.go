// Package rank turns raw destination signals into a weighted, deterministic
// ranking. The pipeline is Aggregate -> BuildFeatures -> Rank; every stage
// degrades on missing data instead of failing.
package rank

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Engine runs the full ranking pipeline.
type Engine struct {
	agg    *Aggregator
	logger *zap.Logger
}

// NewEngine creates an engine around an aggregator.
func NewEngine(agg *Aggregator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{agg: agg, logger: logger}
}

// Run validates req, aggregates signals, normalises features and ranks them.
// Only a malformed request or weights produce an error; an empty candidate
// set yields an empty ranking.
func (e *Engine) Run(ctx context.Context, req Request, w Weights) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	start := time.Now()
	candidates, dropped := e.agg.Aggregate(ctx, req)
	ranked := Rank(BuildFeatures(candidates), w)

	e.logger.Info("ranking completed",
		zap.String("origin", req.Origin),
		zap.Int("requested", len(req.Destinations)),
		zap.Int("ranked", len(ranked)),
		zap.Strings("dropped", dropped),
		zap.Duration("duration", time.Since(start)),
	)

	return &Result{
		Request: req,
		Weights: w.Normalize(),
		Ranked:  ranked,
		Dropped: dropped,
	}, nil
}

// Package provider contains the upstream adapters that feed the ranking
// pipeline: flight and hotel prices, weather suitability and activity density.
// Each adapter returns a value or an error; callers decide on fallbacks.
package provider

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNotConfigured is returned by adapters constructed without credentials.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrNoData is returned when the upstream answered but had nothing usable.
	ErrNoData = errors.New("no usable data in response")
)

// parsePrice parses a decimal price string, rejecting negative and non-finite values.
func parsePrice(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

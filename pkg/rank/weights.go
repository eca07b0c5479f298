package rank

import (
	"fmt"
	"math"
)

// WeightEpsilon is the smallest weight total used as a divisor.
const WeightEpsilon = 1e-6

// Weights are the user-facing importance values for the four signals. They
// are kept as entered and only normalised at use time.
type Weights struct {
	Cost     float64 `json:"cost" yaml:"cost"`
	Weather  float64 `json:"weather" yaml:"weather"`
	Activity float64 `json:"activity" yaml:"activity"`
	Travel   float64 `json:"travel" yaml:"travel"`
}

// DefaultWeights returns the stock weighting.
func DefaultWeights() Weights {
	return Weights{Cost: 0.35, Weather: 0.30, Activity: 0.20, Travel: 0.15}
}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"cost", w.Cost}, {"weather", w.Weather}, {"activity", w.Activity}, {"travel", w.Travel},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			return fmt.Errorf("weight %s must be a finite non-negative number, got %v", f.name, f.value)
		}
	}
	return nil
}

// Sum returns the total of the four weights.
func (w Weights) Sum() float64 {
	return w.Cost + w.Weather + w.Activity + w.Travel
}

// Normalize rescales the weights into a convex combination preserving their
// proportions. A total below WeightEpsilon is replaced by WeightEpsilon so the
// result stays finite. Negative and non-finite inputs count as zero.
func (w Weights) Normalize() Weights {
	c, we, a, t := nonNegative(w.Cost), nonNegative(w.Weather), nonNegative(w.Activity), nonNegative(w.Travel)
	total := math.Max(WeightEpsilon, c+we+a+t)
	return Weights{
		Cost:     c / total,
		Weather:  we / total,
		Activity: a / total,
		Travel:   t / total,
	}
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

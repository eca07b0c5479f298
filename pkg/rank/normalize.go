package rank

import "math"

// MinMax rescales values to [0,1] relative to their own minimum and maximum.
// When every value is equal (including a single value) there is no
// discriminating signal and every output is 0.
func MinMax(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	span := hi - lo
	if !(span > 0) || math.IsInf(span, 0) {
		return out
	}
	for i, v := range values {
		out[i] = clamp01((v - lo) / span)
	}
	return out
}

// worstCaseCosts resolves the total cost column for normalisation. Unavailable
// totals take the maximum observed total so missing prices rank as most
// expensive rather than free. If no total is available the column is all
// zeros and normalises to the degenerate case.
func worstCaseCosts(candidates []Candidate) []float64 {
	costs := make([]float64, len(candidates))
	worst := 0.0
	for i, c := range candidates {
		if v, ok := c.TotalCost.Value(); ok {
			costs[i] = v
			worst = math.Max(worst, v)
		}
	}
	for i, c := range candidates {
		if !c.TotalCost.Available() {
			costs[i] = worst
		}
	}
	return costs
}

// BuildFeatures normalises total cost and travel time across the candidate
// set. Weather and activity scores pass through unchanged.
func BuildFeatures(candidates []Candidate) []Feature {
	features := make([]Feature, len(candidates))
	if len(candidates) == 0 {
		return features
	}

	travel := make([]float64, len(candidates))
	for i, c := range candidates {
		travel[i] = c.TravelTimeHours
	}

	normCost := MinMax(worstCaseCosts(candidates))
	normTravel := MinMax(travel)

	for i, c := range candidates {
		features[i] = Feature{
			Candidate:      c,
			NormTotalCost:  normCost[i],
			NormTravelTime: normTravel[i],
		}
	}
	return features
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

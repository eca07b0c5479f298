package rank

import "sort"

// Score combines one feature record with already-normalised weights. Cost and
// travel time are lower-is-better and enter inverted.
func Score(f Feature, w Weights) float64 {
	return w.Cost*(1-f.NormTotalCost) +
		w.Weather*f.WeatherScore +
		w.Activity*f.ActivityScore +
		w.Travel*(1-f.NormTravelTime)
}

// Rank scores every feature with the normalised form of w and orders them by
// descending score. Equal scores keep their input order.
func Rank(features []Feature, w Weights) []Ranked {
	nw := w.Normalize()

	ranked := make([]Ranked, len(features))
	for i, f := range features {
		ranked[i] = Ranked{Feature: f, Score: Score(f, nw)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

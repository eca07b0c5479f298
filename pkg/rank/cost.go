package rank

import (
	"encoding/json"
	"math"
	"strconv"
)

// Cost is a monetary amount that may be unavailable. The zero value is
// unavailable, so an unset cost never reads as "free".
type Cost struct {
	value float64
	ok    bool
}

// Known returns an available cost. Negative, NaN and infinite amounts are not
// valid prices and yield an unavailable cost.
func Known(v float64) Cost {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Cost{}
	}
	return Cost{value: v, ok: true}
}

// Unavailable returns a cost with no data behind it.
func Unavailable() Cost { return Cost{} }

// Value returns the amount and whether it is available.
func (c Cost) Value() (float64, bool) { return c.value, c.ok }

// Available reports whether the cost carries data.
func (c Cost) Available() bool { return c.ok }

// Sum adds costs, treating unavailable parts as contributing nothing. The
// result is unavailable only when every part is unavailable.
func Sum(parts ...Cost) Cost {
	var (
		total float64
		seen  bool
	)
	for _, p := range parts {
		if p.ok {
			total += p.value
			seen = true
		}
	}
	if !seen {
		return Cost{}
	}
	return Cost{value: total, ok: true}
}

// String renders the amount, or an empty string when unavailable.
func (c Cost) String() string {
	if !c.ok {
		return ""
	}
	return strconv.FormatFloat(c.value, 'f', -1, 64)
}

// MarshalJSON renders unavailable costs as null.
func (c Cost) MarshalJSON() ([]byte, error) {
	if !c.ok {
		return []byte("null"), nil
	}
	return json.Marshal(c.value)
}

// UnmarshalJSON accepts a number or null.
func (c *Cost) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*c = Cost{}
		return nil
	}
	*c = Known(*v)
	return nil
}

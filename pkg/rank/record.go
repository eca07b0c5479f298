package rank

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for trip dates.
const DateLayout = "2006-01-02"

// ErrInvalidRequest is returned for malformed ranking requests.
var ErrInvalidRequest = errors.New("invalid request")

// Signal names one per-candidate metric.
type Signal string

const (
	SignalFlight   Signal = "flight"
	SignalHotel    Signal = "hotel"
	SignalWeather  Signal = "weather"
	SignalActivity Signal = "activity"
)

// Prefs are the traveller preferences handed to the weather and activity adapters.
type Prefs struct {
	TargetTempC     float64  `json:"target_temp_c" yaml:"target_temp_c"`
	TempToleranceC  float64  `json:"temp_tolerance" yaml:"temp_tolerance"`
	RainToleranceMM float64  `json:"rain_tolerance_mm" yaml:"rain_tolerance_mm"`
	Categories      []string `json:"categories" yaml:"categories"`
}

// DefaultPrefs returns the stock preferences.
func DefaultPrefs() Prefs {
	return Prefs{
		TargetTempC:     24,
		TempToleranceC:  6,
		RainToleranceMM: 3,
		Categories:      []string{"museums", "hiking", "beaches"},
	}
}

// Request describes one ranking run.
type Request struct {
	Origin       string   `json:"origin"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Destinations []string `json:"destinations"`
	Currency     string   `json:"currency"`
	Prefs        Prefs    `json:"prefs"`
}

// Validate normalises codes in place and checks the request is usable.
// Destination codes are upper-cased, blanks dropped and duplicates collapsed
// keeping the first occurrence.
func (r *Request) Validate() error {
	r.Origin = strings.ToUpper(strings.TrimSpace(r.Origin))
	if r.Origin == "" {
		return fmt.Errorf("%w: origin is required", ErrInvalidRequest)
	}

	start, err := time.Parse(DateLayout, r.StartDate)
	if err != nil {
		return fmt.Errorf("%w: start date %q: %v", ErrInvalidRequest, r.StartDate, err)
	}
	end, err := time.Parse(DateLayout, r.EndDate)
	if err != nil {
		return fmt.Errorf("%w: end date %q: %v", ErrInvalidRequest, r.EndDate, err)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidRequest, r.EndDate, r.StartDate)
	}

	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = "USD"
	}

	seen := make(map[string]bool, len(r.Destinations))
	codes := make([]string, 0, len(r.Destinations))
	for _, d := range r.Destinations {
		code := strings.ToUpper(strings.TrimSpace(d))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	r.Destinations = codes
	return nil
}

// ParseCodes splits a comma-separated list of location codes.
func ParseCodes(s string) []string {
	var codes []string
	for _, part := range strings.Split(s, ",") {
		if code := strings.ToUpper(strings.TrimSpace(part)); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// Candidate is the raw record assembled for one destination.
type Candidate struct {
	Origin          string   `json:"origin"`
	Destination     string   `json:"destination"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	Currency        string   `json:"currency"`
	FlightCost      Cost     `json:"flight_cost"`
	HotelCost       Cost     `json:"avg_hotel_cost"`
	TotalCost       Cost     `json:"total_cost"`
	WeatherScore    float64  `json:"weather_score"`
	ActivityScore   float64  `json:"activity_score"`
	TravelTimeHours float64  `json:"travel_time_hours"`
	Lat             float64  `json:"lat"`
	Lon             float64  `json:"lon"`
	Fallbacks       []Signal `json:"fallbacks,omitempty"`
}

// Feature is a candidate with its set-relative normalised columns.
type Feature struct {
	Candidate
	NormTotalCost  float64 `json:"norm_total_cost"`
	NormTravelTime float64 `json:"norm_travel_time"`
}

// Ranked is a scored feature record.
type Ranked struct {
	Feature
	Score float64 `json:"score"`
}

// Result is the output of one pipeline run.
type Result struct {
	Request Request  `json:"request"`
	Weights Weights  `json:"weights"`
	Ranked  []Ranked `json:"ranked"`
	Dropped []string `json:"dropped,omitempty"`
}

// Top returns the best ranked record, or false for an empty result.
func (r *Result) Top() (Ranked, bool) {
	if r == nil || len(r.Ranked) == 0 {
		return Ranked{}, false
	}
	return r.Ranked[0], true
}

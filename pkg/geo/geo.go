// Package geo resolves location codes to coordinates and estimates travel time
// between them.
package geo

import (
	"math"
	"sort"
	"strings"
)

const (
	earthRadiusKM = 6371.0

	// CruiseSpeedKMH is the assumed average cruising speed used for travel estimates.
	CruiseSpeedKMH = 800.0

	// OverheadHours covers boarding and transfers on every trip.
	OverheadHours = 1.0
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// DefaultCoordinates is the built-in table of known location codes.
var DefaultCoordinates = map[string]Coordinates{
	"JFK": {40.6413, -73.7781},
	"MIA": {25.7617, -80.1918},
	"LAX": {34.0522, -118.2437},
	"LIS": {38.7223, -9.1393},
	"BCN": {41.3874, 2.1686},
	"YYZ": {43.6532, -79.3832},
	"SFO": {37.6213, -122.3790},
	"ORD": {41.9742, -87.9073},
	"CUN": {21.0365, -86.8771},
	"LHR": {51.4700, -0.4543},
	"CDG": {49.0097, 2.5479},
	"FCO": {41.8003, 12.2389},
	"HNL": {21.3187, -157.9225},
	"DEN": {39.8561, -104.6737},
	"SEA": {47.4502, -122.3088},
}

// Table maps upper-case location codes to coordinates.
type Table struct {
	coords map[string]Coordinates
}

// NewTable builds a table from the defaults plus extra entries. Extras override
// defaults with the same code.
func NewTable(extra map[string]Coordinates) *Table {
	coords := make(map[string]Coordinates, len(DefaultCoordinates)+len(extra))
	for code, c := range DefaultCoordinates {
		coords[code] = c
	}
	for code, c := range extra {
		coords[strings.ToUpper(strings.TrimSpace(code))] = c
	}
	return &Table{coords: coords}
}

// Lookup returns the coordinates for code, or false when the code is unknown.
func (t *Table) Lookup(code string) (Coordinates, bool) {
	c, ok := t.coords[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// Codes returns all known codes in sorted order.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.coords))
	for code := range t.coords {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// HaversineKM returns the great-circle distance between a and b in kilometres.
func HaversineKM(a, b Coordinates) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// TravelTimeHours estimates door-to-door hours between two points.
func TravelTimeHours(from, to Coordinates) float64 {
	return HaversineKM(from, to)/CruiseSpeedKMH + OverheadHours
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

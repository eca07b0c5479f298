package rank

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/destradar/pkg/geo"
)

// DefaultFallbackOrigin is used for travel estimates when the origin code has
// no known coordinates.
const DefaultFallbackOrigin = "JFK"

var errNoAdapter = errors.New("adapter not configured")

// FlightPricer returns the cheapest round-trip fare for a route.
type FlightPricer interface {
	FlightCost(ctx context.Context, origin, destination, start, end, currency string) (float64, error)
}

// HotelPricer returns the average nightly hotel price at a destination.
type HotelPricer interface {
	HotelCost(ctx context.Context, destination, start, end, currency string) (float64, error)
}

// WeatherScorer rates forecast weather against the traveller's preferences in [0,1].
type WeatherScorer interface {
	WeatherScore(ctx context.Context, lat, lon float64, prefs Prefs) (float64, error)
}

// ActivityScorer rates how much there is to do near a point in [0,1].
type ActivityScorer interface {
	ActivityScore(ctx context.Context, lat, lon float64, categories []string) (float64, error)
}

// CoordinateLookup resolves location codes.
type CoordinateLookup interface {
	Lookup(code string) (geo.Coordinates, bool)
}

// Observer is notified about degraded signals and dropped candidates.
type Observer interface {
	SignalFallback(signal Signal, destination string, err error)
	CandidateDropped(destination string)
}

// Sources bundles the four signal adapters. A nil adapter is permanently
// unavailable.
type Sources struct {
	Flights  FlightPricer
	Hotels   HotelPricer
	Weather  WeatherScorer
	Activity ActivityScorer
}

// Aggregator assembles one raw candidate record per destination with known
// coordinates, substituting fallbacks for failed signals.
type Aggregator struct {
	sources        Sources
	coords         CoordinateLookup
	fallbackOrigin string
	concurrency    int
	logger         *zap.Logger
	observer       Observer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used for fallback and drop warnings.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithObserver registers an observer for fallbacks and drops.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observer = o }
}

// WithConcurrency bounds how many candidates are fetched at once. Values
// below 1 mean sequential processing.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) { a.concurrency = n }
}

// WithFallbackOrigin sets the code whose coordinates stand in for an unknown origin.
func WithFallbackOrigin(code string) Option {
	return func(a *Aggregator) {
		if code != "" {
			a.fallbackOrigin = code
		}
	}
}

// NewAggregator creates an aggregator over the given adapters and coordinate table.
func NewAggregator(sources Sources, coords CoordinateLookup, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources:        sources,
		coords:         coords,
		fallbackOrigin: DefaultFallbackOrigin,
		concurrency:    1,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.concurrency < 1 {
		a.concurrency = 1
	}
	return a
}

// Aggregate fetches signals for every destination in req and returns the
// candidate records in request order, plus the codes dropped for unknown
// coordinates. req is expected to have passed Validate.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) ([]Candidate, []string) {
	origin := a.originCoordinates(req.Origin)

	slots := make([]*Candidate, len(req.Destinations))
	var dropped []string

	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)

	for i, dest := range req.Destinations {
		coords, ok := a.coords.Lookup(dest)
		if !ok {
			a.logger.Warn("unknown coordinates, skipping candidate", zap.String("destination", dest))
			if a.observer != nil {
				a.observer.CandidateDropped(dest)
			}
			dropped = append(dropped, dest)
			continue
		}

		g.Go(func() error {
			c := a.collect(ctx, req, dest, origin, coords)
			slots[i] = &c
			return nil
		})
	}
	_ = g.Wait()

	candidates := make([]Candidate, 0, len(slots))
	for _, c := range slots {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	return candidates, dropped
}

func (a *Aggregator) originCoordinates(code string) geo.Coordinates {
	if c, ok := a.coords.Lookup(code); ok {
		return c
	}
	c, ok := a.coords.Lookup(a.fallbackOrigin)
	if !ok {
		a.logger.Error("unknown origin and fallback origin coordinates, travel times measured from 0,0",
			zap.String("origin", code), zap.String("fallback", a.fallbackOrigin))
		return c
	}
	a.logger.Warn("unknown origin coordinates, using fallback origin",
		zap.String("origin", code), zap.String("fallback", a.fallbackOrigin))
	return c
}

// collect runs the four signal fetches for one destination concurrently.
func (a *Aggregator) collect(ctx context.Context, req Request, dest string, origin, coords geo.Coordinates) Candidate {
	var (
		wg              sync.WaitGroup
		flight, hotel   Cost
		weather, events float64
		mu              sync.Mutex
		fallbacks       = make(map[Signal]bool)
	)

	fail := func(s Signal, err error) {
		mu.Lock()
		fallbacks[s] = true
		mu.Unlock()
		a.logger.Warn("signal unavailable, using fallback",
			zap.String("destination", dest), zap.String("signal", string(s)), zap.Error(err))
		if a.observer != nil {
			a.observer.SignalFallback(s, dest, err)
		}
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		flight = a.fetchCost(SignalFlight, fail, func() (float64, error) {
			if a.sources.Flights == nil {
				return 0, errNoAdapter
			}
			return a.sources.Flights.FlightCost(ctx, req.Origin, dest, req.StartDate, req.EndDate, req.Currency)
		})
	}()
	go func() {
		defer wg.Done()
		hotel = a.fetchCost(SignalHotel, fail, func() (float64, error) {
			if a.sources.Hotels == nil {
				return 0, errNoAdapter
			}
			return a.sources.Hotels.HotelCost(ctx, dest, req.StartDate, req.EndDate, req.Currency)
		})
	}()
	go func() {
		defer wg.Done()
		weather = a.fetchScore(SignalWeather, fail, func() (float64, error) {
			if a.sources.Weather == nil {
				return 0, errNoAdapter
			}
			return a.sources.Weather.WeatherScore(ctx, coords.Lat, coords.Lon, req.Prefs)
		})
	}()
	go func() {
		defer wg.Done()
		events = a.fetchScore(SignalActivity, fail, func() (float64, error) {
			if a.sources.Activity == nil {
				return 0, errNoAdapter
			}
			return a.sources.Activity.ActivityScore(ctx, coords.Lat, coords.Lon, req.Prefs.Categories)
		})
	}()
	wg.Wait()

	var marked []Signal
	for _, s := range []Signal{SignalFlight, SignalHotel, SignalWeather, SignalActivity} {
		if fallbacks[s] {
			marked = append(marked, s)
		}
	}

	return Candidate{
		Origin:          req.Origin,
		Destination:     dest,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Currency:        req.Currency,
		FlightCost:      flight,
		HotelCost:       hotel,
		TotalCost:       Sum(flight, hotel),
		WeatherScore:    weather,
		ActivityScore:   events,
		TravelTimeHours: geo.TravelTimeHours(origin, coords),
		Lat:             coords.Lat,
		Lon:             coords.Lon,
		Fallbacks:       marked,
	}
}

func (a *Aggregator) fetchCost(s Signal, fail func(Signal, error), fetch func() (float64, error)) Cost {
	v, err := fetch()
	if err != nil {
		fail(s, err)
		return Unavailable()
	}
	c := Known(v)
	if !c.Available() {
		fail(s, fmt.Errorf("invalid amount %v", v))
	}
	return c
}

// fetchScore applies the pessimistic 0.0 fallback for failed bounded scores.
func (a *Aggregator) fetchScore(s Signal, fail func(Signal, error), fetch func() (float64, error)) float64 {
	v, err := fetch()
	if err != nil {
		fail(s, err)
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		fail(s, fmt.Errorf("non-finite score %v", v))
		return 0
	}
	return clamp01(v)
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/elonfeng/destradar/pkg/geo"
)

const (
	DefaultFeedRadiusKM   = 50.0
	DefaultFeedSaturation = 30.0
)

// EventFeed is a local events RSS/Atom feed anchored at a location.
type EventFeed struct {
	Name string  `yaml:"name"`
	URL  string  `yaml:"url"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// FeedActivity rates activity density by counting category matches in the
// event feeds registered near a destination.
type FeedActivity struct {
	http       *resilientClient
	parser     *gofeed.Parser
	feeds      []EventFeed
	radiusKM   float64
	saturation float64
	extra      map[string][]string
	exclude    []string
}

// FeedOption configures a FeedActivity.
type FeedOption func(*FeedActivity)

// WithRadius sets how far from a destination a feed may be anchored.
func WithRadius(km float64) FeedOption {
	return func(f *FeedActivity) {
		if km > 0 {
			f.radiusKM = km
		}
	}
}

// WithSaturation sets the match count that yields a full score.
func WithSaturation(n float64) FeedOption {
	return func(f *FeedActivity) {
		if n > 0 {
			f.saturation = n
		}
	}
}

// WithKeywords adds per-category keywords and a global exclude list.
func WithKeywords(extra map[string][]string, exclude []string) FeedOption {
	return func(f *FeedActivity) {
		f.extra = extra
		f.exclude = exclude
	}
}

// WithFeedClient overrides the HTTP client and retry policy.
func WithFeedClient(client *http.Client, backoff Backoff) FeedOption {
	return func(f *FeedActivity) {
		f.http = newResilientClient("feeds", client, backoff)
	}
}

// NewFeedActivity creates an event-feed activity adapter.
func NewFeedActivity(feeds []EventFeed, opts ...FeedOption) *FeedActivity {
	f := &FeedActivity{
		http:       newResilientClient("feeds", &http.Client{Timeout: 30 * time.Second}, DefaultBackoff),
		parser:     gofeed.NewParser(),
		feeds:      feeds,
		radiusKM:   DefaultFeedRadiusKM,
		saturation: DefaultFeedSaturation,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ActivityScore parses every feed within range of lat/lon and counts entries
// matching the requested categories. Feeds that fail are skipped; if no
// feed is in range, or all of them fail, an error is returned.
func (f *FeedActivity) ActivityScore(ctx context.Context, lat, lon float64, categories []string) (float64, error) {
	here := geo.Coordinates{Lat: lat, Lon: lon}
	var nearby []EventFeed
	for _, feed := range f.feeds {
		if geo.HaversineKM(here, geo.Coordinates{Lat: feed.Lat, Lon: feed.Lon}) <= f.radiusKM {
			nearby = append(nearby, feed)
		}
	}
	if len(nearby) == 0 {
		return 0, fmt.Errorf("no event feeds within %.0f km: %w", f.radiusKM, ErrNoData)
	}

	matcher := NewCategoryMatcher(categories, f.extra, f.exclude)

	var (
		matches int
		errs    []error
	)
	for _, feed := range nearby {
		n, err := f.countFeed(ctx, feed, matcher)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		matches += n
	}
	if len(errs) == len(nearby) {
		return 0, errors.Join(errs...)
	}
	return math.Min(1, float64(matches)/f.saturation), nil
}

func (f *FeedActivity) countFeed(ctx context.Context, feed EventFeed, matcher *CategoryMatcher) (int, error) {
	resp, err := f.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "destradar/1.0")
		return req, nil
	})
	if err != nil {
		return 0, fmt.Errorf("fetch feed %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("parse feed %s: %w", feed.Name, err)
	}

	n := 0
	for _, entry := range parsed.Items {
		text := entry.Title + " " + entry.Description + " " + strings.Join(entry.Categories, " ")
		if matcher.Matches(text) {
			n++
		}
	}
	return n, nil
}

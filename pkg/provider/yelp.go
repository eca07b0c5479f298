package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultYelpURL is the Yelp Fusion business search endpoint.
	DefaultYelpURL = "https://api.yelp.com/v3/businesses/search"

	yelpPageLimit  = 50
	yelpSaturation = 150.0
)

// Yelp rates activity density from business counts per category.
type Yelp struct {
	http    *resilientClient
	apiKey  string
	baseURL string
}

// NewYelp creates a Yelp adapter. An empty key makes every call return
// ErrNotConfigured.
func NewYelp(apiKey, baseURL string, timeout time.Duration, backoff Backoff) *Yelp {
	if baseURL == "" {
		baseURL = DefaultYelpURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Yelp{
		http:    newResilientClient("yelp", &http.Client{Timeout: timeout}, backoff),
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

type yelpSearchResponse struct {
	Businesses []json.RawMessage `json:"businesses"`
}

// ActivityScore counts businesses for each category near lat/lon. One page
// of at most 50 results is read per category and 150 businesses saturate
// the score.
func (y *Yelp) ActivityScore(ctx context.Context, lat, lon float64, categories []string) (float64, error) {
	if y.apiKey == "" {
		return 0, ErrNotConfigured
	}

	total := 0
	for _, cat := range categories {
		n, err := y.count(ctx, lat, lon, cat)
		if err != nil {
			return 0, fmt.Errorf("search yelp %s: %w", cat, err)
		}
		total += n
	}
	return math.Min(1, float64(total)/yelpSaturation), nil
}

func (y *Yelp) count(ctx context.Context, lat, lon float64, category string) (int, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("categories", category)
	params.Set("limit", strconv.Itoa(yelpPageLimit))
	reqURL := y.baseURL + "?" + params.Encode()

	resp, err := y.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+y.apiKey)
		return req, nil
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var result yelpSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode yelp response: %w", err)
	}
	return len(result.Businesses), nil
}

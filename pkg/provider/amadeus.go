package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultAmadeusBaseURL is the Amadeus self-service test environment.
const DefaultAmadeusBaseURL = "https://test.api.amadeus.com"

// AmadeusConfig holds Amadeus credentials and endpoint settings.
type AmadeusConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Timeout      time.Duration
	Backoff      Backoff
}

// Amadeus prices flights and hotels through the Amadeus self-service APIs.
// Access tokens are acquired with the client-credentials grant and cached
// until they expire.
type Amadeus struct {
	http    *resilientClient
	baseURL string
}

// NewAmadeus creates an Amadeus adapter. Without credentials every call
// returns ErrNotConfigured.
func NewAmadeus(cfg AmadeusConfig) *Amadeus {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultAmadeusBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return &Amadeus{baseURL: base}
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/v1/security/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: 30 * time.Second})
	client := cc.Client(tokenCtx)
	client.Timeout = timeout

	return &Amadeus{
		http:    newResilientClient("amadeus", client, cfg.Backoff),
		baseURL: base,
	}
}

type amadeusFlightOffers struct {
	Data []struct {
		Price struct {
			GrandTotal string `json:"grandTotal"`
		} `json:"price"`
	} `json:"data"`
}

// FlightCost returns the cheapest round-trip grand total among the offers.
func (a *Amadeus) FlightCost(ctx context.Context, origin, destination, start, end, currency string) (float64, error) {
	if a.http == nil {
		return 0, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("originLocationCode", origin)
	params.Set("destinationLocationCode", destination)
	params.Set("departureDate", start)
	params.Set("returnDate", end)
	params.Set("adults", "1")
	params.Set("currencyCode", currency)
	params.Set("max", "20")

	var offers amadeusFlightOffers
	if err := a.get(ctx, "/v2/shopping/flight-offers", params, &offers); err != nil {
		return 0, fmt.Errorf("search flights %s-%s: %w", origin, destination, err)
	}

	cheapest, found := 0.0, false
	for _, o := range offers.Data {
		p, ok := parsePrice(o.Price.GrandTotal)
		if !ok {
			continue
		}
		if !found || p < cheapest {
			cheapest, found = p, true
		}
	}
	if !found {
		return 0, fmt.Errorf("flights %s-%s: %w", origin, destination, ErrNoData)
	}
	return cheapest, nil
}

type amadeusHotelOffers struct {
	Data []struct {
		Offers []struct {
			Price struct {
				Total string `json:"total"`
			} `json:"price"`
		} `json:"offers"`
	} `json:"data"`
}

// HotelCost returns the mean offer total across hotels in the destination city.
func (a *Amadeus) HotelCost(ctx context.Context, destination, start, end, currency string) (float64, error) {
	if a.http == nil {
		return 0, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("cityCode", destination)
	params.Set("checkInDate", start)
	params.Set("checkOutDate", end)
	params.Set("adults", "1")
	params.Set("currencyCode", currency)

	var offers amadeusHotelOffers
	if err := a.get(ctx, "/v3/shopping/hotel-offers", params, &offers); err != nil {
		return 0, fmt.Errorf("search hotels %s: %w", destination, err)
	}

	var sum float64
	var n int
	for _, h := range offers.Data {
		for _, o := range h.Offers {
			if p, ok := parsePrice(o.Price.Total); ok {
				sum += p
				n++
			}
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("hotels %s: %w", destination, ErrNoData)
	}
	return sum / float64(n), nil
}

func (a *Amadeus) get(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := a.baseURL + path + "?" + params.Encode()
	resp, err := a.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/vnd.amadeus+json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode amadeus response: %w", err)
	}
	return nil
}

// Package alert delivers notifications when the best destination of a
// watched search changes.
package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/elonfeng/destradar/pkg/rank"
)

// Pick summarises one ranked destination for a notification.
type Pick struct {
	Destination   string    `json:"destination"`
	Score         float64   `json:"score"`
	TotalCost     rank.Cost `json:"total_cost"`
	WeatherScore  float64   `json:"weather_score"`
	ActivityScore float64   `json:"activity_score"`
}

// Notification is the data sent to alert destinations.
type Notification struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	RunID     int64  `json:"run_id"`
	Origin    string `json:"origin"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Currency  string `json:"currency"`
	Previous  string `json:"previous,omitempty"`
	Top       []Pick `json:"top"`
}

// maxPicks bounds how many ranked destinations a notification lists.
const maxPicks = 5

// NewTopChange builds the notification for a run whose best destination
// differs from previous. An empty previous means there was no earlier run.
func NewTopChange(res *rank.Result, runID int64, previous string) *Notification {
	n := &Notification{
		RunID:     runID,
		Origin:    res.Request.Origin,
		StartDate: res.Request.StartDate,
		EndDate:   res.Request.EndDate,
		Currency:  res.Request.Currency,
		Previous:  previous,
	}

	for i, r := range res.Ranked {
		if i == maxPicks {
			break
		}
		n.Top = append(n.Top, Pick{
			Destination:   r.Destination,
			Score:         r.Score,
			TotalCost:     r.TotalCost,
			WeatherScore:  r.WeatherScore,
			ActivityScore: r.ActivityScore,
		})
	}

	top, ok := res.Top()
	if !ok {
		n.Title = fmt.Sprintf("No destinations ranked from %s", n.Origin)
		n.Body = fmt.Sprintf("%s to %s: no candidate had known coordinates", n.StartDate, n.EndDate)
		return n
	}

	n.Title = fmt.Sprintf("Top destination from %s is now %s", n.Origin, top.Destination)
	if previous != "" {
		n.Body = fmt.Sprintf("%s replaces %s for %s to %s (score %.3f)", top.Destination, previous, n.StartDate, n.EndDate, top.Score)
	} else {
		n.Body = fmt.Sprintf("%s leads for %s to %s (score %.3f)", top.Destination, n.StartDate, n.EndDate, top.Score)
	}
	return n
}

// Line renders a pick for chat messages.
func (p Pick) Line(currency string) string {
	cost := "n/a"
	if v, ok := p.TotalCost.Value(); ok {
		cost = fmt.Sprintf("%.0f %s", v, currency)
	}
	return fmt.Sprintf("%s  score %.3f  cost %s  weather %.2f  activity %.2f",
		p.Destination, p.Score, cost, p.WeatherScore, p.ActivityScore)
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// post sends a JSON body and treats any non-2xx answer as failure.
func post(ctx context.Context, client *http.Client, url string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "destradar/1.0")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

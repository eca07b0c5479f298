package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	fields := make([]map[string]any, 0, len(n.Top))
	for i, p := range n.Top {
		cost := "n/a"
		if v, ok := p.TotalCost.Value(); ok {
			cost = fmt.Sprintf("%.0f %s", v, n.Currency)
		}
		fields = append(fields, map[string]any{
			"name":   fmt.Sprintf("%d. %s", i+1, p.Destination),
			"value":  fmt.Sprintf("score %.3f · cost %s", p.Score, cost),
			"inline": true,
		})
	}

	desc := []string{n.Body, fmt.Sprintf("**Run:** #%d", n.RunID)}
	embed := map[string]any{
		"title":       "✈️ " + n.Title,
		"description": strings.Join(desc, "\n\n"),
		"color":       0x1E90FF,
		"fields":      fields,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(map[string]any{"embeds": []map[string]any{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	if err := post(ctx, d.client, d.webhookURL, body, nil); err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}

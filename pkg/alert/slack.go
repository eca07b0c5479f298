package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": "✈️ " + n.Title,
			},
		},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Run:* #%d | *Dates:* %s to %s\n%s", n.RunID, n.StartDate, n.EndDate, n.Body),
			},
		},
	}

	if len(n.Top) > 0 {
		lines := make([]string, 0, len(n.Top))
		for i, p := range n.Top {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, p.Line(n.Currency)))
		}
		blocks = append(blocks, map[string]any{
			"type":     "context",
			"elements": []map[string]any{
				{"type": "mrkdwn", "text": "```" + strings.Join(lines, "\n") + "```"},
			},
		})
	}

	body, err := json.Marshal(map[string]any{"text": n.Title, "blocks": blocks})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	if err := post(ctx, s.client, s.webhookURL, body, nil); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Embed accent colors per event type.
const (
	colorOpportunity = 0x2ecc71 // green
	colorError       = 0xe74c3c // red
	colorDefault     = 0x3498db // blue
)

// DiscordSender delivers alerts via a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL. It
// uses a default HTTP client with a 10-second timeout.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the alert to the Discord webhook as an embed, color-coded by
// event type, with the profit, risk, and book fields rendered inline.
func (d *DiscordSender) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(map[string]any{
		"embeds": []map[string]any{renderDiscord(alert)},
	})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// renderDiscord builds the embed object for an alert.
func renderDiscord(alert Alert) map[string]any {
	embed := map[string]any{
		"title":       alert.Title,
		"description": alert.Body,
		"color":       embedColor(alert.Event),
	}

	var fields []map[string]any
	if alert.ProfitPct != 0 {
		fields = append(fields, map[string]any{
			"name": "profit", "value": fmt.Sprintf("%.2f%%", alert.ProfitPct), "inline": true,
		})
	}
	if alert.RiskScore != 0 {
		fields = append(fields, map[string]any{
			"name": "risk", "value": fmt.Sprintf("%.2f", alert.RiskScore), "inline": true,
		})
	}
	if len(alert.Books) > 0 {
		fields = append(fields, map[string]any{
			"name": "books", "value": strings.Join(alert.Books, ", "), "inline": false,
		})
	}
	if len(fields) > 0 {
		embed["fields"] = fields
	}
	return embed
}

func embedColor(event string) int {
	switch event {
	case EventOpportunityDetected, EventPlanSized:
		return colorOpportunity
	case EventError:
		return colorError
	default:
		return colorDefault
	}
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

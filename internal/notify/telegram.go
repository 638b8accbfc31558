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

// TelegramSender delivers alerts via the Telegram Bot API.
type TelegramSender struct {
	token  string
	chatID string
	client *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and
// chat ID. It uses a default HTTP client with a 10-second timeout.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the alert to the configured Telegram chat using the sendMessage
// API, rendered as a Markdown message with the profit and risk numbers on
// their own lines.
func (t *TelegramSender) Send(ctx context.Context, alert Alert) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       renderTelegram(alert),
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// renderTelegram lays out the alert as a bold title, the body, and one
// detail line per populated field.
func renderTelegram(alert Alert) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*\n%s", alert.Title, alert.Body)
	if alert.ProfitPct != 0 {
		fmt.Fprintf(&sb, "\nprofit: %.2f%%", alert.ProfitPct)
	}
	if alert.RiskScore != 0 {
		fmt.Fprintf(&sb, "\nrisk: %.2f", alert.RiskScore)
	}
	if len(alert.Books) > 0 {
		fmt.Fprintf(&sb, "\nbooks: %s", strings.Join(alert.Books, ", "))
	}
	return sb.String()
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}

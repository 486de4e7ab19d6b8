// Package notify implements the optional push-alert collaborator
// SPEC_FULL.md names: critical risk transitions (DDL hit, market ban)
// and system start/stop notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Notifier is the contract the orchestrator and risk guard push alerts
// through. A no-op implementation is used when no credentials are set.
type Notifier interface {
	SendSystemStatus(ctx context.Context, status string, uptimeMinutes float64) error
	SendCritical(ctx context.Context, title, message string) error
	Enabled() bool
}

type noop struct{}

func (noop) SendSystemStatus(context.Context, string, float64) error { return nil }
func (noop) SendCritical(context.Context, string, string) error     { return nil }
func (noop) Enabled() bool                                          { return false }

// NoOp returns a Notifier that drops every message, used when the
// operator has not configured push credentials.
func NoOp() Notifier { return noop{} }

// Telegram sends alerts via the Telegram Bot API, matching the original
// system's utils/telegram.py send_system_status / critical-alert calls.
type Telegram struct {
	BotToken string
	ChatID   string
	client   *http.Client
}

// NewTelegram constructs a Telegram notifier. Returns NoOp if either
// credential is blank.
func NewTelegram(botToken, chatID string) Notifier {
	if botToken == "" || chatID == "" {
		return NoOp()
	}
	return &Telegram{BotToken: botToken, ChatID: chatID, client: &http.Client{Timeout: 10 * time.Second}}
}

func (t *Telegram) Enabled() bool { return true }

func (t *Telegram) SendSystemStatus(ctx context.Context, status string, uptimeMinutes float64) error {
	text := fmt.Sprintf("System %s (uptime: %.1f min)", strings.ToUpper(status), uptimeMinutes)
	return t.send(ctx, text)
}

func (t *Telegram) SendCritical(ctx context.Context, title, message string) error {
	text := fmt.Sprintf("⚠️ %s\n%s", title, message)
	return t.send(ctx, text)
}

func (t *Telegram) send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.BotToken)
	form := url.Values{"chat_id": {t.ChatID}, "text": {text}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("notify: telegram rejected message: status=%d body=%v", resp.StatusCode, body)
	}
	return nil
}

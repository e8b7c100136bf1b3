// Package notify delivers rendered reports to Telegram. Without credentials
// the notifier is a logged no-op, so the pipeline runs end to end in
// environments that only want the HTTP surface.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/newscardbot/fb-kpi-tracker/report"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram sends messages to a single chat via the Bot API.
type Telegram struct {
	botToken   string
	chatID     string
	apiBase    string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewTelegram creates a notifier. Empty token or chat id disables sending.
func NewTelegram(botToken, chatID string, log *logrus.Logger) *Telegram {
	return &Telegram{
		botToken:   botToken,
		chatID:     chatID,
		apiBase:    defaultAPIBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Enabled reports whether the notifier has credentials to send.
func (t *Telegram) Enabled() bool {
	return t.botToken != "" && t.chatID != ""
}

// SendReport splits text into Telegram-sized chunks and sends them in order.
// The first failed chunk aborts the rest.
func (t *Telegram) SendReport(ctx context.Context, text string) error {
	if !t.Enabled() {
		t.log.Debug("Telegram notifier disabled, skipping send")
		return nil
	}

	chunks := report.SplitMessage(text, report.MaxMessageLen)
	for i, chunk := range chunks {
		if err := t.sendMessage(ctx, chunk); err != nil {
			return fmt.Errorf("failed to send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}

	t.log.WithField("chunks", len(chunks)).Info("Sent report to Telegram")
	return nil
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return fmt.Errorf("sendMessage failed with status %d: %s", resp.StatusCode, snippet)
	}

	var parsed struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("failed to decode sendMessage response: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("sendMessage rejected: %s", parsed.Description)
	}

	return nil
}

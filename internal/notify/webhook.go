package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sisu-notifier/internal/models"
	"sisu-notifier/internal/report"
)

// WebhookNotifier posts the report as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

type webhookPayload struct {
	Type       string                `json:"type"`
	Subject    string                `json:"subject"`
	Urgency    string                `json:"urgency"`
	WindowDays int                   `json:"windowDays"`
	Text       string                `json:"text"`
	Matches    []models.ClosingMatch `json:"matches"`
	Timestamp  string                `json:"timestamp"`
}

// NewWebhookNotifier creates a new WebhookNotifier. An empty url disables it.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Name returns the name of the notifier.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// IsEnabled returns whether the notifier is enabled.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.url != ""
}

// Send posts the report.
func (w *WebhookNotifier) Send(ctx context.Context, r report.Report) error {
	if !w.IsEnabled() {
		return nil
	}

	body, err := json.Marshal(webhookPayload{
		Type:       "closing_report",
		Subject:    r.Subject,
		Urgency:    r.Urgency.String(),
		WindowDays: r.WindowDays,
		Text:       r.Text,
		Matches:    r.Matches,
		Timestamp:  w.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SisuNotifier/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookPayload is the alert-ingest contract for downstream consumers.
type WebhookPayload struct {
	Type        string        `json:"type"`
	Severity    string        `json:"severity"`
	Drift       bool          `json:"drift"`
	Metrics     TelemetryData `json:"metrics"`
	Timestamp   int64         `json:"timestamp"`
	Suggestions []string      `json:"suggestions"`
}

// WebhookNotifier posts anomaly notifications to a configured ingest URL.
// Notifications are best-effort: failures are logged and never surfaced
// to the primary detection path.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewWebhookNotifier(url string, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *WebhookNotifier) Enabled() bool {
	return n != nil && n.url != ""
}

// Notify fires the webhook in a detached goroutine with its own timeout
// and error boundary.
func (n *WebhookNotifier) Notify(payload WebhookPayload) {
	if !n.Enabled() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := n.send(ctx, payload); err != nil {
			n.logger.Warn("Webhook notification failed",
				zap.String("url", n.url),
				zap.Error(err),
			)
		}
	}()
}

func (n *WebhookNotifier) send(ctx context.Context, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

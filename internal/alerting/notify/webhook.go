package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"loadwatch/internal/alerting"
)

type webhookPayload struct {
	Event    string `json:"event"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	At       string `json:"at"`
}

// WebhookNotifier posts fired alerts to a webhook endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// WebhookOption configures the webhook notifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(n *WebhookNotifier) {
		if client != nil {
			n.client = client
		}
	}
}

// NewWebhookNotifier constructs a webhook notifier.
func NewWebhookNotifier(url string, opts ...WebhookOption) (*WebhookNotifier, error) {
	if url == "" {
		return nil, errors.New("webhook notifier: empty url")
	}
	n := &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify posts the event. Errors are dropped; delivery is best-effort.
func (n *WebhookNotifier) Notify(ctx context.Context, event alerting.Event) {
	if n == nil || n.url == "" {
		return
	}
	_ = n.send(ctx, event)
}

func (n *WebhookNotifier) send(ctx context.Context, event alerting.Event) error {
	payload := webhookPayload{
		Event:    string(event.Kind),
		Severity: string(event.Severity),
		Message:  event.Message,
		At:       event.Timestamp.UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
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
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: non-2xx response %d", resp.StatusCode)
	}
	return nil
}

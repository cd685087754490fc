package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Channel delivers a rendered message to a recipient address.
type Channel interface {
	Send(ctx context.Context, recipient, content string) error
}

type webhookPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// WebhookChannel posts messages to a WhatsApp bridge webhook.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("webhook channel: empty url")
	}
	channel := &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Send posts the message to the bridge.
func (w *WebhookChannel) Send(ctx context.Context, recipient, content string) error {
	if w == nil || w.url == "" {
		return errors.New("webhook channel: empty url")
	}
	payload := webhookPayload{
		Phone:   recipient,
		Message: content,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook channel: non-2xx response %d", resp.StatusCode)
	}
	return nil
}

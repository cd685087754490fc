package gateway

import (
	"encoding/json"
	"errors"
)

// EventPaymentCaptured is the only webhook event this engine acts on.
// Everything else is acknowledged and ignored.
const EventPaymentCaptured = "payment.captured"

// WebhookEvent is the envelope of a gateway webhook delivery.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// PaymentEntity is the payment object inside a webhook payload.
type PaymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Method  string `json:"method"`
	Status  string `json:"status"`
}

// ParseWebhookEvent decodes a raw webhook body.
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookEvent{}, err
	}
	if event.Event == "" {
		return WebhookEvent{}, errors.New("gateway: webhook event missing type")
	}
	return event, nil
}

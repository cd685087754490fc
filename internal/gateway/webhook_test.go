package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebhookAuthMiddleware(t *testing.T) {
	secret := []byte("webhook-secret")
	body := `{"event":"payment.captured"}`

	var seenBody string
	handler := NewWebhookAuthMiddleware(secret).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read restored body: %v", err)
		}
		seenBody = string(raw)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(SignatureHeader, WebhookSignature(secret, []byte(body)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seenBody != body {
		t.Fatalf("expected body restored for the handler, got %q", seenBody)
	}
}

func TestWebhookAuthMiddlewareRejects(t *testing.T) {
	secret := []byte("webhook-secret")
	body := `{"event":"payment.captured"}`
	handler := NewWebhookAuthMiddleware(secret).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing signature, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(SignatureHeader, "deadbeef")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(SignatureHeader, WebhookSignature([]byte("other-secret"), []byte(body)))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong secret, got %d", rec.Code)
	}
}

func TestWebhookAuthMiddlewareUnconfigured(t *testing.T) {
	handler := NewWebhookAuthMiddleware(nil).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
	req.Header.Set(SignatureHeader, "anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when no secret configured, got %d", rec.Code)
	}
}

func TestParseWebhookEvent(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","amount":150000,"method":"upi","status":"captured"}}}}`)
	event, err := ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if event.Event != EventPaymentCaptured {
		t.Fatalf("unexpected event %q", event.Event)
	}
	entity := event.Payload.Payment.Entity
	if entity.ID != "pay_1" || entity.OrderID != "order_1" || entity.Method != "upi" {
		t.Fatalf("unexpected entity: %+v", entity)
	}

	if _, err := ParseWebhookEvent([]byte(`{}`)); err == nil {
		t.Fatalf("expected error for missing event type")
	}
	if _, err := ParseWebhookEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

package gateway

import (
	"bytes"
	"io"
	"net/http"
	"strings"
)

// SignatureHeader carries the gateway's webhook HMAC.
const SignatureHeader = "X-Razorpay-Signature"

// WebhookAuthMiddleware validates gateway webhook signatures over the raw
// request body before the handler sees it.
type WebhookAuthMiddleware struct {
	Secret []byte
}

// NewWebhookAuthMiddleware constructs webhook auth middleware.
func NewWebhookAuthMiddleware(secret []byte) *WebhookAuthMiddleware {
	return &WebhookAuthMiddleware{Secret: secret}
}

// Wrap enforces webhook signature validation. The body is restored for the
// next handler.
func (m *WebhookAuthMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.Secret) == 0 {
			http.Error(w, "webhook auth not configured", http.StatusUnauthorized)
			return
		}
		signature := strings.TrimSpace(r.Header.Get(SignatureHeader))
		if signature == "" {
			http.Error(w, "missing webhook signature", http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body error", http.StatusBadRequest)
			return
		}
		_ = r.Body.Close()

		if !VerifyWebhookSignature(m.Secret, body, signature) {
			http.Error(w, "invalid webhook signature", http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

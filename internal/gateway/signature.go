package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PaymentSignature computes the hex HMAC-SHA256 the gateway attaches to a
// client checkout callback: HMAC(secret, orderID + "|" + paymentID).
func PaymentSignature(secret []byte, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(orderID))
	_, _ = mac.Write([]byte("|"))
	_, _ = mac.Write([]byte(paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks a client callback signature in constant
// time.
func VerifyPaymentSignature(secret []byte, orderID, paymentID, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	expected := PaymentSignature(secret, orderID, paymentID)
	return hmac.Equal([]byte(strings.ToLower(strings.TrimSpace(signature))), []byte(expected))
}

// WebhookSignature computes the hex HMAC-SHA256 over a raw webhook body.
func WebhookSignature(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks a webhook signature in constant time.
func VerifyWebhookSignature(secret, body []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	expected := WebhookSignature(secret, body)
	return hmac.Equal([]byte(strings.ToLower(strings.TrimSpace(signature))), []byte(expected))
}

package interfaces

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"busway-cloud/internal/audit"
	"busway-cloud/internal/auth"
	"busway-cloud/internal/billing/application"
	"busway-cloud/internal/gateway"
	"busway-cloud/internal/observability/metrics"
)

// PaymentsHandler serves the payment endpoints: order creation plus both
// reconciliation paths.
type PaymentsHandler struct {
	orders      *application.PaymentOrderService
	reconcile   *application.ReconcileService
	auditLogger audit.Logger
}

// NewPaymentsHandler constructs a PaymentsHandler.
func NewPaymentsHandler(orders *application.PaymentOrderService, reconcile *application.ReconcileService, auditLogger audit.Logger) (*PaymentsHandler, error) {
	if orders == nil {
		return nil, errors.New("payments handler: nil order service")
	}
	if reconcile == nil {
		return nil, errors.New("payments handler: nil reconcile service")
	}
	return &PaymentsHandler{orders: orders, reconcile: reconcile, auditLogger: auditLogger}, nil
}

// ServeHTTP routes payment requests.
func (h *PaymentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/payments/create-order":
		h.handleCreateOrder(w, r)
	case "/api/v1/payments/verify":
		h.handleVerify(w, r)
	case "/api/v1/payments/webhook":
		h.handleWebhook(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *PaymentsHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DueID string `json:"due_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DueID == "" {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	start := time.Now()
	order, err := h.orders.CreateOrUse(r.Context(), req.DueID, auth.CallerParentID(r.Context()))
	if err != nil {
		metrics.ObserveOrderCreate(metrics.ResultError, time.Since(start))
		respondDomainError(w, err)
		return
	}
	metrics.ObserveOrderCreate(metrics.ResultSuccess, time.Since(start))
	writeJSON(w, http.StatusOK, order)
	h.logAudit(r, "payment.order.create", req.DueID, map[string]any{"order_id": order.OrderID, "amount": order.Amount})
}

func (h *PaymentsHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req application.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.reconcile.VerifyClientCallback(r.Context(), req); err != nil {
		respondDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	h.logAudit(r, "payment.verify", req.DueID, map[string]any{"order_id": req.OrderID, "payment_id": req.PaymentID})
}

// handleWebhook receives gateway deliveries. The HMAC middleware already
// authenticated the raw body. Anything this engine does not act on is
// acked with 200 so the gateway stops retrying.
func (h *PaymentsHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	event, err := gateway.ParseWebhookEvent(body)
	if err != nil {
		metrics.IncWebhookEvent("invalid", metrics.ResultError)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.reconcile.HandleWebhookEvent(r.Context(), event); err != nil {
		metrics.IncWebhookEvent(event.Event, metrics.ResultError)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	metrics.IncWebhookEvent(event.Event, metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PaymentsHandler) logAudit(r *http.Request, action, dueID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.UserIDFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "payments",
		ResourceID:   dueID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

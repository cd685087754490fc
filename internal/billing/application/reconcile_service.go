package application

import (
	"context"
	"errors"
	"log"
	"strings"

	billing "busway-cloud/internal/billing/domain"
	"busway-cloud/internal/gateway"
	"busway-cloud/internal/observability/metrics"
)

// Capture sources, used for metrics and audit trails.
const (
	SourceClientVerify = "client_verify"
	SourceWebhook      = "webhook"
	SourceOffline      = "offline"
)

// Notifier delivers fee lifecycle notifications. Implementations swallow
// and log delivery errors; reconciliation never depends on them.
type Notifier interface {
	PaymentCaptured(ctx context.Context, due *billing.DueRecord, student *Student)
	PenaltyWaived(ctx context.Context, due *billing.DueRecord, student *Student)
	DueReminder(ctx context.Context, due *billing.DueRecord, student *Student)
}

// VerifyRequest is a client checkout callback.
type VerifyRequest struct {
	DueID     string `json:"due_id"`
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// ReconcileService confirms payments from both reconciliation paths, the
// client verify callback and the gateway webhook, plus offline admin
// captures. All three funnel into one conditional write.
type ReconcileService struct {
	dues      billing.DueRepository
	students  StudentReader
	notifier  Notifier
	policy    PolicyConfig
	keySecret []byte
	clock     Clock
	logger    *log.Logger
}

// NewReconcileService constructs the service. keySecret signs client verify
// callbacks.
func NewReconcileService(dues billing.DueRepository, students StudentReader, notifier Notifier, policy PolicyConfig, keySecret []byte, clock Clock, logger *log.Logger) (*ReconcileService, error) {
	if dues == nil {
		return nil, errors.New("reconcile service: nil due repository")
	}
	if students == nil {
		return nil, errors.New("reconcile service: nil student reader")
	}
	if len(keySecret) == 0 {
		return nil, errors.New("reconcile service: empty key secret")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReconcileService{
		dues:      dues,
		students:  students,
		notifier:  notifier,
		policy:    policy,
		keySecret: keySecret,
		clock:     clock,
		logger:    logger,
	}, nil
}

// VerifyClientCallback reconciles a payment reported by the client after
// checkout. Safe to call any number of times for the same payment.
func (s *ReconcileService) VerifyClientCallback(ctx context.Context, req VerifyRequest) error {
	if req.DueID == "" || req.OrderID == "" || req.PaymentID == "" {
		return billing.ErrInvalidSignature
	}
	if !gateway.VerifyPaymentSignature(s.keySecret, req.OrderID, req.PaymentID, req.Signature) {
		metrics.IncVerifyRejected("signature")
		return billing.ErrInvalidSignature
	}

	due, err := s.dues.GetByID(ctx, req.DueID)
	if err != nil {
		return err
	}
	if due == nil {
		return billing.ErrDueNotFound
	}
	if due.GatewayOrderID == "" || due.GatewayOrderID != req.OrderID {
		metrics.IncVerifyRejected("order_mismatch")
		return billing.ErrOrderMismatch
	}

	err = s.commit(ctx, due, req.PaymentID, "online", SourceClientVerify)
	if errors.Is(err, billing.ErrAlreadyCaptured) {
		// Duplicate callback for a settled due. Idempotent success.
		return nil
	}
	return err
}

// HandleWebhookEvent reconciles a payment reported by the gateway webhook.
// Unknown event types are acknowledged and ignored. Events for orders this
// engine never issued are ignored too: the gateway account may serve other
// systems.
func (s *ReconcileService) HandleWebhookEvent(ctx context.Context, event gateway.WebhookEvent) error {
	if event.Event != gateway.EventPaymentCaptured {
		return nil
	}
	payment := event.Payload.Payment.Entity
	if payment.OrderID == "" || payment.ID == "" {
		return nil
	}

	due, err := s.dues.GetByOrderID(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	if due == nil {
		if s.logger != nil {
			s.logger.Printf("webhook: no due for order=%s payment=%s", payment.OrderID, payment.ID)
		}
		return nil
	}

	method := payment.Method
	if method == "" {
		method = "online"
	}
	err = s.commit(ctx, due, payment.ID, method, SourceWebhook)
	if errors.Is(err, billing.ErrAlreadyCaptured) {
		// The client verify path got there first. Converged, ack.
		return nil
	}
	return err
}

// MarkPaidOffline records a cash or bank-transfer payment taken outside the
// gateway. Admin only; the HTTP layer enforces that.
func (s *ReconcileService) MarkPaidOffline(ctx context.Context, dueID, method, reference string) error {
	due, err := s.dues.GetByID(ctx, dueID)
	if err != nil {
		return err
	}
	if due == nil {
		return billing.ErrDueNotFound
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = "cash"
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		reference = due.ID
	}
	return s.commit(ctx, due, "OFFLINE-"+reference, method, SourceOffline)
}

// commit is the single write path every capture goes through. The penalty
// is assessed fresh at commit time, then the status flip is a conditional
// update so exactly one caller wins per due.
func (s *ReconcileService) commit(ctx context.Context, due *billing.DueRecord, paymentID, method, source string) error {
	now := s.clock.Now()
	assessment := s.policy.LateFee().Assess(due, now)

	captured, err := s.dues.MarkCaptured(ctx, due.ID, billing.Capture{
		PaymentID: paymentID,
		Method:    method,
		Penalty:   assessment.Penalty,
		Total:     assessment.Total,
		PaidAt:    now,
	})
	if err != nil {
		return err
	}
	if !captured {
		current, err := s.dues.GetByID(ctx, due.ID)
		if err != nil {
			return err
		}
		if current != nil && current.Status == billing.StatusCaptured {
			return billing.ErrAlreadyCaptured
		}
		return billing.ErrInvalidState
	}

	metrics.IncPaymentCaptured(source)
	if s.logger != nil {
		s.logger.Printf("payment captured: due=%s student=%s payment=%s source=%s total=%.2f", due.ID, due.StudentID, paymentID, source, assessment.Total)
	}

	// Only the conditional-update winner notifies, so exactly one
	// notification fires per capture. Delivery failures stay inside the
	// notifier.
	if s.notifier != nil {
		captured, err := s.dues.GetByID(ctx, due.ID)
		if err != nil || captured == nil {
			captured = due
		}
		student, err := s.students.Get(ctx, due.StudentID)
		if err != nil && s.logger != nil {
			s.logger.Printf("notify lookup: student=%s err=%v", due.StudentID, err)
		}
		s.notifier.PaymentCaptured(ctx, captured, student)
	}
	return nil
}

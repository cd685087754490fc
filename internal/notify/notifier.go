package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"busway-cloud/internal/billing/application"
	billing "busway-cloud/internal/billing/domain"
	"busway-cloud/internal/observability/metrics"
)

// Notification kinds, used as dedupe and metrics labels.
const (
	KindCaptured = "payment_captured"
	KindWaived   = "penalty_waived"
	KindReminder = "due_reminder"
)

// Clock provides time for dedupe bookkeeping.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// FeeNotifier delivers fee lifecycle messages through a channel. Delivery
// is best effort: errors are logged and swallowed, never retried, and the
// caller is never blocked on gateway state. Repeats within the dedupe
// window are suppressed.
type FeeNotifier struct {
	channel      Channel
	clock        Clock
	logger       *log.Logger
	mu           sync.Mutex
	sent         map[string]sendRecord
	dedupeWindow time.Duration
}

// Option configures the notifier.
type Option func(*FeeNotifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *FeeNotifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *FeeNotifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewFeeNotifier constructs a fee notifier.
func NewFeeNotifier(channel Channel, logger *log.Logger, opts ...Option) (*FeeNotifier, error) {
	if channel == nil {
		return nil, errors.New("fee notifier: nil channel")
	}
	n := &FeeNotifier{
		channel:      channel,
		clock:        systemClock{},
		logger:       logger,
		sent:         make(map[string]sendRecord),
		dedupeWindow: 20 * time.Hour,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// PaymentCaptured confirms a settled due to the parent.
func (n *FeeNotifier) PaymentCaptured(ctx context.Context, due *billing.DueRecord, student *application.Student) {
	if n == nil || due == nil {
		return
	}
	content := fmt.Sprintf(
		"Payment received for %s, period %s. Amount: %.2f. Reference: %s. Thank you!",
		studentName(due, student), due.Period, due.TotalDue, due.GatewayPaymentID,
	)
	n.dispatch(ctx, KindCaptured, due.ID, recipient(student), content)
}

// PenaltyWaived tells the parent an approved waiver settled the penalty.
func (n *FeeNotifier) PenaltyWaived(ctx context.Context, due *billing.DueRecord, student *application.Student) {
	if n == nil || due == nil {
		return
	}
	content := fmt.Sprintf(
		"Late fee waiver approved for %s, period %s. Amount payable: %.2f.",
		studentName(due, student), due.Period, due.TotalDue,
	)
	n.dispatch(ctx, KindWaived, due.ID, recipient(student), content)
}

// DueReminder nudges the parent about an overdue pending due. Deduped per
// student and period so a daily sweep does not spam.
func (n *FeeNotifier) DueReminder(ctx context.Context, due *billing.DueRecord, student *application.Student) {
	if n == nil || due == nil {
		return
	}
	content := fmt.Sprintf(
		"Fee reminder for %s, period %s: payment is overdue. Please pay at the earliest to avoid further late fees.",
		studentName(due, student), due.Period,
	)
	n.dispatch(ctx, KindReminder, due.StudentID+"|"+due.Period.String(), recipient(student), content)
}

func (n *FeeNotifier) dispatch(ctx context.Context, kind, dedupeID, recipient, content string) {
	if recipient == "" {
		if n.logger != nil {
			n.logger.Printf("notify %s: no recipient, skipped", kind)
		}
		metrics.IncNotificationSend(kind, "skipped")
		return
	}
	if !n.shouldSend(kind, dedupeID, content) {
		return
	}
	if err := n.channel.Send(ctx, recipient, content); err != nil {
		if n.logger != nil {
			n.logger.Printf("notify %s: send failed: %v", kind, err)
		}
		metrics.IncNotificationSend(kind, metrics.ResultError)
		return
	}
	n.markSent(kind, dedupeID, content)
	metrics.IncNotificationSend(kind, metrics.ResultSuccess)
}

func (n *FeeNotifier) shouldSend(kind, dedupeID, content string) bool {
	if n.dedupeWindow <= 0 {
		return true
	}
	key := kind + "|" + dedupeID
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *FeeNotifier) markSent(kind, dedupeID, content string) {
	key := kind + "|" + dedupeID
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func studentName(due *billing.DueRecord, student *application.Student) string {
	if student != nil && student.FullName != "" {
		return student.FullName
	}
	return due.StudentID
}

func recipient(student *application.Student) string {
	if student == nil {
		return ""
	}
	return student.ParentPhone
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

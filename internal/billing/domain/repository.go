package billing

import (
	"context"
	"time"
)

// Capture carries the frozen snapshot written when a due flips to CAPTURED.
type Capture struct {
	PaymentID string
	Method    string
	Penalty   float64
	Total     float64
	PaidAt    time.Time
}

// DueRepository persists due records.
//
// The mutating methods returning (bool, error) are conditional writes: the
// bool reports whether the row was actually updated. Callers decide what a
// lost race means; the repository never turns an unmet condition into an
// error.
type DueRepository interface {
	// Create inserts a due unless one already exists for (student, period).
	// Returns false without error on conflict.
	Create(ctx context.Context, due *DueRecord) (bool, error)
	GetByID(ctx context.Context, id string) (*DueRecord, error)
	GetByOrderID(ctx context.Context, orderID string) (*DueRecord, error)
	ListByStudent(ctx context.Context, studentID string) ([]*DueRecord, error)
	ListByPeriod(ctx context.Context, period Period) ([]*DueRecord, error)
	// ListOverdue returns PENDING dues whose due date passed before asOf.
	ListOverdue(ctx context.Context, asOf time.Time) ([]*DueRecord, error)

	// AttachOrder binds a gateway order to the due, conditioned on no order
	// being attached yet.
	AttachOrder(ctx context.Context, dueID, orderID string, amount float64, at time.Time) (bool, error)
	// MarkCaptured flips PENDING to CAPTURED and freezes the monetary
	// snapshot in one conditional write.
	MarkCaptured(ctx context.Context, dueID string, capture Capture) (bool, error)
	// MarkWaived flips PENDING to WAIVED, zeroing the penalty and freezing
	// the total, in one conditional write.
	MarkWaived(ctx context.Context, dueID string, total float64, at time.Time) (bool, error)
}

// WaiverRepository persists waiver requests.
type WaiverRepository interface {
	Create(ctx context.Context, request *WaiverRequest) error
	GetByID(ctx context.Context, id string) (*WaiverRequest, error)
	ListByStatus(ctx context.Context, status WaiverStatus) ([]*WaiverRequest, error)
	// Decide moves a PENDING request to a terminal status.
	Decide(ctx context.Context, id string, status WaiverStatus, decidedBy string, at time.Time) (bool, error)
}

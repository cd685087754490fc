package billing

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Status is the lifecycle state of a due record.
type Status string

const (
	// StatusPending marks an unpaid obligation.
	StatusPending Status = "PENDING"
	// StatusCaptured marks a due settled through the gateway or an offline payment.
	StatusCaptured Status = "CAPTURED"
	// StatusWaived marks a due cancelled by an approved waiver.
	StatusWaived Status = "WAIVED"
)

// DueRecord is one student's transport fee obligation for one billing period.
// Identity: (student_id, period) unique; ID is a surrogate key.
//
// Monetary fields are in major currency units. Penalty and TotalDue stored
// here are snapshots; while the due is PENDING they must be recomputed
// through LateFeePolicy on every read. Once the due leaves PENDING the
// stored values are frozen.
type DueRecord struct {
	ID        string
	StudentID string
	Period    Period

	BaseFee  float64
	Discount float64
	Penalty  float64
	TotalDue float64

	DueDate        time.Time
	HardCutoffDate time.Time

	Status           Status
	GatewayOrderID   string
	OrderAmount      float64
	GatewayPaymentID string
	PaymentMethod    string
	PaidAt           time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDueRecord creates a pending due for a student and period.
func NewDueRecord(studentID string, period Period, baseFee float64, dueDate, hardCutoff time.Time) (*DueRecord, error) {
	if studentID == "" {
		return nil, ErrEmptyStudentID
	}
	if period.IsZero() {
		return nil, ErrInvalidPeriod
	}
	if baseFee < 0 {
		return nil, ErrNegativeAmount
	}
	if !hardCutoff.After(dueDate) {
		return nil, ErrInvalidState
	}
	now := time.Now().UTC()
	return &DueRecord{
		ID:             NewDueID(),
		StudentID:      studentID,
		Period:         period,
		BaseFee:        baseFee,
		TotalDue:       baseFee,
		DueDate:        dueDate.UTC(),
		HardCutoffDate: hardCutoff.UTC(),
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NewDueID generates a random due id.
func NewDueID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "due-" + hex.EncodeToString(buf)
}

// IsFrozen reports whether monetary fields must no longer be recomputed.
func (d *DueRecord) IsFrozen() bool {
	return d != nil && d.Status != StatusPending
}

// Clone returns a detached copy of the record.
func (d *DueRecord) Clone() *DueRecord {
	if d == nil {
		return nil
	}
	copy := *d
	return &copy
}

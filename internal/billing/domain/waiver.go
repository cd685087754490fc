package billing

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// WaiverStatus is the state of a waiver request.
type WaiverStatus string

const (
	// WaiverPending marks an undecided request.
	WaiverPending WaiverStatus = "PENDING"
	// WaiverApproved marks an approved request; terminal.
	WaiverApproved WaiverStatus = "APPROVED"
	// WaiverRejected marks a rejected request; terminal.
	WaiverRejected WaiverStatus = "REJECTED"
)

// WaiverRequest asks an admin to cancel the obligation of a pending due.
type WaiverRequest struct {
	ID          string
	DueID       string
	RequestedBy string
	Reason      string
	Status      WaiverStatus
	DecidedBy   string
	DecidedAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewWaiverRequest creates a pending waiver request for a due.
func NewWaiverRequest(dueID, requestedBy, reason string) (*WaiverRequest, error) {
	if dueID == "" {
		return nil, ErrDueNotFound
	}
	now := time.Now().UTC()
	return &WaiverRequest{
		ID:          newWaiverID(),
		DueID:       dueID,
		RequestedBy: requestedBy,
		Reason:      reason,
		Status:      WaiverPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func newWaiverID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "wvr-" + hex.EncodeToString(buf)
}

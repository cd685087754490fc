package billing

import "errors"

var (
	// ErrDueNotFound is returned when a due record is missing or not visible to the caller.
	ErrDueNotFound = errors.New("billing: due not found")
	// ErrWaiverNotFound is returned when a waiver request is not found.
	ErrWaiverNotFound = errors.New("billing: waiver request not found")
	// ErrAlreadyCaptured is returned when acting on a captured due.
	ErrAlreadyCaptured = errors.New("billing: due already captured")
	// ErrLocked is returned when an earlier billing period is still pending.
	ErrLocked = errors.New("billing: earlier dues pending")
	// ErrInvalidSignature is returned when a gateway signature does not match.
	ErrInvalidSignature = errors.New("billing: invalid signature")
	// ErrOrderMismatch is returned when a payment references a different order.
	ErrOrderMismatch = errors.New("billing: order mismatch")
	// ErrInvalidState is returned on an illegal lifecycle transition.
	ErrInvalidState = errors.New("billing: invalid state")
	// ErrEmptyStudentID is returned when student id is empty.
	ErrEmptyStudentID = errors.New("billing: empty student id")
	// ErrInvalidPeriod is returned when a billing period is malformed.
	ErrInvalidPeriod = errors.New("billing: invalid period")
	// ErrNegativeAmount is returned when a negative money value is provided.
	ErrNegativeAmount = errors.New("billing: negative amount")
	// ErrNilDue is returned when persisting a nil due record.
	ErrNilDue = errors.New("billing: nil due record")
)

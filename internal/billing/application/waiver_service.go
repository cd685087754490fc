package application

import (
	"context"
	"errors"
	"log"
	"strings"

	billing "busway-cloud/internal/billing/domain"
	"busway-cloud/internal/observability/metrics"
)

// WaiverService runs the penalty waiver workflow: parents request, admins
// decide.
type WaiverService struct {
	waivers  billing.WaiverRepository
	dues     billing.DueRepository
	students StudentReader
	notifier Notifier
	clock    Clock
	logger   *log.Logger
}

// NewWaiverService constructs the service.
func NewWaiverService(waivers billing.WaiverRepository, dues billing.DueRepository, students StudentReader, notifier Notifier, clock Clock, logger *log.Logger) (*WaiverService, error) {
	if waivers == nil {
		return nil, errors.New("waiver service: nil waiver repository")
	}
	if dues == nil {
		return nil, errors.New("waiver service: nil due repository")
	}
	if students == nil {
		return nil, errors.New("waiver service: nil student reader")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &WaiverService{waivers: waivers, dues: dues, students: students, notifier: notifier, clock: clock, logger: logger}, nil
}

// Request opens a waiver request against a pending due. requestedBy is the
// requesting parent; empty requestedBy bypasses the ownership check
// (admin).
func (s *WaiverService) Request(ctx context.Context, dueID, requestedBy, reason string) (*billing.WaiverRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.New("waiver service: empty reason")
	}
	due, err := s.dues.GetByID(ctx, dueID)
	if err != nil {
		return nil, err
	}
	if due == nil {
		return nil, billing.ErrDueNotFound
	}
	if requestedBy != "" {
		student, err := s.students.Get(ctx, due.StudentID)
		if err != nil {
			return nil, err
		}
		if student == nil || student.ParentID != requestedBy {
			return nil, billing.ErrDueNotFound
		}
	}
	if due.IsFrozen() {
		return nil, billing.ErrInvalidState
	}

	waiver, err := billing.NewWaiverRequest(due.ID, requestedBy, reason)
	if err != nil {
		return nil, err
	}
	if err := s.waivers.Create(ctx, waiver); err != nil {
		return nil, err
	}
	metrics.IncWaiverDecision("requested")
	return waiver, nil
}

// Approve grants a pending waiver: the due flips to waived, its penalty is
// dropped and the ledger row freezes.
func (s *WaiverService) Approve(ctx context.Context, waiverID, decidedBy string) error {
	waiver, err := s.waivers.GetByID(ctx, waiverID)
	if err != nil {
		return err
	}
	if waiver == nil {
		return billing.ErrWaiverNotFound
	}
	if waiver.Status != billing.WaiverPending {
		return billing.ErrInvalidState
	}

	due, err := s.dues.GetByID(ctx, waiver.DueID)
	if err != nil {
		return err
	}
	if due == nil {
		return billing.ErrDueNotFound
	}
	if due.Status != billing.StatusPending {
		return billing.ErrInvalidState
	}

	now := s.clock.Now()
	decided, err := s.waivers.Decide(ctx, waiver.ID, billing.WaiverApproved, decidedBy, now)
	if err != nil {
		return err
	}
	if !decided {
		return billing.ErrInvalidState
	}

	total := due.BaseFee - due.Discount
	if total < 0 {
		total = 0
	}
	waived, err := s.dues.MarkWaived(ctx, due.ID, total, now)
	if err != nil {
		return err
	}
	if !waived {
		// The due settled between the reads above and this write. The
		// waiver decision stands; the ledger keeps the captured state.
		if s.logger != nil {
			s.logger.Printf("waiver approve: due=%s already settled", due.ID)
		}
		return billing.ErrInvalidState
	}

	metrics.IncWaiverDecision("approved")
	if s.logger != nil {
		s.logger.Printf("waiver approved: waiver=%s due=%s by=%s", waiver.ID, due.ID, decidedBy)
	}

	if s.notifier != nil {
		current, err := s.dues.GetByID(ctx, due.ID)
		if err != nil || current == nil {
			current = due
		}
		student, err := s.students.Get(ctx, due.StudentID)
		if err != nil && s.logger != nil {
			s.logger.Printf("notify lookup: student=%s err=%v", due.StudentID, err)
		}
		s.notifier.PenaltyWaived(ctx, current, student)
	}
	return nil
}

// Reject declines a pending waiver. The due is untouched and keeps
// accruing.
func (s *WaiverService) Reject(ctx context.Context, waiverID, decidedBy string) error {
	waiver, err := s.waivers.GetByID(ctx, waiverID)
	if err != nil {
		return err
	}
	if waiver == nil {
		return billing.ErrWaiverNotFound
	}
	if waiver.Status != billing.WaiverPending {
		return billing.ErrInvalidState
	}
	decided, err := s.waivers.Decide(ctx, waiver.ID, billing.WaiverRejected, decidedBy, s.clock.Now())
	if err != nil {
		return err
	}
	if !decided {
		return billing.ErrInvalidState
	}
	metrics.IncWaiverDecision("rejected")
	return nil
}

// ListPending returns waivers awaiting a decision.
func (s *WaiverService) ListPending(ctx context.Context) ([]*billing.WaiverRequest, error) {
	return s.waivers.ListByStatus(ctx, billing.WaiverPending)
}

package application

import (
	"context"
	"errors"
	"time"

	billing "busway-cloud/internal/billing/domain"
)

// DueView is a due as presented to callers: stored state plus the penalty
// and total assessed at read time, never a stale stored figure.
type DueView struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"student_id"`
	StudentName string     `json:"student_name,omitempty"`
	Period      string     `json:"period"`
	BaseFee     float64    `json:"base_fee"`
	Discount    float64    `json:"discount"`
	Penalty     float64    `json:"penalty"`
	TotalDue    float64    `json:"total_due"`
	DueDate     time.Time  `json:"due_date"`
	HardCutoff  time.Time  `json:"hard_cutoff_date"`
	Status      string     `json:"status"`
	Payable     bool       `json:"payable"`
	PaymentID   string     `json:"payment_id,omitempty"`
	Method      string     `json:"payment_method,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

// Defaulter is a student with at least one overdue pending due.
type Defaulter struct {
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name,omitempty"`
	ParentPhone string  `json:"parent_phone,omitempty"`
	DueCount    int     `json:"due_count"`
	TotalOwed   float64 `json:"total_owed"`
}

// DueQueryService reads the ledger with fresh penalty assessment and the
// sequential payment gate applied.
type DueQueryService struct {
	dues     billing.DueRepository
	students StudentReader
	policy   PolicyConfig
	clock    Clock
}

// NewDueQueryService constructs the service.
func NewDueQueryService(dues billing.DueRepository, students StudentReader, policy PolicyConfig, clock Clock) (*DueQueryService, error) {
	if dues == nil {
		return nil, errors.New("due query service: nil due repository")
	}
	if students == nil {
		return nil, errors.New("due query service: nil student reader")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &DueQueryService{dues: dues, students: students, policy: policy, clock: clock}, nil
}

// ListByStudent returns all dues of a student, oldest period first.
// parentID restricts visibility to the requester's own students; empty
// parentID bypasses the check (admin).
func (s *DueQueryService) ListByStudent(ctx context.Context, studentID, parentID string) ([]DueView, error) {
	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, billing.ErrDueNotFound
	}
	if parentID != "" && student.ParentID != parentID {
		return nil, billing.ErrDueNotFound
	}

	dues, err := s.dues.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	views := make([]DueView, 0, len(dues))
	for _, due := range dues {
		views = append(views, s.view(due, dues, student.FullName, now))
	}
	return views, nil
}

// ListByPeriod returns every due of a billing period. Admin scope.
func (s *DueQueryService) ListByPeriod(ctx context.Context, period billing.Period) ([]DueView, error) {
	if period.IsZero() {
		return nil, billing.ErrInvalidPeriod
	}
	dues, err := s.dues.ListByPeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	views := make([]DueView, 0, len(dues))
	for _, due := range dues {
		name := ""
		if student, err := s.students.Get(ctx, due.StudentID); err == nil && student != nil {
			name = student.FullName
		}
		views = append(views, s.view(due, nil, name, now))
	}
	return views, nil
}

// Defaulters aggregates students with overdue pending dues and what they
// owe, freshly assessed.
func (s *DueQueryService) Defaulters(ctx context.Context) ([]Defaulter, error) {
	now := s.clock.Now()
	overdue, err := s.dues.ListOverdue(ctx, now)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[string]*Defaulter)
	order := make([]string, 0)
	for _, due := range overdue {
		assessment := s.policy.LateFee().Assess(due, now)
		entry, ok := byStudent[due.StudentID]
		if !ok {
			entry = &Defaulter{StudentID: due.StudentID}
			if student, err := s.students.Get(ctx, due.StudentID); err == nil && student != nil {
				entry.StudentName = student.FullName
				entry.ParentPhone = student.ParentPhone
			}
			byStudent[due.StudentID] = entry
			order = append(order, due.StudentID)
		}
		entry.DueCount++
		entry.TotalOwed += assessment.Total
	}

	out := make([]Defaulter, 0, len(order))
	for _, id := range order {
		out = append(out, *byStudent[id])
	}
	return out, nil
}

// view assembles a DueView. siblings, when non-nil, feed the payment gate;
// when nil Payable falls back to the status alone.
func (s *DueQueryService) view(due *billing.DueRecord, siblings []*billing.DueRecord, studentName string, now time.Time) DueView {
	assessment := s.policy.LateFee().Assess(due, now)
	payable := due.Status == billing.StatusPending
	if siblings != nil {
		payable = billing.IsPayable(due, siblings)
	}
	view := DueView{
		ID:          due.ID,
		StudentID:   due.StudentID,
		StudentName: studentName,
		Period:      due.Period.String(),
		BaseFee:     due.BaseFee,
		Discount:    due.Discount,
		Penalty:     assessment.Penalty,
		TotalDue:    assessment.Total,
		DueDate:     due.DueDate,
		HardCutoff:  due.HardCutoffDate,
		Status:      string(due.Status),
		Payable:     payable,
		PaymentID:   due.GatewayPaymentID,
		Method:      due.PaymentMethod,
	}
	if !due.PaidAt.IsZero() {
		paidAt := due.PaidAt.UTC()
		view.PaidAt = &paidAt
	}
	return view
}

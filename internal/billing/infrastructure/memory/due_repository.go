package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	billing "busway-cloud/internal/billing/domain"
)

// DueRepository is an in-memory due store with the same conditional-write
// contract as the Postgres one. Used in tests.
type DueRepository struct {
	mu   sync.Mutex
	dues map[string]*billing.DueRecord
}

// NewDueRepository constructs an empty repository.
func NewDueRepository() *DueRepository {
	return &DueRepository{dues: make(map[string]*billing.DueRecord)}
}

// Create inserts a due unless one exists for (student, period).
func (r *DueRepository) Create(_ context.Context, due *billing.DueRecord) (bool, error) {
	if due == nil {
		return false, billing.ErrNilDue
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.dues {
		if existing.StudentID == due.StudentID && existing.Period == due.Period {
			return false, nil
		}
	}
	r.dues[due.ID] = due.Clone()
	return true, nil
}

// GetByID fetches a due.
func (r *DueRepository) GetByID(_ context.Context, id string) (*billing.DueRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dues[id].Clone(), nil
}

// GetByOrderID fetches the due carrying a gateway order id.
func (r *DueRepository) GetByOrderID(_ context.Context, orderID string) (*billing.DueRecord, error) {
	if orderID == "" {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, due := range r.dues {
		if due.GatewayOrderID == orderID {
			return due.Clone(), nil
		}
	}
	return nil, nil
}

// ListByStudent lists all dues of a student, oldest period first.
func (r *DueRepository) ListByStudent(_ context.Context, studentID string) ([]*billing.DueRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*billing.DueRecord
	for _, due := range r.dues {
		if due.StudentID == studentID {
			result = append(result, due.Clone())
		}
	}
	sortByPeriod(result)
	return result, nil
}

// ListByPeriod lists all dues of a billing period.
func (r *DueRepository) ListByPeriod(_ context.Context, period billing.Period) ([]*billing.DueRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*billing.DueRecord
	for _, due := range r.dues {
		if due.Period == period {
			result = append(result, due.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

// ListOverdue lists pending dues whose due date passed before asOf.
func (r *DueRepository) ListOverdue(_ context.Context, asOf time.Time) ([]*billing.DueRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*billing.DueRecord
	for _, due := range r.dues {
		if due.Status == billing.StatusPending && due.DueDate.Before(asOf) {
			result = append(result, due.Clone())
		}
	}
	sortByPeriod(result)
	return result, nil
}

// AttachOrder binds a gateway order, first writer wins.
func (r *DueRepository) AttachOrder(_ context.Context, dueID, orderID string, amount float64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due, ok := r.dues[dueID]
	if !ok || due.Status != billing.StatusPending || due.GatewayOrderID != "" {
		return false, nil
	}
	due.GatewayOrderID = orderID
	due.OrderAmount = amount
	due.UpdatedAt = at.UTC()
	return true, nil
}

// MarkCaptured flips PENDING to CAPTURED, exactly one caller wins.
func (r *DueRepository) MarkCaptured(_ context.Context, dueID string, capture billing.Capture) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due, ok := r.dues[dueID]
	if !ok || due.Status != billing.StatusPending {
		return false, nil
	}
	due.Status = billing.StatusCaptured
	due.GatewayPaymentID = capture.PaymentID
	due.PaymentMethod = capture.Method
	due.Penalty = capture.Penalty
	due.TotalDue = capture.Total
	due.PaidAt = capture.PaidAt.UTC()
	due.UpdatedAt = capture.PaidAt.UTC()
	return true, nil
}

// MarkWaived flips PENDING to WAIVED.
func (r *DueRepository) MarkWaived(_ context.Context, dueID string, total float64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due, ok := r.dues[dueID]
	if !ok || due.Status != billing.StatusPending {
		return false, nil
	}
	due.Status = billing.StatusWaived
	due.Penalty = 0
	due.TotalDue = total
	due.UpdatedAt = at.UTC()
	return true, nil
}

func sortByPeriod(dues []*billing.DueRecord) {
	sort.Slice(dues, func(i, j int) bool {
		if dues[i].StudentID != dues[j].StudentID {
			return dues[i].StudentID < dues[j].StudentID
		}
		return dues[i].Period.Before(dues[j].Period)
	})
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	billing "busway-cloud/internal/billing/domain"
)

// WaiverRepository is an in-memory waiver store. Used in tests.
type WaiverRepository struct {
	mu       sync.Mutex
	requests map[string]*billing.WaiverRequest
}

// NewWaiverRepository constructs an empty repository.
func NewWaiverRepository() *WaiverRepository {
	return &WaiverRepository{requests: make(map[string]*billing.WaiverRequest)}
}

// Create inserts a waiver request.
func (r *WaiverRepository) Create(_ context.Context, request *billing.WaiverRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *request
	r.requests[request.ID] = &clone
	return nil
}

// GetByID fetches a waiver request.
func (r *WaiverRepository) GetByID(_ context.Context, id string) (*billing.WaiverRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	clone := *request
	return &clone, nil
}

// ListByStatus lists waiver requests in a given state, oldest first.
func (r *WaiverRepository) ListByStatus(_ context.Context, status billing.WaiverStatus) ([]*billing.WaiverRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*billing.WaiverRequest
	for _, request := range r.requests {
		if request.Status == status {
			clone := *request
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// Decide moves a pending request to a terminal status.
func (r *WaiverRepository) Decide(_ context.Context, id string, status billing.WaiverStatus, decidedBy string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok || request.Status != billing.WaiverPending {
		return false, nil
	}
	request.Status = status
	request.DecidedBy = decidedBy
	request.DecidedAt = at.UTC()
	request.UpdatedAt = at.UTC()
	return true, nil
}

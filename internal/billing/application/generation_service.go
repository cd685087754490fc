package application

import (
	"context"
	"errors"
	"log"

	billing "busway-cloud/internal/billing/domain"
)

// DueGenerationService creates the monthly due ledger rows.
type DueGenerationService struct {
	dues     billing.DueRepository
	students StudentReader
	policy   PolicyConfig
	logger   *log.Logger
}

// NewDueGenerationService constructs the service.
func NewDueGenerationService(dues billing.DueRepository, students StudentReader, policy PolicyConfig, logger *log.Logger) (*DueGenerationService, error) {
	if dues == nil {
		return nil, errors.New("due generation service: nil due repository")
	}
	if students == nil {
		return nil, errors.New("due generation service: nil student reader")
	}
	return &DueGenerationService{dues: dues, students: students, policy: policy, logger: logger}, nil
}

// Generate creates one pending due per active student for the period.
// Idempotent per (student, period): rerunning never duplicates rows.
// dueDay overrides the policy due day when positive. Returns the number of
// dues actually created.
func (s *DueGenerationService) Generate(ctx context.Context, period billing.Period, dueDay int) (int, error) {
	if period.IsZero() {
		return 0, billing.ErrInvalidPeriod
	}
	if dueDay <= 0 {
		dueDay = s.policy.DueDay
	}
	dueDate := period.DayInPeriod(dueDay)
	hardCutoff := dueDate.AddDate(0, 0, s.policy.CutoffDays)

	students, err := s.students.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, student := range students {
		due, err := billing.NewDueRecord(student.ID, period, student.MonthlyFee, dueDate, hardCutoff)
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("due generation: skip student=%s period=%s err=%v", student.ID, period, err)
			}
			continue
		}
		ok, err := s.dues.Create(ctx, due)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

package application

import (
	"context"
	"errors"
	"log"
	"time"

	billing "busway-cloud/internal/billing/domain"
	"busway-cloud/internal/observability/metrics"
)

// ReminderService sweeps overdue pending dues and nudges their parents.
// Deliveries are fire and forget; the notifier dedupes repeats.
type ReminderService struct {
	dues     billing.DueRepository
	students StudentReader
	notifier Notifier
	clock    Clock
	logger   *log.Logger
}

// NewReminderService constructs the service.
func NewReminderService(dues billing.DueRepository, students StudentReader, notifier Notifier, clock Clock, logger *log.Logger) (*ReminderService, error) {
	if dues == nil {
		return nil, errors.New("reminder service: nil due repository")
	}
	if students == nil {
		return nil, errors.New("reminder service: nil student reader")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReminderService{dues: dues, students: students, notifier: notifier, clock: clock, logger: logger}, nil
}

// Sweep sends a reminder for every overdue pending due. Returns the number
// of dues swept.
func (s *ReminderService) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	overdue, err := s.dues.ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, due := range overdue {
		student, err := s.students.Get(ctx, due.StudentID)
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("reminder: student=%s err=%v", due.StudentID, err)
			}
			continue
		}
		if s.notifier != nil {
			s.notifier.DueReminder(ctx, due, student)
		}
		swept++
	}
	metrics.ObserveReminderSweep(swept)
	if s.logger != nil {
		s.logger.Printf("reminder sweep: overdue=%d swept=%d", len(overdue), swept)
	}
	return swept, nil
}

// ReminderScheduler runs the sweep once a day at a fixed wall clock time.
type ReminderScheduler struct {
	reminders *ReminderService
	dailyAt   string
	logger    *log.Logger
}

// NewReminderScheduler constructs the scheduler. dailyAt is "HH:MM" UTC.
func NewReminderScheduler(reminders *ReminderService, dailyAt string, logger *log.Logger) *ReminderScheduler {
	return &ReminderScheduler{reminders: reminders, dailyAt: dailyAt, logger: logger}
}

// Start begins the scheduler loop.
func (s *ReminderScheduler) Start(ctx context.Context) {
	if s == nil || s.reminders == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			if _, err := s.reminders.Sweep(ctx); err != nil && s.logger != nil {
				s.logger.Printf("reminder schedule error: %v", err)
			}
		}
	}
}

func (s *ReminderScheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

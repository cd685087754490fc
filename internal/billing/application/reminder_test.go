package application

import (
	"context"
	"errors"
	"testing"
	"time"

	billing "busway-cloud/internal/billing/domain"
	"busway-cloud/internal/billing/infrastructure/memory"
)

func TestReminderSweep(t *testing.T) {
	dues := memory.NewDueRepository()
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)}
	students := &stubStudents{students: []Student{
		{ID: "stu-1", ParentID: "parent-1", ParentPhone: "+911234567890", MonthlyFee: 1500, Active: true},
	}}

	overdue := mustDue(t, "stu-1", time.February, 1500)
	current := mustDue(t, "stu-1", time.March, 1500)
	settled := mustDue(t, "stu-1", time.January, 1500)
	for _, due := range []*billing.DueRecord{overdue, current, settled} {
		if _, err := dues.Create(context.Background(), due); err != nil {
			t.Fatalf("seed due: %v", err)
		}
	}
	if _, err := dues.MarkCaptured(context.Background(), settled.ID, billing.Capture{
		PaymentID: "pay_1", Method: "online", Total: 1500, PaidAt: clock.Now(),
	}); err != nil {
		t.Fatalf("mark captured: %v", err)
	}

	service, err := NewReminderService(dues, students, notifier, clock, nil)
	if err != nil {
		t.Fatalf("new reminder service: %v", err)
	}

	swept, err := service.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	// February and March are pending and past due; January is settled.
	if swept != 2 {
		t.Fatalf("expected 2 dues swept, got %d", swept)
	}
	if len(notifier.reminders) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(notifier.reminders))
	}
}

func TestReminderSweepSkipsLookupFailures(t *testing.T) {
	dues := memory.NewDueRepository()
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)}
	students := &stubStudents{getErr: errors.New("roster down")}

	due := mustDue(t, "stu-1", time.February, 1500)
	if _, err := dues.Create(context.Background(), due); err != nil {
		t.Fatalf("seed due: %v", err)
	}

	service, err := NewReminderService(dues, students, notifier, clock, nil)
	if err != nil {
		t.Fatalf("new reminder service: %v", err)
	}
	swept, err := service.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if swept != 0 || len(notifier.reminders) != 0 {
		t.Fatalf("lookup failures must be skipped, swept=%d", swept)
	}
}

func TestSchedulerShouldRun(t *testing.T) {
	scheduler := NewReminderScheduler(nil, "09:30", nil)
	if !scheduler.shouldRun(time.Date(2024, 3, 12, 9, 30, 15, 0, time.UTC)) {
		t.Fatalf("expected run at 09:30")
	}
	if scheduler.shouldRun(time.Date(2024, 3, 12, 9, 31, 0, 0, time.UTC)) {
		t.Fatalf("expected no run at 09:31")
	}

	broken := NewReminderScheduler(nil, "later", nil)
	if broken.shouldRun(time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("unparseable schedule must never fire")
	}
}

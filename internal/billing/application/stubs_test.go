package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	billing "busway-cloud/internal/billing/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type stubStudents struct {
	students []Student
	getErr   error
}

func (s *stubStudents) Get(_ context.Context, id string) (*Student, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	for _, student := range s.students {
		if student.ID == id {
			copy := student
			return &copy, nil
		}
	}
	return nil, nil
}

func (s *stubStudents) ListActive(_ context.Context) ([]Student, error) {
	var active []Student
	for _, student := range s.students {
		if student.Active {
			active = append(active, student)
		}
	}
	return active, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	captured  []string
	waived    []string
	reminders []string
}

func (n *recordingNotifier) PaymentCaptured(_ context.Context, due *billing.DueRecord, _ *Student) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.captured = append(n.captured, due.ID)
}

func (n *recordingNotifier) PenaltyWaived(_ context.Context, due *billing.DueRecord, _ *Student) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.waived = append(n.waived, due.ID)
}

func (n *recordingNotifier) DueReminder(_ context.Context, due *billing.DueRecord, _ *Student) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, due.ID)
}

func (n *recordingNotifier) capturedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.captured)
}

type stubOrderCreator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (o *stubOrderCreator) CreateOrder(_ context.Context, amountMinor int64, currency, _ string) (CreatedOrder, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return CreatedOrder{}, o.err
	}
	o.calls++
	return CreatedOrder{
		OrderID:  fmt.Sprintf("order_%03d", o.calls),
		Amount:   amountMinor,
		Currency: currency,
	}, nil
}

func testPolicy() PolicyConfig {
	return PolicyConfig{
		GraceDays:  0,
		DailyRate:  50,
		FineCap:    500,
		DueDay:     10,
		CutoffDays: 5,
		Currency:   "INR",
	}
}

func mustPeriod(t *testing.T, year int, month time.Month) billing.Period {
	t.Helper()
	period, err := billing.NewPeriod(year, month)
	if err != nil {
		t.Fatalf("new period: %v", err)
	}
	return period
}

func mustDue(t *testing.T, studentID string, month time.Month, baseFee float64) *billing.DueRecord {
	t.Helper()
	period := mustPeriod(t, 2024, month)
	due, err := billing.NewDueRecord(studentID, period, baseFee,
		period.DayInPeriod(10), period.DayInPeriod(15))
	if err != nil {
		t.Fatalf("new due: %v", err)
	}
	return due
}

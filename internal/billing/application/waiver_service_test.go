package application

import (
	"context"
	"errors"
	"testing"
	"time"

	billing "busway-cloud/internal/billing/domain"
	"busway-cloud/internal/billing/infrastructure/memory"
)

type waiverFixture struct {
	service  *WaiverService
	waivers  *memory.WaiverRepository
	dues     *memory.DueRepository
	notifier *recordingNotifier
	clock    *fakeClock
	due      *billing.DueRecord
}

func newWaiverFixture(t *testing.T) *waiverFixture {
	t.Helper()
	waivers := memory.NewWaiverRepository()
	dues := memory.NewDueRepository()
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)}
	students := &stubStudents{students: []Student{
		{ID: "stu-1", ParentID: "parent-1", FullName: "Asha Rao", MonthlyFee: 1500, Active: true},
	}}

	due := mustDue(t, "stu-1", time.March, 1500)
	if _, err := dues.Create(context.Background(), due); err != nil {
		t.Fatalf("seed due: %v", err)
	}

	service, err := NewWaiverService(waivers, dues, students, notifier, clock, nil)
	if err != nil {
		t.Fatalf("new waiver service: %v", err)
	}
	return &waiverFixture{service: service, waivers: waivers, dues: dues, notifier: notifier, clock: clock, due: due}
}

func TestWaiverRequest(t *testing.T) {
	f := newWaiverFixture(t)

	waiver, err := f.service.Request(context.Background(), f.due.ID, "parent-1", "job loss")
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if waiver.Status != billing.WaiverPending {
		t.Fatalf("expected pending waiver, got %s", waiver.Status)
	}
	if waiver.DueID != f.due.ID || waiver.RequestedBy != "parent-1" {
		t.Fatalf("unexpected waiver: %+v", waiver)
	}

	pending, err := f.service.ListPending(context.Background())
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != waiver.ID {
		t.Fatalf("expected the new waiver listed, got %+v", pending)
	}
}

func TestWaiverRequestValidation(t *testing.T) {
	f := newWaiverFixture(t)

	if _, err := f.service.Request(context.Background(), f.due.ID, "parent-1", "  "); err == nil {
		t.Fatalf("expected error for empty reason")
	}
	if _, err := f.service.Request(context.Background(), "due-missing", "parent-1", "reason"); !errors.Is(err, billing.ErrDueNotFound) {
		t.Fatalf("expected ErrDueNotFound, got %v", err)
	}
	if _, err := f.service.Request(context.Background(), f.due.ID, "parent-other", "reason"); !errors.Is(err, billing.ErrDueNotFound) {
		t.Fatalf("expected ErrDueNotFound for foreign parent, got %v", err)
	}

	if _, err := f.dues.MarkCaptured(context.Background(), f.due.ID, billing.Capture{
		PaymentID: "pay_1", Method: "online", Total: 1500, PaidAt: f.clock.Now(),
	}); err != nil {
		t.Fatalf("mark captured: %v", err)
	}
	if _, err := f.service.Request(context.Background(), f.due.ID, "parent-1", "reason"); !errors.Is(err, billing.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for settled due, got %v", err)
	}
}

func TestWaiverApprove(t *testing.T) {
	f := newWaiverFixture(t)
	waiver, err := f.service.Request(context.Background(), f.due.ID, "parent-1", "job loss")
	if err != nil {
		t.Fatalf("request error: %v", err)
	}

	if err := f.service.Approve(context.Background(), waiver.ID, "admin-1"); err != nil {
		t.Fatalf("approve error: %v", err)
	}

	due, _ := f.dues.GetByID(context.Background(), f.due.ID)
	if due.Status != billing.StatusWaived {
		t.Fatalf("expected waived due, got %s", due.Status)
	}
	if due.Penalty != 0 || due.TotalDue != 1500 {
		t.Fatalf("expected penalty dropped, got penalty=%.2f total=%.2f", due.Penalty, due.TotalDue)
	}

	decided, _ := f.waivers.GetByID(context.Background(), waiver.ID)
	if decided.Status != billing.WaiverApproved || decided.DecidedBy != "admin-1" {
		t.Fatalf("unexpected waiver state: %+v", decided)
	}
	if len(f.notifier.waived) != 1 {
		t.Fatalf("expected one waiver notification, got %d", len(f.notifier.waived))
	}
}

func TestWaiverApproveSettledDue(t *testing.T) {
	f := newWaiverFixture(t)
	waiver, err := f.service.Request(context.Background(), f.due.ID, "parent-1", "job loss")
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if _, err := f.dues.MarkCaptured(context.Background(), f.due.ID, billing.Capture{
		PaymentID: "pay_1", Method: "online", Total: 1500, PaidAt: f.clock.Now(),
	}); err != nil {
		t.Fatalf("mark captured: %v", err)
	}

	if err := f.service.Approve(context.Background(), waiver.ID, "admin-1"); !errors.Is(err, billing.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	due, _ := f.dues.GetByID(context.Background(), f.due.ID)
	if due.Status != billing.StatusCaptured {
		t.Fatalf("captured due must keep its state")
	}
}

func TestWaiverApproveTwice(t *testing.T) {
	f := newWaiverFixture(t)
	waiver, err := f.service.Request(context.Background(), f.due.ID, "parent-1", "job loss")
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if err := f.service.Approve(context.Background(), waiver.ID, "admin-1"); err != nil {
		t.Fatalf("approve error: %v", err)
	}
	if err := f.service.Approve(context.Background(), waiver.ID, "admin-1"); !errors.Is(err, billing.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second approve, got %v", err)
	}
}

func TestWaiverReject(t *testing.T) {
	f := newWaiverFixture(t)
	waiver, err := f.service.Request(context.Background(), f.due.ID, "parent-1", "job loss")
	if err != nil {
		t.Fatalf("request error: %v", err)
	}

	if err := f.service.Reject(context.Background(), waiver.ID, "admin-1"); err != nil {
		t.Fatalf("reject error: %v", err)
	}

	due, _ := f.dues.GetByID(context.Background(), f.due.ID)
	if due.Status != billing.StatusPending {
		t.Fatalf("rejected waiver must leave the due pending")
	}
	decided, _ := f.waivers.GetByID(context.Background(), waiver.ID)
	if decided.Status != billing.WaiverRejected {
		t.Fatalf("expected rejected waiver, got %s", decided.Status)
	}
	if len(f.notifier.waived) != 0 {
		t.Fatalf("reject must not notify")
	}
}

func TestWaiverUnknown(t *testing.T) {
	f := newWaiverFixture(t)
	if err := f.service.Approve(context.Background(), "wvr-missing", "admin-1"); !errors.Is(err, billing.ErrWaiverNotFound) {
		t.Fatalf("expected ErrWaiverNotFound, got %v", err)
	}
}

package application

import (
	"context"
	"errors"
	"testing"
	"time"

	billing "busway-cloud/internal/billing/domain"
	"busway-cloud/internal/billing/infrastructure/memory"
)

type orderFixture struct {
	service *PaymentOrderService
	dues    *memory.DueRepository
	orders  *stubOrderCreator
	clock   *fakeClock
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	dues := memory.NewDueRepository()
	orders := &stubOrderCreator{}
	clock := &fakeClock{now: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)}
	students := &stubStudents{students: []Student{
		{ID: "stu-1", ParentID: "parent-1", FullName: "Asha Rao", MonthlyFee: 1500, Active: true},
	}}
	service, err := NewPaymentOrderService(dues, students, orders, testPolicy(), clock)
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	return &orderFixture{service: service, dues: dues, orders: orders, clock: clock}
}

func (f *orderFixture) seed(t *testing.T, month time.Month) *billing.DueRecord {
	t.Helper()
	due := mustDue(t, "stu-1", month, 1500)
	if _, err := f.dues.Create(context.Background(), due); err != nil {
		t.Fatalf("seed due: %v", err)
	}
	return due
}

func TestCreateOrUseCreatesOrder(t *testing.T) {
	f := newOrderFixture(t)
	due := f.seed(t, time.March)

	details, err := f.service.CreateOrUse(context.Background(), due.ID, "parent-1")
	if err != nil {
		t.Fatalf("create order error: %v", err)
	}
	if details.OrderID == "" {
		t.Fatalf("expected order id")
	}
	if details.Amount != 150000 || details.Total != 1500 {
		t.Fatalf("unexpected amounts: %+v", details)
	}
	if details.Currency != "INR" {
		t.Fatalf("unexpected currency %q", details.Currency)
	}

	stored, _ := f.dues.GetByID(context.Background(), due.ID)
	if stored.GatewayOrderID != details.OrderID || stored.OrderAmount != 1500 {
		t.Fatalf("order not attached: %+v", stored)
	}
}

func TestCreateOrUseReusesOrder(t *testing.T) {
	f := newOrderFixture(t)
	due := f.seed(t, time.March)

	first, err := f.service.CreateOrUse(context.Background(), due.ID, "parent-1")
	if err != nil {
		t.Fatalf("first call error: %v", err)
	}

	// Time passes past the cutoff. The stored order amount must still be
	// replayed, not reassessed.
	f.clock.Set(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	second, err := f.service.CreateOrUse(context.Background(), due.ID, "parent-1")
	if err != nil {
		t.Fatalf("second call error: %v", err)
	}
	if second.OrderID != first.OrderID || second.Amount != first.Amount {
		t.Fatalf("expected identical order replay, got %+v vs %+v", first, second)
	}
	if f.orders.calls != 1 {
		t.Fatalf("expected a single gateway order, got %d", f.orders.calls)
	}
}

func TestCreateOrUseIncludesPenalty(t *testing.T) {
	f := newOrderFixture(t)
	due := f.seed(t, time.March)
	f.clock.Set(time.Date(2024, 3, 12, 6, 0, 0, 0, time.UTC))

	details, err := f.service.CreateOrUse(context.Background(), due.ID, "")
	if err != nil {
		t.Fatalf("create order error: %v", err)
	}
	if details.Total != 1650 || details.Amount != 165000 {
		t.Fatalf("expected late total in order, got %+v", details)
	}
}

func TestCreateOrUseBlockedByEarlierDue(t *testing.T) {
	f := newOrderFixture(t)
	f.seed(t, time.February)
	march := f.seed(t, time.March)

	_, err := f.service.CreateOrUse(context.Background(), march.ID, "parent-1")
	if !errors.Is(err, billing.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestCreateOrUseOwnership(t *testing.T) {
	f := newOrderFixture(t)
	due := f.seed(t, time.March)

	_, err := f.service.CreateOrUse(context.Background(), due.ID, "parent-other")
	if !errors.Is(err, billing.ErrDueNotFound) {
		t.Fatalf("expected ErrDueNotFound for foreign parent, got %v", err)
	}

	if _, err := f.service.CreateOrUse(context.Background(), due.ID, ""); err != nil {
		t.Fatalf("admin call should pass, got %v", err)
	}
}

func TestCreateOrUseSettledDue(t *testing.T) {
	f := newOrderFixture(t)
	due := f.seed(t, time.March)
	if _, err := f.dues.MarkCaptured(context.Background(), due.ID, billing.Capture{
		PaymentID: "pay_1", Method: "online", Total: 1500, PaidAt: f.clock.Now(),
	}); err != nil {
		t.Fatalf("mark captured: %v", err)
	}

	_, err := f.service.CreateOrUse(context.Background(), due.ID, "parent-1")
	if !errors.Is(err, billing.ErrAlreadyCaptured) {
		t.Fatalf("expected ErrAlreadyCaptured, got %v", err)
	}

	waived := f.seed(t, time.April)
	if _, err := f.dues.MarkWaived(context.Background(), waived.ID, 1500, f.clock.Now()); err != nil {
		t.Fatalf("mark waived: %v", err)
	}
	_, err = f.service.CreateOrUse(context.Background(), waived.ID, "parent-1")
	if !errors.Is(err, billing.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for waived due, got %v", err)
	}
}

func TestCreateOrUseUnknownDue(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.service.CreateOrUse(context.Background(), "due-missing", "")
	if !errors.Is(err, billing.ErrDueNotFound) {
		t.Fatalf("expected ErrDueNotFound, got %v", err)
	}
}

package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"busway-cloud/internal/billing/application"
	billing "busway-cloud/internal/billing/domain"
	billingrepo "busway-cloud/internal/billing/infrastructure/postgres"
	"busway-cloud/internal/gateway"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var integrationKeySecret = []byte("integration-key-secret")

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type seqOrderCreator struct{ calls int }

func (o *seqOrderCreator) CreateOrder(_ context.Context, amountMinor int64, currency, _ string) (application.CreatedOrder, error) {
	o.calls++
	return application.CreatedOrder{
		OrderID:  fmt.Sprintf("order_it_%03d", o.calls),
		Amount:   amountMinor,
		Currency: currency,
	}, nil
}

func TestFeeLifecycle_GenerateOrderVerifyAndWaive(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applyBillingMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM waiver_requests")
	_, _ = db.ExecContext(ctx, "DELETE FROM monthly_dues")
	_, _ = db.ExecContext(ctx, "DELETE FROM students WHERE id LIKE 'it-stu-%'")

	if err := seedStudents(ctx, db); err != nil {
		t.Fatalf("seed students: %v", err)
	}

	dues := billingrepo.NewDueRepository(db)
	waivers := billingrepo.NewWaiverRepository(db)
	students := billingrepo.NewStudentReader(db)
	clock := &fixedClock{now: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}
	policy := application.PolicyConfig{
		DailyRate:  50,
		FineCap:    500,
		DueDay:     10,
		CutoffDays: 5,
		Currency:   "INR",
	}

	generation, err := application.NewDueGenerationService(dues, students, policy, nil)
	if err != nil {
		t.Fatalf("generation service: %v", err)
	}
	orders, err := application.NewPaymentOrderService(dues, students, &seqOrderCreator{}, policy, clock)
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	reconcile, err := application.NewReconcileService(dues, students, nil, policy, integrationKeySecret, clock, nil)
	if err != nil {
		t.Fatalf("reconcile service: %v", err)
	}
	waiverService, err := application.NewWaiverService(waivers, dues, students, nil, clock, nil)
	if err != nil {
		t.Fatalf("waiver service: %v", err)
	}

	january, err := billing.NewPeriod(2026, time.January)
	if err != nil {
		t.Fatalf("new period: %v", err)
	}
	february, err := billing.NewPeriod(2026, time.February)
	if err != nil {
		t.Fatalf("new period: %v", err)
	}

	// Generation is idempotent per (student, period).
	created, err := generation.Generate(ctx, january, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 dues, created %d", created)
	}
	if rerun, err := generation.Generate(ctx, january, 0); err != nil || rerun != 0 {
		t.Fatalf("rerun must create nothing, created=%d err=%v", rerun, err)
	}
	if _, err := generation.Generate(ctx, february, 0); err != nil {
		t.Fatalf("generate february: %v", err)
	}

	janDues, err := dues.ListByPeriod(ctx, january)
	if err != nil || len(janDues) != 2 {
		t.Fatalf("list january: n=%d err=%v", len(janDues), err)
	}
	first := janDues[0]

	// One order per due, replayed on repeat calls.
	order, err := orders.CreateOrUse(ctx, first.ID, "")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	replay, err := orders.CreateOrUse(ctx, first.ID, "")
	if err != nil {
		t.Fatalf("replay order: %v", err)
	}
	if replay.OrderID != order.OrderID || replay.Amount != order.Amount {
		t.Fatalf("expected order replay, got %+v vs %+v", order, replay)
	}

	// February is gated until January settles.
	febDues, err := dues.ListByStudent(ctx, first.StudentID)
	if err != nil {
		t.Fatalf("list by student: %v", err)
	}
	var febDue *billing.DueRecord
	for _, due := range febDues {
		if due.Period == february {
			febDue = due
		}
	}
	if febDue == nil {
		t.Fatalf("missing february due")
	}
	if _, err := orders.CreateOrUse(ctx, febDue.ID, ""); !errors.Is(err, billing.ErrLocked) {
		t.Fatalf("expected ErrLocked for february, got %v", err)
	}

	// Client verify settles the due; the webhook replay converges.
	verify := application.VerifyRequest{
		DueID:     first.ID,
		OrderID:   order.OrderID,
		PaymentID: "pay_it_1",
		Signature: gateway.PaymentSignature(integrationKeySecret, order.OrderID, "pay_it_1"),
	}
	if err := reconcile.VerifyClientCallback(ctx, verify); err != nil {
		t.Fatalf("verify: %v", err)
	}
	var event gateway.WebhookEvent
	event.Event = gateway.EventPaymentCaptured
	event.Payload.Payment.Entity = gateway.PaymentEntity{ID: "pay_it_1", OrderID: order.OrderID, Method: "upi"}
	if err := reconcile.HandleWebhookEvent(ctx, event); err != nil {
		t.Fatalf("webhook replay: %v", err)
	}

	settled, err := dues.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("get settled: %v", err)
	}
	if settled.Status != billing.StatusCaptured || settled.GatewayPaymentID != "pay_it_1" || settled.PaymentMethod != "online" {
		t.Fatalf("unexpected settled due: %+v", settled)
	}

	// With January captured, February opens up.
	if _, err := orders.CreateOrUse(ctx, febDue.ID, ""); err != nil {
		t.Fatalf("february order after settle: %v", err)
	}

	// Waiver flow on the second student's January due.
	second := janDues[1]
	waiver, err := waiverService.Request(ctx, second.ID, "", "bus route discontinued")
	if err != nil {
		t.Fatalf("waiver request: %v", err)
	}
	if err := waiverService.Approve(ctx, waiver.ID, "admin-it"); err != nil {
		t.Fatalf("waiver approve: %v", err)
	}
	waived, err := dues.GetByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("get waived: %v", err)
	}
	if waived.Status != billing.StatusWaived || waived.Penalty != 0 {
		t.Fatalf("unexpected waived due: %+v", waived)
	}
}

func seedStudents(ctx context.Context, db *sql.DB) error {
	rows := []struct {
		id, parent, name string
		fee              float64
	}{
		{"it-stu-001", "it-parent-001", "Asha Rao", 1500},
		{"it-stu-002", "it-parent-002", "Vikram Iyer", 1800},
	}
	for _, row := range rows {
		_, err := db.ExecContext(ctx, `
INSERT INTO students (id, parent_id, full_name, parent_phone, monthly_fee, active)
VALUES ($1,$2,$3,'+910000000000',$4,TRUE)
ON CONFLICT (id) DO UPDATE SET monthly_fee = EXCLUDED.monthly_fee, active = TRUE`,
			row.id, row.parent, row.name, row.fee)
		if err != nil {
			return err
		}
	}
	return nil
}

func applyBillingMigrations(db *sql.DB) error {
	root := projectRoot()
	files := []string{
		filepath.Join(root, "migrations", "001_students.sql"),
		filepath.Join(root, "migrations", "002_monthly_dues.sql"),
		filepath.Join(root, "migrations", "003_waiver_requests.sql"),
		filepath.Join(root, "migrations", "004_audit_logs.sql"),
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(content)); err != nil {
			return err
		}
	}
	return nil
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}

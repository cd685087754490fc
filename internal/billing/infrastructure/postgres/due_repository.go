package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	billing "busway-cloud/internal/billing/domain"
)

const dueColumns = `
	id, student_id, period_year, period_month, base_fee, discount, penalty,
	total_due, due_date, hard_cutoff_date, status, gateway_order_id,
	order_amount, gateway_payment_id, payment_method, paid_at,
	created_at, updated_at`

// DueRepository persists due records in Postgres. Every state transition is
// a conditional write, so concurrent writers resolve in the database.
type DueRepository struct {
	db *sql.DB
}

// NewDueRepository constructs a repository.
func NewDueRepository(db *sql.DB) *DueRepository {
	return &DueRepository{db: db}
}

// Create inserts a due unless one already exists for (student, period).
func (r *DueRepository) Create(ctx context.Context, due *billing.DueRecord) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("due repo: nil db")
	}
	if due == nil {
		return false, billing.ErrNilDue
	}
	result, err := r.db.ExecContext(ctx, `
INSERT INTO monthly_dues (
	id, student_id, period_year, period_month, base_fee, discount, penalty,
	total_due, due_date, hard_cutoff_date, status, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
ON CONFLICT (student_id, period_year, period_month) DO NOTHING`,
		due.ID, due.StudentID, due.Period.Year, int(due.Period.Month),
		due.BaseFee, due.Discount, due.Penalty, due.TotalDue,
		due.DueDate.UTC(), due.HardCutoffDate.UTC(), string(due.Status),
		due.CreatedAt.UTC(), due.UpdatedAt.UTC(),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetByID fetches a due.
func (r *DueRepository) GetByID(ctx context.Context, id string) (*billing.DueRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("due repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+dueColumns+`
FROM monthly_dues
WHERE id = $1
LIMIT 1`, id)
	return scanDue(row)
}

// GetByOrderID fetches the due carrying a gateway order id.
func (r *DueRepository) GetByOrderID(ctx context.Context, orderID string) (*billing.DueRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("due repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+dueColumns+`
FROM monthly_dues
WHERE gateway_order_id = $1
LIMIT 1`, orderID)
	return scanDue(row)
}

// ListByStudent lists all dues of a student, oldest period first.
func (r *DueRepository) ListByStudent(ctx context.Context, studentID string) ([]*billing.DueRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("due repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+dueColumns+`
FROM monthly_dues
WHERE student_id = $1
ORDER BY period_year ASC, period_month ASC`, studentID)
	if err != nil {
		return nil, err
	}
	return collectDues(rows)
}

// ListByPeriod lists all dues of a billing period.
func (r *DueRepository) ListByPeriod(ctx context.Context, period billing.Period) ([]*billing.DueRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("due repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+dueColumns+`
FROM monthly_dues
WHERE period_year = $1 AND period_month = $2
ORDER BY student_id ASC`, period.Year, int(period.Month))
	if err != nil {
		return nil, err
	}
	return collectDues(rows)
}

// ListOverdue lists pending dues whose due date passed before asOf.
func (r *DueRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]*billing.DueRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("due repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+dueColumns+`
FROM monthly_dues
WHERE status = 'PENDING' AND due_date < $1
ORDER BY student_id ASC, period_year ASC, period_month ASC`, asOf.UTC())
	if err != nil {
		return nil, err
	}
	return collectDues(rows)
}

// AttachOrder binds a gateway order to the due. The guard on a missing
// order id keeps the first writer's order; duplicate calls return false.
func (r *DueRepository) AttachOrder(ctx context.Context, dueID, orderID string, amount float64, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("due repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE monthly_dues
SET gateway_order_id = $1, order_amount = $2, updated_at = $3
WHERE id = $4 AND status = 'PENDING' AND gateway_order_id IS NULL`,
		orderID, amount, at.UTC(), dueID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkCaptured flips PENDING to CAPTURED and freezes the monetary snapshot.
// The status guard makes the write idempotent under duplicate deliveries:
// exactly one caller per due sees true.
func (r *DueRepository) MarkCaptured(ctx context.Context, dueID string, capture billing.Capture) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("due repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE monthly_dues
SET status = 'CAPTURED', gateway_payment_id = $1, payment_method = $2,
	penalty = $3, total_due = $4, paid_at = $5, updated_at = $5
WHERE id = $6 AND status = 'PENDING'`,
		capture.PaymentID, capture.Method, capture.Penalty, capture.Total,
		capture.PaidAt.UTC(), dueID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkWaived flips PENDING to WAIVED, zeroing the penalty and freezing the
// total.
func (r *DueRepository) MarkWaived(ctx context.Context, dueID string, total float64, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("due repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE monthly_dues
SET status = 'WAIVED', penalty = 0, total_due = $1, updated_at = $2
WHERE id = $3 AND status = 'PENDING'`,
		total, at.UTC(), dueID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDue(row rowScanner) (*billing.DueRecord, error) {
	var due billing.DueRecord
	var periodYear int
	var periodMonth int
	var status string
	var orderID sql.NullString
	var orderAmount sql.NullFloat64
	var paymentID sql.NullString
	var method sql.NullString
	var paidAt sql.NullTime
	err := row.Scan(
		&due.ID,
		&due.StudentID,
		&periodYear,
		&periodMonth,
		&due.BaseFee,
		&due.Discount,
		&due.Penalty,
		&due.TotalDue,
		&due.DueDate,
		&due.HardCutoffDate,
		&status,
		&orderID,
		&orderAmount,
		&paymentID,
		&method,
		&paidAt,
		&due.CreatedAt,
		&due.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	period, err := billing.NewPeriod(periodYear, time.Month(periodMonth))
	if err != nil {
		return nil, err
	}
	due.Period = period
	due.Status = billing.Status(status)
	if orderID.Valid {
		due.GatewayOrderID = orderID.String
	}
	if orderAmount.Valid {
		due.OrderAmount = orderAmount.Float64
	}
	if paymentID.Valid {
		due.GatewayPaymentID = paymentID.String
	}
	if method.Valid {
		due.PaymentMethod = method.String
	}
	if paidAt.Valid {
		due.PaidAt = paidAt.Time.UTC()
	}
	due.DueDate = due.DueDate.UTC()
	due.HardCutoffDate = due.HardCutoffDate.UTC()
	due.CreatedAt = due.CreatedAt.UTC()
	due.UpdatedAt = due.UpdatedAt.UTC()
	return &due, nil
}

func collectDues(rows *sql.Rows) ([]*billing.DueRecord, error) {
	defer rows.Close()
	var result []*billing.DueRecord
	for rows.Next() {
		due, err := scanDue(rows)
		if err != nil {
			return nil, err
		}
		if due != nil {
			result = append(result, due)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

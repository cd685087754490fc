package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	billing "busway-cloud/internal/billing/domain"
)

const waiverColumns = `
	id, due_id, requested_by, reason, status, decided_by, decided_at,
	created_at, updated_at`

// WaiverRepository persists waiver requests in Postgres.
type WaiverRepository struct {
	db *sql.DB
}

// NewWaiverRepository constructs a repository.
func NewWaiverRepository(db *sql.DB) *WaiverRepository {
	return &WaiverRepository{db: db}
}

// Create inserts a waiver request.
func (r *WaiverRepository) Create(ctx context.Context, request *billing.WaiverRequest) error {
	if r == nil || r.db == nil {
		return errors.New("waiver repo: nil db")
	}
	if request == nil {
		return errors.New("waiver repo: nil request")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO waiver_requests (
	id, due_id, requested_by, reason, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		request.ID, request.DueID, request.RequestedBy, request.Reason,
		string(request.Status), request.CreatedAt.UTC(), request.UpdatedAt.UTC(),
	)
	return err
}

// GetByID fetches a waiver request.
func (r *WaiverRepository) GetByID(ctx context.Context, id string) (*billing.WaiverRequest, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("waiver repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+waiverColumns+`
FROM waiver_requests
WHERE id = $1
LIMIT 1`, id)
	return scanWaiver(row)
}

// ListByStatus lists waiver requests in a given state, oldest first.
func (r *WaiverRepository) ListByStatus(ctx context.Context, status billing.WaiverStatus) ([]*billing.WaiverRequest, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("waiver repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+waiverColumns+`
FROM waiver_requests
WHERE status = $1
ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*billing.WaiverRequest
	for rows.Next() {
		request, err := scanWaiver(rows)
		if err != nil {
			return nil, err
		}
		if request != nil {
			result = append(result, request)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Decide moves a pending request to a terminal status. Returns false when
// the request was already decided.
func (r *WaiverRepository) Decide(ctx context.Context, id string, status billing.WaiverStatus, decidedBy string, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("waiver repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE waiver_requests
SET status = $1, decided_by = $2, decided_at = $3, updated_at = $3
WHERE id = $4 AND status = 'PENDING'`,
		string(status), decidedBy, at.UTC(), id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanWaiver(row rowScanner) (*billing.WaiverRequest, error) {
	var request billing.WaiverRequest
	var status string
	var decidedBy sql.NullString
	var decidedAt sql.NullTime
	err := row.Scan(
		&request.ID,
		&request.DueID,
		&request.RequestedBy,
		&request.Reason,
		&status,
		&decidedBy,
		&decidedAt,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	request.Status = billing.WaiverStatus(status)
	if decidedBy.Valid {
		request.DecidedBy = decidedBy.String
	}
	if decidedAt.Valid {
		request.DecidedAt = decidedAt.Time.UTC()
	}
	request.CreatedAt = request.CreatedAt.UTC()
	request.UpdatedAt = request.UpdatedAt.UTC()
	return &request, nil
}

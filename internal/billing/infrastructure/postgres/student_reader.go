package postgres

import (
	"context"
	"database/sql"
	"errors"

	"busway-cloud/internal/billing/application"
)

// StudentReader reads the student roster. The table is owned by the portal
// service; this engine only selects from it.
type StudentReader struct {
	db *sql.DB
}

// NewStudentReader constructs a reader.
func NewStudentReader(db *sql.DB) *StudentReader {
	return &StudentReader{db: db}
}

// Get fetches one student.
func (r *StudentReader) Get(ctx context.Context, id string) (*application.Student, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("student reader: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, parent_id, full_name, parent_phone, monthly_fee, active
FROM students
WHERE id = $1
LIMIT 1`, id)
	return scanStudent(row)
}

// ListActive lists students currently enrolled for transport.
func (r *StudentReader) ListActive(ctx context.Context) ([]application.Student, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("student reader: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, parent_id, full_name, parent_phone, monthly_fee, active
FROM students
WHERE active = TRUE
ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []application.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		if student != nil {
			result = append(result, *student)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanStudent(row rowScanner) (*application.Student, error) {
	var student application.Student
	var parentID sql.NullString
	var phone sql.NullString
	err := row.Scan(
		&student.ID,
		&parentID,
		&student.FullName,
		&phone,
		&student.MonthlyFee,
		&student.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if parentID.Valid {
		student.ParentID = parentID.String
	}
	if phone.Valid {
		student.ParentPhone = phone.String
	}
	return &student, nil
}

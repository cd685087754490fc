package application

import (
	"context"
	"time"
)

// Student is the slice of the external student roster this engine reads.
type Student struct {
	ID          string
	ParentID    string
	FullName    string
	ParentPhone string
	MonthlyFee  float64
	Active      bool
}

// StudentReader reads the external student roster. Student CRUD is owned by
// another service; this engine only consumes it.
type StudentReader interface {
	Get(ctx context.Context, id string) (*Student, error)
	ListActive(ctx context.Context) ([]Student, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

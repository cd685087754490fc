package billing

import (
	"fmt"
	"time"
)

// Period identifies one recurring billing cycle as (year, month).
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod validates and builds a billing period.
func NewPeriod(year int, month time.Month) (Period, error) {
	if year < 2000 || year > 2200 {
		return Period{}, ErrInvalidPeriod
	}
	if month < time.January || month > time.December {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Year: year, Month: month}, nil
}

// ParsePeriod parses a "YYYY-MM" period key.
func ParsePeriod(value string) (Period, error) {
	parsed, err := time.Parse("2006-01", value)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return NewPeriod(parsed.Year(), parsed.Month())
}

// PeriodOf returns the period containing the given instant.
func PeriodOf(at time.Time) Period {
	return Period{Year: at.UTC().Year(), Month: at.UTC().Month()}
}

// String renders the period as "YYYY-MM".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Before reports whether p is strictly earlier than other.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Start returns midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// DayInPeriod returns midnight UTC on the given day of the period,
// clamped to the period's last day.
func (p Period) DayInPeriod(day int) time.Time {
	if day < 1 {
		day = 1
	}
	last := p.Start().AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

package billing

import (
	"math"
	"time"
)

// Tier is the escalation stage of an unpaid due.
type Tier string

const (
	// TierNone means the due date has not passed.
	TierNone Tier = "NONE"
	// TierDailyPenalty means the due accrues a per-day penalty.
	TierDailyPenalty Tier = "DAILY_PENALTY"
	// TierFixedFine means the hard cutoff passed and the fixed fine applies.
	TierFixedFine Tier = "FIXED_FINE"
)

// LateFeePolicy holds the penalty escalation parameters. DailyRate and
// FineCap are independent configuration values; the fixed fine is not
// assumed to be reachable through daily accrual.
type LateFeePolicy struct {
	GraceDays int
	DailyRate float64
	FineCap   float64
}

// Assessment is the result of assessing a due at a point in time.
type Assessment struct {
	Penalty float64
	Total   float64
	Tier    Tier
}

// Assess computes the penalty, total and escalation tier of a due at the
// given instant. Pure: it never mutates the record. For frozen dues
// (CAPTURED or WAIVED) the stored values are returned unchanged.
func (p LateFeePolicy) Assess(due *DueRecord, now time.Time) Assessment {
	if due == nil {
		return Assessment{Tier: TierNone}
	}
	if due.IsFrozen() {
		return Assessment{Penalty: due.Penalty, Total: due.TotalDue, Tier: TierNone}
	}

	now = now.UTC()
	penalty := 0.0
	tier := TierNone
	switch {
	case now.After(due.HardCutoffDate):
		tier = TierFixedFine
		penalty = p.FineCap
	case now.After(due.DueDate):
		days := daysLate(due.DueDate, now) - p.GraceDays
		if days > 0 {
			tier = TierDailyPenalty
			penalty = math.Min(float64(days)*p.DailyRate, p.FineCap)
		}
	}

	total := due.BaseFee - due.Discount + penalty
	if total < 0 {
		total = 0
	}
	return Assessment{Penalty: penalty, Total: total, Tier: tier}
}

// daysLate counts elapsed days past the due date, rounding any partial
// day up.
func daysLate(dueDate, now time.Time) int {
	elapsed := now.Sub(dueDate)
	if elapsed <= 0 {
		return 0
	}
	return int(math.Ceil(elapsed.Hours() / 24))
}

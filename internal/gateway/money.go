package gateway

import "math"

// MinorUnits converts a major-unit amount to the gateway's minor currency
// units (e.g. rupees to paise). The ledger keeps major units; only the
// gateway boundary speaks minor units.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// MajorUnits converts minor currency units back to major units.
func MajorUnits(amount int64) float64 {
	return float64(amount) / 100
}

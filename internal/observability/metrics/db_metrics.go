package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "dues_pending",
			Help: "Ledger rows awaiting payment",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM monthly_dues WHERE status = 'PENDING'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "waivers_pending",
			Help: "Waiver requests awaiting a decision",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM waiver_requests WHERE status = 'PENDING'")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}

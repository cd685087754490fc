package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "busway_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	orderCreateTotal   *prometheus.CounterVec
	orderCreateLatency *prometheus.HistogramVec

	verifyRejected  *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	paymentCaptured *prometheus.CounterVec

	dueGenerateTotal   *prometheus.CounterVec
	dueGenerateLatency *prometheus.HistogramVec

	waiverDecisions *prometheus.CounterVec

	notificationSends *prometheus.CounterVec
	reminderSwept     prometheus.Counter

	dueExportTotal   *prometheus.CounterVec
	dueExportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		orderCreateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "order_create_total",
				Help: "Total gateway order create operations by result",
			},
			[]string{"result"},
		)
		orderCreateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "order_create_latency_seconds",
				Help:    "Gateway order create latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		verifyRejected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "verify_rejected_total",
				Help: "Total rejected client verify callbacks by reason",
			},
			[]string{"reason"},
		)
		webhookEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "webhook_events_total",
				Help: "Total webhook deliveries by event and result",
			},
			[]string{"event", "result"},
		)
		paymentCaptured = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payment_captured_total",
				Help: "Total captured payments by reconciliation source",
			},
			[]string{"source"},
		)

		dueGenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "due_generate_total",
				Help: "Total due generation runs by result",
			},
			[]string{"result"},
		)
		dueGenerateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "due_generate_latency_seconds",
				Help:    "Due generation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		waiverDecisions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "waiver_decisions_total",
				Help: "Total waiver workflow transitions by outcome",
			},
			[]string{"outcome"},
		)

		notificationSends = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notification_sends_total",
				Help: "Total notification deliveries by kind and result",
			},
			[]string{"kind", "result"},
		)
		reminderSwept = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "reminder_swept_total",
				Help: "Total overdue dues swept by the reminder job",
			},
		)

		dueExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "due_export_total",
				Help: "Total ledger export operations by format and result",
			},
			[]string{"format", "result"},
		)
		dueExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "due_export_latency_seconds",
				Help:    "Ledger export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			orderCreateTotal,
			orderCreateLatency,
			verifyRejected,
			webhookEvents,
			paymentCaptured,
			dueGenerateTotal,
			dueGenerateLatency,
			waiverDecisions,
			notificationSends,
			reminderSwept,
			dueExportTotal,
			dueExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveOrderCreate records order create latency and result.
func ObserveOrderCreate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if orderCreateTotal != nil {
		orderCreateTotal.WithLabelValues(result).Inc()
	}
	if orderCreateLatency != nil {
		orderCreateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncVerifyRejected increments the rejected verify counter.
func IncVerifyRejected(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if verifyRejected != nil {
		verifyRejected.WithLabelValues(reason).Inc()
	}
}

// IncWebhookEvent increments the webhook delivery counter.
func IncWebhookEvent(event, result string) {
	if event == "" {
		event = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if webhookEvents != nil {
		webhookEvents.WithLabelValues(event, result).Inc()
	}
}

// IncPaymentCaptured increments the captured payment counter by source.
func IncPaymentCaptured(source string) {
	if source == "" {
		source = "unknown"
	}
	if paymentCaptured != nil {
		paymentCaptured.WithLabelValues(source).Inc()
	}
}

// ObserveDueGenerate records due generation latency and result.
func ObserveDueGenerate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if dueGenerateTotal != nil {
		dueGenerateTotal.WithLabelValues(result).Inc()
	}
	if dueGenerateLatency != nil {
		dueGenerateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncWaiverDecision increments the waiver workflow counter.
func IncWaiverDecision(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if waiverDecisions != nil {
		waiverDecisions.WithLabelValues(outcome).Inc()
	}
}

// IncNotificationSend increments the notification delivery counter.
func IncNotificationSend(kind, result string) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if notificationSends != nil {
		notificationSends.WithLabelValues(kind, result).Inc()
	}
}

// ObserveReminderSweep adds swept dues to the reminder counter.
func ObserveReminderSweep(count int) {
	if count <= 0 {
		return
	}
	if reminderSwept != nil {
		reminderSwept.Add(float64(count))
	}
}

// ObserveDueExport records export latency and result.
func ObserveDueExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if dueExportTotal != nil {
		dueExportTotal.WithLabelValues(format, result).Inc()
	}
	if dueExportLatency != nil {
		dueExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)

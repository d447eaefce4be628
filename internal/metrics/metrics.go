package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitclass_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_reservations_total",
			Help: "Total number of reservation attempts",
		},
		[]string{"kind", "result"},
	)

	CapacityConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fitclass_capacity_conflicts_total",
			Help: "Reservation attempts rejected because capacity was exhausted at lock time",
		},
	)

	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_cancellations_total",
			Help: "Total number of booking cancellations by policy outcome",
		},
		[]string{"outcome"},
	)

	CheckInsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fitclass_checkins_total",
			Help: "Total number of successful class check-ins",
		},
	)

	NoShowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fitclass_noshows_total",
			Help: "Total number of bookings auto-marked as no-show",
		},
	)

	SweepTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_sweep_transitions_total",
			Help: "Entities moved to finished by the sweep",
		},
		[]string{"entity"},
	)

	OutboxDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_outbox_dispatched_total",
			Help: "Outbox records dispatched to the notification channel",
		},
		[]string{"status"},
	)

	OutboxPendingGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fitclass_outbox_pending",
			Help: "Outbox records awaiting dispatch",
		},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	WalletTopUpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fitclass_wallet_topups_total",
			Help: "Total number of wallet top-ups",
		},
	)

	RefundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitclass_refunds_total",
			Help: "Refund computations by product kind",
		},
		[]string{"kind"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordReservation(kind, result string) {
	ReservationsTotal.WithLabelValues(kind, result).Inc()
}

func RecordCancellation(outcome string) {
	CancellationsTotal.WithLabelValues(outcome).Inc()
}

func RecordSweepTransition(entity string, n int) {
	SweepTransitionsTotal.WithLabelValues(entity).Add(float64(n))
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}

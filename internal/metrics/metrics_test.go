package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	// Сбрасываем метрики перед тестом
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("GET", "/bookings", "200", 0.5)

	count := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/bookings", "200"))
	assert.Equal(t, float64(1), count)
}

func TestRecordHTTPRequestMultiple(t *testing.T) {
	HTTPRequestsTotal.Reset()

	RecordHTTPRequest("POST", "/auth/login", "200", 0.1)
	RecordHTTPRequest("POST", "/auth/login", "200", 0.2)
	RecordHTTPRequest("POST", "/auth/login", "401", 0.05)

	successCount := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/auth/login", "200"))
	failCount := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/auth/login", "401"))

	assert.Equal(t, float64(2), successCount)
	assert.Equal(t, float64(1), failCount)
}

func TestRecordReservation(t *testing.T) {
	ReservationsTotal.Reset()

	RecordReservation("routine", "ok")
	RecordReservation("routine", "ok")
	RecordReservation("routine", "rejected")
	RecordReservation("curriculum", "ok")

	okCount := testutil.ToFloat64(ReservationsTotal.WithLabelValues("routine", "ok"))
	rejectedCount := testutil.ToFloat64(ReservationsTotal.WithLabelValues("routine", "rejected"))
	curriculumCount := testutil.ToFloat64(ReservationsTotal.WithLabelValues("curriculum", "ok"))

	assert.Equal(t, float64(2), okCount)
	assert.Equal(t, float64(1), rejectedCount)
	assert.Equal(t, float64(1), curriculumCount)
}

func TestRecordCancellation(t *testing.T) {
	CancellationsTotal.Reset()

	RecordCancellation("free_cancel")
	RecordCancellation("free_cancel")
	RecordCancellation("penalty_cancel")

	freeCount := testutil.ToFloat64(CancellationsTotal.WithLabelValues("free_cancel"))
	penaltyCount := testutil.ToFloat64(CancellationsTotal.WithLabelValues("penalty_cancel"))

	assert.Equal(t, float64(2), freeCount)
	assert.Equal(t, float64(1), penaltyCount)
}

func TestRecordSweepTransition(t *testing.T) {
	SweepTransitionsTotal.Reset()

	RecordSweepTransition("schedule", 3)
	RecordSweepTransition("schedule", 2)
	RecordSweepTransition("recurrence_group", 1)

	scheduleCount := testutil.ToFloat64(SweepTransitionsTotal.WithLabelValues("schedule"))
	groupCount := testutil.ToFloat64(SweepTransitionsTotal.WithLabelValues("recurrence_group"))

	assert.Equal(t, float64(5), scheduleCount)
	assert.Equal(t, float64(1), groupCount)
}

func TestRecordEmail(t *testing.T) {
	EmailsSentTotal.Reset()

	RecordEmail("booking_confirmed", "sent")
	RecordEmail("booking_confirmed", "failed")
	RecordEmail("reminder", "sent")

	confirmSent := testutil.ToFloat64(EmailsSentTotal.WithLabelValues("booking_confirmed", "sent"))
	confirmFailed := testutil.ToFloat64(EmailsSentTotal.WithLabelValues("booking_confirmed", "failed"))
	reminderSent := testutil.ToFloat64(EmailsSentTotal.WithLabelValues("reminder", "sent"))

	assert.Equal(t, float64(1), confirmSent)
	assert.Equal(t, float64(1), confirmFailed)
	assert.Equal(t, float64(1), reminderSent)
}

func TestWalletTopUps(t *testing.T) {
	// Создаем новый счетчик для теста
	testCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fitclass_wallet_topups_total_test",
			Help: "Total number of wallet top-ups",
		},
	)

	// Временно подменяем глобальную переменную
	oldCounter := WalletTopUpsTotal
	WalletTopUpsTotal = testCounter
	defer func() { WalletTopUpsTotal = oldCounter }()

	WalletTopUpsTotal.Inc()
	WalletTopUpsTotal.Inc()
	WalletTopUpsTotal.Inc()

	count := testutil.ToFloat64(testCounter)
	assert.Equal(t, float64(3), count)
}

func TestOutboxPendingGauge(t *testing.T) {
	OutboxPendingGauge.Set(10)
	assert.Equal(t, float64(10), testutil.ToFloat64(OutboxPendingGauge))

	OutboxPendingGauge.Set(5)
	assert.Equal(t, float64(5), testutil.ToFloat64(OutboxPendingGauge))

	OutboxPendingGauge.Set(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(OutboxPendingGauge))
}

func TestRefundsTotal(t *testing.T) {
	RefundsTotal.Reset()

	RefundsTotal.WithLabelValues("membership").Inc()
	RefundsTotal.WithLabelValues("membership").Inc()
	RefundsTotal.WithLabelValues("session_pack").Inc()

	membershipCount := testutil.ToFloat64(RefundsTotal.WithLabelValues("membership"))
	packCount := testutil.ToFloat64(RefundsTotal.WithLabelValues("session_pack"))

	assert.Equal(t, float64(2), membershipCount)
	assert.Equal(t, float64(1), packCount)
}

func TestMetricsIntegration(t *testing.T) {
	// Имитируем реальный сценарий использования
	HTTPRequestsTotal.Reset()
	ReservationsTotal.Reset()
	CancellationsTotal.Reset()
	EmailsSentTotal.Reset()

	RecordHTTPRequest("POST", "/schedules/1/book", "201", 0.25)
	RecordReservation("routine", "ok")
	RecordEmail("booking_confirmed", "sent")
	RecordCancellation("free_cancel")

	httpCount := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/schedules/1/book", "201"))
	reservationCount := testutil.ToFloat64(ReservationsTotal.WithLabelValues("routine", "ok"))
	emailCount := testutil.ToFloat64(EmailsSentTotal.WithLabelValues("booking_confirmed", "sent"))
	cancelCount := testutil.ToFloat64(CancellationsTotal.WithLabelValues("free_cancel"))

	assert.Equal(t, float64(1), httpCount)
	assert.Equal(t, float64(1), reservationCount)
	assert.Equal(t, float64(1), emailCount)
	assert.Equal(t, float64(1), cancelCount)
}

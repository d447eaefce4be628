package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	events []Event
	failOn string
}

func (p *capturePublisher) Publish(ctx context.Context, evt Event) error {
	if p.failOn != "" && evt.EventID == p.failOn {
		return assert.AnError
	}
	p.events = append(p.events, evt)
	return nil
}

type captureEmailer struct {
	confirmed []string
	cancelled []string
}

func (e *captureEmailer) SendBookingConfirmed(ctx context.Context, to, name string, start time.Time) error {
	e.confirmed = append(e.confirmed, to)
	return nil
}

func (e *captureEmailer) SendBookingCancelled(ctx context.Context, to, name string, reason string) error {
	e.cancelled = append(e.cancelled, to)
	return nil
}

func newDispatcherTest(t *testing.T, pub Publisher, em Emailer) (*Dispatcher, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "postgres")
	return NewDispatcher(db, NewRepository(db), pub, em, time.Second), mock
}

func outboxColumns() []string {
	return []string{
		"id", "event_id", "entity_type", "entity_id", "owner_id", "start_time", "end_time",
		"old_status", "new_status", "reason", "recipient_email", "recipient_name",
		"attempts", "created_at", "processed_at",
	}
}

func TestDispatcherPublishesAndMarksProcessed(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	pub := &capturePublisher{}
	em := &captureEmailer{}
	d, mock := newDispatcherTest(t, pub, em)

	email := "member@example.com"
	name := "Member"

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM outbox").
		WithArgs(batchSize).
		WillReturnRows(sqlmock.NewRows(outboxColumns()).
			AddRow(1, "e-1", EntityBooking, 42, 5, now, now.Add(time.Hour),
				"pending", "confirmed", "", &email, &name, 0, now, nil).
			AddRow(2, "e-2", EntityBooking, 43, 6, now, now.Add(time.Hour),
				"confirmed", "cancelled", "trainer sick", &email, &name, 0, now, nil))
	mock.ExpectExec("UPDATE outbox").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE outbox").
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	require.NoError(t, d.RunOnce(context.Background()))

	require.Len(t, pub.events, 2)
	assert.Equal(t, "e-1", pub.events[0].EventID)
	assert.Equal(t, []string{email}, em.confirmed)
	assert.Equal(t, []string{email}, em.cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatcherKeepsFailedRecordForRetry(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	pub := &capturePublisher{failOn: "e-1"}
	d, mock := newDispatcherTest(t, pub, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM outbox").
		WithArgs(batchSize).
		WillReturnRows(sqlmock.NewRows(outboxColumns()).
			AddRow(1, "e-1", EntitySchedule, 7, 3, now, now.Add(time.Hour),
				"open", "finished", "end time passed", nil, nil, 0, now, nil).
			AddRow(2, "e-2", EntitySchedule, 8, 3, now, now.Add(time.Hour),
				"open", "finished", "end time passed", nil, nil, 0, now, nil))
	// Record 1 stays unprocessed with a bumped attempts counter.
	mock.ExpectExec("UPDATE outbox").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE outbox").
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	require.NoError(t, d.RunOnce(context.Background()))

	require.Len(t, pub.events, 1)
	assert.Equal(t, "e-2", pub.events[0].EventID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatcherEmptyBatch(t *testing.T) {
	d, mock := newDispatcherTest(t, &capturePublisher{}, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM outbox").
		WithArgs(batchSize).
		WillReturnRows(sqlmock.NewRows(outboxColumns()))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	require.NoError(t, d.RunOnce(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertFillsEventID(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "postgres")
	repo := NewRepository(db)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO outbox").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, now))

	rec := &Record{EntityType: EntityBooking, EntityID: 42, OwnerID: 5, NewStatus: "confirmed"}
	require.NoError(t, repo.Insert(context.Background(), db, rec))

	assert.NotEmpty(t, rec.EventID)
	assert.Equal(t, 1, rec.ID)
}

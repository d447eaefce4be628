package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitclass/internal/apperr"
)

type noTimeOffs struct{}

func (noTimeOffs) ValidateNoOverlap(ctx context.Context, trainerID int, start, end time.Time) error {
	return nil
}

func newCoordinatorTest(t *testing.T) (*Coordinator, *sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	sqlxDB := sqlx.NewDb(mockDB, "postgres")
	repo := NewRepository(sqlxDB)
	return NewCoordinator(repo, noTimeOffs{}, 500*time.Millisecond), sqlxDB, mock
}

func scheduleRows(id, trainerID int, status ScheduleStatus, capacity, remaining int, start, end time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "trainer_id", "template_id", "group_id", "start_time", "end_time",
		"status", "capacity", "remaining_capacity", "created_at", "updated_at",
	}).AddRow(id, trainerID, nil, nil, start, end, status, capacity, remaining, start, start)
}

func TestReserveRoutineDecrementsUnderLock(t *testing.T) {
	coord, db, mock := newCoordinatorTest(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM schedules WHERE id = \\$1 FOR UPDATE").
		WithArgs(7).
		WillReturnRows(scheduleRows(7, 3, StatusOpen, 10, 4, start, start.Add(time.Hour)))
	mock.ExpectExec("UPDATE schedules").
		WithArgs(3, StatusOpen, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	s, err := coord.ReserveRoutine(context.Background(), tx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, s.RemainingCapacity)
	require.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveRoutineFullClass(t *testing.T) {
	coord, db, mock := newCoordinatorTest(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM schedules WHERE id = \\$1 FOR UPDATE").
		WithArgs(7).
		WillReturnRows(scheduleRows(7, 3, StatusOpen, 10, 0, start, start.Add(time.Hour)))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)

	_, err = coord.ReserveRoutine(context.Background(), tx, 7)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Conflict))
	require.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveRoutineClosedSchedule(t *testing.T) {
	coord, db, mock := newCoordinatorTest(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM schedules WHERE id = \\$1 FOR UPDATE").
		WithArgs(7).
		WillReturnRows(scheduleRows(7, 3, StatusClosed, 10, 5, start, start.Add(time.Hour)))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)

	_, err = coord.ReserveRoutine(context.Background(), tx, 7)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.InvalidState))
	require.NoError(t, tx.Rollback())
}

func TestReserveRoutineRejectsCurriculumOccurrence(t *testing.T) {
	coord, db, mock := newCoordinatorTest(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	occurrence := sqlmock.NewRows([]string{
		"id", "trainer_id", "template_id", "group_id", "start_time", "end_time",
		"status", "capacity", "remaining_capacity", "created_at", "updated_at",
	}).AddRow(7, 3, 1, 5, start, start.Add(time.Hour), StatusOpen, 12, 12, start, start)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM schedules WHERE id = \\$1 FOR UPDATE").
		WithArgs(7).
		WillReturnRows(occurrence)
	mock.ExpectQuery("SELECT kind FROM recurrence_groups").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow(KindCurriculum))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)

	// The shared counter lives on the group; a per-occurrence claim would
	// desync the two, so it is refused even with seats showing.
	_, err = coord.ReserveRoutine(context.Background(), tx, 7)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.InvalidState))
	require.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveRoutineLockTimeout(t *testing.T) {
	coord, db, mock := newCoordinatorTest(t)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM schedules WHERE id = \\$1 FOR UPDATE").
		WithArgs(7).
		WillReturnError(&pq.Error{Code: "55P03"})
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)

	_, err = coord.ReserveRoutine(context.Background(), tx, 7)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Conflict), "lock timeout must surface as retryable conflict")
	require.NoError(t, tx.Rollback())
}

func TestReserveSingleConflictScan(t *testing.T) {
	coord, db, mock := newCoordinatorTest(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	// An overlapping class already exists; the reservation is refused
	// before anything is written.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM schedules").
		WillReturnRows(scheduleRows(9, 3, StatusOpen, 10, 10, start.Add(-30*time.Minute), start.Add(30*time.Minute)))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)

	_, err = coord.ReserveSingle(context.Background(), tx, 3, start, end)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Conflict))
	require.NoError(t, tx.Rollback())
}

func TestReserveSingleExclusionBackstop(t *testing.T) {
	coord, db, mock := newCoordinatorTest(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	// The unlocked scan sees nothing, but a concurrent insert wins the
	// race; the database exclusion constraint reports it.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM schedules").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "trainer_id", "template_id", "group_id", "start_time", "end_time",
			"status", "capacity", "remaining_capacity", "created_at", "updated_at",
		}))
	mock.ExpectQuery("INSERT INTO schedules").
		WillReturnError(&pq.Error{Code: "23P01"})
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)

	_, err = coord.ReserveSingle(context.Background(), tx, 3, start, end)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Conflict))
	require.NoError(t, tx.Rollback())
}

func TestReserveCurriculumLocksOnlyGroup(t *testing.T) {
	coord, db, mock := newCoordinatorTest(t)
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	groupRows := sqlmock.NewRows([]string{
		"id", "trainer_id", "template_id", "kind", "start_date", "end_date",
		"status", "capacity", "remaining_capacity", "created_at", "updated_at",
	}).AddRow(5, 3, 1, KindCurriculum, start, start.AddDate(0, 2, 0), GroupOpen, 12, 2, start, start)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM recurrence_groups WHERE id = \\$1 FOR UPDATE").
		WithArgs(5).
		WillReturnRows(groupRows)
	mock.ExpectExec("UPDATE recurrence_groups").
		WithArgs(1, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE schedules").
		WillReturnResult(sqlmock.NewResult(0, 8))
	mock.ExpectQuery("SELECT (.+) FROM schedules").
		WithArgs(5).
		WillReturnRows(scheduleRows(21, 3, StatusOpen, 12, 1, start, start.Add(time.Hour)))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	g, classes, err := coord.ReserveCurriculum(context.Background(), tx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, g.RemainingCapacity)
	assert.Len(t, classes, 1)
	require.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveCurriculumFullProgram(t *testing.T) {
	coord, db, mock := newCoordinatorTest(t)
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	groupRows := sqlmock.NewRows([]string{
		"id", "trainer_id", "template_id", "kind", "start_date", "end_date",
		"status", "capacity", "remaining_capacity", "created_at", "updated_at",
	}).AddRow(5, 3, 1, KindCurriculum, start, start.AddDate(0, 2, 0), GroupOpen, 12, 0, start, start)

	// No capacity UPDATE is expected: the shared counter never goes below
	// zero, the reservation fails at the locked read.
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM recurrence_groups WHERE id = \\$1 FOR UPDATE").
		WithArgs(5).
		WillReturnRows(groupRows)
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)

	_, _, err = coord.ReserveCurriculum(context.Background(), tx, 5)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Conflict))
	require.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveCurriculumRejectsRoutineGroup(t *testing.T) {
	coord, db, mock := newCoordinatorTest(t)
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	groupRows := sqlmock.NewRows([]string{
		"id", "trainer_id", "template_id", "kind", "start_date", "end_date",
		"status", "capacity", "remaining_capacity", "created_at", "updated_at",
	}).AddRow(5, 3, 1, KindRoutine, start, start.AddDate(0, 2, 0), GroupOpen, 12, 2, start, start)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM recurrence_groups WHERE id = \\$1 FOR UPDATE").
		WithArgs(5).
		WillReturnRows(groupRows)
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)

	_, _, err = coord.ReserveCurriculum(context.Background(), tx, 5)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.InvalidState))
	require.NoError(t, tx.Rollback())
}

func TestReleaseRoutineIncrements(t *testing.T) {
	coord, db, mock := newCoordinatorTest(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM schedules WHERE id = \\$1 FOR UPDATE").
		WithArgs(7).
		WillReturnRows(scheduleRows(7, 3, StatusOpen, 10, 4, start, start.Add(time.Hour)))
	mock.ExpectExec("UPDATE schedules").
		WithArgs(5, StatusOpen, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	require.NoError(t, coord.ReleaseRoutine(context.Background(), tx, 7))
	require.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

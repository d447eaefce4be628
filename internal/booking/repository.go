package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fitclass/internal/apperr"
	"fitclass/internal/db"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(database *sqlx.DB) *Repository {
	return &Repository{db: database}
}

// Insert writes a new booking. The partial unique index on
// (member_id, schedule_id) for live bookings turns double-booking races
// into a Conflict the caller may retry or surface.
func (r *Repository) Insert(ctx context.Context, ext sqlx.ExtContext, b *Booking) error {
	query := `
		INSERT INTO bookings (member_id, schedule_id, group_id, kind, status, session_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := sqlx.GetContext(ctx, ext, b, query,
		b.MemberID, b.ScheduleID, b.GroupID, b.Kind, b.Status, b.SessionID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.New(apperr.Conflict, "member already has a live booking for this class")
		}
		return apperr.Wrap(apperr.Internal, "failed to insert booking", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int) (*Booking, error) {
	var b Booking
	err := r.db.GetContext(ctx, &b, `SELECT * FROM bookings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "booking not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to get booking", err)
	}
	return &b, nil
}

// UpdateStatus moves a booking from one of the expected states to the target
// state. A zero row count means the booking was missing or already moved on,
// which callers see as InvalidState.
func (r *Repository) UpdateStatus(ctx context.Context, ext sqlx.ExtContext, id int, from []Status, to Status, cancelKind *string) error {
	query := `
		UPDATE bookings
		SET status = $1, cancel_kind = COALESCE($2, cancel_kind), updated_at = NOW()
		WHERE id = $3 AND status = ANY($4::text[])`

	res, err := ext.ExecContext(ctx, query, to, cancelKind, id, pq.Array(statusArray(from)))
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to update booking status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to read affected rows", err)
	}
	if n == 0 {
		return apperr.Newf(apperr.InvalidState, "booking %d is not in a state that allows %s", id, to)
	}
	return nil
}

func statusArray(from []Status) []string {
	out := make([]string, len(from))
	for i, s := range from {
		out[i] = string(s)
	}
	return out
}

func (r *Repository) ListByMember(ctx context.Context, memberID int) ([]BookingWithSchedule, error) {
	query := `
		SELECT b.*, s.start_time AS schedule_start, s.end_time AS schedule_end, s.trainer_id
		FROM bookings b
		JOIN schedules s ON s.id = b.schedule_id
		WHERE b.member_id = $1
		ORDER BY s.start_time DESC`

	var out []BookingWithSchedule
	if err := r.db.SelectContext(ctx, &out, query, memberID); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list bookings", err)
	}
	return out, nil
}

func (r *Repository) ListBySchedule(ctx context.Context, scheduleID int) ([]Booking, error) {
	var out []Booking
	query := `SELECT * FROM bookings WHERE schedule_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &out, query, scheduleID); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list bookings for schedule", err)
	}
	return out, nil
}

// ListLiveBySchedule returns pending and confirmed bookings, locked for the
// duration of the caller's transaction. Used by trainer-initiated class
// cancellation so the cascade cannot race a member cancel.
func (r *Repository) ListLiveBySchedule(ctx context.Context, tx *sqlx.Tx, scheduleID int) ([]Booking, error) {
	var out []Booking
	query := `
		SELECT * FROM bookings
		WHERE schedule_id = $1 AND status IN ('pending', 'confirmed')
		ORDER BY id
		FOR UPDATE`
	if err := tx.SelectContext(ctx, &out, query, scheduleID); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to lock live bookings", err)
	}
	return out, nil
}

// ListLiveByGroupAndMember returns the member's live bookings across a
// curriculum group, locked. Curriculum cancellation is all-or-nothing.
func (r *Repository) ListLiveByGroupAndMember(ctx context.Context, tx *sqlx.Tx, groupID, memberID int) ([]Booking, error) {
	var out []Booking
	query := `
		SELECT * FROM bookings
		WHERE group_id = $1 AND member_id = $2 AND status IN ('pending', 'confirmed')
		ORDER BY id
		FOR UPDATE`
	if err := tx.SelectContext(ctx, &out, query, groupID, memberID); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to lock group bookings", err)
	}
	return out, nil
}

// ListConfirmedEnded returns confirmed bookings whose class already ended.
// Input to the no-show sweep.
func (r *Repository) ListConfirmedEnded(ctx context.Context, asOf time.Time) ([]BookingWithSchedule, error) {
	query := `
		SELECT b.*, s.start_time AS schedule_start, s.end_time AS schedule_end, s.trainer_id
		FROM bookings b
		JOIN schedules s ON s.id = b.schedule_id
		WHERE b.status = 'confirmed' AND s.end_time <= $1
		ORDER BY s.end_time`

	var out []BookingWithSchedule
	if err := r.db.SelectContext(ctx, &out, query, asOf); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list ended bookings", err)
	}
	return out, nil
}

// CountLiveBySchedule is used by trainer views to show demand.
func (r *Repository) CountLiveBySchedule(ctx context.Context, scheduleID int) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM bookings WHERE schedule_id = $1 AND status IN ('pending', 'confirmed')`
	if err := r.db.GetContext(ctx, &n, query, scheduleID); err != nil {
		return 0, apperr.Wrap(apperr.Internal, fmt.Sprintf("failed to count bookings for schedule %d", scheduleID), err)
	}
	return n, nil
}

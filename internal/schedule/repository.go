package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fitclass/internal/apperr"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateTemplate(ctx context.Context, trainerID int, title, description string, capacity int) (*ClassTemplate, error) {
	query := `
		INSERT INTO class_templates (trainer_id, title, description, capacity)
		VALUES ($1, $2, $3, $4)
		RETURNING id, trainer_id, title, description, capacity, created_at
	`

	var t ClassTemplate
	if err := r.db.GetContext(ctx, &t, query, trainerID, title, description, capacity); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) GetTemplateByID(ctx context.Context, id int) (*ClassTemplate, error) {
	query := `
		SELECT id, trainer_id, title, description, capacity, created_at
		FROM class_templates
		WHERE id = $1
	`

	var t ClassTemplate
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "class template not found")
		}
		return nil, err
	}
	return &t, nil
}

// InsertSchedule runs on the caller's executor so slot creation can share a
// transaction with the booking write.
func (r *Repository) InsertSchedule(ctx context.Context, ext sqlx.ExtContext, s *Schedule) error {
	query := `
		INSERT INTO schedules (trainer_id, template_id, group_id, start_time, end_time, status, capacity, remaining_capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	row := ext.QueryRowxContext(ctx, query,
		s.TrainerID, s.TemplateID, s.GroupID, s.StartTime, s.EndTime, s.Status, s.Capacity, s.RemainingCapacity,
	)
	return row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *Repository) GetScheduleByID(ctx context.Context, id int) (*Schedule, error) {
	query := `
		SELECT id, trainer_id, template_id, group_id, start_time, end_time, status, capacity, remaining_capacity, created_at, updated_at
		FROM schedules
		WHERE id = $1
	`

	var s Schedule
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "schedule not found")
		}
		return nil, err
	}
	return &s, nil
}

// GetScheduleForUpdate takes the row lock that serializes every capacity
// mutation on this slot. Lock waits are bounded by SetLockTimeout.
func (r *Repository) GetScheduleForUpdate(ctx context.Context, tx *sqlx.Tx, id int) (*Schedule, error) {
	query := `
		SELECT id, trainer_id, template_id, group_id, start_time, end_time, status, capacity, remaining_capacity, created_at, updated_at
		FROM schedules
		WHERE id = $1
		FOR UPDATE
	`

	var s Schedule
	if err := tx.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "schedule not found")
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repository) UpdateScheduleCapacity(ctx context.Context, tx *sqlx.Tx, id, remaining int, status ScheduleStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE schedules
		SET remaining_capacity = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`, remaining, status, id)
	return err
}

func (r *Repository) UpdateScheduleStatus(ctx context.Context, ext sqlx.ExtContext, id int, status ScheduleStatus) error {
	res, err := ext.ExecContext(ctx, `
		UPDATE schedules
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "schedule not found")
	}
	return nil
}

// ListActiveByTrainerBetween returns the trainer's non-terminal schedules
// overlapping [from, to). This read is deliberately unlocked; the exclusion
// constraint on (trainer_id, time range) backstops the race.
func (r *Repository) ListActiveByTrainerBetween(ctx context.Context, trainerID int, from, to time.Time) ([]Schedule, error) {
	query := `
		SELECT id, trainer_id, template_id, group_id, start_time, end_time, status, capacity, remaining_capacity, created_at, updated_at
		FROM schedules
		WHERE trainer_id = $1
		  AND status NOT IN ('cancelled', 'finished')
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`

	var out []Schedule
	if err := r.db.SelectContext(ctx, &out, query, trainerID, from, to); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) ListOpenSchedules(ctx context.Context, from time.Time) ([]ScheduleWithTemplate, error) {
	query := `
		SELECT s.id, s.trainer_id, s.template_id, s.group_id, s.start_time, s.end_time,
		       s.status, s.capacity, s.remaining_capacity, s.created_at, s.updated_at,
		       COALESCE(t.title, '') AS title
		FROM schedules s
		LEFT JOIN class_templates t ON s.template_id = t.id
		WHERE s.status = 'open'
		  AND s.start_time > $1
		ORDER BY s.start_time
	`

	var out []ScheduleWithTemplate
	if err := r.db.SelectContext(ctx, &out, query, from); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) InsertGroup(ctx context.Context, ext sqlx.ExtContext, g *RecurrenceGroup) error {
	query := `
		INSERT INTO recurrence_groups (trainer_id, template_id, kind, start_date, end_date, status, capacity, remaining_capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	row := ext.QueryRowxContext(ctx, query,
		g.TrainerID, g.TemplateID, g.Kind, g.StartDate, g.EndDate, g.Status, g.Capacity, g.RemainingCapacity,
	)
	return row.Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
}

// GroupKind reads the group's kind on the caller's executor. The kind is
// immutable after creation, so no lock is taken.
func (r *Repository) GroupKind(ctx context.Context, q sqlx.QueryerContext, id int) (GroupKind, error) {
	var kind GroupKind
	if err := sqlx.GetContext(ctx, q, &kind, `SELECT kind FROM recurrence_groups WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperr.New(apperr.NotFound, "recurrence group not found")
		}
		return "", err
	}
	return kind, nil
}

func (r *Repository) GetGroupByID(ctx context.Context, id int) (*RecurrenceGroup, error) {
	query := `
		SELECT id, trainer_id, template_id, kind, start_date, end_date, status, capacity, remaining_capacity, created_at, updated_at
		FROM recurrence_groups
		WHERE id = $1
	`

	var g RecurrenceGroup
	if err := r.db.GetContext(ctx, &g, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "recurrence group not found")
		}
		return nil, err
	}
	return &g, nil
}

// GetGroupForUpdate locks the group row. Lock ordering rule: when a flow
// must touch both aggregates it locks the group first and never takes a
// second group lock in the same transaction.
func (r *Repository) GetGroupForUpdate(ctx context.Context, tx *sqlx.Tx, id int) (*RecurrenceGroup, error) {
	query := `
		SELECT id, trainer_id, template_id, kind, start_date, end_date, status, capacity, remaining_capacity, created_at, updated_at
		FROM recurrence_groups
		WHERE id = $1
		FOR UPDATE
	`

	var g RecurrenceGroup
	if err := tx.GetContext(ctx, &g, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "recurrence group not found")
		}
		return nil, err
	}
	return &g, nil
}

func (r *Repository) UpdateGroupCapacity(ctx context.Context, tx *sqlx.Tx, id, remaining int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE recurrence_groups
		SET remaining_capacity = $1, updated_at = NOW()
		WHERE id = $2
	`, remaining, id)
	return err
}

func (r *Repository) UpdateGroupStatus(ctx context.Context, ext sqlx.ExtContext, id int, status GroupStatus) error {
	res, err := ext.ExecContext(ctx, `
		UPDATE recurrence_groups
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "recurrence group not found")
	}
	return nil
}

// AdjustGroupScheduleCapacities applies one shared-capacity decision to
// every schedule of a curriculum group in a single statement, so the batch
// is atomic for readers. The group row lock serializes callers.
func (r *Repository) AdjustGroupScheduleCapacities(ctx context.Context, tx *sqlx.Tx, groupID, delta int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE schedules
		SET remaining_capacity = remaining_capacity + $1, updated_at = NOW()
		WHERE group_id = $2
		  AND status NOT IN ('cancelled', 'finished')
	`, delta, groupID)
	return err
}

func (r *Repository) ListGroupSchedules(ctx context.Context, groupID int) ([]Schedule, error) {
	return r.listGroupSchedules(ctx, r.db, groupID)
}

// ListGroupSchedulesTx reads the group's schedules on the caller's
// transaction, so counters already moved in it are visible.
func (r *Repository) ListGroupSchedulesTx(ctx context.Context, tx *sqlx.Tx, groupID int) ([]Schedule, error) {
	return r.listGroupSchedules(ctx, tx, groupID)
}

func (r *Repository) listGroupSchedules(ctx context.Context, q sqlx.QueryerContext, groupID int) ([]Schedule, error) {
	query := `
		SELECT id, trainer_id, template_id, group_id, start_time, end_time, status, capacity, remaining_capacity, created_at, updated_at
		FROM schedules
		WHERE group_id = $1
		ORDER BY start_time
	`

	var out []Schedule
	if err := sqlx.SelectContext(ctx, q, &out, query, groupID); err != nil {
		return nil, err
	}
	return out, nil
}

// ListExpiredSchedules returns sweepable schedules whose end time passed.
// Cancelled and finished rows never match.
func (r *Repository) ListExpiredSchedules(ctx context.Context, asOf time.Time) ([]Schedule, error) {
	query := `
		SELECT id, trainer_id, template_id, group_id, start_time, end_time, status, capacity, remaining_capacity, created_at, updated_at
		FROM schedules
		WHERE status IN ('open', 'reserved', 'closed')
		  AND end_time <= $1
		ORDER BY id
	`

	var out []Schedule
	if err := r.db.SelectContext(ctx, &out, query, asOf); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) ListExpiredGroups(ctx context.Context, asOf time.Time) ([]RecurrenceGroup, error) {
	query := `
		SELECT g.id, g.trainer_id, g.template_id, g.kind, g.start_date, g.end_date, g.status, g.capacity, g.remaining_capacity, g.created_at, g.updated_at
		FROM recurrence_groups g
		WHERE g.status IN ('open', 'closed')
		  AND NOT EXISTS (
			SELECT 1 FROM schedules s
			WHERE s.group_id = g.id AND s.end_time > $1
		  )
		ORDER BY g.id
	`

	var out []RecurrenceGroup
	if err := r.db.SelectContext(ctx, &out, query, asOf); err != nil {
		return nil, err
	}
	return out, nil
}

// SetLockTimeout bounds every FOR UPDATE wait in the transaction. Postgres
// reports an expired wait as SQLSTATE 55P03, which the coordinator maps to
// a retryable conflict.
func (r *Repository) SetLockTimeout(ctx context.Context, tx *sqlx.Tx, d time.Duration) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds()))
	return err
}

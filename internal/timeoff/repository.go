package timeoff

import (
	"context"
	"database/sql"
	"errors"
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

func (r *Repository) Insert(ctx context.Context, ext sqlx.ExtContext, t *TimeOff) error {
	query := `
		INSERT INTO trainer_time_offs (trainer_id, start_time, end_time, status)
		VALUES ($1, $2, $3, 'registered')
		RETURNING id, status, created_at, updated_at
	`

	row := ext.QueryRowxContext(ctx, query, t.TrainerID, t.StartTime, t.EndTime)
	return row.Scan(&t.ID, &t.Status, &t.CreatedAt, &t.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id int) (*TimeOff, error) {
	query := `
		SELECT id, trainer_id, start_time, end_time, status, created_at, updated_at
		FROM trainer_time_offs
		WHERE id = $1
	`

	var t TimeOff
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "time-off not found")
		}
		return nil, err
	}
	return &t, nil
}

// ListRegisteredOverlapping returns the trainer's registered time-offs that
// intersect [from, to), matching the half-open overlap rule in SQL.
func (r *Repository) ListRegisteredOverlapping(ctx context.Context, trainerID int, from, to time.Time) ([]TimeOff, error) {
	query := `
		SELECT id, trainer_id, start_time, end_time, status, created_at, updated_at
		FROM trainer_time_offs
		WHERE trainer_id = $1
		  AND status = 'registered'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`

	var out []TimeOff
	if err := r.db.SelectContext(ctx, &out, query, trainerID, from, to); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) ListByTrainer(ctx context.Context, trainerID int) ([]TimeOff, error) {
	query := `
		SELECT id, trainer_id, start_time, end_time, status, created_at, updated_at
		FROM trainer_time_offs
		WHERE trainer_id = $1
		ORDER BY start_time DESC
	`

	var out []TimeOff
	if err := r.db.SelectContext(ctx, &out, query, trainerID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) Cancel(ctx context.Context, ext sqlx.ExtContext, id int) error {
	res, err := ext.ExecContext(ctx, `
		UPDATE trainer_time_offs
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'registered'
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.New(apperr.InvalidState, "time-off not found or already cancelled")
	}
	return nil
}

package outbox

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a propagation record on the caller's transaction so the
// notification becomes durable exactly when the state change commits.
func (r *Repository) Insert(ctx context.Context, ext sqlx.ExtContext, rec *Record) error {
	query := `
		INSERT INTO outbox (event_id, entity_type, entity_id, owner_id, start_time, end_time,
		                    old_status, new_status, reason, recipient_email, recipient_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	if rec.EventID == "" {
		rec.EventID = uuid.NewString()
	}

	row := ext.QueryRowxContext(ctx, query,
		rec.EventID,
		rec.EntityType,
		rec.EntityID,
		rec.OwnerID,
		rec.StartTime,
		rec.EndTime,
		rec.OldStatus,
		rec.NewStatus,
		rec.Reason,
		rec.RecipientEmail,
		rec.RecipientName,
	)
	return row.Scan(&rec.ID, &rec.CreatedAt)
}

// LockUnprocessed claims a batch for one dispatcher pass. SKIP LOCKED lets
// multiple dispatchers drain the table without stepping on each other.
func (r *Repository) LockUnprocessed(ctx context.Context, tx *sqlx.Tx, limit int) ([]Record, error) {
	query := `
		SELECT id, event_id, entity_type, entity_id, owner_id, start_time, end_time,
		       old_status, new_status, reason, recipient_email, recipient_name,
		       attempts, created_at, processed_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	var recs []Record
	if err := tx.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, tx *sqlx.Tx, id int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE outbox
		SET processed_at = NOW(), attempts = attempts + 1
		WHERE id = $1
	`, id)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, tx *sqlx.Tx, id int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE outbox
		SET attempts = attempts + 1
		WHERE id = $1
	`, id)
	return err
}

func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM outbox WHERE processed_at IS NULL`)
	return n, err
}

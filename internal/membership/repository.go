package membership

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

func (r *Repository) InsertPurchase(ctx context.Context, p *Purchase) error {
	query := `
		INSERT INTO purchases (member_id, kind, session_type, price_cents, total_sessions, used_sessions, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, 'active')
		RETURNING id, used_sessions, status, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		p.MemberID, p.Kind, p.SessionType, p.PriceCents, p.TotalSessions, p.StartDate, p.EndDate,
	)
	return row.Scan(&p.ID, &p.UsedSessions, &p.Status, &p.CreatedAt, &p.UpdatedAt)
}

func (r *Repository) GetPurchaseByID(ctx context.Context, id int) (*Purchase, error) {
	query := `
		SELECT id, member_id, kind, session_type, price_cents, total_sessions, used_sessions, start_date, end_date, status, created_at, updated_at
		FROM purchases
		WHERE id = $1
	`

	var p Purchase
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "purchase not found")
		}
		return nil, err
	}
	return &p, nil
}

// GetActivePurchaseForUpdate locks the member's best consumable purchase:
// an in-window membership first, then the oldest pack with sessions left.
func (r *Repository) GetActivePurchaseForUpdate(ctx context.Context, tx *sqlx.Tx, memberID int, asOf time.Time) (*Purchase, error) {
	query := `
		SELECT id, member_id, kind, session_type, price_cents, total_sessions, used_sessions, start_date, end_date, status, created_at, updated_at
		FROM purchases
		WHERE member_id = $1
		  AND status = 'active'
		  AND start_date <= $2
		  AND (end_date IS NULL OR end_date > $2)
		  AND (total_sessions IS NULL OR used_sessions < total_sessions)
		ORDER BY
		  CASE kind WHEN 'membership' THEN 0 ELSE 1 END,
		  created_at
		LIMIT 1
		FOR UPDATE
	`

	var p Purchase
	if err := tx.GetContext(ctx, &p, query, memberID, asOf); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.PolicyViolation, "no active membership or session pack")
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetPurchaseForUpdate(ctx context.Context, tx *sqlx.Tx, id int) (*Purchase, error) {
	query := `
		SELECT id, member_id, kind, session_type, price_cents, total_sessions, used_sessions, start_date, end_date, status, created_at, updated_at
		FROM purchases
		WHERE id = $1
		FOR UPDATE
	`

	var p Purchase
	if err := tx.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "purchase not found")
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) UpdateUsedSessions(ctx context.Context, tx *sqlx.Tx, purchaseID, used int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE purchases
		SET used_sessions = $1, updated_at = NOW()
		WHERE id = $2
	`, used, purchaseID)
	return err
}

func (r *Repository) UpdatePurchaseStatus(ctx context.Context, purchaseID int, status PurchaseStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE purchases
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, purchaseID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "purchase not found")
	}
	return nil
}

func (r *Repository) InsertSessionUse(ctx context.Context, tx *sqlx.Tx, u *SessionUse) error {
	query := `
		INSERT INTO session_uses (purchase_id, member_id, status, reason)
		VALUES ($1, $2, 'consumed', $3)
		RETURNING id, status, created_at, updated_at
	`

	row := tx.QueryRowxContext(ctx, query, u.PurchaseID, u.MemberID, u.Reason)
	return row.Scan(&u.ID, &u.Status, &u.CreatedAt, &u.UpdatedAt)
}

func (r *Repository) GetSessionUseByID(ctx context.Context, id int) (*SessionUse, error) {
	query := `
		SELECT id, purchase_id, member_id, status, reason, created_at, updated_at
		FROM session_uses
		WHERE id = $1
	`

	var u SessionUse
	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "session use not found")
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) MarkSessionRestored(ctx context.Context, tx *sqlx.Tx, id int, reason string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE session_uses
		SET status = 'restored', reason = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'consumed'
	`, reason, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.New(apperr.InvalidState, "session already restored or unknown")
	}
	return nil
}

func (r *Repository) ListPurchasesByMember(ctx context.Context, memberID int) ([]Purchase, error) {
	query := `
		SELECT id, member_id, kind, session_type, price_cents, total_sessions, used_sessions, start_date, end_date, status, created_at, updated_at
		FROM purchases
		WHERE member_id = $1
		ORDER BY created_at DESC
	`

	var out []Purchase
	if err := r.db.SelectContext(ctx, &out, query, memberID); err != nil {
		return nil, err
	}
	return out, nil
}

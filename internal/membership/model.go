package membership

import "time"

type PurchaseKind string

const (
	// KindMembership is a time-based plan; refunds prorate over the policy
	// window.
	KindMembership PurchaseKind = "membership"
	// KindSessionPack is a count-based bundle; any consumption forfeits the
	// refund.
	KindSessionPack PurchaseKind = "session_pack"
	// KindTrial is a free single-session pack, one per member.
	KindTrial PurchaseKind = "trial"
)

type PurchaseStatus string

const (
	PurchaseActive    PurchaseStatus = "active"
	PurchaseCancelled PurchaseStatus = "cancelled"
	PurchaseExpired   PurchaseStatus = "expired"
)

type SessionType string

const (
	SessionFreeTrial SessionType = "free_trial"
	SessionPaid      SessionType = "paid"
)

type SessionUseStatus string

const (
	SessionConsumed SessionUseStatus = "consumed"
	SessionRestored SessionUseStatus = "restored"
)

type Purchase struct {
	ID            int            `db:"id" json:"id"`
	MemberID      int            `db:"member_id" json:"member_id"`
	Kind          PurchaseKind   `db:"kind" json:"kind"`
	SessionType   SessionType    `db:"session_type" json:"session_type"`
	PriceCents    int64          `db:"price_cents" json:"price_cents"`
	TotalSessions *int           `db:"total_sessions" json:"total_sessions,omitempty"`
	UsedSessions  int            `db:"used_sessions" json:"used_sessions"`
	StartDate     time.Time      `db:"start_date" json:"start_date"`
	EndDate       *time.Time     `db:"end_date" json:"end_date,omitempty"`
	Status        PurchaseStatus `db:"status" json:"status"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// SessionUse is one consumed entitlement; its id is the session id the
// booking lifecycle carries around.
type SessionUse struct {
	ID         int              `db:"id" json:"id"`
	PurchaseID int              `db:"purchase_id" json:"purchase_id"`
	MemberID   int              `db:"member_id" json:"member_id"`
	Status     SessionUseStatus `db:"status" json:"status"`
	Reason     string           `db:"reason" json:"reason"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

type PurchaseRequest struct {
	Kind          string `json:"kind" binding:"required" example:"session_pack" validate:"oneof=membership session_pack trial"`
	PriceCents    int64  `json:"price_cents" validate:"gte=0"`
	TotalSessions int    `json:"total_sessions" validate:"gte=0,lte=500"`
	DurationDays  int    `json:"duration_days" validate:"gte=0,lte=366"`
	StartDate     string `json:"start_date" example:"2026-03-01"`
}

type RefundResponse struct {
	PurchaseID   int     `json:"purchase_id"`
	Fraction     float64 `json:"fraction"`
	RefundCents  int64   `json:"refund_cents"`
	WalletCredit bool    `json:"wallet_credit"`
}

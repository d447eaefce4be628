package booking

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusAttended  Status = "attended"
	StatusNoShow    Status = "no_show"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether the state machine allows no further transition.
// Only pending and confirmed are live.
func (s Status) Terminal() bool {
	return s != StatusPending && s != StatusConfirmed
}

type Kind string

const (
	KindPersonal   Kind = "personal"
	KindRoutine    Kind = "routine"
	KindCurriculum Kind = "curriculum"
)

// Cancellation kinds recorded at cancel time.
const (
	CancelFree    = "free_cancel"
	CancelPenalty = "penalty_cancel"
	CancelByClass = "class_cancelled"
)

// Booking is a member's claim on a schedule. Rows are never deleted;
// terminal states are retained for audit.
type Booking struct {
	ID         int        `db:"id" json:"id"`
	MemberID   int        `db:"member_id" json:"member_id"`
	ScheduleID int        `db:"schedule_id" json:"schedule_id"`
	GroupID    *int       `db:"group_id" json:"group_id,omitempty"`
	Kind       Kind       `db:"kind" json:"kind"`
	Status     Status     `db:"status" json:"status"`
	SessionID  int        `db:"session_id" json:"session_id"`
	CancelKind *string    `db:"cancel_kind" json:"cancel_kind,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

type BookingWithSchedule struct {
	Booking
	ScheduleStart time.Time `db:"schedule_start" json:"schedule_start"`
	ScheduleEnd   time.Time `db:"schedule_end" json:"schedule_end"`
	TrainerID     int       `db:"trainer_id" json:"trainer_id"`
}

type BookPersonalRequest struct {
	TrainerID int    `json:"trainer_id" binding:"required"`
	StartTime string `json:"start_time" binding:"required" example:"2026-03-02T10:00:00Z"`
	EndTime   string `json:"end_time" binding:"required" example:"2026-03-02T11:00:00Z"`
}

type DecideRequest struct {
	Approve bool `json:"approve"`
}

type CheckInRequest struct {
	WithinVenue bool `json:"within_venue"`
}

type TrainerCancelRequest struct {
	Force  bool   `json:"force"`
	Reason string `json:"reason" validate:"max=500"`
}

package timeoff

import "time"

type Status string

const (
	StatusRegistered Status = "registered"
	StatusCancelled  Status = "cancelled"
)

// TimeOff is a trainer-declared unavailability range. It feeds conflict
// detection only; it holds no capacity.
type TimeOff struct {
	ID        int       `db:"id" json:"id"`
	TrainerID int       `db:"trainer_id" json:"trainer_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type RegisterRequest struct {
	StartTime string `json:"start_time" binding:"required" example:"2026-03-09T00:00:00Z"`
	EndTime   string `json:"end_time" binding:"required" example:"2026-03-10T00:00:00Z"`
}

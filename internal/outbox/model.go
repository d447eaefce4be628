package outbox

import "time"

// Entity types carried by lifecycle notifications.
const (
	EntityBooking  = "booking"
	EntitySchedule = "schedule"
	EntityGroup    = "recurrence_group"
	EntityTimeOff  = "time_off"
)

// Record is one durable propagation row, written in the same transaction as
// the state change it describes and drained by the dispatcher.
type Record struct {
	ID             int        `db:"id" json:"id"`
	EventID        string     `db:"event_id" json:"event_id"`
	EntityType     string     `db:"entity_type" json:"entity_type"`
	EntityID       int        `db:"entity_id" json:"entity_id"`
	OwnerID        int        `db:"owner_id" json:"owner_id"`
	StartTime      *time.Time `db:"start_time" json:"start_time,omitempty"`
	EndTime        *time.Time `db:"end_time" json:"end_time,omitempty"`
	OldStatus      string     `db:"old_status" json:"old_status"`
	NewStatus      string     `db:"new_status" json:"new_status"`
	Reason         string     `db:"reason" json:"reason"`
	RecipientEmail *string    `db:"recipient_email" json:"recipient_email,omitempty"`
	RecipientName  *string    `db:"recipient_name" json:"recipient_name,omitempty"`
	Attempts       int        `db:"attempts" json:"attempts"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt    *time.Time `db:"processed_at" json:"processed_at,omitempty"`
}

// Event is the wire form pushed to the notification channel. Consumers
// deduplicate on (entity_type, entity_id, new_status); delivery is
// at-least-once.
type Event struct {
	EventID    string     `json:"event_id"`
	EntityType string     `json:"entity_type"`
	EntityID   int        `json:"entity_id"`
	OwnerID    int        `json:"owner_id"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	OldStatus  string     `json:"old_status"`
	NewStatus  string     `json:"new_status"`
	Reason     string     `json:"reason"`
	OccurredAt time.Time  `json:"occurred_at"`
}

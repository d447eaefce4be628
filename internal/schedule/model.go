package schedule

import "time"

type ScheduleStatus string

const (
	StatusOpen      ScheduleStatus = "open"
	StatusReserved  ScheduleStatus = "reserved"
	StatusClosed    ScheduleStatus = "closed"
	StatusCancelled ScheduleStatus = "cancelled"
	StatusFinished  ScheduleStatus = "finished"
)

// Terminal reports whether no further transition may leave the status.
func (s ScheduleStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusFinished
}

type GroupKind string

const (
	// KindCurriculum programs are booked all-or-nothing and share one
	// capacity counter across every generated schedule.
	KindCurriculum GroupKind = "curriculum"
	// KindRoutine series generate independently bookable occurrences.
	KindRoutine GroupKind = "routine"
)

type GroupStatus string

const (
	GroupOpen      GroupStatus = "open"
	GroupClosed    GroupStatus = "closed"
	GroupCancelled GroupStatus = "cancelled"
	GroupFinished  GroupStatus = "finished"
)

// ClassTemplate carries the class metadata shared by every occurrence a
// trainer publishes from it.
type ClassTemplate struct {
	ID          int       `db:"id" json:"id"`
	TrainerID   int       `db:"trainer_id" json:"trainer_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Capacity    int       `db:"capacity" json:"capacity"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Schedule is one concrete class occurrence or 1:1 slot. RemainingCapacity
// never exceeds Capacity and never goes negative; both bounds are also
// enforced by CHECK constraints.
type Schedule struct {
	ID                int            `db:"id" json:"id"`
	TrainerID         int            `db:"trainer_id" json:"trainer_id"`
	TemplateID        *int           `db:"template_id" json:"template_id,omitempty"`
	GroupID           *int           `db:"group_id" json:"group_id,omitempty"`
	StartTime         time.Time      `db:"start_time" json:"start_time"`
	EndTime           time.Time      `db:"end_time" json:"end_time"`
	Status            ScheduleStatus `db:"status" json:"status"`
	Capacity          int            `db:"capacity" json:"capacity"`
	RemainingCapacity int            `db:"remaining_capacity" json:"remaining_capacity"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// RecurrenceGroup is the parent aggregate of a routine series or curriculum
// program. RemainingCapacity is only meaningful for curriculum groups.
type RecurrenceGroup struct {
	ID                int         `db:"id" json:"id"`
	TrainerID         int         `db:"trainer_id" json:"trainer_id"`
	TemplateID        int         `db:"template_id" json:"template_id"`
	Kind              GroupKind   `db:"kind" json:"kind"`
	StartDate         time.Time   `db:"start_date" json:"start_date"`
	EndDate           time.Time   `db:"end_date" json:"end_date"`
	Status            GroupStatus `db:"status" json:"status"`
	Capacity          int         `db:"capacity" json:"capacity"`
	RemainingCapacity int         `db:"remaining_capacity" json:"remaining_capacity"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

type CreateTemplateRequest struct {
	Title       string `json:"title" binding:"required" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=2000"`
	Capacity    int    `json:"capacity" binding:"required" validate:"required,gte=1,lte=500"`
}

type PublishSlotRequest struct {
	TemplateID int    `json:"template_id" binding:"required"`
	StartTime  string `json:"start_time" binding:"required" example:"2026-03-02T10:00:00Z"`
	EndTime    string `json:"end_time" binding:"required" example:"2026-03-02T11:00:00Z"`
}

// PublishSeriesRequest publishes a routine series or curriculum program:
// one occurrence per listed weekday between the two dates.
type PublishSeriesRequest struct {
	TemplateID int    `json:"template_id" binding:"required"`
	Kind       string `json:"kind" binding:"required" example:"curriculum" validate:"oneof=curriculum routine"`
	StartDate  string `json:"start_date" binding:"required" example:"2026-03-02"`
	EndDate    string `json:"end_date" binding:"required" example:"2026-04-27"`
	Weekdays   []int  `json:"weekdays" binding:"required" example:"1,3"`
	StartClock string `json:"start_clock" binding:"required" example:"19:00"`
	Minutes    int    `json:"minutes" binding:"required" validate:"gte=15,lte=480"`
}

type ScheduleWithTemplate struct {
	Schedule
	Title string `db:"title" json:"title"`
}

package schedule

import (
	"context"
	"time"

	"fitclass/internal/apperr"
	"fitclass/internal/db"
	"fitclass/internal/interval"
	"fitclass/internal/metrics"

	"github.com/jmoiron/sqlx"
)

// TimeOffChecker is the narrow port into the trainer time-off subsystem.
type TimeOffChecker interface {
	ValidateNoOverlap(ctx context.Context, trainerID int, start, end time.Time) error
}

// Coordinator is the only component that mutates capacity counters. Every
// mutation happens under a FOR UPDATE lock on the counter's owning row, so
// concurrent reservations racing for the last seat serialize there.
type Coordinator struct {
	repo        *Repository
	timeOffs    TimeOffChecker
	lockTimeout time.Duration
}

func NewCoordinator(repo *Repository, timeOffs TimeOffChecker, lockTimeout time.Duration) *Coordinator {
	return &Coordinator{
		repo:        repo,
		timeOffs:    timeOffs,
		lockTimeout: lockTimeout,
	}
}

func mapLockErr(err error) error {
	switch {
	case db.IsLockTimeout(err):
		return apperr.Wrap(apperr.Conflict, "capacity lock wait timed out, retry the request", err)
	case db.IsExclusionViolation(err):
		return apperr.Wrap(apperr.Conflict, "trainer already has a commitment in that time range", err)
	case db.IsCheckViolation(err):
		return apperr.Wrap(apperr.Conflict, "capacity bound violated", err)
	default:
		return err
	}
}

// ReserveSingle creates the 1:1 slot for a personal booking: a reserved
// schedule with capacity one, already claimed by the requesting member.
// The conflict scan over the trainer's schedules and time-offs is unlocked;
// the exclusion constraint turns a lost race into a Conflict at insert.
func (c *Coordinator) ReserveSingle(ctx context.Context, tx *sqlx.Tx, trainerID int, start, end time.Time) (*Schedule, error) {
	if err := interval.Validate(start, end); err != nil {
		return nil, err
	}

	existing, err := c.repo.ListActiveByTrainerBetween(ctx, trainerID, start, end)
	if err != nil {
		return nil, err
	}
	for _, s := range existing {
		if interval.Overlaps(s.StartTime, s.EndTime, start, end) {
			return nil, apperr.Newf(apperr.Conflict, "trainer already has a class from %s to %s",
				s.StartTime.Format(time.RFC3339), s.EndTime.Format(time.RFC3339))
		}
	}

	if err := c.timeOffs.ValidateNoOverlap(ctx, trainerID, start, end); err != nil {
		return nil, err
	}

	s := &Schedule{
		TrainerID:         trainerID,
		StartTime:         start,
		EndTime:           end,
		Status:            StatusReserved,
		Capacity:          1,
		RemainingCapacity: 0,
	}
	if err := c.repo.InsertSchedule(ctx, tx, s); err != nil {
		metrics.RecordReservation("personal", "conflict")
		return nil, mapLockErr(err)
	}

	metrics.RecordReservation("personal", "ok")
	return s, nil
}

// ReserveRoutine claims one seat on a single occurrence. The pre-checks a
// caller may have done outside the lock do not count; status and remaining
// capacity are re-read under the row lock to close the check-then-act race.
func (c *Coordinator) ReserveRoutine(ctx context.Context, tx *sqlx.Tx, scheduleID int) (*Schedule, error) {
	if err := c.repo.SetLockTimeout(ctx, tx, c.lockTimeout); err != nil {
		return nil, err
	}

	s, err := c.repo.GetScheduleForUpdate(ctx, tx, scheduleID)
	if err != nil {
		return nil, mapLockErr(err)
	}

	if s.Status != StatusOpen && s.Status != StatusReserved {
		return nil, apperr.Newf(apperr.InvalidState, "schedule is %s and cannot be booked", s.Status)
	}
	if s.GroupID != nil {
		kind, err := c.repo.GroupKind(ctx, tx, *s.GroupID)
		if err != nil {
			return nil, err
		}
		// Curriculum counters move only through ReserveCurriculum; touching
		// a child here would desync it from the group's shared capacity.
		if kind == KindCurriculum {
			return nil, apperr.New(apperr.InvalidState, "occurrence belongs to a curriculum program, book the program instead")
		}
	}
	if s.RemainingCapacity <= 0 {
		metrics.CapacityConflictsTotal.Inc()
		metrics.RecordReservation("routine", "conflict")
		return nil, apperr.New(apperr.Conflict, "class is full")
	}

	s.RemainingCapacity--
	if err := c.repo.UpdateScheduleCapacity(ctx, tx, s.ID, s.RemainingCapacity, s.Status); err != nil {
		return nil, mapLockErr(err)
	}

	metrics.RecordReservation("routine", "ok")
	return s, nil
}

// ReserveCurriculum claims one seat on the whole program. The group row is
// locked first and is the only lock taken; the shared decision is applied
// to every child schedule in one statement so readers see the batch
// atomically.
func (c *Coordinator) ReserveCurriculum(ctx context.Context, tx *sqlx.Tx, groupID int) (*RecurrenceGroup, []Schedule, error) {
	if err := c.repo.SetLockTimeout(ctx, tx, c.lockTimeout); err != nil {
		return nil, nil, err
	}

	g, err := c.repo.GetGroupForUpdate(ctx, tx, groupID)
	if err != nil {
		return nil, nil, mapLockErr(err)
	}

	if g.Kind != KindCurriculum {
		return nil, nil, apperr.New(apperr.InvalidState, "group is not a curriculum program")
	}
	if g.Status != GroupOpen {
		return nil, nil, apperr.Newf(apperr.InvalidState, "program is %s and cannot be booked", g.Status)
	}
	if g.RemainingCapacity <= 0 {
		metrics.CapacityConflictsTotal.Inc()
		metrics.RecordReservation("curriculum", "conflict")
		return nil, nil, apperr.New(apperr.Conflict, "program is full")
	}

	g.RemainingCapacity--
	if err := c.repo.UpdateGroupCapacity(ctx, tx, g.ID, g.RemainingCapacity); err != nil {
		return nil, nil, mapLockErr(err)
	}
	if err := c.repo.AdjustGroupScheduleCapacities(ctx, tx, g.ID, -1); err != nil {
		return nil, nil, mapLockErr(err)
	}

	schedules, err := c.repo.ListGroupSchedulesTx(ctx, tx, g.ID)
	if err != nil {
		return nil, nil, err
	}

	metrics.RecordReservation("curriculum", "ok")
	return g, schedules, nil
}

// ReleaseRoutine gives one seat back. The CHECK constraint keeps the
// counter at or below the original capacity.
func (c *Coordinator) ReleaseRoutine(ctx context.Context, tx *sqlx.Tx, scheduleID int) error {
	if err := c.repo.SetLockTimeout(ctx, tx, c.lockTimeout); err != nil {
		return err
	}

	s, err := c.repo.GetScheduleForUpdate(ctx, tx, scheduleID)
	if err != nil {
		return mapLockErr(err)
	}

	if err := c.repo.UpdateScheduleCapacity(ctx, tx, s.ID, s.RemainingCapacity+1, s.Status); err != nil {
		return mapLockErr(err)
	}
	return nil
}

func (c *Coordinator) ReleaseCurriculum(ctx context.Context, tx *sqlx.Tx, groupID int) error {
	if err := c.repo.SetLockTimeout(ctx, tx, c.lockTimeout); err != nil {
		return err
	}

	g, err := c.repo.GetGroupForUpdate(ctx, tx, groupID)
	if err != nil {
		return mapLockErr(err)
	}

	if err := c.repo.UpdateGroupCapacity(ctx, tx, g.ID, g.RemainingCapacity+1); err != nil {
		return mapLockErr(err)
	}
	if err := c.repo.AdjustGroupScheduleCapacities(ctx, tx, g.ID, +1); err != nil {
		return mapLockErr(err)
	}
	return nil
}

// CancelSingle marks a 1:1 slot cancelled after its booking was rejected or
// cancelled. The slot held exactly one seat, so no counter moves.
func (c *Coordinator) CancelSingle(ctx context.Context, tx *sqlx.Tx, scheduleID int) error {
	return c.repo.UpdateScheduleStatus(ctx, tx, scheduleID, StatusCancelled)
}

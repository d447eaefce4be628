package timeoff

import (
	"context"
	"time"

	"fitclass/internal/apperr"
	"fitclass/internal/db"
	"fitclass/internal/interval"
	"fitclass/internal/logger"
	"fitclass/internal/outbox"
	"fitclass/internal/schedule"

	"github.com/jmoiron/sqlx"
)

// ScheduleLister is the read-only view of the trainer's published classes
// used for overlap checks.
type ScheduleLister interface {
	ListActiveByTrainerBetween(ctx context.Context, trainerID int, from, to time.Time) ([]schedule.Schedule, error)
}

type TrainerValidator interface {
	ValidateTrainer(ctx context.Context, trainerID int) error
}

type Service struct {
	db        *sqlx.DB
	repo      *Repository
	schedules ScheduleLister
	trainers  TrainerValidator
	outboxes  *outbox.Repository
}

func NewService(database *sqlx.DB, repo *Repository, schedules ScheduleLister, trainers TrainerValidator, outboxes *outbox.Repository) *Service {
	return &Service{
		db:        database,
		repo:      repo,
		schedules: schedules,
		trainers:  trainers,
		outboxes:  outboxes,
	}
}

// ValidateNoOverlap implements the conflict port the scheduling subsystem
// consults before publishing or reserving a slot.
func (s *Service) ValidateNoOverlap(ctx context.Context, trainerID int, start, end time.Time) error {
	offs, err := s.repo.ListRegisteredOverlapping(ctx, trainerID, start, end)
	if err != nil {
		return err
	}
	for _, off := range offs {
		if interval.Overlaps(off.StartTime, off.EndTime, start, end) {
			return apperr.Newf(apperr.Conflict, "trainer is off from %s to %s",
				off.StartTime.Format(time.RFC3339), off.EndTime.Format(time.RFC3339))
		}
	}
	return nil
}

// Register declares an unavailability range. The new range must not overlap
// the trainer's existing classes or other registered time-offs.
func (s *Service) Register(ctx context.Context, trainerID int, start, end time.Time) (*TimeOff, error) {
	if err := s.trainers.ValidateTrainer(ctx, trainerID); err != nil {
		return nil, err
	}
	if err := interval.Validate(start, end); err != nil {
		return nil, err
	}

	classes, err := s.schedules.ListActiveByTrainerBetween(ctx, trainerID, start, end)
	if err != nil {
		return nil, err
	}
	for _, c := range classes {
		if interval.Overlaps(c.StartTime, c.EndTime, start, end) {
			return nil, apperr.Newf(apperr.Conflict, "time-off overlaps a class from %s to %s",
				c.StartTime.Format(time.RFC3339), c.EndTime.Format(time.RFC3339))
		}
	}
	if err := s.ValidateNoOverlap(ctx, trainerID, start, end); err != nil {
		return nil, err
	}

	t := &TimeOff{TrainerID: trainerID, StartTime: start, EndTime: end}
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.Insert(ctx, tx, t); err != nil {
			return err
		}
		return s.outboxes.Insert(ctx, tx, &outbox.Record{
			EntityType: outbox.EntityTimeOff,
			EntityID:   t.ID,
			OwnerID:    trainerID,
			StartTime:  &t.StartTime,
			EndTime:    &t.EndTime,
			NewStatus:  string(StatusRegistered),
			Reason:     "time-off registered",
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Time-off registered", "time_off_id", t.ID, "trainer_id", trainerID)
	return t, nil
}

func (s *Service) Cancel(ctx context.Context, trainerID, timeOffID int) error {
	t, err := s.repo.GetByID(ctx, timeOffID)
	if err != nil {
		return err
	}
	if t.TrainerID != trainerID {
		return apperr.New(apperr.AccessDenied, "time-off belongs to another trainer")
	}

	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.Cancel(ctx, tx, timeOffID); err != nil {
			return err
		}
		return s.outboxes.Insert(ctx, tx, &outbox.Record{
			EntityType: outbox.EntityTimeOff,
			EntityID:   t.ID,
			OwnerID:    trainerID,
			StartTime:  &t.StartTime,
			EndTime:    &t.EndTime,
			OldStatus:  string(StatusRegistered),
			NewStatus:  string(StatusCancelled),
			Reason:     "time-off cancelled",
		})
	})
}

func (s *Service) ListByTrainer(ctx context.Context, trainerID int) ([]TimeOff, error) {
	return s.repo.ListByTrainer(ctx, trainerID)
}

package schedule

import (
	"context"
	"time"

	"fitclass/internal/apperr"
	"fitclass/internal/db"
	"fitclass/internal/interval"
	"fitclass/internal/logger"
	"fitclass/internal/outbox"

	"github.com/jmoiron/sqlx"
)

// TrainerValidator is the narrow identity port; implemented by the user
// service.
type TrainerValidator interface {
	ValidateTrainer(ctx context.Context, trainerID int) error
}

type Service struct {
	db       *sqlx.DB
	repo     *Repository
	timeOffs TimeOffChecker
	trainers TrainerValidator
	outboxes *outbox.Repository
	location *time.Location
}

func NewService(database *sqlx.DB, repo *Repository, timeOffs TimeOffChecker, trainers TrainerValidator, outboxes *outbox.Repository, location *time.Location) *Service {
	return &Service{
		db:       database,
		repo:     repo,
		timeOffs: timeOffs,
		trainers: trainers,
		outboxes: outboxes,
		location: location,
	}
}

func (s *Service) CreateTemplate(ctx context.Context, trainerID int, req CreateTemplateRequest) (*ClassTemplate, error) {
	if err := s.trainers.ValidateTrainer(ctx, trainerID); err != nil {
		return nil, err
	}
	return s.repo.CreateTemplate(ctx, trainerID, req.Title, req.Description, req.Capacity)
}

// checkTrainerFree runs the unlocked conflict scan against the trainer's
// other schedules and registered time-offs.
func (s *Service) checkTrainerFree(ctx context.Context, trainerID int, start, end time.Time) error {
	existing, err := s.repo.ListActiveByTrainerBetween(ctx, trainerID, start, end)
	if err != nil {
		return err
	}
	for _, sc := range existing {
		if interval.Overlaps(sc.StartTime, sc.EndTime, start, end) {
			return apperr.Newf(apperr.Conflict, "overlaps existing class from %s to %s",
				sc.StartTime.Format(time.RFC3339), sc.EndTime.Format(time.RFC3339))
		}
	}
	return s.timeOffs.ValidateNoOverlap(ctx, trainerID, start, end)
}

// PublishSlot opens one standalone occurrence from a template.
func (s *Service) PublishSlot(ctx context.Context, trainerID int, req PublishSlotRequest) (*Schedule, error) {
	if err := s.trainers.ValidateTrainer(ctx, trainerID); err != nil {
		return nil, err
	}

	tpl, err := s.repo.GetTemplateByID(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl.TrainerID != trainerID {
		return nil, apperr.New(apperr.AccessDenied, "template belongs to another trainer")
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return nil, apperr.New(apperr.PolicyViolation, "invalid start_time")
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return nil, apperr.New(apperr.PolicyViolation, "invalid end_time")
	}
	if err := interval.Validate(start, end); err != nil {
		return nil, err
	}
	if err := s.checkTrainerFree(ctx, trainerID, start, end); err != nil {
		return nil, err
	}

	sched := &Schedule{
		TrainerID:         trainerID,
		TemplateID:        &tpl.ID,
		StartTime:         start,
		EndTime:           end,
		Status:            StatusOpen,
		Capacity:          tpl.Capacity,
		RemainingCapacity: tpl.Capacity,
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.InsertSchedule(ctx, tx, sched); err != nil {
			return mapLockErr(err)
		}
		return s.outboxes.Insert(ctx, tx, &outbox.Record{
			EntityType: outbox.EntitySchedule,
			EntityID:   sched.ID,
			OwnerID:    trainerID,
			StartTime:  &sched.StartTime,
			EndTime:    &sched.EndTime,
			NewStatus:  string(StatusOpen),
			Reason:     "slot published",
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Slot published",
		"schedule_id", sched.ID,
		"trainer_id", trainerID,
		"start", start,
	)
	return sched, nil
}

// PublishSeries publishes a routine series or a curriculum program: one
// occurrence per requested weekday between the two dates, all in one
// transaction so a half-created program is never visible.
func (s *Service) PublishSeries(ctx context.Context, trainerID int, req PublishSeriesRequest) (*RecurrenceGroup, []Schedule, error) {
	if err := s.trainers.ValidateTrainer(ctx, trainerID); err != nil {
		return nil, nil, err
	}

	tpl, err := s.repo.GetTemplateByID(ctx, req.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	if tpl.TrainerID != trainerID {
		return nil, nil, apperr.New(apperr.AccessDenied, "template belongs to another trainer")
	}

	kind := GroupKind(req.Kind)
	if kind != KindCurriculum && kind != KindRoutine {
		return nil, nil, apperr.New(apperr.PolicyViolation, "kind must be curriculum or routine")
	}

	occurrences, startDate, endDate, err := s.expandSeries(req)
	if err != nil {
		return nil, nil, err
	}
	if len(occurrences) == 0 {
		return nil, nil, apperr.New(apperr.PolicyViolation, "series produces no occurrences")
	}

	for _, occ := range occurrences {
		if err := s.checkTrainerFree(ctx, trainerID, occ.start, occ.end); err != nil {
			return nil, nil, err
		}
	}

	group := &RecurrenceGroup{
		TrainerID:         trainerID,
		TemplateID:        tpl.ID,
		Kind:              kind,
		StartDate:         startDate,
		EndDate:           endDate,
		Status:            GroupOpen,
		Capacity:          tpl.Capacity,
		RemainingCapacity: tpl.Capacity,
	}

	var schedules []Schedule
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.InsertGroup(ctx, tx, group); err != nil {
			return err
		}

		schedules = schedules[:0]
		for _, occ := range occurrences {
			sched := Schedule{
				TrainerID:         trainerID,
				TemplateID:        &tpl.ID,
				GroupID:           &group.ID,
				StartTime:         occ.start,
				EndTime:           occ.end,
				Status:            StatusOpen,
				Capacity:          tpl.Capacity,
				RemainingCapacity: tpl.Capacity,
			}
			if err := s.repo.InsertSchedule(ctx, tx, &sched); err != nil {
				return mapLockErr(err)
			}
			schedules = append(schedules, sched)
		}

		return s.outboxes.Insert(ctx, tx, &outbox.Record{
			EntityType: outbox.EntityGroup,
			EntityID:   group.ID,
			OwnerID:    trainerID,
			StartTime:  &group.StartDate,
			EndTime:    &group.EndDate,
			NewStatus:  string(GroupOpen),
			Reason:     string(kind) + " published",
		})
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Series published",
		"group_id", group.ID,
		"trainer_id", trainerID,
		"kind", kind,
		"occurrences", len(schedules),
	)
	return group, schedules, nil
}

type occurrence struct {
	start time.Time
	end   time.Time
}

// expandSeries turns the weekday pattern into concrete occurrences in the
// configured location; dates are interpreted there, never in the process
// default zone.
func (s *Service) expandSeries(req PublishSeriesRequest) ([]occurrence, time.Time, time.Time, error) {
	var zero time.Time

	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, s.location)
	if err != nil {
		return nil, zero, zero, apperr.New(apperr.PolicyViolation, "invalid start_date")
	}
	endDate, err := time.ParseInLocation("2006-01-02", req.EndDate, s.location)
	if err != nil {
		return nil, zero, zero, apperr.New(apperr.PolicyViolation, "invalid end_date")
	}
	if endDate.Before(startDate) {
		return nil, zero, zero, apperr.New(apperr.PolicyViolation, "end_date before start_date")
	}

	clock, err := time.ParseInLocation("15:04", req.StartClock, s.location)
	if err != nil {
		return nil, zero, zero, apperr.New(apperr.PolicyViolation, "invalid start_clock")
	}
	if req.Minutes <= 0 {
		return nil, zero, zero, apperr.New(apperr.PolicyViolation, "minutes must be positive")
	}

	wanted := map[time.Weekday]bool{}
	for _, d := range req.Weekdays {
		if d < 0 || d > 6 {
			return nil, zero, zero, apperr.New(apperr.PolicyViolation, "weekdays must be 0 (Sunday) through 6 (Saturday)")
		}
		wanted[time.Weekday(d)] = true
	}

	var out []occurrence
	for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
		if !wanted[day.Weekday()] {
			continue
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, s.location)
		out = append(out, occurrence{start: start, end: start.Add(time.Duration(req.Minutes) * time.Minute)})
	}
	return out, startDate, endDate, nil
}

// CloseSchedule stops further reservations without cancelling existing
// bookings. Capacity zero alone never closes a slot; this is the only path
// to closed.
func (s *Service) CloseSchedule(ctx context.Context, trainerID, scheduleID int) error {
	sched, err := s.repo.GetScheduleByID(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sched.TrainerID != trainerID {
		return apperr.New(apperr.AccessDenied, "schedule belongs to another trainer")
	}
	if sched.Status != StatusOpen && sched.Status != StatusReserved {
		return apperr.Newf(apperr.InvalidState, "cannot close a %s schedule", sched.Status)
	}

	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.UpdateScheduleStatus(ctx, tx, scheduleID, StatusClosed); err != nil {
			return err
		}
		return s.outboxes.Insert(ctx, tx, &outbox.Record{
			EntityType: outbox.EntitySchedule,
			EntityID:   scheduleID,
			OwnerID:    trainerID,
			StartTime:  &sched.StartTime,
			EndTime:    &sched.EndTime,
			OldStatus:  string(sched.Status),
			NewStatus:  string(StatusClosed),
			Reason:     "closed by trainer",
		})
	})
}

func (s *Service) ListOpenSlots(ctx context.Context, from time.Time) ([]ScheduleWithTemplate, error) {
	return s.repo.ListOpenSchedules(ctx, from)
}

func (s *Service) GetSchedule(ctx context.Context, id int) (*Schedule, error) {
	return s.repo.GetScheduleByID(ctx, id)
}

func (s *Service) GetGroup(ctx context.Context, id int) (*RecurrenceGroup, error) {
	return s.repo.GetGroupByID(ctx, id)
}

func (s *Service) ListGroupSchedules(ctx context.Context, groupID int) ([]Schedule, error) {
	return s.repo.ListGroupSchedules(ctx, groupID)
}

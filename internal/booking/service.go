package booking

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"fitclass/internal/apperr"
	"fitclass/internal/db"
	"fitclass/internal/interval"
	"fitclass/internal/membership"
	"fitclass/internal/metrics"
	"fitclass/internal/outbox"
	"fitclass/internal/policy"
	"fitclass/internal/schedule"
	"fitclass/internal/user"
)

// Reserver is the capacity coordinator port. All methods run on the
// caller's transaction so a booking and its capacity change commit together.
type Reserver interface {
	ReserveSingle(ctx context.Context, tx *sqlx.Tx, trainerID int, start, end time.Time) (*schedule.Schedule, error)
	ReserveRoutine(ctx context.Context, tx *sqlx.Tx, scheduleID int) (*schedule.Schedule, error)
	ReserveCurriculum(ctx context.Context, tx *sqlx.Tx, groupID int) (*schedule.RecurrenceGroup, []schedule.Schedule, error)
	ReleaseRoutine(ctx context.Context, tx *sqlx.Tx, scheduleID int) error
	ReleaseCurriculum(ctx context.Context, tx *sqlx.Tx, groupID int) error
	CancelSingle(ctx context.Context, tx *sqlx.Tx, scheduleID int) error
}

// Ledger is the session entitlement port backed by the membership package.
type Ledger interface {
	ConsumeSession(ctx context.Context, tx *sqlx.Tx, memberID int, asOf time.Time, reason string) (*membership.SessionUse, membership.SessionType, error)
	RestoreSession(ctx context.Context, tx *sqlx.Tx, sessionID int, reason string) error
}

// Schedules exposes the read side of the schedule package needed here.
type Schedules interface {
	GetScheduleByID(ctx context.Context, id int) (*schedule.Schedule, error)
	GetGroupByID(ctx context.Context, id int) (*schedule.RecurrenceGroup, error)
	ListGroupSchedules(ctx context.Context, groupID int) ([]schedule.Schedule, error)
}

// Directory resolves and validates users.
type Directory interface {
	GetByID(ctx context.Context, userID int) (*user.User, error)
	ValidateMember(ctx context.Context, memberID int) error
	ValidateTrainer(ctx context.Context, trainerID int) error
}

type Service struct {
	db        *sqlx.DB
	repo      *Repository
	schedules Schedules
	reserver  Reserver
	ledger    Ledger
	users     Directory
	outboxes  *outbox.Repository
	rules     policy.Rules
}

func NewService(database *sqlx.DB, repo *Repository, schedules Schedules, reserver Reserver, ledger Ledger, users Directory, outboxes *outbox.Repository, rules policy.Rules) *Service {
	return &Service{
		db:        database,
		repo:      repo,
		schedules: schedules,
		reserver:  reserver,
		ledger:    ledger,
		users:     users,
		outboxes:  outboxes,
		rules:     rules,
	}
}

// BookPersonal books a one-on-one session at an arbitrary time inside the
// trainer's free calendar. A free-trial session starts pending and waits for
// the trainer's decision; a paid session confirms immediately.
func (s *Service) BookPersonal(ctx context.Context, memberID int, trainerID int, start, end time.Time, now time.Time) (*Booking, error) {
	if err := s.users.ValidateMember(ctx, memberID); err != nil {
		return nil, err
	}
	if err := s.users.ValidateTrainer(ctx, trainerID); err != nil {
		return nil, err
	}
	if err := interval.Validate(start, end); err != nil {
		return nil, err
	}

	member, err := s.users.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	var booked *Booking
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		use, stype, err := s.ledger.ConsumeSession(ctx, tx, memberID, now, "personal booking")
		if err != nil {
			return err
		}

		lead := s.rules.BookingLeadTime(false, policy.SessionType(stype))
		if start.Sub(now) < lead {
			return apperr.Newf(apperr.PolicyViolation, "personal sessions must be booked at least %s in advance", lead)
		}

		sched, err := s.reserver.ReserveSingle(ctx, tx, trainerID, start, end)
		if err != nil {
			return err
		}

		status := StatusConfirmed
		if stype == membership.SessionFreeTrial {
			status = StatusPending
		}
		b := &Booking{
			MemberID:   memberID,
			ScheduleID: sched.ID,
			Kind:       KindPersonal,
			Status:     status,
			SessionID:  use.ID,
		}
		if err := s.repo.Insert(ctx, tx, b); err != nil {
			return err
		}
		if err := s.writeBookingEvent(ctx, tx, b, sched, member, "", string(status)); err != nil {
			return err
		}
		booked = b
		return nil
	})
	if err != nil {
		metrics.RecordReservation(string(KindPersonal), "rejected")
		return nil, err
	}
	metrics.RecordReservation(string(KindPersonal), "ok")
	return booked, nil
}

// BookRoutine claims one seat in a published drop-in class.
func (s *Service) BookRoutine(ctx context.Context, memberID, scheduleID int, now time.Time) (*Booking, error) {
	if err := s.users.ValidateMember(ctx, memberID); err != nil {
		return nil, err
	}
	member, err := s.users.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	pre, err := s.schedules.GetScheduleByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if pre.GroupID != nil {
		grp, err := s.schedules.GetGroupByID(ctx, *pre.GroupID)
		if err != nil {
			return nil, err
		}
		// Curriculum seats live on the group; a single occurrence is never
		// bookable on its own.
		if grp.Kind == schedule.KindCurriculum {
			return nil, apperr.New(apperr.InvalidState, "class is part of a curriculum program, enroll in the whole program")
		}
	}
	if pre.StartTime.Sub(now) < s.rules.BookingLeadTime(true, policy.SessionPaid) {
		return nil, apperr.Newf(apperr.PolicyViolation, "classes must be booked at least %s before start", s.rules.BookingLeadTime(true, policy.SessionPaid))
	}

	var booked *Booking
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		use, _, err := s.ledger.ConsumeSession(ctx, tx, memberID, now, "class booking")
		if err != nil {
			return err
		}
		sched, err := s.reserver.ReserveRoutine(ctx, tx, scheduleID)
		if err != nil {
			return err
		}
		b := &Booking{
			MemberID:   memberID,
			ScheduleID: sched.ID,
			GroupID:    sched.GroupID,
			Kind:       KindRoutine,
			Status:     StatusConfirmed,
			SessionID:  use.ID,
		}
		if err := s.repo.Insert(ctx, tx, b); err != nil {
			return err
		}
		if err := s.writeBookingEvent(ctx, tx, b, sched, member, "", string(StatusConfirmed)); err != nil {
			return err
		}
		booked = b
		return nil
	})
	if err != nil {
		metrics.RecordReservation(string(KindRoutine), "rejected")
		return nil, err
	}
	metrics.RecordReservation(string(KindRoutine), "ok")
	return booked, nil
}

// BookCurriculum enrolls the member in a whole fixed-cohort program. One
// session entitlement covers the program; one booking row is created per
// class so attendance is tracked per occurrence. All rows commit or none do.
func (s *Service) BookCurriculum(ctx context.Context, memberID, groupID int, now time.Time) ([]Booking, error) {
	if err := s.users.ValidateMember(ctx, memberID); err != nil {
		return nil, err
	}
	member, err := s.users.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	group, err := s.schedules.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if first := s.firstUpcoming(ctx, group.ID, now); first != nil {
		if first.StartTime.Sub(now) < s.rules.BookingLeadTime(true, policy.SessionPaid) {
			return nil, apperr.New(apperr.PolicyViolation, "program enrollment closed, first class is too close")
		}
	}

	var booked []Booking
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		use, _, err := s.ledger.ConsumeSession(ctx, tx, memberID, now, "program enrollment")
		if err != nil {
			return err
		}
		grp, classes, err := s.reserver.ReserveCurriculum(ctx, tx, groupID)
		if err != nil {
			return err
		}
		for i := range classes {
			b := Booking{
				MemberID:   memberID,
				ScheduleID: classes[i].ID,
				GroupID:    &grp.ID,
				Kind:       KindCurriculum,
				Status:     StatusConfirmed,
				SessionID:  use.ID,
			}
			if err := s.repo.Insert(ctx, tx, &b); err != nil {
				return err
			}
			booked = append(booked, b)
		}
		if len(booked) > 0 {
			if err := s.writeBookingEvent(ctx, tx, &booked[0], &classes[0], member, "", string(StatusConfirmed)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordReservation(string(KindCurriculum), "rejected")
		return nil, err
	}
	metrics.RecordReservation(string(KindCurriculum), "ok")
	return booked, nil
}

func (s *Service) firstUpcoming(ctx context.Context, groupID int, now time.Time) *schedule.Schedule {
	classes, err := s.schedules.ListGroupSchedules(ctx, groupID)
	if err != nil {
		return nil
	}
	for i := range classes {
		if classes[i].StartTime.After(now) {
			return &classes[i]
		}
	}
	return nil
}

// Decide resolves a pending free-trial personal booking. Approval confirms
// it; rejection cancels the held slot and restores the trial session.
func (s *Service) Decide(ctx context.Context, trainerID, bookingID int, approve bool, now time.Time) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Kind != KindPersonal || b.Status != StatusPending {
		return nil, apperr.New(apperr.InvalidState, "booking is not awaiting a decision")
	}
	sched, err := s.schedules.GetScheduleByID(ctx, b.ScheduleID)
	if err != nil {
		return nil, err
	}
	if sched.TrainerID != trainerID {
		return nil, apperr.New(apperr.AccessDenied, "booking belongs to another trainer")
	}
	member, err := s.users.GetByID(ctx, b.MemberID)
	if err != nil {
		return nil, err
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if approve {
			if err := s.repo.UpdateStatus(ctx, tx, b.ID, []Status{StatusPending}, StatusConfirmed, nil); err != nil {
				return err
			}
			b.Status = StatusConfirmed
			return s.writeBookingEvent(ctx, tx, b, sched, member, string(StatusPending), string(StatusConfirmed))
		}
		if err := s.repo.UpdateStatus(ctx, tx, b.ID, []Status{StatusPending}, StatusRejected, nil); err != nil {
			return err
		}
		if err := s.reserver.CancelSingle(ctx, tx, b.ScheduleID); err != nil {
			return err
		}
		if err := s.ledger.RestoreSession(ctx, tx, b.SessionID, "trainer rejected booking"); err != nil {
			return err
		}
		b.Status = StatusRejected
		return s.writeBookingEvent(ctx, tx, b, sched, member, string(StatusPending), string(StatusRejected))
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Cancel runs the member-initiated cancellation policy. Inside the
// impossible tier nothing is mutated. A free cancel restores the consumed
// session; a penalty cancel releases the seat but keeps the session spent.
func (s *Service) Cancel(ctx context.Context, memberID, bookingID int, now time.Time) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.MemberID != memberID {
		return nil, apperr.New(apperr.AccessDenied, "booking belongs to another member")
	}
	if b.Status.Terminal() {
		return nil, apperr.Newf(apperr.InvalidState, "booking is already %s", b.Status)
	}
	sched, err := s.schedules.GetScheduleByID(ctx, b.ScheduleID)
	if err != nil {
		return nil, err
	}

	classStart := sched.StartTime
	if b.Kind == KindCurriculum && b.GroupID != nil {
		if first := s.firstUpcoming(ctx, *b.GroupID, now); first != nil {
			classStart = first.StartTime
		}
	}

	outcome := s.rules.ClassCancellation(now, b.CreatedAt, classStart)
	if outcome == policy.CancelImpossible {
		return nil, apperr.New(apperr.PolicyViolation, "too late to cancel this booking")
	}
	member, err := s.users.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	cancelKind := CancelFree
	if outcome == policy.PenaltyCancel {
		cancelKind = CancelPenalty
	}
	prev := b.Status

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		switch b.Kind {
		case KindPersonal:
			if err := s.repo.UpdateStatus(ctx, tx, b.ID, []Status{StatusPending, StatusConfirmed}, StatusCancelled, &cancelKind); err != nil {
				return err
			}
			if err := s.reserver.CancelSingle(ctx, tx, b.ScheduleID); err != nil {
				return err
			}
		case KindRoutine:
			if err := s.repo.UpdateStatus(ctx, tx, b.ID, []Status{StatusPending, StatusConfirmed}, StatusCancelled, &cancelKind); err != nil {
				return err
			}
			if err := s.reserver.ReleaseRoutine(ctx, tx, b.ScheduleID); err != nil {
				return err
			}
		case KindCurriculum:
			siblings, err := s.repo.ListLiveByGroupAndMember(ctx, tx, *b.GroupID, memberID)
			if err != nil {
				return err
			}
			for i := range siblings {
				if err := s.repo.UpdateStatus(ctx, tx, siblings[i].ID, []Status{StatusPending, StatusConfirmed}, StatusCancelled, &cancelKind); err != nil {
					return err
				}
			}
			if err := s.reserver.ReleaseCurriculum(ctx, tx, *b.GroupID); err != nil {
				return err
			}
		}
		if outcome == policy.FreeCancel {
			if err := s.ledger.RestoreSession(ctx, tx, b.SessionID, "free cancellation"); err != nil {
				return err
			}
		}
		b.Status = StatusCancelled
		b.CancelKind = &cancelKind
		return s.writeBookingEvent(ctx, tx, b, sched, member, string(prev), string(StatusCancelled))
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordCancellation(string(outcome))
	return b, nil
}

// CancelClass is the trainer-initiated cancellation of a whole class. The
// tier policy still applies unless force is set, which is meant for genuine
// emergencies. Every affected member gets the session back regardless of
// tier because the cancellation was not their doing.
func (s *Service) CancelClass(ctx context.Context, trainerID, scheduleID int, force bool, reason string, now time.Time) error {
	sched, err := s.schedules.GetScheduleByID(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sched.TrainerID != trainerID {
		return apperr.New(apperr.AccessDenied, "class belongs to another trainer")
	}
	if sched.Status.Terminal() {
		return apperr.Newf(apperr.InvalidState, "class is already %s", sched.Status)
	}
	if !force && sched.StartTime.Sub(now) < s.rules.CancelCutoff {
		return apperr.New(apperr.PolicyViolation, "too close to start, use force to cancel anyway")
	}
	if reason == "" {
		reason = "class cancelled by trainer"
	}

	restored := map[int]bool{}
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		affected, err := s.repo.ListLiveBySchedule(ctx, tx, scheduleID)
		if err != nil {
			return err
		}
		if err := s.reserver.CancelSingle(ctx, tx, scheduleID); err != nil {
			return err
		}

		kind := CancelByClass
		for i := range affected {
			b := &affected[i]
			prev := b.Status
			if err := s.repo.UpdateStatus(ctx, tx, b.ID, []Status{StatusPending, StatusConfirmed}, StatusCancelled, &kind); err != nil {
				return err
			}
			// A curriculum session spans many bookings, restore it once.
			if !restored[b.SessionID] {
				if err := s.ledger.RestoreSession(ctx, tx, b.SessionID, reason); err != nil {
					return err
				}
				restored[b.SessionID] = true
			}
			member, err := s.users.GetByID(ctx, b.MemberID)
			if err != nil {
				return err
			}
			b.Status = StatusCancelled
			rec := bookingRecord(b, sched, member, string(prev), string(StatusCancelled))
			rec.Reason = reason
			if err := s.outboxes.Insert(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// CheckIn marks attendance. Allowed only inside the check-in window and only
// when the client reports being at the venue.
func (s *Service) CheckIn(ctx context.Context, memberID, bookingID int, withinVenue bool, now time.Time) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.MemberID != memberID {
		return nil, apperr.New(apperr.AccessDenied, "booking belongs to another member")
	}
	if b.Status != StatusConfirmed {
		return nil, apperr.Newf(apperr.InvalidState, "cannot check in a %s booking", b.Status)
	}
	sched, err := s.schedules.GetScheduleByID(ctx, b.ScheduleID)
	if err != nil {
		return nil, err
	}
	if !s.rules.CheckInOpen(now, sched.StartTime, sched.EndTime) {
		return nil, apperr.New(apperr.PolicyViolation, "check-in window is not open")
	}
	if !withinVenue {
		return nil, apperr.New(apperr.PolicyViolation, "check-in requires being at the venue")
	}

	member, err := s.users.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.UpdateStatus(ctx, tx, b.ID, []Status{StatusConfirmed}, StatusAttended, nil); err != nil {
			return err
		}
		return s.writeBookingEvent(ctx, tx, b, sched, member, string(StatusConfirmed), string(StatusAttended))
	})
	if err != nil {
		return nil, err
	}
	b.Status = StatusAttended
	metrics.CheckInsTotal.Inc()
	return b, nil
}

// AutoNoShow flips confirmed bookings of finished classes to no_show. Runs
// from the sweep loop; each booking is its own transaction so one bad row
// does not stall the rest.
func (s *Service) AutoNoShow(ctx context.Context, asOf time.Time) (int, error) {
	ended, err := s.repo.ListConfirmedEnded(ctx, asOf)
	if err != nil {
		return 0, err
	}

	moved := 0
	for i := range ended {
		b := &ended[i]
		member, err := s.users.GetByID(ctx, b.MemberID)
		if err != nil {
			return moved, err
		}
		err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
			if err := s.repo.UpdateStatus(ctx, tx, b.ID, []Status{StatusConfirmed}, StatusNoShow, nil); err != nil {
				return err
			}
			return s.outboxes.Insert(ctx, tx, &outbox.Record{
				EntityType:     outbox.EntityBooking,
				EntityID:       b.ID,
				OwnerID:        b.MemberID,
				StartTime:      &b.ScheduleStart,
				EndTime:        &b.ScheduleEnd,
				OldStatus:      string(StatusConfirmed),
				NewStatus:      string(StatusNoShow),
				RecipientEmail: &member.Email,
				RecipientName:  &member.Name,
			})
		})
		if err != nil {
			if apperr.Is(err, apperr.InvalidState) {
				continue
			}
			return moved, err
		}
		moved++
		metrics.NoShowsTotal.Inc()
	}
	return moved, nil
}

func (s *Service) ListByMember(ctx context.Context, memberID int) ([]BookingWithSchedule, error) {
	return s.repo.ListByMember(ctx, memberID)
}

func (s *Service) ListBySchedule(ctx context.Context, trainerID, scheduleID int) ([]Booking, error) {
	sched, err := s.schedules.GetScheduleByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sched.TrainerID != trainerID {
		return nil, apperr.New(apperr.AccessDenied, "class belongs to another trainer")
	}
	return s.repo.ListBySchedule(ctx, scheduleID)
}

func (s *Service) GetByID(ctx context.Context, id int) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) writeBookingEvent(ctx context.Context, tx *sqlx.Tx, b *Booking, sched *schedule.Schedule, member *user.User, oldStatus, newStatus string) error {
	return s.outboxes.Insert(ctx, tx, bookingRecord(b, sched, member, oldStatus, newStatus))
}

func bookingRecord(b *Booking, sched *schedule.Schedule, member *user.User, oldStatus, newStatus string) *outbox.Record {
	return &outbox.Record{
		EntityType:     outbox.EntityBooking,
		EntityID:       b.ID,
		OwnerID:        b.MemberID,
		StartTime:      &sched.StartTime,
		EndTime:        &sched.EndTime,
		OldStatus:      oldStatus,
		NewStatus:      newStatus,
		RecipientEmail: &member.Email,
		RecipientName:  &member.Name,
	}
}

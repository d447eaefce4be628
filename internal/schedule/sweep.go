package schedule

import (
	"context"
	"time"

	"fitclass/internal/db"
	"fitclass/internal/logger"
	"fitclass/internal/metrics"
	"fitclass/internal/outbox"

	"github.com/jmoiron/sqlx"
)

// NoShowRunner lets the sweep drive the booking subsystem's automatic
// no-show pass without importing it.
type NoShowRunner interface {
	AutoNoShow(ctx context.Context, asOf time.Time) (int, error)
}

// Sweeper finishes expired slots and groups on a fixed interval. Re-running
// over already-finished entities is a no-op: the queries only match
// sweepable statuses, so a second pass selects nothing and emits nothing.
type Sweeper struct {
	db       *sqlx.DB
	repo     *Repository
	outboxes *outbox.Repository
	noShows  NoShowRunner
	interval time.Duration
	stopChan chan struct{}
}

func NewSweeper(database *sqlx.DB, repo *Repository, outboxes *outbox.Repository, noShows NoShowRunner, interval time.Duration) *Sweeper {
	return &Sweeper{
		db:       database,
		repo:     repo,
		outboxes: outboxes,
		noShows:  noShows,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	logger.Info("Finish sweep started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx, time.Now())
		case <-s.stopChan:
			logger.Info("Finish sweep stopped")
			return
		case <-ctx.Done():
			logger.Info("Finish sweep cancelled")
			return
		}
	}
}

func (s *Sweeper) Stop() {
	close(s.stopChan)
}

// RunOnce performs one sweep pass as of the given instant. Failures are
// collected per item; one broken entity never blocks the rest.
func (s *Sweeper) RunOnce(ctx context.Context, asOf time.Time) {
	finishedSchedules := s.finishSchedules(ctx, asOf)
	finishedGroups := s.finishGroups(ctx, asOf)

	noShows := 0
	if s.noShows != nil {
		n, err := s.noShows.AutoNoShow(ctx, asOf)
		if err != nil {
			logger.Error("Auto no-show pass failed", "error", err)
		}
		noShows = n
	}

	if finishedSchedules+finishedGroups+noShows > 0 {
		logger.Info("Sweep pass completed",
			"finished_schedules", finishedSchedules,
			"finished_groups", finishedGroups,
			"no_shows", noShows,
		)
	}
}

func (s *Sweeper) finishSchedules(ctx context.Context, asOf time.Time) int {
	expired, err := s.repo.ListExpiredSchedules(ctx, asOf)
	if err != nil {
		logger.Error("Failed to list expired schedules", "error", err)
		return 0
	}

	finished := 0
	for _, sched := range expired {
		sched := sched
		err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
			if err := s.repo.UpdateScheduleStatus(ctx, tx, sched.ID, StatusFinished); err != nil {
				return err
			}
			return s.outboxes.Insert(ctx, tx, &outbox.Record{
				EntityType: outbox.EntitySchedule,
				EntityID:   sched.ID,
				OwnerID:    sched.TrainerID,
				StartTime:  &sched.StartTime,
				EndTime:    &sched.EndTime,
				OldStatus:  string(sched.Status),
				NewStatus:  string(StatusFinished),
				Reason:     "end time passed",
			})
		})
		if err != nil {
			logger.Error("Failed to finish schedule", "schedule_id", sched.ID, "error", err)
			continue
		}
		finished++
	}

	if finished > 0 {
		metrics.RecordSweepTransition("schedule", finished)
	}
	return finished
}

func (s *Sweeper) finishGroups(ctx context.Context, asOf time.Time) int {
	expired, err := s.repo.ListExpiredGroups(ctx, asOf)
	if err != nil {
		logger.Error("Failed to list expired groups", "error", err)
		return 0
	}

	finished := 0
	for _, g := range expired {
		g := g
		err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
			if err := s.repo.UpdateGroupStatus(ctx, tx, g.ID, GroupFinished); err != nil {
				return err
			}
			return s.outboxes.Insert(ctx, tx, &outbox.Record{
				EntityType: outbox.EntityGroup,
				EntityID:   g.ID,
				OwnerID:    g.TrainerID,
				StartTime:  &g.StartDate,
				EndTime:    &g.EndDate,
				OldStatus:  string(g.Status),
				NewStatus:  string(GroupFinished),
				Reason:     "date range elapsed",
			})
		})
		if err != nil {
			logger.Error("Failed to finish group", "group_id", g.ID, "error", err)
			continue
		}
		finished++
	}

	if finished > 0 {
		metrics.RecordSweepTransition("recurrence_group", finished)
	}
	return finished
}

package outbox

import (
	"context"
	"time"

	"fitclass/internal/db"
	"fitclass/internal/logger"
	"fitclass/internal/metrics"

	"github.com/jmoiron/sqlx"
)

const batchSize = 50

// Emailer sends the member-facing messages derived from booking events.
type Emailer interface {
	SendBookingConfirmed(ctx context.Context, to, name string, start time.Time) error
	SendBookingCancelled(ctx context.Context, to, name string, reason string) error
}

// Dispatcher drains the outbox on a fixed interval. Each pass claims a
// locked batch, publishes every record, and commits the processed marks
// together; a record that fails to publish keeps its attempts counter and
// is retried on the next pass.
type Dispatcher struct {
	db        *sqlx.DB
	repo      *Repository
	publisher Publisher
	emailer   Emailer
	interval  time.Duration
	stopChan  chan struct{}
}

func NewDispatcher(database *sqlx.DB, repo *Repository, publisher Publisher, emailer Emailer, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		db:        database,
		repo:      repo,
		publisher: publisher,
		emailer:   emailer,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	logger.Info("Outbox dispatcher started", "interval", d.interval.String())

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := d.RunOnce(ctx); err != nil {
				logger.Error("Outbox pass failed", "error", err)
			}
		case <-d.stopChan:
			logger.Info("Outbox dispatcher stopped")
			return
		case <-ctx.Done():
			logger.Info("Outbox dispatcher cancelled")
			return
		}
	}
}

func (d *Dispatcher) Stop() {
	close(d.stopChan)
}

// RunOnce drains at most one batch. Exported so tests and the sweep CLI can
// drive passes without the ticker.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	err := db.WithTx(ctx, d.db, func(tx *sqlx.Tx) error {
		recs, err := d.repo.LockUnprocessed(ctx, tx, batchSize)
		if err != nil {
			return err
		}

		for i := range recs {
			rec := &recs[i]
			if err := d.dispatch(ctx, rec); err != nil {
				logger.Error("Failed to dispatch outbox record",
					"outbox_id", rec.ID,
					"entity_type", rec.EntityType,
					"entity_id", rec.EntityID,
					"attempts", rec.Attempts+1,
					"error", err,
				)
				metrics.OutboxDispatchedTotal.WithLabelValues("error").Inc()
				if err := d.repo.MarkFailed(ctx, tx, rec.ID); err != nil {
					return err
				}
				continue
			}

			metrics.OutboxDispatchedTotal.WithLabelValues("ok").Inc()
			if err := d.repo.MarkProcessed(ctx, tx, rec.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if pending, err := d.repo.CountPending(ctx); err == nil {
		metrics.OutboxPendingGauge.Set(float64(pending))
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, rec *Record) error {
	evt := Event{
		EventID:    rec.EventID,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		OwnerID:    rec.OwnerID,
		StartTime:  rec.StartTime,
		EndTime:    rec.EndTime,
		OldStatus:  rec.OldStatus,
		NewStatus:  rec.NewStatus,
		Reason:     rec.Reason,
		OccurredAt: rec.CreatedAt,
	}

	if err := d.publisher.Publish(ctx, evt); err != nil {
		return err
	}

	d.sendEmail(ctx, rec)
	return nil
}

// sendEmail queues the member-facing message for booking transitions that
// carry a recipient. Email delivery is best effort; it never fails the
// dispatch, the queue has its own retries.
func (d *Dispatcher) sendEmail(ctx context.Context, rec *Record) {
	if d.emailer == nil || rec.EntityType != EntityBooking || rec.RecipientEmail == nil {
		return
	}

	to := *rec.RecipientEmail
	name := ""
	if rec.RecipientName != nil {
		name = *rec.RecipientName
	}

	var err error
	switch rec.NewStatus {
	case "confirmed":
		start := time.Time{}
		if rec.StartTime != nil {
			start = *rec.StartTime
		}
		err = d.emailer.SendBookingConfirmed(ctx, to, name, start)
	case "cancelled", "rejected":
		err = d.emailer.SendBookingCancelled(ctx, to, name, rec.Reason)
	default:
		return
	}

	if err != nil {
		logger.Error("Failed to queue notification email",
			"outbox_id", rec.ID,
			"recipient", to,
			"error", err,
		)
	}
}

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mkorobov/notibox/internal/domain/directory"
	"github.com/mkorobov/notibox/internal/domain/notification"
	"github.com/mkorobov/notibox/internal/domain/outbox"
	"github.com/mkorobov/notibox/internal/domain/schedule"
	"github.com/mkorobov/notibox/internal/obs"
)

// Transactor runs fn inside one database transaction; repositories called
// within fn join it through the context.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ScheduleFailure struct {
	ScheduleID int64
	Err        error
}

type CycleReport struct {
	Processed int
	Succeeded int
	Failed    []ScheduleFailure
}

type Usecase struct {
	Log           *zap.Logger
	Tx            Transactor
	Schedules     schedule.Repo
	Notifications notification.Repo
	Directory     directory.Reader
	Outbox        outbox.Repository

	BatchLimit int
	TxTimeout  time.Duration
}

func NewUC(
	log *zap.Logger,
	tx Transactor,
	schedules schedule.Repo,
	notifications notification.Repo,
	dir directory.Reader,
	ob outbox.Repository,
) *Usecase {
	return &Usecase{
		Log:           log,
		Tx:            tx,
		Schedules:     schedules,
		Notifications: notifications,
		Directory:     dir,
		Outbox:        ob,
	}
}

// RunCycle dispatches every schedule due at now. Each schedule is one
// independent transaction: claim, resolve audience, fan out, enqueue the
// dispatched event, advance the schedule — committed together or not at
// all. A schedule claimed by a concurrent cycle is skipped silently; any
// other failure lands in the report and leaves the schedule due for the
// next cycle.
//
// Re-running immediately after a fully successful cycle is a no-op:
// nothing remains due.
func (u *Usecase) RunCycle(ctx context.Context, now time.Time) (CycleReport, error) {
	limit := u.BatchLimit
	if limit <= 0 {
		limit = 100
	}

	tr := otel.Tracer("dispatch.uc")
	ctxCycle, span := tr.Start(ctx, "dispatch.cycle",
		trace.WithAttributes(attribute.Int("batch.limit", limit)),
	)
	defer span.End()

	var rep CycleReport

	ids, err := u.Schedules.SelectDueIDs(ctxCycle, now, limit)
	if err != nil {
		span.RecordError(err)
		return rep, fmt.Errorf("select due: %w", err)
	}
	span.SetAttributes(attribute.Int("batch.due", len(ids)))
	if len(ids) == 0 {
		return rep, nil
	}

	for _, id := range ids {
		ctxOne, spanOne := tr.Start(ctxCycle, "dispatch.schedule",
			trace.WithAttributes(attribute.Int64("schedule.id", id)),
		)
		err := u.dispatchOne(ctxOne, id, now)
		switch {
		case errors.Is(err, schedule.ErrNotDue), errors.Is(err, schedule.ErrClaimLost):
			// Another cycle got there first.
			obs.WithTrace(ctxOne, u.Log).Debug("schedule already claimed", zap.Int64("schedule_id", id))
		case err != nil:
			rep.Processed++
			rep.Failed = append(rep.Failed, ScheduleFailure{ScheduleID: id, Err: err})
			spanOne.RecordError(err)
			obs.WithTrace(ctxOne, u.Log).Error("dispatch failed",
				zap.Int64("schedule_id", id), zap.Error(err))
		default:
			rep.Processed++
			rep.Succeeded++
		}
		spanOne.End()
	}

	span.SetAttributes(
		attribute.Int("batch.processed", rep.Processed),
		attribute.Int("batch.succeeded", rep.Succeeded),
		attribute.Int("batch.failed", len(rep.Failed)),
	)
	return rep, nil
}

func (u *Usecase) dispatchOne(ctx context.Context, id int64, now time.Time) error {
	if u.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.TxTimeout)
		defer cancel()
	}

	return u.Tx.WithTx(ctx, func(ctx context.Context) error {
		s, err := u.Schedules.LockDue(ctx, id, now)
		if err != nil {
			return err
		}

		scope, err := u.creatorScope(ctx, s)
		if err != nil {
			return err
		}

		recipients, err := ResolveAudience(ctx, u.Directory, s, scope)
		if err != nil {
			return err
		}

		if len(recipients) > 0 {
			n := notification.FromSchedule(s, now)
			if err := u.Notifications.CreateWithDeliveries(ctx, n, recipients); err != nil {
				return fmt.Errorf("fan out: %w", err)
			}
			if err := u.enqueueDispatched(ctx, s, n, len(recipients), now); err != nil {
				return fmt.Errorf("enqueue event: %w", err)
			}
		} else {
			// A legitimately empty audience is a no-op occurrence:
			// no notification, but the schedule still advances.
			obs.WithTrace(ctx, u.Log).Info("empty audience, skipping fan-out",
				zap.Int64("schedule_id", s.ID), zap.Int64("tenant_id", s.TenantID))
		}

		next, active := NextOccurrence(s.ScheduledFor, s.Recurrence)
		if err := u.Schedules.Advance(ctx, s.ID, s.ScheduledFor, next, active, now); err != nil {
			return err
		}
		return nil
	})
}

// creatorScope maps the schedule creator to the audience scoping rule:
// admin-issued sends only reach users that admin created, owner-issued
// sends resolve tenant-wide.
func (u *Usecase) creatorScope(ctx context.Context, s *schedule.Schedule) (int64, error) {
	role, err := u.Directory.Role(ctx, s.TenantID, s.CreatedBy)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return 0, fmt.Errorf("%w: creator %d is not an active member", ErrInvalidTarget, s.CreatedBy)
		}
		return 0, fmt.Errorf("creator role: %w", err)
	}
	if role == directory.RoleAdmin {
		return s.CreatedBy, nil
	}
	return 0, nil
}

func (u *Usecase) enqueueDispatched(ctx context.Context, s *schedule.Schedule, n *notification.Notification, recipients int, now time.Time) error {
	data, err := json.Marshal(outbox.NotificationDispatchedPayload{
		NotificationID: n.ID,
		ScheduleID:     s.ID,
		TenantID:       s.TenantID,
		Recipients:     recipients,
		At:             now,
	})
	if err != nil {
		return err
	}
	return u.Outbox.Enqueue(ctx, uuid.NewString(), outbox.KindNotificationDispatched, data)
}

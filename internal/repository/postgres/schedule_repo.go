package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mkorobov/notibox/internal/domain/schedule"
)

var _ schedule.Repo = (*ScheduleRepoImpl)(nil)

type ScheduleRepoImpl struct {
	db *DB
}

func NewScheduleRepo(db *DB) *ScheduleRepoImpl { return &ScheduleRepoImpl{db: db} }

const scheduleColumns = `id, tenant_id, title, body, priority, created_by, target_type, target_ids,
media_ref, scheduled_for, recurrence, active, last_run_at, created_at, updated_at`

const (
	qScheduleInsert = `
INSERT INTO schedules (tenant_id, title, body, priority, created_by, target_type, target_ids, media_ref, scheduled_for, recurrence, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
RETURNING ` + scheduleColumns + `;`

	qScheduleByID = `
SELECT ` + scheduleColumns + `
FROM schedules
WHERE id = $1;`

	qScheduleByTenant = `
SELECT ` + scheduleColumns + `
FROM schedules
WHERE tenant_id = $1
ORDER BY id DESC;`

	qScheduleDueIDs = `
SELECT id
FROM schedules
WHERE active = TRUE AND scheduled_for <= $1
ORDER BY scheduled_for
LIMIT $2;`

	// Row-locked re-check of the due predicate. SKIP LOCKED keeps a
	// sibling cycle from blocking on a schedule already being dispatched;
	// once that cycle commits, the predicate no longer matches here.
	qScheduleLockDue = `
SELECT ` + scheduleColumns + `
FROM schedules
WHERE id = $1 AND active = TRUE AND scheduled_for <= $2
FOR UPDATE SKIP LOCKED;`

	// Compare-and-swap on the trigger timestamp: the advance only lands
	// if nobody moved the schedule since it was claimed.
	qScheduleAdvance = `
UPDATE schedules
SET scheduled_for = $3,
    active        = $4,
    last_run_at   = $5,
    updated_at    = NOW()
WHERE id = $1 AND scheduled_for = $2;`
)

func scanSchedule(row pgx.Row, s *schedule.Schedule) error {
	if err := row.Scan(
		&s.ID,
		&s.TenantID,
		&s.Title,
		&s.Body,
		&s.Priority,
		&s.CreatedBy,
		&s.TargetType,
		&s.TargetIDs,
		&s.MediaRef,
		&s.ScheduledFor,
		&s.Recurrence,
		&s.Active,
		&s.LastRunAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepoImpl) Create(ctx context.Context, s *schedule.Schedule) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.Pool.QueryRow(ctx, qScheduleInsert,
		s.TenantID, s.Title, s.Body, s.Priority, s.CreatedBy,
		s.TargetType, s.TargetIDs, s.MediaRef, s.ScheduledFor, s.Recurrence,
	)
	if err := scanSchedule(row, s); err != nil {
		return mapPgError("insert schedule", err)
	}
	return nil
}

func (r *ScheduleRepoImpl) GetByID(ctx context.Context, id int64) (*schedule.Schedule, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var s schedule.Schedule
	if err := scanSchedule(r.db.Pool.QueryRow(ctx, qScheduleByID, id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ScheduleRepoImpl) ListByTenant(ctx context.Context, tenantID int64) ([]*schedule.Schedule, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qScheduleByTenant, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var out []*schedule.Schedule
	for rows.Next() {
		var s schedule.Schedule
		if err := scanSchedule(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *ScheduleRepoImpl) SelectDueIDs(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qScheduleDueIDs, now, limit)
	if err != nil {
		return nil, fmt.Errorf("select due: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return ids, nil
}

func (r *ScheduleRepoImpl) LockDue(ctx context.Context, id int64, now time.Time) (*schedule.Schedule, error) {
	eq := r.db.execQueryer(ctx)

	var s schedule.Schedule
	if err := scanSchedule(eq.QueryRow(ctx, qScheduleLockDue, id, now), &s); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, schedule.ErrNotDue
		}
		return nil, err
	}
	return &s, nil
}

func (r *ScheduleRepoImpl) Advance(ctx context.Context, id int64, prev, next time.Time, active bool, ranAt time.Time) error {
	eq := r.db.execQueryer(ctx)

	cmd, err := eq.Exec(ctx, qScheduleAdvance, id, prev, next, active, ranAt)
	if err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return schedule.ErrClaimLost
	}
	return nil
}

package schedule

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotDue means the schedule no longer matches the due predicate at
	// claim time: another cycle already advanced it, an admin deactivated
	// it, or it was deleted.
	ErrNotDue = errors.New("schedule not due")

	// ErrClaimLost means the trigger timestamp changed between claim and
	// advance, so the compare-and-swap update matched no row.
	ErrClaimLost = errors.New("schedule claim lost")
)

type Repo interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id int64) (*Schedule, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]*Schedule, error)

	// SelectDueIDs returns ids of schedules with active = TRUE and
	// scheduled_for <= now. It takes no locks; each id is re-validated
	// and claimed inside its own dispatch transaction.
	SelectDueIDs(ctx context.Context, now time.Time, limit int) ([]int64, error)

	// LockDue re-checks the due predicate and row-locks the schedule
	// inside the current transaction. Returns ErrNotDue when the
	// predicate no longer holds or the row is locked by a sibling cycle.
	LockDue(ctx context.Context, id int64, now time.Time) (*Schedule, error)

	// Advance moves the trigger forward (or deactivates) and stamps
	// last_run_at, conditioned on scheduled_for still equalling prev.
	// Returns ErrClaimLost when the condition fails.
	Advance(ctx context.Context, id int64, prev, next time.Time, active bool, ranAt time.Time) error
}

package notification

import (
	"context"
	"errors"
)

// ErrNoRecipients is returned when fan-out is asked to persist a
// notification with an empty recipient list. A notification with zero
// deliveries is never a valid persisted state.
var ErrNoRecipients = errors.New("notification has no recipients")

type Repo interface {
	// CreateWithDeliveries inserts n and one sent/unread delivery per
	// recipient. Both inserts run against the caller's transaction when
	// one is in flight; either everything lands or nothing does.
	CreateWithDeliveries(ctx context.Context, n *Notification, recipients []int64) error

	ListByUser(ctx context.Context, tenantID, userID int64, limit int) ([]*Delivery, error)
}

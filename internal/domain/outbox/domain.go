package outbox

import (
	"context"
	"time"
)

type Status string

type Kind int

const (
	KindNotificationDispatched Kind = 1
)

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Repository interface {
	// Enqueue records a message; runs against the caller's transaction
	// when one is in flight, so the event commits with the dispatch.
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error

	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)

// NotificationDispatchedPayload is the data of KindNotificationDispatched
// messages: one committed fan-out, announced to downstream transports.
type NotificationDispatchedPayload struct {
	NotificationID int64     `json:"notification_id"`
	ScheduleID     int64     `json:"schedule_id"`
	TenantID       int64     `json:"tenant_id"`
	Recipients     int       `json:"recipients"`
	At             time.Time `json:"at"`
}

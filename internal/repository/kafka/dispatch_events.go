package kafka

import (
	"context"

	"github.com/mkorobov/notibox/internal/domain/outbox"
)

// DispatchEventsKafka announces committed fan-outs. Downstream transports
// (push, email) consume the topic; the engine itself never talks to them
// directly.
type DispatchEventsKafka struct {
	p *Producer
}

func NewDispatchEventsKafka(p *Producer) *DispatchEventsKafka { return &DispatchEventsKafka{p: p} }

func (e *DispatchEventsKafka) PublishNotificationDispatched(ctx context.Context, ev outbox.NotificationDispatchedPayload) error {
	return e.p.PublishJSON(ctx, KeyFromInt64(ev.NotificationID), ev)
}

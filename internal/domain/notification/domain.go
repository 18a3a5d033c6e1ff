package notification

import (
	"time"

	"github.com/mkorobov/notibox/internal/domain/schedule"
)

type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

type Feedback string

const (
	FeedbackLiked    Feedback = "liked"
	FeedbackRenew    Feedback = "renew"
	FeedbackDisliked Feedback = "disliked"
)

// Notification is one dispatched message instance. Content fields are
// immutable once written; target fields are a denormalized audit copy of
// the schedule that produced it.
type Notification struct {
	ID         int64               `json:"id"`
	TenantID   int64               `json:"tenant_id"`
	Title      string              `json:"title"`
	Body       string              `json:"body"`
	Priority   schedule.Priority   `json:"priority"`
	CreatedBy  int64               `json:"created_by"`
	TargetType schedule.TargetType `json:"target_type"`
	TargetIDs  []int64             `json:"target_ids"`
	MediaRef   *string             `json:"media_ref"`
	Scheduled  bool                `json:"scheduled"`
	Active     bool                `json:"active"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Delivery is one recipient's copy of a notification. (NotificationID,
// UserID) is unique; read/feedback fields are mutated later by inbox
// interactions outside the dispatch engine.
type Delivery struct {
	ID             int64          `json:"id"`
	TenantID       int64          `json:"tenant_id"`
	NotificationID int64          `json:"notification_id"`
	UserID         int64          `json:"user_id"`
	Status         DeliveryStatus `json:"status"`
	DeliveredAt    *time.Time     `json:"delivered_at"`
	ReadAt         *time.Time     `json:"read_at"`
	IsRead         bool           `json:"is_read"`
	Error          *string        `json:"error"`
	Feedback       *Feedback      `json:"feedback"`
	FeedbackAt     *time.Time     `json:"feedback_at"`
}

// FromSchedule builds the notification payload for one occurrence of s.
func FromSchedule(s *schedule.Schedule, at time.Time) *Notification {
	return &Notification{
		TenantID:   s.TenantID,
		Title:      s.Title,
		Body:       s.Body,
		Priority:   s.Priority,
		CreatedBy:  s.CreatedBy,
		TargetType: s.TargetType,
		TargetIDs:  s.TargetIDs,
		MediaRef:   s.MediaRef,
		Scheduled:  true,
		Active:     true,
		CreatedAt:  at,
	}
}

package schedule

import "time"

type TargetType string

const (
	TargetAll    TargetType = "all"
	TargetUsers  TargetType = "users"
	TargetGroups TargetType = "groups"
)

type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityImportant Priority = "important"
	PriorityUrgent    Priority = "urgent"
)

// Schedule is the template for a future or recurring notification send.
// CreatedBy is the issuing admin or owner; admin-issued sends are scoped to
// users that admin created, owner-issued sends resolve tenant-wide.
type Schedule struct {
	ID           int64      `json:"id"`
	TenantID     int64      `json:"tenant_id"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	Priority     Priority   `json:"priority"`
	CreatedBy    int64      `json:"created_by"`
	TargetType   TargetType `json:"target_type"`
	TargetIDs    []int64    `json:"target_ids"`
	MediaRef     *string    `json:"media_ref"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	Recurrence   Recurrence `json:"recurrence"`
	Active       bool       `json:"active"`
	LastRunAt    *time.Time `json:"last_run_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

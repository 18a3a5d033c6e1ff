package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/mkorobov/notibox/internal/domain/notification"
)

var _ notification.Repo = (*NotificationRepoImpl)(nil)

type NotificationRepoImpl struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepoImpl { return &NotificationRepoImpl{db: db} }

const (
	qNotifInsert = `
INSERT INTO notifications (tenant_id, title, body, priority, created_by, target_type, target_ids, media_ref, scheduled, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, COALESCE($10, now()))
RETURNING id, created_at;`

	// One statement fans the whole recipient set out. The delivery rows
	// inherit the notification's tenant, which keeps the tenant chain
	// consistent by construction.
	qDeliveryFanOut = `
INSERT INTO deliveries (tenant_id, notification_id, user_id, status, is_read)
SELECT $1, $2, uid, 'sent', FALSE
FROM unnest($3::bigint[]) AS uid;`

	qDeliveriesByUser = `
SELECT id, tenant_id, notification_id, user_id, status, delivered_at, read_at, is_read, error, feedback, feedback_at
FROM deliveries
WHERE tenant_id = $1 AND user_id = $2
ORDER BY id DESC
LIMIT $3;`
)

func (r *NotificationRepoImpl) CreateWithDeliveries(ctx context.Context, n *notification.Notification, recipients []int64) error {
	if len(recipients) == 0 {
		return notification.ErrNoRecipients
	}

	eq := r.db.execQueryer(ctx)

	if err := eq.QueryRow(ctx, qNotifInsert,
		n.TenantID,
		n.Title,
		n.Body,
		n.Priority,
		n.CreatedBy,
		n.TargetType,
		n.TargetIDs,
		n.MediaRef,
		n.Scheduled,
		nullTime(n.CreatedAt),
	).Scan(&n.ID, &n.CreatedAt); err != nil {
		return mapPgError("insert notification", err)
	}

	cmd, err := eq.Exec(ctx, qDeliveryFanOut, n.TenantID, n.ID, recipients)
	if err != nil {
		return mapPgError("fan out deliveries", err)
	}
	if got := cmd.RowsAffected(); got != int64(len(recipients)) {
		return fmt.Errorf("fan out deliveries: inserted %d of %d", got, len(recipients))
	}
	return nil
}

func (r *NotificationRepoImpl) ListByUser(ctx context.Context, tenantID, userID int64, limit int) ([]*notification.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qDeliveriesByUser, tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	out := make([]*notification.Delivery, 0, limit)
	for rows.Next() {
		var d notification.Delivery
		if err := rows.Scan(
			&d.ID, &d.TenantID, &d.NotificationID, &d.UserID, &d.Status,
			&d.DeliveredAt, &d.ReadAt, &d.IsRead, &d.Error, &d.Feedback, &d.FeedbackAt,
		); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		dc := d
		out = append(out, &dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

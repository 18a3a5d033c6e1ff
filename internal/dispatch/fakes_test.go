package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkorobov/notibox/internal/domain/directory"
	"github.com/mkorobov/notibox/internal/domain/notification"
	"github.com/mkorobov/notibox/internal/domain/outbox"
	"github.com/mkorobov/notibox/internal/domain/schedule"
)

// memStore backs the dispatch fakes with transactional semantics close
// enough to the real store: one transaction at a time (row-lock stand-in),
// snapshot on begin, restore on rollback.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	schedules  map[int64]*schedule.Schedule
	notifs     []*notification.Notification
	deliveries []*notification.Delivery
	events     []outbox.Message

	users  []memUser
	groups []memGroup

	nextNotifID int64

	failFanOut bool
}

type memUser struct {
	ID        int64
	TenantID  int64
	Role      directory.Role
	Active    bool
	CreatedBy int64
}

type memGroup struct {
	ID        int64
	TenantID  int64
	CreatedBy int64
	Members   []int64
}

func newMemStore() *memStore {
	return &memStore{
		schedules:   make(map[int64]*schedule.Schedule),
		nextNotifID: 1,
	}
}

func (st *memStore) addSchedule(s schedule.Schedule) {
	st.mu.Lock()
	defer st.mu.Unlock()
	cp := s
	st.schedules[s.ID] = &cp
}

func (st *memStore) getSchedule(id int64) schedule.Schedule {
	st.mu.Lock()
	defer st.mu.Unlock()
	return *st.schedules[id]
}

type memSnapshot struct {
	schedules  map[int64]*schedule.Schedule
	notifs     []*notification.Notification
	deliveries []*notification.Delivery
	events     []outbox.Message
	nextID     int64
}

func (st *memStore) snapshot() memSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	schedules := make(map[int64]*schedule.Schedule, len(st.schedules))
	for id, s := range st.schedules {
		cp := *s
		schedules[id] = &cp
	}
	return memSnapshot{
		schedules:  schedules,
		notifs:     append([]*notification.Notification(nil), st.notifs...),
		deliveries: append([]*notification.Delivery(nil), st.deliveries...),
		events:     append([]outbox.Message(nil), st.events...),
		nextID:     st.nextNotifID,
	}
}

func (st *memStore) restore(snap memSnapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.schedules = snap.schedules
	st.notifs = snap.notifs
	st.deliveries = snap.deliveries
	st.events = snap.events
	st.nextNotifID = snap.nextID
}

// memTx serializes transactions and rolls the store back on error.
type memTx struct{ st *memStore }

func (t memTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.st.txMu.Lock()
	defer t.st.txMu.Unlock()
	snap := t.st.snapshot()
	if err := fn(ctx); err != nil {
		t.st.restore(snap)
		return err
	}
	return nil
}

// memScheduleRepo implements schedule.Repo over the store.
type memScheduleRepo struct{ st *memStore }

func (r memScheduleRepo) Create(ctx context.Context, s *schedule.Schedule) error {
	r.st.addSchedule(*s)
	return nil
}

func (r memScheduleRepo) GetByID(ctx context.Context, id int64) (*schedule.Schedule, error) {
	s := r.st.getSchedule(id)
	return &s, nil
}

func (r memScheduleRepo) ListByTenant(ctx context.Context, tenantID int64) ([]*schedule.Schedule, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*schedule.Schedule
	for _, s := range r.st.schedules {
		if s.TenantID == tenantID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memScheduleRepo) SelectDueIDs(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var ids []int64
	for id, s := range r.st.schedules {
		if s.Active && !s.ScheduledFor.After(now) {
			ids = append(ids, id)
			if limit > 0 && len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

func (r memScheduleRepo) LockDue(ctx context.Context, id int64, now time.Time) (*schedule.Schedule, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s, ok := r.st.schedules[id]
	if !ok || !s.Active || s.ScheduledFor.After(now) {
		return nil, schedule.ErrNotDue
	}
	cp := *s
	return &cp, nil
}

func (r memScheduleRepo) Advance(ctx context.Context, id int64, prev, next time.Time, active bool, ranAt time.Time) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s, ok := r.st.schedules[id]
	if !ok || !s.ScheduledFor.Equal(prev) {
		return schedule.ErrClaimLost
	}
	s.ScheduledFor = next
	s.Active = active
	ra := ranAt
	s.LastRunAt = &ra
	return nil
}

// memNotificationRepo implements notification.Repo and enforces the
// (notification_id, user_id) uniqueness the real table carries.
type memNotificationRepo struct{ st *memStore }

func (r memNotificationRepo) CreateWithDeliveries(ctx context.Context, n *notification.Notification, recipients []int64) error {
	if len(recipients) == 0 {
		return notification.ErrNoRecipients
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if r.st.failFanOut {
		return fmt.Errorf("fan out deliveries: connection reset")
	}
	n.ID = r.st.nextNotifID
	r.st.nextNotifID++
	cp := *n
	r.st.notifs = append(r.st.notifs, &cp)

	seen := make(map[int64]struct{}, len(recipients))
	for _, uid := range recipients {
		if _, dup := seen[uid]; dup {
			return fmt.Errorf("duplicate delivery for user %d", uid)
		}
		seen[uid] = struct{}{}
		r.st.deliveries = append(r.st.deliveries, &notification.Delivery{
			TenantID:       n.TenantID,
			NotificationID: n.ID,
			UserID:         uid,
			Status:         notification.StatusSent,
		})
	}
	return nil
}

func (r memNotificationRepo) ListByUser(ctx context.Context, tenantID, userID int64, limit int) ([]*notification.Delivery, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*notification.Delivery
	for _, d := range r.st.deliveries {
		if d.TenantID == tenantID && d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memDirectory implements directory.Reader over the static fixtures.
type memDirectory struct{ st *memStore }

func (r memDirectory) Role(ctx context.Context, tenantID, userID int64) (directory.Role, error) {
	for _, u := range r.st.users {
		if u.ID == userID && u.TenantID == tenantID && u.Active {
			return u.Role, nil
		}
	}
	return "", directory.ErrNotFound
}

func (r memDirectory) matches(u memUser, tenantID, createdBy int64) bool {
	return u.TenantID == tenantID && u.Role == directory.RoleUser && u.Active &&
		(createdBy == 0 || u.CreatedBy == createdBy)
}

func (r memDirectory) UserIDs(ctx context.Context, tenantID, createdBy int64) ([]int64, error) {
	var out []int64
	for _, u := range r.st.users {
		if r.matches(u, tenantID, createdBy) {
			out = append(out, u.ID)
		}
	}
	return out, nil
}

func (r memDirectory) FilterUserIDs(ctx context.Context, tenantID, createdBy int64, ids []int64) ([]int64, error) {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []int64
	for _, u := range r.st.users {
		if _, ok := want[u.ID]; ok && r.matches(u, tenantID, createdBy) {
			out = append(out, u.ID)
		}
	}
	return out, nil
}

func (r memDirectory) FilterGroupIDs(ctx context.Context, tenantID, createdBy int64, ids []int64) ([]int64, error) {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []int64
	for _, g := range r.st.groups {
		if _, ok := want[g.ID]; ok && g.TenantID == tenantID &&
			(createdBy == 0 || g.CreatedBy == createdBy) {
			out = append(out, g.ID)
		}
	}
	return out, nil
}

func (r memDirectory) GroupMemberIDs(ctx context.Context, groupIDs []int64) ([]int64, error) {
	want := make(map[int64]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		want[id] = struct{}{}
	}
	seen := make(map[int64]struct{})
	var out []int64
	for _, g := range r.st.groups {
		if _, ok := want[g.ID]; !ok {
			continue
		}
		for _, uid := range g.Members {
			if _, dup := seen[uid]; dup {
				continue
			}
			seen[uid] = struct{}{}
			out = append(out, uid)
		}
	}
	return out, nil
}

// memOutbox implements outbox.Repository; relay-side methods are not
// exercised by the dispatch tests.
type memOutbox struct{ st *memStore }

func (r memOutbox) Enqueue(ctx context.Context, key string, kind outbox.Kind, data []byte) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, m := range r.st.events {
		if m.IdempotencyKey == key {
			return nil
		}
	}
	r.st.events = append(r.st.events, outbox.Message{
		IdempotencyKey: key,
		Kind:           kind,
		Data:           data,
		Status:         "CREATED",
	})
	return nil
}

func (r memOutbox) PickBatch(ctx context.Context, batch int, ttl time.Duration) ([]outbox.Message, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return append([]outbox.Message(nil), r.st.events...), nil
}

func (r memOutbox) MarkSuccess(ctx context.Context, keys []string) error { return nil }

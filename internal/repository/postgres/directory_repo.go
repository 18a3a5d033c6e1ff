package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mkorobov/notibox/internal/domain/directory"
)

var _ directory.Reader = (*DirectoryRepoImpl)(nil)

// DirectoryRepoImpl is the read side of the tenant/user/group tables owned
// by the surrounding platform. All queries run against the dispatch
// transaction when one is in flight, so audience resolution sees the same
// snapshot the fan-out writes against.
type DirectoryRepoImpl struct{ db *DB }

func NewDirectoryRepo(db *DB) *DirectoryRepoImpl { return &DirectoryRepoImpl{db: db} }

const (
	qMemberRole = `
SELECT role
FROM users
WHERE tenant_id = $1 AND id = $2 AND active = TRUE;`

	qTenantUserIDs = `
SELECT id
FROM users
WHERE tenant_id = $1 AND role = 'user' AND active = TRUE
  AND ($2::bigint = 0 OR created_by = $2)
ORDER BY id;`

	qFilterUserIDs = `
SELECT id
FROM users
WHERE tenant_id = $1 AND role = 'user' AND active = TRUE
  AND ($2::bigint = 0 OR created_by = $2)
  AND id = ANY($3)
ORDER BY id;`

	qFilterGroupIDs = `
SELECT id
FROM groups
WHERE tenant_id = $1
  AND ($2::bigint = 0 OR created_by = $2)
  AND id = ANY($3)
ORDER BY id;`

	qGroupMemberIDs = `
SELECT DISTINCT user_id
FROM group_members
WHERE group_id = ANY($1)
ORDER BY user_id;`
)

func (r *DirectoryRepoImpl) Role(ctx context.Context, tenantID, userID int64) (directory.Role, error) {
	eq := r.db.execQueryer(ctx)

	var role directory.Role
	if err := eq.QueryRow(ctx, qMemberRole, tenantID, userID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", directory.ErrNotFound
		}
		return "", fmt.Errorf("member role: %w", err)
	}
	return role, nil
}

func (r *DirectoryRepoImpl) UserIDs(ctx context.Context, tenantID, createdBy int64) ([]int64, error) {
	return r.queryIDs(ctx, qTenantUserIDs, tenantID, createdBy)
}

func (r *DirectoryRepoImpl) FilterUserIDs(ctx context.Context, tenantID, createdBy int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryIDs(ctx, qFilterUserIDs, tenantID, createdBy, ids)
}

func (r *DirectoryRepoImpl) FilterGroupIDs(ctx context.Context, tenantID, createdBy int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryIDs(ctx, qFilterGroupIDs, tenantID, createdBy, ids)
}

func (r *DirectoryRepoImpl) GroupMemberIDs(ctx context.Context, groupIDs []int64) ([]int64, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	return r.queryIDs(ctx, qGroupMemberIDs, groupIDs)
}

func (r *DirectoryRepoImpl) queryIDs(ctx context.Context, q string, args ...any) ([]int64, error) {
	eq := r.db.execQueryer(ctx)

	rows, err := eq.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Package directory is the read-only view of tenants, users and groups
// that audience resolution consumes. The surrounding platform owns the
// write side.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound means the user is not an active member of the tenant.
var ErrNotFound = errors.New("directory: not found")

type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type Reader interface {
	// Role reports the role of an active member of the tenant.
	Role(ctx context.Context, tenantID, userID int64) (Role, error)

	// UserIDs lists active role=user members of the tenant. createdBy=0
	// means no creator scoping (owner-issued sends).
	UserIDs(ctx context.Context, tenantID, createdBy int64) ([]int64, error)

	// FilterUserIDs narrows ids down to those that are active role=user
	// members of the tenant (and created by createdBy when non-zero).
	FilterUserIDs(ctx context.Context, tenantID, createdBy int64, ids []int64) ([]int64, error)

	// FilterGroupIDs narrows ids down to groups that belong to the tenant
	// (and were created by createdBy when non-zero).
	FilterGroupIDs(ctx context.Context, tenantID, createdBy int64, ids []int64) ([]int64, error)

	// GroupMemberIDs returns the distinct union of member user ids.
	GroupMemberIDs(ctx context.Context, groupIDs []int64) ([]int64, error)
}

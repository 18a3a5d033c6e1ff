package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkorobov/notibox/internal/domain/directory"
	"github.com/mkorobov/notibox/internal/domain/schedule"
)

// ErrInvalidTarget means an explicit users/groups selection failed to
// resolve: at least one named id is foreign, deleted or out of scope.
// The schedule is left due so the failure stays visible until an admin
// fixes the target list.
var ErrInvalidTarget = errors.New("target selection does not resolve")

// ResolveAudience computes the deduplicated recipient user ids for one
// schedule. createdBy scopes resolution to users created by that admin;
// zero means tenant-wide (owner-issued sends).
//
// An empty result is legitimate for "all" and for groups whose member
// union filters down to nothing; explicit selections that do not resolve
// return ErrInvalidTarget instead.
func ResolveAudience(ctx context.Context, dir directory.Reader, s *schedule.Schedule, createdBy int64) ([]int64, error) {
	switch s.TargetType {
	case schedule.TargetAll:
		ids, err := dir.UserIDs(ctx, s.TenantID, createdBy)
		if err != nil {
			return nil, fmt.Errorf("resolve all: %w", err)
		}
		return ids, nil

	case schedule.TargetUsers:
		want := dedup(s.TargetIDs)
		if len(want) == 0 {
			return nil, fmt.Errorf("%w: empty user selection", ErrInvalidTarget)
		}
		got, err := dir.FilterUserIDs(ctx, s.TenantID, createdBy, want)
		if err != nil {
			return nil, fmt.Errorf("resolve users: %w", err)
		}
		if len(got) != len(want) {
			return nil, fmt.Errorf("%w: %d of %d users resolve", ErrInvalidTarget, len(got), len(want))
		}
		return got, nil

	case schedule.TargetGroups:
		want := dedup(s.TargetIDs)
		if len(want) == 0 {
			return nil, fmt.Errorf("%w: empty group selection", ErrInvalidTarget)
		}
		groups, err := dir.FilterGroupIDs(ctx, s.TenantID, createdBy, want)
		if err != nil {
			return nil, fmt.Errorf("resolve groups: %w", err)
		}
		if len(groups) != len(want) {
			return nil, fmt.Errorf("%w: %d of %d groups resolve", ErrInvalidTarget, len(groups), len(want))
		}
		members, err := dir.GroupMemberIDs(ctx, groups)
		if err != nil {
			return nil, fmt.Errorf("expand groups: %w", err)
		}
		if len(members) == 0 {
			return nil, nil
		}
		// Members that left the tenant or the admin's scope are
		// excluded, not an error.
		ids, err := dir.FilterUserIDs(ctx, s.TenantID, createdBy, members)
		if err != nil {
			return nil, fmt.Errorf("filter group members: %w", err)
		}
		return ids, nil

	default:
		return nil, fmt.Errorf("%w: unknown target type %q", ErrInvalidTarget, s.TargetType)
	}
}

func dedup(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

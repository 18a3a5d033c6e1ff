package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkorobov/notibox/internal/domain/directory"
	"github.com/mkorobov/notibox/internal/domain/schedule"
)

// directoryFixture: tenant 1 has owner 10, admins 11 and 12; users 21..23
// were created by admin 11, user 24 by admin 12, user 25 is deactivated.
// Tenant 2 has its own user 31. Groups 100 (members 21, 22) and 101
// (members 22, 23, 25) belong to admin 11; group 200 belongs to tenant 2.
func directoryFixture() *memStore {
	st := newMemStore()
	st.users = []memUser{
		{ID: 10, TenantID: 1, Role: directory.RoleOwner, Active: true},
		{ID: 11, TenantID: 1, Role: directory.RoleAdmin, Active: true, CreatedBy: 10},
		{ID: 12, TenantID: 1, Role: directory.RoleAdmin, Active: true, CreatedBy: 10},
		{ID: 21, TenantID: 1, Role: directory.RoleUser, Active: true, CreatedBy: 11},
		{ID: 22, TenantID: 1, Role: directory.RoleUser, Active: true, CreatedBy: 11},
		{ID: 23, TenantID: 1, Role: directory.RoleUser, Active: true, CreatedBy: 11},
		{ID: 24, TenantID: 1, Role: directory.RoleUser, Active: true, CreatedBy: 12},
		{ID: 25, TenantID: 1, Role: directory.RoleUser, Active: false, CreatedBy: 11},
		{ID: 31, TenantID: 2, Role: directory.RoleUser, Active: true, CreatedBy: 30},
	}
	st.groups = []memGroup{
		{ID: 100, TenantID: 1, CreatedBy: 11, Members: []int64{21, 22}},
		{ID: 101, TenantID: 1, CreatedBy: 11, Members: []int64{22, 23, 25}},
		{ID: 200, TenantID: 2, CreatedBy: 30, Members: []int64{31}},
	}
	return st
}

func sched(target schedule.TargetType, ids ...int64) *schedule.Schedule {
	return &schedule.Schedule{ID: 1, TenantID: 1, TargetType: target, TargetIDs: ids}
}

func TestResolveAudience_AllTenantWide(t *testing.T) {
	dir := memDirectory{st: directoryFixture()}
	got, err := ResolveAudience(context.Background(), dir, sched(schedule.TargetAll), 0)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{21, 22, 23, 24}, got)
}

func TestResolveAudience_AllAdminScoped(t *testing.T) {
	dir := memDirectory{st: directoryFixture()}
	got, err := ResolveAudience(context.Background(), dir, sched(schedule.TargetAll), 11)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{21, 22, 23}, got)
}

func TestResolveAudience_AllEmptyIsLegitimate(t *testing.T) {
	st := newMemStore()
	st.users = []memUser{{ID: 10, TenantID: 1, Role: directory.RoleOwner, Active: true}}
	got, err := ResolveAudience(context.Background(), memDirectory{st: st}, sched(schedule.TargetAll), 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestResolveAudience_UsersExplicit(t *testing.T) {
	dir := memDirectory{st: directoryFixture()}
	got, err := ResolveAudience(context.Background(), dir, sched(schedule.TargetUsers, 21, 24), 0)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{21, 24}, got)
}

func TestResolveAudience_UsersDeduplicatesSelection(t *testing.T) {
	dir := memDirectory{st: directoryFixture()}
	got, err := ResolveAudience(context.Background(), dir, sched(schedule.TargetUsers, 21, 21, 22), 0)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{21, 22}, got)
}

func TestResolveAudience_UsersUnknownIDFails(t *testing.T) {
	dir := memDirectory{st: directoryFixture()}
	_, err := ResolveAudience(context.Background(), dir, sched(schedule.TargetUsers, 21, 999), 0)
	require.ErrorIs(t, err, ErrInvalidTarget)
}

func TestResolveAudience_UsersForeignTenantFails(t *testing.T) {
	dir := memDirectory{st: directoryFixture()}
	_, err := ResolveAudience(context.Background(), dir, sched(schedule.TargetUsers, 21, 31), 0)
	require.ErrorIs(t, err, ErrInvalidTarget)
}

func TestResolveAudience_UsersDeactivatedFails(t *testing.T) {
	dir := memDirectory{st: directoryFixture()}
	_, err := ResolveAudience(context.Background(), dir, sched(schedule.TargetUsers, 25), 0)
	require.ErrorIs(t, err, ErrInvalidTarget)
}

func TestResolveAudience_UsersOutOfAdminScopeFails(t *testing.T) {
	// 24 exists but was created by admin 12, so admin 11 cannot target it.
	dir := memDirectory{st: directoryFixture()}
	_, err := ResolveAudience(context.Background(), dir, sched(schedule.TargetUsers, 21, 24), 11)
	require.ErrorIs(t, err, ErrInvalidTarget)
}

func TestResolveAudience_UsersEmptySelectionFails(t *testing.T) {
	dir := memDirectory{st: directoryFixture()}
	_, err := ResolveAudience(context.Background(), dir, sched(schedule.TargetUsers), 0)
	require.ErrorIs(t, err, ErrInvalidTarget)
}

func TestResolveAudience_GroupsUnionDeduplicated(t *testing.T) {
	// 22 is a member of both groups; 25 is deactivated and drops out.
	dir := memDirectory{st: directoryFixture()}
	got, err := ResolveAudience(context.Background(), dir, sched(schedule.TargetGroups, 100, 101), 0)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{21, 22, 23}, got)
}

func TestResolveAudience_GroupsUnknownGroupFails(t *testing.T) {
	dir := memDirectory{st: directoryFixture()}
	_, err := ResolveAudience(context.Background(), dir, sched(schedule.TargetGroups, 100, 999), 0)
	require.ErrorIs(t, err, ErrInvalidTarget)
}

func TestResolveAudience_GroupsForeignTenantFails(t *testing.T) {
	dir := memDirectory{st: directoryFixture()}
	_, err := ResolveAudience(context.Background(), dir, sched(schedule.TargetGroups, 200), 0)
	require.ErrorIs(t, err, ErrInvalidTarget)
}

func TestResolveAudience_GroupsEmptyMemberUnionIsLegitimate(t *testing.T) {
	st := directoryFixture()
	st.groups = append(st.groups, memGroup{ID: 102, TenantID: 1, CreatedBy: 11})
	got, err := ResolveAudience(context.Background(), memDirectory{st: st}, sched(schedule.TargetGroups, 102), 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestResolveAudience_UnknownTargetType(t *testing.T) {
	dir := memDirectory{st: directoryFixture()}
	_, err := ResolveAudience(context.Background(), dir, sched(schedule.TargetType("broadcast")), 0)
	require.ErrorIs(t, err, ErrInvalidTarget)
}

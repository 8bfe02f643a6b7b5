package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-workorder-api/internal/models"
	"github.com/noah-isme/facility-workorder-api/internal/repository"
)

type permissionStoreStub struct {
	roles      []models.UserRoleAssignment
	base       []string
	byHospital map[string][]string
	overrides  []models.PermissionOverride
	baseErr    error
	roleErr    error
	baseCalls  int
}

func (s *permissionStoreStub) ListRoleAssignments(ctx context.Context, userID, hospitalID string) ([]models.UserRoleAssignment, error) {
	return s.roles, s.roleErr
}

func (s *permissionStoreStub) ListBasePermissions(ctx context.Context, userID, hospitalID string) ([]string, error) {
	s.baseCalls++
	if s.byHospital != nil {
		return s.byHospital[hospitalID], s.baseErr
	}
	return s.base, s.baseErr
}

func (s *permissionStoreStub) ListOverrides(ctx context.Context, userID, hospitalID string) ([]models.PermissionOverride, error) {
	return s.overrides, nil
}

func override(key string, effect models.OverrideEffect, hospitalID string) models.PermissionOverride {
	o := models.PermissionOverride{UserID: "user-1", PermissionKey: key, Effect: effect}
	if hospitalID != "" {
		o.HospitalID = &hospitalID
	}
	return o
}

func newTestCacheService(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheService(repository.NewCacheRepository(client, nil), nil, time.Minute, nil, true), mr
}

func TestPermissionSetHospitalDenyOnlyAffectsThatHospital(t *testing.T) {
	overrides := []models.PermissionOverride{
		override(models.PermissionWorkOrdersApprove, models.OverrideDeny, "H"),
	}
	base := []string{models.PermissionWorkOrdersApprove}

	assert.False(t, NewPermissionSet("user-1", "H", base, overrides).HasPermission(models.PermissionWorkOrdersApprove))
	assert.True(t, NewPermissionSet("user-1", "H2", base, overrides).HasPermission(models.PermissionWorkOrdersApprove))
}

func TestPermissionResolverScopesBaseToHospital(t *testing.T) {
	store := &permissionStoreStub{
		byHospital: map[string][]string{
			"H":  {models.PermissionWorkOrdersManage},
			"H2": {models.PermissionWorkOrdersView},
		},
	}
	r := NewPermissionResolver(store, nil)

	inH := r.Resolve(context.Background(), "user-1", "H")
	inH2 := r.Resolve(context.Background(), "user-1", "H2")
	assert.True(t, inH.HasPermission(models.PermissionWorkOrdersManage))
	assert.False(t, inH2.HasPermission(models.PermissionWorkOrdersManage))
	assert.Equal(t, []string{models.PermissionWorkOrdersView}, inH2.Keys())
}

func TestPermissionSetGlobalDenyBeatsHospitalGrant(t *testing.T) {
	set := NewPermissionSet("user-1", "H", []string{models.PermissionWorkOrdersManage}, []models.PermissionOverride{
		override(models.PermissionWorkOrdersManage, models.OverrideDeny, ""),
		override(models.PermissionWorkOrdersManage, models.OverrideGrant, "H"),
	})
	assert.False(t, set.HasPermission(models.PermissionWorkOrdersManage))
}

func TestPermissionSetGrantsWithoutBase(t *testing.T) {
	set := NewPermissionSet("user-1", "H", nil, []models.PermissionOverride{
		override(models.PermissionWorkOrdersFinalApprove, models.OverrideGrant, "H"),
		override(models.PermissionWorkOrdersCreate, models.OverrideGrant, ""),
		override(models.PermissionWorkOrdersView, models.OverrideGrant, "OTHER"),
	})

	assert.True(t, set.HasPermission(models.PermissionWorkOrdersFinalApprove))
	other := NewPermissionSet("user-1", "H2", nil, set.overrides)
	assert.False(t, other.HasPermission(models.PermissionWorkOrdersFinalApprove))
	assert.True(t, other.HasPermission(models.PermissionWorkOrdersCreate))
	assert.False(t, set.HasPermission(models.PermissionWorkOrdersView))
	assert.Equal(t, []string{models.PermissionWorkOrdersCreate, models.PermissionWorkOrdersFinalApprove}, set.Keys())
}

func TestPermissionSetAnyAll(t *testing.T) {
	set := NewPermissionSet("user-1", "H", []string{models.PermissionWorkOrdersView, models.PermissionWorkOrdersCreate}, nil)

	assert.True(t, set.HasAnyPermission(models.PermissionWorkOrdersApprove, models.PermissionWorkOrdersView))
	assert.False(t, set.HasAnyPermission(models.PermissionWorkOrdersApprove))
	assert.True(t, set.HasAllPermissions(models.PermissionWorkOrdersView, models.PermissionWorkOrdersCreate))
	assert.False(t, set.HasAllPermissions(models.PermissionWorkOrdersView, models.PermissionWorkOrdersApprove))
	assert.False(t, set.HasAllPermissions())
}

func TestPermissionResolverFailsClosed(t *testing.T) {
	store := &permissionStoreStub{
		baseErr:   errors.New("connection refused"),
		overrides: []models.PermissionOverride{override(models.PermissionWorkOrdersView, models.OverrideGrant, "")},
	}
	resolver := NewPermissionResolver(store, nil)

	set := resolver.Resolve(context.Background(), "user-1", "H")
	require.NotNil(t, set)
	require.Error(t, set.Err())
	assert.False(t, set.HasPermission(models.PermissionWorkOrdersView))
	assert.Empty(t, set.Keys())
}

func TestPermissionResolverCachesAndRefreshes(t *testing.T) {
	cache, mr := newTestCacheService(t)
	store := &permissionStoreStub{base: []string{models.PermissionWorkOrdersApprove}}
	resolver := NewPermissionResolver(store, nil, WithPermissionCache(cache, time.Minute))
	ctx := context.Background()

	first := resolver.Resolve(ctx, "user-1", "H")
	require.NoError(t, first.Err())
	assert.True(t, first.HasPermission(models.PermissionWorkOrdersApprove))
	assert.True(t, mr.Exists("permissions:user-1:H"))

	store.base = nil
	cached := resolver.Resolve(ctx, "user-1", "H")
	assert.True(t, cached.HasPermission(models.PermissionWorkOrdersApprove))
	assert.Equal(t, 1, store.baseCalls)

	refreshed := resolver.Refresh(ctx, "user-1", "H")
	assert.False(t, refreshed.HasPermission(models.PermissionWorkOrdersApprove))
	assert.Equal(t, 2, store.baseCalls)
}

func TestPermissionResolverDoesNotCacheFailures(t *testing.T) {
	cache, mr := newTestCacheService(t)
	store := &permissionStoreStub{baseErr: errors.New("timeout")}
	resolver := NewPermissionResolver(store, nil, WithPermissionCache(cache, time.Minute))

	set := resolver.Resolve(context.Background(), "user-1", "H")
	assert.Error(t, set.Err())
	assert.False(t, mr.Exists("permissions:user-1:H"))
}

func TestPermissionResolverRoles(t *testing.T) {
	store := &permissionStoreStub{roles: []models.UserRoleAssignment{
		{Code: "technician"},
		{Code: "eng", IsCustom: true},
		{Code: "night-shift", IsCustom: true},
	}}
	resolver := NewPermissionResolver(store, nil)

	roles, err := resolver.Roles(context.Background(), "user-1", "H")
	require.NoError(t, err)
	assert.Equal(t, []models.RoleCode{models.RoleEngineer, models.RoleTechnician}, roles.Codes())
}

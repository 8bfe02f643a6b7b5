package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/facility-workorder-api/internal/models"
)

// PermissionStore exposes the role and permission aggregation backend.
type PermissionStore interface {
	ListRoleAssignments(ctx context.Context, userID, hospitalID string) ([]models.UserRoleAssignment, error)
	ListBasePermissions(ctx context.Context, userID, hospitalID string) ([]string, error)
	ListOverrides(ctx context.Context, userID, hospitalID string) ([]models.PermissionOverride, error)
}

// PermissionSet is the effective permission view of one user in one hospital.
// A set carrying an error answers false to every query.
type PermissionSet struct {
	UserID     string
	HospitalID string

	base      map[string]struct{}
	overrides []models.PermissionOverride
	err       error
}

// NewPermissionSet builds a set from a role-derived base and overrides.
func NewPermissionSet(userID, hospitalID string, base []string, overrides []models.PermissionOverride) *PermissionSet {
	set := &PermissionSet{
		UserID:     userID,
		HospitalID: hospitalID,
		base:       make(map[string]struct{}, len(base)),
		overrides:  append([]models.PermissionOverride(nil), overrides...),
	}
	for _, key := range base {
		set.base[key] = struct{}{}
	}
	return set
}

// FailedPermissionSet returns an empty set that reports err.
func FailedPermissionSet(userID, hospitalID string, err error) *PermissionSet {
	return &PermissionSet{UserID: userID, HospitalID: hospitalID, base: map[string]struct{}{}, err: err}
}

// Err reports why the set could not be loaded.
func (p *PermissionSet) Err() error {
	if p == nil {
		return fmt.Errorf("permission set not loaded")
	}
	return p.err
}

// HasPermission checks a key in the set's own hospital.
func (p *PermissionSet) HasPermission(key string) bool {
	if p == nil {
		return false
	}
	return p.allows(key)
}

// allows applies the override precedence. Deny beats grant, and a global deny
// is not bypassable by a hospital grant: hospital deny, global deny, hospital
// grant, global grant, then the base set. The base set was loaded for
// p.HospitalID only, so a set never answers for another hospital; callers
// resolve one set per hospital instead.
func (p *PermissionSet) allows(key string) bool {
	if p == nil || p.err != nil || key == "" {
		return false
	}
	hospitalID := p.HospitalID

	var hospitalDeny, globalDeny, hospitalGrant, globalGrant bool
	for _, o := range p.overrides {
		if o.PermissionKey != key {
			continue
		}
		scoped := !o.IsGlobal()
		if scoped && (hospitalID == "" || *o.HospitalID != hospitalID) {
			continue
		}
		switch {
		case o.Effect == models.OverrideDeny && scoped:
			hospitalDeny = true
		case o.Effect == models.OverrideDeny:
			globalDeny = true
		case o.Effect == models.OverrideGrant && scoped:
			hospitalGrant = true
		case o.Effect == models.OverrideGrant:
			globalGrant = true
		}
	}

	switch {
	case hospitalDeny, globalDeny:
		return false
	case hospitalGrant, globalGrant:
		return true
	}
	_, ok := p.base[key]
	return ok
}

// HasAnyPermission reports whether at least one key is granted.
func (p *PermissionSet) HasAnyPermission(keys ...string) bool {
	for _, key := range keys {
		if p.HasPermission(key) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every key is granted. An empty key list
// is never satisfied.
func (p *PermissionSet) HasAllPermissions(keys ...string) bool {
	if len(keys) == 0 {
		return false
	}
	for _, key := range keys {
		if !p.HasPermission(key) {
			return false
		}
	}
	return true
}

// Keys lists every key effectively granted in the set's hospital.
func (p *PermissionSet) Keys() []string {
	if p == nil || p.err != nil {
		return []string{}
	}
	candidates := make(map[string]struct{}, len(p.base)+len(p.overrides))
	for key := range p.base {
		candidates[key] = struct{}{}
	}
	for _, o := range p.overrides {
		if o.Effect == models.OverrideGrant {
			candidates[o.PermissionKey] = struct{}{}
		}
	}
	keys := make([]string, 0, len(candidates))
	for key := range candidates {
		if p.HasPermission(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// PermissionResolver computes effective permission sets, caching the loaded
// base set and overrides per user and hospital.
type PermissionResolver struct {
	store   PermissionStore
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	ttl     time.Duration
	now     func() time.Time
}

// PermissionResolverOption configures the resolver.
type PermissionResolverOption func(*PermissionResolver)

// WithPermissionCache enables snapshot caching with the given TTL.
func WithPermissionCache(cache *CacheService, ttl time.Duration) PermissionResolverOption {
	return func(r *PermissionResolver) {
		r.cache = cache
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithPermissionMetrics records resolution sources.
func WithPermissionMetrics(metrics *MetricsService) PermissionResolverOption {
	return func(r *PermissionResolver) {
		r.metrics = metrics
	}
}

// NewPermissionResolver constructs the resolver.
func NewPermissionResolver(store PermissionStore, logger *zap.Logger, opts ...PermissionResolverOption) *PermissionResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &PermissionResolver{
		store:  store,
		logger: logger,
		ttl:    5 * time.Minute,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve returns the caller's effective permissions in a hospital. Load
// failures yield a fail-closed set whose Err is non-nil; Resolve never
// returns nil.
func (r *PermissionResolver) Resolve(ctx context.Context, userID, hospitalID string) *PermissionSet {
	key := permissionCacheKey(userID, hospitalID)

	var snapshot models.PermissionSnapshot
	if hit, err := r.cache.Get(ctx, key, &snapshot); err == nil && hit {
		r.metrics.RecordPermissionResolution("cache")
		return NewPermissionSet(userID, hospitalID, snapshot.Base, snapshot.Overrides)
	}

	snapshot, err := r.load(ctx, userID, hospitalID)
	if err != nil {
		r.metrics.RecordPermissionResolution("degraded")
		r.logger.Warn("permission resolution failed closed",
			zap.String("user_id", userID),
			zap.String("hospital_id", hospitalID),
			zap.Error(err))
		return FailedPermissionSet(userID, hospitalID, err)
	}
	r.metrics.RecordPermissionResolution("database")

	if err := r.cache.Set(ctx, key, snapshot, r.ttl); err != nil {
		r.logger.Debug("permission snapshot not cached", zap.String("key", key), zap.Error(err))
	}
	return NewPermissionSet(userID, hospitalID, snapshot.Base, snapshot.Overrides)
}

// Refresh drops the cached snapshot and resolves again.
func (r *PermissionResolver) Refresh(ctx context.Context, userID, hospitalID string) *PermissionSet {
	if err := r.cache.Delete(ctx, permissionCacheKey(userID, hospitalID)); err != nil {
		r.logger.Warn("permission cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
	return r.Resolve(ctx, userID, hospitalID)
}

// InvalidateUser drops every cached snapshot of a user across hospitals.
func (r *PermissionResolver) InvalidateUser(ctx context.Context, userID string) error {
	return r.cache.Invalidate(ctx, permissionCacheKey(userID, "*"))
}

// Roles loads and normalizes the caller's standard and custom role codes.
func (r *PermissionResolver) Roles(ctx context.Context, userID, hospitalID string) (models.RoleSet, error) {
	if r.store == nil {
		return models.RoleSet{}, fmt.Errorf("permission store not configured")
	}
	assignments, err := r.store.ListRoleAssignments(ctx, userID, hospitalID)
	if err != nil {
		return models.RoleSet{}, err
	}
	codes := make([]string, 0, len(assignments))
	for _, a := range assignments {
		codes = append(codes, a.Code)
	}
	return NormalizeRoles(codes), nil
}

func (r *PermissionResolver) load(ctx context.Context, userID, hospitalID string) (models.PermissionSnapshot, error) {
	if r.store == nil {
		return models.PermissionSnapshot{}, fmt.Errorf("permission store not configured")
	}
	base, err := r.store.ListBasePermissions(ctx, userID, hospitalID)
	if err != nil {
		return models.PermissionSnapshot{}, fmt.Errorf("load base permissions: %w", err)
	}
	overrides, err := r.store.ListOverrides(ctx, userID, hospitalID)
	if err != nil {
		return models.PermissionSnapshot{}, fmt.Errorf("load permission overrides: %w", err)
	}
	return models.PermissionSnapshot{
		UserID:     userID,
		HospitalID: hospitalID,
		Base:       base,
		Overrides:  overrides,
		LoadedAt:   r.now(),
	}, nil
}

func permissionCacheKey(userID, hospitalID string) string {
	return fmt.Sprintf("permissions:%s:%s", userID, hospitalID)
}

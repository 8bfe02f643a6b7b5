package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/facility-workorder-api/internal/models"
)

// PermissionRepository loads role assignments, role-derived permissions and
// per-user overrides.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository constructs the repository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// ListRoleAssignments returns the standard and hospital-defined role codes
// held by the user in a hospital.
func (r *PermissionRepository) ListRoleAssignments(ctx context.Context, userID, hospitalID string) ([]models.UserRoleAssignment, error) {
	const query = `SELECT r.code AS code, FALSE AS is_custom
	FROM user_roles ur JOIN roles r ON r.id = ur.role_id
	WHERE ur.user_id = $1 AND (ur.hospital_id = $2 OR ur.hospital_id IS NULL)
	UNION
	SELECT cr.code AS code, TRUE AS is_custom
	FROM user_custom_roles ucr JOIN custom_roles cr ON cr.id = ucr.custom_role_id
	WHERE ucr.user_id = $1 AND cr.hospital_id = $2 AND cr.active = TRUE`
	var roles []models.UserRoleAssignment
	if err := r.db.SelectContext(ctx, &roles, query, userID, hospitalID); err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	return roles, nil
}

// ListBasePermissions aggregates the permission keys derived from every role
// the user holds in the hospital.
func (r *PermissionRepository) ListBasePermissions(ctx context.Context, userID, hospitalID string) ([]string, error) {
	const query = `SELECT DISTINCT p.key FROM (
		SELECT rp.permission_id FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		WHERE ur.user_id = $1 AND (ur.hospital_id = $2 OR ur.hospital_id IS NULL)
		UNION
		SELECT crp.permission_id FROM user_custom_roles ucr
		JOIN custom_roles cr ON cr.id = ucr.custom_role_id
		JOIN custom_role_permissions crp ON crp.custom_role_id = cr.id
		WHERE ucr.user_id = $1 AND cr.hospital_id = $2 AND cr.active = TRUE
	) granted JOIN permissions p ON p.id = granted.permission_id
	ORDER BY p.key`
	var keys []string
	if err := r.db.SelectContext(ctx, &keys, query, userID, hospitalID); err != nil {
		return nil, fmt.Errorf("list base permissions: %w", err)
	}
	return keys, nil
}

// ListOverrides returns the user's global overrides and those scoped to the
// hospital. Overrides scoped to other hospitals are not returned.
func (r *PermissionRepository) ListOverrides(ctx context.Context, userID, hospitalID string) ([]models.PermissionOverride, error) {
	const query = `SELECT user_id, permission_key, effect, hospital_id
	FROM user_permission_overrides
	WHERE user_id = $1 AND (hospital_id IS NULL OR hospital_id = $2)
	ORDER BY permission_key`
	var overrides []models.PermissionOverride
	if err := r.db.SelectContext(ctx, &overrides, query, userID, hospitalID); err != nil {
		return nil, fmt.Errorf("list permission overrides: %w", err)
	}
	return overrides, nil
}

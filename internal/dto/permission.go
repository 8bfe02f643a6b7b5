package dto

import "github.com/noah-isme/facility-workorder-api/internal/models"

// EffectivePermissions describes the caller's resolved access in one hospital.
type EffectivePermissions struct {
	UserID      string            `json:"userId"`
	HospitalID  string            `json:"hospitalId"`
	Roles       []models.RoleCode `json:"roles"`
	Permissions []string          `json:"permissions"`
	RoleConfig  models.RoleConfig `json:"roleConfig"`
	Degraded    bool              `json:"degraded"`
}

// PermissionCheckResult answers a has-any / has-all query.
type PermissionCheckResult struct {
	Mode    string          `json:"mode"`
	Allowed bool            `json:"allowed"`
	Keys    map[string]bool `json:"keys"`
}

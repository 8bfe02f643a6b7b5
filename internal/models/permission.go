package models

import "time"

// Permission keys consulted by the work-order lifecycle.
const (
	PermissionWorkOrdersView         = "work_orders.view"
	PermissionWorkOrdersCreate       = "work_orders.create"
	PermissionWorkOrdersApprove      = "work_orders.approve"
	PermissionWorkOrdersManage       = "work_orders.manage"
	PermissionWorkOrdersFinalApprove = "work_orders.final_approve"
	PermissionWorkOrdersAutoClose    = "work_orders.auto_close"
)

// OverrideEffect is the outcome an explicit per-user override forces.
type OverrideEffect string

const (
	OverrideGrant OverrideEffect = "grant"
	OverrideDeny  OverrideEffect = "deny"
)

// PermissionOverride grants or denies one permission key for a user. A nil
// HospitalID means the override applies globally.
type PermissionOverride struct {
	UserID        string         `db:"user_id" json:"userId"`
	PermissionKey string         `db:"permission_key" json:"permissionKey"`
	Effect        OverrideEffect `db:"effect" json:"effect"`
	HospitalID    *string        `db:"hospital_id" json:"hospitalId,omitempty"`
}

// IsGlobal reports whether the override has no hospital scope.
func (o PermissionOverride) IsGlobal() bool {
	return o.HospitalID == nil || *o.HospitalID == ""
}

// PermissionSnapshot is the cacheable payload behind an effective permission set.
type PermissionSnapshot struct {
	UserID     string               `json:"userId"`
	HospitalID string               `json:"hospitalId"`
	Base       []string             `json:"base"`
	Overrides  []PermissionOverride `json:"overrides"`
	LoadedAt   time.Time            `json:"loadedAt"`
}

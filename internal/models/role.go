package models

import "sort"

// RoleCode is one of the standard facility-management roles.
type RoleCode string

const (
	RoleGlobalAdmin        RoleCode = "global_admin"
	RoleHospitalAdmin      RoleCode = "hospital_admin"
	RoleFacilityManager    RoleCode = "facility_manager"
	RoleMaintenanceManager RoleCode = "maintenance_manager"
	RoleSupervisor         RoleCode = "supervisor"
	RoleTechnician         RoleCode = "technician"
	RoleReporter           RoleCode = "reporter"
	RoleEngineer           RoleCode = "engineer"
)

// StandardRoles lists every standard role code.
var StandardRoles = []RoleCode{
	RoleGlobalAdmin,
	RoleHospitalAdmin,
	RoleFacilityManager,
	RoleMaintenanceManager,
	RoleSupervisor,
	RoleTechnician,
	RoleReporter,
	RoleEngineer,
}

// RoleSet is the canonical set of standard roles held by a caller.
type RoleSet map[RoleCode]struct{}

// Has reports whether the set contains the role.
func (s RoleSet) Has(role RoleCode) bool {
	_, ok := s[role]
	return ok
}

// HasAny reports whether the set contains at least one of the roles.
func (s RoleSet) HasAny(roles ...RoleCode) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Codes returns the roles sorted for stable output.
func (s RoleSet) Codes() []RoleCode {
	out := make([]RoleCode, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UserRoleAssignment is a role code granted to a user, either standard or
// hospital-defined.
type UserRoleAssignment struct {
	Code     string `db:"code" json:"code"`
	IsCustom bool   `db:"is_custom" json:"isCustom"`
}

// WorkOrderModuleConfig toggles which work-order actions a role set may see.
type WorkOrderModuleConfig struct {
	StartWork        bool `json:"startWork"`
	CompleteWork     bool `json:"completeWork"`
	Approve          bool `json:"approve"`
	ReviewAsEngineer bool `json:"reviewAsEngineer"`
	FinalApprove     bool `json:"finalApprove"`
	Reject           bool `json:"reject"`
	Reassign         bool `json:"reassign"`
	Update           bool `json:"update"`
}

// Merge ORs two module configs.
func (c WorkOrderModuleConfig) Merge(o WorkOrderModuleConfig) WorkOrderModuleConfig {
	return WorkOrderModuleConfig{
		StartWork:        c.StartWork || o.StartWork,
		CompleteWork:     c.CompleteWork || o.CompleteWork,
		Approve:          c.Approve || o.Approve,
		ReviewAsEngineer: c.ReviewAsEngineer || o.ReviewAsEngineer,
		FinalApprove:     c.FinalApprove || o.FinalApprove,
		Reject:           c.Reject || o.Reject,
		Reassign:         c.Reassign || o.Reassign,
		Update:           c.Update || o.Update,
	}
}

// RoleModules groups module toggles.
type RoleModules struct {
	WorkOrders WorkOrderModuleConfig `json:"workOrders"`
}

// RoleConfig is the static capability table for a role set.
type RoleConfig struct {
	Modules RoleModules `json:"modules"`
}

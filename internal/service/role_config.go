package service

import (
	"strings"

	"github.com/noah-isme/facility-workorder-api/internal/models"
)

// roleAliases maps hospital-defined shorthand codes onto standard roles.
var roleAliases = map[string]models.RoleCode{
	"eng":       models.RoleEngineer,
	"tech":      models.RoleTechnician,
	"sup":       models.RoleSupervisor,
	"fm":        models.RoleFacilityManager,
	"mm":        models.RoleMaintenanceManager,
	"admin":     models.RoleHospitalAdmin,
	"requester": models.RoleReporter,
}

var allWorkOrderActions = models.WorkOrderModuleConfig{
	StartWork: true, CompleteWork: true, Approve: true, ReviewAsEngineer: true,
	FinalApprove: true, Reject: true, Reassign: true, Update: true,
}

var managerWorkOrderActions = models.WorkOrderModuleConfig{
	Approve: true, FinalApprove: true, Reject: true, Reassign: true, Update: true,
}

// roleTable is read-only after package initialisation.
var roleTable = map[models.RoleCode]models.WorkOrderModuleConfig{
	models.RoleGlobalAdmin:        allWorkOrderActions,
	models.RoleHospitalAdmin:      allWorkOrderActions,
	models.RoleFacilityManager:    managerWorkOrderActions,
	models.RoleMaintenanceManager: managerWorkOrderActions,
	models.RoleSupervisor:         {StartWork: true, CompleteWork: true, Approve: true, Reject: true, Update: true},
	models.RoleTechnician:         {StartWork: true, CompleteWork: true, Reject: true, Update: true},
	models.RoleEngineer:           {ReviewAsEngineer: true, Reject: true, Update: true},
	models.RoleReporter:           {Reject: true},
}

// NormalizeRole maps a raw role code onto a standard role. The second return
// value is false for codes that are neither standard nor a known alias.
func NormalizeRole(code string) (models.RoleCode, bool) {
	c := strings.ToLower(strings.TrimSpace(code))
	if c == "" {
		return "", false
	}
	if _, ok := roleTable[models.RoleCode(c)]; ok {
		return models.RoleCode(c), true
	}
	role, ok := roleAliases[c]
	return role, ok
}

// NormalizeRoles resolves raw standard and custom codes into a canonical set.
// Unknown codes are dropped.
func NormalizeRoles(codes []string) models.RoleSet {
	set := make(models.RoleSet, len(codes))
	for _, code := range codes {
		if role, ok := NormalizeRole(code); ok {
			set[role] = struct{}{}
		}
	}
	return set
}

// GetRoleConfig returns the union of module toggles for the given codes.
func GetRoleConfig(codes []string) models.RoleConfig {
	return RoleConfigFor(NormalizeRoles(codes))
}

// RoleConfigFor returns the union of module toggles for a normalized set.
func RoleConfigFor(roles models.RoleSet) models.RoleConfig {
	var wo models.WorkOrderModuleConfig
	for role := range roles {
		wo = wo.Merge(roleTable[role])
	}
	return models.RoleConfig{Modules: models.RoleModules{WorkOrders: wo}}
}

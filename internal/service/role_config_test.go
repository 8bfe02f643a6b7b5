package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/facility-workorder-api/internal/models"
)

func TestNormalizeRoles(t *testing.T) {
	set := NormalizeRoles([]string{"eng", " Technician ", "REQUESTER", "janitor", ""})

	assert.Equal(t, []models.RoleCode{models.RoleEngineer, models.RoleReporter, models.RoleTechnician}, set.Codes())
	assert.False(t, set.Has("janitor"))
}

func TestGetRoleConfig(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		want  models.WorkOrderModuleConfig
	}{
		{
			name:  "no roles",
			codes: nil,
			want:  models.WorkOrderModuleConfig{},
		},
		{
			name:  "technician",
			codes: []string{"technician"},
			want:  models.WorkOrderModuleConfig{StartWork: true, CompleteWork: true, Reject: true, Update: true},
		},
		{
			name:  "engineer alias",
			codes: []string{"eng"},
			want:  models.WorkOrderModuleConfig{ReviewAsEngineer: true, Reject: true, Update: true},
		},
		{
			name:  "union of reporter and facility manager",
			codes: []string{"reporter", "fm"},
			want:  models.WorkOrderModuleConfig{Approve: true, FinalApprove: true, Reject: true, Reassign: true, Update: true},
		},
		{
			name:  "hospital admin sees everything",
			codes: []string{"admin"},
			want:  allWorkOrderActions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetRoleConfig(tt.codes).Modules.WorkOrders)
		})
	}
}

func TestGetRoleConfigDeterministic(t *testing.T) {
	a := GetRoleConfig([]string{"supervisor", "engineer", "tech"})
	b := GetRoleConfig([]string{"tech", "engineer", "supervisor"})
	assert.Equal(t, a, b)
}

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-workorder-api/internal/models"
)

func strPtr(s string) *string { return &s }

func sampleWorkOrder(status models.WorkOrderStatus) *models.WorkOrder {
	return &models.WorkOrder{
		ID:             "wo-1",
		Code:           "WO-001",
		HospitalID:     "hosp-1",
		IssueType:      "plumbing",
		Priority:       models.PriorityHigh,
		Status:         status,
		ReportedBy:     "reporter-1",
		AssignedTeamID: strPtr("team-1"),
		BuildingID:     strPtr("bld-1"),
	}
}

var allStatuses = []models.WorkOrderStatus{
	models.WorkOrderStatusPending,
	models.WorkOrderStatusAssigned,
	models.WorkOrderStatusInProgress,
	models.WorkOrderStatusPendingSupervisorApproval,
	models.WorkOrderStatusPendingEngineerReview,
	models.WorkOrderStatusPendingReporterClosure,
	models.WorkOrderStatusCompleted,
	models.WorkOrderStatusAutoClosed,
	models.WorkOrderStatusCancelled,
	models.WorkOrderStatusRejectedByTechnician,
}

func TestEligibleActionsAssignedTeamMember(t *testing.T) {
	caps := EligibleActions(CapabilityInput{
		WorkOrder:    sampleWorkOrder(models.WorkOrderStatusAssigned),
		Roles:        NormalizeRoles([]string{"technician"}),
		Relationship: models.WorkOrderRelationship{IsTeamMember: true},
	})

	assert.True(t, caps.Start)
	assert.False(t, caps.Complete)
	assert.True(t, caps.Reject)
	assert.True(t, caps.Update)
	assert.False(t, caps.Reassign)
}

func TestEligibleActionsRejectedByTechnician(t *testing.T) {
	everything := CapabilityInput{
		WorkOrder:       sampleWorkOrder(models.WorkOrderStatusRejectedByTechnician),
		Roles:           NormalizeRoles([]string{"global_admin", "engineer", "technician", "supervisor", "reporter"}),
		Relationship:    models.WorkOrderRelationship{IsTeamMember: true, IsAssignedToBuilding: true, IsReporter: true},
		CanManage:       true,
		CanFinalApprove: true,
	}
	caps := EligibleActions(everything)

	assert.True(t, caps.Cancel)
	assert.True(t, caps.ReturnToPending)
	assert.True(t, caps.Reassign)
	assert.False(t, caps.Start)
	assert.False(t, caps.Complete)
	assert.False(t, caps.Approve)
	assert.False(t, caps.Review)
	assert.False(t, caps.Close)
	assert.False(t, caps.Reject)
	assert.False(t, caps.Update)
	assert.Equal(t, models.Capabilities{
		Cancel:          true,
		ReturnToPending: true,
		Reassign:        true,
		AddManagerNotes: true,
	}, caps)

	nobody := EligibleActions(CapabilityInput{WorkOrder: sampleWorkOrder(models.WorkOrderStatusRejectedByTechnician)})
	assert.Equal(t, models.Capabilities{Cancel: true, ReturnToPending: true, Reassign: true}, nobody)
}

func TestEligibleActionsSupervisorStage(t *testing.T) {
	caps := EligibleActions(CapabilityInput{
		WorkOrder:    sampleWorkOrder(models.WorkOrderStatusPendingSupervisorApproval),
		Roles:        NormalizeRoles([]string{"supervisor"}),
		Relationship: models.WorkOrderRelationship{IsAssignedToBuilding: true},
	})
	assert.True(t, caps.Approve)
	assert.True(t, caps.Reject)

	outsider := EligibleActions(CapabilityInput{
		WorkOrder: sampleWorkOrder(models.WorkOrderStatusPendingSupervisorApproval),
		Roles:     NormalizeRoles([]string{"supervisor"}),
	})
	assert.False(t, outsider.Approve)
	assert.False(t, outsider.Reject)
}

func TestEligibleActionsEngineerAndReporterStages(t *testing.T) {
	review := EligibleActions(CapabilityInput{
		WorkOrder: sampleWorkOrder(models.WorkOrderStatusPendingEngineerReview),
		Roles:     NormalizeRoles([]string{"eng"}),
	})
	assert.True(t, review.Review)
	assert.True(t, review.Reject)

	teamOnly := EligibleActions(CapabilityInput{
		WorkOrder:    sampleWorkOrder(models.WorkOrderStatusPendingEngineerReview),
		Relationship: models.WorkOrderRelationship{IsTeamMember: true},
	})
	assert.False(t, teamOnly.Review)
	assert.False(t, teamOnly.Reject)

	closing := EligibleActions(CapabilityInput{
		WorkOrder:    sampleWorkOrder(models.WorkOrderStatusPendingReporterClosure),
		Relationship: models.WorkOrderRelationship{IsReporter: true},
	})
	assert.True(t, closing.Close)
	assert.True(t, closing.Reject)
}

func TestEligibleActionsReassignRequiresPermissionOutsideRejection(t *testing.T) {
	for _, status := range []models.WorkOrderStatus{models.WorkOrderStatusPending, models.WorkOrderStatusAssigned, models.WorkOrderStatusInProgress} {
		without := EligibleActions(CapabilityInput{WorkOrder: sampleWorkOrder(status)})
		with := EligibleActions(CapabilityInput{WorkOrder: sampleWorkOrder(status), CanManage: true})
		assert.False(t, without.Reassign, status)
		assert.True(t, with.Reassign, status)
	}
	late := EligibleActions(CapabilityInput{WorkOrder: sampleWorkOrder(models.WorkOrderStatusCompleted), CanManage: true})
	assert.False(t, late.Reassign)

	for _, status := range []models.WorkOrderStatus{
		models.WorkOrderStatusPendingSupervisorApproval,
		models.WorkOrderStatusPendingEngineerReview,
		models.WorkOrderStatusPendingReporterClosure,
	} {
		approval := EligibleActions(CapabilityInput{WorkOrder: sampleWorkOrder(status), CanManage: true, CanFinalApprove: true})
		assert.False(t, approval.Reassign, status)
		_, ok := NextStatus(models.ActionReassign, sampleWorkOrder(status))
		assert.False(t, ok, status)
	}
}

func TestEligibleActionsUpdateNeedsTeam(t *testing.T) {
	wo := sampleWorkOrder(models.WorkOrderStatusPending)
	wo.AssignedTeamID = nil
	caps := EligibleActions(CapabilityInput{WorkOrder: wo, Relationship: models.WorkOrderRelationship{IsTeamMember: true}})
	assert.False(t, caps.Update)
}

func TestFinalApproveGate(t *testing.T) {
	completed := sampleWorkOrder(models.WorkOrderStatusCompleted)
	now := time.Now()
	completed.CustomerReviewedAt = &now

	assert.True(t, EligibleActions(CapabilityInput{WorkOrder: completed, CanFinalApprove: true}).FinalApprove)
	assert.False(t, EligibleActions(CapabilityInput{WorkOrder: completed}).FinalApprove)

	autoClosed := sampleWorkOrder(models.WorkOrderStatusAutoClosed)
	assert.True(t, FinalApproveReady(autoClosed))

	approved := completed.Clone()
	approved.MaintenanceManagerApprovedAt = &now
	assert.False(t, FinalApproveReady(approved))
	assert.False(t, ManagerNotesOpen(approved))

	assert.False(t, FinalApproveReady(sampleWorkOrder(models.WorkOrderStatusPendingReporterClosure)))
	assert.True(t, ManagerNotesOpen(sampleWorkOrder(models.WorkOrderStatusPendingReporterClosure)))
	assert.False(t, ManagerNotesOpen(sampleWorkOrder(models.WorkOrderStatusCancelled)))
}

func TestRejectDestination(t *testing.T) {
	tests := []struct {
		from  models.WorkOrderStatus
		to    models.WorkOrderStatus
		stage models.RejectStage
	}{
		{models.WorkOrderStatusAssigned, models.WorkOrderStatusRejectedByTechnician, models.RejectStageTechnician},
		{models.WorkOrderStatusInProgress, models.WorkOrderStatusRejectedByTechnician, models.RejectStageTechnician},
		{models.WorkOrderStatusPendingSupervisorApproval, models.WorkOrderStatusAssigned, models.RejectStageSupervisor},
		{models.WorkOrderStatusPendingEngineerReview, models.WorkOrderStatusPendingSupervisorApproval, models.RejectStageEngineer},
		{models.WorkOrderStatusPendingReporterClosure, models.WorkOrderStatusPendingEngineerReview, models.RejectStageReporter},
	}
	for _, tt := range tests {
		to, stage, ok := RejectDestination(tt.from)
		require.True(t, ok, tt.from)
		assert.Equal(t, tt.to, to)
		assert.Equal(t, tt.stage, stage)
	}

	for _, status := range []models.WorkOrderStatus{models.WorkOrderStatusPending, models.WorkOrderStatusCompleted, models.WorkOrderStatusCancelled} {
		_, _, ok := RejectDestination(status)
		assert.False(t, ok, status)
	}
}

func TestCancelledIsTerminal(t *testing.T) {
	wo := sampleWorkOrder(models.WorkOrderStatusCancelled)
	for _, action := range []models.WorkOrderAction{
		models.ActionStartWork, models.ActionCompleteWork, models.ActionApprove, models.ActionReview,
		models.ActionClose, models.ActionReject, models.ActionReassign, models.ActionCancel,
		models.ActionReturnToPending, models.ActionFinalApprove, models.ActionAddManagerNotes,
		models.ActionAddUpdate, models.ActionAutoClose,
	} {
		_, ok := NextStatus(action, wo)
		assert.False(t, ok, action)
	}
}

func TestNextStatusOnlyMovesAlongGraph(t *testing.T) {
	forward := map[models.WorkOrderAction]models.WorkOrderStatus{
		models.ActionStartWork:    models.WorkOrderStatusAssigned,
		models.ActionCompleteWork: models.WorkOrderStatusInProgress,
		models.ActionApprove:      models.WorkOrderStatusPendingSupervisorApproval,
		models.ActionReview:       models.WorkOrderStatusPendingEngineerReview,
		models.ActionClose:        models.WorkOrderStatusPendingReporterClosure,
		models.ActionAutoClose:    models.WorkOrderStatusPendingReporterClosure,
		models.ActionCancel:       models.WorkOrderStatusRejectedByTechnician,
	}
	for action, from := range forward {
		for _, status := range allStatuses {
			_, ok := NextStatus(action, sampleWorkOrder(status))
			assert.Equal(t, status == from, ok, "%s from %s", action, status)
		}
	}
}

func TestApplyTransitionStamps(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	started, err := ApplyTransition(models.ActionStartWork, sampleWorkOrder(models.WorkOrderStatusAssigned), TransitionInput{ActorID: "tech-1", Now: now})
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderStatusInProgress, started.Status)
	require.NotNil(t, started.AssignedTo)
	assert.Equal(t, "tech-1", *started.AssignedTo)
	assert.Equal(t, now, *started.StartTime)

	src := sampleWorkOrder(models.WorkOrderStatusPendingSupervisorApproval)
	approved, err := ApplyTransition(models.ActionApprove, src, TransitionInput{ActorID: "sup-1", Notes: "looks good", Now: now})
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderStatusPendingEngineerReview, approved.Status)
	assert.Equal(t, "sup-1", *approved.SupervisorApprovedBy)
	assert.Equal(t, "looks good", *approved.SupervisorApprovalNotes)
	assert.Equal(t, now, *approved.SupervisorApprovedAt)
	assert.Equal(t, models.WorkOrderStatusPendingSupervisorApproval, src.Status, "input must not be mutated")
}

func TestApplyTransitionSupervisorReject(t *testing.T) {
	wo := sampleWorkOrder(models.WorkOrderStatusPendingSupervisorApproval)
	end := time.Now()
	wo.EndTime = &end

	out, err := ApplyTransition(models.ActionReject, wo, TransitionInput{ActorID: "sup-1", Notes: "pipe still drips"})
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderStatusAssigned, out.Status)
	assert.Equal(t, "pipe still drips", *out.RejectionReason)
	assert.Equal(t, models.RejectStageSupervisor, *out.RejectStage)
	assert.Equal(t, "team-1", *out.AssignedTeamID)
	assert.Nil(t, out.EndTime)
}

func TestApplyTransitionReassignRedirect(t *testing.T) {
	wo := sampleWorkOrder(models.WorkOrderStatusRejectedByTechnician)
	out, err := ApplyTransition(models.ActionReassign, wo, TransitionInput{ActorID: "fm-1", TeamID: "team-elec", IssueType: "electrical", Notes: "wrong trade"})
	require.NoError(t, err)

	assert.Equal(t, models.WorkOrderStatusAssigned, out.Status)
	assert.Equal(t, "team-elec", *out.AssignedTeamID)
	assert.Nil(t, out.AssignedTo)
	assert.True(t, out.IsRedirected)
	assert.Equal(t, "plumbing", *out.OriginalIssueType)
	assert.Equal(t, "electrical", out.IssueType)
	assert.Equal(t, "fm-1", *out.RedirectedBy)

	same, err := ApplyTransition(models.ActionReassign, wo, TransitionInput{ActorID: "fm-1", TeamID: "team-2", IssueType: "plumbing"})
	require.NoError(t, err)
	assert.False(t, same.IsRedirected)
	assert.Nil(t, same.OriginalIssueType)
}

func TestApplyTransitionReturnToPendingClearsAssignment(t *testing.T) {
	wo := sampleWorkOrder(models.WorkOrderStatusRejectedByTechnician)
	wo.AssignedTo = strPtr("tech-1")

	out, err := ApplyTransition(models.ActionReturnToPending, wo, TransitionInput{ActorID: "fm-1", Notes: "redistribute"})
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderStatusPending, out.Status)
	assert.Nil(t, out.AssignedTeamID)
	assert.Nil(t, out.AssignedTo)
}

func TestApplyTransitionIllegal(t *testing.T) {
	_, err := ApplyTransition(models.ActionStartWork, sampleWorkOrder(models.WorkOrderStatusInProgress), TransitionInput{ActorID: "tech-1"})
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

package service

import (
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/facility-workorder-api/internal/models"
)

// ErrIllegalTransition is returned when an action is not defined for the
// work order's current status.
var ErrIllegalTransition = errors.New("transition not allowed from current status")

// CapabilityInput is the already-loaded context the state machine decides on.
// It performs no lookups of its own.
type CapabilityInput struct {
	WorkOrder    *models.WorkOrder
	Roles        models.RoleSet
	Relationship models.WorkOrderRelationship
	// CanManage is true when the caller holds work_orders.approve or work_orders.manage.
	CanManage bool
	// CanFinalApprove is true when the caller holds work_orders.final_approve.
	CanFinalApprove bool
}

// TransitionInput carries the actor-supplied values stamped by a transition.
type TransitionInput struct {
	ActorID    string
	Notes      string
	TeamID     string
	AssigneeID string
	IssueType  string
	Now        time.Time
}

// RejectDestination derives where a rejection at the current status returns
// the work order, and which stage is recorded.
func RejectDestination(status models.WorkOrderStatus) (models.WorkOrderStatus, models.RejectStage, bool) {
	switch status {
	case models.WorkOrderStatusAssigned, models.WorkOrderStatusInProgress:
		return models.WorkOrderStatusRejectedByTechnician, models.RejectStageTechnician, true
	case models.WorkOrderStatusPendingSupervisorApproval:
		return models.WorkOrderStatusAssigned, models.RejectStageSupervisor, true
	case models.WorkOrderStatusPendingEngineerReview:
		return models.WorkOrderStatusPendingSupervisorApproval, models.RejectStageEngineer, true
	case models.WorkOrderStatusPendingReporterClosure:
		return models.WorkOrderStatusPendingEngineerReview, models.RejectStageReporter, true
	}
	return "", "", false
}

// FinalApproveReady reports whether the work order awaits manager sign-off.
func FinalApproveReady(wo *models.WorkOrder) bool {
	if wo == nil || wo.MaintenanceManagerApprovedAt != nil {
		return false
	}
	return wo.CustomerReviewedAt != nil || wo.Status == models.WorkOrderStatusAutoClosed
}

// ManagerNotesOpen reports whether manager notes may still be appended.
func ManagerNotesOpen(wo *models.WorkOrder) bool {
	return wo != nil && wo.MaintenanceManagerApprovedAt == nil && wo.Status != models.WorkOrderStatusCancelled
}

// NextStatus returns the status the action moves the work order to. Actions
// that annotate without moving return the current status.
func NextStatus(action models.WorkOrderAction, wo *models.WorkOrder) (models.WorkOrderStatus, bool) {
	if wo == nil {
		return "", false
	}
	switch action {
	case models.ActionStartWork:
		return models.WorkOrderStatusInProgress, wo.Status == models.WorkOrderStatusAssigned
	case models.ActionCompleteWork:
		return models.WorkOrderStatusPendingSupervisorApproval, wo.Status == models.WorkOrderStatusInProgress
	case models.ActionApprove:
		return models.WorkOrderStatusPendingEngineerReview, wo.Status == models.WorkOrderStatusPendingSupervisorApproval
	case models.ActionReview:
		return models.WorkOrderStatusPendingReporterClosure, wo.Status == models.WorkOrderStatusPendingEngineerReview
	case models.ActionClose:
		return models.WorkOrderStatusCompleted, wo.Status == models.WorkOrderStatusPendingReporterClosure
	case models.ActionAutoClose:
		return models.WorkOrderStatusAutoClosed, wo.Status == models.WorkOrderStatusPendingReporterClosure
	case models.ActionReject:
		next, _, ok := RejectDestination(wo.Status)
		return next, ok
	case models.ActionReassign:
		switch wo.Status {
		case models.WorkOrderStatusRejectedByTechnician, models.WorkOrderStatusPending,
			models.WorkOrderStatusAssigned, models.WorkOrderStatusInProgress:
			return models.WorkOrderStatusAssigned, true
		}
		return "", false
	case models.ActionCancel:
		return models.WorkOrderStatusCancelled, wo.Status == models.WorkOrderStatusRejectedByTechnician
	case models.ActionReturnToPending:
		return models.WorkOrderStatusPending, wo.Status == models.WorkOrderStatusRejectedByTechnician
	case models.ActionFinalApprove:
		return wo.Status, FinalApproveReady(wo)
	case models.ActionAddManagerNotes:
		return wo.Status, ManagerNotesOpen(wo)
	case models.ActionAddUpdate:
		return wo.Status, updatableStatus(wo.Status) && wo.HasAssignedTeam()
	}
	return "", false
}

// EligibleActions evaluates the status and relationship rules for every
// action. Role module toggles are applied separately by the authorizer.
func EligibleActions(in CapabilityInput) models.Capabilities {
	wo := in.WorkOrder
	if wo == nil {
		return models.Capabilities{}
	}
	rel := in.Relationship
	status := wo.Status
	rejected := status == models.WorkOrderStatusRejectedByTechnician

	caps := models.Capabilities{
		Start:           status == models.WorkOrderStatusAssigned && rel.IsTeamMember,
		Complete:        status == models.WorkOrderStatusInProgress && rel.IsTeamMember,
		Approve:         status == models.WorkOrderStatusPendingSupervisorApproval && (rel.IsTeamMember || rel.IsAssignedToBuilding),
		Review:          status == models.WorkOrderStatusPendingEngineerReview && in.Roles.Has(models.RoleEngineer),
		Close:           status == models.WorkOrderStatusPendingReporterClosure && rel.IsReporter,
		Reject:          canRejectAtStage(in),
		Update:          rel.IsTeamMember && wo.HasAssignedTeam() && updatableStatus(status),
		Cancel:          rejected,
		ReturnToPending: rejected,
		FinalApprove:    in.CanFinalApprove && FinalApproveReady(wo),
		AddManagerNotes: in.CanFinalApprove && ManagerNotesOpen(wo),
	}

	switch status {
	case models.WorkOrderStatusRejectedByTechnician:
		caps.Reassign = true
	case models.WorkOrderStatusPending, models.WorkOrderStatusAssigned, models.WorkOrderStatusInProgress:
		caps.Reassign = in.CanManage
	}

	return caps
}

// canRejectAtStage grants reject to whoever may take the forward action of
// the current stage.
func canRejectAtStage(in CapabilityInput) bool {
	rel := in.Relationship
	switch in.WorkOrder.Status {
	case models.WorkOrderStatusAssigned, models.WorkOrderStatusInProgress:
		return rel.IsTeamMember
	case models.WorkOrderStatusPendingSupervisorApproval:
		return rel.IsTeamMember || rel.IsAssignedToBuilding
	case models.WorkOrderStatusPendingEngineerReview:
		return in.Roles.Has(models.RoleEngineer)
	case models.WorkOrderStatusPendingReporterClosure:
		return rel.IsReporter
	}
	return false
}

func updatableStatus(status models.WorkOrderStatus) bool {
	switch status {
	case models.WorkOrderStatusAssigned, models.WorkOrderStatusPending, models.WorkOrderStatusInProgress:
		return true
	}
	return false
}

// ApplyTransition returns a copy of the work order with the action's status
// change and stamps applied. The input is never modified.
func ApplyTransition(action models.WorkOrderAction, wo *models.WorkOrder, in TransitionInput) (*models.WorkOrder, error) {
	next, ok := NextStatus(action, wo)
	if !ok {
		return nil, ErrIllegalTransition
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	actor := in.ActorID
	notes := optionalString(in.Notes)

	out := wo.Clone()
	out.Status = next

	switch action {
	case models.ActionStartWork:
		out.StartTime = &now
		if out.AssignedTo == nil || *out.AssignedTo == "" {
			out.AssignedTo = &actor
		}
	case models.ActionCompleteWork:
		out.EndTime = &now
	case models.ActionApprove:
		out.SupervisorApprovedAt = &now
		out.SupervisorApprovedBy = &actor
		out.SupervisorApprovalNotes = notes
	case models.ActionReview:
		out.ReviewedAt = &now
		out.ReviewedBy = &actor
		out.ReviewNotes = notes
	case models.ActionClose:
		out.CustomerReviewedAt = &now
		out.CustomerReviewedBy = &actor
		out.CustomerFeedback = notes
	case models.ActionAutoClose:
		out.AutoClosedAt = &now
	case models.ActionReject:
		_, stage, _ := RejectDestination(wo.Status)
		out.RejectionReason = notes
		out.RejectStage = &stage
		out.RejectedAt = &now
		out.RejectedBy = &actor
		switch stage {
		case models.RejectStageSupervisor:
			out.EndTime = nil
		case models.RejectStageEngineer:
			out.SupervisorApprovedAt, out.SupervisorApprovedBy, out.SupervisorApprovalNotes = nil, nil, nil
		case models.RejectStageReporter:
			out.ReviewedAt, out.ReviewedBy, out.ReviewNotes = nil, nil, nil
		}
	case models.ActionReassign:
		team := in.TeamID
		out.AssignedTeamID = &team
		out.AssignedTo = optionalString(in.AssigneeID)
		out.AssignedAt = &now
		out.StartTime = nil
		out.EndTime = nil
		issue := strings.TrimSpace(in.IssueType)
		if issue != "" && issue != wo.IssueType {
			if out.OriginalIssueType == nil {
				original := wo.IssueType
				out.OriginalIssueType = &original
			}
			out.IssueType = issue
			out.IsRedirected = true
			out.RedirectedTo = &team
			out.RedirectedBy = &actor
			out.RedirectReason = notes
		}
	case models.ActionCancel:
		out.CancelledAt = &now
		out.CancelledBy = &actor
		out.RejectionReason = notes
	case models.ActionReturnToPending:
		out.AssignedTeamID = nil
		out.AssignedTo = nil
		out.AssignedAt = nil
		out.StartTime = nil
		out.EndTime = nil
	case models.ActionFinalApprove:
		out.MaintenanceManagerApprovedAt = &now
		out.MaintenanceManagerApprovedBy = &actor
		if notes != nil {
			out.MaintenanceManagerNotes = notes
		}
	case models.ActionAddManagerNotes:
		out.MaintenanceManagerNotes = notes
	}

	out.UpdatedAt = now
	return out, nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

package service

import (
	"fmt"

	"github.com/noah-isme/facility-workorder-api/internal/models"
	appErrors "github.com/noah-isme/facility-workorder-api/pkg/errors"
)

// WorkOrderAuthorizer is the single decision point for lifecycle actions. It
// ANDs state machine eligibility, role module toggles and permissions.
type WorkOrderAuthorizer struct{}

// NewWorkOrderAuthorizer constructs the authorizer.
func NewWorkOrderAuthorizer() *WorkOrderAuthorizer {
	return &WorkOrderAuthorizer{}
}

// Capabilities returns the caller's action bag for a work order.
//
// Close has no module toggle and is decided by the reporter relationship
// alone. Cancel and return-to-pending share the reassign toggle. Final
// approval and manager notes are driven by work_orders.final_approve.
func (a *WorkOrderAuthorizer) Capabilities(wo *models.WorkOrder, ac *ActorContext) models.Capabilities {
	if wo == nil || ac == nil || ac.System {
		return models.Capabilities{}
	}
	perms := ac.Permissions
	eligible := EligibleActions(CapabilityInput{
		WorkOrder:       wo,
		Roles:           ac.Roles,
		Relationship:    ac.Relationship,
		CanManage:       perms.HasAnyPermission(models.PermissionWorkOrdersApprove, models.PermissionWorkOrdersManage),
		CanFinalApprove: perms.HasPermission(models.PermissionWorkOrdersFinalApprove),
	})
	toggles := ac.RoleConfig.Modules.WorkOrders

	return models.Capabilities{
		Start:           eligible.Start && toggles.StartWork,
		Complete:        eligible.Complete && toggles.CompleteWork,
		Approve:         eligible.Approve && toggles.Approve,
		Review:          eligible.Review && toggles.ReviewAsEngineer,
		Close:           eligible.Close,
		Reject:          eligible.Reject && toggles.Reject,
		Reassign:        eligible.Reassign && toggles.Reassign,
		Update:          eligible.Update && toggles.Update,
		Cancel:          eligible.Cancel && toggles.Reassign,
		ReturnToPending: eligible.ReturnToPending && toggles.Reassign,
		FinalApprove:    eligible.FinalApprove,
		AddManagerNotes: eligible.AddManagerNotes,
	}
}

// Authorize returns nil when the caller may perform the action. A denial
// caused by a failed lookup is reported as a retryable dependency error.
func (a *WorkOrderAuthorizer) Authorize(action models.WorkOrderAction, wo *models.WorkOrder, ac *ActorContext) error {
	if ac == nil {
		return appErrors.Clone(appErrors.ErrDependency, "caller context unavailable")
	}
	if action == models.ActionAutoClose {
		if ac.System || ac.Permissions.HasPermission(models.PermissionWorkOrdersAutoClose) {
			return nil
		}
		return a.deny(action, ac)
	}
	if a.Capabilities(wo, ac).Allows(action) {
		return nil
	}
	return a.deny(action, ac)
}

func (a *WorkOrderAuthorizer) deny(action models.WorkOrderAction, ac *ActorContext) error {
	if ac.Degraded() {
		return appErrors.Wrap(a.cause(ac), appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "permissions unavailable, please retry")
	}
	return appErrors.Clone(appErrors.ErrAuthorization, fmt.Sprintf("not allowed to %s this work order", humanAction(action)))
}

func (a *WorkOrderAuthorizer) cause(ac *ActorContext) error {
	if ac.RolesErr != nil {
		return ac.RolesErr
	}
	return ac.Permissions.Err()
}

func humanAction(action models.WorkOrderAction) string {
	switch action {
	case models.ActionStartWork:
		return "start"
	case models.ActionCompleteWork:
		return "complete"
	case models.ActionAddManagerNotes:
		return "add manager notes to"
	case models.ActionAddUpdate:
		return "add updates to"
	case models.ActionReturnToPending:
		return "return"
	case models.ActionFinalApprove:
		return "final-approve"
	case models.ActionAutoClose:
		return "auto-close"
	}
	return string(action)
}

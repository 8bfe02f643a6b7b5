package models

import "time"

// WorkOrderStatus captures the lifecycle states of a work order.
type WorkOrderStatus string

const (
	WorkOrderStatusPending                   WorkOrderStatus = "pending"
	WorkOrderStatusAssigned                  WorkOrderStatus = "assigned"
	WorkOrderStatusInProgress                WorkOrderStatus = "in_progress"
	WorkOrderStatusPendingSupervisorApproval WorkOrderStatus = "pending_supervisor_approval"
	WorkOrderStatusPendingEngineerReview     WorkOrderStatus = "pending_engineer_review"
	WorkOrderStatusPendingReporterClosure    WorkOrderStatus = "pending_reporter_closure"
	WorkOrderStatusCompleted                 WorkOrderStatus = "completed"
	WorkOrderStatusAutoClosed                WorkOrderStatus = "auto_closed"
	WorkOrderStatusCancelled                 WorkOrderStatus = "cancelled"
	WorkOrderStatusRejectedByTechnician      WorkOrderStatus = "rejected_by_technician"
)

// Valid reports whether the status is a known lifecycle state.
func (s WorkOrderStatus) Valid() bool {
	switch s {
	case WorkOrderStatusPending,
		WorkOrderStatusAssigned,
		WorkOrderStatusInProgress,
		WorkOrderStatusPendingSupervisorApproval,
		WorkOrderStatusPendingEngineerReview,
		WorkOrderStatusPendingReporterClosure,
		WorkOrderStatusCompleted,
		WorkOrderStatusAutoClosed,
		WorkOrderStatusCancelled,
		WorkOrderStatusRejectedByTechnician:
		return true
	}
	return false
}

// WorkOrderPriority ranks urgency of a request.
type WorkOrderPriority string

const (
	PriorityLow    WorkOrderPriority = "low"
	PriorityMedium WorkOrderPriority = "medium"
	PriorityHigh   WorkOrderPriority = "high"
	PriorityUrgent WorkOrderPriority = "urgent"
)

// RejectStage identifies which approval step sent a work order back.
type RejectStage string

const (
	RejectStageTechnician RejectStage = "technician"
	RejectStageSupervisor RejectStage = "supervisor"
	RejectStageEngineer   RejectStage = "engineer"
	RejectStageReporter   RejectStage = "reporter"
)

// WorkOrderAction enumerates the lifecycle operations exposed to callers.
type WorkOrderAction string

const (
	ActionStartWork       WorkOrderAction = "start_work"
	ActionCompleteWork    WorkOrderAction = "complete_work"
	ActionApprove         WorkOrderAction = "approve"
	ActionReview          WorkOrderAction = "review"
	ActionClose           WorkOrderAction = "close"
	ActionFinalApprove    WorkOrderAction = "final_approve"
	ActionReject          WorkOrderAction = "reject"
	ActionAddManagerNotes WorkOrderAction = "add_manager_notes"
	ActionReassign        WorkOrderAction = "reassign"
	ActionCancel          WorkOrderAction = "cancel"
	ActionReturnToPending WorkOrderAction = "return_to_pending"
	ActionAddUpdate       WorkOrderAction = "add_update"
	ActionAutoClose       WorkOrderAction = "auto_close"
	ActionCreate          WorkOrderAction = "create"
)

// WorkOrder is a maintenance request tracked through the approval lifecycle.
type WorkOrder struct {
	ID         string            `db:"id" json:"id"`
	Code       string            `db:"code" json:"code"`
	HospitalID string            `db:"hospital_id" json:"hospitalId"`
	Title      string            `db:"title" json:"title"`
	IssueType  string            `db:"issue_type" json:"issueType"`
	WorkType   string            `db:"work_type" json:"workType"`
	Priority   WorkOrderPriority `db:"priority" json:"priority"`
	Status     WorkOrderStatus   `db:"status" json:"status"`

	Description *string `db:"description" json:"description,omitempty"`

	ReportedAt time.Time `db:"reported_at" json:"reportedAt"`
	ReportedBy string    `db:"reported_by" json:"reportedBy"`

	AssignedTeamID *string    `db:"assigned_team_id" json:"assignedTeamId,omitempty"`
	AssignedTo     *string    `db:"assigned_to" json:"assignedTo,omitempty"`
	AssignedAt     *time.Time `db:"assigned_at" json:"assignedAt,omitempty"`
	StartTime      *time.Time `db:"start_time" json:"startTime,omitempty"`
	EndTime        *time.Time `db:"end_time" json:"endTime,omitempty"`

	SupervisorApprovedAt    *time.Time `db:"supervisor_approved_at" json:"supervisorApprovedAt,omitempty"`
	SupervisorApprovedBy    *string    `db:"supervisor_approved_by" json:"supervisorApprovedBy,omitempty"`
	SupervisorApprovalNotes *string    `db:"supervisor_approval_notes" json:"supervisorApprovalNotes,omitempty"`

	ReviewedAt  *time.Time `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ReviewedBy  *string    `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewNotes *string    `db:"review_notes" json:"reviewNotes,omitempty"`

	CustomerReviewedAt *time.Time `db:"customer_reviewed_at" json:"customerReviewedAt,omitempty"`
	CustomerReviewedBy *string    `db:"customer_reviewed_by" json:"customerReviewedBy,omitempty"`
	CustomerFeedback   *string    `db:"customer_feedback" json:"customerFeedback,omitempty"`

	MaintenanceManagerApprovedAt *time.Time `db:"maintenance_manager_approved_at" json:"maintenanceManagerApprovedAt,omitempty"`
	MaintenanceManagerApprovedBy *string    `db:"maintenance_manager_approved_by" json:"maintenanceManagerApprovedBy,omitempty"`
	MaintenanceManagerNotes      *string    `db:"maintenance_manager_notes" json:"maintenanceManagerNotes,omitempty"`

	BuildingID   *string `db:"building_id" json:"buildingId,omitempty"`
	FloorID      *string `db:"floor_id" json:"floorId,omitempty"`
	DepartmentID *string `db:"department_id" json:"departmentId,omitempty"`
	RoomID       *string `db:"room_id" json:"roomId,omitempty"`

	RejectionReason *string      `db:"rejection_reason" json:"rejectionReason,omitempty"`
	RejectStage     *RejectStage `db:"reject_stage" json:"rejectStage,omitempty"`
	RejectedAt      *time.Time   `db:"rejected_at" json:"rejectedAt,omitempty"`
	RejectedBy      *string      `db:"rejected_by" json:"rejectedBy,omitempty"`

	IsRedirected      bool    `db:"is_redirected" json:"isRedirected"`
	RedirectedTo      *string `db:"redirected_to" json:"redirectedTo,omitempty"`
	RedirectedBy      *string `db:"redirected_by" json:"redirectedBy,omitempty"`
	RedirectReason    *string `db:"redirect_reason" json:"redirectReason,omitempty"`
	OriginalIssueType *string `db:"original_issue_type" json:"originalIssueType,omitempty"`

	CancelledAt  *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancelledBy  *string    `db:"cancelled_by" json:"cancelledBy,omitempty"`
	AutoClosedAt *time.Time `db:"auto_closed_at" json:"autoClosedAt,omitempty"`

	AssetID   *string `db:"asset_id" json:"assetId,omitempty"`
	CompanyID *string `db:"company_id" json:"companyId,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// HasAssignedTeam reports whether a team currently owns the work order.
func (w *WorkOrder) HasAssignedTeam() bool {
	return w != nil && w.AssignedTeamID != nil && *w.AssignedTeamID != ""
}

// Clone returns a shallow copy suitable for computing a transition without
// touching the caller's instance.
func (w *WorkOrder) Clone() *WorkOrder {
	if w == nil {
		return nil
	}
	c := *w
	return &c
}

// WorkOrderEvent is an append-only record of a lifecycle action.
type WorkOrderEvent struct {
	ID          string          `db:"id" json:"id"`
	WorkOrderID string          `db:"work_order_id" json:"workOrderId"`
	HospitalID  string          `db:"hospital_id" json:"hospitalId"`
	Action      WorkOrderAction `db:"action" json:"action"`
	FromStatus  WorkOrderStatus `db:"from_status" json:"fromStatus"`
	ToStatus    WorkOrderStatus `db:"to_status" json:"toStatus"`
	ActorID     string          `db:"actor_id" json:"actorId"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// WorkOrderUpdate is a progress note recorded by the assigned team.
type WorkOrderUpdate struct {
	ID          string    `db:"id" json:"id"`
	WorkOrderID string    `db:"work_order_id" json:"workOrderId"`
	HospitalID  string    `db:"hospital_id" json:"hospitalId"`
	AuthorID    string    `db:"author_id" json:"authorId"`
	Body        string    `db:"body" json:"body"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// WorkOrderFilter constrains listing queries. HospitalID is mandatory.
type WorkOrderFilter struct {
	HospitalID     string
	Status         []WorkOrderStatus
	AssignedTeamID string
	ReportedBy     string
	Priority       WorkOrderPriority
	Page           int
	PageSize       int
}

// Capabilities is the per-caller action bag used to gate the UI and
// re-validated server-side before every transition.
type Capabilities struct {
	Start           bool `json:"start"`
	Complete        bool `json:"complete"`
	Approve         bool `json:"approve"`
	Review          bool `json:"review"`
	Close           bool `json:"close"`
	Reject          bool `json:"reject"`
	Reassign        bool `json:"reassign"`
	Update          bool `json:"update"`
	Cancel          bool `json:"cancel"`
	ReturnToPending bool `json:"returnToPending"`
	FinalApprove    bool `json:"finalApprove"`
	AddManagerNotes bool `json:"addManagerNotes"`
}

// Allows maps an action onto its capability flag.
func (c Capabilities) Allows(action WorkOrderAction) bool {
	switch action {
	case ActionStartWork:
		return c.Start
	case ActionCompleteWork:
		return c.Complete
	case ActionApprove:
		return c.Approve
	case ActionReview:
		return c.Review
	case ActionClose:
		return c.Close
	case ActionReject:
		return c.Reject
	case ActionReassign:
		return c.Reassign
	case ActionAddUpdate:
		return c.Update
	case ActionCancel:
		return c.Cancel
	case ActionReturnToPending:
		return c.ReturnToPending
	case ActionFinalApprove:
		return c.FinalApprove
	case ActionAddManagerNotes:
		return c.AddManagerNotes
	}
	return false
}

// WorkOrderRelationship captures how the caller relates to a work order.
// Each flag is derived from an external lookup and defaults to false.
type WorkOrderRelationship struct {
	IsTeamMember         bool `json:"isTeamMember"`
	IsAssignedToBuilding bool `json:"isAssignedToBuilding"`
	IsReporter           bool `json:"isReporter"`
}

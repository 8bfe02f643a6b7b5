package dto

import "github.com/noah-isme/facility-workorder-api/internal/models"

// CreateWorkOrderRequest is the payload for reporting a new maintenance issue.
// Location fields are hierarchical: a room requires a department, which
// requires a floor, which requires a building.
type CreateWorkOrderRequest struct {
	Title        string                   `json:"title" validate:"required,max=200"`
	Description  string                   `json:"description" validate:"max=4000"`
	IssueType    string                   `json:"issueType" validate:"required,max=64"`
	WorkType     string                   `json:"workType" validate:"max=64"`
	Priority     models.WorkOrderPriority `json:"priority" validate:"required,oneof=low medium high urgent"`
	BuildingID   string                   `json:"buildingId" validate:"required_with=FloorID"`
	FloorID      string                   `json:"floorId" validate:"required_with=DepartmentID"`
	DepartmentID string                   `json:"departmentId" validate:"required_with=RoomID"`
	RoomID       string                   `json:"roomId"`
	AssetID      string                   `json:"assetId"`
	CompanyID    string                   `json:"companyId"`
}

// WorkOrderActionRequest carries the optional inputs of a lifecycle action.
// Notes are mandatory for reject, cancel and return-to-pending. RejectStage is
// a hint validated against the stage derived from the current status.
// ExpectedStatus lets a client assert the status it last rendered.
type WorkOrderActionRequest struct {
	Notes          string                 `json:"notes" validate:"max=2000"`
	RejectStage    models.RejectStage     `json:"rejectStage" validate:"omitempty,oneof=technician supervisor engineer reporter"`
	ExpectedStatus models.WorkOrderStatus `json:"expectedStatus"`
	TeamID         string                 `json:"teamId"`
	AssigneeID     string                 `json:"assigneeId"`
	IssueType      string                 `json:"issueType" validate:"max=64"`
}

// WorkOrderQuery mirrors supported listing filters.
type WorkOrderQuery struct {
	Status         []models.WorkOrderStatus
	AssignedTeamID string
	ReportedBy     string
	Priority       models.WorkOrderPriority
	Page           int
	PageSize       int
}

// WorkOrderView bundles a work order with the caller's action bag.
type WorkOrderView struct {
	WorkOrder    *models.WorkOrder            `json:"workOrder"`
	Capabilities models.Capabilities          `json:"capabilities"`
	Relationship models.WorkOrderRelationship `json:"relationship"`
	IsRejected   bool                         `json:"isRejectedByTechnician"`
}

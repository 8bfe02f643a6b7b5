package models

import "time"

// NotificationEvent names the lifecycle moment a team is notified about.
type NotificationEvent string

const (
	NotificationWorkOrderCreated    NotificationEvent = "work_order.created"
	NotificationWorkOrderReassigned NotificationEvent = "work_order.reassigned"
)

// Notification is the fire-and-forget payload addressed to a team.
type Notification struct {
	ID            string            `json:"id"`
	Event         NotificationEvent `json:"event"`
	HospitalID    string            `json:"hospitalId"`
	TeamID        string            `json:"teamId"`
	WorkOrderID   string            `json:"workOrderId"`
	WorkOrderCode string            `json:"workOrderCode"`
	Priority      WorkOrderPriority `json:"priority,omitempty"`
	ActorID       string            `json:"actorId"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

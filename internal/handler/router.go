package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/facility-workorder-api/internal/middleware"
	"github.com/noah-isme/facility-workorder-api/internal/models"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	WorkOrders  *WorkOrderHandler
	Permissions *PermissionHandler
	Metrics     *MetricsHandler
}

// Guards carries the collaborators of the authentication middleware chain.
type Guards struct {
	Tokens      middleware.TokenValidator
	Permissions middleware.PermissionResolver
	Audit       middleware.AuditWriter
}

// RegisterRoutes mounts probes at the root and the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, g Guards) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.Use(middleware.JWT(g.Tokens), middleware.HospitalScope())

	view := middleware.RequirePermission(g.Permissions, models.PermissionWorkOrdersView)

	workOrders := api.Group("/work-orders")
	workOrders.POST("", middleware.RequirePermission(g.Permissions, models.PermissionWorkOrdersCreate), h.WorkOrders.Create)
	workOrders.GET("", view, h.WorkOrders.List)
	workOrders.GET("/:id", view, h.WorkOrders.Get)
	workOrders.GET("/:id/history", view, h.WorkOrders.History)
	workOrders.GET("/:id/updates", view, h.WorkOrders.Updates)
	workOrders.POST("/:id/updates", h.WorkOrders.AddUpdate)

	// Lifecycle actions are authorized per work order by the action service.
	workOrders.POST("/:id/start", h.WorkOrders.Start)
	workOrders.POST("/:id/complete", h.WorkOrders.Complete)
	workOrders.POST("/:id/approve", h.WorkOrders.Approve)
	workOrders.POST("/:id/review", h.WorkOrders.Review)
	workOrders.POST("/:id/close", h.WorkOrders.Close)
	workOrders.POST("/:id/final-approve", h.WorkOrders.FinalApprove)
	workOrders.POST("/:id/reject", h.WorkOrders.Reject)
	workOrders.POST("/:id/manager-notes", h.WorkOrders.ManagerNotes)
	workOrders.POST("/:id/reassign", h.WorkOrders.Reassign)
	workOrders.POST("/:id/cancel", h.WorkOrders.Cancel)
	workOrders.POST("/:id/return-to-pending", h.WorkOrders.ReturnToPending)
	workOrders.POST("/:id/auto-close", h.WorkOrders.AutoClose)

	me := api.Group("/me/permissions")
	me.GET("", h.Permissions.Me)
	me.POST("/refresh", middleware.Audit(g.Audit, models.AuditActionPermissionRefresh, "permission"), h.Permissions.Refresh)
	me.GET("/check", h.Permissions.Check)

	api.GET("/metrics/summary", middleware.RequireAnyPermission(g.Permissions, models.PermissionWorkOrdersManage, models.PermissionWorkOrdersApprove), h.Metrics.Summary)
}

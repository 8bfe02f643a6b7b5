package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/facility-workorder-api/internal/dto"
	"github.com/noah-isme/facility-workorder-api/internal/models"
	appErrors "github.com/noah-isme/facility-workorder-api/pkg/errors"
	"github.com/noah-isme/facility-workorder-api/pkg/response"
)

type workOrderReader interface {
	Create(ctx context.Context, actor models.Actor, req dto.CreateWorkOrderRequest) (*models.WorkOrder, error)
	Get(ctx context.Context, actor models.Actor, id string) (*dto.WorkOrderView, error)
	List(ctx context.Context, actor models.Actor, query dto.WorkOrderQuery) ([]models.WorkOrder, *models.Pagination, error)
	History(ctx context.Context, actor models.Actor, id string) ([]models.WorkOrderEvent, error)
	Updates(ctx context.Context, actor models.Actor, id string) ([]models.WorkOrderUpdate, error)
}

type workOrderTransitioner interface {
	Perform(ctx context.Context, actor models.Actor, id string, action models.WorkOrderAction, req dto.WorkOrderActionRequest) (*models.WorkOrder, error)
	AddUpdate(ctx context.Context, actor models.Actor, id string, req dto.WorkOrderActionRequest) (*models.WorkOrderUpdate, error)
	AutoClose(ctx context.Context, actor models.Actor, id string) (*models.WorkOrder, error)
}

// WorkOrderHandler exposes work order endpoints.
type WorkOrderHandler struct {
	orders  workOrderReader
	actions workOrderTransitioner
}

// NewWorkOrderHandler constructs WorkOrderHandler.
func NewWorkOrderHandler(orders workOrderReader, actions workOrderTransitioner) *WorkOrderHandler {
	return &WorkOrderHandler{orders: orders, actions: actions}
}

// Create godoc
// @Summary Report a work order
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param X-Hospital-ID header string false "Active hospital"
// @Param payload body dto.CreateWorkOrderRequest true "Work order payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /work-orders [post]
func (h *WorkOrderHandler) Create(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	wo, err := h.orders.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, wo)
}

// List godoc
// @Summary List work orders
// @Tags WorkOrders
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param teamId query string false "Filter by assigned team"
// @Param reportedBy query string false "Filter by reporter"
// @Param priority query string false "Filter by priority"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /work-orders [get]
func (h *WorkOrderHandler) List(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.WorkOrderQuery
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if status := strings.TrimSpace(raw); status != "" {
			query.Status = append(query.Status, models.WorkOrderStatus(status))
		}
	}
	query.AssignedTeamID = c.Query("teamId")
	query.ReportedBy = c.Query("reportedBy")
	query.Priority = models.WorkOrderPriority(c.Query("priority"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.PageSize = size
	}

	items, pagination, err := h.orders.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a work order with the caller's capabilities
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /work-orders/{id} [get]
func (h *WorkOrderHandler) Get(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.orders.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// History godoc
// @Summary List lifecycle events of a work order
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order ID"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/history [get]
func (h *WorkOrderHandler) History(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	events, err := h.orders.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Updates godoc
// @Summary List progress notes of a work order
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order ID"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/updates [get]
func (h *WorkOrderHandler) Updates(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	updates, err := h.orders.Updates(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updates, nil)
}

// AddUpdate godoc
// @Summary Add a progress note
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.WorkOrderActionRequest true "Note in the notes field"
// @Success 201 {object} response.Envelope
// @Router /work-orders/{id}/updates [post]
func (h *WorkOrderHandler) AddUpdate(c *gin.Context) {
	actor, req, ok := h.bindAction(c)
	if !ok {
		return
	}
	update, err := h.actions.AddUpdate(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, update)
}

// Start godoc
// @Summary Start work
// @Tags WorkOrderActions
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.WorkOrderActionRequest false "Action payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /work-orders/{id}/start [post]
func (h *WorkOrderHandler) Start(c *gin.Context) {
	h.perform(c, models.ActionStartWork)
}

// Complete godoc
// @Summary Complete work
// @Tags WorkOrderActions
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.WorkOrderActionRequest false "Action payload"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/complete [post]
func (h *WorkOrderHandler) Complete(c *gin.Context) {
	h.perform(c, models.ActionCompleteWork)
}

// Approve godoc
// @Summary Approve as supervisor
// @Tags WorkOrderActions
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.WorkOrderActionRequest false "Action payload"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/approve [post]
func (h *WorkOrderHandler) Approve(c *gin.Context) {
	h.perform(c, models.ActionApprove)
}

// Review godoc
// @Summary Review as engineer
// @Tags WorkOrderActions
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.WorkOrderActionRequest false "Action payload"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/review [post]
func (h *WorkOrderHandler) Review(c *gin.Context) {
	h.perform(c, models.ActionReview)
}

// Close godoc
// @Summary Close as reporter
// @Tags WorkOrderActions
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.WorkOrderActionRequest false "Feedback in the notes field"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/close [post]
func (h *WorkOrderHandler) Close(c *gin.Context) {
	h.perform(c, models.ActionClose)
}

// FinalApprove godoc
// @Summary Final approval by the maintenance manager
// @Tags WorkOrderActions
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.WorkOrderActionRequest false "Action payload"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/final-approve [post]
func (h *WorkOrderHandler) FinalApprove(c *gin.Context) {
	h.perform(c, models.ActionFinalApprove)
}

// Reject godoc
// @Summary Reject to the previous stage
// @Tags WorkOrderActions
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.WorkOrderActionRequest true "Reason in the notes field"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /work-orders/{id}/reject [post]
func (h *WorkOrderHandler) Reject(c *gin.Context) {
	h.perform(c, models.ActionReject)
}

// ManagerNotes godoc
// @Summary Add maintenance manager notes
// @Tags WorkOrderActions
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.WorkOrderActionRequest true "Notes"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/manager-notes [post]
func (h *WorkOrderHandler) ManagerNotes(c *gin.Context) {
	h.perform(c, models.ActionAddManagerNotes)
}

// Reassign godoc
// @Summary Reassign to another team
// @Tags WorkOrderActions
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.WorkOrderActionRequest true "Target team in teamId"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/reassign [post]
func (h *WorkOrderHandler) Reassign(c *gin.Context) {
	h.perform(c, models.ActionReassign)
}

// Cancel godoc
// @Summary Cancel a rejected work order
// @Tags WorkOrderActions
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.WorkOrderActionRequest true "Reason in the notes field"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/cancel [post]
func (h *WorkOrderHandler) Cancel(c *gin.Context) {
	h.perform(c, models.ActionCancel)
}

// ReturnToPending godoc
// @Summary Return a rejected work order to the pending pool
// @Tags WorkOrderActions
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.WorkOrderActionRequest true "Reason in the notes field"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/return-to-pending [post]
func (h *WorkOrderHandler) ReturnToPending(c *gin.Context) {
	h.perform(c, models.ActionReturnToPending)
}

// AutoClose godoc
// @Summary Auto-close a work order awaiting reporter closure
// @Tags WorkOrderActions
// @Produce json
// @Param id path string true "Work order ID"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/auto-close [post]
func (h *WorkOrderHandler) AutoClose(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	wo, err := h.actions.AutoClose(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wo, nil)
}

func (h *WorkOrderHandler) perform(c *gin.Context, action models.WorkOrderAction) {
	actor, req, ok := h.bindAction(c)
	if !ok {
		return
	}
	wo, err := h.actions.Perform(c.Request.Context(), actor, c.Param("id"), action, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wo, nil)
}

// bindAction reads the optional action payload. An empty body is allowed.
func (h *WorkOrderHandler) bindAction(c *gin.Context) (models.Actor, dto.WorkOrderActionRequest, bool) {
	var req dto.WorkOrderActionRequest
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return actor, req, false
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return actor, req, false
		}
	}
	return actor, req, true
}

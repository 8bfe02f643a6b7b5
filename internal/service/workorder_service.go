package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-workorder-api/internal/dto"
	"github.com/noah-isme/facility-workorder-api/internal/models"
	appErrors "github.com/noah-isme/facility-workorder-api/pkg/errors"
)

const defaultCodePrefix = "WO"

// WorkOrderService handles reporting, lookup and listing of work orders.
type WorkOrderService struct {
	store      workOrderStore
	teams      teamRegistry
	loader     actorContextLoader
	authorizer *WorkOrderAuthorizer
	validator  *validator.Validate
	audit      auditLogger
	notifier   notifier
	logger     *zap.Logger
	codePrefix string
	now        func() time.Time
}

// WorkOrderServiceOption configures the work order service.
type WorkOrderServiceOption func(*WorkOrderService)

// WithWorkOrderAudit persists an audit entry for every created work order.
func WithWorkOrderAudit(audit auditLogger) WorkOrderServiceOption {
	return func(s *WorkOrderService) {
		s.audit = audit
	}
}

// WithWorkOrderNotifier notifies auto-assigned teams of new work orders.
func WithWorkOrderNotifier(n notifier) WorkOrderServiceOption {
	return func(s *WorkOrderService) {
		s.notifier = n
	}
}

// WithCodePrefix overrides the leading segment of generated codes.
func WithCodePrefix(prefix string) WorkOrderServiceOption {
	return func(s *WorkOrderService) {
		if p := strings.ToUpper(strings.TrimSpace(prefix)); p != "" {
			s.codePrefix = p
		}
	}
}

// WithWorkOrderClock overrides the time source.
func WithWorkOrderClock(now func() time.Time) WorkOrderServiceOption {
	return func(s *WorkOrderService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewWorkOrderService constructs the service.
func NewWorkOrderService(store workOrderStore, teams teamRegistry, loader actorContextLoader, validate *validator.Validate, logger *zap.Logger, opts ...WorkOrderServiceOption) *WorkOrderService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &WorkOrderService{
		store:      store,
		teams:      teams,
		loader:     loader,
		authorizer: NewWorkOrderAuthorizer(),
		validator:  validate,
		logger:     logger,
		codePrefix: defaultCodePrefix,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create reports a new work order. When a team is configured for the issue
// type the work order starts assigned to it; otherwise it waits as pending.
func (s *WorkOrderService) Create(ctx context.Context, actor models.Actor, req dto.CreateWorkOrderRequest) (*models.WorkOrder, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid work order payload")
	}
	if strings.TrimSpace(actor.HospitalID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "hospital scope is required")
	}

	now := s.now()
	hospitalCode, seq, err := s.store.NextCode(ctx, actor.HospitalID, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hospital not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to allocate work order code")
	}

	issueType := strings.TrimSpace(req.IssueType)
	wo := &models.WorkOrder{
		Code:         FormatWorkOrderCode(s.codePrefix, hospitalCode, now, seq),
		HospitalID:   actor.HospitalID,
		Title:        strings.TrimSpace(req.Title),
		Description:  optionalString(req.Description),
		IssueType:    issueType,
		WorkType:     strings.TrimSpace(req.WorkType),
		Priority:     req.Priority,
		Status:       models.WorkOrderStatusPending,
		ReportedAt:   now,
		ReportedBy:   actor.UserID,
		BuildingID:   optionalString(req.BuildingID),
		FloorID:      optionalString(req.FloorID),
		DepartmentID: optionalString(req.DepartmentID),
		RoomID:       optionalString(req.RoomID),
		AssetID:      optionalString(req.AssetID),
		CompanyID:    optionalString(req.CompanyID),
		CreatedAt:    now,
	}

	if teamID := s.resolveTeam(ctx, actor.HospitalID, issueType); teamID != "" {
		wo.AssignedTeamID = &teamID
		wo.AssignedAt = &now
		wo.Status = models.WorkOrderStatusAssigned
	}

	event := &models.WorkOrderEvent{
		HospitalID: wo.HospitalID,
		Action:     models.ActionCreate,
		ToStatus:   wo.Status,
		ActorID:    actor.UserID,
		CreatedAt:  now,
	}
	if err := s.store.Create(ctx, wo, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to create work order")
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionWorkOrderCreate, nil, wo)
	s.logger.Info("work order created",
		zap.String("work_order_id", wo.ID),
		zap.String("code", wo.Code),
		zap.String("status", string(wo.Status)))

	if wo.HasAssignedTeam() {
		notifyTeam(ctx, s.notifier, s.logger, models.NotificationWorkOrderCreated, wo, actor.UserID, now)
	}
	return wo, nil
}

// Get returns the work order with the caller's capabilities.
func (s *WorkOrderService) Get(ctx context.Context, actor models.Actor, id string) (*dto.WorkOrderView, error) {
	wo, err := loadWorkOrder(ctx, s.store, actor.HospitalID, id)
	if err != nil {
		return nil, err
	}
	ac := s.loader.Load(ctx, actor, wo)
	return &dto.WorkOrderView{
		WorkOrder:    wo,
		Capabilities: s.authorizer.Capabilities(wo, ac),
		Relationship: ac.Relationship,
		IsRejected:   wo.Status == models.WorkOrderStatusRejectedByTechnician,
	}, nil
}

// List returns a page of work orders in the caller's hospital.
func (s *WorkOrderService) List(ctx context.Context, actor models.Actor, query dto.WorkOrderQuery) ([]models.WorkOrder, *models.Pagination, error) {
	if strings.TrimSpace(actor.HospitalID) == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "hospital scope is required")
	}
	for _, status := range query.Status {
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
		}
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	items, total, err := s.store.List(ctx, models.WorkOrderFilter{
		HospitalID:     actor.HospitalID,
		Status:         query.Status,
		AssignedTeamID: strings.TrimSpace(query.AssignedTeamID),
		ReportedBy:     strings.TrimSpace(query.ReportedBy),
		Priority:       query.Priority,
		Page:           page,
		PageSize:       size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to list work orders")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// History returns the lifecycle events of a work order, oldest first.
func (s *WorkOrderService) History(ctx context.Context, actor models.Actor, id string) ([]models.WorkOrderEvent, error) {
	if _, err := loadWorkOrder(ctx, s.store, actor.HospitalID, id); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, actor.HospitalID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to load work order history")
	}
	return events, nil
}

// Updates returns the progress notes of a work order.
func (s *WorkOrderService) Updates(ctx context.Context, actor models.Actor, id string) ([]models.WorkOrderUpdate, error) {
	if _, err := loadWorkOrder(ctx, s.store, actor.HospitalID, id); err != nil {
		return nil, err
	}
	updates, err := s.store.ListUpdates(ctx, actor.HospitalID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to load work order updates")
	}
	return updates, nil
}

// resolveTeam looks up the distribution rule. A failed lookup leaves the
// work order pending for manual assignment.
func (s *WorkOrderService) resolveTeam(ctx context.Context, hospitalID, issueType string) string {
	return resolveDistributionTeam(ctx, s.teams, s.logger, hospitalID, issueType)
}

func resolveDistributionTeam(ctx context.Context, teams teamRegistry, logger *zap.Logger, hospitalID, issueType string) string {
	if teams == nil || issueType == "" {
		return ""
	}
	teamID, err := teams.ResolveTeamForIssueType(ctx, hospitalID, issueType)
	if err != nil {
		logger.Warn("team distribution lookup failed",
			zap.String("hospital_id", hospitalID),
			zap.String("issue_type", issueType),
			zap.Error(err))
		return ""
	}
	return strings.TrimSpace(teamID)
}

// FormatWorkOrderCode renders PREFIX-HOSPITAL-YYYYMMDD-NNNN.
func FormatWorkOrderCode(prefix, hospitalCode string, day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%s-%04d", prefix, strings.ToUpper(hospitalCode), day.Format("20060102"), seq)
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-workorder-api/internal/dto"
	"github.com/noah-isme/facility-workorder-api/internal/models"
	"github.com/noah-isme/facility-workorder-api/internal/repository"
	appErrors "github.com/noah-isme/facility-workorder-api/pkg/errors"
)

type workOrderStore interface {
	Create(ctx context.Context, wo *models.WorkOrder, event *models.WorkOrderEvent) error
	GetByID(ctx context.Context, hospitalID, id string) (*models.WorkOrder, error)
	List(ctx context.Context, filter models.WorkOrderFilter) ([]models.WorkOrder, int, error)
	ApplyTransition(ctx context.Context, params repository.TransitionParams) error
	AddUpdate(ctx context.Context, update *models.WorkOrderUpdate, expected models.WorkOrderStatus, event *models.WorkOrderEvent) error
	ListUpdates(ctx context.Context, hospitalID, workOrderID string) ([]models.WorkOrderUpdate, error)
	ListEvents(ctx context.Context, hospitalID, workOrderID string) ([]models.WorkOrderEvent, error)
	NextCode(ctx context.Context, hospitalID string, day time.Time) (string, int, error)
	ListAwaitingClosure(ctx context.Context, cutoff time.Time, limit int) ([]models.WorkOrder, error)
}

type teamRegistry interface {
	TeamExists(ctx context.Context, hospitalID, teamID string) (bool, error)
	ResolveTeamForIssueType(ctx context.Context, hospitalID, issueType string) (string, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type actorContextLoader interface {
	Load(ctx context.Context, actor models.Actor, wo *models.WorkOrder) *ActorContext
}

// WorkOrderActionService orchestrates lifecycle transitions.
type WorkOrderActionService struct {
	store      workOrderStore
	teams      teamRegistry
	loader     actorContextLoader
	authorizer *WorkOrderAuthorizer
	validator  *validator.Validate
	audit      auditLogger
	notifier   notifier
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// WorkOrderActionOption configures the action service.
type WorkOrderActionOption func(*WorkOrderActionService)

// WithActionAudit persists an audit entry for every successful action.
func WithActionAudit(audit auditLogger) WorkOrderActionOption {
	return func(s *WorkOrderActionService) {
		s.audit = audit
	}
}

// WithActionNotifier dispatches team notifications on reassignment.
func WithActionNotifier(n notifier) WorkOrderActionOption {
	return func(s *WorkOrderActionService) {
		s.notifier = n
	}
}

// WithActionMetrics records transition outcomes.
func WithActionMetrics(metrics *MetricsService) WorkOrderActionOption {
	return func(s *WorkOrderActionService) {
		s.metrics = metrics
	}
}

// WithActionClock overrides the time source.
func WithActionClock(now func() time.Time) WorkOrderActionOption {
	return func(s *WorkOrderActionService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewWorkOrderActionService constructs the service.
func NewWorkOrderActionService(store workOrderStore, teams teamRegistry, loader actorContextLoader, validate *validator.Validate, logger *zap.Logger, opts ...WorkOrderActionOption) *WorkOrderActionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &WorkOrderActionService{
		store:      store,
		teams:      teams,
		loader:     loader,
		authorizer: NewWorkOrderAuthorizer(),
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// StartWork moves an assigned work order into progress.
func (s *WorkOrderActionService) StartWork(ctx context.Context, actor models.Actor, id string, req dto.WorkOrderActionRequest) (*models.WorkOrder, error) {
	return s.Perform(ctx, actor, id, models.ActionStartWork, req)
}

// CompleteWork hands finished work to the supervisor.
func (s *WorkOrderActionService) CompleteWork(ctx context.Context, actor models.Actor, id string, req dto.WorkOrderActionRequest) (*models.WorkOrder, error) {
	return s.Perform(ctx, actor, id, models.ActionCompleteWork, req)
}

// ApproveAsSupervisor forwards completed work to engineering review.
func (s *WorkOrderActionService) ApproveAsSupervisor(ctx context.Context, actor models.Actor, id string, req dto.WorkOrderActionRequest) (*models.WorkOrder, error) {
	return s.Perform(ctx, actor, id, models.ActionApprove, req)
}

// ReviewAsEngineer forwards reviewed work to the reporter.
func (s *WorkOrderActionService) ReviewAsEngineer(ctx context.Context, actor models.Actor, id string, req dto.WorkOrderActionRequest) (*models.WorkOrder, error) {
	return s.Perform(ctx, actor, id, models.ActionReview, req)
}

// CloseAsReporter completes the work order on the reporter's confirmation.
func (s *WorkOrderActionService) CloseAsReporter(ctx context.Context, actor models.Actor, id string, req dto.WorkOrderActionRequest) (*models.WorkOrder, error) {
	return s.Perform(ctx, actor, id, models.ActionClose, req)
}

// FinalApprove records the maintenance manager's sign-off.
func (s *WorkOrderActionService) FinalApprove(ctx context.Context, actor models.Actor, id string, req dto.WorkOrderActionRequest) (*models.WorkOrder, error) {
	return s.Perform(ctx, actor, id, models.ActionFinalApprove, req)
}

// Reject returns the work order one stage back.
func (s *WorkOrderActionService) Reject(ctx context.Context, actor models.Actor, id string, req dto.WorkOrderActionRequest) (*models.WorkOrder, error) {
	return s.Perform(ctx, actor, id, models.ActionReject, req)
}

// AddManagerNotes stores maintenance manager notes.
func (s *WorkOrderActionService) AddManagerNotes(ctx context.Context, actor models.Actor, id string, req dto.WorkOrderActionRequest) (*models.WorkOrder, error) {
	return s.Perform(ctx, actor, id, models.ActionAddManagerNotes, req)
}

// Reassign hands the work order to another team.
func (s *WorkOrderActionService) Reassign(ctx context.Context, actor models.Actor, id string, req dto.WorkOrderActionRequest) (*models.WorkOrder, error) {
	return s.Perform(ctx, actor, id, models.ActionReassign, req)
}

// CancelWorkOrder terminates a work order the technician rejected.
func (s *WorkOrderActionService) CancelWorkOrder(ctx context.Context, actor models.Actor, id string, req dto.WorkOrderActionRequest) (*models.WorkOrder, error) {
	return s.Perform(ctx, actor, id, models.ActionCancel, req)
}

// ReturnToPending releases a rejected work order and offers it to the team
// distributed for its issue type, skipping the team that rejected it.
func (s *WorkOrderActionService) ReturnToPending(ctx context.Context, actor models.Actor, id string, req dto.WorkOrderActionRequest) (*models.WorkOrder, error) {
	return s.Perform(ctx, actor, id, models.ActionReturnToPending, req)
}

// AutoClose closes a work order whose reporter never responded.
func (s *WorkOrderActionService) AutoClose(ctx context.Context, actor models.Actor, id string) (*models.WorkOrder, error) {
	return s.Perform(ctx, actor, id, models.ActionAutoClose, dto.WorkOrderActionRequest{ExpectedStatus: models.WorkOrderStatusPendingReporterClosure})
}

// Perform runs one status-changing action end to end.
func (s *WorkOrderActionService) Perform(ctx context.Context, actor models.Actor, id string, action models.WorkOrderAction, req dto.WorkOrderActionRequest) (wo *models.WorkOrder, err error) {
	started := s.now()
	defer func() { s.metrics.RecordTransition(action, outcomeOf(err), s.now().Sub(started)) }()

	if action == models.ActionAddUpdate || action == models.ActionCreate {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported action %q", action))
	}
	if err := s.validateRequest(action, req); err != nil {
		return nil, err
	}

	current, err := s.load(ctx, actor.HospitalID, id)
	if err != nil {
		return nil, err
	}
	if err := checkEligibility(action, current, req); err != nil {
		return nil, err
	}

	ac := s.loader.Load(ctx, actor, current)
	if err := s.authorizer.Authorize(action, current, ac); err != nil {
		return nil, err
	}
	if action == models.ActionReassign {
		if err := s.ensureTeam(ctx, actor.HospitalID, strings.TrimSpace(req.TeamID)); err != nil {
			return nil, err
		}
	}

	now := s.now()
	next, err := ApplyTransition(action, current, TransitionInput{
		ActorID:    actor.UserID,
		Notes:      req.Notes,
		TeamID:     strings.TrimSpace(req.TeamID),
		AssigneeID: strings.TrimSpace(req.AssigneeID),
		IssueType:  req.IssueType,
		Now:        now,
	})
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "action is no longer available, please refresh")
	}

	event := &models.WorkOrderEvent{
		WorkOrderID: current.ID,
		HospitalID:  current.HospitalID,
		Action:      action,
		FromStatus:  current.Status,
		ToStatus:    next.Status,
		ActorID:     actor.UserID,
		Notes:       optionalString(req.Notes),
		CreatedAt:   now,
	}
	if err := s.store.ApplyTransition(ctx, repository.TransitionParams{WorkOrder: next, ExpectedStatus: current.Status, Event: event}); err != nil {
		if errors.Is(err, repository.ErrStaleWorkOrder) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to persist work order transition")
	}

	s.emitAudit(ctx, actor, models.AuditActionWorkOrderTransition, current, next)
	s.logger.Info("work order transitioned",
		zap.String("work_order_id", next.ID),
		zap.String("action", string(action)),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next.Status)),
		zap.String("actor_id", actor.UserID))

	switch action {
	case models.ActionReassign:
		s.notify(ctx, models.NotificationWorkOrderReassigned, next, actor.UserID)
	case models.ActionReturnToPending:
		next = s.redistribute(ctx, actor, next, current.AssignedTeamID)
	}
	return next, nil
}

// redistribute moves a work order that just returned to pending on to the
// team its issue type distributes to. Lookup or persistence failures leave it
// pending for manual assignment.
func (s *WorkOrderActionService) redistribute(ctx context.Context, actor models.Actor, pending *models.WorkOrder, rejectedBy *string) *models.WorkOrder {
	teamID := resolveDistributionTeam(ctx, s.teams, s.logger, pending.HospitalID, pending.IssueType)
	if teamID == "" || (rejectedBy != nil && *rejectedBy == teamID) {
		return pending
	}

	now := s.now()
	assigned, err := ApplyTransition(models.ActionReassign, pending, TransitionInput{
		ActorID: models.SystemActorID,
		TeamID:  teamID,
		Now:     now,
	})
	if err != nil {
		return pending
	}
	event := &models.WorkOrderEvent{
		WorkOrderID: pending.ID,
		HospitalID:  pending.HospitalID,
		Action:      models.ActionReassign,
		FromStatus:  pending.Status,
		ToStatus:    assigned.Status,
		ActorID:     models.SystemActorID,
		CreatedAt:   now,
	}
	if err := s.store.ApplyTransition(ctx, repository.TransitionParams{WorkOrder: assigned, ExpectedStatus: pending.Status, Event: event}); err != nil {
		s.logger.Warn("auto distribution not persisted",
			zap.String("work_order_id", pending.ID),
			zap.String("team_id", teamID),
			zap.Error(err))
		return pending
	}

	system := models.Actor{UserID: models.SystemActorID, HospitalID: pending.HospitalID, IPAddress: actor.IPAddress, UserAgent: actor.UserAgent, System: true}
	s.emitAudit(ctx, system, models.AuditActionWorkOrderTransition, pending, assigned)
	s.logger.Info("work order redistributed",
		zap.String("work_order_id", assigned.ID),
		zap.String("team_id", teamID))
	s.notify(ctx, models.NotificationWorkOrderReassigned, assigned, models.SystemActorID)
	return assigned
}

// AddUpdate records a progress note from the assigned team.
func (s *WorkOrderActionService) AddUpdate(ctx context.Context, actor models.Actor, id string, req dto.WorkOrderActionRequest) (update *models.WorkOrderUpdate, err error) {
	started := s.now()
	defer func() { s.metrics.RecordTransition(models.ActionAddUpdate, outcomeOf(err), s.now().Sub(started)) }()

	if err := s.validateRequest(models.ActionAddUpdate, req); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, actor.HospitalID, id)
	if err != nil {
		return nil, err
	}
	if err := checkEligibility(models.ActionAddUpdate, current, req); err != nil {
		return nil, err
	}
	ac := s.loader.Load(ctx, actor, current)
	if err := s.authorizer.Authorize(models.ActionAddUpdate, current, ac); err != nil {
		return nil, err
	}

	now := s.now()
	body := strings.TrimSpace(req.Notes)
	update = &models.WorkOrderUpdate{
		WorkOrderID: current.ID,
		HospitalID:  current.HospitalID,
		AuthorID:    actor.UserID,
		Body:        body,
		CreatedAt:   now,
	}
	event := &models.WorkOrderEvent{
		WorkOrderID: current.ID,
		HospitalID:  current.HospitalID,
		Action:      models.ActionAddUpdate,
		FromStatus:  current.Status,
		ToStatus:    current.Status,
		ActorID:     actor.UserID,
		Notes:       &body,
		CreatedAt:   now,
	}
	if err := s.store.AddUpdate(ctx, update, current.Status, event); err != nil {
		if errors.Is(err, repository.ErrStaleWorkOrder) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to store work order update")
	}
	return update, nil
}

// CloseExpired auto-closes work orders that waited in reporter closure since
// before the cutoff. Work orders that moved concurrently are skipped.
func (s *WorkOrderActionService) CloseExpired(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	candidates, err := s.store.ListAwaitingClosure(ctx, cutoff, limit)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to list work orders awaiting closure")
	}
	closed := 0
	for _, wo := range candidates {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		actor := models.Actor{UserID: models.SystemActorID, HospitalID: wo.HospitalID, UserAgent: "autoclose", System: true}
		if _, err := s.AutoClose(ctx, actor, wo.ID); err != nil {
			s.logger.Warn("auto close skipped", zap.String("work_order_id", wo.ID), zap.Error(err))
			continue
		}
		closed++
	}
	return closed, nil
}

func (s *WorkOrderActionService) load(ctx context.Context, hospitalID, id string) (*models.WorkOrder, error) {
	return loadWorkOrder(ctx, s.store, hospitalID, id)
}

func (s *WorkOrderActionService) ensureTeam(ctx context.Context, hospitalID, teamID string) error {
	if s.teams == nil {
		return nil
	}
	ok, err := s.teams.TeamExists(ctx, hospitalID, teamID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to verify team")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "team not found in this hospital")
	}
	return nil
}

func (s *WorkOrderActionService) notify(ctx context.Context, event models.NotificationEvent, wo *models.WorkOrder, actorID string) {
	notifyTeam(ctx, s.notifier, s.logger, event, wo, actorID, s.now())
}

func (s *WorkOrderActionService) emitAudit(ctx context.Context, actor models.Actor, action string, before, after *models.WorkOrder) {
	recordAudit(ctx, s.audit, s.logger, actor, action, before, after)
}

func loadWorkOrder(ctx context.Context, store workOrderStore, hospitalID, id string) (*models.WorkOrder, error) {
	if strings.TrimSpace(hospitalID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "hospital scope is required")
	}
	wo, err := store.GetByID(ctx, hospitalID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to load work order")
	}
	return wo, nil
}

// notifyTeam is best effort: failures are logged and never surface.
func notifyTeam(ctx context.Context, n notifier, logger *zap.Logger, event models.NotificationEvent, wo *models.WorkOrder, actorID string, now time.Time) {
	if n == nil || !wo.HasAssignedTeam() {
		return
	}
	err := n.Notify(ctx, models.Notification{
		Event:         event,
		HospitalID:    wo.HospitalID,
		TeamID:        *wo.AssignedTeamID,
		WorkOrderID:   wo.ID,
		WorkOrderCode: wo.Code,
		Priority:      wo.Priority,
		ActorID:       actorID,
		OccurredAt:    now,
	})
	if err != nil {
		logger.Warn("team notification failed",
			zap.String("work_order_id", wo.ID),
			zap.String("event", string(event)),
			zap.Error(err))
	}
}

func recordAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, actor models.Actor, action string, before, after *models.WorkOrder) {
	if audit == nil || after == nil {
		return
	}
	var oldValues, newValues []byte
	if before != nil {
		oldValues, _ = json.Marshal(before)
	}
	newValues, _ = json.Marshal(after)
	hospitalID := after.HospitalID
	userID := actor.UserID
	resourceID := after.ID
	entry := &models.AuditLog{
		HospitalID: &hospitalID,
		UserID:     &userID,
		Action:     action,
		Resource:   "work_order",
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	}
	if entry.IPAddress == "" {
		entry.IPAddress = "system"
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// validateRequest applies the payload tags, then the rules that depend on the
// action.
func (s *WorkOrderActionService) validateRequest(action models.WorkOrderAction, req dto.WorkOrderActionRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid action payload")
	}
	notes := strings.TrimSpace(req.Notes)
	switch action {
	case models.ActionReject, models.ActionCancel, models.ActionReturnToPending:
		if notes == "" {
			return appErrors.Clone(appErrors.ErrValidation, "notes are required")
		}
	case models.ActionAddManagerNotes, models.ActionAddUpdate:
		if notes == "" {
			return appErrors.Clone(appErrors.ErrValidation, "notes must not be empty")
		}
	case models.ActionReassign:
		if strings.TrimSpace(req.TeamID) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "teamId is required")
		}
	}
	if req.ExpectedStatus != "" && !req.ExpectedStatus.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown expectedStatus")
	}
	return nil
}

// checkEligibility rejects stale or out-of-order calls before any caller
// lookups are made.
func checkEligibility(action models.WorkOrderAction, wo *models.WorkOrder, req dto.WorkOrderActionRequest) error {
	if req.ExpectedStatus != "" && req.ExpectedStatus != wo.Status {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("work order is now %s, please refresh", wo.Status))
	}
	if _, ok := NextStatus(action, wo); !ok {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("cannot %s a work order in status %s", humanAction(action), wo.Status))
	}
	if action == models.ActionReject && req.RejectStage != "" {
		_, stage, _ := RejectDestination(wo.Status)
		if req.RejectStage != stage {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("rejectStage %s does not match current stage %s", req.RejectStage, stage))
		}
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case appErrors.HasCode(err, appErrors.ErrAuthorization.Code):
		return OutcomeUnauthorized
	case appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code):
		return OutcomePrecondition
	case appErrors.HasCode(err, appErrors.ErrValidation.Code), appErrors.HasCode(err, appErrors.ErrNotFound.Code):
		return OutcomeInvalid
	}
	return OutcomeError
}

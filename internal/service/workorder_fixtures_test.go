package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/facility-workorder-api/internal/models"
	"github.com/noah-isme/facility-workorder-api/internal/repository"
)

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

type workOrderStoreStub struct {
	mu           sync.Mutex
	orders       map[string]*models.WorkOrder
	created      []*models.WorkOrder
	events       []models.WorkOrderEvent
	updates      []models.WorkOrderUpdate
	awaiting     []models.WorkOrder
	lastFilter   models.WorkOrderFilter
	hospitalCode string
	seq          int
	codeErr      error
	getErr       error
	applyErr     error
	applyCalls   int
}

func newWorkOrderStoreStub(orders ...*models.WorkOrder) *workOrderStoreStub {
	s := &workOrderStoreStub{orders: map[string]*models.WorkOrder{}, hospitalCode: "RSUD"}
	for _, wo := range orders {
		s.orders[wo.ID] = wo.Clone()
	}
	return s
}

func (s *workOrderStoreStub) Create(ctx context.Context, wo *models.WorkOrder, event *models.WorkOrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wo.ID == "" {
		wo.ID = "wo-new"
	}
	s.created = append(s.created, wo.Clone())
	s.orders[wo.ID] = wo.Clone()
	if event != nil {
		event.WorkOrderID = wo.ID
		s.events = append(s.events, *event)
	}
	return nil
}

func (s *workOrderStoreStub) GetByID(ctx context.Context, hospitalID, id string) (*models.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	wo, ok := s.orders[id]
	if !ok || wo.HospitalID != hospitalID {
		return nil, sql.ErrNoRows
	}
	return wo.Clone(), nil
}

func (s *workOrderStoreStub) List(ctx context.Context, filter models.WorkOrderFilter) ([]models.WorkOrder, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	var out []models.WorkOrder
	for _, wo := range s.orders {
		if wo.HospitalID == filter.HospitalID {
			out = append(out, *wo)
		}
	}
	return out, len(out), nil
}

// ApplyTransition mirrors the conditional update of the SQL repository.
func (s *workOrderStoreStub) ApplyTransition(ctx context.Context, params repository.TransitionParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCalls++
	if s.applyErr != nil {
		return s.applyErr
	}
	current, ok := s.orders[params.WorkOrder.ID]
	if !ok || current.Status != params.ExpectedStatus || current.MaintenanceManagerApprovedAt != nil {
		return repository.ErrStaleWorkOrder
	}
	s.orders[params.WorkOrder.ID] = params.WorkOrder.Clone()
	if params.Event != nil {
		s.events = append(s.events, *params.Event)
	}
	return nil
}

func (s *workOrderStoreStub) AddUpdate(ctx context.Context, update *models.WorkOrderUpdate, expected models.WorkOrderStatus, event *models.WorkOrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[update.WorkOrderID]
	if !ok || current.Status != expected {
		return repository.ErrStaleWorkOrder
	}
	s.updates = append(s.updates, *update)
	if event != nil {
		s.events = append(s.events, *event)
	}
	return nil
}

func (s *workOrderStoreStub) ListUpdates(ctx context.Context, hospitalID, workOrderID string) ([]models.WorkOrderUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WorkOrderUpdate(nil), s.updates...), nil
}

func (s *workOrderStoreStub) ListEvents(ctx context.Context, hospitalID, workOrderID string) ([]models.WorkOrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WorkOrderEvent(nil), s.events...), nil
}

func (s *workOrderStoreStub) NextCode(ctx context.Context, hospitalID string, day time.Time) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codeErr != nil {
		return "", 0, s.codeErr
	}
	s.seq++
	return s.hospitalCode, s.seq, nil
}

func (s *workOrderStoreStub) ListAwaitingClosure(ctx context.Context, cutoff time.Time, limit int) ([]models.WorkOrder, error) {
	return s.awaiting, nil
}

func (s *workOrderStoreStub) get(id string) *models.WorkOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id].Clone()
}

func (s *workOrderStoreStub) put(wo *models.WorkOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[wo.ID] = wo.Clone()
}

type teamRegistryStub struct {
	teams        map[string]bool
	distribution map[string]string
	existsErr    error
	resolveErr   error
}

func (t *teamRegistryStub) TeamExists(ctx context.Context, hospitalID, teamID string) (bool, error) {
	if t.existsErr != nil {
		return false, t.existsErr
	}
	return t.teams[teamID], nil
}

func (t *teamRegistryStub) ResolveTeamForIssueType(ctx context.Context, hospitalID, issueType string) (string, error) {
	if t.resolveErr != nil {
		return "", t.resolveErr
	}
	return t.distribution[issueType], nil
}

// callerDirectoryStub answers role, permission and relationship lookups.
// team-1 and bld-1 are the only team and building it knows.
type callerDirectoryStub struct {
	roles       map[string][]string
	perms       map[string][]string
	members     map[string]bool
	supervisors map[string]bool
	rolesErr    error
	permErr     error
	teamErr     error
}

func newCallerDirectoryStub() *callerDirectoryStub {
	return &callerDirectoryStub{
		roles: map[string][]string{
			"tech-1":     {"technician"},
			"outsider":   {"technician"},
			"sup-1":      {"supervisor"},
			"eng-1":      {"eng"},
			"reporter-1": {"reporter"},
			"mgr-1":      {"maintenance_manager"},
		},
		perms: map[string][]string{
			"mgr-1": {
				models.PermissionWorkOrdersView,
				models.PermissionWorkOrdersManage,
				models.PermissionWorkOrdersFinalApprove,
			},
			"sup-1": {models.PermissionWorkOrdersApprove},
		},
		members:     map[string]bool{"tech-1": true},
		supervisors: map[string]bool{"sup-1": true},
	}
}

func (c *callerDirectoryStub) Resolve(ctx context.Context, userID, hospitalID string) *PermissionSet {
	if c.permErr != nil {
		return FailedPermissionSet(userID, hospitalID, c.permErr)
	}
	return NewPermissionSet(userID, hospitalID, c.perms[userID], nil)
}

func (c *callerDirectoryStub) Roles(ctx context.Context, userID, hospitalID string) (models.RoleSet, error) {
	if c.rolesErr != nil {
		return models.RoleSet{}, c.rolesErr
	}
	return NormalizeRoles(c.roles[userID]), nil
}

func (c *callerDirectoryStub) IsTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	if c.teamErr != nil {
		return false, c.teamErr
	}
	return teamID == "team-1" && c.members[userID], nil
}

func (c *callerDirectoryStub) IsBuildingSupervisor(ctx context.Context, hospitalID, buildingID, userID string) (bool, error) {
	if c.teamErr != nil {
		return false, c.teamErr
	}
	return buildingID == "bld-1" && c.supervisors[userID], nil
}

type workOrderAuditStub struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (a *workOrderAuditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
	return nil
}

type notifierStub struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *notifierStub) Notify(ctx context.Context, notification models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

type workOrderFixture struct {
	store    *workOrderStoreStub
	teams    *teamRegistryStub
	callers  *callerDirectoryStub
	audit    *workOrderAuditStub
	notifier *notifierStub
	actions  *WorkOrderActionService
	orders   *WorkOrderService
}

func newWorkOrderFixture(t *testing.T, seed ...*models.WorkOrder) *workOrderFixture {
	t.Helper()
	f := &workOrderFixture{
		store: newWorkOrderStoreStub(seed...),
		teams: &teamRegistryStub{
			teams:        map[string]bool{"team-1": true, "team-2": true},
			distribution: map[string]string{"plumbing": "team-1"},
		},
		callers:  newCallerDirectoryStub(),
		audit:    &workOrderAuditStub{},
		notifier: &notifierStub{},
	}
	loader := NewActorContextLoader(f.callers, f.callers, nil)
	clock := func() time.Time { return fixedNow }
	f.actions = NewWorkOrderActionService(f.store, f.teams, loader, validator.New(), nil,
		WithActionAudit(f.audit),
		WithActionNotifier(f.notifier),
		WithActionClock(clock),
	)
	f.orders = NewWorkOrderService(f.store, f.teams, loader, validator.New(), nil,
		WithWorkOrderAudit(f.audit),
		WithWorkOrderNotifier(f.notifier),
		WithWorkOrderClock(clock),
	)
	return f
}

func actorFor(userID string) models.Actor {
	return models.Actor{UserID: userID, HospitalID: "hosp-1", IPAddress: "10.0.0.1"}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-workorder-api/internal/dto"
	"github.com/noah-isme/facility-workorder-api/internal/models"
	appErrors "github.com/noah-isme/facility-workorder-api/pkg/errors"
)

func validCreateRequest() dto.CreateWorkOrderRequest {
	return dto.CreateWorkOrderRequest{
		Title:      "Leaking sink in ward 3",
		IssueType:  "plumbing",
		Priority:   models.PriorityHigh,
		BuildingID: "bld-1",
	}
}

func TestCreateAssignsDistributedTeam(t *testing.T) {
	f := newWorkOrderFixture(t)

	wo, err := f.orders.Create(context.Background(), actorFor("reporter-1"), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "WO-RSUD-20260310-0001", wo.Code)
	assert.Equal(t, models.WorkOrderStatusAssigned, wo.Status)
	require.NotNil(t, wo.AssignedTeamID)
	assert.Equal(t, "team-1", *wo.AssignedTeamID)
	assert.Equal(t, fixedNow, *wo.AssignedAt)
	assert.Equal(t, "reporter-1", wo.ReportedBy)

	require.Len(t, f.store.events, 1)
	assert.Equal(t, models.ActionCreate, f.store.events[0].Action)
	assert.Equal(t, models.WorkOrderStatusAssigned, f.store.events[0].ToStatus)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, models.NotificationWorkOrderCreated, f.notifier.sent[0].Event)
	assert.Equal(t, "team-1", f.notifier.sent[0].TeamID)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionWorkOrderCreate, f.audit.entries[0].Action)
	assert.Nil(t, f.audit.entries[0].OldValues)
}

func TestCreateWithoutDistributionStaysPending(t *testing.T) {
	f := newWorkOrderFixture(t)
	req := validCreateRequest()
	req.IssueType = "hvac"

	first, err := f.orders.Create(context.Background(), actorFor("reporter-1"), req)
	require.NoError(t, err)
	second, err := f.orders.Create(context.Background(), actorFor("reporter-1"), req)
	require.NoError(t, err)

	assert.Equal(t, models.WorkOrderStatusPending, first.Status)
	assert.Nil(t, first.AssignedTeamID)
	assert.Equal(t, "WO-RSUD-20260310-0002", second.Code)
	assert.Empty(t, f.notifier.sent)
}

func TestCreateFallsBackToPendingWhenDistributionFails(t *testing.T) {
	f := newWorkOrderFixture(t)
	f.teams.resolveErr = errors.New("timeout")

	wo, err := f.orders.Create(context.Background(), actorFor("reporter-1"), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderStatusPending, wo.Status)
}

func TestCreateValidatesPayload(t *testing.T) {
	f := newWorkOrderFixture(t)

	req := validCreateRequest()
	req.Title = ""
	_, err := f.orders.Create(context.Background(), actorFor("reporter-1"), req)
	requireCode(t, err, appErrors.ErrValidation)

	req = validCreateRequest()
	req.RoomID = "room-9"
	_, err = f.orders.Create(context.Background(), actorFor("reporter-1"), req)
	requireCode(t, err, appErrors.ErrValidation)

	assert.Empty(t, f.store.created)
}

func TestCreateUnknownHospital(t *testing.T) {
	f := newWorkOrderFixture(t)
	f.store.codeErr = sql.ErrNoRows

	_, err := f.orders.Create(context.Background(), actorFor("reporter-1"), validCreateRequest())
	requireCode(t, err, appErrors.ErrNotFound)
}

func TestGetIsScopedToHospital(t *testing.T) {
	f := newWorkOrderFixture(t, sampleWorkOrder(models.WorkOrderStatusAssigned))
	actor := actorFor("tech-1")
	actor.HospitalID = "hosp-2"

	_, err := f.orders.Get(context.Background(), actor, "wo-1")
	requireCode(t, err, appErrors.ErrNotFound)
}

func TestGetReportsRejectedFlag(t *testing.T) {
	f := newWorkOrderFixture(t, sampleWorkOrder(models.WorkOrderStatusRejectedByTechnician))

	view, err := f.orders.Get(context.Background(), actorFor("mgr-1"), "wo-1")
	require.NoError(t, err)
	assert.True(t, view.IsRejected)
	assert.True(t, view.Capabilities.Cancel)
	assert.True(t, view.Capabilities.ReturnToPending)
	assert.True(t, view.Capabilities.Reassign)
	assert.False(t, view.Capabilities.Start)
}

func TestListNormalizesPagination(t *testing.T) {
	f := newWorkOrderFixture(t, sampleWorkOrder(models.WorkOrderStatusAssigned))

	items, page, err := f.orders.List(context.Background(), actorFor("mgr-1"), dto.WorkOrderQuery{
		Status:   []models.WorkOrderStatus{models.WorkOrderStatusAssigned},
		PageSize: 500,
	})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 100, TotalCount: 1}, page)
	assert.Equal(t, "hosp-1", f.store.lastFilter.HospitalID)
	assert.Equal(t, 100, f.store.lastFilter.PageSize)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	f := newWorkOrderFixture(t)

	_, _, err := f.orders.List(context.Background(), actorFor("mgr-1"), dto.WorkOrderQuery{
		Status: []models.WorkOrderStatus{"archived"},
	})
	requireCode(t, err, appErrors.ErrValidation)
}

func TestFormatWorkOrderCode(t *testing.T) {
	day := time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "WO-RSCM-20260102-0042", FormatWorkOrderCode("WO", "rscm", day, 42))
	assert.Equal(t, "WO-RSCM-20260102-12345", FormatWorkOrderCode("WO", "RSCM", day, 12345))
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-workorder-api/internal/models"
)

var workOrderRowColumns = []string{
	"id", "code", "hospital_id", "title", "issue_type", "work_type", "priority", "status", "description",
	"reported_at", "reported_by", "assigned_team_id", "assigned_to", "assigned_at", "start_time", "end_time",
	"supervisor_approved_at", "supervisor_approved_by", "supervisor_approval_notes",
	"reviewed_at", "reviewed_by", "review_notes",
	"customer_reviewed_at", "customer_reviewed_by", "customer_feedback",
	"maintenance_manager_approved_at", "maintenance_manager_approved_by", "maintenance_manager_notes",
	"building_id", "floor_id", "department_id", "room_id",
	"rejection_reason", "reject_stage", "rejected_at", "rejected_by",
	"is_redirected", "redirected_to", "redirected_by", "redirect_reason", "original_issue_type",
	"cancelled_at", "cancelled_by", "auto_closed_at", "asset_id", "company_id", "created_at", "updated_at",
}

func workOrderRow(rows *sqlmock.Rows, id, status string, now time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, "WO-RSU-20240101-0001", "hosp-1", "Leaking pipe", "plumbing", "corrective", "high", status, nil,
		now, "reporter-1", "team-1", nil, now, nil, nil,
		nil, nil, nil,
		nil, nil, nil,
		nil, nil, nil,
		nil, nil, nil,
		"bld-1", nil, nil, nil,
		nil, nil, nil, nil,
		false, nil, nil, nil, nil,
		nil, nil, nil, nil, nil, now, now,
	)
}

func TestWorkOrderRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO work_orders")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO work_order_events")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	wo := &models.WorkOrder{Code: "WO-RSU-20240101-0001", HospitalID: "hosp-1", Title: "Leak", IssueType: "plumbing", Priority: models.PriorityHigh, Status: models.WorkOrderStatusPending, ReportedBy: "reporter-1"}
	event := &models.WorkOrderEvent{HospitalID: "hosp-1", Action: models.ActionCreate, ToStatus: models.WorkOrderStatusPending, ActorID: "reporter-1"}
	require.NoError(t, repo.Create(context.Background(), wo, event))
	assert.NotEmpty(t, wo.ID)
	assert.Equal(t, wo.ID, event.WorkOrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkOrderRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkOrderRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM work_orders WHERE id = $1 AND hospital_id = $2")).
		WithArgs("wo-1", "hosp-1").
		WillReturnRows(workOrderRow(sqlmock.NewRows(workOrderRowColumns), "wo-1", "assigned", now))

	wo, err := repo.GetByID(context.Background(), "hosp-1", "wo-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderStatusAssigned, wo.Status)
	require.NotNil(t, wo.AssignedTeamID)
	assert.Equal(t, "team-1", *wo.AssignedTeamID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkOrderRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkOrderRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM work_orders WHERE hospital_id = $1 AND status IN ($2,$3) AND assigned_team_id = $4")).
		WithArgs("hosp-1", "assigned", "in_progress", "team-1").
		WillReturnRows(workOrderRow(sqlmock.NewRows(workOrderRowColumns), "wo-1", "assigned", now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM work_orders WHERE hospital_id = $1")).
		WithArgs("hosp-1", "assigned", "in_progress", "team-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.WorkOrderFilter{
		HospitalID:     "hosp-1",
		Status:         []models.WorkOrderStatus{models.WorkOrderStatusAssigned, models.WorkOrderStatusInProgress},
		AssignedTeamID: "team-1",
	})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkOrderRepositoryApplyTransition(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE work_orders SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO work_order_events")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	wo := &models.WorkOrder{ID: "wo-1", HospitalID: "hosp-1", Status: models.WorkOrderStatusInProgress}
	err := repo.ApplyTransition(context.Background(), TransitionParams{
		WorkOrder:      wo,
		ExpectedStatus: models.WorkOrderStatusAssigned,
		Event:          &models.WorkOrderEvent{WorkOrderID: "wo-1", HospitalID: "hosp-1", Action: models.ActionStartWork},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkOrderRepositoryApplyTransitionStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("AND status = ")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	wo := &models.WorkOrder{ID: "wo-1", HospitalID: "hosp-1", Status: models.WorkOrderStatusInProgress}
	err := repo.ApplyTransition(context.Background(), TransitionParams{WorkOrder: wo, ExpectedStatus: models.WorkOrderStatusAssigned})
	assert.ErrorIs(t, err, ErrStaleWorkOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkOrderRepositoryAddUpdateStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE work_orders SET updated_at")).
		WithArgs(sqlmock.AnyArg(), "wo-1", "hosp-1", models.WorkOrderStatusInProgress).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.AddUpdate(context.Background(), &models.WorkOrderUpdate{WorkOrderID: "wo-1", HospitalID: "hosp-1", AuthorID: "tech-1", Body: "parts ordered"}, models.WorkOrderStatusInProgress, nil)
	assert.ErrorIs(t, err, ErrStaleWorkOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkOrderRepositoryNextCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkOrderRepository(db)

	day := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT code FROM hospitals WHERE id = $1")).
		WithArgs("hosp-1").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("RSU"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO work_order_sequences")).
		WithArgs("hosp-1", "2024-03-09").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(7))

	code, seq, err := repo.NextCode(context.Background(), "hosp-1", day)
	require.NoError(t, err)
	assert.Equal(t, "RSU", code)
	assert.Equal(t, 7, seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkOrderRepositoryListAwaitingClosure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkOrderRepository(db)

	now := time.Now()
	cutoff := now.Add(-72 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND reviewed_at IS NOT NULL AND reviewed_at < $2")).
		WithArgs(models.WorkOrderStatusPendingReporterClosure, cutoff).
		WillReturnRows(workOrderRow(sqlmock.NewRows(workOrderRowColumns), "wo-9", "pending_reporter_closure", now))

	items, err := repo.ListAwaitingClosure(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "wo-9", items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

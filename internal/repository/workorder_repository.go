package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/facility-workorder-api/internal/models"
)

// ErrStaleWorkOrder is returned when a conditional update matched no row
// because the work order left the expected status.
var ErrStaleWorkOrder = errors.New("work order status changed concurrently")

const workOrderColumns = `id, code, hospital_id, title, issue_type, work_type, priority, status, description,
       reported_at, reported_by, assigned_team_id, assigned_to, assigned_at, start_time, end_time,
       supervisor_approved_at, supervisor_approved_by, supervisor_approval_notes,
       reviewed_at, reviewed_by, review_notes,
       customer_reviewed_at, customer_reviewed_by, customer_feedback,
       maintenance_manager_approved_at, maintenance_manager_approved_by, maintenance_manager_notes,
       building_id, floor_id, department_id, room_id,
       rejection_reason, reject_stage, rejected_at, rejected_by,
       is_redirected, redirected_to, redirected_by, redirect_reason, original_issue_type,
       cancelled_at, cancelled_by, auto_closed_at, asset_id, company_id, created_at, updated_at`

// WorkOrderRepository persists work orders, their events and progress notes.
type WorkOrderRepository struct {
	db *sqlx.DB
}

// NewWorkOrderRepository constructs the repository.
func NewWorkOrderRepository(db *sqlx.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

// Create inserts a new work order together with its creation event.
func (r *WorkOrderRepository) Create(ctx context.Context, wo *models.WorkOrder, event *models.WorkOrderEvent) error {
	if wo.ID == "" {
		wo.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if wo.CreatedAt.IsZero() {
		wo.CreatedAt = now
	}
	if wo.ReportedAt.IsZero() {
		wo.ReportedAt = now
	}
	wo.UpdatedAt = now

	const query = `INSERT INTO work_orders
	(id, code, hospital_id, title, issue_type, work_type, priority, status, description, reported_at, reported_by,
	 assigned_team_id, assigned_at, building_id, floor_id, department_id, room_id, asset_id, company_id, created_at, updated_at)
	VALUES (:id, :code, :hospital_id, :title, :issue_type, :work_type, :priority, :status, :description, :reported_at, :reported_by,
	 :assigned_team_id, :assigned_at, :building_id, :floor_id, :department_id, :room_id, :asset_id, :company_id, :created_at, :updated_at)`

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, wo); err != nil {
			return fmt.Errorf("create work order: %w", err)
		}
		if event != nil {
			event.WorkOrderID = wo.ID
			if err := insertEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID fetches a work order scoped to a hospital.
func (r *WorkOrderRepository) GetByID(ctx context.Context, hospitalID, id string) (*models.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id = $1 AND hospital_id = $2`
	var wo models.WorkOrder
	if err := r.db.GetContext(ctx, &wo, query, id, hospitalID); err != nil {
		return nil, err
	}
	return &wo, nil
}

// List returns work orders matching the filter with the total count.
func (r *WorkOrderRepository) List(ctx context.Context, filter models.WorkOrderFilter) ([]models.WorkOrder, int, error) {
	args := []interface{}{filter.HospitalID}
	conditions := []string{"hospital_id = $1"}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AssignedTeamID != "" {
		args = append(args, filter.AssignedTeamID)
		conditions = append(conditions, fmt.Sprintf("assigned_team_id = $%d", len(args)))
	}
	if filter.ReportedBy != "" {
		args = append(args, filter.ReportedBy)
		conditions = append(conditions, fmt.Sprintf("reported_by = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s FROM work_orders%s ORDER BY reported_at DESC LIMIT %d OFFSET %d", workOrderColumns, where, pageSize, offset)
	var items []models.WorkOrder
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list work orders: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM work_orders"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count work orders: %w", err)
	}
	return items, total, nil
}

// TransitionParams describes a conditional lifecycle update.
type TransitionParams struct {
	WorkOrder      *models.WorkOrder
	ExpectedStatus models.WorkOrderStatus
	Event          *models.WorkOrderEvent
}

// ApplyTransition writes the lifecycle columns of the work order only when the
// stored row still has the expected status and has not been final-approved,
// then appends the event in the same transaction. ErrStaleWorkOrder is
// returned when the guard matches no row.
func (r *WorkOrderRepository) ApplyTransition(ctx context.Context, params TransitionParams) error {
	if params.WorkOrder == nil {
		return fmt.Errorf("apply transition: work order required")
	}
	wo := params.WorkOrder
	wo.UpdatedAt = time.Now().UTC()

	const query = `UPDATE work_orders SET
	status = :status, issue_type = :issue_type,
	assigned_team_id = :assigned_team_id, assigned_to = :assigned_to, assigned_at = :assigned_at,
	start_time = :start_time, end_time = :end_time,
	supervisor_approved_at = :supervisor_approved_at, supervisor_approved_by = :supervisor_approved_by, supervisor_approval_notes = :supervisor_approval_notes,
	reviewed_at = :reviewed_at, reviewed_by = :reviewed_by, review_notes = :review_notes,
	customer_reviewed_at = :customer_reviewed_at, customer_reviewed_by = :customer_reviewed_by, customer_feedback = :customer_feedback,
	maintenance_manager_approved_at = :maintenance_manager_approved_at, maintenance_manager_approved_by = :maintenance_manager_approved_by,
	maintenance_manager_notes = :maintenance_manager_notes,
	rejection_reason = :rejection_reason, reject_stage = :reject_stage, rejected_at = :rejected_at, rejected_by = :rejected_by,
	is_redirected = :is_redirected, redirected_to = :redirected_to, redirected_by = :redirected_by, redirect_reason = :redirect_reason,
	original_issue_type = :original_issue_type,
	cancelled_at = :cancelled_at, cancelled_by = :cancelled_by, auto_closed_at = :auto_closed_at,
	updated_at = :updated_at
	WHERE id = :id AND hospital_id = :hospital_id AND status = :expected_status AND maintenance_manager_approved_at IS NULL`

	arg, err := transitionArgs(wo, params.ExpectedStatus)
	if err != nil {
		return err
	}

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, query, arg)
		if err != nil {
			return fmt.Errorf("update work order status: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check work order update rows: %w", err)
		}
		if rows == 0 {
			return ErrStaleWorkOrder
		}
		if params.Event != nil {
			return insertEvent(ctx, tx, params.Event)
		}
		return nil
	})
}

// AddUpdate stores a progress note while asserting the work order is still in
// the expected status, recording an event alongside it.
func (r *WorkOrderRepository) AddUpdate(ctx context.Context, update *models.WorkOrderUpdate, expected models.WorkOrderStatus, event *models.WorkOrderEvent) error {
	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	if update.CreatedAt.IsZero() {
		update.CreatedAt = time.Now().UTC()
	}
	const touch = `UPDATE work_orders SET updated_at = $1 WHERE id = $2 AND hospital_id = $3 AND status = $4`
	const insert = `INSERT INTO work_order_updates (id, work_order_id, hospital_id, author_id, body, created_at)
	VALUES (:id, :work_order_id, :hospital_id, :author_id, :body, :created_at)`

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, touch, update.CreatedAt, update.WorkOrderID, update.HospitalID, expected)
		if err != nil {
			return fmt.Errorf("touch work order: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check work order touch rows: %w", err)
		}
		if rows == 0 {
			return ErrStaleWorkOrder
		}
		if _, err := tx.NamedExecContext(ctx, insert, update); err != nil {
			return fmt.Errorf("create work order update: %w", err)
		}
		if event != nil {
			return insertEvent(ctx, tx, event)
		}
		return nil
	})
}

// ListUpdates returns progress notes oldest first.
func (r *WorkOrderRepository) ListUpdates(ctx context.Context, hospitalID, workOrderID string) ([]models.WorkOrderUpdate, error) {
	const query = `SELECT id, work_order_id, hospital_id, author_id, body, created_at
	FROM work_order_updates WHERE work_order_id = $1 AND hospital_id = $2 ORDER BY created_at ASC`
	var updates []models.WorkOrderUpdate
	if err := r.db.SelectContext(ctx, &updates, query, workOrderID, hospitalID); err != nil {
		return nil, fmt.Errorf("list work order updates: %w", err)
	}
	return updates, nil
}

// ListEvents returns the transition history oldest first.
func (r *WorkOrderRepository) ListEvents(ctx context.Context, hospitalID, workOrderID string) ([]models.WorkOrderEvent, error) {
	const query = `SELECT id, work_order_id, hospital_id, action, from_status, to_status, actor_id, notes, created_at
	FROM work_order_events WHERE work_order_id = $1 AND hospital_id = $2 ORDER BY created_at ASC`
	var events []models.WorkOrderEvent
	if err := r.db.SelectContext(ctx, &events, query, workOrderID, hospitalID); err != nil {
		return nil, fmt.Errorf("list work order events: %w", err)
	}
	return events, nil
}

// NextCode reserves the next daily sequence number for a hospital and returns
// it with the hospital's short code.
func (r *WorkOrderRepository) NextCode(ctx context.Context, hospitalID string, day time.Time) (string, int, error) {
	var hospitalCode string
	if err := r.db.GetContext(ctx, &hospitalCode, `SELECT code FROM hospitals WHERE id = $1`, hospitalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", 0, err
		}
		return "", 0, fmt.Errorf("load hospital code: %w", err)
	}

	const query = `INSERT INTO work_order_sequences (hospital_id, day, last_value)
	VALUES ($1, $2, 1)
	ON CONFLICT (hospital_id, day) DO UPDATE SET last_value = work_order_sequences.last_value + 1
	RETURNING last_value`
	var seq int
	if err := r.db.GetContext(ctx, &seq, query, hospitalID, day.UTC().Format("2006-01-02")); err != nil {
		return "", 0, fmt.Errorf("next work order sequence: %w", err)
	}
	return hospitalCode, seq, nil
}

// ListAwaitingClosure returns work orders stuck in reporter closure since
// before the cutoff, across hospitals, for the auto-close sweep.
func (r *WorkOrderRepository) ListAwaitingClosure(ctx context.Context, cutoff time.Time, limit int) ([]models.WorkOrder, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM work_orders
	WHERE status = $1 AND reviewed_at IS NOT NULL AND reviewed_at < $2
	ORDER BY reviewed_at ASC LIMIT %d`, workOrderColumns, limit)
	var items []models.WorkOrder
	if err := r.db.SelectContext(ctx, &items, query, models.WorkOrderStatusPendingReporterClosure, cutoff); err != nil {
		return nil, fmt.Errorf("list work orders awaiting closure: %w", err)
	}
	return items, nil
}

func (r *WorkOrderRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin work order tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit work order tx: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sqlx.Tx, event *models.WorkOrderEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO work_order_events (id, work_order_id, hospital_id, action, from_status, to_status, actor_id, notes, created_at)
	VALUES (:id, :work_order_id, :hospital_id, :action, :from_status, :to_status, :actor_id, :notes, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create work order event: %w", err)
	}
	return nil
}

func transitionArgs(wo *models.WorkOrder, expected models.WorkOrderStatus) (map[string]interface{}, error) {
	if expected == "" {
		return nil, fmt.Errorf("apply transition: expected status required")
	}
	var rejectStage *string
	if wo.RejectStage != nil {
		s := string(*wo.RejectStage)
		rejectStage = &s
	}
	return map[string]interface{}{
		"id":                              wo.ID,
		"hospital_id":                     wo.HospitalID,
		"expected_status":                 string(expected),
		"status":                          string(wo.Status),
		"issue_type":                      wo.IssueType,
		"assigned_team_id":                wo.AssignedTeamID,
		"assigned_to":                     wo.AssignedTo,
		"assigned_at":                     wo.AssignedAt,
		"start_time":                      wo.StartTime,
		"end_time":                        wo.EndTime,
		"supervisor_approved_at":          wo.SupervisorApprovedAt,
		"supervisor_approved_by":          wo.SupervisorApprovedBy,
		"supervisor_approval_notes":       wo.SupervisorApprovalNotes,
		"reviewed_at":                     wo.ReviewedAt,
		"reviewed_by":                     wo.ReviewedBy,
		"review_notes":                    wo.ReviewNotes,
		"customer_reviewed_at":            wo.CustomerReviewedAt,
		"customer_reviewed_by":            wo.CustomerReviewedBy,
		"customer_feedback":               wo.CustomerFeedback,
		"maintenance_manager_approved_at": wo.MaintenanceManagerApprovedAt,
		"maintenance_manager_approved_by": wo.MaintenanceManagerApprovedBy,
		"maintenance_manager_notes":       wo.MaintenanceManagerNotes,
		"rejection_reason":                wo.RejectionReason,
		"reject_stage":                    rejectStage,
		"rejected_at":                     wo.RejectedAt,
		"rejected_by":                     wo.RejectedBy,
		"is_redirected":                   wo.IsRedirected,
		"redirected_to":                   wo.RedirectedTo,
		"redirected_by":                   wo.RedirectedBy,
		"redirect_reason":                 wo.RedirectReason,
		"original_issue_type":             wo.OriginalIssueType,
		"cancelled_at":                    wo.CancelledAt,
		"cancelled_by":                    wo.CancelledBy,
		"auto_closed_at":                  wo.AutoClosedAt,
		"updated_at":                      wo.UpdatedAt,
	}, nil
}

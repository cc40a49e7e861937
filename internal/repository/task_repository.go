package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/persistence"
)

// TaskFilter captures task search parameters.
type TaskFilter struct {
	TenantID   string
	ProductID  *string
	FeatureID  *string
	TicketID   *string
	AssigneeID *string
	Statuses   []domain.TaskStatus
	Types      []domain.TaskType
	Limit      int
	Offset     int
}

// TaskRepository encapsulates task and task-assignment persistence.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Task, error)
	GetByIssueKey(ctx context.Context, tenantID, key string) (*domain.Task, error)
	ListWithFilter(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Delete(ctx context.Context, tenantID, id string) error

	ListAssignments(ctx context.Context, taskID string) ([]domain.TaskAssignment, error)
	InsertAssignment(ctx context.Context, taskID, userID string) error
	DeleteAssignments(ctx context.Context, taskID string) error
}

type taskRepository struct {
	db *persistence.DB
}

// NewTaskRepository instantiates repository.
func NewTaskRepository(db *persistence.DB) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `id, tenant_id, product_id, feature_id, issue_key, title, description, type,
               status, priority, story_points, estimate_hours, actual_hours, due_date, labels,
               blocked_reason, severity, environment, implementor_id, developer_id, tester_id,
               module_id, component_id, addon_id, ticket_id, metadata,
               resolution, resolution_note, created_by, reporter_id, created_at, updated_at, closed_at`

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (id, tenant_id, product_id, feature_id, issue_key, title, description, type,
            status, priority, story_points, estimate_hours, actual_hours, due_date, labels,
            blocked_reason, severity, environment, implementor_id, developer_id, tester_id,
            module_id, component_id, addon_id, ticket_id, metadata, created_by, reporter_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
        RETURNING created_at, updated_at`
	return r.db.Querier(ctx).QueryRow(ctx, query,
		task.ID,
		task.TenantID,
		task.ProductID,
		task.FeatureID,
		task.IssueKey,
		task.Title,
		task.Description,
		task.Type,
		task.Status,
		task.Priority,
		task.StoryPoints,
		task.EstimateHours,
		task.ActualHours,
		task.DueDate,
		task.Labels,
		task.BlockedReason,
		task.Severity,
		task.Environment,
		task.ImplementorID,
		task.DeveloperID,
		task.TesterID,
		task.ModuleID,
		task.ComponentID,
		task.AddonID,
		task.TicketID,
		task.Metadata,
		task.CreatedBy,
		task.ReporterID,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	const query = `
        UPDATE tasks SET title=$1, description=$2, status=$3, priority=$4, story_points=$5,
            estimate_hours=$6, actual_hours=$7, due_date=$8, labels=$9, blocked_reason=$10,
            severity=$11, environment=$12, implementor_id=$13, developer_id=$14, tester_id=$15,
            module_id=$16, component_id=$17, addon_id=$18, metadata=$19,
            resolution=$20, resolution_note=$21, closed_at=$22, updated_at=NOW()
        WHERE tenant_id=$23 AND id=$24
        RETURNING updated_at`
	return r.db.Querier(ctx).QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.StoryPoints,
		task.EstimateHours,
		task.ActualHours,
		task.DueDate,
		task.Labels,
		task.BlockedReason,
		task.Severity,
		task.Environment,
		task.ImplementorID,
		task.DeveloperID,
		task.TesterID,
		task.ModuleID,
		task.ComponentID,
		task.AddonID,
		task.Metadata,
		task.Resolution,
		task.ResolutionNote,
		task.ClosedAt,
		task.TenantID,
		task.ID,
	).Scan(&task.UpdatedAt)
}

func (r *taskRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE tenant_id=$1 AND id=$2`
	return r.fetchSingle(ctx, query, tenantID, id)
}

func (r *taskRepository) GetByIssueKey(ctx context.Context, tenantID, key string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE tenant_id=$1 AND issue_key=$2`
	return r.fetchSingle(ctx, query, tenantID, key)
}

func (r *taskRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Task, error) {
	var task domain.Task
	if err := scanTask(r.db.Querier(ctx).QueryRow(ctx, query, args...), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) ListWithFilter(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	base := `SELECT ` + taskColumns + ` FROM tasks`
	args := []any{filter.TenantID}
	clauses := []string{"tenant_id=$1"}

	if filter.ProductID != nil {
		args = append(args, *filter.ProductID)
		clauses = append(clauses, fmt.Sprintf("product_id=$%d", len(args)))
	}
	if filter.FeatureID != nil {
		args = append(args, *filter.FeatureID)
		clauses = append(clauses, fmt.Sprintf("feature_id=$%d", len(args)))
	}
	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("ticket_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("id IN (SELECT task_id FROM task_assignments WHERE user_id=$%d)", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			args = append(args, t)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Task
	for rows.Next() {
		var task domain.Task
		if err := scanTask(rows, &task); err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, rows.Err()
}

func (r *taskRepository) Delete(ctx context.Context, tenantID, id string) error {
	cmd, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM tasks WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *taskRepository) ListAssignments(ctx context.Context, taskID string) ([]domain.TaskAssignment, error) {
	const query = `
        SELECT task_id, user_id, created_at
        FROM task_assignments WHERE task_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Querier(ctx).Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TaskAssignment
	for rows.Next() {
		var assignment domain.TaskAssignment
		if err := rows.Scan(&assignment.TaskID, &assignment.UserID, &assignment.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, assignment)
	}
	return result, rows.Err()
}

func (r *taskRepository) InsertAssignment(ctx context.Context, taskID, userID string) error {
	const query = `
        INSERT INTO task_assignments (task_id, user_id)
        VALUES ($1,$2) ON CONFLICT (task_id, user_id) DO NOTHING`
	_, err := r.db.Querier(ctx).Exec(ctx, query, taskID, userID)
	return err
}

func (r *taskRepository) DeleteAssignments(ctx context.Context, taskID string) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM task_assignments WHERE task_id=$1`, taskID)
	return err
}

func scanTask(row pgx.Row, task *domain.Task) error {
	return row.Scan(
		&task.ID,
		&task.TenantID,
		&task.ProductID,
		&task.FeatureID,
		&task.IssueKey,
		&task.Title,
		&task.Description,
		&task.Type,
		&task.Status,
		&task.Priority,
		&task.StoryPoints,
		&task.EstimateHours,
		&task.ActualHours,
		&task.DueDate,
		&task.Labels,
		&task.BlockedReason,
		&task.Severity,
		&task.Environment,
		&task.ImplementorID,
		&task.DeveloperID,
		&task.TesterID,
		&task.ModuleID,
		&task.ComponentID,
		&task.AddonID,
		&task.TicketID,
		&task.Metadata,
		&task.Resolution,
		&task.ResolutionNote,
		&task.CreatedBy,
		&task.ReporterID,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.ClosedAt,
	)
}

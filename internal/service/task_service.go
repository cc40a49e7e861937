package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tracker-service/internal/auth"
	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/events"
	"github.com/spec-kit/tracker-service/internal/keys"
	"github.com/spec-kit/tracker-service/internal/repository"
	apperrors "github.com/spec-kit/tracker-service/pkg/util"
)

// TaskService owns development-task creation, assignment and closure.
type TaskService struct {
	tasks      repository.TaskRepository
	tickets    repository.TicketRepository
	links      repository.LinkRepository
	products   repository.ProductRepository
	allocator  *keys.Allocator
	audit      *AuditRecorder
	dispatcher events.Dispatcher
	tx         repository.TxManager
	cache      TicketCache
}

// TaskDependencies bundles collaborators for the task service.
type TaskDependencies struct {
	TaskRepo    repository.TaskRepository
	TicketRepo  repository.TicketRepository
	LinkRepo    repository.LinkRepository
	ProductRepo repository.ProductRepository
	Allocator   *keys.Allocator
	Audit       *AuditRecorder
	Dispatcher  events.Dispatcher
	Tx          repository.TxManager
	Cache       TicketCache
}

// NewTaskService constructs the service.
func NewTaskService(deps TaskDependencies) *TaskService {
	return &TaskService{
		tasks:      deps.TaskRepo,
		tickets:    deps.TicketRepo,
		links:      deps.LinkRepo,
		products:   deps.ProductRepo,
		allocator:  deps.Allocator,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		tx:         deps.Tx,
		cache:      deps.Cache,
	}
}

// TaskCreateInput describes direct task creation.
type TaskCreateInput struct {
	FeatureID     string
	Title         string
	Description   string
	Type          domain.TaskType
	Priority      int
	StoryPoints   *int
	EstimateHours *float64
	DueDate       *time.Time
	Labels        []string
	Severity      *string
	Environment   *string
	ModuleID      *string
	ComponentID   *string
	AddonID       *string
	AssigneeIDs   []string
	Metadata      domain.Metadata
}

// SpawnTaskInput describes spawning a task from a support ticket. When any
// role id is supplied the role-based flow applies and all three are
// required; otherwise the legacy flow needs only a feature id.
type SpawnTaskInput struct {
	ImplementorID *string
	DeveloperID   *string
	TesterID      *string
	FeatureID     *string
	Type          domain.TaskType
	Title         string
	Description   string
	Severity      *string
	Environment   *string
	ModuleID      *string
	ComponentID   *string
	AddonID       *string
}

// TaskUpdateInput describes a partial task update. Metadata is merged by
// shallow key overwrite, never replaced.
type TaskUpdateInput struct {
	Title         *string
	Description   *string
	Status        *domain.TaskStatus
	Priority      *int
	StoryPoints   *int
	ClearPoints   bool
	EstimateHours *float64
	ActualHours   *float64
	DueDate       *time.Time
	Labels        []string
	BlockedReason *string
	Severity      *string
	Environment   *string
	ImplementorID *string
	DeveloperID   *string
	TesterID      *string
	ModuleID      *string
	ComponentID   *string
	AddonID       *string
	Metadata      domain.Metadata
}

// TaskListFilter describes listing filters.
type TaskListFilter struct {
	ProductID  *string
	FeatureID  *string
	TicketID   *string
	AssigneeID *string
	Statuses   []domain.TaskStatus
	Types      []domain.TaskType
	Limit      int
	Offset     int
}

// Create builds a task directly against a feature, resolving the owning
// product through the feature -> epic -> product walk.
func (s *TaskService) Create(ctx context.Context, principal *auth.Principal, input TaskCreateInput) (*domain.Task, error) {
	if !principal.Internal {
		return nil, apperrors.NewForbidden("task creation requires internal staff")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	if input.FeatureID == "" {
		return nil, apperrors.NewValidationError("feature_id required", nil)
	}
	taskType := input.Type
	if taskType == "" {
		taskType = domain.TaskTypeTask
	}
	if taskType != domain.TaskTypeTask && taskType != domain.TaskTypeBug {
		return nil, apperrors.NewValidationError("unknown task type", map[string]any{"type": string(taskType)})
	}
	if !domain.ValidStoryPoints(input.StoryPoints) {
		return nil, storyPointsError(input.StoryPoints)
	}

	productID, err := s.resolveProductOfFeature(ctx, principal.TenantID, input.FeatureID)
	if err != nil {
		return nil, err
	}

	severity := input.Severity
	environment := input.Environment
	if taskType == domain.TaskTypeBug {
		if severity == nil {
			defaultSeverity := domain.DefaultBugSeverity
			severity = &defaultSeverity
		}
	} else if severity != nil || environment != nil {
		return nil, apperrors.NewValidationError("severity and environment apply to bug tasks only", nil)
	}

	priority := input.Priority
	if priority == 0 {
		priority = domain.DefaultPriority
	}

	allocation, err := s.allocator.AllocateProductScoped(ctx, principal.TenantID, productID, taskEntityKind(taskType))
	if err != nil {
		return nil, err
	}

	featureID := input.FeatureID
	task := &domain.Task{
		ID:            allocation.ID,
		TenantID:      principal.TenantID,
		ProductID:     productID,
		FeatureID:     &featureID,
		IssueKey:      allocation.Key,
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		Type:          taskType,
		Status:        domain.TaskStatusTodo,
		Priority:      priority,
		StoryPoints:   input.StoryPoints,
		EstimateHours: input.EstimateHours,
		DueDate:       input.DueDate,
		Labels:        input.Labels,
		Severity:      severity,
		Environment:   environment,
		ModuleID:      input.ModuleID,
		ComponentID:   input.ComponentID,
		AddonID:       input.AddonID,
		Metadata:      input.Metadata,
		CreatedBy:     principal.UserID,
		ReporterID:    principal.UserID,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tasks.Create(ctx, task); err != nil {
			return err
		}
		for _, userID := range input.AssigneeIDs {
			if err := s.tasks.InsertAssignment(ctx, task.ID, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, principal, events.EventTaskCreated, task.ID, events.TaskCreatedPayload{
		IssueKey: task.IssueKey,
		Type:     task.Type,
		Title:    task.Title,
	})
	return task, nil
}

// Spawn creates a task from a support ticket. The role-based flow also
// reassigns the ticket to the implementor and forces it into in_progress;
// task, link and ticket mutation commit together or not at all.
func (s *TaskService) Spawn(ctx context.Context, principal *auth.Principal, ticketIDOrKey string, input SpawnTaskInput) (*domain.Task, error) {
	if !principal.Internal {
		return nil, apperrors.NewForbidden("spawning tasks requires internal staff")
	}
	ticket, err := s.resolveTicket(ctx, principal.TenantID, ticketIDOrKey)
	if err != nil {
		return nil, err
	}

	roleBased := input.ImplementorID != nil || input.DeveloperID != nil || input.TesterID != nil
	if roleBased {
		if input.ImplementorID == nil || input.DeveloperID == nil || input.TesterID == nil {
			return nil, apperrors.NewValidationError("implementor_id, developer_id and tester_id are all required", nil)
		}
	} else if input.FeatureID == nil || *input.FeatureID == "" {
		return nil, apperrors.NewValidationError("feature_id required", nil)
	}
	if input.FeatureID != nil && *input.FeatureID != "" {
		if _, err := s.products.GetFeature(ctx, principal.TenantID, *input.FeatureID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("feature", map[string]any{"feature_id": *input.FeatureID})
			}
			return nil, err
		}
	}

	taskType := input.Type
	if taskType == "" {
		taskType = domain.TaskTypeTask
	}
	if taskType != domain.TaskTypeTask && taskType != domain.TaskTypeBug {
		return nil, apperrors.NewValidationError("unknown task type", map[string]any{"type": string(taskType)})
	}

	severity := input.Severity
	environment := input.Environment
	if taskType == domain.TaskTypeBug {
		if severity == nil {
			defaultSeverity := domain.DefaultBugSeverity
			severity = &defaultSeverity
		}
	} else if severity != nil || environment != nil {
		return nil, apperrors.NewValidationError("severity and environment apply to bug tasks only", nil)
	}

	allocation, err := s.allocator.AllocateProductScoped(ctx, principal.TenantID, ticket.ProductID, taskEntityKind(taskType))
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = ticket.Title
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = ticket.Description
	}

	ticketID := ticket.ID
	task := &domain.Task{
		ID:            allocation.ID,
		TenantID:      principal.TenantID,
		ProductID:     ticket.ProductID,
		FeatureID:     input.FeatureID,
		IssueKey:      allocation.Key,
		Title:         title,
		Description:   description,
		Type:          taskType,
		Status:        domain.TaskStatusTodo,
		Priority:      ticket.EffectivePriority(),
		Labels:        ticket.Labels,
		Severity:      severity,
		Environment:   environment,
		ImplementorID: input.ImplementorID,
		DeveloperID:   input.DeveloperID,
		TesterID:      input.TesterID,
		ModuleID:      input.ModuleID,
		ComponentID:   input.ComponentID,
		AddonID:       input.AddonID,
		TicketID:      &ticketID,
		CreatedBy:     principal.UserID,
		ReporterID:    ticket.ReporterID,
	}
	link := &domain.TicketTaskLink{
		ID:       uuid.NewString(),
		TenantID: principal.TenantID,
		TicketID: ticket.ID,
		TaskID:   task.ID,
	}

	oldStatus := ticket.Status
	oldAssignee := ticket.AssignedTo

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tasks.Create(ctx, task); err != nil {
			return err
		}
		if err := s.links.CreateTicketTaskLink(ctx, link); err != nil {
			return err
		}
		if roleBased {
			for _, userID := range roleAssignees(task) {
				if err := s.tasks.InsertAssignment(ctx, task.ID, userID); err != nil {
					return err
				}
			}
			ticket.AssignedTo = input.ImplementorID
			ticket.Status = domain.TicketStatusInProgress
			if err := s.tickets.Update(ctx, ticket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Restore the in-memory ticket so callers never observe the
		// rolled-back mutation.
		ticket.Status = oldStatus
		ticket.AssignedTo = oldAssignee
		return nil, err
	}

	if roleBased {
		if s.cache != nil {
			s.cache.Invalidate(ctx, ticket.TenantID, ticket.ID)
		}
		if oldStatus != ticket.Status {
			oldVal, newVal := string(oldStatus), string(ticket.Status)
			s.audit.Record(ctx, ticket.TenantID, ticket.ID, domain.ClassifyStatusChange(oldStatus, ticket.Status), principal.UserID, &oldVal, &newVal, map[string]any{"task_id": task.ID})
		}
		if !equalPtr(oldAssignee, ticket.AssignedTo) {
			s.audit.Record(ctx, ticket.TenantID, ticket.ID, domain.AuditAssigned, principal.UserID, oldAssignee, ticket.AssignedTo, map[string]any{"task_id": task.ID})
		}
	}
	s.publish(ctx, principal, events.EventTaskSpawned, task.ID, events.TaskSpawnedPayload{
		TicketID:      ticket.ID,
		TaskIssueKey:  task.IssueKey,
		ImplementorID: input.ImplementorID,
	})
	return task, nil
}

// Get resolves a task by opaque id or issue key.
func (s *TaskService) Get(ctx context.Context, principal *auth.Principal, idOrKey string) (*domain.Task, error) {
	return s.resolveTask(ctx, principal.TenantID, idOrKey)
}

// List returns tasks matching the filter.
func (s *TaskService) List(ctx context.Context, principal *auth.Principal, filter TaskListFilter) ([]domain.Task, error) {
	return s.tasks.ListWithFilter(ctx, repository.TaskFilter{
		TenantID:   principal.TenantID,
		ProductID:  filter.ProductID,
		FeatureID:  filter.FeatureID,
		TicketID:   filter.TicketID,
		AssigneeID: filter.AssigneeID,
		Statuses:   filter.Statuses,
		Types:      filter.Types,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// Update applies a field-level partial update.
func (s *TaskService) Update(ctx context.Context, principal *auth.Principal, idOrKey string, input TaskUpdateInput) (*domain.Task, error) {
	task, err := s.resolveTask(ctx, principal.TenantID, idOrKey)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssigned(ctx, principal, task); err != nil {
		return nil, err
	}

	if input.Status != nil && *input.Status != task.Status {
		if !domain.ValidTaskTransition(task.Status, *input.Status) {
			return nil, apperrors.NewValidationError("invalid status transition", map[string]any{
				"from": string(task.Status),
				"to":   string(*input.Status),
			})
		}
		task.Status = *input.Status
	}
	if task.Status != domain.TaskStatusBlocked {
		task.BlockedReason = nil
	}
	if input.BlockedReason != nil && task.Status == domain.TaskStatusBlocked {
		task.BlockedReason = input.BlockedReason
	}

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, apperrors.NewValidationError("title cannot be empty", nil)
		}
		task.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
	}
	if input.Priority != nil {
		if _, err := normalizeLevel(*input.Priority, "priority"); err != nil {
			return nil, err
		}
		task.Priority = *input.Priority
	}
	if input.ClearPoints {
		task.StoryPoints = nil
	} else if input.StoryPoints != nil {
		if !domain.ValidStoryPoints(input.StoryPoints) {
			return nil, storyPointsError(input.StoryPoints)
		}
		task.StoryPoints = input.StoryPoints
	}
	if input.EstimateHours != nil {
		task.EstimateHours = input.EstimateHours
	}
	if input.ActualHours != nil {
		task.ActualHours = input.ActualHours
	}
	if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.Labels != nil {
		task.Labels = input.Labels
	}
	if task.Type == domain.TaskTypeBug {
		if input.Severity != nil {
			task.Severity = input.Severity
		}
		if input.Environment != nil {
			task.Environment = input.Environment
		}
	} else if input.Severity != nil || input.Environment != nil {
		return nil, apperrors.NewValidationError("severity and environment apply to bug tasks only", nil)
	}
	if input.ImplementorID != nil {
		task.ImplementorID = input.ImplementorID
	}
	if input.DeveloperID != nil {
		task.DeveloperID = input.DeveloperID
	}
	if input.TesterID != nil {
		task.TesterID = input.TesterID
	}
	if input.ModuleID != nil {
		task.ModuleID = input.ModuleID
	}
	if input.ComponentID != nil {
		task.ComponentID = input.ComponentID
	}
	if input.AddonID != nil {
		task.AddonID = input.AddonID
	}
	if input.Metadata != nil {
		task.Metadata = task.Metadata.Merge(input.Metadata)
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// SetStoryPoints validates against the Fibonacci set and persists. A nil
// value clears the estimate.
func (s *TaskService) SetStoryPoints(ctx context.Context, principal *auth.Principal, idOrKey string, points *int) (*domain.Task, error) {
	task, err := s.resolveTask(ctx, principal.TenantID, idOrKey)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssigned(ctx, principal, task); err != nil {
		return nil, err
	}
	if !domain.ValidStoryPoints(points) {
		return nil, storyPointsError(points)
	}
	task.StoryPoints = points
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ReplaceAssignments swaps the assignment set all-or-nothing.
func (s *TaskService) ReplaceAssignments(ctx context.Context, principal *auth.Principal, idOrKey string, userIDs []string) ([]domain.TaskAssignment, error) {
	if !principal.Internal {
		return nil, apperrors.NewForbidden("assignment changes require internal staff")
	}
	task, err := s.resolveTask(ctx, principal.TenantID, idOrKey)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tasks.DeleteAssignments(ctx, task.ID); err != nil {
			return err
		}
		for _, userID := range userIDs {
			if err := s.tasks.InsertAssignment(ctx, task.ID, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.tasks.ListAssignments(ctx, task.ID)
}

// Close finishes a task with a resolution code, merging any supplied
// metadata. Status, resolution and timestamps are stamped together.
func (s *TaskService) Close(ctx context.Context, principal *auth.Principal, idOrKey string, resolution domain.TaskResolution, note *string, metadata domain.Metadata) (*domain.Task, error) {
	if !domain.ValidTaskResolution(resolution) {
		return nil, apperrors.NewValidationError("unknown resolution code", map[string]any{"resolution": string(resolution)})
	}
	task, err := s.resolveTask(ctx, principal.TenantID, idOrKey)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssigned(ctx, principal, task); err != nil {
		return nil, err
	}
	if task.Status == domain.TaskStatusDone {
		return nil, apperrors.NewValidationError("task already closed", nil)
	}

	now := time.Now()
	task.Status = domain.TaskStatusDone
	task.Resolution = &resolution
	task.ResolutionNote = note
	task.ClosedAt = &now
	task.BlockedReason = nil
	if metadata != nil {
		task.Metadata = task.Metadata.Merge(metadata)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.tasks.Update(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, principal, events.EventTaskClosed, task.ID, events.TaskClosedPayload{
		Resolution: resolution,
	})
	return task, nil
}

// Delete removes a task, cascading its assignment and ticket-link rows first.
func (s *TaskService) Delete(ctx context.Context, principal *auth.Principal, idOrKey string) error {
	if !principal.Internal {
		return apperrors.NewForbidden("task deletion requires internal staff")
	}
	task, err := s.resolveTask(ctx, principal.TenantID, idOrKey)
	if err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tasks.DeleteAssignments(ctx, task.ID); err != nil {
			return err
		}
		if err := s.links.DeleteTicketTaskLinksByTask(ctx, task.TenantID, task.ID); err != nil {
			return err
		}
		return s.tasks.Delete(ctx, task.TenantID, task.ID)
	})
}

// Assignments returns the assignment set for a task.
func (s *TaskService) Assignments(ctx context.Context, principal *auth.Principal, idOrKey string) ([]domain.TaskAssignment, error) {
	task, err := s.resolveTask(ctx, principal.TenantID, idOrKey)
	if err != nil {
		return nil, err
	}
	return s.tasks.ListAssignments(ctx, task.ID)
}

// requireAssigned enforces the access-control invariant: non-internal
// callers may only touch tasks they are assigned to.
func (s *TaskService) requireAssigned(ctx context.Context, principal *auth.Principal, task *domain.Task) error {
	if principal.Internal {
		return nil
	}
	assignments, err := s.tasks.ListAssignments(ctx, task.ID)
	if err != nil {
		return err
	}
	if !domain.Assigned(assignments, principal.UserID) {
		return apperrors.NewForbidden("task access requires assignment")
	}
	return nil
}

func (s *TaskService) resolveTask(ctx context.Context, tenantID, idOrKey string) (*domain.Task, error) {
	var (
		task *domain.Task
		err  error
	)
	if _, parseErr := uuid.Parse(idOrKey); parseErr == nil {
		task, err = s.tasks.GetByID(ctx, tenantID, idOrKey)
	} else {
		task, err = s.tasks.GetByIssueKey(ctx, tenantID, idOrKey)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("task", map[string]any{"id": idOrKey})
		}
		return nil, err
	}
	return task, nil
}

func (s *TaskService) resolveTicket(ctx context.Context, tenantID, idOrKey string) (*domain.Ticket, error) {
	var (
		ticket *domain.Ticket
		err    error
	)
	if _, parseErr := uuid.Parse(idOrKey); parseErr == nil {
		ticket, err = s.tickets.GetByID(ctx, tenantID, idOrKey)
	} else {
		ticket, err = s.tickets.GetByIssueKey(ctx, tenantID, idOrKey)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": idOrKey})
		}
		return nil, err
	}
	return ticket, nil
}

// resolveProductOfFeature walks feature -> epic -> product.
func (s *TaskService) resolveProductOfFeature(ctx context.Context, tenantID, featureID string) (string, error) {
	feature, err := s.products.GetFeature(ctx, tenantID, featureID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("feature", map[string]any{"feature_id": featureID})
		}
		return "", err
	}
	epic, err := s.products.GetEpic(ctx, tenantID, feature.EpicID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("epic", map[string]any{"epic_id": feature.EpicID})
		}
		return "", err
	}
	return epic.ProductID, nil
}

func (s *TaskService) publish(ctx context.Context, principal *auth.Principal, eventType events.EventType, subjectID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TenantID:  principal.TenantID,
		SubjectID: subjectID,
		Actor:     events.Actor{UserID: principal.UserID, Internal: principal.Internal},
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

// roleAssignees returns the distinct role user ids for the assignment set.
func roleAssignees(task *domain.Task) []string {
	seen := make(map[string]struct{}, 3)
	var out []string
	for _, id := range []*string{task.ImplementorID, task.DeveloperID, task.TesterID} {
		if id == nil || *id == "" {
			continue
		}
		if _, dup := seen[*id]; dup {
			continue
		}
		seen[*id] = struct{}{}
		out = append(out, *id)
	}
	return out
}

func taskEntityKind(t domain.TaskType) keys.EntityKind {
	if t == domain.TaskTypeBug {
		return keys.KindBug
	}
	return keys.KindTask
}

func storyPointsError(v *int) error {
	details := map[string]any{"allowed": []int{1, 2, 3, 5, 8, 13}}
	if v != nil {
		details["story_points"] = *v
	}
	return apperrors.NewValidationError("story points must be a Fibonacci value or null", details)
}

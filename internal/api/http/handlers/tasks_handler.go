package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tracker-service/internal/api/dto"
	"github.com/spec-kit/tracker-service/internal/auth"
	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/service"
	apperrors "github.com/spec-kit/tracker-service/pkg/util"
)

// TasksHandler manages development-task endpoints.
type TasksHandler struct {
	tasks *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(tasks *service.TaskService) *TasksHandler {
	return &TasksHandler{tasks: tasks}
}

// CreateTask POST /tasks.
func (h *TasksHandler) CreateTask(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	task, err := h.tasks.Create(c.UserContext(), principal, service.TaskCreateInput{
		FeatureID:     req.FeatureID,
		Title:         req.Title,
		Description:   req.Description,
		Type:          req.Type,
		Priority:      req.Priority,
		StoryPoints:   req.StoryPoints,
		EstimateHours: req.EstimateHours,
		DueDate:       req.DueDate,
		Labels:        req.Labels,
		Severity:      req.Severity,
		Environment:   req.Environment,
		ModuleID:      req.ModuleID,
		ComponentID:   req.ComponentID,
		AddonID:       req.AddonID,
		AssigneeIDs:   req.AssigneeIDs,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": taskResponse(task)})
}

// SpawnTask POST /tickets/:id/tasks.
func (h *TasksHandler) SpawnTask(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SpawnTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	task, err := h.tasks.Spawn(c.UserContext(), principal, c.Params("id"), service.SpawnTaskInput{
		ImplementorID: req.ImplementorID,
		DeveloperID:   req.DeveloperID,
		TesterID:      req.TesterID,
		FeatureID:     req.FeatureID,
		Type:          req.Type,
		Title:         req.Title,
		Description:   req.Description,
		Severity:      req.Severity,
		Environment:   req.Environment,
		ModuleID:      req.ModuleID,
		ComponentID:   req.ComponentID,
		AddonID:       req.AddonID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": taskResponse(task)})
}

// ListTasks GET /tasks.
func (h *TasksHandler) ListTasks(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tasks, err := h.tasks.List(c.UserContext(), principal, parseTaskQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		items = append(items, taskResponse(&tasks[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTask GET /tasks/:id. The id segment accepts either the opaque id or the
// issue key.
func (h *TasksHandler) GetTask(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	task, err := h.tasks.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// UpdateTask PATCH /tasks/:id.
func (h *TasksHandler) UpdateTask(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	task, err := h.tasks.Update(c.UserContext(), principal, c.Params("id"), service.TaskUpdateInput{
		Title:         req.Title,
		Description:   req.Description,
		Status:        req.Status,
		Priority:      req.Priority,
		StoryPoints:   req.StoryPoints,
		ClearPoints:   req.ClearStoryPoints,
		EstimateHours: req.EstimateHours,
		ActualHours:   req.ActualHours,
		DueDate:       req.DueDate,
		Labels:        req.Labels,
		BlockedReason: req.BlockedReason,
		Severity:      req.Severity,
		Environment:   req.Environment,
		ImplementorID: req.ImplementorID,
		DeveloperID:   req.DeveloperID,
		TesterID:      req.TesterID,
		ModuleID:      req.ModuleID,
		ComponentID:   req.ComponentID,
		AddonID:       req.AddonID,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// SetStoryPoints PUT /tasks/:id/story-points.
func (h *TasksHandler) SetStoryPoints(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SetStoryPointsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	task, err := h.tasks.SetStoryPoints(c.UserContext(), principal, c.Params("id"), req.StoryPoints)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// ReplaceAssignments PUT /tasks/:id/assignees.
func (h *TasksHandler) ReplaceAssignments(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ReplaceAssignmentsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	assignments, err := h.tasks.ReplaceAssignments(c.UserContext(), principal, c.Params("id"), req.UserIDs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponses(assignments)})
}

// ListAssignments GET /tasks/:id/assignees.
func (h *TasksHandler) ListAssignments(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	assignments, err := h.tasks.Assignments(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponses(assignments)})
}

// CloseTask POST /tasks/:id/close.
func (h *TasksHandler) CloseTask(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CloseTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	task, err := h.tasks.Close(c.UserContext(), principal, c.Params("id"), req.Resolution, req.Note, req.Metadata)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// DeleteTask DELETE /tasks/:id.
func (h *TasksHandler) DeleteTask(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.tasks.Delete(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseTaskQuery(c *fiber.Ctx) service.TaskListFilter {
	filter := service.TaskListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TaskStatus(strings.TrimSpace(part)))
		}
	}
	if typeStr := c.Query("type"); typeStr != "" {
		for _, part := range strings.Split(typeStr, ",") {
			filter.Types = append(filter.Types, domain.TaskType(strings.TrimSpace(part)))
		}
	}
	if productID := c.Query("product_id"); productID != "" {
		filter.ProductID = &productID
	}
	if featureID := c.Query("feature_id"); featureID != "" {
		filter.FeatureID = &featureID
	}
	if ticketID := c.Query("ticket_id"); ticketID != "" {
		filter.TicketID = &ticketID
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func taskResponse(task *domain.Task) dto.TaskResponse {
	return dto.TaskResponse{
		ID:             task.ID,
		IssueKey:       task.IssueKey,
		ProductID:      task.ProductID,
		FeatureID:      task.FeatureID,
		TicketID:       task.TicketID,
		Title:          task.Title,
		Description:    task.Description,
		Type:           task.Type,
		Status:         task.Status,
		Priority:       task.Priority,
		StoryPoints:    task.StoryPoints,
		EstimateHours:  task.EstimateHours,
		ActualHours:    task.ActualHours,
		DueDate:        task.DueDate,
		Labels:         task.Labels,
		BlockedReason:  task.BlockedReason,
		Severity:       task.Severity,
		Environment:    task.Environment,
		ImplementorID:  task.ImplementorID,
		DeveloperID:    task.DeveloperID,
		TesterID:       task.TesterID,
		ModuleID:       task.ModuleID,
		ComponentID:    task.ComponentID,
		AddonID:        task.AddonID,
		Metadata:       task.Metadata,
		Resolution:     task.Resolution,
		ResolutionNote: task.ResolutionNote,
		CreatedBy:      task.CreatedBy,
		ReporterID:     task.ReporterID,
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
		ClosedAt:       task.ClosedAt,
	}
}

func assignmentResponses(assignments []domain.TaskAssignment) []dto.TaskAssignmentResponse {
	items := make([]dto.TaskAssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		items = append(items, dto.TaskAssignmentResponse{
			TaskID:    a.TaskID,
			UserID:    a.UserID,
			CreatedAt: a.CreatedAt,
		})
	}
	return items
}

package dto

import (
	"time"

	"github.com/spec-kit/tracker-service/internal/domain"
)

// CreateTaskRequest payload for direct task creation.
type CreateTaskRequest struct {
	FeatureID     string          `json:"feature_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Type          domain.TaskType `json:"type"`
	Priority      int             `json:"priority"`
	StoryPoints   *int            `json:"story_points"`
	EstimateHours *float64        `json:"estimate_hours"`
	DueDate       *time.Time      `json:"due_date"`
	Labels        []string        `json:"labels"`
	Severity      *string         `json:"severity"`
	Environment   *string         `json:"environment"`
	ModuleID      *string         `json:"module_id"`
	ComponentID   *string         `json:"component_id"`
	AddonID       *string         `json:"addon_id"`
	AssigneeIDs   []string        `json:"assignee_ids"`
	Metadata      map[string]any  `json:"metadata"`
}

// SpawnTaskRequest payload for creating a task from a ticket. Supplying any
// role id selects the role-based flow, which requires all three.
type SpawnTaskRequest struct {
	ImplementorID *string         `json:"implementor_id"`
	DeveloperID   *string         `json:"developer_id"`
	TesterID      *string         `json:"tester_id"`
	FeatureID     *string         `json:"feature_id"`
	Type          domain.TaskType `json:"type"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Severity      *string         `json:"severity"`
	Environment   *string         `json:"environment"`
	ModuleID      *string         `json:"module_id"`
	ComponentID   *string         `json:"component_id"`
	AddonID       *string         `json:"addon_id"`
}

// UpdateTaskRequest payload. Absent fields stay untouched; metadata is merged
// key by key.
type UpdateTaskRequest struct {
	Title         *string            `json:"title"`
	Description   *string            `json:"description"`
	Status        *domain.TaskStatus `json:"status"`
	Priority      *int               `json:"priority"`
	StoryPoints   *int               `json:"story_points"`
	// ClearStoryPoints drops the estimate; a null story_points in a PATCH is
	// indistinguishable from an absent field.
	ClearStoryPoints bool `json:"clear_story_points"`
	EstimateHours *float64           `json:"estimate_hours"`
	ActualHours   *float64           `json:"actual_hours"`
	DueDate       *time.Time         `json:"due_date"`
	Labels        []string           `json:"labels"`
	BlockedReason *string            `json:"blocked_reason"`
	Severity      *string            `json:"severity"`
	Environment   *string            `json:"environment"`
	ImplementorID *string            `json:"implementor_id"`
	DeveloperID   *string            `json:"developer_id"`
	TesterID      *string            `json:"tester_id"`
	ModuleID      *string            `json:"module_id"`
	ComponentID   *string            `json:"component_id"`
	AddonID       *string            `json:"addon_id"`
	Metadata      map[string]any     `json:"metadata"`
}

// SetStoryPointsRequest payload. Null clears the estimate.
type SetStoryPointsRequest struct {
	StoryPoints *int `json:"story_points"`
}

// ReplaceAssignmentsRequest payload.
type ReplaceAssignmentsRequest struct {
	UserIDs []string `json:"user_ids"`
}

// CloseTaskRequest payload.
type CloseTaskRequest struct {
	Resolution domain.TaskResolution `json:"resolution"`
	Note       *string               `json:"note"`
	Metadata   map[string]any        `json:"metadata"`
}

// TaskResponse carries the full task view.
type TaskResponse struct {
	ID             string                 `json:"id"`
	IssueKey       string                 `json:"issue_key"`
	ProductID      string                 `json:"product_id"`
	FeatureID      *string                `json:"feature_id,omitempty"`
	TicketID       *string                `json:"ticket_id,omitempty"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Type           domain.TaskType        `json:"type"`
	Status         domain.TaskStatus      `json:"status"`
	Priority       int                    `json:"priority"`
	StoryPoints    *int                   `json:"story_points,omitempty"`
	EstimateHours  *float64               `json:"estimate_hours,omitempty"`
	ActualHours    *float64               `json:"actual_hours,omitempty"`
	DueDate        *time.Time             `json:"due_date,omitempty"`
	Labels         []string               `json:"labels"`
	BlockedReason  *string                `json:"blocked_reason,omitempty"`
	Severity       *string                `json:"severity,omitempty"`
	Environment    *string                `json:"environment,omitempty"`
	ImplementorID  *string                `json:"implementor_id,omitempty"`
	DeveloperID    *string                `json:"developer_id,omitempty"`
	TesterID       *string                `json:"tester_id,omitempty"`
	ModuleID       *string                `json:"module_id,omitempty"`
	ComponentID    *string                `json:"component_id,omitempty"`
	AddonID        *string                `json:"addon_id,omitempty"`
	Metadata       map[string]any         `json:"metadata,omitempty"`
	Resolution     *domain.TaskResolution `json:"resolution,omitempty"`
	ResolutionNote *string                `json:"resolution_note,omitempty"`
	CreatedBy      string                 `json:"created_by"`
	ReporterID     string                 `json:"reporter_id"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	ClosedAt       *time.Time             `json:"closed_at,omitempty"`
}

// TaskAssignmentResponse represents one assignment row.
type TaskAssignmentResponse struct {
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketTaskLinkResponse joins a ticket with a spawned task.
type TicketTaskLinkResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	TaskID    string    `json:"task_id"`
	CreatedAt time.Time `json:"created_at"`
}

package events

import (
	"time"

	"github.com/spec-kit/tracker-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
	EventTicketLinked        EventType = "ticket_linked"
	EventTaskCreated         EventType = "task_created"
	EventTaskSpawned         EventType = "task_spawned"
	EventTaskClosed          EventType = "task_closed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID   string `json:"user_id"`
	Internal bool   `json:"internal"`
}

// Event represents a domain event emitted by services after a committed
// change. Notification fan-out decides recipients from the payload plus the
// ticket's watcher set; the engine only reports what changed.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TenantID  string      `json:"tenant_id"`
	SubjectID string      `json:"subject_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	IssueKey string              `json:"issue_key"`
	Type     domain.TicketType   `json:"type"`
	Status   domain.TicketStatus `json:"status"`
	Title    string              `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssignedTo *string `json:"assigned_to,omitempty"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	Internal    bool   `json:"internal"`
	BodyPreview string `json:"body_preview"`
}

// TicketLinkedPayload payload.
type TicketLinkedPayload struct {
	TargetID string          `json:"target_id"`
	LinkType domain.LinkType `json:"link_type"`
}

// TaskCreatedPayload payload.
type TaskCreatedPayload struct {
	IssueKey string          `json:"issue_key"`
	Type     domain.TaskType `json:"type"`
	Title    string          `json:"title"`
}

// TaskSpawnedPayload payload.
type TaskSpawnedPayload struct {
	TicketID      string  `json:"ticket_id"`
	TaskIssueKey  string  `json:"task_issue_key"`
	ImplementorID *string `json:"implementor_id,omitempty"`
}

// TaskClosedPayload payload.
type TaskClosedPayload struct {
	Resolution domain.TaskResolution `json:"resolution"`
}

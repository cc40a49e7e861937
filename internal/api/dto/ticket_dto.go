package dto

import (
	"time"

	"github.com/spec-kit/tracker-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Type           domain.TicketType `json:"type"`
	ProductID      string            `json:"product_id"`
	ClientPriority int               `json:"client_priority"`
	ClientSeverity int               `json:"client_severity"`
	ParentID       *string           `json:"parent_id"`
	Labels         []string          `json:"labels"`
	ClientID       *string           `json:"client_id"`
	ReporterID     *string           `json:"reporter_id"`
}

// UpdateTicketRequest payload. Absent fields stay untouched.
type UpdateTicketRequest struct {
	Status           *domain.TicketStatus `json:"status"`
	InternalPriority *int                 `json:"internal_priority"`
	InternalSeverity *int                 `json:"internal_severity"`
	AssignedTo       *string              `json:"assigned_to"`
	Labels           []string             `json:"labels"`
	ParentID         *string              `json:"parent_id"`
	Resolution       *string              `json:"resolution"`
	ResolutionNote   *string              `json:"resolution_note"`
}

// TicketResponse carries the full effective view of a ticket.
type TicketResponse struct {
	ID                string              `json:"id"`
	IssueKey          string              `json:"issue_key"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	Type              domain.TicketType   `json:"type"`
	Status            domain.TicketStatus `json:"status"`
	ProductID         string              `json:"product_id"`
	ClientPriority    int                 `json:"client_priority"`
	ClientSeverity    int                 `json:"client_severity"`
	InternalPriority  *int                `json:"internal_priority,omitempty"`
	InternalSeverity  *int                `json:"internal_severity,omitempty"`
	EffectivePriority int                 `json:"effective_priority"`
	EffectiveSeverity int                 `json:"effective_severity"`
	ClientID          *string             `json:"client_id,omitempty"`
	ReporterID        string              `json:"reporter_id"`
	AssignedTo        *string             `json:"assigned_to,omitempty"`
	ParentID          *string             `json:"parent_id,omitempty"`
	Labels            []string            `json:"labels"`
	Resolution        *string             `json:"resolution,omitempty"`
	ResolutionNote    *string             `json:"resolution_note,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	ClosedAt          *time.Time          `json:"closed_at,omitempty"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body     string `json:"body"`
	Internal bool   `json:"internal"`
}

// CommentResponse represents one thread message.
type CommentResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	Internal  bool      `json:"internal"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentRequest describes attachment input.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// CreateAttachmentsRequest payload.
type CreateAttachmentsRequest struct {
	Attachments []AttachmentRequest `json:"attachments"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	UploadedBy string    `json:"uploaded_by"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateLinkRequest payload.
type CreateLinkRequest struct {
	TargetID string          `json:"target_id"`
	LinkType domain.LinkType `json:"link_type"`
}

// LinkResponse represents one directed link.
type LinkResponse struct {
	ID             string          `json:"id"`
	SourceID       string          `json:"source_id"`
	TargetID       string          `json:"target_id"`
	SourceIssueKey string          `json:"source_issue_key,omitempty"`
	TargetIssueKey string          `json:"target_issue_key,omitempty"`
	LinkType       domain.LinkType `json:"link_type"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

// WatchRequest payload; user_id and email are alternatives.
type WatchRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// WatcherResponse represents one subscription.
type WatcherResponse struct {
	TicketID  string    `json:"ticket_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditEntryResponse represents one history record.
type AuditEntryResponse struct {
	ID         string                 `json:"id"`
	ChangeType domain.AuditChangeType `json:"change_type"`
	ActorID    string                 `json:"actor_id"`
	OldValue   *string                `json:"old_value,omitempty"`
	NewValue   *string                `json:"new_value,omitempty"`
	Metadata   map[string]any         `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

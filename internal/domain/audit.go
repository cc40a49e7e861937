package domain

import "time"

// AuditChangeType captures what changed in an audit entry.
type AuditChangeType string

const (
	AuditCreated         AuditChangeType = "created"
	AuditStatusChanged   AuditChangeType = "status_changed"
	AuditReopened        AuditChangeType = "reopened"
	AuditResolved        AuditChangeType = "resolved"
	AuditPriorityChanged AuditChangeType = "priority_changed"
	AuditSeverityChanged AuditChangeType = "severity_changed"
	AuditAssigned        AuditChangeType = "assigned"
	AuditCommentAdded    AuditChangeType = "comment_added"
	AuditAttachmentAdded AuditChangeType = "attachment_added"
)

// AuditEntry is an immutable change record for a ticket. Entries are only
// ever appended, never updated or deleted.
type AuditEntry struct {
	ID         string
	TenantID   string
	TicketID   string
	ChangeType AuditChangeType
	ActorID    string
	OldValue   *string
	NewValue   *string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// ClassifyStatusChange maps a status transition to its audit change type:
// entering resolved is "resolved", leaving resolved for any non-resolved
// status is "reopened", everything else is "status_changed".
func ClassifyStatusChange(oldStatus, newStatus TicketStatus) AuditChangeType {
	switch {
	case newStatus == TicketStatusResolved:
		return AuditResolved
	case oldStatus == TicketStatusResolved && newStatus != TicketStatusResolved:
		return AuditReopened
	default:
		return AuditStatusChanged
	}
}

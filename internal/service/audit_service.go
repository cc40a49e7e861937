package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/repository"
)

// AuditRecorder appends immutable change records for tickets. Recording is
// best-effort: a failed append is logged and swallowed so the triggering
// business operation still succeeds. Losing an audit entry is preferable to
// losing the underlying state change.
type AuditRecorder struct {
	entries repository.AuditRepository
	logger  *zap.Logger
}

// NewAuditRecorder constructs the recorder.
func NewAuditRecorder(entries repository.AuditRepository, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{entries: entries, logger: logger}
}

// Record appends one change record. Never returns an error to the caller.
func (a *AuditRecorder) Record(ctx context.Context, tenantID, ticketID string, changeType domain.AuditChangeType, actorID string, oldValue, newValue *string, metadata map[string]any) {
	if a == nil || a.entries == nil {
		return
	}
	entry := &domain.AuditEntry{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		TicketID:   ticketID,
		ChangeType: changeType,
		ActorID:    actorID,
		OldValue:   oldValue,
		NewValue:   newValue,
		Metadata:   metadata,
	}
	if err := a.entries.Create(ctx, entry); err != nil {
		a.logger.Error("audit append failed",
			zap.String("ticket_id", ticketID),
			zap.String("change_type", string(changeType)),
			zap.Error(err),
		)
	}
}

// List returns the audit trail for a ticket.
func (a *AuditRecorder) List(ctx context.Context, tenantID, ticketID string, limit, offset int) ([]domain.AuditEntry, error) {
	return a.entries.ListByTicket(ctx, tenantID, ticketID, limit, offset)
}

package service

import (
	"context"

	"github.com/spec-kit/tracker-service/internal/domain"
)

// TicketCache caches ticket reads. Implementations are best-effort: a cache
// failure must never fail the read path.
type TicketCache interface {
	Get(ctx context.Context, tenantID, ticketID string) (*domain.Ticket, bool)
	Set(ctx context.Context, ticket *domain.Ticket)
	Invalidate(ctx context.Context, tenantID, ticketID string)
}

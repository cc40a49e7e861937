package repository

import (
	"context"

	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/persistence"
)

// AuditRepository stores append-only change records. There is deliberately
// no update or delete.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	ListByTicket(ctx context.Context, tenantID, ticketID string, limit, offset int) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	db *persistence.DB
}

// NewAuditRepository instantiates repository.
func NewAuditRepository(db *persistence.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_entries (id, tenant_id, ticket_id, change_type, actor_id, old_value, new_value, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at`
	return r.db.Querier(ctx).QueryRow(ctx, query,
		entry.ID,
		entry.TenantID,
		entry.TicketID,
		entry.ChangeType,
		entry.ActorID,
		entry.OldValue,
		entry.NewValue,
		entry.Metadata,
	).Scan(&entry.CreatedAt)
}

func (r *auditRepository) ListByTicket(ctx context.Context, tenantID, ticketID string, limit, offset int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, tenant_id, ticket_id, change_type, actor_id, old_value, new_value, metadata, created_at
        FROM audit_entries WHERE tenant_id=$1 AND ticket_id=$2
        ORDER BY created_at ASC LIMIT $3 OFFSET $4`
	rows, err := r.db.Querier(ctx).Query(ctx, query, tenantID, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.TicketID,
			&entry.ChangeType,
			&entry.ActorID,
			&entry.OldValue,
			&entry.NewValue,
			&entry.Metadata,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

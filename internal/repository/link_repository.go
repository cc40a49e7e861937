package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/persistence"
)

// LinkRepository manages ticket-to-ticket links and the ticket/task join.
type LinkRepository interface {
	CreateLink(ctx context.Context, link *domain.Link) error
	DeleteLink(ctx context.Context, tenantID, id string) error
	ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.Link, error)

	CreateTicketTaskLink(ctx context.Context, link *domain.TicketTaskLink) error
	ListTicketTaskLinks(ctx context.Context, tenantID, ticketID string) ([]domain.TicketTaskLink, error)
	DeleteTicketTaskLinksByTask(ctx context.Context, tenantID, taskID string) error
}

type linkRepository struct {
	db *persistence.DB
}

// NewLinkRepository instantiates repository.
func NewLinkRepository(db *persistence.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) CreateLink(ctx context.Context, link *domain.Link) error {
	const query = `
        INSERT INTO ticket_links (id, tenant_id, source_id, target_id, link_type, created_by)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	return r.db.Querier(ctx).QueryRow(ctx, query,
		link.ID,
		link.TenantID,
		link.SourceID,
		link.TargetID,
		link.LinkType,
		link.CreatedBy,
	).Scan(&link.CreatedAt)
}

func (r *linkRepository) DeleteLink(ctx context.Context, tenantID, id string) error {
	cmd, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM ticket_links WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *linkRepository) ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.Link, error) {
	const query = `
        SELECT id, tenant_id, source_id, target_id, link_type, created_by, created_at
        FROM ticket_links WHERE tenant_id=$1 AND (source_id=$2 OR target_id=$2)
        ORDER BY created_at ASC`
	rows, err := r.db.Querier(ctx).Query(ctx, query, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Link
	for rows.Next() {
		var link domain.Link
		if err := rows.Scan(
			&link.ID,
			&link.TenantID,
			&link.SourceID,
			&link.TargetID,
			&link.LinkType,
			&link.CreatedBy,
			&link.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, link)
	}
	return result, rows.Err()
}

func (r *linkRepository) CreateTicketTaskLink(ctx context.Context, link *domain.TicketTaskLink) error {
	const query = `
        INSERT INTO ticket_task_links (id, tenant_id, ticket_id, task_id)
        VALUES ($1,$2,$3,$4)
        RETURNING created_at`
	return r.db.Querier(ctx).QueryRow(ctx, query,
		link.ID,
		link.TenantID,
		link.TicketID,
		link.TaskID,
	).Scan(&link.CreatedAt)
}

func (r *linkRepository) ListTicketTaskLinks(ctx context.Context, tenantID, ticketID string) ([]domain.TicketTaskLink, error) {
	const query = `
        SELECT id, tenant_id, ticket_id, task_id, created_at
        FROM ticket_task_links WHERE tenant_id=$1 AND ticket_id=$2
        ORDER BY created_at ASC`
	rows, err := r.db.Querier(ctx).Query(ctx, query, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketTaskLink
	for rows.Next() {
		var link domain.TicketTaskLink
		if err := rows.Scan(&link.ID, &link.TenantID, &link.TicketID, &link.TaskID, &link.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, link)
	}
	return result, rows.Err()
}

func (r *linkRepository) DeleteTicketTaskLinksByTask(ctx context.Context, tenantID, taskID string) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM ticket_task_links WHERE tenant_id=$1 AND task_id=$2`, tenantID, taskID)
	return err
}

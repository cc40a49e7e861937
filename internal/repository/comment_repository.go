package repository

import (
	"context"

	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/persistence"
)

// CommentRepository stores ticket thread messages.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.Comment, error)
}

type commentRepository struct {
	db *persistence.DB
}

// NewCommentRepository instantiates repository.
func NewCommentRepository(db *persistence.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (id, tenant_id, ticket_id, author_id, body, internal)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	return r.db.Querier(ctx).QueryRow(ctx, query,
		comment.ID,
		comment.TenantID,
		comment.TicketID,
		comment.AuthorID,
		comment.Body,
		comment.Internal,
	).Scan(&comment.CreatedAt)
}

func (r *commentRepository) ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, tenant_id, ticket_id, author_id, body, internal, created_at
        FROM comments WHERE tenant_id=$1 AND ticket_id=$2 ORDER BY created_at ASC`
	rows, err := r.db.Querier(ctx).Query(ctx, query, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TenantID,
			&comment.TicketID,
			&comment.AuthorID,
			&comment.Body,
			&comment.Internal,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}

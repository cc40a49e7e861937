package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/persistence"
)

// TicketFilter captures ticket search parameters. All lookups are
// tenant-qualified by the caller.
type TicketFilter struct {
	TenantID    string
	ClientID    *string
	ReporterID  *string
	AssignedTo  *string
	ProductID   *string
	Statuses    []domain.TicketStatus
	Types       []domain.TicketType
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error)
	GetByIssueKey(ctx context.Context, tenantID, key string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	db *persistence.DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db *persistence.DB) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, tenant_id, issue_key, title, description, type, status, product_id,
               client_priority, client_severity, internal_priority, internal_severity,
               client_id, created_by, reporter_id, assigned_to, parent_id, labels,
               resolution, resolution_note, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, tenant_id, issue_key, title, description, type, status, product_id,
            client_priority, client_severity, internal_priority, internal_severity,
            client_id, created_by, reporter_id, assigned_to, parent_id, labels)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        RETURNING created_at, updated_at`
	return r.db.Querier(ctx).QueryRow(ctx, query,
		ticket.ID,
		ticket.TenantID,
		ticket.IssueKey,
		ticket.Title,
		ticket.Description,
		ticket.Type,
		ticket.Status,
		ticket.ProductID,
		ticket.ClientPriority,
		ticket.ClientSeverity,
		ticket.InternalPriority,
		ticket.InternalSeverity,
		ticket.ClientID,
		ticket.CreatedBy,
		ticket.ReporterID,
		ticket.AssignedTo,
		ticket.ParentID,
		ticket.Labels,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3,
            client_priority=$4, client_severity=$5, internal_priority=$6, internal_severity=$7,
            assigned_to=$8, parent_id=$9, labels=$10, resolution=$11, resolution_note=$12,
            closed_at=$13, updated_at=NOW()
        WHERE tenant_id=$14 AND id=$15
        RETURNING updated_at`
	err := r.db.Querier(ctx).QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.ClientPriority,
		ticket.ClientSeverity,
		ticket.InternalPriority,
		ticket.InternalSeverity,
		ticket.AssignedTo,
		ticket.ParentID,
		ticket.Labels,
		ticket.Resolution,
		ticket.ResolutionNote,
		ticket.ClosedAt,
		ticket.TenantID,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE tenant_id=$1 AND id=$2`
	return r.fetchSingle(ctx, query, tenantID, id)
}

func (r *ticketRepository) GetByIssueKey(ctx context.Context, tenantID, key string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE tenant_id=$1 AND issue_key=$2`
	return r.fetchSingle(ctx, query, tenantID, key)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.db.Querier(ctx).QueryRow(ctx, query, args...), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	args := []any{filter.TenantID}
	clauses := []string{"tenant_id=$1"}

	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id=$%d", len(args)))
	}
	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.ProductID != nil {
		args = append(args, *filter.ProductID)
		clauses = append(clauses, fmt.Sprintf("product_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			args = append(args, t)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.IssueKey,
		&ticket.Title,
		&ticket.Description,
		&ticket.Type,
		&ticket.Status,
		&ticket.ProductID,
		&ticket.ClientPriority,
		&ticket.ClientSeverity,
		&ticket.InternalPriority,
		&ticket.InternalSeverity,
		&ticket.ClientID,
		&ticket.CreatedBy,
		&ticket.ReporterID,
		&ticket.AssignedTo,
		&ticket.ParentID,
		&ticket.Labels,
		&ticket.Resolution,
		&ticket.ResolutionNote,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	)
}

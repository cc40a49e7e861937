package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/persistence"
)

// WatcherRepository manages ticket subscriptions.
type WatcherRepository interface {
	Create(ctx context.Context, watcher *domain.Watcher) error
	Delete(ctx context.Context, ticketID, userID string) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Watcher, error)
}

type watcherRepository struct {
	db *persistence.DB
}

// NewWatcherRepository instantiates repository.
func NewWatcherRepository(db *persistence.DB) WatcherRepository {
	return &watcherRepository{db: db}
}

func (r *watcherRepository) Create(ctx context.Context, watcher *domain.Watcher) error {
	const query = `
        INSERT INTO watchers (ticket_id, user_id)
        VALUES ($1,$2)
        RETURNING created_at`
	return r.db.Querier(ctx).QueryRow(ctx, query, watcher.TicketID, watcher.UserID).Scan(&watcher.CreatedAt)
}

func (r *watcherRepository) Delete(ctx context.Context, ticketID, userID string) error {
	cmd, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM watchers WHERE ticket_id=$1 AND user_id=$2`, ticketID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *watcherRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Watcher, error) {
	const query = `
        SELECT ticket_id, user_id, created_at
        FROM watchers WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Querier(ctx).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Watcher
	for rows.Next() {
		var watcher domain.Watcher
		if err := rows.Scan(&watcher.TicketID, &watcher.UserID, &watcher.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, watcher)
	}
	return result, rows.Err()
}

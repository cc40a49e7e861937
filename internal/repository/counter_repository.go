package repository

import (
	"context"

	"github.com/spec-kit/tracker-service/internal/persistence"
)

// CounterRepository hands out issue-key sequence numbers. The increment is a
// single atomic statement; two concurrent callers for the same scope can
// never observe the same value.
type CounterRepository interface {
	NextValue(ctx context.Context, tenantID, scopeID, entityKind string) (int, error)
}

type counterRepository struct {
	db *persistence.DB
}

// NewCounterRepository instantiates repository.
func NewCounterRepository(db *persistence.DB) CounterRepository {
	return &counterRepository{db: db}
}

func (r *counterRepository) NextValue(ctx context.Context, tenantID, scopeID, entityKind string) (int, error) {
	const query = `
        INSERT INTO issue_counters (tenant_id, scope_id, entity_kind, value)
        VALUES ($1,$2,$3,1)
        ON CONFLICT (tenant_id, scope_id, entity_kind)
        DO UPDATE SET value = issue_counters.value + 1
        RETURNING value`
	var value int
	if err := r.db.Querier(ctx).QueryRow(ctx, query, tenantID, scopeID, entityKind).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}

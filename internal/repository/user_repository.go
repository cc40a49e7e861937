package repository

import (
	"context"

	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/persistence"
)

// UserRepository reads the identity projection used for watcher email lookup
// and reporter validation.
type UserRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, tenantID, email string) (*domain.User, error)
}

type userRepository struct {
	db *persistence.DB
}

// NewUserRepository instantiates repository.
func NewUserRepository(db *persistence.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, tenant_id, name, email, internal, role, client_id, created_at`

func (r *userRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id=$1 AND id=$2`
	return r.fetchSingle(ctx, query, tenantID, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, tenantID, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id=$1 AND LOWER(email)=LOWER($2)`
	return r.fetchSingle(ctx, query, tenantID, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var user domain.User
	if err := r.db.Querier(ctx).QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.TenantID,
		&user.Name,
		&user.Email,
		&user.Internal,
		&user.Role,
		&user.ClientID,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

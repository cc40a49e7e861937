package repository

import (
	"context"

	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/persistence"
)

// ProductRepository reads the product structure used for key scoping and the
// feature -> epic -> product walk.
type ProductRepository interface {
	GetProduct(ctx context.Context, tenantID, id string) (*domain.Product, error)
	GetEpic(ctx context.Context, tenantID, id string) (*domain.Epic, error)
	GetFeature(ctx context.Context, tenantID, id string) (*domain.Feature, error)
}

type productRepository struct {
	db *persistence.DB
}

// NewProductRepository instantiates repository.
func NewProductRepository(db *persistence.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) GetProduct(ctx context.Context, tenantID, id string) (*domain.Product, error) {
	const query = `
        SELECT id, tenant_id, name, code, created_at
        FROM products WHERE tenant_id=$1 AND id=$2`
	var product domain.Product
	if err := r.db.Querier(ctx).QueryRow(ctx, query, tenantID, id).Scan(
		&product.ID,
		&product.TenantID,
		&product.Name,
		&product.Code,
		&product.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) GetEpic(ctx context.Context, tenantID, id string) (*domain.Epic, error) {
	const query = `
        SELECT id, tenant_id, product_id, name, created_at
        FROM epics WHERE tenant_id=$1 AND id=$2`
	var epic domain.Epic
	if err := r.db.Querier(ctx).QueryRow(ctx, query, tenantID, id).Scan(
		&epic.ID,
		&epic.TenantID,
		&epic.ProductID,
		&epic.Name,
		&epic.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &epic, nil
}

func (r *productRepository) GetFeature(ctx context.Context, tenantID, id string) (*domain.Feature, error) {
	const query = `
        SELECT id, tenant_id, epic_id, name, created_at
        FROM features WHERE tenant_id=$1 AND id=$2`
	var feature domain.Feature
	if err := r.db.Querier(ctx).QueryRow(ctx, query, tenantID, id).Scan(
		&feature.ID,
		&feature.TenantID,
		&feature.EpicID,
		&feature.Name,
		&feature.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &feature, nil
}

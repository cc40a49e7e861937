// Package keys allocates human-readable issue keys backed by atomic
// per-scope counters.
package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tracker-service/internal/repository"
	apperrors "github.com/spec-kit/tracker-service/pkg/util"
)

// EntityKind selects the counter pool and the key's type letter.
type EntityKind string

const (
	KindSupport        EntityKind = "support"
	KindFeatureRequest EntityKind = "feature_request"
	KindTask           EntityKind = "task"
	KindBug            EntityKind = "bug"
)

// globalScopeID keys the tenant-wide counter pool used before product triage.
const globalScopeID = "global"

var kindLetters = map[EntityKind]string{
	KindSupport:        "S",
	KindFeatureRequest: "F",
	KindTask:           "T",
	KindBug:            "B",
}

// Allocation is a fresh identity for a new entity: an opaque record id plus
// a human-readable issue key such as CRM-B001.
type Allocation struct {
	ID  string
	Key string
}

// Allocator produces issue keys scoped to a product or to the tenant-wide
// pool.
type Allocator struct {
	products       repository.ProductRepository
	counters       repository.CounterRepository
	globalPoolCode string
}

// NewAllocator constructs the allocator. globalPoolCode prefixes keys from
// the tenant-wide pool (e.g. "SUP").
func NewAllocator(products repository.ProductRepository, counters repository.CounterRepository, globalPoolCode string) *Allocator {
	return &Allocator{
		products:       products,
		counters:       counters,
		globalPoolCode: globalPoolCode,
	}
}

// AllocateProductScoped resolves the product's code and returns the next key
// in the (product, kind) sequence. Unknown products surface as NotFound; a
// product without a code is a configuration error the caller can fix.
func (a *Allocator) AllocateProductScoped(ctx context.Context, tenantID, productID string, kind EntityKind) (Allocation, error) {
	product, err := a.products.GetProduct(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Allocation{}, apperrors.NewNotFound("product", map[string]any{"product_id": productID})
		}
		return Allocation{}, err
	}
	if product.Code == nil || *product.Code == "" {
		return Allocation{}, apperrors.NewConfigurationError(
			"product has no issue-key code; set one before creating issues for it",
			map[string]any{"product_id": productID},
		)
	}
	return a.allocate(ctx, tenantID, productID, *product.Code, kind)
}

// AllocateGlobalScoped returns the next key from the tenant-wide pool, used
// for client-submitted tickets that precede product triage.
func (a *Allocator) AllocateGlobalScoped(ctx context.Context, tenantID string, kind EntityKind) (Allocation, error) {
	return a.allocate(ctx, tenantID, globalScopeID, a.globalPoolCode, kind)
}

func (a *Allocator) allocate(ctx context.Context, tenantID, scopeID, code string, kind EntityKind) (Allocation, error) {
	letter, ok := kindLetters[kind]
	if !ok {
		return Allocation{}, apperrors.NewValidationError("unknown entity kind", map[string]any{"kind": string(kind)})
	}
	value, err := a.counters.NextValue(ctx, tenantID, scopeID, string(kind))
	if err != nil {
		return Allocation{}, err
	}
	return Allocation{
		ID:  uuid.NewString(),
		Key: fmt.Sprintf("%s-%s%03d", code, letter, value),
	}, nil
}

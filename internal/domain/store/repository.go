package store

import (
	"context"

	"github.com/google/uuid"
)

// CustomerRepository persists Customer aggregates.
// Save must use optimistic locking (version compare-and-set) so that two
// jobs touching the same aggregate cannot lose each other's updates; callers
// re-read and re-merge on shared.ErrConcurrencyConflict.
type CustomerRepository interface {
	// FindByPlatformID finds a customer by its platform id within a shop
	FindByPlatformID(ctx context.Context, shopID uuid.UUID, platformID string) (*Customer, error)

	// FindByOrderPlatformID finds the customer owning an embedded order.
	// Used to resolve line item parents across separate export runs.
	FindByOrderPlatformID(ctx context.Context, shopID uuid.UUID, orderPlatformID string) (*Customer, error)

	// Save saves a customer (create or version-checked update)
	Save(ctx context.Context, c *Customer) error

	// CountForShop returns the number of customers ingested for a shop
	CountForShop(ctx context.Context, shopID uuid.UUID) (int64, error)
}

// OrderRepository persists standalone Order aggregates
type OrderRepository interface {
	FindByPlatformID(ctx context.Context, shopID uuid.UUID, platformID string) (*Order, error)
	Save(ctx context.Context, o *Order) error
	CountForShop(ctx context.Context, shopID uuid.UUID) (int64, error)
}

// ProductRepository persists Product aggregates
type ProductRepository interface {
	FindByPlatformID(ctx context.Context, shopID uuid.UUID, platformID string) (*Product, error)
	Save(ctx context.Context, p *Product) error
	CountForShop(ctx context.Context, shopID uuid.UUID) (int64, error)
}

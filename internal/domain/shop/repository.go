package shop

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for shop persistence
type Repository interface {
	// FindByID finds a shop by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Shop, error)

	// FindByDomain finds a shop by its platform domain
	FindByDomain(ctx context.Context, domain string) (*Shop, error)

	// FindConnected returns all currently connected shops
	FindConnected(ctx context.Context) ([]*Shop, error)

	// Save saves a shop (create or update)
	Save(ctx context.Context, s *Shop) error
}

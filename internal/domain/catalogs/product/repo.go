package product

import (
	"context"

	"stevedore/internal/core/id"
	"stevedore/internal/domain"
)

// Repository defines the interface for Product persistence.
type Repository interface {
	domain.CatalogRepository[*Product]

	// FindByItemID retrieves the product holding the natural item key.
	FindByItemID(ctx context.Context, itemID string) (*Product, error)

	// GetForUpdate retrieves a product with row lock.
	GetForUpdate(ctx context.Context, id id.ID) (*Product, error)
}

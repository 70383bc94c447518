package location

import (
	"context"

	"stevedore/internal/core/id"
	"stevedore/internal/domain"
)

// Repository defines the interface for Location persistence.
type Repository interface {
	domain.CatalogRepository[*Location]

	// FindByCoordinates retrieves the location matching a coordinate tuple.
	FindByCoordinates(ctx context.Context, warehouseID id.ID, kind Kind, rack string, level, position int32) (*Location, error)

	// CreateBatch bulk-inserts locations (COPY). Used by grid generation.
	CreateBatch(ctx context.Context, locations []*Location) error

	// ListByWarehouse retrieves all locations of one warehouse.
	ListByWarehouse(ctx context.Context, warehouseID id.ID, filter domain.ListFilter) (domain.ListResult[*Location], error)
}

// Package warehouse provides the Warehouse catalog.
// Warehouses anchor locations and order documents.
package warehouse

import (
	"context"

	"stevedore/internal/core/entity"
)

// Warehouse represents one physical site.
type Warehouse struct {
	entity.Catalog

	// Address is the physical address
	Address *string `db:"address" json:"address,omitempty"`

	// IsActive indicates if warehouse is operational
	IsActive bool `db:"is_active" json:"isActive"`

	// IsDefault indicates the warehouse preselected for new documents
	IsDefault bool `db:"is_default" json:"isDefault"`

	Description *string `db:"description" json:"description,omitempty"`
}

// NewWarehouse creates a new Warehouse with required fields.
func NewWarehouse(code, name string) *Warehouse {
	return &Warehouse{
		Catalog:  entity.NewCatalog(code, name),
		IsActive: true,
	}
}

// Validate implements entity.Validatable.
func (w *Warehouse) Validate(ctx context.Context) error {
	return w.Catalog.Validate(ctx)
}

// CanReceive reports whether the warehouse accepts inbound orders.
func (w *Warehouse) CanReceive() bool {
	return w.IsActive && !w.IsFolder && !w.DeletionMark
}

package entity

import (
	"context"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
)

// WarehouseAware is a trait for entities bound to a physical warehouse.
// Used for composition in models like ReceivingOrder and ShippingOrder.
type WarehouseAware struct {
	// WarehouseID is the warehouse this entity operates in
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`
}

// ValidateWarehouse ensures a warehouse is set.
func (w *WarehouseAware) ValidateWarehouse(ctx context.Context) error {
	if id.IsNil(w.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	return nil
}

// GetWarehouseID returns the warehouse ID (useful for interfaces).
func (w *WarehouseAware) GetWarehouseID() id.ID {
	return w.WarehouseID
}

// IWarehouseAware is an interface for any document bound to a warehouse.
type IWarehouseAware interface {
	GetWarehouseID() id.ID
	ValidateWarehouse(ctx context.Context) error
}

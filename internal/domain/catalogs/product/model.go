// Package product provides the Product catalog.
// Products carry the pallet-planning and billing parameters for an item.
package product

import (
	"context"

	"github.com/shopspring/decimal"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/entity"
)

// Product describes one handled item.
type Product struct {
	entity.Catalog

	// ItemID is the natural item key used on order lines and pallets
	ItemID string `db:"item_id" json:"itemId"`

	// UnitsPerPallet is the default pallet capacity used by the row planner
	UnitsPerPallet int64 `db:"units_per_pallet" json:"unitsPerPallet"`

	// PalletPositions is the storage-footprint weight of one pallet of this
	// product, independent of physical pallet count (oversized goods occupy
	// more than one position). All billing metrics are measured in positions.
	PalletPositions int32 `db:"pallet_positions" json:"palletPositions"`

	// Active products are offered during tally; deactivation never
	// invalidates existing pallets
	Active bool `db:"active" json:"active"`

	// Logistics attributes per unit
	UnitWeightKg decimal.Decimal `db:"unit_weight_kg" json:"unitWeightKg"`
	UnitVolumeM3 decimal.Decimal `db:"unit_volume_m3" json:"unitVolumeM3"`

	Description *string `db:"description" json:"description,omitempty"`
}

// NewProduct creates a product with required fields and defaults.
func NewProduct(code, name, itemID string, unitsPerPallet int64) *Product {
	return &Product{
		Catalog:         entity.NewCatalog(code, name),
		ItemID:          itemID,
		UnitsPerPallet:  unitsPerPallet,
		PalletPositions: 1,
		Active:          true,
		UnitWeightKg:    decimal.Zero,
		UnitVolumeM3:    decimal.Zero,
	}
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}

	if p.IsFolder {
		return nil
	}

	if p.ItemID == "" {
		return apperror.NewValidation("item id is required").
			WithDetail("field", "itemId")
	}

	if p.UnitsPerPallet <= 0 {
		return apperror.NewValidation("units per pallet must be positive").
			WithDetail("field", "unitsPerPallet").
			WithDetail("value", p.UnitsPerPallet)
	}

	if p.PalletPositions < 1 {
		return apperror.NewValidation("pallet positions must be at least 1").
			WithDetail("field", "palletPositions").
			WithDetail("value", p.PalletPositions)
	}

	if p.UnitWeightKg.IsNegative() {
		return apperror.NewValidation("unit weight cannot be negative").
			WithDetail("field", "unitWeightKg")
	}

	if p.UnitVolumeM3.IsNegative() {
		return apperror.NewValidation("unit volume cannot be negative").
			WithDetail("field", "unitVolumeM3")
	}

	return nil
}

// IsUsable reports whether the product can appear on new order lines.
func (p *Product) IsUsable() bool {
	return p.Active && !p.IsFolder && !p.DeletionMark
}

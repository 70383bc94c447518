// Package pallet provides the pallet entity and its lifecycle state machine.
// A pallet is the unit of warehouse handling: it is created during receiving
// (or diverted to a shipping order by cross-dock allocation), stored, picked,
// loaded and finally shipped or written off.
package pallet

import (
	"context"
	"time"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/entity"
	"stevedore/internal/core/id"
)

// Status is the pallet lifecycle state.
type Status string

const (
	StatusReceived Status = "Received"
	StatusStored   Status = "Stored"
	StatusStaged   Status = "Staged"
	StatusLoaded   Status = "Loaded"
	StatusShipped  Status = "Shipped"
	StatusWriteOff Status = "WriteOff"
)

// Pallet is the core mutable entity of the engine.
type Pallet struct {
	entity.BaseDocument

	// Label is the human-readable pallet identifier (PLT-00000001)
	Label string `db:"label" json:"label"`

	// ItemID identifies the product on the pallet (natural item key)
	ItemID string `db:"item_id" json:"itemId"`

	// Qty is the unit count on the pallet. Immutable after creation;
	// corrections are write-off plus re-creation.
	Qty int64 `db:"qty" json:"qty"`

	// Status is the lifecycle state
	Status Status `db:"status" json:"status"`

	// LocationID is set while the pallet occupies a storage location
	LocationID *id.ID `db:"location_id" json:"locationId,omitempty"`

	// ReceivingOrderID references the inbound order that produced the pallet.
	// Null only for administratively created pallets.
	ReceivingOrderID *id.ID `db:"receiving_order_id" json:"receivingOrderId,omitempty"`

	// ShippingOrderID is set once the pallet is committed to an outbound order
	ShippingOrderID *id.ID `db:"shipping_order_id" json:"shippingOrderId,omitempty"`

	// ManifestID groups the pallet onto a load manifest while Loaded/Shipped
	ManifestID *id.ID `db:"manifest_id" json:"manifestId,omitempty"`

	// IsCrossDock marks pallets that bypassed storage. Set at creation, immutable.
	IsCrossDock bool `db:"is_cross_dock" json:"isCrossDock"`

	// ReceivedAt is set by put-away (start of storage occupancy)
	ReceivedAt *time.Time `db:"received_at" json:"receivedAt,omitempty"`

	// ShippedAt is set by load/manifest finalization
	ShippedAt *time.Time `db:"shipped_at" json:"shippedAt,omitempty"`
}

// NewReceived creates a pallet confirmed by a normal receiving tally.
func NewReceived(label, itemID string, qty int64, receivingOrderID id.ID) *Pallet {
	return &Pallet{
		BaseDocument:     entity.NewBaseDocument(),
		Label:            label,
		ItemID:           itemID,
		Qty:              qty,
		Status:           StatusReceived,
		ReceivingOrderID: &receivingOrderID,
	}
}

// NewCrossDocked creates a pallet diverted to a shipping order at the dock.
// It enters the lifecycle directly in Staged and never occupies storage.
func NewCrossDocked(label, itemID string, qty int64, receivingOrderID, shippingOrderID id.ID) *Pallet {
	return &Pallet{
		BaseDocument:     entity.NewBaseDocument(),
		Label:            label,
		ItemID:           itemID,
		Qty:              qty,
		Status:           StatusStaged,
		ReceivingOrderID: &receivingOrderID,
		ShippingOrderID:  &shippingOrderID,
		IsCrossDock:      true,
	}
}

// Validate implements entity.Validatable.
func (p *Pallet) Validate(ctx context.Context) error {
	if p.ItemID == "" {
		return apperror.NewValidation("item is required").
			WithDetail("field", "itemId")
	}
	if p.Qty <= 0 {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "qty").
			WithDetail("value", p.Qty)
	}
	if !isValidStatus(p.Status) {
		return apperror.NewValidation("invalid pallet status").
			WithDetail("field", "status").
			WithDetail("value", string(p.Status))
	}
	return nil
}

// OccupancyStart returns the moment storage occupancy begins for billing:
// the put-away timestamp when present, the creation timestamp otherwise
// (covers pallets billed while still on the receiving dock).
func (p *Pallet) OccupancyStart() time.Time {
	if p.ReceivedAt != nil {
		return *p.ReceivedAt
	}
	return p.CreatedAt
}

// OccupiesStorage reports whether the pallet currently counts toward
// storage billing.
func (p *Pallet) OccupiesStorage() bool {
	switch p.Status {
	case StatusReceived, StatusStored, StatusStaged:
		return true
	}
	return false
}

// IsTerminal reports whether the pallet reached a final state.
func (p *Pallet) IsTerminal() bool {
	return p.Status == StatusShipped || p.Status == StatusWriteOff
}

func isValidStatus(s Status) bool {
	switch s {
	case StatusReceived, StatusStored, StatusStaged, StatusLoaded, StatusShipped, StatusWriteOff:
		return true
	}
	return false
}

package pallet

import (
	"context"
	"time"

	"stevedore/internal/core/id"
	"stevedore/internal/domain"
)

// Repository defines pallet persistence.
type Repository interface {
	Create(ctx context.Context, p *Pallet) error
	GetByID(ctx context.Context, palletID id.ID) (*Pallet, error)
	GetByLabel(ctx context.Context, label string) (*Pallet, error)

	// GetForUpdate retrieves the pallet with a row lock.
	GetForUpdate(ctx context.Context, palletID id.ID) (*Pallet, error)

	// Update persists pallet changes with an optimistic version check.
	Update(ctx context.Context, p *Pallet) error

	// HardDelete removes the pallet row. Only the undo of an unconfirmed
	// tally action may call this; every other removal is a write-off.
	HardDelete(ctx context.Context, palletID id.ID) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Pallet], error)

	// --- Quantity ledger support ---

	// SumQtyForReceiving returns the live committed total for a
	// (receiving order, item) scope: sum of qty over all pallets
	// created against the line, regardless of status.
	SumQtyForReceiving(ctx context.Context, orderID id.ID, itemID string) (int64, error)

	// SumQtyForShipping returns the live committed total for a
	// (shipping order, item) scope, excluding written-off pallets.
	// excludeID removes one pallet from the sum so a load toggle can
	// re-pass the reservation check without counting itself twice.
	SumQtyForShipping(ctx context.Context, orderID id.ID, itemID string, excludeID *id.ID) (int64, error)

	// --- Order coordination support ---

	// CountByReceivingOrder counts pallets produced by a receiving order.
	CountByReceivingOrder(ctx context.Context, orderID id.ID) (int64, error)

	// CountByShippingOrderInStatuses counts the order's pallets in the
	// given lifecycle states.
	CountByShippingOrderInStatuses(ctx context.Context, orderID id.ID, statuses ...Status) (int64, error)

	// CountManualPicks counts non-cross-dock pallets committed to the order.
	CountManualPicks(ctx context.Context, orderID id.ID) (int64, error)

	ListByShippingOrder(ctx context.Context, orderID id.ID) ([]*Pallet, error)
	ListByManifest(ctx context.Context, manifestID id.ID) ([]*Pallet, error)

	// CountAtLocation counts live pallets occupying a location
	// (shared locations are warned about, never rejected).
	CountAtLocation(ctx context.Context, locationID id.ID) (int64, error)
}

// ListFilter narrows pallet listings.
type ListFilter struct {
	domain.ListFilter

	Status           *Status
	ItemID           *string
	ReceivingOrderID *id.ID
	ShippingOrderID  *id.ID
	ManifestID       *id.ID
	LocationID       *id.ID
	IsCrossDock      *bool
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
}

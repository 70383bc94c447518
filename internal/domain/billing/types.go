// Package billing computes time-windowed warehouse service metrics and
// prices them into a statement. All quantity metrics are measured in
// pallet-positions, the product's storage footprint weight, never in
// physical pallet count or unit quantity.
package billing

import (
	"time"

	"stevedore/internal/core/id"
	"stevedore/internal/core/types"
	"stevedore/internal/domain/orders/shipping"
	"stevedore/internal/domain/pallet"
)

// PalletFact is the billing projection of one pallet: its lifecycle facts
// joined with the product's pallet positions and, when assigned, the
// shipping order's shipment type.
type PalletFact struct {
	PalletID        id.ID                 `db:"pallet_id"`
	ItemID          string                `db:"item_id"`
	Status          pallet.Status         `db:"status"`
	IsCrossDock     bool                  `db:"is_cross_dock"`
	PalletPositions int32                 `db:"pallet_positions"`
	CreatedAt       time.Time             `db:"created_at"`
	ReceivedAt      *time.Time            `db:"received_at"`
	ShippedAt       *time.Time            `db:"shipped_at"`
	ShipmentType    shipping.ShipmentType `db:"shipment_type"`
}

// OccupancyStart is when the pallet began occupying warehouse space.
func (f PalletFact) OccupancyStart() time.Time {
	if f.ReceivedAt != nil {
		return *f.ReceivedAt
	}
	return f.CreatedAt
}

// Metrics are the five billable quantities for one date range.
type Metrics struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	// Storage is Σ pallet_positions × occupied days over pallets still
	// holding warehouse space (Received, Stored or Staged)
	Storage int64 `json:"storagePalletPositions"`

	// InStandard counts positions of normal receipts created in range
	// that have not shipped
	InStandard int64 `json:"inPalletPositionsStandard"`

	// CrossDock counts positions of cross-docked pallets created in range
	CrossDock int64 `json:"crossDockPalletPositions"`

	// OutStandard counts positions of standard shipments departed in range
	OutStandard int64 `json:"outPalletPositionsStandard"`

	// HandDelivery counts positions handed over in range
	HandDelivery int64 `json:"handDeliveryPalletPositions"`
}

// Tariffs are caller-supplied decimal rates: per pallet-position-day for
// storage, per pallet-position for the four movement metrics.
type Tariffs struct {
	StoragePerPositionDay   types.Money `json:"storagePerPositionDay"`
	InStandardPerPosition   types.Money `json:"inStandardPerPosition"`
	CrossDockPerPosition    types.Money `json:"crossDockPerPosition"`
	OutStandardPerPosition  types.Money `json:"outStandardPerPosition"`
	HandDeliveryPerPosition types.Money `json:"handDeliveryPerPosition"`
}

// StatementLine prices one metric.
type StatementLine struct {
	Metric   string      `json:"metric"`
	Quantity int64       `json:"quantity"`
	Rate     types.Money `json:"rate"`
	Amount   types.Money `json:"amount"`
}

// Statement is the priced result for one date range.
type Statement struct {
	From    time.Time       `json:"from"`
	To      time.Time       `json:"to"`
	Metrics Metrics         `json:"metrics"`
	Lines   []StatementLine `json:"lines"`
	Total   types.Money     `json:"total"`
}

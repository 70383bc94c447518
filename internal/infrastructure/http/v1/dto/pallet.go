package dto

import (
	"time"

	"stevedore/internal/core/id"
	"stevedore/internal/domain/pallet"
)

// --- Request DTOs ---

// PutAwayRequest moves a received pallet into its first storage location.
type PutAwayRequest struct {
	LocationID string `json:"locationId" binding:"required"`
}

// MovePalletRequest moves a stored pallet to another location.
type MovePalletRequest struct {
	LocationID string `json:"locationId" binding:"required"`
}

// PickPalletRequest commits a stored pallet to a shipping order in picking.
type PickPalletRequest struct {
	ShippingOrderID string `json:"shippingOrderId" binding:"required"`
}

// ToggleLoadedRequest loads a staged pallet onto a vehicle or takes it back
// off. ManifestID is only consulted when loading.
type ToggleLoadedRequest struct {
	Loaded     bool    `json:"loaded"`
	ManifestID *string `json:"manifestId,omitempty"`
}

// WriteOffRequest removes a pallet from circulation.
type WriteOffRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// --- Response DTOs ---

// PalletResponse represents a pallet in API responses.
type PalletResponse struct {
	ID               string        `json:"id"`
	Label            string        `json:"label"`
	ItemID           string        `json:"itemId"`
	Qty              int64         `json:"qty"`
	Status           pallet.Status `json:"status"`
	LocationID       *string       `json:"locationId,omitempty"`
	ReceivingOrderID *string       `json:"receivingOrderId,omitempty"`
	ShippingOrderID  *string       `json:"shippingOrderId,omitempty"`
	ManifestID       *string       `json:"manifestId,omitempty"`
	IsCrossDock      bool          `json:"isCrossDock"`
	ReceivedAt       *time.Time    `json:"receivedAt,omitempty"`
	ShippedAt        *time.Time    `json:"shippedAt,omitempty"`
	Version          int           `json:"version"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// FromPallet converts domain entity to response DTO.
func FromPallet(p *pallet.Pallet) *PalletResponse {
	return &PalletResponse{
		ID:               p.ID.String(),
		Label:            p.Label,
		ItemID:           p.ItemID,
		Qty:              p.Qty,
		Status:           p.Status,
		LocationID:       idString(p.LocationID),
		ReceivingOrderID: idString(p.ReceivingOrderID),
		ShippingOrderID:  idString(p.ShippingOrderID),
		ManifestID:       idString(p.ManifestID),
		IsCrossDock:      p.IsCrossDock,
		ReceivedAt:       p.ReceivedAt,
		ShippedAt:        p.ShippedAt,
		Version:          p.Version,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func idString(v *id.ID) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

// PalletListResponse represents a list of pallets.
type PalletListResponse struct {
	Items      []*PalletResponse `json:"items"`
	TotalCount int64             `json:"totalCount"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
}

// PalletEventListResponse lists lifecycle events for one pallet, newest first.
type PalletEventListResponse struct {
	Items  []pallet.Event `json:"items"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

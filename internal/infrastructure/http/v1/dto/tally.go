package dto

import (
	"stevedore/internal/domain/pallet"
)

// --- Request DTOs ---

// ConfirmTallyPalletRequest confirms one physical pallet during unloading.
// ShipNow asks for cross-dock allocation to an open shipping order; if the
// cross-dock gate rejects it the pallet is confirmed as a normal receipt.
type ConfirmTallyPalletRequest struct {
	ReceivingOrderID string `json:"receivingOrderId" binding:"required"`
	ItemID           string `json:"itemId" binding:"required"`
	Qty              int64  `json:"qty" binding:"required,gt=0"`
	ShipNow          bool   `json:"shipNow"`
}

// --- Response DTOs ---

// TallyPlanResponse proposes pallet rows for one receiving line.
type TallyPlanResponse struct {
	ReceivingOrderID string       `json:"receivingOrderId"`
	ItemID           string       `json:"itemId"`
	Rows             []pallet.Row `json:"rows"`
}

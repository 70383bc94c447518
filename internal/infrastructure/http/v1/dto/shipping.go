package dto

import (
	"time"

	"stevedore/internal/core/id"
	"stevedore/internal/domain/orders/shipping"
)

// --- Request DTOs ---

// CreateShippingOrderRequest represents a request to create a shipping order.
type CreateShippingOrderRequest struct {
	Number       string                `json:"number,omitempty"`
	Date         *time.Time            `json:"date,omitempty"`
	WarehouseID  string                `json:"warehouseId" binding:"required"`
	ShipmentType shipping.ShipmentType `json:"shipmentType" binding:"required"`
	Destination  string                `json:"destination,omitempty"`
	Comment      string                `json:"comment,omitempty"`
	Lines        []ShippingLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ShippingLineRequest represents a line in create/update request.
type ShippingLineRequest struct {
	ItemID       string `json:"itemId" binding:"required"`
	RequestedQty int64  `json:"requestedQty" binding:"required,gt=0"`
}

// ToEntity converts request to domain entity.
func (r *CreateShippingOrderRequest) ToEntity() *shipping.Order {
	warehouseID, _ := id.Parse(r.WarehouseID)

	doc := shipping.NewOrder(warehouseID, r.ShipmentType, r.Destination)
	doc.Number = r.Number
	if r.Date != nil {
		doc.Date = *r.Date
	}
	doc.Comment = r.Comment

	for _, line := range r.Lines {
		doc.AddLine(line.ItemID, line.RequestedQty)
	}

	return doc
}

// UpdateShippingOrderRequest represents a request to update a shipping order.
// Lines may only be changed while the order is still pending.
type UpdateShippingOrderRequest struct {
	Number       *string                `json:"number,omitempty"`
	Date         *time.Time             `json:"date,omitempty"`
	WarehouseID  *string                `json:"warehouseId,omitempty"`
	ShipmentType *shipping.ShipmentType `json:"shipmentType,omitempty"`
	Destination  *string                `json:"destination,omitempty"`
	Comment      *string                `json:"comment,omitempty"`
	Lines        []ShippingLineRequest  `json:"lines,omitempty"`
	Version      int                    `json:"version" binding:"required"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateShippingOrderRequest) ApplyTo(doc *shipping.Order) {
	if r.Number != nil {
		doc.Number = *r.Number
	}
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.WarehouseID != nil {
		warehouseID, _ := id.Parse(*r.WarehouseID)
		doc.WarehouseID = warehouseID
	}
	if r.ShipmentType != nil {
		doc.ShipmentType = *r.ShipmentType
	}
	if r.Destination != nil {
		doc.Destination = *r.Destination
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}

	// If lines are provided, rebuild them
	if r.Lines != nil {
		doc.Lines = make([]shipping.Line, 0, len(r.Lines))
		for _, line := range r.Lines {
			doc.AddLine(line.ItemID, line.RequestedQty)
		}
	}

	doc.Version = r.Version
}

// --- Response DTOs ---

// ShippingOrderResponse represents a shipping order in API responses.
type ShippingOrderResponse struct {
	ID           string                 `json:"id"`
	Number       string                 `json:"number"`
	Date         time.Time              `json:"date"`
	WarehouseID  string                 `json:"warehouseId"`
	ShipmentType shipping.ShipmentType  `json:"shipmentType"`
	Destination  string                 `json:"destination,omitempty"`
	Status       shipping.Status        `json:"status"`
	Comment      string                 `json:"comment,omitempty"`
	Lines        []ShippingLineResponse `json:"lines,omitempty"`
	DeletionMark bool                   `json:"deletionMark,omitempty"`
	Version      int                    `json:"version"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
	CreatedBy    string                 `json:"createdBy,omitempty"`
	UpdatedBy    string                 `json:"updatedBy,omitempty"`
}

// ShippingLineResponse represents a line in API responses.
type ShippingLineResponse struct {
	LineID       string `json:"lineId"`
	LineNo       int    `json:"lineNo"`
	ItemID       string `json:"itemId"`
	RequestedQty int64  `json:"requestedQty"`
}

// FromShippingOrder converts domain entity to response DTO.
func FromShippingOrder(doc *shipping.Order) *ShippingOrderResponse {
	resp := &ShippingOrderResponse{
		ID:           doc.ID.String(),
		Number:       doc.Number,
		Date:         doc.Date,
		WarehouseID:  doc.WarehouseID.String(),
		ShipmentType: doc.ShipmentType,
		Destination:  doc.Destination,
		Status:       doc.Status,
		Comment:      doc.Comment,
		DeletionMark: doc.DeletionMark,
		Version:      doc.Version,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		CreatedBy:    doc.CreatedBy,
		UpdatedBy:    doc.UpdatedBy,
	}

	resp.Lines = make([]ShippingLineResponse, len(doc.Lines))
	for i, line := range doc.Lines {
		resp.Lines[i] = ShippingLineResponse{
			LineID:       line.LineID.String(),
			LineNo:       line.LineNo,
			ItemID:       line.ItemID,
			RequestedQty: line.RequestedQty,
		}
	}

	return resp
}

// ShippingOrderListResponse represents a list of shipping orders.
type ShippingOrderListResponse struct {
	Items      []*ShippingOrderResponse `json:"items"`
	TotalCount int64                    `json:"totalCount"`
	Limit      int                      `json:"limit"`
	Offset     int                      `json:"offset"`
}

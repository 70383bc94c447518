package dto

import (
	"time"

	"stevedore/internal/core/id"
	"stevedore/internal/domain/orders/receiving"
)

// --- Request DTOs ---

// CreateReceivingOrderRequest represents a request to create a receiving order.
type CreateReceivingOrderRequest struct {
	Number       string                 `json:"number,omitempty"`
	Date         *time.Time             `json:"date,omitempty"`
	WarehouseID  string                 `json:"warehouseId" binding:"required"`
	ContainerRef string                 `json:"containerRef,omitempty"`
	Comment      string                 `json:"comment,omitempty"`
	Lines        []ReceivingLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ReceivingLineRequest represents a line in create/update request.
type ReceivingLineRequest struct {
	ItemID      string `json:"itemId" binding:"required"`
	ExpectedQty int64  `json:"expectedQty" binding:"required,gt=0"`
}

// ToEntity converts request to domain entity.
func (r *CreateReceivingOrderRequest) ToEntity() *receiving.Order {
	warehouseID, _ := id.Parse(r.WarehouseID)

	doc := receiving.NewOrder(warehouseID, r.ContainerRef)
	doc.Number = r.Number
	if r.Date != nil {
		doc.Date = *r.Date
	}
	doc.Comment = r.Comment

	for _, line := range r.Lines {
		doc.AddLine(line.ItemID, line.ExpectedQty)
	}

	return doc
}

// UpdateReceivingOrderRequest represents a request to update a receiving order.
// Lines may only be changed while the order is still pending.
type UpdateReceivingOrderRequest struct {
	Number       *string                `json:"number,omitempty"`
	Date         *time.Time             `json:"date,omitempty"`
	WarehouseID  *string                `json:"warehouseId,omitempty"`
	ContainerRef *string                `json:"containerRef,omitempty"`
	Comment      *string                `json:"comment,omitempty"`
	Lines        []ReceivingLineRequest `json:"lines,omitempty"`
	Version      int                    `json:"version" binding:"required"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateReceivingOrderRequest) ApplyTo(doc *receiving.Order) {
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
	if r.ContainerRef != nil {
		doc.ContainerRef = *r.ContainerRef
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}

	// If lines are provided, rebuild them
	if r.Lines != nil {
		doc.Lines = make([]receiving.Line, 0, len(r.Lines))
		for _, line := range r.Lines {
			doc.AddLine(line.ItemID, line.ExpectedQty)
		}
	}

	doc.Version = r.Version
}

// --- Response DTOs ---

// ReceivingOrderResponse represents a receiving order in API responses.
type ReceivingOrderResponse struct {
	ID           string                  `json:"id"`
	Number       string                  `json:"number"`
	Date         time.Time               `json:"date"`
	WarehouseID  string                  `json:"warehouseId"`
	ContainerRef string                  `json:"containerRef,omitempty"`
	Status       receiving.Status        `json:"status"`
	Comment      string                  `json:"comment,omitempty"`
	Lines        []ReceivingLineResponse `json:"lines,omitempty"`
	DeletionMark bool                    `json:"deletionMark,omitempty"`
	Version      int                     `json:"version"`
	CreatedAt    time.Time               `json:"createdAt"`
	UpdatedAt    time.Time               `json:"updatedAt"`
	CreatedBy    string                  `json:"createdBy,omitempty"`
	UpdatedBy    string                  `json:"updatedBy,omitempty"`
}

// ReceivingLineResponse represents a line in API responses.
type ReceivingLineResponse struct {
	LineID      string `json:"lineId"`
	LineNo      int    `json:"lineNo"`
	ItemID      string `json:"itemId"`
	ExpectedQty int64  `json:"expectedQty"`
}

// FromReceivingOrder converts domain entity to response DTO.
func FromReceivingOrder(doc *receiving.Order) *ReceivingOrderResponse {
	resp := &ReceivingOrderResponse{
		ID:           doc.ID.String(),
		Number:       doc.Number,
		Date:         doc.Date,
		WarehouseID:  doc.WarehouseID.String(),
		ContainerRef: doc.ContainerRef,
		Status:       doc.Status,
		Comment:      doc.Comment,
		DeletionMark: doc.DeletionMark,
		Version:      doc.Version,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		CreatedBy:    doc.CreatedBy,
		UpdatedBy:    doc.UpdatedBy,
	}

	resp.Lines = make([]ReceivingLineResponse, len(doc.Lines))
	for i, line := range doc.Lines {
		resp.Lines[i] = ReceivingLineResponse{
			LineID:      line.LineID.String(),
			LineNo:      line.LineNo,
			ItemID:      line.ItemID,
			ExpectedQty: line.ExpectedQty,
		}
	}

	return resp
}

// ReceivingOrderListResponse represents a list of receiving orders.
type ReceivingOrderListResponse struct {
	Items      []*ReceivingOrderResponse `json:"items"`
	TotalCount int64                     `json:"totalCount"`
	Limit      int                       `json:"limit"`
	Offset     int                       `json:"offset"`
}

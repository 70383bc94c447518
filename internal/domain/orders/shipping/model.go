// Package shipping provides the ShippingOrder document.
// A shipping order requests outbound quantities; pallets are committed to it
// by manual picking or cross-dock allocation, loaded and finally shipped.
package shipping

import (
	"context"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/entity"
	"stevedore/internal/core/id"
)

// Status is the shipping order lifecycle state.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusPicking   Status = "Picking"
	StatusLoading   Status = "Loading"
	StatusCompleted Status = "Completed"
	StatusShipped   Status = "Shipped"
	StatusCancelled Status = "Cancelled"
)

// ShipmentType distinguishes dock-loaded containers from hand delivery.
type ShipmentType string

const (
	// ContainerLoading ships via manifested container loads
	ContainerLoading ShipmentType = "Container_Loading"

	// HandDelivery hands staged pallets over without a per-pallet load step
	HandDelivery ShipmentType = "Hand_Delivery"
)

// Order represents one outbound request.
type Order struct {
	entity.Document

	// WarehouseID is the issuing site
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// ShipmentType selects the loading flow
	ShipmentType ShipmentType `db:"shipment_type" json:"shipmentType"`

	// Destination is the free-form delivery target
	Destination string `db:"destination" json:"destination,omitempty"`

	// Status is the order lifecycle state
	Status Status `db:"status" json:"status"`

	// Lines are the requested items (table part)
	Lines []Line `db:"-" json:"lines"`
}

// Line is one requested item on the order.
type Line struct {
	LineID       id.ID  `db:"line_id" json:"lineId"`
	LineNo       int    `db:"line_no" json:"lineNo"`
	ItemID       string `db:"item_id" json:"itemId"`
	RequestedQty int64  `db:"requested_qty" json:"requestedQty"`
}

// NewOrder creates a pending shipping order.
func NewOrder(warehouseID id.ID, shipmentType ShipmentType, destination string) *Order {
	return &Order{
		Document:     entity.NewDocument(),
		WarehouseID:  warehouseID,
		ShipmentType: shipmentType,
		Destination:  destination,
		Status:       StatusPending,
		Lines:        make([]Line, 0),
	}
}

// AddLine appends a requested item.
func (o *Order) AddLine(itemID string, requestedQty int64) {
	o.Lines = append(o.Lines, Line{
		LineID:       id.New(),
		LineNo:       len(o.Lines) + 1,
		ItemID:       itemID,
		RequestedQty: requestedQty,
	})
}

// Line returns the line holding itemID, or nil.
func (o *Order) Line(itemID string) *Line {
	for i := range o.Lines {
		if o.Lines[i].ItemID == itemID {
			return &o.Lines[i]
		}
	}
	return nil
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(o.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}

	if o.ShipmentType != ContainerLoading && o.ShipmentType != HandDelivery {
		return apperror.NewValidation("invalid shipment type").
			WithDetail("field", "shipmentType").
			WithDetail("value", string(o.ShipmentType))
	}

	if !isValidStatus(o.Status) {
		return apperror.NewValidation("invalid shipping order status").
			WithDetail("field", "status").
			WithDetail("value", string(o.Status))
	}

	if len(o.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	seen := make(map[string]bool, len(o.Lines))
	for i, line := range o.Lines {
		if line.ItemID == "" {
			return apperror.NewValidation("item is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.RequestedQty <= 0 {
			return apperror.NewValidation("requested quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if seen[line.ItemID] {
			return apperror.NewValidation("duplicate item line").
				WithDetail("field", "lines").
				WithDetail("itemId", line.ItemID)
		}
		seen[line.ItemID] = true
	}

	return nil
}

// IsOpenForAllocation reports whether cross-dock allocation and picking may
// still commit quantity to the order.
func (o *Order) IsOpenForAllocation() bool {
	return o.Status == StatusPending || o.Status == StatusPicking
}

// --- Status transitions ---

// StartPicking records the first manual pick.
func (o *Order) StartPicking() error {
	if o.Status != StatusPending {
		return o.rejectTransition(StatusPicking)
	}
	o.Status = StatusPicking
	return nil
}

// FinishPicking closes the picking phase. An order fully satisfied by
// cross-dock skips Picking and moves here straight from Pending; the service
// checks that precondition.
func (o *Order) FinishPicking() error {
	if o.Status != StatusPending && o.Status != StatusPicking {
		return o.rejectTransition(StatusLoading)
	}
	o.Status = StatusLoading
	return nil
}

// Complete records that every committed pallet left the warehouse.
func (o *Order) Complete() error {
	if o.Status != StatusLoading {
		return o.rejectTransition(StatusCompleted)
	}
	o.Status = StatusCompleted
	return nil
}

// MarkShipped is triggered by manifest close.
func (o *Order) MarkShipped() error {
	if o.Status != StatusCompleted {
		return o.rejectTransition(StatusShipped)
	}
	o.Status = StatusShipped
	return nil
}

// Cancel abandons the order. Allowed from any pre-Completed status; the
// service additionally rejects cancellation while pallets remain committed.
func (o *Order) Cancel() error {
	switch o.Status {
	case StatusPending, StatusPicking, StatusLoading:
		o.Status = StatusCancelled
		return nil
	}
	return o.rejectTransition(StatusCancelled)
}

func (o *Order) rejectTransition(to Status) error {
	return apperror.NewBusinessRule("shipping order cannot move to this status").
		WithDetail("order_id", o.ID).
		WithDetail("from", string(o.Status)).
		WithDetail("to", string(to))
}

func isValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusPicking, StatusLoading, StatusCompleted, StatusShipped, StatusCancelled:
		return true
	}
	return false
}

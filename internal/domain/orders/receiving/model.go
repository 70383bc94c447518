// Package receiving provides the ReceivingOrder document.
// A receiving order announces an inbound container and its expected lines;
// the tally flow turns those lines into pallets.
package receiving

import (
	"context"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/entity"
	"stevedore/internal/core/id"
)

// Status is the receiving order lifecycle state.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusUnloading Status = "Unloading"
	StatusStaged    Status = "Staged"
	StatusReceived  Status = "Received"
)

// Order represents one inbound receipt.
type Order struct {
	entity.Document

	// WarehouseID is the receiving site
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// ContainerRef is the inbound container or trailer reference
	ContainerRef string `db:"container_ref" json:"containerRef,omitempty"`

	// Status is the order lifecycle state
	Status Status `db:"status" json:"status"`

	// Lines are the expected items (table part)
	Lines []Line `db:"-" json:"lines"`
}

// Line is one expected item on the order.
type Line struct {
	LineID      id.ID  `db:"line_id" json:"lineId"`
	LineNo      int    `db:"line_no" json:"lineNo"`
	ItemID      string `db:"item_id" json:"itemId"`
	ExpectedQty int64  `db:"expected_qty" json:"expectedQty"`
}

// NewOrder creates a pending receiving order.
func NewOrder(warehouseID id.ID, containerRef string) *Order {
	return &Order{
		Document:     entity.NewDocument(),
		WarehouseID:  warehouseID,
		ContainerRef: containerRef,
		Status:       StatusPending,
		Lines:        make([]Line, 0),
	}
}

// AddLine appends an expected item.
func (o *Order) AddLine(itemID string, expectedQty int64) {
	o.Lines = append(o.Lines, Line{
		LineID:      id.New(),
		LineNo:      len(o.Lines) + 1,
		ItemID:      itemID,
		ExpectedQty: expectedQty,
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

	if !isValidStatus(o.Status) {
		return apperror.NewValidation("invalid receiving order status").
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
		if line.ExpectedQty <= 0 {
			return apperror.NewValidation("expected quantity must be positive").
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

// --- Status transitions ---

// StartUnloading moves the order to Unloading when the container is opened.
func (o *Order) StartUnloading() error {
	if o.Status != StatusPending {
		return o.rejectTransition(StatusUnloading)
	}
	o.Status = StatusUnloading
	return nil
}

// FinishTally closes the tally phase. The service verifies that at least one
// pallet was confirmed or cross-docked before calling this.
func (o *Order) FinishTally() error {
	if o.Status != StatusUnloading {
		return o.rejectTransition(StatusStaged)
	}
	o.Status = StatusStaged
	return nil
}

// Complete marks the receipt reviewed and final.
func (o *Order) Complete() error {
	if o.Status != StatusStaged {
		return o.rejectTransition(StatusReceived)
	}
	o.Status = StatusReceived
	return nil
}

// InTally reports whether tally actions (pallet confirmation, undo) are allowed.
func (o *Order) InTally() bool {
	return o.Status == StatusUnloading
}

func (o *Order) rejectTransition(to Status) error {
	return apperror.NewBusinessRule("receiving order cannot move to this status").
		WithDetail("order_id", o.ID).
		WithDetail("from", string(o.Status)).
		WithDetail("to", string(to))
}

func isValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusUnloading, StatusStaged, StatusReceived:
		return true
	}
	return false
}

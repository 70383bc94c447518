// Package allocation holds the quantity ledger, the cross-dock allocator and
// the tally workflow that creates pallets against receiving orders.
package allocation

import (
	"context"
	"fmt"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/domain/orders/receiving"
	"stevedore/internal/domain/orders/shipping"
	"stevedore/internal/domain/pallet"
)

// Ledger gates every assignment of pallet quantity to an order line.
//
// A check runs inside the caller's transaction: it locks the line row, then
// recomputes the committed total as a live sum over pallets, so two
// operators allocating against the same line serialize on the lock and the
// second one sees the first one's pallet. The ledger itself writes nothing;
// the caller performs the pallet write after a successful check.
type Ledger struct {
	receivingOrders receiving.Repository
	shippingOrders  shipping.Repository
	pallets         pallet.Repository
}

// NewLedger creates a quantity ledger.
func NewLedger(receivingOrders receiving.Repository, shippingOrders shipping.Repository, pallets pallet.Repository) *Ledger {
	return &Ledger{
		receivingOrders: receivingOrders,
		shippingOrders:  shippingOrders,
		pallets:         pallets,
	}
}

// CheckReceiving accepts a proposed quantity against a receiving line iff
// committed + qty stays within the line's expected quantity. Every pallet
// created against the line counts, whatever its current status.
func (l *Ledger) CheckReceiving(ctx context.Context, orderID id.ID, itemID string, qty int64) error {
	if qty <= 0 {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("qty", qty)
	}

	line, err := l.receivingOrders.LockLine(ctx, orderID, itemID)
	if err != nil {
		return err
	}

	committed, err := l.pallets.SumQtyForReceiving(ctx, orderID, itemID)
	if err != nil {
		return fmt.Errorf("sum receiving scope: %w", err)
	}

	if committed+qty > line.ExpectedQty {
		return apperror.NewQuantityExceeded(line.ExpectedQty, committed, qty)
	}
	return nil
}

// CheckShipping accepts a proposed quantity against a shipping line iff
// committed + qty stays within the line's requested quantity. Written-off
// pallets do not count. excludePalletID removes one pallet from the
// committed sum so a load toggle can re-pass the check without counting
// the pallet it is about to move.
func (l *Ledger) CheckShipping(ctx context.Context, orderID id.ID, itemID string, qty int64, excludePalletID *id.ID) error {
	if qty <= 0 {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("qty", qty)
	}

	line, err := l.shippingOrders.LockLine(ctx, orderID, itemID)
	if err != nil {
		return err
	}

	committed, err := l.pallets.SumQtyForShipping(ctx, orderID, itemID, excludePalletID)
	if err != nil {
		return fmt.Errorf("sum shipping scope: %w", err)
	}

	if committed+qty > line.RequestedQty {
		return apperror.NewQuantityExceeded(line.RequestedQty, committed, qty)
	}
	return nil
}

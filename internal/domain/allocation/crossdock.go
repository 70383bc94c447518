package allocation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/feature"
	"stevedore/internal/core/id"
	"stevedore/internal/domain/orders/shipping"
	"stevedore/internal/domain/pallet"
	"stevedore/pkg/logger"
)

// Allocator selects the shipping order a freshly unloaded pallet should be
// cross-docked to, bypassing storage and picking.
type Allocator struct {
	shippingOrders shipping.Repository
	pallets        pallet.Repository
	policy         Policy
	flags          feature.FlagProvider
}

// NewAllocator creates a cross-dock allocator.
func NewAllocator(shippingOrders shipping.Repository, pallets pallet.Repository, policy Policy, flags feature.FlagProvider) *Allocator {
	return &Allocator{
		shippingOrders: shippingOrders,
		pallets:        pallets,
		policy:         policy,
		flags:          flags,
	}
}

type eligibleOrder struct {
	order     *shipping.Order
	remaining int64
}

// SelectTarget picks one eligible shipping order for itemID and qty, or
// returns NoEligibleOrder when the candidate should fall through to a
// normal receipt. Eligible orders are Pending or Picking, hold positive
// remaining quantity for the item and pass the cross-dock policy. The pool
// of remaining quantity across all eligible orders must cover qty.
//
// Selection order: Container_Loading before Hand_Delivery, then earliest
// creation time, then ascending order ID as the deterministic tiebreak.
func (a *Allocator) SelectTarget(ctx context.Context, itemID string, qty int64) (*shipping.Order, error) {
	if a.flags.IsEnabled(ctx, feature.FlagCrossDockDisabled) {
		return nil, apperror.NewNoEligibleOrder(itemID, qty, 0)
	}

	candidates, err := a.shippingOrders.FindCandidatesByItem(ctx, itemID,
		shipping.StatusPending, shipping.StatusPicking)
	if err != nil {
		return nil, fmt.Errorf("find candidate orders: %w", err)
	}

	now := time.Now().UTC()
	var pool int64
	eligible := make([]eligibleOrder, 0, len(candidates))
	for _, order := range candidates {
		line := order.Line(itemID)
		if line == nil {
			continue
		}

		committed, err := a.pallets.SumQtyForShipping(ctx, order.ID, itemID, nil)
		if err != nil {
			return nil, fmt.Errorf("sum shipping scope: %w", err)
		}
		remaining := line.RequestedQty - committed
		if remaining <= 0 {
			continue
		}

		allowed := a.policy.Allow(ctx, Candidate{
			OrderID:      order.ID.String(),
			ShipmentType: order.ShipmentType,
			OrderAgeDays: int64(now.Sub(order.CreatedAt).Hours() / 24),
			ItemID:       itemID,
			Qty:          qty,
			Remaining:    remaining,
			Attributes:   order.Attributes.Clone(),
		})
		if !allowed {
			logger.Debug(ctx, "cross-dock candidate vetoed by policy",
				"order", order.Number, "item_id", itemID)
			continue
		}

		pool += remaining
		eligible = append(eligible, eligibleOrder{order: order, remaining: remaining})
	}

	if len(eligible) == 0 || pool < qty {
		return nil, apperror.NewNoEligibleOrder(itemID, qty, pool)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i].order, eligible[j].order
		if a.ShipmentType != b.ShipmentType {
			return a.ShipmentType == shipping.ContainerLoading
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return id.Compare(a.ID, b.ID) < 0
	})

	target := eligible[0].order
	logger.Debug(ctx, "cross-dock target selected",
		"order", target.Number, "item_id", itemID, "qty", qty, "pool", pool)
	return target, nil
}

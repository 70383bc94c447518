package allocation

import (
	"context"
	"fmt"
	"time"

	"stevedore/internal/core/apperror"
	appctx "stevedore/internal/core/context"
	"stevedore/internal/core/id"
	"stevedore/internal/core/numerator"
	"stevedore/internal/core/tx"
	"stevedore/internal/domain/catalogs/product"
	"stevedore/internal/domain/orders/receiving"
	"stevedore/internal/domain/pallet"
	"stevedore/pkg/logger"
)

// ProductSource resolves products by their natural item key.
type ProductSource interface {
	FindByItemID(ctx context.Context, itemID string) (*product.Product, error)
}

// Service runs the receiving tally: confirming pallet rows against the
// quantity ledger, diverting them to shipping orders via cross-dock, and
// undoing unconfirmed rows.
type Service struct {
	receivingOrders receiving.Repository
	pallets         pallet.Repository
	palletEvents    pallet.EventStore
	products        ProductSource
	ledger          *Ledger
	allocator       *Allocator
	gen             numerator.Generator
	txManager       tx.Manager
}

// NewService creates a tally service.
func NewService(
	receivingOrders receiving.Repository,
	pallets pallet.Repository,
	palletEvents pallet.EventStore,
	products ProductSource,
	ledger *Ledger,
	allocator *Allocator,
	gen numerator.Generator,
	txManager tx.Manager,
) *Service {
	return &Service{
		receivingOrders: receivingOrders,
		pallets:         pallets,
		palletEvents:    palletEvents,
		products:        products,
		ledger:          ledger,
		allocator:       allocator,
		gen:             gen,
		txManager:       txManager,
	}
}

// ConfirmTallyPallet confirms one tally row as a pallet. With shipNow the
// cross-dock allocator is consulted first; if no shipping order is eligible
// the row falls through to a normal receipt. The receiving line ceiling is
// enforced on both paths: a cross-docked pallet was still received.
func (s *Service) ConfirmTallyPallet(ctx context.Context, orderID id.ID, itemID string, qty int64, shipNow bool) (*pallet.Pallet, error) {
	return s.confirm(ctx, orderID, itemID, qty, shipNow, false)
}

// AllocateShipNow confirms one tally row as a cross-docked pallet. Unlike
// ConfirmTallyPallet with shipNow, an empty eligible set is reported to the
// caller instead of falling back to a normal receipt.
func (s *Service) AllocateShipNow(ctx context.Context, orderID id.ID, itemID string, qty int64) (*pallet.Pallet, error) {
	return s.confirm(ctx, orderID, itemID, qty, true, true)
}

func (s *Service) confirm(ctx context.Context, orderID id.ID, itemID string, qty int64, shipNow, strict bool) (*pallet.Pallet, error) {
	var p *pallet.Pallet
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		order, err := s.receivingOrders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.InTally() {
			return apperror.NewBusinessRule("pallets can be confirmed only while the order is unloading").
				WithDetail("order_id", orderID).
				WithDetail("status", string(order.Status))
		}

		if err := s.ledger.CheckReceiving(ctx, orderID, itemID, qty); err != nil {
			return err
		}

		if shipNow {
			p, err = s.allocateCrossDock(ctx, orderID, itemID, qty)
			switch {
			case err == nil:
				return nil
			case apperror.IsNoEligibleOrder(err) && !strict:
				logger.Debug(ctx, "no cross-dock target, falling back to normal receipt",
					"order_id", orderID, "item_id", itemID, "qty", qty)
			default:
				return err
			}
		}

		p, err = s.createReceived(ctx, orderID, itemID, qty)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "tally pallet confirmed",
		"label", p.Label, "item_id", itemID, "qty", qty, "cross_dock", p.IsCrossDock)
	return p, nil
}

// allocateCrossDock selects a target order, re-passes the ledger in the
// shipping scope and creates the pallet directly in Staged.
func (s *Service) allocateCrossDock(ctx context.Context, orderID id.ID, itemID string, qty int64) (*pallet.Pallet, error) {
	target, err := s.allocator.SelectTarget(ctx, itemID, qty)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.CheckShipping(ctx, target.ID, itemID, qty, nil); err != nil {
		return nil, err
	}

	label, err := s.nextLabel(ctx)
	if err != nil {
		return nil, err
	}

	p := pallet.NewCrossDocked(label, itemID, qty, orderID, target.ID)
	if err := s.pallets.Create(ctx, p); err != nil {
		return nil, err
	}

	event := pallet.NewEvent(p, pallet.EventCreated, nil, appctx.GetOperatorID(ctx)).
		WithDetail("receiving_order_id", orderID.String()).
		WithDetail("shipping_order_id", target.ID.String()).
		WithDetail("qty", qty).
		WithDetail("cross_dock", true)
	if err := s.palletEvents.Append(ctx, event); err != nil {
		return nil, err
	}
	return p, nil
}

// createReceived creates a normal-receipt pallet in Received.
func (s *Service) createReceived(ctx context.Context, orderID id.ID, itemID string, qty int64) (*pallet.Pallet, error) {
	label, err := s.nextLabel(ctx)
	if err != nil {
		return nil, err
	}

	p := pallet.NewReceived(label, itemID, qty, orderID)
	if err := s.pallets.Create(ctx, p); err != nil {
		return nil, err
	}

	event := pallet.NewEvent(p, pallet.EventCreated, nil, appctx.GetOperatorID(ctx)).
		WithDetail("receiving_order_id", orderID.String()).
		WithDetail("qty", qty)
	if err := s.palletEvents.Append(ctx, event); err != nil {
		return nil, err
	}
	return p, nil
}

// UndoTallyPallet removes a pallet confirmed by mistake during an open
// tally. Only pallets untouched since creation can be undone: Received for
// a normal receipt, Staged cross-dock for a SHIP-NOW receipt. The pallet
// row is removed, its event trail stays.
func (s *Service) UndoTallyPallet(ctx context.Context, palletID id.ID) error {
	var label string
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.pallets.GetForUpdate(ctx, palletID)
		if err != nil {
			return err
		}
		label = p.Label

		if p.ReceivingOrderID == nil {
			return apperror.NewBusinessRule("only tally pallets can be undone").
				WithDetail("pallet_id", palletID)
		}
		order, err := s.receivingOrders.GetByID(ctx, *p.ReceivingOrderID)
		if err != nil {
			return err
		}
		if !order.InTally() {
			return apperror.NewBusinessRule("tally actions can be undone only while the order is unloading").
				WithDetail("order_id", order.ID).
				WithDetail("status", string(order.Status))
		}

		untouched := p.Status == pallet.StatusReceived ||
			(p.Status == pallet.StatusStaged && p.IsCrossDock)
		if !untouched {
			return apperror.NewBusinessRule("pallet has already moved and can no longer be undone").
				WithDetail("pallet_id", palletID).
				WithDetail("status", string(p.Status))
		}

		from := p.Status
		event := pallet.NewEvent(p, pallet.EventUndone, &from, appctx.GetOperatorID(ctx)).
			WithDetail("qty", p.Qty).
			WithDetail("item_id", p.ItemID)
		if err := s.palletEvents.Append(ctx, event); err != nil {
			return err
		}

		return s.pallets.HardDelete(ctx, palletID)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "tally pallet undone", "pallet_id", palletID, "label", label)
	return nil
}

// PlanRows splits a receiving line into suggested pallet rows using the
// product's units-per-pallet capacity.
func (s *Service) PlanRows(ctx context.Context, orderID id.ID, itemID string) ([]pallet.Row, error) {
	order, err := s.receivingOrders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	lines, err := s.receivingOrders.GetLines(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	order.Lines = lines

	line := order.Line(itemID)
	if line == nil {
		return nil, apperror.NewNotFound("receiving order line", itemID)
	}

	prod, err := s.products.FindByItemID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	return pallet.PlanRows(line.ExpectedQty, prod.UnitsPerPallet)
}

func (s *Service) nextLabel(ctx context.Context) (string, error) {
	label, err := s.gen.GetNextNumber(ctx, pallet.LabelNumeratorConfig(),
		&numerator.Options{Strategy: pallet.LabelNumeratorStrategy, RangeSize: 100}, time.Now())
	if err != nil {
		return "", fmt.Errorf("generate pallet label: %w", err)
	}
	return label, nil
}

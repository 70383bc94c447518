package shipping

import (
	"context"
	"fmt"
	"time"

	"stevedore/internal/core/apperror"
	appctx "stevedore/internal/core/context"
	"stevedore/internal/core/feature"
	"stevedore/internal/core/id"
	"stevedore/internal/core/numerator"
	"stevedore/internal/core/tx"
	"stevedore/internal/domain"
	"stevedore/internal/domain/audit"
	"stevedore/internal/domain/events"
	"stevedore/internal/domain/orders"
	"stevedore/internal/domain/pallet"
	"stevedore/pkg/logger"
)

// QuantityGate validates a proposed quantity against an order line ceiling.
// The allocation ledger implements it; the indirection keeps this package
// from importing its own consumer.
type QuantityGate interface {
	CheckShipping(ctx context.Context, orderID id.ID, itemID string, qty int64, excludePalletID *id.ID) error
}

// ManifestSource answers whether a manifest can still accept pallets.
type ManifestSource interface {
	// EnsureOpen returns an error unless the manifest exists and is open.
	EnsureOpen(ctx context.Context, manifestID id.ID) error
}

// Service provides business operations for shipping orders, including the
// pallet operations that commit outbound quantity (pick, load toggle).
type Service struct {
	repo         Repository
	pallets      pallet.Repository
	palletEvents pallet.EventStore
	gate         QuantityGate
	manifests    ManifestSource
	gen          numerator.Generator
	publisher    events.Publisher
	editPolicy   orders.EditPolicy
	flags        feature.FlagProvider
	txManager    tx.Manager
	hooks        *domain.HookRegistry[*Order]
}

// NewService creates a shipping order service.
func NewService(
	repo Repository,
	pallets pallet.Repository,
	palletEvents pallet.EventStore,
	gate QuantityGate,
	manifests ManifestSource,
	gen numerator.Generator,
	publisher events.Publisher,
	editPolicy orders.EditPolicy,
	flags feature.FlagProvider,
	txManager tx.Manager,
) *Service {
	svc := &Service{
		repo:         repo,
		pallets:      pallets,
		palletEvents: palletEvents,
		gate:         gate,
		manifests:    manifests,
		gen:          gen,
		publisher:    publisher,
		editPolicy:   editPolicy,
		flags:        flags,
		txManager:    txManager,
		hooks:        domain.NewHookRegistry[*Order](),
	}
	svc.hooks.OnBeforeCreate(func(ctx context.Context, o *Order) error {
		return audit.EnrichCreatedBy(ctx, o)
	})
	svc.hooks.OnBeforeUpdate(func(ctx context.Context, o *Order) error {
		return audit.EnrichUpdatedBy(ctx, o)
	})
	return svc
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Order] {
	return s.hooks
}

// Create creates a new shipping order. New orders always start Pending.
func (s *Service) Create(ctx context.Context, doc *Order) error {
	if err := s.hooks.RunBeforeCreate(ctx, doc); err != nil {
		return err
	}

	doc.Status = StatusPending

	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if doc.Number == "" {
		number, err := s.gen.GetNextNumber(ctx, numerator.DefaultConfig(NumberPrefix),
			&numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterCreate(ctx, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "shipping order created",
		"id", doc.ID, "number", doc.Number, "type", string(doc.ShipmentType))
	return nil
}

// GetByID retrieves a shipping order with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Order, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines

	return doc, nil
}

// Update modifies header fields and lines. Line edits are gated by the edit
// policy, and requested quantities can never drop below the committed total.
func (s *Service) Update(ctx context.Context, doc *Order) error {
	if err := s.hooks.RunBeforeUpdate(ctx, doc); err != nil {
		return err
	}

	current, err := s.GetByID(ctx, doc.ID)
	if err != nil {
		return err
	}
	doc.Status = current.Status // status changes only through transitions
	doc.ShipmentType = current.ShipmentType

	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if linesChanged(current.Lines, doc.Lines) {
		if err := s.editPolicy.CanModifyLines(ctx, string(current.Status)); err != nil {
			return err
		}
		if err := s.checkLineFloors(ctx, doc.ID, current.Lines, doc.Lines); err != nil {
			return err
		}
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
}

// Delete soft-deletes an order no pallet ever committed to.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	result, err := s.pallets.List(ctx, pallet.ListFilter{
		ListFilter:      domain.ListFilter{Limit: 1},
		ShippingOrderID: &docID,
	})
	if err != nil {
		return fmt.Errorf("count pallets: %w", err)
	}
	if result.TotalCount > 0 {
		return apperror.NewBusinessRule("shipping order with pallets cannot be deleted").
			WithDetail("order_id", docID).
			WithDetail("pallets", result.TotalCount)
	}
	if doc.Status != StatusPending {
		return apperror.NewBusinessRule("only pending shipping orders can be deleted").
			WithDetail("status", string(doc.Status))
	}

	return s.repo.Delete(ctx, docID)
}

// List retrieves shipping orders with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error) {
	return s.repo.List(ctx, filter)
}

// --- Pallet operations ---

// PickPallet commits one stored pallet to the order. The first manual pick
// moves a pending order into Picking. The quantity gate revalidates the line
// ceiling under a row lock before the pallet is staged.
func (s *Service) PickPallet(ctx context.Context, palletID, orderID id.ID) (*pallet.Pallet, error) {
	var p *pallet.Pallet
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.pallets.GetForUpdate(ctx, palletID)
		if err != nil {
			return err
		}

		doc, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !doc.IsOpenForAllocation() {
			return apperror.NewBusinessRule("pallets can be picked only while the order is pending or picking").
				WithDetail("order_id", orderID).
				WithDetail("status", string(doc.Status))
		}

		if err := s.gate.CheckShipping(ctx, orderID, p.ItemID, p.Qty, nil); err != nil {
			return err
		}

		from := p.Status
		if err := p.Pick(orderID); err != nil {
			return err
		}
		if err := s.pallets.Update(ctx, p); err != nil {
			return err
		}

		event := pallet.NewEvent(p, pallet.EventPicked, &from, appctx.GetOperatorID(ctx)).
			WithDetail("shipping_order_id", orderID.String())
		if err := s.palletEvents.Append(ctx, event); err != nil {
			return err
		}

		if doc.Status == StatusPending {
			locked, err := s.repo.GetForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			if locked.Status == StatusPending {
				if err := locked.StartPicking(); err != nil {
					return err
				}
				if err := s.repo.Update(ctx, locked); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "pallet picked",
		"pallet_id", p.ID, "label", p.Label, "order_id", orderID)
	return p, nil
}

// ToggleLoaded switches one staged pallet onto a container (on=true) or back
// off it (on=false). Container shipments require an open manifest; toggling
// on re-passes the quantity gate with the pallet excluded from the committed
// sum, so a line ceiling lowered since picking is caught here.
func (s *Service) ToggleLoaded(ctx context.Context, palletID id.ID, on bool, manifestID *id.ID) (*pallet.Pallet, error) {
	var p *pallet.Pallet
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.pallets.GetForUpdate(ctx, palletID)
		if err != nil {
			return err
		}
		if p.ShippingOrderID == nil {
			return apperror.NewBusinessRule("pallet is not committed to a shipping order").
				WithDetail("pallet_id", palletID)
		}
		orderID := *p.ShippingOrderID

		doc, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if doc.Status != StatusLoading {
			return apperror.NewBusinessRule("pallets can be loaded only while the order is loading").
				WithDetail("order_id", orderID).
				WithDetail("status", string(doc.Status))
		}

		from := p.Status
		if on {
			if doc.ShipmentType == ContainerLoading {
				if manifestID == nil {
					return apperror.NewValidation("container loading requires a manifest").
						WithDetail("field", "manifestId")
				}
				if err := s.manifests.EnsureOpen(ctx, *manifestID); err != nil {
					return err
				}
			} else if manifestID != nil {
				return apperror.NewValidation("hand delivery shipments do not use manifests").
					WithDetail("field", "manifestId")
			}

			if err := s.gate.CheckShipping(ctx, orderID, p.ItemID, p.Qty, &p.ID); err != nil {
				return err
			}
			if err := p.ToggleLoadOn(manifestID); err != nil {
				return err
			}
		} else {
			if err := p.ToggleLoadOff(); err != nil {
				return err
			}
		}

		if err := s.pallets.Update(ctx, p); err != nil {
			return err
		}

		kind := pallet.EventLoaded
		if !on {
			kind = pallet.EventUnloaded
		}
		event := pallet.NewEvent(p, kind, &from, appctx.GetOperatorID(ctx))
		if manifestID != nil {
			event = event.WithDetail("manifest_id", manifestID.String())
		}
		return s.palletEvents.Append(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "pallet load toggled",
		"pallet_id", p.ID, "label", p.Label, "loaded", on)
	return p, nil
}

// --- Status transitions ---

// FinishPicking closes the picking phase. Allowed once at least one pallet
// was manually picked, or when cross-dock allocation alone already covered
// every requested quantity.
func (s *Service) FinishPicking(ctx context.Context, docID id.ID) (*Order, error) {
	var doc *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}

		manual, err := s.pallets.CountManualPicks(ctx, docID)
		if err != nil {
			return fmt.Errorf("count manual picks: %w", err)
		}
		if manual == 0 {
			remaining, err := s.totalRemaining(ctx, docID)
			if err != nil {
				return err
			}
			if remaining > 0 {
				return apperror.NewBusinessRule("picking cannot finish without picks while quantity remains").
					WithDetail("order_id", docID).
					WithDetail("remaining", remaining)
			}
		}

		if err := doc.FinishPicking(); err != nil {
			return err
		}
		return s.repo.Update(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "shipping order loading", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// FinalizeLoad ships the order's loaded pallets. Hand delivery has no
// per-pallet load step, so finalization ships its staged pallets as well.
// Staged pallets left behind keep the order in Loading for the next truck
// unless the single-truck flag forces completion. Completion publishes
// shipping.completed.
func (s *Service) FinalizeLoad(ctx context.Context, docID id.ID) (*Order, error) {
	var doc *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if doc.Status != StatusLoading {
			return apperror.NewBusinessRule("only loading orders can be finalized").
				WithDetail("order_id", docID).
				WithDetail("status", string(doc.Status))
		}

		list, err := s.pallets.ListByShippingOrder(ctx, docID)
		if err != nil {
			return fmt.Errorf("list pallets: %w", err)
		}

		now := time.Now().UTC()
		actor := appctx.GetOperatorID(ctx)
		shipped := 0
		stagedLeft := 0
		for _, p := range list {
			eligible := p.Status == pallet.StatusLoaded ||
				(doc.ShipmentType == HandDelivery && p.Status == pallet.StatusStaged)
			if !eligible {
				if p.Status == pallet.StatusStaged {
					stagedLeft++
				}
				continue
			}

			from := p.Status
			if err := p.Ship(now); err != nil {
				return err
			}
			if err := s.pallets.Update(ctx, p); err != nil {
				return err
			}
			event := pallet.NewEvent(p, pallet.EventShipped, &from, actor)
			if p.ManifestID != nil {
				event = event.WithDetail("manifest_id", p.ManifestID.String())
			}
			if err := s.palletEvents.Append(ctx, event); err != nil {
				return err
			}
			shipped++
		}

		if shipped == 0 {
			return apperror.NewBusinessRule("no pallets are ready to ship").
				WithDetail("order_id", docID)
		}

		if stagedLeft > 0 && !s.flags.IsEnabled(ctx, feature.FlagSingleTruckLoading) {
			logger.Info(ctx, "partial load shipped, order stays loading",
				"id", doc.ID, "shipped", shipped, "staged_left", stagedLeft)
			return nil
		}

		if err := doc.Complete(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		return s.publisher.Publish(ctx, events.Event{
			AggregateType: "ShippingOrder",
			AggregateID:   doc.ID,
			EventType:     events.TypeShippingCompleted,
			Payload: map[string]any{
				"number":        doc.Number,
				"shipment_type": string(doc.ShipmentType),
				"pallets":       shipped,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "shipping order load finalized",
		"id", doc.ID, "number", doc.Number, "status", string(doc.Status))
	return doc, nil
}

// Cancel abandons a pre-Completed order. Rejected while the order still owns
// staged or loaded pallets; those must be toggled off and written off first.
func (s *Service) Cancel(ctx context.Context, docID id.ID) (*Order, error) {
	var doc *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}

		held, err := s.pallets.CountByShippingOrderInStatuses(ctx, docID,
			pallet.StatusStaged, pallet.StatusLoaded)
		if err != nil {
			return fmt.Errorf("count held pallets: %w", err)
		}
		if held > 0 {
			return apperror.NewBusinessRule("order with staged or loaded pallets cannot be cancelled").
				WithDetail("order_id", docID).
				WithDetail("pallets", held)
		}

		if err := doc.Cancel(); err != nil {
			return err
		}
		return s.repo.Update(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "shipping order cancelled", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// --- Read models ---

// LineProgress is the fulfillment read model for one line.
type LineProgress struct {
	LineNo         int    `json:"lineNo"`
	ItemID         string `json:"itemId"`
	RequestedQty   int64  `json:"requestedQty"`
	CommittedQty   int64  `json:"committedQty"`
	CrossDockedQty int64  `json:"crossDockedQty"`
	RemainingQty   int64  `json:"remainingQty"`
}

// PalletCounts breaks the order's pallets down by lifecycle state.
type PalletCounts struct {
	Staged     int64 `json:"staged"`
	Loaded     int64 `json:"loaded"`
	Shipped    int64 `json:"shipped"`
	WrittenOff int64 `json:"writtenOff"`
}

// Progress is the fulfillment read model for one order.
type Progress struct {
	OrderID      id.ID          `json:"orderId"`
	Number       string         `json:"number"`
	Status       Status         `json:"status"`
	ShipmentType ShipmentType   `json:"shipmentType"`
	Lines        []LineProgress `json:"lines"`
	Pallets      PalletCounts   `json:"pallets"`
}

// Progress returns per-line requested/committed/remaining quantities plus
// pallet counts, aggregated from a single pallet listing.
func (s *Service) Progress(ctx context.Context, docID id.ID) (*Progress, error) {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	list, err := s.pallets.ListByShippingOrder(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("list pallets: %w", err)
	}

	committed := make(map[string]int64)
	crossDocked := make(map[string]int64)
	var counts PalletCounts
	for _, p := range list {
		switch p.Status {
		case pallet.StatusStaged:
			counts.Staged++
		case pallet.StatusLoaded:
			counts.Loaded++
		case pallet.StatusShipped:
			counts.Shipped++
		case pallet.StatusWriteOff:
			counts.WrittenOff++
			continue // written-off pallets do not count toward the line
		}
		committed[p.ItemID] += p.Qty
		if p.IsCrossDock {
			crossDocked[p.ItemID] += p.Qty
		}
	}

	progress := &Progress{
		OrderID:      doc.ID,
		Number:       doc.Number,
		Status:       doc.Status,
		ShipmentType: doc.ShipmentType,
		Lines:        make([]LineProgress, 0, len(doc.Lines)),
		Pallets:      counts,
	}
	for _, line := range doc.Lines {
		progress.Lines = append(progress.Lines, LineProgress{
			LineNo:         line.LineNo,
			ItemID:         line.ItemID,
			RequestedQty:   line.RequestedQty,
			CommittedQty:   committed[line.ItemID],
			CrossDockedQty: crossDocked[line.ItemID],
			RemainingQty:   line.RequestedQty - committed[line.ItemID],
		})
	}

	return progress, nil
}

// totalRemaining sums requested minus committed over every line.
func (s *Service) totalRemaining(ctx context.Context, docID id.ID) (int64, error) {
	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return 0, fmt.Errorf("get lines: %w", err)
	}

	var remaining int64
	for _, line := range lines {
		sum, err := s.pallets.SumQtyForShipping(ctx, docID, line.ItemID, nil)
		if err != nil {
			return 0, fmt.Errorf("sum committed for %s: %w", line.ItemID, err)
		}
		if line.RequestedQty > sum {
			remaining += line.RequestedQty - sum
		}
	}
	return remaining, nil
}

// checkLineFloors rejects edits dropping a ceiling below the committed total.
func (s *Service) checkLineFloors(ctx context.Context, orderID id.ID, oldLines, newLines []Line) error {
	newByItem := make(map[string]int64, len(newLines))
	for _, line := range newLines {
		newByItem[line.ItemID] = line.RequestedQty
	}

	for _, old := range oldLines {
		committed, err := s.pallets.SumQtyForShipping(ctx, orderID, old.ItemID, nil)
		if err != nil {
			return fmt.Errorf("sum committed for %s: %w", old.ItemID, err)
		}
		if committed == 0 {
			continue
		}

		newQty, kept := newByItem[old.ItemID]
		if !kept {
			return apperror.NewBusinessRule("line with committed pallets cannot be removed").
				WithDetail("itemId", old.ItemID).
				WithDetail("committed", committed)
		}
		if newQty < committed {
			return apperror.NewBusinessRule("requested quantity cannot drop below the committed total").
				WithDetail("itemId", old.ItemID).
				WithDetail("requested", newQty).
				WithDetail("committed", committed)
		}
	}
	return nil
}

func linesChanged(a, b []Line) bool {
	if len(a) != len(b) {
		return true
	}
	byItem := make(map[string]int64, len(a))
	for _, line := range a {
		byItem[line.ItemID] = line.RequestedQty
	}
	for _, line := range b {
		qty, ok := byItem[line.ItemID]
		if !ok || qty != line.RequestedQty {
			return true
		}
	}
	return false
}

package receiving

import (
	"context"
	"fmt"
	"time"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/core/numerator"
	"stevedore/internal/core/tx"
	"stevedore/internal/domain"
	"stevedore/internal/domain/audit"
	"stevedore/internal/domain/catalogs/product"
	"stevedore/internal/domain/events"
	"stevedore/internal/domain/orders"
	"stevedore/internal/domain/pallet"
	"stevedore/pkg/logger"
)

// PalletSource exposes the pallet aggregates the coordinator rules need.
type PalletSource interface {
	CountByReceivingOrder(ctx context.Context, orderID id.ID) (int64, error)
	SumQtyForReceiving(ctx context.Context, orderID id.ID, itemID string) (int64, error)
}

// ProductSource resolves products by their natural item key.
type ProductSource interface {
	FindByItemID(ctx context.Context, itemID string) (*product.Product, error)
}

// Service provides business operations for receiving orders.
type Service struct {
	repo       Repository
	pallets    PalletSource
	products   ProductSource
	gen        numerator.Generator
	publisher  events.Publisher
	editPolicy orders.EditPolicy
	txManager  tx.Manager
	hooks      *domain.HookRegistry[*Order]
}

// NewService creates a receiving order service.
func NewService(
	repo Repository,
	pallets PalletSource,
	products ProductSource,
	gen numerator.Generator,
	publisher events.Publisher,
	editPolicy orders.EditPolicy,
	txManager tx.Manager,
) *Service {
	svc := &Service{
		repo:       repo,
		pallets:    pallets,
		products:   products,
		gen:        gen,
		publisher:  publisher,
		editPolicy: editPolicy,
		txManager:  txManager,
		hooks:      domain.NewHookRegistry[*Order](),
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

// Create creates a new receiving order. New orders always start Pending.
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

	logger.Info(ctx, "receiving order created", "id", doc.ID, "number", doc.Number)
	return nil
}

// GetByID retrieves a receiving order with lines.
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
// policy, and expected quantities can never drop below the tallied total.
func (s *Service) Update(ctx context.Context, doc *Order) error {
	if err := s.hooks.RunBeforeUpdate(ctx, doc); err != nil {
		return err
	}

	current, err := s.GetByID(ctx, doc.ID)
	if err != nil {
		return err
	}
	doc.Status = current.Status // status changes only through transitions

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

// Delete soft-deletes an order that produced no pallets.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	count, err := s.pallets.CountByReceivingOrder(ctx, docID)
	if err != nil {
		return fmt.Errorf("count pallets: %w", err)
	}
	if count > 0 {
		return apperror.NewBusinessRule("receiving order with pallets cannot be deleted").
			WithDetail("order_id", docID).
			WithDetail("pallets", count)
	}
	if doc.Status != StatusPending {
		return apperror.NewBusinessRule("only pending receiving orders can be deleted").
			WithDetail("status", string(doc.Status))
	}

	return s.repo.Delete(ctx, docID)
}

// List retrieves receiving orders with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error) {
	return s.repo.List(ctx, filter)
}

// --- Status transitions ---

// StartUnloading opens the tally phase.
func (s *Service) StartUnloading(ctx context.Context, docID id.ID) (*Order, error) {
	var doc *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.StartUnloading(); err != nil {
			return err
		}
		return s.repo.Update(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "receiving order unloading", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// FinishTally closes the tally phase. Requires at least one confirmed or
// cross-docked pallet; finishing is always a manual action, never automatic
// on zero remaining.
func (s *Service) FinishTally(ctx context.Context, docID id.ID) (*Order, error) {
	var doc *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}

		count, err := s.pallets.CountByReceivingOrder(ctx, docID)
		if err != nil {
			return fmt.Errorf("count pallets: %w", err)
		}
		if count == 0 {
			return apperror.NewBusinessRule("tally cannot finish without a single confirmed pallet").
				WithDetail("order_id", docID)
		}

		if err := doc.FinishTally(); err != nil {
			return err
		}
		return s.repo.Update(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "receiving order tally finished", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// Complete finalizes the receipt and publishes order.received.
func (s *Service) Complete(ctx context.Context, docID id.ID) (*Order, error) {
	var doc *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.Complete(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		return s.publisher.Publish(ctx, events.Event{
			AggregateType: "ReceivingOrder",
			AggregateID:   doc.ID,
			EventType:     events.TypeOrderReceived,
			Payload: map[string]any{
				"number":       doc.Number,
				"warehouse_id": doc.WarehouseID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "receiving order completed", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// --- Read models ---

// LineProgress is the tally read model for one line.
type LineProgress struct {
	LineNo       int          `json:"lineNo"`
	ItemID       string       `json:"itemId"`
	ExpectedQty  int64        `json:"expectedQty"`
	CommittedQty int64        `json:"committedQty"`
	RemainingQty int64        `json:"remainingQty"`
	PlannedRows  []pallet.Row `json:"plannedRows"`
}

// TallyProgress is the tally read model for one order.
type TallyProgress struct {
	OrderID id.ID          `json:"orderId"`
	Number  string         `json:"number"`
	Status  Status         `json:"status"`
	Lines   []LineProgress `json:"lines"`
}

// Tally returns per-line expected/committed/remaining plus planner rows.
func (s *Service) Tally(ctx context.Context, docID id.ID) (*TallyProgress, error) {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	progress := &TallyProgress{
		OrderID: doc.ID,
		Number:  doc.Number,
		Status:  doc.Status,
		Lines:   make([]LineProgress, 0, len(doc.Lines)),
	}

	for _, line := range doc.Lines {
		committed, err := s.pallets.SumQtyForReceiving(ctx, docID, line.ItemID)
		if err != nil {
			return nil, fmt.Errorf("sum committed for %s: %w", line.ItemID, err)
		}

		lp := LineProgress{
			LineNo:       line.LineNo,
			ItemID:       line.ItemID,
			ExpectedQty:  line.ExpectedQty,
			CommittedQty: committed,
			RemainingQty: line.ExpectedQty - committed,
		}

		prod, err := s.products.FindByItemID(ctx, line.ItemID)
		if err == nil && prod.UnitsPerPallet > 0 {
			if rows, planErr := pallet.PlanRows(line.ExpectedQty, prod.UnitsPerPallet); planErr == nil {
				lp.PlannedRows = rows
			}
		}

		progress.Lines = append(progress.Lines, lp)
	}

	return progress, nil
}

// checkLineFloors rejects edits dropping a ceiling below the committed total.
func (s *Service) checkLineFloors(ctx context.Context, orderID id.ID, oldLines, newLines []Line) error {
	newByItem := make(map[string]int64, len(newLines))
	for _, line := range newLines {
		newByItem[line.ItemID] = line.ExpectedQty
	}

	for _, old := range oldLines {
		committed, err := s.pallets.SumQtyForReceiving(ctx, orderID, old.ItemID)
		if err != nil {
			return fmt.Errorf("sum committed for %s: %w", old.ItemID, err)
		}
		if committed == 0 {
			continue
		}

		newQty, kept := newByItem[old.ItemID]
		if !kept {
			return apperror.NewBusinessRule("line with tallied pallets cannot be removed").
				WithDetail("itemId", old.ItemID).
				WithDetail("committed", committed)
		}
		if newQty < committed {
			return apperror.NewBusinessRule("expected quantity cannot drop below the tallied total").
				WithDetail("itemId", old.ItemID).
				WithDetail("expected", newQty).
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
		byItem[line.ItemID] = line.ExpectedQty
	}
	for _, line := range b {
		qty, ok := byItem[line.ItemID]
		if !ok || qty != line.ExpectedQty {
			return true
		}
	}
	return false
}

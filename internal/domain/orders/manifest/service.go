package manifest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/core/numerator"
	"stevedore/internal/core/tx"
	"stevedore/internal/domain"
	"stevedore/internal/domain/audit"
	"stevedore/internal/domain/events"
	"stevedore/internal/domain/orders/shipping"
	"stevedore/internal/domain/pallet"
	"stevedore/pkg/logger"
)

// Service provides business operations for manifests.
type Service struct {
	repo           Repository
	pallets        pallet.Repository
	shippingOrders shipping.Repository
	gen            numerator.Generator
	publisher      events.Publisher
	txManager      tx.Manager
	hooks          *domain.HookRegistry[*Manifest]
}

// NewService creates a manifest service.
func NewService(
	repo Repository,
	pallets pallet.Repository,
	shippingOrders shipping.Repository,
	gen numerator.Generator,
	publisher events.Publisher,
	txManager tx.Manager,
) *Service {
	svc := &Service{
		repo:           repo,
		pallets:        pallets,
		shippingOrders: shippingOrders,
		gen:            gen,
		publisher:      publisher,
		txManager:      txManager,
		hooks:          domain.NewHookRegistry[*Manifest](),
	}
	svc.hooks.OnBeforeCreate(func(ctx context.Context, m *Manifest) error {
		return audit.EnrichCreatedBy(ctx, m)
	})
	svc.hooks.OnBeforeUpdate(func(ctx context.Context, m *Manifest) error {
		return audit.EnrichUpdatedBy(ctx, m)
	})
	return svc
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Manifest] {
	return s.hooks
}

// Create creates a new manifest. New manifests always start Open.
func (s *Service) Create(ctx context.Context, m *Manifest) error {
	if err := s.hooks.RunBeforeCreate(ctx, m); err != nil {
		return err
	}

	m.Status = StatusOpen

	if err := m.Validate(ctx); err != nil {
		return err
	}

	if m.Number == "" {
		number, err := s.gen.GetNextNumber(ctx, numerator.DefaultConfig(NumberPrefix),
			&numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		m.Number = number
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return err
	}

	if err := s.hooks.RunAfterCreate(ctx, m); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "manifest created", "id", m.ID, "number", m.Number)
	return nil
}

// GetByID retrieves a manifest.
func (s *Service) GetByID(ctx context.Context, manifestID id.ID) (*Manifest, error) {
	return s.repo.GetByID(ctx, manifestID)
}

// Update modifies header fields of an open manifest.
func (s *Service) Update(ctx context.Context, m *Manifest) error {
	if err := s.hooks.RunBeforeUpdate(ctx, m); err != nil {
		return err
	}

	current, err := s.repo.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	if !current.IsOpen() {
		return apperror.NewBusinessRule("only open manifests can be edited").
			WithDetail("status", string(current.Status))
	}
	m.Status = current.Status
	m.ShipmentType = current.ShipmentType

	if err := m.Validate(ctx); err != nil {
		return err
	}
	return s.repo.Update(ctx, m)
}

// Delete soft-deletes an open manifest no pallet was ever loaded onto.
func (s *Service) Delete(ctx context.Context, manifestID id.ID) error {
	m, err := s.repo.GetByID(ctx, manifestID)
	if err != nil {
		return err
	}
	if !m.IsOpen() {
		return apperror.NewBusinessRule("only open manifests can be deleted").
			WithDetail("status", string(m.Status))
	}

	list, err := s.pallets.ListByManifest(ctx, manifestID)
	if err != nil {
		return fmt.Errorf("list pallets: %w", err)
	}
	if len(list) > 0 {
		return apperror.NewBusinessRule("manifest with pallets cannot be deleted").
			WithDetail("manifest_id", manifestID).
			WithDetail("pallets", len(list))
	}

	return s.repo.Delete(ctx, manifestID)
}

// List retrieves manifests with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Manifest], error) {
	return s.repo.List(ctx, filter)
}

// EnsureOpen returns an error unless the manifest exists and still accepts
// pallets. Satisfies the shipping service's manifest check.
func (s *Service) EnsureOpen(ctx context.Context, manifestID id.ID) error {
	m, err := s.repo.GetByID(ctx, manifestID)
	if err != nil {
		return err
	}
	if !m.IsOpen() {
		return apperror.NewBusinessRule("manifest is not open").
			WithDetail("manifest_id", manifestID).
			WithDetail("status", string(m.Status))
	}
	return nil
}

// Close confirms the departure of the load. Every pallet on the manifest
// must already be shipped (written-off pallets are ignored). Each Completed
// shipping order that no longer holds staged or loaded pallets advances to
// Shipped. Publishes manifest.closed plus shipping.shipped per order.
func (s *Service) Close(ctx context.Context, manifestID id.ID) (*Manifest, error) {
	var m *Manifest
	var shippedOrders int
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.repo.GetForUpdate(ctx, manifestID)
		if err != nil {
			return err
		}

		list, err := s.pallets.ListByManifest(ctx, manifestID)
		if err != nil {
			return fmt.Errorf("list pallets: %w", err)
		}

		var unshipped int
		orderIDs := make(map[id.ID]bool)
		for _, p := range list {
			switch p.Status {
			case pallet.StatusShipped:
				if p.ShippingOrderID != nil {
					orderIDs[*p.ShippingOrderID] = true
				}
			case pallet.StatusWriteOff:
				// written off on the dock, no longer part of the load
			default:
				unshipped++
			}
		}
		if unshipped > 0 {
			return apperror.NewBusinessRule("manifest has pallets that are not shipped").
				WithDetail("manifest_id", manifestID).
				WithDetail("unshipped", unshipped)
		}

		if err := m.Close(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, m); err != nil {
			return err
		}

		shippedOrders, err = s.advanceOrders(ctx, sortedIDs(orderIDs))
		if err != nil {
			return err
		}

		return s.publisher.Publish(ctx, events.Event{
			AggregateType: "Manifest",
			AggregateID:   m.ID,
			EventType:     events.TypeManifestClosed,
			Payload: map[string]any{
				"number":      m.Number,
				"vehicle_ref": m.VehicleRef,
				"pallets":     len(list),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "manifest closed",
		"id", m.ID, "number", m.Number, "orders_shipped", shippedOrders)
	return m, nil
}

// Cancel abandons an open manifest. Rejected while pallets are loaded onto
// it or already shipped under it.
func (s *Service) Cancel(ctx context.Context, manifestID id.ID) (*Manifest, error) {
	var m *Manifest
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.repo.GetForUpdate(ctx, manifestID)
		if err != nil {
			return err
		}

		list, err := s.pallets.ListByManifest(ctx, manifestID)
		if err != nil {
			return fmt.Errorf("list pallets: %w", err)
		}
		var blocking int
		for _, p := range list {
			if p.Status == pallet.StatusLoaded || p.Status == pallet.StatusShipped {
				blocking++
			}
		}
		if blocking > 0 {
			return apperror.NewBusinessRule("manifest with loaded or shipped pallets cannot be cancelled").
				WithDetail("manifest_id", manifestID).
				WithDetail("pallets", blocking)
		}

		if err := m.Cancel(); err != nil {
			return err
		}
		return s.repo.Update(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "manifest cancelled", "id", m.ID, "number", m.Number)
	return m, nil
}

// advanceOrders moves every Completed order that holds no more staged or
// loaded pallets to Shipped. Orders completed early under the single-truck
// flag may still hold staged pallets and are skipped.
func (s *Service) advanceOrders(ctx context.Context, orderIDs []id.ID) (int, error) {
	advanced := 0
	for _, orderID := range orderIDs {
		order, err := s.shippingOrders.GetForUpdate(ctx, orderID)
		if err != nil {
			return advanced, err
		}
		if order.Status != shipping.StatusCompleted {
			continue
		}

		held, err := s.pallets.CountByShippingOrderInStatuses(ctx, orderID,
			pallet.StatusStaged, pallet.StatusLoaded)
		if err != nil {
			return advanced, fmt.Errorf("count held pallets: %w", err)
		}
		if held > 0 {
			continue
		}

		if err := order.MarkShipped(); err != nil {
			return advanced, err
		}
		if err := s.shippingOrders.Update(ctx, order); err != nil {
			return advanced, err
		}

		err = s.publisher.Publish(ctx, events.Event{
			AggregateType: "ShippingOrder",
			AggregateID:   order.ID,
			EventType:     events.TypeShippingShipped,
			Payload: map[string]any{
				"number": order.Number,
			},
		})
		if err != nil {
			return advanced, err
		}
		advanced++
	}
	return advanced, nil
}

// sortedIDs locks orders in a stable sequence to avoid lock inversion when
// two manifests close concurrently.
func sortedIDs(set map[id.ID]bool) []id.ID {
	ids := make([]id.ID, 0, len(set))
	for orderID := range set {
		ids = append(ids, orderID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return id.Compare(ids[i], ids[j]) < 0
	})
	return ids
}

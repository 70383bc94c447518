// Package pallettest provides in-memory pallet storage for unit tests of
// the services that coordinate pallet writes.
package pallettest

import (
	"context"
	"sync"
	"time"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/domain"
	"stevedore/internal/domain/pallet"
)

// InMemoryRepo implements pallet.Repository on a map. Row locks are not
// simulated; GetForUpdate behaves like GetByID.
type InMemoryRepo struct {
	mu      sync.Mutex
	pallets map[id.ID]*pallet.Pallet
}

// NewInMemoryRepo creates an empty repository.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{pallets: make(map[id.ID]*pallet.Pallet)}
}

// Seed stores pallets directly, bypassing Create.
func (r *InMemoryRepo) Seed(pallets ...*pallet.Pallet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pallets {
		cp := *p
		r.pallets[p.ID] = &cp
	}
}

// Len reports the number of stored pallets.
func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pallets)
}

func (r *InMemoryRepo) Create(ctx context.Context, p *pallet.Pallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pallets[p.ID]; exists {
		return apperror.NewDuplicate("pallet", "id", p.ID.String())
	}
	cp := *p
	r.pallets[p.ID] = &cp
	return nil
}

func (r *InMemoryRepo) GetByID(ctx context.Context, palletID id.ID) (*pallet.Pallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pallets[palletID]
	if !ok {
		return nil, apperror.NewNotFound("pallet", palletID)
	}
	cp := *p
	return &cp, nil
}

func (r *InMemoryRepo) GetByLabel(ctx context.Context, label string) (*pallet.Pallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pallets {
		if p.Label == label {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("pallet", label)
}

func (r *InMemoryRepo) GetForUpdate(ctx context.Context, palletID id.ID) (*pallet.Pallet, error) {
	return r.GetByID(ctx, palletID)
}

func (r *InMemoryRepo) Update(ctx context.Context, p *pallet.Pallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pallets[p.ID]; !ok {
		return apperror.NewNotFound("pallet", p.ID)
	}
	cp := *p
	r.pallets[p.ID] = &cp
	return nil
}

func (r *InMemoryRepo) HardDelete(ctx context.Context, palletID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pallets[palletID]; !ok {
		return apperror.NewNotFound("pallet", palletID)
	}
	delete(r.pallets, palletID)
	return nil
}

func (r *InMemoryRepo) List(ctx context.Context, filter pallet.ListFilter) (domain.ListResult[*pallet.Pallet], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]*pallet.Pallet, 0)
	for _, p := range r.pallets {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.ItemID != nil && p.ItemID != *filter.ItemID {
			continue
		}
		if filter.ReceivingOrderID != nil && (p.ReceivingOrderID == nil || *p.ReceivingOrderID != *filter.ReceivingOrderID) {
			continue
		}
		if filter.ShippingOrderID != nil && (p.ShippingOrderID == nil || *p.ShippingOrderID != *filter.ShippingOrderID) {
			continue
		}
		if filter.ManifestID != nil && (p.ManifestID == nil || *p.ManifestID != *filter.ManifestID) {
			continue
		}
		if filter.IsCrossDock != nil && p.IsCrossDock != *filter.IsCrossDock {
			continue
		}
		cp := *p
		items = append(items, &cp)
	}

	return domain.ListResult[*pallet.Pallet]{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

func (r *InMemoryRepo) SumQtyForReceiving(ctx context.Context, orderID id.ID, itemID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, p := range r.pallets {
		if p.ReceivingOrderID != nil && *p.ReceivingOrderID == orderID && p.ItemID == itemID {
			sum += p.Qty
		}
	}
	return sum, nil
}

func (r *InMemoryRepo) SumQtyForShipping(ctx context.Context, orderID id.ID, itemID string, excludeID *id.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, p := range r.pallets {
		if p.ShippingOrderID == nil || *p.ShippingOrderID != orderID || p.ItemID != itemID {
			continue
		}
		if p.Status == pallet.StatusWriteOff {
			continue
		}
		if excludeID != nil && p.ID == *excludeID {
			continue
		}
		sum += p.Qty
	}
	return sum, nil
}

func (r *InMemoryRepo) CountByReceivingOrder(ctx context.Context, orderID id.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.pallets {
		if p.ReceivingOrderID != nil && *p.ReceivingOrderID == orderID {
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepo) CountByShippingOrderInStatuses(ctx context.Context, orderID id.ID, statuses ...pallet.Status) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.pallets {
		if p.ShippingOrderID == nil || *p.ShippingOrderID != orderID {
			continue
		}
		for _, st := range statuses {
			if p.Status == st {
				n++
				break
			}
		}
	}
	return n, nil
}

func (r *InMemoryRepo) CountManualPicks(ctx context.Context, orderID id.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.pallets {
		if p.ShippingOrderID != nil && *p.ShippingOrderID == orderID &&
			!p.IsCrossDock && p.Status != pallet.StatusWriteOff {
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepo) ListByShippingOrder(ctx context.Context, orderID id.ID) ([]*pallet.Pallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*pallet.Pallet, 0)
	for _, p := range r.pallets {
		if p.ShippingOrderID != nil && *p.ShippingOrderID == orderID {
			cp := *p
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (r *InMemoryRepo) ListByManifest(ctx context.Context, manifestID id.ID) ([]*pallet.Pallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*pallet.Pallet, 0)
	for _, p := range r.pallets {
		if p.ManifestID != nil && *p.ManifestID == manifestID {
			cp := *p
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (r *InMemoryRepo) CountAtLocation(ctx context.Context, locationID id.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.pallets {
		if p.LocationID != nil && *p.LocationID == locationID {
			n++
		}
	}
	return n, nil
}

// InMemoryEventStore implements pallet.EventStore on a slice.
type InMemoryEventStore struct {
	mu     sync.Mutex
	events []pallet.Event
}

// NewInMemoryEventStore creates an empty event store.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{}
}

func (s *InMemoryEventStore) Append(ctx context.Context, e *pallet.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	if cp.OccurredAt.IsZero() {
		cp.OccurredAt = time.Now().UTC()
	}
	s.events = append(s.events, cp)
	return nil
}

func (s *InMemoryEventStore) ListByPallet(ctx context.Context, palletID id.ID, limit, offset int) ([]pallet.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]pallet.Event, 0)
	for i := len(s.events) - 1; i >= 0; i-- { // newest first
		if s.events[i].PalletID == palletID {
			matched = append(matched, s.events[i])
		}
	}

	if offset >= len(matched) {
		return []pallet.Event{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// Kinds returns the event kinds recorded for a pallet, oldest first.
func (s *InMemoryEventStore) Kinds(palletID id.ID) []pallet.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]pallet.EventKind, 0)
	for _, e := range s.events {
		if e.PalletID == palletID {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

var _ pallet.Repository = (*InMemoryRepo)(nil)
var _ pallet.EventStore = (*InMemoryEventStore)(nil)

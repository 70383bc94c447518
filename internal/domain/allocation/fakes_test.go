package allocation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/core/numerator"
	"stevedore/internal/domain"
	"stevedore/internal/domain/catalogs/product"
	"stevedore/internal/domain/orders/receiving"
	"stevedore/internal/domain/orders/shipping"
)

// --- receiving repository fake ---

type fakeReceivingRepo struct {
	mu     sync.Mutex
	orders map[id.ID]*receiving.Order
}

func newFakeReceivingRepo(orders ...*receiving.Order) *fakeReceivingRepo {
	r := &fakeReceivingRepo{orders: make(map[id.ID]*receiving.Order)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeReceivingRepo) Create(ctx context.Context, doc *receiving.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[doc.ID] = doc
	return nil
}

func (r *fakeReceivingRepo) GetByID(ctx context.Context, docID id.ID) (*receiving.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[docID]
	if !ok {
		return nil, apperror.NewNotFound("receiving order", docID)
	}
	cp := *o
	return &cp, nil
}

func (r *fakeReceivingRepo) GetByNumber(ctx context.Context, number string) (*receiving.Order, error) {
	return nil, apperror.NewNotFound("receiving order", number)
}

func (r *fakeReceivingRepo) Update(ctx context.Context, doc *receiving.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[doc.ID] = doc
	return nil
}

func (r *fakeReceivingRepo) Delete(ctx context.Context, docID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, docID)
	return nil
}

func (r *fakeReceivingRepo) GetLines(ctx context.Context, docID id.ID) ([]receiving.Line, error) {
	o, err := r.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return o.Lines, nil
}

func (r *fakeReceivingRepo) SaveLines(ctx context.Context, docID id.ID, lines []receiving.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[docID]; ok {
		o.Lines = lines
	}
	return nil
}

func (r *fakeReceivingRepo) LockLine(ctx context.Context, orderID id.ID, itemID string) (*receiving.Line, error) {
	o, err := r.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if line := o.Line(itemID); line != nil {
		cp := *line
		return &cp, nil
	}
	return nil, apperror.NewNotFound("receiving order line", itemID)
}

func (r *fakeReceivingRepo) List(ctx context.Context, filter receiving.ListFilter) (domain.ListResult[*receiving.Order], error) {
	return domain.ListResult[*receiving.Order]{}, nil
}

func (r *fakeReceivingRepo) GetForUpdate(ctx context.Context, docID id.ID) (*receiving.Order, error) {
	return r.GetByID(ctx, docID)
}

// --- shipping repository fake ---

type fakeShippingRepo struct {
	mu     sync.Mutex
	orders map[id.ID]*shipping.Order
}

func newFakeShippingRepo(orders ...*shipping.Order) *fakeShippingRepo {
	r := &fakeShippingRepo{orders: make(map[id.ID]*shipping.Order)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeShippingRepo) Create(ctx context.Context, o *shipping.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
	return nil
}

func (r *fakeShippingRepo) GetByID(ctx context.Context, orderID id.ID) (*shipping.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("shipping order", orderID)
	}
	cp := *o
	return &cp, nil
}

func (r *fakeShippingRepo) GetByNumber(ctx context.Context, number string) (*shipping.Order, error) {
	return nil, apperror.NewNotFound("shipping order", number)
}

func (r *fakeShippingRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*shipping.Order, error) {
	return r.GetByID(ctx, orderID)
}

func (r *fakeShippingRepo) Update(ctx context.Context, o *shipping.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
	return nil
}

func (r *fakeShippingRepo) Delete(ctx context.Context, orderID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, orderID)
	return nil
}

func (r *fakeShippingRepo) List(ctx context.Context, f shipping.ListFilter) (domain.ListResult[*shipping.Order], error) {
	return domain.ListResult[*shipping.Order]{}, nil
}

func (r *fakeShippingRepo) GetLines(ctx context.Context, orderID id.ID) ([]shipping.Line, error) {
	o, err := r.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return o.Lines, nil
}

func (r *fakeShippingRepo) SaveLines(ctx context.Context, orderID id.ID, lines []shipping.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderID]; ok {
		o.Lines = lines
	}
	return nil
}

func (r *fakeShippingRepo) LockLine(ctx context.Context, orderID id.ID, itemID string) (*shipping.Line, error) {
	o, err := r.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if line := o.Line(itemID); line != nil {
		cp := *line
		return &cp, nil
	}
	return nil, apperror.NewNotFound("shipping order line", itemID)
}

func (r *fakeShippingRepo) FindCandidatesByItem(ctx context.Context, itemID string, statuses ...shipping.Status) ([]*shipping.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]*shipping.Order, 0)
	for _, o := range r.orders {
		inStatus := false
		for _, st := range statuses {
			if o.Status == st {
				inStatus = true
				break
			}
		}
		if !inStatus || o.Line(itemID) == nil {
			continue
		}
		cp := *o
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

// --- product source fake ---

type fakeProducts struct {
	byItem map[string]*product.Product
}

func (f *fakeProducts) FindByItemID(ctx context.Context, itemID string) (*product.Product, error) {
	if p, ok := f.byItem[itemID]; ok {
		return p, nil
	}
	return nil, apperror.NewNotFound("product", itemID)
}

// --- policy fakes ---

type allowAllPolicy struct{}

func (allowAllPolicy) Allow(ctx context.Context, c Candidate) bool { return true }

// --- numbering ---

func sequentialLabels() *numerator.MockGenerator {
	var n int
	return &numerator.MockGenerator{
		GetNextNumberFunc: func(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error) {
			n++
			return fmt.Sprintf("%s-%08d", cfg.Prefix, n), nil
		},
	}
}

// --- builders ---

func receivingOrderInTally(lines map[string]int64) *receiving.Order {
	o := receiving.NewOrder(id.New(), "CONT-1")
	o.Number = "RCV-2026-00001"
	for item, qty := range lines {
		o.AddLine(item, qty)
	}
	o.Status = receiving.StatusUnloading
	return o
}

func shippingOrder(t shipping.ShipmentType, status shipping.Status, createdAt time.Time, lines map[string]int64) *shipping.Order {
	o := shipping.NewOrder(id.New(), t, "dock 5")
	o.Number = "SHP-2026-00001"
	for item, qty := range lines {
		o.AddLine(item, qty)
	}
	o.Status = status
	o.CreatedAt = createdAt
	return o
}

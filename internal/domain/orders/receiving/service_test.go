package receiving

import (
	"context"
	"sync"
	"testing"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/core/numerator"
	"stevedore/internal/core/tx/txtest"
	"stevedore/internal/domain"
	"stevedore/internal/domain/catalogs/product"
	"stevedore/internal/domain/events"
	"stevedore/internal/domain/orders"
	"stevedore/internal/domain/pallet"
	"stevedore/internal/domain/pallet/pallettest"
)

// --- fakes ---

type fakeRepo struct {
	mu     sync.Mutex
	orders map[id.ID]*Order
}

func newFakeRepo(orders ...*Order) *fakeRepo {
	r := &fakeRepo{orders: make(map[id.ID]*Order)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeRepo) Create(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, docID id.ID) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[docID]
	if !ok {
		return nil, apperror.NewNotFound("receiving order", docID)
	}
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	return &cp, nil
}

func (r *fakeRepo) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return nil, apperror.NewNotFound("receiving order", number)
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, docID id.ID) (*Order, error) {
	return r.GetByID(ctx, docID)
}

func (r *fakeRepo) Update(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, docID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, docID)
	return nil
}

func (r *fakeRepo) List(ctx context.Context, f ListFilter) (domain.ListResult[*Order], error) {
	return domain.ListResult[*Order]{}, nil
}

func (r *fakeRepo) GetLines(ctx context.Context, docID id.ID) ([]Line, error) {
	o, err := r.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return o.Lines, nil
}

func (r *fakeRepo) SaveLines(ctx context.Context, docID id.ID, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[docID]; ok {
		o.Lines = lines
	}
	return nil
}

func (r *fakeRepo) LockLine(ctx context.Context, orderID id.ID, itemID string) (*Line, error) {
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

func (r *fakeRepo) has(docID id.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.orders[docID]
	return ok
}

type fakeProducts struct {
	byItem map[string]*product.Product
}

func (f *fakeProducts) FindByItemID(ctx context.Context, itemID string) (*product.Product, error) {
	if p, ok := f.byItem[itemID]; ok {
		return p, nil
	}
	return nil, apperror.NewNotFound("product", itemID)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// --- environment ---

type recvEnv struct {
	svc       *Service
	repo      *fakeRepo
	pallets   *pallettest.InMemoryRepo
	published *recordingPublisher
}

func newRecvEnv(policy orders.EditPolicy, orderList ...*Order) *recvEnv {
	repo := newFakeRepo(orderList...)
	pallets := pallettest.NewInMemoryRepo()
	published := &recordingPublisher{}

	products := &fakeProducts{byItem: map[string]*product.Product{
		"SKU-1": {ItemID: "SKU-1", UnitsPerPallet: 100, PalletPositions: 1, Active: true},
	}}

	svc := NewService(repo, pallets, products, &numerator.MockGenerator{},
		published, policy, txtest.Passthrough{})

	return &recvEnv{svc: svc, repo: repo, pallets: pallets, published: published}
}

func orderInStatus(status Status, lines map[string]int64) *Order {
	o := NewOrder(id.New(), "MSKU-481")
	o.Number = "RCV-2026-00007"
	for item, qty := range lines {
		o.AddLine(item, qty)
	}
	o.Status = status
	return o
}

func tallied(orderID id.ID, label string, qty int64) *pallet.Pallet {
	return pallet.NewReceived(label, "SKU-1", qty, orderID)
}

// --- tests ---

func TestCreate_AssignsNumberAndForcesPending(t *testing.T) {
	ctx := context.Background()
	env := newRecvEnv(orders.NewStrictEditPolicy())

	doc := NewOrder(id.New(), "MSKU-481")
	doc.AddLine("SKU-1", 250)
	doc.Status = StatusUnloading // client-sent status is ignored

	if err := env.svc.Create(ctx, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Status != StatusPending {
		t.Errorf("status\nwant: %v\ngot:  %v", StatusPending, doc.Status)
	}
	if doc.Number != "RCV-00001" {
		t.Errorf("number\nwant: RCV-00001\ngot:  %s", doc.Number)
	}

	stored, err := env.svc.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get after create: %v", err)
	}
	if len(stored.Lines) != 1 || stored.Lines[0].ExpectedQty != 250 {
		t.Errorf("stored lines\nwant: one line of 250\ngot:  %+v", stored.Lines)
	}
}

func TestFinishTally_RequiresConfirmedPallet(t *testing.T) {
	ctx := context.Background()
	order := orderInStatus(StatusUnloading, map[string]int64{"SKU-1": 250})
	env := newRecvEnv(orders.NewStrictEditPolicy(), order)

	_, err := env.svc.FinishTally(ctx, order.ID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Fatalf("want business rule rejection with no pallets, got %v", err)
	}

	env.pallets.Seed(tallied(order.ID, "PLT-1", 100))

	doc, err := env.svc.FinishTally(ctx, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Status != StatusStaged {
		t.Errorf("status\nwant: %v\ngot:  %v", StatusStaged, doc.Status)
	}
}

func TestComplete_PublishesOrderReceived(t *testing.T) {
	ctx := context.Background()
	order := orderInStatus(StatusStaged, map[string]int64{"SKU-1": 250})
	env := newRecvEnv(orders.NewStrictEditPolicy(), order)

	doc, err := env.svc.Complete(ctx, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Status != StatusReceived {
		t.Errorf("status\nwant: %v\ngot:  %v", StatusReceived, doc.Status)
	}

	if len(env.published.events) != 1 {
		t.Fatalf("published events\nwant: 1\ngot:  %d", len(env.published.events))
	}
	got := env.published.events[0]
	if got.EventType != events.TypeOrderReceived || got.AggregateID != order.ID {
		t.Errorf("event\nwant: %s for %s\ngot:  %s for %s",
			events.TypeOrderReceived, order.ID, got.EventType, got.AggregateID)
	}
}

func TestDelete_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected once pallets exist", func(t *testing.T) {
		order := orderInStatus(StatusPending, map[string]int64{"SKU-1": 250})
		env := newRecvEnv(orders.NewStrictEditPolicy(), order)
		env.pallets.Seed(tallied(order.ID, "PLT-1", 100))

		err := env.svc.Delete(ctx, order.ID)
		appErr, ok := apperror.AsAppError(err)
		if !ok || appErr.Code != apperror.CodeBusinessRule {
			t.Fatalf("want business rule rejection, got %v", err)
		}
	})

	t.Run("rejected after unloading started", func(t *testing.T) {
		order := orderInStatus(StatusUnloading, map[string]int64{"SKU-1": 250})
		env := newRecvEnv(orders.NewStrictEditPolicy(), order)

		err := env.svc.Delete(ctx, order.ID)
		appErr, ok := apperror.AsAppError(err)
		if !ok || appErr.Code != apperror.CodeBusinessRule {
			t.Fatalf("want business rule rejection, got %v", err)
		}
	})

	t.Run("pending order without pallets deletes", func(t *testing.T) {
		order := orderInStatus(StatusPending, map[string]int64{"SKU-1": 250})
		env := newRecvEnv(orders.NewStrictEditPolicy(), order)

		if err := env.svc.Delete(ctx, order.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.repo.has(order.ID) {
			t.Error("order must be gone after delete")
		}
	})
}

func TestUpdate_QuantityFloors(t *testing.T) {
	ctx := context.Background()
	order := orderInStatus(StatusUnloading, map[string]int64{"SKU-1": 250})
	// the open policy isolates the floor rule from the edit window
	env := newRecvEnv(orders.OpenEditPolicy{}, order)
	env.pallets.Seed(tallied(order.ID, "PLT-1", 100), tallied(order.ID, "PLT-2", 100))

	t.Run("ceiling cannot drop below tallied total", func(t *testing.T) {
		doc, _ := env.svc.GetByID(ctx, order.ID)
		doc.Lines[0].ExpectedQty = 150

		err := env.svc.Update(ctx, doc)
		appErr, ok := apperror.AsAppError(err)
		if !ok || appErr.Code != apperror.CodeBusinessRule {
			t.Fatalf("want business rule rejection, got %v", err)
		}
	})

	t.Run("tallied line cannot be removed", func(t *testing.T) {
		doc, _ := env.svc.GetByID(ctx, order.ID)
		doc.Lines = []Line{{LineID: id.New(), LineNo: 1, ItemID: "SKU-9", ExpectedQty: 10}}

		err := env.svc.Update(ctx, doc)
		appErr, ok := apperror.AsAppError(err)
		if !ok || appErr.Code != apperror.CodeBusinessRule {
			t.Fatalf("want business rule rejection, got %v", err)
		}
	})

	t.Run("raising the ceiling is allowed", func(t *testing.T) {
		doc, _ := env.svc.GetByID(ctx, order.ID)
		doc.Lines[0].ExpectedQty = 300

		if err := env.svc.Update(ctx, doc); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestUpdate_LinesFrozenAfterStart(t *testing.T) {
	ctx := context.Background()
	order := orderInStatus(StatusUnloading, map[string]int64{"SKU-1": 250})
	env := newRecvEnv(orders.NewStrictEditPolicy(), order)

	doc, _ := env.svc.GetByID(ctx, order.ID)
	doc.Lines[0].ExpectedQty = 300

	err := env.svc.Update(ctx, doc)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Fatalf("want business rule rejection, got %v", err)
	}

	// header edits stay open
	doc, _ = env.svc.GetByID(ctx, order.ID)
	doc.ContainerRef = "MSKU-482"
	if err := env.svc.Update(ctx, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTally_Progress(t *testing.T) {
	ctx := context.Background()
	order := orderInStatus(StatusUnloading, map[string]int64{"SKU-1": 250})
	env := newRecvEnv(orders.NewStrictEditPolicy(), order)
	env.pallets.Seed(tallied(order.ID, "PLT-1", 100), tallied(order.ID, "PLT-2", 100))

	progress, err := env.svc.Tally(ctx, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(progress.Lines) != 1 {
		t.Fatalf("lines\nwant: 1\ngot:  %d", len(progress.Lines))
	}
	line := progress.Lines[0]
	if line.CommittedQty != 200 || line.RemainingQty != 50 {
		t.Errorf("line totals\nwant: committed 200, remaining 50\ngot:  committed %d, remaining %d",
			line.CommittedQty, line.RemainingQty)
	}

	wantRows := []int64{100, 100, 50}
	if len(line.PlannedRows) != len(wantRows) {
		t.Fatalf("planned rows\nwant: %v\ngot:  %+v", wantRows, line.PlannedRows)
	}
	for i, row := range line.PlannedRows {
		if row.Qty != wantRows[i] {
			t.Errorf("row %d qty\nwant: %d\ngot:  %d", i+1, wantRows[i], row.Qty)
		}
	}
}

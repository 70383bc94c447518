package manifest

import (
	"context"
	"sync"
	"testing"
	"time"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/core/numerator"
	"stevedore/internal/core/tx/txtest"
	"stevedore/internal/domain"
	"stevedore/internal/domain/events"
	"stevedore/internal/domain/orders/shipping"
	"stevedore/internal/domain/pallet"
	"stevedore/internal/domain/pallet/pallettest"
)

// --- fakes ---

type fakeRepo struct {
	mu        sync.Mutex
	manifests map[id.ID]*Manifest
}

func newFakeRepo(manifests ...*Manifest) *fakeRepo {
	r := &fakeRepo{manifests: make(map[id.ID]*Manifest)}
	for _, m := range manifests {
		r.manifests[m.ID] = m
	}
	return r
}

func (r *fakeRepo) Create(ctx context.Context, m *Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manifests[m.ID] = m
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, manifestID id.ID) (*Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.manifests[manifestID]
	if !ok {
		return nil, apperror.NewNotFound("manifest", manifestID)
	}
	cp := *m
	return &cp, nil
}

func (r *fakeRepo) GetByNumber(ctx context.Context, number string) (*Manifest, error) {
	return nil, apperror.NewNotFound("manifest", number)
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, manifestID id.ID) (*Manifest, error) {
	return r.GetByID(ctx, manifestID)
}

func (r *fakeRepo) Update(ctx context.Context, m *Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.manifests[m.ID] = &cp
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, manifestID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.manifests, manifestID)
	return nil
}

func (r *fakeRepo) List(ctx context.Context, f ListFilter) (domain.ListResult[*Manifest], error) {
	return domain.ListResult[*Manifest]{}, nil
}

func (r *fakeRepo) has(manifestID id.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.manifests[manifestID]
	return ok
}

// fakeOrders carries just enough of the shipping repository for order
// advancement; list and line calls are never reached from here.
type fakeOrders struct {
	mu     sync.Mutex
	orders map[id.ID]*shipping.Order
}

func newFakeOrders(orders ...*shipping.Order) *fakeOrders {
	r := &fakeOrders{orders: make(map[id.ID]*shipping.Order)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeOrders) Create(ctx context.Context, o *shipping.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
	return nil
}

func (r *fakeOrders) GetByID(ctx context.Context, orderID id.ID) (*shipping.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("shipping order", orderID)
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrders) GetByNumber(ctx context.Context, number string) (*shipping.Order, error) {
	return nil, apperror.NewNotFound("shipping order", number)
}

func (r *fakeOrders) GetForUpdate(ctx context.Context, orderID id.ID) (*shipping.Order, error) {
	return r.GetByID(ctx, orderID)
}

func (r *fakeOrders) Update(ctx context.Context, o *shipping.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrders) Delete(ctx context.Context, orderID id.ID) error { return nil }

func (r *fakeOrders) List(ctx context.Context, f shipping.ListFilter) (domain.ListResult[*shipping.Order], error) {
	return domain.ListResult[*shipping.Order]{}, nil
}

func (r *fakeOrders) GetLines(ctx context.Context, orderID id.ID) ([]shipping.Line, error) {
	return nil, nil
}

func (r *fakeOrders) SaveLines(ctx context.Context, orderID id.ID, lines []shipping.Line) error {
	return nil
}

func (r *fakeOrders) LockLine(ctx context.Context, orderID id.ID, itemID string) (*shipping.Line, error) {
	return nil, apperror.NewNotFound("shipping order line", itemID)
}

func (r *fakeOrders) FindCandidatesByItem(ctx context.Context, itemID string, statuses ...shipping.Status) ([]*shipping.Order, error) {
	return nil, nil
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

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

// --- environment ---

type manifestEnv struct {
	svc       *Service
	repo      *fakeRepo
	orders    *fakeOrders
	pallets   *pallettest.InMemoryRepo
	published *recordingPublisher
}

func newManifestEnv(manifests []*Manifest, orderList []*shipping.Order) *manifestEnv {
	repo := newFakeRepo(manifests...)
	ordersRepo := newFakeOrders(orderList...)
	pallets := pallettest.NewInMemoryRepo()
	published := &recordingPublisher{}

	svc := NewService(repo, pallets, ordersRepo,
		&numerator.MockGenerator{}, published, txtest.Passthrough{})

	return &manifestEnv{svc: svc, repo: repo, orders: ordersRepo, pallets: pallets, published: published}
}

func completedOrder(lines map[string]int64) *shipping.Order {
	o := shipping.NewOrder(id.New(), shipping.ContainerLoading, "dock 2")
	o.Number = "SHP-2026-00042"
	for item, qty := range lines {
		o.AddLine(item, qty)
	}
	o.Status = shipping.StatusCompleted
	return o
}

// palletOn walks a pallet through the lifecycle up to the given status,
// attached to the order and manifest.
func palletOn(t *testing.T, label string, orderID, manifestID id.ID, status pallet.Status) *pallet.Pallet {
	t.Helper()
	p := pallet.NewReceived(label, "SKU-1", 40, id.New())
	steps := []func() error{
		func() error { return p.PutAway(id.New(), time.Now().UTC()) },
		func() error { return p.Pick(orderID) },
		func() error { return p.ToggleLoadOn(&manifestID) },
		func() error { return p.Ship(time.Now().UTC()) },
	}
	targets := []pallet.Status{pallet.StatusStored, pallet.StatusStaged, pallet.StatusLoaded, pallet.StatusShipped}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("advance %s to %s: %v", label, targets[i], err)
		}
		if p.Status == status {
			return p
		}
	}
	t.Fatalf("cannot reach status %s", status)
	return nil
}

// --- tests ---

func TestCreate_ForcesOpenAndNumbers(t *testing.T) {
	ctx := context.Background()
	env := newManifestEnv(nil, nil)

	m := NewManifest("TRUCK-17")
	m.Status = StatusClosed // client-sent status is ignored

	if err := env.svc.Create(ctx, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != StatusOpen {
		t.Errorf("status\nwant: %v\ngot:  %v", StatusOpen, m.Status)
	}
	if m.Number != "MAN-00001" {
		t.Errorf("number\nwant: MAN-00001\ngot:  %s", m.Number)
	}
}

func TestEnsureOpen(t *testing.T) {
	ctx := context.Background()
	open := NewManifest("TRUCK-17")
	closed := NewManifest("TRUCK-18")
	closed.Status = StatusClosed
	env := newManifestEnv([]*Manifest{open, closed}, nil)

	if err := env.svc.EnsureOpen(ctx, open.ID); err != nil {
		t.Errorf("open manifest: unexpected error %v", err)
	}

	err := env.svc.EnsureOpen(ctx, closed.ID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Errorf("closed manifest: want business rule rejection, got %v", err)
	}

	if err := env.svc.EnsureOpen(ctx, id.New()); !apperror.IsNotFound(err) {
		t.Errorf("unknown manifest: want not found, got %v", err)
	}
}

func TestClose_RequiresEveryPalletShipped(t *testing.T) {
	ctx := context.Background()
	m := NewManifest("TRUCK-17")
	order := completedOrder(map[string]int64{"SKU-1": 80})
	env := newManifestEnv([]*Manifest{m}, []*shipping.Order{order})

	env.pallets.Seed(
		palletOn(t, "PLT-1", order.ID, m.ID, pallet.StatusShipped),
		palletOn(t, "PLT-2", order.ID, m.ID, pallet.StatusLoaded),
	)

	_, err := env.svc.Close(ctx, m.ID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Fatalf("want business rule rejection, got %v", err)
	}

	current, _ := env.repo.GetByID(ctx, m.ID)
	if current.Status != StatusOpen {
		t.Errorf("manifest status after rejection\nwant: %v\ngot:  %v", StatusOpen, current.Status)
	}
}

func TestClose_WrittenOffPalletsDoNotBlock(t *testing.T) {
	ctx := context.Background()
	m := NewManifest("TRUCK-17")
	order := completedOrder(map[string]int64{"SKU-1": 80})
	env := newManifestEnv([]*Manifest{m}, []*shipping.Order{order})

	damaged := palletOn(t, "PLT-2", order.ID, m.ID, pallet.StatusLoaded)
	if err := damaged.MarkWrittenOff(); err != nil {
		t.Fatal(err)
	}
	env.pallets.Seed(palletOn(t, "PLT-1", order.ID, m.ID, pallet.StatusShipped), damaged)

	closed, err := env.svc.Close(ctx, m.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed.Status != StatusClosed {
		t.Errorf("manifest status\nwant: %v\ngot:  %v", StatusClosed, closed.Status)
	}
}

func TestClose_AdvancesEligibleOrders(t *testing.T) {
	ctx := context.Background()
	m := NewManifest("TRUCK-17")

	done := completedOrder(map[string]int64{"SKU-1": 40})
	holding := completedOrder(map[string]int64{"SKU-1": 80}) // completed early, still owns a staged pallet
	midway := completedOrder(map[string]int64{"SKU-1": 80})
	midway.Status = shipping.StatusLoading // next truck still to come

	env := newManifestEnv([]*Manifest{m}, []*shipping.Order{done, holding, midway})

	// staged pallets sit on the dock and never reference the manifest
	stagedLeft := palletOn(t, "PLT-3", holding.ID, m.ID, pallet.StatusStaged)
	env.pallets.Seed(
		palletOn(t, "PLT-1", done.ID, m.ID, pallet.StatusShipped),
		palletOn(t, "PLT-2", holding.ID, m.ID, pallet.StatusShipped),
		stagedLeft,
		palletOn(t, "PLT-4", midway.ID, m.ID, pallet.StatusShipped),
	)

	if _, err := env.svc.Close(ctx, m.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, _ := env.orders.GetByID(ctx, done.ID)
	if after.Status != shipping.StatusShipped {
		t.Errorf("finished order\nwant: %v\ngot:  %v", shipping.StatusShipped, after.Status)
	}

	after, _ = env.orders.GetByID(ctx, holding.ID)
	if after.Status != shipping.StatusCompleted {
		t.Errorf("order holding a staged pallet\nwant: %v\ngot:  %v", shipping.StatusCompleted, after.Status)
	}

	after, _ = env.orders.GetByID(ctx, midway.ID)
	if after.Status != shipping.StatusLoading {
		t.Errorf("order still loading\nwant: %v\ngot:  %v", shipping.StatusLoading, after.Status)
	}

	// one order advanced, then the manifest confirms
	want := []string{events.TypeShippingShipped, events.TypeManifestClosed}
	got := env.published.types()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("published events\nwant: %v\ngot:  %v", want, got)
	}
}

func TestClose_OnlyOpenManifests(t *testing.T) {
	ctx := context.Background()
	m := NewManifest("TRUCK-17")
	m.Status = StatusClosed
	env := newManifestEnv([]*Manifest{m}, nil)

	_, err := env.svc.Close(ctx, m.ID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Fatalf("want business rule rejection, got %v", err)
	}
}

func TestCancel_RejectedWithActivePallets(t *testing.T) {
	ctx := context.Background()
	m := NewManifest("TRUCK-17")
	order := completedOrder(map[string]int64{"SKU-1": 80})
	order.Status = shipping.StatusLoading
	env := newManifestEnv([]*Manifest{m}, []*shipping.Order{order})

	loaded := palletOn(t, "PLT-1", order.ID, m.ID, pallet.StatusLoaded)
	env.pallets.Seed(loaded)

	_, err := env.svc.Cancel(ctx, m.ID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Fatalf("want business rule rejection, got %v", err)
	}

	// toggling the pallet back off frees the manifest
	held, _ := env.pallets.GetByID(ctx, loaded.ID)
	if err := held.ToggleLoadOff(); err != nil {
		t.Fatal(err)
	}
	if err := env.pallets.Update(ctx, held); err != nil {
		t.Fatal(err)
	}

	cancelled, err := env.svc.Cancel(ctx, m.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("manifest status\nwant: %v\ngot:  %v", StatusCancelled, cancelled.Status)
	}
}

func TestDelete_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected once a pallet was loaded", func(t *testing.T) {
		m := NewManifest("TRUCK-17")
		order := completedOrder(map[string]int64{"SKU-1": 80})
		env := newManifestEnv([]*Manifest{m}, []*shipping.Order{order})
		env.pallets.Seed(palletOn(t, "PLT-1", order.ID, m.ID, pallet.StatusLoaded))

		err := env.svc.Delete(ctx, m.ID)
		appErr, ok := apperror.AsAppError(err)
		if !ok || appErr.Code != apperror.CodeBusinessRule {
			t.Fatalf("want business rule rejection, got %v", err)
		}
	})

	t.Run("untouched open manifest deletes", func(t *testing.T) {
		m := NewManifest("TRUCK-17")
		env := newManifestEnv([]*Manifest{m}, nil)

		if err := env.svc.Delete(ctx, m.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.repo.has(m.ID) {
			t.Error("manifest must be gone after delete")
		}
	})
}

func TestUpdate_OnlyWhileOpen(t *testing.T) {
	ctx := context.Background()
	m := NewManifest("TRUCK-17")
	m.Number = "MAN-2026-00003"
	m.Status = StatusClosed
	env := newManifestEnv([]*Manifest{m}, nil)

	edit := *m
	edit.VehicleRef = "TRUCK-99"

	err := env.svc.Update(ctx, &edit)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Fatalf("want business rule rejection, got %v", err)
	}
}

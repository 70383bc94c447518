package shipping

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/feature"
	"stevedore/internal/core/id"
	"stevedore/internal/core/numerator"
	"stevedore/internal/core/tx/txtest"
	"stevedore/internal/domain"
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

func (r *fakeRepo) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("shipping order", orderID)
	}
	cp := *o
	return &cp, nil
}

func (r *fakeRepo) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return nil, apperror.NewNotFound("shipping order", number)
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error) {
	return r.GetByID(ctx, orderID)
}

func (r *fakeRepo) Update(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, orderID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, orderID)
	return nil
}

func (r *fakeRepo) List(ctx context.Context, f ListFilter) (domain.ListResult[*Order], error) {
	return domain.ListResult[*Order]{}, nil
}

func (r *fakeRepo) GetLines(ctx context.Context, orderID id.ID) ([]Line, error) {
	o, err := r.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return o.Lines, nil
}

func (r *fakeRepo) SaveLines(ctx context.Context, orderID id.ID, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderID]; ok {
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
	return nil, apperror.NewNotFound("shipping order line", itemID)
}

func (r *fakeRepo) FindCandidatesByItem(ctx context.Context, itemID string, statuses ...Status) ([]*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]*Order, 0)
	for _, o := range r.orders {
		for _, st := range statuses {
			if o.Status == st && o.Line(itemID) != nil {
				cp := *o
				matched = append(matched, &cp)
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	return matched, nil
}

// lineGate enforces requested_qty against the pallet repo, mirroring the
// live ledger closely enough for service tests.
type lineGate struct {
	repo    Repository
	pallets pallet.Repository
}

func (g *lineGate) CheckShipping(ctx context.Context, orderID id.ID, itemID string, qty int64, excludePalletID *id.ID) error {
	line, err := g.repo.LockLine(ctx, orderID, itemID)
	if err != nil {
		return err
	}
	committed, err := g.pallets.SumQtyForShipping(ctx, orderID, itemID, excludePalletID)
	if err != nil {
		return err
	}
	if committed+qty > line.RequestedQty {
		return apperror.NewQuantityExceeded(line.RequestedQty, committed, qty)
	}
	return nil
}

type fakeManifests struct {
	open map[id.ID]bool
}

func (f *fakeManifests) EnsureOpen(ctx context.Context, manifestID id.ID) error {
	openState, ok := f.open[manifestID]
	if !ok {
		return apperror.NewNotFound("manifest", manifestID)
	}
	if !openState {
		return apperror.NewBusinessRule("manifest is not open").
			WithDetail("manifest_id", manifestID)
	}
	return nil
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

type shipEnv struct {
	svc       *Service
	repo      *fakeRepo
	pallets   *pallettest.InMemoryRepo
	events    *pallettest.InMemoryEventStore
	manifests *fakeManifests
	published *recordingPublisher
	flags     *feature.InMemoryFlags
}

func newShipEnv(orderList ...*Order) *shipEnv {
	repo := newFakeRepo(orderList...)
	pallets := pallettest.NewInMemoryRepo()
	eventStore := pallettest.NewInMemoryEventStore()
	manifests := &fakeManifests{open: make(map[id.ID]bool)}
	published := &recordingPublisher{}
	flags := feature.NewInMemoryFlags()

	svc := NewService(repo, pallets, eventStore,
		&lineGate{repo: repo, pallets: pallets}, manifests,
		&numerator.MockGenerator{}, published, orders.NewStrictEditPolicy(),
		flags, txtest.Passthrough{})

	return &shipEnv{
		svc:       svc,
		repo:      repo,
		pallets:   pallets,
		events:    eventStore,
		manifests: manifests,
		published: published,
		flags:     flags,
	}
}

func testOrder(t ShipmentType, status Status, lines map[string]int64) *Order {
	o := NewOrder(id.New(), t, "dock 2")
	o.Number = "SHP-2026-00042"
	for item, qty := range lines {
		o.AddLine(item, qty)
	}
	o.Status = status
	return o
}

func storedPallet(t *testing.T, label, itemID string, qty int64) *pallet.Pallet {
	t.Helper()
	p := pallet.NewReceived(label, itemID, qty, id.New())
	if err := p.PutAway(id.New(), time.Now().UTC()); err != nil {
		t.Fatalf("put away %s: %v", label, err)
	}
	return p
}

func stagedPallet(t *testing.T, label, itemID string, qty int64, orderID id.ID) *pallet.Pallet {
	t.Helper()
	p := storedPallet(t, label, itemID, qty)
	if err := p.Pick(orderID); err != nil {
		t.Fatalf("pick %s: %v", label, err)
	}
	return p
}

// --- picking ---

func TestPickPallet_StagesPalletAndStartsPicking(t *testing.T) {
	ctx := context.Background()
	order := testOrder(ContainerLoading, StatusPending, map[string]int64{"SKU-1": 100})
	env := newShipEnv(order)
	env.pallets.Seed(storedPallet(t, "PLT-1", "SKU-1", 40))
	p, _ := env.pallets.GetByLabel(ctx, "PLT-1")

	picked, err := env.svc.PickPallet(ctx, p.ID, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if picked.Status != pallet.StatusStaged {
		t.Errorf("pallet status\nwant: %v\ngot:  %v", pallet.StatusStaged, picked.Status)
	}
	if picked.LocationID != nil {
		t.Error("picking must clear the storage location")
	}
	if picked.ShippingOrderID == nil || *picked.ShippingOrderID != order.ID {
		t.Error("shipping order reference missing")
	}
	if picked.IsCrossDock {
		t.Error("manual pick is not a cross-dock")
	}

	got, _ := env.repo.GetByID(ctx, order.ID)
	if got.Status != StatusPicking {
		t.Errorf("order status after first pick\nwant: %v\ngot:  %v", StatusPicking, got.Status)
	}

	kinds := env.events.Kinds(p.ID)
	if len(kinds) != 1 || kinds[0] != pallet.EventPicked {
		t.Errorf("event kinds\nwant: [picked]\ngot:  %v", kinds)
	}
}

func TestPickPallet_RejectsOverCommitment(t *testing.T) {
	ctx := context.Background()
	order := testOrder(ContainerLoading, StatusPicking, map[string]int64{"SKU-1": 50})
	env := newShipEnv(order)
	env.pallets.Seed(stagedPallet(t, "PLT-1", "SKU-1", 30, order.ID))
	env.pallets.Seed(storedPallet(t, "PLT-2", "SKU-1", 30))
	p2, _ := env.pallets.GetByLabel(ctx, "PLT-2")

	_, err := env.svc.PickPallet(ctx, p2.ID, order.ID)
	if !apperror.IsQuantityExceeded(err) {
		t.Fatalf("want QuantityExceeded, got %v", err)
	}

	// the pallet stays stored
	after, _ := env.pallets.GetByID(ctx, p2.ID)
	if after.Status != pallet.StatusStored {
		t.Errorf("pallet status after rejection\nwant: %v\ngot:  %v", pallet.StatusStored, after.Status)
	}
}

func TestPickPallet_OrderMustBeOpen(t *testing.T) {
	ctx := context.Background()
	order := testOrder(ContainerLoading, StatusLoading, map[string]int64{"SKU-1": 100})
	env := newShipEnv(order)
	env.pallets.Seed(storedPallet(t, "PLT-1", "SKU-1", 10))
	p, _ := env.pallets.GetByLabel(ctx, "PLT-1")

	_, err := env.svc.PickPallet(ctx, p.ID, order.ID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Fatalf("want business rule rejection, got %v", err)
	}
}

// --- load toggle ---

func TestToggleLoaded_OnAndOff(t *testing.T) {
	ctx := context.Background()
	order := testOrder(ContainerLoading, StatusLoading, map[string]int64{"SKU-1": 100})
	env := newShipEnv(order)
	env.pallets.Seed(stagedPallet(t, "PLT-1", "SKU-1", 40, order.ID))
	p, _ := env.pallets.GetByLabel(ctx, "PLT-1")

	manifestID := id.New()
	env.manifests.open[manifestID] = true

	loaded, err := env.svc.ToggleLoaded(ctx, p.ID, true, &manifestID)
	if err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if loaded.Status != pallet.StatusLoaded {
		t.Errorf("status\nwant: %v\ngot:  %v", pallet.StatusLoaded, loaded.Status)
	}
	if loaded.ManifestID == nil || *loaded.ManifestID != manifestID {
		t.Error("manifest reference missing after toggle on")
	}

	unloaded, err := env.svc.ToggleLoaded(ctx, p.ID, false, nil)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if unloaded.Status != pallet.StatusStaged {
		t.Errorf("status\nwant: %v\ngot:  %v", pallet.StatusStaged, unloaded.Status)
	}
	if unloaded.ManifestID != nil {
		t.Error("manifest reference must clear on toggle off")
	}

	kinds := env.events.Kinds(p.ID)
	want := []pallet.EventKind{pallet.EventLoaded, pallet.EventUnloaded}
	if len(kinds) != 2 || kinds[0] != want[0] || kinds[1] != want[1] {
		t.Errorf("event kinds\nwant: %v\ngot:  %v", want, kinds)
	}
}

func TestToggleLoaded_ContainerRequiresOpenManifest(t *testing.T) {
	ctx := context.Background()
	order := testOrder(ContainerLoading, StatusLoading, map[string]int64{"SKU-1": 100})
	env := newShipEnv(order)
	env.pallets.Seed(stagedPallet(t, "PLT-1", "SKU-1", 40, order.ID))
	p, _ := env.pallets.GetByLabel(ctx, "PLT-1")

	if _, err := env.svc.ToggleLoaded(ctx, p.ID, true, nil); err == nil {
		t.Error("missing manifest: want validation error, got nil")
	}

	closedID := id.New()
	env.manifests.open[closedID] = false
	if _, err := env.svc.ToggleLoaded(ctx, p.ID, true, &closedID); err == nil {
		t.Error("closed manifest: want rejection, got nil")
	}
}

func TestToggleLoaded_HandDeliveryTakesNoManifest(t *testing.T) {
	ctx := context.Background()
	order := testOrder(HandDelivery, StatusLoading, map[string]int64{"SKU-1": 100})
	env := newShipEnv(order)
	env.pallets.Seed(stagedPallet(t, "PLT-1", "SKU-1", 40, order.ID))
	p, _ := env.pallets.GetByLabel(ctx, "PLT-1")

	manifestID := id.New()
	env.manifests.open[manifestID] = true
	if _, err := env.svc.ToggleLoaded(ctx, p.ID, true, &manifestID); err == nil {
		t.Error("want validation error for hand delivery with manifest, got nil")
	}

	loaded, err := env.svc.ToggleLoaded(ctx, p.ID, true, nil)
	if err != nil {
		t.Fatalf("toggle on without manifest: %v", err)
	}
	if loaded.ManifestID != nil {
		t.Error("hand delivery pallet must not reference a manifest")
	}
}

func TestToggleLoaded_OrderMustBeLoading(t *testing.T) {
	ctx := context.Background()
	order := testOrder(ContainerLoading, StatusPicking, map[string]int64{"SKU-1": 100})
	env := newShipEnv(order)
	env.pallets.Seed(stagedPallet(t, "PLT-1", "SKU-1", 40, order.ID))
	p, _ := env.pallets.GetByLabel(ctx, "PLT-1")

	manifestID := id.New()
	env.manifests.open[manifestID] = true
	_, err := env.svc.ToggleLoaded(ctx, p.ID, true, &manifestID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Fatalf("want business rule rejection, got %v", err)
	}
}

// --- finish picking ---

func TestFinishPicking_NeedsPickOrZeroRemaining(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected with remaining and no picks", func(t *testing.T) {
		order := testOrder(ContainerLoading, StatusPending, map[string]int64{"SKU-1": 100})
		env := newShipEnv(order)

		_, err := env.svc.FinishPicking(ctx, order.ID)
		appErr, ok := apperror.AsAppError(err)
		if !ok || appErr.Code != apperror.CodeBusinessRule {
			t.Fatalf("want business rule rejection, got %v", err)
		}
	})

	t.Run("allowed after one manual pick", func(t *testing.T) {
		order := testOrder(ContainerLoading, StatusPicking, map[string]int64{"SKU-1": 100})
		env := newShipEnv(order)
		env.pallets.Seed(stagedPallet(t, "PLT-1", "SKU-1", 40, order.ID))

		doc, err := env.svc.FinishPicking(ctx, order.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.Status != StatusLoading {
			t.Errorf("status\nwant: %v\ngot:  %v", StatusLoading, doc.Status)
		}
	})

	t.Run("fully cross-docked order skips picking", func(t *testing.T) {
		order := testOrder(ContainerLoading, StatusPending, map[string]int64{"SKU-1": 60})
		env := newShipEnv(order)
		crossDocked := pallet.NewCrossDocked("PLT-X", "SKU-1", 60, id.New(), order.ID)
		env.pallets.Seed(crossDocked)

		doc, err := env.svc.FinishPicking(ctx, order.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.Status != StatusLoading {
			t.Errorf("status\nwant: %v\ngot:  %v", StatusLoading, doc.Status)
		}
	})
}

// --- finalize load ---

func TestFinalizeLoad_MultiTruck(t *testing.T) {
	ctx := context.Background()
	order := testOrder(ContainerLoading, StatusLoading, map[string]int64{"SKU-1": 100})
	env := newShipEnv(order)

	manifestID := id.New()
	env.manifests.open[manifestID] = true

	loaded := stagedPallet(t, "PLT-1", "SKU-1", 40, order.ID)
	if err := loaded.ToggleLoadOn(&manifestID); err != nil {
		t.Fatal(err)
	}
	staged := stagedPallet(t, "PLT-2", "SKU-1", 40, order.ID)
	env.pallets.Seed(loaded, staged)

	// first truck: the loaded pallet ships, the staged one keeps the order open
	doc, err := env.svc.FinalizeLoad(ctx, order.ID)
	if err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	if doc.Status != StatusLoading {
		t.Errorf("order status after partial load\nwant: %v\ngot:  %v", StatusLoading, doc.Status)
	}

	shipped, _ := env.pallets.GetByID(ctx, loaded.ID)
	if shipped.Status != pallet.StatusShipped || shipped.ShippedAt == nil {
		t.Error("loaded pallet must be shipped with a timestamp")
	}
	left, _ := env.pallets.GetByID(ctx, staged.ID)
	if left.Status != pallet.StatusStaged {
		t.Error("staged pallet must survive the first truck")
	}
	if got := env.published.types(); len(got) != 0 {
		t.Errorf("no completion may be published yet, got %v", got)
	}

	// second truck: load and finalize the remainder
	if _, err := env.svc.ToggleLoaded(ctx, staged.ID, true, &manifestID); err != nil {
		t.Fatalf("toggle remainder: %v", err)
	}
	doc, err = env.svc.FinalizeLoad(ctx, order.ID)
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if doc.Status != StatusCompleted {
		t.Errorf("order status\nwant: %v\ngot:  %v", StatusCompleted, doc.Status)
	}
	if got := env.published.types(); len(got) != 1 || got[0] != events.TypeShippingCompleted {
		t.Errorf("published events\nwant: [%s]\ngot:  %v", events.TypeShippingCompleted, got)
	}
}

func TestFinalizeLoad_SingleTruckFlagForcesCompletion(t *testing.T) {
	ctx := context.Background()
	order := testOrder(ContainerLoading, StatusLoading, map[string]int64{"SKU-1": 100})
	env := newShipEnv(order)
	env.flags.SetFlag(feature.FlagSingleTruckLoading, true)

	manifestID := id.New()
	env.manifests.open[manifestID] = true
	loaded := stagedPallet(t, "PLT-1", "SKU-1", 40, order.ID)
	if err := loaded.ToggleLoadOn(&manifestID); err != nil {
		t.Fatal(err)
	}
	env.pallets.Seed(loaded, stagedPallet(t, "PLT-2", "SKU-1", 40, order.ID))

	doc, err := env.svc.FinalizeLoad(ctx, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Status != StatusCompleted {
		t.Errorf("order status under single-truck flag\nwant: %v\ngot:  %v", StatusCompleted, doc.Status)
	}
}

func TestFinalizeLoad_HandDeliveryShipsStaged(t *testing.T) {
	ctx := context.Background()
	order := testOrder(HandDelivery, StatusLoading, map[string]int64{"SKU-1": 100})
	env := newShipEnv(order)
	staged := stagedPallet(t, "PLT-1", "SKU-1", 40, order.ID)
	env.pallets.Seed(staged)

	doc, err := env.svc.FinalizeLoad(ctx, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Status != StatusCompleted {
		t.Errorf("order status\nwant: %v\ngot:  %v", StatusCompleted, doc.Status)
	}

	shipped, _ := env.pallets.GetByID(ctx, staged.ID)
	if shipped.Status != pallet.StatusShipped {
		t.Errorf("staged hand-delivery pallet\nwant: %v\ngot:  %v", pallet.StatusShipped, shipped.Status)
	}
}

func TestFinalizeLoad_NothingReady(t *testing.T) {
	ctx := context.Background()
	order := testOrder(ContainerLoading, StatusLoading, map[string]int64{"SKU-1": 100})
	env := newShipEnv(order)
	env.pallets.Seed(stagedPallet(t, "PLT-1", "SKU-1", 40, order.ID))

	_, err := env.svc.FinalizeLoad(ctx, order.ID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Fatalf("want business rule rejection with nothing loaded, got %v", err)
	}
}

// --- cancel ---

func TestCancel_RejectedWhileHoldingPallets(t *testing.T) {
	ctx := context.Background()
	order := testOrder(ContainerLoading, StatusPicking, map[string]int64{"SKU-1": 100})
	env := newShipEnv(order)
	staged := stagedPallet(t, "PLT-1", "SKU-1", 40, order.ID)
	env.pallets.Seed(staged)

	_, err := env.svc.Cancel(ctx, order.ID)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Fatalf("want business rule rejection, got %v", err)
	}

	// written-off pallets no longer block
	held, _ := env.pallets.GetByID(ctx, staged.ID)
	if err := held.MarkWrittenOff(); err != nil {
		t.Fatal(err)
	}
	if err := env.pallets.Update(ctx, held); err != nil {
		t.Fatal(err)
	}

	doc, err := env.svc.Cancel(ctx, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Status != StatusCancelled {
		t.Errorf("order status\nwant: %v\ngot:  %v", StatusCancelled, doc.Status)
	}
}

// --- progress ---

func TestProgress_AggregatesLinesAndPallets(t *testing.T) {
	ctx := context.Background()
	order := testOrder(ContainerLoading, StatusPicking, map[string]int64{"SKU-1": 100, "SKU-2": 20})
	env := newShipEnv(order)

	crossDocked := pallet.NewCrossDocked("PLT-1", "SKU-1", 30, id.New(), order.ID)
	picked := stagedPallet(t, "PLT-2", "SKU-1", 40, order.ID)
	written := stagedPallet(t, "PLT-3", "SKU-1", 10, order.ID)
	if err := written.MarkWrittenOff(); err != nil {
		t.Fatal(err)
	}
	env.pallets.Seed(crossDocked, picked, written)

	progress, err := env.svc.Progress(ctx, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sku1 *LineProgress
	for i := range progress.Lines {
		if progress.Lines[i].ItemID == "SKU-1" {
			sku1 = &progress.Lines[i]
		}
	}
	if sku1 == nil {
		t.Fatal("line SKU-1 missing from progress")
	}
	if sku1.CommittedQty != 70 {
		t.Errorf("committed\nwant: 70\ngot:  %d", sku1.CommittedQty)
	}
	if sku1.CrossDockedQty != 30 {
		t.Errorf("cross-docked\nwant: 30\ngot:  %d", sku1.CrossDockedQty)
	}
	if sku1.RemainingQty != 30 {
		t.Errorf("remaining\nwant: 30\ngot:  %d", sku1.RemainingQty)
	}
	if progress.Pallets.Staged != 2 || progress.Pallets.WrittenOff != 1 {
		t.Errorf("pallet counts\nwant: staged 2, written off 1\ngot:  %+v", progress.Pallets)
	}
}

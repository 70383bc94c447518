package allocation

import (
	"context"
	"testing"
	"time"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/feature"
	"stevedore/internal/core/tx/txtest"
	"stevedore/internal/domain/catalogs/product"
	"stevedore/internal/domain/orders/receiving"
	"stevedore/internal/domain/orders/shipping"
	"stevedore/internal/domain/pallet"
	"stevedore/internal/domain/pallet/pallettest"
)

type tallyEnv struct {
	svc       *Service
	receiving *fakeReceivingRepo
	shipping  *fakeShippingRepo
	pallets   *pallettest.InMemoryRepo
	events    *pallettest.InMemoryEventStore
}

func newTallyEnv(rcvOrders []*receiving.Order, shpOrders []*shipping.Order) *tallyEnv {
	receivingRepo := newFakeReceivingRepo(rcvOrders...)
	shippingRepo := newFakeShippingRepo(shpOrders...)
	pallets := pallettest.NewInMemoryRepo()
	events := pallettest.NewInMemoryEventStore()
	flags := feature.NewInMemoryFlags()

	ledger := NewLedger(receivingRepo, shippingRepo, pallets)
	allocator := NewAllocator(shippingRepo, pallets, allowAllPolicy{}, flags)
	products := &fakeProducts{byItem: map[string]*product.Product{
		"SKU-1": {ItemID: "SKU-1", UnitsPerPallet: 100},
	}}

	svc := NewService(receivingRepo, pallets, events, products,
		ledger, allocator, sequentialLabels(), txtest.Passthrough{})

	return &tallyEnv{
		svc:       svc,
		receiving: receivingRepo,
		shipping:  shippingRepo,
		pallets:   pallets,
		events:    events,
	}
}

func TestConfirmTallyPallet_NormalReceipt(t *testing.T) {
	ctx := context.Background()
	order := receivingOrderInTally(map[string]int64{"SKU-1": 250})
	env := newTallyEnv([]*receiving.Order{order}, nil)

	p, err := env.svc.ConfirmTallyPallet(ctx, order.ID, "SKU-1", 100, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Status != pallet.StatusReceived {
		t.Errorf("status\nwant: %v\ngot:  %v", pallet.StatusReceived, p.Status)
	}
	if p.IsCrossDock {
		t.Error("normal receipt must not be cross-dock")
	}
	if p.Label != "PLT-00000001" {
		t.Errorf("label\nwant: PLT-00000001\ngot:  %v", p.Label)
	}
	if p.ReceivingOrderID == nil || *p.ReceivingOrderID != order.ID {
		t.Error("receiving order reference missing")
	}

	kinds := env.events.Kinds(p.ID)
	if len(kinds) != 1 || kinds[0] != pallet.EventCreated {
		t.Errorf("event kinds\nwant: [created]\ngot:  %v", kinds)
	}
}

func TestConfirmTallyPallet_LineCeilingExhausts(t *testing.T) {
	ctx := context.Background()
	order := receivingOrderInTally(map[string]int64{"SKU-1": 250})
	env := newTallyEnv([]*receiving.Order{order}, nil)

	for _, qty := range []int64{100, 100, 50} {
		if _, err := env.svc.ConfirmTallyPallet(ctx, order.ID, "SKU-1", qty, false); err != nil {
			t.Fatalf("confirm %d: %v", qty, err)
		}
	}

	_, err := env.svc.ConfirmTallyPallet(ctx, order.ID, "SKU-1", 1, false)
	if !apperror.IsQuantityExceeded(err) {
		t.Fatalf("want QuantityExceeded on the fourth pallet, got %v", err)
	}
	if env.pallets.Len() != 3 {
		t.Errorf("pallet count after rejection\nwant: 3\ngot:  %d", env.pallets.Len())
	}
}

func TestConfirmTallyPallet_RequiresUnloadingStatus(t *testing.T) {
	ctx := context.Background()
	order := receivingOrderInTally(map[string]int64{"SKU-1": 100})
	order.Status = receiving.StatusPending
	env := newTallyEnv([]*receiving.Order{order}, nil)

	_, err := env.svc.ConfirmTallyPallet(ctx, order.ID, "SKU-1", 10, false)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeBusinessRule {
		t.Fatalf("want business rule rejection, got %v", err)
	}
}

func TestConfirmTallyPallet_ShipNowAllocates(t *testing.T) {
	ctx := context.Background()
	rcv := receivingOrderInTally(map[string]int64{"SKU-1": 200})
	shp := shippingOrder(shipping.ContainerLoading, shipping.StatusPending,
		time.Now().UTC(), map[string]int64{"SKU-1": 80})
	env := newTallyEnv([]*receiving.Order{rcv}, []*shipping.Order{shp})

	p, err := env.svc.ConfirmTallyPallet(ctx, rcv.ID, "SKU-1", 50, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Status != pallet.StatusStaged {
		t.Errorf("status\nwant: %v\ngot:  %v", pallet.StatusStaged, p.Status)
	}
	if !p.IsCrossDock {
		t.Error("ship-now pallet must be cross-dock")
	}
	if p.ShippingOrderID == nil || *p.ShippingOrderID != shp.ID {
		t.Error("shipping order reference missing")
	}
	if p.ReceivingOrderID == nil || *p.ReceivingOrderID != rcv.ID {
		t.Error("cross-docked pallet still belongs to its receiving order")
	}
}

// Pool 80, first 50 cross-docks leaving 30, the next 50 no longer fits and
// falls through to a normal receipt.
func TestConfirmTallyPallet_PoolDrainsAcrossSession(t *testing.T) {
	ctx := context.Background()
	rcv := receivingOrderInTally(map[string]int64{"SKU-1": 200})
	shp := shippingOrder(shipping.ContainerLoading, shipping.StatusPending,
		time.Now().UTC(), map[string]int64{"SKU-1": 80})
	env := newTallyEnv([]*receiving.Order{rcv}, []*shipping.Order{shp})

	first, err := env.svc.ConfirmTallyPallet(ctx, rcv.ID, "SKU-1", 50, true)
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if !first.IsCrossDock {
		t.Fatal("first pallet should cross-dock against the pool of 80")
	}

	second, err := env.svc.ConfirmTallyPallet(ctx, rcv.ID, "SKU-1", 50, true)
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if second.IsCrossDock {
		t.Error("second pallet must fall back to normal receipt, pool is down to 30")
	}
	if second.Status != pallet.StatusReceived {
		t.Errorf("second pallet status\nwant: %v\ngot:  %v", pallet.StatusReceived, second.Status)
	}
}

func TestConfirmTallyPallet_ReceivingCeilingHoldsOnShipNow(t *testing.T) {
	ctx := context.Background()
	rcv := receivingOrderInTally(map[string]int64{"SKU-1": 50})
	shp := shippingOrder(shipping.ContainerLoading, shipping.StatusPending,
		time.Now().UTC(), map[string]int64{"SKU-1": 500})
	env := newTallyEnv([]*receiving.Order{rcv}, []*shipping.Order{shp})

	if _, err := env.svc.ConfirmTallyPallet(ctx, rcv.ID, "SKU-1", 50, true); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	// plenty of shipping demand left, but the receiving line is exhausted
	_, err := env.svc.ConfirmTallyPallet(ctx, rcv.ID, "SKU-1", 10, true)
	if !apperror.IsQuantityExceeded(err) {
		t.Fatalf("want QuantityExceeded from the receiving scope, got %v", err)
	}
}

func TestAllocateShipNow_SurfacesNoEligibleOrder(t *testing.T) {
	ctx := context.Background()
	rcv := receivingOrderInTally(map[string]int64{"SKU-1": 100})
	env := newTallyEnv([]*receiving.Order{rcv}, nil)

	_, err := env.svc.AllocateShipNow(ctx, rcv.ID, "SKU-1", 10)
	if !apperror.IsNoEligibleOrder(err) {
		t.Fatalf("want NoEligibleOrder, got %v", err)
	}
	if env.pallets.Len() != 0 {
		t.Error("no pallet may be created when allocation fails")
	}
}

func TestUndoTallyPallet(t *testing.T) {
	ctx := context.Background()
	rcv := receivingOrderInTally(map[string]int64{"SKU-1": 100})
	env := newTallyEnv([]*receiving.Order{rcv}, nil)

	p, err := env.svc.ConfirmTallyPallet(ctx, rcv.ID, "SKU-1", 40, false)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if err := env.svc.UndoTallyPallet(ctx, p.ID); err != nil {
		t.Fatalf("undo: %v", err)
	}

	if _, err := env.pallets.GetByID(ctx, p.ID); !apperror.IsNotFound(err) {
		t.Errorf("pallet should be gone, got %v", err)
	}

	// the audit trail outlives the row
	kinds := env.events.Kinds(p.ID)
	want := []pallet.EventKind{pallet.EventCreated, pallet.EventUndone}
	if len(kinds) != len(want) || kinds[0] != want[0] || kinds[1] != want[1] {
		t.Errorf("event kinds\nwant: %v\ngot:  %v", want, kinds)
	}

	// freed quantity is allocatable again
	if _, err := env.svc.ConfirmTallyPallet(ctx, rcv.ID, "SKU-1", 100, false); err != nil {
		t.Errorf("full line should be free after undo: %v", err)
	}
}

func TestUndoTallyPallet_Guards(t *testing.T) {
	ctx := context.Background()
	rcv := receivingOrderInTally(map[string]int64{"SKU-1": 100})
	env := newTallyEnv([]*receiving.Order{rcv}, nil)

	p, err := env.svc.ConfirmTallyPallet(ctx, rcv.ID, "SKU-1", 40, false)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	t.Run("moved pallet cannot be undone", func(t *testing.T) {
		stored, _ := env.pallets.GetByID(ctx, p.ID)
		stored.Status = pallet.StatusStored
		if err := env.pallets.Update(ctx, stored); err != nil {
			t.Fatal(err)
		}

		err := env.svc.UndoTallyPallet(ctx, p.ID)
		appErr, ok := apperror.AsAppError(err)
		if !ok || appErr.Code != apperror.CodeBusinessRule {
			t.Fatalf("want business rule rejection, got %v", err)
		}

		stored.Status = pallet.StatusReceived
		if err := env.pallets.Update(ctx, stored); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("closed tally cannot be undone", func(t *testing.T) {
		order, _ := env.receiving.GetByID(ctx, rcv.ID)
		order.Status = receiving.StatusStaged
		if err := env.receiving.Update(ctx, order); err != nil {
			t.Fatal(err)
		}

		err := env.svc.UndoTallyPallet(ctx, p.ID)
		appErr, ok := apperror.AsAppError(err)
		if !ok || appErr.Code != apperror.CodeBusinessRule {
			t.Fatalf("want business rule rejection, got %v", err)
		}
	})
}

func TestPlanRows_UsesProductCapacity(t *testing.T) {
	ctx := context.Background()
	rcv := receivingOrderInTally(map[string]int64{"SKU-1": 250})
	env := newTallyEnv([]*receiving.Order{rcv}, nil)

	rows, err := env.svc.PlanRows(ctx, rcv.ID, "SKU-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int64{100, 100, 50}
	if len(rows) != len(want) {
		t.Fatalf("row count\nwant: %d\ngot:  %d", len(want), len(rows))
	}
	for i, qty := range want {
		if rows[i].Qty != qty {
			t.Errorf("row %d qty\nwant: %d\ngot:  %d", i+1, qty, rows[i].Qty)
		}
	}
}

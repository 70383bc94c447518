package allocation

import (
	"context"
	"testing"
	"time"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/feature"
	"stevedore/internal/core/id"
	"stevedore/internal/domain/orders/shipping"
	"stevedore/internal/domain/pallet"
	"stevedore/internal/domain/pallet/pallettest"
)

func TestSelectTarget_ContainerLoadingBeforeHandDelivery(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	// the hand delivery order is older, the container order must still win
	hand := shippingOrder(shipping.HandDelivery, shipping.StatusPending,
		base, map[string]int64{"SKU-1": 100})
	container := shippingOrder(shipping.ContainerLoading, shipping.StatusPending,
		base.Add(2*time.Hour), map[string]int64{"SKU-1": 100})

	alloc := NewAllocator(newFakeShippingRepo(hand, container),
		pallettest.NewInMemoryRepo(), allowAllPolicy{}, feature.NewInMemoryFlags())

	target, err := alloc.SelectTarget(ctx, "SKU-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.ID != container.ID {
		t.Errorf("target order\nwant: %v (container)\ngot:  %v", container.ID, target.ID)
	}
}

func TestSelectTarget_EarliestCreatedWinsWithinType(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	older := shippingOrder(shipping.ContainerLoading, shipping.StatusPending,
		base, map[string]int64{"SKU-1": 100})
	newer := shippingOrder(shipping.ContainerLoading, shipping.StatusPicking,
		base.Add(time.Minute), map[string]int64{"SKU-1": 100})

	alloc := NewAllocator(newFakeShippingRepo(newer, older),
		pallettest.NewInMemoryRepo(), allowAllPolicy{}, feature.NewInMemoryFlags())

	target, err := alloc.SelectTarget(ctx, "SKU-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.ID != older.ID {
		t.Errorf("target order\nwant: %v (older)\ngot:  %v", older.ID, target.ID)
	}
}

func TestSelectTarget_OrderIDBreaksTies(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	a := shippingOrder(shipping.ContainerLoading, shipping.StatusPending, at, map[string]int64{"SKU-1": 50})
	b := shippingOrder(shipping.ContainerLoading, shipping.StatusPending, at, map[string]int64{"SKU-1": 50})
	want := a.ID
	if id.Compare(b.ID, a.ID) < 0 {
		want = b.ID
	}

	alloc := NewAllocator(newFakeShippingRepo(a, b),
		pallettest.NewInMemoryRepo(), allowAllPolicy{}, feature.NewInMemoryFlags())

	target, err := alloc.SelectTarget(ctx, "SKU-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.ID != want {
		t.Errorf("target order\nwant: %v\ngot:  %v", want, target.ID)
	}
}

func TestSelectTarget_PoolMustCoverQuantity(t *testing.T) {
	ctx := context.Background()
	order := shippingOrder(shipping.ContainerLoading, shipping.StatusPicking,
		time.Now().UTC(), map[string]int64{"SKU-1": 80})
	pallets := pallettest.NewInMemoryRepo()
	// 50 already cross-docked, 30 remain in the pool
	pallets.Seed(pallet.NewCrossDocked("PLT-1", "SKU-1", 50, id.New(), order.ID))

	alloc := NewAllocator(newFakeShippingRepo(order), pallets,
		allowAllPolicy{}, feature.NewInMemoryFlags())

	_, err := alloc.SelectTarget(ctx, "SKU-1", 50)
	if !apperror.IsNoEligibleOrder(err) {
		t.Fatalf("want NoEligibleOrder, got %v", err)
	}
	appErr, _ := apperror.AsAppError(err)
	if got := appErr.Details["pool"]; got != int64(30) {
		t.Errorf("pool detail\nwant: 30\ngot:  %v", got)
	}

	// the remaining 30 are still reachable
	target, err := alloc.SelectTarget(ctx, "SKU-1", 30)
	if err != nil {
		t.Fatalf("unexpected error for qty 30: %v", err)
	}
	if target.ID != order.ID {
		t.Errorf("target order\nwant: %v\ngot:  %v", order.ID, target.ID)
	}
}

func TestSelectTarget_SkipsClosedAndForeignOrders(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	loading := shippingOrder(shipping.ContainerLoading, shipping.StatusLoading,
		now, map[string]int64{"SKU-1": 100})
	otherItem := shippingOrder(shipping.ContainerLoading, shipping.StatusPending,
		now, map[string]int64{"SKU-2": 100})
	satisfied := shippingOrder(shipping.ContainerLoading, shipping.StatusPending,
		now, map[string]int64{"SKU-1": 20})

	pallets := pallettest.NewInMemoryRepo()
	pallets.Seed(pallet.NewCrossDocked("PLT-1", "SKU-1", 20, id.New(), satisfied.ID))

	alloc := NewAllocator(newFakeShippingRepo(loading, otherItem, satisfied),
		pallets, allowAllPolicy{}, feature.NewInMemoryFlags())

	_, err := alloc.SelectTarget(ctx, "SKU-1", 1)
	if !apperror.IsNoEligibleOrder(err) {
		t.Fatalf("want NoEligibleOrder, got %v", err)
	}
}

func TestSelectTarget_PolicyVeto(t *testing.T) {
	ctx := context.Background()
	hand := shippingOrder(shipping.HandDelivery, shipping.StatusPending,
		time.Now().UTC(), map[string]int64{"SKU-1": 100})

	policy, err := NewCELPolicy(`shipment_type == "Container_Loading"`)
	if err != nil {
		t.Fatalf("compile policy: %v", err)
	}

	alloc := NewAllocator(newFakeShippingRepo(hand),
		pallettest.NewInMemoryRepo(), policy, feature.NewInMemoryFlags())

	_, err = alloc.SelectTarget(ctx, "SKU-1", 10)
	if !apperror.IsNoEligibleOrder(err) {
		t.Fatalf("want NoEligibleOrder when policy vetoes the only candidate, got %v", err)
	}
}

func TestSelectTarget_DisabledByFlag(t *testing.T) {
	ctx := context.Background()
	order := shippingOrder(shipping.ContainerLoading, shipping.StatusPending,
		time.Now().UTC(), map[string]int64{"SKU-1": 100})

	flags := feature.NewInMemoryFlagsFrom(map[string]bool{feature.FlagCrossDockDisabled: true})
	alloc := NewAllocator(newFakeShippingRepo(order),
		pallettest.NewInMemoryRepo(), allowAllPolicy{}, flags)

	_, err := alloc.SelectTarget(ctx, "SKU-1", 10)
	if !apperror.IsNoEligibleOrder(err) {
		t.Fatalf("want NoEligibleOrder with cross-dock disabled, got %v", err)
	}
}

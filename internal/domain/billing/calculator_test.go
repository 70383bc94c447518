package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stevedore/internal/core/id"
	"stevedore/internal/core/types"
	"stevedore/internal/domain/orders/shipping"
	"stevedore/internal/domain/pallet"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestInclusiveDayCount(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int64
	}{
		{"same day", day(2025, 11, 1), day(2025, 11, 1), 1},
		{"same day different hours", at(2025, 11, 1, 8), at(2025, 11, 1, 23), 1},
		{"four days apart", day(2025, 11, 1), day(2025, 11, 5), 5},
		{"across month boundary", day(2025, 10, 30), day(2025, 11, 2), 4},
		{"across year boundary", day(2025, 12, 31), day(2026, 1, 1), 2},
		{"end before start", day(2025, 11, 5), day(2025, 11, 1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inclusiveDayCount(tt.a, tt.b); got != tt.want {
				t.Errorf("inclusiveDayCount(%v, %v)\nwant: %d\ngot:  %d",
					tt.a, tt.b, tt.want, got)
			}
		})
	}
}

// A pallet received 2025-11-01 with 10 positions accrues 50 position-days
// over the range 2025-11-01 .. 2025-11-05.
func TestComputeMetrics_StorageAccrual(t *testing.T) {
	received := at(2025, 11, 1, 9)
	facts := []PalletFact{{
		PalletID:        id.New(),
		Status:          pallet.StatusStored,
		PalletPositions: 10,
		CreatedAt:       received,
		ReceivedAt:      &received,
	}}

	m := ComputeMetrics(facts, day(2025, 11, 1), endOfDay(day(2025, 11, 5)))
	if m.Storage != 50 {
		t.Errorf("storage\nwant: 50\ngot:  %d", m.Storage)
	}
}

func TestComputeMetrics_StorageEdges(t *testing.T) {
	from := day(2025, 11, 10)
	to := endOfDay(day(2025, 11, 14))

	tests := []struct {
		name string
		fact PalletFact
		want int64
	}{
		{
			name: "occupancy clamped to range start",
			fact: storedFact(2, at(2025, 10, 1, 12)),
			want: 2 * 5,
		},
		{
			name: "occupancy begins mid-range",
			fact: storedFact(3, at(2025, 11, 13, 6)),
			want: 3 * 2,
		},
		{
			name: "occupancy starts after range end",
			fact: storedFact(4, at(2025, 12, 1, 0)),
			want: 0,
		},
		{
			name: "received_at missing falls back to creation",
			fact: PalletFact{Status: pallet.StatusReceived, PalletPositions: 1,
				CreatedAt: at(2025, 11, 14, 22)},
			want: 1,
		},
		{
			name: "loaded pallet holds no storage",
			fact: storedWithStatus(pallet.StatusLoaded, 5, at(2025, 11, 10, 0)),
			want: 0,
		},
		{
			name: "written-off pallet holds no storage",
			fact: storedWithStatus(pallet.StatusWriteOff, 5, at(2025, 11, 10, 0)),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ComputeMetrics([]PalletFact{tt.fact}, from, to)
			if m.Storage != tt.want {
				t.Errorf("storage\nwant: %d\ngot:  %d", tt.want, m.Storage)
			}
		})
	}
}

func TestComputeMetrics_MovementMetrics(t *testing.T) {
	from := day(2025, 11, 1)
	to := endOfDay(day(2025, 11, 30))
	inRange := at(2025, 11, 15, 10)
	outOfRange := at(2025, 10, 2, 10)

	tests := []struct {
		name string
		fact PalletFact
		want Metrics
	}{
		{
			name: "normal receipt still in the warehouse",
			fact: PalletFact{Status: pallet.StatusStored, PalletPositions: 2,
				CreatedAt: inRange, ReceivedAt: &inRange},
			want: Metrics{InStandard: 2, Storage: 2 * 16},
		},
		{
			name: "normal receipt created before the range",
			fact: PalletFact{Status: pallet.StatusStored, PalletPositions: 2,
				CreatedAt: outOfRange, ReceivedAt: &outOfRange},
			want: Metrics{Storage: 2 * 30},
		},
		{
			name: "shipped receipt no longer counts inbound",
			fact: PalletFact{Status: pallet.StatusShipped, PalletPositions: 2,
				CreatedAt: inRange, ShippedAt: &inRange,
				ShipmentType: shipping.ContainerLoading},
			want: Metrics{OutStandard: 2},
		},
		{
			name: "cross-dock counts once at creation",
			fact: PalletFact{Status: pallet.StatusStaged, IsCrossDock: true,
				PalletPositions: 3, CreatedAt: inRange,
				ShipmentType: shipping.ContainerLoading},
			want: Metrics{CrossDock: 3, Storage: 3 * 16},
		},
		{
			name: "shipped cross-dock stays out of the standard out metric",
			fact: PalletFact{Status: pallet.StatusShipped, IsCrossDock: true,
				PalletPositions: 3, CreatedAt: inRange, ShippedAt: &inRange,
				ShipmentType: shipping.ContainerLoading},
			want: Metrics{CrossDock: 3},
		},
		{
			name: "hand delivery counts cross-docked pallets too",
			fact: PalletFact{Status: pallet.StatusShipped, IsCrossDock: true,
				PalletPositions: 4, CreatedAt: outOfRange, ShippedAt: &inRange,
				ShipmentType: shipping.HandDelivery},
			want: Metrics{HandDelivery: 4},
		},
		{
			name: "hand delivery standard pallet",
			fact: PalletFact{Status: pallet.StatusShipped, PalletPositions: 4,
				CreatedAt: outOfRange, ShippedAt: &inRange,
				ShipmentType: shipping.HandDelivery},
			want: Metrics{HandDelivery: 4},
		},
		{
			name: "shipment before the range",
			fact: PalletFact{Status: pallet.StatusShipped, PalletPositions: 4,
				CreatedAt: outOfRange, ShippedAt: &outOfRange,
				ShipmentType: shipping.ContainerLoading},
			want: Metrics{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeMetrics([]PalletFact{tt.fact}, from, to)
			tt.want.From, tt.want.To = from, to
			if got != tt.want {
				t.Errorf("metrics\nwant: %+v\ngot:  %+v", tt.want, got)
			}
		})
	}
}

func TestComputeMetrics_Additive(t *testing.T) {
	from := day(2025, 11, 1)
	to := endOfDay(day(2025, 11, 5))
	created := at(2025, 11, 2, 8)

	facts := []PalletFact{
		storedFact(1, created),
		storedFact(2, created),
		{Status: pallet.StatusShipped, IsCrossDock: true, PalletPositions: 5,
			CreatedAt: created, ShippedAt: &created, ShipmentType: shipping.HandDelivery},
	}

	m := ComputeMetrics(facts, from, to)
	if m.Storage != (1+2)*4 {
		t.Errorf("storage\nwant: %d\ngot:  %d", (1+2)*4, m.Storage)
	}
	if m.InStandard != 3 {
		t.Errorf("in standard\nwant: 3\ngot:  %d", m.InStandard)
	}
	if m.CrossDock != 5 {
		t.Errorf("cross dock\nwant: 5\ngot:  %d", m.CrossDock)
	}
	if m.HandDelivery != 5 {
		t.Errorf("hand delivery\nwant: 5\ngot:  %d", m.HandDelivery)
	}
}

func TestBuildStatement(t *testing.T) {
	m := Metrics{
		From:         day(2025, 11, 1),
		To:           endOfDay(day(2025, 11, 30)),
		Storage:      50,
		InStandard:   8,
		CrossDock:    3,
		OutStandard:  6,
		HandDelivery: 2,
	}
	tariffs := Tariffs{
		StoragePerPositionDay:   types.MustMoney("0.75"),
		InStandardPerPosition:   types.MustMoney("12.50"),
		CrossDockPerPosition:    types.MustMoney("20.00"),
		OutStandardPerPosition:  types.MustMoney("11.25"),
		HandDeliveryPerPosition: types.MustMoney("30.10"),
	}

	st := BuildStatement(m, tariffs)

	wantAmounts := map[string]string{
		MetricStorage:      "37.5",
		MetricInStandard:   "100",
		MetricCrossDock:    "60",
		MetricOutStandard:  "67.5",
		MetricHandDelivery: "60.2",
	}
	for _, line := range st.Lines {
		want := decimal.RequireFromString(wantAmounts[line.Metric])
		if !line.Amount.Equal(want) {
			t.Errorf("%s amount\nwant: %v\ngot:  %v", line.Metric, want, line.Amount)
		}
	}

	wantTotal := decimal.RequireFromString("325.2")
	if !st.Total.Equal(wantTotal) {
		t.Errorf("total\nwant: %v\ngot:  %v", wantTotal, st.Total)
	}
}

func storedFact(positions int32, receivedAt time.Time) PalletFact {
	return storedWithStatus(pallet.StatusStored, positions, receivedAt)
}

func storedWithStatus(status pallet.Status, positions int32, receivedAt time.Time) PalletFact {
	return PalletFact{
		PalletID:        id.New(),
		Status:          status,
		PalletPositions: positions,
		CreatedAt:       receivedAt,
		ReceivedAt:      &receivedAt,
	}
}

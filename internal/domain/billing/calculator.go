package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"stevedore/internal/domain/orders/shipping"
	"stevedore/internal/domain/pallet"
)

// Metric names used on statement lines.
const (
	MetricStorage      = "storage"
	MetricInStandard   = "in_standard"
	MetricCrossDock    = "cross_dock"
	MetricOutStandard  = "out_standard"
	MetricHandDelivery = "hand_delivery"
)

// ComputeMetrics folds pallet facts into the five metrics for [from, to].
// Both bounds are expected normalized (from at midnight, to at end of day).
// The calculator holds no state and reads no clock; it is a pure function
// of its inputs.
func ComputeMetrics(facts []PalletFact, from, to time.Time) Metrics {
	m := Metrics{From: from, To: to}

	for _, f := range facts {
		positions := int64(f.PalletPositions)

		if occupiesStorage(f.Status) {
			start := f.OccupancyStart()
			if !start.After(to) {
				if start.Before(from) {
					start = from
				}
				m.Storage += positions * inclusiveDayCount(start, to)
			}
		}

		createdInRange := inRange(f.CreatedAt, from, to)
		if f.IsCrossDock {
			if createdInRange {
				m.CrossDock += positions
			}
		} else if createdInRange && f.Status != pallet.StatusShipped {
			m.InStandard += positions
		}

		if f.Status == pallet.StatusShipped && f.ShippedAt != nil && inRange(*f.ShippedAt, from, to) {
			if f.ShipmentType == shipping.HandDelivery {
				m.HandDelivery += positions
			} else if !f.IsCrossDock {
				m.OutStandard += positions
			}
		}
	}

	return m
}

// BuildStatement prices the metrics with the given tariffs. Amounts are
// plain decimal products; no rounding is applied.
func BuildStatement(m Metrics, t Tariffs) Statement {
	lines := []StatementLine{
		{Metric: MetricStorage, Quantity: m.Storage, Rate: t.StoragePerPositionDay},
		{Metric: MetricInStandard, Quantity: m.InStandard, Rate: t.InStandardPerPosition},
		{Metric: MetricCrossDock, Quantity: m.CrossDock, Rate: t.CrossDockPerPosition},
		{Metric: MetricOutStandard, Quantity: m.OutStandard, Rate: t.OutStandardPerPosition},
		{Metric: MetricHandDelivery, Quantity: m.HandDelivery, Rate: t.HandDeliveryPerPosition},
	}

	total := decimal.Zero
	for i := range lines {
		lines[i].Amount = lines[i].Rate.Mul(decimal.NewFromInt(lines[i].Quantity))
		total = total.Add(lines[i].Amount)
	}

	return Statement{From: m.From, To: m.To, Metrics: m, Lines: lines, Total: total}
}

// inclusiveDayCount counts whole days between the two instants truncated to
// midnight, plus one: same day counts 1, four days apart counts 5.
func inclusiveDayCount(a, b time.Time) int64 {
	am, bm := midnight(a), midnight(b)
	if bm.Before(am) {
		return 0
	}
	return int64(bm.Sub(am)/(24*time.Hour)) + 1
}

// midnight truncates to the start of the UTC day.
func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// endOfDay is the last representable instant of the UTC day.
func endOfDay(t time.Time) time.Time {
	return midnight(t).Add(24*time.Hour - time.Nanosecond)
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

func occupiesStorage(s pallet.Status) bool {
	return s == pallet.StatusReceived || s == pallet.StatusStored || s == pallet.StatusStaged
}

package pallet

import (
	"testing"
)

func TestPlanRows_CeilSplit(t *testing.T) {
	tests := []struct {
		name           string
		expectedQty    int64
		unitsPerPallet int64
		want           []int64
	}{
		{
			name:           "exact multiple",
			expectedQty:    200,
			unitsPerPallet: 100,
			want:           []int64{100, 100},
		},
		{
			name:           "remainder on last row",
			expectedQty:    250,
			unitsPerPallet: 100,
			want:           []int64{100, 100, 50},
		},
		{
			name:           "single partial row",
			expectedQty:    7,
			unitsPerPallet: 100,
			want:           []int64{7},
		},
		{
			name:           "single full row",
			expectedQty:    100,
			unitsPerPallet: 100,
			want:           []int64{100},
		},
		{
			name:           "unit pallets",
			expectedQty:    3,
			unitsPerPallet: 1,
			want:           []int64{1, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := PlanRows(tt.expectedQty, tt.unitsPerPallet)
			if err != nil {
				t.Fatalf("PlanRows failed: %v", err)
			}
			if len(rows) != len(tt.want) {
				t.Fatalf("row count mismatch\nwant: %d\ngot:  %d", len(tt.want), len(rows))
			}
			for i, row := range rows {
				if row.Qty != tt.want[i] {
					t.Errorf("row %d qty mismatch\nwant: %d\ngot:  %d", i+1, tt.want[i], row.Qty)
				}
				if row.RowNo != i+1 {
					t.Errorf("row %d has RowNo %d", i+1, row.RowNo)
				}
			}
		})
	}
}

func TestPlanRows_RowsSumToExpected(t *testing.T) {
	cases := []struct{ qty, units int64 }{
		{1, 1}, {1, 100}, {99, 100}, {100, 100}, {101, 100},
		{250, 100}, {999, 33}, {1000000, 77},
	}

	for _, c := range cases {
		rows, err := PlanRows(c.qty, c.units)
		if err != nil {
			t.Fatalf("PlanRows(%d, %d) failed: %v", c.qty, c.units, err)
		}

		var sum int64
		for _, row := range rows {
			if row.Qty <= 0 {
				t.Errorf("PlanRows(%d, %d): row %d has non-positive qty %d", c.qty, c.units, row.RowNo, row.Qty)
			}
			if row.Qty > c.units {
				t.Errorf("PlanRows(%d, %d): row %d exceeds pallet capacity: %d", c.qty, c.units, row.RowNo, row.Qty)
			}
			sum += row.Qty
		}
		if sum != c.qty {
			t.Errorf("PlanRows(%d, %d): rows sum to %d", c.qty, c.units, sum)
		}
	}
}

func TestPlanRows_RejectsNonPositiveInput(t *testing.T) {
	if _, err := PlanRows(0, 100); err == nil {
		t.Error("expected error for zero expected quantity")
	}
	if _, err := PlanRows(-5, 100); err == nil {
		t.Error("expected error for negative expected quantity")
	}
	if _, err := PlanRows(100, 0); err == nil {
		t.Error("expected error for zero units per pallet")
	}
}

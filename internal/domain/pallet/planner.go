package pallet

import (
	"stevedore/internal/core/apperror"
)

// Row is one proposed pallet row for a receiving line.
type Row struct {
	RowNo int   `json:"rowNo"`
	Qty   int64 `json:"qty"`
}

// PlanRows splits an expected receiving quantity into pallet rows of at most
// unitsPerPallet each: ceil(expectedQty / unitsPerPallet) rows, every row but
// the last carrying unitsPerPallet and the last carrying the remainder. Rows
// always sum exactly to expectedQty.
//
// Operators may override row quantities afterwards; overrides are not
// re-validated here. The quantity ledger enforces the line ceiling when a row
// is confirmed.
func PlanRows(expectedQty, unitsPerPallet int64) ([]Row, error) {
	if expectedQty <= 0 {
		return nil, apperror.NewValidation("expected quantity must be positive").
			WithDetail("field", "expectedQty").
			WithDetail("value", expectedQty)
	}
	if unitsPerPallet <= 0 {
		return nil, apperror.NewValidation("units per pallet must be positive").
			WithDetail("field", "unitsPerPallet").
			WithDetail("value", unitsPerPallet)
	}

	count := (expectedQty + unitsPerPallet - 1) / unitsPerPallet
	rows := make([]Row, 0, count)
	remaining := expectedQty
	for i := int64(1); i <= count; i++ {
		qty := unitsPerPallet
		if remaining < qty {
			qty = remaining
		}
		rows = append(rows, Row{RowNo: int(i), Qty: qty})
		remaining -= qty
	}
	return rows, nil
}

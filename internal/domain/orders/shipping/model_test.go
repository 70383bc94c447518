package shipping

import (
	"context"
	"testing"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
)

func TestOrderTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		attempt func(o *Order) error
		to      Status
		wantErr bool
	}{
		{"pending starts picking", StatusPending, (*Order).StartPicking, StatusPicking, false},
		{"picking cannot restart", StatusPicking, (*Order).StartPicking, StatusPicking, true},
		{"pending finishes picking when fully cross-docked", StatusPending, (*Order).FinishPicking, StatusLoading, false},
		{"picking finishes picking", StatusPicking, (*Order).FinishPicking, StatusLoading, false},
		{"loading cannot finish picking again", StatusLoading, (*Order).FinishPicking, StatusLoading, true},
		{"loading completes", StatusLoading, (*Order).Complete, StatusCompleted, false},
		{"picking cannot complete", StatusPicking, (*Order).Complete, StatusCompleted, true},
		{"completed marks shipped", StatusCompleted, (*Order).MarkShipped, StatusShipped, false},
		{"loading cannot mark shipped", StatusLoading, (*Order).MarkShipped, StatusShipped, true},
		{"pending cancels", StatusPending, (*Order).Cancel, StatusCancelled, false},
		{"picking cancels", StatusPicking, (*Order).Cancel, StatusCancelled, false},
		{"loading cancels", StatusLoading, (*Order).Cancel, StatusCancelled, false},
		{"completed cannot cancel", StatusCompleted, (*Order).Cancel, StatusCancelled, true},
		{"shipped cannot cancel", StatusShipped, (*Order).Cancel, StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOrder(id.New(), ContainerLoading, "dock 1")
			o.Status = tt.from

			err := tt.attempt(o)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("want rejection from %s, got nil", tt.from)
				}
				if o.Status != tt.from {
					t.Errorf("status must not change on rejection\nwant: %v\ngot:  %v", tt.from, o.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if o.Status != tt.to {
				t.Errorf("status\nwant: %v\ngot:  %v", tt.to, o.Status)
			}
		})
	}
}

func TestOrderValidate(t *testing.T) {
	valid := func() *Order {
		o := NewOrder(id.New(), HandDelivery, "front desk")
		o.AddLine("SKU-1", 10)
		return o
	}

	tests := []struct {
		name   string
		mutate func(o *Order)
		wantOK bool
	}{
		{"valid order", func(o *Order) {}, true},
		{"missing warehouse", func(o *Order) { o.WarehouseID = id.Nil() }, false},
		{"bad shipment type", func(o *Order) { o.ShipmentType = "Parcel" }, false},
		{"no lines", func(o *Order) { o.Lines = nil }, false},
		{"empty item", func(o *Order) { o.Lines[0].ItemID = "" }, false},
		{"zero quantity", func(o *Order) { o.Lines[0].RequestedQty = 0 }, false},
		{"negative quantity", func(o *Order) { o.Lines[0].RequestedQty = -1 }, false},
		{"duplicate item", func(o *Order) { o.AddLine("SKU-1", 5) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid()
			tt.mutate(o)
			err := o.Validate(context.Background())
			if tt.wantOK && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.wantOK {
				appErr, ok := apperror.AsAppError(err)
				if !ok || appErr.Code != apperror.CodeValidation {
					t.Errorf("want validation error, got %v", err)
				}
			}
		})
	}
}

func TestIsOpenForAllocation(t *testing.T) {
	open := map[Status]bool{
		StatusPending:   true,
		StatusPicking:   true,
		StatusLoading:   false,
		StatusCompleted: false,
		StatusShipped:   false,
		StatusCancelled: false,
	}

	for status, want := range open {
		o := NewOrder(id.New(), ContainerLoading, "")
		o.Status = status
		if got := o.IsOpenForAllocation(); got != want {
			t.Errorf("IsOpenForAllocation(%s)\nwant: %v\ngot:  %v", status, want, got)
		}
	}
}

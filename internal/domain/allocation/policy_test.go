package allocation

import (
	"context"
	"testing"

	"stevedore/internal/core/entity"
	"stevedore/internal/domain/orders/shipping"
)

func TestCELPolicy_Expressions(t *testing.T) {
	candidate := Candidate{
		ShipmentType: shipping.ContainerLoading,
		OrderAgeDays: 3,
		ItemID:       "SKU-1",
		Qty:          40,
		Remaining:    60,
		Attributes:   entity.Attributes{"hazmat": true, "priority": "rush"},
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"default allows everything", DefaultPolicyExpression, true},
		{"type match", `shipment_type == "Container_Loading"`, true},
		{"type mismatch", `shipment_type == "Hand_Delivery"`, false},
		{"age window", `order_age_days < 7`, true},
		{"quantity threshold", `qty >= 50`, false},
		{"combined", `remaining >= qty && item_id.startsWith("SKU")`, true},
		{"hazmat veto", `!has(attributes.hazmat) || attributes.hazmat != true`, false},
		{"custom field match", `attributes.priority == "rush"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := NewCELPolicy(tt.expr)
			if err != nil {
				t.Fatalf("compile %q: %v", tt.expr, err)
			}
			if got := policy.Allow(context.Background(), candidate); got != tt.want {
				t.Errorf("Allow(%q)\nwant: %v\ngot:  %v", tt.expr, tt.want, got)
			}
		})
	}
}

func TestNewCELPolicy_RejectsBadExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"syntax error", `shipment_type ==`},
		{"unknown variable", `warehouse == "main"`},
		{"non-bool result", `order_age_days + 1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCELPolicy(tt.expr); err == nil {
				t.Errorf("NewCELPolicy(%q): want error, got nil", tt.expr)
			}
		})
	}
}

func TestCELPolicy_EvaluationErrorVetoes(t *testing.T) {
	// division by a zero variable compiles but fails at evaluation time
	policy, err := NewCELPolicy(`100 / (qty - 40) > 0`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	vetoed := Candidate{ShipmentType: shipping.ContainerLoading, Qty: 40}
	if policy.Allow(context.Background(), vetoed) {
		t.Error("evaluation error must veto the candidate")
	}

	fine := Candidate{ShipmentType: shipping.ContainerLoading, Qty: 50}
	if !policy.Allow(context.Background(), fine) {
		t.Error("working evaluation should pass")
	}
}

func TestCELPolicy_NilAttributes(t *testing.T) {
	policy, err := NewCELPolicy(`!has(attributes.hazmat) || attributes.hazmat != true`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	// orders without custom fields must evaluate, not error out
	if !policy.Allow(context.Background(), Candidate{ShipmentType: shipping.HandDelivery}) {
		t.Error("nil attributes should pass a has() guard")
	}
}

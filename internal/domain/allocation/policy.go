package allocation

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"

	"stevedore/internal/core/entity"
	"stevedore/internal/domain/orders/shipping"
	"stevedore/pkg/logger"
)

// DefaultPolicyExpression accepts every candidate.
const DefaultPolicyExpression = "true"

// Candidate describes one shipping order considered for cross-dock.
type Candidate struct {
	OrderID      string
	ShipmentType shipping.ShipmentType
	OrderAgeDays int64
	ItemID       string
	Qty          int64
	Remaining    int64
	Attributes   entity.Attributes
}

// Policy vetoes cross-dock candidates. Vetoed orders are skipped during
// eligibility, they are never an error.
type Policy interface {
	Allow(ctx context.Context, c Candidate) bool
}

// CELPolicy evaluates a CEL expression per candidate. The expression is
// compiled once at startup; a compile failure is fatal, an evaluation
// failure vetoes the candidate and is logged.
type CELPolicy struct {
	expr string
	prg  cel.Program
}

// NewCELPolicy compiles the policy expression. The expression sees
// shipment_type (string), order_age_days (int), item_id (string), qty (int),
// remaining (int) and attributes (the order's custom fields, e.g.
// `!has(attributes.hazmat) || attributes.hazmat != true`), and must produce
// a bool.
func NewCELPolicy(expr string) (*CELPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("shipment_type", cel.StringType),
		cel.Variable("order_age_days", cel.IntType),
		cel.Variable("item_id", cel.StringType),
		cel.Variable("qty", cel.IntType),
		cel.Variable("remaining", cel.IntType),
		cel.Variable("attributes", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create policy environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile cross-dock policy %q: %w", expr, issues.Err())
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, fmt.Errorf("cross-dock policy %q must produce bool, got %v", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build cross-dock policy program: %w", err)
	}

	return &CELPolicy{expr: expr, prg: prg}, nil
}

// Allow evaluates the policy for one candidate.
func (p *CELPolicy) Allow(ctx context.Context, c Candidate) bool {
	attrs := c.Attributes
	if attrs == nil {
		attrs = entity.Attributes{}
	}
	out, _, err := p.prg.Eval(map[string]any{
		"shipment_type":  string(c.ShipmentType),
		"order_age_days": c.OrderAgeDays,
		"item_id":        c.ItemID,
		"qty":            c.Qty,
		"remaining":      c.Remaining,
		"attributes":     map[string]any(attrs),
	})
	if err != nil {
		logger.Warn(ctx, "cross-dock policy evaluation failed, candidate vetoed",
			"expr", p.expr, "order_id", c.OrderID, "error", err)
		return false
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		logger.Warn(ctx, "cross-dock policy produced non-bool value, candidate vetoed",
			"expr", p.expr, "order_id", c.OrderID)
		return false
	}
	return allowed
}

// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// OperatorContext contains the identity of the warehouse operator
// performing the request. Populated by the identity middleware from
// a validated bearer token; the service itself never issues tokens.
type OperatorContext struct {
	OperatorID string
	Name       string
	Roles      []string
}

type operatorContextKey struct{}

// WithOperator adds OperatorContext to context.
func WithOperator(ctx context.Context, op *OperatorContext) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, op)
}

// GetOperator returns OperatorContext from context.
func GetOperator(ctx context.Context) *OperatorContext {
	if v, ok := ctx.Value(operatorContextKey{}).(*OperatorContext); ok {
		return v
	}
	return nil
}

// GetOperatorID returns operator ID from context or empty string.
func GetOperatorID(ctx context.Context) string {
	if o := GetOperator(ctx); o != nil {
		return o.OperatorID
	}
	return ""
}

// HasRole checks if the operator has a specific role.
func HasRole(ctx context.Context, role string) bool {
	o := GetOperator(ctx)
	if o == nil {
		return false
	}
	for _, r := range o.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Package txtest provides transaction manager stand-ins for unit tests.
package txtest

import "context"

// Passthrough runs the function directly, without any transaction. Nested
// calls simply nest.
type Passthrough struct{}

// RunInTransaction implements tx.Manager.
func (Passthrough) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ReadOnly implements tx.ReadOnlyManager.
func (Passthrough) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

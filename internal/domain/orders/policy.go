// Package orders holds rules shared by the receiving, shipping and manifest
// document services.
package orders

import (
	"context"

	"stevedore/internal/core/apperror"
)

// EditPolicy decides whether a document's lines may still be modified in a
// given status. Quantity floors (expected/requested never below the already
// committed total) are enforced separately by the services regardless of
// policy.
type EditPolicy interface {
	// CanModifyLines checks if lines can change while the document is in status.
	CanModifyLines(ctx context.Context, status string) error
}

// StrictEditPolicy allows line edits only before work started (Pending).
// Used in production so tallied and picked quantities keep a stable ceiling.
type StrictEditPolicy struct{}

// NewStrictEditPolicy creates the production policy.
func NewStrictEditPolicy() *StrictEditPolicy {
	return &StrictEditPolicy{}
}

func (p *StrictEditPolicy) CanModifyLines(ctx context.Context, status string) error {
	if status != "Pending" {
		return apperror.NewBusinessRule("lines can only be modified while the order is pending").
			WithDetail("status", status)
	}
	return nil
}

// FlexibleEditPolicy allows line edits until the document reaches one of the
// blocked statuses. Suitable for small sites that correct paperwork late.
type FlexibleEditPolicy struct {
	blocked map[string]bool
}

// NewFlexibleEditPolicy creates a policy that blocks edits in the given statuses.
func NewFlexibleEditPolicy(blocked ...string) *FlexibleEditPolicy {
	m := make(map[string]bool, len(blocked))
	for _, s := range blocked {
		m[s] = true
	}
	return &FlexibleEditPolicy{blocked: m}
}

func (p *FlexibleEditPolicy) CanModifyLines(ctx context.Context, status string) error {
	if p.blocked[status] {
		return apperror.NewBusinessRule("lines can no longer be modified").
			WithDetail("status", status)
	}
	return nil
}

// OpenEditPolicy allows all edits (for development/testing).
type OpenEditPolicy struct{}

func (OpenEditPolicy) CanModifyLines(ctx context.Context, status string) error { return nil }

// Package audit provides utilities for audit field enrichment in domain entities.
package audit

import (
	"context"

	appctx "stevedore/internal/core/context"
)

// EnrichCreatedBy sets CreatedBy and UpdatedBy fields from the context operator.
// Use in BeforeCreate hooks.
//
// The entity must implement SetCreatedBy/SetUpdatedBy.
// If no operator is in context, this is a no-op.
func EnrichCreatedBy(ctx context.Context, entity interface{}) error {
	operatorID := appctx.GetOperatorID(ctx)
	if operatorID == "" {
		return nil
	}

	switch e := entity.(type) {
	case interface {
		SetCreatedBy(string)
		SetUpdatedBy(string)
	}:
		e.SetCreatedBy(operatorID)
		e.SetUpdatedBy(operatorID)
	}

	return nil
}

// EnrichUpdatedBy sets only the UpdatedBy field from the context operator.
// Use in BeforeUpdate hooks.
//
// If no operator is in context, this is a no-op.
func EnrichUpdatedBy(ctx context.Context, entity interface{}) error {
	operatorID := appctx.GetOperatorID(ctx)
	if operatorID == "" {
		return nil
	}

	if e, ok := entity.(interface{ SetUpdatedBy(string) }); ok {
		e.SetUpdatedBy(operatorID)
	}

	return nil
}

// EnrichCreatedByDirect sets audit fields through pointers.
// Use when the entity exposes plain CreatedBy/UpdatedBy fields.
func EnrichCreatedByDirect(ctx context.Context, createdBy, updatedBy *string) {
	operatorID := appctx.GetOperatorID(ctx)
	if operatorID != "" && createdBy != nil && updatedBy != nil {
		*createdBy = operatorID
		*updatedBy = operatorID
	}
}

// EnrichUpdatedByDirect sets the UpdatedBy field through a pointer.
func EnrichUpdatedByDirect(ctx context.Context, updatedBy *string) {
	operatorID := appctx.GetOperatorID(ctx)
	if operatorID != "" && updatedBy != nil {
		*updatedBy = operatorID
	}
}

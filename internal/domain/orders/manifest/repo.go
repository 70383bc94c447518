package manifest

import (
	"context"
	"time"

	"stevedore/internal/core/id"
	"stevedore/internal/domain"
)

// ListFilter narrows manifest listings.
type ListFilter struct {
	domain.ListFilter

	Status   *Status
	DateFrom *time.Time
	DateTo   *time.Time
}

// Repository is the persistence port for manifests.
type Repository interface {
	Create(ctx context.Context, m *Manifest) error
	GetByID(ctx context.Context, manifestID id.ID) (*Manifest, error)
	GetByNumber(ctx context.Context, number string) (*Manifest, error)

	// GetForUpdate locks the manifest row for the current transaction.
	GetForUpdate(ctx context.Context, manifestID id.ID) (*Manifest, error)

	Update(ctx context.Context, m *Manifest) error
	Delete(ctx context.Context, manifestID id.ID) error
	List(ctx context.Context, f ListFilter) (domain.ListResult[*Manifest], error)
}

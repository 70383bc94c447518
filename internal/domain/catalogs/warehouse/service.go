package warehouse

import (
	"context"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/numerator"
	"stevedore/internal/core/tx"
	"stevedore/internal/domain"
)

// Service provides business logic for the Warehouse catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Warehouse]
	repo Repository
}

// NewService creates a new Warehouse service.
func NewService(repo Repository, gen numerator.Generator, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Warehouse]{
		Repo:       repo,
		TxManager:  txManager,
		Numerator:  gen,
		EntityName: "warehouse",
		CodePrefix: "WH",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
	}

	base.Hooks().OnBeforeCreate(svc.prepareForSave)
	base.Hooks().OnBeforeUpdate(svc.prepareForSave)

	return svc
}

// prepareForSave keeps at most one default warehouse.
func (s *Service) prepareForSave(ctx context.Context, wh *Warehouse) error {
	if wh.IsDefault {
		return s.repo.ClearDefault(ctx)
	}
	return nil
}

// GetDefault returns the default warehouse.
func (s *Service) GetDefault(ctx context.Context) (*Warehouse, error) {
	result, err := s.repo.List(ctx, domain.ListFilter{Limit: 1, OrderBy: "-is_default"})
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, apperror.NewNotFound("warehouse", "default")
	}
	return result.Items[0], nil
}

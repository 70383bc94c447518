package product

import (
	"context"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/core/numerator"
	"stevedore/internal/core/tx"
	"stevedore/internal/domain"
)

// Service provides business logic for the Product catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Product]
	repo Repository
}

// NewService creates a new Product service.
func NewService(repo Repository, gen numerator.Generator, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Product]{
		Repo:       repo,
		TxManager:  txManager,
		Numerator:  gen,
		EntityName: "product",
		CodePrefix: "PRD",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
	}

	base.Hooks().OnBeforeCreate(svc.prepareForCreate)
	base.Hooks().OnBeforeUpdate(svc.prepareForUpdate)

	return svc
}

// prepareForCreate enforces item key uniqueness.
func (s *Service) prepareForCreate(ctx context.Context, p *Product) error {
	if p.ItemID != "" {
		if exists, _ := s.itemIDTaken(ctx, p.ItemID, p.ID); exists {
			return apperror.NewConflict("product with this item id already exists").
				WithDetail("itemId", p.ItemID)
		}
	}

	return nil
}

// prepareForUpdate enforces item key uniqueness.
func (s *Service) prepareForUpdate(ctx context.Context, p *Product) error {
	if p.ItemID != "" {
		if exists, _ := s.itemIDTaken(ctx, p.ItemID, p.ID); exists {
			return apperror.NewConflict("product with this item id already exists").
				WithDetail("itemId", p.ItemID)
		}
	}

	return nil
}

// --- Entity-specific methods ---

// FindByItemID retrieves the product for a natural item key.
func (s *Service) FindByItemID(ctx context.Context, itemID string) (*Product, error) {
	return s.repo.FindByItemID(ctx, itemID)
}

// itemIDTaken checks whether another product already claims the item key.
func (s *Service) itemIDTaken(ctx context.Context, itemID string, excludeID id.ID) (bool, error) {
	existing, err := s.repo.FindByItemID(ctx, itemID)
	if err != nil {
		return false, nil
	}
	return existing.ID != excludeID, nil
}

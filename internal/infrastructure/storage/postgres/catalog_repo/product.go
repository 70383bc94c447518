package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stevedore/internal/core/apperror"
	"stevedore/internal/domain/catalogs/product"
	"stevedore/internal/infrastructure/storage/postgres"
)

const productTable = "cat_products"

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
}

var _ product.Repository = (*ProductRepo)(nil)

// NewProductRepo creates a new product repository.
func NewProductRepo(txManager *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			productTable,
			postgres.ExtractDBColumns[product.Product](),
			func() *product.Product { return &product.Product{} },
		),
	}
}

// FindByItemID retrieves the product holding the natural item key.
func (r *ProductRepo) FindByItemID(ctx context.Context, itemID string) (*product.Product, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"item_id": itemID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	item, err := r.FindOne(ctx, q)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("product", itemID)
		}
		return nil, err
	}
	return item, nil
}

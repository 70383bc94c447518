package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stevedore/internal/domain"
	"stevedore/internal/domain/orders/manifest"
	"stevedore/internal/infrastructure/storage/postgres"
)

const manifestsTable = "doc_manifests"

// ManifestRepo implements manifest.Repository. Manifests carry no table
// part; pallet membership lives on the pallet rows themselves.
type ManifestRepo struct {
	*BaseDocumentRepo[*manifest.Manifest]
}

var _ manifest.Repository = (*ManifestRepo)(nil)

// NewManifestRepo creates a new manifest repository.
func NewManifestRepo(txManager *postgres.TxManager) *ManifestRepo {
	return &ManifestRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*manifest.Manifest](
			txManager,
			manifestsTable,
			postgres.ExtractDBColumns[manifest.Manifest](),
			func() *manifest.Manifest { return &manifest.Manifest{} },
		),
	}
}

// List retrieves manifests with filtering.
func (r *ManifestRepo) List(ctx context.Context, filter manifest.ListFilter) (domain.ListResult[*manifest.Manifest], error) {
	result := domain.ListResult[*manifest.Manifest]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}

	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}

	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}

	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": searchPattern},
			squirrel.ILike{"vehicle_ref": searchPattern},
		})
	}

	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select: %w", err)
	}

	return result, nil
}

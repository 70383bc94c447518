package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/domain"
	"stevedore/internal/domain/catalogs/location"
	"stevedore/internal/infrastructure/storage/postgres"
)

const locationTable = "cat_locations"

// locationCopyCols is the column order used by CreateBatch.
var locationCopyCols = []string{
	"id", "deletion_mark", "version", "attributes",
	"code", "name", "parent_id", "is_folder",
	"warehouse_id", "kind", "rack", "level", "position",
}

// LocationRepo implements location.Repository.
type LocationRepo struct {
	*BaseCatalogRepo[*location.Location]
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
}

var _ location.Repository = (*LocationRepo)(nil)

// NewLocationRepo creates a new location repository.
func NewLocationRepo(txManager *postgres.TxManager) *LocationRepo {
	return &LocationRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			locationTable,
			postgres.ExtractDBColumns[location.Location](),
			func() *location.Location { return &location.Location{} },
		),
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
	}
}

// FindByCoordinates retrieves the location matching a coordinate tuple.
func (r *LocationRepo) FindByCoordinates(ctx context.Context, warehouseID id.ID, kind location.Kind, rack string, level, position int32) (*location.Location, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"warehouse_id": warehouseID}).
		Where(squirrel.Eq{"kind": string(kind)}).
		Where(squirrel.Eq{"rack": rack}).
		Where(squirrel.Eq{"level": level}).
		Where(squirrel.Eq{"position": position}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	loc, err := r.FindOne(ctx, q)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("location", location.CoordinateName(kind, rack, level, position))
		}
		return nil, err
	}
	return loc, nil
}

// CreateBatch bulk-inserts locations via COPY. Requires a transaction context.
func (r *LocationRepo) CreateBatch(ctx context.Context, locations []*location.Location) error {
	if len(locations) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(locations))
	for _, loc := range locations {
		rows = append(rows, []any{
			loc.ID, loc.DeletionMark, loc.Version, loc.Attributes,
			loc.Code, loc.Name, loc.ParentID, loc.IsFolder,
			loc.WarehouseID, string(loc.Kind), loc.Rack, loc.Level, loc.Position,
		})
	}

	n, err := r.inserter.CopyFromSlice(ctx, locationTable, locationCopyCols, rows)
	if err != nil {
		return fmt.Errorf("copy locations: %w", err)
	}
	if n != int64(len(locations)) {
		return fmt.Errorf("copy locations: inserted %d of %d", n, len(locations))
	}

	return nil
}

// ListByWarehouse retrieves locations of one warehouse.
func (r *LocationRepo) ListByWarehouse(ctx context.Context, warehouseID id.ID, filter domain.ListFilter) (domain.ListResult[*location.Location], error) {
	result := domain.ListResult[*location.Location]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect().
		Where(squirrel.Eq{"warehouse_id": warehouseID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("rack ASC", "level ASC", "position ASC")

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

	var items []*location.Location
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return result, fmt.Errorf("list by warehouse: %w", err)
	}
	result.Items = items
	result.TotalCount = int64(len(items))

	return result, nil
}

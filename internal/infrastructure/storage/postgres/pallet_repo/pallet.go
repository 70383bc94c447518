// Package pallet_repo provides the PostgreSQL pallet store together with
// the aggregate queries backing the quantity ledger. The pallet table is
// the single source of committed quantities: reservation checks sum live
// rows instead of maintaining a separate balance register.
package pallet_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/domain"
	"stevedore/internal/domain/pallet"
	"stevedore/internal/infrastructure/storage/postgres"
)

const palletsTable = "pallets"

// PalletRepo implements pallet.Repository.
type PalletRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

var _ pallet.Repository = (*PalletRepo)(nil)

// NewPalletRepo creates a new pallet repository.
func NewPalletRepo(txManager *postgres.TxManager) *PalletRepo {
	return &PalletRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[pallet.Pallet](),
	}
}

// Create inserts a new pallet.
func (r *PalletRepo) Create(ctx context.Context, p *pallet.Pallet) error {
	data := postgres.StructToMap(p)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in pallet")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.Insert(palletsTable).SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert pallet: %w", err)
	}

	return nil
}

func (r *PalletRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(r.selectCols...).From(palletsTable)
}

// GetByID retrieves a pallet by ID.
func (r *PalletRepo) GetByID(ctx context.Context, palletID id.ID) (*pallet.Pallet, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": palletID}), palletID.String())
}

// GetByLabel retrieves a pallet by its label. Labels are what scanners
// read, so this is the hot lookup on the dock.
func (r *PalletRepo) GetByLabel(ctx context.Context, label string) (*pallet.Pallet, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"label": label}), label)
}

// GetForUpdate retrieves a pallet with a row lock.
func (r *PalletRepo) GetForUpdate(ctx context.Context, palletID id.ID) (*pallet.Pallet, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": palletID}).
		Suffix("FOR UPDATE")
	return r.getOne(ctx, q, palletID.String())
}

func (r *PalletRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*pallet.Pallet, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p pallet.Pallet
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("pallet", key)
		}
		return nil, fmt.Errorf("get pallet: %w", err)
	}

	return &p, nil
}

// Update persists pallet changes with an optimistic version check.
func (r *PalletRepo) Update(ctx context.Context, p *pallet.Pallet) error {
	data := postgres.StructToMap(p)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in pallet")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if col == "id" || col == "created_at" || col == "created_by" {
			continue
		}
		if col == "version" || col == "updated_at" {
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.Update(palletsTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": p.ID}).
		Where(squirrel.Eq{"version": p.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update pallet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("pallet", p.ID)
	}

	return nil
}

// HardDelete removes the pallet row. Only the undo of an unconfirmed tally
// action calls this; the event trail survives because pallet_events carries
// no FK back.
func (r *PalletRepo) HardDelete(ctx context.Context, palletID id.ID) error {
	q := r.builder.Delete(palletsTable).Where(squirrel.Eq{"id": palletID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete pallet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("pallet", palletID.String())
	}

	return nil
}

// List retrieves pallets with filtering.
func (r *PalletRepo) List(ctx context.Context, filter pallet.ListFilter) (domain.ListResult[*pallet.Pallet], error) {
	result := domain.ListResult[*pallet.Pallet]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.ItemID != nil {
		q = q.Where(squirrel.Eq{"item_id": *filter.ItemID})
	}
	if filter.ReceivingOrderID != nil {
		q = q.Where(squirrel.Eq{"receiving_order_id": *filter.ReceivingOrderID})
	}
	if filter.ShippingOrderID != nil {
		q = q.Where(squirrel.Eq{"shipping_order_id": *filter.ShippingOrderID})
	}
	if filter.ManifestID != nil {
		q = q.Where(squirrel.Eq{"manifest_id": *filter.ManifestID})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.IsCrossDock != nil {
		q = q.Where(squirrel.Eq{"is_cross_dock": *filter.IsCrossDock})
	}
	if filter.CreatedFrom != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.CreatedFrom})
	}
	if filter.CreatedTo != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.CreatedTo})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"label": "%" + filter.Search + "%"})
	}

	countQ := r.builder.Select("COUNT(*)").FromSelect(q, "sub")
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

// SumQtyForReceiving returns the committed total for a (receiving order,
// item) scope. All statuses count: shipped and written-off pallets still
// consumed receiving capacity when they were created.
func (r *PalletRepo) SumQtyForReceiving(ctx context.Context, orderID id.ID, itemID string) (int64, error) {
	q := r.builder.Select("COALESCE(SUM(qty), 0)").
		From(palletsTable).
		Where(squirrel.Eq{"receiving_order_id": orderID}).
		Where(squirrel.Eq{"item_id": itemID})

	return r.sumQuery(ctx, q)
}

// SumQtyForShipping returns the committed total for a (shipping order,
// item) scope, excluding written-off pallets. excludeID removes one pallet
// so a load toggle can re-check without counting itself twice.
func (r *PalletRepo) SumQtyForShipping(ctx context.Context, orderID id.ID, itemID string, excludeID *id.ID) (int64, error) {
	q := r.builder.Select("COALESCE(SUM(qty), 0)").
		From(palletsTable).
		Where(squirrel.Eq{"shipping_order_id": orderID}).
		Where(squirrel.Eq{"item_id": itemID}).
		Where(squirrel.NotEq{"status": pallet.StatusWriteOff})

	if excludeID != nil {
		q = q.Where(squirrel.NotEq{"id": *excludeID})
	}

	return r.sumQuery(ctx, q)
}

// CountByReceivingOrder counts pallets produced by a receiving order.
func (r *PalletRepo) CountByReceivingOrder(ctx context.Context, orderID id.ID) (int64, error) {
	q := r.builder.Select("COUNT(*)").
		From(palletsTable).
		Where(squirrel.Eq{"receiving_order_id": orderID})

	return r.sumQuery(ctx, q)
}

// CountByShippingOrderInStatuses counts the order's pallets in the given
// lifecycle states.
func (r *PalletRepo) CountByShippingOrderInStatuses(ctx context.Context, orderID id.ID, statuses ...pallet.Status) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}

	sts := make([]string, len(statuses))
	for i, s := range statuses {
		sts[i] = string(s)
	}

	q := r.builder.Select("COUNT(*)").
		From(palletsTable).
		Where(squirrel.Eq{"shipping_order_id": orderID}).
		Where(squirrel.Eq{"status": sts})

	return r.sumQuery(ctx, q)
}

// CountManualPicks counts non-cross-dock pallets committed to the order.
func (r *PalletRepo) CountManualPicks(ctx context.Context, orderID id.ID) (int64, error) {
	q := r.builder.Select("COUNT(*)").
		From(palletsTable).
		Where(squirrel.Eq{"shipping_order_id": orderID}).
		Where(squirrel.Eq{"is_cross_dock": false}).
		Where(squirrel.NotEq{"status": pallet.StatusWriteOff})

	return r.sumQuery(ctx, q)
}

// ListByShippingOrder returns all pallets committed to the order.
func (r *PalletRepo) ListByShippingOrder(ctx context.Context, orderID id.ID) ([]*pallet.Pallet, error) {
	return r.listBy(ctx, squirrel.Eq{"shipping_order_id": orderID})
}

// ListByManifest returns all pallets grouped onto the manifest.
func (r *PalletRepo) ListByManifest(ctx context.Context, manifestID id.ID) ([]*pallet.Pallet, error) {
	return r.listBy(ctx, squirrel.Eq{"manifest_id": manifestID})
}

// CountAtLocation counts pallets occupying a location.
func (r *PalletRepo) CountAtLocation(ctx context.Context, locationID id.ID) (int64, error) {
	q := r.builder.Select("COUNT(*)").
		From(palletsTable).
		Where(squirrel.Eq{"location_id": locationID})

	return r.sumQuery(ctx, q)
}

func (r *PalletRepo) listBy(ctx context.Context, cond squirrel.Eq) ([]*pallet.Pallet, error) {
	q := r.baseSelect().
		Where(cond).
		OrderBy("created_at", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	pallets := make([]*pallet.Pallet, 0)
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &pallets, sql, args...); err != nil {
		return nil, fmt.Errorf("select pallets: %w", err)
	}

	return pallets, nil
}

func (r *PalletRepo) sumQuery(ctx context.Context, q squirrel.SelectBuilder) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var total int64
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("aggregate pallets: %w", err)
	}

	return total, nil
}

func (r *PalletRepo) parseOrderBy(orderBy string) (string, error) {
	if strings.TrimSpace(orderBy) == "" {
		return "created_at DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	allowed := map[string]struct{}{
		"id": {}, "label": {}, "item_id": {}, "qty": {}, "status": {},
		"created_at": {}, "updated_at": {}, "version": {},
	}
	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}

	return field + " " + direction, nil
}

package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/domain"
	"stevedore/internal/domain/orders/shipping"
	"stevedore/internal/infrastructure/storage/postgres"
)

const (
	shippingOrdersTable = "doc_shipping_orders"
	shippingLinesTable  = "doc_shipping_lines"
)

var shippingLineCols = []string{"line_id", "line_no", "item_id", "requested_qty"}

// ShippingRepo implements shipping.Repository.
type ShippingRepo struct {
	*BaseDocumentRepo[*shipping.Order]

	batch *postgres.BatchExecutor
}

var _ shipping.Repository = (*ShippingRepo)(nil)

// NewShippingRepo creates a new shipping order repository.
func NewShippingRepo(txManager *postgres.TxManager) *ShippingRepo {
	return &ShippingRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*shipping.Order](
			txManager,
			shippingOrdersTable,
			postgres.ExtractDBColumns[shipping.Order](),
			func() *shipping.Order { return &shipping.Order{} },
		),
		batch: postgres.NewBatchExecutor(txManager),
	}
}

// GetLines retrieves the table part ordered by line number.
func (r *ShippingRepo) GetLines(ctx context.Context, orderID id.ID) ([]shipping.Line, error) {
	q := r.Builder().
		Select(shippingLineCols...).
		From(shippingLinesTable).
		Where(squirrel.Eq{"document_id": orderID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []shipping.Line
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines replaces the table part in one batch round-trip.
func (r *ShippingRepo) SaveLines(ctx context.Context, orderID id.ID, lines []shipping.Line) error {
	queries := []postgres.BatchQuery{{
		SQL:  "DELETE FROM " + shippingLinesTable + " WHERE document_id = $1",
		Args: []any{orderID},
	}}

	if len(lines) > 0 {
		q := r.Builder().
			Insert(shippingLinesTable).
			Columns("line_id", "document_id", "line_no", "item_id", "requested_qty")

		for _, line := range lines {
			q = q.Values(line.LineID, orderID, line.LineNo, line.ItemID, line.RequestedQty)
		}

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert lines: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("save lines: %w", err)
	}

	return nil
}

// LockLine locks one order line for the current transaction. Picks and
// cross-dock commits against the same (order, item) pair queue up here.
func (r *ShippingRepo) LockLine(ctx context.Context, orderID id.ID, itemID string) (*shipping.Line, error) {
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("line lock requires transaction context")
	}

	q := r.Builder().
		Select(shippingLineCols...).
		From(shippingLinesTable).
		Where(squirrel.Eq{"document_id": orderID}).
		Where(squirrel.Eq{"item_id": itemID}).
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var line shipping.Line
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &line, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("shipping order line", itemID)
		}
		return nil, fmt.Errorf("lock line: %w", err)
	}

	return &line, nil
}

// FindCandidatesByItem returns orders in the given statuses holding a line
// for itemID, oldest first. Lines are loaded for every returned order so the
// allocator can size its reservations without extra round-trips.
func (r *ShippingRepo) FindCandidatesByItem(ctx context.Context, itemID string, statuses ...shipping.Status) ([]*shipping.Order, error) {
	orders := make([]*shipping.Order, 0)
	if len(statuses) == 0 {
		return orders, nil
	}

	sts := make([]string, len(statuses))
	for i, s := range statuses {
		sts[i] = string(s)
	}

	cols := make([]string, len(r.selectCols))
	for i, c := range r.selectCols {
		cols[i] = "o." + c
	}

	q := r.Builder().
		Select(cols...).
		From(shippingOrdersTable + " o").
		Join(shippingLinesTable + " l ON l.document_id = o.id").
		Where(squirrel.Eq{"l.item_id": itemID}).
		Where(squirrel.Eq{"o.status": sts}).
		Where(squirrel.Eq{"o.deletion_mark": false}).
		OrderBy("o.created_at ASC", "o.id ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &orders, sql, args...); err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	if err := r.loadLines(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// loadLines fills Lines for every order in one query.
func (r *ShippingRepo) loadLines(ctx context.Context, orders []*shipping.Order) error {
	orderIDs := make([]id.ID, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
	}

	q := r.Builder().
		Select("document_id", "line_id", "line_no", "item_id", "requested_qty").
		From(shippingLinesTable).
		Where(squirrel.Eq{"document_id": orderIDs}).
		OrderBy("document_id", "line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines query: %w", err)
	}

	type lineRow struct {
		DocumentID id.ID `db:"document_id"`
		shipping.Line
	}

	var rows []lineRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return fmt.Errorf("load lines: %w", err)
	}

	byDoc := make(map[id.ID][]shipping.Line, len(orders))
	for _, row := range rows {
		byDoc[row.DocumentID] = append(byDoc[row.DocumentID], row.Line)
	}

	for _, o := range orders {
		o.Lines = byDoc[o.ID]
		if o.Lines == nil {
			o.Lines = make([]shipping.Line, 0)
		}
	}

	return nil
}

// List retrieves shipping orders with filtering.
func (r *ShippingRepo) List(ctx context.Context, filter shipping.ListFilter) (domain.ListResult[*shipping.Order], error) {
	result := domain.ListResult[*shipping.Order]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}

	if filter.ShipmentType != nil {
		q = q.Where(squirrel.Eq{"shipment_type": *filter.ShipmentType})
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
			squirrel.ILike{"destination": searchPattern},
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

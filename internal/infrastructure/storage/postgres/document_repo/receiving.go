package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/domain"
	"stevedore/internal/domain/orders/receiving"
	"stevedore/internal/infrastructure/storage/postgres"
)

const (
	receivingOrdersTable = "doc_receiving_orders"
	receivingLinesTable  = "doc_receiving_lines"
)

var receivingLineCols = []string{"line_id", "line_no", "item_id", "expected_qty"}

// ReceivingRepo implements receiving.Repository.
type ReceivingRepo struct {
	*BaseDocumentRepo[*receiving.Order]

	batch *postgres.BatchExecutor
}

var _ receiving.Repository = (*ReceivingRepo)(nil)

// NewReceivingRepo creates a new receiving order repository.
func NewReceivingRepo(txManager *postgres.TxManager) *ReceivingRepo {
	return &ReceivingRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*receiving.Order](
			txManager,
			receivingOrdersTable,
			postgres.ExtractDBColumns[receiving.Order](),
			func() *receiving.Order { return &receiving.Order{} },
		),
		batch: postgres.NewBatchExecutor(txManager),
	}
}

// GetLines retrieves the table part ordered by line number.
func (r *ReceivingRepo) GetLines(ctx context.Context, docID id.ID) ([]receiving.Line, error) {
	q := r.Builder().
		Select(receivingLineCols...).
		From(receivingLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []receiving.Line
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines replaces the table part. Delete and insert ride the caller's
// transaction as one batch round-trip.
func (r *ReceivingRepo) SaveLines(ctx context.Context, docID id.ID, lines []receiving.Line) error {
	queries := []postgres.BatchQuery{{
		SQL:  "DELETE FROM " + receivingLinesTable + " WHERE document_id = $1",
		Args: []any{docID},
	}}

	if len(lines) > 0 {
		q := r.Builder().
			Insert(receivingLinesTable).
			Columns("line_id", "document_id", "line_no", "item_id", "expected_qty")

		for _, line := range lines {
			q = q.Values(line.LineID, docID, line.LineNo, line.ItemID, line.ExpectedQty)
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

// LockLine locks one order line for the current transaction. Tally commits
// against the same (order, item) pair queue up behind this lock.
func (r *ReceivingRepo) LockLine(ctx context.Context, orderID id.ID, itemID string) (*receiving.Line, error) {
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("line lock requires transaction context")
	}

	q := r.Builder().
		Select(receivingLineCols...).
		From(receivingLinesTable).
		Where(squirrel.Eq{"document_id": orderID}).
		Where(squirrel.Eq{"item_id": itemID}).
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var line receiving.Line
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &line, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("receiving order line", itemID)
		}
		return nil, fmt.Errorf("lock line: %w", err)
	}

	return &line, nil
}

// List retrieves receiving orders with filtering.
func (r *ReceivingRepo) List(ctx context.Context, filter receiving.ListFilter) (domain.ListResult[*receiving.Order], error) {
	result := domain.ListResult[*receiving.Order]{
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
			squirrel.ILike{"container_ref": searchPattern},
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

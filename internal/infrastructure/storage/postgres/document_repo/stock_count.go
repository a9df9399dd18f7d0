package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"wareflow/internal/core/id"
	"wareflow/internal/domain"
	"wareflow/internal/domain/documents/stock_count"
	"wareflow/internal/infrastructure/storage/postgres"
)

const (
	stockCountsTable     = "doc_stock_counts"
	stockCountLinesTable = "doc_stock_count_lines"
)

// StockCountRepo implements stock_count.Repository.
type StockCountRepo struct {
	*BaseDocumentRepo[*stock_count.StockCount]
}

// NewStockCountRepo creates a new stock count repository.
func NewStockCountRepo(txManager *postgres.TxManager) *StockCountRepo {
	return &StockCountRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			stockCountsTable,
			postgres.ExtractDBColumns[stock_count.StockCount](),
			func() *stock_count.StockCount { return &stock_count.StockCount{} },
		),
	}
}

// GetLines retrieves lines for a stock count.
func (r *StockCountRepo) GetLines(ctx context.Context, docID id.ID) ([]stock_count.CountLine, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "product_id", "bin_id", "batch_id",
			"system_quantity", "counted_quantity", "counted", "counted_at",
			"variance", "recount_required", "recount_overridden",
		).
		From(stockCountLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []stock_count.CountLine
	querier := r.TxManager().GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines saves lines for a stock count (delete existing + insert new).
func (r *StockCountRepo) SaveLines(ctx context.Context, docID id.ID, lines []stock_count.CountLine) error {
	q := r.Builder().
		Insert(stockCountLinesTable).
		Columns(
			"line_id", "document_id", "line_no", "product_id", "bin_id", "batch_id",
			"system_quantity", "counted_quantity", "counted", "counted_at",
			"variance", "recount_required", "recount_overridden",
		)

	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.ProductID, line.BinID, line.BatchID,
			line.SystemQuantity, line.CountedQuantity, line.Counted, line.CountedAt,
			line.Variance, line.RecountRequired, line.RecountOverridden,
		)
	}

	return r.ReplaceLines(ctx, stockCountLinesTable, docID, q, len(lines))
}

// List retrieves stock counts with filtering.
func (r *StockCountRepo) List(ctx context.Context, filter stock_count.ListFilter) (domain.ListResult[*stock_count.StockCount], error) {
	var conds []squirrel.Sqlizer

	if filter.WarehouseID != nil {
		conds = append(conds, squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Status != nil {
		conds = append(conds, squirrel.Eq{"status": *filter.Status})
	}
	if filter.DateFrom != nil {
		conds = append(conds, squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		conds = append(conds, squirrel.LtOrEq{"date": *filter.DateTo})
	}

	return r.ListWhere(ctx, filter.ListFilter, conds...)
}

var _ stock_count.Repository = (*StockCountRepo)(nil)

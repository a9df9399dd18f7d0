package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"wareflow/internal/core/id"
	"wareflow/internal/domain"
	"wareflow/internal/domain/documents/adjustment"
	"wareflow/internal/infrastructure/storage/postgres"
)

const (
	adjustmentsTable     = "doc_stock_adjustments"
	adjustmentLinesTable = "doc_stock_adjustment_lines"
)

// AdjustmentRepo implements adjustment.Repository.
type AdjustmentRepo struct {
	*BaseDocumentRepo[*adjustment.StockAdjustment]
}

// NewAdjustmentRepo creates a new stock adjustment repository.
func NewAdjustmentRepo(txManager *postgres.TxManager) *AdjustmentRepo {
	return &AdjustmentRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			adjustmentsTable,
			postgres.ExtractDBColumns[adjustment.StockAdjustment](),
			func() *adjustment.StockAdjustment { return &adjustment.StockAdjustment{} },
		),
	}
}

// GetLines retrieves lines for a stock adjustment.
func (r *AdjustmentRepo) GetLines(ctx context.Context, docID id.ID) ([]adjustment.AdjustmentLine, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "product_id", "bin_id", "batch_id",
			"quantity", "unit_cost",
		).
		From(adjustmentLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []adjustment.AdjustmentLine
	querier := r.TxManager().GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines saves lines for a stock adjustment (delete existing + insert new).
func (r *AdjustmentRepo) SaveLines(ctx context.Context, docID id.ID, lines []adjustment.AdjustmentLine) error {
	q := r.Builder().
		Insert(adjustmentLinesTable).
		Columns(
			"line_id", "document_id", "line_no", "product_id",
			"bin_id", "batch_id", "quantity", "unit_cost",
		)

	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.ProductID,
			line.BinID, line.BatchID, line.Quantity, line.UnitCost,
		)
	}

	return r.ReplaceLines(ctx, adjustmentLinesTable, docID, q, len(lines))
}

// List retrieves stock adjustments with filtering.
func (r *AdjustmentRepo) List(ctx context.Context, filter adjustment.ListFilter) (domain.ListResult[*adjustment.StockAdjustment], error) {
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

var _ adjustment.Repository = (*AdjustmentRepo)(nil)

package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"wareflow/internal/core/id"
	"wareflow/internal/domain"
	"wareflow/internal/domain/documents/goods_receipt"
	"wareflow/internal/infrastructure/storage/postgres"
)

const (
	goodsReceiptsTable     = "doc_goods_receipts"
	goodsReceiptLinesTable = "doc_goods_receipt_lines"
)

// GoodsReceiptRepo implements goods_receipt.Repository.
type GoodsReceiptRepo struct {
	*BaseDocumentRepo[*goods_receipt.GoodsReceipt]
}

// NewGoodsReceiptRepo creates a new goods receipt repository.
func NewGoodsReceiptRepo(txManager *postgres.TxManager) *GoodsReceiptRepo {
	return &GoodsReceiptRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			goodsReceiptsTable,
			postgres.ExtractDBColumns[goods_receipt.GoodsReceipt](),
			func() *goods_receipt.GoodsReceipt { return &goods_receipt.GoodsReceipt{} },
		),
	}
}

// GetLines retrieves lines for a goods receipt.
func (r *GoodsReceiptRepo) GetLines(ctx context.Context, docID id.ID) ([]goods_receipt.GoodsReceiptLine, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "product_id", "po_line_id",
			"bin_id", "batch_id", "quantity", "unit_price", "amount",
		).
		From(goodsReceiptLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []goods_receipt.GoodsReceiptLine
	querier := r.TxManager().GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines saves lines for a goods receipt (delete existing + insert new).
func (r *GoodsReceiptRepo) SaveLines(ctx context.Context, docID id.ID, lines []goods_receipt.GoodsReceiptLine) error {
	q := r.Builder().
		Insert(goodsReceiptLinesTable).
		Columns(
			"line_id", "document_id", "line_no", "product_id", "po_line_id",
			"bin_id", "batch_id", "quantity", "unit_price", "amount",
		)

	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.ProductID, line.POLineID,
			line.BinID, line.BatchID, line.Quantity, line.UnitPrice, line.Amount,
		)
	}

	return r.ReplaceLines(ctx, goodsReceiptLinesTable, docID, q, len(lines))
}

// List retrieves goods receipts with filtering.
func (r *GoodsReceiptRepo) List(ctx context.Context, filter goods_receipt.ListFilter) (domain.ListResult[*goods_receipt.GoodsReceipt], error) {
	var conds []squirrel.Sqlizer

	if filter.SupplierID != nil {
		conds = append(conds, squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if filter.WarehouseID != nil {
		conds = append(conds, squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.PurchaseOrderID != nil {
		conds = append(conds, squirrel.Eq{"purchase_order_id": *filter.PurchaseOrderID})
	}
	if filter.Status != nil {
		conds = append(conds, squirrel.Eq{"status": *filter.Status})
	}
	if filter.Posted != nil {
		conds = append(conds, squirrel.Eq{"posted": *filter.Posted})
	}
	if filter.DateFrom != nil {
		conds = append(conds, squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		conds = append(conds, squirrel.LtOrEq{"date": *filter.DateTo})
	}

	return r.ListWhere(ctx, filter.ListFilter, conds...)
}

var _ goods_receipt.Repository = (*GoodsReceiptRepo)(nil)

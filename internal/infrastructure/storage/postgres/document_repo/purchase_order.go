package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"wareflow/internal/core/id"
	"wareflow/internal/domain"
	"wareflow/internal/domain/documents/purchase_order"
	"wareflow/internal/infrastructure/storage/postgres"
)

const (
	purchaseOrdersTable     = "doc_purchase_orders"
	purchaseOrderLinesTable = "doc_purchase_order_lines"
)

// PurchaseOrderRepo implements purchase_order.Repository.
type PurchaseOrderRepo struct {
	*BaseDocumentRepo[*purchase_order.PurchaseOrder]
}

// NewPurchaseOrderRepo creates a new purchase order repository.
func NewPurchaseOrderRepo(txManager *postgres.TxManager) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			purchaseOrdersTable,
			postgres.ExtractDBColumns[purchase_order.PurchaseOrder](),
			func() *purchase_order.PurchaseOrder { return &purchase_order.PurchaseOrder{} },
		),
	}
}

// GetLines retrieves lines for a purchase order.
func (r *PurchaseOrderRepo) GetLines(ctx context.Context, docID id.ID) ([]purchase_order.PurchaseOrderLine, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "product_id",
			"quantity_ordered", "quantity_received", "unit_price", "amount",
		).
		From(purchaseOrderLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []purchase_order.PurchaseOrderLine
	querier := r.TxManager().GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines saves lines for a purchase order (delete existing + insert new).
func (r *PurchaseOrderRepo) SaveLines(ctx context.Context, docID id.ID, lines []purchase_order.PurchaseOrderLine) error {
	q := r.Builder().
		Insert(purchaseOrderLinesTable).
		Columns(
			"line_id", "document_id", "line_no", "product_id",
			"quantity_ordered", "quantity_received", "unit_price", "amount",
		)

	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.ProductID,
			line.QuantityOrdered, line.QuantityReceived, line.UnitPrice, line.Amount,
		)
	}

	return r.ReplaceLines(ctx, purchaseOrderLinesTable, docID, q, len(lines))
}

// List retrieves purchase orders with filtering.
func (r *PurchaseOrderRepo) List(ctx context.Context, filter purchase_order.ListFilter) (domain.ListResult[*purchase_order.PurchaseOrder], error) {
	var conds []squirrel.Sqlizer

	if filter.SupplierID != nil {
		conds = append(conds, squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
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

var _ purchase_order.Repository = (*PurchaseOrderRepo)(nil)

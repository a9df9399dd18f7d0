package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"wareflow/internal/core/id"
	"wareflow/internal/domain"
	"wareflow/internal/domain/documents/transfer"
	"wareflow/internal/infrastructure/storage/postgres"
)

const (
	transfersTable     = "doc_transfers"
	transferLinesTable = "doc_transfer_lines"
)

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	*BaseDocumentRepo[*transfer.Transfer]
}

// NewTransferRepo creates a new transfer repository.
func NewTransferRepo(txManager *postgres.TxManager) *TransferRepo {
	return &TransferRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			transfersTable,
			postgres.ExtractDBColumns[transfer.Transfer](),
			func() *transfer.Transfer { return &transfer.Transfer{} },
		),
	}
}

// GetLines retrieves lines for a transfer.
func (r *TransferRepo) GetLines(ctx context.Context, docID id.ID) ([]transfer.TransferLine, error) {
	q := r.Builder().
		Select(
			"line_id", "line_no", "product_id", "from_bin_id", "to_bin_id", "batch_id",
			"quantity", "quantity_shipped", "quantity_received",
			"variance_quantity", "shipped_unit_cost",
		).
		From(transferLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []transfer.TransferLine
	querier := r.TxManager().GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines saves lines for a transfer (delete existing + insert new).
func (r *TransferRepo) SaveLines(ctx context.Context, docID id.ID, lines []transfer.TransferLine) error {
	q := r.Builder().
		Insert(transferLinesTable).
		Columns(
			"line_id", "document_id", "line_no", "product_id",
			"from_bin_id", "to_bin_id", "batch_id",
			"quantity", "quantity_shipped", "quantity_received",
			"variance_quantity", "shipped_unit_cost",
		)

	for _, line := range lines {
		q = q.Values(
			line.LineID, docID, line.LineNo, line.ProductID,
			line.FromBinID, line.ToBinID, line.BatchID,
			line.Quantity, line.QuantityShipped, line.QuantityReceived,
			line.VarianceQuantity, line.ShippedUnitCost,
		)
	}

	return r.ReplaceLines(ctx, transferLinesTable, docID, q, len(lines))
}

// List retrieves transfers with filtering.
func (r *TransferRepo) List(ctx context.Context, filter transfer.ListFilter) (domain.ListResult[*transfer.Transfer], error) {
	var conds []squirrel.Sqlizer

	if filter.FromWarehouseID != nil {
		conds = append(conds, squirrel.Eq{"from_warehouse_id": *filter.FromWarehouseID})
	}
	if filter.ToWarehouseID != nil {
		conds = append(conds, squirrel.Eq{"to_warehouse_id": *filter.ToWarehouseID})
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

var _ transfer.Repository = (*TransferRepo)(nil)

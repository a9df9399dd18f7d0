// Package register_repo provides PostgreSQL implementations for the
// stock ledger and level projection repositories.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/registers/stock"
	"wareflow/internal/infrastructure/storage/postgres"
)

const (
	stockMovementsTable = "reg_stock_movements"
	stockLevelsTable    = "reg_stock_levels"
)

var movementColumns = []string{
	"line_id", "movement_type", "product_id",
	"from_warehouse_id", "from_bin_id", "from_batch_id",
	"to_warehouse_id", "to_bin_id", "to_batch_id",
	"quantity", "unit_cost", "total_cost", "unlayered",
	"reference_type", "reference_id", "reference_version",
	"running_balance", "status", "reversal_of",
	"created_by", "period", "created_at",
}

var levelColumns = []string{
	"product_id", "warehouse_id", "bin_id", "batch_id",
	"quantity_on_hand", "quantity_reserved", "quantity_on_order", "quantity_in_transit",
	"unit_cost", "last_movement_at", "updated_at", "version",
}

// StockRepo implements stock.Repository on PostgreSQL. The ledger table
// is append-only; the level table is updated under row locks with an
// optimistic version check as a second line of defense.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func movementValues(m *entity.StockMovement) []any {
	return []any{
		m.LineID, m.MovementType, m.ProductID,
		m.FromWarehouseID, m.FromBinID, m.FromBatchID,
		m.ToWarehouseID, m.ToBinID, m.ToBatchID,
		m.Quantity, m.UnitCost, m.TotalCost, m.Unlayered,
		m.ReferenceType, m.ReferenceID, m.ReferenceVersion,
		m.RunningBalance, m.Status, m.ReversalOf,
		m.CreatedBy, m.Period, m.CreatedAt,
	}
}

// AppendMovements batch inserts ledger entries. Inside a transaction
// the COPY protocol is used; outside, a multi-row insert.
func (r *StockRepo) AppendMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(movements))
		for i := range movements {
			rows = append(rows, movementValues(&movements[i]))
		}
		if _, err := inserter.CopyFromSlice(ctx, stockMovementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(stockMovementsTable).Columns(movementColumns...)
	for i := range movements {
		q = q.Values(movementValues(&movements[i])...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	return nil
}

// MarkMovementsReversed flips the completed entries of one posting
// iteration to reversed. Compensating entries carry the same version
// but have reversal_of set, so they are excluded.
func (r *StockRepo) MarkMovementsReversed(ctx context.Context, referenceID id.ID, version int) error {
	q := r.builder.Update(stockMovementsTable).
		Set("status", entity.MovementStatusReversed).
		Where(squirrel.Eq{"reference_id": referenceID}).
		Where(squirrel.Eq{"status": entity.MovementStatusCompleted}).
		Where(squirrel.Eq{"reference_version": version}).
		Where(squirrel.Eq{"reversal_of": nil})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("mark reversed: %w", err)
	}
	return nil
}

// GetMovementsByReference retrieves all ledger entries for a document.
func (r *StockRepo) GetMovementsByReference(ctx context.Context, referenceID id.ID) ([]entity.StockMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"reference_id": referenceID}).
		OrderBy("created_at", "line_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

func keyWhere(key entity.StockKey) squirrel.Eq {
	return squirrel.Eq{
		"product_id":   key.ProductID,
		"warehouse_id": key.WarehouseID,
		"bin_id":       key.BinID,
		"batch_id":     key.BatchID,
	}
}

// GetLevel returns the current level for a key, or a zero baseline when
// the row does not exist yet.
func (r *StockRepo) GetLevel(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	q := r.builder.Select(levelColumns...).
		From(stockLevelsTable).
		Where(keyWhere(key)).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var level entity.StockLevel
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &level, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.NewStockLevel(key, time.Now().UTC()), nil
		}
		return nil, fmt.Errorf("get level: %w", err)
	}
	return &level, nil
}

// GetLevelForUpdate locks the level row, creating the zero baseline
// first when missing. The insert-then-lock order keeps lock acquisition
// deterministic for concurrent postings on the same new key.
func (r *StockRepo) GetLevelForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	querier := r.txManager.GetQuerier(ctx)
	now := time.Now().UTC()

	_, err := querier.Exec(ctx, `
		INSERT INTO reg_stock_levels (
			product_id, warehouse_id, bin_id, batch_id,
			quantity_on_hand, quantity_reserved, quantity_on_order, quantity_in_transit,
			unit_cost, last_movement_at, updated_at, version
		) VALUES ($1, $2, $3, $4, 0, 0, 0, 0, 0, $5, $5, 1)
		ON CONFLICT (product_id, warehouse_id, bin_id, batch_id) DO NOTHING
	`, key.ProductID, key.WarehouseID, key.BinID, key.BatchID, now)
	if err != nil {
		return nil, fmt.Errorf("ensure level row: %w", err)
	}

	var level entity.StockLevel
	err = pgxscan.Get(ctx, querier, &level, `
		SELECT product_id, warehouse_id, bin_id, batch_id,
		       quantity_on_hand, quantity_reserved, quantity_on_order, quantity_in_transit,
		       unit_cost, last_movement_at, updated_at, version
		FROM reg_stock_levels
		WHERE product_id = $1 AND warehouse_id = $2 AND bin_id = $3 AND batch_id = $4
		FOR UPDATE
	`, key.ProductID, key.WarehouseID, key.BinID, key.BatchID)
	if err != nil {
		return nil, fmt.Errorf("lock level: %w", err)
	}
	return &level, nil
}

// UpdateLevel persists a mutated level with an optimistic version check.
func (r *StockRepo) UpdateLevel(ctx context.Context, level *entity.StockLevel) error {
	q := r.builder.Update(stockLevelsTable).
		Set("quantity_on_hand", level.QuantityOnHand).
		Set("quantity_reserved", level.QuantityReserved).
		Set("quantity_on_order", level.QuantityOnOrder).
		Set("quantity_in_transit", level.QuantityInTransit).
		Set("unit_cost", level.UnitCost).
		Set("last_movement_at", level.LastMovementAt).
		Set("updated_at", level.UpdatedAt).
		Set("version", level.Version+1).
		Where(keyWhere(level.Key())).
		Where(squirrel.Eq{"version": level.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("StockLevel", level.Key().String())
	}

	level.Version++
	return nil
}

// ListLevels returns levels for a warehouse.
func (r *StockRepo) ListLevels(ctx context.Context, warehouseID id.ID, filter stock.LevelFilter) ([]entity.StockLevel, error) {
	q := r.builder.Select(levelColumns...).
		From(stockLevelsTable).
		Where(squirrel.Eq{"warehouse_id": warehouseID})

	if filter.ExcludeZero {
		q = q.Where(squirrel.Or{
			squirrel.NotEq{"quantity_on_hand": 0},
			squirrel.NotEq{"quantity_reserved": 0},
			squirrel.NotEq{"quantity_on_order": 0},
			squirrel.NotEq{"quantity_in_transit": 0},
		})
	}
	if len(filter.ProductIDs) > 0 {
		q = q.Where(squirrel.Eq{"product_id": filter.ProductIDs})
	}

	q = q.OrderBy("product_id", "bin_id", "batch_id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var levels []entity.StockLevel
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &levels, sql, args...); err != nil {
		return nil, fmt.Errorf("select levels: %w", err)
	}
	return levels, nil
}

// GetLevelsByProduct returns non-empty levels for a product across warehouses.
func (r *StockRepo) GetLevelsByProduct(ctx context.Context, productID id.ID) ([]entity.StockLevel, error) {
	q := r.builder.Select(levelColumns...).
		From(stockLevelsTable).
		Where(squirrel.Eq{"product_id": productID}).
		Where(squirrel.Or{
			squirrel.NotEq{"quantity_on_hand": 0},
			squirrel.NotEq{"quantity_reserved": 0},
			squirrel.NotEq{"quantity_in_transit": 0},
		}).
		OrderBy("warehouse_id", "bin_id", "batch_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var levels []entity.StockLevel
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &levels, sql, args...); err != nil {
		return nil, fmt.Errorf("select levels: %w", err)
	}
	return levels, nil
}

// GetBalanceAtDate replays the ledger to compute on-hand for a key as
// of a date. Reversed originals and their compensating entries cancel
// each other out, so both count.
func (r *StockRepo) GetBalanceAtDate(ctx context.Context, key entity.StockKey, date time.Time) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(SUM(CASE
			WHEN movement_type IN ('purchase_receipt', 'transfer_in', 'positive_adjustment', 'count_adjustment')
			     AND to_warehouse_id = $2
			     AND COALESCE(to_bin_id, $5::uuid) = $3
			     AND COALESCE(to_batch_id, $5::uuid) = $4
			THEN quantity
			WHEN movement_type IN ('transfer_out', 'negative_adjustment', 'sales_issue', 'damage_write_off', 'count_adjustment')
			     AND from_warehouse_id = $2
			     AND COALESCE(from_bin_id, $5::uuid) = $3
			     AND COALESCE(from_batch_id, $5::uuid) = $4
			THEN -quantity
			ELSE 0
		END), 0)
		FROM reg_stock_movements
		WHERE product_id = $1
		  AND period <= $6
		  AND status IN ('completed', 'reversed')
	`

	var balanceScaled int64
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql,
		key.ProductID, key.WarehouseID, key.BinID, key.BatchID, id.Nil(), date,
	).Scan(&balanceScaled)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("calculate balance at date: %w", err)
	}

	return types.NewQuantityFromInt64Scaled(balanceScaled), nil
}

// GetMovementHistory returns ledger history for a product.
func (r *StockRepo) GetMovementHistory(ctx context.Context, productID id.ID, filter stock.MovementFilter) ([]entity.StockMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"product_id": productID})

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"from_warehouse_id": *filter.WarehouseID},
			squirrel.Eq{"to_warehouse_id": *filter.WarehouseID},
		})
	}
	if filter.MovementType != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.MovementType})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"period": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"period": *filter.ToDate})
	}

	q = q.OrderBy("period DESC", "created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	return movements, nil
}

const (
	inboundTypesSQL  = "('purchase_receipt', 'transfer_in', 'positive_adjustment', 'count_adjustment')"
	outboundTypesSQL = "('transfer_out', 'negative_adjustment', 'sales_issue', 'damage_write_off', 'count_adjustment')"
)

// turnoverConditions builds the per-direction CASE conditions and the
// shared WHERE clause for a turnover query. The warehouse filter must
// apply per side (destination for inbound, source for outbound).
func turnoverConditions(filter stock.TurnoverFilter, periodWhere string, args []any) (inCond, outCond, where string, outArgs []any) {
	inCond = "movement_type IN " + inboundTypesSQL + " AND to_warehouse_id IS NOT NULL"
	outCond = "movement_type IN " + outboundTypesSQL + " AND from_warehouse_id IS NOT NULL"
	where = "status IN ('completed', 'reversed') AND " + periodWhere

	if filter.WarehouseID != nil {
		args = append(args, *filter.WarehouseID)
		inCond += fmt.Sprintf(" AND to_warehouse_id = $%d", len(args))
		outCond += fmt.Sprintf(" AND from_warehouse_id = $%d", len(args))
	}
	if filter.ProductID != nil {
		args = append(args, *filter.ProductID)
		where += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	return inCond, outCond, where, args
}

// GetTurnover calculates inbound/outbound totals plus opening and
// closing balances for the period.
func (r *StockRepo) GetTurnover(ctx context.Context, filter stock.TurnoverFilter) (stock.Turnover, error) {
	var result stock.Turnover
	if filter.WarehouseID != nil {
		result.WarehouseID = *filter.WarehouseID
	}
	if filter.ProductID != nil {
		result.ProductID = *filter.ProductID
	}

	querier := r.txManager.GetQuerier(ctx)

	inCond, outCond, where, args := turnoverConditions(filter,
		"period >= $1 AND period < $2", []any{filter.FromDate, filter.ToDate})
	sql := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(CASE WHEN %s THEN quantity ELSE 0 END), 0) AS inbound,
			COALESCE(SUM(CASE WHEN %s THEN quantity ELSE 0 END), 0) AS outbound
		FROM reg_stock_movements
		WHERE %s
	`, inCond, outCond, where)

	var inboundScaled, outboundScaled int64
	err := querier.QueryRow(ctx, sql, args...).Scan(&inboundScaled, &outboundScaled)
	if err != nil && err != pgx.ErrNoRows {
		return result, fmt.Errorf("calculate turnover: %w", err)
	}
	result.Inbound = types.NewQuantityFromInt64Scaled(inboundScaled)
	result.Outbound = types.NewQuantityFromInt64Scaled(outboundScaled)

	inCond, outCond, where, args = turnoverConditions(filter,
		"period < $1", []any{filter.FromDate})
	openingSQL := fmt.Sprintf(`
		SELECT COALESCE(SUM(CASE
			WHEN %s THEN quantity
			WHEN %s THEN -quantity
			ELSE 0
		END), 0)
		FROM reg_stock_movements
		WHERE %s
	`, inCond, outCond, where)

	var openingScaled int64
	err = querier.QueryRow(ctx, openingSQL, args...).Scan(&openingScaled)
	if err != nil && err != pgx.ErrNoRows {
		return result, fmt.Errorf("calculate opening balance: %w", err)
	}
	result.OpeningBalance = types.NewQuantityFromInt64Scaled(openingScaled)
	result.ClosingBalance = result.OpeningBalance + result.Inbound - result.Outbound

	return result, nil
}

// GetLowStock returns aggregated per-product levels at or below the
// given reorder points.
func (r *StockRepo) GetLowStock(ctx context.Context, warehouseID id.ID, reorderPoints map[id.ID]types.Quantity) ([]entity.StockLevel, error) {
	if len(reorderPoints) == 0 {
		return nil, nil
	}

	productIDs := make([]id.ID, 0, len(reorderPoints))
	thresholds := make([]int64, 0, len(reorderPoints))
	for productID, point := range reorderPoints {
		productIDs = append(productIDs, productID)
		thresholds = append(thresholds, point.Int64Scaled())
	}

	sql := `
		SELECT l.product_id,
		       l.warehouse_id,
		       $4::uuid AS bin_id,
		       $4::uuid AS batch_id,
		       SUM(l.quantity_on_hand) AS quantity_on_hand,
		       SUM(l.quantity_reserved) AS quantity_reserved,
		       SUM(l.quantity_on_order) AS quantity_on_order,
		       SUM(l.quantity_in_transit) AS quantity_in_transit,
		       MAX(l.unit_cost) AS unit_cost,
		       MAX(l.last_movement_at) AS last_movement_at,
		       MAX(l.updated_at) AS updated_at,
		       0 AS version
		FROM reg_stock_levels l
		JOIN unnest($1::uuid[], $2::bigint[]) AS rp(product_id, reorder_point)
		  ON l.product_id = rp.product_id
		WHERE l.warehouse_id = $3
		GROUP BY l.product_id, l.warehouse_id, rp.reorder_point
		HAVING SUM(l.quantity_on_hand) - SUM(l.quantity_reserved) <= rp.reorder_point
		ORDER BY l.product_id
	`

	var levels []entity.StockLevel
	err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &levels, sql,
		productIDs, thresholds, warehouseID, id.Nil())
	if err != nil {
		return nil, fmt.Errorf("select low stock: %w", err)
	}
	return levels, nil
}

// Ensure interface compliance.
var _ stock.Repository = (*StockRepo)(nil)

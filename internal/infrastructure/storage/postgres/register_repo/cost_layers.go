package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/valuation"
	"wareflow/internal/infrastructure/storage/postgres"
)

const costLayersTable = "reg_cost_layers"

// CostLayerRepo implements valuation.Repository on PostgreSQL.
// Layer rows are locked together with the level rows of the same
// posting transaction, in the same (product, warehouse) order.
type CostLayerRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewCostLayerRepo creates a new cost layer repository.
func NewCostLayerRepo(txManager *postgres.TxManager) *CostLayerRepo {
	return &CostLayerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetLayersForUpdate returns all layers for the pair with row locks.
func (r *CostLayerRepo) GetLayersForUpdate(ctx context.Context, productID, warehouseID id.ID, order valuation.ConsumeOrder) ([]valuation.CostLayer, error) {
	direction := "ASC"
	if order == valuation.ConsumeNewestFirst {
		direction = "DESC"
	}

	sql := fmt.Sprintf(`
		SELECT id, product_id, warehouse_id, quantity_remaining, unit_cost, received_at
		FROM reg_cost_layers
		WHERE product_id = $1 AND warehouse_id = $2
		ORDER BY received_at %s, id %s
		FOR UPDATE
	`, direction, direction)

	var layers []valuation.CostLayer
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &layers, sql, productID, warehouseID); err != nil {
		return nil, fmt.Errorf("select cost layers: %w", err)
	}
	return layers, nil
}

// InsertLayer adds a new cost lot.
func (r *CostLayerRepo) InsertLayer(ctx context.Context, layer valuation.CostLayer) error {
	q := r.builder.Insert(costLayersTable).
		Columns("id", "product_id", "warehouse_id", "quantity_remaining", "unit_cost", "received_at").
		Values(layer.ID, layer.ProductID, layer.WarehouseID, layer.QuantityRemaining, layer.UnitCost, layer.ReceivedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert cost layer: %w", err)
	}
	return nil
}

// UpdateLayer sets the remaining quantity and unit cost of a layer.
func (r *CostLayerRepo) UpdateLayer(ctx context.Context, layerID id.ID, remaining types.Quantity, unitCost types.Money) error {
	q := r.builder.Update(costLayersTable).
		Set("quantity_remaining", remaining).
		Set("unit_cost", unitCost).
		Where(squirrel.Eq{"id": layerID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update cost layer: %w", err)
	}
	return nil
}

// DeleteLayer removes a fully consumed layer.
func (r *CostLayerRepo) DeleteLayer(ctx context.Context, layerID id.ID) error {
	q := r.builder.Delete(costLayersTable).Where(squirrel.Eq{"id": layerID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete cost layer: %w", err)
	}
	return nil
}

var _ valuation.Repository = (*CostLayerRepo)(nil)

// Package masterdata_repo provides read-only PostgreSQL access to
// product and warehouse reference data.
package masterdata_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/masterdata"
	"wareflow/internal/infrastructure/storage/postgres"
)

const (
	productsTable   = "cat_products"
	warehousesTable = "cat_warehouses"
)

// ProductRepo implements masterdata.ProductLookup.
type ProductRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewProductRepo creates a new product lookup repository.
func NewProductRepo(txManager *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID returns a product by ID.
func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*masterdata.Product, error) {
	q := r.builder.Select(
		"id", "deletion_mark", "version", "attributes",
		"sku", "name", "unit", "standard_cost", "reorder_point", "is_active",
	).From(productsTable).
		Where(squirrel.Eq{"id": productID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var product masterdata.Product
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &product, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("Product", productID)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &product, nil
}

// Exists reports whether an active product with the ID exists.
func (r *ProductRepo) Exists(ctx context.Context, productID id.ID) (bool, error) {
	var exists bool
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM cat_products WHERE id = $1 AND NOT deletion_mark)",
		productID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check product exists: %w", err)
	}
	return exists, nil
}

// ReorderPoints returns reorder thresholds for all active products
// that have one configured.
func (r *ProductRepo) ReorderPoints(ctx context.Context) (map[id.ID]types.Quantity, error) {
	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, reorder_point
		FROM cat_products
		WHERE is_active AND NOT deletion_mark AND reorder_point > 0
	`)
	if err != nil {
		return nil, fmt.Errorf("query reorder points: %w", err)
	}
	defer rows.Close()

	points := make(map[id.ID]types.Quantity)
	for rows.Next() {
		var productID id.ID
		var point int64
		if err := rows.Scan(&productID, &point); err != nil {
			return nil, fmt.Errorf("scan reorder point: %w", err)
		}
		points[productID] = types.NewQuantityFromInt64Scaled(point)
	}
	return points, rows.Err()
}

// WarehouseRepo implements masterdata.WarehouseLookup.
type WarehouseRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewWarehouseRepo creates a new warehouse lookup repository.
func NewWarehouseRepo(txManager *postgres.TxManager) *WarehouseRepo {
	return &WarehouseRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID returns a warehouse by ID.
func (r *WarehouseRepo) GetByID(ctx context.Context, warehouseID id.ID) (*masterdata.Warehouse, error) {
	q := r.builder.Select(
		"id", "deletion_mark", "version", "attributes",
		"code", "name", "allow_negative_stock", "costing_method", "is_active",
	).From(warehousesTable).
		Where(squirrel.Eq{"id": warehouseID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var warehouse masterdata.Warehouse
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &warehouse, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("Warehouse", warehouseID)
		}
		return nil, fmt.Errorf("get warehouse: %w", err)
	}
	return &warehouse, nil
}

// Exists reports whether an active warehouse with the ID exists.
func (r *WarehouseRepo) Exists(ctx context.Context, warehouseID id.ID) (bool, error) {
	var exists bool
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM cat_warehouses WHERE id = $1 AND NOT deletion_mark)",
		warehouseID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check warehouse exists: %w", err)
	}
	return exists, nil
}

var (
	_ masterdata.ProductLookup   = (*ProductRepo)(nil)
	_ masterdata.WarehouseLookup = (*WarehouseRepo)(nil)
)

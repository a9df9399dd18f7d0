// Package masterdata provides read-only access to reference data the
// fulfillment core depends on. Master data maintenance lives in an
// external system; this module only reads it.
package masterdata

import (
	"context"

	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
)

// Product is a sellable or stockable item.
type Product struct {
	entity.BaseEntity

	SKU  string `db:"sku" json:"sku"`
	Name string `db:"name" json:"name"`
	Unit string `db:"unit" json:"unit"`

	// StandardCost seeds valuation when no cost layer exists yet.
	StandardCost types.Money `db:"standard_cost" json:"standardCost"`

	// ReorderPoint drives the low-stock query.
	ReorderPoint types.Quantity `db:"reorder_point" json:"reorderPoint"`

	IsActive bool `db:"is_active" json:"isActive"`
}

// Warehouse is a stock-keeping location.
type Warehouse struct {
	entity.BaseEntity

	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	// AllowNegativeStock permits on-hand below zero at this warehouse.
	AllowNegativeStock bool `db:"allow_negative_stock" json:"allowNegativeStock"`

	// CostingMethod: fifo, lifo or weighted_average. Empty means the
	// deployment default applies.
	CostingMethod string `db:"costing_method" json:"costingMethod,omitempty"`

	IsActive bool `db:"is_active" json:"isActive"`
}

// ProductLookup reads product reference data.
type ProductLookup interface {
	GetByID(ctx context.Context, productID id.ID) (*Product, error)
	Exists(ctx context.Context, productID id.ID) (bool, error)

	// ReorderPoints returns reorder thresholds for all active products.
	ReorderPoints(ctx context.Context) (map[id.ID]types.Quantity, error)
}

// WarehouseLookup reads warehouse reference data.
type WarehouseLookup interface {
	GetByID(ctx context.Context, warehouseID id.ID) (*Warehouse, error)
	Exists(ctx context.Context, warehouseID id.ID) (bool, error)
}

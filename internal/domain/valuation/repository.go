// Package valuation provides cost layer accounting for stock.
package valuation

import (
	"context"
	"time"

	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
)

// CostLayer is one inbound cost lot for a (product, warehouse) pair.
// FIFO consumes oldest first, LIFO newest first; weighted average keeps
// a single synthetic layer per pair.
type CostLayer struct {
	ID                id.ID          `db:"id" json:"id"`
	ProductID         id.ID          `db:"product_id" json:"productId"`
	WarehouseID       id.ID          `db:"warehouse_id" json:"warehouseId"`
	QuantityRemaining types.Quantity `db:"quantity_remaining" json:"quantityRemaining"`
	UnitCost          types.Money    `db:"unit_cost" json:"unitCost"`
	ReceivedAt        time.Time      `db:"received_at" json:"receivedAt"`
}

// ConsumeOrder is the layer ordering an outbound consumption follows.
type ConsumeOrder string

const (
	ConsumeOldestFirst ConsumeOrder = "oldest_first"
	ConsumeNewestFirst ConsumeOrder = "newest_first"
)

// Repository persists cost layers. All mutating calls run inside the
// posting transaction; GetLayersForUpdate takes row locks.
type Repository interface {
	// GetLayersForUpdate returns all layers for the pair with row locks,
	// ordered by received_at then id according to order.
	GetLayersForUpdate(ctx context.Context, productID, warehouseID id.ID, order ConsumeOrder) ([]CostLayer, error)

	// InsertLayer adds a new cost lot
	InsertLayer(ctx context.Context, layer CostLayer) error

	// UpdateLayer sets the remaining quantity and unit cost of a layer
	UpdateLayer(ctx context.Context, layerID id.ID, remaining types.Quantity, unitCost types.Money) error

	// DeleteLayer removes a fully consumed layer
	DeleteLayer(ctx context.Context, layerID id.ID) error
}

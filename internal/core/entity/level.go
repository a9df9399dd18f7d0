package entity

import (
	"time"

	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
)

// StockLevel is the mutable per-key projection of the ledger. One row
// per StockKey, created lazily at zero baseline, updated under a row
// lock in the same transaction as the ledger append.
//
// Bin and batch columns use the zero uuid as "dimension unused" so the
// four dimension columns can form the primary key.
type StockLevel struct {
	// Dimensions
	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`
	BinID       id.ID `db:"bin_id" json:"binId,omitempty"`
	BatchID     id.ID `db:"batch_id" json:"batchId,omitempty"`

	// Quantities
	QuantityOnHand    types.Quantity `db:"quantity_on_hand" json:"quantityOnHand"`
	QuantityReserved  types.Quantity `db:"quantity_reserved" json:"quantityReserved"`
	QuantityOnOrder   types.Quantity `db:"quantity_on_order" json:"quantityOnOrder"`
	QuantityInTransit types.Quantity `db:"quantity_in_transit" json:"quantityInTransit"`

	// UnitCost is the last known moving cost for the key, used as the
	// fallback when outbound quantity exceeds the cost layers.
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	// Metadata
	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`

	// Version for optimistic locking on the projection row
	Version int `db:"version" json:"version"`
}

// NewStockLevel creates a zero-baseline row for a key.
func NewStockLevel(key StockKey, now time.Time) *StockLevel {
	return &StockLevel{
		ProductID:   key.ProductID,
		WarehouseID: key.WarehouseID,
		BinID:       key.BinID,
		BatchID:     key.BatchID,
		UpdatedAt:   now,
		Version:     1,
	}
}

// Key reconstructs the StockKey from the row's dimension columns.
func (l *StockLevel) Key() StockKey {
	return StockKey{
		ProductID:   l.ProductID,
		WarehouseID: l.WarehouseID,
		BinID:       l.BinID,
		BatchID:     l.BatchID,
	}
}

// QuantityAvailable is on-hand minus reserved.
func (l *StockLevel) QuantityAvailable() types.Quantity {
	return l.QuantityOnHand - l.QuantityReserved
}

// Apply mutates the level in memory by one delta and stamps metadata.
// Invariant checks live in the stock service, which knows the
// warehouse's negative stock policy.
func (l *StockLevel) Apply(d LevelDelta, now time.Time) {
	l.QuantityOnHand += d.OnHand
	l.QuantityReserved += d.Reserved
	l.QuantityOnOrder += d.OnOrder
	l.QuantityInTransit += d.InTransit
	if d.UnitCost != nil {
		l.UnitCost = *d.UnitCost
	}
	if !d.OnHand.IsZero() || !d.InTransit.IsZero() {
		l.LastMovementAt = now
	}
	l.UpdatedAt = now
}

// Package stock provides the stock ledger and level projection.
package stock

import (
	"context"
	"time"

	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
)

// Repository defines operations for the ledger and the level projection.
type Repository interface {
	// Ledger operations

	// AppendMovements batch inserts ledger entries (used during posting).
	// Entries are never updated afterwards except the reversed status flip.
	AppendMovements(ctx context.Context, movements []entity.StockMovement) error

	// MarkMovementsReversed flips the completed entries of one posting
	// iteration to reversed. Called when the compensating entries are
	// appended; entries with reversal_of set are left untouched.
	MarkMovementsReversed(ctx context.Context, referenceID id.ID, version int) error

	// GetMovementsByReference retrieves all ledger entries for a document
	GetMovementsByReference(ctx context.Context, referenceID id.ID) ([]entity.StockMovement, error)

	// Level projection operations

	// GetLevel returns the current level for a key (zero baseline if the
	// row does not exist yet)
	GetLevel(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error)

	// GetLevelForUpdate returns the level with a row lock, creating the
	// zero-baseline row first when missing. Must run inside a transaction.
	GetLevelForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error)

	// UpdateLevel persists a mutated level with an optimistic version check
	UpdateLevel(ctx context.Context, level *entity.StockLevel) error

	// ListLevels returns levels for a warehouse
	ListLevels(ctx context.Context, warehouseID id.ID, filter LevelFilter) ([]entity.StockLevel, error)

	// GetLevelsByProduct returns levels across all warehouses for a product
	GetLevelsByProduct(ctx context.Context, productID id.ID) ([]entity.StockLevel, error)

	// GetBalanceAtDate replays the ledger to compute on-hand as of a date
	GetBalanceAtDate(ctx context.Context, key entity.StockKey, date time.Time) (types.Quantity, error)

	// Reporting

	// GetMovementHistory returns ledger history for a product
	GetMovementHistory(ctx context.Context, productID id.ID, filter MovementFilter) ([]entity.StockMovement, error)

	// GetTurnover calculates inbound and outbound totals for a period
	GetTurnover(ctx context.Context, filter TurnoverFilter) (Turnover, error)

	// GetLowStock returns levels at or below the given reorder points
	GetLowStock(ctx context.Context, warehouseID id.ID, reorderPoints map[id.ID]types.Quantity) ([]entity.StockLevel, error)
}

// LevelFilter for filtering level queries.
type LevelFilter struct {
	ProductIDs  []id.ID
	ExcludeZero bool
	Limit       int
	Offset      int
}

// MovementFilter for filtering ledger history.
type MovementFilter struct {
	WarehouseID  *id.ID
	MovementType *entity.MovementType
	FromDate     *time.Time
	ToDate       *time.Time
	Limit        int
	Offset       int
}

// TurnoverFilter for turnover reports.
type TurnoverFilter struct {
	WarehouseID *id.ID
	ProductID   *id.ID
	FromDate    time.Time
	ToDate      time.Time
}

// Turnover represents inbound/outbound totals.
type Turnover struct {
	WarehouseID    id.ID          `json:"warehouseId,omitempty"`
	ProductID      id.ID          `json:"productId,omitempty"`
	OpeningBalance types.Quantity `json:"openingBalance"`
	Inbound        types.Quantity `json:"inbound"`
	Outbound       types.Quantity `json:"outbound"`
	ClosingBalance types.Quantity `json:"closingBalance"`
}

package adjustment

import (
	"context"
	"time"

	"wareflow/internal/core/id"
	"wareflow/internal/domain"
	"wareflow/internal/domain/docstate"
)

// Repository defines operations for stock adjustment documents.
type Repository interface {
	// CRUD operations
	Create(ctx context.Context, doc *StockAdjustment) error
	GetByID(ctx context.Context, docID id.ID) (*StockAdjustment, error)
	GetByNumber(ctx context.Context, number string) (*StockAdjustment, error)
	Update(ctx context.Context, doc *StockAdjustment) error
	Delete(ctx context.Context, docID id.ID) error

	// Line operations
	GetLines(ctx context.Context, docID id.ID) ([]AdjustmentLine, error)
	SaveLines(ctx context.Context, docID id.ID, lines []AdjustmentLine) error

	// List operations
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockAdjustment], error)

	// Locking
	GetForUpdate(ctx context.Context, docID id.ID) (*StockAdjustment, error)
}

// ListFilter for filtering stock adjustments.
type ListFilter struct {
	domain.ListFilter

	// Document-specific filters
	WarehouseID *id.ID
	Status      *docstate.Status
	DateFrom    *time.Time
	DateTo      *time.Time
}

package stock_count

import (
	"context"
	"time"

	"wareflow/internal/core/id"
	"wareflow/internal/domain"
	"wareflow/internal/domain/docstate"
)

// Repository defines operations for stock count documents.
type Repository interface {
	// CRUD operations
	Create(ctx context.Context, doc *StockCount) error
	GetByID(ctx context.Context, docID id.ID) (*StockCount, error)
	GetByNumber(ctx context.Context, number string) (*StockCount, error)
	Update(ctx context.Context, doc *StockCount) error
	Delete(ctx context.Context, docID id.ID) error

	// Line operations
	GetLines(ctx context.Context, docID id.ID) ([]CountLine, error)
	SaveLines(ctx context.Context, docID id.ID, lines []CountLine) error

	// List operations
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockCount], error)

	// Locking
	GetForUpdate(ctx context.Context, docID id.ID) (*StockCount, error)
}

// ListFilter for filtering stock counts.
type ListFilter struct {
	domain.ListFilter

	// Document-specific filters
	WarehouseID *id.ID
	Status      *docstate.Status
	DateFrom    *time.Time
	DateTo      *time.Time
}

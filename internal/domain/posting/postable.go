// Package posting provides the posting coordinator: the single path
// through which documents reach the stock ledger. One posting is one
// transaction covering valuation, ledger append, projection deltas,
// document status flip and outbox events.
package posting

import (
	"context"

	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
)

// Postable is implemented by documents that produce ledger movements.
// entity.Document provides defaults for everything except
// GetDocumentType and GenerateMovements.
type Postable interface {
	// GetID returns the document ID
	GetID() id.ID

	// GetDocumentType returns the document type name (e.g., "GoodsReceipt")
	GetDocumentType() string

	// GetPostedVersion returns the current posting iteration
	GetPostedVersion() int

	// IsPosted returns true if document is currently posted
	IsPosted() bool

	// CanPost validates if document can be posted
	CanPost(ctx context.Context) error

	// MarkPosted flips the posted flag and bumps the posting iteration
	MarkPosted()

	// MarkUnposted clears the posted flag
	MarkUnposted()

	// GenerateMovements produces the movement set for this document.
	// Called inside the posting transaction; costs and balances are
	// filled in by the engine.
	GenerateMovements(ctx context.Context) (*MovementSet, error)
}

// ExtraUnposter is implemented by documents whose posting carried
// projection-only deltas that a reversal must compensate (e.g. the
// on-order decrease a receipt applied to its purchase order).
type ExtraUnposter interface {
	GenerateUnpostExtras(ctx context.Context) ([]entity.LevelDelta, error)
}

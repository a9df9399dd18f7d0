package posting

import (
	"context"

	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
)

// MovementSet collects everything a document wants posted: ledger
// entries, projection-only deltas (on-order bookkeeping), and the
// domain event announcing the posting.
type MovementSet struct {
	// Stock are the ledger entries to append.
	Stock []entity.StockMovement

	// Extra are projection deltas with no ledger entry, e.g. the
	// on-order decrease when a receipt consumes a purchase order line.
	Extra []entity.LevelDelta

	// EventType overrides the default "<DocumentType>Posted" outbox
	// event type.
	EventType string

	// EventPayload adds document-specific fields to the event payload.
	EventPayload map[string]any
}

// NewMovementSet creates an empty movement set.
func NewMovementSet() *MovementSet {
	return &MovementSet{}
}

// AddStock appends a ledger entry.
func (s *MovementSet) AddStock(m entity.StockMovement) {
	s.Stock = append(s.Stock, m)
}

// AddExtra appends a projection-only delta.
func (s *MovementSet) AddExtra(d entity.LevelDelta) {
	s.Extra = append(s.Extra, d)
}

// SetEvent overrides the outbox event type.
func (s *MovementSet) SetEvent(eventType string) {
	s.EventType = eventType
}

// AddEventField adds a field to the event payload.
func (s *MovementSet) AddEventField(key string, value any) {
	if s.EventPayload == nil {
		s.EventPayload = make(map[string]any)
	}
	s.EventPayload[key] = value
}

// Event is a domain event written to the outbox inside the posting
// transaction.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher writes events to the transactional outbox.
// Implementations require an open transaction in the context.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// AuditLogger records posting actions in the audit log.
type AuditLogger interface {
	LogAction(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

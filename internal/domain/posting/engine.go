package posting

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"wareflow/internal/core/apperror"
	appctx "wareflow/internal/core/context"
	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/tx"
	"wareflow/internal/domain/masterdata"
	"wareflow/internal/domain/registers/stock"
	"wareflow/internal/domain/valuation"
	"wareflow/pkg/logger"
)

// DefaultMaxRetries bounds retries on lock-timeout class errors.
const DefaultMaxRetries = 3

// Engine coordinates document posting. One posting is one transaction:
// level rows are locked in canonical key order, outbound movements are
// costed against the layer stack, ledger entries are appended with
// running balances, projection rows are updated, the document flips
// status, and the outbox event is written. Any failure rolls
// everything back.
type Engine struct {
	stock      *stock.Service
	valuation  *valuation.Engine
	txManager  tx.Manager
	warehouses masterdata.WarehouseLookup
	events     EventPublisher
	audit      AuditLogger
	maxRetries int
}

// NewEngine creates a posting engine. events and audit may be nil.
func NewEngine(
	stockSvc *stock.Service,
	valuationEngine *valuation.Engine,
	txManager tx.Manager,
	warehouses masterdata.WarehouseLookup,
	events EventPublisher,
	audit AuditLogger,
) *Engine {
	return &Engine{
		stock:      stockSvc,
		valuation:  valuationEngine,
		txManager:  txManager,
		warehouses: warehouses,
		events:     events,
		audit:      audit,
		maxRetries: DefaultMaxRetries,
	}
}

// WithMaxRetries overrides the lock-timeout retry budget.
func (e *Engine) WithMaxRetries(n int) *Engine {
	if n > 0 {
		e.maxRetries = n
	}
	return e
}

// Operation is one atomic ledger operation. Documents with a single
// posting moment go through Post; multi-stage documents (transfer
// ship/receive) build Operations directly.
type Operation struct {
	DocumentType string
	DocumentID   id.ID

	// Movements are ledger entries; the engine fills costs, running
	// balances and status in place, so Apply sees the final values.
	Movements []entity.StockMovement

	// Extra are projection-only deltas (on-order bookkeeping).
	Extra []entity.LevelDelta

	// Apply persists the document inside the transaction, after the
	// ledger writes. It must re-check document state for idempotency.
	Apply func(ctx context.Context) error

	// Action names the operation in the audit log ("post", "ship", ...).
	Action string

	EventType    string
	EventPayload map[string]any
}

// Post records a Postable document's movements in the ledger.
// updateDoc persists the document inside the same transaction.
// Retried on lock timeouts up to the retry budget.
func (e *Engine) Post(ctx context.Context, doc Postable, updateDoc func(ctx context.Context) error) error {
	if doc.IsPosted() {
		return apperror.NewInvalidStateTransition(doc.GetDocumentType(), "posted", "posted")
	}
	if err := doc.CanPost(ctx); err != nil {
		return err
	}

	wasPosted := doc.IsPosted()
	attempt := func(ctx context.Context) error {
		set, err := doc.GenerateMovements(ctx)
		if err != nil {
			return err
		}
		if len(set.Stock) == 0 && len(set.Extra) == 0 {
			return apperror.NewValidation("document produces no movements").
				WithDetail("document_id", doc.GetID().String())
		}

		eventType := set.EventType
		if eventType == "" {
			eventType = doc.GetDocumentType() + "Posted"
		}

		return e.run(ctx, &Operation{
			DocumentType: doc.GetDocumentType(),
			DocumentID:   doc.GetID(),
			Movements:    set.Stock,
			Extra:        set.Extra,
			Action:       "post",
			EventType:    eventType,
			EventPayload: set.EventPayload,
			Apply: func(ctx context.Context) error {
				doc.MarkPosted()
				return updateDoc(ctx)
			},
		})
	}

	restore := func() {
		if doc.IsPosted() && !wasPosted {
			doc.MarkUnposted()
		}
	}

	return e.withRetries(ctx, doc.GetDocumentType(), doc.GetID(), attempt, restore)
}

// Execute runs a prebuilt operation with the full posting pipeline.
func (e *Engine) Execute(ctx context.Context, op *Operation) error {
	if len(op.Movements) == 0 && len(op.Extra) == 0 {
		return apperror.NewValidation("operation produces no movements").
			WithDetail("document_id", op.DocumentID.String())
	}
	attempt := func(ctx context.Context) error {
		return e.run(ctx, op)
	}
	return e.withRetries(ctx, op.DocumentType, op.DocumentID, attempt, nil)
}

// withRetries wraps attempts in transactions, retrying lock-timeout
// class failures on a fresh transaction.
func (e *Engine) withRetries(
	ctx context.Context,
	docType string,
	docID id.ID,
	attempt func(ctx context.Context) error,
	restore func(),
) error {
	var lastErr error
	for i := 1; i <= e.maxRetries; i++ {
		err := e.txManager.RunInTransaction(ctx, attempt)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		lastErr = err
		if restore != nil {
			restore()
		}
		logger.Warn(ctx, "posting retry after lock conflict",
			"document_type", docType,
			"document_id", docID,
			"attempt", i,
		)
	}

	return apperror.NewPostingFailure(docType, docID, lastErr).
		WithDetail("attempts", e.maxRetries)
}

// run executes the pipeline inside an open transaction.
func (e *Engine) run(ctx context.Context, op *Operation) error {
	keys := stock.CollectKeys(op.Movements, op.Extra)
	levels, err := e.stock.LockLevels(ctx, keys)
	if err != nil {
		return err
	}

	allowNegative, err := e.negativePolicy(ctx, keys)
	if err != nil {
		return err
	}

	userID := appctx.GetUserID(ctx)
	for i := range op.Movements {
		m := &op.Movements[i]
		if err := e.valueMovement(ctx, m, levels); err != nil {
			return err
		}

		deltas := m.Deltas()
		attachCost(m, deltas)
		if err := e.stock.ApplyDeltas(ctx, levels, deltas, allowNegative); err != nil {
			return err
		}

		if pk, ok := m.PrimaryKey(); ok {
			if lvl := levels.Get(pk); lvl != nil {
				m.RunningBalance = lvl.QuantityOnHand
			}
		}
		m.Status = entity.MovementStatusCompleted
		if m.CreatedBy == "" {
			m.CreatedBy = userID
		}
	}

	if err := e.stock.ApplyDeltas(ctx, levels, op.Extra, allowNegative); err != nil {
		return err
	}

	if err := e.stock.Append(ctx, op.Movements); err != nil {
		return err
	}
	if err := e.stock.SaveLevels(ctx, levels); err != nil {
		return err
	}

	if op.Apply != nil {
		if err := op.Apply(ctx); err != nil {
			return err
		}
	}

	if err := e.publishEvent(ctx, op, keys); err != nil {
		return err
	}
	e.logAudit(ctx, op.DocumentType, op.DocumentID, op.Action, len(op.Movements))

	logger.Info(ctx, "posting completed",
		"document_type", op.DocumentType,
		"document_id", op.DocumentID,
		"action", op.Action,
		"movements", len(op.Movements),
	)
	return nil
}

// Unpost reverses a posted document: compensating entries are appended
// at the original cost, the original entries flip to reversed, and the
// projection rolls back.
func (e *Engine) Unpost(ctx context.Context, doc Postable, updateDoc func(ctx context.Context) error) error {
	if !doc.IsPosted() {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"document is not posted",
		).WithDetail("document_id", doc.GetID().String())
	}

	return e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		originals, err := e.stock.GetDocumentMovements(ctx, doc.GetID())
		if err != nil {
			return err
		}

		// Reverse only the current iteration's own entries. Compensating
		// entries from earlier unposts carry ReversalOf and are skipped.
		var reversals []entity.StockMovement
		for i := range originals {
			m := &originals[i]
			if m.Status != entity.MovementStatusCompleted ||
				m.ReferenceVersion != doc.GetPostedVersion() ||
				m.ReversalOf != nil {
				continue
			}
			reversals = append(reversals, m.Reversal(doc.GetPostedVersion(), m.Period))
		}

		var extras []entity.LevelDelta
		if ux, ok := doc.(ExtraUnposter); ok {
			extras, err = ux.GenerateUnpostExtras(ctx)
			if err != nil {
				return err
			}
		}

		if len(reversals) == 0 && len(extras) == 0 {
			doc.MarkUnposted()
			return updateDoc(ctx)
		}

		keys := stock.CollectKeys(reversals, extras)
		levels, err := e.stock.LockLevels(ctx, keys)
		if err != nil {
			return err
		}

		allowNegative, err := e.negativePolicy(ctx, keys)
		if err != nil {
			return err
		}

		userID := appctx.GetUserID(ctx)
		for i := range reversals {
			m := &reversals[i]
			if err := e.reverseValuation(ctx, m); err != nil {
				return err
			}

			deltas := m.Deltas()
			attachCost(m, deltas)
			if err := e.stock.ApplyDeltas(ctx, levels, deltas, allowNegative); err != nil {
				return err
			}

			if pk, ok := m.PrimaryKey(); ok {
				if lvl := levels.Get(pk); lvl != nil {
					m.RunningBalance = lvl.QuantityOnHand
				}
			}
			m.Status = entity.MovementStatusCompleted
			m.CreatedBy = userID
		}

		if err := e.stock.ApplyDeltas(ctx, levels, extras, allowNegative); err != nil {
			return err
		}

		if err := e.stock.Append(ctx, reversals); err != nil {
			return err
		}
		if err := e.stock.MarkReversed(ctx, doc.GetID(), doc.GetPostedVersion()); err != nil {
			return err
		}
		if err := e.stock.SaveLevels(ctx, levels); err != nil {
			return err
		}

		doc.MarkUnposted()
		if err := updateDoc(ctx); err != nil {
			return err
		}

		if e.events != nil {
			err := e.events.Publish(ctx, Event{
				AggregateType: doc.GetDocumentType(),
				AggregateID:   doc.GetID(),
				EventType:     doc.GetDocumentType() + "Unposted",
				Payload: map[string]any{
					"documentId": doc.GetID().String(),
					"reversals":  len(reversals),
				},
			})
			if err != nil {
				return err
			}
		}
		e.logAudit(ctx, doc.GetDocumentType(), doc.GetID(), "unpost", len(reversals))

		logger.Info(ctx, "document unposted",
			"document_type", doc.GetDocumentType(),
			"document_id", doc.GetID(),
			"reversals", len(reversals),
		)
		return nil
	})
}

// valueMovement fills unit and total cost. Outbound quantity consumes
// the layer stack; inbound quantity feeds it. transfer_in carries the
// cost computed when the transfer was shipped.
func (e *Engine) valueMovement(ctx context.Context, m *entity.StockMovement, levels stock.Levels) error {
	switch {
	case m.MovementType.Outbound() || isNegativeCount(m):
		src, ok := m.SourceKey()
		if !ok {
			return apperror.NewValidation("outbound movement has no source key")
		}
		fallback := m.UnitCost
		if fallback.IsZero() {
			if lvl := levels.Get(src); lvl != nil {
				fallback = lvl.UnitCost
			}
		}
		oc, err := e.valuation.CostOutbound(ctx, m.ProductID, src.WarehouseID, m.Quantity, fallback)
		if err != nil {
			return err
		}
		m.UnitCost = oc.UnitCost
		m.TotalCost = oc.TotalCost
		m.Unlayered = oc.Unlayered()

	default:
		dst, ok := m.DestinationKey()
		if !ok {
			return apperror.NewValidation("inbound movement has no destination key")
		}
		if m.UnitCost.IsZero() {
			if lvl := levels.Get(dst); lvl != nil {
				m.UnitCost = lvl.UnitCost
			}
		}
		if err := e.valuation.RecordInbound(ctx, m.ProductID, dst.WarehouseID, m.Quantity, m.UnitCost); err != nil {
			return err
		}
		m.TotalCost = m.Quantity.MulMoney(m.UnitCost)
	}
	return nil
}

// reverseValuation undoes the original entry's layer effect: reversing
// an outbound puts the quantity back at the original cost, reversing an
// inbound consumes it again. Reversals keep the original cost
// regardless of the current layer stack.
func (e *Engine) reverseValuation(ctx context.Context, m *entity.StockMovement) error {
	switch {
	case m.MovementType.Inbound() || isPositiveCount(m):
		dst, _ := m.DestinationKey()
		if err := e.valuation.RecordInbound(ctx, m.ProductID, dst.WarehouseID, m.Quantity, m.UnitCost); err != nil {
			return err
		}
	default:
		src, _ := m.SourceKey()
		if _, err := e.valuation.CostOutbound(ctx, m.ProductID, src.WarehouseID, m.Quantity, m.UnitCost); err != nil {
			return err
		}
	}
	m.TotalCost = m.Quantity.MulMoney(m.UnitCost)
	return nil
}

// attachCost stamps the movement's unit cost onto the on-hand positive
// delta so the level's moving cost reference follows inbound stock.
func attachCost(m *entity.StockMovement, deltas []entity.LevelDelta) {
	if m.UnitCost.IsZero() {
		return
	}
	for i := range deltas {
		if deltas[i].OnHand.IsPositive() {
			cost := m.UnitCost
			deltas[i].UnitCost = &cost
		}
	}
}

// negativePolicy resolves warehouse negative-stock settings for all
// touched warehouses once, before delta application.
func (e *Engine) negativePolicy(ctx context.Context, keys []entity.StockKey) (func(id.ID) bool, error) {
	policy := make(map[id.ID]bool)
	for _, k := range keys {
		if _, ok := policy[k.WarehouseID]; ok {
			continue
		}
		wh, err := e.warehouses.GetByID(ctx, k.WarehouseID)
		if err != nil {
			return nil, fmt.Errorf("resolve warehouse %s: %w", k.WarehouseID, err)
		}
		policy[k.WarehouseID] = wh.AllowNegativeStock
	}
	return func(warehouseID id.ID) bool { return policy[warehouseID] }, nil
}

func (e *Engine) publishEvent(ctx context.Context, op *Operation, keys []entity.StockKey) error {
	if e.events == nil || op.EventType == "" {
		return nil
	}

	payload := map[string]any{
		"documentId":   op.DocumentID.String(),
		"documentType": op.DocumentType,
		"movements":    len(op.Movements),
		"keys":         keys,
	}
	for k, v := range op.EventPayload {
		payload[k] = v
	}

	return e.events.Publish(ctx, Event{
		AggregateType: op.DocumentType,
		AggregateID:   op.DocumentID,
		EventType:     op.EventType,
		Payload:       payload,
	})
}

func (e *Engine) logAudit(ctx context.Context, docType string, docID id.ID, action string, movements int) {
	if e.audit == nil {
		return
	}
	err := e.audit.LogAction(ctx, docType, docID, action, map[string]any{
		"movements": movements,
	})
	if err != nil {
		logger.Warn(ctx, "audit log failed", "error", err)
	}
}

func isNegativeCount(m *entity.StockMovement) bool {
	if m.MovementType != entity.MovementCountAdjustment {
		return false
	}
	_, hasFrom := m.SourceKey()
	return hasFrom
}

func isPositiveCount(m *entity.StockMovement) bool {
	if m.MovementType != entity.MovementCountAdjustment {
		return false
	}
	_, hasTo := m.DestinationKey()
	return hasTo
}

// isRetryable reports whether the error is a lock-timeout class
// failure worth retrying on a fresh transaction.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "55P03", // lock_not_available
		"40P01", // deadlock_detected
		"40001": // serialization_failure
		return true
	}
	return false
}

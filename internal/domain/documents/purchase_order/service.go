package purchase_order

import (
	"context"
	"fmt"
	"time"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/tx"
	"wareflow/internal/core/types"
	"wareflow/internal/domain"
	"wareflow/internal/domain/docstate"
	"wareflow/internal/domain/posting"
	"wareflow/pkg/logger"
	"wareflow/pkg/numerator"
)

// Service provides business operations for purchase orders.
type Service struct {
	repo          Repository
	postingEngine *posting.Engine
	numerator     numerator.Generator
	txManager     tx.Manager
	machine       *docstate.Machine
	hooks         *domain.HookRegistry[*PurchaseOrder]

	// overReceiptTolerance permits receiving more than ordered, as a
	// fraction of the ordered quantity (0.05 = 5%). Zero disables
	// over-receipt entirely.
	overReceiptTolerance float64
}

// NewService creates a new purchase order service.
func NewService(
	repo Repository,
	postingEngine *posting.Engine,
	gen numerator.Generator,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:          repo,
		postingEngine: postingEngine,
		numerator:     gen,
		txManager:     txManager,
		machine:       StateMachine(),
		hooks:         domain.NewHookRegistry[*PurchaseOrder](),
	}
}

// WithOverReceiptTolerance configures the over-receipt allowance.
func (s *Service) WithOverReceiptTolerance(fraction float64) *Service {
	if fraction > 0 {
		s.overReceiptTolerance = fraction
	}
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*PurchaseOrder] {
	return s.hooks
}

// Create creates a new draft purchase order.
func (s *Service) Create(ctx context.Context, doc *PurchaseOrder) error {
	if err := s.hooks.Run(ctx, domain.BeforeCreate, doc); err != nil {
		return err
	}

	if doc.Status == "" {
		doc.Status = StatusDraft
	}
	if doc.Status != StatusDraft {
		return apperror.NewValidation("new purchase order must be draft").
			WithDetail("status", string(doc.Status))
	}
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if doc.Number == "" {
		cfg := numerator.DefaultConfig(NumberPrefix)
		number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		return s.repo.SaveLines(ctx, doc.ID, doc.Lines)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, domain.AfterCreate, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "purchase order created", "id", doc.ID, "number", doc.Number)
	return nil
}

// GetByID retrieves a purchase order with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*PurchaseOrder, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines

	return doc, nil
}

// Update updates a draft purchase order.
func (s *Service) Update(ctx context.Context, doc *PurchaseOrder) error {
	if err := s.hooks.Run(ctx, domain.BeforeUpdate, doc); err != nil {
		return err
	}

	if doc.Status != StatusDraft {
		return apperror.NewInvalidStateTransition(DocumentType, string(doc.Status), string(StatusDraft)).
			WithDetail("operation", "update")
	}
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return s.repo.SaveLines(ctx, doc.ID, doc.Lines)
	})
}

// Delete soft-deletes a draft or cancelled purchase order.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if doc.Status != StatusDraft && doc.Status != StatusCancelled {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"only draft or cancelled orders can be deleted",
		).WithDetail("status", string(doc.Status))
	}

	return s.repo.Delete(ctx, docID)
}

// Submit moves a draft order to submitted.
func (s *Service) Submit(ctx context.Context, docID id.ID) error {
	return s.transition(ctx, docID, StatusSubmitted, "submitted")
}

// Reject returns a submitted order to draft.
func (s *Service) Reject(ctx context.Context, docID id.ID) error {
	return s.transition(ctx, docID, StatusDraft, "rejected")
}

// MarkSent marks an approved order as sent to the supplier.
func (s *Service) MarkSent(ctx context.Context, docID id.ID) error {
	return s.transition(ctx, docID, StatusSent, "sent")
}

// Close closes a received order.
func (s *Service) Close(ctx context.Context, docID id.ID) error {
	return s.transition(ctx, docID, StatusClosed, "closed")
}

func (s *Service) transition(ctx context.Context, docID id.ID, target docstate.Status, action string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(doc.Status, target); err != nil {
			return err
		}
		doc.Status = target
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		logger.Info(ctx, "purchase order "+action, "id", doc.ID, "number", doc.Number)
		return nil
	})
}

// Approve approves a submitted order and raises the on-order
// projection by each line's outstanding quantity.
func (s *Service) Approve(ctx context.Context, docID id.ID) error {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if err := s.machine.Transition(doc.Status, StatusApproved); err != nil {
		return err
	}

	return s.postingEngine.Execute(ctx, &posting.Operation{
		DocumentType: DocumentType,
		DocumentID:   doc.ID,
		Extra:        s.onOrderDeltas(doc, 1),
		Action:       "approve",
		EventType:    DocumentType + "Approved",
		EventPayload: map[string]any{"number": doc.Number},
		Apply: func(ctx context.Context) error {
			locked, err := s.repo.GetForUpdate(ctx, docID)
			if err != nil {
				return err
			}
			if err := s.machine.Transition(locked.Status, StatusApproved); err != nil {
				return err
			}
			locked.Status = StatusApproved
			return s.repo.Update(ctx, locked)
		},
	})
}

// Cancel cancels a pre-receipt order, releasing any on-order quantity
// raised at approval.
func (s *Service) Cancel(ctx context.Context, docID id.ID) error {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if doc.HasReceipts() {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"order with posted receipts cannot be cancelled",
		).WithDetail("document_id", doc.ID.String())
	}
	if err := s.machine.Transition(doc.Status, StatusCancelled); err != nil {
		return err
	}

	// Draft and submitted orders never raised on-order quantity.
	if doc.Status == StatusDraft || doc.Status == StatusSubmitted {
		return s.transition(ctx, docID, StatusCancelled, "cancelled")
	}

	return s.postingEngine.Execute(ctx, &posting.Operation{
		DocumentType: DocumentType,
		DocumentID:   doc.ID,
		Extra:        s.onOrderDeltas(doc, -1),
		Action:       "cancel",
		EventType:    DocumentType + "Cancelled",
		EventPayload: map[string]any{"number": doc.Number},
		Apply: func(ctx context.Context) error {
			locked, err := s.repo.GetForUpdate(ctx, docID)
			if err != nil {
				return err
			}
			if err := s.machine.Transition(locked.Status, StatusCancelled); err != nil {
				return err
			}
			locked.Status = StatusCancelled
			return s.repo.Update(ctx, locked)
		},
	})
}

// onOrderDeltas builds projection deltas for each line's outstanding
// quantity, signed by direction.
func (s *Service) onOrderDeltas(doc *PurchaseOrder, sign int) []entity.LevelDelta {
	deltas := make([]entity.LevelDelta, 0, len(doc.Lines))
	for i := range doc.Lines {
		outstanding := doc.Lines[i].Outstanding()
		if outstanding.IsZero() {
			continue
		}
		if sign < 0 {
			outstanding = outstanding.Neg()
		}
		deltas = append(deltas, entity.LevelDelta{
			Key: entity.StockKey{
				ProductID:   doc.Lines[i].ProductID,
				WarehouseID: doc.WarehouseID,
			},
			OnOrder: outstanding,
		})
	}
	return deltas
}

// maxReceivable is the per-line receiving cap including tolerance.
func (s *Service) maxReceivable(line *PurchaseOrderLine) types.Quantity {
	if s.overReceiptTolerance <= 0 {
		return line.QuantityOrdered
	}
	return types.NewQuantityFromFloat64(line.QuantityOrdered.Float64() * (1 + s.overReceiptTolerance))
}

// RegisterReceipt records received quantities against order lines.
// Called inside the receipt's posting transaction; the order header is
// row-locked, caps are re-checked under the lock, and the status rolls
// to partially or fully received.
func (s *Service) RegisterReceipt(ctx context.Context, orderID id.ID, received map[id.ID]types.Quantity) error {
	doc, err := s.repo.GetForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	lines, err := s.repo.GetLines(ctx, orderID)
	if err != nil {
		return err
	}
	doc.Lines = lines

	if !doc.IsReceivable() {
		return apperror.NewInvalidStateTransition(DocumentType, string(doc.Status), string(StatusPartiallyReceived)).
			WithDetail("operation", "receive")
	}

	for lineID, qty := range received {
		line := doc.Line(lineID)
		if line == nil {
			return apperror.NewValidation("unknown purchase order line").
				WithDetail("line_id", lineID.String())
		}
		total := line.QuantityReceived + qty
		if total > s.maxReceivable(line) {
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				"received quantity exceeds ordered quantity",
			).WithDetail("line_id", lineID.String()).
				WithDetail("ordered", line.QuantityOrdered.String()).
				WithDetail("received", total.String())
		}
		line.QuantityReceived = total
	}

	target := StatusPartiallyReceived
	if doc.IsFullyReceived() {
		target = StatusFullyReceived
	}
	if doc.Status != target {
		if err := s.machine.Transition(doc.Status, target); err != nil {
			return err
		}
		doc.Status = target
	}

	if err := s.repo.Update(ctx, doc); err != nil {
		return err
	}
	return s.repo.SaveLines(ctx, doc.ID, doc.Lines)
}

// UnregisterReceipt rolls back received quantities when a receipt is
// unposted. This is a compensation path; the status is restored
// outside the forward transition table.
func (s *Service) UnregisterReceipt(ctx context.Context, orderID id.ID, received map[id.ID]types.Quantity) error {
	doc, err := s.repo.GetForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	lines, err := s.repo.GetLines(ctx, orderID)
	if err != nil {
		return err
	}
	doc.Lines = lines

	for lineID, qty := range received {
		line := doc.Line(lineID)
		if line == nil {
			return apperror.NewValidation("unknown purchase order line").
				WithDetail("line_id", lineID.String())
		}
		line.QuantityReceived -= qty
		if line.QuantityReceived < 0 {
			line.QuantityReceived = 0
		}
	}

	switch {
	case !doc.HasReceipts():
		doc.Status = StatusSent
	case doc.IsFullyReceived():
		doc.Status = StatusFullyReceived
	default:
		doc.Status = StatusPartiallyReceived
	}

	if err := s.repo.Update(ctx, doc); err != nil {
		return err
	}
	return s.repo.SaveLines(ctx, doc.ID, doc.Lines)
}

// List retrieves purchase orders with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*PurchaseOrder], error) {
	return s.repo.List(ctx, filter)
}

package goods_receipt

import (
	"context"
	"fmt"
	"time"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/id"
	"wareflow/internal/core/tx"
	"wareflow/internal/domain"
	"wareflow/internal/domain/docstate"
	"wareflow/internal/domain/documents/purchase_order"
	"wareflow/internal/domain/posting"
	"wareflow/pkg/logger"
	"wareflow/pkg/numerator"
)

// Service provides business operations for goods receipts.
type Service struct {
	repo          Repository
	orders        *purchase_order.Service
	postingEngine *posting.Engine
	numerator     numerator.Generator
	txManager     tx.Manager
	machine       *docstate.Machine
	hooks         *domain.HookRegistry[*GoodsReceipt]
}

// NewService creates a new goods receipt service. orders handles
// purchase order linkage and may be nil when receipts are standalone.
func NewService(
	repo Repository,
	orders *purchase_order.Service,
	postingEngine *posting.Engine,
	gen numerator.Generator,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:          repo,
		orders:        orders,
		postingEngine: postingEngine,
		numerator:     gen,
		txManager:     txManager,
		machine:       StateMachine(),
		hooks:         domain.NewHookRegistry[*GoodsReceipt](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*GoodsReceipt] {
	return s.hooks
}

// Create creates a new draft goods receipt.
func (s *Service) Create(ctx context.Context, doc *GoodsReceipt) error {
	if err := s.hooks.Run(ctx, domain.BeforeCreate, doc); err != nil {
		return err
	}

	if doc.Status == "" {
		doc.Status = StatusDraft
	}
	if doc.Status != StatusDraft {
		return apperror.NewValidation("new goods receipt must be draft").
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

	logger.Info(ctx, "goods receipt created", "id", doc.ID, "number", doc.Number)
	return nil
}

// GetByID retrieves a goods receipt with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*GoodsReceipt, error) {
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

// Update updates a draft goods receipt.
func (s *Service) Update(ctx context.Context, doc *GoodsReceipt) error {
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

// Delete soft-deletes a draft or cancelled goods receipt.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if doc.Posted {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"posted receipt cannot be deleted, unpost it first",
		).WithDetail("document_id", docID.String())
	}

	return s.repo.Delete(ctx, docID)
}

// Cancel cancels a draft goods receipt.
func (s *Service) Cancel(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(doc.Status, StatusCancelled); err != nil {
			return err
		}
		doc.Status = StatusCancelled
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		logger.Info(ctx, "goods receipt cancelled", "id", doc.ID, "number", doc.Number)
		return nil
	})
}

// Post records the receipt in the ledger. For order-linked receipts
// the order is loaded, checked and updated inside the same posting
// transaction, so the on-order release and the received quantities
// move together.
func (s *Service) Post(ctx context.Context, docID id.ID) error {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if err := s.prepareOrderLink(ctx, doc); err != nil {
		return err
	}

	updateDoc := func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}
		if doc.PurchaseOrderID != nil && s.orders != nil {
			return s.orders.RegisterReceipt(ctx, *doc.PurchaseOrderID, doc.ReceivedByOrderLine())
		}
		return nil
	}

	return s.postingEngine.Post(ctx, doc, updateDoc)
}

// Unpost reverses the receipt's movements, restores the on-order
// quantity and rolls back the order's received quantities.
func (s *Service) Unpost(ctx context.Context, docID id.ID) error {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if doc.PurchaseOrderID != nil && s.orders != nil {
		order, err := s.orders.GetByID(ctx, *doc.PurchaseOrderID)
		if err != nil {
			return fmt.Errorf("load purchase order: %w", err)
		}
		doc.AttachOrder(order)
	}

	updateDoc := func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}
		if doc.PurchaseOrderID != nil && s.orders != nil {
			return s.orders.UnregisterReceipt(ctx, *doc.PurchaseOrderID, doc.ReceivedByOrderLine())
		}
		return nil
	}

	return s.postingEngine.Unpost(ctx, doc, updateDoc)
}

// PostAndSave creates and posts a receipt in one operation.
func (s *Service) PostAndSave(ctx context.Context, doc *GoodsReceipt) error {
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

	if err := s.prepareOrderLink(ctx, doc); err != nil {
		return err
	}

	updateDoc := func(ctx context.Context) error {
		if doc.Version == 1 {
			if err := s.repo.Create(ctx, doc); err != nil {
				return err
			}
			if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
				return err
			}
		} else {
			if err := s.repo.Update(ctx, doc); err != nil {
				return err
			}
		}
		if doc.PurchaseOrderID != nil && s.orders != nil {
			return s.orders.RegisterReceipt(ctx, *doc.PurchaseOrderID, doc.ReceivedByOrderLine())
		}
		return nil
	}

	return s.postingEngine.Post(ctx, doc, updateDoc)
}

// prepareOrderLink loads the linked purchase order, checks it accepts
// receipts and that linked lines match, and attaches the snapshot used
// for on-order release deltas. The authoritative quantity check runs
// later under the order's row lock.
func (s *Service) prepareOrderLink(ctx context.Context, doc *GoodsReceipt) error {
	if doc.PurchaseOrderID == nil {
		return nil
	}
	if s.orders == nil {
		return apperror.NewValidation("receipt references a purchase order but order handling is not configured")
	}

	order, err := s.orders.GetByID(ctx, *doc.PurchaseOrderID)
	if err != nil {
		return fmt.Errorf("load purchase order: %w", err)
	}
	if !order.IsReceivable() {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"purchase order does not accept receipts",
		).WithDetail("order_id", order.ID.String()).
			WithDetail("order_status", string(order.Status))
	}
	if order.WarehouseID != doc.WarehouseID {
		return apperror.NewValidation("receipt warehouse differs from order warehouse").
			WithDetail("order_warehouse_id", order.WarehouseID.String()).
			WithDetail("receipt_warehouse_id", doc.WarehouseID.String())
	}

	for i := range doc.Lines {
		line := &doc.Lines[i]
		if line.POLineID == nil {
			continue
		}
		orderLine := order.Line(*line.POLineID)
		if orderLine == nil {
			return apperror.NewValidation("unknown purchase order line").
				WithDetail("line_id", line.POLineID.String()).
				WithDetail("lineNo", line.LineNo)
		}
		if orderLine.ProductID != line.ProductID {
			return apperror.NewValidation("receipt line product differs from order line product").
				WithDetail("lineNo", line.LineNo)
		}
	}

	doc.AttachOrder(order)
	return nil
}

// List retrieves goods receipts with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*GoodsReceipt], error) {
	return s.repo.List(ctx, filter)
}

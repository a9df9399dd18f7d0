package adjustment

import (
	"context"
	"fmt"
	"time"

	"wareflow/internal/core/apperror"
	appctx "wareflow/internal/core/context"
	"wareflow/internal/core/id"
	"wareflow/internal/core/tx"
	"wareflow/internal/domain"
	"wareflow/internal/domain/approval"
	"wareflow/internal/domain/docstate"
	"wareflow/internal/domain/posting"
	"wareflow/pkg/logger"
	"wareflow/pkg/numerator"
)

// Service provides business operations for stock adjustments.
type Service struct {
	repo          Repository
	postingEngine *posting.Engine
	numerator     numerator.Generator
	txManager     tx.Manager
	machine       *docstate.Machine
	hooks         *domain.HookRegistry[*StockAdjustment]

	// rules gate high-value adjustments behind explicit approval.
	rules *approval.Rules
}

// NewService creates a new adjustment service. rules may be nil, in
// which case every adjustment posts without approval.
func NewService(
	repo Repository,
	postingEngine *posting.Engine,
	gen numerator.Generator,
	txManager tx.Manager,
	rules *approval.Rules,
) *Service {
	return &Service{
		repo:          repo,
		postingEngine: postingEngine,
		numerator:     gen,
		txManager:     txManager,
		machine:       StateMachine(),
		hooks:         domain.NewHookRegistry[*StockAdjustment](),
		rules:         rules,
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*StockAdjustment] {
	return s.hooks
}

// Create creates a new draft adjustment.
func (s *Service) Create(ctx context.Context, doc *StockAdjustment) error {
	if err := s.hooks.Run(ctx, domain.BeforeCreate, doc); err != nil {
		return err
	}

	if doc.Status == "" {
		doc.Status = StatusDraft
	}
	if doc.Status != StatusDraft {
		return apperror.NewValidation("new adjustment must be draft").
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

	logger.Info(ctx, "stock adjustment created", "id", doc.ID, "number", doc.Number)
	return nil
}

// GetByID retrieves an adjustment with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*StockAdjustment, error) {
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

// Update updates a draft adjustment.
func (s *Service) Update(ctx context.Context, doc *StockAdjustment) error {
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

// Delete soft-deletes a draft or cancelled adjustment.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if doc.Status != StatusDraft && doc.Status != StatusCancelled {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"only draft or cancelled adjustments can be deleted",
		).WithDetail("status", string(doc.Status))
	}

	return s.repo.Delete(ctx, docID)
}

// Approve approves a pending adjustment for posting.
func (s *Service) Approve(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(doc.Status, StatusApproved); err != nil {
			return err
		}
		doc.Status = StatusApproved
		doc.ApprovedBy = appctx.GetUserID(ctx)
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		logger.Info(ctx, "stock adjustment approved", "id", doc.ID, "number", doc.Number)
		return nil
	})
}

// Reject returns a pending adjustment to draft.
func (s *Service) Reject(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(doc.Status, StatusDraft); err != nil {
			return err
		}
		doc.Status = StatusDraft
		doc.ApprovedBy = ""
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		logger.Info(ctx, "stock adjustment rejected", "id", doc.ID, "number", doc.Number)
		return nil
	})
}

// Cancel cancels an unposted adjustment.
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

		logger.Info(ctx, "stock adjustment cancelled", "id", doc.ID, "number", doc.Number)
		return nil
	})
}

// Post records the adjustment in the ledger. Draft adjustments that
// trip the approval rule are parked in pending_approval instead of
// posting.
func (s *Service) Post(ctx context.Context, docID id.ID) error {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if doc.Status == StatusDraft {
		gated, err := s.requiresApproval(doc)
		if err != nil {
			return err
		}
		if gated {
			if err := s.park(ctx, docID); err != nil {
				return err
			}
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				"adjustment requires approval before posting",
			).WithDetail("document_id", doc.ID.String()).
				WithDetail("total_value", doc.TotalValue.String())
		}
	}

	updateDoc := func(ctx context.Context) error {
		return s.repo.Update(ctx, doc)
	}

	return s.postingEngine.Post(ctx, doc, updateDoc)
}

// requiresApproval evaluates the approval rule against the document.
func (s *Service) requiresApproval(doc *StockAdjustment) (bool, error) {
	if s.rules == nil || s.rules.AdjustmentApproval == nil {
		return false, nil
	}
	return s.rules.AdjustmentApproval.Evaluate(approval.Facts{
		Value:       doc.TotalValue.InexactFloat64(),
		Quantity:    doc.TotalAbsQuantity().Float64(),
		WarehouseID: doc.WarehouseID.String(),
	})
}

// park moves a draft adjustment to pending_approval.
func (s *Service) park(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if doc.Status != StatusDraft {
			return nil
		}
		doc.Status = StatusPendingApproval
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		logger.Info(ctx, "stock adjustment pending approval",
			"id", doc.ID,
			"number", doc.Number,
			"total_value", doc.TotalValue,
		)
		return nil
	})
}

// Unpost reverses the adjustment's movements.
func (s *Service) Unpost(ctx context.Context, docID id.ID) error {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	updateDoc := func(ctx context.Context) error {
		return s.repo.Update(ctx, doc)
	}

	return s.postingEngine.Unpost(ctx, doc, updateDoc)
}

// List retrieves adjustments with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockAdjustment], error) {
	return s.repo.List(ctx, filter)
}

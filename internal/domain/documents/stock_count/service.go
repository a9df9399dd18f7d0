package stock_count

import (
	"context"
	"fmt"
	"time"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/id"
	"wareflow/internal/core/tx"
	"wareflow/internal/core/types"
	"wareflow/internal/domain"
	"wareflow/internal/domain/approval"
	"wareflow/internal/domain/docstate"
	"wareflow/internal/domain/posting"
	"wareflow/internal/domain/registers/stock"
	"wareflow/pkg/logger"
	"wareflow/pkg/numerator"
)

// Service provides business operations for stock counts.
type Service struct {
	repo          Repository
	stock         *stock.Service
	postingEngine *posting.Engine
	numerator     numerator.Generator
	txManager     tx.Manager
	machine       *docstate.Machine
	hooks         *domain.HookRegistry[*StockCount]

	// rules drive the variance-based recount requirement.
	rules *approval.Rules

	// events covers the zero-variance posting path, which writes no
	// ledger entries. May be nil.
	events posting.EventPublisher
}

// NewService creates a new stock count service. rules may be nil, in
// which case no variance forces a recount.
func NewService(
	repo Repository,
	stockSvc *stock.Service,
	postingEngine *posting.Engine,
	gen numerator.Generator,
	txManager tx.Manager,
	rules *approval.Rules,
	events posting.EventPublisher,
) *Service {
	return &Service{
		repo:          repo,
		stock:         stockSvc,
		postingEngine: postingEngine,
		numerator:     gen,
		txManager:     txManager,
		machine:       StateMachine(),
		hooks:         domain.NewHookRegistry[*StockCount](),
		rules:         rules,
		events:        events,
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*StockCount] {
	return s.hooks
}

// Create creates a new scheduled count.
func (s *Service) Create(ctx context.Context, doc *StockCount) error {
	if err := s.hooks.Run(ctx, domain.BeforeCreate, doc); err != nil {
		return err
	}

	if doc.Status == "" {
		doc.Status = StatusScheduled
	}
	if doc.Status != StatusScheduled {
		return apperror.NewValidation("new stock count must be scheduled").
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

	logger.Info(ctx, "stock count created", "id", doc.ID, "number", doc.Number)
	return nil
}

// GetByID retrieves a stock count with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*StockCount, error) {
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

// Update updates a scheduled count's plan.
func (s *Service) Update(ctx context.Context, doc *StockCount) error {
	if err := s.hooks.Run(ctx, domain.BeforeUpdate, doc); err != nil {
		return err
	}

	if doc.Status != StatusScheduled {
		return apperror.NewInvalidStateTransition(DocumentType, string(doc.Status), string(StatusScheduled)).
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

// Delete soft-deletes a scheduled or cancelled count.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if doc.Status != StatusScheduled && doc.Status != StatusCancelled {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"only scheduled or cancelled counts can be deleted",
		).WithDetail("status", string(doc.Status))
	}

	return s.repo.Delete(ctx, docID)
}

// Start begins counting.
func (s *Service) Start(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(doc.Status, StatusInProgress); err != nil {
			return err
		}
		now := time.Now().UTC()
		doc.Status = StatusInProgress
		doc.StartedAt = &now
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		logger.Info(ctx, "stock count started", "id", doc.ID, "number", doc.Number)
		return nil
	})
}

// RecordCount captures a counted quantity for one line. The system
// quantity is re-read from the ledger at capture time, so recounting a
// line compares against the current state, not a stale snapshot.
// Counting the same line again overwrites the previous capture.
func (s *Service) RecordCount(ctx context.Context, docID, lineID id.ID, counted types.Quantity) error {
	if counted.IsNegative() {
		return apperror.NewValidation("counted quantity cannot be negative").
			WithDetail("line_id", lineID.String())
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		lines, err := s.repo.GetLines(ctx, docID)
		if err != nil {
			return err
		}
		doc.Lines = lines

		if doc.Status != StatusInProgress {
			return apperror.NewInvalidStateTransition(DocumentType, string(doc.Status), string(StatusInProgress)).
				WithDetail("operation", "count")
		}

		line := doc.Line(lineID)
		if line == nil {
			return apperror.NewValidation("unknown count line").
				WithDetail("line_id", lineID.String())
		}

		level, err := s.stock.GetLevel(ctx, doc.Key(line))
		if err != nil {
			return fmt.Errorf("read system quantity: %w", err)
		}

		now := time.Now().UTC()
		line.SystemQuantity = level.QuantityOnHand
		line.CountedQuantity = counted
		line.Counted = true
		line.CountedAt = &now
		line.Variance = counted - line.SystemQuantity
		line.RecountOverridden = false

		line.RecountRequired, err = s.requiresRecount(doc, line)
		if err != nil {
			return err
		}

		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}
		return s.repo.SaveLines(ctx, doc.ID, doc.Lines)
	})
}

// requiresRecount evaluates the recount rule against a counted line.
func (s *Service) requiresRecount(doc *StockCount, line *CountLine) (bool, error) {
	if s.rules == nil || s.rules.RecountRequired == nil {
		return false, nil
	}
	if line.Variance.IsZero() {
		return false, nil
	}
	return s.rules.RecountRequired.Evaluate(approval.Facts{
		Quantity:        line.CountedQuantity.Float64(),
		VariancePercent: line.VariancePercent(),
		WarehouseID:     doc.WarehouseID.String(),
	})
}

// SubmitForReview moves a count to review once every line is counted.
// Uncounted lines do not block submission; they are simply excluded
// from the posted adjustments and flagged in the posting event.
func (s *Service) SubmitForReview(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(doc.Status, StatusPendingReview); err != nil {
			return err
		}
		doc.Status = StatusPendingReview
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		logger.Info(ctx, "stock count submitted for review", "id", doc.ID, "number", doc.Number)
		return nil
	})
}

// Recount sends a reviewed count back to counting.
func (s *Service) Recount(ctx context.Context, docID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(doc.Status, StatusInProgress); err != nil {
			return err
		}
		doc.Status = StatusInProgress
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		logger.Info(ctx, "stock count reopened for recount", "id", doc.ID, "number", doc.Number)
		return nil
	})
}

// OverrideRecount accepts a flagged variance without recounting.
func (s *Service) OverrideRecount(ctx context.Context, docID, lineID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		lines, err := s.repo.GetLines(ctx, docID)
		if err != nil {
			return err
		}
		doc.Lines = lines

		if doc.Status != StatusPendingReview {
			return apperror.NewInvalidStateTransition(DocumentType, string(doc.Status), string(StatusPendingReview)).
				WithDetail("operation", "override_recount")
		}

		line := doc.Line(lineID)
		if line == nil {
			return apperror.NewValidation("unknown count line").
				WithDetail("line_id", lineID.String())
		}
		if !line.RecountRequired {
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				"line does not require a recount",
			).WithDetail("line_id", lineID.String())
		}

		line.RecountOverridden = true

		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return err
		}

		logger.Info(ctx, "recount overridden",
			"id", doc.ID,
			"line_id", lineID,
			"variance", line.Variance,
		)
		return nil
	})
}

// Cancel cancels an unposted count.
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

		logger.Info(ctx, "stock count cancelled", "id", doc.ID, "number", doc.Number)
		return nil
	})
}

// Post turns counted variances into ledger adjustments. A count whose
// counted lines all match the system posts without ledger writes.
func (s *Service) Post(ctx context.Context, docID id.ID) error {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if !s.hasVariances(doc) {
		return s.postClean(ctx, doc)
	}

	updateDoc := func(ctx context.Context) error {
		return s.repo.Update(ctx, doc)
	}

	return s.postingEngine.Post(ctx, doc, updateDoc)
}

func (s *Service) hasVariances(doc *StockCount) bool {
	for i := range doc.Lines {
		if doc.Lines[i].Counted && !doc.Lines[i].Variance.IsZero() {
			return true
		}
	}
	return false
}

// postClean posts a variance-free count: no ledger entries, just the
// status flip and the event.
func (s *Service) postClean(ctx context.Context, doc *StockCount) error {
	if err := doc.CanPost(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc.MarkPosted()
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		if s.events != nil {
			err := s.events.Publish(ctx, posting.Event{
				AggregateType: DocumentType,
				AggregateID:   doc.ID,
				EventType:     "StockCountPosted",
				Payload: map[string]any{
					"documentId":    doc.ID.String(),
					"number":        doc.Number,
					"adjustedLines": 0,
				},
			})
			if err != nil {
				return err
			}
		}

		logger.Info(ctx, "stock count posted without variances", "id", doc.ID, "number", doc.Number)
		return nil
	})
}

// Unpost reverses the count's adjustments and reopens it for counting.
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

// List retrieves stock counts with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockCount], error) {
	return s.repo.List(ctx, filter)
}

package transfer

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

// Service provides business operations for transfers.
type Service struct {
	repo          Repository
	postingEngine *posting.Engine
	numerator     numerator.Generator
	txManager     tx.Manager
	machine       *docstate.Machine
	hooks         *domain.HookRegistry[*Transfer]

	// events is used for completion, which writes no ledger entries of
	// its own. May be nil.
	events posting.EventPublisher
}

// NewService creates a new transfer service.
func NewService(
	repo Repository,
	postingEngine *posting.Engine,
	gen numerator.Generator,
	txManager tx.Manager,
	events posting.EventPublisher,
) *Service {
	return &Service{
		repo:          repo,
		postingEngine: postingEngine,
		numerator:     gen,
		txManager:     txManager,
		machine:       StateMachine(),
		hooks:         domain.NewHookRegistry[*Transfer](),
		events:        events,
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Transfer] {
	return s.hooks
}

// Create creates a new draft transfer.
func (s *Service) Create(ctx context.Context, doc *Transfer) error {
	if err := s.hooks.Run(ctx, domain.BeforeCreate, doc); err != nil {
		return err
	}

	if doc.Status == "" {
		doc.Status = StatusDraft
	}
	if doc.Status != StatusDraft {
		return apperror.NewValidation("new transfer must be draft").
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

	logger.Info(ctx, "transfer created", "id", doc.ID, "number", doc.Number)
	return nil
}

// GetByID retrieves a transfer with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Transfer, error) {
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

// Update updates a draft transfer.
func (s *Service) Update(ctx context.Context, doc *Transfer) error {
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

// Delete soft-deletes a draft or cancelled transfer.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if doc.Status != StatusDraft && doc.Status != StatusCancelled {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"only draft or cancelled transfers can be deleted",
		).WithDetail("status", string(doc.Status))
	}

	return s.repo.Delete(ctx, docID)
}

// Approve approves a draft transfer for shipment.
func (s *Service) Approve(ctx context.Context, docID id.ID) error {
	return s.transition(ctx, docID, StatusApproved, "approved")
}

// Reject sends an approved transfer back for rework.
func (s *Service) Reject(ctx context.Context, docID id.ID) error {
	return s.transition(ctx, docID, StatusRejected, "rejected")
}

// Reopen returns a rejected transfer to draft.
func (s *Service) Reopen(ctx context.Context, docID id.ID) error {
	return s.transition(ctx, docID, StatusDraft, "reopened")
}

// Cancel cancels a transfer that has not shipped.
func (s *Service) Cancel(ctx context.Context, docID id.ID) error {
	return s.transition(ctx, docID, StatusCancelled, "cancelled")
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

		logger.Info(ctx, "transfer "+action, "id", doc.ID, "number", doc.Number)
		return nil
	})
}

// Ship posts the outbound leg: on-hand stock leaves the source
// warehouse and goes in transit, one movement per line. The cost each
// line left at is captured as its shipped unit cost and drives the
// receiving side.
func (s *Service) Ship(ctx context.Context, docID id.ID) error {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if err := s.machine.Transition(doc.Status, StatusShipped); err != nil {
		return err
	}
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	movements := make([]entity.StockMovement, 0, len(doc.Lines))
	lineIDs := make([]id.ID, 0, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		movements = append(movements, entity.NewStockMovement(
			entity.MovementTransferOut,
			line.ProductID,
			line.Quantity,
			DocumentType,
			doc.ID,
			doc.PostedVersion+1,
			doc.Date,
		).WithSource(doc.FromWarehouseID, line.FromBinID, line.BatchID))
		lineIDs = append(lineIDs, line.LineID)
	}

	return s.postingEngine.Execute(ctx, &posting.Operation{
		DocumentType: DocumentType,
		DocumentID:   doc.ID,
		Movements:    movements,
		Action:       "ship",
		EventType:    DocumentType + "Shipped",
		EventPayload: map[string]any{"number": doc.Number},
		Apply: func(ctx context.Context) error {
			locked, err := s.repo.GetForUpdate(ctx, docID)
			if err != nil {
				return err
			}
			lines, err := s.repo.GetLines(ctx, docID)
			if err != nil {
				return err
			}
			locked.Lines = lines
			if err := s.machine.Transition(locked.Status, StatusShipped); err != nil {
				return err
			}

			// The engine costed the movements in place; carry the costs
			// onto the lines before saving.
			for i := range movements {
				line := locked.Line(lineIDs[i])
				if line == nil {
					return apperror.NewValidation("transfer line disappeared during shipping").
						WithDetail("line_id", lineIDs[i].String())
				}
				line.QuantityShipped = movements[i].Quantity
				line.ShippedUnitCost = movements[i].UnitCost
			}

			now := time.Now().UTC()
			locked.Status = StatusShipped
			locked.ShippedAt = &now
			locked.MarkPosted()
			if err := s.repo.Update(ctx, locked); err != nil {
				return err
			}
			return s.repo.SaveLines(ctx, locked.ID, locked.Lines)
		},
	})
}

// Receive posts the inbound leg for the given line quantities: transit
// is released and the destination warehouse gains on-hand stock at the
// shipped cost. Partial receiving is allowed; each call may cover any
// subset of in-transit quantity.
func (s *Service) Receive(ctx context.Context, docID id.ID, received map[id.ID]types.Quantity) error {
	if len(received) == 0 {
		return apperror.NewValidation("nothing to receive")
	}

	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if !doc.CanReceive() {
		return apperror.NewInvalidStateTransition(DocumentType, string(doc.Status), string(StatusReceived)).
			WithDetail("operation", "receive")
	}

	movements := make([]entity.StockMovement, 0, len(received))
	for lineID, qty := range received {
		line := doc.Line(lineID)
		if line == nil {
			return apperror.NewValidation("unknown transfer line").
				WithDetail("line_id", lineID.String())
		}
		if !qty.IsPositive() {
			return apperror.NewValidation("received quantity must be positive").
				WithDetail("line_id", lineID.String())
		}
		if qty > line.InTransit() {
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				"received quantity exceeds in-transit quantity",
			).WithDetail("line_id", lineID.String()).
				WithDetail("in_transit", line.InTransit().String()).
				WithDetail("received", qty.String())
		}

		m := entity.NewStockMovement(
			entity.MovementTransferIn,
			line.ProductID,
			qty,
			DocumentType,
			doc.ID,
			doc.PostedVersion+1,
			doc.Date,
		).WithSource(doc.FromWarehouseID, line.FromBinID, line.BatchID).
			WithDestination(doc.ToWarehouseID, line.ToBinID, line.BatchID)
		m.UnitCost = line.ShippedUnitCost
		movements = append(movements, m)
	}

	return s.postingEngine.Execute(ctx, &posting.Operation{
		DocumentType: DocumentType,
		DocumentID:   doc.ID,
		Movements:    movements,
		Action:       "receive",
		EventType:    DocumentType + "Received",
		EventPayload: map[string]any{"number": doc.Number},
		Apply: func(ctx context.Context) error {
			locked, err := s.repo.GetForUpdate(ctx, docID)
			if err != nil {
				return err
			}
			lines, err := s.repo.GetLines(ctx, docID)
			if err != nil {
				return err
			}
			locked.Lines = lines
			if !locked.CanReceive() {
				return apperror.NewInvalidStateTransition(DocumentType, string(locked.Status), string(StatusReceived)).
					WithDetail("operation", "receive")
			}

			for lineID, qty := range received {
				line := locked.Line(lineID)
				if line == nil {
					return apperror.NewValidation("unknown transfer line").
						WithDetail("line_id", lineID.String())
				}
				if qty > line.InTransit() {
					return apperror.NewBusinessRule(
						apperror.CodeBusinessRule,
						"received quantity exceeds in-transit quantity",
					).WithDetail("line_id", lineID.String())
				}
				line.QuantityReceived += qty
			}

			target := StatusPartiallyReceived
			if locked.IsFullyReceived() {
				target = StatusReceived
				now := time.Now().UTC()
				locked.ReceivedAt = &now
			}
			if locked.Status != target {
				if err := s.machine.Transition(locked.Status, target); err != nil {
					return err
				}
				locked.Status = target
			}

			locked.MarkPosted()
			if err := s.repo.Update(ctx, locked); err != nil {
				return err
			}
			return s.repo.SaveLines(ctx, locked.ID, locked.Lines)
		},
	})
}

// Complete closes out the transfer. Shipped quantity that never
// arrived is recorded as variance on the lines, not silently dropped;
// the write-off is an explicit follow-up adjustment at the source.
func (s *Service) Complete(ctx context.Context, docID id.ID) error {
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

		if err := s.machine.Transition(doc.Status, StatusCompleted); err != nil {
			return err
		}

		variances := make(map[string]string)
		for i := range doc.Lines {
			line := &doc.Lines[i]
			line.VarianceQuantity = line.QuantityShipped - line.QuantityReceived
			if !line.VarianceQuantity.IsZero() {
				variances[line.LineID.String()] = line.VarianceQuantity.String()
			}
		}

		doc.Status = StatusCompleted
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return err
		}

		if s.events != nil {
			err := s.events.Publish(ctx, posting.Event{
				AggregateType: DocumentType,
				AggregateID:   doc.ID,
				EventType:     DocumentType + "Completed",
				Payload: map[string]any{
					"documentId": doc.ID.String(),
					"number":     doc.Number,
					"variances":  variances,
				},
			})
			if err != nil {
				return err
			}
		}

		logger.Info(ctx, "transfer completed",
			"id", doc.ID,
			"number", doc.Number,
			"variance_lines", len(variances),
		)
		return nil
	})
}

// List retrieves transfers with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transfer], error) {
	return s.repo.List(ctx, filter)
}

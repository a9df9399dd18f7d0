// Package adjustment provides the StockAdjustment document: manual
// corrections to on-hand stock, with a value-based approval gate.
package adjustment

import (
	"context"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/docstate"
	"wareflow/internal/domain/posting"
)

// DocumentType is the type name used in references and events.
const DocumentType = "StockAdjustment"

// Adjustment lifecycle states.
const (
	StatusDraft           docstate.Status = "draft"
	StatusPendingApproval docstate.Status = "pending_approval"
	StatusApproved        docstate.Status = "approved"
	StatusPosted          docstate.Status = "posted"
	StatusCancelled       docstate.Status = "cancelled"
)

// StateMachine returns the adjustment transition table. Small
// adjustments post straight from draft; large ones detour through
// approval.
func StateMachine() *docstate.Machine {
	return docstate.New(DocumentType, docstate.Transitions{
		StatusDraft:           {StatusPendingApproval, StatusPosted, StatusCancelled},
		StatusPendingApproval: {StatusApproved, StatusDraft, StatusCancelled},
		StatusApproved:        {StatusPosted, StatusCancelled},
		StatusPosted:          {StatusDraft},
	})
}

// StockAdjustment corrects on-hand quantities at a warehouse.
type StockAdjustment struct {
	entity.Document

	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Status docstate.Status `db:"status" json:"status"`

	// Reason is mandatory; adjustments without a cause are audit noise.
	Reason string `db:"reason" json:"reason"`

	ApprovedBy string `db:"approved_by" json:"approvedBy,omitempty"`

	TotalValue types.Money `db:"total_value" json:"totalValue"`

	// Table part: adjusted goods
	Lines []AdjustmentLine `db:"-" json:"lines"`
}

// AdjustmentLine is one signed correction. Positive quantity adds
// stock at the given unit cost; negative removes it, costed by the
// valuation engine at posting.
type AdjustmentLine struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID  `db:"product_id" json:"productId"`
	BinID     *id.ID `db:"bin_id" json:"binId,omitempty"`
	BatchID   *id.ID `db:"batch_id" json:"batchId,omitempty"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`
	UnitCost types.Money    `db:"unit_cost" json:"unitCost"`
}

// Value is the absolute monetary effect of the line.
func (l *AdjustmentLine) Value() types.Money {
	return l.Quantity.Abs().MulMoney(l.UnitCost)
}

// NewStockAdjustment creates a draft adjustment.
func NewStockAdjustment(warehouseID id.ID, reason string) *StockAdjustment {
	return &StockAdjustment{
		Document:    entity.NewDocument(),
		WarehouseID: warehouseID,
		Status:      StatusDraft,
		Reason:      reason,
		Lines:       make([]AdjustmentLine, 0),
	}
}

// AddLine adds a signed correction line and recalculates totals.
func (a *StockAdjustment) AddLine(productID id.ID, quantity types.Quantity, unitCost types.Money) *AdjustmentLine {
	line := AdjustmentLine{
		LineID:    id.New(),
		LineNo:    len(a.Lines) + 1,
		ProductID: productID,
		Quantity:  quantity,
		UnitCost:  unitCost,
	}
	a.Lines = append(a.Lines, line)
	a.recalculateTotals()
	return &a.Lines[len(a.Lines)-1]
}

func (a *StockAdjustment) recalculateTotals() {
	a.TotalValue = types.Zero()
	for i := range a.Lines {
		a.TotalValue = a.TotalValue.Add(a.Lines[i].Value())
	}
}

// TotalAbsQuantity sums absolute line quantities, for rule evaluation.
func (a *StockAdjustment) TotalAbsQuantity() types.Quantity {
	var total types.Quantity
	for i := range a.Lines {
		total += a.Lines[i].Quantity.Abs()
	}
	return total
}

// Validate implements entity.Validatable.
func (a *StockAdjustment) Validate(ctx context.Context) error {
	if err := a.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(a.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if a.Reason == "" {
		return apperror.NewValidation("reason is required").
			WithDetail("field", "reason")
	}
	if len(a.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i := range a.Lines {
		line := &a.Lines[i]
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
		if line.Quantity.IsZero() {
			return apperror.NewValidation("quantity cannot be zero").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
		if line.UnitCost.IsNegative() {
			return apperror.NewValidation("unit cost cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
		if line.Quantity.IsPositive() && line.UnitCost.IsZero() {
			return apperror.NewValidation("positive adjustment requires a unit cost").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
	}

	return nil
}

// --- Postable interface implementation ---

// GetDocumentType returns the document type name.
func (a *StockAdjustment) GetDocumentType() string {
	return DocumentType
}

// CanPost allows posting from draft or approved; the service routes
// draft adjustments through the approval gate first.
func (a *StockAdjustment) CanPost(ctx context.Context) error {
	if a.Status != StatusDraft && a.Status != StatusApproved {
		return apperror.NewInvalidStateTransition(DocumentType, string(a.Status), string(StatusPosted))
	}
	return a.Validate(ctx)
}

// MarkPosted flips the posted flag and the status together.
func (a *StockAdjustment) MarkPosted() {
	a.Document.MarkPosted()
	a.Status = StatusPosted
}

// MarkUnposted clears the posted flag and returns the status to draft.
// A repeated posting of a previously approved adjustment goes through
// the approval gate again.
func (a *StockAdjustment) MarkUnposted() {
	a.Document.MarkUnposted()
	a.Status = StatusDraft
}

// GenerateMovements creates one signed movement per line.
func (a *StockAdjustment) GenerateMovements(ctx context.Context) (*posting.MovementSet, error) {
	set := posting.NewMovementSet()
	newVersion := a.PostedVersion + 1

	for i := range a.Lines {
		line := &a.Lines[i]
		if line.Quantity.IsPositive() {
			m := entity.NewStockMovement(
				entity.MovementPositiveAdjustment,
				line.ProductID,
				line.Quantity,
				DocumentType,
				a.ID,
				newVersion,
				a.Date,
			).WithDestination(a.WarehouseID, line.BinID, line.BatchID)
			m.UnitCost = line.UnitCost
			set.AddStock(m)
			continue
		}

		m := entity.NewStockMovement(
			entity.MovementNegativeAdjustment,
			line.ProductID,
			line.Quantity.Abs(),
			DocumentType,
			a.ID,
			newVersion,
			a.Date,
		).WithSource(a.WarehouseID, line.BinID, line.BatchID)
		set.AddStock(m)
	}

	set.SetEvent("AdjustmentPosted")
	set.AddEventField("number", a.Number)
	set.AddEventField("reason", a.Reason)
	return set, nil
}

var _ posting.Postable = (*StockAdjustment)(nil)

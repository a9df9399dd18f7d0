// Package transfer provides the Transfer document, a two-stage move of
// stock between warehouses. Shipping debits the source and parks the
// quantity in transit; receiving releases transit into the destination
// at the cost captured at ship time.
package transfer

import (
	"context"
	"time"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/docstate"
)

// DocumentType is the type name used in references and events.
const DocumentType = "Transfer"

// Transfer lifecycle states.
const (
	StatusDraft             docstate.Status = "draft"
	StatusApproved          docstate.Status = "approved"
	StatusShipped           docstate.Status = "shipped"
	StatusPartiallyReceived docstate.Status = "partially_received"
	StatusReceived          docstate.Status = "received"
	StatusCompleted         docstate.Status = "completed"
	StatusRejected          docstate.Status = "rejected"
	StatusCancelled         docstate.Status = "cancelled"
)

// StateMachine returns the transfer transition table. Once goods
// shipped, the only way forward is receiving; cancellation is a
// pre-shipment decision.
func StateMachine() *docstate.Machine {
	return docstate.New(DocumentType, docstate.Transitions{
		StatusDraft:             {StatusApproved, StatusCancelled},
		StatusApproved:          {StatusShipped, StatusRejected, StatusCancelled},
		StatusRejected:          {StatusDraft, StatusCancelled},
		StatusShipped:           {StatusPartiallyReceived, StatusReceived},
		StatusPartiallyReceived: {StatusReceived, StatusCompleted},
		StatusReceived:          {StatusCompleted},
	})
}

// receivingStatuses are the states a receive operation may run in.
var receivingStatuses = map[docstate.Status]bool{
	StatusShipped:           true,
	StatusPartiallyReceived: true,
}

// Transfer moves stock from one warehouse to another.
type Transfer struct {
	entity.Document

	FromWarehouseID id.ID `db:"from_warehouse_id" json:"fromWarehouseId"`
	ToWarehouseID   id.ID `db:"to_warehouse_id" json:"toWarehouseId"`

	Status docstate.Status `db:"status" json:"status"`

	ShippedAt  *time.Time `db:"shipped_at" json:"shippedAt,omitempty"`
	ReceivedAt *time.Time `db:"received_at" json:"receivedAt,omitempty"`

	TotalQuantity types.Quantity `db:"total_quantity" json:"totalQuantity"`

	// Table part: transferred goods
	Lines []TransferLine `db:"-" json:"lines"`
}

// TransferLine is one transferred product. Quantity is the planned
// amount; shipped and received track the two posting stages, and their
// difference becomes the recorded variance at completion.
type TransferLine struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID `db:"product_id" json:"productId"`

	FromBinID *id.ID `db:"from_bin_id" json:"fromBinId,omitempty"`
	ToBinID   *id.ID `db:"to_bin_id" json:"toBinId,omitempty"`
	BatchID   *id.ID `db:"batch_id" json:"batchId,omitempty"`

	Quantity         types.Quantity `db:"quantity" json:"quantity"`
	QuantityShipped  types.Quantity `db:"quantity_shipped" json:"quantityShipped"`
	QuantityReceived types.Quantity `db:"quantity_received" json:"quantityReceived"`

	// VarianceQuantity is shipped minus received, recorded at completion.
	VarianceQuantity types.Quantity `db:"variance_quantity" json:"varianceQuantity"`

	// ShippedUnitCost is captured when the outbound movement is costed;
	// the receiving side books at this cost, not the destination's.
	ShippedUnitCost types.Money `db:"shipped_unit_cost" json:"shippedUnitCost"`
}

// InTransit is the shipped quantity not yet received.
func (l *TransferLine) InTransit() types.Quantity {
	t := l.QuantityShipped - l.QuantityReceived
	if t < 0 {
		return 0
	}
	return t
}

// NewTransfer creates a draft transfer.
func NewTransfer(fromWarehouseID, toWarehouseID id.ID) *Transfer {
	return &Transfer{
		Document:        entity.NewDocument(),
		FromWarehouseID: fromWarehouseID,
		ToWarehouseID:   toWarehouseID,
		Status:          StatusDraft,
		Lines:           make([]TransferLine, 0),
	}
}

// AddLine adds a line and recalculates totals.
func (t *Transfer) AddLine(productID id.ID, quantity types.Quantity) *TransferLine {
	line := TransferLine{
		LineID:    id.New(),
		LineNo:    len(t.Lines) + 1,
		ProductID: productID,
		Quantity:  quantity,
	}
	t.Lines = append(t.Lines, line)
	t.recalculateTotals()
	return &t.Lines[len(t.Lines)-1]
}

func (t *Transfer) recalculateTotals() {
	t.TotalQuantity = 0
	for _, line := range t.Lines {
		t.TotalQuantity += line.Quantity
	}
}

// Line returns the line with the given ID, or nil.
func (t *Transfer) Line(lineID id.ID) *TransferLine {
	for i := range t.Lines {
		if t.Lines[i].LineID == lineID {
			return &t.Lines[i]
		}
	}
	return nil
}

// CanReceive reports whether a receive operation may run.
func (t *Transfer) CanReceive() bool {
	return receivingStatuses[t.Status]
}

// IsFullyReceived reports whether every shipped quantity arrived.
func (t *Transfer) IsFullyReceived() bool {
	for i := range t.Lines {
		if t.Lines[i].InTransit() > 0 {
			return false
		}
	}
	return len(t.Lines) > 0
}

// Validate implements entity.Validatable.
func (t *Transfer) Validate(ctx context.Context) error {
	if err := t.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(t.FromWarehouseID) {
		return apperror.NewValidation("source warehouse is required").
			WithDetail("field", "fromWarehouseId")
	}
	if id.IsNil(t.ToWarehouseID) {
		return apperror.NewValidation("destination warehouse is required").
			WithDetail("field", "toWarehouseId")
	}
	if t.FromWarehouseID == t.ToWarehouseID {
		return apperror.NewValidation("source and destination warehouses must differ").
			WithDetail("field", "toWarehouseId")
	}
	if len(t.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i := range t.Lines {
		line := &t.Lines[i]
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
	}

	return nil
}

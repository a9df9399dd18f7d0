// Package purchase_order provides the PurchaseOrder document.
// Purchase orders never touch the ledger directly; approval and
// cancellation adjust the on-order projection, receipts consume it.
package purchase_order

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
const DocumentType = "PurchaseOrder"

// Order lifecycle states.
const (
	StatusDraft             docstate.Status = "draft"
	StatusSubmitted         docstate.Status = "submitted"
	StatusApproved          docstate.Status = "approved"
	StatusSent              docstate.Status = "sent"
	StatusPartiallyReceived docstate.Status = "partially_received"
	StatusFullyReceived     docstate.Status = "fully_received"
	StatusClosed            docstate.Status = "closed"
	StatusCancelled         docstate.Status = "cancelled"
)

// StateMachine returns the purchase order transition table.
// Cancellation is reachable from any pre-receipt state; once a receipt
// posted, the order can only move forward or be closed.
func StateMachine() *docstate.Machine {
	return docstate.New(DocumentType, docstate.Transitions{
		StatusDraft:             {StatusSubmitted, StatusCancelled},
		StatusSubmitted:         {StatusApproved, StatusDraft, StatusCancelled},
		StatusApproved:          {StatusSent, StatusPartiallyReceived, StatusFullyReceived, StatusCancelled},
		StatusSent:              {StatusPartiallyReceived, StatusFullyReceived, StatusCancelled},
		StatusPartiallyReceived: {StatusFullyReceived, StatusClosed},
		StatusFullyReceived:     {StatusPartiallyReceived, StatusClosed},
	})
}

// receivableStatuses are the states a receipt may post against.
var receivableStatuses = map[docstate.Status]bool{
	StatusApproved:          true,
	StatusSent:              true,
	StatusPartiallyReceived: true,
}

// PurchaseOrder represents an order placed with a supplier.
type PurchaseOrder struct {
	entity.Document

	SupplierID  id.ID `db:"supplier_id" json:"supplierId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Status docstate.Status `db:"status" json:"status"`

	Currency     string     `db:"currency" json:"currency"`
	ExpectedDate *time.Time `db:"expected_date" json:"expectedDate,omitempty"`

	// Totals (calculated from lines)
	TotalQuantity types.Quantity `db:"total_quantity" json:"totalQuantity"`
	TotalAmount   types.Money    `db:"total_amount" json:"totalAmount"`

	// Table part: ordered goods
	Lines []PurchaseOrderLine `db:"-" json:"lines"`
}

// PurchaseOrderLine is one ordered product.
type PurchaseOrderLine struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID `db:"product_id" json:"productId"`

	QuantityOrdered  types.Quantity `db:"quantity_ordered" json:"quantityOrdered"`
	QuantityReceived types.Quantity `db:"quantity_received" json:"quantityReceived"`

	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`
	Amount    types.Money `db:"amount" json:"amount"`
}

// Outstanding is the quantity still expected from the supplier.
func (l *PurchaseOrderLine) Outstanding() types.Quantity {
	out := l.QuantityOrdered - l.QuantityReceived
	if out < 0 {
		return 0
	}
	return out
}

// NewPurchaseOrder creates a draft order.
func NewPurchaseOrder(supplierID, warehouseID id.ID) *PurchaseOrder {
	return &PurchaseOrder{
		Document:    entity.NewDocument(),
		SupplierID:  supplierID,
		WarehouseID: warehouseID,
		Status:      StatusDraft,
		Currency:    "USD",
		Lines:       make([]PurchaseOrderLine, 0),
	}
}

// AddLine adds a line and recalculates totals.
func (p *PurchaseOrder) AddLine(productID id.ID, quantity types.Quantity, unitPrice types.Money) {
	line := PurchaseOrderLine{
		LineID:          id.New(),
		LineNo:          len(p.Lines) + 1,
		ProductID:       productID,
		QuantityOrdered: quantity,
		UnitPrice:       unitPrice,
		Amount:          quantity.MulMoney(unitPrice),
	}
	p.Lines = append(p.Lines, line)
	p.recalculateTotals()
}

func (p *PurchaseOrder) recalculateTotals() {
	p.TotalQuantity = 0
	p.TotalAmount = types.Zero()
	for _, line := range p.Lines {
		p.TotalQuantity += line.QuantityOrdered
		p.TotalAmount = p.TotalAmount.Add(line.Amount)
	}
}

// Line returns the line with the given ID, or nil.
func (p *PurchaseOrder) Line(lineID id.ID) *PurchaseOrderLine {
	for i := range p.Lines {
		if p.Lines[i].LineID == lineID {
			return &p.Lines[i]
		}
	}
	return nil
}

// IsReceivable reports whether a receipt may post against this order.
func (p *PurchaseOrder) IsReceivable() bool {
	return receivableStatuses[p.Status]
}

// IsFullyReceived reports whether every line reached its ordered quantity.
func (p *PurchaseOrder) IsFullyReceived() bool {
	for i := range p.Lines {
		if p.Lines[i].QuantityReceived < p.Lines[i].QuantityOrdered {
			return false
		}
	}
	return len(p.Lines) > 0
}

// HasReceipts reports whether any quantity was received.
func (p *PurchaseOrder) HasReceipts() bool {
	for i := range p.Lines {
		if p.Lines[i].QuantityReceived > 0 {
			return true
		}
	}
	return false
}

// Validate implements entity.Validatable.
func (p *PurchaseOrder) Validate(ctx context.Context) error {
	if err := p.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(p.SupplierID) {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}
	if id.IsNil(p.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if len(p.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i := range p.Lines {
		line := &p.Lines[i]
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
		if !line.QuantityOrdered.IsPositive() {
			return apperror.NewValidation("ordered quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
		if line.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

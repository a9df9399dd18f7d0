// Package goods_receipt provides the GoodsReceipt document.
// Posting a receipt is the ledger-affecting transition: inbound
// movements at the warehouse, purchase order receipt registration and
// on-order release all happen in one transaction.
package goods_receipt

import (
	"context"
	"time"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/docstate"
	"wareflow/internal/domain/documents/purchase_order"
	"wareflow/internal/domain/posting"
)

// DocumentType is the type name used in references and events.
const DocumentType = "GoodsReceipt"

// Receipt lifecycle states. Posted mirrors the entity.Document flag.
const (
	StatusDraft     docstate.Status = "draft"
	StatusPosted    docstate.Status = "posted"
	StatusCancelled docstate.Status = "cancelled"
)

// StateMachine returns the receipt transition table.
func StateMachine() *docstate.Machine {
	return docstate.New(DocumentType, docstate.Transitions{
		StatusDraft:  {StatusPosted, StatusCancelled},
		StatusPosted: {StatusDraft},
	})
}

// GoodsReceipt records incoming goods from a supplier, optionally
// against a purchase order.
type GoodsReceipt struct {
	entity.Document

	SupplierID  id.ID `db:"supplier_id" json:"supplierId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// PurchaseOrderID links the receipt to the order it fulfills.
	PurchaseOrderID *id.ID `db:"purchase_order_id" json:"purchaseOrderId,omitempty"`

	Status docstate.Status `db:"status" json:"status"`

	// Supplier's document reference
	SupplierDocNumber string     `db:"supplier_doc_number" json:"supplierDocNumber,omitempty"`
	SupplierDocDate   *time.Time `db:"supplier_doc_date" json:"supplierDocDate,omitempty"`

	Currency string `db:"currency" json:"currency"`

	// Totals (calculated from lines)
	TotalQuantity types.Quantity `db:"total_quantity" json:"totalQuantity"`
	TotalAmount   types.Money    `db:"total_amount" json:"totalAmount"`

	// Table part: received goods
	Lines []GoodsReceiptLine `db:"-" json:"lines"`

	// order is the linked purchase order snapshot, attached by the
	// service before posting for on-order release computation.
	order *purchase_order.PurchaseOrder
}

// GoodsReceiptLine represents a line in the goods receipt.
type GoodsReceiptLine struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID `db:"product_id" json:"productId"`

	// POLineID links to the purchase order line being fulfilled.
	POLineID *id.ID `db:"po_line_id" json:"poLineId,omitempty"`

	// Optional storage dimensions at the destination.
	BinID   *id.ID `db:"bin_id" json:"binId,omitempty"`
	BatchID *id.ID `db:"batch_id" json:"batchId,omitempty"`

	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice types.Money    `db:"unit_price" json:"unitPrice"`
	Amount    types.Money    `db:"amount" json:"amount"`
}

// NewGoodsReceipt creates a new draft receipt.
func NewGoodsReceipt(supplierID, warehouseID id.ID) *GoodsReceipt {
	return &GoodsReceipt{
		Document:    entity.NewDocument(),
		SupplierID:  supplierID,
		WarehouseID: warehouseID,
		Status:      StatusDraft,
		Currency:    "USD",
		Lines:       make([]GoodsReceiptLine, 0),
	}
}

// AddLine adds a line and recalculates totals.
func (g *GoodsReceipt) AddLine(productID id.ID, quantity types.Quantity, unitPrice types.Money) *GoodsReceiptLine {
	line := GoodsReceiptLine{
		LineID:    id.New(),
		LineNo:    len(g.Lines) + 1,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Amount:    quantity.MulMoney(unitPrice),
	}
	g.Lines = append(g.Lines, line)
	g.recalculateTotals()
	return &g.Lines[len(g.Lines)-1]
}

func (g *GoodsReceipt) recalculateTotals() {
	g.TotalQuantity = 0
	g.TotalAmount = types.Zero()
	for _, line := range g.Lines {
		g.TotalQuantity += line.Quantity
		g.TotalAmount = g.TotalAmount.Add(line.Amount)
	}
}

// AttachOrder hands the receipt its purchase order snapshot.
func (g *GoodsReceipt) AttachOrder(order *purchase_order.PurchaseOrder) {
	g.order = order
}

// ReceivedByOrderLine aggregates received quantities per linked
// purchase order line.
func (g *GoodsReceipt) ReceivedByOrderLine() map[id.ID]types.Quantity {
	received := make(map[id.ID]types.Quantity)
	for i := range g.Lines {
		if g.Lines[i].POLineID != nil {
			received[*g.Lines[i].POLineID] += g.Lines[i].Quantity
		}
	}
	return received
}

// Validate implements entity.Validatable.
func (g *GoodsReceipt) Validate(ctx context.Context) error {
	if err := g.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(g.SupplierID) {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}
	if id.IsNil(g.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if len(g.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i := range g.Lines {
		line := &g.Lines[i]
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
		if line.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
		if line.POLineID != nil && g.PurchaseOrderID == nil {
			return apperror.NewValidation("line references an order line but the receipt has no purchase order").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
	}

	return nil
}

// --- Postable interface implementation ---
// GetID, GetPostedVersion, IsPosted are inherited from entity.Document.

// GetDocumentType returns the document type name.
func (g *GoodsReceipt) GetDocumentType() string {
	return DocumentType
}

// CanPost allows posting from draft only.
func (g *GoodsReceipt) CanPost(ctx context.Context) error {
	if g.Status != StatusDraft {
		return apperror.NewInvalidStateTransition(DocumentType, string(g.Status), string(StatusPosted))
	}
	return g.Validate(ctx)
}

// MarkPosted flips the posted flag and the status together.
func (g *GoodsReceipt) MarkPosted() {
	g.Document.MarkPosted()
	g.Status = StatusPosted
}

// MarkUnposted clears the posted flag and returns the status to draft.
func (g *GoodsReceipt) MarkUnposted() {
	g.Document.MarkUnposted()
	g.Status = StatusDraft
}

// GenerateMovements creates one inbound movement per line, plus
// on-order release deltas for order-linked lines.
func (g *GoodsReceipt) GenerateMovements(ctx context.Context) (*posting.MovementSet, error) {
	set := posting.NewMovementSet()
	newVersion := g.PostedVersion + 1

	for i := range g.Lines {
		line := &g.Lines[i]
		m := entity.NewStockMovement(
			entity.MovementPurchaseReceipt,
			line.ProductID,
			line.Quantity,
			DocumentType,
			g.ID,
			newVersion,
			g.Date,
		).WithDestination(g.WarehouseID, line.BinID, line.BatchID)
		m.UnitCost = line.UnitPrice

		set.AddStock(m)
	}

	for _, d := range g.onOrderReleases() {
		set.AddExtra(d)
	}

	set.AddEventField("number", g.Number)
	if g.PurchaseOrderID != nil {
		set.AddEventField("purchaseOrderId", g.PurchaseOrderID.String())
	}
	return set, nil
}

// onOrderReleases builds negative on-order deltas for order-linked
// lines, capped at each order line's outstanding quantity.
func (g *GoodsReceipt) onOrderReleases() []entity.LevelDelta {
	if g.order == nil {
		return nil
	}

	var deltas []entity.LevelDelta
	for i := range g.Lines {
		line := &g.Lines[i]
		if line.POLineID == nil {
			continue
		}
		orderLine := g.order.Line(*line.POLineID)
		if orderLine == nil {
			continue
		}
		release := line.Quantity.Min(orderLine.Outstanding())
		if !release.IsPositive() {
			continue
		}
		deltas = append(deltas, entity.LevelDelta{
			Key: entity.StockKey{
				ProductID:   line.ProductID,
				WarehouseID: g.order.WarehouseID,
			},
			OnOrder: release.Neg(),
		})
	}
	return deltas
}

// GenerateUnpostExtras restores the on-order quantity this receipt
// released. The order snapshot still includes this receipt's
// quantities, so the restore is capped at what posting consumed.
func (g *GoodsReceipt) GenerateUnpostExtras(ctx context.Context) ([]entity.LevelDelta, error) {
	if g.order == nil {
		return nil, nil
	}

	var deltas []entity.LevelDelta
	for i := range g.Lines {
		line := &g.Lines[i]
		if line.POLineID == nil {
			continue
		}
		orderLine := g.order.Line(*line.POLineID)
		if orderLine == nil {
			continue
		}
		// Outstanding before this receipt posted.
		outstandingBefore := orderLine.QuantityOrdered - orderLine.QuantityReceived + line.Quantity
		if outstandingBefore < 0 {
			outstandingBefore = 0
		}
		restore := line.Quantity.Min(outstandingBefore)
		if !restore.IsPositive() {
			continue
		}
		deltas = append(deltas, entity.LevelDelta{
			Key: entity.StockKey{
				ProductID:   line.ProductID,
				WarehouseID: g.order.WarehouseID,
			},
			OnOrder: restore,
		})
	}
	return deltas, nil
}

// Ensure interface compliance at compile time.
var (
	_ posting.Postable      = (*GoodsReceipt)(nil)
	_ posting.ExtraUnposter = (*GoodsReceipt)(nil)
)

package dto

import (
	"time"

	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/documents/purchase_order"
)

// --- Request DTOs ---

// CreatePurchaseOrderRequest represents a request to create a purchase order.
type CreatePurchaseOrderRequest struct {
	Number       string                     `json:"number,omitempty"`
	Date         time.Time                  `json:"date,omitempty"`
	SupplierID   string                     `json:"supplierId" binding:"required"`
	WarehouseID  string                     `json:"warehouseId" binding:"required"`
	Currency     string                     `json:"currency,omitempty"`
	ExpectedDate *time.Time                 `json:"expectedDate,omitempty"`
	Comment      string                     `json:"comment,omitempty"`
	Lines        []PurchaseOrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// PurchaseOrderLineRequest represents a line in create/update request.
type PurchaseOrderLineRequest struct {
	ProductID string         `json:"productId" binding:"required"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	UnitPrice types.Money    `json:"unitPrice"`
}

// ToEntity converts request to domain entity.
func (r *CreatePurchaseOrderRequest) ToEntity() *purchase_order.PurchaseOrder {
	supplierID, _ := id.Parse(r.SupplierID)
	warehouseID, _ := id.Parse(r.WarehouseID)

	doc := purchase_order.NewPurchaseOrder(supplierID, warehouseID)
	doc.Number = r.Number
	if !r.Date.IsZero() {
		doc.Date = r.Date
	}
	if r.Currency != "" {
		doc.Currency = r.Currency
	}
	doc.ExpectedDate = r.ExpectedDate
	doc.Comment = r.Comment

	for _, line := range r.Lines {
		productID, _ := id.Parse(line.ProductID)
		doc.AddLine(productID, line.Quantity, line.UnitPrice)
	}

	return doc
}

// UpdatePurchaseOrderRequest represents a request to update a purchase order.
type UpdatePurchaseOrderRequest struct {
	Number       *string                    `json:"number,omitempty"`
	Date         *time.Time                 `json:"date,omitempty"`
	SupplierID   *string                    `json:"supplierId,omitempty"`
	WarehouseID  *string                    `json:"warehouseId,omitempty"`
	Currency     *string                    `json:"currency,omitempty"`
	ExpectedDate *time.Time                 `json:"expectedDate,omitempty"`
	Comment      *string                    `json:"comment,omitempty"`
	Lines        []PurchaseOrderLineRequest `json:"lines,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdatePurchaseOrderRequest) ApplyTo(doc *purchase_order.PurchaseOrder) {
	if r.Number != nil {
		doc.Number = *r.Number
	}
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.SupplierID != nil {
		supplierID, _ := id.Parse(*r.SupplierID)
		doc.SupplierID = supplierID
	}
	if r.WarehouseID != nil {
		warehouseID, _ := id.Parse(*r.WarehouseID)
		doc.WarehouseID = warehouseID
	}
	if r.Currency != nil {
		doc.Currency = *r.Currency
	}
	if r.ExpectedDate != nil {
		doc.ExpectedDate = r.ExpectedDate
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}

	// If lines are provided, rebuild them
	if r.Lines != nil {
		doc.Lines = doc.Lines[:0]
		for _, line := range r.Lines {
			productID, _ := id.Parse(line.ProductID)
			doc.AddLine(productID, line.Quantity, line.UnitPrice)
		}
	}
}

// --- Response DTOs ---

// PurchaseOrderResponse represents a purchase order in API responses.
type PurchaseOrderResponse struct {
	DocumentResponse
	SupplierID    string                      `json:"supplierId"`
	WarehouseID   string                      `json:"warehouseId"`
	Status        string                      `json:"status"`
	Currency      string                      `json:"currency"`
	ExpectedDate  *time.Time                  `json:"expectedDate,omitempty"`
	TotalQuantity types.Quantity              `json:"totalQuantity"`
	TotalAmount   types.Money                 `json:"totalAmount"`
	Lines         []PurchaseOrderLineResponse `json:"lines,omitempty"`
}

// PurchaseOrderLineResponse represents a line in API responses.
type PurchaseOrderLineResponse struct {
	LineID           string         `json:"lineId"`
	LineNo           int            `json:"lineNo"`
	ProductID        string         `json:"productId"`
	QuantityOrdered  types.Quantity `json:"quantityOrdered"`
	QuantityReceived types.Quantity `json:"quantityReceived"`
	Outstanding      types.Quantity `json:"outstanding"`
	UnitPrice        types.Money    `json:"unitPrice"`
	Amount           types.Money    `json:"amount"`
}

// FromPurchaseOrder converts domain entity to response DTO.
func FromPurchaseOrder(doc *purchase_order.PurchaseOrder) *PurchaseOrderResponse {
	resp := &PurchaseOrderResponse{
		DocumentResponse: FromDocument(doc.Document),
		SupplierID:       doc.SupplierID.String(),
		WarehouseID:      doc.WarehouseID.String(),
		Status:           string(doc.Status),
		Currency:         doc.Currency,
		ExpectedDate:     doc.ExpectedDate,
		TotalQuantity:    doc.TotalQuantity,
		TotalAmount:      doc.TotalAmount,
	}

	resp.Lines = make([]PurchaseOrderLineResponse, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		resp.Lines[i] = PurchaseOrderLineResponse{
			LineID:           line.LineID.String(),
			LineNo:           line.LineNo,
			ProductID:        line.ProductID.String(),
			QuantityOrdered:  line.QuantityOrdered,
			QuantityReceived: line.QuantityReceived,
			Outstanding:      line.Outstanding(),
			UnitPrice:        line.UnitPrice,
			Amount:           line.Amount,
		}
	}

	return resp
}

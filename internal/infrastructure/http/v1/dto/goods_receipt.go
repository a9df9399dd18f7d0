package dto

import (
	"time"

	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/documents/goods_receipt"
)

// --- Request DTOs ---

// CreateGoodsReceiptRequest represents a request to create a goods receipt.
type CreateGoodsReceiptRequest struct {
	Number            string                    `json:"number,omitempty"`
	Date              time.Time                 `json:"date,omitempty"`
	SupplierID        string                    `json:"supplierId" binding:"required"`
	WarehouseID       string                    `json:"warehouseId" binding:"required"`
	PurchaseOrderID   string                    `json:"purchaseOrderId,omitempty"`
	SupplierDocNumber string                    `json:"supplierDocNumber,omitempty"`
	SupplierDocDate   *time.Time                `json:"supplierDocDate,omitempty"`
	Currency          string                    `json:"currency,omitempty"`
	Comment           string                    `json:"comment,omitempty"`
	Lines             []GoodsReceiptLineRequest `json:"lines" binding:"required,min=1,dive"`
	PostImmediately   bool                      `json:"postImmediately,omitempty"`
}

// GoodsReceiptLineRequest represents a line in create/update request.
type GoodsReceiptLineRequest struct {
	ProductID string         `json:"productId" binding:"required"`
	POLineID  string         `json:"poLineId,omitempty"`
	BinID     string         `json:"binId,omitempty"`
	BatchID   string         `json:"batchId,omitempty"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	UnitPrice types.Money    `json:"unitPrice"`
}

// ToEntity converts request to domain entity.
func (r *CreateGoodsReceiptRequest) ToEntity() *goods_receipt.GoodsReceipt {
	supplierID, _ := id.Parse(r.SupplierID)
	warehouseID, _ := id.Parse(r.WarehouseID)

	doc := goods_receipt.NewGoodsReceipt(supplierID, warehouseID)
	doc.Number = r.Number
	if !r.Date.IsZero() {
		doc.Date = r.Date
	}
	doc.PurchaseOrderID = parseOptionalID(r.PurchaseOrderID)
	doc.SupplierDocNumber = r.SupplierDocNumber
	doc.SupplierDocDate = r.SupplierDocDate
	doc.Comment = r.Comment

	if r.Currency != "" {
		doc.Currency = r.Currency
	}

	for _, lr := range r.Lines {
		productID, _ := id.Parse(lr.ProductID)
		line := doc.AddLine(productID, lr.Quantity, lr.UnitPrice)
		line.POLineID = parseOptionalID(lr.POLineID)
		line.BinID = parseOptionalID(lr.BinID)
		line.BatchID = parseOptionalID(lr.BatchID)
	}

	return doc
}

// UpdateGoodsReceiptRequest represents a request to update a goods receipt.
type UpdateGoodsReceiptRequest struct {
	Number            *string                   `json:"number,omitempty"`
	Date              *time.Time                `json:"date,omitempty"`
	SupplierID        *string                   `json:"supplierId,omitempty"`
	WarehouseID       *string                   `json:"warehouseId,omitempty"`
	PurchaseOrderID   *string                   `json:"purchaseOrderId,omitempty"`
	SupplierDocNumber *string                   `json:"supplierDocNumber,omitempty"`
	SupplierDocDate   *time.Time                `json:"supplierDocDate,omitempty"`
	Currency          *string                   `json:"currency,omitempty"`
	Comment           *string                   `json:"comment,omitempty"`
	Lines             []GoodsReceiptLineRequest `json:"lines,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateGoodsReceiptRequest) ApplyTo(doc *goods_receipt.GoodsReceipt) {
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
	if r.PurchaseOrderID != nil {
		doc.PurchaseOrderID = parseOptionalID(*r.PurchaseOrderID)
	}
	if r.SupplierDocNumber != nil {
		doc.SupplierDocNumber = *r.SupplierDocNumber
	}
	if r.SupplierDocDate != nil {
		doc.SupplierDocDate = r.SupplierDocDate
	}
	if r.Currency != nil {
		doc.Currency = *r.Currency
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}

	// If lines are provided, rebuild them
	if r.Lines != nil {
		doc.Lines = doc.Lines[:0]
		for _, lr := range r.Lines {
			productID, _ := id.Parse(lr.ProductID)
			line := doc.AddLine(productID, lr.Quantity, lr.UnitPrice)
			line.POLineID = parseOptionalID(lr.POLineID)
			line.BinID = parseOptionalID(lr.BinID)
			line.BatchID = parseOptionalID(lr.BatchID)
		}
	}
}

// --- Response DTOs ---

// GoodsReceiptResponse represents a goods receipt in API responses.
type GoodsReceiptResponse struct {
	DocumentResponse
	SupplierID        string                     `json:"supplierId"`
	WarehouseID       string                     `json:"warehouseId"`
	PurchaseOrderID   *string                    `json:"purchaseOrderId,omitempty"`
	Status            string                     `json:"status"`
	SupplierDocNumber string                     `json:"supplierDocNumber,omitempty"`
	SupplierDocDate   *time.Time                 `json:"supplierDocDate,omitempty"`
	Currency          string                     `json:"currency"`
	TotalQuantity     types.Quantity             `json:"totalQuantity"`
	TotalAmount       types.Money                `json:"totalAmount"`
	Lines             []GoodsReceiptLineResponse `json:"lines,omitempty"`
}

// GoodsReceiptLineResponse represents a line in API responses.
type GoodsReceiptLineResponse struct {
	LineID    string         `json:"lineId"`
	LineNo    int            `json:"lineNo"`
	ProductID string         `json:"productId"`
	POLineID  *string        `json:"poLineId,omitempty"`
	BinID     *string        `json:"binId,omitempty"`
	BatchID   *string        `json:"batchId,omitempty"`
	Quantity  types.Quantity `json:"quantity"`
	UnitPrice types.Money    `json:"unitPrice"`
	Amount    types.Money    `json:"amount"`
}

// FromGoodsReceipt converts domain entity to response DTO.
func FromGoodsReceipt(doc *goods_receipt.GoodsReceipt) *GoodsReceiptResponse {
	resp := &GoodsReceiptResponse{
		DocumentResponse:  FromDocument(doc.Document),
		SupplierID:        doc.SupplierID.String(),
		WarehouseID:       doc.WarehouseID.String(),
		PurchaseOrderID:   optionalIDString(doc.PurchaseOrderID),
		Status:            string(doc.Status),
		SupplierDocNumber: doc.SupplierDocNumber,
		SupplierDocDate:   doc.SupplierDocDate,
		Currency:          doc.Currency,
		TotalQuantity:     doc.TotalQuantity,
		TotalAmount:       doc.TotalAmount,
	}

	resp.Lines = make([]GoodsReceiptLineResponse, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		resp.Lines[i] = GoodsReceiptLineResponse{
			LineID:    line.LineID.String(),
			LineNo:    line.LineNo,
			ProductID: line.ProductID.String(),
			POLineID:  optionalIDString(line.POLineID),
			BinID:     optionalIDString(line.BinID),
			BatchID:   optionalIDString(line.BatchID),
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Amount:    line.Amount,
		}
	}

	return resp
}

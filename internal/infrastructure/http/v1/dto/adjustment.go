package dto

import (
	"time"

	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/documents/adjustment"
)

// --- Request DTOs ---

// CreateAdjustmentRequest represents a request to create a stock adjustment.
type CreateAdjustmentRequest struct {
	Number      string                  `json:"number,omitempty"`
	Date        time.Time               `json:"date,omitempty"`
	WarehouseID string                  `json:"warehouseId" binding:"required"`
	Reason      string                  `json:"reason" binding:"required"`
	Comment     string                  `json:"comment,omitempty"`
	Lines       []AdjustmentLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// AdjustmentLineRequest represents a signed correction line.
// Positive quantities add stock, negative write it off.
type AdjustmentLineRequest struct {
	ProductID string         `json:"productId" binding:"required"`
	BinID     string         `json:"binId,omitempty"`
	BatchID   string         `json:"batchId,omitempty"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	UnitCost  types.Money    `json:"unitCost"`
}

// ToEntity converts request to domain entity.
func (r *CreateAdjustmentRequest) ToEntity() *adjustment.StockAdjustment {
	warehouseID, _ := id.Parse(r.WarehouseID)

	doc := adjustment.NewStockAdjustment(warehouseID, r.Reason)
	doc.Number = r.Number
	if !r.Date.IsZero() {
		doc.Date = r.Date
	}
	doc.Comment = r.Comment

	for _, lr := range r.Lines {
		productID, _ := id.Parse(lr.ProductID)
		line := doc.AddLine(productID, lr.Quantity, lr.UnitCost)
		line.BinID = parseOptionalID(lr.BinID)
		line.BatchID = parseOptionalID(lr.BatchID)
	}

	return doc
}

// UpdateAdjustmentRequest represents a request to update a stock adjustment.
type UpdateAdjustmentRequest struct {
	Number      *string                 `json:"number,omitempty"`
	Date        *time.Time              `json:"date,omitempty"`
	WarehouseID *string                 `json:"warehouseId,omitempty"`
	Reason      *string                 `json:"reason,omitempty"`
	Comment     *string                 `json:"comment,omitempty"`
	Lines       []AdjustmentLineRequest `json:"lines,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateAdjustmentRequest) ApplyTo(doc *adjustment.StockAdjustment) {
	if r.Number != nil {
		doc.Number = *r.Number
	}
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.WarehouseID != nil {
		warehouseID, _ := id.Parse(*r.WarehouseID)
		doc.WarehouseID = warehouseID
	}
	if r.Reason != nil {
		doc.Reason = *r.Reason
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}

	// If lines are provided, rebuild them
	if r.Lines != nil {
		doc.Lines = doc.Lines[:0]
		for _, lr := range r.Lines {
			productID, _ := id.Parse(lr.ProductID)
			line := doc.AddLine(productID, lr.Quantity, lr.UnitCost)
			line.BinID = parseOptionalID(lr.BinID)
			line.BatchID = parseOptionalID(lr.BatchID)
		}
	}
}

// --- Response DTOs ---

// AdjustmentResponse represents a stock adjustment in API responses.
type AdjustmentResponse struct {
	DocumentResponse
	WarehouseID string                   `json:"warehouseId"`
	Status      string                   `json:"status"`
	Reason      string                   `json:"reason"`
	ApprovedBy  string                   `json:"approvedBy,omitempty"`
	TotalValue  types.Money              `json:"totalValue"`
	Lines       []AdjustmentLineResponse `json:"lines,omitempty"`
}

// AdjustmentLineResponse represents a line in API responses.
type AdjustmentLineResponse struct {
	LineID    string         `json:"lineId"`
	LineNo    int            `json:"lineNo"`
	ProductID string         `json:"productId"`
	BinID     *string        `json:"binId,omitempty"`
	BatchID   *string        `json:"batchId,omitempty"`
	Quantity  types.Quantity `json:"quantity"`
	UnitCost  types.Money    `json:"unitCost"`
	Value     types.Money    `json:"value"`
}

// FromAdjustment converts domain entity to response DTO.
func FromAdjustment(doc *adjustment.StockAdjustment) *AdjustmentResponse {
	resp := &AdjustmentResponse{
		DocumentResponse: FromDocument(doc.Document),
		WarehouseID:      doc.WarehouseID.String(),
		Status:           string(doc.Status),
		Reason:           doc.Reason,
		ApprovedBy:       doc.ApprovedBy,
		TotalValue:       doc.TotalValue,
	}

	resp.Lines = make([]AdjustmentLineResponse, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		resp.Lines[i] = AdjustmentLineResponse{
			LineID:    line.LineID.String(),
			LineNo:    line.LineNo,
			ProductID: line.ProductID.String(),
			BinID:     optionalIDString(line.BinID),
			BatchID:   optionalIDString(line.BatchID),
			Quantity:  line.Quantity,
			UnitCost:  line.UnitCost,
			Value:     line.Value(),
		}
	}

	return resp
}

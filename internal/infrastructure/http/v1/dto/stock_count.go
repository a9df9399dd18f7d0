package dto

import (
	"time"

	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/documents/stock_count"
)

// --- Request DTOs ---

// CreateStockCountRequest represents a request to schedule a stock count.
type CreateStockCountRequest struct {
	Number       string                  `json:"number,omitempty"`
	Date         time.Time               `json:"date,omitempty"`
	WarehouseID  string                  `json:"warehouseId" binding:"required"`
	ScheduledFor *time.Time              `json:"scheduledFor,omitempty"`
	Comment      string                  `json:"comment,omitempty"`
	Lines        []StockCountLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// StockCountLineRequest names one position to count.
type StockCountLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	BinID     string `json:"binId,omitempty"`
	BatchID   string `json:"batchId,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateStockCountRequest) ToEntity() *stock_count.StockCount {
	warehouseID, _ := id.Parse(r.WarehouseID)

	doc := stock_count.NewStockCount(warehouseID)
	doc.Number = r.Number
	if !r.Date.IsZero() {
		doc.Date = r.Date
	}
	doc.ScheduledFor = r.ScheduledFor
	doc.Comment = r.Comment

	for _, lr := range r.Lines {
		productID, _ := id.Parse(lr.ProductID)
		doc.AddLine(productID, parseOptionalID(lr.BinID), parseOptionalID(lr.BatchID))
	}

	return doc
}

// UpdateStockCountRequest represents a request to update a stock count.
type UpdateStockCountRequest struct {
	Number       *string                 `json:"number,omitempty"`
	Date         *time.Time              `json:"date,omitempty"`
	WarehouseID  *string                 `json:"warehouseId,omitempty"`
	ScheduledFor *time.Time              `json:"scheduledFor,omitempty"`
	Comment      *string                 `json:"comment,omitempty"`
	Lines        []StockCountLineRequest `json:"lines,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateStockCountRequest) ApplyTo(doc *stock_count.StockCount) {
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
	if r.ScheduledFor != nil {
		doc.ScheduledFor = r.ScheduledFor
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}

	// If lines are provided, rebuild them
	if r.Lines != nil {
		doc.Lines = doc.Lines[:0]
		for _, lr := range r.Lines {
			productID, _ := id.Parse(lr.ProductID)
			doc.AddLine(productID, parseOptionalID(lr.BinID), parseOptionalID(lr.BatchID))
		}
	}
}

// RecordCountRequest captures a physical count for one line.
type RecordCountRequest struct {
	LineID   string         `json:"lineId" binding:"required"`
	Quantity types.Quantity `json:"quantity"`
}

// OverrideRecountRequest accepts a variance without recounting.
type OverrideRecountRequest struct {
	LineID string `json:"lineId" binding:"required"`
}

// --- Response DTOs ---

// StockCountResponse represents a stock count in API responses.
type StockCountResponse struct {
	DocumentResponse
	WarehouseID  string                   `json:"warehouseId"`
	Status       string                   `json:"status"`
	ScheduledFor *time.Time               `json:"scheduledFor,omitempty"`
	StartedAt    *time.Time               `json:"startedAt,omitempty"`
	Lines        []StockCountLineResponse `json:"lines,omitempty"`
}

// StockCountLineResponse represents a line in API responses.
type StockCountLineResponse struct {
	LineID            string         `json:"lineId"`
	LineNo            int            `json:"lineNo"`
	ProductID         string         `json:"productId"`
	BinID             *string        `json:"binId,omitempty"`
	BatchID           *string        `json:"batchId,omitempty"`
	SystemQuantity    types.Quantity `json:"systemQuantity"`
	CountedQuantity   types.Quantity `json:"countedQuantity"`
	Counted           bool           `json:"counted"`
	CountedAt         *time.Time     `json:"countedAt,omitempty"`
	Variance          types.Quantity `json:"variance"`
	VariancePercent   float64        `json:"variancePercent"`
	RecountRequired   bool           `json:"recountRequired"`
	RecountOverridden bool           `json:"recountOverridden"`
}

// FromStockCount converts domain entity to response DTO.
func FromStockCount(doc *stock_count.StockCount) *StockCountResponse {
	resp := &StockCountResponse{
		DocumentResponse: FromDocument(doc.Document),
		WarehouseID:      doc.WarehouseID.String(),
		Status:           string(doc.Status),
		ScheduledFor:     doc.ScheduledFor,
		StartedAt:        doc.StartedAt,
	}

	resp.Lines = make([]StockCountLineResponse, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		resp.Lines[i] = StockCountLineResponse{
			LineID:            line.LineID.String(),
			LineNo:            line.LineNo,
			ProductID:         line.ProductID.String(),
			BinID:             optionalIDString(line.BinID),
			BatchID:           optionalIDString(line.BatchID),
			SystemQuantity:    line.SystemQuantity,
			CountedQuantity:   line.CountedQuantity,
			Counted:           line.Counted,
			CountedAt:         line.CountedAt,
			Variance:          line.Variance,
			VariancePercent:   line.VariancePercent(),
			RecountRequired:   line.RecountRequired,
			RecountOverridden: line.RecountOverridden,
		}
	}

	return resp
}

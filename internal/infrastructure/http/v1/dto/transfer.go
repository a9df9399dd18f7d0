package dto

import (
	"time"

	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/documents/transfer"
)

// --- Request DTOs ---

// CreateTransferRequest represents a request to create a warehouse transfer.
type CreateTransferRequest struct {
	Number          string                `json:"number,omitempty"`
	Date            time.Time             `json:"date,omitempty"`
	FromWarehouseID string                `json:"fromWarehouseId" binding:"required"`
	ToWarehouseID   string                `json:"toWarehouseId" binding:"required"`
	Comment         string                `json:"comment,omitempty"`
	Lines           []TransferLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// TransferLineRequest represents a line in create/update request.
type TransferLineRequest struct {
	ProductID string         `json:"productId" binding:"required"`
	FromBinID string         `json:"fromBinId,omitempty"`
	ToBinID   string         `json:"toBinId,omitempty"`
	BatchID   string         `json:"batchId,omitempty"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
}

// ToEntity converts request to domain entity.
func (r *CreateTransferRequest) ToEntity() *transfer.Transfer {
	fromID, _ := id.Parse(r.FromWarehouseID)
	toID, _ := id.Parse(r.ToWarehouseID)

	doc := transfer.NewTransfer(fromID, toID)
	doc.Number = r.Number
	if !r.Date.IsZero() {
		doc.Date = r.Date
	}
	doc.Comment = r.Comment

	for _, lr := range r.Lines {
		productID, _ := id.Parse(lr.ProductID)
		line := doc.AddLine(productID, lr.Quantity)
		line.FromBinID = parseOptionalID(lr.FromBinID)
		line.ToBinID = parseOptionalID(lr.ToBinID)
		line.BatchID = parseOptionalID(lr.BatchID)
	}

	return doc
}

// UpdateTransferRequest represents a request to update a transfer.
type UpdateTransferRequest struct {
	Number          *string               `json:"number,omitempty"`
	Date            *time.Time            `json:"date,omitempty"`
	FromWarehouseID *string               `json:"fromWarehouseId,omitempty"`
	ToWarehouseID   *string               `json:"toWarehouseId,omitempty"`
	Comment         *string               `json:"comment,omitempty"`
	Lines           []TransferLineRequest `json:"lines,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateTransferRequest) ApplyTo(doc *transfer.Transfer) {
	if r.Number != nil {
		doc.Number = *r.Number
	}
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.FromWarehouseID != nil {
		fromID, _ := id.Parse(*r.FromWarehouseID)
		doc.FromWarehouseID = fromID
	}
	if r.ToWarehouseID != nil {
		toID, _ := id.Parse(*r.ToWarehouseID)
		doc.ToWarehouseID = toID
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}

	// If lines are provided, rebuild them
	if r.Lines != nil {
		doc.Lines = doc.Lines[:0]
		for _, lr := range r.Lines {
			productID, _ := id.Parse(lr.ProductID)
			line := doc.AddLine(productID, lr.Quantity)
			line.FromBinID = parseOptionalID(lr.FromBinID)
			line.ToBinID = parseOptionalID(lr.ToBinID)
			line.BatchID = parseOptionalID(lr.BatchID)
		}
	}
}

// ReceiveTransferRequest carries received quantities per line.
type ReceiveTransferRequest struct {
	Lines []ReceiveTransferLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ReceiveTransferLineRequest is one received line.
type ReceiveTransferLineRequest struct {
	LineID   string         `json:"lineId" binding:"required"`
	Quantity types.Quantity `json:"quantity" binding:"required"`
}

// ReceivedQuantities converts the request to a lineID keyed map.
func (r *ReceiveTransferRequest) ReceivedQuantities() (map[id.ID]types.Quantity, error) {
	received := make(map[id.ID]types.Quantity, len(r.Lines))
	for _, line := range r.Lines {
		lineID, err := id.Parse(line.LineID)
		if err != nil {
			return nil, err
		}
		received[lineID] = line.Quantity
	}
	return received, nil
}

// --- Response DTOs ---

// TransferResponse represents a transfer in API responses.
type TransferResponse struct {
	DocumentResponse
	FromWarehouseID string                 `json:"fromWarehouseId"`
	ToWarehouseID   string                 `json:"toWarehouseId"`
	Status          string                 `json:"status"`
	ShippedAt       *time.Time             `json:"shippedAt,omitempty"`
	ReceivedAt      *time.Time             `json:"receivedAt,omitempty"`
	TotalQuantity   types.Quantity         `json:"totalQuantity"`
	Lines           []TransferLineResponse `json:"lines,omitempty"`
}

// TransferLineResponse represents a line in API responses.
type TransferLineResponse struct {
	LineID           string         `json:"lineId"`
	LineNo           int            `json:"lineNo"`
	ProductID        string         `json:"productId"`
	FromBinID        *string        `json:"fromBinId,omitempty"`
	ToBinID          *string        `json:"toBinId,omitempty"`
	BatchID          *string        `json:"batchId,omitempty"`
	Quantity         types.Quantity `json:"quantity"`
	QuantityShipped  types.Quantity `json:"quantityShipped"`
	QuantityReceived types.Quantity `json:"quantityReceived"`
	InTransit        types.Quantity `json:"inTransit"`
	VarianceQuantity types.Quantity `json:"varianceQuantity"`
	ShippedUnitCost  types.Money    `json:"shippedUnitCost"`
}

// FromTransfer converts domain entity to response DTO.
func FromTransfer(doc *transfer.Transfer) *TransferResponse {
	resp := &TransferResponse{
		DocumentResponse: FromDocument(doc.Document),
		FromWarehouseID:  doc.FromWarehouseID.String(),
		ToWarehouseID:    doc.ToWarehouseID.String(),
		Status:           string(doc.Status),
		ShippedAt:        doc.ShippedAt,
		ReceivedAt:       doc.ReceivedAt,
		TotalQuantity:    doc.TotalQuantity,
	}

	resp.Lines = make([]TransferLineResponse, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		resp.Lines[i] = TransferLineResponse{
			LineID:           line.LineID.String(),
			LineNo:           line.LineNo,
			ProductID:        line.ProductID.String(),
			FromBinID:        optionalIDString(line.FromBinID),
			ToBinID:          optionalIDString(line.ToBinID),
			BatchID:          optionalIDString(line.BatchID),
			Quantity:         line.Quantity,
			QuantityShipped:  line.QuantityShipped,
			QuantityReceived: line.QuantityReceived,
			InTransit:        line.InTransit(),
			VarianceQuantity: line.VarianceQuantity,
			ShippedUnitCost:  line.ShippedUnitCost,
		}
	}

	return resp
}

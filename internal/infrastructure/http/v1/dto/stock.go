package dto

import (
	"time"

	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/registers/stock"
)

// --- Response DTOs for Stock Register ---

// StockLevelResponse represents one stock level row in API responses.
type StockLevelResponse struct {
	ProductID         string         `json:"productId"`
	WarehouseID       string         `json:"warehouseId"`
	BinID             string         `json:"binId,omitempty"`
	BatchID           string         `json:"batchId,omitempty"`
	QuantityOnHand    types.Quantity `json:"quantityOnHand"`
	QuantityReserved  types.Quantity `json:"quantityReserved"`
	QuantityOnOrder   types.Quantity `json:"quantityOnOrder"`
	QuantityInTransit types.Quantity `json:"quantityInTransit"`
	QuantityAvailable types.Quantity `json:"quantityAvailable"`
	UnitCost          types.Money    `json:"unitCost"`
	LastMovementAt    *time.Time     `json:"lastMovementAt,omitempty"`
}

// FromStockLevel converts entity to response DTO.
func FromStockLevel(l *entity.StockLevel) StockLevelResponse {
	resp := StockLevelResponse{
		ProductID:         l.ProductID.String(),
		WarehouseID:       l.WarehouseID.String(),
		QuantityOnHand:    l.QuantityOnHand,
		QuantityReserved:  l.QuantityReserved,
		QuantityOnOrder:   l.QuantityOnOrder,
		QuantityInTransit: l.QuantityInTransit,
		QuantityAvailable: l.QuantityAvailable(),
		UnitCost:          l.UnitCost,
	}

	if !id.IsNil(l.BinID) {
		resp.BinID = l.BinID.String()
	}
	if !id.IsNil(l.BatchID) {
		resp.BatchID = l.BatchID.String()
	}
	if !l.LastMovementAt.IsZero() {
		val := l.LastMovementAt
		resp.LastMovementAt = &val
	}

	return resp
}

// StockMovementResponse represents one ledger entry in API responses.
type StockMovementResponse struct {
	LineID           string         `json:"lineId"`
	MovementType     string         `json:"movementType"`
	ProductID        string         `json:"productId"`
	FromWarehouseID  *string        `json:"fromWarehouseId,omitempty"`
	FromBinID        *string        `json:"fromBinId,omitempty"`
	FromBatchID      *string        `json:"fromBatchId,omitempty"`
	ToWarehouseID    *string        `json:"toWarehouseId,omitempty"`
	ToBinID          *string        `json:"toBinId,omitempty"`
	ToBatchID        *string        `json:"toBatchId,omitempty"`
	Quantity         types.Quantity `json:"quantity"`
	UnitCost         types.Money    `json:"unitCost"`
	TotalCost        types.Money    `json:"totalCost"`
	Unlayered        bool           `json:"unlayered,omitempty"`
	ReferenceType    string         `json:"referenceType"`
	ReferenceID      string         `json:"referenceId"`
	ReferenceVersion int            `json:"referenceVersion"`
	RunningBalance   types.Quantity `json:"runningBalance"`
	Status           string         `json:"status"`
	ReversalOf       *string        `json:"reversalOf,omitempty"`
	Period           time.Time      `json:"period"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// FromStockMovement converts entity to response DTO.
func FromStockMovement(m *entity.StockMovement) StockMovementResponse {
	return StockMovementResponse{
		LineID:           m.LineID.String(),
		MovementType:     string(m.MovementType),
		ProductID:        m.ProductID.String(),
		FromWarehouseID:  optionalIDString(m.FromWarehouseID),
		FromBinID:        optionalIDString(m.FromBinID),
		FromBatchID:      optionalIDString(m.FromBatchID),
		ToWarehouseID:    optionalIDString(m.ToWarehouseID),
		ToBinID:          optionalIDString(m.ToBinID),
		ToBatchID:        optionalIDString(m.ToBatchID),
		Quantity:         m.Quantity,
		UnitCost:         m.UnitCost,
		TotalCost:        m.TotalCost,
		Unlayered:        m.Unlayered,
		ReferenceType:    m.ReferenceType,
		ReferenceID:      m.ReferenceID.String(),
		ReferenceVersion: m.ReferenceVersion,
		RunningBalance:   m.RunningBalance,
		Status:           string(m.Status),
		ReversalOf:       optionalIDString(m.ReversalOf),
		Period:           m.Period,
		CreatedAt:        m.CreatedAt,
	}
}

// TurnoverResponse represents period turnover for a product or warehouse.
type TurnoverResponse struct {
	WarehouseID    string         `json:"warehouseId,omitempty"`
	ProductID      string         `json:"productId,omitempty"`
	OpeningBalance types.Quantity `json:"openingBalance"`
	Inbound        types.Quantity `json:"inbound"`
	Outbound       types.Quantity `json:"outbound"`
	ClosingBalance types.Quantity `json:"closingBalance"`
}

// FromTurnover converts domain turnover to response DTO.
func FromTurnover(t stock.Turnover) TurnoverResponse {
	resp := TurnoverResponse{
		OpeningBalance: t.OpeningBalance,
		Inbound:        t.Inbound,
		Outbound:       t.Outbound,
		ClosingBalance: t.ClosingBalance,
	}
	if !id.IsNil(t.WarehouseID) {
		resp.WarehouseID = t.WarehouseID.String()
	}
	if !id.IsNil(t.ProductID) {
		resp.ProductID = t.ProductID.String()
	}
	return resp
}

// AvailabilityResponse represents total availability of a product.
type AvailabilityResponse struct {
	ProductID string         `json:"productId"`
	Available types.Quantity `json:"available"`
}

// BalanceAtDateResponse represents historical on-hand for a stock key.
type BalanceAtDateResponse struct {
	ProductID   string         `json:"productId"`
	WarehouseID string         `json:"warehouseId"`
	Date        time.Time      `json:"date"`
	Balance     types.Quantity `json:"balance"`
}

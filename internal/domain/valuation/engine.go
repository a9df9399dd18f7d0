package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
)

// Method selects the costing method for a warehouse.
type Method string

const (
	MethodFIFO            Method = "fifo"
	MethodLIFO            Method = "lifo"
	MethodWeightedAverage Method = "weighted_average"
)

// costScale is the rounding scale for unit costs.
const costScale = 4

// ConsumedLayer records how much of which layer an outbound took.
type ConsumedLayer struct {
	LayerID  id.ID          `json:"layerId"`
	Quantity types.Quantity `json:"quantity"`
	UnitCost types.Money    `json:"unitCost"`
}

// OutboundCost is the result of costing an outbound quantity.
type OutboundCost struct {
	// UnitCost is the weighted average across consumed layers.
	UnitCost types.Money

	// TotalCost is the exact sum before unit rounding.
	TotalCost types.Money

	Consumed []ConsumedLayer

	// UnlayeredQuantity is the portion that exceeded the available
	// layers and was costed at last known cost.
	UnlayeredQuantity types.Quantity
}

// Unlayered reports whether part of the outbound had no cost layer.
func (c OutboundCost) Unlayered() bool {
	return c.UnlayeredQuantity.IsPositive()
}

// Engine maintains cost layers and prices outbound movements.
type Engine struct {
	repo          Repository
	defaultMethod Method
	overrides     map[id.ID]Method
}

// NewEngine creates a valuation engine. overrides map warehouses to a
// non-default costing method and may be nil.
func NewEngine(repo Repository, defaultMethod Method, overrides map[id.ID]Method) *Engine {
	if defaultMethod == "" {
		defaultMethod = MethodFIFO
	}
	return &Engine{
		repo:          repo,
		defaultMethod: defaultMethod,
		overrides:     overrides,
	}
}

// MethodFor returns the costing method in effect for a warehouse.
func (e *Engine) MethodFor(warehouseID id.ID) Method {
	if m, ok := e.overrides[warehouseID]; ok {
		return m
	}
	return e.defaultMethod
}

// RecordInbound adds an inbound lot to the layer stack. Under weighted
// average the lot is merged into the single synthetic layer.
func (e *Engine) RecordInbound(ctx context.Context, productID, warehouseID id.ID, quantity types.Quantity, unitCost types.Money) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("record inbound: quantity must be positive, got %s", quantity)
	}

	if e.MethodFor(warehouseID) != MethodWeightedAverage {
		return e.repo.InsertLayer(ctx, CostLayer{
			ID:                id.New(),
			ProductID:         productID,
			WarehouseID:       warehouseID,
			QuantityRemaining: quantity,
			UnitCost:          unitCost,
			ReceivedAt:        time.Now().UTC(),
		})
	}

	layers, err := e.repo.GetLayersForUpdate(ctx, productID, warehouseID, ConsumeOldestFirst)
	if err != nil {
		return fmt.Errorf("get layers: %w", err)
	}

	if len(layers) == 0 {
		return e.repo.InsertLayer(ctx, CostLayer{
			ID:                id.New(),
			ProductID:         productID,
			WarehouseID:       warehouseID,
			QuantityRemaining: quantity,
			UnitCost:          unitCost,
			ReceivedAt:        time.Now().UTC(),
		})
	}

	// Moving average: merge everything into the first layer. Extra
	// layers can only appear after a method switch; fold them in too.
	totalQty := quantity
	totalValue := quantity.MulMoney(unitCost)
	for i := range layers {
		totalQty += layers[i].QuantityRemaining
		totalValue = totalValue.Add(layers[i].QuantityRemaining.MulMoney(layers[i].UnitCost))
	}
	avg := totalValue.Div(totalQty.Decimal()).Round(costScale)

	if err := e.repo.UpdateLayer(ctx, layers[0].ID, totalQty, avg); err != nil {
		return fmt.Errorf("update merged layer: %w", err)
	}
	for _, extra := range layers[1:] {
		if err := e.repo.DeleteLayer(ctx, extra.ID); err != nil {
			return fmt.Errorf("delete folded layer: %w", err)
		}
	}
	return nil
}

// CostOutbound consumes layers for an outbound quantity and returns the
// weighted average unit cost across consumed layers. When layers run
// out the remainder is costed at the last consumed layer's cost, or
// fallback when no layer existed at all, and flagged as unlayered.
func (e *Engine) CostOutbound(ctx context.Context, productID, warehouseID id.ID, quantity types.Quantity, fallback types.Money) (OutboundCost, error) {
	if !quantity.IsPositive() {
		return OutboundCost{}, fmt.Errorf("cost outbound: quantity must be positive, got %s", quantity)
	}

	order := ConsumeOldestFirst
	if e.MethodFor(warehouseID) == MethodLIFO {
		order = ConsumeNewestFirst
	}

	layers, err := e.repo.GetLayersForUpdate(ctx, productID, warehouseID, order)
	if err != nil {
		return OutboundCost{}, fmt.Errorf("get layers: %w", err)
	}

	var (
		remaining = quantity
		total     = decimal.Zero
		consumed  []ConsumedLayer
		lastCost  = fallback
	)

	for i := range layers {
		if remaining.IsZero() {
			break
		}
		layer := &layers[i]
		take := remaining.Min(layer.QuantityRemaining)
		if !take.IsPositive() {
			continue
		}

		total = total.Add(take.MulMoney(layer.UnitCost))
		consumed = append(consumed, ConsumedLayer{
			LayerID:  layer.ID,
			Quantity: take,
			UnitCost: layer.UnitCost,
		})
		lastCost = layer.UnitCost
		remaining -= take

		left := layer.QuantityRemaining - take
		if left.IsZero() {
			if err := e.repo.DeleteLayer(ctx, layer.ID); err != nil {
				return OutboundCost{}, fmt.Errorf("delete consumed layer: %w", err)
			}
		} else {
			if err := e.repo.UpdateLayer(ctx, layer.ID, left, layer.UnitCost); err != nil {
				return OutboundCost{}, fmt.Errorf("update layer: %w", err)
			}
		}
	}

	if remaining.IsPositive() {
		total = total.Add(remaining.MulMoney(lastCost))
	}

	unit := total.Div(quantity.Decimal()).Round(costScale)

	return OutboundCost{
		UnitCost:          unit,
		TotalCost:         total,
		Consumed:          consumed,
		UnlayeredQuantity: remaining,
	}, nil
}

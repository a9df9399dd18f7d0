package valuation

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
)

// fakeLayerRepo keeps cost layers in memory.
type fakeLayerRepo struct {
	layers map[id.ID]CostLayer
	seq    int
}

func newFakeLayerRepo() *fakeLayerRepo {
	return &fakeLayerRepo{layers: make(map[id.ID]CostLayer)}
}

func (r *fakeLayerRepo) GetLayersForUpdate(_ context.Context, productID, warehouseID id.ID, order ConsumeOrder) ([]CostLayer, error) {
	var out []CostLayer
	for _, l := range r.layers {
		if l.ProductID == productID && l.WarehouseID == warehouseID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if order == ConsumeNewestFirst {
			return out[i].ReceivedAt.After(out[j].ReceivedAt)
		}
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	return out, nil
}

func (r *fakeLayerRepo) InsertLayer(_ context.Context, layer CostLayer) error {
	// Spread ReceivedAt so ordering is deterministic within a test.
	r.seq++
	layer.ReceivedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(r.seq) * time.Hour)
	r.layers[layer.ID] = layer
	return nil
}

func (r *fakeLayerRepo) UpdateLayer(_ context.Context, layerID id.ID, remaining types.Quantity, unitCost types.Money) error {
	l := r.layers[layerID]
	l.QuantityRemaining = remaining
	l.UnitCost = unitCost
	r.layers[layerID] = l
	return nil
}

func (r *fakeLayerRepo) DeleteLayer(_ context.Context, layerID id.ID) error {
	delete(r.layers, layerID)
	return nil
}

func (r *fakeLayerRepo) totalRemaining() types.Quantity {
	var total types.Quantity
	for _, l := range r.layers {
		total += l.QuantityRemaining
	}
	return total
}

func qty(f float64) types.Quantity { return types.NewQuantityFromFloat64(f) }

func TestEngine_CostOutbound_FIFO(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLayerRepo()
	engine := NewEngine(repo, MethodFIFO, nil)

	product, warehouse := id.New(), id.New()
	require.NoError(t, engine.RecordInbound(ctx, product, warehouse, qty(10), types.MustMoney("5.00")))
	require.NoError(t, engine.RecordInbound(ctx, product, warehouse, qty(10), types.MustMoney("7.00")))

	cost, err := engine.CostOutbound(ctx, product, warehouse, qty(15), types.Zero())
	require.NoError(t, err)

	// 10 @ 5.00 + 5 @ 7.00 = 85.00, unit 85/15 = 5.6667
	assert.True(t, types.MustMoney("85").Equal(cost.TotalCost), "total %s", cost.TotalCost)
	assert.True(t, types.MustMoney("5.6667").Equal(cost.UnitCost), "unit %s", cost.UnitCost)
	assert.False(t, cost.Unlayered())
	require.Len(t, cost.Consumed, 2)
	assert.Equal(t, qty(10), cost.Consumed[0].Quantity)
	assert.Equal(t, qty(5), cost.Consumed[1].Quantity)

	// 5 @ 7.00 remains.
	assert.Equal(t, qty(5), repo.totalRemaining())
	layers, _ := repo.GetLayersForUpdate(ctx, product, warehouse, ConsumeOldestFirst)
	require.Len(t, layers, 1)
	assert.True(t, types.MustMoney("7.00").Equal(layers[0].UnitCost))
}

func TestEngine_CostOutbound_LIFO(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLayerRepo()
	engine := NewEngine(repo, MethodLIFO, nil)

	product, warehouse := id.New(), id.New()
	require.NoError(t, engine.RecordInbound(ctx, product, warehouse, qty(10), types.MustMoney("5.00")))
	require.NoError(t, engine.RecordInbound(ctx, product, warehouse, qty(10), types.MustMoney("7.00")))

	cost, err := engine.CostOutbound(ctx, product, warehouse, qty(15), types.Zero())
	require.NoError(t, err)

	// 10 @ 7.00 + 5 @ 5.00 = 95.00, unit 95/15 = 6.3333
	assert.True(t, types.MustMoney("95").Equal(cost.TotalCost), "total %s", cost.TotalCost)
	assert.True(t, types.MustMoney("6.3333").Equal(cost.UnitCost), "unit %s", cost.UnitCost)

	// 5 @ 5.00 remains.
	layers, _ := repo.GetLayersForUpdate(ctx, product, warehouse, ConsumeOldestFirst)
	require.Len(t, layers, 1)
	assert.True(t, types.MustMoney("5.00").Equal(layers[0].UnitCost))
}

func TestEngine_RecordInbound_WeightedAverage(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLayerRepo()
	engine := NewEngine(repo, MethodWeightedAverage, nil)

	product, warehouse := id.New(), id.New()
	require.NoError(t, engine.RecordInbound(ctx, product, warehouse, qty(10), types.MustMoney("5.00")))
	require.NoError(t, engine.RecordInbound(ctx, product, warehouse, qty(10), types.MustMoney("7.00")))

	// Inbounds merge into a single synthetic layer at the moving average.
	layers, _ := repo.GetLayersForUpdate(ctx, product, warehouse, ConsumeOldestFirst)
	require.Len(t, layers, 1)
	assert.Equal(t, qty(20), layers[0].QuantityRemaining)
	assert.True(t, types.MustMoney("6.00").Equal(layers[0].UnitCost), "unit %s", layers[0].UnitCost)

	cost, err := engine.CostOutbound(ctx, product, warehouse, qty(15), types.Zero())
	require.NoError(t, err)
	assert.True(t, types.MustMoney("6.00").Equal(cost.UnitCost))
	assert.Equal(t, qty(5), repo.totalRemaining())
}

func TestEngine_CostOutbound_Unlayered(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLayerRepo()
	engine := NewEngine(repo, MethodFIFO, nil)

	product, warehouse := id.New(), id.New()
	require.NoError(t, engine.RecordInbound(ctx, product, warehouse, qty(10), types.MustMoney("5.00")))

	// Issue exceeds the layered quantity; the remainder is costed at
	// the last consumed layer's cost.
	cost, err := engine.CostOutbound(ctx, product, warehouse, qty(15), types.MustMoney("9.99"))
	require.NoError(t, err)

	assert.True(t, cost.Unlayered())
	assert.Equal(t, qty(5), cost.UnlayeredQuantity)
	assert.True(t, types.MustMoney("75").Equal(cost.TotalCost), "total %s", cost.TotalCost)
	assert.True(t, types.MustMoney("5.00").Equal(cost.UnitCost))
	assert.True(t, repo.totalRemaining().IsZero())
}

func TestEngine_CostOutbound_NoLayers(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(newFakeLayerRepo(), MethodFIFO, nil)

	// No layers at all: everything is costed at the fallback.
	cost, err := engine.CostOutbound(ctx, id.New(), id.New(), qty(4), types.MustMoney("2.50"))
	require.NoError(t, err)

	assert.True(t, cost.Unlayered())
	assert.Equal(t, qty(4), cost.UnlayeredQuantity)
	assert.True(t, types.MustMoney("10").Equal(cost.TotalCost))
	assert.True(t, types.MustMoney("2.5").Equal(cost.UnitCost))
	assert.Empty(t, cost.Consumed)
}

func TestEngine_MethodFor_Overrides(t *testing.T) {
	cold := id.New()
	engine := NewEngine(newFakeLayerRepo(), MethodFIFO, map[id.ID]Method{cold: MethodLIFO})

	assert.Equal(t, MethodLIFO, engine.MethodFor(cold))
	assert.Equal(t, MethodFIFO, engine.MethodFor(id.New()))

	// Empty default falls back to FIFO.
	engine = NewEngine(newFakeLayerRepo(), "", nil)
	assert.Equal(t, MethodFIFO, engine.MethodFor(id.New()))
}

func TestEngine_InvalidQuantities(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(newFakeLayerRepo(), MethodFIFO, nil)

	assert.Error(t, engine.RecordInbound(ctx, id.New(), id.New(), 0, types.Zero()))
	_, err := engine.CostOutbound(ctx, id.New(), id.New(), qty(-1), types.Zero())
	assert.Error(t, err)
}

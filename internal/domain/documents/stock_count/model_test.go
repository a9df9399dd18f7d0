package stock_count

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
)

func qty(f float64) types.Quantity { return types.NewQuantityFromFloat64(f) }

func TestCountLine_VariancePercent(t *testing.T) {
	line := CountLine{SystemQuantity: qty(100), Variance: qty(-5)}
	assert.InDelta(t, 5.0, line.VariancePercent(), 1e-9)

	line = CountLine{SystemQuantity: qty(100), Variance: qty(12)}
	assert.InDelta(t, 12.0, line.VariancePercent(), 1e-9)

	// Count against an empty position is all variance.
	line = CountLine{SystemQuantity: 0, Variance: qty(3)}
	assert.InDelta(t, 100.0, line.VariancePercent(), 1e-9)

	line = CountLine{SystemQuantity: 0, Variance: 0}
	assert.Zero(t, line.VariancePercent())
}

func TestStockCount_StateMachine(t *testing.T) {
	m := StateMachine()

	assert.True(t, m.Can(StatusScheduled, StatusInProgress))
	assert.True(t, m.Can(StatusInProgress, StatusPendingReview))
	assert.True(t, m.Can(StatusPendingReview, StatusPosted))
	assert.True(t, m.Can(StatusPendingReview, StatusInProgress))
	assert.True(t, m.Can(StatusPosted, StatusInProgress))

	assert.False(t, m.Can(StatusScheduled, StatusPosted))
	assert.False(t, m.Can(StatusInProgress, StatusPosted))
	assert.False(t, m.Can(StatusPosted, StatusCancelled))
	assert.True(t, m.IsTerminal(StatusCancelled))
}

func TestStockCount_UncountedAndPendingRecounts(t *testing.T) {
	count := NewStockCount(id.New())
	count.AddLine(id.New(), nil, nil)
	count.AddLine(id.New(), nil, nil)
	count.AddLine(id.New(), nil, nil)

	count.Lines[0].Counted = true
	count.Lines[1].Counted = true
	count.Lines[1].RecountRequired = true
	count.Lines[2].Counted = true
	count.Lines[2].RecountRequired = true
	count.Lines[2].RecountOverridden = true

	uncounted := count.UncountedLines()
	assert.Empty(t, uncounted)

	pending := count.PendingRecounts()
	require.Len(t, pending, 1)
	assert.Equal(t, count.Lines[1].LineID, pending[0])
}

func TestStockCount_Key(t *testing.T) {
	warehouse := id.New()
	count := NewStockCount(warehouse)

	binID, batchID := id.New(), id.New()
	line := count.AddLine(id.New(), &binID, &batchID)

	key := count.Key(line)
	assert.Equal(t, line.ProductID, key.ProductID)
	assert.Equal(t, warehouse, key.WarehouseID)
	assert.Equal(t, binID, key.BinID)
	assert.Equal(t, batchID, key.BatchID)

	bare := count.AddLine(id.New(), nil, nil)
	key = count.Key(bare)
	assert.True(t, id.IsNil(key.BinID))
	assert.True(t, id.IsNil(key.BatchID))
}

func TestStockCount_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid count", func(t *testing.T) {
		count := NewStockCount(id.New())
		count.AddLine(id.New(), nil, nil)
		assert.NoError(t, count.Validate(ctx))
	})

	t.Run("no lines", func(t *testing.T) {
		count := NewStockCount(id.New())
		assert.Error(t, count.Validate(ctx))
	})

	t.Run("duplicate position", func(t *testing.T) {
		count := NewStockCount(id.New())
		product := id.New()
		count.AddLine(product, nil, nil)
		count.AddLine(product, nil, nil)
		assert.Error(t, count.Validate(ctx))
	})

	t.Run("same product in different bins is fine", func(t *testing.T) {
		count := NewStockCount(id.New())
		product := id.New()
		bin1, bin2 := id.New(), id.New()
		count.AddLine(product, &bin1, nil)
		count.AddLine(product, &bin2, nil)
		assert.NoError(t, count.Validate(ctx))
	})

	t.Run("negative counted quantity", func(t *testing.T) {
		count := NewStockCount(id.New())
		line := count.AddLine(id.New(), nil, nil)
		line.Counted = true
		line.CountedQuantity = qty(-1)
		assert.Error(t, count.Validate(ctx))
	})
}

func TestStockCount_CanPost(t *testing.T) {
	ctx := context.Background()

	count := NewStockCount(id.New())
	line := count.AddLine(id.New(), nil, nil)
	line.Counted = true

	count.Status = StatusInProgress
	assert.Error(t, count.CanPost(ctx))

	count.Status = StatusPendingReview
	assert.NoError(t, count.CanPost(ctx))

	// A pending recount blocks posting until resolved or overridden.
	count.Lines[0].RecountRequired = true
	assert.Error(t, count.CanPost(ctx))

	count.Lines[0].RecountOverridden = true
	assert.NoError(t, count.CanPost(ctx))
}

func TestStockCount_GenerateMovements(t *testing.T) {
	warehouse := id.New()
	count := NewStockCount(warehouse)

	count.AddLine(id.New(), nil, nil) // surplus
	count.AddLine(id.New(), nil, nil) // shortage
	count.AddLine(id.New(), nil, nil) // exact match
	count.AddLine(id.New(), nil, nil) // never counted

	count.Lines[0].Counted = true
	count.Lines[0].SystemQuantity = qty(10)
	count.Lines[0].CountedQuantity = qty(12)
	count.Lines[0].Variance = qty(2)

	count.Lines[1].Counted = true
	count.Lines[1].SystemQuantity = qty(10)
	count.Lines[1].CountedQuantity = qty(7)
	count.Lines[1].Variance = qty(-3)

	count.Lines[2].Counted = true
	count.Lines[2].SystemQuantity = qty(5)
	count.Lines[2].CountedQuantity = qty(5)

	set, err := count.GenerateMovements(context.Background())
	require.NoError(t, err)

	// Only the two variance lines produce movements.
	require.Len(t, set.Stock, 2)

	surplus := set.Stock[0]
	assert.Equal(t, entity.MovementCountAdjustment, surplus.MovementType)
	assert.Equal(t, qty(2), surplus.Quantity)
	require.NotNil(t, surplus.ToWarehouseID)
	assert.Equal(t, warehouse, *surplus.ToWarehouseID)
	assert.Nil(t, surplus.FromWarehouseID)

	shortage := set.Stock[1]
	assert.Equal(t, qty(3), shortage.Quantity)
	require.NotNil(t, shortage.FromWarehouseID)
	assert.Equal(t, warehouse, *shortage.FromWarehouseID)
	assert.Nil(t, shortage.ToWarehouseID)

	assert.Equal(t, "StockCountPosted", set.EventType)
	assert.Equal(t, 2, set.EventPayload["adjustedLines"])
	uncounted, ok := set.EventPayload["uncountedLines"].([]string)
	require.True(t, ok)
	require.Len(t, uncounted, 1)
	assert.Equal(t, count.Lines[3].LineID.String(), uncounted[0])

	for i := range set.Stock {
		assert.NoError(t, set.Stock[i].Validate())
	}
}

func TestStockCount_MarkUnposted_Reopens(t *testing.T) {
	count := NewStockCount(id.New())
	count.Status = StatusPendingReview

	count.MarkPosted()
	assert.Equal(t, StatusPosted, count.Status)
	assert.True(t, count.IsPosted())

	count.MarkUnposted()
	assert.Equal(t, StatusInProgress, count.Status)
	assert.False(t, count.IsPosted())
}

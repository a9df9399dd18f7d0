package adjustment

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

func TestAdjustmentLine_Value(t *testing.T) {
	line := AdjustmentLine{Quantity: qty(-4), UnitCost: types.MustMoney("2.50")}
	assert.True(t, types.MustMoney("10").Equal(line.Value()), "value %s", line.Value())

	line.Quantity = qty(4)
	assert.True(t, types.MustMoney("10").Equal(line.Value()))
}

func TestStockAdjustment_Totals(t *testing.T) {
	adj := NewStockAdjustment(id.New(), "cycle count variance")

	adj.AddLine(id.New(), qty(5), types.MustMoney("2.00"))
	adj.AddLine(id.New(), qty(-3), types.MustMoney("4.00"))

	// Value sums absolutes: 10 + 12.
	assert.True(t, types.MustMoney("22").Equal(adj.TotalValue), "total %s", adj.TotalValue)
	assert.Equal(t, qty(8), adj.TotalAbsQuantity())
}

func TestStockAdjustment_StateMachine(t *testing.T) {
	m := StateMachine()

	assert.True(t, m.Can(StatusDraft, StatusPosted))
	assert.True(t, m.Can(StatusDraft, StatusPendingApproval))
	assert.True(t, m.Can(StatusPendingApproval, StatusApproved))
	assert.True(t, m.Can(StatusPendingApproval, StatusDraft))
	assert.True(t, m.Can(StatusApproved, StatusPosted))
	assert.True(t, m.Can(StatusPosted, StatusDraft))

	assert.False(t, m.Can(StatusPendingApproval, StatusPosted))
	assert.False(t, m.Can(StatusPosted, StatusCancelled))
	assert.True(t, m.IsTerminal(StatusCancelled))
}

func TestStockAdjustment_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid adjustment", func(t *testing.T) {
		adj := NewStockAdjustment(id.New(), "damaged goods")
		adj.AddLine(id.New(), qty(-2), types.MustMoney("3.00"))
		assert.NoError(t, adj.Validate(ctx))
	})

	t.Run("reason required", func(t *testing.T) {
		adj := NewStockAdjustment(id.New(), "")
		adj.AddLine(id.New(), qty(-2), types.MustMoney("3.00"))
		assert.Error(t, adj.Validate(ctx))
	})

	t.Run("zero quantity", func(t *testing.T) {
		adj := NewStockAdjustment(id.New(), "reason")
		adj.AddLine(id.New(), 0, types.MustMoney("3.00"))
		assert.Error(t, adj.Validate(ctx))
	})

	t.Run("positive line requires a cost", func(t *testing.T) {
		adj := NewStockAdjustment(id.New(), "reason")
		adj.AddLine(id.New(), qty(2), types.Zero())
		assert.Error(t, adj.Validate(ctx))
	})

	t.Run("negative line without cost is fine", func(t *testing.T) {
		adj := NewStockAdjustment(id.New(), "reason")
		adj.AddLine(id.New(), qty(-2), types.Zero())
		assert.NoError(t, adj.Validate(ctx))
	})
}

func TestStockAdjustment_CanPost(t *testing.T) {
	ctx := context.Background()

	adj := NewStockAdjustment(id.New(), "reason")
	adj.AddLine(id.New(), qty(-1), types.Zero())

	assert.NoError(t, adj.CanPost(ctx))

	adj.Status = StatusApproved
	assert.NoError(t, adj.CanPost(ctx))

	adj.Status = StatusPendingApproval
	assert.Error(t, adj.CanPost(ctx))

	adj.Status = StatusCancelled
	assert.Error(t, adj.CanPost(ctx))
}

func TestStockAdjustment_GenerateMovements(t *testing.T) {
	warehouse := id.New()
	adj := NewStockAdjustment(warehouse, "count correction")
	binID := id.New()

	l1 := adj.AddLine(id.New(), qty(5), types.MustMoney("2.00"))
	l1.BinID = &binID
	adj.AddLine(id.New(), qty(-3), types.MustMoney("4.00"))

	set, err := adj.GenerateMovements(context.Background())
	require.NoError(t, err)
	require.Len(t, set.Stock, 2)

	pos := set.Stock[0]
	assert.Equal(t, entity.MovementPositiveAdjustment, pos.MovementType)
	assert.Equal(t, qty(5), pos.Quantity)
	require.NotNil(t, pos.ToWarehouseID)
	assert.Equal(t, warehouse, *pos.ToWarehouseID)
	assert.True(t, types.MustMoney("2.00").Equal(pos.UnitCost))

	neg := set.Stock[1]
	assert.Equal(t, entity.MovementNegativeAdjustment, neg.MovementType)
	assert.Equal(t, qty(3), neg.Quantity)
	require.NotNil(t, neg.FromWarehouseID)
	assert.Equal(t, warehouse, *neg.FromWarehouseID)
	assert.Nil(t, neg.ToWarehouseID)
	// Negative lines are costed by the valuation engine at posting.
	assert.True(t, neg.UnitCost.IsZero())

	assert.Equal(t, "AdjustmentPosted", set.EventType)
	assert.Equal(t, "count correction", set.EventPayload["reason"])

	for i := range set.Stock {
		assert.NoError(t, set.Stock[i].Validate())
	}
}

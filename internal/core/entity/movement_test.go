package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
)

func newTestMovement(t MovementType, qty types.Quantity) StockMovement {
	return NewStockMovement(t, id.New(), qty, "goods_receipt", id.New(), 1, time.Now().UTC())
}

func TestStockMovement_Validate(t *testing.T) {
	wh := id.New()

	t.Run("quantity must be positive", func(t *testing.T) {
		m := newTestMovement(MovementPurchaseReceipt, 0).WithDestination(wh, nil, nil)
		assert.Error(t, m.Validate())
	})

	t.Run("inbound requires destination", func(t *testing.T) {
		m := newTestMovement(MovementPurchaseReceipt, 10_000)
		assert.Error(t, m.Validate())

		m = m.WithDestination(wh, nil, nil)
		assert.NoError(t, m.Validate())
	})

	t.Run("outbound requires source", func(t *testing.T) {
		m := newTestMovement(MovementNegativeAdjustment, 10_000)
		assert.Error(t, m.Validate())

		m = m.WithSource(wh, nil, nil)
		assert.NoError(t, m.Validate())
	})

	t.Run("transfer_in requires both keys", func(t *testing.T) {
		m := newTestMovement(MovementTransferIn, 10_000).WithSource(wh, nil, nil)
		assert.Error(t, m.Validate())

		m = m.WithDestination(id.New(), nil, nil)
		assert.NoError(t, m.Validate())
	})

	t.Run("count_adjustment requires exactly one key", func(t *testing.T) {
		m := newTestMovement(MovementCountAdjustment, 10_000)
		assert.Error(t, m.Validate())

		up := m.WithDestination(wh, nil, nil)
		assert.NoError(t, up.Validate())

		both := up.WithSource(wh, nil, nil)
		assert.Error(t, both.Validate())
	})

	t.Run("unknown type", func(t *testing.T) {
		m := newTestMovement(MovementType("teleport"), 10_000).WithSource(wh, nil, nil)
		assert.Error(t, m.Validate())
	})
}

func TestStockMovement_Deltas_Inbound(t *testing.T) {
	wh := id.New()
	m := newTestMovement(MovementPurchaseReceipt, 50_000).WithDestination(wh, nil, nil)

	deltas := m.Deltas()
	require.Len(t, deltas, 1)
	assert.Equal(t, wh, deltas[0].Key.WarehouseID)
	assert.Equal(t, types.Quantity(50_000), deltas[0].OnHand)
	assert.True(t, deltas[0].InTransit.IsZero())
}

func TestStockMovement_Deltas_Outbound(t *testing.T) {
	wh := id.New()
	m := newTestMovement(MovementSalesIssue, 30_000).WithSource(wh, nil, nil)

	deltas := m.Deltas()
	require.Len(t, deltas, 1)
	assert.Equal(t, types.Quantity(-30_000), deltas[0].OnHand)
}

func TestStockMovement_Deltas_TransferOut(t *testing.T) {
	src := id.New()
	m := newTestMovement(MovementTransferOut, 20_000).WithSource(src, nil, nil)

	// In-transit quantity parks on the source key until receipt.
	deltas := m.Deltas()
	require.Len(t, deltas, 1)
	assert.Equal(t, src, deltas[0].Key.WarehouseID)
	assert.Equal(t, types.Quantity(-20_000), deltas[0].OnHand)
	assert.Equal(t, types.Quantity(20_000), deltas[0].InTransit)
}

func TestStockMovement_Deltas_TransferIn(t *testing.T) {
	src, dst := id.New(), id.New()
	m := newTestMovement(MovementTransferIn, 20_000).
		WithSource(src, nil, nil).
		WithDestination(dst, nil, nil)

	deltas := m.Deltas()
	require.Len(t, deltas, 2)

	assert.Equal(t, src, deltas[0].Key.WarehouseID)
	assert.Equal(t, types.Quantity(-20_000), deltas[0].InTransit)
	assert.True(t, deltas[0].OnHand.IsZero())

	assert.Equal(t, dst, deltas[1].Key.WarehouseID)
	assert.Equal(t, types.Quantity(20_000), deltas[1].OnHand)
}

func TestStockMovement_Deltas_CountAdjustment(t *testing.T) {
	wh := id.New()

	up := newTestMovement(MovementCountAdjustment, 5_000).WithDestination(wh, nil, nil)
	deltas := up.Deltas()
	require.Len(t, deltas, 1)
	assert.Equal(t, types.Quantity(5_000), deltas[0].OnHand)

	down := newTestMovement(MovementCountAdjustment, 5_000).WithSource(wh, nil, nil)
	deltas = down.Deltas()
	require.Len(t, deltas, 1)
	assert.Equal(t, types.Quantity(-5_000), deltas[0].OnHand)
}

func TestStockMovement_PrimaryKey(t *testing.T) {
	src, dst := id.New(), id.New()

	in := newTestMovement(MovementTransferIn, 10_000).
		WithSource(src, nil, nil).
		WithDestination(dst, nil, nil)
	key, ok := in.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, dst, key.WarehouseID)

	out := newTestMovement(MovementTransferOut, 10_000).WithSource(src, nil, nil)
	key, ok = out.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, src, key.WarehouseID)
}

func TestStockMovement_Reversal(t *testing.T) {
	wh := id.New()
	period := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	m := newTestMovement(MovementPurchaseReceipt, 40_000).WithDestination(wh, nil, nil)
	m.UnitCost = types.MustMoney("5.00")
	m.TotalCost = types.MustMoney("20.00")
	m.Status = MovementStatusCompleted
	m.RunningBalance = 40_000

	rev := m.Reversal(2, period)

	assert.NotEqual(t, m.LineID, rev.LineID)
	assert.Equal(t, MovementNegativeAdjustment, rev.MovementType)
	require.NotNil(t, rev.FromWarehouseID)
	assert.Equal(t, wh, *rev.FromWarehouseID)
	assert.Nil(t, rev.ToWarehouseID)
	assert.Equal(t, m.Quantity, rev.Quantity)
	assert.True(t, m.UnitCost.Equal(rev.UnitCost))
	assert.Equal(t, 2, rev.ReferenceVersion)
	assert.Equal(t, MovementStatusPending, rev.Status)
	assert.True(t, rev.RunningBalance.IsZero())
	require.NotNil(t, rev.ReversalOf)
	assert.Equal(t, m.LineID, *rev.ReversalOf)
	assert.Equal(t, period, rev.Period)

	assert.NoError(t, rev.Validate())
}

func TestStockMovement_Reversal_TransferOut(t *testing.T) {
	src := id.New()
	m := newTestMovement(MovementTransferOut, 10_000).WithSource(src, nil, nil)

	rev := m.Reversal(2, time.Now().UTC())

	// Reversing a shipment releases the in-transit back to on-hand at
	// the source, so both keys point at the source warehouse.
	assert.Equal(t, MovementTransferIn, rev.MovementType)
	require.NotNil(t, rev.FromWarehouseID)
	require.NotNil(t, rev.ToWarehouseID)
	assert.Equal(t, src, *rev.FromWarehouseID)
	assert.Equal(t, src, *rev.ToWarehouseID)

	deltas := rev.Deltas()
	require.Len(t, deltas, 2)
	assert.Equal(t, types.Quantity(-10_000), deltas[0].InTransit)
	assert.Equal(t, types.Quantity(10_000), deltas[1].OnHand)
}

func TestStockMovement_Reversal_TransferIn(t *testing.T) {
	src, dst := id.New(), id.New()
	m := newTestMovement(MovementTransferIn, 10_000).
		WithSource(src, nil, nil).
		WithDestination(dst, nil, nil)

	rev := m.Reversal(2, time.Now().UTC())

	// The reversal pulls on-hand off the destination and parks it back
	// in transit on the source key.
	assert.Equal(t, MovementTransferOut, rev.MovementType)
	assert.Equal(t, dst, *rev.FromWarehouseID)
	assert.Equal(t, src, *rev.ToWarehouseID)

	deltas := rev.Deltas()
	require.Len(t, deltas, 2)
	assert.Equal(t, dst, deltas[0].Key.WarehouseID)
	assert.Equal(t, types.Quantity(-10_000), deltas[0].OnHand)
	assert.Equal(t, src, deltas[1].Key.WarehouseID)
	assert.Equal(t, types.Quantity(10_000), deltas[1].InTransit)
}

func TestStockKey_Less(t *testing.T) {
	a := StockKey{ProductID: id.Nil(), WarehouseID: id.Nil()}
	b := StockKey{ProductID: id.New(), WarehouseID: id.Nil()}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

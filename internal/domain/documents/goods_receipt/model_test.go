package goods_receipt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/documents/purchase_order"
)

func qty(f float64) types.Quantity { return types.NewQuantityFromFloat64(f) }

func TestGoodsReceipt_AddLine(t *testing.T) {
	receipt := NewGoodsReceipt(id.New(), id.New())

	line := receipt.AddLine(id.New(), qty(3), types.MustMoney("4.00"))
	require.NotNil(t, line)
	assert.Equal(t, 1, line.LineNo)
	assert.True(t, types.MustMoney("12").Equal(line.Amount))

	receipt.AddLine(id.New(), qty(2), types.MustMoney("1.50"))

	assert.Equal(t, qty(5), receipt.TotalQuantity)
	assert.True(t, types.MustMoney("15").Equal(receipt.TotalAmount), "total %s", receipt.TotalAmount)
}

func TestGoodsReceipt_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid receipt", func(t *testing.T) {
		receipt := NewGoodsReceipt(id.New(), id.New())
		receipt.AddLine(id.New(), qty(3), types.MustMoney("4.00"))
		assert.NoError(t, receipt.Validate(ctx))
	})

	t.Run("no lines", func(t *testing.T) {
		receipt := NewGoodsReceipt(id.New(), id.New())
		assert.Error(t, receipt.Validate(ctx))
	})

	t.Run("order line reference without order", func(t *testing.T) {
		receipt := NewGoodsReceipt(id.New(), id.New())
		line := receipt.AddLine(id.New(), qty(3), types.MustMoney("4.00"))
		poLineID := id.New()
		line.POLineID = &poLineID
		assert.Error(t, receipt.Validate(ctx))

		orderID := id.New()
		receipt.PurchaseOrderID = &orderID
		assert.NoError(t, receipt.Validate(ctx))
	})
}

func TestGoodsReceipt_CanPost(t *testing.T) {
	ctx := context.Background()

	receipt := NewGoodsReceipt(id.New(), id.New())
	receipt.AddLine(id.New(), qty(1), types.MustMoney("1.00"))
	assert.NoError(t, receipt.CanPost(ctx))

	receipt.Status = StatusCancelled
	assert.Error(t, receipt.CanPost(ctx))
}

func TestGoodsReceipt_MarkPosted(t *testing.T) {
	receipt := NewGoodsReceipt(id.New(), id.New())

	receipt.MarkPosted()
	assert.True(t, receipt.IsPosted())
	assert.Equal(t, StatusPosted, receipt.Status)
	assert.Equal(t, 1, receipt.GetPostedVersion())

	receipt.MarkUnposted()
	assert.False(t, receipt.IsPosted())
	assert.Equal(t, StatusDraft, receipt.Status)
}

func TestGoodsReceipt_GenerateMovements(t *testing.T) {
	warehouse := id.New()
	receipt := NewGoodsReceipt(id.New(), warehouse)
	binID := id.New()
	line := receipt.AddLine(id.New(), qty(5), types.MustMoney("2.00"))
	line.BinID = &binID

	set, err := receipt.GenerateMovements(context.Background())
	require.NoError(t, err)

	require.Len(t, set.Stock, 1)
	m := set.Stock[0]
	assert.Equal(t, entity.MovementPurchaseReceipt, m.MovementType)
	assert.Equal(t, line.ProductID, m.ProductID)
	assert.Equal(t, qty(5), m.Quantity)
	assert.True(t, types.MustMoney("2.00").Equal(m.UnitCost))
	require.NotNil(t, m.ToWarehouseID)
	assert.Equal(t, warehouse, *m.ToWarehouseID)
	require.NotNil(t, m.ToBinID)
	assert.Equal(t, binID, *m.ToBinID)
	assert.Equal(t, DocumentType, m.ReferenceType)
	assert.Equal(t, receipt.ID, m.ReferenceID)
	assert.Equal(t, 1, m.ReferenceVersion)

	// No purchase order linked: no on-order releases.
	assert.Empty(t, set.Extra)
}

// linkOrder wires a receipt to an order with one line and returns the
// order line.
func linkOrder(receipt *GoodsReceipt, ordered, received types.Quantity) *purchase_order.PurchaseOrderLine {
	order := purchase_order.NewPurchaseOrder(receipt.SupplierID, receipt.WarehouseID)
	order.AddLine(id.New(), ordered, types.MustMoney("2.00"))
	order.Lines[0].QuantityReceived = received

	orderID := order.ID
	receipt.PurchaseOrderID = &orderID
	receipt.AttachOrder(order)
	return &order.Lines[0]
}

func TestGoodsReceipt_OnOrderRelease(t *testing.T) {
	receipt := NewGoodsReceipt(id.New(), id.New())
	line := receipt.AddLine(id.New(), qty(4), types.MustMoney("2.00"))
	orderLine := linkOrder(receipt, qty(10), 0)
	line.POLineID = &orderLine.LineID
	line.ProductID = orderLine.ProductID

	set, err := receipt.GenerateMovements(context.Background())
	require.NoError(t, err)

	require.Len(t, set.Extra, 1)
	assert.Equal(t, qty(-4), set.Extra[0].OnOrder)
	assert.Equal(t, orderLine.ProductID, set.Extra[0].Key.ProductID)
}

func TestGoodsReceipt_OnOrderRelease_CappedAtOutstanding(t *testing.T) {
	receipt := NewGoodsReceipt(id.New(), id.New())
	line := receipt.AddLine(id.New(), qty(5), types.MustMoney("2.00"))

	// Only 3 outstanding; the release must not exceed it.
	orderLine := linkOrder(receipt, qty(10), qty(7))
	line.POLineID = &orderLine.LineID
	line.ProductID = orderLine.ProductID

	set, err := receipt.GenerateMovements(context.Background())
	require.NoError(t, err)

	require.Len(t, set.Extra, 1)
	assert.Equal(t, qty(-3), set.Extra[0].OnOrder)
}

func TestGoodsReceipt_GenerateUnpostExtras(t *testing.T) {
	receipt := NewGoodsReceipt(id.New(), id.New())
	line := receipt.AddLine(id.New(), qty(4), types.MustMoney("2.00"))

	// The snapshot already includes this receipt's 4 units.
	orderLine := linkOrder(receipt, qty(10), qty(4))
	line.POLineID = &orderLine.LineID
	line.ProductID = orderLine.ProductID

	extras, err := receipt.GenerateUnpostExtras(context.Background())
	require.NoError(t, err)

	require.Len(t, extras, 1)
	assert.Equal(t, qty(4), extras[0].OnOrder)
}

func TestGoodsReceipt_GenerateUnpostExtras_NoOrder(t *testing.T) {
	receipt := NewGoodsReceipt(id.New(), id.New())
	receipt.AddLine(id.New(), qty(4), types.MustMoney("2.00"))

	extras, err := receipt.GenerateUnpostExtras(context.Background())
	require.NoError(t, err)
	assert.Empty(t, extras)
}

func TestGoodsReceipt_ReceivedByOrderLine(t *testing.T) {
	receipt := NewGoodsReceipt(id.New(), id.New())
	poLine := id.New()

	l1 := receipt.AddLine(id.New(), qty(2), types.MustMoney("1.00"))
	l1.POLineID = &poLine
	l2 := receipt.AddLine(id.New(), qty(3), types.MustMoney("1.00"))
	l2.POLineID = &poLine
	receipt.AddLine(id.New(), qty(9), types.MustMoney("1.00"))

	received := receipt.ReceivedByOrderLine()
	require.Len(t, received, 1)
	assert.Equal(t, qty(5), received[poLine])
}

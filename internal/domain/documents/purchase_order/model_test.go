package purchase_order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/docstate"
)

func qty(f float64) types.Quantity { return types.NewQuantityFromFloat64(f) }

func TestPurchaseOrder_AddLine(t *testing.T) {
	order := NewPurchaseOrder(id.New(), id.New())

	order.AddLine(id.New(), qty(10), types.MustMoney("2.50"))
	order.AddLine(id.New(), qty(4), types.MustMoney("10.00"))

	require.Len(t, order.Lines, 2)
	assert.Equal(t, 1, order.Lines[0].LineNo)
	assert.Equal(t, 2, order.Lines[1].LineNo)
	assert.True(t, types.MustMoney("25").Equal(order.Lines[0].Amount))

	assert.Equal(t, qty(14), order.TotalQuantity)
	assert.True(t, types.MustMoney("65").Equal(order.TotalAmount), "total %s", order.TotalAmount)
}

func TestPurchaseOrderLine_Outstanding(t *testing.T) {
	line := PurchaseOrderLine{QuantityOrdered: qty(10), QuantityReceived: qty(4)}
	assert.Equal(t, qty(6), line.Outstanding())

	// Over-receipt clamps to zero.
	line.QuantityReceived = qty(12)
	assert.True(t, line.Outstanding().IsZero())
}

func TestPurchaseOrder_StateMachine(t *testing.T) {
	m := StateMachine()

	assert.True(t, m.Can(StatusDraft, StatusSubmitted))
	assert.True(t, m.Can(StatusSubmitted, StatusApproved))
	assert.True(t, m.Can(StatusSubmitted, StatusDraft))
	assert.True(t, m.Can(StatusApproved, StatusSent))
	assert.True(t, m.Can(StatusSent, StatusPartiallyReceived))
	assert.True(t, m.Can(StatusPartiallyReceived, StatusFullyReceived))
	assert.True(t, m.Can(StatusFullyReceived, StatusPartiallyReceived))
	assert.True(t, m.Can(StatusFullyReceived, StatusClosed))

	// No cancellation once receiving started.
	assert.False(t, m.Can(StatusPartiallyReceived, StatusCancelled))
	assert.False(t, m.Can(StatusDraft, StatusApproved))
	assert.False(t, m.Can(StatusClosed, StatusDraft))

	assert.True(t, m.IsTerminal(StatusClosed))
	assert.True(t, m.IsTerminal(StatusCancelled))
}

func TestPurchaseOrder_IsReceivable(t *testing.T) {
	order := NewPurchaseOrder(id.New(), id.New())

	receivable := map[docstate.Status]bool{
		StatusDraft:             false,
		StatusSubmitted:         false,
		StatusApproved:          true,
		StatusSent:              true,
		StatusPartiallyReceived: true,
		StatusFullyReceived:     false,
		StatusClosed:            false,
		StatusCancelled:         false,
	}
	for status, want := range receivable {
		order.Status = status
		assert.Equal(t, want, order.IsReceivable(), "status %s", status)
	}
}

func TestPurchaseOrder_ReceiptProgress(t *testing.T) {
	order := NewPurchaseOrder(id.New(), id.New())
	order.AddLine(id.New(), qty(10), types.MustMoney("1.00"))
	order.AddLine(id.New(), qty(5), types.MustMoney("1.00"))

	assert.False(t, order.HasReceipts())
	assert.False(t, order.IsFullyReceived())

	order.Lines[0].QuantityReceived = qty(10)
	assert.True(t, order.HasReceipts())
	assert.False(t, order.IsFullyReceived())

	order.Lines[1].QuantityReceived = qty(5)
	assert.True(t, order.IsFullyReceived())
}

func TestPurchaseOrder_IsFullyReceived_NoLines(t *testing.T) {
	order := NewPurchaseOrder(id.New(), id.New())
	assert.False(t, order.IsFullyReceived())
}

func TestPurchaseOrder_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid order", func(t *testing.T) {
		order := NewPurchaseOrder(id.New(), id.New())
		order.AddLine(id.New(), qty(10), types.MustMoney("2.00"))
		assert.NoError(t, order.Validate(ctx))
	})

	t.Run("missing supplier", func(t *testing.T) {
		order := NewPurchaseOrder(id.Nil(), id.New())
		order.AddLine(id.New(), qty(10), types.MustMoney("2.00"))
		assert.Error(t, order.Validate(ctx))
	})

	t.Run("missing warehouse", func(t *testing.T) {
		order := NewPurchaseOrder(id.New(), id.Nil())
		order.AddLine(id.New(), qty(10), types.MustMoney("2.00"))
		assert.Error(t, order.Validate(ctx))
	})

	t.Run("no lines", func(t *testing.T) {
		order := NewPurchaseOrder(id.New(), id.New())
		assert.Error(t, order.Validate(ctx))
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		order := NewPurchaseOrder(id.New(), id.New())
		order.AddLine(id.New(), 0, types.MustMoney("2.00"))
		assert.Error(t, order.Validate(ctx))
	})

	t.Run("negative price", func(t *testing.T) {
		order := NewPurchaseOrder(id.New(), id.New())
		order.AddLine(id.New(), qty(1), types.MustMoney("-0.01"))
		assert.Error(t, order.Validate(ctx))
	})
}

func TestPurchaseOrder_Line(t *testing.T) {
	order := NewPurchaseOrder(id.New(), id.New())
	order.AddLine(id.New(), qty(1), types.MustMoney("1.00"))

	found := order.Line(order.Lines[0].LineID)
	require.NotNil(t, found)
	assert.Equal(t, order.Lines[0].LineID, found.LineID)

	assert.Nil(t, order.Line(id.New()))
}

package transfer

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

func TestTransfer_AddLine(t *testing.T) {
	tr := NewTransfer(id.New(), id.New())

	line := tr.AddLine(id.New(), qty(7))
	require.NotNil(t, line)
	assert.Equal(t, 1, line.LineNo)

	tr.AddLine(id.New(), qty(3))
	assert.Equal(t, qty(10), tr.TotalQuantity)
}

func TestTransferLine_InTransit(t *testing.T) {
	line := TransferLine{QuantityShipped: qty(10), QuantityReceived: qty(4)}
	assert.Equal(t, qty(6), line.InTransit())

	// Over-receipt clamps to zero.
	line.QuantityReceived = qty(12)
	assert.True(t, line.InTransit().IsZero())
}

func TestTransfer_StateMachine(t *testing.T) {
	m := StateMachine()

	assert.True(t, m.Can(StatusDraft, StatusApproved))
	assert.True(t, m.Can(StatusApproved, StatusShipped))
	assert.True(t, m.Can(StatusApproved, StatusRejected))
	assert.True(t, m.Can(StatusRejected, StatusDraft))
	assert.True(t, m.Can(StatusShipped, StatusPartiallyReceived))
	assert.True(t, m.Can(StatusShipped, StatusReceived))
	assert.True(t, m.Can(StatusPartiallyReceived, StatusCompleted))
	assert.True(t, m.Can(StatusReceived, StatusCompleted))

	// No cancellation once goods shipped.
	assert.False(t, m.Can(StatusShipped, StatusCancelled))
	assert.False(t, m.Can(StatusShipped, StatusDraft))
	assert.False(t, m.Can(StatusDraft, StatusShipped))

	assert.True(t, m.IsTerminal(StatusCompleted))
	assert.True(t, m.IsTerminal(StatusCancelled))
}

func TestTransfer_CanReceive(t *testing.T) {
	tr := NewTransfer(id.New(), id.New())

	allowed := map[docstate.Status]bool{
		StatusDraft:             false,
		StatusApproved:          false,
		StatusShipped:           true,
		StatusPartiallyReceived: true,
		StatusReceived:          false,
		StatusCompleted:         false,
	}
	for status, want := range allowed {
		tr.Status = status
		assert.Equal(t, want, tr.CanReceive(), "status %s", status)
	}
}

func TestTransfer_IsFullyReceived(t *testing.T) {
	tr := NewTransfer(id.New(), id.New())
	assert.False(t, tr.IsFullyReceived())

	tr.AddLine(id.New(), qty(10))
	tr.AddLine(id.New(), qty(5))

	tr.Lines[0].QuantityShipped = qty(10)
	tr.Lines[1].QuantityShipped = qty(5)
	assert.False(t, tr.IsFullyReceived())

	tr.Lines[0].QuantityReceived = qty(10)
	assert.False(t, tr.IsFullyReceived())

	tr.Lines[1].QuantityReceived = qty(5)
	assert.True(t, tr.IsFullyReceived())
}

func TestTransfer_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid transfer", func(t *testing.T) {
		tr := NewTransfer(id.New(), id.New())
		tr.AddLine(id.New(), qty(1))
		assert.NoError(t, tr.Validate(ctx))
	})

	t.Run("same source and destination", func(t *testing.T) {
		wh := id.New()
		tr := NewTransfer(wh, wh)
		tr.AddLine(id.New(), qty(1))
		assert.Error(t, tr.Validate(ctx))
	})

	t.Run("missing warehouses", func(t *testing.T) {
		tr := NewTransfer(id.Nil(), id.New())
		tr.AddLine(id.New(), qty(1))
		assert.Error(t, tr.Validate(ctx))

		tr = NewTransfer(id.New(), id.Nil())
		tr.AddLine(id.New(), qty(1))
		assert.Error(t, tr.Validate(ctx))
	})

	t.Run("no lines", func(t *testing.T) {
		tr := NewTransfer(id.New(), id.New())
		assert.Error(t, tr.Validate(ctx))
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		tr := NewTransfer(id.New(), id.New())
		tr.AddLine(id.New(), 0)
		assert.Error(t, tr.Validate(ctx))
	})
}

func TestTransfer_Line(t *testing.T) {
	tr := NewTransfer(id.New(), id.New())
	added := tr.AddLine(id.New(), qty(1))

	found := tr.Line(added.LineID)
	require.NotNil(t, found)
	assert.Equal(t, added.LineID, found.LineID)

	assert.Nil(t, tr.Line(id.New()))
}

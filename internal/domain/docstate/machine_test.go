package docstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wareflow/internal/core/apperror"
)

const (
	stDraft     Status = "draft"
	stSubmitted Status = "submitted"
	stApproved  Status = "approved"
	stRejected  Status = "rejected"
	stCancelled Status = "cancelled"
)

func testMachine() *Machine {
	return New("test_document", Transitions{
		stDraft:     {stSubmitted, stCancelled},
		stSubmitted: {stApproved, stRejected},
		stRejected:  {stDraft},
	})
}

func TestMachine_Can(t *testing.T) {
	m := testMachine()

	cases := []struct {
		from, to Status
		want     bool
	}{
		{stDraft, stSubmitted, true},
		{stDraft, stCancelled, true},
		{stDraft, stApproved, false},
		{stSubmitted, stApproved, true},
		{stSubmitted, stRejected, true},
		{stSubmitted, stDraft, false},
		{stRejected, stDraft, true},
		{stApproved, stDraft, false},
		{stCancelled, stDraft, false},
		{Status("unknown"), stDraft, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, m.Can(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestMachine_Transition(t *testing.T) {
	m := testMachine()

	assert.NoError(t, m.Transition(stDraft, stSubmitted))

	err := m.Transition(stApproved, stDraft)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidStateTransition(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "test_document", appErr.Details["document_type"])
	assert.Equal(t, "approved", appErr.Details["current_status"])
	assert.Equal(t, "draft", appErr.Details["requested_status"])
}

func TestMachine_IsTerminal(t *testing.T) {
	m := testMachine()

	assert.False(t, m.IsTerminal(stDraft))
	assert.False(t, m.IsTerminal(stSubmitted))
	assert.True(t, m.IsTerminal(stApproved))
	assert.True(t, m.IsTerminal(stCancelled))
}

func TestMachine_Next(t *testing.T) {
	m := testMachine()

	assert.Equal(t, []Status{stApproved, stRejected}, m.Next(stSubmitted))
	assert.Empty(t, m.Next(stApproved))
}

package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wareflow/internal/core/apperror"
)

func TestCompileRule_Invalid(t *testing.T) {
	_, err := CompileRule("value >= ")
	require.Error(t, err)
	assert.True(t, apperror.IsAppError(err))

	// Compiles but does not evaluate to bool.
	_, err = CompileRule("value + 1.0")
	require.Error(t, err)
	assert.True(t, apperror.IsAppError(err))
}

func TestRule_Evaluate_Defaults(t *testing.T) {
	adj := MustCompileRule(DefaultAdjustmentExpr)

	cases := []struct {
		value float64
		want  bool
	}{
		{999.99, false},
		{1000.0, true},
		{5000.0, true},
	}
	for _, tc := range cases {
		got, err := adj.Evaluate(Facts{Value: tc.value})
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "value %.2f", tc.value)
	}

	rec := MustCompileRule(DefaultRecountExpr)

	got, err := rec.Evaluate(Facts{VariancePercent: 10.0})
	require.NoError(t, err)
	assert.False(t, got)

	got, err = rec.Evaluate(Facts{VariancePercent: 10.01})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestRule_Evaluate_CustomExpression(t *testing.T) {
	r, err := CompileRule(`value >= 500.0 || warehouse_id == "WH-COLD"`)
	require.NoError(t, err)

	got, err := r.Evaluate(Facts{Value: 100, WarehouseID: "WH-COLD"})
	require.NoError(t, err)
	assert.True(t, got)

	got, err = r.Evaluate(Facts{Value: 100, WarehouseID: "WH-MAIN"})
	require.NoError(t, err)
	assert.False(t, got)

	got, err = r.Evaluate(Facts{Value: 600, WarehouseID: "WH-MAIN"})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestNewRules(t *testing.T) {
	t.Run("defaults for empty expressions", func(t *testing.T) {
		rules, err := NewRules("", "")
		require.NoError(t, err)
		assert.Equal(t, DefaultAdjustmentExpr, rules.AdjustmentApproval.Expression())
		assert.Equal(t, DefaultRecountExpr, rules.RecountRequired.Expression())
	})

	t.Run("custom expressions", func(t *testing.T) {
		rules, err := NewRules("value > 100.0", "variance_percent > 5.0")
		require.NoError(t, err)

		got, err := rules.AdjustmentApproval.Evaluate(Facts{Value: 150})
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("compile error propagates", func(t *testing.T) {
		_, err := NewRules("nonsense(", "")
		assert.Error(t, err)

		_, err = NewRules("", "also nonsense(")
		assert.Error(t, err)
	})
}

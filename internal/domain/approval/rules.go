// Package approval evaluates CEL-based business rules that gate
// document workflows: when a stock adjustment needs sign-off, and when
// a stock count variance forces a recount.
package approval

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"wareflow/internal/core/apperror"
)

// Default expressions. Operators tune these per deployment.
const (
	// DefaultAdjustmentExpr requires approval for adjustments whose
	// absolute value reaches 1000 in base currency.
	DefaultAdjustmentExpr = "value >= 1000.0"

	// DefaultRecountExpr forces a recount when a counted line deviates
	// from the system quantity by more than 10 percent.
	DefaultRecountExpr = "variance_percent > 10.0"
)

// Rule is a compiled boolean CEL expression over posting facts.
type Rule struct {
	expr string
	prg  cel.Program
}

// CompileRule compiles a boolean expression over the rule variables:
// value (double), quantity (double), variance_percent (double),
// warehouse_id (string).
func CompileRule(expr string) (*Rule, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DoubleType),
		cel.Variable("quantity", cel.DoubleType),
		cel.Variable("variance_percent", cel.DoubleType),
		cel.Variable("warehouse_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, apperror.NewValidation(
			fmt.Sprintf("invalid rule expression: %v", iss.Err()),
		).WithDetail("expression", expr)
	}
	if ast.OutputType() != cel.BoolType {
		return nil, apperror.NewValidation("rule expression must evaluate to bool").
			WithDetail("expression", expr)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build CEL program: %w", err)
	}

	return &Rule{expr: expr, prg: prg}, nil
}

// MustCompileRule compiles or panics. Use for the built-in defaults.
func MustCompileRule(expr string) *Rule {
	r, err := CompileRule(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// Facts are the inputs a rule sees. Zero values are fine for variables
// a given rule does not reference.
type Facts struct {
	Value           float64
	Quantity        float64
	VariancePercent float64
	WarehouseID     string
}

// Evaluate runs the rule against the facts.
func (r *Rule) Evaluate(f Facts) (bool, error) {
	out, _, err := r.prg.Eval(map[string]any{
		"value":            f.Value,
		"quantity":         f.Quantity,
		"variance_percent": f.VariancePercent,
		"warehouse_id":     f.WarehouseID,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate rule %q: %w", r.expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q returned %T, want bool", r.expr, out.Value())
	}
	return b, nil
}

// Expression returns the source expression.
func (r *Rule) Expression() string {
	return r.expr
}

// Rules bundles the compiled workflow rules.
type Rules struct {
	// AdjustmentApproval fires when an adjustment needs approval
	// before posting.
	AdjustmentApproval *Rule

	// RecountRequired fires when a count line variance forces a recount.
	RecountRequired *Rule
}

// NewRules compiles the rule set from expressions, falling back to the
// defaults for empty strings.
func NewRules(adjustmentExpr, recountExpr string) (*Rules, error) {
	if adjustmentExpr == "" {
		adjustmentExpr = DefaultAdjustmentExpr
	}
	if recountExpr == "" {
		recountExpr = DefaultRecountExpr
	}

	adj, err := CompileRule(adjustmentExpr)
	if err != nil {
		return nil, err
	}
	rec, err := CompileRule(recountExpr)
	if err != nil {
		return nil, err
	}

	return &Rules{
		AdjustmentApproval: adj,
		RecountRequired:    rec,
	}, nil
}

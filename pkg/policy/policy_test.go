package policy

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

func rule(name string, cond pact.Condition) pact.Rule {
	return pact.Rule{Name: name, Condition: cond}
}

func leaf(field string, op pact.ConditionOperator, value interface{}) pact.Condition {
	return pact.Condition{Field: field, Operator: op, Value: value}
}

func TestEvaluate_AllRulesPassAllows(t *testing.T) {
	p := pact.Policy{
		PolicyID: "p1",
		Rules: []pact.Rule{
			rule("price-ok", leaf("price_minor", pact.OpLessOrEqual, 10000.0)),
		},
	}
	res, err := Evaluate(p, Context{"price_minor": 5000.0})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Empty(t, res.ViolatedRules)
}

func TestEvaluate_FailingRuleBlocksAndRecordsViolation(t *testing.T) {
	p := pact.Policy{
		PolicyID: "p1",
		Rules: []pact.Rule{
			rule("price-ok", leaf("price_minor", pact.OpLessOrEqual, 10000.0)),
		},
	}
	res, err := Evaluate(p, Context{"price_minor": 50000.0})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	require.Len(t, res.ViolatedRules, 1)
	assert.Equal(t, "price-ok", res.ViolatedRules[0].RuleName)
	assert.Equal(t, DefaultFailureCode, res.MappedFailureCode)
}

func TestEvaluate_MissingFieldIsFalseExceptNotIn(t *testing.T) {
	eqCond := leaf("missing", pact.OpEqual, "x")
	pass, err := evaluateCondition(eqCond, Context{})
	require.NoError(t, err)
	assert.False(t, pass)

	notInCond := leaf("missing", pact.OpNotIn, []interface{}{"a", "b"})
	pass, err = evaluateCondition(notInCond, Context{})
	require.NoError(t, err)
	assert.True(t, pass)
}

func TestEvaluate_AndShortCircuits(t *testing.T) {
	cond := pact.Condition{And: []pact.Condition{
		leaf("a", pact.OpEqual, 1.0),
		leaf("b", pact.OpEqual, 2.0),
	}}
	pass, err := evaluateCondition(cond, Context{"a": 1.0, "b": 99.0})
	require.NoError(t, err)
	assert.False(t, pass)

	pass, err = evaluateCondition(cond, Context{"a": 1.0, "b": 2.0})
	require.NoError(t, err)
	assert.True(t, pass)
}

func TestEvaluate_OrAnyPass(t *testing.T) {
	cond := pact.Condition{Or: []pact.Condition{
		leaf("a", pact.OpEqual, 1.0),
		leaf("b", pact.OpEqual, 2.0),
	}}
	pass, err := evaluateCondition(cond, Context{"a": 0.0, "b": 2.0})
	require.NoError(t, err)
	assert.True(t, pass)
}

func TestEvaluate_NotInverts(t *testing.T) {
	inner := leaf("a", pact.OpEqual, 1.0)
	cond := pact.Condition{Not: &inner}
	pass, err := evaluateCondition(cond, Context{"a": 1.0})
	require.NoError(t, err)
	assert.False(t, pass)
}

func TestEvaluate_InAndNotIn(t *testing.T) {
	cond := leaf("currency", pact.OpIn, []interface{}{"USD", "EUR"})
	pass, err := evaluateCondition(cond, Context{"currency": "USD"})
	require.NoError(t, err)
	assert.True(t, pass)

	cond2 := leaf("currency", pact.OpNotIn, []interface{}{"USD", "EUR"})
	pass, err = evaluateCondition(cond2, Context{"currency": "GBP"})
	require.NoError(t, err)
	assert.True(t, pass)
}

func TestEvaluate_NumericComparisonRequiresNumeric(t *testing.T) {
	cond := leaf("currency", pact.OpLessThan, 10.0)
	_, err := evaluateCondition(cond, Context{"currency": "USD"})
	assert.Error(t, err)
}

func TestEvaluate_NestedComposite(t *testing.T) {
	inner := pact.Condition{Or: []pact.Condition{
		leaf("tier", pact.OpEqual, "A"),
		leaf("tier", pact.OpEqual, "B"),
	}}
	cond := pact.Condition{And: []pact.Condition{
		inner,
		leaf("bond_minor", pact.OpGreaterOrEqual, 100.0),
	}}
	pass, err := evaluateCondition(cond, Context{"tier": "B", "bond_minor": 150.0})
	require.NoError(t, err)
	assert.True(t, pass)
}

func TestEvaluate_CELEscapeHatch(t *testing.T) {
	cond := pact.Condition{CEL: `context["price_minor"] < 1000.0`}
	pass, err := evaluateCondition(cond, Context{"price_minor": 500.0})
	require.NoError(t, err)
	assert.True(t, pass)

	pass, err = evaluateCondition(cond, Context{"price_minor": 5000.0})
	require.NoError(t, err)
	assert.False(t, pass)
}

func TestEvaluate_CELInvalidExpressionErrors(t *testing.T) {
	cond := pact.Condition{CEL: `this is not valid cel (`}
	_, err := evaluateCondition(cond, Context{})
	assert.Error(t, err)
}

// Policy evaluation is pure: same policy + same context -> same verdict,
// always.
func TestEvaluateProperty_Deterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("same policy and context always yield the same result", prop.ForAll(
		func(threshold int, value int) bool {
			p := pact.Policy{
				PolicyID: "det",
				Rules: []pact.Rule{
					rule("threshold", leaf("value", pact.OpLessOrEqual, float64(threshold))),
				},
			}
			ctx := Context{"value": float64(value)}

			first, err1 := Evaluate(p, ctx)
			second, err2 := Evaluate(p, ctx)
			if err1 != nil || err2 != nil {
				return false
			}
			return first.Allowed == second.Allowed && len(first.ViolatedRules) == len(second.ViolatedRules)
		},
		gen.IntRange(-1000, 1000),
		gen.IntRange(-1000, 1000),
	))

	properties.TestingRun(t)
}

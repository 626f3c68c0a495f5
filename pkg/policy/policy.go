// Package policy implements component C5's v4 rule-tree interpreter: it
// reproduces accept/reject decisions by evaluating a pact.Policy's rule
// tree (AND/OR/NOT composition over leaf predicates, plus an optional CEL
// escape hatch) against a recorded context, deterministically and without
// side effects.
//
// Grounded on the teacher's pkg/prg (RequirementSet's recursive logic-tree
// shape and short-circuit check()) for the tree walk, and on
// pkg/governance's CEL-based PolicyEngine for the optional expression
// leaf.
package policy

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

// Context is the typed input a rule condition is evaluated against.
type Context map[string]interface{}

// ViolatedRule is one rule that failed to pass, per spec.md §4.5.
type ViolatedRule struct {
	RuleName    string `json:"rule_name"`
	FailureCode string `json:"failure_code"`
}

// DefaultFailureCode is the code attached to a violated rule that doesn't
// carry its own mapping.
const DefaultFailureCode = "PACT-101"

// Result is evaluate's structured output.
type Result struct {
	Allowed          bool           `json:"allowed"`
	ViolatedRules    []ViolatedRule `json:"violated_rules"`
	MappedFailureCode string        `json:"mapped_failure_code,omitempty"`
	EvidenceRefs     []string       `json:"evidence_refs"`
}

// Evaluate implements spec.md §4.5: for each rule in declared order
// (determinism is strict — no randomness, no reordering), evaluate its
// condition against ctx. A rule passes if its condition is true; a failing
// rule contributes to ViolatedRules. Overall Allowed is true iff every
// rule passed.
func Evaluate(policy pact.Policy, ctx Context) (Result, error) {
	result := Result{Allowed: true, EvidenceRefs: []string{fmt.Sprintf("policy_id:%s", policy.PolicyID)}}

	for _, rule := range policy.Rules {
		pass, err := evaluateCondition(rule.Condition, ctx)
		if err != nil {
			return Result{}, fmt.Errorf("policy: rule %q: %w", rule.Name, err)
		}
		if !pass {
			result.Allowed = false
			result.ViolatedRules = append(result.ViolatedRules, ViolatedRule{
				RuleName:    rule.Name,
				FailureCode: DefaultFailureCode,
			})
			result.EvidenceRefs = append(result.EvidenceRefs, fmt.Sprintf("policy_rule:%s", rule.Name))
		}
	}

	if len(result.ViolatedRules) > 0 {
		result.MappedFailureCode = result.ViolatedRules[0].FailureCode
	}
	return result, nil
}

func evaluateCondition(cond pact.Condition, ctx Context) (bool, error) {
	if cond.CEL != "" {
		return evaluateCEL(cond.CEL, ctx)
	}
	switch {
	case cond.And != nil:
		for _, sub := range cond.And {
			pass, err := evaluateCondition(sub, ctx)
			if err != nil {
				return false, err
			}
			if !pass {
				return false, nil // AND short-circuits false
			}
		}
		return true, nil
	case cond.Or != nil:
		for _, sub := range cond.Or {
			pass, err := evaluateCondition(sub, ctx)
			if err != nil {
				return false, err
			}
			if pass {
				return true, nil // OR short-circuits true
			}
		}
		return false, nil
	case cond.Not != nil:
		pass, err := evaluateCondition(*cond.Not, ctx)
		if err != nil {
			return false, err
		}
		return !pass, nil
	default:
		return evaluateLeaf(cond, ctx)
	}
}

func evaluateLeaf(cond pact.Condition, ctx Context) (bool, error) {
	val, present := ctx[cond.Field]
	if !present {
		// Missing is false for every operator except NOT_IN, where
		// "missing" trivially satisfies "is not a member".
		return cond.Operator == pact.OpNotIn, nil
	}

	switch cond.Operator {
	case pact.OpEqual:
		return deepEqual(val, cond.Value), nil
	case pact.OpNotEqual:
		return !deepEqual(val, cond.Value), nil
	case pact.OpLessThan, pact.OpLessOrEqual, pact.OpGreaterThan, pact.OpGreaterOrEqual:
		return compareNumeric(cond.Operator, val, cond.Value)
	case pact.OpIn:
		return memberOf(val, cond.Value), nil
	case pact.OpNotIn:
		return !memberOf(val, cond.Value), nil
	default:
		return false, fmt.Errorf("unknown operator %q", cond.Operator)
	}
}

func deepEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func compareNumeric(op pact.ConditionOperator, a, b interface{}) (bool, error) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false, fmt.Errorf("operator %q requires numeric operands, got %T and %T", op, a, b)
	}
	switch op {
	case pact.OpLessThan:
		return af < bf, nil
	case pact.OpLessOrEqual:
		return af <= bf, nil
	case pact.OpGreaterThan:
		return af > bf, nil
	case pact.OpGreaterOrEqual:
		return af >= bf, nil
	}
	return false, fmt.Errorf("unreachable operator %q", op)
}

func memberOf(val, set interface{}) bool {
	arr, ok := set.([]interface{})
	if !ok {
		return false
	}
	for _, item := range arr {
		if deepEqual(val, item) {
			return true
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	default:
		return 0, false
	}
}

// celEnv and celCache implement the CEL escape hatch: a condition may
// carry a "cel" expression instead of the structural leaf/composite form,
// evaluated against the same context map via google/cel-go (grounded on
// governance.PolicyEngine's env/program-cache shape).
var (
	celEnvOnce sync.Once
	celEnv     *cel.Env
	celEnvErr  error

	celCacheMu sync.Mutex
	celCache   = map[string]cel.Program{}
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("context", types.NewMapType(types.StringType, types.DynType)),
		)
	})
	return celEnv, celEnvErr
}

func evaluateCEL(expr string, ctx Context) (bool, error) {
	env, err := getCELEnv()
	if err != nil {
		return false, err
	}

	celCacheMu.Lock()
	prg, ok := celCache[expr]
	celCacheMu.Unlock()

	if !ok {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return false, fmt.Errorf("cel compile: %w", issues.Err())
		}
		prg, err = env.Program(ast)
		if err != nil {
			return false, fmt.Errorf("cel program: %w", err)
		}
		celCacheMu.Lock()
		celCache[expr] = prg
		celCacheMu.Unlock()
	}

	out, _, err := prg.Eval(map[string]interface{}{"context": map[string]interface{}(ctx)})
	if err != nil {
		return false, fmt.Errorf("cel eval: %w", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("cel expression did not evaluate to bool")
	}
	return allowed, nil
}

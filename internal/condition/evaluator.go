package condition

import (
	"context"

	"ruleflow/pkg/cel"
	"ruleflow/pkg/models"
)

// Evaluator decides whether a rule's conditions hold for a record. It performs no I/O and holds
// no mutable state besides the CEL program cache, so one Evaluator may serve every invocation.
type Evaluator struct {
	cel *cel.Evaluator
}

// NewEvaluator returns an evaluator. With a nil CEL evaluator every "expr" condition is false.
func NewEvaluator(celEvaluator *cel.Evaluator) *Evaluator {
	return &Evaluator{cel: celEvaluator}
}

// Matches reports whether record satisfies rule. It never panics and returns the same answer for
// the same inputs. A rule without conditions always matches; a rule with conditions and an
// unrecognised condition logic never does.
func (e *Evaluator) Matches(rule *models.Rule, record map[string]interface{}) bool {
	if rule == nil {
		return false
	}
	if len(rule.Conditions) == 0 {
		return true
	}

	event := map[string]interface{}{
		"tenant_id": rule.TenantID,
		"module":    rule.Module,
		"event":     rule.Event,
		"entity":    rule.Entity,
	}

	switch rule.ConditionLogic {
	case models.ConditionLogicAll:
		for i := range rule.Conditions {
			if !e.Evaluate(rule.Conditions[i], record, event) {
				return false
			}
		}
		return true
	case models.ConditionLogicAny:
		for i := range rule.Conditions {
			if e.Evaluate(rule.Conditions[i], record, event) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Evaluate applies a single condition. Unknown operators, type mismatches and expression errors
// all yield false.
func (e *Evaluator) Evaluate(cond models.Condition, record, event map[string]interface{}) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
		}
	}()

	op, ok := ParseOperator(cond.Operator)
	if !ok {
		return false
	}

	if op == OpExpr {
		return e.evaluateExpr(cond.Value, record, event)
	}

	value, found := Resolve(record, cond.Field)
	if !found {
		return op.satisfiedByMissing()
	}

	return compare(op, value, cond.Value)
}

func (e *Evaluator) evaluateExpr(expression interface{}, record, event map[string]interface{}) bool {
	source, ok := expression.(string)
	if !ok || source == "" || e.cel == nil {
		return false
	}

	matched, err := e.cel.EvaluateCondition(context.Background(), source, record, event)
	if err != nil {
		return false
	}
	return matched
}

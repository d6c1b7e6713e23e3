package rules

import (
	"errors"
	"fmt"

	"ruleflow/internal/condition"
	"ruleflow/internal/dispatch"
	"ruleflow/pkg/cel"
	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/models"
)

const maxConditions = 50
const maxActions = 20

// Validator checks rule definitions before they are stored. Stored rules that bypassed it are
// still evaluated, with unknown operators and action types failing closed.
type Validator struct {
	cel *cel.Evaluator
}

func NewValidator(celEvaluator *cel.Evaluator) *Validator {
	return &Validator{cel: celEvaluator}
}

// ValidateRule returns the first problem found as a *models.ValidationError. An action type
// outside the supported set is reported as ErrUnsupportedAction wrapping one.
func (v *Validator) ValidateRule(rule *models.Rule) error {
	required := []struct{ field, value string }{
		{"tenant_id", rule.TenantID},
		{"name", rule.Name},
		{"module", rule.Module},
		{"event", rule.Event},
		{"entity", rule.Entity},
	}
	for _, r := range required {
		if r.value == "" {
			return &models.ValidationError{Field: r.field, Message: "is required"}
		}
	}

	if !rule.ConditionLogic.Valid() {
		return &models.ValidationError{Field: "condition_logic", Message: "must be \"all\" or \"any\""}
	}

	if len(rule.Conditions) > maxConditions {
		return &models.ValidationError{Field: "conditions", Message: fmt.Sprintf("at most %d conditions are allowed", maxConditions)}
	}
	for i, cond := range rule.Conditions {
		if err := v.validateCondition(cond); err != nil {
			return &models.ValidationError{Field: fmt.Sprintf("conditions[%d]", i), Message: err.Error()}
		}
	}

	if len(rule.Actions) > maxActions {
		return &models.ValidationError{Field: "actions", Message: fmt.Sprintf("at most %d actions are allowed", maxActions)}
	}
	for i, spec := range rule.Actions {
		field := fmt.Sprintf("actions[%d]", i)
		_, err := dispatch.Decode(spec)
		switch {
		case errors.Is(err, dispatch.ErrUnsupportedActionType):
			ve := &models.ValidationError{Field: field, Message: fmt.Sprintf("unsupported action type %q", spec.Type)}
			return pkgerrors.ErrUnsupportedAction.WithCause(ve).WithDetails(map[string]interface{}{
				"field":       field,
				"message":     ve.Message,
				"action_type": spec.Type,
			})
		case err != nil:
			return &models.ValidationError{Field: field, Message: err.Error()}
		}
	}

	return nil
}

func (v *Validator) validateCondition(cond models.Condition) error {
	op, ok := condition.ParseOperator(cond.Operator)
	if !ok {
		return fmt.Errorf("unknown operator %q", cond.Operator)
	}

	switch op {
	case condition.OpExpr:
		expr, ok := cond.Value.(string)
		if !ok || expr == "" {
			return fmt.Errorf("expr requires a CEL expression string as value")
		}
		if v.cel == nil {
			return fmt.Errorf("expression conditions are not available")
		}
		if err := v.cel.ValidateConditionExpression(expr); err != nil {
			return err
		}
		return nil
	case condition.OpIn, condition.OpNotIn:
		if _, ok := cond.Value.([]interface{}); !ok {
			return fmt.Errorf("%s requires a list value", op)
		}
	case condition.OpExists, condition.OpNotExists, condition.OpIsEmpty:
	default:
		if cond.Value == nil {
			return fmt.Errorf("%s requires a value", op)
		}
	}

	if cond.Field == "" {
		return fmt.Errorf("field is required")
	}
	return nil
}

// asAPIError converts a validation failure into the coded error returned to clients.
func asAPIError(err error) *pkgerrors.Error {
	var coded *pkgerrors.Error
	if errors.As(err, &coded) {
		return coded
	}
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return pkgerrors.ErrValidation.WithCause(err).
			WithDetail("field", ve.Field).
			WithDetail("message", ve.Message)
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrValidation)
}

package rules

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/models"
)

func TestValidator_ValidateRule(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name      string
		mutate    func(r *models.Rule)
		wantField string
	}{
		{name: "valid", mutate: func(r *models.Rule) {}},
		{name: "no conditions", mutate: func(r *models.Rule) { r.Conditions = nil }},
		{name: "symbolic operator", mutate: func(r *models.Rule) { r.Conditions[0].Operator = ">="; r.Conditions[0].Value = 3.0 }},
		{name: "exists needs no value", mutate: func(r *models.Rule) { r.Conditions[0] = models.Condition{Field: "email", Operator: "exists"} }},
		{
			name: "expression condition",
			mutate: func(r *models.Rule) {
				r.Conditions[0] = models.Condition{Operator: "expr", Value: `record.score > 10`}
			},
		},
		{name: "missing name", mutate: func(r *models.Rule) { r.Name = "" }, wantField: "name"},
		{name: "missing entity", mutate: func(r *models.Rule) { r.Entity = "" }, wantField: "entity"},
		{name: "implicit logic", mutate: func(r *models.Rule) { r.ConditionLogic = "" }, wantField: "condition_logic"},
		{name: "unknown logic", mutate: func(r *models.Rule) { r.ConditionLogic = "xor" }, wantField: "condition_logic"},
		{name: "unknown operator", mutate: func(r *models.Rule) { r.Conditions[0].Operator = "like" }, wantField: "conditions[0]"},
		{name: "missing field", mutate: func(r *models.Rule) { r.Conditions[0].Field = "" }, wantField: "conditions[0]"},
		{name: "in without list", mutate: func(r *models.Rule) { r.Conditions[0].Operator = "in" }, wantField: "conditions[0]"},
		{name: "eq without value", mutate: func(r *models.Rule) { r.Conditions[0].Value = nil }, wantField: "conditions[0]"},
		{
			name: "broken expression",
			mutate: func(r *models.Rule) {
				r.Conditions[0] = models.Condition{Operator: "expr", Value: `record.score >`}
			},
			wantField: "conditions[0]",
		},
		{
			name: "non bool expression",
			mutate: func(r *models.Rule) {
				r.Conditions[0] = models.Condition{Operator: "expr", Value: `"text"`}
			},
			wantField: "conditions[0]",
		},
		{
			name:      "unsupported action",
			mutate:    func(r *models.Rule) { r.Actions[0] = models.ActionSpec{Type: "send_fax"} },
			wantField: "actions[0]",
		},
		{
			name:      "notify without channel",
			mutate:    func(r *models.Rule) { r.Actions[0].Params = map[string]interface{}{"template": "x"} },
			wantField: "actions[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validRule("acme", "vip", 1)
			tt.mutate(&rule)

			err := v.ValidateRule(&rule)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var ve *models.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestAsAPIError(t *testing.T) {
	err := asAPIError(&models.ValidationError{Field: "name", Message: "is required"})

	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, "name", err.Details["field"])
}

func TestValidator_UnsupportedActionIsCoded(t *testing.T) {
	v := newValidator(t)
	rule := validRule("acme", "vip", 1)
	rule.Actions = append(rule.Actions, models.ActionSpec{Type: "send_fax"})

	err := v.ValidateRule(&rule)
	require.Error(t, err)

	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "actions[1]", ve.Field)

	apiErr := asAPIError(err)
	assert.Equal(t, pkgerrors.ErrUnsupportedAction.Code, apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "send_fax", apiErr.Details["action_type"])
	assert.Equal(t, "actions[1]", apiErr.Details["field"])
	assert.False(t, pkgerrors.IsValidation(err))
}

package condition

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleflow/pkg/cel"
	"ruleflow/pkg/models"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	celEval, err := cel.NewEvaluator()
	require.NoError(t, err)
	return NewEvaluator(celEval)
}

func decodeRecord(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var record map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &record))
	return record
}

func TestEvaluate_Operators(t *testing.T) {
	eval := newTestEvaluator(t)
	record := decodeRecord(t, `{
		"status": "active",
		"email": "a@b.com",
		"score": 42,
		"ratio": 0.25,
		"vip": true,
		"tags": ["gold", "emea"],
		"owner": null,
		"notes": "",
		"address": {"city": "Berlin", "zip": "10115"},
		"items": [{"sku": "A-1", "qty": 2}]
	}`)

	tests := []struct {
		name string
		cond models.Condition
		want bool
	}{
		{"eq string", models.Condition{Field: "status", Operator: "eq", Value: "active"}, true},
		{"eq alias", models.Condition{Field: "status", Operator: "==", Value: "active"}, true},
		{"eq number int vs float", models.Condition{Field: "score", Operator: "eq", Value: 42}, true},
		{"eq bool", models.Condition{Field: "vip", Operator: "eq", Value: true}, true},
		{"eq type mismatch", models.Condition{Field: "score", Operator: "eq", Value: "42"}, false},
		{"neq different", models.Condition{Field: "status", Operator: "neq", Value: "inactive"}, true},
		{"neq same", models.Condition{Field: "status", Operator: "neq", Value: "active"}, false},
		{"neq type mismatch", models.Condition{Field: "status", Operator: "neq", Value: 1}, false},
		{"gt", models.Condition{Field: "score", Operator: "gt", Value: 40}, true},
		{"gte equal", models.Condition{Field: "score", Operator: "gte", Value: 42.0}, true},
		{"lt float", models.Condition{Field: "ratio", Operator: "lt", Value: 0.5}, true},
		{"lte false", models.Condition{Field: "score", Operator: "lte", Value: 10}, false},
		{"gt string lexical", models.Condition{Field: "status", Operator: "gt", Value: "abc"}, true},
		{"gt mismatch", models.Condition{Field: "status", Operator: "gt", Value: 1}, false},
		{"in", models.Condition{Field: "status", Operator: "in", Value: []interface{}{"trial", "active"}}, true},
		{"in typed slice", models.Condition{Field: "status", Operator: "in", Value: []string{"active"}}, true},
		{"in not list", models.Condition{Field: "status", Operator: "in", Value: "active"}, false},
		{"not_in", models.Condition{Field: "status", Operator: "not_in", Value: []interface{}{"closed"}}, true},
		{"not_in member", models.Condition{Field: "status", Operator: "not_in", Value: []interface{}{"active"}}, false},
		{"exists", models.Condition{Field: "email", Operator: "exists"}, true},
		{"exists null", models.Condition{Field: "owner", Operator: "exists"}, false},
		{"not_exists null", models.Condition{Field: "owner", Operator: "not_exists"}, true},
		{"contains substring", models.Condition{Field: "email", Operator: "contains", Value: "@b."}, true},
		{"contains list", models.Condition{Field: "tags", Operator: "contains", Value: "gold"}, true},
		{"contains number in string", models.Condition{Field: "email", Operator: "contains", Value: 1}, false},
		{"starts_with", models.Condition{Field: "email", Operator: "starts_with", Value: "a@"}, true},
		{"ends_with", models.Condition{Field: "email", Operator: "ends_with", Value: ".com"}, true},
		{"ends_with non string", models.Condition{Field: "score", Operator: "ends_with", Value: "2"}, false},
		{"is_empty blank", models.Condition{Field: "notes", Operator: "is_empty"}, true},
		{"is_empty list", models.Condition{Field: "tags", Operator: "is_empty"}, false},
		{"nested path", models.Condition{Field: "address.city", Operator: "eq", Value: "Berlin"}, true},
		{"list index path", models.Condition{Field: "items.0.sku", Operator: "eq", Value: "A-1"}, true},
		{"list index out of range", models.Condition{Field: "items.3.sku", Operator: "exists"}, false},
		{"expr", models.Condition{Operator: "expr", Value: `record.score > 40.0 && event.module == "crm"`}, true},
		{"expr error", models.Condition{Operator: "expr", Value: `record.nope == 1`}, false},
		{"expr not string", models.Condition{Operator: "expr", Value: 12}, false},
		{"unknown operator", models.Condition{Field: "status", Operator: "matches_regex", Value: ".*"}, false},
	}

	event := map[string]interface{}{"module": "crm"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eval.Evaluate(tt.cond, record, event))
		})
	}
}

func TestEvaluate_MissingField(t *testing.T) {
	eval := newTestEvaluator(t)
	record := map[string]interface{}{"status": "active"}

	tests := []struct {
		op    string
		value interface{}
		want  bool
	}{
		{"eq", "x", false},
		{"eq", nil, false},
		{"neq", "x", true},
		{"gt", 1, false},
		{"in", []interface{}{"x"}, false},
		{"not_in", []interface{}{"x"}, true},
		{"exists", nil, false},
		{"not_exists", nil, true},
		{"contains", "x", false},
		{"is_empty", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			cond := models.Condition{Field: "phone", Operator: tt.op, Value: tt.value}
			assert.Equal(t, tt.want, eval.Evaluate(cond, record, nil))
		})
	}
}

func TestMatches_Logic(t *testing.T) {
	eval := newTestEvaluator(t)
	record := map[string]interface{}{"status": "active", "score": 10.0}

	active := models.Condition{Field: "status", Operator: "eq", Value: "active"}
	highScore := models.Condition{Field: "score", Operator: "gt", Value: 50}

	tests := []struct {
		name  string
		logic models.ConditionLogic
		conds []models.Condition
		want  bool
	}{
		{"all true", models.ConditionLogicAll, []models.Condition{active}, true},
		{"all one false", models.ConditionLogicAll, []models.Condition{active, highScore}, false},
		{"any one true", models.ConditionLogicAny, []models.Condition{highScore, active}, true},
		{"any none true", models.ConditionLogicAny, []models.Condition{highScore}, false},
		{"empty all", models.ConditionLogicAll, nil, true},
		{"empty any", models.ConditionLogicAny, []models.Condition{}, true},
		{"empty unset logic", "", nil, true},
		{"unset logic with conditions", "", []models.Condition{active}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &models.Rule{ConditionLogic: tt.logic, Conditions: tt.conds}
			assert.Equal(t, tt.want, eval.Matches(rule, record))
		})
	}
}

func TestMatches_NilInputs(t *testing.T) {
	eval := NewEvaluator(nil)

	assert.False(t, eval.Matches(nil, map[string]interface{}{}))

	rule := &models.Rule{
		ConditionLogic: models.ConditionLogicAll,
		Conditions:     []models.Condition{{Field: "a", Operator: "not_exists"}},
	}
	assert.True(t, eval.Matches(rule, nil))

	exprRule := &models.Rule{
		ConditionLogic: models.ConditionLogicAll,
		Conditions:     []models.Condition{{Operator: "expr", Value: "true"}},
	}
	assert.False(t, eval.Matches(exprRule, nil))
}

func TestMatches_ExampleScenario(t *testing.T) {
	eval := newTestEvaluator(t)
	rule := &models.Rule{
		ID:             "rule-1",
		Module:         "crm",
		Event:          "contact.updated",
		Entity:         "contact",
		ConditionLogic: models.ConditionLogicAll,
		Conditions:     []models.Condition{{Field: "status", Operator: "eq", Value: "active"}},
		Enabled:        true,
	}

	assert.True(t, eval.Matches(rule, map[string]interface{}{"email": "a@b.com", "status": "active"}))
	assert.False(t, eval.Matches(rule, map[string]interface{}{"email": "a@b.com", "status": "inactive"}))
}

func TestResolve(t *testing.T) {
	record := map[string]interface{}{
		"a.b":  "literal",
		"a":    map[string]interface{}{"b": "nested", "c": nil},
		"list": []interface{}{"x", map[string]interface{}{"y": 1.0}},
	}

	tests := []struct {
		path  string
		want  interface{}
		found bool
	}{
		{"a.b", "literal", true},
		{"a.c", nil, false},
		{"list.1.y", 1.0, true},
		{"list.-1", nil, false},
		{"list.x", nil, false},
		{"a..b", nil, false},
		{"", nil, false},
		{"missing.deep.path", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, found := Resolve(record, tt.path)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOperator(t *testing.T) {
	op, ok := ParseOperator(" GTE ")
	assert.True(t, ok)
	assert.Equal(t, OpGte, op)

	_, ok = ParseOperator("regex")
	assert.False(t, ok)

	assert.Contains(t, KnownOperators(), "not_exists")
}

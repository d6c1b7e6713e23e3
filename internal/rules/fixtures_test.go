package rules

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ruleflow/pkg/cel"
	"ruleflow/pkg/models"
)

var contactUpdated = models.Trigger{Module: "crm", Event: "updated", Entity: "contact"}

func newValidator(t *testing.T) *Validator {
	t.Helper()
	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)
	return NewValidator(evaluator)
}

func validRule(tenantID, name string, priority int) models.Rule {
	return models.Rule{
		TenantID: tenantID,
		Name:     name,
		Module:   "crm",
		Event:    "updated",
		Entity:   "contact",
		Conditions: []models.Condition{
			{Field: "status", Operator: "eq", Value: "vip"},
		},
		ConditionLogic: models.ConditionLogicAll,
		Actions: []models.ActionSpec{
			{Type: "notify", Params: map[string]interface{}{"channel": "email", "template": "vip_welcome"}},
		},
		Enabled:  true,
		Priority: priority,
	}
}

type countingStore struct {
	mu      sync.Mutex
	calls   int
	rules   []models.Rule
	err     error
	release chan struct{}
}

func (s *countingStore) ListRules(ctx context.Context, tenantID string, trigger models.Trigger) ([]models.Rule, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.rules, nil
}

func (s *countingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

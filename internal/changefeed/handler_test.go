package changefeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleflow/internal/logger"
	"ruleflow/internal/rules"
	"ruleflow/pkg/models"
	"ruleflow/pkg/retry"
)

type stubInvalidator struct {
	tenants []string
	sources []string
	err     error
}

func (s *stubInvalidator) Invalidate(ctx context.Context, tenantID, source string) error {
	if s.err != nil {
		return s.err
	}
	s.tenants = append(s.tenants, tenantID)
	s.sources = append(s.sources, source)
	return nil
}

func changeEvent(tenantID string) models.MessageEnvelope {
	return *models.NewMessageEnvelopeBuilder().
		WithID("evt-1").
		WithSource("rules-service").
		WithEventType(models.EventTypeRuleChanged).
		WithTimestamp(time.Now()).
		WithPayload(map[string]interface{}{
			"tenant_id": tenantID,
			"rule_id":   "rule-1",
			"action":    models.ActionUpdate,
		}).
		Build()
}

func TestHandleRuleChangeEvent(t *testing.T) {
	tests := []struct {
		name        string
		msg         models.MessageEnvelope
		err         error
		wantTenants []string
		wantErr     bool
		wantFatal   bool
	}{
		{name: "invalidates tenant", msg: changeEvent("acme"), wantTenants: []string{"acme"}},
		{name: "missing tenant is fatal", msg: changeEvent(""), wantErr: true, wantFatal: true},
		{name: "cache failure is retried", msg: changeEvent("acme"), err: errors.New("redis down"), wantErr: true},
		{
			name: "other event types are ignored",
			msg: func() models.MessageEnvelope {
				m := changeEvent("acme")
				m.Metadata.EventType = models.EventTypeDomain
				return m
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &stubInvalidator{err: tt.err}
			err := NewHandler(inv, logger.NopLogger()).HandleRuleChangeEvent(context.Background(), tt.msg)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantFatal, retry.IsFatal(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTenants, inv.tenants)
		})
	}
}

func TestHandleRuleChangeEvent_CachedStore(t *testing.T) {
	ctx := context.Background()
	repo := rules.NewMemoryRepository()
	store := rules.NewCachedStore(repo, rules.NewMemoryCache(time.Hour))
	trigger := models.Trigger{Module: "crm", Event: "updated", Entity: "contact"}

	before, err := store.ListRules(ctx, "acme", trigger)
	require.NoError(t, err)
	require.Empty(t, before)

	require.NoError(t, repo.CreateRule(ctx, &models.Rule{
		TenantID: "acme", Name: "new", Module: "crm", Event: "updated", Entity: "contact",
		ConditionLogic: models.ConditionLogicAll, Enabled: true,
	}))

	stale, err := store.ListRules(ctx, "acme", trigger)
	require.NoError(t, err)
	assert.Empty(t, stale, "served from cache")

	require.NoError(t, NewHandler(store, logger.NopLogger()).HandleRuleChangeEvent(ctx, changeEvent("acme")))

	fresh, err := store.ListRules(ctx, "acme", trigger)
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
}

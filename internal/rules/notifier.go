package rules

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ruleflow/internal/broker"
	"ruleflow/pkg/models"
	"ruleflow/pkg/tracing"
)

// ChangeEventProducer announces rule mutations so that engines drop their cached rule sets.
type ChangeEventProducer struct {
	producer broker.Producer
	topic    string
	source   string
}

func NewChangeEventProducer(producer broker.Producer, topic, source string) *ChangeEventProducer {
	return &ChangeEventProducer{producer: producer, topic: topic, source: source}
}

func (p *ChangeEventProducer) PublishRuleChange(ctx context.Context, action, tenantID, ruleID, changedBy string) error {
	if p == nil || p.producer == nil || p.topic == "" {
		return nil
	}

	now := time.Now().UTC()
	event := models.RuleChangeEvent{
		EventType: models.EventTypeRuleChanged,
		TenantID:  tenantID,
		RuleID:    ruleID,
		Action:    action,
		Timestamp: now,
		ChangedBy: changedBy,
	}

	envelope := models.NewMessageEnvelopeBuilder().
		WithID(uuid.New().String()).
		WithSource(p.source).
		WithTenantID(tenantID).
		WithEventType(models.EventTypeRuleChanged).
		WithTraceID(tracing.TraceID(ctx)).
		WithTimestamp(now).
		WithPayload(map[string]interface{}{
			"event_type": event.EventType,
			"tenant_id":  event.TenantID,
			"rule_id":    event.RuleID,
			"action":     event.Action,
			"timestamp":  event.Timestamp.Format(time.RFC3339Nano),
			"changed_by": event.ChangedBy,
		}).
		Build()

	return p.producer.Publish(ctx, p.topic, *envelope)
}

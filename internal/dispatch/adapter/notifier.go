package adapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ruleflow/internal/broker"
	"ruleflow/pkg/models"
	"ruleflow/pkg/tracing"
)

// KafkaNotifier hands notifications to the delivery pipeline by publishing them on a topic.
type KafkaNotifier struct {
	producer broker.Producer
	topic    string
	source   string
}

func NewKafkaNotifier(producer broker.Producer, topic, source string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic, source: source}
}

func (n *KafkaNotifier) Send(ctx context.Context, msg models.Notification) error {
	envelope := models.NewMessageEnvelopeBuilder().
		WithID(uuid.NewString()).
		WithSource(n.source).
		WithTenantID(msg.TenantID).
		WithEventType(models.EventTypeNotify).
		WithTraceID(tracing.TraceID(ctx)).
		WithPayload(map[string]interface{}{
			"tenant_id":     msg.TenantID,
			"rule_id":       msg.RuleID,
			"occurrence_id": msg.OccurrenceID,
			"channel":       msg.Channel,
			"requested_at":  msg.RequestedAt,
		}).
		Build()

	// Unset optional parts are left out so that the delivery side can apply its own defaults.
	optional := map[string]string{
		"recipient": msg.Recipient,
		"template":  msg.Template,
		"subject":   msg.Subject,
		"body":      msg.Body,
	}
	for k, v := range optional {
		if v != "" {
			envelope.SetPayloadField(k, v)
		}
	}

	if err := n.producer.Publish(ctx, n.topic, *envelope); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

//go:build integration

package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleflow/internal/config"
	"ruleflow/internal/logger"
	"ruleflow/internal/testinfra"
	"ruleflow/pkg/models"
)

func TestKafka_PublishConsume(t *testing.T) {
	brokers := testinfra.Kafka(t)
	cfg := config.KafkaConfig{
		Brokers: brokers,
		GroupID: "ruleflow-integration",
		Retry:   config.RetryConfig{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 2},
	}

	producer := NewKafkaProducer(cfg, logger.NopLogger())
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	sent := *models.NewMessageEnvelopeBuilder().
		WithID("evt-1").
		WithSource("integration").
		WithTenantID("acme").
		WithEventType(models.EventTypeDomain).
		WithTimestamp(time.Now().UTC()).
		WithPayload(map[string]interface{}{"module": "crm"}).
		Build()
	require.NoError(t, producer.Publish(ctx, "domain_events_it", sent))

	consumer := NewKafkaConsumer(cfg, logger.NopLogger())
	defer consumer.Close()

	received := make(chan models.MessageEnvelope, 1)
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()

	err := consumer.Consume(consumeCtx, "domain_events_it", func(_ context.Context, msg models.MessageEnvelope) error {
		received <- msg
		stop()
		return nil
	})
	assert.True(t, errors.Is(err, context.Canceled))

	select {
	case msg := <-received:
		assert.Equal(t, "evt-1", msg.ID)
		assert.Equal(t, "acme", msg.TenantID)
		assert.Equal(t, models.EventTypeDomain, msg.Metadata.EventType)
	default:
		t.Fatal("no message consumed")
	}
}

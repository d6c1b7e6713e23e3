package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleflow/internal/config"
	"ruleflow/internal/logger"
	"ruleflow/pkg/models"
	"ruleflow/pkg/retry"
)

type capturingProducer struct {
	mu        sync.Mutex
	topics    []string
	envelopes []models.MessageEnvelope
}

func (p *capturingProducer) Publish(_ context.Context, topic string, msg models.MessageEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.envelopes = append(p.envelopes, msg)
	return nil
}

func (p *capturingProducer) Close() error { return nil }

func newTestConsumer(dlq Producer) *KafkaConsumer {
	c := NewKafkaConsumer(config.KafkaConfig{
		DLQTopic: "events_dlq",
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}, logger.NopLogger())
	c.dlqProducer = dlq
	return c
}

func message(t *testing.T, env models.MessageEnvelope) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Topic: "events", Value: raw}
}

func TestHandleMessage_RetriesTransientErrors(t *testing.T) {
	dlq := &capturingProducer{}
	c := newTestConsumer(dlq)

	attempts := 0
	handler := func(ctx context.Context, msg models.MessageEnvelope) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}

	c.handleMessage(context.Background(), "events", message(t, models.MessageEnvelope{ID: "m-1", TenantID: "acme"}), handler)

	assert.Equal(t, 3, attempts)
	assert.Empty(t, dlq.envelopes)
}

func TestHandleMessage_FatalErrorGoesToDLQ(t *testing.T) {
	dlq := &capturingProducer{}
	c := newTestConsumer(dlq)

	attempts := 0
	handler := func(ctx context.Context, msg models.MessageEnvelope) error {
		attempts++
		return retry.NewFatalError(errors.New("bad payload"))
	}

	c.handleMessage(context.Background(), "events", message(t, models.MessageEnvelope{ID: "m-2", TenantID: "acme"}), handler)

	assert.Equal(t, 1, attempts)
	require.Len(t, dlq.envelopes, 1)
	assert.Equal(t, "events_dlq", dlq.topics[0])
	assert.Equal(t, "m-2", dlq.envelopes[0].ID)
	assert.Equal(t, "bad payload", dlq.envelopes[0].Metadata.Attributes["dlq_reason"])
	assert.Equal(t, "events", dlq.envelopes[0].Metadata.Attributes["dlq_source_topic"])
}

func TestHandleMessage_PanicIsDeadLettered(t *testing.T) {
	dlq := &capturingProducer{}
	c := newTestConsumer(dlq)

	attempts := 0
	handler := func(ctx context.Context, msg models.MessageEnvelope) error {
		attempts++
		panic("boom")
	}

	c.handleMessage(context.Background(), "events", message(t, models.MessageEnvelope{ID: "m-3"}), handler)

	assert.Equal(t, 1, attempts, "recovered panics are fatal")
	assert.Len(t, dlq.envelopes, 1)
}

func TestHandleMessage_UndecodableIsDropped(t *testing.T) {
	dlq := &capturingProducer{}
	c := newTestConsumer(dlq)

	called := false
	c.handleMessage(context.Background(), "events", kafka.Message{Value: []byte("{not json")}, func(context.Context, models.MessageEnvelope) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.Empty(t, dlq.envelopes)
}

func TestFactory(t *testing.T) {
	_, err := NewProducer(config.BrokerConfig{Type: "none"}, logger.NopLogger())
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = NewConsumer(config.BrokerConfig{Type: "rabbitmq"}, "", logger.NopLogger())
	assert.Error(t, err)

	consumer, err := NewConsumer(config.BrokerConfig{Type: "kafka", Kafka: config.KafkaConfig{GroupID: "engine"}}, "engine-changes", logger.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, "engine-changes", consumer.(*KafkaConsumer).cfg.GroupID)
}

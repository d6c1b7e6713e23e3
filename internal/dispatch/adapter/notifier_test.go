package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleflow/pkg/models"
)

type stubProducer struct {
	topic string
	msg   models.MessageEnvelope
	err   error
}

func (p *stubProducer) Publish(_ context.Context, topic string, msg models.MessageEnvelope) error {
	p.topic = topic
	p.msg = msg
	return p.err
}

func (p *stubProducer) Close() error { return nil }

func TestKafkaNotifier_Send(t *testing.T) {
	producer := &stubProducer{}
	n := NewKafkaNotifier(producer, "notifications", "engine-service")

	err := n.Send(context.Background(), models.Notification{
		TenantID:     "acme",
		RuleID:       "r-1",
		OccurrenceID: "occ-1",
		Channel:      "email",
		Template:     "welcome",
		Recipient:    "a@b.com",
		RequestedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	assert.Equal(t, "notifications", producer.topic)
	assert.Equal(t, "acme", producer.msg.TenantID)
	assert.Equal(t, "engine-service", producer.msg.Source)
	assert.Equal(t, models.EventTypeNotify, producer.msg.Metadata.EventType)
	assert.NotEmpty(t, producer.msg.ID)
	assert.Equal(t, "welcome", producer.msg.Payload["template"])
	assert.Equal(t, "email", producer.msg.Payload["channel"])
	assert.Equal(t, "a@b.com", producer.msg.Payload["recipient"])
	assert.Equal(t, "occ-1", producer.msg.Payload["occurrence_id"])
	assert.NotContains(t, producer.msg.Payload, "body")
	assert.NotContains(t, producer.msg.Payload, "subject")
}

func TestKafkaNotifier_PublishError(t *testing.T) {
	n := NewKafkaNotifier(&stubProducer{err: errors.New("broker down")}, "t", "s")
	assert.Error(t, n.Send(context.Background(), models.Notification{TenantID: "acme"}))
}

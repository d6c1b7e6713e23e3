package broker

import (
	"context"
	"errors"

	"ruleflow/pkg/models"
)

// ErrDisabled is returned by the factory when no broker is configured.
var ErrDisabled = errors.New("broker disabled")

type Producer interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

// HandlerFunc processes one envelope. Returning an error wrapping a fatal error stops retries
// for that message and routes it to the dead letter topic.
type HandlerFunc func(ctx context.Context, msg models.MessageEnvelope) error

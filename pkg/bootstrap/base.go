package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"ruleflow/internal/broker"
	"ruleflow/internal/config"
	"ruleflow/internal/logger"
)

type Base struct {
	Config    *config.Config
	Logger    logger.Logger
	Producer  broker.Producer
	Consumers []broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitProducer creates the shared producer. A disabled broker leaves Producer nil.
func (b *Base) InitProducer(serviceName string) error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if errors.Is(err, broker.ErrDisabled) {
		b.Logger.Infow("Broker disabled, events will not be published")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	if named, ok := producer.(interface{ SetServiceName(string) }); ok && serviceName != "" {
		named.SetServiceName(serviceName)
	}
	b.Producer = producer
	return nil
}

// NewConsumer creates a consumer in groupID that is closed by ShutdownBroker. It returns
// broker.ErrDisabled when no broker is configured.
func (b *Base) NewConsumer(serviceName, groupID string) (broker.Consumer, error) {
	consumer, err := broker.NewConsumer(b.Config.Broker, groupID, b.Logger)
	if err != nil {
		return nil, err
	}
	if serviceName != "" {
		consumer.SetServiceName(serviceName)
	}
	b.Consumers = append(b.Consumers, consumer)
	return consumer, nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	for _, consumer := range b.Consumers {
		if err := consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.InfowCtx(ctx, "Shutting down application")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	b.Logger.InfowCtx(ctx, "Application exited successfully")
	return nil
}

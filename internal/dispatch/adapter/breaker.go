package adapter

import (
	"context"
	"fmt"

	"ruleflow/internal/config"
	"ruleflow/internal/dispatch"
	"ruleflow/pkg/circuitbreaker"
	"ruleflow/pkg/models"
)

// BreakerConfig converts the service configuration into a breaker configuration named name.
func BreakerConfig(name string, cfg config.CircuitBreakerConfig) circuitbreaker.Config {
	cbConfig := circuitbreaker.DefaultConfig(name)
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = circuitbreaker.RatioTrip(cfg.FailureRatio, cfg.MinRequests)
	}
	return cbConfig
}

// WithCircuitBreakers puts every configured collaborator behind its own breaker. Collaborators
// are returned unchanged when breakers are disabled.
func WithCircuitBreakers(collab dispatch.Collaborators, cfg config.CircuitBreakerConfig) dispatch.Collaborators {
	if !cfg.Enabled {
		return collab
	}

	out := collab
	if collab.Notifier != nil {
		out.Notifier = &breakerNotifier{next: collab.Notifier, cb: circuitbreaker.NewWrapper(BreakerConfig("action.notify", cfg))}
	}
	if collab.Records != nil {
		out.Records = &breakerRecords{next: collab.Records, cb: circuitbreaker.NewWrapper(BreakerConfig("action.mutate_field", cfg))}
	}
	if collab.Tickets != nil {
		out.Tickets = &breakerTickets{next: collab.Tickets, cb: circuitbreaker.NewWrapper(BreakerConfig("action.create_ticket", cfg))}
	}
	if collab.Webhooks != nil {
		out.Webhooks = &breakerWebhooks{next: collab.Webhooks, cb: circuitbreaker.NewWrapper(BreakerConfig("action.invoke_webhook", cfg))}
	}
	return out
}

func breakerError(cb *circuitbreaker.Wrapper, err error) error {
	if err != nil && circuitbreaker.IsOpenError(err) {
		return fmt.Errorf("circuit breaker is open for %s: %w", cb.Name(), err)
	}
	return err
}

type breakerNotifier struct {
	next dispatch.Notifier
	cb   *circuitbreaker.Wrapper
}

func (b *breakerNotifier) Send(ctx context.Context, n models.Notification) error {
	return breakerError(b.cb, b.cb.Run(ctx, func() error { return b.next.Send(ctx, n) }))
}

type breakerRecords struct {
	next dispatch.RecordStore
	cb   *circuitbreaker.Wrapper
}

func (b *breakerRecords) MutateField(ctx context.Context, ref dispatch.RecordRef, field string, value interface{}) error {
	return breakerError(b.cb, b.cb.Run(ctx, func() error { return b.next.MutateField(ctx, ref, field, value) }))
}

type breakerTickets struct {
	next dispatch.Ticketing
	cb   *circuitbreaker.Wrapper
}

func (b *breakerTickets) CreateTicket(ctx context.Context, req dispatch.TicketRequest) (string, error) {
	result, err := b.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return b.next.CreateTicket(ctx, req)
	})
	if err != nil {
		return "", breakerError(b.cb, err)
	}
	id, _ := result.(string)
	return id, nil
}

func (b *breakerTickets) UpdateTicket(ctx context.Context, req dispatch.TicketRequest) error {
	return breakerError(b.cb, b.cb.Run(ctx, func() error { return b.next.UpdateTicket(ctx, req) }))
}

func (b *breakerTickets) CloseTicket(ctx context.Context, req dispatch.TicketRequest) error {
	return breakerError(b.cb, b.cb.Run(ctx, func() error { return b.next.CloseTicket(ctx, req) }))
}

type breakerWebhooks struct {
	next dispatch.WebhookInvoker
	cb   *circuitbreaker.Wrapper
}

func (b *breakerWebhooks) Invoke(ctx context.Context, req dispatch.WebhookRequest) error {
	return breakerError(b.cb, b.cb.Run(ctx, func() error { return b.next.Invoke(ctx, req) }))
}

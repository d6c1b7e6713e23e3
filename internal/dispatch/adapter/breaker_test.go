package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleflow/internal/config"
	"ruleflow/internal/dispatch"
	"ruleflow/pkg/circuitbreaker"
	"ruleflow/pkg/models"
)

type failingNotifier struct {
	calls int
}

func (f *failingNotifier) Send(context.Context, models.Notification) error {
	f.calls++
	return errors.New("smtp down")
}

type fixedTickets struct{}

func (fixedTickets) CreateTicket(context.Context, dispatch.TicketRequest) (string, error) {
	return "T-1", nil
}
func (fixedTickets) UpdateTicket(context.Context, dispatch.TicketRequest) error { return nil }
func (fixedTickets) CloseTicket(context.Context, dispatch.TicketRequest) error  { return nil }

func TestWithCircuitBreakers_Disabled(t *testing.T) {
	notifier := &failingNotifier{}
	collab := WithCircuitBreakers(dispatch.Collaborators{Notifier: notifier}, config.CircuitBreakerConfig{})
	assert.Same(t, notifier, collab.Notifier)
}

func TestWithCircuitBreakers_OpensAfterFailures(t *testing.T) {
	notifier := &failingNotifier{}
	cfg := config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}
	collab := WithCircuitBreakers(dispatch.Collaborators{Notifier: notifier, Tickets: fixedTickets{}}, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := collab.Notifier.Send(ctx, models.Notification{})
		require.Error(t, err)
		assert.False(t, circuitbreaker.IsOpenError(err))
	}

	err := collab.Notifier.Send(ctx, models.Notification{})
	assert.True(t, circuitbreaker.IsOpenError(err))
	assert.Equal(t, 2, notifier.calls)

	id, err := collab.Tickets.CreateTicket(ctx, dispatch.TicketRequest{})
	require.NoError(t, err)
	assert.Equal(t, "T-1", id)
}

func TestBreakerConfig(t *testing.T) {
	cfg := BreakerConfig("x", config.CircuitBreakerConfig{MaxRequests: 7, Timeout: time.Second})
	assert.Equal(t, "x", cfg.Name)
	assert.Equal(t, uint32(7), cfg.MaxRequests)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.NotNil(t, cfg.ReadyToTrip)
}

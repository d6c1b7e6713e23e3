package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapper_OpensAfterFailureRatio(t *testing.T) {
	w := NewWrapper(Config{
		Name:        "test-open",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: RatioTrip(0.5, 2),
	})

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		err := w.Run(context.Background(), func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	require.True(t, w.IsOpen())

	err := w.Run(context.Background(), func() error { return nil })
	assert.True(t, IsOpenError(err))
}

func TestWrapper_CancellationIsNotAFailure(t *testing.T) {
	w := NewWrapper(Config{
		Name:        "test-cancel",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: RatioTrip(0.5, 1),
	})

	for i := 0; i < 3; i++ {
		_ = w.Run(context.Background(), func() error { return context.Canceled })
	}

	assert.True(t, w.IsClosed())
}

func TestWrapper_DoneContextSkipsCall(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-done"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := w.Run(ctx, func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRatioTrip(t *testing.T) {
	trip := RatioTrip(0.5, 4)
	assert.False(t, trip(gobreakerCounts(3, 3)))
	assert.True(t, trip(gobreakerCounts(4, 2)))
	assert.False(t, trip(gobreakerCounts(4, 1)))
}

func gobreakerCounts(requests, failures uint32) gobreaker.Counts {
	return gobreaker.Counts{Requests: requests, TotalFailures: failures}
}

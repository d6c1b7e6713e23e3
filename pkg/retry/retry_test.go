package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "ruleflow/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnFatal(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return NewFatalError(errors.New("bad request"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_AppErrorRetryability(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return pkgerrors.ErrStoreUnavailable
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "retryable application errors are retried")

	calls = 0
	err = Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return pkgerrors.ErrValidation
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "validation errors are fatal")
}

func TestRetryWithCallback_ReportsAttempts(t *testing.T) {
	var attempts []int
	_ = RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		return errors.New("always")
	}, func(attempt int, err error, _ time.Duration) {
		attempts = append(attempts, attempt)
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, Policy{MaxAttempts: 5, InitialInterval: time.Second, MaxInterval: time.Second, Multiplier: 1}, func() error {
		calls++
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestPolicy_Delay(t *testing.T) {
	policy := Policy{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{30, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestPolicy_NormalizedFillsUnsetFields(t *testing.T) {
	p := Policy{}.normalized()

	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, backoff.DefaultInitialInterval, p.InitialInterval)
	assert.Equal(t, backoff.DefaultMultiplier, p.Multiplier)
	assert.Equal(t, p.InitialInterval, p.MaxInterval)
	assert.Equal(t, backoff.DefaultInitialInterval, p.Delay(3), "capped at the initial interval")

	exp := Policy{InitialInterval: time.Second, MaxInterval: time.Minute, Multiplier: 3}.exponential()
	assert.Equal(t, time.Duration(0), exp.MaxElapsedTime)
	assert.Equal(t, 3.0, exp.Multiplier)
}

func TestRetryWithCallback_ReportsNominalDelays(t *testing.T) {
	policy := Policy{MaxAttempts: 4, InitialInterval: time.Millisecond, MaxInterval: 3 * time.Millisecond, Multiplier: 2}

	var delays []time.Duration
	_ = RetryWithCallback(context.Background(), policy, func() error {
		return errors.New("always")
	}, func(_ int, _ error, next time.Duration) {
		delays = append(delays, next)
	})

	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, delays)
}

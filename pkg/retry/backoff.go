package retry

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// normalized fills unset fields of p from the backoff package defaults.
func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = backoff.DefaultInitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = backoff.DefaultMultiplier
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	return p
}

// Delay is the nominal wait after the given failed attempt, counted from 1, before jitter.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(d)
}

// exponential builds the jittered backoff for p. A zero MaxElapsedTime leaves the attempt count as
// the only bound.
func (p Policy) exponential() *backoff.ExponentialBackOff {
	p = p.normalized()
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.MaxElapsedTime = p.MaxElapsedTime
	exp.Reset()
	return exp
}

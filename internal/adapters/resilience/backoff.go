package resilience

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/eleven-am/flowcore/internal/domain"
)

// linearBackOff grows by BaseDelay on every attempt.
type linearBackOff struct {
	step    time.Duration
	max     time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	delay := time.Duration(b.attempt) * b.step
	if b.max > 0 && delay > b.max {
		return b.max
	}
	return delay
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// newBackOff builds the delay sequence for policy. The retry loop bounds the
// attempt count itself, so none of these ever return backoff.Stop.
func newBackOff(policy domain.RetryPolicy) backoff.BackOff {
	base := policy.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	if base > maxDelay {
		base = maxDelay
	}

	switch policy.Backoff {
	case domain.BackoffFixed:
		return backoff.NewConstantBackOff(base)

	case domain.BackoffLinear:
		return &linearBackOff{step: base, max: maxDelay}

	case domain.BackoffExponentialJitter:
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = base
		b.MaxInterval = maxDelay
		b.Multiplier = 2
		b.RandomizationFactor = 0.5
		b.MaxElapsedTime = 0
		b.Reset()
		return &cappedBackOff{inner: b, max: maxDelay}

	default:
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = base
		b.MaxInterval = maxDelay
		b.Multiplier = 2
		b.RandomizationFactor = 0
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
}

// cappedBackOff clamps jittered delays, which can otherwise overshoot
// MaxInterval by the randomization factor.
type cappedBackOff struct {
	inner backoff.BackOff
	max   time.Duration
}

func (b *cappedBackOff) NextBackOff() time.Duration {
	delay := b.inner.NextBackOff()
	if delay > b.max {
		return b.max
	}
	return delay
}

func (b *cappedBackOff) Reset() {
	b.inner.Reset()
}

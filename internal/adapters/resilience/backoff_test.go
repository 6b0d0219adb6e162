package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eleven-am/flowcore/internal/domain"
)

func delays(policy domain.RetryPolicy, n int) []time.Duration {
	b := newBackOff(policy)
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = b.NextBackOff()
	}
	return out
}

func TestBackoffShapes(t *testing.T) {
	base := domain.RetryPolicy{BaseDelay: 10 * time.Millisecond, MaxDelay: 35 * time.Millisecond}

	fixed := base
	fixed.Backoff = domain.BackoffFixed
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond}, delays(fixed, 3))

	linear := base
	linear.Backoff = domain.BackoffLinear
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 35 * time.Millisecond}, delays(linear, 4))

	exponential := base
	exponential.Backoff = domain.BackoffExponential
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 35 * time.Millisecond, 35 * time.Millisecond}, delays(exponential, 4))
}

func TestJitteredBackoffStaysWithinBounds(t *testing.T) {
	policy := domain.RetryPolicy{
		BaseDelay: 10 * time.Millisecond,
		MaxDelay:  40 * time.Millisecond,
		Backoff:   domain.BackoffExponentialJitter,
	}

	for _, d := range delays(policy, 20) {
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 40*time.Millisecond)
	}
}

func TestClassify(t *testing.T) {
	errListed := errors.New("listed")
	errDenied := errors.New("denied")
	policy := domain.RetryPolicy{
		RetryableErrors:    []error{errListed},
		NonRetryableErrors: []error{errDenied},
	}

	tests := []struct {
		name string
		err  error
		want domain.FaultClass
	}{
		{"nil", nil, domain.FaultNone},
		{"cancelled", context.Canceled, domain.FaultCancelled},
		{"domain cancelled", domain.NewCancelledError("stop", nil), domain.FaultCancelled},
		{"allow list", fmt.Errorf("wrapped: %w", errListed), domain.FaultRetryable},
		{"deny list", errDenied, domain.FaultNonRetryable},
		{"timeout", domain.NewTimeoutError("slow", nil), domain.FaultRetryable},
		{"deadline", context.DeadlineExceeded, domain.FaultRetryable},
		{"plain", errors.New("bad request"), domain.FaultNonRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err, policy).Fault)
		})
	}
}

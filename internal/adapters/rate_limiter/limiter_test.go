package rate_limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/flowcore/internal/domain"
)

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter("test", domain.RateLimitPolicy{RequestsPerSecond: 1, Burst: 2}, nil)

	assert.True(t, limiter.Allow(), "first request")
	assert.True(t, limiter.Allow(), "second request within burst")
	assert.False(t, limiter.Allow(), "third request exceeds burst")
}

func TestRateLimiterWaitRefills(t *testing.T) {
	limiter := NewRateLimiter("test", domain.RateLimitPolicy{RequestsPerSecond: 50, Burst: 1}, nil)

	require.NoError(t, limiter.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestRateLimiterWaitCancelled(t *testing.T) {
	limiter := NewRateLimiter("test", domain.RateLimitPolicy{RequestsPerSecond: 0.1, Burst: 1}, nil)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsCancelled(err))
}

func TestRateLimiterWaitDeadline(t *testing.T) {
	limiter := NewRateLimiter("test", domain.RateLimitPolicy{RequestsPerSecond: 0.1, Burst: 1}, nil)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsTimeout(err))
}

func TestProviderReusesLimiter(t *testing.T) {
	p := NewProvider(nil)
	policy := domain.RateLimitPolicy{RequestsPerSecond: 5, Burst: 5}

	a := p.GetRateLimiter("notify", policy)
	b := p.GetRateLimiter("notify", policy)
	assert.Same(t, a, b)

	c := p.GetRateLimiter("notify", domain.RateLimitPolicy{RequestsPerSecond: 10})
	assert.NotSame(t, a, c)
}

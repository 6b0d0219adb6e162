package rate_limiter

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

type rateLimiter struct {
	name    string
	policy  domain.RateLimitPolicy
	limiter *rate.Limiter
	logger  *slog.Logger

	allowed atomic.Int64
	denied  atomic.Int64
}

func NewRateLimiter(name string, policy domain.RateLimitPolicy, logger *slog.Logger) ports.RateLimiter {
	return newRateLimiter(name, policy, logger)
}

func newRateLimiter(name string, policy domain.RateLimitPolicy, logger *slog.Logger) *rateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	policy = normalizePolicy(policy)

	return &rateLimiter{
		name:    name,
		policy:  policy,
		limiter: rate.NewLimiter(rate.Limit(policy.RequestsPerSecond), policy.Burst),
		logger:  logger.With("component", "rate-limiter", "name", name),
	}
}

func normalizePolicy(policy domain.RateLimitPolicy) domain.RateLimitPolicy {
	if policy.RequestsPerSecond <= 0 {
		policy.RequestsPerSecond = 100
	}
	if policy.Burst <= 0 {
		policy.Burst = int(policy.RequestsPerSecond)
		if policy.Burst < 1 {
			policy.Burst = 1
		}
	}
	return policy
}

func (rl *rateLimiter) Allow() bool {
	if rl.limiter.Allow() {
		rl.allowed.Add(1)
		return true
	}
	rl.denied.Add(1)
	return false
}

// Wait blocks until a token is available. A wait that could never finish
// before the context deadline fails immediately.
func (rl *rateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		rl.denied.Add(1)
		if ctxErr := ctx.Err(); ctxErr == context.Canceled {
			return domain.NewCancelledError("rate limit wait cancelled", ctxErr, domain.WithOperation(rl.name))
		}
		rl.logger.Debug("rate limit wait failed", "error", err)
		return domain.NewTimeoutError("rate limit wait exceeded deadline", err, domain.WithOperation(rl.name))
	}
	rl.allowed.Add(1)
	return nil
}

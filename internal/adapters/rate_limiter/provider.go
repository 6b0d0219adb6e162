package rate_limiter

import (
	"log/slog"
	"sync"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

type Provider struct {
	mu       sync.RWMutex
	limiters map[string]*rateLimiter
	logger   *slog.Logger
}

var _ ports.RateLimiterProvider = (*Provider)(nil)

func NewProvider(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		limiters: make(map[string]*rateLimiter),
		logger:   logger.With("component", "rate-limiter-provider"),
	}
}

func (p *Provider) GetRateLimiter(name string, policy domain.RateLimitPolicy) ports.RateLimiter {
	policy = normalizePolicy(policy)

	p.mu.RLock()
	limiter, exists := p.limiters[name]
	p.mu.RUnlock()

	if exists && limiter.policy == policy {
		return limiter
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.limiters[name]; ok && existing.policy == policy {
		return existing
	}

	limiter = newRateLimiter(name, policy, p.logger)
	p.limiters[name] = limiter

	p.logger.Debug("created rate limiter",
		"name", name,
		"requests_per_second", policy.RequestsPerSecond,
		"burst", policy.Burst)

	return limiter
}

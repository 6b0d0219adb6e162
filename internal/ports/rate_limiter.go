package ports

import (
	"context"

	"github.com/eleven-am/flowcore/internal/domain"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
}

type RateLimiterProvider interface {
	GetRateLimiter(name string, policy domain.RateLimitPolicy) RateLimiter
}

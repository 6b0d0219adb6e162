package ports

import (
	"time"

	"github.com/eleven-am/flowcore/internal/domain"
)

type CircuitBreakerMetrics struct {
	State            domain.CircuitState `json:"state"`
	WindowFailures   int                 `json:"window_failures"`
	WindowSuccesses  int                 `json:"window_successes"`
	OpenUntil        time.Time           `json:"open_until"`
	LastStateChange  time.Time           `json:"last_state_change"`
	RequestsAllowed  int64               `json:"requests_allowed"`
	RequestsRejected int64               `json:"requests_rejected"`
}

type CircuitBreaker interface {
	Name() string
	// Allow asks whether a call may proceed now.
	Allow() domain.ExecutionPermit
	RecordSuccess()
	RecordFailure()
	State() domain.CircuitState
	Metrics() CircuitBreakerMetrics
	ForceOpen()
	ForceClose()
	Disable()
	Reset()
}

type CircuitBreakerProvider interface {
	// GetCircuitBreaker returns the named breaker, creating it with policy on
	// first use. Later calls update the policy of an existing breaker.
	GetCircuitBreaker(name string, policy domain.CircuitBreakerPolicy) CircuitBreaker
	Lookup(name string) (CircuitBreaker, bool)
	GetAllMetrics() map[string]CircuitBreakerMetrics
}

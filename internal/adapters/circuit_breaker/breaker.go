package circuit_breaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

var timeNow = time.Now

type circuitBreaker struct {
	name   string
	logger *slog.Logger
	now    func() time.Time

	mu               sync.Mutex
	policy           domain.CircuitBreakerPolicy
	state            domain.CircuitState
	failures         []time.Time
	successes        []time.Time
	openUntil        time.Time
	lastStateChange  time.Time
	requestsAllowed  int64
	requestsRejected int64
	onStateChange    func(name string, from, to domain.CircuitState)
}

func NewCircuitBreaker(name string, policy domain.CircuitBreakerPolicy, logger *slog.Logger) ports.CircuitBreaker {
	return newCircuitBreaker(name, policy, logger, time.Now)
}

func newCircuitBreaker(name string, policy domain.CircuitBreakerPolicy, logger *slog.Logger, now func() time.Time) *circuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}

	return &circuitBreaker{
		name:            name,
		policy:          normalizePolicy(policy),
		logger:          logger.With("component", "circuit-breaker", "name", name),
		now:             now,
		state:           domain.CircuitClosed,
		lastStateChange: now(),
	}
}

func normalizePolicy(policy domain.CircuitBreakerPolicy) domain.CircuitBreakerPolicy {
	defaults := domain.DefaultResiliencePolicy().CircuitBreaker
	if policy.FailureThreshold <= 0 {
		policy.FailureThreshold = defaults.FailureThreshold
	}
	if policy.SamplingWindow <= 0 {
		policy.SamplingWindow = defaults.SamplingWindow
	}
	if policy.OpenDuration <= 0 {
		policy.OpenDuration = defaults.OpenDuration
	}
	if policy.MinimumThroughput < 0 {
		policy.MinimumThroughput = 0
	}
	if policy.SuccessThreshold <= 0 || policy.SuccessThreshold > 1 {
		policy.SuccessThreshold = defaults.SuccessThreshold
	}
	return policy
}

func (cb *circuitBreaker) Name() string {
	return cb.name
}

func (cb *circuitBreaker) setPolicy(policy domain.CircuitBreakerPolicy) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.policy = normalizePolicy(policy)
}

func (cb *circuitBreaker) Allow() domain.ExecutionPermit {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	if cb.state == domain.CircuitOpen && !now.Before(cb.openUntil) {
		cb.setState(domain.CircuitHalfOpen, now)
	}

	switch cb.state {
	case domain.CircuitOpen:
		cb.requestsRejected++
		return domain.ExecutionPermit{
			Allowed:    false,
			State:      cb.state,
			RetryAfter: cb.openUntil.Sub(now),
			Reason:     "circuit is open",
		}
	case domain.CircuitDisabled:
		cb.requestsRejected++
		return domain.ExecutionPermit{
			Allowed: false,
			State:   cb.state,
			Reason:  "circuit is disabled",
		}
	}

	cb.requestsAllowed++
	return domain.ExecutionPermit{Allowed: true, State: cb.state}
}

func (cb *circuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.successes = append(cb.successes, now)
	cb.prune(now)

	switch cb.state {
	case domain.CircuitClosed:
		if cb.thresholdReached() {
			cb.setState(domain.CircuitOpen, now)
		}
	case domain.CircuitHalfOpen:
		if cb.successRatio() >= cb.policy.SuccessThreshold {
			cb.setState(domain.CircuitClosed, now)
		}
	}
}

func (cb *circuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.failures = append(cb.failures, now)
	cb.prune(now)

	switch cb.state {
	case domain.CircuitClosed:
		if cb.thresholdReached() {
			cb.setState(domain.CircuitOpen, now)
		}
	case domain.CircuitHalfOpen:
		if cb.successRatio() < cb.policy.SuccessThreshold {
			cb.setState(domain.CircuitOpen, now)
		}
	}
}

// prune drops observations older than the sampling window. Both slices are
// appended in time order so the cut point is a prefix.
func (cb *circuitBreaker) prune(now time.Time) {
	cutoff := now.Add(-cb.policy.SamplingWindow)
	cb.failures = dropBefore(cb.failures, cutoff)
	cb.successes = dropBefore(cb.successes, cutoff)
}

func dropBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && stamps[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}

// thresholdReached reports whether the window holds enough calls and enough
// failures to trip, whichever kind of observation arrived last.
func (cb *circuitBreaker) thresholdReached() bool {
	total := len(cb.failures) + len(cb.successes)
	return total >= cb.policy.MinimumThroughput && len(cb.failures) >= cb.policy.FailureThreshold
}

func (cb *circuitBreaker) successRatio() float64 {
	total := len(cb.failures) + len(cb.successes)
	if total == 0 {
		return 0
	}
	return float64(len(cb.successes)) / float64(total)
}

func (cb *circuitBreaker) setState(newState domain.CircuitState, now time.Time) {
	oldState := cb.state
	if oldState == newState {
		return
	}

	cb.logger.Info("circuit breaker state change",
		"from", oldState.String(),
		"to", newState.String(),
		"window_failures", len(cb.failures),
		"window_successes", len(cb.successes))

	cb.state = newState
	cb.lastStateChange = now

	switch newState {
	case domain.CircuitOpen:
		cb.openUntil = now.Add(cb.policy.OpenDuration)
	case domain.CircuitHalfOpen:
		cb.failures = cb.failures[:0]
		cb.successes = cb.successes[:0]
	case domain.CircuitClosed:
		cb.openUntil = time.Time{}
		if oldState == domain.CircuitHalfOpen {
			cb.failures = cb.failures[:0]
			cb.successes = cb.successes[:0]
		}
	case domain.CircuitDisabled:
		cb.openUntil = time.Time{}
	}

	if cb.onStateChange != nil {
		go cb.onStateChange(cb.name, oldState, newState)
	}
}

func (cb *circuitBreaker) State() domain.CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == domain.CircuitOpen && !cb.now().Before(cb.openUntil) {
		return domain.CircuitHalfOpen
	}
	return cb.state
}

func (cb *circuitBreaker) Metrics() ports.CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return ports.CircuitBreakerMetrics{
		State:            cb.state,
		WindowFailures:   len(cb.failures),
		WindowSuccesses:  len(cb.successes),
		OpenUntil:        cb.openUntil,
		LastStateChange:  cb.lastStateChange,
		RequestsAllowed:  cb.requestsAllowed,
		RequestsRejected: cb.requestsRejected,
	}
}

func (cb *circuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.logger.Info("circuit breaker reset")

	cb.failures = nil
	cb.successes = nil
	cb.requestsAllowed = 0
	cb.requestsRejected = 0
	cb.setState(domain.CircuitClosed, cb.now())
}

func (cb *circuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.logger.Info("circuit breaker force opened")
	now := cb.now()
	cb.setState(domain.CircuitOpen, now)
	cb.openUntil = now.Add(cb.policy.OpenDuration)
}

func (cb *circuitBreaker) ForceClose() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.logger.Info("circuit breaker force closed")
	cb.failures = cb.failures[:0]
	cb.successes = cb.successes[:0]
	cb.setState(domain.CircuitClosed, cb.now())
}

func (cb *circuitBreaker) Disable() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.logger.Info("circuit breaker disabled")
	cb.setState(domain.CircuitDisabled, cb.now())
}

package circuit_breaker

import (
	"log/slog"
	"sync"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

// Provider owns the breaker table. Each breaker carries its own lock, so the
// table lock is only held for lookup and insertion.
type Provider struct {
	mu            sync.RWMutex
	breakers      map[string]*circuitBreaker
	logger        *slog.Logger
	onStateChange func(name string, from, to domain.CircuitState)
}

func NewProvider(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		breakers: make(map[string]*circuitBreaker),
		logger:   logger.With("component", "circuit-breaker-provider"),
	}
}

var _ ports.CircuitBreakerProvider = (*Provider)(nil)

// OnStateChange registers a callback applied to breakers created afterwards.
func (p *Provider) OnStateChange(fn func(name string, from, to domain.CircuitState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStateChange = fn
	for _, breaker := range p.breakers {
		breaker.mu.Lock()
		breaker.onStateChange = fn
		breaker.mu.Unlock()
	}
}

func (p *Provider) GetCircuitBreaker(name string, policy domain.CircuitBreakerPolicy) ports.CircuitBreaker {
	p.mu.RLock()
	breaker, exists := p.breakers[name]
	p.mu.RUnlock()

	if exists {
		breaker.setPolicy(policy)
		return breaker
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, exists := p.breakers[name]; exists {
		return existing
	}

	breaker = newCircuitBreaker(name, policy, p.logger, timeNow)
	breaker.onStateChange = p.onStateChange
	p.breakers[name] = breaker

	p.logger.Debug("created circuit breaker",
		"name", name,
		"failure_threshold", breaker.policy.FailureThreshold,
		"minimum_throughput", breaker.policy.MinimumThroughput,
		"sampling_window", breaker.policy.SamplingWindow,
		"open_duration", breaker.policy.OpenDuration)

	return breaker
}

func (p *Provider) Lookup(name string) (ports.CircuitBreaker, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	breaker, ok := p.breakers[name]
	if !ok {
		return nil, false
	}
	return breaker, true
}

func (p *Provider) GetAllMetrics() map[string]ports.CircuitBreakerMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	metrics := make(map[string]ports.CircuitBreakerMetrics, len(p.breakers))
	for name, breaker := range p.breakers {
		metrics[name] = breaker.Metrics()
	}

	return metrics
}

package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eleven-am/flowcore/internal/adapters/circuit_breaker"
	"github.com/eleven-am/flowcore/internal/adapters/rate_limiter"
	"github.com/eleven-am/flowcore/internal/adapters/semaphore"
	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

type Option func(*Service)

func WithCircuitBreakers(provider ports.CircuitBreakerProvider) Option {
	return func(s *Service) { s.breakers = provider }
}

func WithBulkheads(provider ports.BulkheadProvider) Option {
	return func(s *Service) { s.bulkheads = provider }
}

func WithRateLimiters(provider ports.RateLimiterProvider) Option {
	return func(s *Service) { s.limiters = provider }
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func WithAuditSink(audit ports.AuditSink) Option {
	return func(s *Service) { s.audit = audit }
}

type Service struct {
	config    domain.ResilienceConfig
	breakers  ports.CircuitBreakerProvider
	bulkheads ports.BulkheadProvider
	limiters  ports.RateLimiterProvider
	audit     ports.AuditSink
	recorder  Recorder
	metrics   metricsTable
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

var _ ports.ResilienceService = (*Service)(nil)

func NewService(config domain.ResilienceConfig, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		config:   config,
		recorder: noopRecorder{},
		logger:   logger.With("component", "resilience"),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.breakers == nil {
		s.breakers = circuit_breaker.NewProvider(logger)
	}
	if s.bulkheads == nil {
		s.bulkheads = semaphore.NewProvider(logger)
	}
	if s.limiters == nil {
		s.limiters = rate_limiter.NewProvider(logger)
	}
	return s
}

// PolicyFor resolves the configured policy for an operation in a category.
func (s *Service) PolicyFor(operation, category string) domain.ResiliencePolicy {
	return s.config.PolicyFor(operation, category)
}

func (s *Service) ExecuteWithResilience(ctx context.Context, operationName string, operation ports.Operation, policy *domain.ResiliencePolicy) (interface{}, error) {
	resolved := s.resolve(operationName, "", policy)
	return s.execute(ctx, operationName, operation, nil, resolved)
}

func (s *Service) ExecuteExternalCall(ctx context.Context, serviceName string, call ports.Operation, fallback ports.Fallback, policy *domain.ResiliencePolicy) (interface{}, error) {
	resolved := s.resolve(serviceName, domain.OperationCategoryExternal, policy)
	return s.execute(ctx, serviceName, call, fallback, resolved)
}

func (s *Service) resolve(operationName, category string, policy *domain.ResiliencePolicy) domain.ResiliencePolicy {
	if policy != nil {
		return *policy
	}
	if category == "" {
		category = categoryOf(operationName)
	}
	return s.config.PolicyFor(operationName, category)
}

// categoryOf reads the category prefix of names like "storage.save_instance"
// or "assignment:review".
func categoryOf(operationName string) string {
	if i := strings.IndexAny(operationName, ".:"); i > 0 {
		return operationName[:i]
	}
	return ""
}

func (s *Service) execute(ctx context.Context, name string, operation ports.Operation, fallback ports.Fallback, policy domain.ResiliencePolicy) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewCancelledError("operation cancelled", err, domain.WithOperation(name))
	}

	if !s.config.Enabled {
		return s.attempt(ctx, name, operation, policy.Timeout.Timeout)
	}

	start := time.Now()
	breaker := s.breakers.GetCircuitBreaker(name, policy.CircuitBreaker)

	permit := breaker.Allow()
	if !permit.Allowed {
		err := domain.NewOperationBlockedError(name, permit.State, permit.RetryAfter)
		s.logger.Warn("operation blocked", "operation", name, "circuit_state", permit.State.String(), "retry_after", permit.RetryAfter)
		return s.fail(ctx, name, start, 0, outcomeBlocked, breaker, err, fallback, policy)
	}

	if policy.RateLimit != nil {
		limiter := s.limiters.GetRateLimiter(name, *policy.RateLimit)
		if err := limiter.Wait(ctx); err != nil {
			if domain.IsCancelled(err) {
				return nil, s.cancelled(name, start, err)
			}
			return s.fail(ctx, name, start, 0, outcomeTimeout, breaker, err, fallback, policy)
		}
	}

	if policy.Bulkhead != nil {
		release, err := s.bulkheads.GetBulkhead(name, *policy.Bulkhead).Acquire(ctx)
		if err != nil {
			if domain.IsCancelled(err) {
				return nil, s.cancelled(name, start, err)
			}
			return s.fail(ctx, name, start, 0, outcomeBulkheadRejected, breaker, err, fallback, policy)
		}
		defer release()
	}

	result, attempts, err := s.retry(ctx, name, operation, policy)
	if err != nil {
		if domain.IsCancelled(err) {
			return nil, s.cancelled(name, start, err)
		}

		breaker.RecordFailure()
		kind := outcomeFailure
		if domain.IsTimeout(err) {
			kind = outcomeTimeout
		}
		s.logger.Error("operation failed", "operation", name, "attempts", attempts, "error", err)
		return s.fail(ctx, name, start, attempts, kind, breaker, err, fallback, policy)
	}

	breaker.RecordSuccess()
	s.record(ctx, name, start, attempts, outcomeSuccess, breaker, nil)
	return result, nil
}

func (s *Service) retry(ctx context.Context, name string, operation ports.Operation, policy domain.ResiliencePolicy) (interface{}, int, error) {
	maxAttempts := policy.Retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delays := newBackOff(policy.Retry)

	for attempt := 1; ; attempt++ {
		result, err := s.attempt(ctx, name, operation, policy.Timeout.Timeout)
		if err == nil {
			return result, attempt, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, attempt, domain.NewCancelledError("operation cancelled", ctxErr, domain.WithOperation(name))
		}

		classified := Classify(err, policy.Retry)
		if classified.Fault == domain.FaultCancelled {
			return nil, attempt, err
		}
		if classified.Fault != domain.FaultRetryable || attempt >= maxAttempts {
			return nil, attempt, err
		}

		delay := delays.NextBackOff()
		s.logger.Warn("retrying operation",
			"operation", name,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err)
		s.metrics.update(name, func(m *domain.OperationMetrics) { m.Retries++ })
		s.recorder.RecordRetry(name)

		if err := s.sleep(ctx, delay); err != nil {
			return nil, attempt, domain.NewCancelledError("operation cancelled during backoff", err, domain.WithOperation(name))
		}
	}
}

type attemptResult struct {
	value interface{}
	err   error
}

// attempt runs one call under the per-attempt deadline. A call that ignores
// its context is abandoned once the deadline passes.
func (s *Service) attempt(ctx context.Context, name string, operation ports.Operation, timeout time.Duration) (interface{}, error) {
	attemptCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult{err: domain.NewExecutionError(fmt.Sprintf("operation %s panicked: %v", name, r), nil, domain.WithOperation(name))}
			}
		}()
		value, err := operation(attemptCtx)
		done <- attemptResult{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() == nil && attemptCtx.Err() == context.DeadlineExceeded {
			return nil, domain.NewTimeoutError(fmt.Sprintf("operation %s timed out after %s", name, timeout), res.err, domain.WithOperation(name))
		}
		return res.value, res.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, domain.NewCancelledError("operation cancelled", err, domain.WithOperation(name))
		}
		return nil, domain.NewTimeoutError(fmt.Sprintf("operation %s timed out after %s", name, timeout), context.DeadlineExceeded, domain.WithOperation(name))
	}
}

func (s *Service) fail(ctx context.Context, name string, start time.Time, attempts int, result outcome, breaker ports.CircuitBreaker, cause error, fallback ports.Fallback, policy domain.ResiliencePolicy) (interface{}, error) {
	if fallback == nil || !policy.EnableFallback {
		s.record(ctx, name, start, attempts, result, breaker, cause)
		return nil, cause
	}

	value, err := fallback(ctx, cause)
	if err != nil {
		s.record(ctx, name, start, attempts, result, breaker, cause)
		return nil, domain.NewExecutionError(fmt.Sprintf("fallback for %s failed", name), err, domain.WithOperation(name))
	}

	s.logger.Info("fallback used", "operation", name, "cause", cause)
	if result == outcomeBlocked || result == outcomeBulkheadRejected {
		s.record(ctx, name, start, attempts, result, breaker, cause)
		s.metrics.update(name, func(m *domain.OperationMetrics) { m.Fallbacks++ })
		return value, nil
	}
	s.record(ctx, name, start, attempts, outcomeFallback, breaker, cause)
	return value, nil
}

func (s *Service) cancelled(name string, start time.Time, err error) error {
	duration := time.Since(start)
	s.metrics.update(name, func(m *domain.OperationMetrics) {
		m.TotalCalls++
		m.LastDuration = duration
		m.TotalDuration += duration
		m.AverageDuration = m.TotalDuration / time.Duration(m.TotalCalls)
	})
	s.recorder.RecordOperation(name, string(outcomeCancelled), duration)
	s.logger.Debug("operation cancelled", "operation", name, "error", err)
	return err
}

func (s *Service) record(ctx context.Context, name string, start time.Time, attempts int, result outcome, breaker ports.CircuitBreaker, err error) {
	duration := time.Since(start)
	state := breaker.State()

	s.metrics.update(name, func(m *domain.OperationMetrics) {
		recordCall(m, result, duration, state, err)
	})
	s.recorder.RecordOperation(name, string(result), duration)
	s.recorder.SetCircuitState(name, state)

	if s.audit != nil {
		s.audit.LogPerformanceMetric(ctx, domain.PerformanceMetric{
			Operation: name,
			Duration:  duration,
			Success:   result == outcomeSuccess,
			Attempts:  attempts,
			Tags: map[string]string{
				"outcome":       string(result),
				"circuit_state": state.String(),
			},
			Timestamp: time.Now(),
		})
	}
}

func (s *Service) GetCircuitState(operationName string) domain.CircuitState {
	breaker, ok := s.breakers.Lookup(operationName)
	if !ok {
		return domain.CircuitClosed
	}
	return breaker.State()
}

func (s *Service) breakerFor(operationName string) ports.CircuitBreaker {
	if breaker, ok := s.breakers.Lookup(operationName); ok {
		return breaker
	}
	return s.breakers.GetCircuitBreaker(operationName, s.config.PolicyFor(operationName, "").CircuitBreaker)
}

func (s *Service) OpenCircuit(operationName string) {
	breaker := s.breakerFor(operationName)
	breaker.ForceOpen()
	s.recorder.SetCircuitState(operationName, breaker.State())
}

func (s *Service) CloseCircuit(operationName string) {
	breaker := s.breakerFor(operationName)
	breaker.ForceClose()
	s.recorder.SetCircuitState(operationName, breaker.State())
}

func (s *Service) DisableCircuit(operationName string) {
	breaker := s.breakerFor(operationName)
	breaker.Disable()
	s.recorder.SetCircuitState(operationName, breaker.State())
}

func (s *Service) GetMetrics(operationName string) (domain.OperationMetrics, bool) {
	metrics, ok := s.metrics.get(operationName)
	if !ok {
		return domain.OperationMetrics{}, false
	}
	metrics.CircuitState = s.GetCircuitState(operationName)
	return metrics, true
}

func (s *Service) GetAllMetrics() map[string]domain.OperationMetrics {
	all := s.metrics.all()
	for name, metrics := range all {
		metrics.CircuitState = s.GetCircuitState(name)
		all[name] = metrics
	}
	return all
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

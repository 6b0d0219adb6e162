package domain

import (
	"time"
)

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
	CircuitDisabled
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	case CircuitDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

type BackoffType string

const (
	BackoffFixed             BackoffType = "fixed"
	BackoffLinear            BackoffType = "linear"
	BackoffExponential       BackoffType = "exponential"
	BackoffExponentialJitter BackoffType = "exponential_jitter"
)

type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay" yaml:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay" yaml:"max_delay"`
	Backoff     BackoffType   `json:"backoff" yaml:"backoff"`

	// Matched with errors.Is. NonRetryableErrors wins when an error matches both.
	RetryableErrors    []error `json:"-" yaml:"-"`
	NonRetryableErrors []error `json:"-" yaml:"-"`
}

type CircuitBreakerPolicy struct {
	FailureThreshold  int           `json:"failure_threshold" yaml:"failure_threshold"`
	SamplingWindow    time.Duration `json:"sampling_window" yaml:"sampling_window"`
	OpenDuration      time.Duration `json:"open_duration" yaml:"open_duration"`
	MinimumThroughput int           `json:"minimum_throughput" yaml:"minimum_throughput"`
	SuccessThreshold  float64       `json:"success_threshold" yaml:"success_threshold"`
}

type TimeoutPolicy struct {
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type BulkheadPolicy struct {
	MaxConcurrent  int           `json:"max_concurrent" yaml:"max_concurrent"`
	MaxQueueLength int           `json:"max_queue_length" yaml:"max_queue_length"`
	QueueTimeout   time.Duration `json:"queue_timeout" yaml:"queue_timeout"`
}

type RateLimitPolicy struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
}

type ResiliencePolicy struct {
	Name           string               `json:"name" yaml:"name"`
	Retry          RetryPolicy          `json:"retry" yaml:"retry"`
	CircuitBreaker CircuitBreakerPolicy `json:"circuit_breaker" yaml:"circuit_breaker"`
	Timeout        TimeoutPolicy        `json:"timeout" yaml:"timeout"`
	Bulkhead       *BulkheadPolicy      `json:"bulkhead,omitempty" yaml:"bulkhead,omitempty"`
	RateLimit      *RateLimitPolicy     `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	EnableFallback bool                 `json:"enable_fallback" yaml:"enable_fallback"`
}

const (
	PolicyDefault    = "default"
	PolicyAggressive = "aggressive"
	PolicyLenient    = "lenient"
)

func DefaultResiliencePolicy() ResiliencePolicy {
	return ResiliencePolicy{
		Name: PolicyDefault,
		Retry: RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Backoff:     BackoffExponential,
		},
		CircuitBreaker: CircuitBreakerPolicy{
			FailureThreshold:  5,
			SamplingWindow:    60 * time.Second,
			OpenDuration:      30 * time.Second,
			MinimumThroughput: 10,
			SuccessThreshold:  0.5,
		},
		Timeout:        TimeoutPolicy{Timeout: 30 * time.Second},
		EnableFallback: true,
	}
}

func AggressiveResiliencePolicy() ResiliencePolicy {
	return ResiliencePolicy{
		Name: PolicyAggressive,
		Retry: RetryPolicy{
			MaxAttempts: 5,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			Backoff:     BackoffExponentialJitter,
		},
		CircuitBreaker: CircuitBreakerPolicy{
			FailureThreshold:  3,
			SamplingWindow:    30 * time.Second,
			OpenDuration:      15 * time.Second,
			MinimumThroughput: 5,
			SuccessThreshold:  0.6,
		},
		Timeout:        TimeoutPolicy{Timeout: 10 * time.Second},
		EnableFallback: true,
	}
}

func LenientResiliencePolicy() ResiliencePolicy {
	return ResiliencePolicy{
		Name: PolicyLenient,
		Retry: RetryPolicy{
			MaxAttempts: 2,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    10 * time.Second,
			Backoff:     BackoffLinear,
		},
		CircuitBreaker: CircuitBreakerPolicy{
			FailureThreshold:  10,
			SamplingWindow:    120 * time.Second,
			OpenDuration:      60 * time.Second,
			MinimumThroughput: 20,
			SuccessThreshold:  0.4,
		},
		Timeout:        TimeoutPolicy{Timeout: 60 * time.Second},
		EnableFallback: false,
	}
}

// ResiliencePolicyByName resolves a preset. Unknown names fall back to Default.
func ResiliencePolicyByName(name string) ResiliencePolicy {
	switch name {
	case PolicyAggressive:
		return AggressiveResiliencePolicy()
	case PolicyLenient:
		return LenientResiliencePolicy()
	default:
		return DefaultResiliencePolicy()
	}
}

// ExecutionPermit is the outcome of asking a circuit whether a call may proceed.
type ExecutionPermit struct {
	Allowed    bool          `json:"allowed"`
	State      CircuitState  `json:"state"`
	RetryAfter time.Duration `json:"retry_after"`
	Reason     string        `json:"reason,omitempty"`
}

type OperationMetrics struct {
	Operation          string        `json:"operation"`
	TotalCalls         int64         `json:"total_calls"`
	Successes          int64         `json:"successes"`
	Failures           int64         `json:"failures"`
	Retries            int64         `json:"retries"`
	Timeouts           int64         `json:"timeouts"`
	Blocked            int64         `json:"blocked"`
	BulkheadRejections int64         `json:"bulkhead_rejections"`
	Fallbacks          int64         `json:"fallbacks"`
	TotalDuration      time.Duration `json:"total_duration"`
	AverageDuration    time.Duration `json:"average_duration"`
	LastDuration       time.Duration `json:"last_duration"`
	CircuitState       CircuitState  `json:"circuit_state"`
	LastFailure        string        `json:"last_failure,omitempty"`
	LastUpdated        time.Time     `json:"last_updated"`
}

type FaultClass int

const (
	FaultNone FaultClass = iota
	FaultRetryable
	FaultNonRetryable
	FaultCancelled
)

func (f FaultClass) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultRetryable:
		return "retryable"
	case FaultNonRetryable:
		return "non_retryable"
	case FaultCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one attempt.
type Outcome struct {
	Fault FaultClass
	Err   error
}

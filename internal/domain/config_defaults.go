package domain

import (
	"fmt"
	"log/slog"
	"time"
)

func DefaultConfig() *Config {
	return &Config{
		Engine:     DefaultEngineConfig(),
		Expression: DefaultExpressionConfig(),
		Resilience: DefaultResilienceConfig(),
		Storage:    DefaultStorageConfig(),
		Metrics:    DefaultMetricsConfig(),
		Logging:    DefaultLoggingConfig(),
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxChainDepth:      100,
		HumanActivityTypes: []ActivityType{ActivityTypeHumanTask},
	}
}

func DefaultExpressionConfig() ExpressionConfig {
	return ExpressionConfig{
		MaxLength: 2000,
		MaxTokens: 200,
		MaxDepth:  10,
		Timeout:   100 * time.Millisecond,
		CacheSize: 512,
	}
}

func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Enabled:        true,
		DefaultProfile: PolicyDefault,
		CategoryProfiles: map[string]string{
			OperationCategoryStorage:    PolicyAggressive,
			OperationCategoryAssignment: PolicyDefault,
			OperationCategoryExternal:   PolicyLenient,
		},
		Policies: map[string]ResiliencePolicy{},
	}
}

func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Type: StorageMemory,
		Badger: BadgerConfig{
			Dir: "./data",
		},
		Redis: RedisConfig{
			Addrs:     []string{"localhost:6379"},
			Namespace: "flowcore",
		},
	}
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "flowcore",
	}
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "text",
	}
}

func (c *Config) WithLogger(logger *slog.Logger) *Config {
	c.Logger = logger
	return c
}

func (c *Config) WithMaxChainDepth(depth int) *Config {
	c.Engine.MaxChainDepth = depth
	return c
}

func (c *Config) WithHumanActivityTypes(types ...ActivityType) *Config {
	c.Engine.HumanActivityTypes = types
	return c
}

func (c *Config) WithExpressionLimits(maxLength, maxTokens, maxDepth int, timeout time.Duration) *Config {
	c.Expression.MaxLength = maxLength
	c.Expression.MaxTokens = maxTokens
	c.Expression.MaxDepth = maxDepth
	c.Expression.Timeout = timeout
	return c
}

func (c *Config) WithResilienceProfile(category, profile string) *Config {
	if c.Resilience.CategoryProfiles == nil {
		c.Resilience.CategoryProfiles = make(map[string]string)
	}
	c.Resilience.CategoryProfiles[category] = profile
	return c
}

func (c *Config) WithOperationPolicy(operation string, policy ResiliencePolicy) *Config {
	if c.Resilience.Policies == nil {
		c.Resilience.Policies = make(map[string]ResiliencePolicy)
	}
	c.Resilience.Policies[operation] = policy
	return c
}

func (c *Config) WithBadgerStorage(dir string, inMemory bool) *Config {
	c.Storage.Type = StorageBadger
	c.Storage.Badger = BadgerConfig{Dir: dir, InMemory: inMemory}
	return c
}

func (c *Config) WithRedisStorage(namespace string, addrs ...string) *Config {
	c.Storage.Type = StorageRedis
	c.Storage.Redis.Addrs = addrs
	c.Storage.Redis.Namespace = namespace
	return c
}

func (c *Config) WithMetrics(namespace string) *Config {
	c.Metrics.Enabled = true
	c.Metrics.Namespace = namespace
	return c
}

func (c *Config) Validate() error {
	if c.Engine.MaxChainDepth <= 0 {
		return NewConfigError("engine.max_chain_depth", ErrInvalidInput)
	}
	if c.Expression.MaxLength <= 0 {
		return NewConfigError("expression.max_length", ErrInvalidInput)
	}
	if c.Expression.MaxTokens <= 0 {
		return NewConfigError("expression.max_tokens", ErrInvalidInput)
	}
	if c.Expression.MaxDepth <= 0 {
		return NewConfigError("expression.max_depth", ErrInvalidInput)
	}
	if c.Expression.Timeout <= 0 {
		return NewConfigError("expression.timeout", ErrInvalidInput)
	}
	if c.Expression.CacheSize <= 0 {
		return NewConfigError("expression.cache_size", ErrInvalidInput)
	}

	for operation, policy := range c.Resilience.Policies {
		if err := ValidateResiliencePolicy(policy); err != nil {
			return NewConfigError("resilience.policies."+operation, err)
		}
	}
	for category, profile := range c.Resilience.CategoryProfiles {
		if !isKnownProfile(profile) {
			return NewConfigError("resilience.category_profiles."+category, fmt.Errorf("unknown profile %q", profile))
		}
	}
	if c.Resilience.DefaultProfile != "" && !isKnownProfile(c.Resilience.DefaultProfile) {
		return NewConfigError("resilience.default_profile", fmt.Errorf("unknown profile %q", c.Resilience.DefaultProfile))
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageBadger:
		if !c.Storage.Badger.InMemory && c.Storage.Badger.Dir == "" {
			return NewConfigError("storage.badger.dir", ErrInvalidInput)
		}
	case StorageRedis:
		if len(c.Storage.Redis.Addrs) == 0 {
			return NewConfigError("storage.redis.addrs", ErrInvalidInput)
		}
	default:
		return NewConfigError("storage.type", fmt.Errorf("unsupported storage type %q", c.Storage.Type))
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return NewConfigError("metrics.namespace", ErrInvalidInput)
	}
	return nil
}

func ValidateResiliencePolicy(policy ResiliencePolicy) error {
	if policy.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1: %w", ErrInvalidInput)
	}
	if policy.Retry.BaseDelay < 0 || policy.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative: %w", ErrInvalidInput)
	}
	switch policy.Retry.Backoff {
	case "", BackoffFixed, BackoffLinear, BackoffExponential, BackoffExponentialJitter:
	default:
		return fmt.Errorf("unknown backoff %q: %w", policy.Retry.Backoff, ErrInvalidInput)
	}
	if policy.CircuitBreaker.FailureThreshold < 1 {
		return fmt.Errorf("circuit_breaker.failure_threshold must be at least 1: %w", ErrInvalidInput)
	}
	if policy.CircuitBreaker.SuccessThreshold < 0 || policy.CircuitBreaker.SuccessThreshold > 1 {
		return fmt.Errorf("circuit_breaker.success_threshold must be within [0,1]: %w", ErrInvalidInput)
	}
	if policy.Bulkhead != nil && policy.Bulkhead.MaxConcurrent < 1 {
		return fmt.Errorf("bulkhead.max_concurrent must be at least 1: %w", ErrInvalidInput)
	}
	if policy.RateLimit != nil && policy.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be positive: %w", ErrInvalidInput)
	}
	return nil
}

func isKnownProfile(name string) bool {
	return name == PolicyDefault || name == PolicyAggressive || name == PolicyLenient
}

type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config field %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{
		Field: field,
		Err:   err,
	}
}

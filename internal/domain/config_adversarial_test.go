package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_AdversarialValidation(t *testing.T) {
	tests := []struct {
		name          string
		setupConfig   func() *Config
		expectedField string
	}{
		{
			name: "zero_chain_depth",
			setupConfig: func() *Config {
				return DefaultConfig().WithMaxChainDepth(0)
			},
			expectedField: "engine.max_chain_depth",
		},
		{
			name: "negative_expression_timeout",
			setupConfig: func() *Config {
				return DefaultConfig().WithExpressionLimits(100, 10, 5, -time.Second)
			},
			expectedField: "expression.timeout",
		},
		{
			name: "unknown_category_profile",
			setupConfig: func() *Config {
				return DefaultConfig().WithResilienceProfile(OperationCategoryStorage, "reckless")
			},
			expectedField: "resilience.category_profiles.storage",
		},
		{
			name: "policy_without_attempts",
			setupConfig: func() *Config {
				policy := DefaultResiliencePolicy()
				policy.Retry.MaxAttempts = 0
				return DefaultConfig().WithOperationPolicy("charge", policy)
			},
			expectedField: "resilience.policies.charge",
		},
		{
			name: "redis_without_addresses",
			setupConfig: func() *Config {
				return DefaultConfig().WithRedisStorage("flowcore")
			},
			expectedField: "storage.redis.addrs",
		},
		{
			name: "badger_without_dir",
			setupConfig: func() *Config {
				return DefaultConfig().WithBadgerStorage("", false)
			},
			expectedField: "storage.badger.dir",
		},
		{
			name: "unsupported_storage",
			setupConfig: func() *Config {
				cfg := DefaultConfig()
				cfg.Storage.Type = "sqlite"
				return cfg
			},
			expectedField: "storage.type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.setupConfig().Validate()
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.expectedField, cfgErr.Field)
		})
	}
}

func TestConfig_DefaultsAreValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 100, cfg.Engine.MaxChainDepth)
	assert.True(t, cfg.Engine.IsHumanActivity(ActivityTypeHumanTask))
	assert.False(t, cfg.Engine.IsHumanActivity(ActivityTypeIfElse))

	require.NoError(t, DefaultConfig().WithBadgerStorage("", true).Validate())
}

func TestResilienceConfig_PolicyFor(t *testing.T) {
	cfg := DefaultResilienceConfig()
	custom := LenientResiliencePolicy()
	custom.Name = "custom"
	cfg.Policies["charge"] = custom

	assert.Equal(t, "custom", cfg.PolicyFor("charge", OperationCategoryExternal).Name)
	assert.Equal(t, PolicyAggressive, cfg.PolicyFor("save_instance", OperationCategoryStorage).Name)
	assert.Equal(t, PolicyDefault, cfg.PolicyFor("other", "unknown").Name)
}

func TestResiliencePresets(t *testing.T) {
	def := DefaultResiliencePolicy()
	aggressive := AggressiveResiliencePolicy()
	lenient := LenientResiliencePolicy()

	assert.Less(t, aggressive.CircuitBreaker.FailureThreshold, def.CircuitBreaker.FailureThreshold)
	assert.Less(t, aggressive.Timeout.Timeout, def.Timeout.Timeout)
	assert.Greater(t, aggressive.Retry.MaxAttempts, def.Retry.MaxAttempts)
	assert.Equal(t, BackoffExponentialJitter, aggressive.Retry.Backoff)

	assert.Greater(t, lenient.CircuitBreaker.FailureThreshold, def.CircuitBreaker.FailureThreshold)
	assert.Greater(t, lenient.Timeout.Timeout, def.Timeout.Timeout)
	assert.Less(t, lenient.Retry.MaxAttempts, def.Retry.MaxAttempts)
	assert.False(t, lenient.EnableFallback)

	for _, p := range []ResiliencePolicy{def, aggressive, lenient} {
		assert.NoError(t, ValidateResiliencePolicy(p), p.Name)
	}
}

package domain

import (
	"log/slog"
	"time"
)

type Config struct {
	Logger *slog.Logger `json:"-" yaml:"-" mapstructure:"-"`

	Engine     EngineConfig     `json:"engine" yaml:"engine" mapstructure:"engine"`
	Expression ExpressionConfig `json:"expression" yaml:"expression" mapstructure:"expression"`
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience" mapstructure:"resilience"`
	Storage    StorageConfig    `json:"storage" yaml:"storage" mapstructure:"storage"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging" mapstructure:"logging"`
}

type EngineConfig struct {
	MaxChainDepth               int            `json:"max_chain_depth" yaml:"max_chain_depth" mapstructure:"max_chain_depth"`
	HumanActivityTypes          []ActivityType `json:"human_activity_types" yaml:"human_activity_types" mapstructure:"human_activity_types"`
	DefaultAssignmentStrategies []string       `json:"default_assignment_strategies,omitempty" yaml:"default_assignment_strategies,omitempty" mapstructure:"default_assignment_strategies"`
}

// IsHumanActivity reports whether activities of this type wait on a person.
// The engine tracks the current assignee only while such an activity is open.
func (c EngineConfig) IsHumanActivity(activityType ActivityType) bool {
	for _, t := range c.HumanActivityTypes {
		if t == activityType {
			return true
		}
	}
	return false
}

type ExpressionConfig struct {
	MaxLength int           `json:"max_length" yaml:"max_length" mapstructure:"max_length"`
	MaxTokens int           `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxDepth  int           `json:"max_depth" yaml:"max_depth" mapstructure:"max_depth"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	CacheSize int           `json:"cache_size" yaml:"cache_size" mapstructure:"cache_size"`
}

// Operation categories used to pick a resilience profile.
const (
	OperationCategoryStorage    = "storage"
	OperationCategoryAssignment = "assignment"
	OperationCategoryExternal   = "external"
)

type ResilienceConfig struct {
	Enabled          bool                        `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	DefaultProfile   string                      `json:"default_profile" yaml:"default_profile" mapstructure:"default_profile"`
	CategoryProfiles map[string]string           `json:"category_profiles,omitempty" yaml:"category_profiles,omitempty" mapstructure:"category_profiles"`
	Policies         map[string]ResiliencePolicy `json:"policies,omitempty" yaml:"policies,omitempty" mapstructure:"policies"`
}

// PolicyFor resolves the policy for an operation: an explicit per-operation
// policy, then the category profile, then the default profile.
func (c ResilienceConfig) PolicyFor(operation, category string) ResiliencePolicy {
	if policy, ok := c.Policies[operation]; ok {
		return policy
	}
	if profile, ok := c.CategoryProfiles[category]; ok {
		return ResiliencePolicyByName(profile)
	}
	return ResiliencePolicyByName(c.DefaultProfile)
}

type StorageType string

const (
	StorageMemory StorageType = "memory"
	StorageBadger StorageType = "badger"
	StorageRedis  StorageType = "redis"
)

type StorageConfig struct {
	Type   StorageType  `json:"type" yaml:"type" mapstructure:"type"`
	Badger BadgerConfig `json:"badger" yaml:"badger" mapstructure:"badger"`
	Redis  RedisConfig  `json:"redis" yaml:"redis" mapstructure:"redis"`
}

type BadgerConfig struct {
	Dir      string `json:"dir" yaml:"dir" mapstructure:"dir"`
	InMemory bool   `json:"in_memory" yaml:"in_memory" mapstructure:"in_memory"`
}

type RedisConfig struct {
	Addrs     []string `json:"addrs" yaml:"addrs" mapstructure:"addrs"`
	Password  string   `json:"password,omitempty" yaml:"password,omitempty" mapstructure:"password"`
	DB        int      `json:"db" yaml:"db" mapstructure:"db"`
	Namespace string   `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eleven-am/flowcore/internal/domain"
)

const envPrefix = "FLOWCORE"

// bindFlags registers the persistent flags that overlay the config file.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "path to a config file (yaml, json or toml)")
	flags.String("storage", "badger", "storage backend: memory, badger or redis")
	flags.String("data-dir", "./flowcore-data", "badger data directory")
	flags.StringSlice("redis-addr", []string{"localhost:6379"}, "redis host:port, repeatable")
	flags.String("namespace", "flowcore", "redis key namespace")
	flags.String("log-level", "warn", "debug, info, warn or error")
	flags.String("log-format", "text", "text or json")
	flags.Int("max-chain-depth", 100, "maximum immediate activities run per call")

	bindings := map[string]string{
		"storage.type":            "storage",
		"storage.badger.dir":      "data-dir",
		"storage.redis.addrs":     "redis-addr",
		"storage.redis.namespace": "namespace",
		"logging.level":           "log-level",
		"logging.format":          "log-format",
		"engine.max_chain_depth":  "max-chain-depth",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}

// loadConfig layers defaults, the config file, FLOWCORE_ environment
// variables and flags, in increasing precedence.
func loadConfig(v *viper.Viper, path string) (*domain.Config, error) {
	defaults := domain.DefaultConfig()
	v.SetDefault("engine.human_activity_types", defaults.Engine.HumanActivityTypes)
	v.SetDefault("expression.max_length", defaults.Expression.MaxLength)
	v.SetDefault("expression.max_tokens", defaults.Expression.MaxTokens)
	v.SetDefault("expression.max_depth", defaults.Expression.MaxDepth)
	v.SetDefault("expression.timeout", defaults.Expression.Timeout)
	v.SetDefault("expression.cache_size", defaults.Expression.CacheSize)
	v.SetDefault("resilience.enabled", defaults.Resilience.Enabled)
	v.SetDefault("resilience.default_profile", defaults.Resilience.DefaultProfile)
	v.SetDefault("resilience.category_profiles", defaults.Resilience.CategoryProfiles)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.namespace", defaults.Metrics.Namespace)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, domain.NewConfigurationError("read config file", err, domain.WithDetail("path", path))
			}
		}
	}

	config := domain.DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, domain.NewConfigurationError("decode config", err)
	}
	if err := config.Validate(); err != nil {
		return nil, domain.NewConfigurationError("invalid config", err)
	}
	return config, nil
}

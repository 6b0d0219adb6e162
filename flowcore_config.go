package flowcore

import (
	"io"
	"log/slog"

	"github.com/eleven-am/flowcore/internal/core"
	"github.com/eleven-am/flowcore/internal/domain"
)

type Config = domain.Config

type EngineConfig = domain.EngineConfig

type ExpressionConfig = domain.ExpressionConfig

type ResilienceConfig = domain.ResilienceConfig

type StorageConfig = domain.StorageConfig

type BadgerConfig = domain.BadgerConfig

type RedisConfig = domain.RedisConfig

type MetricsConfig = domain.MetricsConfig

type LoggingConfig = domain.LoggingConfig

type StorageType = domain.StorageType

const (
	StorageMemory = domain.StorageMemory
	StorageBadger = domain.StorageBadger
	StorageRedis  = domain.StorageRedis
)

func DefaultConfig() *Config {
	return domain.DefaultConfig()
}

func DefaultEngineConfig() EngineConfig {
	return domain.DefaultEngineConfig()
}

func DefaultExpressionConfig() ExpressionConfig {
	return domain.DefaultExpressionConfig()
}

func DefaultResilienceConfig() ResilienceConfig {
	return domain.DefaultResilienceConfig()
}

func DefaultStorageConfig() StorageConfig {
	return domain.DefaultStorageConfig()
}

// NewLogger builds the slog logger described by a LoggingConfig.
func NewLogger(config LoggingConfig, w io.Writer) *slog.Logger {
	return core.NewLogger(config, w)
}

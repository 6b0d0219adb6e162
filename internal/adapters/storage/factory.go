package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

// Open builds the key/value store selected by config.
func Open(ctx context.Context, config domain.StorageConfig, logger *slog.Logger) (ports.KVStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch config.Type {
	case "", domain.StorageMemory:
		logger.Debug("using in-memory storage")
		return NewMemoryStore(), nil

	case domain.StorageBadger:
		logger.Debug("opening badger storage", "dir", config.Badger.Dir, "in_memory", config.Badger.InMemory)
		return OpenBadger(config.Badger, logger)

	case domain.StorageRedis:
		logger.Debug("connecting to redis storage", "addrs", config.Redis.Addrs, "namespace", config.Redis.Namespace)
		store := NewRedisStore(config.Redis, logger)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil

	default:
		return nil, domain.NewConfigurationError(fmt.Sprintf("unknown storage type %q", config.Type), nil,
			domain.WithComponent(storageComponent))
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck returns a health check for kv. Stores without a Ping method are
// checked with a lookup of a key that never exists.
func HealthCheck(kv ports.KVStore) func(ctx context.Context) error {
	if p, ok := kv.(pinger); ok {
		return p.Ping
	}
	return func(ctx context.Context) error {
		_, _, err := kv.Get(ctx, "health", "ping")
		return err
	}
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	rd "github.com/go-redis/redis/v9"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

const (
	fieldValue   = "value"
	fieldVersion = "version"
)

// RedisStore keeps each record in a hash holding its value and version. A set
// per bucket indexes the record ids. Versioned writes use WATCH so a racing
// writer fails with a conflict.
type RedisStore struct {
	client    rd.UniversalClient
	namespace string
	logger    *slog.Logger
}

var _ ports.KVStore = (*RedisStore)(nil)

func NewRedisStore(config domain.RedisConfig, logger *slog.Logger) *RedisStore {
	client := rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs:    config.Addrs,
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisStoreWithClient(client, config.Namespace, logger)
}

func NewRedisStoreWithClient(client rd.UniversalClient, namespace string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	if namespace == "" {
		namespace = "flowcore"
	}
	return &RedisStore{
		client:    client,
		namespace: namespace,
		logger:    logger.With("component", "redis_store"),
	}
}

func (s *RedisStore) key(args ...string) string {
	return fmt.Sprintf("%s:%s", s.namespace, strings.Join(args, ":"))
}

func (s *RedisStore) recordKey(bucket, id string) string {
	return s.key("rec", bucket, id)
}

func (s *RedisStore) indexKey(bucket string) string {
	return s.key("idx", bucket)
}

// Ping verifies the server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return domain.NewStorageError("redis is unreachable", err, domain.WithComponent(storageComponent))
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, bucket, id string) (ports.Record, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.recordKey(bucket, id)).Result()
	if err != nil {
		return ports.Record{}, false, storageError("get", bucket, id, err)
	}
	return decodeHash(id, fields)
}

func decodeHash(id string, fields map[string]string) (ports.Record, bool, error) {
	if len(fields) == 0 {
		return ports.Record{}, false, nil
	}
	var version int64
	if _, err := fmt.Sscan(fields[fieldVersion], &version); err != nil {
		return ports.Record{}, false, fmt.Errorf("corrupt version for %s: %w", id, err)
	}
	return ports.Record{ID: id, Value: []byte(fields[fieldValue]), Version: version}, true, nil
}

func (s *RedisStore) Put(ctx context.Context, bucket, id string, value []byte, expectedVersion int64) (int64, error) {
	key := s.recordKey(bucket, id)
	var next int64

	err := s.client.Watch(ctx, func(tx *rd.Tx) error {
		current, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if errors.Is(err, rd.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if err := checkVersion(bucket, id, current, expectedVersion); err != nil {
			return err
		}

		next = current + 1
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.HSet(ctx, key, fieldValue, value, fieldVersion, next)
			pipe.SAdd(ctx, s.indexKey(bucket), id)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return next, nil
	case domain.IsConflict(err):
		return 0, err
	case errors.Is(err, rd.TxFailedErr):
		return 0, domain.NewConflictError(fmt.Sprintf("%s/%s was written concurrently", bucket, id), err,
			domain.WithComponent(storageComponent))
	default:
		return 0, storageError("put", bucket, id, err)
	}
}

func (s *RedisStore) Take(ctx context.Context, bucket, id string) (ports.Record, bool, error) {
	key := s.recordKey(bucket, id)
	var (
		record ports.Record
		found  bool
	)

	err := s.client.Watch(ctx, func(tx *rd.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		record, found, err = decodeHash(id, fields)
		if err != nil || !found {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.indexKey(bucket), id)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, rd.TxFailedErr) {
		return ports.Record{}, false, nil
	}
	if err != nil {
		return ports.Record{}, false, storageError("take", bucket, id, err)
	}
	return record, found, nil
}

func (s *RedisStore) Delete(ctx context.Context, bucket, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.Del(ctx, s.recordKey(bucket, id))
		pipe.SRem(ctx, s.indexKey(bucket), id)
		return nil
	})
	if err != nil {
		return storageError("delete", bucket, id, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, bucket string) ([]ports.Record, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(bucket)).Result()
	if err != nil {
		return nil, storageError("list", bucket, "*", err)
	}
	sort.Strings(ids)

	cmds := make([]interface{ Val() map[string]string }, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe rd.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.recordKey(bucket, id))
		}
		return nil
	})
	if err != nil {
		return nil, storageError("list", bucket, "*", err)
	}

	records := make([]ports.Record, 0, len(ids))
	for i, id := range ids {
		record, found, err := decodeHash(id, cmds[i].Val())
		if err != nil {
			return nil, storageError("list", bucket, id, err)
		}
		if !found {
			s.logger.Debug("index entry without record", "bucket", bucket, "id", id)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

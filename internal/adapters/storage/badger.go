package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

// BadgerStore persists records in an embedded badger database. Each record
// is kept as a data key and a sibling version key written in one transaction.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ ports.KVStore = (*BadgerStore)(nil)

func OpenBadger(config domain.BadgerConfig, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(config.Dir)
	if config.InMemory {
		opts = badger.DefaultOptions("")
		opts.InMemory = true
	}
	opts.Logger = &badgerLogger{logger: logger.With("component", "badger")}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.NewStorageError("failed to open badger database", err,
			domain.WithComponent(storageComponent),
			domain.WithDetail("dir", config.Dir),
			domain.WithDetail("in_memory", config.InMemory))
	}

	return &BadgerStore{
		db:     db,
		logger: logger.With("component", "badger_store"),
	}, nil
}

func dataKey(bucket, id string) []byte {
	return []byte("d:" + bucket + ":" + id)
}

func versionKey(bucket, id string) []byte {
	return []byte("v:" + bucket + ":" + id)
}

func readVersion(txn *badger.Txn, bucket, id string) (int64, error) {
	item, err := txn.Get(versionKey(bucket, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt version for %s/%s", bucket, id)
	}
	return int64(binary.BigEndian.Uint64(raw)), nil
}

func encodeVersion(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func readRecord(txn *badger.Txn, bucket, id string) (ports.Record, bool, error) {
	item, err := txn.Get(dataKey(bucket, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ports.Record{}, false, nil
	}
	if err != nil {
		return ports.Record{}, false, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return ports.Record{}, false, err
	}
	version, err := readVersion(txn, bucket, id)
	if err != nil {
		return ports.Record{}, false, err
	}
	return ports.Record{ID: id, Value: value, Version: version}, true, nil
}

func (s *BadgerStore) Get(ctx context.Context, bucket, id string) (record ports.Record, found bool, err error) {
	if err := ctx.Err(); err != nil {
		return ports.Record{}, false, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		record, found, err = readRecord(txn, bucket, id)
		return err
	})
	if err != nil {
		return ports.Record{}, false, storageError("get", bucket, id, err)
	}
	return record, found, nil
}

func (s *BadgerStore) Put(ctx context.Context, bucket, id string, value []byte, expectedVersion int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var next int64
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := readVersion(txn, bucket, id)
		if err != nil {
			return err
		}
		if err := checkVersion(bucket, id, current, expectedVersion); err != nil {
			return err
		}

		next = current + 1
		if err := txn.Set(dataKey(bucket, id), value); err != nil {
			return err
		}
		return txn.Set(versionKey(bucket, id), encodeVersion(next))
	})

	switch {
	case err == nil:
		return next, nil
	case domain.IsConflict(err):
		return 0, err
	case errors.Is(err, badger.ErrConflict):
		return 0, domain.NewConflictError(fmt.Sprintf("%s/%s was written concurrently", bucket, id), err,
			domain.WithComponent(storageComponent))
	default:
		return 0, storageError("put", bucket, id, err)
	}
}

func (s *BadgerStore) Take(ctx context.Context, bucket, id string) (record ports.Record, found bool, err error) {
	if err := ctx.Err(); err != nil {
		return ports.Record{}, false, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		record, found, err = readRecord(txn, bucket, id)
		if err != nil || !found {
			return err
		}
		if err := txn.Delete(dataKey(bucket, id)); err != nil {
			return err
		}
		return txn.Delete(versionKey(bucket, id))
	})
	if errors.Is(err, badger.ErrConflict) {
		return ports.Record{}, false, nil
	}
	if err != nil {
		return ports.Record{}, false, storageError("take", bucket, id, err)
	}
	return record, found, nil
}

func (s *BadgerStore) Delete(ctx context.Context, bucket, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(dataKey(bucket, id)); err != nil {
			return err
		}
		return txn.Delete(versionKey(bucket, id))
	})
	if err != nil {
		return storageError("delete", bucket, id, err)
	}
	return nil
}

func (s *BadgerStore) List(ctx context.Context, bucket string) ([]ports.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := "d:" + bucket + ":"
	var records []ports.Record

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), prefix)

			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			version, err := readVersion(txn, bucket, id)
			if err != nil {
				return err
			}
			records = append(records, ports.Record{ID: id, Value: value, Version: version})
		}
		return nil
	})
	if err != nil {
		return nil, storageError("list", bucket, "*", err)
	}
	return records, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(f, v...))
}

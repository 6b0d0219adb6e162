package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/eleven-am/flowcore/internal/ports"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]ports.Record
	closed  bool
}

var _ ports.KVStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]map[string]ports.Record)}
}

func (m *MemoryStore) Get(ctx context.Context, bucket, id string) (ports.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return ports.Record{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ports.Record{}, false, errClosed("get")
	}

	record, ok := m.buckets[bucket][id]
	if !ok {
		return ports.Record{}, false, nil
	}
	return copyRecord(record), true, nil
}

func (m *MemoryStore) Put(ctx context.Context, bucket, id string, value []byte, expectedVersion int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errClosed("put")
	}

	records, ok := m.buckets[bucket]
	if !ok {
		records = make(map[string]ports.Record)
		m.buckets[bucket] = records
	}

	current := records[id].Version
	if err := checkVersion(bucket, id, current, expectedVersion); err != nil {
		return 0, err
	}

	next := current + 1
	records[id] = ports.Record{ID: id, Value: append([]byte(nil), value...), Version: next}
	return next, nil
}

func (m *MemoryStore) Take(ctx context.Context, bucket, id string) (ports.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return ports.Record{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ports.Record{}, false, errClosed("take")
	}

	record, ok := m.buckets[bucket][id]
	if !ok {
		return ports.Record{}, false, nil
	}
	delete(m.buckets[bucket], id)
	return record, true, nil
}

func (m *MemoryStore) Delete(ctx context.Context, bucket, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed("delete")
	}
	delete(m.buckets[bucket], id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, bucket string) ([]ports.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed("list")
	}

	records := make([]ports.Record, 0, len(m.buckets[bucket]))
	for _, record := range m.buckets[bucket] {
		records = append(records, copyRecord(record))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func copyRecord(r ports.Record) ports.Record {
	r.Value = append([]byte(nil), r.Value...)
	return r
}

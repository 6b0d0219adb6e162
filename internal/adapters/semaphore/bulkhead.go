package semaphore

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

// Bulkhead is a counting semaphore with a bounded wait queue.
type Bulkhead struct {
	name   string
	policy domain.BulkheadPolicy
	slots  chan struct{}
	logger *slog.Logger

	queued   atomic.Int64
	rejected atomic.Int64
}

var _ ports.Bulkhead = (*Bulkhead)(nil)

func NewBulkhead(name string, policy domain.BulkheadPolicy, logger *slog.Logger) *Bulkhead {
	if logger == nil {
		logger = slog.Default()
	}
	policy = normalizePolicy(policy)

	return &Bulkhead{
		name:   name,
		policy: policy,
		slots:  make(chan struct{}, policy.MaxConcurrent),
		logger: logger.With("component", "bulkhead", "name", name),
	}
}

func normalizePolicy(policy domain.BulkheadPolicy) domain.BulkheadPolicy {
	if policy.MaxConcurrent <= 0 {
		policy.MaxConcurrent = 1
	}
	if policy.MaxQueueLength < 0 {
		policy.MaxQueueLength = 0
	}
	return policy
}

func (b *Bulkhead) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewCancelledError("bulkhead acquire cancelled", err, domain.WithOperation(b.name))
	}

	select {
	case b.slots <- struct{}{}:
		return b.releaser(), nil
	default:
	}

	if n := b.queued.Add(1); n > int64(b.policy.MaxQueueLength) {
		b.queued.Add(-1)
		b.rejected.Add(1)
		b.logger.Warn("bulkhead queue full", "max_concurrent", b.policy.MaxConcurrent, "max_queue_length", b.policy.MaxQueueLength)
		return nil, domain.NewBulkheadRejectedError(b.name, "queue is full")
	}
	defer b.queued.Add(-1)

	var timeout <-chan time.Time
	if b.policy.QueueTimeout > 0 {
		timer := time.NewTimer(b.policy.QueueTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case b.slots <- struct{}{}:
		return b.releaser(), nil
	case <-ctx.Done():
		return nil, domain.NewCancelledError("bulkhead acquire cancelled", ctx.Err(), domain.WithOperation(b.name))
	case <-timeout:
		b.rejected.Add(1)
		b.logger.Warn("bulkhead queue timeout", "queue_timeout", b.policy.QueueTimeout)
		return nil, domain.NewBulkheadRejectedError(b.name, "queue timeout exceeded")
	}
}

func (b *Bulkhead) releaser() func() {
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			<-b.slots
		}
	}
}

func (b *Bulkhead) InFlight() int {
	return len(b.slots)
}

func (b *Bulkhead) Queued() int {
	return int(b.queued.Load())
}

func (b *Bulkhead) Rejected() int64 {
	return b.rejected.Load()
}

package semaphore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/flowcore/internal/domain"
)

func TestBulkheadLimitsConcurrency(t *testing.T) {
	b := NewBulkhead("reports", domain.BulkheadPolicy{MaxConcurrent: 2, MaxQueueLength: 0}, nil)
	ctx := context.Background()

	r1, err := b.Acquire(ctx)
	require.NoError(t, err)
	r2, err := b.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, b.InFlight())

	_, err = b.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsBulkheadRejected(err))
	assert.Equal(t, int64(1), b.Rejected())

	r1()
	r1()
	assert.Equal(t, 1, b.InFlight())

	r3, err := b.Acquire(ctx)
	require.NoError(t, err)
	r2()
	r3()
	assert.Equal(t, 0, b.InFlight())
}

func TestBulkheadQueueWaitsForSlot(t *testing.T) {
	b := NewBulkhead("reports", domain.BulkheadPolicy{MaxConcurrent: 1, MaxQueueLength: 1, QueueTimeout: time.Second}, nil)
	ctx := context.Background()

	release, err := b.Acquire(ctx)
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		r, err := b.Acquire(ctx)
		if err == nil {
			r()
		}
		acquired <- err
	}()

	require.Eventually(t, func() bool { return b.Queued() == 1 }, time.Second, 5*time.Millisecond)

	_, err = b.Acquire(ctx)
	require.Error(t, err, "queue already holds one waiter")
	assert.True(t, domain.IsBulkheadRejected(err))

	release()
	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("queued acquire never completed")
	}
	assert.Equal(t, 0, b.Queued())
}

func TestBulkheadQueueTimeout(t *testing.T) {
	b := NewBulkhead("reports", domain.BulkheadPolicy{MaxConcurrent: 1, MaxQueueLength: 5, QueueTimeout: 20 * time.Millisecond}, nil)

	release, err := b.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	_, err = b.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsBulkheadRejected(err))
	assert.Contains(t, err.Error(), "queue timeout")
}

func TestBulkheadCancellationWhileQueued(t *testing.T) {
	b := NewBulkhead("reports", domain.BulkheadPolicy{MaxConcurrent: 1, MaxQueueLength: 5}, nil)

	release, err := b.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err = b.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsCancelled(err))
	assert.False(t, domain.IsBulkheadRejected(err))
}

func TestBulkheadConcurrentUse(t *testing.T) {
	b := NewBulkhead("reports", domain.BulkheadPolicy{MaxConcurrent: 3, MaxQueueLength: 100, QueueTimeout: 5 * time.Second}, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		highest int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := b.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			active++
			if active > highest {
				highest = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, highest, 3)
}

func TestProviderReusesBulkheadForSamePolicy(t *testing.T) {
	p := NewProvider(nil)
	policy := domain.BulkheadPolicy{MaxConcurrent: 2}

	a := p.GetBulkhead("exports", policy)
	b := p.GetBulkhead("exports", policy)
	assert.Same(t, a, b)

	c := p.GetBulkhead("exports", domain.BulkheadPolicy{MaxConcurrent: 4})
	assert.NotSame(t, a, c)
}

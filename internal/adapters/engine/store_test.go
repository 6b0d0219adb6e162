package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/flowcore/internal/adapters/resilience"
	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

type conflictingInstances struct {
	ports.InstanceStore
}

func (conflictingInstances) SaveInstance(context.Context, *domain.WorkflowInstance) error {
	return domain.NewConflictError("instance was modified concurrently", nil)
}

func TestCancelKeepsBookmarksWhenSaveFails(t *testing.T) {
	h := newHarness(t, domain.DefaultEngineConfig(), reviewSchema())
	ctx := context.Background()

	instance, err := h.engine.StartWorkflow(ctx, ports.StartRequest{SchemaID: "review", StartedBy: "alice"})
	require.NoError(t, err)

	h.engine.instances = conflictingInstances{InstanceStore: h.stores.Instances}

	_, err = h.engine.CancelWorkflow(ctx, instance.ID, "withdrawn")
	assert.True(t, domain.IsConflict(err))

	stored, err := h.stores.Instances.GetInstance(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowStatusRunning, stored.Status)

	bookmarks, err := h.stores.Bookmarks.ListBookmarks(ctx, instance.ID)
	require.NoError(t, err)
	assert.Len(t, bookmarks, 1)
	assert.NotContains(t, h.eventTypes(instance.ID), domain.EventWorkflowCancelled)
}

type slowInstances struct {
	ports.InstanceStore
	release chan struct{}
	done    sync.WaitGroup
}

func (s *slowInstances) GetInstance(_ context.Context, id string) (*domain.WorkflowInstance, error) {
	defer s.done.Done()
	<-s.release
	return nil, domain.NewNotFoundError("instance", id)
}

func TestAbandonedStoreCallDoesNotLeakIntoResult(t *testing.T) {
	h := newHarness(t, domain.DefaultEngineConfig())

	policy := domain.DefaultResiliencePolicy()
	policy.Retry.MaxAttempts = 1
	policy.Timeout.Timeout = 20 * time.Millisecond
	config := domain.DefaultResilienceConfig()
	config.Policies = map[string]domain.ResiliencePolicy{"storage.get_instance": policy}
	h.engine.services.Resilience = resilience.NewService(config, nil)

	store := &slowInstances{InstanceStore: h.stores.Instances, release: make(chan struct{})}
	store.done.Add(1)
	h.engine.instances = store

	_, err := h.engine.GetWorkflow(context.Background(), "wf-late")
	require.Error(t, err)
	assert.True(t, domain.IsTimeout(err))
	assert.False(t, domain.IsNotFound(err))

	close(store.release)
	store.done.Wait()
}

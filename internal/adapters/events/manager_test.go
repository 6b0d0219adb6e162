package events

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eleven-am/flowcore/internal/domain"
)

func TestManagerDispatchesByType(t *testing.T) {
	manager := NewManager(nil)

	var got []domain.EventType
	manager.Subscribe(func(_ context.Context, event domain.WorkflowEvent) {
		got = append(got, event.Type)
	}, domain.EventWorkflowCompleted, domain.EventWorkflowFailed)

	ctx := context.Background()
	manager.Publish(ctx, domain.WorkflowEvent{Type: domain.EventWorkflowStarted})
	manager.Publish(ctx, domain.WorkflowEvent{Type: domain.EventWorkflowCompleted})
	manager.Publish(ctx, domain.WorkflowEvent{Type: domain.EventActivityFailed})
	manager.Publish(ctx, domain.WorkflowEvent{Type: domain.EventWorkflowFailed})

	assert.Equal(t, []domain.EventType{domain.EventWorkflowCompleted, domain.EventWorkflowFailed}, got)
}

func TestManagerPatternSubscription(t *testing.T) {
	manager := NewManager(nil)

	var activity, all int
	manager.Subscribe(func(context.Context, domain.WorkflowEvent) { activity++ }, "activity.*")
	manager.Subscribe(func(context.Context, domain.WorkflowEvent) { all++ })

	ctx := context.Background()
	manager.Publish(ctx, domain.WorkflowEvent{Type: domain.EventActivityStarted})
	manager.Publish(ctx, domain.WorkflowEvent{Type: domain.EventActivityPending})
	manager.Publish(ctx, domain.WorkflowEvent{Type: domain.EventWorkflowSuspended})

	assert.Equal(t, 2, activity)
	assert.Equal(t, 3, all)
}

func TestManagerRecoversHandlerPanic(t *testing.T) {
	manager := NewManager(nil)

	delivered := false
	manager.Subscribe(func(context.Context, domain.WorkflowEvent) { panic("handler exploded") })
	manager.Subscribe(func(context.Context, domain.WorkflowEvent) { delivered = true })

	assert.NotPanics(t, func() {
		manager.Publish(context.Background(), domain.WorkflowEvent{Type: domain.EventWorkflowStarted})
	})
	assert.True(t, delivered)
}

func TestManagerUnsubscribe(t *testing.T) {
	manager := NewManager(nil)

	count := 0
	unsubscribe := manager.Subscribe(func(context.Context, domain.WorkflowEvent) { count++ })

	manager.Publish(context.Background(), domain.WorkflowEvent{Type: domain.EventWorkflowStarted})
	unsubscribe()
	unsubscribe()
	manager.Publish(context.Background(), domain.WorkflowEvent{Type: domain.EventWorkflowStarted})

	assert.Equal(t, 1, count)
}

func TestManagerAsync(t *testing.T) {
	manager := NewManager(nil, WithAsync())

	var (
		mu    sync.Mutex
		count int
	)
	for i := 0; i < 3; i++ {
		manager.Subscribe(func(context.Context, domain.WorkflowEvent) {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}

	manager.Publish(context.Background(), domain.WorkflowEvent{Type: domain.EventWorkflowStarted})
	manager.Wait()

	assert.Equal(t, 3, count)
}

func TestPatternMatching(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		matches bool
	}{
		{"*", "anything", true},
		{"workflow.*", "workflow.started", true},
		{"workflow.*", "activity.started", false},
		{"workflow.completed", "workflow.completed", true},
		{"workflow.completed", "workflow.failed", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.matches, patternMatches(tt.pattern, tt.key), "%s vs %s", tt.pattern, tt.key)
	}
}

package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports/mocks"
)

func staticSelector(name string, result domain.SelectionResult, err error) *mocks.MockAssigneeSelector {
	selector := &mocks.MockAssigneeSelector{}
	selector.On("Name").Return(name)
	selector.On("Select", mock.Anything, mock.Anything).Return(result, err)
	return selector
}

func newTestEngine(t *testing.T, selectors ...*mocks.MockAssigneeSelector) *Engine {
	t.Helper()
	registry := NewRegistry(nil)
	for _, s := range selectors {
		require.NoError(t, registry.Register(s))
	}
	return NewEngine(registry, nil, nil)
}

func TestEngineFirstSuccessShortCircuits(t *testing.T) {
	a := staticSelector("A", domain.SelectionFailed("A", "nobody available"), nil)
	b := staticSelector("B", domain.SelectionSucceeded("B", "bob", ""), nil)
	c := &mocks.MockAssigneeSelector{}
	c.On("Name").Return("C")

	engine := newTestEngine(t, a, b, c)
	result := engine.Execute(context.Background(), domain.AssignmentContext{
		InstanceID:           "wf-1",
		ActivityID:           "review",
		AssignmentStrategies: []string{"A", "B", "C"},
	})

	require.True(t, result.Success)
	assert.Equal(t, "bob", result.Assignee)
	assert.Equal(t, "B", result.Metadata[domain.MetaSuccessfulStrategy])
	assert.Equal(t, 2, result.Metadata[domain.MetaStrategyPosition])
	assert.Equal(t, []string{"A", "B", "C"}, result.Metadata[domain.MetaAttemptedStrategies])
	c.AssertNotCalled(t, "Select", mock.Anything, mock.Anything)
}

func TestEngineEmptyStrategies(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Execute(context.Background(), domain.AssignmentContext{})

	assert.False(t, result.Success)
	assert.Equal(t, "no strategies provided", result.ErrorMessage)
}

func TestEngineAggregatesFailures(t *testing.T) {
	a := staticSelector("A", domain.SelectionFailed("A", "queue empty"), nil)
	b := staticSelector("B", domain.SelectionResult{}, errors.New("directory offline"))

	engine := newTestEngine(t, a, b)
	result := engine.Execute(context.Background(), domain.AssignmentContext{
		AssignmentStrategies: []string{"A", "missing", "B"},
	})

	require.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "queue empty")
	assert.Contains(t, result.ErrorMessage, "directory offline")
	assert.Contains(t, result.ErrorMessage, "missing: strategy not registered")
}

func TestEngineSkipsUnknownStrategies(t *testing.T) {
	b := staticSelector("B", domain.SelectionSucceeded("B", "", "ops"), nil)

	engine := newTestEngine(t, b)
	result := engine.Execute(context.Background(), domain.AssignmentContext{
		AssignmentStrategies: []string{"nope", "B"},
	})

	require.True(t, result.Success)
	assert.Equal(t, "ops", result.AssigneeGroup)
	assert.Equal(t, 2, result.Metadata[domain.MetaStrategyPosition])
}

func TestEngineRecoversSelectorPanic(t *testing.T) {
	boom := &mocks.MockAssigneeSelector{}
	boom.On("Name").Return("boom")
	boom.On("Select", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("selector exploded")
	})
	fallback := staticSelector("fallback", domain.SelectionSucceeded("fallback", "alice", ""), nil)

	engine := newTestEngine(t, boom, fallback)
	result := engine.Execute(context.Background(), domain.AssignmentContext{
		AssignmentStrategies: []string{"boom", "fallback"},
	})

	require.True(t, result.Success)
	assert.Equal(t, "alice", result.Assignee)
}

func TestEngineRouteBack(t *testing.T) {
	completed := time.Now()
	instance := &domain.WorkflowInstance{
		ID: "wf-1",
		ActivityExecutions: []*domain.ActivityExecution{
			{ID: "e1", ActivityID: "review", Status: domain.ExecutionStatusCompleted, CompletedAt: &completed, Assignee: "carol"},
			{ID: "e2", ActivityID: "approve", Status: domain.ExecutionStatusInProgress},
		},
	}

	store := mocks.NewMockInstanceStore(t)
	store.On("GetInstance", mock.Anything, "wf-1").Return(instance, nil)
	store.On("GetInstance", mock.Anything, "wf-missing").Return(nil, domain.NewNotFoundError("instance", "wf-missing"))

	engine := NewEngine(NewRegistry(nil), store, nil)

	again, err := engine.IsRouteBackScenario(context.Background(), "wf-1", "review")
	require.NoError(t, err)
	assert.True(t, again)

	again, err = engine.IsRouteBackScenario(context.Background(), "wf-1", "approve")
	require.NoError(t, err)
	assert.False(t, again, "an in-progress execution is not a prior one")

	again, err = engine.IsRouteBackScenario(context.Background(), "wf-missing", "review")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry(nil)
	require.NoError(t, registry.Register(NewSelector("x", selectDirect)))

	err := registry.Register(NewSelector("x", selectDirect))
	assert.True(t, domain.IsConflict(err))

	require.NoError(t, registry.Register(NewSelector("a", selectDirect)))
	assert.Equal(t, []string{"a", "x"}, registry.Names())
}

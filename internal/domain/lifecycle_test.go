package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to WorkflowStatus
		allowed  bool
	}{
		{WorkflowStatusRunning, WorkflowStatusCompleted, true},
		{WorkflowStatusRunning, WorkflowStatusFailed, true},
		{WorkflowStatusRunning, WorkflowStatusCancelled, true},
		{WorkflowStatusRunning, WorkflowStatusSuspended, true},
		{WorkflowStatusSuspended, WorkflowStatusRunning, true},
		{WorkflowStatusSuspended, WorkflowStatusCancelled, true},
		{WorkflowStatusSuspended, WorkflowStatusCompleted, false},
		{WorkflowStatusCompleted, WorkflowStatusRunning, false},
		{WorkflowStatusFailed, WorkflowStatusRunning, false},
		{WorkflowStatusCancelled, WorkflowStatusSuspended, false},
		{WorkflowStatusRunning, WorkflowStatusRunning, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, CanTransitionTo(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []WorkflowStatus{WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled} {
		assert.True(t, s.IsTerminal())
		assert.Empty(t, AllowedTransitions(s))
	}
}

func TestTransitionInstance(t *testing.T) {
	instance := &WorkflowInstance{ID: "wf-1", Status: WorkflowStatusRunning}

	require.NoError(t, TransitionInstance(context.Background(), instance, WorkflowStatusSuspended))
	assert.Equal(t, WorkflowStatusSuspended, instance.Status)

	require.NoError(t, TransitionInstance(context.Background(), instance, WorkflowStatusRunning))
	assert.Equal(t, WorkflowStatusRunning, instance.Status)

	require.NoError(t, TransitionInstance(context.Background(), instance, WorkflowStatusCompleted))

	err := TransitionInstance(context.Background(), instance, WorkflowStatusRunning)
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
	assert.Equal(t, WorkflowStatusCompleted, instance.Status)
}

package domain

import (
	"context"

	"github.com/qmuntal/stateless"
)

type lifecycleTrigger string

func triggerFor(target WorkflowStatus) lifecycleTrigger {
	return lifecycleTrigger("to_" + string(target))
}

// allowedTransitions is the workflow status graph. Terminal states have no
// outgoing edges.
var allowedTransitions = map[WorkflowStatus][]WorkflowStatus{
	WorkflowStatusRunning: {
		WorkflowStatusCompleted,
		WorkflowStatusFailed,
		WorkflowStatusCancelled,
		WorkflowStatusSuspended,
	},
	WorkflowStatusSuspended: {
		WorkflowStatusRunning,
		WorkflowStatusCancelled,
	},
}

func newLifecycleMachine(current WorkflowStatus) *stateless.StateMachine {
	sm := stateless.NewStateMachine(current)
	for from, targets := range allowedTransitions {
		cfg := sm.Configure(from)
		for _, to := range targets {
			cfg.Permit(triggerFor(to), to)
		}
	}
	return sm
}

// CanTransitionTo reports whether current may move to target.
func CanTransitionTo(current, target WorkflowStatus) bool {
	ok, err := newLifecycleMachine(current).CanFire(triggerFor(target))
	return err == nil && ok
}

// AllowedTransitions lists the statuses reachable from current.
func AllowedTransitions(current WorkflowStatus) []WorkflowStatus {
	targets := allowedTransitions[current]
	out := make([]WorkflowStatus, len(targets))
	copy(out, targets)
	return out
}

// TransitionInstance moves the instance to target or fails with an
// InvalidTransition error leaving the instance untouched.
func TransitionInstance(ctx context.Context, instance *WorkflowInstance, target WorkflowStatus) error {
	if !CanTransitionTo(instance.Status, target) {
		return NewInvalidTransitionError(instance.Status, target, WithWorkflowID(instance.ID))
	}

	sm := newLifecycleMachine(instance.Status)
	if err := sm.FireCtx(ctx, triggerFor(target)); err != nil {
		return NewInvalidTransitionError(instance.Status, target, WithWorkflowID(instance.ID))
	}
	instance.Status = sm.MustState().(WorkflowStatus)
	return nil
}

package engine

import (
	"context"
	"fmt"

	"github.com/eleven-am/flowcore/internal/domain"
)

// CancelWorkflow moves a running or suspended instance to Cancelled, closes
// its open executions and, once the instance is saved, releases outstanding
// bookmarks.
func (e *Engine) CancelWorkflow(ctx context.Context, instanceID, reason string) (*domain.WorkflowInstance, error) {
	return e.transition(ctx, instanceID, domain.WorkflowStatusCancelled, func(instance *domain.WorkflowInstance) {
		now := e.now().UTC()
		instance.CompletedAt = &now
		instance.ErrorMessage = reason
		instance.CurrentAssignee = ""

		for _, exec := range instance.ActivityExecutions {
			if exec.Status != domain.ExecutionStatusInProgress {
				continue
			}
			exec.Status = domain.ExecutionStatusFailed
			exec.ErrorMessage = "workflow cancelled"
			exec.CompletedAt = &now
		}
	}, reason)
}

// SuspendWorkflow pauses a running instance. Resume calls are rejected until
// it is reactivated.
func (e *Engine) SuspendWorkflow(ctx context.Context, instanceID, reason string) (*domain.WorkflowInstance, error) {
	return e.transition(ctx, instanceID, domain.WorkflowStatusSuspended, nil, reason)
}

func (e *Engine) ReactivateWorkflow(ctx context.Context, instanceID string) (*domain.WorkflowInstance, error) {
	return e.transition(ctx, instanceID, domain.WorkflowStatusRunning, nil, "")
}

func (e *Engine) transition(ctx context.Context, instanceID string, target domain.WorkflowStatus, apply func(*domain.WorkflowInstance), reason string) (*domain.WorkflowInstance, error) {
	unlock := e.locks.lock(instanceID)
	defer unlock()

	instance, err := e.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	from := instance.Status
	if err := domain.TransitionInstance(ctx, instance, target); err != nil {
		return nil, err
	}
	if apply != nil {
		apply(instance)
	}

	if err := e.saveInstance(ctx, instance); err != nil {
		return nil, err
	}

	eventType := domain.EventWorkflowReactivated
	switch target {
	case domain.WorkflowStatusCancelled:
		eventType = domain.EventWorkflowCancelled
		e.stats.RecordCancelled()
		e.releaseBookmarks(ctx, instance.ID)
	case domain.WorkflowStatusSuspended:
		eventType = domain.EventWorkflowSuspended
	}

	e.logger.Info("workflow status changed",
		"workflow_id", instance.ID,
		"from", string(from),
		"to", string(target),
		"reason", reason)

	event := domain.NewWorkflowEvent(eventType, instance)
	event.Message = reason
	e.publish(ctx, event)
	return instance, nil
}

func (e *Engine) releaseBookmarks(ctx context.Context, instanceID string) {
	if e.bookmarks == nil {
		return
	}

	bookmarks, err := e.bookmarks.ListBookmarks(ctx, instanceID)
	if err != nil {
		e.logger.Warn("failed to list bookmarks", append([]any{"workflow_id", instanceID}, errorLogAttrs(err)...)...)
		return
	}
	for _, bookmark := range bookmarks {
		if _, err := e.bookmarks.ConsumeBookmark(ctx, bookmark.Key); err != nil && !domain.IsNotFound(err) {
			e.logger.Warn("failed to release bookmark", "workflow_id", instanceID, "bookmark_key", bookmark.Key, "error", err)
		}
	}
}

// SetAssignmentOverride records a runtime assignment for one activity. An
// empty override removes the existing one. When the activity is a human task
// that is already waiting, a direct assignee takes effect immediately.
func (e *Engine) SetAssignmentOverride(ctx context.Context, instanceID, activityID string, override domain.AssignmentOverride) (*domain.WorkflowInstance, error) {
	if activityID == "" {
		return nil, domain.NewValidationError("activity id is required", nil,
			domain.WithComponent(lifecycleComponent), domain.WithOperation("set_assignment_override"))
	}

	unlock := e.locks.lock(instanceID)
	defer unlock()

	instance, err := e.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.Status.IsTerminal() {
		return nil, domain.NewValidationError(fmt.Sprintf("workflow %s is %s", instance.ID, instance.Status), nil,
			domain.WithComponent(lifecycleComponent),
			domain.WithOperation("set_assignment_override"),
			domain.WithWorkflowID(instance.ID))
	}

	schema, err := e.loadSchema(ctx, instance.SchemaID)
	if err != nil {
		return nil, err
	}
	def, ok := schema.Activity(activityID)
	if !ok {
		return nil, domain.NewNotFoundError("activity", activityID,
			domain.WithComponent(lifecycleComponent), domain.WithWorkflowID(instance.ID))
	}

	if instance.AssignmentOverrides == nil {
		instance.AssignmentOverrides = make(map[string]domain.AssignmentOverride)
	}
	if override.IsEmpty() {
		delete(instance.AssignmentOverrides, activityID)
	} else {
		if override.OverriddenAt.IsZero() {
			override.OverriddenAt = e.now().UTC()
		}
		instance.AssignmentOverrides[activityID] = override
	}

	previous := instance.CurrentAssignee
	if exec := instance.InProgressExecution(activityID); exec != nil && override.RuntimeAssignee != "" && e.config.IsHumanActivity(def.Type) {
		previous = exec.Assignee
		exec.Assignee = domain.ResolveTemplate(override.RuntimeAssignee, instance.Variables)
		instance.CurrentAssignee = exec.Assignee
	}

	if err := e.saveInstance(ctx, instance); err != nil {
		return nil, err
	}

	if e.services.Audit != nil {
		e.services.Audit.LogAssignmentChange(ctx, domain.AssignmentChange{
			InstanceID:       instance.ID,
			ActivityID:       activityID,
			PreviousAssignee: previous,
			NewAssignee:      override.RuntimeAssignee,
			AssigneeGroup:    override.RuntimeAssigneeGroup,
			Strategy:         "override",
			Reason:           override.Reason,
			ChangedBy:        override.OverriddenBy,
			Timestamp:        e.now().UTC(),
		})
	}

	e.logger.Info("assignment override set",
		"workflow_id", instance.ID,
		"activity_id", activityID,
		"cleared", override.IsEmpty(),
		"overridden_by", override.OverriddenBy)
	return instance, nil
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
	json "github.com/eleven-am/flowcore/internal/xjson"
)

// run is one Start or Resume call against a locked instance. Events are held
// until the instance has been persisted.
type run struct {
	engine   *Engine
	schema   *domain.WorkflowSchema
	instance *domain.WorkflowInstance
	logger   *slog.Logger
	events   []domain.WorkflowEvent
	started  time.Time
	steps    int
}

func (e *Engine) newRun(schema *domain.WorkflowSchema, instance *domain.WorkflowInstance) *run {
	return &run{
		engine:   e,
		schema:   schema,
		instance: instance,
		logger:   e.logger.With("workflow_id", instance.ID, "schema_id", schema.ID),
		started:  e.now(),
	}
}

// chain executes activityID and every immediate successor.
func (r *run) chain(ctx context.Context, activityID string) error {
	limit := r.engine.config.MaxChainDepth

	for {
		if r.steps >= limit {
			r.engine.stats.RecordDepthExceeded()
			return newExecutionError(engineComponent,
				fmt.Sprintf("activity chain exceeded the maximum depth of %d", limit), nil,
				domain.WithWorkflowID(r.instance.ID),
				domain.WithActivityID(activityID),
				domain.WithDetail("max_chain_depth", limit))
		}
		r.steps++

		def, ok := r.schema.Activity(activityID)
		if !ok {
			return newExecutionError(engineComponent,
				fmt.Sprintf("activity %s is not defined in schema %s", activityID, r.schema.ID), nil,
				domain.WithWorkflowID(r.instance.ID), domain.WithActivityID(activityID))
		}

		exec, err := r.begin(ctx, def)
		if err != nil {
			return err
		}

		result, err := r.engine.runtime.Execute(ctx, r.activityContext(def, exec))
		if err != nil {
			return err
		}

		next, more, err := r.settle(ctx, def, result)
		if err != nil || !more {
			return err
		}
		activityID = next
	}
}

func (r *run) begin(ctx context.Context, def *domain.ActivityDefinition) (*domain.ActivityExecution, error) {
	input, err := json.CloneMap(r.instance.Variables)
	if err != nil {
		return nil, newExecutionError(engineComponent, "variables are not serializable", err,
			domain.WithWorkflowID(r.instance.ID), domain.WithActivityID(def.ID))
	}

	exec := &domain.ActivityExecution{
		ID:         uuid.NewString(),
		ActivityID: def.ID,
		Name:       def.Name,
		Type:       def.Type,
		Status:     domain.ExecutionStatusInProgress,
		InputData:  input,
		StartedAt:  r.engine.now().UTC(),
	}
	r.instance.ActivityExecutions = append(r.instance.ActivityExecutions, exec)
	r.instance.CurrentActivityID = def.ID

	r.logger.Debug("executing activity", "activity_id", def.ID, "activity_type", string(def.Type))
	r.engine.stats.RecordActivity()
	r.audit(ctx, def, "started", "", nil)
	r.queueActivity(domain.EventActivityStarted, def, nil)
	return exec, nil
}

func (r *run) activityContext(def *domain.ActivityDefinition, exec *domain.ActivityExecution) *ports.ActivityContext {
	return &ports.ActivityContext{
		Instance:   r.instance,
		Schema:     r.schema,
		Activity:   def,
		Execution:  exec,
		Services:   r.engine.services,
		Properties: def.Properties,
	}
}

// settle applies a result to the instance and reports the activity to run
// next. more is false when the chain stops here.
func (r *run) settle(ctx context.Context, def *domain.ActivityDefinition, result domain.ActivityResult) (next string, more bool, err error) {
	switch result.Status {
	case domain.ResultPending:
		r.instance.CurrentActivityID = def.ID
		details := map[string]interface{}{"output": result.Output}
		r.audit(ctx, def, "pending", "", details)
		r.queueActivity(domain.EventActivityPending, def, details)
		if r.engine.config.IsHumanActivity(def.Type) {
			r.logger.Info("awaiting human input",
				"activity_id", def.ID,
				"assignee", r.instance.CurrentAssignee)
		} else {
			r.logger.Info("awaiting external input", "activity_id", def.ID)
		}
		return "", false, nil

	case domain.ResultFailed:
		message := result.ErrorMessage
		if message == "" {
			message = "activity failed"
		}
		r.audit(ctx, def, "failed", "", map[string]interface{}{"error": message})
		r.queueActivity(domain.EventActivityFailed, def, map[string]interface{}{"error": message})
		return "", false, &domain.WorkflowFailure{
			InstanceID: r.instance.ID,
			ActivityID: def.ID,
			Message:    message,
		}
	}

	applyVariables(r.instance, result)
	if r.engine.config.IsHumanActivity(def.Type) {
		r.instance.CurrentAssignee = ""
	}

	actor := ""
	if exec := r.instance.LatestExecution(def.ID); exec != nil {
		actor = exec.CompletedBy
	}
	details := map[string]interface{}{"status": string(result.Status)}
	r.audit(ctx, def, "completed", actor, details)
	r.queueActivity(domain.EventActivityCompleted, def, details)

	next, more, err = r.engine.flow.NextActivity(ctx, r.schema, def.ID, result, r.instance.Variables)
	if err != nil {
		return "", false, err
	}
	if !more {
		r.complete(ctx)
		return "", false, nil
	}
	return next, true, nil
}

// applyVariables writes the result's variable updates by assignment and then
// drops the cleared names.
func applyVariables(instance *domain.WorkflowInstance, result domain.ActivityResult) {
	if instance.Variables == nil {
		instance.Variables = make(map[string]interface{})
	}
	for k, v := range result.VariableUpdates {
		instance.Variables[k] = v
	}
	for _, k := range result.ClearVariables {
		delete(instance.Variables, k)
	}
}

func (r *run) complete(ctx context.Context) {
	if err := domain.TransitionInstance(ctx, r.instance, domain.WorkflowStatusCompleted); err != nil {
		r.logger.Error("failed to complete workflow", errorLogAttrs(err)...)
		return
	}
	now := r.engine.now().UTC()
	r.instance.CompletedAt = &now
	r.instance.CurrentAssignee = ""

	r.logger.Info("workflow completed", "last_activity_id", r.instance.CurrentActivityID)
	r.engine.stats.RecordCompleted()
	r.queue(domain.NewWorkflowEvent(domain.EventWorkflowCompleted, r.instance))
}

// finish persists the outcome of the call. Cancellation and rejected resume
// input leave the stored instance untouched; any other fault marks the
// instance Failed first.
func (r *run) finish(ctx context.Context, err error) (*domain.WorkflowInstance, error) {
	defer func() {
		r.engine.stats.RecordChain(r.steps, r.engine.now().Sub(r.started))
	}()

	if err != nil && (domain.IsCancelled(err) || errors.Is(err, context.Canceled) || ctx.Err() != nil) {
		r.logger.Warn("workflow call cancelled, progress not persisted",
			"activity_id", r.instance.CurrentActivityID)
		return nil, err
	}

	if err != nil && domain.IsResumeError(err) {
		r.logger.Warn("resume rejected", errorLogAttrs(err)...)
		return nil, err
	}

	var failure *domain.WorkflowFailure
	if err != nil {
		failure = r.fail(ctx, err)
	}

	if saveErr := r.engine.saveInstance(ctx, r.instance); saveErr != nil {
		r.logger.Error("failed to persist workflow", errorLogAttrs(saveErr)...)
		if domain.IsConflict(saveErr) {
			return nil, &domain.WorkflowFailure{
				InstanceID:  r.instance.ID,
				ActivityID:  r.instance.CurrentActivityID,
				Message:     "instance was modified concurrently",
				Recoverable: true,
				Cause:       saveErr,
			}
		}
		return nil, saveErr
	}

	for _, event := range r.events {
		r.engine.publish(ctx, event)
	}
	r.events = nil

	if failure != nil {
		return r.instance, failure
	}
	return r.instance, nil
}

// fail marks the instance Failed and returns the failure envelope.
func (r *run) fail(ctx context.Context, err error) *domain.WorkflowFailure {
	failure, ok := domain.AsWorkflowFailure(err)
	if !ok {
		failure = &domain.WorkflowFailure{
			InstanceID: r.instance.ID,
			ActivityID: r.instance.CurrentActivityID,
			Message:    err.Error(),
			Cause:      err,
		}
		if domainErr, ok := domain.AsDomainError(err); ok {
			failure.Message = domainErr.Message
			if domainErr.Context.ActivityID != "" {
				failure.ActivityID = domainErr.Context.ActivityID
			}
		}
	}

	if terr := domain.TransitionInstance(ctx, r.instance, domain.WorkflowStatusFailed); terr != nil {
		r.logger.Error("failed to mark workflow failed", errorLogAttrs(terr)...)
		return failure
	}

	now := r.engine.now().UTC()
	r.instance.CompletedAt = &now
	r.instance.ErrorMessage = failure.Message
	r.instance.FailedActivityID = failure.ActivityID
	r.instance.CurrentAssignee = ""

	attrs := append([]any{"activity_id", failure.ActivityID, "message", failure.Message}, errorLogAttrs(failure.Cause)...)
	r.logger.Error("workflow failed", attrs...)
	r.engine.stats.RecordFailed()

	event := domain.NewWorkflowEvent(domain.EventWorkflowFailed, r.instance)
	event.ActivityID = failure.ActivityID
	event.Message = failure.Message
	r.queue(event)
	return failure
}

func (r *run) queue(event domain.WorkflowEvent) {
	r.events = append(r.events, event)
}

func (r *run) queueActivity(eventType domain.EventType, def *domain.ActivityDefinition, details map[string]interface{}) {
	event := domain.NewWorkflowEvent(eventType, r.instance)
	event.ActivityID = def.ID
	event.ActivityType = def.Type
	for k, v := range details {
		event.Metadata[k] = v
	}
	r.queue(event)
}

func (r *run) audit(ctx context.Context, def *domain.ActivityDefinition, eventType, actor string, details map[string]interface{}) {
	if r.engine.services.Audit == nil {
		return
	}
	r.engine.services.Audit.LogActivityEvent(ctx, domain.ActivityEvent{
		InstanceID:   r.instance.ID,
		ActivityID:   def.ID,
		ActivityType: def.Type,
		EventType:    eventType,
		Actor:        actor,
		Details:      details,
		Timestamp:    r.engine.now().UTC(),
	})
}

package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

// Runtime invokes activities under panic recovery and keeps the
// ActivityExecution record in step with the result.
type Runtime struct {
	registry ports.ActivityRegistry
	logger   *slog.Logger
	now      func() time.Time
}

var _ ports.ActivityRuntime = (*Runtime)(nil)

func NewRuntime(registry ports.ActivityRegistry, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runtime{
		registry: registry,
		logger:   logger.With("component", "activity_runtime"),
		now:      time.Now,
	}
}

type invocation func(ctx context.Context, activity ports.Activity) (domain.ActivityResult, error)

func (r *Runtime) Execute(ctx context.Context, actx *ports.ActivityContext) (domain.ActivityResult, error) {
	return r.run(ctx, actx, "execute", func(ctx context.Context, activity ports.Activity) (domain.ActivityResult, error) {
		return activity.Execute(ctx, actx)
	})
}

func (r *Runtime) Resume(ctx context.Context, actx *ports.ActivityContext, input map[string]interface{}) (domain.ActivityResult, error) {
	result, err := r.run(ctx, actx, "resume", func(ctx context.Context, activity ports.Activity) (domain.ActivityResult, error) {
		return activity.Resume(ctx, actx, input)
	})
	if err != nil || result.Status != domain.ResultCompleted {
		return result, err
	}
	return liftResumeInput(result, input), nil
}

func (r *Runtime) Validate(ctx context.Context, actx *ports.ActivityContext) (result domain.ValidationResult) {
	activity, err := r.registry.Create(actx.Activity.Type)
	if err != nil {
		return domain.InvalidResult(fmt.Sprintf("activity %s: unknown type %q", actx.Activity.ID, actx.Activity.Type))
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("activity validation panicked", "activity_id", actx.Activity.ID, "panic_value", p)
			result = domain.InvalidResult(fmt.Sprintf("activity %s: validation panicked: %v", actx.Activity.ID, p))
		}
	}()

	return activity.Validate(ctx, actx)
}

func (r *Runtime) run(ctx context.Context, actx *ports.ActivityContext, action string, call invocation) (domain.ActivityResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ActivityResult{}, domain.NewCancelledError("activity "+action+" cancelled", err,
			domain.WithWorkflowID(instanceID(actx)), domain.WithActivityID(actx.Activity.ID))
	}

	logger := actx.Logger()
	start := r.now()

	activity, err := r.registry.Create(actx.Activity.Type)
	if err != nil {
		result := r.fail(actx, err)
		r.audit(ctx, actx, action, start, result, err)
		return result, nil
	}

	logger.Debug("invoking activity", "action", action)
	result, err := r.invoke(ctx, actx, call, activity)

	if err != nil {
		if domain.IsCancelled(err) {
			logger.Info("activity cancelled", "action", action)
			return domain.ActivityResult{}, err
		}
		if domain.IsResumeError(err) {
			logger.Warn("resume input rejected", "error", err)
			return domain.ActivityResult{}, err
		}
		logger.Error("activity faulted", "action", action, "error", err)
		result = r.fail(actx, err)
		r.audit(ctx, actx, action, start, result, err)
		return result, nil
	}

	r.settle(actx, result)
	r.audit(ctx, actx, action, start, result, nil)
	logger.Debug("activity settled", "action", action, "status", result.Status, "duration", r.now().Sub(start))
	return result, nil
}

func (r *Runtime) invoke(ctx context.Context, actx *ports.ActivityContext, call invocation, activity ports.Activity) (result domain.ActivityResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			panicErr := domain.NewPanicError(instanceID(actx), actx.Activity.ID, p)
			actx.Logger().Error("activity panicked",
				"panic_value", p,
				"recovered_at", panicErr.RecoveredAt,
				"stack_trace", panicErr.StackTrace)
			err = domain.NewExecutionError(panicErr.Error(), panicErr,
				domain.WithWorkflowID(instanceID(actx)),
				domain.WithActivityID(actx.Activity.ID),
				domain.WithDetail("stack_trace", panicErr.StackTrace))
		}
	}()

	return call(ctx, activity)
}

func (r *Runtime) fail(actx *ports.ActivityContext, err error) domain.ActivityResult {
	result := domain.FailedResult(failureMessage(err))
	r.settle(actx, result)
	return result
}

// failureMessage drops the category prefix of domain errors so the execution
// record and the instance failure carry the same text.
func failureMessage(err error) string {
	if domainErr, ok := domain.AsDomainError(err); ok && domainErr.Message != "" {
		return domainErr.Message
	}
	return err.Error()
}

// settle records the result on the execution. Pending leaves it in progress.
func (r *Runtime) settle(actx *ports.ActivityContext, result domain.ActivityResult) {
	exec := actx.Execution
	if exec == nil {
		return
	}

	if len(result.Output) > 0 {
		exec.OutputData = result.Output
	}

	switch result.Status {
	case domain.ResultCompleted, domain.ResultSkipped:
		now := r.now()
		exec.Status = domain.ExecutionStatusCompleted
		exec.CompletedAt = &now
	case domain.ResultFailed:
		now := r.now()
		exec.Status = domain.ExecutionStatusFailed
		exec.ErrorMessage = result.ErrorMessage
		exec.CompletedAt = &now
	default:
		exec.Status = domain.ExecutionStatusInProgress
	}
}

func (r *Runtime) audit(ctx context.Context, actx *ports.ActivityContext, action string, start time.Time, result domain.ActivityResult, err error) {
	if actx.Services.Audit == nil {
		return
	}

	record := domain.ActionExecutionRecord{
		InstanceID: instanceID(actx),
		ActivityID: actx.Activity.ID,
		Action:     action,
		Success:    result.Status != domain.ResultFailed,
		Duration:   r.now().Sub(start),
		Metadata:   map[string]interface{}{"status": string(result.Status), "activity_type": string(actx.Activity.Type)},
		Timestamp:  r.now(),
	}
	if err != nil {
		record.Error = err.Error()
	} else if result.ErrorMessage != "" {
		record.Error = result.ErrorMessage
	}
	actx.Services.Audit.LogActionExecution(ctx, record)
}

// liftResumeInput carries the routing hint and variable updates supplied by
// the resuming caller into the result unless the activity already set them.
func liftResumeInput(result domain.ActivityResult, input map[string]interface{}) domain.ActivityResult {
	if result.NextActivityID == "" {
		if next, ok := input[domain.InputNextActivityID].(string); ok {
			result.NextActivityID = next
		}
	}

	if updates, ok := input[domain.InputVariableUpdates].(map[string]interface{}); ok && len(updates) > 0 {
		merged := make(map[string]interface{}, len(updates)+len(result.VariableUpdates))
		for k, v := range updates {
			merged[k] = v
		}
		for k, v := range result.VariableUpdates {
			merged[k] = v
		}
		result.VariableUpdates = merged
	}
	return result
}

func instanceID(actx *ports.ActivityContext) string {
	if actx.Instance == nil {
		return ""
	}
	return actx.Instance.ID
}

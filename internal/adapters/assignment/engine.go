package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

// Engine resolves an assignee by trying strategies in order until one
// succeeds.
type Engine struct {
	registry  ports.SelectorRegistry
	instances ports.InstanceStore
	logger    *slog.Logger
}

var _ ports.AssignmentEngine = (*Engine)(nil)

func NewEngine(registry ports.SelectorRegistry, instances ports.InstanceStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		registry:  registry,
		instances: instances,
		logger:    logger.With("component", "assignment_engine"),
	}
}

func (e *Engine) Execute(ctx context.Context, ac domain.AssignmentContext) domain.SelectionResult {
	if len(ac.AssignmentStrategies) == 0 {
		return domain.SelectionFailed("", "no strategies provided")
	}

	logger := e.logger.With("workflow_id", ac.InstanceID, "activity_id", ac.ActivityID)
	attempted := append([]string(nil), ac.AssignmentStrategies...)
	reasons := make([]string, 0, len(attempted))

	for i, name := range attempted {
		if err := ctx.Err(); err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", name, err))
			break
		}

		selector, ok := e.registry.Get(name)
		if !ok {
			logger.Error("assignment strategy not registered", "strategy", name)
			reasons = append(reasons, fmt.Sprintf("%s: strategy not registered", name))
			continue
		}

		result, err := invoke(ctx, selector, ac)
		if err != nil {
			logger.Error("assignment strategy failed", "strategy", name, "error", err)
			reasons = append(reasons, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if !result.Success {
			logger.Debug("assignment strategy declined", "strategy", name, "reason", result.ErrorMessage)
			reasons = append(reasons, fmt.Sprintf("%s: %s", name, result.ErrorMessage))
			continue
		}

		if result.Strategy == "" {
			result.Strategy = name
		}
		if result.Metadata == nil {
			result.Metadata = make(map[string]interface{})
		}
		result.Metadata[domain.MetaSuccessfulStrategy] = name
		result.Metadata[domain.MetaStrategyPosition] = i + 1
		result.Metadata[domain.MetaAttemptedStrategies] = attempted

		logger.Info("assignee resolved",
			"strategy", name,
			"position", i+1,
			"assignee", result.Assignee,
			"assignee_group", result.AssigneeGroup)
		return result
	}

	failed := domain.SelectionFailed("", "all assignment strategies failed: "+strings.Join(reasons, "; "))
	failed.Metadata[domain.MetaAttemptedStrategies] = attempted
	logger.Warn("no assignment strategy succeeded", "strategies", attempted)
	return failed
}

// invoke runs one selector, turning a panic into an error.
func invoke(ctx context.Context, selector ports.AssigneeSelector, ac domain.AssignmentContext) (result domain.SelectionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewExecutionError(fmt.Sprintf("selector panicked: %v", r), nil,
				domain.WithComponent("assignment_engine"),
				domain.WithDetail("strategy", selector.Name()))
		}
	}()

	return selector.Select(ctx, ac)
}

// IsRouteBackScenario reports whether the activity already ran to a settled
// state earlier in the same instance.
func (e *Engine) IsRouteBackScenario(ctx context.Context, instanceID, activityID string) (bool, error) {
	if e.instances == nil {
		return false, nil
	}

	instance, err := e.instances.GetInstance(ctx, instanceID)
	if err != nil {
		if domain.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return len(instance.PriorExecutions(activityID)) > 0, nil
}

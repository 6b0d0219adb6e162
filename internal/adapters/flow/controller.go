package flow

import (
	"context"
	"log/slog"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

// Controller picks the next activity from the schema transitions.
type Controller struct {
	expressions ports.ExpressionEvaluator
	logger      *slog.Logger
}

var _ ports.FlowController = (*Controller)(nil)

func NewController(expressions ports.ExpressionEvaluator, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		expressions: expressions,
		logger:      logger.With("component", "flow_controller"),
	}
}

// NextActivity resolves, in order: the result's explicit next activity hint,
// the first conditional transition whose condition holds, and the first
// normal transition.
func (c *Controller) NextActivity(ctx context.Context, schema *domain.WorkflowSchema, activityID string, result domain.ActivityResult, variables map[string]interface{}) (string, bool, error) {
	logger := c.logger.With("schema_id", schema.ID, "activity_id", activityID)

	if hint := result.NextActivityID; hint != "" {
		if _, ok := schema.Activity(hint); !ok {
			return "", false, domain.NewValidationError("next activity "+hint+" does not exist in schema", nil,
				domain.WithComponent("flow_controller"), domain.WithActivityID(activityID))
		}
		logger.Debug("following next activity hint", "next_activity_id", hint)
		return hint, true, nil
	}

	transitions := schema.OutgoingTransitions(activityID)
	if len(transitions) == 0 {
		return "", false, nil
	}

	scope := evaluationScope(variables, result.Output)
	var fallback *domain.TransitionDefinition

	for i := range transitions {
		t := transitions[i]
		if !t.IsConditional() {
			if fallback == nil {
				fallback = &transitions[i]
			}
			continue
		}
		if c.expressions == nil {
			return "", false, domain.NewExecutionError("expression evaluator not configured", nil,
				domain.WithComponent("flow_controller"))
		}

		matched, err := c.expressions.EvaluateBoolean(ctx, t.Condition, scope)
		if err != nil {
			return "", false, err
		}
		logger.Debug("transition evaluated", "transition_id", t.ID, "condition", t.Condition, "matched", matched)
		if matched {
			return t.To, true, nil
		}
	}

	if fallback != nil {
		return fallback.To, true, nil
	}

	logger.Warn("no transition matched", "transitions", len(transitions))
	return "", false, nil
}

// evaluationScope overlays the settled activity's output on the workflow
// variables so conditions can branch on values such as result.
func evaluationScope(variables, output map[string]interface{}) map[string]interface{} {
	scope := make(map[string]interface{}, len(variables)+len(output))
	for k, v := range variables {
		scope[k] = v
	}
	for k, v := range output {
		scope[k] = v
	}
	return scope
}

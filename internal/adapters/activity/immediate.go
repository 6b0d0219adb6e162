package activity

import (
	"context"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

const (
	propCondition       = "condition"
	propOutputVariables = "outputVariables"
)

func unsupportedResume(actx *ports.ActivityContext) error {
	return domain.NewUnsupportedOperationError(
		"activity type "+string(actx.Activity.Type)+" does not support resume",
		domain.WithWorkflowID(instanceID(actx)),
		domain.WithActivityID(actx.Activity.ID))
}

type Start struct{}

func (a *Start) Type() domain.ActivityType { return domain.ActivityTypeStart }

func (a *Start) Execute(_ context.Context, actx *ports.ActivityContext) (domain.ActivityResult, error) {
	return domain.CompletedResult(map[string]interface{}{
		"startedAt": actx.Now(),
	}), nil
}

func (a *Start) Resume(_ context.Context, actx *ports.ActivityContext, _ map[string]interface{}) (domain.ActivityResult, error) {
	return domain.ActivityResult{}, unsupportedResume(actx)
}

func (a *Start) Validate(context.Context, *ports.ActivityContext) domain.ValidationResult {
	return domain.ValidResult()
}

// End finishes the path. outputVariables lists variables to copy into the
// output.
type End struct{}

func (a *End) Type() domain.ActivityType { return domain.ActivityTypeEnd }

func (a *End) Execute(_ context.Context, actx *ports.ActivityContext) (domain.ActivityResult, error) {
	output := map[string]interface{}{
		"completedAt": actx.Now(),
	}

	var names []string
	if _, err := decodeProp(properties(actx), propOutputVariables, &names); err != nil {
		return domain.ActivityResult{}, domain.NewValidationError(err.Error(), err, domain.WithActivityID(actx.Activity.ID))
	}
	vars := actx.Variables()
	for _, name := range names {
		if value, ok := domain.LookupVariable(vars, name); ok {
			output[name] = value
		}
	}
	return domain.CompletedResult(output), nil
}

func (a *End) Resume(_ context.Context, actx *ports.ActivityContext, _ map[string]interface{}) (domain.ActivityResult, error) {
	return domain.ActivityResult{}, unsupportedResume(actx)
}

func (a *End) Validate(_ context.Context, actx *ports.ActivityContext) domain.ValidationResult {
	var names []string
	if _, err := decodeProp(properties(actx), propOutputVariables, &names); err != nil {
		return domain.InvalidResult(err.Error())
	}
	return domain.ValidResult()
}

// IfElse evaluates its condition and writes the boolean as result.
type IfElse struct{}

func (a *IfElse) Type() domain.ActivityType { return domain.ActivityTypeIfElse }

func (a *IfElse) Execute(ctx context.Context, actx *ports.ActivityContext) (domain.ActivityResult, error) {
	condition := stringProp(properties(actx), propCondition)
	if condition == "" {
		return domain.ActivityResult{}, domain.NewMissingPropertyError(propCondition,
			domain.WithWorkflowID(instanceID(actx)), domain.WithActivityID(actx.Activity.ID))
	}
	if actx.Services.Expressions == nil {
		return domain.ActivityResult{}, domain.NewExecutionError("expression evaluator not configured", nil,
			domain.WithActivityID(actx.Activity.ID))
	}

	value, err := actx.Services.Expressions.EvaluateBoolean(ctx, condition, actx.Variables())
	if err != nil {
		return domain.ActivityResult{}, err
	}

	actx.Logger().Debug("condition evaluated", "condition", condition, "result", value)
	return domain.CompletedResult(map[string]interface{}{"result": value}), nil
}

func (a *IfElse) Resume(_ context.Context, actx *ports.ActivityContext, _ map[string]interface{}) (domain.ActivityResult, error) {
	return domain.ActivityResult{}, unsupportedResume(actx)
}

func (a *IfElse) Validate(_ context.Context, actx *ports.ActivityContext) domain.ValidationResult {
	condition := stringProp(properties(actx), propCondition)
	if condition == "" {
		return domain.InvalidResult("if_else activity " + actx.Activity.ID + " requires a condition")
	}
	if actx.Services.Expressions != nil {
		if ok, err := actx.Services.Expressions.Validate(condition); !ok || err != nil {
			return domain.InvalidResult("if_else activity " + actx.Activity.ID + ": invalid condition: " + errorText(err))
		}
	}
	return domain.ValidResult()
}

package ports

import "context"

type ExpressionEvaluator interface {
	Evaluate(ctx context.Context, expression string, variables map[string]interface{}) (interface{}, error)
	// EvaluateBoolean treats missing variables as falsy and never fails on them.
	EvaluateBoolean(ctx context.Context, expression string, variables map[string]interface{}) (bool, error)
	Validate(expression string) (bool, error)
}

package engine

import "github.com/eleven-am/flowcore/internal/domain"

const (
	engineComponent    = "engine.Engine"
	lifecycleComponent = "engine.Lifecycle"
	validatorComponent = "engine.Validator"
)

func newExecutionError(component, message string, cause error, opts ...domain.ErrorOption) *domain.DomainError {
	merged := []domain.ErrorOption{domain.WithComponent(component)}
	if len(opts) > 0 {
		merged = append(merged, opts...)
	}
	return domain.NewExecutionError(message, cause, merged...)
}

func newResumeError(message string, opts ...domain.ErrorOption) *domain.DomainError {
	merged := []domain.ErrorOption{domain.WithComponent(engineComponent), domain.WithOperation("resume")}
	if len(opts) > 0 {
		merged = append(merged, opts...)
	}
	return domain.NewResumeError(message, nil, merged...)
}

func errorLogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	attrs := []any{
		"error", err,
		"error_category", domain.GetErrorCategory(err).String(),
		"error_retryable", domain.IsRetryableError(err),
	}

	if ctx := domain.GetErrorContext(err); ctx != nil {
		if ctx.Component != "" {
			attrs = append(attrs, "error_component", ctx.Component)
		}
		if ctx.Operation != "" {
			attrs = append(attrs, "error_operation", ctx.Operation)
		}
	}
	return attrs
}

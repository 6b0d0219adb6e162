package ports

import (
	"context"

	"github.com/eleven-am/flowcore/internal/domain"
)

type Operation func(ctx context.Context) (interface{}, error)

type Fallback func(ctx context.Context, cause error) (interface{}, error)

type ResilienceService interface {
	// ExecuteWithResilience runs operation under policy, or the default policy
	// when nil.
	ExecuteWithResilience(ctx context.Context, operationName string, operation Operation, policy *domain.ResiliencePolicy) (interface{}, error)
	ExecuteExternalCall(ctx context.Context, serviceName string, call Operation, fallback Fallback, policy *domain.ResiliencePolicy) (interface{}, error)

	GetCircuitState(operationName string) domain.CircuitState
	OpenCircuit(operationName string)
	CloseCircuit(operationName string)
	DisableCircuit(operationName string)

	GetMetrics(operationName string) (domain.OperationMetrics, bool)
	GetAllMetrics() map[string]domain.OperationMetrics
}

package ports

import (
	"context"

	"github.com/eleven-am/flowcore/internal/domain"
)

type AuditSink interface {
	LogActivityEvent(ctx context.Context, event domain.ActivityEvent)
	LogActionExecution(ctx context.Context, record domain.ActionExecutionRecord)
	LogAssignmentChange(ctx context.Context, change domain.AssignmentChange)
	LogPerformanceMetric(ctx context.Context, metric domain.PerformanceMetric)
}

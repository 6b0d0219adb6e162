package ports

import (
	"context"
	"log/slog"
	"time"

	"github.com/eleven-am/flowcore/internal/domain"
)

// ActivityServices are the collaborators an activity may call.
type ActivityServices struct {
	Expressions ExpressionEvaluator
	Resilience  ResilienceService
	Assignment  AssignmentEngine
	Bookmarks   BookmarkStore
	Audit       AuditSink
	Logger      *slog.Logger
	// Clock stamps activity output and drives join timeouts. Nil means time.Now.
	Clock func() time.Time
}

// ActivityContext is the view of one activity invocation. Instance is owned by
// the engine call that built the context.
type ActivityContext struct {
	Instance   *domain.WorkflowInstance
	Schema     *domain.WorkflowSchema
	Activity   *domain.ActivityDefinition
	Execution  *domain.ActivityExecution
	Services   ActivityServices
	Properties map[string]interface{}
}

func (c *ActivityContext) Variables() map[string]interface{} {
	if c.Instance == nil {
		return nil
	}
	if c.Instance.Variables == nil {
		c.Instance.Variables = make(map[string]interface{})
	}
	return c.Instance.Variables
}

// Now reads the services clock in UTC.
func (c *ActivityContext) Now() time.Time {
	if c.Services.Clock != nil {
		return c.Services.Clock().UTC()
	}
	return time.Now().UTC()
}

func (c *ActivityContext) Logger() *slog.Logger {
	logger := c.Services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if c.Instance != nil {
		logger = logger.With("workflow_id", c.Instance.ID)
	}
	if c.Activity != nil {
		logger = logger.With("activity_id", c.Activity.ID, "activity_type", string(c.Activity.Type))
	}
	return logger
}

// Activity is the capability every activity variant implements. Execute and
// Resume may return an error; the runtime converts it into a Failed result.
type Activity interface {
	Type() domain.ActivityType
	Execute(ctx context.Context, actx *ActivityContext) (domain.ActivityResult, error)
	Resume(ctx context.Context, actx *ActivityContext, input map[string]interface{}) (domain.ActivityResult, error)
	Validate(ctx context.Context, actx *ActivityContext) domain.ValidationResult
}

type ActivityFactory func() Activity

type ActivityRegistry interface {
	Register(activityType domain.ActivityType, factory ActivityFactory) error
	Create(activityType domain.ActivityType) (Activity, error)
	Types() []domain.ActivityType
}

// ActivityRuntime invokes activities and keeps the execution record in step.
// Activity faults surface as Failed results. Cancellation and rejected resume
// input are returned as errors and leave the execution untouched.
type ActivityRuntime interface {
	Execute(ctx context.Context, actx *ActivityContext) (domain.ActivityResult, error)
	Resume(ctx context.Context, actx *ActivityContext, input map[string]interface{}) (domain.ActivityResult, error)
	Validate(ctx context.Context, actx *ActivityContext) domain.ValidationResult
}

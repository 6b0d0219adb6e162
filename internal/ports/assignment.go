package ports

import (
	"context"

	"github.com/eleven-am/flowcore/internal/domain"
)

// AssigneeSelector proposes an assignee for a human task.
type AssigneeSelector interface {
	Name() string
	Select(ctx context.Context, assignment domain.AssignmentContext) (domain.SelectionResult, error)
}

type SelectorRegistry interface {
	Register(selector AssigneeSelector) error
	Get(name string) (AssigneeSelector, bool)
	Names() []string
}

type AssignmentEngine interface {
	Execute(ctx context.Context, assignment domain.AssignmentContext) domain.SelectionResult
	IsRouteBackScenario(ctx context.Context, instanceID, activityID string) (bool, error)
}

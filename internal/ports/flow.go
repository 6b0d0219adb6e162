package ports

import (
	"context"

	"github.com/eleven-am/flowcore/internal/domain"
)

type FlowController interface {
	// NextActivity returns the activity to run after activityID settled with
	// result. ok is false when the workflow has nowhere further to go.
	NextActivity(ctx context.Context, schema *domain.WorkflowSchema, activityID string, result domain.ActivityResult, variables map[string]interface{}) (next string, ok bool, err error)
}

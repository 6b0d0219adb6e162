package ports

import (
	"context"

	"github.com/eleven-am/flowcore/internal/domain"
)

type EventHandler func(ctx context.Context, event domain.WorkflowEvent)

type EventBus interface {
	Publish(ctx context.Context, event domain.WorkflowEvent)
	// Subscribe registers handler for the given types, or for every event when
	// none are given. The returned func removes the subscription.
	Subscribe(handler EventHandler, types ...domain.EventType) func()
}

package ports

import (
	"context"

	"github.com/eleven-am/flowcore/internal/domain"
)

// Bulkhead caps concurrent executions of one operation and bounds its queue.
type Bulkhead interface {
	// Acquire waits for a slot and returns its release func.
	Acquire(ctx context.Context) (release func(), err error)
	InFlight() int
	Queued() int
}

type BulkheadProvider interface {
	GetBulkhead(name string, policy domain.BulkheadPolicy) Bulkhead
}

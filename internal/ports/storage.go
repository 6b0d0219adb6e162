package ports

import (
	"context"

	"github.com/eleven-am/flowcore/internal/domain"
)

// AnyVersion disables the optimistic version check on Put.
const AnyVersion int64 = -1

type Record struct {
	ID      string
	Value   []byte
	Version int64
}

// KVStore is the bucketed key/value layer the typed stores are built on.
// Put succeeds only when expectedVersion matches the stored version (0 for
// a missing key) unless AnyVersion is passed, and returns the new version.
type KVStore interface {
	Get(ctx context.Context, bucket, id string) (Record, bool, error)
	Put(ctx context.Context, bucket, id string, value []byte, expectedVersion int64) (int64, error)
	// Take atomically reads and removes a record.
	Take(ctx context.Context, bucket, id string) (Record, bool, error)
	Delete(ctx context.Context, bucket, id string) error
	List(ctx context.Context, bucket string) ([]Record, error)
	Close() error
}

type SchemaStore interface {
	GetSchema(ctx context.Context, id string) (*domain.WorkflowSchema, error)
	SaveSchema(ctx context.Context, schema *domain.WorkflowSchema) error
	ListSchemas(ctx context.Context) ([]*domain.WorkflowSchema, error)
}

type InstanceStore interface {
	GetInstance(ctx context.Context, id string) (*domain.WorkflowInstance, error)
	// SaveInstance persists the instance and bumps its Version. It fails with a
	// Conflict error when the stored version moved since the instance was loaded.
	SaveInstance(ctx context.Context, instance *domain.WorkflowInstance) error
	ListByAssignee(ctx context.Context, assignee string) ([]*domain.WorkflowInstance, error)
}

type BookmarkStore interface {
	CreateBookmark(ctx context.Context, bookmark *domain.Bookmark) error
	// ConsumeBookmark removes and returns the bookmark. A second consume of the
	// same key fails with NotFound.
	ConsumeBookmark(ctx context.Context, key string) (*domain.Bookmark, error)
	GetBookmark(ctx context.Context, key string) (*domain.Bookmark, error)
	ListBookmarks(ctx context.Context, instanceID string) ([]*domain.Bookmark, error)
}

// Stores groups the collaborators the engine persists through.
type Stores struct {
	Schemas   SchemaStore
	Instances InstanceStore
	Bookmarks BookmarkStore
}

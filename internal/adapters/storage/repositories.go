package storage

import (
	"context"
	"strings"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
	json "github.com/eleven-am/flowcore/internal/xjson"
)

const (
	bucketSchemas   = "schemas"
	bucketInstances = "instances"
	bucketBookmarks = "bookmarks"
)

// NewStores builds the typed repositories over one key/value store.
func NewStores(kv ports.KVStore) ports.Stores {
	return ports.Stores{
		Schemas:   NewSchemaRepository(kv),
		Instances: NewInstanceRepository(kv),
		Bookmarks: NewBookmarkRepository(kv),
	}
}

func decode(operation, bucket string, record ports.Record, dst interface{}) error {
	if err := json.Unmarshal(record.Value, dst); err != nil {
		return storageError(operation, bucket, record.ID, err)
	}
	return nil
}

type SchemaRepository struct {
	kv ports.KVStore
}

var _ ports.SchemaStore = (*SchemaRepository)(nil)

func NewSchemaRepository(kv ports.KVStore) *SchemaRepository {
	return &SchemaRepository{kv: kv}
}

func (r *SchemaRepository) GetSchema(ctx context.Context, id string) (*domain.WorkflowSchema, error) {
	record, found, err := r.kv.Get(ctx, bucketSchemas, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.NewNotFoundError("schema", id, domain.WithComponent(storageComponent))
	}

	var schema domain.WorkflowSchema
	if err := decode("get", bucketSchemas, record, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// SaveSchema stores the schema, replacing any schema with the same id.
func (r *SchemaRepository) SaveSchema(ctx context.Context, schema *domain.WorkflowSchema) error {
	if schema == nil || schema.ID == "" {
		return domain.NewValidationError("schema id is required", nil, domain.WithComponent(storageComponent))
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return storageError("put", bucketSchemas, schema.ID, err)
	}
	_, err = r.kv.Put(ctx, bucketSchemas, schema.ID, data, ports.AnyVersion)
	return err
}

func (r *SchemaRepository) ListSchemas(ctx context.Context) ([]*domain.WorkflowSchema, error) {
	records, err := r.kv.List(ctx, bucketSchemas)
	if err != nil {
		return nil, err
	}

	schemas := make([]*domain.WorkflowSchema, 0, len(records))
	for _, record := range records {
		var schema domain.WorkflowSchema
		if err := decode("list", bucketSchemas, record, &schema); err != nil {
			return nil, err
		}
		schemas = append(schemas, &schema)
	}
	return schemas, nil
}

type InstanceRepository struct {
	kv ports.KVStore
}

var _ ports.InstanceStore = (*InstanceRepository)(nil)

func NewInstanceRepository(kv ports.KVStore) *InstanceRepository {
	return &InstanceRepository{kv: kv}
}

func (r *InstanceRepository) GetInstance(ctx context.Context, id string) (*domain.WorkflowInstance, error) {
	record, found, err := r.kv.Get(ctx, bucketInstances, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.NewNotFoundError("workflow instance", id, domain.WithComponent(storageComponent))
	}

	var instance domain.WorkflowInstance
	if err := decode("get", bucketInstances, record, &instance); err != nil {
		return nil, err
	}
	instance.Version = record.Version
	return &instance, nil
}

// SaveInstance writes the instance if the stored version still matches
// instance.Version, then advances instance.Version.
func (r *InstanceRepository) SaveInstance(ctx context.Context, instance *domain.WorkflowInstance) error {
	if instance == nil || instance.ID == "" {
		return domain.NewValidationError("instance id is required", nil, domain.WithComponent(storageComponent))
	}

	expected := instance.Version
	instance.Version = expected + 1
	data, err := json.Marshal(instance)
	instance.Version = expected
	if err != nil {
		return storageError("put", bucketInstances, instance.ID, err)
	}

	version, err := r.kv.Put(ctx, bucketInstances, instance.ID, data, expected)
	if err != nil {
		return err
	}
	instance.Version = version
	return nil
}

// ListInstances returns every stored instance ordered by id.
func (r *InstanceRepository) ListInstances(ctx context.Context) ([]*domain.WorkflowInstance, error) {
	records, err := r.kv.List(ctx, bucketInstances)
	if err != nil {
		return nil, err
	}

	instances := make([]*domain.WorkflowInstance, 0, len(records))
	for _, record := range records {
		var instance domain.WorkflowInstance
		if err := decode("list", bucketInstances, record, &instance); err != nil {
			return nil, err
		}
		instance.Version = record.Version
		instances = append(instances, &instance)
	}
	return instances, nil
}

// ListByAssignee returns the open instances currently assigned to assignee.
func (r *InstanceRepository) ListByAssignee(ctx context.Context, assignee string) ([]*domain.WorkflowInstance, error) {
	all, err := r.ListInstances(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*domain.WorkflowInstance
	for _, instance := range all {
		if instance.CurrentAssignee == assignee && !instance.Status.IsTerminal() {
			matched = append(matched, instance)
		}
	}
	return matched, nil
}

type BookmarkRepository struct {
	kv ports.KVStore
}

var _ ports.BookmarkStore = (*BookmarkRepository)(nil)

func NewBookmarkRepository(kv ports.KVStore) *BookmarkRepository {
	return &BookmarkRepository{kv: kv}
}

// CreateBookmark fails with a conflict when the key is already taken.
func (r *BookmarkRepository) CreateBookmark(ctx context.Context, bookmark *domain.Bookmark) error {
	if bookmark == nil || bookmark.Key == "" {
		return domain.NewValidationError("bookmark key is required", nil, domain.WithComponent(storageComponent))
	}
	data, err := json.Marshal(bookmark)
	if err != nil {
		return storageError("put", bucketBookmarks, bookmark.Key, err)
	}
	_, err = r.kv.Put(ctx, bucketBookmarks, bookmark.Key, data, 0)
	return err
}

func (r *BookmarkRepository) ConsumeBookmark(ctx context.Context, key string) (*domain.Bookmark, error) {
	record, found, err := r.kv.Take(ctx, bucketBookmarks, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.NewNotFoundError("bookmark", key, domain.WithComponent(storageComponent))
	}

	var bookmark domain.Bookmark
	if err := decode("take", bucketBookmarks, record, &bookmark); err != nil {
		return nil, err
	}
	return &bookmark, nil
}

func (r *BookmarkRepository) GetBookmark(ctx context.Context, key string) (*domain.Bookmark, error) {
	record, found, err := r.kv.Get(ctx, bucketBookmarks, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.NewNotFoundError("bookmark", key, domain.WithComponent(storageComponent))
	}

	var bookmark domain.Bookmark
	if err := decode("get", bucketBookmarks, record, &bookmark); err != nil {
		return nil, err
	}
	return &bookmark, nil
}

func (r *BookmarkRepository) ListBookmarks(ctx context.Context, instanceID string) ([]*domain.Bookmark, error) {
	records, err := r.kv.List(ctx, bucketBookmarks)
	if err != nil {
		return nil, err
	}

	prefix := instanceID + ":"
	var bookmarks []*domain.Bookmark
	for _, record := range records {
		if instanceID != "" && !strings.HasPrefix(record.ID, prefix) {
			continue
		}
		var bookmark domain.Bookmark
		if err := decode("list", bucketBookmarks, record, &bookmark); err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, &bookmark)
	}
	return bookmarks, nil
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/eleven-am/flowcore/internal/domain"
)

type MockInstanceStore struct {
	mock.Mock
}

func NewMockInstanceStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockInstanceStore {
	m := &MockInstanceStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockInstanceStore) GetInstance(ctx context.Context, id string) (*domain.WorkflowInstance, error) {
	ret := m.Called(ctx, id)

	var r0 *domain.WorkflowInstance
	if rf, ok := ret.Get(0).(func(context.Context, string) *domain.WorkflowInstance); ok {
		r0 = rf(ctx, id)
	} else if v, ok := ret.Get(0).(*domain.WorkflowInstance); ok {
		r0 = v
	}
	return r0, ret.Error(1)
}

func (m *MockInstanceStore) SaveInstance(ctx context.Context, instance *domain.WorkflowInstance) error {
	ret := m.Called(ctx, instance)
	return ret.Error(0)
}

func (m *MockInstanceStore) ListByAssignee(ctx context.Context, assignee string) ([]*domain.WorkflowInstance, error) {
	ret := m.Called(ctx, assignee)

	var r0 []*domain.WorkflowInstance
	if v, ok := ret.Get(0).([]*domain.WorkflowInstance); ok {
		r0 = v
	}
	return r0, ret.Error(1)
}

type MockSchemaStore struct {
	mock.Mock
}

func NewMockSchemaStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSchemaStore {
	m := &MockSchemaStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSchemaStore) GetSchema(ctx context.Context, id string) (*domain.WorkflowSchema, error) {
	ret := m.Called(ctx, id)

	var r0 *domain.WorkflowSchema
	if v, ok := ret.Get(0).(*domain.WorkflowSchema); ok {
		r0 = v
	}
	return r0, ret.Error(1)
}

func (m *MockSchemaStore) SaveSchema(ctx context.Context, schema *domain.WorkflowSchema) error {
	ret := m.Called(ctx, schema)
	return ret.Error(0)
}

func (m *MockSchemaStore) ListSchemas(ctx context.Context) ([]*domain.WorkflowSchema, error) {
	ret := m.Called(ctx)

	var r0 []*domain.WorkflowSchema
	if v, ok := ret.Get(0).([]*domain.WorkflowSchema); ok {
		r0 = v
	}
	return r0, ret.Error(1)
}

type MockBookmarkStore struct {
	mock.Mock
}

func NewMockBookmarkStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockBookmarkStore {
	m := &MockBookmarkStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockBookmarkStore) CreateBookmark(ctx context.Context, bookmark *domain.Bookmark) error {
	ret := m.Called(ctx, bookmark)
	return ret.Error(0)
}

func (m *MockBookmarkStore) ConsumeBookmark(ctx context.Context, key string) (*domain.Bookmark, error) {
	ret := m.Called(ctx, key)

	var r0 *domain.Bookmark
	if v, ok := ret.Get(0).(*domain.Bookmark); ok {
		r0 = v
	}
	return r0, ret.Error(1)
}

func (m *MockBookmarkStore) GetBookmark(ctx context.Context, key string) (*domain.Bookmark, error) {
	ret := m.Called(ctx, key)

	var r0 *domain.Bookmark
	if v, ok := ret.Get(0).(*domain.Bookmark); ok {
		r0 = v
	}
	return r0, ret.Error(1)
}

func (m *MockBookmarkStore) ListBookmarks(ctx context.Context, instanceID string) ([]*domain.Bookmark, error) {
	ret := m.Called(ctx, instanceID)

	var r0 []*domain.Bookmark
	if v, ok := ret.Get(0).([]*domain.Bookmark); ok {
		r0 = v
	}
	return r0, ret.Error(1)
}

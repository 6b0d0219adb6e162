package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/eleven-am/flowcore/internal/domain"
)

type MockAuditSink struct {
	mock.Mock
}

func NewMockAuditSink(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAuditSink {
	m := &MockAuditSink{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAuditSink) LogActivityEvent(ctx context.Context, event domain.ActivityEvent) {
	m.Called(ctx, event)
}

func (m *MockAuditSink) LogActionExecution(ctx context.Context, record domain.ActionExecutionRecord) {
	m.Called(ctx, record)
}

func (m *MockAuditSink) LogAssignmentChange(ctx context.Context, change domain.AssignmentChange) {
	m.Called(ctx, change)
}

func (m *MockAuditSink) LogPerformanceMetric(ctx context.Context, metric domain.PerformanceMetric) {
	m.Called(ctx, metric)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/eleven-am/flowcore/internal/domain"
)

type MockAssigneeSelector struct {
	mock.Mock
}

func NewMockAssigneeSelector(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAssigneeSelector {
	m := &MockAssigneeSelector{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAssigneeSelector) Name() string {
	ret := m.Called()
	return ret.String(0)
}

func (m *MockAssigneeSelector) Select(ctx context.Context, assignment domain.AssignmentContext) (domain.SelectionResult, error) {
	ret := m.Called(ctx, assignment)

	var r0 domain.SelectionResult
	if rf, ok := ret.Get(0).(func(context.Context, domain.AssignmentContext) domain.SelectionResult); ok {
		r0 = rf(ctx, assignment)
	} else if v, ok := ret.Get(0).(domain.SelectionResult); ok {
		r0 = v
	}
	return r0, ret.Error(1)
}

type MockAssignmentEngine struct {
	mock.Mock
}

func NewMockAssignmentEngine(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAssignmentEngine {
	m := &MockAssignmentEngine{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAssignmentEngine) Execute(ctx context.Context, assignment domain.AssignmentContext) domain.SelectionResult {
	ret := m.Called(ctx, assignment)

	if v, ok := ret.Get(0).(domain.SelectionResult); ok {
		return v
	}
	return domain.SelectionResult{}
}

func (m *MockAssignmentEngine) IsRouteBackScenario(ctx context.Context, instanceID, activityID string) (bool, error) {
	ret := m.Called(ctx, instanceID, activityID)
	return ret.Bool(0), ret.Error(1)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockExpressionEvaluator struct {
	mock.Mock
}

func NewMockExpressionEvaluator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockExpressionEvaluator {
	m := &MockExpressionEvaluator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockExpressionEvaluator) Evaluate(ctx context.Context, expression string, variables map[string]interface{}) (interface{}, error) {
	ret := m.Called(ctx, expression, variables)
	return ret.Get(0), ret.Error(1)
}

func (m *MockExpressionEvaluator) EvaluateBoolean(ctx context.Context, expression string, variables map[string]interface{}) (bool, error) {
	ret := m.Called(ctx, expression, variables)
	return ret.Bool(0), ret.Error(1)
}

func (m *MockExpressionEvaluator) Validate(expression string) (bool, error) {
	ret := m.Called(expression)
	return ret.Bool(0), ret.Error(1)
}

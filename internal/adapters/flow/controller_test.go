package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/flowcore/internal/adapters/expression"
	"github.com/eleven-am/flowcore/internal/domain"
)

func branchingSchema() *domain.WorkflowSchema {
	return &domain.WorkflowSchema{
		ID: "loan",
		Activities: []domain.ActivityDefinition{
			{ID: "check", Type: domain.ActivityTypeIfElse},
			{ID: "manual", Type: domain.ActivityTypeHumanTask},
			{ID: "auto", Type: domain.ActivityTypeEnd},
			{ID: "end", Type: domain.ActivityTypeEnd},
		},
		Transitions: []domain.TransitionDefinition{
			{ID: "t1", From: "check", To: "auto", Type: domain.TransitionTypeNormal},
			{ID: "t2", From: "check", To: "manual", Type: domain.TransitionTypeConditional, Condition: "result == true"},
			{ID: "t3", From: "manual", To: "end", Type: domain.TransitionTypeConditional, Condition: "decision == 'approve'"},
		},
	}
}

func newController(t *testing.T) *Controller {
	t.Helper()
	evaluator, err := expression.NewEvaluator(domain.DefaultExpressionConfig(), nil)
	require.NoError(t, err)
	return NewController(evaluator, nil)
}

func TestConditionalTransitionBranchesOnResult(t *testing.T) {
	c := newController(t)
	schema := branchingSchema()

	next, ok, err := c.NextActivity(context.Background(), schema, "check",
		domain.CompletedResult(map[string]interface{}{"result": true}), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "manual", next)

	next, ok, err = c.NextActivity(context.Background(), schema, "check",
		domain.CompletedResult(map[string]interface{}{"result": false}), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "auto", next, "normal transition is the default")
}

func TestConditionsSeeVariables(t *testing.T) {
	c := newController(t)

	next, ok, err := c.NextActivity(context.Background(), branchingSchema(), "manual",
		domain.CompletedResult(nil), map[string]interface{}{"decision": "approve"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "end", next)

	_, ok, err = c.NextActivity(context.Background(), branchingSchema(), "manual",
		domain.CompletedResult(nil), map[string]interface{}{"decision": "reject"})
	require.NoError(t, err)
	assert.False(t, ok, "nothing matched and there is no default")
}

func TestNextActivityHint(t *testing.T) {
	c := newController(t)

	result := domain.CompletedResult(nil)
	result.NextActivityID = "end"
	next, ok, err := c.NextActivity(context.Background(), branchingSchema(), "check", result, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "end", next)

	result.NextActivityID = "nowhere"
	_, _, err = c.NextActivity(context.Background(), branchingSchema(), "check", result, nil)
	assert.True(t, domain.IsValidationError(err))
}

func TestTerminalActivity(t *testing.T) {
	c := newController(t)

	_, ok, err := c.NextActivity(context.Background(), branchingSchema(), "end", domain.CompletedResult(nil), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidConditionSurfaces(t *testing.T) {
	c := newController(t)
	schema := branchingSchema()
	schema.Transitions[1].Condition = "eval('x')"

	_, _, err := c.NextActivity(context.Background(), schema, "check", domain.CompletedResult(nil), nil)
	assert.True(t, domain.IsExpressionError(err))
}

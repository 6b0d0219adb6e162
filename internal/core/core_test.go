package core

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

const loanSchema = `
id: loan
name: Loan approval
variables:
  - name: amount
    required: true
activities:
  - id: start
    type: start
    is_start: true
  - id: large
    type: if_else
    properties:
      condition: amount > 1000
  - id: review
    type: human_task
    properties:
      assignee: "{$.officer}"
  - id: done
    type: end
transitions:
  - from: start
    to: large
  - from: large
    to: review
    type: conditional
    condition: result == true
  - from: large
    to: done
  - from: review
    to: done
`

func newCore(t *testing.T, config *domain.Config) *Core {
	t.Helper()
	c, err := New(config, nil, WithPrometheusRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCoreRunsLoadedSchema(t *testing.T) {
	config := domain.DefaultConfig().WithMetrics("flowcore_test")
	c := newCore(t, config)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "loan.yaml"), []byte(loanSchema), 0o600))
	schemas, err := c.LoadSchemas(ctx, dir)
	require.NoError(t, err)
	require.Len(t, schemas, 1)

	var (
		mu        sync.Mutex
		completed []string
	)
	c.Subscribe(func(_ context.Context, event domain.WorkflowEvent) {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, event.InstanceID)
	}, domain.EventWorkflowCompleted)

	small, err := c.StartWorkflow(ctx, ports.StartRequest{
		SchemaID:         "loan",
		InitialVariables: map[string]interface{}{"amount": 200},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowStatusCompleted, small.Status)

	large, err := c.StartWorkflow(ctx, ports.StartRequest{
		SchemaID:         "loan",
		InitialVariables: map[string]interface{}{"amount": 5000, "officer": "dana"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowStatusRunning, large.Status)
	assert.Equal(t, "dana", large.CurrentAssignee)

	assigned, err := c.ListAssigned(ctx, "dana")
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, large.ID, assigned[0].ID)

	large, err = c.ResumeWorkflow(ctx, ports.ResumeRequest{InstanceID: large.ID, ActivityID: "review", CompletedBy: "dana"})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowStatusCompleted, large.Status)

	mu.Lock()
	assert.Equal(t, []string{small.ID, large.ID}, completed)
	mu.Unlock()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.collector.WorkflowEvents.WithLabelValues("workflow.completed", "loan")))

	engineMetrics := c.ApplicationMetrics()["engine"].(map[string]interface{})
	assert.Equal(t, int64(2), engineMetrics["workflows_completed"])
	assert.NotEmpty(t, c.ActivityEvents(large.ID))
	assert.True(t, c.Health(ctx).Healthy)
}

func TestCoreRejectsInvalidSchema(t *testing.T) {
	c := newCore(t, nil)

	err := c.RegisterSchema(context.Background(), &domain.WorkflowSchema{
		ID:         "bad",
		Activities: []domain.ActivityDefinition{{ID: "x", Type: "nope"}},
	})
	assert.True(t, domain.IsValidationError(err))

	_, err = c.GetSchema(context.Background(), "bad")
	assert.True(t, domain.IsNotFound(err))
}

func TestCoreRejectsInvalidConfig(t *testing.T) {
	config := domain.DefaultConfig().WithMaxChainDepth(0)

	_, err := New(config, nil)
	assert.True(t, domain.IsConfigurationError(err))
}

func TestCoreExpressionsAndResilience(t *testing.T) {
	c := newCore(t, nil)
	ctx := context.Background()

	value, err := c.EvaluateBoolean(ctx, "score >= 10 && tier == 'gold'", map[string]interface{}{"score": 12, "tier": "gold"})
	require.NoError(t, err)
	assert.True(t, value)

	out, err := c.ExecuteWithResilience(ctx, "external.echo", func(context.Context) (interface{}, error) {
		return "pong", nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", out)

	metrics, ok := c.Resilience().GetMetrics("external.echo")
	require.True(t, ok)
	assert.Equal(t, int64(1), metrics.TotalCalls)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(domain.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.Debug("hello", "workflow_id", "wf-1")
	assert.Contains(t, buf.String(), `"workflow_id":"wf-1"`)

	buf.Reset()
	logger = NewLogger(domain.LoggingConfig{Level: "warn"}, &buf)
	logger.Info("hidden")
	assert.Empty(t, buf.String())
}

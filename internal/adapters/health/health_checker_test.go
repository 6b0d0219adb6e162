package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckerHealthyWithoutChecks(t *testing.T) {
	checker := NewChecker(0, nil)

	status := checker.GetHealth(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "healthy", status.Status)
	assert.True(t, checker.IsReady(context.Background()))
}

func TestCheckerReportsFailingCheck(t *testing.T) {
	checker := NewChecker(time.Second, nil)
	checker.Register("storage", func(context.Context) error { return nil })
	checker.Register("redis", func(context.Context) error { return errors.New("connection refused") })

	status := checker.GetHealth(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "ok", status.Components["storage"])
	assert.Equal(t, "connection refused", status.Components["redis"])

	data, err := checker.GetHealthJSON(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"healthy":false`)
}

func TestCheckerAppliesTimeout(t *testing.T) {
	checker := NewChecker(10*time.Millisecond, nil)
	checker.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.False(t, checker.IsReady(context.Background()))
}

package audit

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

func TestRecorderBoundsAndFilters(t *testing.T) {
	recorder := NewRecorder(2)
	ctx := context.Background()

	for _, id := range []string{"wf-1", "wf-2", "wf-1"} {
		recorder.LogActivityEvent(ctx, domain.ActivityEvent{InstanceID: id, EventType: "started"})
	}

	assert.Len(t, recorder.ActivityEvents(""), 2)
	assert.Len(t, recorder.ActivityEvents("wf-1"), 1)
	assert.Len(t, recorder.ActivityEvents("wf-2"), 1)
}

func TestLogSinkWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewLogSink(ports.NewStructuredLogger(logger, "audit", "test"))

	sink.LogAssignmentChange(context.Background(), domain.AssignmentChange{
		InstanceID:  "wf-1",
		ActivityID:  "review",
		NewAssignee: "bob",
		Strategy:    "override",
		ChangedBy:   "admin",
		Timestamp:   time.Now(),
	})

	out := buf.String()
	assert.Contains(t, out, `"business_event":true`)
	assert.Contains(t, out, `"security_audit":true`)
	assert.Contains(t, out, `"actor":"admin"`)
}

func TestMultiFansOut(t *testing.T) {
	first, second := NewRecorder(0), NewRecorder(0)
	sink := Multi{first, second}

	sink.LogPerformanceMetric(context.Background(), domain.PerformanceMetric{Operation: "storage.get_schema", Success: true})
	sink.LogAssignmentChange(context.Background(), domain.AssignmentChange{InstanceID: "wf-1"})

	require.Len(t, first.PerformanceMetrics(), 1)
	require.Len(t, second.PerformanceMetrics(), 1)
	assert.Len(t, second.AssignmentChanges("wf-1"), 1)
}

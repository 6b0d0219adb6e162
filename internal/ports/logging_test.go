package ports

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("verbose"))
}

func TestStructuredLoggerNestsDetails(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(slog.New(slog.NewJSONHandler(&buf, nil)), "audit", "1.0")

	logger.LogPerformance("storage.save_instance", 1500*time.Microsecond, false, map[string]interface{}{
		"error":    errors.New("conflict"),
		"attempts": 2,
	})

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"component":"audit"`)
	assert.Contains(t, out, `"duration_ms":1.5`)
	assert.Contains(t, out, `"details":{"attempts":2,"error":"conflict"}`)
}

func TestStructuredLoggerSkipsDisabledLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})), "audit", "")

	logger.LogBusinessEvent("activity.completed", "workflow", "wf-1", nil)
	assert.Empty(t, buf.String())
}

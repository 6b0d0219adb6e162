package ports

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ParseLogLevel maps a configured level name to slog. Unknown names map to info.
func ParseLogLevel(level string) slog.Level {
	switch LogLevel(strings.ToLower(level)) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn, "warning":
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const (
	FieldDuration      = "duration"
	FieldComponent     = "component"
	FieldVersion       = "version"
	FieldBusinessEvent = "business_event"
	FieldSecurityAudit = "security_audit"
)

// StructuredLogger writes the three kinds of audit line the engine produces:
// business events, performance samples and security entries. Caller supplied
// details are nested under a "details" group so they never shadow the fixed
// keys.
type StructuredLogger struct {
	logger *slog.Logger
}

func NewStructuredLogger(logger *slog.Logger, component, version string) *StructuredLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructuredLogger{
		logger: logger.With(FieldComponent, component, FieldVersion, version),
	}
}

func (sl *StructuredLogger) LogBusinessEvent(event, entity, entityID string, details map[string]interface{}) {
	sl.emit(slog.LevelInfo, "business event", details,
		slog.String("event_type", event),
		slog.String("entity", entity),
		slog.String("entity_id", entityID),
		slog.Bool(FieldBusinessEvent, true),
	)
}

func (sl *StructuredLogger) LogPerformance(operation string, duration time.Duration, success bool, details map[string]interface{}) {
	level, msg := slog.LevelInfo, "performance sample"
	if !success {
		level, msg = slog.LevelWarn, "performance sample, operation failed"
	}
	sl.emit(level, msg, details,
		slog.String("operation", operation),
		slog.Duration(FieldDuration, duration),
		slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
		slog.Bool("success", success),
	)
}

func (sl *StructuredLogger) LogSecurity(eventType, actor, action, resource string, success bool, details map[string]interface{}) {
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	sl.emit(level, "security audit", details,
		slog.String("security_event", eventType),
		slog.String("actor", actor),
		slog.String("action", action),
		slog.String("resource", resource),
		slog.Bool("success", success),
		slog.Bool(FieldSecurityAudit, true),
	)
}

func (sl *StructuredLogger) emit(level slog.Level, msg string, details map[string]interface{}, attrs ...slog.Attr) {
	ctx := context.Background()
	if !sl.logger.Enabled(ctx, level) {
		return
	}
	if group := detailsGroup(details); group.Key != "" {
		attrs = append(attrs, group)
	}
	sl.logger.LogAttrs(ctx, level, msg, attrs...)
}

// detailsGroup sorts keys so identical records render identically.
func detailsGroup(details map[string]interface{}) slog.Attr {
	if len(details) == 0 {
		return slog.Attr{}
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		v := details[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		attrs = append(attrs, slog.Any(k, v))
	}
	return slog.Group("details", attrs...)
}

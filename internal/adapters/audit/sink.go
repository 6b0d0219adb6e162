package audit

import (
	"context"
	"sync"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

// LogSink writes audit records through a StructuredLogger. Activity and
// assignment records are business events; assignment changes made by a person
// are also security audit entries.
type LogSink struct {
	logger *ports.StructuredLogger
}

var _ ports.AuditSink = (*LogSink)(nil)

func NewLogSink(logger *ports.StructuredLogger) *LogSink {
	if logger == nil {
		logger = ports.NewStructuredLogger(nil, "audit", "")
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) LogActivityEvent(_ context.Context, event domain.ActivityEvent) {
	details := map[string]interface{}{
		"activity_id":   event.ActivityID,
		"activity_type": string(event.ActivityType),
	}
	if event.Actor != "" {
		details["actor"] = event.Actor
	}
	for k, v := range event.Details {
		details[k] = v
	}
	s.logger.LogBusinessEvent("activity."+event.EventType, "workflow", event.InstanceID, details)
}

func (s *LogSink) LogActionExecution(_ context.Context, record domain.ActionExecutionRecord) {
	details := map[string]interface{}{
		"workflow_id": record.InstanceID,
		"activity_id": record.ActivityID,
	}
	if record.Error != "" {
		details["error"] = record.Error
	}
	s.logger.LogPerformance("activity."+record.Action, record.Duration, record.Success, details)
}

func (s *LogSink) LogAssignmentChange(_ context.Context, change domain.AssignmentChange) {
	details := map[string]interface{}{
		"activity_id":       change.ActivityID,
		"previous_assignee": change.PreviousAssignee,
		"new_assignee":      change.NewAssignee,
		"assignee_group":    change.AssigneeGroup,
		"strategy":          change.Strategy,
		"reason":            change.Reason,
	}
	s.logger.LogBusinessEvent("assignment.changed", "workflow", change.InstanceID, details)

	if change.ChangedBy != "" && change.ChangedBy != "system" {
		s.logger.LogSecurity("assignment_override", change.ChangedBy, "reassign",
			change.InstanceID+"/"+change.ActivityID, true, map[string]interface{}{"new_assignee": change.NewAssignee})
	}
}

func (s *LogSink) LogPerformanceMetric(_ context.Context, metric domain.PerformanceMetric) {
	details := map[string]interface{}{"attempts": metric.Attempts}
	for k, v := range metric.Tags {
		details[k] = v
	}
	s.logger.LogPerformance(metric.Operation, metric.Duration, metric.Success, details)
}

// Recorder keeps the most recent audit records in memory.
type Recorder struct {
	mu          sync.RWMutex
	limit       int
	activities  []domain.ActivityEvent
	actions     []domain.ActionExecutionRecord
	assignments []domain.AssignmentChange
	metrics     []domain.PerformanceMetric
}

var _ ports.AuditSink = (*Recorder)(nil)

// NewRecorder keeps up to limit records of each kind; limit <= 0 keeps 1000.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 1000
	}
	return &Recorder{limit: limit}
}

func appendBounded[T any](list []T, item T, limit int) []T {
	list = append(list, item)
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}

func (r *Recorder) LogActivityEvent(_ context.Context, event domain.ActivityEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = appendBounded(r.activities, event, r.limit)
}

func (r *Recorder) LogActionExecution(_ context.Context, record domain.ActionExecutionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = appendBounded(r.actions, record, r.limit)
}

func (r *Recorder) LogAssignmentChange(_ context.Context, change domain.AssignmentChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments = appendBounded(r.assignments, change, r.limit)
}

func (r *Recorder) LogPerformanceMetric(_ context.Context, metric domain.PerformanceMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = appendBounded(r.metrics, metric, r.limit)
}

// ActivityEvents returns the recorded activity events for one instance, or
// all of them when instanceID is empty.
func (r *Recorder) ActivityEvents(instanceID string) []domain.ActivityEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.ActivityEvent
	for _, event := range r.activities {
		if instanceID == "" || event.InstanceID == instanceID {
			out = append(out, event)
		}
	}
	return out
}

func (r *Recorder) AssignmentChanges(instanceID string) []domain.AssignmentChange {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.AssignmentChange
	for _, change := range r.assignments {
		if instanceID == "" || change.InstanceID == instanceID {
			out = append(out, change)
		}
	}
	return out
}

func (r *Recorder) ActionExecutions() []domain.ActionExecutionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.ActionExecutionRecord(nil), r.actions...)
}

func (r *Recorder) PerformanceMetrics() []domain.PerformanceMetric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.PerformanceMetric(nil), r.metrics...)
}

// Multi fans every record out to each sink in order.
type Multi []ports.AuditSink

var _ ports.AuditSink = Multi(nil)

func (m Multi) LogActivityEvent(ctx context.Context, event domain.ActivityEvent) {
	for _, sink := range m {
		sink.LogActivityEvent(ctx, event)
	}
}

func (m Multi) LogActionExecution(ctx context.Context, record domain.ActionExecutionRecord) {
	for _, sink := range m {
		sink.LogActionExecution(ctx, record)
	}
}

func (m Multi) LogAssignmentChange(ctx context.Context, change domain.AssignmentChange) {
	for _, sink := range m {
		sink.LogAssignmentChange(ctx, change)
	}
}

func (m Multi) LogPerformanceMetric(ctx context.Context, metric domain.PerformanceMetric) {
	for _, sink := range m {
		sink.LogPerformanceMetric(ctx, metric)
	}
}

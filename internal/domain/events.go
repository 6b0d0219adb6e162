package domain

import (
	"fmt"
	"runtime"
	"strconv"
	"time"
)

type EventType string

const (
	EventWorkflowStarted     EventType = "workflow.started"
	EventWorkflowCompleted   EventType = "workflow.completed"
	EventWorkflowFailed      EventType = "workflow.failed"
	EventWorkflowCancelled   EventType = "workflow.cancelled"
	EventWorkflowSuspended   EventType = "workflow.suspended"
	EventWorkflowReactivated EventType = "workflow.reactivated"
	EventActivityStarted     EventType = "activity.started"
	EventActivityCompleted   EventType = "activity.completed"
	EventActivityPending     EventType = "activity.pending"
	EventActivityFailed      EventType = "activity.failed"
)

type WorkflowEvent struct {
	Type         EventType              `json:"type"`
	InstanceID   string                 `json:"instance_id"`
	SchemaID     string                 `json:"schema_id"`
	ActivityID   string                 `json:"activity_id,omitempty"`
	ActivityType ActivityType           `json:"activity_type,omitempty"`
	Status       WorkflowStatus         `json:"status"`
	Actor        string                 `json:"actor,omitempty"`
	Message      string                 `json:"message,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

func NewWorkflowEvent(eventType EventType, instance *WorkflowInstance) WorkflowEvent {
	event := WorkflowEvent{
		Type:      eventType,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
	if instance != nil {
		event.InstanceID = instance.ID
		event.SchemaID = instance.SchemaID
		event.Status = instance.Status
		event.ActivityID = instance.CurrentActivityID
	}
	return event
}

// ActivityPanicError is produced when an activity panics during execute or resume.
type ActivityPanicError struct {
	InstanceID  string      `json:"instance_id"`
	ActivityID  string      `json:"activity_id"`
	PanicValue  interface{} `json:"panic_value"`
	StackTrace  string      `json:"stack_trace"`
	Timestamp   time.Time   `json:"timestamp"`
	RecoveredAt string      `json:"recovered_at"`
}

func (e *ActivityPanicError) Error() string {
	return fmt.Sprintf("activity %s panicked: %v", e.ActivityID, e.PanicValue)
}

func NewPanicError(instanceID, activityID string, panicValue interface{}) *ActivityPanicError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	pc, file, line, ok := runtime.Caller(2)
	recoveredAt := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			recoveredAt = fn.Name() + " at " + file + ":" + strconv.Itoa(line)
		}
	}

	return &ActivityPanicError{
		InstanceID:  instanceID,
		ActivityID:  activityID,
		PanicValue:  panicValue,
		StackTrace:  string(buf[:n]),
		Timestamp:   time.Now(),
		RecoveredAt: recoveredAt,
	}
}

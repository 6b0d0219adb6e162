package domain

import (
	"strings"
	"time"
)

type ActivityEvent struct {
	InstanceID   string                 `json:"instance_id"`
	ActivityID   string                 `json:"activity_id"`
	ActivityType ActivityType           `json:"activity_type"`
	EventType    string                 `json:"event_type"`
	Actor        string                 `json:"actor,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

type ActionExecutionRecord struct {
	InstanceID string                 `json:"instance_id"`
	ActivityID string                 `json:"activity_id"`
	Action     string                 `json:"action"`
	Success    bool                   `json:"success"`
	Duration   time.Duration          `json:"duration"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

type AssignmentChange struct {
	InstanceID       string    `json:"instance_id"`
	ActivityID       string    `json:"activity_id"`
	PreviousAssignee string    `json:"previous_assignee,omitempty"`
	NewAssignee      string    `json:"new_assignee,omitempty"`
	AssigneeGroup    string    `json:"assignee_group,omitempty"`
	Strategy         string    `json:"strategy,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	ChangedBy        string    `json:"changed_by,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

type PerformanceMetric struct {
	Operation string            `json:"operation"`
	Duration  time.Duration     `json:"duration"`
	Success   bool              `json:"success"`
	Attempts  int               `json:"attempts"`
	Tags      map[string]string `json:"tags,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Bookmark marks an instance as waiting for external input on one activity.
type Bookmark struct {
	Key        string                 `json:"key"`
	InstanceID string                 `json:"instance_id"`
	ActivityID string                 `json:"activity_id"`
	Token      string                 `json:"token"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

func BookmarkKey(instanceID, activityID, token string) string {
	return strings.Join([]string{instanceID, activityID, token}, ":")
}

// ParseBookmarkKey splits a key built by BookmarkKey.
func ParseBookmarkKey(key string) (instanceID, activityID, token string, ok bool) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

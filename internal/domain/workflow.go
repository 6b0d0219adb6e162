package domain

import (
	"time"

	json "github.com/eleven-am/flowcore/internal/xjson"
)

type ActivityType string

const (
	ActivityTypeStart     ActivityType = "start"
	ActivityTypeEnd       ActivityType = "end"
	ActivityTypeIfElse    ActivityType = "if_else"
	ActivityTypeFork      ActivityType = "fork"
	ActivityTypeJoin      ActivityType = "join"
	ActivityTypeHumanTask ActivityType = "human_task"
)

type TransitionType string

const (
	TransitionTypeNormal      TransitionType = "normal"
	TransitionTypeConditional TransitionType = "conditional"
)

type ActivityDefinition struct {
	ID         string                 `json:"id" yaml:"id"`
	Type       ActivityType           `json:"type" yaml:"type"`
	Name       string                 `json:"name" yaml:"name"`
	Properties map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
	IsStart    bool                   `json:"is_start,omitempty" yaml:"is_start,omitempty"`
}

type TransitionDefinition struct {
	ID        string         `json:"id" yaml:"id"`
	From      string         `json:"from" yaml:"from"`
	To        string         `json:"to" yaml:"to"`
	Type      TransitionType `json:"type,omitempty" yaml:"type,omitempty"`
	Condition string         `json:"condition,omitempty" yaml:"condition,omitempty"`
}

func (t TransitionDefinition) IsConditional() bool {
	return t.Type == TransitionTypeConditional && t.Condition != ""
}

type VariableDefinition struct {
	Name     string      `json:"name" yaml:"name"`
	Type     string      `json:"type,omitempty" yaml:"type,omitempty"`
	Required bool        `json:"required,omitempty" yaml:"required,omitempty"`
	Default  interface{} `json:"default,omitempty" yaml:"default,omitempty"`
}

type SchemaMetadata struct {
	Version     string    `json:"version,omitempty" yaml:"version,omitempty"`
	Author      string    `json:"author,omitempty" yaml:"author,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// WorkflowSchema is the immutable definition of a workflow graph.
type WorkflowSchema struct {
	ID          string                 `json:"id" yaml:"id"`
	Name        string                 `json:"name" yaml:"name"`
	Activities  []ActivityDefinition   `json:"activities" yaml:"activities"`
	Transitions []TransitionDefinition `json:"transitions" yaml:"transitions"`
	Variables   []VariableDefinition   `json:"variables,omitempty" yaml:"variables,omitempty"`
	Metadata    SchemaMetadata         `json:"metadata" yaml:"metadata"`
}

func (s *WorkflowSchema) Activity(id string) (*ActivityDefinition, bool) {
	for i := range s.Activities {
		if s.Activities[i].ID == id {
			return &s.Activities[i], true
		}
	}
	return nil, false
}

// StartActivity returns the flagged start activity, falling back to the first
// declared activity. explicit is false when the fallback was used.
func (s *WorkflowSchema) StartActivity() (activity *ActivityDefinition, explicit bool, ok bool) {
	for i := range s.Activities {
		if s.Activities[i].IsStart {
			return &s.Activities[i], true, true
		}
	}
	if len(s.Activities) == 0 {
		return nil, false, false
	}
	return &s.Activities[0], false, true
}

func (s *WorkflowSchema) OutgoingTransitions(activityID string) []TransitionDefinition {
	var transitions []TransitionDefinition
	for _, t := range s.Transitions {
		if t.From == activityID {
			transitions = append(transitions, t)
		}
	}
	return transitions
}

// DefaultVariables returns the declared variable defaults.
func (s *WorkflowSchema) DefaultVariables() map[string]interface{} {
	defaults := make(map[string]interface{})
	for _, v := range s.Variables {
		if v.Default != nil {
			defaults[v.Name] = v.Default
		}
	}
	return defaults
}

type WorkflowStatus string

const (
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusSuspended WorkflowStatus = "suspended"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusFailed || s == WorkflowStatusCancelled
}

type ActivityExecutionStatus string

const (
	ExecutionStatusPending    ActivityExecutionStatus = "pending"
	ExecutionStatusInProgress ActivityExecutionStatus = "in_progress"
	ExecutionStatusCompleted  ActivityExecutionStatus = "completed"
	ExecutionStatusFailed     ActivityExecutionStatus = "failed"
)

type ActivityExecution struct {
	ID           string                  `json:"id"`
	ActivityID   string                  `json:"activity_id"`
	Name         string                  `json:"name"`
	Type         ActivityType            `json:"type"`
	Assignee     string                  `json:"assignee,omitempty"`
	Status       ActivityExecutionStatus `json:"status"`
	InputData    map[string]interface{}  `json:"input_data,omitempty"`
	OutputData   map[string]interface{}  `json:"output_data,omitempty"`
	StartedAt    time.Time               `json:"started_at"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
	CompletedBy  string                  `json:"completed_by,omitempty"`
	BookmarkKey  string                  `json:"bookmark_key,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
}

func (e *ActivityExecution) Settled() bool {
	return e.Status == ExecutionStatusCompleted || e.Status == ExecutionStatusFailed
}

type WorkflowInstance struct {
	ID                  string                        `json:"id"`
	SchemaID            string                        `json:"schema_id"`
	Name                string                        `json:"name"`
	Status              WorkflowStatus                `json:"status"`
	CurrentActivityID   string                        `json:"current_activity_id,omitempty"`
	CurrentAssignee     string                        `json:"current_assignee,omitempty"`
	Variables           map[string]interface{}        `json:"variables"`
	CorrelationID       string                        `json:"correlation_id,omitempty"`
	StartedBy           string                        `json:"started_by,omitempty"`
	StartedAt           time.Time                     `json:"started_at"`
	CompletedAt         *time.Time                    `json:"completed_at,omitempty"`
	UpdatedAt           time.Time                     `json:"updated_at"`
	ErrorMessage        string                        `json:"error_message,omitempty"`
	FailedActivityID    string                        `json:"failed_activity_id,omitempty"`
	ActivityExecutions  []*ActivityExecution          `json:"activity_executions"`
	AssignmentOverrides map[string]AssignmentOverride `json:"assignment_overrides,omitempty"`
	Version             int64                         `json:"version"`
}

func (w *WorkflowInstance) InProgressExecution(activityID string) *ActivityExecution {
	for i := len(w.ActivityExecutions) - 1; i >= 0; i-- {
		exec := w.ActivityExecutions[i]
		if exec.ActivityID == activityID && exec.Status == ExecutionStatusInProgress {
			return exec
		}
	}
	return nil
}

func (w *WorkflowInstance) LatestExecution(activityID string) *ActivityExecution {
	for i := len(w.ActivityExecutions) - 1; i >= 0; i-- {
		if w.ActivityExecutions[i].ActivityID == activityID {
			return w.ActivityExecutions[i]
		}
	}
	return nil
}

// PriorExecutions returns the settled executions of an activity, oldest first.
func (w *WorkflowInstance) PriorExecutions(activityID string) []*ActivityExecution {
	var prior []*ActivityExecution
	for _, exec := range w.ActivityExecutions {
		if exec.ActivityID == activityID && exec.Settled() {
			prior = append(prior, exec)
		}
	}
	return prior
}

func (w *WorkflowInstance) ExecutionsFor(activityID string) []*ActivityExecution {
	var executions []*ActivityExecution
	for _, exec := range w.ActivityExecutions {
		if exec.ActivityID == activityID {
			executions = append(executions, exec)
		}
	}
	return executions
}

// Clone returns a deep copy through the JSON representation.
func (w *WorkflowInstance) Clone() (*WorkflowInstance, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var clone WorkflowInstance
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

type ActivityResultStatus string

const (
	ResultCompleted ActivityResultStatus = "completed"
	ResultPending   ActivityResultStatus = "pending"
	ResultFailed    ActivityResultStatus = "failed"
	ResultSkipped   ActivityResultStatus = "skipped"
)

type ActivityResult struct {
	Status          ActivityResultStatus   `json:"status"`
	Output          map[string]interface{} `json:"output,omitempty"`
	NextActivityID  string                 `json:"next_activity_id,omitempty"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	VariableUpdates map[string]interface{} `json:"variable_updates,omitempty"`
	ClearVariables  []string               `json:"clear_variables,omitempty"`
}

func CompletedResult(output map[string]interface{}) ActivityResult {
	if output == nil {
		output = make(map[string]interface{})
	}
	return ActivityResult{Status: ResultCompleted, Output: output}
}

func PendingResult(output map[string]interface{}) ActivityResult {
	if output == nil {
		output = make(map[string]interface{})
	}
	return ActivityResult{Status: ResultPending, Output: output}
}

func FailedResult(message string) ActivityResult {
	return ActivityResult{Status: ResultFailed, ErrorMessage: message}
}

func SkippedResult() ActivityResult {
	return ActivityResult{Status: ResultSkipped}
}

type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func ValidResult() ValidationResult {
	return ValidationResult{Valid: true}
}

func InvalidResult(errs ...string) ValidationResult {
	return ValidationResult{Valid: false, Errors: errs}
}

func (v *ValidationResult) Add(msg string) {
	v.Valid = false
	v.Errors = append(v.Errors, msg)
}

func (v *ValidationResult) Merge(other ValidationResult) {
	if !other.Valid {
		v.Valid = false
	}
	v.Errors = append(v.Errors, other.Errors...)
}

// Resume input keys recognized by the engine and activities.
const (
	InputCompletedBy     = "completedBy"
	InputDecision        = "decision"
	InputComments        = "comments"
	InputBookmarkKey     = "bookmarkKey"
	InputNextActivityID  = "nextActivityId"
	InputVariableUpdates = "variableUpdates"
	InputBranchID        = "branchId"
	InputBranchStatus    = "branchStatus"
	InputBranchOutput    = "branchOutput"
	InputBranchError     = "branchError"
)

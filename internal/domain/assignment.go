package domain

import "time"

// AssignmentOverride is a runtime record that takes precedence over the
// assignment declared in the schema for one activity.
type AssignmentOverride struct {
	RuntimeAssignee             string    `json:"runtimeAssignee,omitempty"`
	RuntimeAssigneeGroup        string    `json:"runtimeAssigneeGroup,omitempty"`
	RuntimeAssignmentStrategies []string  `json:"runtimeAssignmentStrategies,omitempty"`
	Reason                      string    `json:"reason,omitempty"`
	OverriddenBy                string    `json:"overriddenBy,omitempty"`
	OverriddenAt                time.Time `json:"overriddenAt"`
}

func (o AssignmentOverride) IsEmpty() bool {
	return o.RuntimeAssignee == "" && o.RuntimeAssigneeGroup == "" && len(o.RuntimeAssignmentStrategies) == 0
}

type AssignmentContext struct {
	InstanceID           string
	ActivityID           string
	ActivityName         string
	StartedBy            string
	Variables            map[string]interface{}
	Properties           map[string]interface{}
	AssignmentStrategies []string
}

type SelectionResult struct {
	Success       bool                   `json:"success"`
	Assignee      string                 `json:"assignee,omitempty"`
	AssigneeGroup string                 `json:"assignee_group,omitempty"`
	Strategy      string                 `json:"strategy,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

const (
	MetaSuccessfulStrategy  = "SuccessfulStrategy"
	MetaStrategyPosition    = "StrategyPosition"
	MetaAttemptedStrategies = "AttemptedStrategies"
)

func SelectionSucceeded(strategy, assignee, group string) SelectionResult {
	return SelectionResult{
		Success:       true,
		Assignee:      assignee,
		AssigneeGroup: group,
		Strategy:      strategy,
		Metadata:      make(map[string]interface{}),
	}
}

func SelectionFailed(strategy, message string) SelectionResult {
	return SelectionResult{
		Success:      false,
		Strategy:     strategy,
		ErrorMessage: message,
		Metadata:     make(map[string]interface{}),
	}
}

// Activity property keys used for assignment.
const (
	PropAssignee             = "assignee"
	PropAssigneeRole         = "assigneeRole"
	PropAssigneeGroup        = "assigneeGroup"
	PropAssignmentStrategies = "assignmentStrategies"
	PropCandidates           = "candidates"
	PropAssigneeVariable     = "assigneeVariable"
)

// Built-in assignment strategy names.
const (
	StrategyDirect        = "direct"
	StrategyRole          = "role"
	StrategyGroup         = "group"
	StrategyInitiator     = "initiator"
	StrategyPreviousOwner = "previous_owner"
	StrategyVariable      = "variable"
	StrategyLeastLoaded   = "least_loaded"
	StrategyRoundRobin    = "round_robin"
)

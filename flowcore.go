// Package flowcore runs human-in-the-loop workflows described as a graph of
// activities and transitions.
//
// A schema declares the activities (start, end, if_else, fork, join,
// human_task) and the transitions between them. Starting a workflow runs every
// immediate activity synchronously until the instance completes, fails, or
// reaches an activity that waits for outside input. Waiting activities are
// continued with ResumeWorkflow.
//
// Basic usage:
//
//	core, err := flowcore.New(flowcore.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//	defer core.Close()
//
//	schema, _ := flowcore.LoadSchemaFile("approval.yaml")
//	_ = core.RegisterSchema(ctx, schema)
//
//	instance, err := core.StartWorkflow(ctx, flowcore.StartRequest{
//	    SchemaID:         "approval",
//	    InitialVariables: map[string]interface{}{"amount": 1500},
//	})
package flowcore

import (
	"log/slog"

	"github.com/eleven-am/flowcore/internal/adapters/engine"
	"github.com/eleven-am/flowcore/internal/adapters/observability"
	"github.com/eleven-am/flowcore/internal/adapters/schema"
	"github.com/eleven-am/flowcore/internal/core"
	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

// Core is the assembled engine with its stores, evaluator, resilience service
// and event bus.
type Core = core.Core

// Option customizes how New assembles the Core.
type Option = core.Option

// Stats is a snapshot of the engine counters.
type Stats = engine.Stats

// Schema and instance types

type WorkflowSchema = domain.WorkflowSchema
type ActivityDefinition = domain.ActivityDefinition
type TransitionDefinition = domain.TransitionDefinition
type VariableDefinition = domain.VariableDefinition
type WorkflowInstance = domain.WorkflowInstance
type ActivityExecution = domain.ActivityExecution
type ActivityResult = domain.ActivityResult
type ActivityType = domain.ActivityType
type WorkflowStatus = domain.WorkflowStatus
type ValidationResult = domain.ValidationResult
type AssignmentOverride = domain.AssignmentOverride

const (
	ActivityTypeStart     = domain.ActivityTypeStart
	ActivityTypeEnd       = domain.ActivityTypeEnd
	ActivityTypeIfElse    = domain.ActivityTypeIfElse
	ActivityTypeFork      = domain.ActivityTypeFork
	ActivityTypeJoin      = domain.ActivityTypeJoin
	ActivityTypeHumanTask = domain.ActivityTypeHumanTask

	WorkflowStatusRunning   = domain.WorkflowStatusRunning
	WorkflowStatusSuspended = domain.WorkflowStatusSuspended
	WorkflowStatusCompleted = domain.WorkflowStatusCompleted
	WorkflowStatusFailed    = domain.WorkflowStatusFailed
	WorkflowStatusCancelled = domain.WorkflowStatusCancelled
)

// Requests

type StartRequest = ports.StartRequest
type ResumeRequest = ports.ResumeRequest

// Extension points

// Activity is implemented by custom activity types registered with
// Core.RegisterActivity.
type Activity = ports.Activity
type ActivityFactory = ports.ActivityFactory
type ActivityContext = ports.ActivityContext
type AssigneeSelector = ports.AssigneeSelector
type AssignmentContext = domain.AssignmentContext
type SelectionResult = domain.SelectionResult

// Events

type WorkflowEvent = domain.WorkflowEvent
type EventType = domain.EventType
type EventHandler = ports.EventHandler

const (
	EventWorkflowStarted     = domain.EventWorkflowStarted
	EventWorkflowCompleted   = domain.EventWorkflowCompleted
	EventWorkflowFailed      = domain.EventWorkflowFailed
	EventWorkflowCancelled   = domain.EventWorkflowCancelled
	EventWorkflowSuspended   = domain.EventWorkflowSuspended
	EventWorkflowReactivated = domain.EventWorkflowReactivated
	EventActivityStarted     = domain.EventActivityStarted
	EventActivityCompleted   = domain.EventActivityCompleted
	EventActivityPending     = domain.EventActivityPending
	EventActivityFailed      = domain.EventActivityFailed
)

// Resilience

type ResiliencePolicy = domain.ResiliencePolicy
type Operation = ports.Operation
type Fallback = ports.Fallback
type CircuitState = domain.CircuitState
type OperationMetrics = domain.OperationMetrics

// Errors

type DomainError = domain.DomainError
type WorkflowFailure = domain.WorkflowFailure

var (
	IsValidationError   = domain.IsValidationError
	IsResumeError       = domain.IsResumeError
	IsNotFound          = domain.IsNotFound
	IsConflict          = domain.IsConflict
	IsInvalidTransition = domain.IsInvalidTransition
	IsOperationBlocked  = domain.IsOperationBlocked
	IsBulkheadRejected  = domain.IsBulkheadRejected
	IsCancelled         = domain.IsCancelled
	AsWorkflowFailure   = domain.AsWorkflowFailure
)

// New assembles a Core from config. A nil config uses DefaultConfig and a nil
// logger uses config.Logger or slog.Default.
func New(config *Config, logger *slog.Logger, opts ...Option) (*Core, error) {
	return core.New(config, logger, opts...)
}

var (
	WithStore              = core.WithStore
	WithPrometheusRegistry = core.WithPrometheusRegistry
	WithAsyncEvents        = core.WithAsyncEvents
)

// LoadSchemaFile reads a YAML or JSON schema document.
func LoadSchemaFile(path string) (*WorkflowSchema, error) {
	return schema.LoadFile(path)
}

// ParseSchema decodes a YAML document. JSON documents parse as YAML too.
func ParseSchema(data []byte) (*WorkflowSchema, error) {
	return schema.Parse(data, schema.FormatYAML)
}

// ObservabilityConfig configures the health and metrics HTTP endpoint.
type ObservabilityConfig = observability.Config

func DefaultObservabilityConfig() ObservabilityConfig {
	return observability.DefaultConfig()
}

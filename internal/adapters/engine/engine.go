package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
	json "github.com/eleven-am/flowcore/internal/xjson"
)

// Dependencies are the collaborators the engine orchestrates.
type Dependencies struct {
	Stores   ports.Stores
	Runtime  ports.ActivityRuntime
	Flow     ports.FlowController
	Services ports.ActivityServices
	Events   ports.EventBus
}

// Engine drives workflow instances through their schema. Immediate activities
// chain synchronously inside a single Start or Resume call; the chain stops
// at the first activity that is left pending.
type Engine struct {
	config    domain.EngineConfig
	schemas   ports.SchemaStore
	instances ports.InstanceStore
	bookmarks ports.BookmarkStore
	runtime   ports.ActivityRuntime
	flow      ports.FlowController
	services  ports.ActivityServices
	events    ports.EventBus
	locks     *instanceLocks
	stats     *StatsTracker
	logger    *slog.Logger
	now       func() time.Time
}

var _ ports.WorkflowEngine = (*Engine)(nil)

func NewEngine(config domain.EngineConfig, deps Dependencies, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxChainDepth <= 0 {
		config.MaxChainDepth = domain.DefaultEngineConfig().MaxChainDepth
	}

	services := deps.Services
	if services.Bookmarks == nil {
		services.Bookmarks = deps.Stores.Bookmarks
	}
	if services.Logger == nil {
		services.Logger = logger
	}
	if services.Clock == nil {
		services.Clock = time.Now
	}

	return &Engine{
		config:    config,
		schemas:   deps.Stores.Schemas,
		instances: deps.Stores.Instances,
		bookmarks: deps.Stores.Bookmarks,
		runtime:   deps.Runtime,
		flow:      deps.Flow,
		services:  services,
		events:    deps.Events,
		locks:     newInstanceLocks(),
		stats:     NewStatsTracker(),
		logger:    logger.With("component", "engine"),
		now:       services.Clock,
	}
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return e.stats.Snapshot()
}

// StartWorkflow creates an instance and runs it until it completes, fails or
// waits. When the instance fails the returned error is a
// *domain.WorkflowFailure and the failed instance is returned alongside it.
func (e *Engine) StartWorkflow(ctx context.Context, req ports.StartRequest) (*domain.WorkflowInstance, error) {
	if req.SchemaID == "" {
		return nil, domain.NewValidationError("schema id is required", nil,
			domain.WithComponent(engineComponent), domain.WithOperation("start"))
	}

	schema, err := e.loadSchema(ctx, req.SchemaID)
	if err != nil {
		return nil, err
	}

	start, explicit, ok := schema.StartActivity()
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("schema %s has no activities", schema.ID), nil,
			domain.WithComponent(engineComponent), domain.WithOperation("start"))
	}
	if !explicit {
		e.logger.Warn("schema has no start activity, falling back to first activity",
			"schema_id", schema.ID,
			"activity_id", start.ID)
	}

	variables, err := initialVariables(schema, req.InitialVariables)
	if err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = schema.Name
	}

	now := e.now().UTC()
	instance := &domain.WorkflowInstance{
		ID:                  uuid.NewString(),
		SchemaID:            schema.ID,
		Name:                name,
		Status:              domain.WorkflowStatusRunning,
		CurrentActivityID:   start.ID,
		Variables:           variables,
		CorrelationID:       req.CorrelationID,
		StartedBy:           req.StartedBy,
		StartedAt:           now,
		UpdatedAt:           now,
		ActivityExecutions:  []*domain.ActivityExecution{},
		AssignmentOverrides: map[string]domain.AssignmentOverride{},
	}

	unlock := e.locks.lock(instance.ID)
	defer unlock()

	if err := e.saveInstance(ctx, instance); err != nil {
		return nil, err
	}

	e.logger.Info("workflow started",
		"workflow_id", instance.ID,
		"schema_id", schema.ID,
		"started_by", req.StartedBy,
		"correlation_id", req.CorrelationID)
	e.stats.RecordStarted()

	r := e.newRun(schema, instance)
	started := domain.NewWorkflowEvent(domain.EventWorkflowStarted, instance)
	started.Actor = req.StartedBy
	r.queue(started)

	return r.finish(ctx, r.chain(ctx, start.ID))
}

// ResumeWorkflow delivers external input to a waiting activity and chains on
// from it. Only an activity with an in-progress execution can be resumed.
func (e *Engine) ResumeWorkflow(ctx context.Context, req ports.ResumeRequest) (*domain.WorkflowInstance, error) {
	if req.InstanceID == "" || req.ActivityID == "" {
		return nil, domain.NewValidationError("instance id and activity id are required", nil,
			domain.WithComponent(engineComponent), domain.WithOperation("resume"))
	}

	unlock := e.locks.lock(req.InstanceID)
	defer unlock()

	instance, err := e.loadInstance(ctx, req.InstanceID)
	if err != nil {
		return nil, err
	}
	if instance.Status != domain.WorkflowStatusRunning {
		return nil, domain.NewInvalidTransitionError(instance.Status, domain.WorkflowStatusRunning,
			domain.WithComponent(engineComponent),
			domain.WithOperation("resume"),
			domain.WithWorkflowID(instance.ID))
	}

	exec := instance.InProgressExecution(req.ActivityID)
	if exec == nil {
		return nil, newResumeError(fmt.Sprintf("activity %s has no in-progress execution", req.ActivityID),
			domain.WithWorkflowID(instance.ID), domain.WithActivityID(req.ActivityID))
	}

	input, err := json.CloneMap(req.OutputData)
	if err != nil {
		return nil, domain.NewValidationError("resume input is not serializable", err,
			domain.WithComponent(engineComponent), domain.WithWorkflowID(instance.ID))
	}
	if req.CompletedBy != "" {
		input[domain.InputCompletedBy] = req.CompletedBy
	}
	if key, _ := input[domain.InputBookmarkKey].(string); key != "" && exec.BookmarkKey != "" && key != exec.BookmarkKey {
		return nil, newResumeError("bookmark key does not match the waiting execution",
			domain.WithWorkflowID(instance.ID), domain.WithActivityID(req.ActivityID))
	}

	schema, err := e.loadSchema(ctx, instance.SchemaID)
	if err != nil {
		return nil, err
	}

	r := e.newRun(schema, instance)
	def, ok := schema.Activity(req.ActivityID)
	if !ok {
		return r.finish(ctx, newExecutionError(engineComponent,
			fmt.Sprintf("activity %s is not defined in schema %s", req.ActivityID, schema.ID), nil,
			domain.WithWorkflowID(instance.ID), domain.WithActivityID(req.ActivityID)))
	}

	e.logger.Info("resuming workflow",
		"workflow_id", instance.ID,
		"activity_id", def.ID,
		"completed_by", req.CompletedBy)
	r.audit(ctx, def, "resumed", req.CompletedBy, nil)

	result, err := e.runtime.Resume(ctx, r.activityContext(def, exec), input)
	if err != nil {
		return r.finish(ctx, err)
	}

	next, more, err := r.settle(ctx, def, result)
	if err == nil && more {
		err = r.chain(ctx, next)
	}
	return r.finish(ctx, err)
}

func (e *Engine) GetWorkflow(ctx context.Context, instanceID string) (*domain.WorkflowInstance, error) {
	return e.loadInstance(ctx, instanceID)
}

func (e *Engine) loadSchema(ctx context.Context, id string) (*domain.WorkflowSchema, error) {
	return guarded(ctx, e, "get_schema", func(ctx context.Context) (*domain.WorkflowSchema, error) {
		return e.schemas.GetSchema(ctx, id)
	})
}

func (e *Engine) loadInstance(ctx context.Context, id string) (*domain.WorkflowInstance, error) {
	return guarded(ctx, e, "get_instance", func(ctx context.Context) (*domain.WorkflowInstance, error) {
		return e.instances.GetInstance(ctx, id)
	})
}

func (e *Engine) saveInstance(ctx context.Context, instance *domain.WorkflowInstance) error {
	instance.UpdatedAt = e.now().UTC()
	_, err := guarded(ctx, e, "save_instance", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.instances.SaveInstance(ctx, instance)
	})
	return err
}

// guarded runs a store call under the storage resilience profile. Not found,
// conflict and validation outcomes are answers, not faults, so they bypass
// retries and the circuit breaker.
func guarded[T any](ctx context.Context, e *Engine, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if e.services.Resilience == nil {
		return fn(ctx)
	}

	value, err := e.services.Resilience.ExecuteWithResilience(ctx, domain.OperationCategoryStorage+"."+operation,
		func(ctx context.Context) (interface{}, error) {
			v, err := fn(ctx)
			if err != nil && (domain.IsNotFound(err) || domain.IsConflict(err) || domain.IsValidationError(err)) {
				return storeAnswer{err: err}, nil
			}
			if err != nil {
				return nil, err
			}
			return storeAnswer{value: v}, nil
		}, nil)
	if err != nil {
		return zero, err
	}
	answer, _ := value.(storeAnswer)
	if answer.err != nil {
		return zero, answer.err
	}
	typed, _ := answer.value.(T)
	return typed, nil
}

// storeAnswer carries a store result, or an expected store error, out of the
// resilience pipeline. An attempt abandoned on timeout may still finish, so
// its outcome travels only through the returned value.
type storeAnswer struct {
	value interface{}
	err   error
}

func (e *Engine) publish(ctx context.Context, event domain.WorkflowEvent) {
	if e.events == nil {
		return
	}
	e.events.Publish(ctx, event)
}

// initialVariables layers the caller's variables over the schema defaults and
// checks required variables are present.
func initialVariables(schema *domain.WorkflowSchema, initial map[string]interface{}) (map[string]interface{}, error) {
	merged := schema.DefaultVariables()
	for k, v := range initial {
		merged[k] = v
	}

	variables, err := json.CloneMap(merged)
	if err != nil {
		return nil, domain.NewValidationError("initial variables are not serializable", err,
			domain.WithComponent(engineComponent), domain.WithOperation("start"))
	}

	for _, def := range schema.Variables {
		if _, ok := variables[def.Name]; def.Required && !ok {
			return nil, domain.NewValidationError(fmt.Sprintf("required variable %s is missing", def.Name), nil,
				domain.WithComponent(engineComponent), domain.WithOperation("start"))
		}
	}
	return variables, nil
}

package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eleven-am/flowcore/internal/adapters/activity"
	"github.com/eleven-am/flowcore/internal/adapters/assignment"
	"github.com/eleven-am/flowcore/internal/adapters/audit"
	"github.com/eleven-am/flowcore/internal/adapters/engine"
	"github.com/eleven-am/flowcore/internal/adapters/events"
	"github.com/eleven-am/flowcore/internal/adapters/expression"
	"github.com/eleven-am/flowcore/internal/adapters/flow"
	"github.com/eleven-am/flowcore/internal/adapters/health"
	"github.com/eleven-am/flowcore/internal/adapters/metrics"
	"github.com/eleven-am/flowcore/internal/adapters/observability"
	"github.com/eleven-am/flowcore/internal/adapters/resilience"
	"github.com/eleven-am/flowcore/internal/adapters/schema"
	"github.com/eleven-am/flowcore/internal/adapters/storage"
	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

const Version = "0.1.0"

// Core wires the storage, expression, resilience, assignment and activity
// adapters behind one workflow engine.
type Core struct {
	config     *domain.Config
	logger     *slog.Logger
	kv         ports.KVStore
	stores     ports.Stores
	evaluator  *expression.Evaluator
	resilience *resilience.Service
	activities *activity.Registry
	selectors  *assignment.Registry
	engine     *engine.Engine
	events     *events.Manager
	audit      *audit.Recorder
	collector  *metrics.Collector
	registry   *prometheus.Registry
	health     *health.Checker
	detach     []func()
}

type options struct {
	kv       ports.KVStore
	registry *prometheus.Registry
	async    bool
}

type Option func(*options)

// WithStore uses kv instead of opening the configured storage. The store is
// still closed by Close.
func WithStore(kv ports.KVStore) Option {
	return func(o *options) { o.kv = kv }
}

// WithPrometheusRegistry registers the metric collectors on registry.
func WithPrometheusRegistry(registry *prometheus.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithAsyncEvents delivers bus events on their own goroutines.
func WithAsyncEvents() Option {
	return func(o *options) { o.async = true }
}

func New(config *domain.Config, logger *slog.Logger, opts ...Option) (*Core, error) {
	if config == nil {
		config = domain.DefaultConfig()
	}
	if logger == nil {
		logger = config.Logger
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(); err != nil {
		return nil, domain.NewConfigurationError("invalid configuration", err, domain.WithComponent("core"))
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger = logger.With("component", "flowcore")

	kv := o.kv
	if kv == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var err error
		kv, err = storage.Open(ctx, config.Storage, logger)
		if err != nil {
			return nil, err
		}
	}
	stores := storage.NewStores(kv)

	evaluator, err := expression.NewEvaluator(config.Expression, logger)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	recorder := audit.NewRecorder(0)
	sink := audit.Multi{
		audit.NewLogSink(ports.NewStructuredLogger(logger, "audit", Version)),
		recorder,
	}

	var eventOpts []events.Option
	if o.async {
		eventOpts = append(eventOpts, events.WithAsync())
	}
	bus := events.NewManager(logger, eventOpts...)

	c := &Core{
		config:   config,
		logger:   logger,
		kv:       kv,
		stores:   stores,
		events:   bus,
		audit:    recorder,
		health:   health.NewChecker(0, logger),
		registry: o.registry,
	}

	resilienceOpts := []resilience.Option{resilience.WithAuditSink(sink)}
	if config.Metrics.Enabled {
		if c.registry == nil {
			c.registry = prometheus.NewRegistry()
		}
		c.collector = metrics.NewCollector(config.Metrics.Namespace, c.registry)
		resilienceOpts = append(resilienceOpts, resilience.WithRecorder(c.collector))
		c.detach = append(c.detach, bus.Subscribe(func(_ context.Context, event domain.WorkflowEvent) {
			c.collector.RecordWorkflowEvent(event)
		}))
	}

	c.evaluator = evaluator
	c.resilience = resilience.NewService(config.Resilience, logger, resilienceOpts...)
	c.activities = activity.NewDefaultRegistry(logger)
	c.selectors = assignment.NewRegistry(logger)
	if err := assignment.RegisterBuiltins(c.selectors, stores.Instances); err != nil {
		_ = kv.Close()
		return nil, err
	}

	c.engine = engine.NewEngine(config.Engine, engine.Dependencies{
		Stores:  stores,
		Runtime: activity.NewRuntime(c.activities, logger),
		Flow:    flow.NewController(evaluator, logger),
		Services: ports.ActivityServices{
			Expressions: evaluator,
			Resilience:  c.resilience,
			Assignment:  assignment.NewEngine(c.selectors, stores.Instances, logger),
			Audit:       sink,
			Logger:      logger,
		},
		Events: bus,
	}, logger)

	c.health.Register("storage", storage.HealthCheck(kv))

	logger.Info("flowcore initialized",
		"version", Version,
		"storage", string(config.Storage.Type),
		"metrics_enabled", config.Metrics.Enabled,
		"max_chain_depth", config.Engine.MaxChainDepth)
	return c, nil
}

func (c *Core) Config() *domain.Config { return c.config }

func (c *Core) StartWorkflow(ctx context.Context, req ports.StartRequest) (*domain.WorkflowInstance, error) {
	return c.engine.StartWorkflow(ctx, req)
}

func (c *Core) ResumeWorkflow(ctx context.Context, req ports.ResumeRequest) (*domain.WorkflowInstance, error) {
	return c.engine.ResumeWorkflow(ctx, req)
}

func (c *Core) CancelWorkflow(ctx context.Context, instanceID, reason string) (*domain.WorkflowInstance, error) {
	return c.engine.CancelWorkflow(ctx, instanceID, reason)
}

func (c *Core) SuspendWorkflow(ctx context.Context, instanceID, reason string) (*domain.WorkflowInstance, error) {
	return c.engine.SuspendWorkflow(ctx, instanceID, reason)
}

func (c *Core) ReactivateWorkflow(ctx context.Context, instanceID string) (*domain.WorkflowInstance, error) {
	return c.engine.ReactivateWorkflow(ctx, instanceID)
}

func (c *Core) GetWorkflow(ctx context.Context, instanceID string) (*domain.WorkflowInstance, error) {
	return c.engine.GetWorkflow(ctx, instanceID)
}

func (c *Core) SetAssignmentOverride(ctx context.Context, instanceID, activityID string, override domain.AssignmentOverride) (*domain.WorkflowInstance, error) {
	return c.engine.SetAssignmentOverride(ctx, instanceID, activityID, override)
}

func (c *Core) ValidateDefinition(ctx context.Context, definition *domain.WorkflowSchema) domain.ValidationResult {
	return c.engine.ValidateDefinition(ctx, definition)
}

// ListAssigned returns the open instances currently waiting on assignee.
func (c *Core) ListAssigned(ctx context.Context, assignee string) ([]*domain.WorkflowInstance, error) {
	return c.stores.Instances.ListByAssignee(ctx, assignee)
}

// RegisterSchema validates definition and stores it. An invalid schema is
// rejected with every problem found.
func (c *Core) RegisterSchema(ctx context.Context, definition *domain.WorkflowSchema) error {
	result := c.engine.ValidateDefinition(ctx, definition)
	if !result.Valid {
		id := ""
		if definition != nil {
			id = definition.ID
		}
		return domain.NewValidationError(
			fmt.Sprintf("schema %s is invalid: %s", id, strings.Join(result.Errors, "; ")), nil,
			domain.WithComponent("core"),
			domain.WithOperation("register_schema"),
			domain.WithDetail("errors", result.Errors))
	}
	if err := c.stores.Schemas.SaveSchema(ctx, definition); err != nil {
		return err
	}
	c.logger.Info("schema registered", "schema_id", definition.ID, "activities", len(definition.Activities))
	return nil
}

// LoadSchemas registers every schema file found in dir.
func (c *Core) LoadSchemas(ctx context.Context, dir string) ([]*domain.WorkflowSchema, error) {
	schemas, err := schema.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, s := range schemas {
		if err := c.RegisterSchema(ctx, s); err != nil {
			return nil, err
		}
	}
	return schemas, nil
}

func (c *Core) GetSchema(ctx context.Context, id string) (*domain.WorkflowSchema, error) {
	return c.stores.Schemas.GetSchema(ctx, id)
}

func (c *Core) ListSchemas(ctx context.Context) ([]*domain.WorkflowSchema, error) {
	return c.stores.Schemas.ListSchemas(ctx)
}

func (c *Core) Evaluate(ctx context.Context, expr string, variables map[string]interface{}) (interface{}, error) {
	return c.evaluator.Evaluate(ctx, expr, variables)
}

func (c *Core) EvaluateBoolean(ctx context.Context, expr string, variables map[string]interface{}) (bool, error) {
	return c.evaluator.EvaluateBoolean(ctx, expr, variables)
}

func (c *Core) ExecuteWithResilience(ctx context.Context, name string, operation ports.Operation, policy *domain.ResiliencePolicy) (interface{}, error) {
	return c.resilience.ExecuteWithResilience(ctx, name, operation, policy)
}

func (c *Core) ExecuteExternalCall(ctx context.Context, service string, call ports.Operation, fallback ports.Fallback, policy *domain.ResiliencePolicy) (interface{}, error) {
	return c.resilience.ExecuteExternalCall(ctx, service, call, fallback, policy)
}

func (c *Core) Resilience() ports.ResilienceService { return c.resilience }

// Subscribe registers handler for the given event types, or every event when
// none are given.
func (c *Core) Subscribe(handler ports.EventHandler, types ...domain.EventType) func() {
	return c.events.Subscribe(handler, types...)
}

func (c *Core) RegisterActivity(activityType domain.ActivityType, factory ports.ActivityFactory) error {
	return c.activities.Register(activityType, factory)
}

func (c *Core) RegisterStrategy(selector ports.AssigneeSelector) error {
	return c.selectors.Register(selector)
}

func (c *Core) Stats() engine.Stats { return c.engine.Stats() }

func (c *Core) ActivityEvents(instanceID string) []domain.ActivityEvent {
	return c.audit.ActivityEvents(instanceID)
}

func (c *Core) Health(ctx context.Context) health.Status {
	return c.health.GetHealth(ctx)
}

// ApplicationMetrics is the in-process metrics view: engine counters and the
// per-operation resilience table.
func (c *Core) ApplicationMetrics() map[string]interface{} {
	stats := c.engine.Stats()
	return map[string]interface{}{
		"engine": map[string]interface{}{
			"workflows_started":   stats.WorkflowsStarted,
			"workflows_completed": stats.WorkflowsCompleted,
			"workflows_failed":    stats.WorkflowsFailed,
			"workflows_cancelled": stats.WorkflowsCancelled,
			"activities_executed": stats.ActivitiesExecuted,
			"depth_exceeded":      stats.DepthExceeded,
			"longest_chain":       stats.LongestChain,
			"average_call_ms":     stats.AverageCallTime.Milliseconds(),
		},
		"resilience": c.resilience.GetAllMetrics(),
	}
}

// ObservabilityServer builds the health and metrics endpoint for this core.
func (c *Core) ObservabilityServer(config observability.Config) *observability.Server {
	var gatherer prometheus.Gatherer
	if c.registry != nil {
		gatherer = c.registry
	}
	return observability.NewServer(config, c.health, c.ApplicationMetrics, gatherer, c.logger)
}

func (c *Core) Close() error {
	for _, detach := range c.detach {
		detach()
	}
	c.events.Wait()

	if err := c.kv.Close(); err != nil {
		c.logger.Error("failed to close storage", "error", err)
		return err
	}
	c.logger.Info("flowcore stopped")
	return nil
}

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/eleven-am/flowcore/internal/domain"
)

// Collector mirrors resilience and workflow activity into prometheus series.
type Collector struct {
	OperationsTotal    *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	RetriesTotal       *prometheus.CounterVec
	CircuitState       *prometheus.GaugeVec
	WorkflowEvents     *prometheus.CounterVec
	ActivityExecutions *prometheus.CounterVec
}

func NewCollector(namespace string, registerer prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = "flowcore"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Collector{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resilience_operations_total",
				Help:      "Total number of resilience-wrapped operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resilience_operation_duration_seconds",
				Help:      "Duration of resilience-wrapped operations in seconds, including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resilience_retries_total",
				Help:      "Total number of retry attempts",
			},
			[]string{"operation"},
		),
		CircuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "resilience_circuit_state",
				Help:      "Circuit state per operation (0 closed, 1 open, 2 half open, 3 disabled)",
			},
			[]string{"operation"},
		),
		WorkflowEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_events_total",
				Help:      "Total number of workflow lifecycle events",
			},
			[]string{"event", "schema"},
		),
		ActivityExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activity_executions_total",
				Help:      "Total number of settled activity executions",
			},
			[]string{"activity_type", "status"},
		),
	}
}

func (c *Collector) RecordOperation(operation, outcome string, duration time.Duration) {
	c.OperationsTotal.WithLabelValues(operation, outcome).Inc()
	c.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) RecordRetry(operation string) {
	c.RetriesTotal.WithLabelValues(operation).Inc()
}

func (c *Collector) SetCircuitState(operation string, state domain.CircuitState) {
	c.CircuitState.WithLabelValues(operation).Set(float64(state))
}

// RecordWorkflowEvent is shaped as an event bus handler.
func (c *Collector) RecordWorkflowEvent(event domain.WorkflowEvent) {
	c.WorkflowEvents.WithLabelValues(string(event.Type), event.SchemaID).Inc()

	switch event.Type {
	case domain.EventActivityCompleted, domain.EventActivityFailed, domain.EventActivityPending:
		c.ActivityExecutions.WithLabelValues(string(event.ActivityType), strings.TrimPrefix(string(event.Type), "activity.")).Inc()
	}
}

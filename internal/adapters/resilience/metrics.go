package resilience

import (
	"sync"
	"time"

	"github.com/eleven-am/flowcore/internal/domain"
)

// Recorder receives a copy of every observation. The prometheus collector
// satisfies it.
type Recorder interface {
	RecordOperation(operation, outcome string, duration time.Duration)
	RecordRetry(operation string)
	SetCircuitState(operation string, state domain.CircuitState)
}

type noopRecorder struct{}

func (noopRecorder) RecordOperation(string, string, time.Duration) {}
func (noopRecorder) RecordRetry(string)                            {}
func (noopRecorder) SetCircuitState(string, domain.CircuitState)   {}

type outcome string

const (
	outcomeSuccess          outcome = "success"
	outcomeFailure          outcome = "failure"
	outcomeTimeout          outcome = "timeout"
	outcomeBlocked          outcome = "blocked"
	outcomeBulkheadRejected outcome = "bulkhead_rejected"
	outcomeCancelled        outcome = "cancelled"
	outcomeFallback         outcome = "fallback"
)

type operationEntry struct {
	mu      sync.Mutex
	metrics domain.OperationMetrics
}

// metricsTable keeps one independently locked entry per operation name.
type metricsTable struct {
	entries sync.Map
}

func (t *metricsTable) entry(operation string) *operationEntry {
	if value, ok := t.entries.Load(operation); ok {
		return value.(*operationEntry)
	}
	value, _ := t.entries.LoadOrStore(operation, &operationEntry{
		metrics: domain.OperationMetrics{Operation: operation},
	})
	return value.(*operationEntry)
}

func (t *metricsTable) update(operation string, fn func(m *domain.OperationMetrics)) {
	e := t.entry(operation)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.metrics)
	e.metrics.LastUpdated = time.Now()
}

func (t *metricsTable) get(operation string) (domain.OperationMetrics, bool) {
	value, ok := t.entries.Load(operation)
	if !ok {
		return domain.OperationMetrics{}, false
	}
	e := value.(*operationEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics, true
}

func (t *metricsTable) all() map[string]domain.OperationMetrics {
	result := make(map[string]domain.OperationMetrics)
	t.entries.Range(func(key, value interface{}) bool {
		e := value.(*operationEntry)
		e.mu.Lock()
		result[key.(string)] = e.metrics
		e.mu.Unlock()
		return true
	})
	return result
}

func recordCall(m *domain.OperationMetrics, result outcome, duration time.Duration, state domain.CircuitState, err error) {
	m.TotalCalls++
	m.LastDuration = duration
	m.TotalDuration += duration
	m.AverageDuration = m.TotalDuration / time.Duration(m.TotalCalls)
	m.CircuitState = state

	switch result {
	case outcomeSuccess:
		m.Successes++
	case outcomeFallback:
		m.Failures++
		m.Fallbacks++
	case outcomeTimeout:
		m.Failures++
		m.Timeouts++
	case outcomeBlocked:
		m.Blocked++
	case outcomeBulkheadRejected:
		m.BulkheadRejections++
	case outcomeFailure:
		m.Failures++
	}

	if err != nil {
		m.LastFailure = err.Error()
	}
}

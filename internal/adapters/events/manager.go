package events

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

// Manager is an in-process event bus. Handlers run in subscription order on
// the publishing goroutine unless the manager was built with WithAsync.
// A panicking handler is logged and does not affect the others.
type Manager struct {
	logger *slog.Logger
	async  bool

	mu            sync.RWMutex
	subscriptions []subscription
	wg            sync.WaitGroup
}

type subscription struct {
	id       string
	patterns []string
	handler  ports.EventHandler
}

var _ ports.EventBus = (*Manager)(nil)

type Option func(*Manager)

// WithAsync dispatches every handler on its own goroutine.
func WithAsync() Option {
	return func(m *Manager) { m.async = true }
}

func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		logger: logger.With("component", "event-manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers handler for the given event types. A type ending in
// "*" matches by prefix, so "workflow.*" receives every workflow event.
func (m *Manager) Subscribe(handler ports.EventHandler, types ...domain.EventType) func() {
	patterns := make([]string, 0, len(types))
	for _, t := range types {
		patterns = append(patterns, string(t))
	}
	if len(patterns) == 0 {
		patterns = append(patterns, "*")
	}

	sub := subscription{id: uuid.NewString(), patterns: patterns, handler: handler}

	m.mu.Lock()
	m.subscriptions = append(m.subscriptions, sub)
	m.mu.Unlock()

	m.logger.Debug("event handler subscribed", "subscription_id", sub.id, "patterns", patterns)

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(sub.id) })
	}
}

func (m *Manager) unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscriptions {
		if sub.id == id {
			m.subscriptions = append(m.subscriptions[:i:i], m.subscriptions[i+1:]...)
			return
		}
	}
}

func (m *Manager) Publish(ctx context.Context, event domain.WorkflowEvent) {
	m.mu.RLock()
	var handlers []ports.EventHandler
	for _, sub := range m.subscriptions {
		if sub.matches(string(event.Type)) {
			handlers = append(handlers, sub.handler)
		}
	}
	m.mu.RUnlock()

	for _, handler := range handlers {
		if m.async {
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				m.safeCall(ctx, event, handler)
			}()
			continue
		}
		m.safeCall(ctx, event, handler)
	}
}

// Wait blocks until asynchronously dispatched handlers have returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (s subscription) matches(eventType string) bool {
	for _, pattern := range s.patterns {
		if patternMatches(pattern, eventType) {
			return true
		}
	}
	return false
}

func patternMatches(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == key
}

func (m *Manager) safeCall(ctx context.Context, event domain.WorkflowEvent, handler ports.EventHandler) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event handler panicked",
				"panic", r,
				"event_type", string(event.Type),
				"workflow_id", event.InstanceID)
		}
	}()
	handler(ctx, event)
}

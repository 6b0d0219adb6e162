package assignment

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

type Registry struct {
	selectors map[string]ports.AssigneeSelector
	mu        sync.RWMutex
	logger    *slog.Logger
}

var _ ports.SelectorRegistry = (*Registry)(nil)

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		selectors: make(map[string]ports.AssigneeSelector),
		logger:    logger.With("component", "selector_registry"),
	}
}

func (r *Registry) Register(selector ports.AssigneeSelector) error {
	if selector == nil {
		return domain.NewValidationError("selector cannot be nil", nil, domain.WithComponent("selector_registry"))
	}

	name := selector.Name()
	if name == "" {
		return domain.NewValidationError("selector name cannot be empty", nil, domain.WithComponent("selector_registry"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.selectors[name]; exists {
		r.logger.Warn("selector registration conflict detected", "strategy", name)
		return domain.NewConflictError("selector already registered", nil,
			domain.WithComponent("selector_registry"), domain.WithDetail("strategy", name))
	}

	r.selectors[name] = selector
	r.logger.Debug("selector registered", "strategy", name)
	return nil
}

func (r *Registry) Get(name string) (ports.AssigneeSelector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	selector, ok := r.selectors[name]
	return selector, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.selectors))
	for name := range r.selectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

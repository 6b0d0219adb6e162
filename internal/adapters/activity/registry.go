package activity

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

type Registry struct {
	factories map[domain.ActivityType]ports.ActivityFactory
	mu        sync.RWMutex
	logger    *slog.Logger
}

var _ ports.ActivityRegistry = (*Registry)(nil)

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		factories: make(map[domain.ActivityType]ports.ActivityFactory),
		logger:    logger.With("component", "activity_registry"),
	}
}

// NewDefaultRegistry returns a registry holding every built-in activity.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	for activityType, factory := range builtins() {
		r.factories[activityType] = factory
	}
	return r
}

func builtins() map[domain.ActivityType]ports.ActivityFactory {
	return map[domain.ActivityType]ports.ActivityFactory{
		domain.ActivityTypeStart:     func() ports.Activity { return &Start{} },
		domain.ActivityTypeEnd:       func() ports.Activity { return &End{} },
		domain.ActivityTypeIfElse:    func() ports.Activity { return &IfElse{} },
		domain.ActivityTypeFork:      func() ports.Activity { return &Fork{} },
		domain.ActivityTypeJoin:      func() ports.Activity { return &Join{} },
		domain.ActivityTypeHumanTask: func() ports.Activity { return &HumanTask{} },
	}
}

func (r *Registry) Register(activityType domain.ActivityType, factory ports.ActivityFactory) error {
	if activityType == "" {
		return domain.NewValidationError("activity type cannot be empty", nil, domain.WithComponent("activity_registry"))
	}
	if factory == nil {
		return domain.NewValidationError("activity factory cannot be nil", nil,
			domain.WithComponent("activity_registry"), domain.WithDetail("activity_type", string(activityType)))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[activityType]; exists {
		r.logger.Debug("activity registration failed - already exists", "activity_type", activityType)
		return domain.NewConflictError("activity type already registered", nil,
			domain.WithComponent("activity_registry"), domain.WithDetail("activity_type", string(activityType)))
	}

	r.factories[activityType] = factory
	r.logger.Debug("activity registered", "activity_type", activityType, "total_types", len(r.factories))
	return nil
}

func (r *Registry) Create(activityType domain.ActivityType) (ports.Activity, error) {
	r.mu.RLock()
	factory, ok := r.factories[activityType]
	r.mu.RUnlock()

	if !ok {
		return nil, domain.NewNotFoundError("activity type", string(activityType), domain.WithComponent("activity_registry"))
	}
	return factory(), nil
}

func (r *Registry) Types() []domain.ActivityType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.ActivityType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

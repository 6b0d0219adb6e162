package assignment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

// selectorFunc adapts a plain function to ports.AssigneeSelector.
type selectorFunc struct {
	name string
	fn   func(ctx context.Context, ac domain.AssignmentContext) (domain.SelectionResult, error)
}

func (s selectorFunc) Name() string { return s.name }

func (s selectorFunc) Select(ctx context.Context, ac domain.AssignmentContext) (domain.SelectionResult, error) {
	return s.fn(ctx, ac)
}

func NewSelector(name string, fn func(ctx context.Context, ac domain.AssignmentContext) (domain.SelectionResult, error)) ports.AssigneeSelector {
	return selectorFunc{name: name, fn: fn}
}

// RegisterBuiltins adds every built-in strategy to registry.
func RegisterBuiltins(registry ports.SelectorRegistry, instances ports.InstanceStore) error {
	for _, selector := range Builtins(instances) {
		if err := registry.Register(selector); err != nil {
			return err
		}
	}
	return nil
}

func Builtins(instances ports.InstanceStore) []ports.AssigneeSelector {
	return []ports.AssigneeSelector{
		NewSelector(domain.StrategyDirect, selectDirect),
		NewSelector(domain.StrategyRole, selectRole),
		NewSelector(domain.StrategyGroup, selectGroup),
		NewSelector(domain.StrategyInitiator, selectInitiator),
		NewSelector(domain.StrategyVariable, selectVariable),
		&PreviousOwner{instances: instances},
		&LeastLoaded{instances: instances},
		NewRoundRobin(),
	}
}

func selectDirect(_ context.Context, ac domain.AssignmentContext) (domain.SelectionResult, error) {
	assignee := domain.ResolveTemplate(stringProperty(ac.Properties, domain.PropAssignee), ac.Variables)
	if assignee == "" {
		return domain.SelectionFailed(domain.StrategyDirect, "no assignee configured"), nil
	}
	return domain.SelectionSucceeded(domain.StrategyDirect, assignee, ""), nil
}

func selectRole(_ context.Context, ac domain.AssignmentContext) (domain.SelectionResult, error) {
	role := domain.ResolveTemplate(stringProperty(ac.Properties, domain.PropAssigneeRole), ac.Variables)
	if role == "" {
		return domain.SelectionFailed(domain.StrategyRole, "no assignee role configured"), nil
	}
	result := domain.SelectionSucceeded(domain.StrategyRole, "", role)
	result.Metadata["role"] = role
	return result, nil
}

func selectGroup(_ context.Context, ac domain.AssignmentContext) (domain.SelectionResult, error) {
	group := domain.ResolveTemplate(stringProperty(ac.Properties, domain.PropAssigneeGroup), ac.Variables)
	if group == "" {
		return domain.SelectionFailed(domain.StrategyGroup, "no assignee group configured"), nil
	}
	return domain.SelectionSucceeded(domain.StrategyGroup, "", group), nil
}

func selectInitiator(_ context.Context, ac domain.AssignmentContext) (domain.SelectionResult, error) {
	if ac.StartedBy == "" {
		return domain.SelectionFailed(domain.StrategyInitiator, "workflow has no initiator"), nil
	}
	return domain.SelectionSucceeded(domain.StrategyInitiator, ac.StartedBy, ""), nil
}

func selectVariable(_ context.Context, ac domain.AssignmentContext) (domain.SelectionResult, error) {
	path := stringProperty(ac.Properties, domain.PropAssigneeVariable)
	if path == "" {
		return domain.SelectionFailed(domain.StrategyVariable, "no assignee variable configured"), nil
	}

	value, ok := domain.LookupVariable(ac.Variables, path)
	if !ok || value == nil {
		return domain.SelectionFailed(domain.StrategyVariable, fmt.Sprintf("variable %s is not set", path)), nil
	}
	assignee, ok := value.(string)
	if !ok || assignee == "" {
		return domain.SelectionFailed(domain.StrategyVariable, fmt.Sprintf("variable %s is not a non-empty string", path)), nil
	}
	return domain.SelectionSucceeded(domain.StrategyVariable, assignee, ""), nil
}

// PreviousOwner routes a revisited activity back to whoever held it last.
type PreviousOwner struct {
	instances ports.InstanceStore
}

func (p *PreviousOwner) Name() string { return domain.StrategyPreviousOwner }

func (p *PreviousOwner) Select(ctx context.Context, ac domain.AssignmentContext) (domain.SelectionResult, error) {
	if p.instances == nil {
		return domain.SelectionFailed(domain.StrategyPreviousOwner, "instance store unavailable"), nil
	}

	instance, err := p.instances.GetInstance(ctx, ac.InstanceID)
	if err != nil {
		return domain.SelectionResult{}, err
	}

	prior := instance.PriorExecutions(ac.ActivityID)
	if len(prior) == 0 {
		return domain.SelectionFailed(domain.StrategyPreviousOwner, "activity has no prior execution"), nil
	}

	for i := len(prior) - 1; i >= 0; i-- {
		owner := prior[i].Assignee
		if owner == "" {
			owner = prior[i].CompletedBy
		}
		if owner != "" {
			result := domain.SelectionSucceeded(domain.StrategyPreviousOwner, owner, "")
			result.Metadata["prior_execution_id"] = prior[i].ID
			return result, nil
		}
	}
	return domain.SelectionFailed(domain.StrategyPreviousOwner, "prior executions have no owner"), nil
}

// LeastLoaded picks the candidate holding the fewest active instances.
type LeastLoaded struct {
	instances ports.InstanceStore
}

func (l *LeastLoaded) Name() string { return domain.StrategyLeastLoaded }

func (l *LeastLoaded) Select(ctx context.Context, ac domain.AssignmentContext) (domain.SelectionResult, error) {
	candidates := stringList(ac.Properties[domain.PropCandidates])
	if len(candidates) == 0 {
		return domain.SelectionFailed(domain.StrategyLeastLoaded, "no candidates configured"), nil
	}
	if l.instances == nil {
		return domain.SelectionFailed(domain.StrategyLeastLoaded, "instance store unavailable"), nil
	}

	best, bestLoad := "", -1
	for _, candidate := range candidates {
		active, err := l.instances.ListByAssignee(ctx, candidate)
		if err != nil {
			return domain.SelectionResult{}, err
		}
		if bestLoad < 0 || len(active) < bestLoad {
			best, bestLoad = candidate, len(active)
		}
	}

	result := domain.SelectionSucceeded(domain.StrategyLeastLoaded, best, "")
	result.Metadata["active_instances"] = bestLoad
	return result, nil
}

// RoundRobin rotates through the candidates of each activity.
type RoundRobin struct {
	mu      sync.Mutex
	cursors map[string]int
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{cursors: make(map[string]int)}
}

func (r *RoundRobin) Name() string { return domain.StrategyRoundRobin }

func (r *RoundRobin) Select(_ context.Context, ac domain.AssignmentContext) (domain.SelectionResult, error) {
	candidates := stringList(ac.Properties[domain.PropCandidates])
	if len(candidates) == 0 {
		return domain.SelectionFailed(domain.StrategyRoundRobin, "no candidates configured"), nil
	}

	r.mu.Lock()
	cursor := r.cursors[ac.ActivityID]
	r.cursors[ac.ActivityID] = cursor + 1
	r.mu.Unlock()

	return domain.SelectionSucceeded(domain.StrategyRoundRobin, candidates[cursor%len(candidates)], ""), nil
}

func stringProperty(props map[string]interface{}, key string) string {
	value, ok := props[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(value)
}

// stringList accepts a list value or a comma separated string.
func stringList(value interface{}) []string {
	var raw []string
	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		raw = v
	case []interface{}:
		for _, item := range v {
			if item != nil {
				raw = append(raw, fmt.Sprint(item))
			}
		}
	case string:
		raw = strings.Split(v, ",")
	default:
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// StrategyList parses a strategy list property.
func StrategyList(value interface{}) []string {
	return stringList(value)
}

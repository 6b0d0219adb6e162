package engine

import (
	"context"
	"fmt"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

// ValidateDefinition checks the schema graph and asks every activity to
// validate its own configuration. It collects all problems rather than
// stopping at the first.
func (e *Engine) ValidateDefinition(ctx context.Context, schema *domain.WorkflowSchema) domain.ValidationResult {
	result := domain.ValidResult()
	if schema == nil {
		result.Add("schema is required")
		return result
	}

	logger := e.logger.With("component", validatorComponent, "schema_id", schema.ID)

	if schema.ID == "" {
		result.Add("schema id is required")
	}
	if len(schema.Activities) == 0 {
		result.Add("schema must declare at least one activity")
		return result
	}

	seen := make(map[string]bool, len(schema.Activities))
	starts := 0
	for i := range schema.Activities {
		def := &schema.Activities[i]
		if def.ID == "" {
			result.Add(fmt.Sprintf("activity at index %d has no id", i))
			continue
		}
		if seen[def.ID] {
			result.Add(fmt.Sprintf("duplicate activity id %s", def.ID))
		}
		seen[def.ID] = true
		if def.IsStart {
			starts++
		}

		if e.runtime != nil {
			result.Merge(e.runtime.Validate(ctx, &ports.ActivityContext{
				Schema:     schema,
				Activity:   def,
				Services:   e.services,
				Properties: def.Properties,
			}))
		}
	}
	if starts > 1 {
		result.Add(fmt.Sprintf("schema declares %d start activities", starts))
	}
	if starts == 0 {
		logger.Debug("no start activity flagged, first activity will be used", "activity_id", schema.Activities[0].ID)
	}

	transitionIDs := make(map[string]bool, len(schema.Transitions))
	for i, t := range schema.Transitions {
		label := t.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		} else if transitionIDs[t.ID] {
			result.Add(fmt.Sprintf("duplicate transition id %s", t.ID))
		}
		transitionIDs[t.ID] = true

		if !seen[t.From] {
			result.Add(fmt.Sprintf("transition %s starts at unknown activity %q", label, t.From))
		}
		if !seen[t.To] {
			result.Add(fmt.Sprintf("transition %s targets unknown activity %q", label, t.To))
		}

		switch t.Type {
		case "", domain.TransitionTypeNormal:
		case domain.TransitionTypeConditional:
			if t.Condition == "" {
				result.Add(fmt.Sprintf("conditional transition %s has no condition", label))
				continue
			}
			if e.services.Expressions == nil {
				continue
			}
			if ok, err := e.services.Expressions.Validate(t.Condition); !ok || err != nil {
				msg := fmt.Sprintf("transition %s has an invalid condition %q", label, t.Condition)
				if err != nil {
					msg += ": " + err.Error()
				}
				result.Add(msg)
			}
		default:
			result.Add(fmt.Sprintf("transition %s has unknown type %q", label, t.Type))
		}
	}

	if !result.Valid {
		logger.Info("schema validation failed", "errors", len(result.Errors))
	}
	return result
}

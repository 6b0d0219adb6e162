package activity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

const strategyOverride = "override"

// HumanTask suspends the workflow until a person resumes it.
type HumanTask struct{}

func (a *HumanTask) Type() domain.ActivityType { return domain.ActivityTypeHumanTask }

func (a *HumanTask) Execute(ctx context.Context, actx *ports.ActivityContext) (domain.ActivityResult, error) {
	if actx.Services.Bookmarks == nil {
		return domain.ActivityResult{}, domain.NewExecutionError("bookmark store not configured", nil,
			domain.WithActivityID(actx.Activity.ID))
	}

	selection, err := a.resolveAssignee(ctx, actx)
	if err != nil {
		return domain.ActivityResult{}, err
	}
	if !selection.Success {
		return domain.FailedResult("assignment failed: " + selection.ErrorMessage), nil
	}

	token := uuid.NewString()
	key := domain.BookmarkKey(actx.Instance.ID, actx.Activity.ID, token)
	bookmark := &domain.Bookmark{
		Key:        key,
		InstanceID: actx.Instance.ID,
		ActivityID: actx.Activity.ID,
		Token:      token,
		Payload: map[string]interface{}{
			"assignee":      selection.Assignee,
			"assigneeGroup": selection.AssigneeGroup,
		},
		CreatedAt: actx.Now(),
	}
	if err := actx.Services.Bookmarks.CreateBookmark(ctx, bookmark); err != nil {
		return domain.ActivityResult{}, err
	}

	previous := actx.Instance.CurrentAssignee
	actx.Instance.CurrentAssignee = selection.Assignee
	if actx.Execution != nil {
		actx.Execution.Assignee = selection.Assignee
		actx.Execution.BookmarkKey = key
	}

	if actx.Services.Audit != nil {
		actx.Services.Audit.LogAssignmentChange(ctx, domain.AssignmentChange{
			InstanceID:       actx.Instance.ID,
			ActivityID:       actx.Activity.ID,
			PreviousAssignee: previous,
			NewAssignee:      selection.Assignee,
			AssigneeGroup:    selection.AssigneeGroup,
			Strategy:         selection.Strategy,
			Reason:           "task created",
			ChangedBy:        "system",
			Timestamp:        actx.Now(),
		})
	}

	actx.Logger().Info("human task waiting",
		"assignee", selection.Assignee,
		"assignee_group", selection.AssigneeGroup,
		"strategy", selection.Strategy,
		"bookmark_key", key)

	return domain.PendingResult(map[string]interface{}{
		"assignee":      selection.Assignee,
		"assigneeGroup": selection.AssigneeGroup,
		"strategy":      selection.Strategy,
		"bookmarkKey":   key,
	}), nil
}

// resolveAssignee applies the runtime override first, then the declared
// strategy chain.
func (a *HumanTask) resolveAssignee(ctx context.Context, actx *ports.ActivityContext) (domain.SelectionResult, error) {
	props := properties(actx)
	vars := actx.Variables()
	strategies := declaredStrategies(props)

	if override, ok := actx.Instance.AssignmentOverrides[actx.Activity.ID]; ok && !override.IsEmpty() {
		switch {
		case override.RuntimeAssignee != "":
			result := domain.SelectionSucceeded(strategyOverride, domain.ResolveTemplate(override.RuntimeAssignee, vars), override.RuntimeAssigneeGroup)
			result.Metadata["reason"] = override.Reason
			result.Metadata["overridden_by"] = override.OverriddenBy
			return result, nil
		case override.RuntimeAssigneeGroup != "":
			result := domain.SelectionSucceeded(strategyOverride, "", domain.ResolveTemplate(override.RuntimeAssigneeGroup, vars))
			result.Metadata["reason"] = override.Reason
			result.Metadata["overridden_by"] = override.OverriddenBy
			return result, nil
		default:
			strategies = override.RuntimeAssignmentStrategies
		}
	}

	if actx.Services.Assignment == nil {
		return domain.SelectionResult{}, domain.NewExecutionError("assignment engine not configured", nil,
			domain.WithActivityID(actx.Activity.ID))
	}

	ac := domain.AssignmentContext{
		InstanceID:           actx.Instance.ID,
		ActivityID:           actx.Activity.ID,
		ActivityName:         actx.Activity.Name,
		StartedBy:            actx.Instance.StartedBy,
		Variables:            vars,
		Properties:           props,
		AssignmentStrategies: strategies,
	}

	if actx.Services.Resilience == nil {
		return actx.Services.Assignment.Execute(ctx, ac), nil
	}

	value, err := actx.Services.Resilience.ExecuteWithResilience(ctx, "assignment:"+actx.Activity.ID,
		func(ctx context.Context) (interface{}, error) {
			return actx.Services.Assignment.Execute(ctx, ac), nil
		}, nil)
	if err != nil {
		return domain.SelectionResult{}, err
	}
	selection, ok := value.(domain.SelectionResult)
	if !ok {
		return domain.SelectionResult{}, domain.NewExecutionError(fmt.Sprintf("unexpected assignment result %T", value), nil,
			domain.WithActivityID(actx.Activity.ID))
	}
	return selection, nil
}

// declaredStrategies returns the explicit strategy list, or one derived from
// whichever of assignee, assigneeRole and assigneeGroup is configured.
func declaredStrategies(props map[string]interface{}) []string {
	var explicit []string
	if _, err := decodeProp(props, domain.PropAssignmentStrategies, &explicit); err != nil || len(explicit) == 0 {
		if s := stringProp(props, domain.PropAssignmentStrategies); s != "" {
			explicit = splitList(s)
		}
	}
	if len(explicit) > 0 {
		return explicit
	}

	var derived []string
	if stringProp(props, domain.PropAssignee) != "" {
		derived = append(derived, domain.StrategyDirect)
	}
	if stringProp(props, domain.PropAssigneeRole) != "" {
		derived = append(derived, domain.StrategyRole)
	}
	if stringProp(props, domain.PropAssigneeGroup) != "" {
		derived = append(derived, domain.StrategyGroup)
	}
	return derived
}

func (a *HumanTask) Resume(ctx context.Context, actx *ports.ActivityContext, input map[string]interface{}) (domain.ActivityResult, error) {
	key, _ := input[domain.InputBookmarkKey].(string)
	if key == "" && actx.Execution != nil {
		key = actx.Execution.BookmarkKey
	}

	if key != "" && actx.Services.Bookmarks != nil {
		if _, err := actx.Services.Bookmarks.ConsumeBookmark(ctx, key); err != nil {
			actx.Logger().Warn("failed to consume bookmark", "bookmark_key", key, "error", err)
		}
	}

	output := make(map[string]interface{})
	if actx.Execution != nil {
		for k, v := range actx.Execution.OutputData {
			output[k] = v
		}
	}
	for _, field := range []string{domain.InputDecision, domain.InputComments, domain.InputCompletedBy} {
		if value, ok := input[field]; ok {
			output[field] = value
		}
	}
	output["completedAt"] = actx.Now()

	if completedBy, ok := input[domain.InputCompletedBy].(string); ok && actx.Execution != nil {
		actx.Execution.CompletedBy = completedBy
	}

	actx.Logger().Info("human task completed", "decision", output[domain.InputDecision], "completed_by", output[domain.InputCompletedBy])
	return domain.CompletedResult(output), nil
}

func (a *HumanTask) Validate(_ context.Context, actx *ports.ActivityContext) domain.ValidationResult {
	if len(declaredStrategies(properties(actx))) == 0 {
		return domain.InvalidResult("human task " + actx.Activity.ID + " requires an assignee, assigneeRole, assigneeGroup or assignmentStrategies")
	}
	return domain.ValidResult()
}

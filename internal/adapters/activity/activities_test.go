package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/flowcore/internal/adapters/assignment"
	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
	"github.com/eleven-am/flowcore/internal/ports/mocks"
	json "github.com/eleven-am/flowcore/internal/xjson"
)

func TestIfElse(t *testing.T) {
	exprs := mocks.NewMockExpressionEvaluator(t)
	exprs.On("EvaluateBoolean", mock.Anything, "amount > 1000", mock.Anything).Return(true, nil)

	actx := newActivityContext(domain.ActivityDefinition{
		ID:         "check",
		Type:       domain.ActivityTypeIfElse,
		Properties: map[string]interface{}{"condition": "amount > 1000"},
	}, map[string]interface{}{"amount": 1500})
	actx.Services.Expressions = exprs

	result, err := (&IfElse{}).Execute(context.Background(), actx)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultCompleted, result.Status)
	assert.Equal(t, true, result.Output["result"])

	_, err = (&IfElse{}).Resume(context.Background(), actx, nil)
	assert.True(t, domain.IsUnsupportedOperation(err))
}

func TestIfElseRequiresCondition(t *testing.T) {
	actx := newActivityContext(domain.ActivityDefinition{ID: "check", Type: domain.ActivityTypeIfElse}, nil)

	_, err := (&IfElse{}).Execute(context.Background(), actx)
	assert.True(t, domain.IsMissingPropertyError(err))
	assert.False(t, (&IfElse{}).Validate(context.Background(), actx).Valid)

	rt := NewRuntime(NewDefaultRegistry(nil), nil)
	result, err := rt.Execute(context.Background(), actx)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFailed, result.Status)
}

func TestEndCopiesOutputVariables(t *testing.T) {
	actx := newActivityContext(domain.ActivityDefinition{
		ID:         "end",
		Type:       domain.ActivityTypeEnd,
		Properties: map[string]interface{}{"outputVariables": []interface{}{"decision", "loan.id"}},
	}, map[string]interface{}{"decision": "approved", "loan": map[string]interface{}{"id": "L-1"}})

	result, err := (&End{}).Execute(context.Background(), actx)
	require.NoError(t, err)
	assert.Equal(t, "approved", result.Output["decision"])
	assert.Equal(t, "L-1", result.Output["loan.id"])
}

func forkDefinition(props map[string]interface{}) domain.ActivityDefinition {
	return domain.ActivityDefinition{ID: "split", Type: domain.ActivityTypeFork, Properties: props}
}

func threeBranches() []interface{} {
	return []interface{}{
		map[string]interface{}{"id": "b1", "name": "credit"},
		map[string]interface{}{"id": "b2", "name": "fraud"},
		map[string]interface{}{"id": "b3", "name": "income"},
	}
}

func TestForkValidation(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]interface{}
	}{
		{"no branches", map[string]interface{}{}},
		{"duplicate ids", map[string]interface{}{"branches": []interface{}{
			map[string]interface{}{"id": "b1", "name": "x"},
			map[string]interface{}{"id": "b1", "name": "y"},
		}}},
		{"missing name", map[string]interface{}{"branches": []interface{}{map[string]interface{}{"id": "b1"}}}},
		{"zero concurrency", map[string]interface{}{"branches": threeBranches(), "maxConcurrency": 0}},
		{"bad fork type", map[string]interface{}{"branches": threeBranches(), "forkType": "some"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actx := newActivityContext(forkDefinition(tt.props), nil)
			assert.False(t, (&Fork{}).Validate(context.Background(), actx).Valid)

			_, err := (&Fork{}).Execute(context.Background(), actx)
			assert.True(t, domain.IsValidationError(err))
		})
	}
}

func TestForkFiltersBranchesByCondition(t *testing.T) {
	exprs := mocks.NewMockExpressionEvaluator(t)
	exprs.On("EvaluateBoolean", mock.Anything, "amount > 100000", mock.Anything).Return(false, nil)

	branches := threeBranches()
	branches[2].(map[string]interface{})["condition"] = "amount > 100000"
	actx := newActivityContext(forkDefinition(map[string]interface{}{
		"branches": branches,
		"forkType": "conditional",
	}), map[string]interface{}{"amount": 10})
	actx.Services.Expressions = exprs

	result, err := (&Fork{}).Execute(context.Background(), actx)
	require.NoError(t, err)

	forkID := result.Output["forkId"].(string)
	assert.Equal(t, []string{"b1", "b2"}, result.Output["activeBranches"])

	raw, ok := result.VariableUpdates[domain.ForkVariableKey(forkID)]
	require.True(t, ok)
	var fork domain.ForkExecutionContext
	require.NoError(t, json.Convert(raw, &fork))
	assert.Equal(t, "split", fork.ForkActivityID)
	assert.Equal(t, domain.ForkTypeConditional, fork.ForkType)
	assert.Equal(t, 3, fork.MaxConcurrency)
	assert.Len(t, fork.Branches, 2)
}

// openFork runs a fork and applies its variable updates, returning the join
// context.
func openFork(t *testing.T, joinProps map[string]interface{}) *joinHarness {
	t.Helper()
	forkCtx := newActivityContext(forkDefinition(map[string]interface{}{"branches": threeBranches()}), nil)
	result, err := (&Fork{}).Execute(context.Background(), forkCtx)
	require.NoError(t, err)

	vars := map[string]interface{}{}
	for k, v := range result.VariableUpdates {
		vars[k] = v
	}
	if _, ok := joinProps["forkId"]; !ok {
		joinProps["forkId"] = "split"
	}
	return &joinHarness{
		forkKey: domain.ForkVariableKey(result.Output["forkId"].(string)),
		actx: newActivityContext(domain.ActivityDefinition{
			ID: "merge", Type: domain.ActivityTypeJoin, Properties: joinProps,
		}, vars),
	}
}

type joinHarness struct {
	forkKey string
	actx    *ports.ActivityContext
}

func (h *joinHarness) report(t *testing.T, branchID, status string, output map[string]interface{}) domain.ActivityResult {
	t.Helper()
	result, err := (&Join{}).Resume(context.Background(), h.actx, map[string]interface{}{
		domain.InputBranchID:     branchID,
		domain.InputBranchStatus: status,
		domain.InputBranchOutput: output,
	})
	require.NoError(t, err)
	return result
}

func TestJoinAllWaitsForEveryBranch(t *testing.T) {
	h := openFork(t, map[string]interface{}{"joinType": "all"})

	result, err := (&Join{}).Execute(context.Background(), h.actx)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultPending, result.Status)

	assert.Equal(t, domain.ResultPending, h.report(t, "b1", "completed", map[string]interface{}{"score": 700, "a": 1}).Status)
	assert.Equal(t, domain.ResultPending, h.report(t, "b2", "failed", nil).Status)

	result = h.report(t, "b3", "completed", map[string]interface{}{"score": 710, "b": 2})
	require.Equal(t, domain.ResultCompleted, result.Status)
	assert.Equal(t, 710, int(toFloat(result.Output["score"])), "later completions overwrite earlier ones")
	assert.Contains(t, result.Output, "a")
	assert.Contains(t, result.Output, "b")
	assert.Equal(t, []string{h.forkKey}, result.ClearVariables)
}

func TestJoinAllProceedsWhenEveryBranchFailed(t *testing.T) {
	h := openFork(t, map[string]interface{}{})

	h.report(t, "b1", "failed", nil)
	h.report(t, "b2", "failed", nil)
	result := h.report(t, "b3", "failed", nil)

	assert.Equal(t, domain.ResultCompleted, result.Status)
}

func TestJoinAnyProceedsOnFirstCompletion(t *testing.T) {
	h := openFork(t, map[string]interface{}{"joinType": "any"})

	assert.Equal(t, domain.ResultPending, h.report(t, "b1", "failed", nil).Status)
	assert.Equal(t, domain.ResultCompleted, h.report(t, "b2", "completed", map[string]interface{}{"x": 1}).Status)
}

func TestJoinMajority(t *testing.T) {
	h := openFork(t, map[string]interface{}{"joinType": "majority", "mergeStrategy": "first"})

	assert.Equal(t, domain.ResultPending, h.report(t, "b1", "completed", map[string]interface{}{"who": "b1"}).Status)
	result := h.report(t, "b3", "completed", map[string]interface{}{"who": "b3"})
	require.Equal(t, domain.ResultCompleted, result.Status)
	assert.Equal(t, "b1", result.Output["who"])
}

func TestJoinResumeErrors(t *testing.T) {
	h := openFork(t, map[string]interface{}{})

	_, err := (&Join{}).Resume(context.Background(), h.actx, map[string]interface{}{})
	assert.True(t, domain.IsResumeError(err))

	_, err = (&Join{}).Resume(context.Background(), h.actx, map[string]interface{}{domain.InputBranchID: "b9"})
	assert.True(t, domain.IsResumeError(err))

	_, err = (&Join{}).Resume(context.Background(), h.actx, map[string]interface{}{
		domain.InputBranchID: "b1", domain.InputBranchStatus: "maybe",
	})
	assert.True(t, domain.IsResumeError(err))
}

func TestJoinRequiresForkID(t *testing.T) {
	actx := newActivityContext(domain.ActivityDefinition{ID: "merge", Type: domain.ActivityTypeJoin}, nil)

	_, err := (&Join{}).Execute(context.Background(), actx)
	assert.True(t, domain.IsMissingPropertyError(err))
	assert.False(t, (&Join{}).Validate(context.Background(), actx).Valid)
}

func ageFork(t *testing.T, h *joinHarness, age time.Duration) {
	t.Helper()
	var fork domain.ForkExecutionContext
	require.NoError(t, json.Convert(h.actx.Variables()[h.forkKey], &fork))
	fork.CreatedAt = time.Now().Add(-age)
	var encoded map[string]interface{}
	require.NoError(t, json.Convert(fork, &encoded))
	h.actx.Variables()[h.forkKey] = encoded
}

func TestJoinTimeout(t *testing.T) {
	t.Run("proceed", func(t *testing.T) {
		h := openFork(t, map[string]interface{}{"timeoutMinutes": 5, "timeoutAction": "proceed"})
		ageFork(t, h, 10*time.Minute)

		result, err := (&Join{}).Execute(context.Background(), h.actx)
		require.NoError(t, err)
		assert.Equal(t, domain.ResultCompleted, result.Status)
		assert.Equal(t, true, result.Output["timedOut"])
	})

	t.Run("fail", func(t *testing.T) {
		h := openFork(t, map[string]interface{}{"timeoutMinutes": 5, "timeoutAction": "fail"})
		ageFork(t, h, 10*time.Minute)

		result, err := (&Join{}).Execute(context.Background(), h.actx)
		require.NoError(t, err)
		assert.Equal(t, domain.ResultFailed, result.Status)
		assert.Contains(t, result.ErrorMessage, "timed out")
	})

	t.Run("not yet", func(t *testing.T) {
		h := openFork(t, map[string]interface{}{"timeoutMinutes": 5})
		ageFork(t, h, time.Minute)

		result, err := (&Join{}).Execute(context.Background(), h.actx)
		require.NoError(t, err)
		assert.Equal(t, domain.ResultPending, result.Status)
	})
}

func humanTaskContext(t *testing.T, props map[string]interface{}) (*ports.ActivityContext, *mocks.MockBookmarkStore) {
	t.Helper()
	registry := assignment.NewRegistry(nil)
	require.NoError(t, assignment.RegisterBuiltins(registry, nil))

	bookmarks := mocks.NewMockBookmarkStore(t)
	actx := newActivityContext(domain.ActivityDefinition{
		ID: "review", Name: "Review", Type: domain.ActivityTypeHumanTask, Properties: props,
	}, map[string]interface{}{"owner": "olga"})
	actx.Services.Bookmarks = bookmarks
	actx.Services.Assignment = assignment.NewEngine(registry, nil, nil)
	return actx, bookmarks
}

func TestHumanTaskCreatesBookmark(t *testing.T) {
	actx, bookmarks := humanTaskContext(t, map[string]interface{}{"assignee": "{$.owner}"})
	bookmarks.On("CreateBookmark", mock.Anything, mock.MatchedBy(func(b *domain.Bookmark) bool {
		instanceID, activityID, token, ok := domain.ParseBookmarkKey(b.Key)
		return ok && instanceID == "wf-1" && activityID == "review" && token == b.Token
	})).Return(nil).Once()

	audit := mocks.NewMockAuditSink(t)
	audit.On("LogAssignmentChange", mock.Anything, mock.MatchedBy(func(c domain.AssignmentChange) bool {
		return c.NewAssignee == "olga" && c.Strategy == domain.StrategyDirect
	})).Once()
	actx.Services.Audit = audit

	result, err := (&HumanTask{}).Execute(context.Background(), actx)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultPending, result.Status)
	assert.Equal(t, "olga", result.Output["assignee"])
	assert.Equal(t, "olga", actx.Instance.CurrentAssignee)
	assert.Equal(t, "olga", actx.Execution.Assignee)
	assert.Equal(t, result.Output["bookmarkKey"], actx.Execution.BookmarkKey)
}

func TestHumanTaskOverrideTakesPrecedence(t *testing.T) {
	actx, bookmarks := humanTaskContext(t, map[string]interface{}{"assignee": "petra"})
	bookmarks.On("CreateBookmark", mock.Anything, mock.Anything).Return(nil)

	actx.Instance.AssignmentOverrides = map[string]domain.AssignmentOverride{
		"review": {RuntimeAssigneeGroup: "escalations", Reason: "vacation", OverriddenBy: "admin"},
	}

	result, err := (&HumanTask{}).Execute(context.Background(), actx)
	require.NoError(t, err)
	assert.Equal(t, "", result.Output["assignee"])
	assert.Equal(t, "escalations", result.Output["assigneeGroup"])
	assert.Equal(t, strategyOverride, result.Output["strategy"])

	actx.Instance.AssignmentOverrides["review"] = domain.AssignmentOverride{
		RuntimeAssignmentStrategies: []string{domain.StrategyInitiator},
	}
	result, err = (&HumanTask{}).Execute(context.Background(), actx)
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Output["assignee"])
}

func TestHumanTaskAssignmentFailure(t *testing.T) {
	actx, _ := humanTaskContext(t, map[string]interface{}{"assignmentStrategies": "group"})

	result, err := (&HumanTask{}).Execute(context.Background(), actx)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "no assignee group configured")
}

func TestHumanTaskResume(t *testing.T) {
	actx, bookmarks := humanTaskContext(t, map[string]interface{}{"assignee": "petra"})
	actx.Execution.BookmarkKey = "wf-1:review:tok"
	actx.Execution.OutputData = map[string]interface{}{"assignee": "petra"}
	bookmarks.On("ConsumeBookmark", mock.Anything, "wf-1:review:tok").Return(nil, errors.New("already consumed")).Once()

	result, err := (&HumanTask{}).Resume(context.Background(), actx, map[string]interface{}{
		domain.InputDecision:    "approve",
		domain.InputComments:    "looks good",
		domain.InputCompletedBy: "petra",
	})

	require.NoError(t, err, "bookmark consumption failures do not fail the resume")
	assert.Equal(t, domain.ResultCompleted, result.Status)
	assert.Equal(t, "approve", result.Output["decision"])
	assert.Equal(t, "looks good", result.Output["comments"])
	assert.Equal(t, "petra", result.Output["assignee"])
	assert.Equal(t, "petra", actx.Execution.CompletedBy)
}

func TestHumanTaskValidate(t *testing.T) {
	actx, _ := humanTaskContext(t, map[string]interface{}{})
	assert.False(t, (&HumanTask{}).Validate(context.Background(), actx).Valid)

	actx, _ = humanTaskContext(t, map[string]interface{}{"assigneeRole": "manager"})
	assert.True(t, (&HumanTask{}).Validate(context.Background(), actx).Valid)
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func TestActivitiesReadInjectedClock(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	startCtx := newActivityContext(domain.ActivityDefinition{ID: "start", Type: domain.ActivityTypeStart}, nil)
	startCtx.Services.Clock = clock
	started, err := (&Start{}).Execute(context.Background(), startCtx)
	require.NoError(t, err)
	assert.Equal(t, now, started.Output["startedAt"])

	forkCtx := newActivityContext(forkDefinition(map[string]interface{}{"branches": threeBranches()}), nil)
	forkCtx.Services.Clock = clock
	forked, err := (&Fork{}).Execute(context.Background(), forkCtx)
	require.NoError(t, err)

	joinCtx := newActivityContext(domain.ActivityDefinition{
		ID: "merge", Type: domain.ActivityTypeJoin,
		Properties: map[string]interface{}{"forkId": "split", "timeoutMinutes": 5, "timeoutAction": "proceed"},
	}, forked.VariableUpdates)
	joinCtx.Services.Clock = clock

	result, err := (&Join{}).Execute(context.Background(), joinCtx)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultPending, result.Status)

	now = now.Add(6 * time.Minute)
	result, err = (&Join{}).Execute(context.Background(), joinCtx)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultCompleted, result.Status)
	assert.Equal(t, true, result.Output["timedOut"])
}

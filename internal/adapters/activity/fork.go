package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
	json "github.com/eleven-am/flowcore/internal/xjson"
)

const (
	propBranches       = "branches"
	propForkType       = "forkType"
	propMaxConcurrency = "maxConcurrency"
	propForkID         = "forkId"
	propJoinType       = "joinType"
	propMergeStrategy  = "mergeStrategy"
	propTimeoutMinutes = "timeoutMinutes"
	propTimeoutAction  = "timeoutAction"
)

type forkConfig struct {
	Branches       []domain.BranchDefinition
	ForkType       domain.ForkType
	MaxConcurrency int
}

func readForkConfig(props map[string]interface{}) (forkConfig, error) {
	var cfg forkConfig

	if _, err := decodeProp(props, propBranches, &cfg.Branches); err != nil {
		return cfg, err
	}
	if err := validateBranches(cfg.Branches); err != nil {
		return cfg, err
	}

	cfg.ForkType = domain.ForkType(stringProp(props, propForkType))
	switch cfg.ForkType {
	case "":
		cfg.ForkType = domain.ForkTypeAll
	case domain.ForkTypeAll, domain.ForkTypeAny, domain.ForkTypeConditional:
	default:
		return cfg, fmt.Errorf("unknown forkType %q", cfg.ForkType)
	}

	n, present, err := intProp(props, propMaxConcurrency)
	if err != nil {
		return cfg, err
	}
	if present && n <= 0 {
		return cfg, fmt.Errorf("maxConcurrency must be greater than 0")
	}
	if !present {
		n = len(cfg.Branches)
	}
	cfg.MaxConcurrency = n
	return cfg, nil
}

func validateBranches(branches []domain.BranchDefinition) error {
	if len(branches) == 0 {
		return fmt.Errorf("fork requires at least one branch")
	}

	ids := make(map[string]bool, len(branches))
	names := make(map[string]bool, len(branches))
	for i, b := range branches {
		if b.ID == "" {
			return fmt.Errorf("branch %d has no id", i)
		}
		if b.Name == "" {
			return fmt.Errorf("branch %s has no name", b.ID)
		}
		if ids[b.ID] {
			return fmt.Errorf("duplicate branch id %s", b.ID)
		}
		if names[b.Name] {
			return fmt.Errorf("duplicate branch name %s", b.Name)
		}
		ids[b.ID] = true
		names[b.Name] = true
	}
	return nil
}

// Fork splits the path into branches and publishes a fork context for the
// paired Join. Branches are scheduled outside the engine.
type Fork struct{}

func (a *Fork) Type() domain.ActivityType { return domain.ActivityTypeFork }

func (a *Fork) Execute(ctx context.Context, actx *ports.ActivityContext) (domain.ActivityResult, error) {
	cfg, err := readForkConfig(properties(actx))
	if err != nil {
		return domain.ActivityResult{}, domain.NewValidationError(err.Error(), err,
			domain.WithWorkflowID(instanceID(actx)), domain.WithActivityID(actx.Activity.ID))
	}

	fork := domain.ForkExecutionContext{
		ForkID:         uuid.NewString(),
		ForkActivityID: actx.Activity.ID,
		ForkType:       cfg.ForkType,
		MaxConcurrency: cfg.MaxConcurrency,
		CreatedAt:      actx.Now(),
	}

	active := make([]string, 0, len(cfg.Branches))
	for _, branch := range cfg.Branches {
		ok, err := branchActive(ctx, actx, branch)
		if err != nil {
			return domain.ActivityResult{}, err
		}
		if !ok {
			actx.Logger().Debug("branch inactive", "branch_id", branch.ID)
			continue
		}
		fork.Branches = append(fork.Branches, domain.BranchExecutionResult{
			BranchID:   branch.ID,
			Name:       branch.Name,
			ActivityID: branch.ActivityID,
			Status:     domain.BranchStatusPending,
		})
		active = append(active, branch.ID)
	}

	var encoded map[string]interface{}
	if err := json.Convert(fork, &encoded); err != nil {
		return domain.ActivityResult{}, domain.NewExecutionError("failed to encode fork context", err,
			domain.WithActivityID(actx.Activity.ID))
	}

	actx.Logger().Info("fork opened", "fork_id", fork.ForkID, "fork_type", fork.ForkType, "active_branches", len(active))

	result := domain.CompletedResult(map[string]interface{}{
		"forkId":         fork.ForkID,
		"activeBranches": active,
	})
	result.VariableUpdates = map[string]interface{}{
		domain.ForkVariableKey(fork.ForkID): encoded,
	}
	return result, nil
}

func branchActive(ctx context.Context, actx *ports.ActivityContext, branch domain.BranchDefinition) (bool, error) {
	if strings.TrimSpace(branch.Condition) == "" {
		return true, nil
	}
	if actx.Services.Expressions == nil {
		return false, domain.NewExecutionError("expression evaluator not configured", nil,
			domain.WithActivityID(actx.Activity.ID))
	}
	return actx.Services.Expressions.EvaluateBoolean(ctx, branch.Condition, actx.Variables())
}

func (a *Fork) Resume(_ context.Context, actx *ports.ActivityContext, _ map[string]interface{}) (domain.ActivityResult, error) {
	return domain.ActivityResult{}, unsupportedResume(actx)
}

func (a *Fork) Validate(_ context.Context, actx *ports.ActivityContext) domain.ValidationResult {
	cfg, err := readForkConfig(properties(actx))
	if err != nil {
		return domain.InvalidResult("fork activity " + actx.Activity.ID + ": " + err.Error())
	}

	result := domain.ValidResult()
	if actx.Services.Expressions != nil {
		for _, b := range cfg.Branches {
			if b.Condition == "" {
				continue
			}
			if ok, err := actx.Services.Expressions.Validate(b.Condition); !ok || err != nil {
				result.Add(fmt.Sprintf("fork activity %s: branch %s condition: %s", actx.Activity.ID, b.ID, errorText(err)))
			}
		}
	}
	return result
}

type joinConfig struct {
	ForkID         string
	JoinType       domain.JoinType
	MergeStrategy  domain.MergeStrategy
	TimeoutMinutes int
	TimeoutAction  domain.TimeoutAction
}

func readJoinConfig(props map[string]interface{}) (joinConfig, error) {
	cfg := joinConfig{
		ForkID:        stringProp(props, propForkID),
		JoinType:      domain.JoinType(stringProp(props, propJoinType)),
		MergeStrategy: domain.MergeStrategy(stringProp(props, propMergeStrategy)),
		TimeoutAction: domain.TimeoutAction(stringProp(props, propTimeoutAction)),
	}
	if cfg.ForkID == "" {
		return cfg, domain.NewMissingPropertyError(propForkID)
	}

	switch cfg.JoinType {
	case "":
		cfg.JoinType = domain.JoinTypeAll
	case domain.JoinTypeAll, domain.JoinTypeAny, domain.JoinTypeFirst, domain.JoinTypeMajority:
	default:
		return cfg, domain.NewValidationError(fmt.Sprintf("unknown joinType %q", cfg.JoinType), nil)
	}

	switch cfg.MergeStrategy {
	case "":
		cfg.MergeStrategy = domain.MergeCombine
	case domain.MergeCombine, domain.MergeOverride, domain.MergeLast, domain.MergeFirst:
	default:
		return cfg, domain.NewValidationError(fmt.Sprintf("unknown mergeStrategy %q", cfg.MergeStrategy), nil)
	}

	switch cfg.TimeoutAction {
	case "":
		cfg.TimeoutAction = domain.TimeoutActionFail
	case domain.TimeoutActionProceed, domain.TimeoutActionFail:
	default:
		return cfg, domain.NewValidationError(fmt.Sprintf("unknown timeoutAction %q", cfg.TimeoutAction), nil)
	}

	minutes, _, err := intProp(props, propTimeoutMinutes)
	if err != nil {
		return cfg, domain.NewValidationError(err.Error(), err)
	}
	if minutes < 0 {
		return cfg, domain.NewValidationError("timeoutMinutes cannot be negative", nil)
	}
	cfg.TimeoutMinutes = minutes
	return cfg, nil
}

// Join waits on the branches of a fork. Branch outcomes arrive through resume
// with branchId, branchStatus, branchOutput and branchError.
type Join struct{}

func (a *Join) Type() domain.ActivityType { return domain.ActivityTypeJoin }

func (a *Join) Execute(_ context.Context, actx *ports.ActivityContext) (domain.ActivityResult, error) {
	cfg, err := readJoinConfig(properties(actx))
	if err != nil {
		return domain.ActivityResult{}, err
	}

	key, fork, err := findFork(actx.Variables(), cfg.ForkID)
	if err != nil {
		return domain.ActivityResult{}, domain.NewExecutionError(err.Error(), err,
			domain.WithWorkflowID(instanceID(actx)), domain.WithActivityID(actx.Activity.ID))
	}
	return a.decide(actx, cfg, key, fork)
}

func (a *Join) Resume(_ context.Context, actx *ports.ActivityContext, input map[string]interface{}) (domain.ActivityResult, error) {
	cfg, err := readJoinConfig(properties(actx))
	if err != nil {
		return domain.ActivityResult{}, err
	}

	key, fork, err := findFork(actx.Variables(), cfg.ForkID)
	if err != nil {
		return domain.ActivityResult{}, domain.NewResumeError(err.Error(), err, domain.WithActivityID(actx.Activity.ID))
	}

	branchID, _ := input[domain.InputBranchID].(string)
	if branchID == "" {
		return domain.ActivityResult{}, domain.NewResumeError("branchId is required to resume a join", nil,
			domain.WithActivityID(actx.Activity.ID))
	}
	branch := fork.Branch(branchID)
	if branch == nil {
		return domain.ActivityResult{}, domain.NewResumeError("unknown branch "+branchID, nil,
			domain.WithActivityID(actx.Activity.ID), domain.WithDetail("fork_id", fork.ForkID))
	}

	status := domain.BranchStatus(fmt.Sprint(input[domain.InputBranchStatus]))
	switch status {
	case domain.BranchStatusCompleted, domain.BranchStatusFailed:
	case "", "<nil>":
		status = domain.BranchStatusCompleted
	default:
		return domain.ActivityResult{}, domain.NewResumeError(fmt.Sprintf("invalid branchStatus %q", status), nil,
			domain.WithActivityID(actx.Activity.ID))
	}

	now := actx.Now()
	branch.Status = status
	branch.CompletedAt = &now
	if output, ok := input[domain.InputBranchOutput].(map[string]interface{}); ok {
		branch.Output = output
	}
	if msg, ok := input[domain.InputBranchError].(string); ok {
		branch.Error = msg
	}

	var encoded map[string]interface{}
	if err := json.Convert(fork, &encoded); err != nil {
		return domain.ActivityResult{}, domain.NewExecutionError("failed to encode fork context", err,
			domain.WithActivityID(actx.Activity.ID))
	}
	actx.Variables()[key] = encoded

	actx.Logger().Info("branch reported", "fork_id", fork.ForkID, "branch_id", branchID, "branch_status", status)
	return a.decide(actx, cfg, key, fork)
}

func (a *Join) decide(actx *ports.ActivityContext, cfg joinConfig, key string, fork *domain.ForkExecutionContext) (domain.ActivityResult, error) {
	total, completed, failed := fork.Counts()
	logger := actx.Logger().With("fork_id", fork.ForkID, "join_type", cfg.JoinType)

	if domain.IsJoinReady(cfg.JoinType, total, completed, failed) {
		logger.Info("join ready", "completed", completed, "failed", failed, "total", total)
		return a.complete(cfg, key, fork, false)
	}

	if cfg.TimeoutMinutes > 0 && actx.Now().Sub(fork.CreatedAt) >= time.Duration(cfg.TimeoutMinutes)*time.Minute {
		logger.Warn("join timed out", "timeout_minutes", cfg.TimeoutMinutes, "timeout_action", cfg.TimeoutAction)
		if cfg.TimeoutAction == domain.TimeoutActionProceed {
			return a.complete(cfg, key, fork, true)
		}
		result := domain.FailedResult(fmt.Sprintf("join timed out after %d minutes with %d of %d branches completed", cfg.TimeoutMinutes, completed, total))
		result.ClearVariables = []string{key}
		return result, nil
	}

	return domain.PendingResult(map[string]interface{}{
		"forkId":    fork.ForkID,
		"completed": completed,
		"failed":    failed,
		"total":     total,
	}), nil
}

func (a *Join) complete(cfg joinConfig, key string, fork *domain.ForkExecutionContext, timedOut bool) (domain.ActivityResult, error) {
	merged, err := domain.MergeBranchOutputs(cfg.MergeStrategy, fork.CompletedBranches())
	if err != nil {
		return domain.ActivityResult{}, err
	}
	if timedOut {
		merged["timedOut"] = true
	}

	result := domain.CompletedResult(merged)
	result.ClearVariables = []string{key}
	return result, nil
}

func (a *Join) Validate(_ context.Context, actx *ports.ActivityContext) domain.ValidationResult {
	if _, err := readJoinConfig(properties(actx)); err != nil {
		return domain.InvalidResult("join activity " + actx.Activity.ID + ": " + err.Error())
	}
	return domain.ValidResult()
}

// findFork locates the fork context by generated fork id or, failing that,
// by the id of the fork activity. The newest match wins.
func findFork(vars map[string]interface{}, forkID string) (string, *domain.ForkExecutionContext, error) {
	if raw, ok := vars[domain.ForkVariableKey(forkID)]; ok {
		fork, err := decodeFork(raw)
		if err != nil {
			return "", nil, err
		}
		return domain.ForkVariableKey(forkID), fork, nil
	}

	var (
		foundKey string
		found    *domain.ForkExecutionContext
	)
	for key, raw := range vars {
		if !strings.HasPrefix(key, domain.ForkVariablePrefix) {
			continue
		}
		fork, err := decodeFork(raw)
		if err != nil || fork.ForkActivityID != forkID {
			continue
		}
		if found == nil || fork.CreatedAt.After(found.CreatedAt) {
			foundKey, found = key, fork
		}
	}
	if found == nil {
		return "", nil, fmt.Errorf("fork context %s not found", forkID)
	}
	return foundKey, found, nil
}

func decodeFork(raw interface{}) (*domain.ForkExecutionContext, error) {
	var fork domain.ForkExecutionContext
	if err := json.Convert(raw, &fork); err != nil {
		return nil, fmt.Errorf("decode fork context: %w", err)
	}
	if fork.ForkID == "" {
		return nil, fmt.Errorf("fork context has no id")
	}
	return &fork, nil
}

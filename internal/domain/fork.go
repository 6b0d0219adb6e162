package domain

import (
	"sort"
	"time"
)

type ForkType string

const (
	ForkTypeAll         ForkType = "all"
	ForkTypeAny         ForkType = "any"
	ForkTypeConditional ForkType = "conditional"
)

type JoinType string

const (
	JoinTypeAll      JoinType = "all"
	JoinTypeAny      JoinType = "any"
	JoinTypeFirst    JoinType = "first"
	JoinTypeMajority JoinType = "majority"
)

type MergeStrategy string

const (
	MergeCombine  MergeStrategy = "combine"
	MergeOverride MergeStrategy = "override"
	MergeLast     MergeStrategy = "last"
	MergeFirst    MergeStrategy = "first"
)

type TimeoutAction string

const (
	TimeoutActionProceed TimeoutAction = "proceed"
	TimeoutActionFail    TimeoutAction = "fail"
)

type BranchStatus string

const (
	BranchStatusPending   BranchStatus = "pending"
	BranchStatusCompleted BranchStatus = "completed"
	BranchStatusFailed    BranchStatus = "failed"
)

type BranchDefinition struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Condition  string `json:"condition,omitempty" yaml:"condition,omitempty"`
	ActivityID string `json:"activityId,omitempty" yaml:"activityId,omitempty"`
}

type BranchExecutionResult struct {
	BranchID    string                 `json:"branch_id"`
	Name        string                 `json:"name"`
	ActivityID  string                 `json:"activity_id,omitempty"`
	Status      BranchStatus           `json:"status"`
	Output      map[string]interface{} `json:"output,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// ForkExecutionContext is written into the workflow variables by a Fork and
// consumed by the matching Join.
type ForkExecutionContext struct {
	ForkID         string                  `json:"fork_id"`
	ForkActivityID string                  `json:"fork_activity_id"`
	ForkType       ForkType                `json:"fork_type"`
	MaxConcurrency int                     `json:"max_concurrency"`
	Branches       []BranchExecutionResult `json:"branches"`
	CreatedAt      time.Time               `json:"created_at"`
}

const ForkVariablePrefix = "fork_"

func ForkVariableKey(forkID string) string {
	return ForkVariablePrefix + forkID
}

func (f *ForkExecutionContext) Branch(branchID string) *BranchExecutionResult {
	for i := range f.Branches {
		if f.Branches[i].BranchID == branchID {
			return &f.Branches[i]
		}
	}
	return nil
}

func (f *ForkExecutionContext) Counts() (total, completed, failed int) {
	total = len(f.Branches)
	for _, b := range f.Branches {
		switch b.Status {
		case BranchStatusCompleted:
			completed++
		case BranchStatusFailed:
			failed++
		}
	}
	return total, completed, failed
}

// CompletedBranches returns completed branches ordered by completion time.
func (f *ForkExecutionContext) CompletedBranches() []BranchExecutionResult {
	var done []BranchExecutionResult
	for _, b := range f.Branches {
		if b.Status == BranchStatusCompleted {
			done = append(done, b)
		}
	}
	sort.SliceStable(done, func(i, j int) bool {
		return completedAt(done[i]).Before(completedAt(done[j]))
	})
	return done
}

func completedAt(b BranchExecutionResult) time.Time {
	if b.CompletedAt == nil {
		return time.Time{}
	}
	return *b.CompletedAt
}

// IsJoinReady evaluates readiness of the fork's branches under a join type.
func IsJoinReady(joinType JoinType, total, completed, failed int) bool {
	if total == 0 {
		return true
	}
	switch joinType {
	case JoinTypeAny, JoinTypeFirst:
		return completed >= 1
	case JoinTypeMajority:
		return completed > total/2
	default:
		// failed branches count as resolved
		return completed == total || completed+failed == total
	}
}

package domain

import (
	"dario.cat/mergo"

	json "github.com/eleven-am/flowcore/internal/xjson"
)

// MergeBranchOutputs folds completed branch outputs, which must be ordered by
// completion time, into a single map according to strategy.
func MergeBranchOutputs(strategy MergeStrategy, branches []BranchExecutionResult) (map[string]interface{}, error) {
	merged := make(map[string]interface{})
	if len(branches) == 0 {
		return merged, nil
	}

	switch strategy {
	case MergeFirst:
		return copyOutput(branches[0].Output), nil
	case MergeOverride, MergeLast:
		return copyOutput(branches[len(branches)-1].Output), nil
	default:
		for _, branch := range branches {
			if len(branch.Output) == 0 {
				continue
			}
			if err := mergo.Merge(&merged, copyOutput(branch.Output), mergo.WithOverride); err != nil {
				return nil, NewExecutionError("failed to merge branch output", err,
					WithOperation("merge_branches"), WithDetail("branch_id", branch.BranchID))
			}
		}
		return merged, nil
	}
}

// copyOutput deep-copies src so merging never reaches into maps owned by the
// caller. Values that do not survive a JSON round trip are copied shallowly.
func copyOutput(src map[string]interface{}) map[string]interface{} {
	if clone, err := json.CloneMap(src); err == nil {
		return clone
	}
	out := make(map[string]interface{}, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

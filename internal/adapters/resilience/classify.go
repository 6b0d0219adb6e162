package resilience

import (
	"context"
	"errors"

	"github.com/eleven-am/flowcore/internal/domain"
)

// Classify decides once per attempt whether a failure may be retried. The
// explicit deny list wins over the allow list; anything unlisted is retried
// only when it is timeout-shaped.
func Classify(err error, policy domain.RetryPolicy) domain.Outcome {
	if err == nil {
		return domain.Outcome{Fault: domain.FaultNone}
	}
	if domain.IsCancelled(err) {
		return domain.Outcome{Fault: domain.FaultCancelled, Err: err}
	}
	for _, target := range policy.NonRetryableErrors {
		if errors.Is(err, target) {
			return domain.Outcome{Fault: domain.FaultNonRetryable, Err: err}
		}
	}
	for _, target := range policy.RetryableErrors {
		if errors.Is(err, target) {
			return domain.Outcome{Fault: domain.FaultRetryable, Err: err}
		}
	}
	if domain.IsTimeoutShaped(err) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Outcome{Fault: domain.FaultRetryable, Err: err}
	}
	return domain.Outcome{Fault: domain.FaultNonRetryable, Err: err}
}

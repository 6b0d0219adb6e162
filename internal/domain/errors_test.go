package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDomainErrorBasics(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewValidationError("invalid input provided", cause)

	if err.Category != CategoryValidation {
		t.Errorf("Expected category %v, got %v", CategoryValidation, err.Category)
	}

	if err.Severity != SeverityError {
		t.Errorf("Expected severity %v, got %v", SeverityError, err.Severity)
	}

	if err.Code != "VALIDATION_INVALID" {
		t.Errorf("Expected code VALIDATION_INVALID, got %s", err.Code)
	}

	if !err.UserFacing {
		t.Error("Expected validation error to be user facing")
	}

	if err.Retryable {
		t.Error("Expected validation error to not be retryable")
	}

	if err.Unwrap() != cause {
		t.Error("Expected cause to be unwrapped correctly")
	}
}

func TestErrorWithContext(t *testing.T) {
	err := NewExecutionError("activity crashed", nil).
		WithWorkflowID("wf-456").
		WithActivityID("review").
		WithOperation("execute_activity").
		WithContext("attempt", 2)

	if err.Context.WorkflowID != "wf-456" {
		t.Errorf("Expected workflow ID wf-456, got %s", err.Context.WorkflowID)
	}

	if err.Context.ActivityID != "review" {
		t.Errorf("Expected activity ID review, got %s", err.Context.ActivityID)
	}

	if err.Context.Operation != "execute_activity" {
		t.Errorf("Expected operation execute_activity, got %s", err.Context.Operation)
	}

	if err.Context.Details["attempt"] != 2 {
		t.Error("Expected attempt in context details")
	}
}

func TestErrorCodeInference(t *testing.T) {
	tests := []struct {
		err  *DomainError
		code string
	}{
		{NewValidationError("branch id is required", nil), "VALIDATION_REQUIRED"},
		{NewValidationError("duplicate branch id b1", nil), "VALIDATION_DUPLICATE"},
		{NewExpressionError("expression exceeds maximum length", nil), "EXPRESSION_LIMIT"},
		{NewExpressionError("identifier eval is not allowed", nil), "EXPRESSION_FORBIDDEN"},
		{NewExpressionError("evaluation timed out", nil), "EXPRESSION_TIMEOUT"},
		{NewExpressionError("unexpected token )", nil), "EXPRESSION_SYNTAX"},
		{NewResumeError("no in-progress execution for activity", nil), "RESUME_NO_EXECUTION"},
		{NewStorageError("version conflict", nil), "STORAGE_CONFLICT"},
		{NewMissingPropertyError("condition"), "MISSING_PROPERTY"},
	}

	for _, tt := range tests {
		if tt.err.Code != tt.code {
			t.Errorf("%q: expected code %s, got %s", tt.err.Message, tt.code, tt.err.Code)
		}
	}
}

func TestErrorPredicates(t *testing.T) {
	blocked := NewOperationBlockedError("charge_card", CircuitOpen, 5*time.Second)
	if !IsOperationBlocked(blocked) {
		t.Error("Expected operation blocked")
	}
	if wait, ok := RetryAfter(blocked); !ok || wait != 5*time.Second {
		t.Errorf("Expected retry after 5s, got %v (%v)", wait, ok)
	}
	if !strings.Contains(blocked.Error(), "open") {
		t.Errorf("Expected circuit state in message, got %s", blocked.Error())
	}

	notFound := NewNotFoundError("instance", "abc")
	if !IsNotFound(notFound) || !errors.Is(notFound, ErrNotFound) {
		t.Error("Expected not found to match sentinel")
	}

	wrapped := fmt.Errorf("loading: %w", NewMissingPropertyError("forkId"))
	if !IsMissingPropertyError(wrapped) {
		t.Error("Expected wrapped missing property error to be detected")
	}
	if !errors.Is(wrapped, ErrInvalidInput) {
		t.Error("Expected missing property to match ErrInvalidInput")
	}

	if !IsInvalidTransition(NewInvalidTransitionError(WorkflowStatusCompleted, WorkflowStatusRunning)) {
		t.Error("Expected invalid transition")
	}

	if !IsCancelled(context.Canceled) || !IsCancelled(NewCancelledError("stop", nil)) {
		t.Error("Expected cancellation to be recognised")
	}
}

func TestIsRetryableError(t *testing.T) {
	if !IsRetryableError(NewTimeoutError("call timed out", nil)) {
		t.Error("Expected timeout error to be retryable")
	}
	if IsRetryableError(NewValidationError("bad", nil)) {
		t.Error("Expected validation error to not be retryable")
	}
	if !IsRetryableError(context.DeadlineExceeded) {
		t.Error("Expected deadline exceeded to be retryable")
	}
	if IsRetryableError(errors.New("boom")) {
		t.Error("Expected plain error to not be retryable")
	}
	if IsRetryableError(nil) {
		t.Error("Expected nil to not be retryable")
	}
}

func TestWorkflowFailure(t *testing.T) {
	cause := NewExecutionError("boom", nil)
	failure := &WorkflowFailure{InstanceID: "wf-1", ActivityID: "task", Message: "boom", Cause: cause}

	var err error = fmt.Errorf("start: %w", failure)
	got, ok := AsWorkflowFailure(err)
	if !ok {
		t.Fatal("Expected workflow failure")
	}
	if got.ActivityID != "task" {
		t.Errorf("Expected activity task, got %s", got.ActivityID)
	}
	if !IsExecutionError(err) {
		t.Error("Expected cause to be reachable through the failure")
	}
}

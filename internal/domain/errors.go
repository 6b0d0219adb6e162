package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrConflict      = errors.New("resource conflict")
	ErrTimeout       = errors.New("operation timeout")
	ErrCancelled     = errors.New("operation cancelled")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidConfig = errors.New("invalid configuration")
)

type ErrorCategory int

const (
	CategoryUnknown ErrorCategory = iota
	CategoryValidation
	CategoryExecution
	CategoryResume
	CategoryExpression
	CategoryMissingProperty
	CategoryUnsupportedOperation
	CategoryOperationBlocked
	CategoryBulkheadRejected
	CategoryInvalidTransition
	CategoryNotFound
	CategoryConflict
	CategoryTimeout
	CategoryStorage
	CategoryConfiguration
	CategoryCancelled
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryExecution:
		return "execution"
	case CategoryResume:
		return "resume"
	case CategoryExpression:
		return "expression"
	case CategoryMissingProperty:
		return "missing_property"
	case CategoryUnsupportedOperation:
		return "unsupported_operation"
	case CategoryOperationBlocked:
		return "operation_blocked"
	case CategoryBulkheadRejected:
		return "bulkhead_rejected"
	case CategoryInvalidTransition:
		return "invalid_transition"
	case CategoryNotFound:
		return "not_found"
	case CategoryConflict:
		return "conflict"
	case CategoryTimeout:
		return "timeout"
	case CategoryStorage:
		return "storage"
	case CategoryConfiguration:
		return "configuration"
	case CategoryCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

type ErrorContext struct {
	Component  string                 `json:"component,omitempty"`
	Operation  string                 `json:"operation,omitempty"`
	WorkflowID string                 `json:"workflow_id,omitempty"`
	ActivityID string                 `json:"activity_id,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

type DomainError struct {
	Category   ErrorCategory `json:"category"`
	Severity   ErrorSeverity `json:"severity"`
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Cause      error         `json:"-"`
	Retryable  bool          `json:"retryable"`
	UserFacing bool          `json:"user_facing"`
	Context    ErrorContext  `json:"context"`
	Timestamp  time.Time     `json:"timestamp"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches other DomainErrors by category and the package sentinels by their
// corresponding category.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if errors.As(target, &other) {
		return other.Category == e.Category
	}

	switch target {
	case ErrNotFound:
		return e.Category == CategoryNotFound
	case ErrConflict:
		return e.Category == CategoryConflict
	case ErrTimeout:
		return e.Category == CategoryTimeout
	case ErrCancelled:
		return e.Category == CategoryCancelled
	case ErrInvalidInput:
		return e.Category == CategoryValidation || e.Category == CategoryMissingProperty
	}
	return false
}

func (e *DomainError) WithComponent(component string) *DomainError {
	e.Context.Component = component
	return e
}

func (e *DomainError) WithOperation(operation string) *DomainError {
	e.Context.Operation = operation
	return e
}

func (e *DomainError) WithWorkflowID(workflowID string) *DomainError {
	e.Context.WorkflowID = workflowID
	return e
}

func (e *DomainError) WithActivityID(activityID string) *DomainError {
	e.Context.ActivityID = activityID
	return e
}

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context.Details == nil {
		e.Context.Details = make(map[string]interface{})
	}
	e.Context.Details[key] = value
	return e
}

type ErrorOption func(*DomainError)

func WithComponent(component string) ErrorOption {
	return func(e *DomainError) { e.Context.Component = component }
}

func WithOperation(operation string) ErrorOption {
	return func(e *DomainError) { e.Context.Operation = operation }
}

func WithWorkflowID(workflowID string) ErrorOption {
	return func(e *DomainError) { e.Context.WorkflowID = workflowID }
}

func WithActivityID(activityID string) ErrorOption {
	return func(e *DomainError) { e.Context.ActivityID = activityID }
}

func WithCode(code string) ErrorOption {
	return func(e *DomainError) { e.Code = code }
}

func WithRetryable(retryable bool) ErrorOption {
	return func(e *DomainError) { e.Retryable = retryable }
}

func WithDetail(key string, value interface{}) ErrorOption {
	return func(e *DomainError) {
		if e.Context.Details == nil {
			e.Context.Details = make(map[string]interface{})
		}
		e.Context.Details[key] = value
	}
}

func NewDomainErrorWithCategory(category ErrorCategory, message string, cause error, opts ...ErrorOption) *DomainError {
	err := &DomainError{
		Category:   category,
		Severity:   defaultSeverity(category),
		Code:       inferErrorCode(category, message),
		Message:    message,
		Cause:      cause,
		Retryable:  defaultRetryable(category),
		UserFacing: defaultUserFacing(category),
		Timestamp:  time.Now(),
	}

	for _, opt := range opts {
		opt(err)
	}
	return err
}

func NewValidationError(message string, cause error, opts ...ErrorOption) *DomainError {
	return NewDomainErrorWithCategory(CategoryValidation, message, cause, opts...)
}

func NewExecutionError(message string, cause error, opts ...ErrorOption) *DomainError {
	return NewDomainErrorWithCategory(CategoryExecution, message, cause, opts...)
}

func NewResumeError(message string, cause error, opts ...ErrorOption) *DomainError {
	return NewDomainErrorWithCategory(CategoryResume, message, cause, opts...)
}

func NewExpressionError(message string, cause error, opts ...ErrorOption) *DomainError {
	return NewDomainErrorWithCategory(CategoryExpression, message, cause, opts...)
}

func NewMissingPropertyError(property string, opts ...ErrorOption) *DomainError {
	opts = append([]ErrorOption{WithDetail("property", property)}, opts...)
	return NewDomainErrorWithCategory(CategoryMissingProperty, fmt.Sprintf("required property %q is missing", property), nil, opts...)
}

func NewUnsupportedOperationError(message string, opts ...ErrorOption) *DomainError {
	return NewDomainErrorWithCategory(CategoryUnsupportedOperation, message, nil, opts...)
}

func NewOperationBlockedError(operation string, state CircuitState, retryAfter time.Duration, opts ...ErrorOption) *DomainError {
	opts = append([]ErrorOption{
		WithOperation(operation),
		WithDetail("circuit_state", state.String()),
		WithDetail("retry_after", retryAfter),
	}, opts...)
	return NewDomainErrorWithCategory(CategoryOperationBlocked, fmt.Sprintf("operation %s blocked: circuit %s", operation, state), nil, opts...)
}

func NewBulkheadRejectedError(operation string, reason string, opts ...ErrorOption) *DomainError {
	opts = append([]ErrorOption{WithOperation(operation)}, opts...)
	return NewDomainErrorWithCategory(CategoryBulkheadRejected, fmt.Sprintf("bulkhead rejected %s: %s", operation, reason), nil, opts...)
}

func NewInvalidTransitionError(from, to WorkflowStatus, opts ...ErrorOption) *DomainError {
	opts = append([]ErrorOption{WithDetail("from", string(from)), WithDetail("to", string(to))}, opts...)
	return NewDomainErrorWithCategory(CategoryInvalidTransition, fmt.Sprintf("invalid transition from %s to %s", from, to), nil, opts...)
}

func NewNotFoundError(resource, id string, opts ...ErrorOption) *DomainError {
	opts = append([]ErrorOption{WithDetail("resource", resource), WithDetail("id", id)}, opts...)
	return NewDomainErrorWithCategory(CategoryNotFound, fmt.Sprintf("%s %s not found", resource, id), ErrNotFound, opts...)
}

func NewConflictError(message string, cause error, opts ...ErrorOption) *DomainError {
	return NewDomainErrorWithCategory(CategoryConflict, message, cause, opts...)
}

func NewTimeoutError(message string, cause error, opts ...ErrorOption) *DomainError {
	return NewDomainErrorWithCategory(CategoryTimeout, message, cause, opts...)
}

func NewStorageError(message string, cause error, opts ...ErrorOption) *DomainError {
	return NewDomainErrorWithCategory(CategoryStorage, message, cause, opts...)
}

func NewConfigurationError(message string, cause error, opts ...ErrorOption) *DomainError {
	return NewDomainErrorWithCategory(CategoryConfiguration, message, cause, opts...)
}

func NewCancelledError(message string, cause error, opts ...ErrorOption) *DomainError {
	return NewDomainErrorWithCategory(CategoryCancelled, message, cause, opts...)
}

func defaultSeverity(category ErrorCategory) ErrorSeverity {
	switch category {
	case CategoryOperationBlocked, CategoryBulkheadRejected, CategoryCancelled, CategoryNotFound:
		return SeverityWarning
	case CategoryStorage, CategoryExecution:
		return SeverityCritical
	default:
		return SeverityError
	}
}

func defaultRetryable(category ErrorCategory) bool {
	switch category {
	case CategoryTimeout, CategoryConflict, CategoryStorage:
		return true
	default:
		return false
	}
}

func defaultUserFacing(category ErrorCategory) bool {
	switch category {
	case CategoryValidation, CategoryMissingProperty, CategoryExpression, CategoryResume,
		CategoryUnsupportedOperation, CategoryInvalidTransition, CategoryConfiguration, CategoryNotFound:
		return true
	default:
		return false
	}
}

func inferErrorCode(category ErrorCategory, message string) string {
	lower := strings.ToLower(message)
	prefix := strings.ToUpper(category.String())

	switch category {
	case CategoryValidation:
		if strings.Contains(lower, "required") || strings.Contains(lower, "empty") {
			return prefix + "_REQUIRED"
		}
		if strings.Contains(lower, "duplicate") || strings.Contains(lower, "unique") {
			return prefix + "_DUPLICATE"
		}
		return prefix + "_INVALID"
	case CategoryExpression:
		switch {
		case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
			return prefix + "_TIMEOUT"
		case strings.Contains(lower, "forbidden") || strings.Contains(lower, "not allowed"):
			return prefix + "_FORBIDDEN"
		case strings.Contains(lower, "exceeds"):
			return prefix + "_LIMIT"
		case strings.Contains(lower, "syntax") || strings.Contains(lower, "unexpected"):
			return prefix + "_SYNTAX"
		}
		return prefix + "_EVALUATION"
	case CategoryResume:
		if strings.Contains(lower, "no in-progress") || strings.Contains(lower, "no matching") {
			return prefix + "_NO_EXECUTION"
		}
		if strings.Contains(lower, "busy") || strings.Contains(lower, "concurrent") {
			return prefix + "_CONCURRENT"
		}
		return prefix + "_INVALID"
	case CategoryStorage:
		if strings.Contains(lower, "not found") {
			return prefix + "_NOT_FOUND"
		}
		if strings.Contains(lower, "conflict") || strings.Contains(lower, "version") {
			return prefix + "_CONFLICT"
		}
		return prefix + "_FAILURE"
	}
	return prefix
}

func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

func AsDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

func GetErrorCategory(err error) ErrorCategory {
	if domainErr, ok := AsDomainError(err); ok {
		return domainErr.Category
	}
	return CategoryUnknown
}

func GetErrorSeverity(err error) ErrorSeverity {
	if domainErr, ok := AsDomainError(err); ok {
		return domainErr.Severity
	}
	return SeverityError
}

func GetErrorContext(err error) *ErrorContext {
	if domainErr, ok := AsDomainError(err); ok {
		return &domainErr.Context
	}
	return nil
}

func IsUserFacingError(err error) bool {
	if domainErr, ok := AsDomainError(err); ok {
		return domainErr.UserFacing
	}
	return false
}

// IsRetryableError reports the retryable flag of a DomainError. Plain errors are
// considered retryable only when they are timeout-shaped.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if domainErr, ok := AsDomainError(err); ok {
		return domainErr.Retryable
	}
	return IsTimeoutShaped(err)
}

// IsTimeoutShaped reports deadline and timeout failures, including errors that
// expose a Timeout() bool method such as net.Error.
func IsTimeoutShaped(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded")
}

func IsCategory(err error, category ErrorCategory) bool {
	return GetErrorCategory(err) == category
}

func IsValidationError(err error) bool      { return IsCategory(err, CategoryValidation) }
func IsExecutionError(err error) bool       { return IsCategory(err, CategoryExecution) }
func IsResumeError(err error) bool          { return IsCategory(err, CategoryResume) }
func IsExpressionError(err error) bool      { return IsCategory(err, CategoryExpression) }
func IsMissingPropertyError(err error) bool { return IsCategory(err, CategoryMissingProperty) }
func IsOperationBlocked(err error) bool     { return IsCategory(err, CategoryOperationBlocked) }
func IsBulkheadRejected(err error) bool     { return IsCategory(err, CategoryBulkheadRejected) }
func IsInvalidTransition(err error) bool    { return IsCategory(err, CategoryInvalidTransition) }
func IsConfigurationError(err error) bool   { return IsCategory(err, CategoryConfiguration) }

func IsUnsupportedOperation(err error) bool {
	return IsCategory(err, CategoryUnsupportedOperation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// RetryAfter extracts the estimated wait carried by an OperationBlocked error.
func RetryAfter(err error) (time.Duration, bool) {
	domainErr, ok := AsDomainError(err)
	if !ok || domainErr.Category != CategoryOperationBlocked {
		return 0, false
	}
	wait, ok := domainErr.Context.Details["retry_after"].(time.Duration)
	return wait, ok
}

// WorkflowFailure is the failure envelope returned by start and resume when an
// instance ends up Failed.
type WorkflowFailure struct {
	InstanceID  string
	ActivityID  string
	Message     string
	Recoverable bool
	Cause       error
}

func (e *WorkflowFailure) Error() string {
	if e.ActivityID != "" {
		return fmt.Sprintf("workflow %s failed at activity %s: %s", e.InstanceID, e.ActivityID, e.Message)
	}
	return fmt.Sprintf("workflow %s failed: %s", e.InstanceID, e.Message)
}

func (e *WorkflowFailure) Unwrap() error {
	return e.Cause
}

func AsWorkflowFailure(err error) (*WorkflowFailure, bool) {
	var failure *WorkflowFailure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

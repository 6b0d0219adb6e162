package ports

import (
	"context"

	"github.com/eleven-am/flowcore/internal/domain"
)

type StartRequest struct {
	SchemaID         string
	Name             string
	StartedBy        string
	CorrelationID    string
	InitialVariables map[string]interface{}
}

type ResumeRequest struct {
	InstanceID  string
	ActivityID  string
	OutputData  map[string]interface{}
	CompletedBy string
}

type WorkflowEngine interface {
	StartWorkflow(ctx context.Context, req StartRequest) (*domain.WorkflowInstance, error)
	ResumeWorkflow(ctx context.Context, req ResumeRequest) (*domain.WorkflowInstance, error)
	CancelWorkflow(ctx context.Context, instanceID, reason string) (*domain.WorkflowInstance, error)
	SuspendWorkflow(ctx context.Context, instanceID, reason string) (*domain.WorkflowInstance, error)
	ReactivateWorkflow(ctx context.Context, instanceID string) (*domain.WorkflowInstance, error)
	GetWorkflow(ctx context.Context, instanceID string) (*domain.WorkflowInstance, error)
	SetAssignmentOverride(ctx context.Context, instanceID, activityID string, override domain.AssignmentOverride) (*domain.WorkflowInstance, error)
	ValidateDefinition(ctx context.Context, schema *domain.WorkflowSchema) domain.ValidationResult
}

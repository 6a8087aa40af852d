// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowAlreadyExists indicates a workflow with the same identifier already exists.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")

	// ErrInstanceNotFound indicates a workflow instance was not found.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrInstanceAlreadyExists indicates an instance already exists for the (workflow, lead) pair.
	ErrInstanceAlreadyExists = errors.New("workflow instance already exists for lead")

	// ErrInstanceClaimed indicates a conditional update lost to a concurrent
	// status change or to another caller's live lease.
	ErrInstanceClaimed = errors.New("workflow instance claimed concurrently")

	// ErrLeadNotFound indicates a lead was not found.
	ErrLeadNotFound = errors.New("lead not found")

	// ErrInvalidID indicates an identifier that cannot be used as a storage key.
	ErrInvalidID = errors.New("invalid identifier")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// InstanceError wraps instance-related errors with additional context.
type InstanceError struct {
	Op         string
	InstanceID string
	WorkflowID string
	LeadID     string
	Err        error
}

func (e *InstanceError) Error() string {
	if e.InstanceID != "" {
		return fmt.Sprintf("%s operation failed for instance %s: %v", e.Op, e.InstanceID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s and lead %s: %v", e.Op, e.WorkflowID, e.LeadID, e.Err)
}

func (e *InstanceError) Unwrap() error {
	return e.Err
}

func (e *InstanceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewInstanceError creates a new instance error for a known instance id.
func NewInstanceError(op, instanceID string, err error) *InstanceError {
	return &InstanceError{
		Op:         op,
		InstanceID: instanceID,
		Err:        err,
	}
}

// NewInstancePairError creates a new instance error for a (workflow, lead) pair.
func NewInstancePairError(op, workflowID, leadID string, err error) *InstanceError {
	return &InstanceError{
		Op:         op,
		WorkflowID: workflowID,
		LeadID:     leadID,
		Err:        err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsInstanceNotFound checks if an error indicates an instance was not found.
func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}

// IsInstanceAlreadyExists checks if an error indicates a duplicate (workflow, lead) instance.
func IsInstanceAlreadyExists(err error) bool {
	return errors.Is(err, ErrInstanceAlreadyExists)
}

// IsInstanceClaimed checks if a conditional instance update was rejected.
func IsInstanceClaimed(err error) bool {
	return errors.Is(err, ErrInstanceClaimed)
}

// IsLeadNotFound checks if an error indicates a lead was not found.
func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

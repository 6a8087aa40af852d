// Package services implements the workflow store operations, the trigger
// listener and the resumption of waiting and paused instances.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrUnknownTrigger       = errors.New("unknown trigger")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")

	// Graph validation errors (400 Bad Request).
	ErrNodesRequired       = errors.New("workflow must have at least one node")
	ErrTriggerNodeRequired = errors.New("workflow must have exactly one trigger node")
	ErrDuplicateID         = errors.New("duplicate node or edge id")
	ErrInvalidNodeType     = errors.New("invalid node type")
	ErrInvalidNodeConfig   = errors.New("invalid node configuration")
	ErrInvalidEdge         = errors.New("invalid edge")
	ErrGraphCyclic         = errors.New("workflow graph contains a cycle")
	ErrUnreachableNode     = errors.New("node is not reachable from the trigger")
	ErrDeadEndNode         = errors.New("node has no outgoing edge")

	// Business Logic Conflicts (409 Conflict).
	ErrWorkflowDeleted = errors.New("workflow has been deleted")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrUnknownTrigger) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrTriggerNodeRequired) ||
		errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrInvalidNodeType) ||
		errors.Is(err, ErrInvalidNodeConfig) ||
		errors.Is(err, ErrInvalidEdge) ||
		errors.Is(err, ErrGraphCyclic) ||
		errors.Is(err, ErrUnreachableNode) ||
		errors.Is(err, ErrDeadEndNode)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowDeleted)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowNotFound indicates a flow was not found by the given identifier.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrExecutionNotFound indicates an execution was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrScheduledExecutionNotFound indicates a wake-up ticket was not found.
	ErrScheduledExecutionNotFound = errors.New("scheduled execution not found")

	// ErrAccountNotFound indicates an account was not found.
	ErrAccountNotFound = errors.New("account not found")

	// ErrLeadNotFound indicates no lead exists for the (account, sender) key.
	ErrLeadNotFound = errors.New("lead not found")

	// ErrExecutionConflict indicates a revision mismatch on save: another
	// writer updated the execution after it was read.
	ErrExecutionConflict = errors.New("execution revision conflict")
)

// FlowError wraps flow-related errors with operation context.
type FlowError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	FlowID string
	Err    error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s operation failed for flow %s: %v", e.Op, e.FlowID, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFlowError creates a new flow error with context.
func NewFlowError(op, flowID string, err error) *FlowError {
	return &FlowError{Op: op, FlowID: flowID, Err: err}
}

// ExecutionError wraps execution-related errors with operation context.
type ExecutionError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, Err: err}
}

// IsFlowNotFound checks if an error indicates a flow was not found.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsExecutionConflict checks if an error indicates a revision conflict.
func IsExecutionConflict(err error) bool {
	return errors.Is(err, ErrExecutionConflict)
}

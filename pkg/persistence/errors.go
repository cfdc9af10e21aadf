package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types shared by every backend.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrAssignmentRuleNotFound indicates an assignment rule was not found.
	ErrAssignmentRuleNotFound = errors.New("assignment rule not found")

	// ErrEmptyRotationPool indicates a rotation cursor advance was requested
	// for an empty candidate pool.
	ErrEmptyRotationPool = errors.New("rotation pool is empty")
)

// StoreError wraps a backend error with the operation and record it concerns.
type StoreError struct {
	Op       string // operation being performed, e.g. "Save", "ByID"
	Record   string // record type, e.g. "workflow", "execution"
	RecordID string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Record, e.RecordID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a wrapped store error with context.
func NewStoreError(op, record, recordID string, err error) *StoreError {
	return &StoreError{Op: op, Record: record, RecordID: recordID, Err: err}
}

// IsNotFound checks whether an error indicates any record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrAssignmentRuleNotFound)
}

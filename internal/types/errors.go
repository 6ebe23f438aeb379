package types

import "fmt"

// ValidationError indicates a malformed request that must be rejected before any work starts
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error in %s: %s", e.Field, msg)
	}
	return fmt.Sprintf("validation error: %s", msg)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// NotFoundError indicates a referenced record does not exist or is not owned by the caller
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Resource, e.ID)
}

// PersistenceError indicates the record store rejected a read or write
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

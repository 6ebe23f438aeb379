package generation

import (
	"fmt"

	"github.com/jonathan/resume-topics/internal/types"
)

// ConflictError indicates an identical job is already in flight
type ConflictError struct {
	Kind Kind
	ID   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s job already in progress for %d", e.Kind, e.ID)
}

// FlowError indicates a flow finished with a failed terminal status instead of an error
type FlowError struct {
	Flow    string
	Status  types.OperationStatus
	Message string
}

func (e *FlowError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("flow %s finished with status %s", e.Flow, e.Status)
	}
	return fmt.Sprintf("flow %s finished with status %s: %s", e.Flow, e.Status, e.Message)
}

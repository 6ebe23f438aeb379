package llm

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind distinguishes why a model invocation failed
type ErrorKind string

const (
	// KindProvider means the transport or provider failed
	KindProvider ErrorKind = "provider"
	// KindShape means the result did not match the expected output shape
	KindShape ErrorKind = "shape"
)

// InvocationError represents a failed or non-conforming model invocation
type InvocationError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *InvocationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invocation error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("invocation error (%s): %s", e.Kind, e.Message)
}

func (e *InvocationError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents an invocation that exceeded its deadline
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s exceeded %s", e.Operation, e.Timeout)
}

// IsTimeout reports whether err is or wraps a TimeoutError
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsShapeError reports whether err is an InvocationError caused by a non-conforming result
func IsShapeError(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie) && ie.Kind == KindShape
}

// ShapeError builds an InvocationError for a result that failed post-hoc validation
func ShapeError(message string, cause error) *InvocationError {
	return &InvocationError{Kind: KindShape, Message: message, Cause: cause}
}

// ProviderError is returned by a Client when the backend call fails or yields nothing usable
type ProviderError struct {
	Provider Provider
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s model %s: %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

package tools

import (
	"errors"
	"fmt"
)

// ErrToolNotFound is matched by every NotFoundError.
var ErrToolNotFound = errors.New("tool not found")

// NotFoundError reports an invocation of a name absent from the registry.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Tool %s not found", e.Name)
}

// Is makes errors.Is(err, ErrToolNotFound) hold.
func (e *NotFoundError) Is(target error) bool { return target == ErrToolNotFound }

// ExecutionError wraps a failure raised by a tool's own execution. Its message
// is the tool's message unchanged.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ValidationError reports params rejected by the tool's declared schema.
type ValidationError struct {
	Tool string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid params for tool %s: %v", e.Tool, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

package schema

import "context"

// Sandbox is the execution context handed to tools. What code it accepts and
// which globals it exposes are decided by the implementation.
type Sandbox interface {
	// Eval runs code with globals bound and returns the value it produces.
	Eval(ctx context.Context, code string, globals map[string]any) (any, error)
}

// Package schema contains the core contracts shared across toolrelay packages.
// Concrete implementations live in their respective packages.
package schema

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is the interface every capability served by toolrelay must satisfy.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema describing the params object accepted by Execute.
	Parameters() *jsonschema.Schema
	// Execute runs the tool. params is the raw params object sent by the client; the
	// returned value is marshalled into the response result unchanged.
	Execute(ctx context.Context, params json.RawMessage, sb Sandbox) (any, error)
}

// ToolDefinition is the public description of a tool. It never carries the
// execution function.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// DefinitionOf returns the public definition of t.
func DefinitionOf(t Tool) ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

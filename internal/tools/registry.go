package tools

import (
	"sort"

	"github.com/toolrelay/toolrelay/internal/schema"
)

// ToolName is the canonical name of a built-in tool.
type ToolName string

const (
	ToolWorkflow ToolName = "n8n_workflow"
	ToolLuaEval  ToolName = "lua_eval"
)

// Registry holds a set of named tools. It is produced by RegistryBuilder.Build
// and never changes afterwards, so it can be shared across connections
// without locking.
type Registry struct {
	tools map[string]schema.Tool
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (schema.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns the public definition of every tool keyed by registration name.
func (r *Registry) List() map[string]schema.ToolDefinition {
	defs := make(map[string]schema.ToolDefinition, len(r.tools))
	for name, t := range r.tools {
		defs[name] = schema.DefinitionOf(t)
	}
	return defs
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.tools) }

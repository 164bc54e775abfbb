package tools

import (
	"log/slog"

	"github.com/toolrelay/toolrelay/internal/schema"
)

// RegistryBuilder accumulates tools during the construction phase.
// Call Build() to produce an immutable Registry ready for use.
type RegistryBuilder struct {
	log   *slog.Logger
	tools map[string]schema.Tool
}

// NewRegistryBuilder returns a fresh RegistryBuilder. log may be nil.
func NewRegistryBuilder(log *slog.Logger) *RegistryBuilder {
	if log == nil {
		log = slog.Default()
	}
	return &RegistryBuilder{log: log, tools: make(map[string]schema.Tool)}
}

// Register adds tool under name, replacing any tool already registered under
// that name.
func (b *RegistryBuilder) Register(name string, tool schema.Tool) *RegistryBuilder {
	if _, exists := b.tools[name]; exists {
		b.log.Debug("tools: replacing registered tool", "name", name)
	}
	b.tools[name] = tool

	return b
}

// WithTool registers tool under its own name.
func (b *RegistryBuilder) WithTool(tool schema.Tool) *RegistryBuilder {
	return b.Register(tool.Name(), tool)
}

// Build produces an immutable Registry from the accumulated tools.
func (b *RegistryBuilder) Build() *Registry {
	tools := make(map[string]schema.Tool, len(b.tools))
	for k, v := range b.tools {
		tools[k] = v
	}
	return &Registry{tools: tools}
}

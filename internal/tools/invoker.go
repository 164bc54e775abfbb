package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/toolrelay/toolrelay/internal/schema"
)

// ExecutionObserver receives the outcome of every tool invocation.
type ExecutionObserver interface {
	ObserveExecution(tool, status string, elapsed time.Duration)
}

// Invocation outcomes reported to ExecutionObserver.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusNotFound = "not_found"
	StatusInvalid  = "invalid"
)

// InvokerOptions configures an Invoker.
type InvokerOptions struct {
	// ValidateParams checks params against each tool's declared schema before
	// the tool runs.
	ValidateParams bool
	Observer       ExecutionObserver
}

// Invoker resolves tools by name and runs them.
type Invoker struct {
	log      *slog.Logger
	registry *Registry
	sandbox  schema.Sandbox
	observer ExecutionObserver
	resolved map[string]*jsonschema.Resolved
}

// NewInvoker builds an Invoker over registry. sandbox is handed to every tool
// as its execution context.
func NewInvoker(log *slog.Logger, registry *Registry, sandbox schema.Sandbox, opts InvokerOptions) (*Invoker, error) {
	inv := &Invoker{
		log:      log.With("component", "invoker"),
		registry: registry,
		sandbox:  sandbox,
		observer: opts.Observer,
	}
	if opts.ValidateParams {
		inv.resolved = make(map[string]*jsonschema.Resolved, registry.Len())
		for name, t := range registry.tools {
			s := t.Parameters()
			if s == nil {
				continue
			}
			r, err := s.Resolve(nil)
			if err != nil {
				return nil, fmt.Errorf("resolve schema for tool %s: %w", name, err)
			}
			inv.resolved[name] = r
		}
	}
	return inv, nil
}

// Invoke runs the tool registered under name with params. It fails with a
// *NotFoundError when name is unknown and wraps any failure of the tool itself
// in an *ExecutionError. There is no retry and no timeout beyond ctx.
func (inv *Invoker) Invoke(ctx context.Context, name string, params json.RawMessage) (result any, err error) {
	start := time.Now()
	tool, ok := inv.registry.Get(name)
	if !ok {
		inv.observe(name, StatusNotFound, start)
		return nil, &NotFoundError{Name: name}
	}

	if err := inv.validate(name, params); err != nil {
		inv.observe(name, StatusInvalid, start)
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = &ExecutionError{Tool: name, Err: fmt.Errorf("tool panicked: %v", r)}
		}
		if err != nil {
			inv.log.Warn("invoker: tool execution failed", "tool", name, "err", err)
			inv.observe(name, StatusError, start)
			return
		}
		inv.log.Debug("invoker: tool executed", "tool", name, "elapsed", time.Since(start))
		inv.observe(name, StatusOK, start)
	}()

	result, err = tool.Execute(ctx, params, inv.sandbox)
	if err != nil {
		return nil, &ExecutionError{Tool: name, Err: err}
	}
	return result, nil
}

func (inv *Invoker) validate(name string, params json.RawMessage) error {
	r, ok := inv.resolved[name]
	if !ok {
		return nil
	}
	var instance any = map[string]any{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &instance); err != nil {
			return &ValidationError{Tool: name, Err: err}
		}
	}
	if err := r.Validate(instance); err != nil {
		return &ValidationError{Tool: name, Err: err}
	}
	return nil
}

func (inv *Invoker) observe(name, status string, start time.Time) {
	if inv.observer != nil {
		inv.observer.ObserveExecution(name, status, time.Since(start))
	}
}

// Registry returns the registry the invoker resolves names against.
func (inv *Invoker) Registry() *Registry { return inv.registry }

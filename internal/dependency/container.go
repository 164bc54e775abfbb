// Package dependency wires core toolrelay services using go.uber.org/dig.
package dependency

import (
	"io"
	"log/slog"
	"os"

	"go.uber.org/dig"

	"github.com/toolrelay/toolrelay/internal/config"
	"github.com/toolrelay/toolrelay/internal/mcp"
	"github.com/toolrelay/toolrelay/internal/metrics"
	"github.com/toolrelay/toolrelay/internal/sandbox"
	"github.com/toolrelay/toolrelay/internal/schema"
	"github.com/toolrelay/toolrelay/internal/server"
	"github.com/toolrelay/toolrelay/internal/tools"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg      *config.Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	registry *tools.Registry
	invoker  *tools.Invoker
	server   *server.Server
	bridge   *mcp.Bridge
}

func (c *Container) Config() *config.Config    { return c.cfg }
func (c *Container) Logger() *slog.Logger      { return c.log }
func (c *Container) Metrics() *metrics.Metrics { return c.metrics }
func (c *Container) Registry() *tools.Registry { return c.registry }
func (c *Container) Invoker() *tools.Invoker   { return c.invoker }
func (c *Container) Server() *server.Server    { return c.server }
func (c *Container) MCPBridge() *mcp.Bridge    { return c.bridge }

// LogOutput is the writer the process logger writes to. It is a named type so
// dig can tell it apart from other writers.
type LogOutput struct{ io.Writer }

// Options adjusts wiring without touching the config.
type Options struct {
	// LogOutput defaults to stderr.
	LogOutput io.Writer
}

// New builds and wires all core services from cfg.
func New(cfg *config.Config, opts Options) (*Container, error) {
	d := dig.New()

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(func() LogOutput { return LogOutput{out} }); err != nil {
		return nil, err
	}
	if err := d.Provide(newLogger); err != nil {
		return nil, err
	}
	if err := d.Provide(newMetrics); err != nil {
		return nil, err
	}
	if err := d.Provide(newSandbox); err != nil {
		return nil, err
	}
	if err := d.Provide(newRegistry); err != nil {
		return nil, err
	}
	if err := d.Provide(newInvoker); err != nil {
		return nil, err
	}
	if err := d.Provide(newServer); err != nil {
		return nil, err
	}
	if err := d.Provide(newBridge); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		log *slog.Logger,
		m *metrics.Metrics,
		reg *tools.Registry,
		inv *tools.Invoker,
		srv *server.Server,
		bridge *mcp.Bridge,
	) {
		result = &Container{
			cfg:      cfg,
			log:      log,
			metrics:  m,
			registry: reg,
			invoker:  inv,
			server:   srv,
			bridge:   bridge,
		}
	})
	return result, err
}

func newLogger(cfg *config.Config, out LogOutput) (*slog.Logger, error) {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts)), nil
	}
	return slog.New(slog.NewTextHandler(out, opts)), nil
}

func newMetrics() *metrics.Metrics {
	return metrics.New()
}

func newSandbox(cfg *config.Config, log *slog.Logger) schema.Sandbox {
	return sandbox.New(log, cfg.Tools.Sandbox.Timeout())
}

// newRegistry registers every built-in tool not listed in tools.disabled.
func newRegistry(cfg *config.Config, log *slog.Logger) *tools.Registry {
	builtins := []schema.Tool{
		tools.NewWorkflowTool(log),
		tools.NewLuaEvalTool(),
	}

	b := tools.NewRegistryBuilder(log)
	for _, t := range builtins {
		if cfg.Tools.IsDisabled(t.Name()) {
			log.Info("dependency: tool disabled by config", "tool", t.Name())
			continue
		}
		b.WithTool(t)
	}
	return b.Build()
}

func newInvoker(cfg *config.Config, log *slog.Logger, reg *tools.Registry, sb schema.Sandbox, m *metrics.Metrics) (*tools.Invoker, error) {
	return tools.NewInvoker(log, reg, sb, tools.InvokerOptions{
		ValidateParams: cfg.Tools.ValidateParams,
		Observer:       m,
	})
}

func newServer(cfg *config.Config, log *slog.Logger, inv *tools.Invoker, m *metrics.Metrics) *server.Server {
	return server.New(log, cfg.Server, inv, m)
}

func newBridge(cfg *config.Config, log *slog.Logger, inv *tools.Invoker) *mcp.Bridge {
	return mcp.NewBridge(log, cfg.Server.Name, cfg.Server.Version, inv)
}

// Package mcp serves the tool registry to Model Context Protocol clients over
// stdio. It is an alternate front end to the WebSocket server; both call the
// same Invoker.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/toolrelay/toolrelay/internal/tools"
)

// Bridge exposes every registered tool as an MCP tool.
type Bridge struct {
	log     *slog.Logger
	invoker *tools.Invoker
	server  *mcpsdk.Server
}

// NewBridge registers the invoker's tools on a fresh MCP server.
func NewBridge(log *slog.Logger, name, version string, invoker *tools.Invoker) *Bridge {
	b := &Bridge{
		log:     log.With("component", "mcp"),
		invoker: invoker,
		server:  mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: version}, nil),
	}

	reg := invoker.Registry()
	for _, name := range reg.Names() {
		tool, _ := reg.Get(name)
		params := tool.Parameters()
		if params == nil {
			params = &jsonschema.Schema{Type: "object"}
		}
		b.server.AddTool(&mcpsdk.Tool{
			Name:        name,
			Description: tool.Description(),
			InputSchema: params,
		}, b.handler(name))
	}
	return b
}

// handler adapts one registry entry to the go-sdk raw tool handler. Tool
// failures become IsError results so the client sees the message; only a
// result that cannot be encoded fails the call.
func (b *Bridge) handler(name string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}

		result, err := b.invoker.Invoke(ctx, name, args)
		if err != nil {
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}

		text, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", name, err)
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(text)}},
		}, nil
	}
}

// Run serves on stdin/stdout until the client disconnects or ctx ends.
func (b *Bridge) Run(ctx context.Context) error {
	return b.RunTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunTransport serves on t. Context cancellation is a clean shutdown.
func (b *Bridge) RunTransport(ctx context.Context, t mcpsdk.Transport) error {
	b.log.Info("mcp: serving", "tools", b.invoker.Registry().Len())
	err := b.server.Run(ctx, t)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

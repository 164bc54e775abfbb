package mcp

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/toolrelay/toolrelay/internal/sandbox"
	"github.com/toolrelay/toolrelay/internal/tools"
)

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := tools.NewRegistryBuilder(log).
		WithTool(tools.NewLuaEvalTool()).
		WithTool(tools.NewWorkflowTool(log)).
		Build()
	inv, err := tools.NewInvoker(log, reg, sandbox.New(log, time.Second), tools.InvokerOptions{})
	require.NoError(t, err)
	return NewBridge(log, "toolrelay", "test", inv)
}

func connect(t *testing.T, b *Bridge) *mcpsdk.ClientSession {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()

	serveErr := make(chan error, 1)
	go func() { serveErr <- b.RunTransport(ctx, serverTransport) }()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		cancel()
		_ = session.Close()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
			t.Error("bridge did not stop after cancel")
		}
	})
	return session
}

func TestBridge_ListsRegistryTools(t *testing.T) {
	session := connect(t, newTestBridge(t))

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{"lua_eval", "n8n_workflow"}, names)
}

func TestBridge_CallTool(t *testing.T) {
	session := connect(t, newTestBridge(t))

	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "lua_eval",
		Arguments: map[string]any{"code": "return input * 2", "input": 21},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)

	text, ok := res.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	require.JSONEq(t, `{"result":42}`, text.Text)
}

func TestBridge_ToolFailureIsErrorResult(t *testing.T) {
	session := connect(t, newTestBridge(t))

	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "lua_eval",
		Arguments: map[string]any{"code": "error('nope')"},
	})
	require.NoError(t, err)
	require.True(t, res.IsError)

	text, ok := res.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	require.Contains(t, text.Text, "nope")
}

func TestBridge_HandlerWithoutParams(t *testing.T) {
	b := newTestBridge(t)

	res, err := b.handler("lua_eval")(context.Background(), &mcpsdk.CallToolRequest{})
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Equal(t, "code is required", res.Content[0].(*mcpsdk.TextContent).Text)
}

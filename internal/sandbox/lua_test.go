package sandbox

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSandbox(t *testing.T, timeout time.Duration) *Lua {
	t.Helper()
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), timeout)
}

func TestEval_Scalars(t *testing.T) {
	sb := newTestSandbox(t, time.Second)
	tests := []struct {
		name string
		code string
		want any
	}{
		{"number", "return 1 + 2", 3.0},
		{"string", `return "a" .. "b"`, "ab"},
		{"bool", "return 1 < 2", true},
		{"nil", "return nil", nil},
		{"no return", "local x = 1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sb.Eval(context.Background(), tt.code, nil)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEval_Globals(t *testing.T) {
	sb := newTestSandbox(t, time.Second)
	got, err := sb.Eval(context.Background(), "return input.a * 2 + #input.list", map[string]any{
		"input": map[string]any{"a": 5.0, "list": []any{"x", "y"}},
	})
	require.NoError(t, err)
	require.Equal(t, 12.0, got)
}

func TestEval_TablesConvertToGo(t *testing.T) {
	sb := newTestSandbox(t, time.Second)

	got, err := sb.Eval(context.Background(), `return {1, "two", {nested = true}}`, nil)
	require.NoError(t, err)
	require.Equal(t, []any{1.0, "two", map[string]any{"nested": true}}, got)

	got, err = sb.Eval(context.Background(), `return {name = "n", count = 2}`, nil)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "n", "count": 2.0}, got)

	got, err = sb.Eval(context.Background(), `return {}`, nil)
	require.NoError(t, err)
	require.Equal(t, map[string]any{}, got)
}

func TestEval_BlockedGlobals(t *testing.T) {
	sb := newTestSandbox(t, time.Second)
	for _, name := range []string{"io", "os", "dofile", "loadfile", "require", "debug", "package"} {
		t.Run(name, func(t *testing.T) {
			got, err := sb.Eval(context.Background(), "return "+name+" == nil", nil)
			require.NoError(t, err)
			require.Equal(t, true, got)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	sb := newTestSandbox(t, time.Second)

	_, err := sb.Eval(context.Background(), "return (", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "compile")

	_, err = sb.Eval(context.Background(), `error("boom")`, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")

	_, err = sb.Eval(context.Background(), "return function() end", nil)
	require.Error(t, err)
}

func TestEval_UnsupportedGlobal(t *testing.T) {
	sb := newTestSandbox(t, time.Second)
	_, err := sb.Eval(context.Background(), "return 1", map[string]any{"ch": make(chan int)})
	require.Error(t, err)
}

func TestEval_Timeout(t *testing.T) {
	sb := newTestSandbox(t, 50*time.Millisecond)
	_, err := sb.Eval(context.Background(), "while true do end", nil)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestEval_ContextCancelled(t *testing.T) {
	sb := newTestSandbox(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sb.Eval(ctx, "while true do end", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEval_TimeoutStopsChunk(t *testing.T) {
	sb := newTestSandbox(t, 20*time.Millisecond)
	before := runtime.NumGoroutine()

	for range 5 {
		_, err := sb.Eval(context.Background(), "while true do end", nil)
		require.ErrorIs(t, err, ErrTimeout)
	}
	require.LessOrEqual(t, runtime.NumGoroutine(), before)
}

func TestEval_TimeoutNotSwallowedByPcall(t *testing.T) {
	sb := newTestSandbox(t, 20*time.Millisecond)
	code := `while true do pcall(function() while true do end end) end`

	done := make(chan error, 1)
	go func() {
		_, err := sb.Eval(context.Background(), code, nil)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("pcall kept the chunk running past its timeout")
	}
}

func TestEval_CancelMidRun(t *testing.T) {
	sb := newTestSandbox(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := sb.Eval(ctx, "while true do end", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEval_StringRepBounded(t *testing.T) {
	sb := newTestSandbox(t, time.Second)

	got, err := sb.Eval(context.Background(), `return string.rep("ab", 3, ",")`, nil)
	require.NoError(t, err)
	require.Equal(t, "ab,ab,ab", got)

	got, err = sb.Eval(context.Background(), `return ("x"):rep(0)`, nil)
	require.NoError(t, err)
	require.Equal(t, "", got)

	for _, code := range []string{
		`return string.rep("x", 1e13)`,
		`return ("x"):rep(1e13)`,
		`return string.rep("", 1e13, "y")`,
	} {
		_, err := sb.Eval(context.Background(), code, nil)
		require.Error(t, err, code)
		require.Contains(t, err.Error(), "longer than")
	}
}

func TestEval_OversizedStringResult(t *testing.T) {
	sb := newTestSandbox(t, 5*time.Second)
	code := `local s = string.rep("x", 1024 * 1024) return s .. "y"`

	_, err := sb.Eval(context.Background(), code, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds")

	got, err := sb.Eval(context.Background(), `return string.rep("x", 1024 * 1024)`, nil)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("x", 1<<20), got)
}

// Package sandbox provides the Lua execution context handed to tools.
//
// Every evaluation runs in a fresh lua.State with only the base, string,
// table, math and bit32 libraries loaded. Functions that reach the file
// system or load external code are removed from the globals.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Shopify/go-lua"

	"github.com/toolrelay/toolrelay/internal/schema"
)

// ErrTimeout is returned when an evaluation exceeds its time budget.
var ErrTimeout = errors.New("sandbox: evaluation timed out")

const (
	// maxStringBytes bounds strings built by string.rep and strings returned
	// from a chunk.
	maxStringBytes = 1 << 20
	// hookInterval is the number of VM instructions between context checks.
	hookInterval = 1000
)

var safeLibraries = []lua.RegistryFunction{
	{Name: "_G", Function: lua.BaseOpen},
	{Name: "table", Function: lua.TableOpen},
	{Name: "string", Function: lua.StringOpen},
	{Name: "bit32", Function: lua.Bit32Open},
	{Name: "math", Function: lua.MathOpen},
}

var blockedGlobals = []string{"dofile", "loadfile", "load", "require", "collectgarbage"}

// Lua evaluates Lua chunks. The zero value is not usable; call New.
type Lua struct {
	log     *slog.Logger
	timeout time.Duration
}

// New creates a Lua sandbox. timeout bounds each evaluation; zero disables the
// bound and leaves only the caller's context.
func New(log *slog.Logger, timeout time.Duration) *Lua {
	return &Lua{log: log.With("component", "sandbox"), timeout: timeout}
}

var _ schema.Sandbox = (*Lua)(nil)

// Eval runs code with globals bound and returns the chunk's first return value
// converted to Go (nil, bool, float64, string, []any or map[string]any).
//
// A count hook checks ctx every hookInterval instructions and raises a Lua
// error once it is done, so Eval returns only after the chunk has stopped.
func (s *Lua) Eval(ctx context.Context, code string, globals map[string]any) (any, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, interrupted(err)
	}

	v, err := run(ctx, code, globals)
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		s.log.Warn("sandbox: evaluation interrupted", "err", ctxErr)
		return nil, interrupted(ctxErr)
	}
	return v, err
}

func interrupted(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

func run(ctx context.Context, code string, globals map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua: %v", r)
		}
	}()

	l := newState()
	for name, v := range globals {
		if err := push(l, v); err != nil {
			return nil, fmt.Errorf("bind global %q: %w", name, err)
		}
		l.SetGlobal(name)
	}

	if err := lua.LoadString(l, code); err != nil {
		return nil, fmt.Errorf("lua: compile: %w", err)
	}
	watch(ctx, l)
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("lua: run: %w", err)
	}
	defer l.Pop(1)
	return pull(l, -1, 0)
}

// watch installs the interruption hook. Once ctx is done the hook fires on
// every instruction, so a pcall in the chunk cannot swallow the error and
// keep looping.
func watch(ctx context.Context, l *lua.State) {
	var hook lua.Hook
	hook = func(l *lua.State, _ lua.Debug) {
		if err := ctx.Err(); err != nil {
			lua.SetDebugHook(l, hook, lua.MaskCount, 1)
			lua.Errorf(l, "evaluation interrupted: %s", err.Error())
		}
	}
	lua.SetDebugHook(l, hook, lua.MaskCount, hookInterval)
}

func newState() *lua.State {
	l := lua.NewState()
	for _, lib := range safeLibraries {
		lua.Require(l, lib.Name, lib.Function, true)
		l.Pop(1)
	}
	for _, name := range blockedGlobals {
		l.PushNil()
		l.SetGlobal(name)
	}

	l.Global("string")
	l.PushGoFunction(rep)
	l.SetField(-2, "rep")
	l.Pop(1)
	return l
}

// rep replaces string.rep with a version that refuses results longer than
// maxStringBytes.
func rep(l *lua.State) int {
	s, n, sep := lua.CheckString(l, 1), lua.CheckInteger(l, 2), lua.OptString(l, 3, "")
	unit := len(s) + len(sep)
	if n <= 0 || unit == 0 {
		l.PushString("")
		return 1
	}
	if n > maxStringBytes/unit+1 || n*len(s)+(n-1)*len(sep) > maxStringBytes {
		lua.Errorf(l, "resulting string longer than %d bytes", maxStringBytes)
	}
	l.PushString(strings.Repeat(s+sep, n-1) + s)
	return 1
}

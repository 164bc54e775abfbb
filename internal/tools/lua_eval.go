package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/toolrelay/toolrelay/internal/schema"
)

var luaEvalSchema = mustSchema(`{
	"type": "object",
	"properties": {
		"code": {
			"type": "string",
			"description": "Lua chunk to evaluate; its first return value is the result"
		},
		"input": {
			"description": "Value bound to the global 'input' while the chunk runs"
		}
	},
	"required": ["code"]
}`)

// LuaEvalTool evaluates a Lua chunk in the sandbox.
type LuaEvalTool struct{}

// NewLuaEvalTool creates a LuaEvalTool.
func NewLuaEvalTool() *LuaEvalTool { return &LuaEvalTool{} }

func (t *LuaEvalTool) Name() string { return string(ToolLuaEval) }
func (t *LuaEvalTool) Description() string {
	return "Evaluate a Lua snippet in a restricted sandbox and return its result."
}
func (t *LuaEvalTool) Parameters() *jsonschema.Schema { return luaEvalSchema }

func (t *LuaEvalTool) Execute(ctx context.Context, params json.RawMessage, sb schema.Sandbox) (any, error) {
	var p struct {
		Code  string `json:"code"`
		Input any    `json:"input"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Code) == "" {
		return nil, errors.New("code is required")
	}

	v, err := sb.Eval(ctx, p.Code, map[string]any{"input": p.Input})
	if err != nil {
		return nil, err
	}
	return map[string]any{"result": v}, nil
}

package rpc

import (
	"encoding/json"
	"fmt"
)

// Method is the closed set of methods a connection understands.
type Method int

const (
	MethodUnknown Method = iota
	MethodInitialize
	MethodToolList
	MethodToolExecute
)

var methodNames = map[string]Method{
	"initialize":   MethodInitialize,
	"tool/list":    MethodToolList,
	"tool/execute": MethodToolExecute,
}

// ParseMethod maps a wire method name to a Method. Unrecognised names map to
// MethodUnknown.
func ParseMethod(name string) Method {
	if m, ok := methodNames[name]; ok {
		return m
	}
	return MethodUnknown
}

func (m Method) String() string {
	switch m {
	case MethodInitialize:
		return "initialize"
	case MethodToolList:
		return "tool/list"
	case MethodToolExecute:
		return "tool/execute"
	default:
		return "unknown"
	}
}

// ExecuteParams is the params object of a tool/execute request.
type ExecuteParams struct {
	Tool   string          `json:"tool"`
	Params json.RawMessage `json:"params,omitempty"`
}

// DecodeExecuteParams extracts the tool name and its params from raw.
func DecodeExecuteParams(raw json.RawMessage) (ExecuteParams, error) {
	var p ExecuteParams
	if len(raw) == 0 {
		return p, fmt.Errorf("invalid params: tool/execute requires an object with a tool name")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("invalid params: %w", err)
	}
	return p, nil
}

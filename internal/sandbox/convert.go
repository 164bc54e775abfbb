package sandbox

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/Shopify/go-lua"
)

// maxDepth bounds conversion of nested tables, which also guards against
// self-referencing tables.
const maxDepth = 64

// push converts a Go value produced by encoding/json (or a plain Go literal)
// to Lua and leaves it on top of the stack.
func push(l *lua.State, v any) error {
	switch x := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(x)
	case string:
		l.PushString(x)
	case float64:
		l.PushNumber(x)
	case float32:
		l.PushNumber(float64(x))
	case int:
		l.PushInteger(x)
	case int64:
		l.PushNumber(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return err
		}
		l.PushNumber(f)
	case []any:
		l.CreateTable(len(x), 0)
		for i, item := range x {
			if err := push(l, item); err != nil {
				return err
			}
			l.RawSetInt(-2, i+1)
		}
	case []map[string]any:
		l.CreateTable(len(x), 0)
		for i, item := range x {
			if err := push(l, item); err != nil {
				return err
			}
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		l.CreateTable(0, len(x))
		for k, item := range x {
			if err := push(l, item); err != nil {
				return err
			}
			l.SetField(-2, k)
		}
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(x, &decoded); err != nil {
			return err
		}
		return push(l, decoded)
	default:
		return fmt.Errorf("unsupported type %T", v)
	}
	return nil
}

// pull converts the Lua value at idx to Go. Tables whose keys are exactly
// 1..n become []any; every other table becomes map[string]any. An empty table
// becomes an empty map.
func pull(l *lua.State, idx, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("lua: value nested deeper than %d levels", maxDepth)
	}
	switch l.TypeOf(idx) {
	case lua.TypeNil, lua.TypeNone:
		return nil, nil
	case lua.TypeBoolean:
		return l.ToBoolean(idx), nil
	case lua.TypeNumber:
		n, _ := l.ToNumber(idx)
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return nil, fmt.Errorf("lua: number %v cannot be represented", n)
		}
		return n, nil
	case lua.TypeString:
		s, _ := l.ToString(idx)
		if len(s) > maxStringBytes {
			return nil, fmt.Errorf("lua: string of %d bytes exceeds %d", len(s), maxStringBytes)
		}
		return s, nil
	case lua.TypeTable:
		return pullTable(l, l.AbsIndex(idx), depth)
	default:
		return nil, fmt.Errorf("lua: cannot convert %s value", lua.TypeNameOf(l, idx))
	}
}

func pullTable(l *lua.State, idx, depth int) (any, error) {
	fields := make(map[string]any)
	ints := make(map[int]any)
	allInts := true

	l.PushNil()
	for l.Next(idx) {
		// key at -2, value at -1
		v, err := pull(l, -1, depth+1)
		if err != nil {
			l.Pop(2)
			return nil, err
		}
		switch l.TypeOf(-2) {
		case lua.TypeNumber:
			n, _ := l.ToNumber(-2)
			if n == math.Trunc(n) && n >= 1 {
				ints[int(n)] = v
			} else {
				allInts = false
			}
			fields[fmt.Sprint(n)] = v
		case lua.TypeString:
			// ToString would convert a number key in place and break Next, so
			// only string keys are read here.
			k, _ := l.ToString(-2)
			fields[k] = v
			allInts = false
		default:
			allInts = false
			fields[lua.TypeNameOf(l, -2)] = v
		}
		l.Pop(1)
	}

	if allInts && len(ints) > 0 {
		arr := make([]any, len(ints))
		for i := 1; i <= len(ints); i++ {
			v, ok := ints[i]
			if !ok {
				return fields, nil
			}
			arr[i-1] = v
		}
		return arr, nil
	}
	return fields, nil
}

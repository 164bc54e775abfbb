package rpc

import "fmt"

// ParseError reports a frame that could not be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnknownMethodError reports a request for a method outside the known set.
type UnknownMethodError struct {
	Method string
}

func (e *UnknownMethodError) Error() string {
	return "Unknown method: " + e.Method
}

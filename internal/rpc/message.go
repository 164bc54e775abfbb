// Package rpc implements the JSON-RPC shaped envelopes spoken on a toolrelay
// connection.
package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Version is the jsonrpc tag carried by every envelope.
const Version = "2.0"

// CodeServerError is the only error code the server emits.
const CodeServerError = -32000

var nullID = json.RawMessage("null")

var errNotObject = errors.New("frame is not a JSON object")

// Request is one inbound frame. ID is kept raw so it can be echoed verbatim.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carried no id.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || bytes.Equal(r.ID, nullID)
}

// Error is the error member of a failed Response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is one outbound frame. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult builds a success response for id. A nil result is sent as {}.
func NewResult(id json.RawMessage, result any) *Response {
	if result == nil {
		result = struct{}{}
	}
	return &Response{JSONRPC: Version, ID: echoID(id), Result: result}
}

// NewError builds an error response for id carrying err's message.
func NewError(id json.RawMessage, err error) *Response {
	msg := "Internal server error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &Response{
		JSONRPC: Version,
		ID:      echoID(id),
		Error:   &Error{Code: CodeServerError, Message: msg},
	}
}

func echoID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nullID
	}
	return id
}

// Decode parses one frame into a Request. Valid JSON that is not an object
// is a ParseError too.
func Decode(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &ParseError{Err: err}
	}
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return nil, &ParseError{Err: errNotObject}
	}
	return &req, nil
}

// Encode serializes a Response.
func Encode(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

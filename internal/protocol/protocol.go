// Package protocol defines the request and response envelopes exchanged
// between client and server. The wire is a bidirectional stream of JSON
// objects framed by the grammar itself, with no length prefix, so both sides
// decode with a streaming decoder and reply strictly in request order.
package protocol

import "github.com/iamNilotpal/ember/internal/codec"

// Request carries exactly one command from client to server.
type Request struct {
	Command codec.Command `json:"command"`
}

// Result is the outcome of one command: a value (possibly absent) on
// success, or an error message. An empty Error with a nil Value encodes a
// successful lookup of an absent key.
type Result struct {
	Value *string `json:"value,omitempty"`
	Error string  `json:"error,omitempty"`
}

// Response carries the result of one command from server to client.
type Response struct {
	Result Result `json:"result"`
}

// OkValue builds a successful response carrying a value.
func OkValue(value string) Response {
	return Response{Result: Result{Value: &value}}
}

// OkNone builds a successful response with no value (a lookup miss).
func OkNone() Response {
	return Response{Result: Result{}}
}

// Err builds a failure response carrying the error's message.
func Err(err error) Response {
	return Response{Result: Result{Error: err.Error()}}
}

// Ok reports whether the result is a success.
func (r Result) Ok() bool {
	return r.Error == ""
}

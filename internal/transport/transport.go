// Package transport defines the wire boundary of the client: the request
// and result shapes handed to the underlying HTTP mechanism, and a default
// implementation on net/http.
//
// The policy pipeline treats the transport as a leaf collaborator. Guard
// stages run before anything here is touched, so a rejected request never
// costs a network round trip.
package transport

import (
	"context"
	"fmt"
	"net/http"
)

// Request is the fully prepared outgoing request: final URL, merged
// headers, serialized body. Nothing here is policy-aware.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// Result is the normalized transport outcome. The transport returns a
// Result for every HTTP exchange that completed, regardless of status
// code; classifying 4xx/5xx into errors is the pipeline's job.
type Result struct {
	Status  int
	Data    any
	RawBody []byte
	Headers http.Header
}

// Transport sends one prepared request and reports the outcome.
// Implementations must honor context cancellation: when the pipeline's
// timeout fires, the context is cancelled and the send must abort
// best-effort.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Result, error)
}

// Error is a network-level failure: DNS, connection, TLS, or an aborted
// exchange. HTTP responses with error status codes are not transport
// errors.
type Error struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

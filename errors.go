package armor

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error kinds. These strings are a stable contract: callers match on them
// (and on Status) to branch on failure causes, so they never change.
const (
	KindMissingAPIKey     = "MissingAPIKey"
	KindPayloadTooLarge   = "PayloadTooLarge"
	KindPayloadTooComplex = "PayloadTooComplex"
	KindRateLimitExceeded = "RateLimitExceeded"
	KindCSRFUnavailable   = "CSRFUnavailable"
	KindSessionInvalid    = "SessionInvalid"
	KindTimeout           = "Timeout"
	KindTransportError    = "TransportError"
	KindServerError       = "ServerError"
	KindClientError       = "ClientError"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrMissingAPIKey is returned when the policy requires an API key
	// and none is configured. The transport is never reached.
	ErrMissingAPIKey = errors.New("api key required but not configured")

	// ErrPayloadTooLarge is returned when the serialized body exceeds
	// the policy's payload cap.
	ErrPayloadTooLarge = errors.New("payload exceeds size limit")

	// ErrPayloadTooComplex is returned when the body nests deeper than
	// the sanitizer is willing to walk.
	ErrPayloadTooComplex = errors.New("payload too complex")

	// ErrRateLimitExceeded is returned when the sliding window is full.
	// The client does not retry; callers implement their own backoff.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrCSRFUnavailable is returned when CSRF token acquisition fails.
	ErrCSRFUnavailable = errors.New("csrf token unavailable")

	// ErrSessionInvalid is returned when session validation fails under
	// the high security level.
	ErrSessionInvalid = errors.New("session validation failed")

	// ErrTimeout is returned when the transport does not settle within
	// the configured timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrTransport is returned for network-level failures (DNS,
	// connection, TLS).
	ErrTransport = errors.New("transport error")

	// ErrServer is returned for responses with status >= 500.
	ErrServer = errors.New("server error")

	// ErrClient is returned for 4xx responses other than CSRF
	// rejections handled by the automatic retry.
	ErrClient = errors.New("client error")
)

// kindSentinels maps each kind to its sentinel for errors.Is support.
var kindSentinels = map[string]error{
	KindMissingAPIKey:     ErrMissingAPIKey,
	KindPayloadTooLarge:   ErrPayloadTooLarge,
	KindPayloadTooComplex: ErrPayloadTooComplex,
	KindRateLimitExceeded: ErrRateLimitExceeded,
	KindCSRFUnavailable:   ErrCSRFUnavailable,
	KindSessionInvalid:    ErrSessionInvalid,
	KindTimeout:           ErrTimeout,
	KindTransportError:    ErrTransport,
	KindServerError:       ErrServer,
	KindClientError:       ErrClient,
}

// RequestError is the normalized failure shape. Every failure the pipeline
// produces resolves to this type, so callers can branch uniformly on Kind
// or Status without caring which stage rejected the request.
type RequestError struct {
	// Kind is one of the Kind* constants.
	Kind string

	// Status is the HTTP status code when the transport returned one;
	// zero for failures that never reached the network.
	Status int

	// Cause is the underlying error, for debugging only. Not part of
	// the contract.
	Cause error
}

// Error returns a human-readable description of the failure.
func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("request failed: %s (status %d)", e.Kind, e.Status)
	}
	return fmt.Sprintf("request failed: %s", e.Kind)
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target sentinel.
// It supports errors.Is(err, ErrRateLimitExceeded) and friends.
func (e *RequestError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// MarshalJSON renders the wire form {"error": kind, "status": n}.
// Status is omitted when the failure never produced one.
func (e *RequestError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}{Error: e.Kind, Status: e.Status})
}

// newRequestError builds a RequestError for a kind with an optional cause.
func newRequestError(kind string, status int, cause error) *RequestError {
	return &RequestError{Kind: kind, Status: status, Cause: cause}
}

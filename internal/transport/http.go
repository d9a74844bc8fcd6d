package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"
)

// maxResponseBodySize caps how much of an upstream response body is read.
// Prevents OOM from a misbehaving server sending an unbounded body.
const maxResponseBodySize = 10 * 1024 * 1024 // 10MB

// HTTPTransport is the default Transport, backed by net/http. Request
// deadlines come from the context; the embedded http.Client carries no
// timeout of its own so the pipeline's timeout controller stays the single
// cancellation authority.
type HTTPTransport struct {
	client *http.Client
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithClient sets a custom http.Client. Useful for testing, proxying, or
// custom TLS configuration.
func WithClient(hc *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = hc
	}
}

// NewHTTPTransport creates the default net/http-backed transport.
func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send performs the HTTP exchange and normalizes the response. A response
// with a JSON content type (or a body that parses as JSON) yields parsed
// Data; anything else yields the body as a string.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Result, error) {
	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, &Error{Op: "prepare", Cause: err}
	}
	for k, vals := range req.Headers {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Op: "send", Cause: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &Error{Op: "read body", Cause: err}
	}

	return &Result{
		Status:  httpResp.StatusCode,
		Data:    decodeBody(httpResp.Header.Get("Content-Type"), raw),
		RawBody: raw,
		Headers: httpResp.Header.Clone(),
	}, nil
}

// decodeBody parses a response body into a Go value. JSON bodies become
// the decoded value; everything else is returned as a string. An empty
// body decodes to nil.
func decodeBody(contentType string, raw []byte) any {
	if len(raw) == 0 {
		return nil
	}

	mediaType := contentType
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = mt
	}

	isJSON := mediaType == "application/json" || mediaType == "" ||
		mediaType == "application/problem+json"
	if isJSON {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

// Compile-time interface verification.
var _ Transport = (*HTTPTransport)(nil)

package armor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sentinel-Gate/armor/internal/csrf"
	"github.com/Sentinel-Gate/armor/internal/policy"
	"github.com/Sentinel-Gate/armor/internal/ratelimit"
	"github.com/Sentinel-Gate/armor/internal/respcache"
	"github.com/Sentinel-Gate/armor/internal/sanitize"
	"github.com/Sentinel-Gate/armor/internal/transport"
)

// requestSpec is the per-call request description. Ephemeral: it lives
// for one do() call and is never persisted.
type requestSpec struct {
	method  string
	path    string
	body    any
	headers http.Header
}

// configSnapshot is the immutable view of the client configuration taken
// at the start of a request. Fluent mutations made while a request is in
// flight affect later requests only.
type configSnapshot struct {
	security       bool
	level          policy.Level
	timeout        time.Duration
	baseURL        string
	apiKey         string
	defaultHeaders http.Header
	limiter        *ratelimit.Limiter
}

// snapshot captures the current configuration under the read lock.
func (c *Client) snapshot() configSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return configSnapshot{
		security:       c.security,
		level:          c.level,
		timeout:        c.timeout,
		baseURL:        c.baseURL,
		apiKey:         c.apiKey,
		defaultHeaders: c.defaultHeaders.Clone(),
		limiter:        c.limiter,
	}
}

// do runs one request through the policy pipeline. Stages execute in a
// fixed order and short-circuit on the first failure; guard rejections
// never reach the transport.
func (c *Client) do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	spec := &requestSpec{
		method:  method,
		path:    path,
		body:    body,
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(spec)
	}

	cfg := c.snapshot()
	pol := policy.Resolve(cfg.level)

	// The deadline covers the whole pipeline, so slow token acquisition
	// and session validation are bounded the same way the transport call
	// is. Cancellation propagates to everything downstream.
	timeout := cfg.timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "armor.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("armor.security_level", string(cfg.level)),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.run(ctx, cfg, pol, spec)
	elapsed := time.Since(start)

	c.observe(method, resp, err, elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errKind(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	return resp, nil
}

// run is the pipeline proper: guards, body preparation, admission,
// dispatch, normalization, and the single CSRF retry.
func (c *Client) run(ctx context.Context, cfg configSnapshot, pol policy.Policy, spec *requestSpec) (*Response, error) {
	// API key gate: rejected before anything touches the network.
	if cfg.security && pol.APIKeyRequired && cfg.apiKey == "" {
		return nil, newRequestError(KindMissingAPIKey, 0, ErrMissingAPIKey)
	}

	// Session validation hook, when configured.
	if cfg.security && pol.SessionValidation && c.validateSession != nil {
		if err := c.validateSession(ctx); err != nil {
			return nil, newRequestError(KindSessionInvalid, 0, err)
		}
	}

	finalURL := resolveURL(cfg.baseURL, spec.path)

	// Cache lookup happens before admission so a hit costs no rate slot.
	var cacheKey uint64
	useCache := c.cache != nil && spec.method == http.MethodGet
	if useCache {
		cacheKey = respcache.Key(spec.method, finalURL)
		if v, ok := c.cache.Get(cacheKey); ok {
			if c.metrics != nil {
				c.metrics.CacheHits.Inc()
			}
			return cloneResponse(v.(*Response)), nil
		}
	}

	// Body preparation is deterministic, so it runs on the first attempt
	// only; the CSRF retry reuses the payload.
	var payload []byte
	bodyPrepared := false

	for attempt := 0; attempt < 2; attempt++ {
		headers := mergeHeaders(cfg.defaultHeaders, spec.headers)
		if headers.Get("X-Request-ID") == "" {
			headers.Set("X-Request-ID", uuid.New().String())
		}
		if cfg.security && cfg.apiKey != "" {
			headers.Set("Authorization", "Bearer "+cfg.apiKey)
		}
		if cfg.security && pol.CSRFRequired && methodMutates(spec.method) {
			if err := c.csrf.Attach(ctx, headers); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return nil, newRequestError(KindTimeout, 0, err)
				}
				return nil, newRequestError(KindCSRFUnavailable, 0, err)
			}
		}

		if !bodyPrepared {
			var err error
			payload, err = c.prepareBody(cfg, pol, spec.body)
			if err != nil {
				return nil, err
			}
			bodyPrepared = true
		}
		if len(payload) > 0 && headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", "application/json")
		}

		// Admission: fail fast when the window is full, no queuing.
		if cfg.security {
			if res := cfg.limiter.Allow(time.Now()); !res.Allowed {
				return nil, newRequestError(KindRateLimitExceeded, 0, ErrRateLimitExceeded)
			}
		}

		result, err := c.dispatch(ctx, &transport.Request{
			Method:  spec.method,
			URL:     finalURL,
			Headers: headers,
			Body:    payload,
		})
		if err != nil {
			return nil, err
		}

		if result.Status < http.StatusBadRequest {
			resp := &Response{
				Status:  result.Status,
				Data:    result.Data,
				Headers: result.Headers,
			}
			if useCache {
				// Store a private copy: callers are free to mutate
				// what they get back.
				c.cache.Put(cacheKey, cloneResponse(resp))
			}
			return resp, nil
		}

		// A CSRF-rejected request earns exactly one automatic retry
		// with a fresh token.
		if attempt == 0 && cfg.security && pol.CSRFRequired &&
			methodMutates(spec.method) && isCSRFRejection(result) {
			c.csrf.Invalidate()
			if c.metrics != nil {
				c.metrics.CSRFRetries.Inc()
			}
			c.logger.Warn("csrf token rejected, retrying with fresh token",
				"method", spec.method,
				"url", finalURL,
			)
			continue
		}

		kind := KindClientError
		if result.Status >= http.StatusInternalServerError {
			kind = KindServerError
		}
		return nil, newRequestError(kind, result.Status, nil)
	}

	// Unreachable: the second loop iteration always returns.
	return nil, newRequestError(KindClientError, 0, nil)
}

// prepareBody sanitizes and serializes the request body and enforces the
// policy's payload cap. A nil body yields no payload.
func (c *Client) prepareBody(cfg configSnapshot, pol policy.Policy, body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	if cfg.security && pol.Sanitize {
		clean, err := sanitize.New(pol.SanitizeMode).Sanitize(body)
		if err != nil {
			if errors.Is(err, sanitize.ErrTooComplex) {
				return nil, newRequestError(KindPayloadTooComplex, 0, err)
			}
			return nil, newRequestError(KindClientError, 0, err)
		}
		body = clean
	}

	// The sanitizer is the single escaping authority; the encoder's
	// default HTML escaping would re-encode its entity output.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, newRequestError(KindClientError, 0, err)
	}
	payload := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	if cfg.security && pol.MaxPayloadBytes > 0 && int64(len(payload)) > pol.MaxPayloadBytes {
		return nil, newRequestError(KindPayloadTooLarge, 0, ErrPayloadTooLarge)
	}
	return payload, nil
}

// dispatch sends the prepared request through the transport. The request
// deadline set in do cancels the transport when it fires (best-effort
// abort) and the request resolves to Timeout; a late transport outcome is
// discarded with the cancelled context.
func (c *Client) dispatch(ctx context.Context, req *transport.Request) (*transport.Result, error) {
	result, err := c.transport.Send(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, newRequestError(KindTimeout, 0, err)
		}
		return nil, newRequestError(KindTransportError, 0, err)
	}
	return result, nil
}

// observe records metrics and a structured log line for one completed
// request.
func (c *Client) observe(method string, resp *Response, err error, elapsed time.Duration) {
	outcome := "ok"
	status := 0
	if resp != nil {
		status = resp.Status
	}
	if err != nil {
		outcome = errKind(err)
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			status = reqErr.Status
		}
	}

	if c.metrics != nil {
		c.metrics.RequestsTotal.WithLabelValues(method, outcome).Inc()
		c.metrics.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
		if stage, ok := guardStages[outcome]; ok {
			c.metrics.GuardRejections.WithLabelValues(stage).Inc()
		}
	}

	if err != nil {
		c.logger.Warn("request failed",
			"method", method,
			"outcome", outcome,
			"status", status,
			"duration", elapsed,
		)
		return
	}
	c.logger.Debug("request completed",
		"method", method,
		"status", status,
		"duration", elapsed,
	)
}

// guardStages maps guard-failure kinds to metric stage labels.
var guardStages = map[string]string{
	KindMissingAPIKey:     "api_key",
	KindSessionInvalid:    "session",
	KindPayloadTooLarge:   "size",
	KindPayloadTooComplex: "sanitize",
	KindRateLimitExceeded: "rate_limit",
}

// errKind extracts the error kind for labels and span status.
func errKind(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return KindTransportError
}

// isCSRFRejection classifies a 403 as a CSRF token rejection when the
// server marks it with the X-CSRF-Rejected header or a JSON body whose
// error field is "csrf_token_invalid". Ordinary 403s stay ClientError.
func isCSRFRejection(result *transport.Result) bool {
	if result.Status != http.StatusForbidden {
		return false
	}
	if result.Headers.Get("X-CSRF-Rejected") == "1" {
		return true
	}
	if body, ok := result.Data.(map[string]any); ok {
		if msg, ok := body["error"].(string); ok && msg == "csrf_token_invalid" {
			return true
		}
	}
	return false
}

// cloneResponse copies a response so cache entries stay isolated from
// caller mutations in both directions.
func cloneResponse(r *Response) *Response {
	return &Response{
		Status:  r.Status,
		Data:    cloneValue(r.Data),
		Headers: r.Headers.Clone(),
	}
}

// cloneValue deep-copies a decoded JSON value.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}

// methodMutates reports whether a method changes server state and so
// needs CSRF protection. Safe methods never carry a token.
func methodMutates(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// mergeHeaders layers per-call headers over the instance defaults.
func mergeHeaders(defaults, perCall http.Header) http.Header {
	merged := defaults.Clone()
	if merged == nil {
		merged = make(http.Header)
	}
	for k, vals := range perCall {
		merged.Del(k)
		for _, v := range vals {
			merged.Add(k, v)
		}
	}
	return merged
}

// resolveURL joins the base URL and path. Absolute paths (with a scheme)
// bypass the base URL entirely.
func resolveURL(baseURL, path string) string {
	if baseURL == "" || isAbsoluteURL(path) {
		return path
	}
	return joinURL(baseURL, path)
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// csrfHeader is re-exported for tests and callers inspecting requests.
const csrfHeader = csrf.Header

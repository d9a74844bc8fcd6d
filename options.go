package armor

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sentinel-Gate/armor/internal/csrf"
	"github.com/Sentinel-Gate/armor/internal/metrics"
	"github.com/Sentinel-Gate/armor/internal/transport"
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithSecurity toggles the policy pipeline. When disabled, only timeout
// control and result normalization apply; no guard stage runs.
func WithSecurity(enabled bool) Option {
	return func(c *Client) {
		c.security = enabled
	}
}

// WithSecurityLevel sets the security tier. Unrecognized levels resolve
// to SecurityMedium. Defaults to the ARMOR_SECURITY_LEVEL environment
// variable or SecurityMedium.
func WithSecurityLevel(level SecurityLevel) Option {
	return func(c *Client) {
		c.level = level
	}
}

// WithTimeout sets the per-request deadline. Defaults to 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithBaseURL sets the prefix joined onto relative request paths.
// Absolute request URLs bypass it.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithAPIKey sets the API key sent as a bearer token. The high security
// level refuses to dispatch without one.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithDefaultHeaders sets headers merged into every request. Per-call
// headers override them.
func WithDefaultHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.defaultHeaders.Set(k, v)
		}
	}
}

// WithHeader adds a single default header.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.defaultHeaders.Set(key, value)
	}
}

// WithTransport replaces the underlying transport. Useful for testing
// and for non-HTTP backends.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHTTPClient uses a custom http.Client for the default transport.
// Ignored when WithTransport is also given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource sets the CSRF token source. When unset and a base URL
// is configured, tokens are fetched from GET {baseURL}/csrf-token.
func WithTokenSource(src csrf.TokenSource) Option {
	return func(c *Client) {
		c.tokenSource = src
	}
}

// WithTokenSourceFunc is WithTokenSource for a bare function.
func WithTokenSourceFunc(f func(ctx context.Context) (string, error)) Option {
	return func(c *Client) {
		c.tokenSource = csrf.TokenSourceFunc(f)
	}
}

// WithSessionValidator sets the hook run before dispatch when the policy
// requires session validation (high level). When unset the stage is
// skipped.
func WithSessionValidator(f func(ctx context.Context) error) Option {
	return func(c *Client) {
		c.validateSession = f
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics registers pipeline metrics with the given registry.
// Metrics are disabled when unset.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = metrics.New(reg)
	}
}

// WithCacheTTL enables the in-process GET response cache with the given
// entry lifetime. Disabled when unset.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithCacheMaxSize bounds the response cache entry count. Defaults to 1000.
func WithCacheMaxSize(n int) Option {
	return func(c *Client) {
		c.cacheMaxSize = n
	}
}

// RequestOption configures a single request.
type RequestOption func(*requestSpec)

// WithRequestHeader adds a header to this request only. It overrides any
// default header with the same name.
func WithRequestHeader(key, value string) RequestOption {
	return func(r *requestSpec) {
		r.headers.Set(key, value)
	}
}

// WithRequestHeaders merges a header map into this request.
func WithRequestHeaders(h map[string]string) RequestOption {
	return func(r *requestSpec) {
		for k, v := range h {
			r.headers.Set(k, v)
		}
	}
}

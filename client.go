package armor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sentinel-Gate/armor/internal/config"
	"github.com/Sentinel-Gate/armor/internal/csrf"
	"github.com/Sentinel-Gate/armor/internal/metrics"
	"github.com/Sentinel-Gate/armor/internal/policy"
	"github.com/Sentinel-Gate/armor/internal/ratelimit"
	"github.com/Sentinel-Gate/armor/internal/respcache"
	"github.com/Sentinel-Gate/armor/internal/transport"
)

// defaultTimeout is the per-request deadline when none is configured.
const defaultTimeout = 10 * time.Second

// tracerName identifies this instrumentation library to OpenTelemetry.
const tracerName = "github.com/Sentinel-Gate/armor"

// Client is the security-hardened HTTP client. One instance owns its
// configuration, rate-limit window, CSRF token, and response cache;
// nothing is shared across instances and there is no global state.
//
// A Client is safe for concurrent use. Requests issued concurrently are
// not serialized against each other; only the shared guard state (rate
// window, CSRF token) is coordinated internally.
type Client struct {
	mu             sync.RWMutex
	security       bool
	level          policy.Level
	timeout        time.Duration
	baseURL        string
	apiKey         string
	defaultHeaders http.Header
	limiter        *ratelimit.Limiter

	transport       transport.Transport
	httpClient      *http.Client
	tokenSource     csrf.TokenSource
	csrf            *csrf.Manager
	validateSession func(ctx context.Context) error

	cache        *respcache.Cache
	cacheTTL     time.Duration
	cacheMaxSize int

	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// New creates a Client. It reads defaults from ARMOR_* environment
// variables (ARMOR_BASE_URL, ARMOR_API_KEY, ARMOR_SECURITY_LEVEL,
// ARMOR_TIMEOUT); options override them.
func New(opts ...Option) *Client {
	c := &Client{
		security:       true,
		level:          policy.ParseLevel(envOrDefault("ARMOR_SECURITY_LEVEL", string(policy.LevelMedium))),
		timeout:        parseDurationEnv("ARMOR_TIMEOUT", defaultTimeout),
		baseURL:        os.Getenv("ARMOR_BASE_URL"),
		apiKey:         os.Getenv("ARMOR_API_KEY"),
		defaultHeaders: make(http.Header),
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		var topts []transport.HTTPOption
		if c.httpClient != nil {
			topts = append(topts, transport.WithClient(c.httpClient))
		}
		c.transport = transport.NewHTTPTransport(topts...)
	}

	if c.tokenSource == nil && c.baseURL != "" {
		c.tokenSource = &endpointTokenSource{
			transport: c.transport,
			url:       joinURL(c.baseURL, "/csrf-token"),
		}
	}
	c.csrf = csrf.NewManager(c.tokenSource, c.logger)

	c.limiter = ratelimit.New(policy.Resolve(c.level).MaxRequestsPerSecond)

	if c.cacheTTL > 0 {
		c.cache = respcache.New(c.cacheTTL, c.cacheMaxSize)
	}

	c.tracer = otel.Tracer(tracerName)

	return c
}

// NewFromConfig creates a Client from a declarative configuration, as
// loaded from a config file or environment.
func NewFromConfig(cfg config.Config, opts ...Option) *Client {
	base := []Option{
		WithSecurity(cfg.Security),
		WithSecurityLevel(policy.ParseLevel(cfg.SecurityLevel)),
	}
	if d := cfg.TimeoutDuration(); d > 0 {
		base = append(base, WithTimeout(d))
	}
	if cfg.BaseURL != "" {
		base = append(base, WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		base = append(base, WithAPIKey(cfg.APIKey))
	}
	if len(cfg.DefaultHeaders) > 0 {
		base = append(base, WithDefaultHeaders(cfg.DefaultHeaders))
	}
	if d := cfg.CacheTTLDuration(); d > 0 {
		base = append(base, WithCacheTTL(d))
	}
	if cfg.CacheMaxSize > 0 {
		base = append(base, WithCacheMaxSize(cfg.CacheMaxSize))
	}
	return New(append(base, opts...)...)
}

// LoadConfig loads the declarative configuration from file and
// environment. An empty path searches the standard locations.
func LoadConfig(file string) (config.Config, error) {
	return config.Load(file)
}

// SetSecurity changes the security level and resets the rate window to
// the new tier's capacity. Returns the client for chaining.
func (c *Client) SetSecurity(level SecurityLevel) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = policy.ParseLevel(string(level))
	c.limiter = ratelimit.New(policy.Resolve(c.level).MaxRequestsPerSecond)
	return c
}

// SetAPIKey sets the API key. Returns the client for chaining.
func (c *Client) SetAPIKey(key string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
	return c
}

// SetBaseURL sets the base URL. Returns the client for chaining.
func (c *Client) SetBaseURL(u string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = u
	return c
}

// SetHeader sets a default header. Returns the client for chaining.
func (c *Client) SetHeader(key, value string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultHeaders.Set(key, value)
	return c
}

// SetTimeout sets the per-request deadline. Returns the client for chaining.
func (c *Client) SetTimeout(d time.Duration) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
	return c
}

// SecurityLevel returns the current security level.
func (c *Client) SecurityLevel() SecurityLevel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.level
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, opts...)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, opts...)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, body, opts...)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, body, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, opts...)
}

// endpointTokenSource fetches CSRF tokens from a well-known endpoint on
// the configured base URL. The response must be JSON with a "token" field.
type endpointTokenSource struct {
	transport transport.Transport
	url       string
}

// FetchToken implements csrf.TokenSource.
func (s *endpointTokenSource) FetchToken(ctx context.Context) (string, error) {
	res, err := s.transport.Send(ctx, &transport.Request{
		Method:  http.MethodGet,
		URL:     s.url,
		Headers: make(http.Header),
	})
	if err != nil {
		return "", err
	}
	if res.Status != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", res.Status)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(res.RawBody, &payload); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("token endpoint returned an empty token")
	}
	return payload.Token, nil
}

// Helper functions for env var parsing.

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func parseDurationEnv(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	// Plain integers are read as seconds.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultVal
}

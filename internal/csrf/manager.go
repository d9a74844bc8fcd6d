// Package csrf manages the lifecycle of a CSRF token: lazy acquisition,
// caching, header attachment, and invalidation after a server rejection.
package csrf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Header is the request header carrying the CSRF token.
const Header = "X-CSRF-Token"

// ErrUnavailable is returned when token acquisition fails.
var ErrUnavailable = errors.New("csrf token unavailable")

// TokenSource acquires CSRF tokens from wherever the application keeps
// them (a token endpoint, a meta tag, a cookie exchange).
type TokenSource interface {
	// FetchToken returns a fresh CSRF token.
	FetchToken(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (string, error)

// FetchToken calls f.
func (f TokenSourceFunc) FetchToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// State is the token lifecycle state.
type State int

const (
	// StateUnfetched means no acquisition has been attempted yet.
	StateUnfetched State = iota

	// StateFetching means an acquisition is in flight.
	StateFetching

	// StateValid means a cached token is available for reuse.
	StateValid

	// StateInvalid means the last acquisition failed or the server
	// rejected the cached token.
	StateInvalid
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateUnfetched:
		return "unfetched"
	case StateFetching:
		return "fetching"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Manager owns one CSRF token for one client instance. Concurrent requests
// that need a token while none is cached share a single in-flight fetch
// instead of issuing duplicates.
type Manager struct {
	source TokenSource
	logger *slog.Logger
	group  singleflight.Group

	mu    sync.Mutex
	state State
	token string
}

// NewManager creates a Manager backed by the given token source.
// A nil logger falls back to slog.Default().
func NewManager(source TokenSource, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{source: source, logger: logger}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Token returns the cached token, fetching one if necessary. All callers
// arriving during an in-flight fetch await the same acquisition. A failed
// acquisition returns ErrUnavailable (with the cause wrapped) and leaves
// the manager in StateInvalid.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if m.source == nil {
		return "", fmt.Errorf("%w: no token source configured", ErrUnavailable)
	}

	m.mu.Lock()
	if m.state == StateValid {
		tok := m.token
		m.mu.Unlock()
		return tok, nil
	}
	m.state = StateFetching
	m.mu.Unlock()

	ch := m.group.DoChan("token", func() (any, error) {
		tok, err := m.source.FetchToken(ctx)
		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			m.state = StateInvalid
			m.token = ""
			return nil, err
		}
		m.state = StateValid
		m.token = tok
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			m.logger.Warn("csrf token acquisition failed", "error", res.Err)
			return "", fmt.Errorf("%w: %w", ErrUnavailable, res.Err)
		}
		return res.Val.(string), nil
	}
}

// Attach fetches a token if needed and sets it on h.
func (m *Manager) Attach(ctx context.Context, h http.Header) error {
	tok, err := m.Token(ctx)
	if err != nil {
		return err
	}
	h.Set(Header, tok)
	return nil
}

// Invalidate discards the cached token and resets to StateUnfetched so the
// next request triggers a fresh acquisition. Called when the server rejects
// a request for CSRF reasons.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUnfetched
	m.token = ""
	m.group.Forget("token")
}

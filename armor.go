// Package armor provides a security-hardened HTTP client.
//
// Every outgoing request passes through an ordered policy pipeline before
// it touches the network: API key enforcement, input sanitization, CSRF
// token injection, payload-size checks, rate limiting, and timeout control.
// The pipeline is parameterized by a three-tier security level (low, medium,
// high), each resolving to a fixed policy.
//
// Quick start:
//
//	client := armor.New(
//	    armor.WithBaseURL("https://api.example.com"),
//	    armor.WithSecurityLevel(armor.SecurityHigh),
//	    armor.WithAPIKey(os.Getenv("API_KEY")),
//	)
//
//	resp, err := client.Post(ctx, "/users", map[string]any{"name": "ada"})
//	if err != nil {
//	    if errors.Is(err, armor.ErrRateLimitExceeded) {
//	        // back off and retry
//	    }
//	}
//	fmt.Println(resp.Status, resp.Data)
//
// Guard failures (missing API key, oversized payload, rate limit) are
// rejected synchronously with zero network cost. The only automatic retry
// is a single refetch-and-resend after a server-side CSRF token rejection;
// rate-limit and timeout failures surface immediately so callers can apply
// their own backoff.
package armor

import (
	"net/http"

	"github.com/Sentinel-Gate/armor/internal/policy"
)

// Security levels, re-exported so callers never import internal packages.
const (
	// SecurityLow applies basic sanitization only.
	SecurityLow = policy.LevelLow

	// SecurityMedium is the default tier: sanitization, CSRF tokens,
	// 10 req/s, 1 MiB payload cap.
	SecurityMedium = policy.LevelMedium

	// SecurityHigh is the strictest tier: strict sanitization, CSRF
	// tokens, 5 req/s, 512 KiB payload cap, API key required.
	SecurityHigh = policy.LevelHigh
)

// SecurityLevel is a policy tier. Unknown values resolve to medium.
type SecurityLevel = policy.Level

// Response is the normalized success value for a request.
type Response struct {
	// Status is the HTTP status code.
	Status int `json:"status"`

	// Data is the parsed response body: decoded JSON for JSON bodies,
	// a string otherwise, nil when the body was empty.
	Data any `json:"data"`

	// Headers are the response headers.
	Headers http.Header `json:"headers"`
}

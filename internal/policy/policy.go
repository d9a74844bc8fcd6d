// Package policy defines the security levels and the fixed policy each
// level resolves to. Policies are pure values: the only configurable knob
// is the level itself, never an individual threshold.
package policy

// Level is a security tier. It is a closed set; anything outside the three
// known values resolves to the Medium policy.
type Level string

const (
	// LevelLow applies basic sanitization only. No CSRF, no rate limit,
	// no payload cap.
	LevelLow Level = "low"

	// LevelMedium is the default tier: sanitization, CSRF tokens,
	// 10 req/s, 1 MiB payload cap.
	LevelMedium Level = "medium"

	// LevelHigh is the strictest tier: strict sanitization, CSRF tokens,
	// 5 req/s, 512 KiB payload cap, API key and session validation required.
	LevelHigh Level = "high"
)

// SanitizeMode selects how aggressively string values are cleaned.
type SanitizeMode string

const (
	// SanitizeBasic escapes markup-significant characters.
	SanitizeBasic SanitizeMode = "basic"

	// SanitizeStrict escapes markup characters and removes ASCII
	// control characters.
	SanitizeStrict SanitizeMode = "strict"
)

// Payload size caps per level, in bytes.
const (
	mediumMaxPayloadBytes = 1 << 20 // 1 MiB
	highMaxPayloadBytes   = 512 << 10
)

// Policy is the resolved parameter set for one security level.
// A zero value for MaxRequestsPerSecond or MaxPayloadBytes means unbounded.
type Policy struct {
	// Sanitize enables payload sanitization.
	Sanitize bool

	// SanitizeMode is the sanitization strictness. Only meaningful when
	// Sanitize is true.
	SanitizeMode SanitizeMode

	// CSRFRequired attaches a CSRF token to every request.
	CSRFRequired bool

	// MaxRequestsPerSecond caps admitted requests per trailing second.
	// 0 means unbounded.
	MaxRequestsPerSecond int

	// MaxPayloadBytes caps the serialized request body size.
	// 0 means unbounded.
	MaxPayloadBytes int64

	// APIKeyRequired rejects requests before dispatch when the client
	// has no API key configured.
	APIKeyRequired bool

	// SessionValidation requires the transport session to be validated
	// before dispatch.
	SessionValidation bool
}

// policies is the per-level lookup table. Levels are a fixed, small set,
// so a table beats dispatch.
var policies = map[Level]Policy{
	LevelLow: {
		Sanitize:     true,
		SanitizeMode: SanitizeBasic,
	},
	LevelMedium: {
		Sanitize:             true,
		SanitizeMode:         SanitizeBasic,
		CSRFRequired:         true,
		MaxRequestsPerSecond: 10,
		MaxPayloadBytes:      mediumMaxPayloadBytes,
	},
	LevelHigh: {
		Sanitize:             true,
		SanitizeMode:         SanitizeStrict,
		CSRFRequired:         true,
		MaxRequestsPerSecond: 5,
		MaxPayloadBytes:      highMaxPayloadBytes,
		APIKeyRequired:       true,
		SessionValidation:    true,
	},
}

// Resolve returns the policy for a level. It is total: an unrecognized
// level falls back to the Medium policy so a misconfigured client stays
// usable instead of erroring on every call.
func Resolve(level Level) Policy {
	if p, ok := policies[level]; ok {
		return p
	}
	return policies[LevelMedium]
}

// ParseLevel normalizes a string into a Level. Unknown strings map to
// LevelMedium, mirroring Resolve.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelLow, LevelMedium, LevelHigh:
		return Level(s)
	default:
		return LevelMedium
	}
}

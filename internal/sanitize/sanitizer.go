// Package sanitize provides recursive payload sanitization for outgoing
// request bodies. It cleans string values in JSON-like structures so that
// markup-significant characters never reach the wire unescaped.
package sanitize

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode"

	"github.com/Sentinel-Gate/armor/internal/policy"
)

// MaxDepth is the maximum nesting depth the sanitizer will walk.
// Payloads nested deeper than this fail closed rather than risking
// unbounded recursion on adversarial input.
const MaxDepth = 64

// ErrTooComplex is returned when a payload exceeds MaxDepth.
var ErrTooComplex = errors.New("payload nesting exceeds maximum depth")

// basicReplacer escapes characters that could be interpreted as script
// content. The replacements introduce only '&', '#' and ';', none of which
// are themselves escaped, so sanitization is idempotent.
var basicReplacer = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Sanitizer cleans request payloads according to a sanitize mode.
// It is stateless and safe for concurrent use.
type Sanitizer struct {
	mode policy.SanitizeMode
}

// New creates a Sanitizer for the given mode.
func New(mode policy.SanitizeMode) *Sanitizer {
	return &Sanitizer{mode: mode}
}

// Sanitize returns a sanitized copy of v. The input is never mutated:
// maps and slices are rebuilt, strings are replaced, and primitives
// (numbers, booleans, nil) pass through unchanged. Anything else, like a
// struct, is converted to its generic JSON form and cleaned in that shape.
//
// It returns ErrTooComplex when nesting exceeds MaxDepth.
func (s *Sanitizer) Sanitize(v any) (any, error) {
	return s.sanitize(v, 0)
}

func (s *Sanitizer) sanitize(v any, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, ErrTooComplex
	}

	switch val := v.(type) {
	case string:
		return s.sanitizeString(val), nil

	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			clean, err := s.sanitize(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[s.sanitizeString(k)] = clean
		}
		return out, nil

	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			clean, err := s.sanitize(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = clean
		}
		return out, nil

	case nil:
		return v, nil

	case bool, float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		json.Number:
		return v, nil

	default:
		// Structs, pointers, and typed maps are normalized to their
		// generic JSON form first so their string fields are cleaned
		// the same way map payloads are.
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, err
		}
		return s.sanitize(generic, depth)
	}
}

// sanitizeString escapes markup characters. In strict mode it also removes
// ASCII control characters (including tab and newline) and null bytes.
func (s *Sanitizer) sanitizeString(str string) string {
	str = basicReplacer.Replace(str)

	if s.mode == policy.SanitizeStrict {
		str = strings.Map(func(r rune) rune {
			if unicode.IsControl(r) {
				return -1
			}
			return r
		}, str)
	} else {
		// Null bytes are never acceptable, even in basic mode.
		str = strings.ReplaceAll(str, "\x00", "")
	}

	return str
}

package sanitize

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Sentinel-Gate/armor/internal/policy"
)

func TestSanitize_BasicEscapesMarkup(t *testing.T) {
	t.Parallel()

	s := New(policy.SanitizeBasic)

	tests := []struct {
		in   string
		want string
	}{
		{`<script>alert(1)</script>`, `&lt;script&gt;alert(1)&lt;/script&gt;`},
		{`plain text`, `plain text`},
		{`"quoted" and 'single'`, `&quot;quoted&quot; and &#39;single&#39;`},
		{"null\x00byte", "nullbyte"},
	}
	for _, tt := range tests {
		got, err := s.Sanitize(tt.in)
		if err != nil {
			t.Fatalf("Sanitize(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitize_StrictRemovesControlCharacters(t *testing.T) {
	t.Parallel()

	s := New(policy.SanitizeStrict)

	got, err := s.Sanitize("a\tb\nc\x01d<e")
	if err != nil {
		t.Fatalf("Sanitize() error: %v", err)
	}
	if got != "abcd&lt;e" {
		t.Errorf("Sanitize() = %q, want %q", got, "abcd&lt;e")
	}
}

func TestSanitize_BasicKeepsWhitespaceControls(t *testing.T) {
	t.Parallel()

	s := New(policy.SanitizeBasic)

	got, err := s.Sanitize("a\tb\nc")
	if err != nil {
		t.Fatalf("Sanitize() error: %v", err)
	}
	if got != "a\tb\nc" {
		t.Errorf("basic mode should keep tab/newline, got %q", got)
	}
}

func TestSanitize_NonStringPrimitivesPassThrough(t *testing.T) {
	t.Parallel()

	s := New(policy.SanitizeBasic)

	for _, v := range []any{42, 3.14, true, nil} {
		got, err := s.Sanitize(v)
		if err != nil {
			t.Fatalf("Sanitize(%v) error: %v", v, err)
		}
		if got != v {
			t.Errorf("Sanitize(%v) = %v, want unchanged", v, got)
		}
	}
}

func TestSanitize_NormalizesStructs(t *testing.T) {
	t.Parallel()

	s := New(policy.SanitizeBasic)

	type profile struct {
		Name string   `json:"name"`
		Tags []string `json:"tags"`
	}
	got, err := s.Sanitize(profile{
		Name: "<b>ada</b>",
		Tags: []string{"x<y"},
	})
	if err != nil {
		t.Fatalf("Sanitize() error: %v", err)
	}
	want := map[string]any{
		"name": "&lt;b&gt;ada&lt;/b&gt;",
		"tags": []any{"x&lt;y"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize() = %#v, want %#v", got, want)
	}
}

func TestSanitize_NormalizesNestedStructs(t *testing.T) {
	t.Parallel()

	s := New(policy.SanitizeBasic)

	type inner struct {
		Value string `json:"value"`
	}
	got, err := s.Sanitize(map[string]any{"payload": inner{Value: "<i>"}})
	if err != nil {
		t.Fatalf("Sanitize() error: %v", err)
	}
	want := map[string]any{
		"payload": map[string]any{"value": "&lt;i&gt;"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize() = %#v, want %#v", got, want)
	}
}

func TestSanitize_RecursesIntoStructures(t *testing.T) {
	t.Parallel()

	s := New(policy.SanitizeBasic)

	in := map[string]any{
		"name": "<b>",
		"tags": []any{"<i>", 7},
		"meta": map[string]any{"note": `"hi"`},
	}
	want := map[string]any{
		"name": "&lt;b&gt;",
		"tags": []any{"&lt;i&gt;", 7},
		"meta": map[string]any{"note": "&quot;hi&quot;"},
	}

	got, err := s.Sanitize(in)
	if err != nil {
		t.Fatalf("Sanitize() error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize() = %#v, want %#v", got, want)
	}
}

func TestSanitize_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	s := New(policy.SanitizeBasic)

	in := map[string]any{
		"name": "<script>",
		"list": []any{"<a>"},
	}
	got, err := s.Sanitize(in)
	if err != nil {
		t.Fatalf("Sanitize() error: %v", err)
	}
	if in["name"] != "<script>" {
		t.Errorf("input map mutated: %q", in["name"])
	}
	if in["list"].([]any)[0] != "<a>" {
		t.Errorf("input slice mutated: %q", in["list"].([]any)[0])
	}
	if reflect.ValueOf(got).Pointer() == reflect.ValueOf(in).Pointer() {
		t.Error("Sanitize() returned input map instead of a copy")
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	t.Parallel()

	payloads := []any{
		`<script>alert("xss")</script>`,
		map[string]any{"a": "<b>", "n": 1, "l": []any{"'x'", nil}},
		"already & clean",
	}

	for _, mode := range []policy.SanitizeMode{policy.SanitizeBasic, policy.SanitizeStrict} {
		s := New(mode)
		for _, p := range payloads {
			once, err := s.Sanitize(p)
			if err != nil {
				t.Fatalf("Sanitize() error: %v", err)
			}
			twice, err := s.Sanitize(once)
			if err != nil {
				t.Fatalf("second Sanitize() error: %v", err)
			}
			if !reflect.DeepEqual(once, twice) {
				t.Errorf("mode %s: not idempotent: %#v vs %#v", mode, once, twice)
			}
		}
	}
}

func TestSanitize_DepthCapFailsClosed(t *testing.T) {
	t.Parallel()

	s := New(policy.SanitizeBasic)

	// Build a payload nested beyond MaxDepth.
	var deep any = "leaf"
	for i := 0; i < MaxDepth+2; i++ {
		deep = map[string]any{"d": deep}
	}

	_, err := s.Sanitize(deep)
	if !errors.Is(err, ErrTooComplex) {
		t.Fatalf("Sanitize(deep) error = %v, want ErrTooComplex", err)
	}
}

func TestSanitize_DepthWithinCapSucceeds(t *testing.T) {
	t.Parallel()

	s := New(policy.SanitizeBasic)

	var deep any = "leaf"
	for i := 0; i < MaxDepth-1; i++ {
		deep = map[string]any{"d": deep}
	}

	if _, err := s.Sanitize(deep); err != nil {
		t.Fatalf("Sanitize(within cap) error: %v", err)
	}
}

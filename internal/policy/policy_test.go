package policy

import "testing"

func TestResolve_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level Level
		want  Policy
	}{
		{
			level: LevelLow,
			want: Policy{
				Sanitize:     true,
				SanitizeMode: SanitizeBasic,
			},
		},
		{
			level: LevelMedium,
			want: Policy{
				Sanitize:             true,
				SanitizeMode:         SanitizeBasic,
				CSRFRequired:         true,
				MaxRequestsPerSecond: 10,
				MaxPayloadBytes:      1048576,
			},
		},
		{
			level: LevelHigh,
			want: Policy{
				Sanitize:             true,
				SanitizeMode:         SanitizeStrict,
				CSRFRequired:         true,
				MaxRequestsPerSecond: 5,
				MaxPayloadBytes:      524288,
				APIKeyRequired:       true,
				SessionValidation:    true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			t.Parallel()
			got := Resolve(tt.level)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %+v, want %+v", tt.level, got, tt.want)
			}
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()

	for _, level := range []Level{LevelLow, LevelMedium, LevelHigh} {
		first := Resolve(level)
		for i := 0; i < 10; i++ {
			if got := Resolve(level); got != first {
				t.Fatalf("Resolve(%q) not deterministic: %+v vs %+v", level, got, first)
			}
		}
	}
}

func TestResolve_UnknownFallsBackToMedium(t *testing.T) {
	t.Parallel()

	medium := Resolve(LevelMedium)
	for _, level := range []Level{"", "paranoid", "LOW", "Medium"} {
		if got := Resolve(level); got != medium {
			t.Errorf("Resolve(%q) = %+v, want medium policy %+v", level, got, medium)
		}
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Level
	}{
		{"low", LevelLow},
		{"medium", LevelMedium},
		{"high", LevelHigh},
		{"", LevelMedium},
		{"bogus", LevelMedium},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if !cfg.Security {
		t.Error("security should default to enabled")
	}
	if cfg.SecurityLevel != "medium" {
		t.Errorf("SecurityLevel = %q, want medium", cfg.SecurityLevel)
	}
	if cfg.Timeout != "10s" {
		t.Errorf("Timeout = %q, want 10s", cfg.Timeout)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SecurityLevel != "medium" || cfg.Timeout != "10s" {
		t.Errorf("Load() without file = %+v, want defaults", cfg)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "armor.yaml")
	content := strings.Join([]string{
		"security_level: high",
		"base_url: https://api.example.com",
		"timeout: 2s",
		"default_headers:",
		"  X-App: armor-test",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SecurityLevel != "high" {
		t.Errorf("SecurityLevel = %q, want high", cfg.SecurityLevel)
	}
	if cfg.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.TimeoutDuration().Seconds() != 2 {
		t.Errorf("TimeoutDuration = %v, want 2s", cfg.TimeoutDuration())
	}
	if cfg.DefaultHeaders["X-App"] != "armor-test" {
		t.Errorf("DefaultHeaders = %v", cfg.DefaultHeaders)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "armor.yaml")
	if err := os.WriteFile(path, []byte("security_level: low\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ARMOR_SECURITY_LEVEL", "high")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SecurityLevel != "high" {
		t.Errorf("SecurityLevel = %q, want env override high", cfg.SecurityLevel)
	}
}

func TestLoad_InvalidLevelRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "armor.yaml")
	if err := os.WriteFile(path, []byte("security_level: paranoid\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load() with invalid level should fail validation")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"bad level", func(c *Config) { c.SecurityLevel = "extreme" }, true},
		{"bad timeout", func(c *Config) { c.Timeout = "soon" }, true},
		{"negative timeout", func(c *Config) { c.Timeout = "-1s" }, true},
		{"bad url", func(c *Config) { c.BaseURL = "not a url" }, true},
		{"valid cache", func(c *Config) { c.CacheTTL = "5s"; c.CacheMaxSize = 100 }, false},
		{"bad cache size", func(c *Config) { c.CacheMaxSize = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// chdirTemp switches to an empty directory so Load doesn't pick up a stray
// armor.yaml from the working tree.
func chdirTemp(t *testing.T) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

// Package config provides file and environment configuration for building
// clients outside of code, primarily for the CLI. Everything here maps
// onto the client's functional options; applications embedding the library
// can skip this package entirely.
package config

import (
	"fmt"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the declarative client configuration. Field defaults mirror
// the in-code option defaults.
type Config struct {
	// Security toggles the policy pipeline. When false, only timeout
	// control and result normalization apply.
	Security bool `yaml:"security" mapstructure:"security"`

	// SecurityLevel selects the policy tier: low, medium, or high.
	SecurityLevel string `yaml:"security_level" mapstructure:"security_level" validate:"omitempty,oneof=low medium high"`

	// Timeout is the per-request deadline (e.g. "10s", "1500ms").
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`

	// BaseURL is prefixed onto relative request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// APIKey authenticates requests. Required by the high security level.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// DefaultHeaders are merged into every request.
	DefaultHeaders map[string]string `yaml:"default_headers" mapstructure:"default_headers"`

	// CacheTTL enables the GET response cache when non-empty (e.g. "5s").
	CacheTTL string `yaml:"cache_ttl" mapstructure:"cache_ttl" validate:"omitempty,duration"`

	// CacheMaxSize bounds the response cache entry count.
	CacheMaxSize int `yaml:"cache_max_size" mapstructure:"cache_max_size" validate:"omitempty,gt=0"`
}

// Default returns the built-in configuration: security on, medium level,
// 10 second timeout, cache off.
func Default() Config {
	return Config{
		Security:      true,
		SecurityLevel: "medium",
		Timeout:       "10s",
	}
}

// TimeoutDuration parses the Timeout field. Zero when unset or invalid;
// callers fall back to the default.
func (c Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// CacheTTLDuration parses the CacheTTL field.
func (c Config) CacheTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.CacheTTL)
	return d
}

// Load reads configuration from file and environment. If file is empty it
// searches for armor.yaml/.yml in the current directory, $HOME/.armor, and
// /etc/armor. Environment variables with the ARMOR_ prefix override file
// values (ARMOR_SECURITY_LEVEL, ARMOR_BASE_URL, ...). A missing config
// file is not an error; defaults apply.
func Load(file string) (Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else if found := findConfigFile(); found != "" {
		v.SetConfigFile(found)
	}

	v.SetEnvPrefix("ARMOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindKeys(v)

	cfg := Default()
	v.SetDefault("security", cfg.Security)
	v.SetDefault("security_level", cfg.SecurityLevel)
	v.SetDefault("timeout", cfg.Timeout)

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Viper lowercases map keys; restore canonical header form.
	if len(cfg.DefaultHeaders) > 0 {
		canonical := make(map[string]string, len(cfg.DefaultHeaders))
		for k, val := range cfg.DefaultHeaders {
			canonical[textproto.CanonicalMIMEHeaderKey(k)] = val
		}
		cfg.DefaultHeaders = canonical
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// findConfigFile searches standard locations for an armor config file with
// an explicit YAML extension.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".armor"),
		"/etc/armor",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "armor"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindKeys binds all config keys for environment variable support.
// Example: ARMOR_BASE_URL overrides base_url.
func bindKeys(v *viper.Viper) {
	_ = v.BindEnv("security")
	_ = v.BindEnv("security_level")
	_ = v.BindEnv("timeout")
	_ = v.BindEnv("base_url")
	_ = v.BindEnv("api_key")
	_ = v.BindEnv("cache_ttl")
	_ = v.BindEnv("cache_max_size")
}

// Package cmd provides the CLI commands for armor.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/armor"
	"github.com/Sentinel-Gate/armor/internal/config"
)

var (
	cfgFile       string
	flagBaseURL   string
	flagLevel     string
	flagAPIKey    string
	flagTimeout   time.Duration
	flagTrace     bool
	flagVerbose   bool
	flagHeaders   []string
	flagNoSecures bool
)

var rootCmd = &cobra.Command{
	Use:   "armor",
	Short: "armor - security-hardened HTTP requests from the command line",
	Long: `armor sends HTTP requests through a security policy pipeline:
sanitization, CSRF tokens, rate limiting, payload-size checks, and
timeout control, parameterized by a security level (low/medium/high).

Configuration:
  Config is loaded from armor.yaml in the current directory,
  $HOME/.armor/, or /etc/armor/.

  Environment variables override config values with the ARMOR_ prefix.
  Example: ARMOR_SECURITY_LEVEL=high

Commands:
  get         Send a GET request
  send        Send a request with any method and an optional JSON body
  config      Print the effective configuration
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./armor.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "base URL prefixed onto request paths")
	rootCmd.PersistentFlags().StringVar(&flagLevel, "security-level", "", "security level: low, medium, or high")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "API key sent as a bearer token")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "per-request timeout (e.g. 10s)")
	rootCmd.PersistentFlags().BoolVar(&flagTrace, "trace", false, "emit OpenTelemetry spans to stdout")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringArrayVarP(&flagHeaders, "header", "H", nil, "default header, key=value (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&flagNoSecures, "no-security", false, "disable the policy pipeline (timeout only)")
}

// loadConfig loads the file/env configuration and layers CLI flags on top.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagLevel != "" {
		cfg.SecurityLevel = flagLevel
	}
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}
	if flagTimeout > 0 {
		cfg.Timeout = flagTimeout.String()
	}
	if flagNoSecures {
		cfg.Security = false
	}
	if len(flagHeaders) > 0 {
		if cfg.DefaultHeaders == nil {
			cfg.DefaultHeaders = make(map[string]string, len(flagHeaders))
		}
		for _, h := range flagHeaders {
			k, v, ok := splitHeader(h)
			if !ok {
				return config.Config{}, fmt.Errorf("invalid header %q, expected key=value", h)
			}
			cfg.DefaultHeaders[k] = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// buildClient constructs the armor client from the effective configuration.
func buildClient() (*armor.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return armor.NewFromConfig(cfg, armor.WithLogger(logger)), nil
}

// splitHeader parses a key=value flag.
func splitHeader(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			if i == 0 {
				return "", "", false
			}
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

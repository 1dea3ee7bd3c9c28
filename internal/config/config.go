// Package config defines gateway configuration and its loading hooks.
//
// Conventions:
//   - New() returns defaults; Load layers a YAML file and env vars on top.
//   - The backend origin has no default: a gateway started without one fails
//     validation instead of silently talking to a local address.
//   - Validation errors wrap ErrInvalidConfig, loader errors wrap ErrLoadConfig.
package config

import (
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`
	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// BackendURL is the origin of the backend service, e.g. "http://127.0.0.1:8000".
	BackendURL string `koanf:"backend_url"`
	// BackendTimeoutMS bounds every outbound backend call.
	BackendTimeoutMS int `koanf:"backend_timeout_ms"`
	// MaxBodyBytes caps inbound request bodies forwarded to the backend.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
	// CORSAllowedOrigins is a comma separated list of browser origins.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":8080",
		BackendURL:         "",
		BackendTimeoutMS:   15_000,
		MaxBodyBytes:       1 << 20,
		CORSAllowedOrigins: "http://localhost:3000",
	}
}

// BackendTimeout returns BackendTimeoutMS as a duration.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutMS) * time.Millisecond
}

// AllowedOrigins splits CORSAllowedOrigins, dropping blanks.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

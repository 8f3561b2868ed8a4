// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Engine   EngineConfig
	Snapshot SnapshotConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080).
	// PORT is honored as a fallback for PaaS environments.
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response
	// (default: 0 so WebSocket sessions stay open)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// AllowedOrigins is a comma-separated list of origins allowed to open
	// WebSocket sessions. Empty means same-origin only; "*" allows any.
	AllowedOrigins []string `env:"SERVER_ALLOWED_ORIGINS"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// forwarding headers are believed for client IP extraction.
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`
}

// EngineConfig holds dataset engine settings.
type EngineConfig struct {
	// HistoryLimit is the maximum number of undoable operations kept (default: 50)
	HistoryLimit int `env:"ENGINE_HISTORY_LIMIT" default:"50"`

	// QueueSize is the buffered depth of the engine request queue (default: 64)
	QueueSize int `env:"ENGINE_QUEUE_SIZE" default:"64"`

	// StrictCommands makes unknown command verbs an error instead of a
	// logged no-op (default: false)
	StrictCommands bool `env:"ENGINE_STRICT_COMMANDS" default:"false"`
}

// SnapshotConfig holds snapshot persistence settings.
type SnapshotConfig struct {
	// Path is the bbolt database file for dataset snapshots (default: griddle.db)
	Path string `env:"SNAPSHOT_PATH" default:"griddle.db"`

	// AutosaveInterval is the debounce window between a mutation and the
	// automatic snapshot write (default: 2s)
	AutosaveInterval time.Duration `env:"SNAPSHOT_AUTOSAVE_INTERVAL" default:"2s"`
}

// UploadConfig holds dataset upload settings.
type UploadConfig struct {
	// MaxBytes is the maximum allowed upload size in bytes (default: 32MB)
	MaxBytes int64 `env:"UPLOAD_MAX_BYTES" default:"33554432"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the rate limit per client IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + strconv.Itoa(c.Port)
	}
	return c.Host + ":" + strconv.Itoa(c.Port)
}

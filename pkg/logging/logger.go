// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Valid reports whether l names a known level.
func (l LogLevel) Valid() bool {
	switch strings.ToLower(string(l)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service and Version are attached to every entry when set.
	Service string
	Version string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Pretty:  false,
		Output:  os.Stderr,
		Service: "comet-tracker",
	}
}

// Setup configures the global zerolog logger.
// Component loggers derive from the global logger, so call Setup before
// constructing them.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logCtx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		logCtx = logCtx.Str("service", cfg.Service)
	}
	if cfg.Version != "" {
		logCtx = logCtx.Str("version", cfg.Version)
	}
	logger := logCtx.Logger()

	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRequestID returns a context carrying a logger tagged with requestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	logger := FromContext(ctx).With().Str("request_id", requestID).Logger()
	return logger.WithContext(ctx)
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit, age, written_at)
//   - Dispatch slot handling
//   - Stored series too short for a request
//
// Info: Normal operation events
//   - Stale snapshot served
//   - Store selected, schema ensured
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Upstream fetch or parse failures (degraded response served)
//   - Cache read/write errors (treated as miss / swallowed)
//   - Static fallback served
//   - Client errors (4xx)
//
// Error: Error conditions requiring attention
//   - Handler panics
//   - Server errors (5xx)
//   - Configuration errors
//
// Context Fields:
//   - component: horizons, tracker, dispatch, cache, api
//   - object_id: tracked object id
//   - kind: cache entry kind (current, historical)
//   - backend: store backend (redis, postgres, memory)
//   - request_id: X-Request-ID of the HTTP request
//   - status_code: upstream or HTTP status code
//   - error_class: upstream error classification
//   - duration: request duration

// Package logging configures zerolog for the dump tool and its library packages.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty switches from JSON lines to a human-readable console format.
	Pretty bool

	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

// DefaultConfig returns info-level JSON logging to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// VerboseLevel maps the CLI verbose switch to a level.
func VerboseLevel(verbose bool) LogLevel {
	if verbose {
		return LevelDebug
	}
	return LevelInfo
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

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

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: request flow (url, status, duration), cache hits and misses,
// pagination cursors, filter decisions.
//
// Info: notebook and section boundaries, pages exported, skipped groups and
// sections, run summary.
//
// Warn: rate limit waits (HTTP 429), throttle windows carried over from a
// previous run, cache errors that fall back to a direct fetch.
//
// Error: upstream failures, malformed responses, notebook not found.
//
// Context Fields:
//   - url: request URL
//   - endpoint: resource kind derived from the URL (notebooks, sections, pages, content)
//   - status: HTTP status code
//   - attempt: retry attempt number
//   - wait: backoff duration
//   - section: section output path
//   - page: page title

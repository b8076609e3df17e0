// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // json, console
	Principal string // service principal added to every line
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
	}
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Principal != "" {
		ctx = ctx.Str("service", cfg.Principal)
	}
	log.Logger = ctx.Logger()
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return log.Logger
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}

// WithSession returns a logger with session context.
func WithSession(component, sessionKey string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Str("sessionKey", sessionKey).
		Logger()
}

// WithRun returns a logger with analysis run context.
func WithRun(runID, companyID, jobID, interviewID string) zerolog.Logger {
	return log.With().
		Str("runId", runID).
		Str("companyId", companyID).
		Str("jobId", jobID).
		Str("interviewId", interviewID).
		Logger()
}

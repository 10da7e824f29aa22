// Package logging provides structured logging configuration.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level  string
	Pretty bool
	// Output defaults to stderr.
	Output io.Writer
}

// New builds a logger and installs it as the global zerolog logger.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	SetLevel(cfg.Level)
	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// SetLevel changes the global level. Unknown levels fall back to info and
// are reported as false.
func SetLevel(level string) bool {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return false
	}
	zerolog.SetGlobalLevel(parsed)
	return true
}

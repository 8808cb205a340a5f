// Package logging builds the structured logger used throughout the
// server: the lightweight debug/info/error facility §6 calls for,
// backed by zerolog the way the teacher's monitoring package wires it.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level and output format for New.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // console-writer output instead of JSON
}

// New builds a zerolog.Logger with a timestamp and a fixed service
// field, matching the shape the teacher's NewLogger produces.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	return zerolog.New(output).With().
		Timestamp().
		Str("service", "miniredis").
		Logger()
}

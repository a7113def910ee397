package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Opts for the logger.
type Opts struct {
	Level  string
	Format string
	Output io.Writer
}

// New instantiates and returns a logger.
func New(opts *Opts) (zerolog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", FormatConsole:
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	case FormatJSON:
	default:
		return zerolog.Nop(), errors.Errorf("unknown logging format: %s", opts.Format)
	}
	return zerolog.New(output).Level(level).With().Timestamp().Logger(), nil
}

// ParseLevel parses a logging level, defaulting to info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, errors.Errorf("unknown logging level: %s", s)
	}
}

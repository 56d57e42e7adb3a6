// Package logging builds the zerolog loggers used across hitcontract.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w at the named level ("debug", "info",
// "warn", "error", "disabled"). Unknown levels fall back to "warn". When
// pretty is set the output is human-readable instead of JSON lines.
func New(w io.Writer, level string, pretty bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.WarnLevel
	}
	return lvl
}

// Nop is the logger library packages use until one is configured.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

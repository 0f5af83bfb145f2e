// Package logging wires log/slog for the monitor and its command line.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog default with the given level and format.
// If w is nil, os.Stderr is used. Format must be "text" or "json".
func Init(level slog.Level, format string, w ...io.Writer) {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// Setup parses a level name and initializes the default logger.
func Setup(level, format string, w io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("log format %q: want text or json", format)
	}
	Init(lvl, format, w)
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}

// New returns a logger with a "component" attribute for module-scoped logging.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// ForJob scopes a component logger to one job of a batch.
func ForJob(component, job string, number, total int) *slog.Logger {
	return New(component).With(
		slog.String("job", job),
		slog.String("of", fmt.Sprintf("%d/%d", number, total)),
	)
}

// Discard returns a logger that drops every record. Pass it where a
// component takes a logger but should stay quiet.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

package log

import (
	"errors"
	"io"
	"log/slog"

	charmlog "github.com/charmbracelet/log"
)

// Output formats understood by New.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// ErrUnknownFormat is returned by New for an unsupported format.
var ErrUnknownFormat = errors.New("unknown log format")

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// New returns a secure logger writing to w in the given format.
// An empty format selects FormatText. Verbose selects debug level,
// otherwise only warnings and errors are logged.
func New(w io.Writer, format string, verbose bool) (*slog.Logger, error) {
	switch format {
	case FormatText, "":
		return NewSecureLogger(w, verbose), nil
	case FormatJSON:
		return NewSecureJSONLogger(w, verbose), nil
	case FormatConsole:
		return NewConsoleLogger(w, verbose), nil
	default:
		return nil, ErrUnknownFormat
	}
}

// NewSecureLogger creates a logger with logfmt-style text output.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)})
	return slog.New(NewSecureHandler(h))
}

// NewSecureJSONLogger creates a logger with one JSON object per line,
// suitable for log aggregation.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)})
	return slog.New(NewSecureHandler(h))
}

// NewConsoleLogger creates a logger with colourised, human-friendly output
// for terminals. Colours are disabled automatically when w is not a TTY.
func NewConsoleLogger(w io.Writer, verbose bool) *slog.Logger {
	level := charmlog.WarnLevel
	if verbose {
		level = charmlog.DebugLevel
	}

	h := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "sitesearch",
	})

	return slog.New(NewSecureHandler(h))
}

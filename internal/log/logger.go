// Package log builds the zerolog loggers used by the trainer and CLI.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options captures logger settings.
type Options struct {
	Level  string    // "debug", "info", ... (default: "info")
	Format string    // FormatConsole or FormatJSON (default: FormatConsole)
	Writer io.Writer // destination (default: os.Stderr)
}

// New creates a logger from opts.
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	switch opts.Format {
	case "", FormatConsole:
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen, NoColor: !isTerminal(writer)}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: must be %q or %q", opts.Format, FormatConsole, FormatJSON)
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger(), nil
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

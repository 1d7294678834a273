package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Default is the process-wide logger, replaced by Init
	Default = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Init configures the default logger. An empty level falls back to LOG_LEVEL
// and then to info.
func Init(level string, console bool) zerolog.Logger {
	var out io.Writer = os.Stdout
	if console {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	Default = New(out, level)
	Default.Debug().
		Str("level", Default.GetLevel().String()).
		Msg("Logger initialized")
	return Default
}

// New creates a logger writing to w at the given level
func New(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel resolves a level name, consulting LOG_LEVEL when name is empty
func ParseLevel(name string) zerolog.Level {
	if name == "" {
		name = os.Getenv("LOG_LEVEL")
	}
	if name == "" {
		return zerolog.InfoLevel
	}

	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// For returns a sub-logger of the default logger tagged with component
func For(component string) zerolog.Logger {
	return Default.With().Str("component", component).Logger()
}

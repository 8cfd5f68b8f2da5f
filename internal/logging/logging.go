// Package logging provides structured logging for the CLI.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New creates a console logger at the given level. Unknown levels fall back
// to info. Output goes to stderr so stdout stays clean for command output
// and progress bars.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}

	return zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

package config

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogging configures the global zerolog logger. Output defaults to
// stderr.
func SetupLogging(level, format string, out io.Writer) error {
	if out == nil {
		out = os.Stderr
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	switch format {
	case "", "console":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
	case "json":
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

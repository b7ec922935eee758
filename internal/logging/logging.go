package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// SetLevel applies level globally. Unknown levels fall back to warn and
// report false.
func SetLevel(level string) bool {
	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	case "off":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)

		return false
	}

	return true
}

// New returns a timestamped logger writing JSON to w, or to stdout when w is
// nil.
func New(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}

	log := zerolog.New(w).With().Timestamp().Logger()

	if !SetLevel(level) {
		log.Warn().Str("log_level", level).Msg("unknown log level, setting level to warn")
	}

	return log
}

// NewConsole is New with human readable output, for the commands.
func NewConsole(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	return New(level, zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"})
}

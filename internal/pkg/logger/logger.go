package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds the process logger. LOG_LEVEL and LOG_FORMAT come straight from
// the environment so the logger can exist before config is loaded.
func New(appName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	l := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", appName).
		Logger().
		Level(level)

	if strings.TrimSpace(os.Getenv("LOG_FORMAT")) == "console" {
		l = l.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return l
}

package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const serviceName = "sk3-portal"

// New builds the process logger. Development gets the console writer, other
// environments emit JSON. level overrides the environment default when it
// parses.
func New(env, level string) zerolog.Logger {
	return newWithWriter(os.Stderr, env, level)
}

func newWithWriter(out io.Writer, env, level string) zerolog.Logger {
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	log := zerolog.New(out).With().Timestamp().Str("service", serviceName).Logger()

	lvl := zerolog.DebugLevel
	if env == "production" {
		lvl = zerolog.InfoLevel
	}
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil && level != "" {
		lvl = parsed
	}
	return log.Level(lvl)
}

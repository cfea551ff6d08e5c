// Package logger holds the process-wide zerolog logger used by code that has no injected logger
// (middleware, startup, config parsing).
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var defaultLogger zerolog.Logger

// Config represents logger configuration
type Config struct {
	// Level is a zerolog level name; unknown names fall back to info
	Level string
	// Pretty switches to the human-readable console writer
	Pretty bool
	// Output defaults to os.Stdout
	Output io.Writer
	// Service is attached to every event when set
	Service string
}

// ParseLevel maps a configured level name onto a zerolog level
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Configure replaces the global logger and returns it for injection into services.
func Configure(config Config) zerolog.Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ParseLevel(config.Level))

	writer := config.Output
	if config.Pretty {
		writer = zerolog.ConsoleWriter{Out: config.Output, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(writer).With().Timestamp()
	if config.Service != "" {
		ctx = ctx.Str("service", config.Service)
	}
	defaultLogger = ctx.Logger()
	log.Logger = defaultLogger
	return defaultLogger
}

func Debug() *zerolog.Event { return defaultLogger.Debug() }

func Info() *zerolog.Event { return defaultLogger.Info() }

func Warn() *zerolog.Event { return defaultLogger.Warn() }

func Error() *zerolog.Event { return defaultLogger.Error() }

func init() {
	Configure(Config{Level: "info", Pretty: true})
}

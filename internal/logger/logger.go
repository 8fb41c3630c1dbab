package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level aliases zerolog's level type so callers don't import zerolog directly.
type Level = zerolog.Level

var (
	mu  sync.RWMutex
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// ParseLevel parses a textual level (trace, debug, info, warn, error, fatal, panic).
func ParseLevel(s string) (Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// SetLevel sets the global minimum level.
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	log = log.Level(level)
}

// logger returns a pointer to a snapshot of the global logger; zerolog's
// level methods take pointer receivers.
func logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

func Trace(format string, args ...any) { logger().Trace().Msgf(format, args...) }
func Debug(format string, args ...any) { logger().Debug().Msgf(format, args...) }
func Info(format string, args ...any)  { logger().Info().Msgf(format, args...) }
func Warn(format string, args ...any)  { logger().Warn().Msgf(format, args...) }
func Error(format string, args ...any) { logger().Error().Msgf(format, args...) }

// Fatal logs the message and exits with status 1.
func Fatal(format string, args ...any) {
	logger().Fatal().Msgf(format, args...)
}

package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var log = New(os.Stdout)

func New(out *os.File) zerolog.Logger {
	writer := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.DateTime,
	}

	return zerolog.New(writer).
		With().
		Timestamp().
		Logger().
		Level(zerolog.InfoLevel)
}

// SetLevel accepts the usual level names (debug, info, warn, error) and
// falls back to info for anything else.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log = log.Level(lvl)
}

func Get() zerolog.Logger {
	return log
}

func Info(format string, args ...interface{}) {
	log.Info().Msgf(format, args...)
}

func Success(format string, args ...interface{}) {
	log.Info().Bool("ok", true).Msgf(format, args...)
}

func Warn(format string, args ...interface{}) {
	log.Warn().Msgf(format, args...)
}

func Error(format string, args ...interface{}) {
	log.Error().Msgf(format, args...)
}

func Debug(format string, args ...interface{}) {
	log.Debug().Msgf(format, args...)
}

func Worker(name, format string, args ...interface{}) {
	log.Info().Str("worker", name).Msgf(format, args...)
}

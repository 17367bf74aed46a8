package ui

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	Debug bool
	zl    zerolog.Logger
}

func NewLogger(debug bool) *Logger {
	level := zerolog.InfoLevel
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		if lvl, err := zerolog.ParseLevel(env); err == nil {
			level = lvl
		}
	}
	if debug {
		level = zerolog.DebugLevel
	}

	return newLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}, level)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return newLogger(io.Discard, zerolog.Disabled)
}

func newLogger(w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()

	return &Logger{
		Debug: level <= zerolog.DebugLevel,
		zl:    zl,
	}
}

// With returns a child logger that tags every line with key=value.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{
		Debug: l.Debug,
		zl:    l.zl.With().Str(key, value).Logger(),
	}
}

func (l *Logger) Debugf(format string, args ...any) {
	l.zl.Debug().Msgf(trimNewline(format), args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.zl.Info().Msgf(trimNewline(format), args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.zl.Warn().Msgf(trimNewline(format), args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.zl.Error().Msgf(trimNewline(format), args...)
}

func trimNewline(format string) string {
	return strings.TrimSuffix(format, "\n")
}

package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// zeroLogger adapts rs/zerolog to the core logging interface. Every
// entry carries the owning component so one process-wide stream stays
// filterable per subsystem.
type zeroLogger struct {
	log zerolog.Logger
}

// NewZerologLogger builds a component-scoped logger writing to stdout.
// The format follows APP_ENV (human-readable console in dev, JSON
// otherwise) and the minimum level follows DSP_LOG_LEVEL, defaulting
// to info.
func NewZerologLogger(component string) Logger {
	return newZerologTo(os.Stdout, component)
}

func newZerologTo(out io.Writer, component string) Logger {
	var w io.Writer = out
	if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(w).
		Level(levelFromEnv()).
		With().
		Timestamp().
		Str("component", component).
		Logger()
	return &zeroLogger{log: z}
}

func levelFromEnv() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("DSP_LOG_LEVEL")))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *zeroLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *zeroLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *zeroLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *zeroLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *zeroLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}

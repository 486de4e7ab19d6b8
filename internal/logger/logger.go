// Package logger wraps zerolog behind the Infof/Warnf/Errorf/Debugf
// surface the teacher call sites already use, plus a structured Event
// path for correlation-id-tagged trading events.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger is the process-wide structured logger. There is no package
// singleton: callers construct one in main and pass it down explicitly
// (SPEC_FULL.md, "no module-level singletons").
type Logger struct {
	z zerolog.Logger
}

// New builds a Logger writing to w at the given minimum level. Pass
// os.Stdout for JSON output, or zerolog.ConsoleWriter{Out: w} upstream
// for human-readable output during local runs.
func New(w io.Writer, level zerolog.Level) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	z := zerolog.New(w).With().Timestamp().Logger().Level(level)
	return &Logger{z: z}
}

// NewConsole builds a human-readable console logger, useful for `scan`
// and `status` CLI invocations where JSON output would be noise.
func NewConsole(level zerolog.Level) *Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	z := zerolog.New(cw).With().Timestamp().Logger().Level(level)
	return &Logger{z: z}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.z.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.z.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.z.Error().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.z.Debug().Msg(fmt.Sprintf(format, args...))
}

// WithCorrelation returns a child Logger carrying a fresh correlation id.
// Nothing in the repository calls it, so the orchestrator's scan and
// trade log lines carry no correlation id.
func (l *Logger) WithCorrelation() (*Logger, string) {
	id := uuid.NewString()
	return &Logger{z: l.z.With().Str("correlation_id", id).Logger()}, id
}

// Event starts a structured log entry at the given level, e.g.
//
//	log.Event(zerolog.WarnLevel).Str("market", m).Msg("market banned")
func (l *Logger) Event(level zerolog.Level) *zerolog.Event {
	return l.z.WithLevel(level)
}

// Critical logs at error level with the given fields. It sends no push
// notification itself; callers such as the risk guard send those through
// their Notifier separately.
func (l *Logger) Critical(msg string, fields map[string]interface{}) {
	ev := l.z.Error()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

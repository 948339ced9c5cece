// Package logging provides the zerolog-backed obfsrelay.Logger
// implementation used outside of tests.
package logging

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/obfs2relay/obfs2relay/obfsrelay"
)

// Logger wraps a zerolog.Context, accumulating bound fields until a line is
// actually emitted.
type Logger struct {
	ctx zerolog.Context
}

// New builds a Logger writing to stderr in console format, at the given
// level ("debug", "info", "warn" or anything else, which maps to info).
func New(level string) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl := zerolog.InfoLevel

	switch level {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn", "warning":
		lvl = zerolog.WarnLevel
	}

	logger := zerolog.New(os.Stderr).Level(lvl).With().Timestamp()

	return Logger{ctx: logger}
}

// Named returns a copy of the logger bound with a "component" field. It
// mirrors the teacher's Logger.Named convention used for sub-loggers (e.g.
// the relay's own logger).
func (l Logger) Named(name string) Logger {
	return Logger{ctx: l.ctx.Str("component", name)}
}

func (l Logger) BindStr(key, value string) obfsrelay.Logger {
	return Logger{ctx: l.ctx.Str(key, value)}
}

func (l Logger) BindInt(key string, value int) obfsrelay.Logger {
	return Logger{ctx: l.ctx.Int(key, value)}
}

func (l Logger) Debug(msg string) {
	l.ctx.Logger().Debug().Msg(msg)
}

func (l Logger) Info(msg string) {
	l.ctx.Logger().Info().Msg(msg)
}

func (l Logger) Warning(msg string) {
	l.ctx.Logger().Warn().Msg(msg)
}

func (l Logger) InfoError(msg string, err error) {
	l.ctx.Logger().Info().Err(err).Msg(msg)
}

func (l Logger) WarningError(msg string, err error) {
	l.ctx.Logger().Warn().Err(err).Msg(msg)
}

var _ obfsrelay.Logger = Logger{}

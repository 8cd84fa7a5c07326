// Package logger wraps zerolog with the fields the client logs with.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Level = zerolog.Level

const (
	TraceLevel = zerolog.TraceLevel
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
)

// Field names shared by the components.
const (
	CallField      = "call"
	DirectionField = "d"
	ModuleField    = "m"
	tagField       = "s"
	pidField       = "pid"
)

var pid = os.Getpid()

type Logger struct {
	logger *zerolog.Logger
}

// New makes a JSON logger writing into w.
func New(w io.Writer, isDebug bool) *Logger {
	l := zerolog.New(w).Level(level(isDebug)).With().Timestamp().Int(pidField, pid).Logger()
	return &Logger{logger: &l}
}

// NewConsole makes a human-friendly logger, every line starts
// with the tag, the module and the packet direction.
func NewConsole(isDebug bool, tag string, noColor bool) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	out := zerolog.ConsoleWriter{
		Out:           os.Stdout,
		TimeFormat:    "15:04:05.0000",
		NoColor:       noColor,
		PartsOrder:    []string{zerolog.TimestampFieldName, pidField, zerolog.LevelFieldName, tagField, DirectionField, ModuleField, CallField, zerolog.MessageFieldName},
		FieldsExclude: []string{pidField, tagField, DirectionField, ModuleField, CallField},
	}
	if noColor {
		out.FormatMessage = func(i any) string {
			if i == nil {
				return ""
			}
			return fmt.Sprint(i)
		}
	}
	l := zerolog.New(out).Level(level(isDebug)).With().
		Str(pidField, fmt.Sprintf("%4x", pid)).
		Str(tagField, tag).
		Str(ModuleField, "").
		Str(DirectionField, " ").
		Timestamp().Logger()
	return &Logger{logger: &l}
}

// Nop drops everything.
func Nop() *Logger { l := zerolog.Nop(); return &Logger{logger: &l} }

// Default is the global zerolog logger, for the time before the config is read.
func Default() *Logger { return &Logger{logger: &log.Logger} }

func level(isDebug bool) Level {
	if isDebug {
		return DebugLevel
	}
	return InfoLevel
}

func (l *Logger) GetLevel() Level                  { return l.logger.GetLevel() }
func (l *Logger) With() zerolog.Context            { return l.logger.With() }
func (l *Logger) Debug() *zerolog.Event            { return l.logger.Debug() }
func (l *Logger) Info() *zerolog.Event             { return l.logger.Info() }
func (l *Logger) Warn() *zerolog.Event             { return l.logger.Warn() }
func (l *Logger) Error() *zerolog.Event            { return l.logger.Error() }
func (l *Logger) WithLevel(v Level) *zerolog.Event { return l.logger.WithLevel(v) }

// Fatal logs and exits once Msg is called.
func (l *Logger) Fatal() *zerolog.Event { return l.logger.Fatal() }

// Extend makes a child logger out of the context.
func (l *Logger) Extend(ctx zerolog.Context) *Logger {
	child := ctx.Logger()
	return &Logger{logger: &child}
}

// Module returns a child logger labeled with the component name.
func (l *Logger) Module(name string) *Logger { return l.Extend(l.With().Str(ModuleField, name)) }

// Limit returns a child logger that drops everything below v.
func (l *Logger) Limit(v Level) *Logger {
	child := l.logger.Level(v)
	return &Logger{logger: &child}
}

package logger

import "github.com/pion/logging"

// PionLogger routes pion's internal logs into the app logger.
// It implements both logging.LoggerFactory and logging.LeveledLogger.
type PionLogger struct {
	log *Logger
}

// NewPionLogger keeps pion messages of the level and above,
// the level is a zerolog one (-1 trace .. 5 panic) and never goes
// below the level of root.
func NewPionLogger(root *Logger, level int) *PionLogger {
	return &PionLogger{log: root.Limit(max(Level(level), root.GetLevel())).Module("pion")}
}

func (p PionLogger) NewLogger(scope string) logging.LeveledLogger {
	return PionLogger{log: p.log.Extend(p.log.With().Str("scope", scope))}
}

func (p PionLogger) Trace(msg string)                  { p.log.WithLevel(TraceLevel).Msg(msg) }
func (p PionLogger) Tracef(format string, args ...any) { p.log.WithLevel(TraceLevel).Msgf(format, args...) }
func (p PionLogger) Debug(msg string)                  { p.log.Debug().Msg(msg) }
func (p PionLogger) Debugf(format string, args ...any) { p.log.Debug().Msgf(format, args...) }
func (p PionLogger) Info(msg string)                   { p.log.Info().Msg(msg) }
func (p PionLogger) Infof(format string, args ...any)  { p.log.Info().Msgf(format, args...) }
func (p PionLogger) Warn(msg string)                   { p.log.Warn().Msg(msg) }
func (p PionLogger) Warnf(format string, args ...any)  { p.log.Warn().Msgf(format, args...) }
func (p PionLogger) Error(msg string)                  { p.log.Error().Msg(msg) }
func (p PionLogger) Errorf(format string, args ...any) { p.log.Error().Msgf(format, args...) }

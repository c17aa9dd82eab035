/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package log provides structured logging on top of logf.
// Every message of a logger created by NewLogger carries "pid" and "instance" fields.
package log

import (
	"fmt"
	"os"

	"github.com/rs/xid"
	"github.com/ssgreg/logf"
)

// CloseFunc flushes and closes the asynchronous writer of a logger.
type CloseFunc logf.ChannelWriterCloseFunc

// LogFunc allows logging a message with a bound level.
// nolint: revive
type LogFunc = logf.LogFunc

// FieldLogger is an interface for loggers which writes logs in structured format.
type FieldLogger interface {
	With(...Field) FieldLogger

	Debug(string, ...Field)
	Info(string, ...Field)
	Warn(string, ...Field)
	Error(string, ...Field)

	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
	Errorf(string, ...interface{})

	AtLevel(Level, func(LogFunc))
	WithLevel(level Level) FieldLogger
}

var instanceID = xid.New().String()

// InstanceID identifies the running process. Several gate instances share one store,
// so the ID is logged with every message and reported in rejection bodies.
func InstanceID() string {
	return instanceID
}

// NewLogger creates a logger writing through a buffered channel. The returned CloseFunc must be called
// before the process exits, otherwise the last messages may be lost.
func NewLogger(cfg *Config) (FieldLogger, CloseFunc) {
	channel, closeFunc := logf.NewChannelWriter(logf.ChannelWriterConfig{
		Appender:          newAppender(cfg),
		EnableSyncOnError: true,
	})
	logger := logf.NewLogger(logfLevel(cfg.Level), channel).
		With(logf.Int("pid", os.Getpid()), logf.String("instance", instanceID))
	if cfg.AddCaller {
		// Skip the adapter frame.
		logger = logger.WithCaller().WithCallerSkip(1)
	}
	return &LogfAdapter{logger}, CloseFunc(closeFunc)
}

// NewDisabledLogger returns a new logger that logs nothing.
func NewDisabledLogger() FieldLogger {
	return &LogfAdapter{logf.NewDisabledLogger()}
}

var levelToLogf = map[Level]logf.Level{
	LevelError: logf.LevelError,
	LevelWarn:  logf.LevelWarn,
	LevelInfo:  logf.LevelInfo,
	LevelDebug: logf.LevelDebug,
}

func logfLevel(level Level) logf.Level {
	if l, ok := levelToLogf[level]; ok {
		return l
	}
	return logf.LevelInfo
}

// LogfAdapter adapts logf.Logger to FieldLogger interface.
type LogfAdapter struct {
	Logger *logf.Logger
}

func (l *LogfAdapter) With(fs ...Field) FieldLogger {
	return &LogfAdapter{l.Logger.With(fs...)}
}

func (l *LogfAdapter) Debug(s string, fields ...Field) { l.Logger.Debug(s, fields...) }

func (l *LogfAdapter) Info(s string, fields ...Field) { l.Logger.Info(s, fields...) }

func (l *LogfAdapter) Warn(s string, fields ...Field) { l.Logger.Warn(s, fields...) }

func (l *LogfAdapter) Error(s string, fields ...Field) { l.Logger.Error(s, fields...) }

func (l *LogfAdapter) Debugf(format string, args ...interface{}) { l.logFormatted(LevelDebug, format, args) }

func (l *LogfAdapter) Infof(format string, args ...interface{}) { l.logFormatted(LevelInfo, format, args) }

func (l *LogfAdapter) Warnf(format string, args ...interface{}) { l.logFormatted(LevelWarn, format, args) }

func (l *LogfAdapter) Errorf(format string, args ...interface{}) { l.logFormatted(LevelError, format, args) }

// logFormatted formats the message only if the level is enabled.
func (l *LogfAdapter) logFormatted(level Level, format string, args []interface{}) {
	l.AtLevel(level, func(write LogFunc) {
		write(fmt.Sprintf(format, args...))
	})
}

// AtLevel calls fn with a LogFunc bound to the level if the level is enabled.
func (l *LogfAdapter) AtLevel(level Level, fn func(logFunc LogFunc)) {
	l.Logger.AtLevel(logfLevel(level), fn)
}

// WithLevel returns a logger that additionally drops messages below the level.
// It can only raise the effective level.
func (l *LogfAdapter) WithLevel(level Level) FieldLogger {
	return &LogfAdapter{Logger: l.Logger.WithLevel(logfLevel(level))}
}

// Package logger provides structured, leveled logging for the application.
package logger

import (
	"context"
	"io"
	"log/slog"
)

// Level represents a logging level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// LoggerInterface is the logging contract used across the application.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
	With(keyvals ...any) LoggerInterface
}

// Logger is the default LoggerInterface implementation backed by slog.
type Logger struct {
	sl *slog.Logger
}

var _ LoggerInterface = (*Logger)(nil)

// New creates a Logger writing JSON records to w at the given level,
// tagged with the service name. Extra attrs are attached to every record.
func New(w io.Writer, level Level, service string, attrs []slog.Attr) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(level)})
	sl := slog.New(h.WithAttrs(append([]slog.Attr{slog.String("service", service)}, attrs...)))
	return &Logger{sl: sl}
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, keyvals ...any) {
	l.sl.DebugContext(ctx, msg, keyvals...)
}

func (l *Logger) Info(ctx context.Context, msg string, keyvals ...any) {
	l.sl.InfoContext(ctx, msg, keyvals...)
}

func (l *Logger) Warn(ctx context.Context, msg string, keyvals ...any) {
	l.sl.WarnContext(ctx, msg, keyvals...)
}

func (l *Logger) Error(ctx context.Context, msg string, keyvals ...any) {
	l.sl.ErrorContext(ctx, msg, keyvals...)
}

// With returns a logger that includes the given key/value pairs in every record.
func (l *Logger) With(keyvals ...any) LoggerInterface {
	return &Logger{sl: l.sl.With(keyvals...)}
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

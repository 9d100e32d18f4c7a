package logging

import (
	"context"
	"log/slog"
)

// SlogLogger adapts a *slog.Logger to the Logger interface. The context is
// forwarded to the handler, so handlers that extract request-scoped values
// (trace ids and the like) keep working.
type SlogLogger struct {
	sl *slog.Logger
}

var _ Logger = (*SlogLogger)(nil)

func NewSlogLogger(sl *slog.Logger) *SlogLogger {
	return &SlogLogger{sl: sl}
}

func (l *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.sl.DebugContext(ctx, msg, args...)
}

func (l *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	l.sl.InfoContext(ctx, msg, args...)
}

func (l *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.sl.WarnContext(ctx, msg, args...)
}

func (l *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	l.sl.ErrorContext(ctx, msg, args...)
}

// With returns a child logger whose entries always carry the given
// key–value pairs.
func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{sl: l.sl.With(args...)}
}

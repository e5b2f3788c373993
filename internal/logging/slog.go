package logging

import (
	"context"
	"io"
	"log/slog"
)

// SlogLogger adapts log/slog to the Logger interface. The sync server emits
// JSON lines for ingestion; the wallet CLI writes text to stderr.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger wraps an already configured slog logger; use it when the
// caller owns the handler setup (tests mostly).
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{log: l}
}

// NewJSONLogger builds a JSON-handler logger writing to w.
func NewJSONLogger(w io.Writer) *SlogLogger {
	return &SlogLogger{log: slog.New(slog.NewJSONHandler(w, nil))}
}

// NewTextLogger builds a text-handler logger writing to w.
func NewTextLogger(w io.Writer) *SlogLogger {
	return &SlogLogger{log: slog.New(slog.NewTextHandler(w, nil))}
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.log.DebugContext(ctx, msg, args...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.log.InfoContext(ctx, msg, args...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.log.WarnContext(ctx, msg, args...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.log.ErrorContext(ctx, msg, args...)
}

// With returns a child logger carrying args on every line, used to tag
// component loggers ("component", "sync" and friends).
func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{log: s.log.With(args...)}
}

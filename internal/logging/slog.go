package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// SlogConfig holds settings for the log/slog-backed logger.
type SlogConfig struct {
	Level  string    // debug, info, warn, error
	Format string    // json, or text/console
	Output io.Writer // nil means stdout
}

// NewSlog builds a slog.Logger from cfg. Unknown levels fall back to info and
// any format other than text or console is written as JSON.
func NewSlog(cfg SlogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		return slog.New(slog.NewTextHandler(out, opts))
	default:
		return slog.New(slog.NewJSONHandler(out, opts))
	}
}

// SlogLogger adapts a *slog.Logger to Logger. The context reaches handlers
// so request-scoped attributes can be picked up.
type SlogLogger struct {
	l *slog.Logger
}

var _ Logger = (*SlogLogger)(nil)

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, args...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, args...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, args...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, args...)
}

// With returns a child logger carrying args on every record. The receiver
// is left unchanged.
func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}

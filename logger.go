package auth

import (
	"context"
	"log/slog"
	"os"

	"github.com/goliatone/go-errors"
)

type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger adapts a slog.Logger to Logger. Rich errors passed as
// arguments are expanded into their category, text code, and metadata.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &slogLogger{logger: l}
}

// GetLogger implements LoggerProvider
func (s *slogLogger) GetLogger(name string) Logger {
	return &slogLogger{logger: s.logger.With(slog.String("logger", name))}
}

func (s *slogLogger) Debug(msg string, args ...any) {
	s.log(slog.LevelDebug, msg, args...)
}

func (s *slogLogger) Info(msg string, args ...any) {
	s.log(slog.LevelInfo, msg, args...)
}

func (s *slogLogger) Warn(msg string, args ...any) {
	s.log(slog.LevelWarn, msg, args...)
}

func (s *slogLogger) Error(msg string, args ...any) {
	s.log(slog.LevelError, msg, args...)
}

func (s *slogLogger) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !s.logger.Enabled(ctx, level) {
		return
	}
	s.logger.Log(ctx, level, msg, expandErrorArgs(args)...)
}

// expandErrorArgs turns every error value into its message plus the
// go-errors attributes, when present.
func expandErrorArgs(args []any) []any {
	out := make([]any, 0, len(args))
	for _, arg := range args {
		err, ok := arg.(error)
		if !ok {
			out = append(out, arg)
			continue
		}
		out = append(out, err.Error())
		if attrs := errors.ToSlogAttributes(err); len(attrs) > 0 {
			out = append(out, slog.Group("error_details", attrsToAny(attrs)...))
		}
	}
	return out
}

func attrsToAny(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}

// LogError logs err at the level matching its severity. Plain errors are
// logged at error level.
func LogError(l *slog.Logger, err error) {
	if l == nil || err == nil {
		return
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		errors.LogBySeverity(l, rich)
		return
	}
	l.Error(err.Error())
}

type defLogger struct{}

var defaultLogger Logger = NewSlogLogger(slog.Default())

func (defLogger) Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
func (defLogger) Info(msg string, args ...any)  { defaultLogger.Info(msg, args...) }
func (defLogger) Warn(msg string, args ...any)  { defaultLogger.Warn(msg, args...) }
func (defLogger) Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

func resolveLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

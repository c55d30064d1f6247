// Package logger is the structured logger used across the service.
// Production writes JSON records, development writes text; both go to stderr.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

const (
	EnvProduction  = "prod"
	EnvDevelopment = "dev"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// Hub and sweeper loggers carry 'component', request scoped ones carry ids
	With(args ...any) Logger
	WithGroup(name string) Logger
}

func New(environment string, level string) (Logger, error) {
	return newLogger(os.Stderr, environment, level)
}

func NewNoOpLogger() Logger {
	return &slogLogger{logger: slog.New(slog.DiscardHandler)}
}

func newLogger(w io.Writer, environment string, level string) (Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   true,
		ReplaceAttr: trimSource,
	}

	var h slog.Handler
	switch strings.ToLower(environment) {
	case EnvProduction:
		h = slog.NewJSONHandler(w, opts)
	case EnvDevelopment:
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown environment %q, expected one of: %s, %s", environment, EnvProduction, EnvDevelopment)
	}

	return &slogLogger{logger: slog.New(h)}, nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelInfo:
		return slog.LevelInfo, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

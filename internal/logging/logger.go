// internal/logging/logger.go
package logging

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps Zap with context-aware methods. The webhook path stores the
// active store slug, chat id, and request id on the context; every method
// here folds those into the entry, so per-store log filtering needs no
// manual fields.
type Logger struct {
	zap    *zap.Logger
	config *Config
}

// NewLogger builds a logger from cfg. Pass a nil otelProvider to run
// stdout-only; the daemon does this whenever telemetry is disabled.
func NewLogger(cfg *Config, otelProvider log.LoggerProvider) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	core, err := newDualCore(cfg, otelProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create core: %w", err)
	}

	zapLogger := zap.New(core, zapOptions(cfg)...)
	if len(cfg.Fields) > 0 {
		zapLogger = zapLogger.With(constantFields(cfg.Fields)...)
	}

	return &Logger{
		zap:    zapLogger,
		config: cfg,
	}, nil
}

func zapOptions(cfg *Config) []zap.Option {
	var opts []zap.Option
	if cfg.Caller.Enabled {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(cfg.Caller.Skip))
	}
	if cfg.Stacktrace.Level != 0 {
		opts = append(opts, zap.AddStacktrace(cfg.Stacktrace.Level))
	}
	return opts
}

// constantFields converts the configured service-level fields into zap
// fields attached to every entry.
func constantFields(m map[string]string) []zap.Field {
	fields := make([]zap.Field, 0, len(m))
	for k, v := range m {
		fields = append(fields, zap.String(k, v))
	}
	return fields
}

// Context-aware level methods. Each one calls zap directly rather than
// through a shared helper; the default caller skip accounts for exactly
// one wrapper frame.

func (l *Logger) Trace(ctx context.Context, msg string, fields ...zap.Field) {
	if l.Enabled(TraceLevel) {
		l.zap.Log(TraceLevel, msg, append(ContextFields(ctx), fields...)...)
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Debug(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Info(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Warn(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Error(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) DPanic(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.DPanic(msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Fatal(msg, append(ContextFields(ctx), fields...)...)
}

// With returns a child logger carrying the extra fields. Store engines
// hold one child per tenant so their entries always carry the slug.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		zap:    l.zap.With(fields...),
		config: l.config,
	}
}

// Named returns a child logger with the given subsystem name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		zap:    l.zap.Named(name),
		config: l.config,
	}
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.zap.Core().Enabled(level)
}

// Sync flushes buffered entries. Harmless stdout sync failures are
// swallowed; on Linux, fsync on a pipe or terminal returns EINVAL or
// ENOTTY.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	if err != nil && isStdoutSyncError(err) {
		return nil
	}
	return err
}

// Underlying returns the wrapped zap.Logger for libraries that take one
// directly.
func (l *Logger) Underlying() *zap.Logger {
	return l.zap
}

func isStdoutSyncError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINVAL || errno == syscall.ENOTTY
	}
	return false
}

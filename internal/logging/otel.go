// internal/logging/otel.go
package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// otelScopeName identifies this logger's instrumentation scope on the
// OTLP export path.
const otelScopeName = "storefrontd"

// newDualCore assembles the configured output cores: a redacting stdout
// core, an OTLP bridge core, or both behind a tee, with level sampling
// applied on top.
func newDualCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	cores := make([]zapcore.Core, 0, 2)

	if cfg.Output.Stdout {
		stdout, err := newStdoutCore(cfg)
		if err != nil {
			return nil, err
		}
		cores = append(cores, stdout)
	}
	if cfg.Output.OTEL && otelProvider != nil {
		cores = append(cores, newOTELCore(otelProvider))
	}

	switch len(cores) {
	case 0:
		return nil, fmt.Errorf("at least one output must be enabled and available")
	case 1:
		return newSampledCore(cores[0], cfg.Sampling), nil
	default:
		return newSampledCore(zapcore.NewTee(cores...), cfg.Sampling), nil
	}
}

// newStdoutCore writes encoded lines to stdout. Redaction applies on
// this path only; the OTLP bridge forwards fields as-is.
func newStdoutCore(cfg *Config) (zapcore.Core, error) {
	encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
	if err != nil {
		return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
	}
	return zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), cfg.Level), nil
}

// newOTELCore bridges entries to the OTLP log exporter.
func newOTELCore(provider log.LoggerProvider) zapcore.Core {
	return otelzap.NewCore(otelScopeName, otelzap.WithLoggerProvider(provider))
}

// newEncoder builds the entry encoder for the stdout core. JSON is the
// production format; console is for running the daemon by hand.
func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

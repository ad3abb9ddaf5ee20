// internal/logging/levels.go
package logging

import (
	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug (Debug is -1, Info is 0) for wire-level
// detail: raw webhook bodies, embedding batches, per-chunk send results.
// Production configs filter it out.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a string into a zapcore.Level, supporting "trace"
// on top of the standard zap level names.
func LevelFromString(level string) (zapcore.Level, error) {
	if level == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

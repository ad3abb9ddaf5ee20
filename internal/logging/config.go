// internal/logging/config.go
package logging

import (
	"fmt"
	"regexp"
	"time"

	"github.com/fyrsmithlabs/storefrontd/internal/config"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration for the daemon.
type Config struct {
	Level      zapcore.Level     `koanf:"level"`
	Format     string            `koanf:"format"`
	Output     OutputConfig      `koanf:"output"`
	Sampling   SamplingConfig    `koanf:"sampling"`
	Caller     CallerConfig      `koanf:"caller"`
	Stacktrace StacktraceConfig  `koanf:"stacktrace"`
	Fields     map[string]string `koanf:"fields"`
	Redaction  RedactionConfig   `koanf:"redaction"`
}

// OutputConfig selects log destinations. Stdout feeds the journal or
// container runtime; OTEL ships entries to the collector next to the
// traces.
type OutputConfig struct {
	Stdout bool `koanf:"stdout"`
	OTEL   bool `koanf:"otel"`
}

// SamplingConfig bounds log volume under webhook bursts.
type SamplingConfig struct {
	Enabled bool            `koanf:"enabled"`
	Tick    config.Duration `koanf:"tick"`
	Levels  map[zapcore.Level]LevelSamplingConfig `koanf:"levels"`
}

// LevelSamplingConfig is a per-level keep rate: first Initial entries
// each tick, then one in Thereafter.
type LevelSamplingConfig struct {
	Initial    int `koanf:"initial"`
	Thereafter int `koanf:"thereafter"`
}

// CallerConfig controls caller annotation. Skip counts wrapper frames
// between the call site and zap.
type CallerConfig struct {
	Enabled bool `koanf:"enabled"`
	Skip    int  `koanf:"skip"`
}

// StacktraceConfig sets the level at which entries carry stacktraces.
type StacktraceConfig struct {
	Level zapcore.Level `koanf:"level"`
}

// RedactionConfig lists field names and value patterns that must never
// reach a log sink in the clear.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns production defaults: JSON to stdout, info
// level, sampling on, and redaction covering bot tokens and API keys.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{
			Stdout: true,
			OTEL:   false,
		},
		Sampling: SamplingConfig{
			Enabled: true,
			Tick:    config.Duration(time.Second),
			Levels:  DefaultLevelSamplingConfig(),
		},
		Caller: CallerConfig{
			Enabled: true,
			Skip:    1,
		},
		Stacktrace: StacktraceConfig{
			Level: zapcore.ErrorLevel,
		},
		Fields: map[string]string{
			"service": "storefrontd",
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "bot_token", "api_key",
				"authorization", "bearer", "credential", "private_key",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
				`\b\d{8,10}:[A-Za-z0-9_-]{35}\b`, // Telegram bot token shape
			},
		},
	}
}

// DefaultLevelSamplingConfig returns the per-level keep rates. Error and
// above are absent: they always pass.
func DefaultLevelSamplingConfig() map[zapcore.Level]LevelSamplingConfig {
	return map[zapcore.Level]LevelSamplingConfig{
		TraceLevel: {Initial: 1, Thereafter: 0},
		zapcore.DebugLevel: {Initial: 10, Thereafter: 0},
		zapcore.InfoLevel: {Initial: 100, Thereafter: 10},
		zapcore.WarnLevel: {Initial: 100, Thereafter: 100},
	}
}

// Validate checks the configuration before a logger is built from it.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Output.Stdout && !c.Output.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout or otel)")
	}
	if c.Sampling.Enabled && c.Sampling.Tick.Duration() <= 0 {
		return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
	}
	if c.Caller.Enabled && c.Caller.Skip < 0 {
		return fmt.Errorf("caller skip must be >= 0, got %d", c.Caller.Skip)
	}
	if err := c.Redaction.validate(); err != nil {
		return err
	}
	return validateConstantFields(c.Fields)
}

func (r RedactionConfig) validate() error {
	if !r.Enabled {
		return nil
	}
	for _, pattern := range r.Patterns {
		if len(pattern) > maxPatternLen {
			return fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, pattern)
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid redaction pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validateConstantFields(fields map[string]string) error {
	for k, v := range fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}

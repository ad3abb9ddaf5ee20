// internal/logging/sampling.go
package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with level-aware sampling. A busy store can
// push thousands of identical webhook entries a minute; sampling keeps
// the volume bounded while errors and above always pass through.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	// Error and above bypass the sampler entirely.
	errorBand := &levelBandCore{
		Core: core,
		min:  zapcore.ErrorLevel,
		max:  zapcore.FatalLevel,
	}

	// Warn and below are sampled, keyed by the Info rates.
	rate := cfg.Levels[zapcore.InfoLevel]
	sampledBand := zapcore.NewSamplerWithOptions(
		&levelBandCore{Core: core, min: TraceLevel, max: zapcore.WarnLevel},
		cfg.Tick.Duration(),
		rate.Initial,
		rate.Thereafter,
	)

	return zapcore.NewTee(errorBand, sampledBand)
}

// levelBandCore passes entries whose level lies in [min, max] inclusive
// and rejects the rest.
type levelBandCore struct {
	zapcore.Core
	min zapcore.Level
	max zapcore.Level
}

func (c *levelBandCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && lvl <= c.max && c.Core.Enabled(lvl)
}

func (c *levelBandCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With keeps the band on child cores so sampling survives Logger.With.
func (c *levelBandCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelBandCore{
		Core: c.Core.With(fields),
		min:  c.min,
		max:  c.max,
	}
}

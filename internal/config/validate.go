package config

import (
	"errors"
	"slices"
	"time"

	"github.com/san-kum/brainjam/internal/jam"
)

// Validate reports every invalid field, joined. Each entry is a
// *jam.ConfigError, so errors.Is(err, jam.ErrInvalidConfig) holds.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field string, value any, reason string) {
		errs = append(errs, jam.NewConfigError(field, value, reason))
	}

	if c.TickRate <= 0 || c.TickRate > 1000 {
		bad("tick_rate", c.TickRate, "must be in (0, 1000] Hz")
	}
	if c.ChunkDuration <= 0 {
		bad("chunk_duration", c.ChunkDuration, "must be positive")
	}
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		bad("sample_rate", c.SampleRate, "must be in [8000, 192000]")
	}
	if c.ControlDim < 1 || c.ControlDim > 16 {
		bad("control_dim", c.ControlDim, "control vector length must be in [1, 16]")
	}

	if !slices.Contains(SourceKinds, c.Source.Kind) {
		errs = append(errs, &jam.ConfigError{Field: "source.kind", Value: c.Source.Kind, Reason: "unsupported source", Wrapped: jam.ErrUnknownSource})
	}
	if c.Source.Kind == "midi" && len(c.Source.MIDIControls) < c.ControlDim {
		bad("source.midi_controls", c.Source.MIDIControls, "needs one controller number per control dimension")
	}
	if c.Source.NoiseStd < 0 || c.Source.NoiseStd > 1 {
		bad("source.noise_std", c.Source.NoiseStd, "must be in [0, 1]")
	}
	if c.Source.KeyStep <= 0 || c.Source.KeyStep > 1 {
		bad("source.key_step", c.Source.KeyStep, "must be in (0, 1]")
	}

	s := c.Shaper
	if !slices.Contains(ShaperModes, s.Mode) {
		errs = append(errs, &jam.ConfigError{Field: "shaper.mode", Value: s.Mode, Reason: "unsupported mode", Wrapped: jam.ErrUnknownShaper})
	}
	if !slices.Contains(ShaperFilters, s.Filter) {
		bad("shaper.filter", s.Filter, "must be ema, moving_average or median")
	}
	if s.HalfLife < 0 {
		bad("shaper.half_life", s.HalfLife, "must not be negative")
	}
	if s.Window < 1 || s.Window > 256 {
		bad("shaper.window", s.Window, "must be in [1, 256]")
	}
	if s.Mode != "temporal" && s.LatentDim > c.ControlDim {
		bad("shaper.latent_dim", s.LatentDim, "projection cannot exceed control_dim")
	}
	if d := c.EffectiveLatentDim(); d < 2 || d > 8 {
		bad("shaper.latent_dim", d, "latent vector length must be in [2, 8]")
	}
	if s.Warmup < 2 {
		bad("shaper.warmup", s.Warmup, "must be at least 2")
	}
	if s.Refresh < 1 {
		bad("shaper.refresh", s.Refresh, "must be positive")
	}

	a := c.Agent
	if c.TickRate > 0 && a.History < time.Duration(float64(time.Second)/c.TickRate) {
		bad("agent.history", a.History, "must cover at least one tick")
	}
	if a.HalfLife <= 0 {
		bad("agent.half_life", a.HalfLife, "must be positive")
	}
	if !(a.CalmThreshold > 0 && a.CalmThreshold < a.ActiveThreshold && a.ActiveThreshold < 1) {
		bad("agent.thresholds", [2]float64{a.CalmThreshold, a.ActiveThreshold}, "need 0 < calm < active < 1")
	}
	if a.Jitter < 0 || a.Jitter > 0.5 {
		bad("agent.jitter", a.Jitter, "must be in [0, 0.5]")
	}
	if a.CorrectionContext < 1 {
		bad("agent.correction_context", a.CorrectionContext, "must be positive")
	}
	if a.CorrectionBound < 0 || a.CorrectionBound > 1 {
		bad("agent.correction_bound", a.CorrectionBound, "must be in [0, 1]")
	}

	m := c.Mapper
	if m.Gain <= 0 {
		bad("mapper.gain", m.Gain, "must be positive")
	}
	if m.Hysteresis < 0 || m.Hysteresis >= 1 {
		bad("mapper.hysteresis", m.Hysteresis, "must be in [0, 1)")
	}
	if m.Reversal < 0 || m.Reversal >= 1 {
		bad("mapper.reversal", m.Reversal, "must be in [0, 1)")
	}
	if m.DriftAmplitude < 0 || m.DriftAmplitude > 0.5 {
		bad("mapper.drift_amplitude", m.DriftAmplitude, "must be in [0, 0.5]")
	}
	if m.DriftPeriod <= 0 {
		bad("mapper.drift_period", m.DriftPeriod, "must be positive")
	}
	if m.QuantizeLevels < 0 || m.QuantizeLevels > 16 {
		bad("mapper.quantize_levels", m.QuantizeLevels, "must be in [0, 16]")
	}
	if m.QuantizeMix < 0 || m.QuantizeMix > 1 {
		bad("mapper.quantize_mix", m.QuantizeMix, "must be in [0, 1]")
	}
	if m.Inertia < 0 {
		bad("mapper.inertia", m.Inertia, "must not be negative")
	}

	e := c.Engine
	if _, err := jam.ParseEngineKind(e.Kind); err != nil {
		errs = append(errs, &jam.ConfigError{Field: "engine.kind", Value: e.Kind, Reason: "unsupported engine variant", Wrapped: jam.ErrUnknownEngine})
	}
	if e.Smoothing < time.Millisecond || e.Smoothing > time.Second {
		bad("engine.smoothing", e.Smoothing, "must be in [1ms, 1s]")
	}
	if e.BaseFreq < 20 || e.BaseFreq > 2000 {
		bad("engine.base_freq", e.BaseFreq, "must be in [20, 2000] Hz")
	}
	if e.Ceiling <= 0 || e.Ceiling > 1 {
		bad("engine.ceiling", e.Ceiling, "must be in (0, 1]")
	}
	if e.Voices < 1 || e.Voices > 32 {
		bad("engine.voices", e.Voices, "must be in [1, 32]")
	}

	if c.Cycle.QueueDepth < 1 || c.Cycle.QueueDepth > 2 {
		bad("cycle.queue_depth", c.Cycle.QueueDepth, "must be 1 or 2")
	}
	if !slices.Contains(UnderrunModes, c.Cycle.Underrun) {
		bad("cycle.underrun", c.Cycle.Underrun, "must be repeat or silence")
	}

	return errors.Join(errs...)
}

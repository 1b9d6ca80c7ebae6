// Package synth renders audio chunks from synthesis parameters.
//
// Every engine keeps its oscillator phases and parameter smoothers across
// calls, so consecutive chunks join without a step. Output always passes
// through a soft limiter before it leaves the engine.
package synth

import (
	"math"
	"time"

	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/dsp"
	"github.com/san-kum/brainjam/internal/jam"
)

const twoPi = 2 * math.Pi

// New builds the engine named by cfg.Kind.
func New(cfg config.EngineConfig, sampleRate int, seed int64) (jam.Engine, error) {
	kind, err := jam.ParseEngineKind(cfg.Kind)
	if err != nil {
		return nil, &jam.ConfigError{Field: "engine.kind", Value: cfg.Kind, Reason: "unsupported engine", Wrapped: err}
	}
	if sampleRate <= 0 {
		return nil, jam.NewConfigError("sample_rate", sampleRate, "must be positive")
	}
	opts := Options{
		SampleRate: sampleRate,
		Smoothing:  cfg.Smoothing,
		BaseFreq:   cfg.BaseFreq,
		Ceiling:    cfg.Ceiling,
		Voices:     cfg.Voices,
		Seed:       seed,
	}
	switch kind {
	case jam.EngineHarmonicNoise:
		return NewHarmonicNoise(opts), nil
	case jam.EngineSymbolic:
		return NewSymbolic(opts), nil
	default:
		return NewAdditive(opts), nil
	}
}

// Options are shared by all engines. Zero fields take the config defaults.
type Options struct {
	SampleRate int
	Smoothing  time.Duration
	BaseFreq   float64
	Ceiling    float64
	Voices     int
	Seed       int64
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = config.DefaultSampleRate
	}
	if o.Smoothing <= 0 {
		o.Smoothing = config.DefaultSmoothing
	}
	if o.BaseFreq <= 0 {
		o.BaseFreq = config.DefaultBaseFreq
	}
	if o.Ceiling <= 0 || o.Ceiling > 1 {
		o.Ceiling = dsp.DefaultCeiling
	}
	if o.Voices <= 0 {
		o.Voices = config.DefaultVoices
	}
	return o
}

// base holds what every engine shares: the per-parameter smoothers, the
// output limiter and the running sample clock.
type base struct {
	kind    jam.EngineKind
	sr      float64
	tau     float64
	smooth  [jam.NumParams]*dsp.Smoother
	limiter *dsp.Limiter
	samples int64
}

func newBase(kind jam.EngineKind, o Options) base {
	b := base{
		kind:    kind,
		sr:      float64(o.SampleRate),
		tau:     o.Smoothing.Seconds(),
		limiter: dsp.NewLimiter(o.Ceiling),
	}
	for i := range b.smooth {
		b.smooth[i] = dsp.NewSmoother(b.sr, b.tau)
	}
	return b
}

func (b *base) Kind() jam.EngineKind { return b.kind }
func (b *base) SampleRate() int      { return int(b.sr) }

// Ceiling is the largest absolute sample value the engine emits.
func (b *base) Ceiling() float64 { return b.limiter.Ceiling() }

// Elapsed is the amount of audio rendered so far.
func (b *base) Elapsed() time.Duration {
	return time.Duration(b.samples) * time.Second / time.Duration(b.sr)
}

// setTargets clamps p and hands its values to the smoothers. A record for a
// different engine is read in field order.
func (b *base) setTargets(p jam.SynthParams) {
	v := p.Clamp().Values()
	for i, s := range b.smooth {
		s.SetTarget(v[i])
	}
}

func (b *base) next() (v [jam.NumParams]float64) {
	for i, s := range b.smooth {
		v[i] = s.Next()
	}
	return v
}

func (b *base) resetSmoothing() {
	for i := range b.smooth {
		b.smooth[i] = dsp.NewSmoother(b.sr, b.tau)
	}
	b.samples = 0
}

// chunkLen is the sample count for d at sr, never negative.
func chunkLen(d time.Duration, sr float64) int {
	n := int(math.Round(d.Seconds() * sr))
	if n < 0 {
		return 0
	}
	return n
}

// wrap keeps a phase in [0,1).
func wrap(phase float64) float64 {
	if phase >= 1 || phase < 0 {
		phase -= math.Floor(phase)
	}
	return phase
}

func midiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

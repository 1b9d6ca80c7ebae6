package jam

import "fmt"

// EngineKind tags which sound engine a SynthParams record targets.
type EngineKind string

const (
	EngineAdditive      EngineKind = "additive"
	EngineHarmonicNoise EngineKind = "harmonic_noise"
	EngineSymbolic      EngineKind = "symbolic"
)

func (k EngineKind) String() string { return string(k) }

func (k EngineKind) IsValid() bool {
	switch k {
	case EngineAdditive, EngineHarmonicNoise, EngineSymbolic:
		return true
	}
	return false
}

// AllEngines lists the supported engine variants.
func AllEngines() []EngineKind {
	return []EngineKind{EngineAdditive, EngineHarmonicNoise, EngineSymbolic}
}

// ParseEngineKind validates an engine name.
func ParseEngineKind(name string) (EngineKind, error) {
	k := EngineKind(name)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownEngine, name)
	}
	return k, nil
}

// NumParams is the number of mapper outputs every engine consumes.
const NumParams = 4

// AdditiveParams drive the additive/subtractive drone engine.
type AdditiveParams struct {
	TempoDensity       float64 `json:"tempo_density"`
	HarmonicTension    float64 `json:"harmonic_tension"`
	SpectralBrightness float64 `json:"spectral_brightness"`
	NoiseBalance       float64 `json:"noise_balance"`
}

// HarmonicNoiseParams drive the oscillator bank plus filtered noise engine.
type HarmonicNoiseParams struct {
	Pitch      float64 `json:"pitch"`
	Brightness float64 `json:"brightness"`
	Roughness  float64 `json:"roughness"`
	Amplitude  float64 `json:"amplitude"`
}

// SymbolicParams drive the note event engine.
type SymbolicParams struct {
	NoteDensity        float64 `json:"note_density"`
	PitchCenter        float64 `json:"pitch_center"`
	NoteDuration       float64 `json:"note_duration"`
	HarmonicComplexity float64 `json:"harmonic_complexity"`
}

// SynthParams is a tagged union: only the record matching Kind is meaningful.
type SynthParams struct {
	Kind          EngineKind          `json:"kind"`
	Additive      AdditiveParams      `json:"additive"`
	HarmonicNoise HarmonicNoiseParams `json:"harmonic_noise"`
	Symbolic      SymbolicParams      `json:"symbolic"`
}

// NewSynthParams packs mapper outputs, in engine field order, into the record
// for kind. Values are clamped to [0,1].
func NewSynthParams(kind EngineKind, v [NumParams]float64) SynthParams {
	for i := range v {
		v[i] = Unit(v[i])
	}
	p := SynthParams{Kind: kind}
	switch kind {
	case EngineHarmonicNoise:
		p.HarmonicNoise = HarmonicNoiseParams{Pitch: v[0], Brightness: v[1], Roughness: v[2], Amplitude: v[3]}
	case EngineSymbolic:
		p.Symbolic = SymbolicParams{NoteDensity: v[0], PitchCenter: v[1], NoteDuration: v[2], HarmonicComplexity: v[3]}
	default:
		p.Kind = EngineAdditive
		p.Additive = AdditiveParams{TempoDensity: v[0], HarmonicTension: v[1], SpectralBrightness: v[2], NoiseBalance: v[3]}
	}
	return p
}

// Values unpacks the active record in engine field order.
func (p SynthParams) Values() [NumParams]float64 {
	switch p.Kind {
	case EngineHarmonicNoise:
		h := p.HarmonicNoise
		return [NumParams]float64{h.Pitch, h.Brightness, h.Roughness, h.Amplitude}
	case EngineSymbolic:
		s := p.Symbolic
		return [NumParams]float64{s.NoteDensity, s.PitchCenter, s.NoteDuration, s.HarmonicComplexity}
	default:
		a := p.Additive
		return [NumParams]float64{a.TempoDensity, a.HarmonicTension, a.SpectralBrightness, a.NoiseBalance}
	}
}

// Clamp returns p with every field of the active record in [0,1].
func (p SynthParams) Clamp() SynthParams {
	return NewSynthParams(p.Kind, p.Values())
}

// ParamNames returns the field names of kind in engine field order.
func ParamNames(kind EngineKind) [NumParams]string {
	switch kind {
	case EngineHarmonicNoise:
		return [NumParams]string{"pitch", "brightness", "roughness", "amplitude"}
	case EngineSymbolic:
		return [NumParams]string{"note_density", "pitch_center", "note_duration", "harmonic_complexity"}
	default:
		return [NumParams]string{"tempo_density", "harmonic_tension", "spectral_brightness", "noise_balance"}
	}
}

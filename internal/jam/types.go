package jam

import (
	"math"
	"time"
)

// ControlVector is one instant of performer input. Components live in [0,1].
type ControlVector []float64

// Clone returns an independent copy.
func (v ControlVector) Clone() ControlVector {
	c := make(ControlVector, len(v))
	copy(c, v)
	return c
}

// ClampInto writes the clamped form of v into dst, which must have len(v).
func (v ControlVector) ClampInto(dst ControlVector) {
	for i, x := range v {
		dst[i] = Unit(x)
	}
}

// Clamped returns a copy with every component clamped to [0,1].
func (v ControlVector) Clamped() ControlVector {
	c := make(ControlVector, len(v))
	v.ClampInto(c)
	return c
}

// LatentVector is the shaped form of a control vector. Components live in [0,1].
type LatentVector []float64

func (v LatentVector) Clone() LatentVector {
	c := make(LatentVector, len(v))
	copy(c, v)
	return c
}

// At returns component i, wrapping around for vectors shorter than i+1.
func (v LatentVector) At(i int) float64 {
	if len(v) == 0 {
		return 0.5
	}
	return v[i%len(v)]
}

// IsValid reports whether every component is finite and within [0,1].
func (v LatentVector) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || x < 0 || x > 1 {
			return false
		}
	}
	return true
}

// Behavior is the discrete label of the behavioral agent.
type Behavior string

const (
	Calm       Behavior = "calm"
	Responsive Behavior = "responsive"
	Active     Behavior = "active"
)

func (b Behavior) String() string { return string(b) }

func (b Behavior) IsValid() bool {
	switch b {
	case Calm, Responsive, Active:
		return true
	}
	return false
}

// AllBehaviors lists the labels from lowest to highest intensity.
func AllBehaviors() []Behavior {
	return []Behavior{Calm, Responsive, Active}
}

// Tempo bounds of AgentResponse.TempoHint in BPM.
const (
	MinTempo = 60.0
	MaxTempo = 140.0
)

// AgentResponse is the only agent output that crosses into the mapper.
type AgentResponse struct {
	DensityBias     float64 `json:"density_bias"`
	TensionBias     float64 `json:"tension_bias"`
	TempoHint       float64 `json:"tempo_hint"`
	FillProbability float64 `json:"fill_probability"`
}

// Clamp returns r with every field inside its declared range.
func (r AgentResponse) Clamp() AgentResponse {
	return AgentResponse{
		DensityBias:     Unit(r.DensityBias),
		TensionBias:     Unit(r.TensionBias),
		TempoHint:       Clamp(r.TempoHint, MinTempo, MaxTempo),
		FillProbability: Unit(r.FillProbability),
	}
}

// TempoUnit maps the tempo hint onto [0,1].
func (r AgentResponse) TempoUnit() float64 {
	return Unit((r.TempoHint - MinTempo) / (MaxTempo - MinTempo))
}

// AudioBuffer is one chunk of mono PCM audio.
type AudioBuffer struct {
	Samples    []float32
	SampleRate int
}

// Duration of the buffer at its sample rate.
func (b AudioBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Peak returns the largest absolute sample value.
func (b AudioBuffer) Peak() float64 {
	peak := 0.0
	for _, s := range b.Samples {
		a := math.Abs(float64(s))
		if a > peak {
			peak = a
		}
	}
	return peak
}

// Timing is the per-stage elapsed time of one tick.
type Timing struct {
	Poll  time.Duration `json:"poll"`
	Shape time.Duration `json:"shape"`
	Agent time.Duration `json:"agent"`
	Map   time.Duration `json:"map"`
	Synth time.Duration `json:"synth"`
	Total time.Duration `json:"total"`
}

// Frame is everything one tick produced. Observers must not retain the
// slices past OnTick.
type Frame struct {
	Tick     int64
	Time     time.Duration
	Control  ControlVector
	Fresh    bool
	Latent   LatentVector
	Label    Behavior
	Response AgentResponse
	Params   SynthParams
	Timing   Timing
	Peak     float64
	Overrun  bool
}

// Telemetry is a read-only snapshot for loggers and dashboards.
type Telemetry struct {
	Tick      int64         `json:"tick"`
	State     string        `json:"state"`
	Label     Behavior      `json:"label"`
	EMA       float64       `json:"ema_intensity"`
	Timing    Timing        `json:"timing"`
	Response  AgentResponse `json:"response"`
	Params    SynthParams   `json:"params"`
	Latent    LatentVector  `json:"latent"`
	Overruns  int64         `json:"overruns"`
	Dropped   int64         `json:"dropped"`
	Underruns int64         `json:"underruns"`
}

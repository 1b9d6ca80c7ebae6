package jam

import "time"

// Source yields control vectors without blocking. ok is false when nothing
// new arrived since the previous poll.
type Source interface {
	Poll() (v ControlVector, ok bool)
	Dim() int
}

// Shaper reduces a raw control vector to a latent vector.
type Shaper interface {
	Shape(raw ControlVector) LatentVector
	Dim() int
	Mode() string
}

// Agent maintains behavioral state and biases the mapping.
type Agent interface {
	Respond(latent LatentVector) AgentResponse
	Snapshot() AgentSnapshot
}

// AgentSnapshot is a read-only view of the agent state.
type AgentSnapshot struct {
	Label        Behavior `json:"label"`
	EMAIntensity float64  `json:"ema_intensity"`
	EMADensity   float64  `json:"ema_density"`
	History      int      `json:"history"`
	Corrected    bool     `json:"corrected"`
}

// Mapper turns latent state and agent bias into synthesis parameters.
type Mapper interface {
	Map(latent LatentVector, agent AgentResponse) SynthParams
}

// Engine renders audio from synthesis parameters.
type Engine interface {
	Kind() EngineKind
	SampleRate() int
	// Generate renders d worth of audio into a fresh buffer.
	Generate(d time.Duration, p SynthParams) AudioBuffer
	// Render fills dst in place.
	Render(dst []float32, p SynthParams)
}

// Sink consumes finished audio buffers. Write may block briefly and must
// not retain buf.Samples after it returns.
type Sink interface {
	Write(buf AudioBuffer) error
}

// Metric accumulates a scalar over observed frames.
type Metric interface {
	Name() string
	Observe(f *Frame)
	Value() float64
	Reset()
}

// Observer receives every frame on the cycle goroutine and must not block.
type Observer interface {
	OnTick(f *Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(f *Frame)

func (fn ObserverFunc) OnTick(f *Frame) { fn(f) }

// Package mapping turns latent vectors and agent bias into synthesis
// parameters.
//
// The mapping is deliberately not a clean linear function of its inputs.
// Each output mixes several inputs, passes a sigmoid, and then goes through
// four stages in order:
//
//  1. hysteresis: a move in the same direction as the last one keeps a
//     smaller share of the previous output than a reversal does
//  2. drift: a slow sinusoid driven by wall-clock time, never tick count
//  3. quantization: selected outputs are pulled towards band centres
//  4. inertia: one-pole smoothing with its own time constant
package mapping

import (
	"math"
	"time"

	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/jam"
)

// maxDriftStep caps the clock time one call may add to the drift phase,
// unless the configured tick is longer. Gaps beyond the cap, such as a
// pause, are not drifted through.
const maxDriftStep = time.Second

// agent inputs appended after the latent components
const (
	inDensity = iota
	inTension
	inTempo
	inFill
	agentInputs
)

// Options configures an Expressive mapper.
type Options struct {
	Kind           jam.EngineKind
	LatentDim      int
	Tick           time.Duration
	Gain           float64
	Hysteresis     float64
	Reversal       float64
	DriftAmplitude float64
	DriftPeriod    time.Duration
	QuantizeLevels int
	QuantizeMix    float64
	Inertia        time.Duration
}

// OptionsFrom collects mapper options from the pipeline configuration.
func OptionsFrom(cfg *config.Config) Options {
	m := cfg.Mapper
	return Options{
		Kind:           jam.EngineKind(cfg.Engine.Kind),
		LatentDim:      cfg.EffectiveLatentDim(),
		Tick:           cfg.TickInterval(),
		Gain:           m.Gain,
		Hysteresis:     m.Hysteresis,
		Reversal:       m.Reversal,
		DriftAmplitude: m.DriftAmplitude,
		DriftPeriod:    m.DriftPeriod,
		QuantizeLevels: m.QuantizeLevels,
		QuantizeMix:    m.QuantizeMix,
		Inertia:        m.Inertia,
	}
}

// Expressive is the stateful mapper. It is owned by the cycle goroutine.
type Expressive struct {
	opts     Options
	clock    jam.Clock
	weights  [jam.NumParams][]float64
	quantize [jam.NumParams]bool
	inertia  float64

	x       []float64
	started bool
	clocked bool
	last    time.Time
	phase   float64
	offsets [jam.NumParams]float64
	prev    [jam.NumParams]float64
	dir     [jam.NumParams]int
}

// New creates a mapper. A nil clock uses the system clock.
func New(opts Options, clock jam.Clock) *Expressive {
	if clock == nil {
		clock = jam.SystemClock{}
	}
	if opts.LatentDim < 1 {
		opts.LatentDim = 1
	}
	if !opts.Kind.IsValid() {
		opts.Kind = jam.EngineAdditive
	}
	e := &Expressive{
		opts:    opts,
		clock:   clock,
		weights: DefaultWeights(opts.LatentDim),
		inertia: jam.TimeConstantCoef(opts.Inertia.Seconds(), opts.Tick.Seconds()),
		x:       make([]float64, opts.LatentDim+agentInputs),
	}
	for _, i := range QuantizedOutputs(opts.Kind) {
		e.quantize[i] = true
	}
	for i := range e.offsets {
		e.offsets[i] = 2 * math.Pi * float64(i) / jam.NumParams
	}
	return e
}

// DefaultWeights returns the many-to-one mixing rows for dim latents. Every
// row draws on two latent components and at least one agent input; all
// weights are non-negative so a rising input never lowers an output.
func DefaultWeights(dim int) [jam.NumParams][]float64 {
	var w [jam.NumParams][]float64
	agent := [jam.NumParams][agentInputs]float64{
		{0.8, 0, 1.2, 0},
		{0, 1.6, 0, 0},
		{0, 0.4, 0, 0.8},
		{0.8, 0, 0, 0.4},
	}
	for i := range w {
		row := make([]float64, dim+agentInputs)
		row[i%dim] += 0.8
		row[(i+1)%dim] += 0.4
		copy(row[dim:], agent[i][:])
		w[i] = row
	}
	return w
}

// QuantizedOutputs lists the outputs pulled into bands for kind: spectral
// brightness, roughness and pitch centre.
func QuantizedOutputs(kind jam.EngineKind) []int {
	if kind == jam.EngineSymbolic {
		return []int{1}
	}
	return []int{2}
}

func (e *Expressive) Map(latent jam.LatentVector, agent jam.AgentResponse) jam.SynthParams {
	e.fillInputs(latent, agent)
	drift := e.advanceDrift()

	var out [jam.NumParams]float64
	for i := range out {
		y := e.combine(i)

		if e.started {
			y = e.hysteresis(i, y)
		}
		y += drift * math.Sin(e.phase+e.offsets[i])
		if e.quantize[i] {
			y = e.band(y)
		}
		if e.started {
			y = e.inertia*e.prev[i] + (1-e.inertia)*y
		}
		out[i] = jam.Unit(y)
	}
	e.prev = out
	e.started = true
	return jam.NewSynthParams(e.opts.Kind, out)
}

func (e *Expressive) fillInputs(latent jam.LatentVector, agent jam.AgentResponse) {
	dim := e.opts.LatentDim
	for i := 0; i < dim; i++ {
		if i < len(latent) {
			e.x[i] = jam.Unit(latent[i])
		} else {
			e.x[i] = 0.5
		}
	}
	a := agent.Clamp()
	e.x[dim+inDensity] = a.DensityBias
	e.x[dim+inTension] = a.TensionBias
	e.x[dim+inTempo] = a.TempoUnit()
	e.x[dim+inFill] = a.FillProbability
}

// combine mixes the inputs of output i, normalizes by the row weight and
// squashes around the mid point.
func (e *Expressive) combine(i int) float64 {
	var sum, norm float64
	for j, w := range e.weights[i] {
		sum += w * e.x[j]
		norm += math.Abs(w)
	}
	if norm == 0 {
		return 0.5
	}
	return jam.Sigmoid(e.opts.Gain * (sum/norm - 0.5))
}

func (e *Expressive) hysteresis(i int, y float64) float64 {
	d := 0
	switch {
	case y > e.prev[i]:
		d = 1
	case y < e.prev[i]:
		d = -1
	}
	keep := e.opts.Hysteresis
	if d != 0 && e.dir[i] != 0 && d != e.dir[i] {
		keep = e.opts.Reversal
	}
	if d != 0 {
		e.dir[i] = d
	}
	return (1-keep)*y + keep*e.prev[i]
}

func (e *Expressive) band(y float64) float64 {
	levels := e.opts.QuantizeLevels
	if levels < 2 {
		return y
	}
	v := jam.Unit(y)
	region := min(int(v*float64(levels)), levels-1)
	centre := (float64(region) + 0.5) / float64(levels)
	return (1-e.opts.QuantizeMix)*v + e.opts.QuantizeMix*centre
}

// advanceDrift moves the drift phase by the clock time since the last call
// and returns the current amplitude.
func (e *Expressive) advanceDrift() float64 {
	now := e.clock.Now()
	if e.clocked && e.opts.DriftPeriod > 0 {
		dt := min(max(now.Sub(e.last), 0), e.driftCap())
		e.phase += 2 * math.Pi * dt.Seconds() / e.opts.DriftPeriod.Seconds()
	}
	e.last = now
	e.clocked = true
	return e.opts.DriftAmplitude
}

func (e *Expressive) driftCap() time.Duration {
	return max(maxDriftStep, 2*e.opts.Tick)
}

// Phase is the current drift phase in radians.
func (e *Expressive) Phase() float64 { return e.phase }

// Kind is the engine the mapper packs parameters for.
func (e *Expressive) Kind() jam.EngineKind { return e.opts.Kind }

// Reset clears all memory except the clock.
func (e *Expressive) Reset() {
	e.started = false
	e.clocked = false
	e.phase = 0
	e.prev = [jam.NumParams]float64{}
	e.dir = [jam.NumParams]int{}
}

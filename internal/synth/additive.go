package synth

import (
	"math"
	"time"

	"github.com/san-kum/brainjam/internal/dsp"
	"github.com/san-kum/brainjam/internal/jam"
)

var (
	additiveHarmonics = [...]float64{1, 2, 3, 4, 5, 7, 9}
	consonantAmps     = [...]float64{1.0, 0.5, 0.3, 0.2, 0.15, 0.1, 0.05}
	dissonantAmps     = [...]float64{1.0, 0.3, 0.6, 0.2, 0.5, 0.4, 0.3}
)

const (
	// filter coefficients are recomputed every controlRate samples
	controlRate  = 32
	minCutoff    = 300.0
	cutoffRange  = 50.0
	additiveGain = 0.6
)

// Additive is a drone of fixed harmonics shaped by a low-pass filter, a
// noise blend and a pulsing amplitude envelope.
//
// Parameters: tempo_density sets the pulse rate, harmonic_tension morphs
// the partial amplitudes and detunes odd partials, spectral_brightness opens
// the filter, noise_balance mixes tone against white noise.
type Additive struct {
	base
	freq   float64
	phases [len(additiveHarmonics)]float64
	amps   [len(additiveHarmonics)]float64
	ratios [len(additiveHarmonics)]float64
	vib    float64
	pulse  float64
	filter *dsp.SVF
	noise  *dsp.Noise
}

func NewAdditive(o Options) *Additive {
	o = o.withDefaults()
	b := newBase(jam.EngineAdditive, o)
	return &Additive{
		base:   b,
		freq:   o.BaseFreq,
		filter: dsp.NewSVF(b.sr, minCutoff*cutoffRange, math.Sqrt2/2),
		noise:  dsp.NewNoise(o.Seed),
	}
}

func (a *Additive) Generate(d time.Duration, p jam.SynthParams) jam.AudioBuffer {
	buf := make([]float32, chunkLen(d, a.sr))
	a.Render(buf, p)
	return jam.AudioBuffer{Samples: buf, SampleRate: int(a.sr)}
}

func (a *Additive) Render(dst []float32, p jam.SynthParams) {
	a.setTargets(p)
	dt := 1 / a.sr

	for n := range dst {
		v := a.next()
		density, tension, brightness, noiseMix := v[0], v[1], v[2], v[3]

		if a.samples%controlRate == 0 {
			a.filter.Set(a.sr, minCutoff*math.Pow(cutoffRange, brightness), math.Sqrt2/2)
			detune := math.Max(0, tension-0.5) * 0.1
			rolloff := 1 - 0.5*tension
			g := 1.0
			for i, h := range additiveHarmonics {
				a.amps[i] = jam.Lerp(consonantAmps[i], dissonantAmps[i], tension) * g
				g *= rolloff
				a.ratios[i] = h
				if int(h)%2 == 1 {
					a.ratios[i] = h * (1 + detune)
				}
			}
		}

		// slow vibrato keeps the drone alive
		a.vib = wrap(a.vib + 0.5*dt)
		f0 := a.freq * (1 + 0.02*math.Sin(twoPi*a.vib))

		tone, norm := 0.0, 0.0
		for i := range a.phases {
			f := f0 * a.ratios[i]
			if f >= a.sr/2 {
				continue
			}
			a.phases[i] = wrap(a.phases[i] + f*dt)
			tone += a.amps[i] * math.Sin(twoPi*a.phases[i])
			norm += a.amps[i]
		}
		if norm > 0 {
			tone /= norm
		}
		tone = a.filter.Process(tone).Lowpass

		x := (1-noiseMix)*tone + noiseMix*0.5*a.noise.Next()

		a.pulse = wrap(a.pulse + (0.5+4.5*density)*dt)
		env := 0.3 + 0.7*(0.5+0.5*math.Sin(twoPi*a.pulse))

		dst[n] = float32(a.limiter.Sample(additiveGain * env * x))
		a.samples++
	}
}

func (a *Additive) Reset() {
	a.resetSmoothing()
	a.phases = [len(additiveHarmonics)]float64{}
	a.vib, a.pulse = 0, 0
	a.filter.Reset()
}

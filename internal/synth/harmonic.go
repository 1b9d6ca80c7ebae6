package synth

import (
	"math"
	"time"

	"github.com/san-kum/brainjam/internal/dsp"
	"github.com/san-kum/brainjam/internal/jam"
)

const (
	maxPartials   = 15
	harmonicGain  = 0.7
	noiseBandBase = 800.0
)

// HarmonicNoise is an oscillator bank of up to fifteen partials plus
// band-passed noise.
type HarmonicNoise struct {
	base
	freq   float64
	phases [maxPartials]float64
	trem   float64
	band   *dsp.SVF
	noise  *dsp.Noise
}

func NewHarmonicNoise(o Options) *HarmonicNoise {
	o = o.withDefaults()
	b := newBase(jam.EngineHarmonicNoise, o)
	return &HarmonicNoise{
		base:  b,
		freq:  o.BaseFreq,
		band:  dsp.NewSVF(b.sr, noiseBandBase, 1.5),
		noise: dsp.NewNoise(o.Seed),
	}
}

func (h *HarmonicNoise) Generate(d time.Duration, p jam.SynthParams) jam.AudioBuffer {
	buf := make([]float32, chunkLen(d, h.sr))
	h.Render(buf, p)
	return jam.AudioBuffer{Samples: buf, SampleRate: int(h.sr)}
}

func (h *HarmonicNoise) Render(dst []float32, p jam.SynthParams) {
	h.setTargets(p)
	dt := 1 / h.sr

	for n := range dst {
		v := h.next()
		pitch, brightness, roughness, amp := v[0], v[1], v[2], v[3]
		f0 := h.freq * (0.5 + 1.5*pitch)

		if h.samples%controlRate == 0 {
			h.band.Set(h.sr, noiseBandBase*(1+3*roughness)+2*f0, 1.5)
		}

		// the top partial fades in with the fractional part of the count
		count := 3 + 12*brightness
		full := int(count)
		frac := count - float64(full)

		harm, norm := 0.0, 0.0
		for k := 0; k < maxPartials; k++ {
			idx := float64(k + 1)
			w := 1.0
			switch {
			case k < full:
			case k == full:
				w = frac
			default:
				w = 0
			}
			f := f0 * idx * (1 + roughness*0.1*(idx-1))
			if f >= h.sr/2 {
				w = 0
			}
			// partials keep running while silent so they re-enter in phase
			h.phases[k] = wrap(h.phases[k] + f*dt)
			if w == 0 {
				continue
			}
			a := w / idx
			harm += a * math.Sin(twoPi*h.phases[k])
			norm += a
		}
		if norm > 0 {
			harm /= norm
		}

		noise := h.band.Process(h.noise.Next()).Bandpass
		mix := 0.7 - 0.5*roughness
		x := mix*harm + (1-mix)*roughness*noise

		h.trem = wrap(h.trem + 2*dt)
		env := amp * (0.8 + 0.2*math.Sin(twoPi*h.trem))

		dst[n] = float32(h.limiter.Sample(harmonicGain * env * x))
		h.samples++
	}
}

func (h *HarmonicNoise) Reset() {
	h.resetSmoothing()
	h.phases = [maxPartials]float64{}
	h.trem = 0
	h.band.Reset()
}

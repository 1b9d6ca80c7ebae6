package dsp

import "math"

// SVF is a mono zero-delay-feedback state variable filter.
type SVF struct {
	g, k     float64
	ic1, ic2 float64
}

// SVFOut holds the simultaneous filter outputs of one sample.
type SVFOut struct {
	Lowpass, Bandpass, Highpass float64
}

func NewSVF(sampleRate, freq, q float64) *SVF {
	s := &SVF{}
	s.Set(sampleRate, freq, q)
	return s
}

// Set updates cutoff and resonance. freq is kept below Nyquist.
func (s *SVF) Set(sampleRate, freq, q float64) {
	freq = math.Min(math.Max(freq, 10), 0.49*sampleRate)
	s.g = math.Tan(math.Pi * freq / sampleRate)
	s.k = 1 / math.Max(q, 0.1)
}

func (s *SVF) Process(in float64) SVFOut {
	a1 := 1 / (1 + s.g*(s.g+s.k))
	a2 := s.g * a1
	a3 := s.g * a2

	v3 := in - s.ic2
	v1 := a1*s.ic1 + a2*v3
	v2 := s.ic2 + a2*s.ic1 + a3*v3

	s.ic1 = 2*v1 - s.ic1
	s.ic2 = 2*v2 - s.ic2
	if math.IsNaN(s.ic1) || math.IsNaN(s.ic2) {
		s.Reset()
	}
	return SVFOut{Lowpass: v2, Bandpass: v1, Highpass: in - s.k*v1 - v2}
}

func (s *SVF) Reset() { s.ic1, s.ic2 = 0, 0 }

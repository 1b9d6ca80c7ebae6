package dsp

import "math"

// Smoother is a one-pole low-pass used to glide parameters between
// blocks. Its state carries across calls, so a new target never causes a
// step at a block edge.
type Smoother struct {
	coef   float64
	value  float64
	target float64
	primed bool
}

// NewSmoother creates a smoother with time constant tau seconds.
func NewSmoother(sampleRate, tau float64) *Smoother {
	s := &Smoother{}
	s.SetTime(sampleRate, tau)
	return s
}

func (s *Smoother) SetTime(sampleRate, tau float64) {
	if tau <= 0 || sampleRate <= 0 {
		s.coef = 0
		return
	}
	s.coef = math.Exp(-1 / (tau * sampleRate))
}

// SetTarget sets the value the smoother glides to. The first target is
// taken immediately.
func (s *Smoother) SetTarget(v float64) {
	s.target = v
	if !s.primed {
		s.value = v
		s.primed = true
	}
}

func (s *Smoother) Next() float64 {
	s.value = s.target + (s.value-s.target)*s.coef
	return s.value
}

func (s *Smoother) Value() float64  { return s.value }
func (s *Smoother) Target() float64 { return s.target }

// Snap jumps to v.
func (s *Smoother) Snap(v float64) {
	s.value, s.target, s.primed = v, v, true
}

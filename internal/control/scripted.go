package control

import (
	"time"

	"github.com/san-kum/brainjam/internal/jam"
)

// Segment ramps linearly from From to To over Duration. A nil To holds From.
type Segment struct {
	Duration time.Duration
	From     jam.ControlVector
	To       jam.ControlVector
}

// Scripted replays a fixed list of segments, one poll per tick, and holds
// the final value once the script is exhausted.
type Scripted struct {
	dim      int
	dt       time.Duration
	segments []Segment
	elapsed  time.Duration
}

// NewScripted creates a script advancing dt per poll.
func NewScripted(dim int, dt time.Duration, segments ...Segment) *Scripted {
	return &Scripted{dim: dim, dt: dt, segments: segments}
}

// Hold is a segment that keeps v constant for d.
func Hold(d time.Duration, v ...float64) Segment {
	return Segment{Duration: d, From: v}
}

// Ramp is a segment moving from a to b over d.
func Ramp(d time.Duration, a, b jam.ControlVector) Segment {
	return Segment{Duration: d, From: a, To: b}
}

// Constant holds v forever.
func Constant(dim int, dt time.Duration, v float64) *Scripted {
	vec := make(jam.ControlVector, dim)
	for i := range vec {
		vec[i] = v
	}
	return NewScripted(dim, dt, Segment{Duration: dt, From: vec})
}

func (s *Scripted) Dim() int { return s.dim }

func (s *Scripted) Poll() (jam.ControlVector, bool) {
	v := s.At(s.elapsed)
	s.elapsed += s.dt
	return v, true
}

// Done reports whether the script has played out.
func (s *Scripted) Done() bool {
	return s.elapsed >= s.Length()
}

// Length is the total duration of all segments.
func (s *Scripted) Length() time.Duration {
	var total time.Duration
	for _, seg := range s.segments {
		total += seg.Duration
	}
	return total
}

// At evaluates the script at offset t.
func (s *Scripted) At(t time.Duration) jam.ControlVector {
	out := make(jam.ControlVector, s.dim)
	if len(s.segments) == 0 {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for _, seg := range s.segments {
		if t < seg.Duration {
			frac := 0.0
			if seg.Duration > 0 {
				frac = float64(t) / float64(seg.Duration)
			}
			s.fill(out, seg, frac)
			return out
		}
		t -= seg.Duration
	}
	s.fill(out, s.segments[len(s.segments)-1], 1)
	return out
}

func (s *Scripted) fill(out jam.ControlVector, seg Segment, frac float64) {
	for i := range out {
		a := component(seg.From, i)
		b := a
		if seg.To != nil {
			b = component(seg.To, i)
		}
		out[i] = jam.Unit(jam.Lerp(a, b, frac))
	}
}

// component repeats the last element when v is shorter than the source.
func component(v jam.ControlVector, i int) float64 {
	switch {
	case len(v) == 0:
		return 0.5
	case i < len(v):
		return v[i]
	}
	return v[len(v)-1]
}

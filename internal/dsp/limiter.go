package dsp

import "math"

// DefaultCeiling is the peak level the limiter never exceeds.
const DefaultCeiling = 0.98

// Limiter is a memoryless soft clipper: linear up to knee times the ceiling,
// then a tanh shoulder that approaches the ceiling asymptotically. NaN and
// Inf samples become silence.
type Limiter struct {
	ceiling float64
	knee    float64
}

func NewLimiter(ceiling float64) *Limiter {
	if ceiling <= 0 || ceiling > 1 {
		ceiling = DefaultCeiling
	}
	return &Limiter{ceiling: ceiling, knee: 0.8 * ceiling}
}

func (l *Limiter) Ceiling() float64 { return l.ceiling }

func (l *Limiter) Sample(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	a := math.Abs(x)
	if a <= l.knee {
		return x
	}
	room := l.ceiling - l.knee
	y := l.knee + room*math.Tanh((a-l.knee)/room)
	return math.Copysign(math.Min(y, l.ceiling), x)
}

// Process limits buf in place.
func (l *Limiter) Process(buf []float32) {
	for i, x := range buf {
		buf[i] = float32(l.Sample(float64(x)))
	}
}

package shaping

import (
	"math"
	"slices"

	"github.com/san-kum/brainjam/internal/jam"
)

// Smoothing filters understood by Temporal.
const (
	FilterEMA           = "ema"
	FilterMovingAverage = "moving_average"
	FilterMedian        = "median"
)

// Temporal smooths each dimension independently. With velocity enabled it
// appends one more latent: the smoothed mean absolute first difference of
// the input, multiplied by gain and clamped.
type Temporal struct {
	dim    int
	filter string
	alpha  float64

	window [][]float64
	head   int
	count  int

	ema     []float64
	prev    []float64
	x       []float64
	scratch []float64

	velocity bool
	gain     float64
	vel      float64

	dst jam.LatentVector
}

// NewTemporal creates a smoother over dim inputs. alpha is the per-tick EMA
// weight, window the length of the moving average and median windows.
func NewTemporal(dim int, filter string, alpha float64, window int, velocity bool, gain float64) *Temporal {
	if window < 1 {
		window = 1
	}
	out := dim
	if velocity {
		out++
	}
	t := &Temporal{
		dim:      dim,
		filter:   filter,
		alpha:    jam.Unit(alpha),
		window:   make([][]float64, window),
		ema:      make([]float64, dim),
		prev:     make([]float64, dim),
		x:        make([]float64, dim),
		scratch:  make([]float64, window),
		velocity: velocity,
		gain:     gain,
		dst:      make(jam.LatentVector, out),
	}
	for i := range t.window {
		t.window[i] = make([]float64, dim)
	}
	return t
}

func (t *Temporal) Dim() int     { return len(t.dst) }
func (t *Temporal) Mode() string { return "temporal" }

func (t *Temporal) Shape(raw jam.ControlVector) jam.LatentVector {
	clampInput(t.x, raw)
	first := t.count == 0

	copy(t.window[t.head], t.x)
	t.head = (t.head + 1) % len(t.window)
	if t.count < len(t.window) {
		t.count++
	}

	for i := 0; i < t.dim; i++ {
		switch t.filter {
		case FilterMovingAverage:
			t.dst[i] = t.average(i)
		case FilterMedian:
			t.dst[i] = t.median(i)
		default:
			if first {
				t.ema[i] = t.x[i]
			} else {
				t.ema[i] += t.alpha * (t.x[i] - t.ema[i])
			}
			t.dst[i] = t.ema[i]
		}
		t.dst[i] = jam.Unit(t.dst[i])
	}

	if t.velocity {
		if !first {
			var d float64
			for i := range t.x {
				d += math.Abs(t.x[i] - t.prev[i])
			}
			d /= float64(t.dim)
			t.vel += t.alpha * (d - t.vel)
		}
		t.dst[t.dim] = jam.Unit(t.gain * t.vel)
	}
	copy(t.prev, t.x)
	return t.dst
}

// Reset clears the history.
func (t *Temporal) Reset() {
	t.head, t.count, t.vel = 0, 0, 0
}

func (t *Temporal) average(i int) float64 {
	var sum float64
	for k := 0; k < t.count; k++ {
		sum += t.window[k][i]
	}
	return sum / float64(t.count)
}

func (t *Temporal) median(i int) float64 {
	buf := t.scratch[:t.count]
	for k := range buf {
		buf[k] = t.window[k][i]
	}
	slices.Sort(buf)
	mid := t.count / 2
	if t.count%2 == 0 {
		return (buf[mid-1] + buf[mid]) / 2
	}
	return buf[mid]
}

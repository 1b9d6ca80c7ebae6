package metrics

import (
	"math"

	"github.com/san-kum/brainjam/internal/jam"
)

// Stability is 1/(1+v) where v is the mean variance of the synthesis
// parameters. Steady output scores 1.
type Stability struct {
	n    int
	mean [jam.NumParams]float64
	m2   [jam.NumParams]float64
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(f *jam.Frame) {
	s.n++
	for i, v := range f.Params.Values() {
		d := v - s.mean[i]
		s.mean[i] += d / float64(s.n)
		s.m2[i] += d * (v - s.mean[i])
	}
}

func (s *Stability) Value() float64 {
	if s.n < 2 {
		return 1
	}
	total := 0.0
	for _, m2 := range s.m2 {
		total += m2 / float64(s.n)
	}
	return 1 / (1 + total/jam.NumParams)
}

func (s *Stability) Reset() { *s = Stability{} }

// Controllability is the mean absolute Pearson correlation between control
// component i and synthesis parameter i, over the components both have.
type Controllability struct {
	n    int
	dims int
	sx   [jam.NumParams]float64
	sy   [jam.NumParams]float64
	sxx  [jam.NumParams]float64
	syy  [jam.NumParams]float64
	sxy  [jam.NumParams]float64
}

func (c *Controllability) Name() string { return "controllability" }

func (c *Controllability) Observe(f *jam.Frame) {
	p := f.Params.Values()
	dims := min(len(f.Control), jam.NumParams)
	if c.n == 0 {
		c.dims = dims
	}
	dims = min(dims, c.dims)
	c.n++
	for i := 0; i < dims; i++ {
		x, y := f.Control[i], p[i]
		c.sx[i] += x
		c.sy[i] += y
		c.sxx[i] += x * x
		c.syy[i] += y * y
		c.sxy[i] += x * y
	}
}

func (c *Controllability) Value() float64 {
	if c.n < 2 || c.dims == 0 {
		return 0
	}
	n := float64(c.n)
	total, used := 0.0, 0
	for i := 0; i < c.dims; i++ {
		cov := c.sxy[i] - c.sx[i]*c.sy[i]/n
		vx := c.sxx[i] - c.sx[i]*c.sx[i]/n
		vy := c.syy[i] - c.sy[i]*c.sy[i]/n
		used++
		// a flat signal carries no correlation
		if vx <= 1e-12 || vy <= 1e-12 {
			continue
		}
		total += math.Abs(cov / math.Sqrt(vx*vy))
	}
	return total / float64(used)
}

func (c *Controllability) Reset() { *c = Controllability{} }

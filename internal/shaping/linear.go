package shaping

import (
	"math"

	"github.com/san-kum/brainjam/internal/jam"
	"gonum.org/v1/gonum/mat"
)

const (
	minVariance = 1e-6
	// covariance forgetting floor; older samples fade once n exceeds this
	covHorizon = 500
)

// Linear projects normalized input onto its leading principal components.
// Means and variances follow Welford's algorithm; the covariance of the
// normalized input is tracked incrementally and re-decomposed every refresh
// samples. Components are whitened and squashed through a sigmoid, so the
// output is relative to the running mean of the input.
type Linear struct {
	in, out int
	warmup  int
	refresh int

	n    int64
	mean []float64
	m2   []float64
	x    []float64
	z    []float64

	cov      *mat.SymDense
	eig      mat.EigenSym
	vecs     mat.Dense
	proj     *mat.Dense
	scale    []float64
	ready    bool
	sinceEig int
	dst      jam.LatentVector
}

// NewLinear creates a projection from in to out dimensions.
func NewLinear(in, out, warmup, refresh int) *Linear {
	if warmup < 2 {
		warmup = 2
	}
	if refresh < 1 {
		refresh = 1
	}
	return &Linear{
		in:      in,
		out:     out,
		warmup:  warmup,
		refresh: refresh,
		mean:    make([]float64, in),
		m2:      make([]float64, in),
		x:       make([]float64, in),
		z:       make([]float64, in),
		cov:     mat.NewSymDense(in, nil),
		proj:    mat.NewDense(out, in, nil),
		scale:   make([]float64, out),
		dst:     make(jam.LatentVector, out),
	}
}

func (l *Linear) Dim() int     { return l.out }
func (l *Linear) Mode() string { return "linear" }

func (l *Linear) Shape(raw jam.ControlVector) jam.LatentVector {
	clampInput(l.x, raw)
	l.observe()

	if l.n < int64(l.warmup) {
		for i := range l.dst {
			l.dst[i] = l.x[i%l.in]
		}
		return l.dst
	}

	l.normalize()
	l.updateCovariance()
	if !l.ready || l.sinceEig >= l.refresh {
		l.decompose()
	}
	l.sinceEig++

	for k := 0; k < l.out; k++ {
		var y float64
		for i := 0; i < l.in; i++ {
			y += l.proj.At(k, i) * l.z[i]
		}
		l.dst[k] = jam.Unit(jam.Sigmoid(y * l.scale[k]))
	}
	return l.dst
}

// Reset forgets all statistics.
func (l *Linear) Reset() {
	l.n = 0
	l.ready = false
	l.sinceEig = 0
	clear(l.mean)
	clear(l.m2)
	l.cov.Zero()
}

func (l *Linear) observe() {
	l.n++
	for i, x := range l.x {
		d := x - l.mean[i]
		l.mean[i] += d / float64(l.n)
		l.m2[i] += d * (x - l.mean[i])
	}
}

func (l *Linear) normalize() {
	for i, x := range l.x {
		v := l.m2[i] / float64(l.n-1)
		l.z[i] = (x - l.mean[i]) / math.Sqrt(math.Max(v, minVariance))
	}
}

func (l *Linear) updateCovariance() {
	beta := 1 / float64(min(l.n-int64(l.warmup)+1, covHorizon))
	for i := 0; i < l.in; i++ {
		for j := i; j < l.in; j++ {
			c := l.cov.At(i, j)
			l.cov.SetSym(i, j, c+beta*(l.z[i]*l.z[j]-c))
		}
	}
}

func (l *Linear) decompose() {
	l.sinceEig = 0
	if !l.eig.Factorize(l.cov, true) {
		return
	}
	values := l.eig.Values(nil)
	l.eig.VectorsTo(&l.vecs)

	// eigenvalues ascend; take the largest out of them
	for k := 0; k < l.out; k++ {
		col := l.in - 1 - k
		if col < 0 {
			l.scale[k] = 0
			continue
		}
		// keep the previous orientation across refreshes
		var dot, sum float64
		for i := 0; i < l.in; i++ {
			v := l.vecs.At(i, col)
			dot += v * l.proj.At(k, i)
			sum += v
		}
		sign := 1.0
		if (l.ready && dot < 0) || (!l.ready && sum < 0) {
			sign = -1
		}
		for i := 0; i < l.in; i++ {
			l.proj.Set(k, i, sign*l.vecs.At(i, col))
		}
		l.scale[k] = 1 / math.Sqrt(math.Max(values[col], minVariance))
	}
	l.ready = true
}

func clampInput(dst []float64, raw jam.ControlVector) {
	for i := range dst {
		if i < len(raw) {
			dst[i] = jam.Unit(raw[i])
		} else {
			dst[i] = 0.5
		}
	}
}

package control

import (
	"math"
	"math/rand"

	"github.com/san-kum/brainjam/internal/jam"
)

var (
	mockCenters = []float64{0.5, 0.5, 0.5, 0.3}
	mockAmps    = []float64{0.3, 0.4, 0.35, 0.2}
	mockFreqs   = []float64{0.1, 0.15, 0.2, 0.25}
)

// Mock generates structured test signals: each channel is a slow sinusoid
// with its own period plus Gaussian noise. The same seed always yields the
// same sequence.
type Mock struct {
	dim    int
	dt     float64
	noise  float64
	t      float64
	rng    *rand.Rand
	phases []float64
}

// NewMock creates a mock source of dim channels advancing dt seconds per poll.
func NewMock(dim int, dt, noise float64, seed int64) *Mock {
	rng := rand.New(rand.NewSource(seed))
	phases := make([]float64, dim)
	for i := range phases {
		phases[i] = rng.Float64() * 2 * math.Pi
	}
	return &Mock{dim: dim, dt: dt, noise: noise, rng: rng, phases: phases}
}

func (m *Mock) Dim() int { return m.dim }

func (m *Mock) Poll() (jam.ControlVector, bool) {
	v := make(jam.ControlVector, m.dim)
	for i := range v {
		k := i % len(mockFreqs)
		freq := mockFreqs[k] * (1 + float64(i/len(mockFreqs)))
		x := mockCenters[k] + mockAmps[k]*math.Sin(2*math.Pi*freq*m.t+m.phases[i])
		v[i] = jam.Unit(x + m.noise*m.rng.NormFloat64())
	}
	m.t += m.dt
	return v, true
}

// Reset rewinds the signal clock.
func (m *Mock) Reset() { m.t = 0 }

package dsp

import "math/rand"

// Noise is a seeded white noise source in [-1,1].
type Noise struct {
	rng *rand.Rand
}

func NewNoise(seed int64) *Noise {
	return &Noise{rng: rand.New(rand.NewSource(seed))}
}

func (n *Noise) Next() float64 {
	return 2*n.rng.Float64() - 1
}

// Float returns a uniform value in [0,1).
func (n *Noise) Float() float64 {
	return n.rng.Float64()
}

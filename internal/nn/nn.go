// Package nn runs small dense feed-forward networks loaded from YAML weight
// files. It backs the nonlinear feature shaper and the agent correction.
//
// Forward reuses per-layer buffers, so an MLP must not be shared between
// goroutines.
package nn

import (
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/san-kum/brainjam/internal/jam"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

type Activation string

const (
	Linear  Activation = "linear"
	ReLU    Activation = "relu"
	Tanh    Activation = "tanh"
	Sigmoid Activation = "sigmoid"
)

func (a Activation) apply(xs []float64) {
	switch a {
	case ReLU:
		for i, x := range xs {
			if x < 0 {
				xs[i] = 0
			}
		}
	case Tanh:
		for i, x := range xs {
			xs[i] = math.Tanh(x)
		}
	case Sigmoid:
		for i, x := range xs {
			xs[i] = jam.Sigmoid(x)
		}
	}
}

func (a Activation) valid() bool {
	switch a {
	case Linear, ReLU, Tanh, Sigmoid, "":
		return true
	}
	return false
}

// LayerSpec is one dense layer; Weights has one row per output unit.
type LayerSpec struct {
	Weights    [][]float64 `yaml:"weights"`
	Bias       []float64   `yaml:"bias"`
	Activation Activation  `yaml:"activation"`
}

// Spec is the on-disk form of a network.
type Spec struct {
	Name   string      `yaml:"name,omitempty"`
	Inputs int         `yaml:"inputs"`
	Layers []LayerSpec `yaml:"layers"`
}

type layer struct {
	w   *mat.Dense
	b   *mat.VecDense
	act Activation
	out *mat.VecDense
}

// MLP is a compiled network ready for inference.
type MLP struct {
	name   string
	in     *mat.VecDense
	layers []layer
}

// New validates spec and compiles it.
func New(spec Spec) (*MLP, error) {
	if spec.Inputs < 1 || len(spec.Layers) == 0 {
		return nil, fmt.Errorf("%w: network needs inputs and at least one layer", jam.ErrDimensionMismatch)
	}
	m := &MLP{name: spec.Name, in: mat.NewVecDense(spec.Inputs, nil)}
	width := spec.Inputs
	for li, ls := range spec.Layers {
		rows := len(ls.Weights)
		if rows == 0 || len(ls.Bias) != rows {
			return nil, fmt.Errorf("%w: layer %d has %d rows and %d biases", jam.ErrDimensionMismatch, li, rows, len(ls.Bias))
		}
		if !ls.Activation.valid() {
			return nil, fmt.Errorf("%w: layer %d activation %q", jam.ErrModelUnavailable, li, ls.Activation)
		}
		data := make([]float64, 0, rows*width)
		for r, row := range ls.Weights {
			if len(row) != width {
				return nil, fmt.Errorf("%w: layer %d row %d has %d weights, want %d", jam.ErrDimensionMismatch, li, r, len(row), width)
			}
			data = append(data, row...)
		}
		for _, x := range append(data, ls.Bias...) {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%w: layer %d has non-finite weights", jam.ErrModelUnavailable, li)
			}
		}
		act := ls.Activation
		if act == "" {
			act = Linear
		}
		m.layers = append(m.layers, layer{
			w:   mat.NewDense(rows, width, data),
			b:   mat.NewVecDense(rows, append([]float64(nil), ls.Bias...)),
			act: act,
			out: mat.NewVecDense(rows, nil),
		})
		width = rows
	}
	return m, nil
}

// Load reads and compiles a weight file. Any failure wraps
// jam.ErrModelUnavailable.
func Load(path string) (*MLP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", jam.ErrModelUnavailable, err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", jam.ErrModelUnavailable, path, err)
	}
	m, err := New(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", jam.ErrModelUnavailable, path, err)
	}
	return m, nil
}

// Save writes spec as YAML.
func Save(path string, spec Spec) error {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (m *MLP) Name() string { return m.name }

func (m *MLP) InputDim() int { return m.in.Len() }

func (m *MLP) OutputDim() int { return m.layers[len(m.layers)-1].out.Len() }

// OutputActivation is the activation of the final layer.
func (m *MLP) OutputActivation() Activation { return m.layers[len(m.layers)-1].act }

// Forward evaluates the network on x and writes the result into dst.
func (m *MLP) Forward(dst, x []float64) error {
	if len(x) != m.InputDim() || len(dst) != m.OutputDim() {
		return fmt.Errorf("%w: forward got %d inputs and %d outputs, want %d and %d",
			jam.ErrDimensionMismatch, len(x), len(dst), m.InputDim(), m.OutputDim())
	}
	copy(m.in.RawVector().Data, x)
	var prev mat.Vector = m.in
	for i := range m.layers {
		l := &m.layers[i]
		l.out.MulVec(l.w, prev)
		l.out.AddVec(l.out, l.b)
		l.act.apply(l.out.RawVector().Data)
		prev = l.out
	}
	copy(dst, m.layers[len(m.layers)-1].out.RawVector().Data)
	return nil
}

// RandomSpec builds a network with Xavier-scaled random weights. sizes lists
// the input width followed by each layer width; acts has one entry per layer.
func RandomSpec(rng *rand.Rand, sizes []int, acts []Activation) Spec {
	spec := Spec{Inputs: sizes[0]}
	for i := 1; i < len(sizes); i++ {
		in, out := sizes[i-1], sizes[i]
		scale := math.Sqrt(2.0 / float64(in+out))
		ls := LayerSpec{Bias: make([]float64, out), Activation: acts[i-1]}
		for r := 0; r < out; r++ {
			row := make([]float64, in)
			for c := range row {
				row[c] = rng.NormFloat64() * scale
			}
			ls.Weights = append(ls.Weights, row)
		}
		spec.Layers = append(spec.Layers, ls)
	}
	return spec
}

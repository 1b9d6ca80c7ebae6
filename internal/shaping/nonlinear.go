package shaping

import (
	"fmt"
	"math"

	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/nn"
)

// Nonlinear encodes the clamped input with a small feed-forward network.
// Outputs of a sigmoid final layer are used as is; any other final layer is
// squashed with (tanh(y)+1)/2.
type Nonlinear struct {
	net    *nn.MLP
	x      []float64
	y      []float64
	squash bool
	dst    jam.LatentVector
}

// NewNonlinear wraps net, which must map in inputs to out latents.
func NewNonlinear(net *nn.MLP, in, out int) (*Nonlinear, error) {
	if net.InputDim() != in || net.OutputDim() != out {
		return nil, fmt.Errorf("%w: encoder is %d->%d, pipeline needs %d->%d",
			jam.ErrDimensionMismatch, net.InputDim(), net.OutputDim(), in, out)
	}
	return &Nonlinear{
		net:    net,
		x:      make([]float64, in),
		y:      make([]float64, out),
		squash: net.OutputActivation() != nn.Sigmoid,
		dst:    make(jam.LatentVector, out),
	}, nil
}

func (n *Nonlinear) Dim() int     { return len(n.dst) }
func (n *Nonlinear) Mode() string { return "nonlinear" }

func (n *Nonlinear) Shape(raw jam.ControlVector) jam.LatentVector {
	clampInput(n.x, raw)
	if err := n.net.Forward(n.y, n.x); err != nil {
		// shapes are checked at construction
		for i := range n.dst {
			n.dst[i] = n.x[i%len(n.x)]
		}
		return n.dst
	}
	for i, y := range n.y {
		if n.squash {
			y = (math.Tanh(y) + 1) / 2
		}
		n.dst[i] = jam.Unit(y)
	}
	return n.dst
}

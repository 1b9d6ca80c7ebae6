package agent

import (
	"fmt"
	"math"

	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/nn"
)

// CorrectionOutputs is the width of a correction network: one delta per
// response field.
const CorrectionOutputs = 4

// MLCorrected adds a learned adjustment to the rule response. The network
// sees the mean of the last K latents followed by the rule response in
// unit form, and emits one value per field in [-1,1] (tanh output). Each
// delta is scaled to at most bound times the rule value of that field.
type MLCorrected struct {
	rule  *RuleBased
	net   *nn.MLP
	k     int
	bound float64
	log   jam.Logger

	x      []float64
	y      []float64
	failed int64
}

// NewMLCorrected wraps rule with net. net must take latentDim+4 inputs and
// produce 4 outputs.
func NewMLCorrected(rule *RuleBased, net *nn.MLP, k int, bound float64, logger jam.Logger) (*MLCorrected, error) {
	in := rule.history.Dim() + CorrectionOutputs
	if net.InputDim() != in || net.OutputDim() != CorrectionOutputs {
		return nil, fmt.Errorf("%w: correction net is %d->%d, want %d->%d",
			jam.ErrDimensionMismatch, net.InputDim(), net.OutputDim(), in, CorrectionOutputs)
	}
	return &MLCorrected{
		rule:  rule,
		net:   net,
		k:     max(k, 1),
		bound: jam.Unit(bound),
		log:   jam.OrNop(logger),
		x:     make([]float64, in),
		y:     make([]float64, CorrectionOutputs),
	}, nil
}

func (m *MLCorrected) Respond(latent jam.LatentVector) jam.AgentResponse {
	base := m.rule.Respond(latent)

	dim := m.rule.history.Dim()
	m.rule.history.MeanInto(m.x[:dim], m.k)
	unit := [CorrectionOutputs]float64{base.DensityBias, base.TensionBias, base.TempoUnit(), base.FillProbability}
	copy(m.x[dim:], unit[:])

	if err := m.net.Forward(m.y, m.x); err != nil {
		m.fail(err)
		return base
	}
	for _, d := range m.y {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			m.fail(fmt.Errorf("non-finite correction %v", m.y))
			return base
		}
	}

	raw := [CorrectionOutputs]float64{base.DensityBias, base.TensionBias, base.TempoHint, base.FillProbability}
	for i, d := range m.y {
		raw[i] += m.bound * math.Abs(raw[i]) * jam.Clamp(d, -1, 1)
	}
	out := jam.AgentResponse{
		DensityBias:     raw[0],
		TensionBias:     raw[1],
		TempoHint:       raw[2],
		FillProbability: raw[3],
	}
	return out.Clamp()
}

func (m *MLCorrected) fail(err error) {
	m.failed++
	if m.failed == 1 {
		m.log.Info("agent correction failed, using rule output", "err", err)
	}
}

func (m *MLCorrected) Snapshot() jam.AgentSnapshot {
	s := m.rule.Snapshot()
	s.Corrected = true
	return s
}

// Failures counts ticks where the rule output was used unchanged.
func (m *MLCorrected) Failures() int64 { return m.failed }

// Package agent implements the behavioral co-performer.
//
// The agent keeps a short history of latent vectors and exponential moving
// averages of intensity (latent 0) and density (latent 1). The intensity
// average selects a behavior label and the label decides the bands the
// response is held in. Response values are smoothed with the same decay as
// the averages, so they stay continuous while the label is discrete.
//
// Two strategies satisfy [jam.Agent]: [RuleBased] and [MLCorrected], which
// adds a small bounded learned adjustment on top of the rules. [New] picks
// one once, at construction.
package agent

import (
	"math/rand"

	"github.com/san-kum/brainjam/internal/jam"
)

// RuleBased is the deterministic agent. With zero jitter its output is a
// pure function of the latent sequence.
type RuleBased struct {
	rules   Rules
	alpha   float64
	history *History
	rng     *rand.Rand

	started bool
	emaI    float64
	emaD    float64
	label   jam.Behavior
	out     jam.AgentResponse
}

// NewRuleBased creates an agent whose averages update with weight alpha
// per call and whose history keeps capacity latents of dim components.
func NewRuleBased(rules Rules, alpha float64, capacity, dim int, seed int64) *RuleBased {
	return &RuleBased{
		rules:   rules,
		alpha:   jam.Unit(alpha),
		history: NewHistory(capacity, dim),
		rng:     rand.New(rand.NewSource(seed)),
		emaI:    0.5,
		emaD:    0.5,
		label:   jam.Responsive,
	}
}

func (a *RuleBased) Respond(latent jam.LatentVector) jam.AgentResponse {
	in := readInputs(latent)
	a.history.Push(latent)

	if !a.started {
		a.emaI, a.emaD = in.intensity, in.density
	} else {
		a.emaI += a.alpha * (in.intensity - a.emaI)
		a.emaD += a.alpha * (in.density - a.emaD)
	}
	a.label = a.rules.Classify(a.emaI)

	target := a.rules.target(a.label, in, a.emaI, a.emaD, a.rng)
	if !a.started {
		a.out = target
		a.started = true
	} else {
		a.out.DensityBias += a.alpha * (target.DensityBias - a.out.DensityBias)
		a.out.TensionBias += a.alpha * (target.TensionBias - a.out.TensionBias)
		a.out.TempoHint += a.alpha * (target.TempoHint - a.out.TempoHint)
		a.out.FillProbability += a.alpha * (target.FillProbability - a.out.FillProbability)
	}
	a.out = hold(a.label, a.out, a.emaD)
	return a.out
}

func (a *RuleBased) Snapshot() jam.AgentSnapshot {
	return jam.AgentSnapshot{
		Label:        a.label,
		EMAIntensity: a.emaI,
		EMADensity:   a.emaD,
		History:      a.history.Len(),
	}
}

// History exposes the latent ring for read-only use on the cycle goroutine.
func (a *RuleBased) History() *History { return a.history }

// Reset returns the agent to its initial state.
func (a *RuleBased) Reset() {
	a.history.Reset()
	a.started = false
	a.emaI, a.emaD = 0.5, 0.5
	a.label = jam.Responsive
	a.out = jam.AgentResponse{}
}

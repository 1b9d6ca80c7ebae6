package agent

import (
	"math/rand"

	"github.com/san-kum/brainjam/internal/jam"
)

// Band is a closed interval a response field is held inside.
type Band struct{ Lo, Hi float64 }

func (b Band) clamp(x float64) float64 { return jam.Clamp(x, b.Lo, b.Hi) }

// Ranges are the response bands documented for each behavior.
var Ranges = map[jam.Behavior]struct {
	Density, Tension, Tempo Band
}{
	jam.Calm:       {Density: Band{0.1, 0.3}, Tension: Band{0, 0.4}, Tempo: Band{60, 80}},
	jam.Responsive: {Density: Band{0, 1}, Tension: Band{0, 1}, Tempo: Band{80, 110}},
	jam.Active:     {Density: Band{0.7, 0.9}, Tension: Band{0.4, 1}, Tempo: Band{100, 140}},
}

// ResponsiveSpread is how far the responsive density may stray from
// EMA(density).
const ResponsiveSpread = 0.2

// Rules holds the tunable constants of the rule-based agent.
type Rules struct {
	CalmBelow   float64
	ActiveAbove float64
	Jitter      float64
}

// Classify returns the behavior for an intensity average. There is no
// hysteresis: the label may change on every call.
func (r Rules) Classify(ema float64) jam.Behavior {
	switch {
	case ema < r.CalmBelow:
		return jam.Calm
	case ema > r.ActiveAbove:
		return jam.Active
	}
	return jam.Responsive
}

type inputs struct {
	intensity, density, tension, fill float64
}

func readInputs(l jam.LatentVector) inputs {
	return inputs{
		intensity: jam.Unit(l.At(0)),
		density:   jam.Unit(l.At(1)),
		tension:   jam.Unit(l.At(2)),
		fill:      jam.Unit(l.At(3)),
	}
}

// target is the instantaneous rule output for label before smoothing.
func (r Rules) target(label jam.Behavior, in inputs, emaI, emaD float64, rng *rand.Rand) jam.AgentResponse {
	jit := func(scale float64) float64 {
		if r.Jitter <= 0 || rng == nil {
			return 0
		}
		return r.Jitter * scale * (2*rng.Float64() - 1)
	}
	switch label {
	case jam.Calm:
		return jam.AgentResponse{
			DensityBias:     0.2 + jit(1),
			TensionBias:     0.2 + 0.2*in.tension,
			TempoHint:       60 + 20*emaI,
			FillProbability: 0.1 + 0.1*emaD,
		}
	case jam.Active:
		return jam.AgentResponse{
			DensityBias:     0.8 + jit(1),
			TensionBias:     0.5 + 0.3*in.tension,
			TempoHint:       100 + 40*emaI,
			FillProbability: 0.6 + 0.3*emaD,
		}
	}
	return jam.AgentResponse{
		DensityBias:     emaD + jit(2),
		TensionBias:     in.tension + jit(1.5),
		TempoHint:       80 + 50*emaI,
		FillProbability: 0.8 * in.fill,
	}
}

// hold clamps a smoothed response into the bands of label.
func hold(label jam.Behavior, r jam.AgentResponse, emaD float64) jam.AgentResponse {
	bands := Ranges[label]
	density := bands.Density
	if label == jam.Responsive {
		density = Band{max(0, emaD-ResponsiveSpread), min(1, emaD+ResponsiveSpread)}
	}
	r.DensityBias = density.clamp(r.DensityBias)
	r.TensionBias = bands.Tension.clamp(r.TensionBias)
	r.TempoHint = bands.Tempo.clamp(r.TempoHint)
	return r.Clamp()
}

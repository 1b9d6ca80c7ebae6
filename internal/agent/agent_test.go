package agent

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/nn"
)

const tick = 100 * time.Millisecond

func defaultRules() Rules {
	return Rules{CalmBelow: 0.3, ActiveAbove: 0.7}
}

func oneSecondAlpha() float64 {
	return jam.HalfLifeAlpha(1, tick.Seconds())
}

func latent(intensity, density float64) jam.LatentVector {
	return jam.LatentVector{intensity, density, 0.5, 0.5}
}

func TestClassify(t *testing.T) {
	r := defaultRules()
	tests := []struct {
		ema  float64
		want jam.Behavior
	}{
		{0, jam.Calm},
		{0.29, jam.Calm},
		{0.3, jam.Responsive},
		{0.5, jam.Responsive},
		{0.7, jam.Responsive},
		{0.71, jam.Active},
		{1, jam.Active},
	}
	for _, tt := range tests {
		if got := r.Classify(tt.ema); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.ema, got, tt.want)
		}
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory(3, 2)
	for i := 1; i <= 5; i++ {
		h.Push(jam.LatentVector{float64(i), 0})
	}
	if h.Len() != 3 {
		t.Fatalf("expected len 3, got %d", h.Len())
	}
	if h.At(0)[0] != 5 || h.At(2)[0] != 3 {
		t.Errorf("unexpected order: newest %v oldest %v", h.At(0), h.At(2))
	}
	if h.At(3) != nil {
		t.Error("expected nil past the end")
	}

	mean := make([]float64, 2)
	if n := h.MeanInto(mean, 2); n != 2 {
		t.Errorf("expected 2 entries used, got %d", n)
	}
	if mean[0] != 4.5 {
		t.Errorf("expected mean 4.5, got %f", mean[0])
	}

	h.Push(jam.LatentVector{1})
	if h.At(0)[1] != 0.5 {
		t.Errorf("missing component should read 0.5, got %f", h.At(0)[1])
	}
}

func TestRuleBased_HistoryBounded(t *testing.T) {
	a := NewRuleBased(defaultRules(), oneSecondAlpha(), 100, 4, 1)
	for i := 0; i < 1000; i++ {
		a.Respond(latent(0.5, 0.5))
	}
	if got := a.Snapshot().History; got != 100 {
		t.Errorf("history should stay at capacity 100, got %d", got)
	}
}

func TestRuleBased_ConstantLowIsCalm(t *testing.T) {
	a := NewRuleBased(defaultRules(), oneSecondAlpha(), 100, 4, 1)
	var r jam.AgentResponse
	for i := 0; i < 150; i++ {
		r = a.Respond(latent(0.2, 0.2))
	}
	if a.Snapshot().Label != jam.Calm {
		t.Errorf("expected calm, got %v", a.Snapshot().Label)
	}
	if r.DensityBias < 0.1 || r.DensityBias > 0.3 {
		t.Errorf("density bias %f outside [0.1, 0.3]", r.DensityBias)
	}
	if r.TempoHint < 60 || r.TempoHint > 80 {
		t.Errorf("tempo %f outside [60, 80]", r.TempoHint)
	}
}

func TestRuleBased_StateOrderAndRanges(t *testing.T) {
	a := NewRuleBased(defaultRules(), oneSecondAlpha(), 100, 4, 1)

	var seq []jam.Behavior
	steps := 300
	for i := 0; i <= 2*steps; i++ {
		x := float64(i) / float64(steps)
		if i > steps {
			x = 2 - x
		}
		r := a.Respond(latent(x, x))
		snap := a.Snapshot()
		if len(seq) == 0 || seq[len(seq)-1] != snap.Label {
			seq = append(seq, snap.Label)
		}

		bands := Ranges[snap.Label]
		density := bands.Density
		if snap.Label == jam.Responsive {
			density = Band{math.Max(0, snap.EMADensity-ResponsiveSpread), math.Min(1, snap.EMADensity+ResponsiveSpread)}
		}
		if r.DensityBias < density.Lo || r.DensityBias > density.Hi {
			t.Fatalf("tick %d %s: density %f outside %v", i, snap.Label, r.DensityBias, density)
		}
		if r.TempoHint < bands.Tempo.Lo || r.TempoHint > bands.Tempo.Hi {
			t.Fatalf("tick %d %s: tempo %f outside %v", i, snap.Label, r.TempoHint, bands.Tempo)
		}
		if r.FillProbability < 0 || r.FillProbability > 1 || r.TensionBias < 0 || r.TensionBias > 1 {
			t.Fatalf("tick %d: response out of range %+v", i, r)
		}
	}

	want := []jam.Behavior{jam.Calm, jam.Responsive, jam.Active, jam.Responsive, jam.Calm}
	if len(seq) != len(want) {
		t.Fatalf("expected states %v, got %v", want, seq)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("expected states %v, got %v", want, seq)
		}
	}
}

func TestRuleBased_StepReachesActive(t *testing.T) {
	a := NewRuleBased(defaultRules(), oneSecondAlpha(), 100, 4, 1)
	for i := 0; i < 50; i++ {
		a.Respond(latent(0.1, 0.1))
	}
	if a.Snapshot().Label != jam.Calm {
		t.Fatalf("expected calm before the step, got %v", a.Snapshot().Label)
	}

	prev := a.Respond(latent(0.9, 0.9)).TempoHint
	reached := -1
	for i := 2; i <= 40; i++ {
		r := a.Respond(latent(0.9, 0.9))
		if r.TempoHint < prev {
			t.Fatalf("tick %d: tempo fell from %f to %f", i, prev, r.TempoHint)
		}
		prev = r.TempoHint
		if reached < 0 && a.Snapshot().Label == jam.Active {
			reached = i
		}
	}
	// two half-lives land exactly on the threshold; one more tick crosses it
	if reached < 0 || reached > 21 {
		t.Errorf("expected active within 21 ticks, reached at %d", reached)
	}
}

func TestRuleBased_DeterministicWithoutJitter(t *testing.T) {
	a := NewRuleBased(defaultRules(), 0.3, 10, 4, 1)
	b := NewRuleBased(defaultRules(), 0.3, 10, 4, 99)
	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 100; i++ {
		l := jam.LatentVector{rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64()}
		if a.Respond(l) != b.Respond(l) {
			t.Fatalf("tick %d: outputs differ without jitter", i)
		}
	}
}

func TestNew_FallbackMatchesRules(t *testing.T) {
	cfg := config.DefaultConfig().Agent
	cfg.CorrectionPath = filepath.Join(t.TempDir(), "missing.yaml")
	withMissing := New(cfg, 4, 100, tick, 1, nil)
	if _, ok := withMissing.(*RuleBased); !ok {
		t.Fatalf("expected *RuleBased, got %T", withMissing)
	}

	cfg.CorrectionPath = ""
	rules := New(cfg, 4, 100, tick, 1, nil)

	rng := rand.New(rand.NewSource(8))
	for i := 0; i < 200; i++ {
		l := jam.LatentVector{rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64()}
		if withMissing.Respond(l) != rules.Respond(l) {
			t.Fatalf("tick %d: fallback differs from rule output", i)
		}
	}
}

func TestNew_MismatchedNetFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corr.yaml")
	spec := nn.RandomSpec(rand.New(rand.NewSource(1)), []int{4, 8, 4}, []nn.Activation{nn.ReLU, nn.Tanh})
	if err := nn.Save(path, spec); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig().Agent
	cfg.CorrectionPath = path
	if a := New(cfg, 4, 100, tick, 1, nil); a.Snapshot().Corrected {
		t.Error("a 4-input net cannot correct a 4-dim latent agent")
	}
}

func TestMLCorrected_Bounded(t *testing.T) {
	spec := nn.RandomSpec(rand.New(rand.NewSource(2)), []int{8, 8, 4}, []nn.Activation{nn.ReLU, nn.Tanh})
	for i := range spec.Layers[1].Bias {
		spec.Layers[1].Bias[i] = 3
	}
	net, err := nn.New(spec)
	if err != nil {
		t.Fatal(err)
	}

	twin := NewRuleBased(defaultRules(), oneSecondAlpha(), 100, 4, 1)
	m, err := NewMLCorrected(NewRuleBased(defaultRules(), oneSecondAlpha(), 100, 4, 1), net, 10, 0.1, nil)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(6))
	moved := false
	for i := 0; i < 300; i++ {
		l := jam.LatentVector{rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64()}
		base := twin.Respond(l)
		got := m.Respond(l)

		pairs := [][2]float64{
			{base.DensityBias, got.DensityBias},
			{base.TensionBias, got.TensionBias},
			{base.TempoHint, got.TempoHint},
			{base.FillProbability, got.FillProbability},
		}
		for j, p := range pairs {
			if math.Abs(p[1]-p[0]) > 0.1*math.Abs(p[0])+1e-12 {
				t.Fatalf("tick %d field %d: correction %f exceeds 10%% of %f", i, j, p[1]-p[0], p[0])
			}
			if p[1] != p[0] {
				moved = true
			}
		}
		if got != got.Clamp() {
			t.Fatalf("tick %d: response outside declared range %+v", i, got)
		}
	}
	if !moved {
		t.Error("correction never changed the output")
	}
	if !m.Snapshot().Corrected {
		t.Error("snapshot should report the correction")
	}
}

func TestMLCorrected_ZeroNetIsIdentity(t *testing.T) {
	spec := nn.Spec{Inputs: 6, Layers: []nn.LayerSpec{{
		Weights:    make([][]float64, 4),
		Bias:       make([]float64, 4),
		Activation: nn.Tanh,
	}}}
	for i := range spec.Layers[0].Weights {
		spec.Layers[0].Weights[i] = make([]float64, 6)
	}
	net, err := nn.New(spec)
	if err != nil {
		t.Fatal(err)
	}
	twin := NewRuleBased(defaultRules(), 0.2, 20, 2, 1)
	m, err := NewMLCorrected(NewRuleBased(defaultRules(), 0.2, 20, 2, 1), net, 5, 0.1, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		l := jam.LatentVector{float64(i%10) / 10, 0.4}
		if a, b := twin.Respond(l), m.Respond(l); a != b {
			t.Fatalf("tick %d: zero correction changed output %+v vs %+v", i, a, b)
		}
	}
}

package shaping

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

func shapers(t *testing.T) map[string]jam.Shaper {
	t.Helper()
	net, err := nn.New(nn.RandomSpec(rand.New(rand.NewSource(5)), []int{4, 8, 2}, []nn.Activation{nn.Tanh, nn.Linear}))
	if err != nil {
		t.Fatal(err)
	}
	enc, err := NewNonlinear(net, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]jam.Shaper{
		"linear":    NewLinear(4, 3, 5, 3),
		"nonlinear": enc,
		"ema":       NewTemporal(4, FilterEMA, 0.3, 5, true, 10),
		"average":   NewTemporal(4, FilterMovingAverage, 0.3, 5, false, 10),
		"median":    NewTemporal(4, FilterMedian, 0.3, 4, false, 10),
	}
}

func TestShape_ClampsEverything(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	specials := []float64{math.NaN(), math.Inf(1), math.Inf(-1), -3, 7, 0, 1}

	for name, s := range shapers(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 300; i++ {
				raw := make(jam.ControlVector, 4)
				for j := range raw {
					if rng.Intn(4) == 0 {
						raw[j] = specials[rng.Intn(len(specials))]
					} else {
						raw[j] = rng.Float64()*3 - 1
					}
				}
				out := s.Shape(raw)
				if len(out) != s.Dim() {
					t.Fatalf("expected %d latents, got %d", s.Dim(), len(out))
				}
				if !out.IsValid() {
					t.Fatalf("tick %d: invalid latent %v for input %v", i, out, raw)
				}
			}
		})
	}
}

func TestShape_FirstCallIsClampedInput(t *testing.T) {
	raw := jam.ControlVector{0.2, 1.7, math.NaN(), 0.9}
	want := []float64{0.2, 1, 0.5, 0.9}

	for _, s := range []jam.Shaper{
		NewLinear(4, 4, 10, 5),
		NewTemporal(4, FilterEMA, 0.2, 3, false, 0),
		NewTemporal(4, FilterMedian, 0.2, 3, false, 0),
	} {
		out := s.Shape(raw)
		for i := range want {
			if out[i] != want[i] {
				t.Errorf("%s: component %d = %f, want %f", s.Mode(), i, out[i], want[i])
			}
		}
	}
}

func TestTemporal_EMAConverges(t *testing.T) {
	alpha := jam.HalfLifeAlpha(0.2, tick.Seconds())
	s := NewTemporal(2, FilterEMA, alpha, 1, false, 0)
	s.Shape(jam.ControlVector{0, 0})
	var out jam.LatentVector
	for i := 0; i < 2; i++ {
		out = s.Shape(jam.ControlVector{1, 1})
	}
	// two ticks equal one half-life
	if math.Abs(out[0]-0.5) > 1e-9 {
		t.Errorf("after one half-life expected 0.5, got %f", out[0])
	}
	for i := 0; i < 100; i++ {
		out = s.Shape(jam.ControlVector{1, 1})
	}
	if math.Abs(out[0]-1) > 1e-6 {
		t.Errorf("expected convergence to 1, got %f", out[0])
	}
}

func TestTemporal_MedianRejectsSpike(t *testing.T) {
	s := NewTemporal(1, FilterMedian, 0, 5, false, 0)
	in := []float64{0.2, 0.2, 0.2, 1.0, 0.2}
	var out jam.LatentVector
	for _, x := range in {
		out = s.Shape(jam.ControlVector{x})
	}
	if out[0] != 0.2 {
		t.Errorf("median should reject spike, got %f", out[0])
	}
}

func TestTemporal_MovingAverage(t *testing.T) {
	s := NewTemporal(1, FilterMovingAverage, 0, 4, false, 0)
	var out jam.LatentVector
	for _, x := range []float64{0, 0, 0, 0, 1, 1} {
		out = s.Shape(jam.ControlVector{x})
	}
	if math.Abs(out[0]-0.5) > 1e-12 {
		t.Errorf("expected 0.5, got %f", out[0])
	}
}

func TestTemporal_Velocity(t *testing.T) {
	s := NewTemporal(2, FilterEMA, 0.5, 1, true, 10)
	if s.Dim() != 3 {
		t.Fatalf("expected 3 latents, got %d", s.Dim())
	}
	for i := 0; i < 20; i++ {
		out := s.Shape(jam.ControlVector{0.4, 0.6})
		if out[2] != 0 {
			t.Fatalf("constant input should have zero velocity, got %f", out[2])
		}
	}
	var out jam.LatentVector
	for i := 0; i < 20; i++ {
		x := float64(i % 2)
		out = s.Shape(jam.ControlVector{x, 1 - x})
	}
	if out[2] < 0.9 {
		t.Errorf("alternating input should saturate velocity, got %f", out[2])
	}
}

func TestLinear_ConstantInputCentres(t *testing.T) {
	s := NewLinear(4, 2, 5, 5)
	var out jam.LatentVector
	for i := 0; i < 100; i++ {
		out = s.Shape(jam.ControlVector{0.3, 0.3, 0.3, 0.3})
	}
	for i, x := range out {
		if math.Abs(x-0.5) > 1e-9 {
			t.Errorf("component %d: expected 0.5, got %f", i, x)
		}
	}
}

func TestLinear_TracksPrincipalAxis(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	s := NewLinear(4, 2, 20, 10)

	var xs, ys []float64
	for i := 0; i < 600; i++ {
		v := 0.5 + 0.4*math.Sin(float64(i)*0.07)
		raw := jam.ControlVector{v, v, 1 - v, 0.5 + 0.02*rng.NormFloat64()}
		out := s.Shape(raw)
		if i > 200 {
			xs = append(xs, v)
			ys = append(ys, out[0])
		}
	}
	if c := math.Abs(correlation(xs, ys)); c < 0.9 {
		t.Errorf("first component should follow the shared signal, |corr| = %f", c)
	}
}

func TestNew_Modes(t *testing.T) {
	cfg := config.DefaultConfig().Shaper
	for _, mode := range Modes() {
		cfg.Mode = mode
		cfg.LatentDim = 2
		cfg.WeightsPath = filepath.Join(t.TempDir(), "missing.yaml")
		s, err := New(cfg, 4, tick, nil)
		if err != nil {
			t.Fatalf("mode %s: %v", mode, err)
		}
		if s.Dim() < 2 {
			t.Errorf("mode %s: expected at least 2 latents, got %d", mode, s.Dim())
		}
	}

	cfg.Mode = "wavelet"
	if _, err := New(cfg, 4, tick, nil); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestNew_NonlinearFallbackMatchesLinear(t *testing.T) {
	cfg := config.DefaultConfig().Shaper
	cfg.Mode = "nonlinear"
	cfg.LatentDim = 3
	cfg.WeightsPath = filepath.Join(t.TempDir(), "missing.yaml")

	fallback, err := New(cfg, 4, tick, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Mode = "linear"
	linear, err := New(cfg, 4, tick, nil)
	if err != nil {
		t.Fatal(err)
	}

	src := rand.New(rand.NewSource(9))
	for i := 0; i < 200; i++ {
		raw := jam.ControlVector{src.Float64(), src.Float64(), src.Float64(), src.Float64()}
		a := fallback.Shape(raw)
		b := linear.Shape(raw)
		for j := range a {
			if a[j] != b[j] {
				t.Fatalf("tick %d component %d: %v != %v", i, j, a[j], b[j])
			}
		}
	}
}

func TestNew_NonlinearLoadsEncoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encoder.yaml")
	spec := nn.RandomSpec(rand.New(rand.NewSource(1)), []int{4, 8, 2}, []nn.Activation{nn.Tanh, nn.Sigmoid})
	if err := nn.Save(path, spec); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig().Shaper
	cfg.Mode = "nonlinear"
	cfg.LatentDim = 2
	cfg.WeightsPath = path

	s, err := New(cfg, 4, tick, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Mode() != "nonlinear" {
		t.Errorf("expected nonlinear shaper, got %s", s.Mode())
	}

	cfg.LatentDim = 3
	s, err = New(cfg, 4, tick, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Mode() != "linear" {
		t.Errorf("mismatched encoder should fall back to linear, got %s", s.Mode())
	}
}

func correlation(a, b []float64) float64 {
	var ma, mb float64
	for i := range a {
		ma += a[i]
		mb += b[i]
	}
	ma /= float64(len(a))
	mb /= float64(len(b))
	var num, da, db float64
	for i := range a {
		num += (a[i] - ma) * (b[i] - mb)
		da += (a[i] - ma) * (a[i] - ma)
		db += (b[i] - mb) * (b[i] - mb)
	}
	if da == 0 || db == 0 {
		return 0
	}
	return num / math.Sqrt(da*db)
}

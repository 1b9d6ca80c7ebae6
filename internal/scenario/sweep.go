package scenario

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/jam"
)

// Tunables are the configuration fields a sweep can vary. Durations are
// given in seconds.
var Tunables = map[string]func(*config.Config, float64){
	"agent.half_life":        func(c *config.Config, v float64) { c.Agent.HalfLife = seconds(v) },
	"agent.calm_threshold":   func(c *config.Config, v float64) { c.Agent.CalmThreshold = v },
	"agent.active_threshold": func(c *config.Config, v float64) { c.Agent.ActiveThreshold = v },
	"agent.jitter":           func(c *config.Config, v float64) { c.Agent.Jitter = v },
	"shaper.half_life":       func(c *config.Config, v float64) { c.Shaper.HalfLife = seconds(v) },
	"mapper.gain":            func(c *config.Config, v float64) { c.Mapper.Gain = v },
	"mapper.hysteresis":      func(c *config.Config, v float64) { c.Mapper.Hysteresis = v },
	"mapper.drift_amplitude": func(c *config.Config, v float64) { c.Mapper.DriftAmplitude = v },
	"mapper.inertia":         func(c *config.Config, v float64) { c.Mapper.Inertia = seconds(v) },
	"engine.smoothing":       func(c *config.Config, v float64) { c.Engine.Smoothing = seconds(v) },
}

func seconds(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }

func TunableNames() []string {
	names := make([]string, 0, len(Tunables))
	for k := range Tunables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Sweep runs one scenario for each value of a single tunable.
type Sweep struct {
	Param  string
	Values []float64
	// Workers bounds concurrent runs; zero means one per value.
	Workers int
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// Point is the outcome of one sweep value.
type Point struct {
	Value  float64 `json:"value"`
	Report *Report `json:"report"`
}

// Run executes every point concurrently. Results keep the order of
// Values; the first error cancels the remaining runs.
func (sw Sweep) Run(ctx context.Context, sc *Scenario, base *config.Config, logger jam.Logger) ([]Point, error) {
	set, ok := Tunables[sw.Param]
	if !ok {
		return nil, jam.NewConfigError("sweep.param", sw.Param, "unknown tunable (have "+strings.Join(TunableNames(), ", ")+")")
	}
	if len(sw.Values) == 0 {
		return nil, jam.NewConfigError("sweep.values", nil, "empty")
	}

	// the preset is applied once so the swept field survives it
	base, err := sc.Config(base)
	if err != nil {
		return nil, err
	}
	fixed := *sc
	fixed.Preset = ""

	points := make([]Point, len(sw.Values))
	g, ctx := errgroup.WithContext(ctx)
	if sw.Workers > 0 {
		g.SetLimit(sw.Workers)
	}
	for i, v := range sw.Values {
		g.Go(func() error {
			cfg := base.Clone()
			set(cfg, v)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%s=%g: %w", sw.Param, v, err)
			}
			rep, err := Run(ctx, &fixed, cfg, RunOptions{Logger: logger})
			if err != nil {
				return fmt.Errorf("%s=%g: %w", sw.Param, v, err)
			}
			points[i] = Point{Value: v, Report: rep}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

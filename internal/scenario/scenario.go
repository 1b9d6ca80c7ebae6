// Package scenario runs scripted performances offline and checks the
// behavior they produce against expectations written in YAML.
package scenario

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/control"
	"github.com/san-kum/brainjam/internal/jam"
)

//go:embed builtin/*.yaml
var builtin embed.FS

// Scenario is a scripted performance plus what it must achieve.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Preset      string        `yaml:"preset,omitempty"`
	Engine      string        `yaml:"engine,omitempty"`
	Seed        int64         `yaml:"seed,omitempty"`
	Duration    time.Duration `yaml:"duration"`
	Script      []Step        `yaml:"script"`
	Expect      Expect        `yaml:"expect"`
}

// Step holds Value for Hold, or ramps from the previous value to Value over
// Ramp. A single-element Value applies to every control component.
type Step struct {
	Hold  time.Duration `yaml:"hold,omitempty"`
	Ramp  time.Duration `yaml:"ramp,omitempty"`
	Value []float64     `yaml:"value"`
}

// Expect lists the checks a run must pass. Zero values are not checked.
type Expect struct {
	FinalLabel  string        `yaml:"final_label,omitempty"`
	DensityBias []float64     `yaml:"density_bias,omitempty"`
	PeakMax     float64       `yaml:"peak_max,omitempty"`
	Reach       *Reach        `yaml:"reach,omitempty"`
	Visits      []string      `yaml:"visits,omitempty"`
	Rising      string        `yaml:"rising,omitempty"`
	LatencyP95  time.Duration `yaml:"latency_p95,omitempty"`
}

// Reach requires Label within Within of After.
type Reach struct {
	Label  string        `yaml:"label"`
	After  time.Duration `yaml:"after"`
	Within time.Duration `yaml:"within"`
}

func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func Load(file string) (*Scenario, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Builtin returns the embedded scenario called name.
func Builtin(name string) (*Scenario, error) {
	data, err := builtin.ReadFile(path.Join("builtin", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("no builtin scenario %q (have %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	return Parse(data)
}

func BuiltinNames() []string {
	entries, _ := builtin.ReadDir("builtin")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Resolve loads ref as a file when it exists, and as a builtin otherwise.
func Resolve(ref string) (*Scenario, error) {
	if _, err := os.Stat(ref); err == nil {
		return Load(ref)
	}
	return Builtin(ref)
}

func (sc *Scenario) Validate() error {
	if sc.Duration <= 0 {
		return jam.NewConfigError("scenario.duration", sc.Duration, "must be positive")
	}
	if len(sc.Script) == 0 {
		return jam.NewConfigError("scenario.script", nil, "needs at least one step")
	}
	for i, st := range sc.Script {
		if (st.Hold > 0) == (st.Ramp > 0) {
			return jam.NewConfigError(fmt.Sprintf("scenario.script[%d]", i), st, "set exactly one of hold and ramp")
		}
		if len(st.Value) == 0 {
			return jam.NewConfigError(fmt.Sprintf("scenario.script[%d].value", i), nil, "missing")
		}
		if st.Ramp > 0 && i == 0 {
			return jam.NewConfigError("scenario.script[0]", st, "a ramp needs a previous value")
		}
	}
	e := sc.Expect
	if len(e.DensityBias) != 0 && len(e.DensityBias) != 2 {
		return jam.NewConfigError("expect.density_bias", e.DensityBias, "want [lo, hi]")
	}
	labels := append([]string{e.FinalLabel}, e.Visits...)
	if e.Reach != nil {
		labels = append(labels, e.Reach.Label)
	}
	for _, l := range labels {
		if l != "" && !jam.Behavior(l).IsValid() {
			return jam.NewConfigError("expect", l, "unknown behavior label")
		}
	}
	return nil
}

// Config derives the pipeline configuration from base: the scenario's
// preset replaces base, then its engine and seed override.
func (sc *Scenario) Config(base *config.Config) (*config.Config, error) {
	cfg := base.Clone()
	if sc.Preset != "" {
		p := config.GetPreset(sc.Preset)
		if p == nil {
			return nil, jam.NewConfigError("scenario.preset", sc.Preset, "unknown preset")
		}
		p.Agent.CorrectionPath = base.Agent.CorrectionPath
		p.Shaper.WeightsPath = base.Shaper.WeightsPath
		cfg = p
	}
	if sc.Engine != "" {
		cfg.Engine.Kind = sc.Engine
	}
	if sc.Seed != 0 {
		cfg.Seed = sc.Seed
	}
	cfg.Source.Kind = "scripted"
	return cfg, nil
}

// Source builds the scripted control source for dim components.
func (sc *Scenario) Source(dim int, tick time.Duration) *control.Scripted {
	segs := make([]control.Segment, 0, len(sc.Script))
	var prev jam.ControlVector
	for _, st := range sc.Script {
		v := broadcast(st.Value, dim)
		if st.Ramp > 0 {
			segs = append(segs, control.Ramp(st.Ramp, prev, v))
		} else {
			segs = append(segs, control.Segment{Duration: st.Hold, From: v})
		}
		prev = v
	}
	return control.NewScripted(dim, tick, segs...)
}

func broadcast(v []float64, dim int) jam.ControlVector {
	out := make(jam.ControlVector, dim)
	for i := range out {
		out[i] = v[min(i, len(v)-1)]
	}
	return out
}

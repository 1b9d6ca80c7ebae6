package scenario

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/metrics"
	"github.com/san-kum/brainjam/internal/session"
	"github.com/san-kum/brainjam/internal/storage"
)

// Check is the outcome of one expectation.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Report is the outcome of one scenario run.
type Report struct {
	Scenario  string          `json:"scenario"`
	Engine    jam.EngineKind  `json:"engine"`
	Checks    []Check         `json:"checks"`
	Summary   metrics.Summary `json:"summary"`
	SessionID string          `json:"session_id,omitempty"`
	// Reached is the time from Reach.After to the first frame with
	// Reach.Label, or -1 when it never appeared.
	Reached time.Duration `json:"reached"`
}

func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failures lists the checks that did not pass.
func (r *Report) Failures() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

func (r *Report) String() string {
	var b strings.Builder
	status := "PASS"
	if !r.Passed() {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "%s %s (%s)\n", status, r.Scenario, r.Engine)
	for _, c := range r.Checks {
		mark := "ok  "
		if !c.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "  %s %-14s %s\n", mark, c.Name, c.Detail)
	}
	return b.String()
}

// trace keeps the per-tick values the checks need.
type trace struct {
	labels  []jam.Behavior
	params  [][jam.NumParams]float64
	last    jam.AgentResponse
	visited map[jam.Behavior]bool
}

func (t *trace) OnTick(f *jam.Frame) {
	t.labels = append(t.labels, f.Label)
	t.params = append(t.params, f.Params.Values())
	t.last = f.Response
	t.visited[f.Label] = true
}

type RunOptions struct {
	Store   *storage.Store
	WAVPath string
	Logger  jam.Logger
}

// Run renders sc offline on top of base and evaluates its expectations.
func Run(ctx context.Context, sc *Scenario, base *config.Config, opts RunOptions) (*Report, error) {
	cfg, err := sc.Config(base)
	if err != nil {
		return nil, err
	}
	tr := &trace{visited: make(map[jam.Behavior]bool)}
	res, err := session.Render(ctx, cfg, session.RenderOptions{
		Duration:  sc.Duration,
		WAVPath:   opts.WAVPath,
		Store:     opts.Store,
		Name:      "scenario-" + sc.Name,
		Source:    sc.Source(cfg.ControlDim, cfg.TickInterval()),
		Observers: []jam.Observer{tr},
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	rep := &Report{
		Scenario:  sc.Name,
		Engine:    jam.EngineKind(cfg.Engine.Kind),
		Summary:   res.Summary,
		SessionID: res.SessionID,
		Reached:   -1,
	}
	rep.evaluate(sc.Expect, cfg, tr)
	jam.OrNop(opts.Logger).Info("scenario finished", "name", sc.Name, "passed", rep.Passed(), "ticks", res.Summary.Ticks)
	return rep, nil
}

func (r *Report) add(name string, ok bool, format string, args ...any) {
	r.Checks = append(r.Checks, Check{Name: name, Passed: ok, Detail: fmt.Sprintf(format, args...)})
}

func (r *Report) evaluate(e Expect, cfg *config.Config, tr *trace) {
	s := r.Summary
	tick := cfg.TickInterval()

	if e.FinalLabel != "" {
		r.add("final_label", s.FinalLabel == jam.Behavior(e.FinalLabel), "got %s, want %s", s.FinalLabel, e.FinalLabel)
	}
	if len(e.DensityBias) == 2 {
		d := tr.last.DensityBias
		r.add("density_bias", d >= e.DensityBias[0] && d <= e.DensityBias[1],
			"got %.3f, want [%.2f, %.2f]", d, e.DensityBias[0], e.DensityBias[1])
	}
	if e.PeakMax > 0 {
		r.add("peak", s.Peak <= e.PeakMax, "got %.3f, limit %.3f", s.Peak, e.PeakMax)
	}
	if e.LatencyP95 > 0 {
		r.add("latency_p95", s.Latency.P95 < e.LatencyP95, "got %s, limit %s", s.Latency.P95, e.LatencyP95)
	}
	if len(e.Visits) > 0 {
		var missing []string
		for _, l := range e.Visits {
			if !tr.visited[jam.Behavior(l)] {
				missing = append(missing, l)
			}
		}
		r.add("visits", len(missing) == 0, "missing %v", missing)
	}
	if rc := e.Reach; rc != nil {
		from := int(rc.After / tick)
		at := slices.Index(tr.labels[min(from, len(tr.labels)):], jam.Behavior(rc.Label))
		if at >= 0 {
			r.Reached = time.Duration(at) * tick
		}
		r.add("reach", at >= 0 && r.Reached <= rc.Within,
			"%s after %s, limit %s", rc.Label, r.Reached, rc.Within)
	}
	if e.Rising != "" {
		r.evaluateRising(e, cfg, tr)
	}
}

// evaluateRising checks that the named parameter never falls further below
// its running maximum than the mapper drift allows, from Reach.After on.
func (r *Report) evaluateRising(e Expect, cfg *config.Config, tr *trace) {
	names := jam.ParamNames(jam.EngineKind(cfg.Engine.Kind))
	idx := slices.Index(names[:], e.Rising)
	if idx < 0 {
		r.add("rising", false, "%s is not a %s parameter", e.Rising, cfg.Engine.Kind)
		return
	}
	from := 0
	if e.Reach != nil {
		from = min(int(e.Reach.After/cfg.TickInterval()), len(tr.params))
	}
	band := cfg.Mapper.DriftAmplitude + 1e-9
	peak, worst := math.Inf(-1), 0.0
	for _, p := range tr.params[from:] {
		worst = math.Max(worst, peak-p[idx])
		peak = math.Max(peak, p[idx])
	}
	r.add("rising", worst <= band, "%s largest reversal %.3f, allowed %.3f", e.Rising, worst, band)
}

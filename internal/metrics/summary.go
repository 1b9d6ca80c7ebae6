package metrics

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/san-kum/brainjam/internal/jam"
)

// Summary is the end-of-run performance report.
type Summary struct {
	Ticks           int                  `json:"ticks"`
	Duration        time.Duration        `json:"duration"`
	States          map[jam.Behavior]int `json:"states"`
	Transitions     int                  `json:"transitions"`
	FinalLabel      jam.Behavior         `json:"final_label"`
	TempoMin        float64              `json:"tempo_min"`
	TempoMax        float64              `json:"tempo_max"`
	TempoMean       float64              `json:"tempo_mean"`
	Latency         LatencyStats         `json:"latency"`
	Overruns        int                  `json:"overruns"`
	Peak            float64              `json:"peak"`
	Stability       float64              `json:"stability"`
	Controllability float64              `json:"controllability"`

	// Filled in by callers that analyze the rendered audio.
	Centroid float64 `json:"spectral_centroid,omitempty"`
	RMS      float64 `json:"rms,omitempty"`
}

// Collector is an observer feeding every metric and the label and tempo
// tallies of a Summary.
type Collector struct {
	latency  *Latency
	overruns Overruns
	peak     Peak
	stab     Stability
	ctrl     Controllability

	ticks    int
	last     time.Duration
	states   map[jam.Behavior]int
	label    jam.Behavior
	changes  int
	tempoMin float64
	tempoMax float64
	tempoSum float64
}

func NewCollector() *Collector {
	c := &Collector{latency: NewLatency(DefaultWindow)}
	c.Reset()
	return c
}

func (c *Collector) OnTick(f *jam.Frame) {
	for _, m := range c.Metrics() {
		m.Observe(f)
	}
	c.ticks++
	c.last = f.Time
	c.states[f.Label]++
	if c.ticks > 1 && f.Label != c.label {
		c.changes++
	}
	c.label = f.Label
	tempo := f.Response.TempoHint
	c.tempoMin = math.Min(c.tempoMin, tempo)
	c.tempoMax = math.Max(c.tempoMax, tempo)
	c.tempoSum += tempo
}

// Metrics returns the individual accumulators in report order.
func (c *Collector) Metrics() []jam.Metric {
	return []jam.Metric{c.latency, &c.overruns, &c.peak, &c.stab, &c.ctrl}
}

// Values maps metric names to their current values.
func (c *Collector) Values() map[string]float64 {
	out := make(map[string]float64)
	for _, m := range c.Metrics() {
		out[m.Name()] = m.Value()
	}
	return out
}

func (c *Collector) Summary(tick time.Duration) Summary {
	s := Summary{
		Ticks:           c.ticks,
		States:          make(map[jam.Behavior]int, len(c.states)),
		Transitions:     c.changes,
		FinalLabel:      c.label,
		Latency:         c.latency.Stats(),
		Overruns:        int(c.overruns.Value()),
		Peak:            c.peak.Value(),
		Stability:       c.stab.Value(),
		Controllability: c.ctrl.Value(),
	}
	if c.ticks > 0 {
		s.Duration = c.last + tick
		s.TempoMin = c.tempoMin
		s.TempoMax = c.tempoMax
		s.TempoMean = c.tempoSum / float64(c.ticks)
	}
	for k, v := range c.states {
		s.States[k] = v
	}
	return s
}

func (c *Collector) Reset() {
	for _, m := range c.Metrics() {
		m.Reset()
	}
	c.ticks, c.last, c.changes, c.tempoSum = 0, 0, 0, 0
	c.states = make(map[jam.Behavior]int)
	c.label = ""
	c.tempoMin = math.Inf(1)
	c.tempoMax = math.Inf(-1)
}

// String renders the summary as an aligned text block.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ticks            %d (%s)\n", s.Ticks, s.Duration)
	b.WriteString("states          ")
	for _, l := range jam.AllBehaviors() {
		pct := 0.0
		if s.Ticks > 0 {
			pct = 100 * float64(s.States[l]) / float64(s.Ticks)
		}
		fmt.Fprintf(&b, " %s %.0f%%", l, pct)
	}
	fmt.Fprintf(&b, "\nfinal label      %s (%d transitions)\n", s.FinalLabel, s.Transitions)
	fmt.Fprintf(&b, "tempo            %.1f / %.1f / %.1f bpm (min/avg/max)\n", s.TempoMin, s.TempoMean, s.TempoMax)
	l := s.Latency
	fmt.Fprintf(&b, "latency          mean %s  std %s  p95 %s  max %s\n", l.Mean, l.Std, l.P95, l.Max)
	fmt.Fprintf(&b, "stage means      poll %s  shape %s  agent %s  map %s  synth %s\n",
		l.Stages.Poll, l.Stages.Shape, l.Stages.Agent, l.Stages.Map, l.Stages.Synth)
	fmt.Fprintf(&b, "overruns         %d\n", s.Overruns)
	fmt.Fprintf(&b, "peak             %.3f\n", s.Peak)
	fmt.Fprintf(&b, "stability        %.3f\n", s.Stability)
	fmt.Fprintf(&b, "controllability  %.3f\n", s.Controllability)
	if s.Centroid > 0 {
		fmt.Fprintf(&b, "centroid         %.0f Hz\n", s.Centroid)
		fmt.Fprintf(&b, "rms              %.3f\n", s.RMS)
	}
	return b.String()
}

package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/san-kum/brainjam/internal/jam"
)

// DefaultWindow is the number of ticks latency statistics are kept over.
const DefaultWindow = 1000

// LatencyStats summarize per-tick compute time.
type LatencyStats struct {
	Count int           `json:"count"`
	Mean  time.Duration `json:"mean"`
	Std   time.Duration `json:"std"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P95   time.Duration `json:"p95"`
	// Stage means, in pipeline order.
	Stages jam.Timing `json:"stages"`
}

// Latency keeps a rolling window of tick compute times. Value is the p95 in
// milliseconds.
type Latency struct {
	window []time.Duration
	stages []jam.Timing
	next   int
	full   bool
}

func NewLatency(window int) *Latency {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Latency{
		window: make([]time.Duration, window),
		stages: make([]jam.Timing, window),
	}
}

func (l *Latency) Name() string { return "latency_p95_ms" }

func (l *Latency) Observe(f *jam.Frame) {
	l.window[l.next] = f.Timing.Total
	l.stages[l.next] = f.Timing
	l.next++
	if l.next == len(l.window) {
		l.next = 0
		l.full = true
	}
}

func (l *Latency) count() int {
	if l.full {
		return len(l.window)
	}
	return l.next
}

func (l *Latency) Value() float64 {
	return float64(l.Stats().P95) / float64(time.Millisecond)
}

func (l *Latency) Stats() LatencyStats {
	n := l.count()
	if n == 0 {
		return LatencyStats{}
	}
	sorted := make([]time.Duration, n)
	copy(sorted, l.window[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum, sumSq float64
	var st jam.Timing
	for i, d := range sorted {
		x := float64(d)
		sum += x
		sumSq += x * x
		s := l.stages[i]
		st.Poll += s.Poll
		st.Shape += s.Shape
		st.Agent += s.Agent
		st.Map += s.Map
		st.Synth += s.Synth
		st.Total += s.Total
	}
	mean := sum / float64(n)
	variance := math.Max(0, sumSq/float64(n)-mean*mean)
	div := time.Duration(n)

	return LatencyStats{
		Count: n,
		Mean:  time.Duration(mean),
		Std:   time.Duration(math.Sqrt(variance)),
		Min:   sorted[0],
		Max:   sorted[n-1],
		P95:   sorted[percentileIndex(n, 0.95)],
		Stages: jam.Timing{
			Poll:  st.Poll / div,
			Shape: st.Shape / div,
			Agent: st.Agent / div,
			Map:   st.Map / div,
			Synth: st.Synth / div,
			Total: st.Total / div,
		},
	}
}

// percentileIndex is the nearest-rank index of q in n sorted values.
func percentileIndex(n int, q float64) int {
	i := int(math.Ceil(q*float64(n))) - 1
	return min(max(i, 0), n-1)
}

func (l *Latency) Reset() {
	l.next = 0
	l.full = false
}

// Overruns counts ticks whose compute time exceeded the chunk.
type Overruns struct {
	count int
	ticks int
}

func (o *Overruns) Name() string { return "overruns" }

func (o *Overruns) Observe(f *jam.Frame) {
	o.ticks++
	if f.Overrun {
		o.count++
	}
}

func (o *Overruns) Value() float64 { return float64(o.count) }

// Rate is the fraction of ticks that overran.
func (o *Overruns) Rate() float64 {
	if o.ticks == 0 {
		return 0
	}
	return float64(o.count) / float64(o.ticks)
}

func (o *Overruns) Reset() { *o = Overruns{} }

// Peak is the loudest sample seen.
type Peak struct {
	peak float64
}

func (p *Peak) Name() string         { return "peak" }
func (p *Peak) Observe(f *jam.Frame) { p.peak = math.Max(p.peak, f.Peak) }
func (p *Peak) Value() float64       { return p.peak }
func (p *Peak) Reset()               { p.peak = 0 }

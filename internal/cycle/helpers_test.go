package cycle_test

import (
	"sync"
	"time"

	"github.com/san-kum/brainjam/internal/agent"
	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/cycle"
	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/mapping"
	"github.com/san-kum/brainjam/internal/shaping"
	"github.com/san-kum/brainjam/internal/synth"

	. "github.com/onsi/gomega"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Agent.CorrectionPath = ""
	cfg.Shaper.WeightsPath = ""
	return cfg
}

func stages(cfg *config.Config, src jam.Source, clock jam.Clock, sink jam.Sink) cycle.Stages {
	tick := cfg.TickInterval()
	sh, err := shaping.New(cfg.Shaper, cfg.ControlDim, tick, nil)
	Expect(err).NotTo(HaveOccurred())
	eng, err := synth.New(cfg.Engine, cfg.SampleRate, cfg.Seed)
	Expect(err).NotTo(HaveOccurred())
	return cycle.Stages{
		Source: src,
		Shaper: sh,
		Agent:  agent.New(cfg.Agent, sh.Dim(), cfg.HistoryLen(), tick, cfg.Seed, nil),
		Mapper: mapping.New(mapping.OptionsFrom(cfg), clock),
		Engine: eng,
		Sink:   sink,
	}
}

func offline(cfg *config.Config, src jam.Source, sink jam.Sink) *cycle.Cycle {
	clock := jam.NewManualClock(time.Unix(0, 0))
	c, err := cycle.New(stages(cfg, src, clock, sink), cycle.Options{
		Tick:    cfg.TickInterval(),
		Chunk:   cfg.ChunkDuration,
		Offline: true,
		Clock:   clock,
	})
	Expect(err).NotTo(HaveOccurred())
	return c
}

// recorder keeps a copy of every frame.
type recorder struct {
	frames []jam.Frame
}

func (r *recorder) OnTick(f *jam.Frame) {
	cp := *f
	cp.Control = f.Control.Clone()
	cp.Latent = f.Latent.Clone()
	r.frames = append(r.frames, cp)
}

// peakSink tracks the loudest sample written.
type peakSink struct {
	mu     sync.Mutex
	peak   float64
	writes int
}

func (s *peakSink) Write(buf jam.AudioBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peak = max(s.peak, buf.Peak())
	s.writes++
	return nil
}

func (s *peakSink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// gateSink blocks every write until release is closed.
type gateSink struct {
	release chan struct{}
	peakSink
}

func (s *gateSink) Write(buf jam.AudioBuffer) error {
	<-s.release
	return s.peakSink.Write(buf)
}

// onceSource yields one vector, then nothing.
type onceSource struct {
	v      jam.ControlVector
	sent   bool
	closed bool
}

func (s *onceSource) Dim() int { return len(s.v) }

func (s *onceSource) Poll() (jam.ControlVector, bool) {
	if s.sent {
		return nil, false
	}
	s.sent = true
	return s.v, true
}

func (s *onceSource) Close() error {
	s.closed = true
	return nil
}

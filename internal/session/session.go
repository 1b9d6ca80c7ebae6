// Package session assembles a complete performance pipeline from a
// configuration and runs it live or offline.
package session

import (
	"fmt"
	"io"
	"time"

	"github.com/san-kum/brainjam/internal/agent"
	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/cycle"
	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/mapping"
	"github.com/san-kum/brainjam/internal/metrics"
	"github.com/san-kum/brainjam/internal/shaping"
	"github.com/san-kum/brainjam/internal/synth"
)

type Options struct {
	// Source replaces the source named in the configuration.
	Source jam.Source
	Sink   jam.Sink
	// Offline drives a manual clock and writes audio inline.
	Offline  bool
	Clock    jam.Clock
	Registry *Registry
	Logger   jam.Logger
}

// Session is one assembled pipeline.
type Session struct {
	Config  *config.Config
	Stages  cycle.Stages
	Cycle   *cycle.Cycle
	Metrics *metrics.Collector
	Clock   jam.Clock
}

// Build validates cfg and wires every stage. The returned session owns the
// source; it is closed when the cycle stops.
func Build(cfg *config.Config, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := jam.OrNop(opts.Logger)

	src := opts.Source
	if src == nil {
		reg := opts.Registry
		if reg == nil {
			reg = NewRegistry()
		}
		var err error
		if src, err = reg.Source(cfg, logger); err != nil {
			return nil, err
		}
	}
	if src.Dim() != cfg.ControlDim {
		closeSource(src)
		return nil, &jam.ConfigError{
			Field:   "control_dim",
			Value:   cfg.ControlDim,
			Reason:  fmt.Sprintf("source produces %d components", src.Dim()),
			Wrapped: jam.ErrDimensionMismatch,
		}
	}

	clock := opts.Clock
	if clock == nil {
		if opts.Offline {
			clock = jam.NewManualClock(time.Unix(0, 0))
		} else {
			clock = jam.SystemClock{}
		}
	}

	st, err := stages(cfg, src, clock, opts.Sink, logger)
	if err != nil {
		closeSource(src)
		return nil, err
	}
	cyc, err := cycle.New(st, cycle.Options{
		Tick:       cfg.TickInterval(),
		Chunk:      cfg.ChunkDuration,
		QueueDepth: cfg.Cycle.QueueDepth,
		Offline:    opts.Offline,
		Clock:      clock,
		Logger:     logger,
	})
	if err != nil {
		closeSource(src)
		return nil, err
	}

	col := metrics.NewCollector()
	cyc.AddObserver(col)
	logger.Debug("pipeline built",
		"source", cfg.Source.Kind, "shaper", shaping.Describe(st.Shaper),
		"engine", st.Engine.Kind(), "tick", cfg.TickInterval())

	return &Session{Config: cfg, Stages: st, Cycle: cyc, Metrics: col, Clock: clock}, nil
}

func stages(cfg *config.Config, src jam.Source, clock jam.Clock, sink jam.Sink, logger jam.Logger) (cycle.Stages, error) {
	tick := cfg.TickInterval()
	sh, err := shaping.New(cfg.Shaper, cfg.ControlDim, tick, logger)
	if err != nil {
		return cycle.Stages{}, err
	}
	eng, err := synth.New(cfg.Engine, cfg.SampleRate, cfg.Seed)
	if err != nil {
		return cycle.Stages{}, err
	}
	// the shaper decides the latent size
	opts := mapping.OptionsFrom(cfg)
	opts.LatentDim = sh.Dim()
	return cycle.Stages{
		Source: src,
		Shaper: sh,
		Agent:  agent.New(cfg.Agent, sh.Dim(), cfg.HistoryLen(), tick, cfg.Seed, logger),
		Mapper: mapping.New(opts, clock),
		Engine: eng,
		Sink:   sink,
	}, nil
}

// Summary is the collector's report for the ticks run so far.
func (s *Session) Summary() metrics.Summary {
	return s.Metrics.Summary(s.Config.TickInterval())
}

// Close stops the cycle unless it already stopped, which releases the
// source.
func (s *Session) Close() error {
	if s.Cycle.State() == cycle.Stopped {
		return nil
	}
	return s.Cycle.Stop()
}

func closeSource(src jam.Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

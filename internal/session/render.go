package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/brainjam/internal/analysis"
	"github.com/san-kum/brainjam/internal/audio"
	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/metrics"
	"github.com/san-kum/brainjam/internal/midiout"
	"github.com/san-kum/brainjam/internal/storage"
	"github.com/san-kum/brainjam/internal/synth"
)

type RenderOptions struct {
	Duration time.Duration
	// Optional outputs.
	WAVPath  string
	MIDIPath string
	Store    *storage.Store
	Name     string

	Source    jam.Source
	Observers []jam.Observer
	Logger    jam.Logger
}

// Result is what an offline render produced.
type Result struct {
	Summary   metrics.Summary
	Spectrum  analysis.Report
	Audio     jam.AudioBuffer
	SessionID string
	Notes     int
}

// Ticks is the number of ticks needed to cover d, rounded up.
func Ticks(cfg *config.Config, d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(cfg.TickInterval())))
}

// Render runs cfg offline for opts.Duration as fast as the pipeline allows,
// under a manual clock, and analyzes the result.
func Render(ctx context.Context, cfg *config.Config, opts RenderOptions) (*Result, error) {
	if opts.Duration <= 0 {
		return nil, jam.NewConfigError("duration", opts.Duration, "must be positive")
	}
	if opts.MIDIPath != "" && cfg.Engine.Kind != string(jam.EngineSymbolic) {
		return nil, jam.NewConfigError("midi", opts.MIDIPath, "only the symbolic engine produces notes")
	}
	logger := jam.OrNop(opts.Logger)

	mem := audio.NewMemorySink()
	sinks := audio.Tee{mem}
	if opts.WAVPath != "" {
		w, err := audio.CreateWAV(opts.WAVPath, cfg.SampleRate)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, w)
	}

	s, err := Build(cfg, Options{Source: opts.Source, Sink: sinks, Offline: true, Logger: logger})
	if err != nil {
		sinks.Close()
		return nil, err
	}

	var notes *midiout.Recorder
	if sym, ok := s.Stages.Engine.(*synth.Symbolic); ok && opts.MIDIPath != "" {
		notes = midiout.NewRecorder(0)
		sym.OnNote(notes.Add)
	}

	var rec *storage.Recorder
	if opts.Store != nil {
		if rec, err = record(opts.Store, cfg, s, opts.Name, logger); err != nil {
			s.Close()
			sinks.Close()
			return nil, err
		}
		s.Cycle.AddObserver(rec)
	}
	for _, o := range opts.Observers {
		s.Cycle.AddObserver(o)
	}

	runErr := s.Cycle.RunFor(ctx, Ticks(cfg, opts.Duration))
	stopErr := s.Close()
	closeErr := sinks.Close()

	res := &Result{Summary: s.Summary(), Audio: mem.Buffer()}
	res.Spectrum = analysis.Analyze(res.Audio.Samples, res.Audio.SampleRate)
	res.Summary.Centroid = res.Spectrum.Centroid
	res.Summary.RMS = res.Spectrum.RMS

	if rec != nil {
		values := s.Metrics.Values()
		values["spectral_centroid"] = res.Spectrum.Centroid
		values["rms"] = res.Spectrum.RMS
		if err := rec.Close(values); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
		res.SessionID = rec.Session().ID
	}
	if notes != nil {
		res.Notes = notes.Len()
		bpm := res.Summary.TempoMean
		if bpm <= 0 {
			bpm = 120
		}
		if err := notes.WriteFile(opts.MIDIPath, cfg.Name, bpm); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
	}

	if runErr != nil {
		return res, runErr
	}
	if stopErr != nil {
		logger.Warn("closing source", "err", stopErr)
	}
	if closeErr != nil {
		return res, fmt.Errorf("finish render: %w", closeErr)
	}
	return res, nil
}

func record(st *storage.Store, cfg *config.Config, s *Session, name string, logger jam.Logger) (*storage.Recorder, error) {
	snapshot, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("snapshot config: %w", err)
	}
	return storage.NewRecorder(st, storage.Session{
		Name:       name,
		Engine:     s.Stages.Engine.Kind(),
		Shaper:     s.Stages.Shaper.Mode(),
		Source:     cfg.Source.Kind,
		Seed:       cfg.Seed,
		Tick:       cfg.TickInterval(),
		SampleRate: cfg.SampleRate,
		Config:     string(snapshot),
	}, 0, logger)
}

// Record attaches a session recorder to a live session. The caller closes
// it after the cycle stopped.
func (s *Session) Record(st *storage.Store, name string, logger jam.Logger) (*storage.Recorder, error) {
	rec, err := record(st, s.Config, s, name, logger)
	if err != nil {
		return nil, err
	}
	s.Cycle.AddObserver(rec)
	return rec, nil
}

package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/control"
	"github.com/san-kum/brainjam/internal/jam"
)

// SourceFactory opens a control source for cfg.
type SourceFactory func(cfg *config.Config, logger jam.Logger) (jam.Source, error)

// Registry maps source kinds to factories.
type Registry struct {
	sources map[string]SourceFactory
}

func NewRegistry() *Registry {
	r := &Registry{sources: make(map[string]SourceFactory)}

	r.sources["mock"] = func(cfg *config.Config, _ jam.Logger) (jam.Source, error) {
		return control.NewMock(cfg.ControlDim, cfg.TickInterval().Seconds(), cfg.Source.NoiseStd, cfg.Seed), nil
	}
	r.sources["keyboard"] = func(cfg *config.Config, _ jam.Logger) (jam.Source, error) {
		return control.NewKeyboard(cfg.ControlDim, cfg.Source.KeyStep), nil
	}
	r.sources["osc"] = func(cfg *config.Config, logger jam.Logger) (jam.Source, error) {
		return control.ListenOSC(cfg.Source.OSCAddr, cfg.ControlDim, logger)
	}
	r.sources["midi"] = func(cfg *config.Config, logger jam.Logger) (jam.Source, error) {
		return control.OpenMIDI(cfg.Source.MIDIPort, cfg.Source.MIDIControls, cfg.ControlDim, logger)
	}
	r.sources["scripted"] = func(cfg *config.Config, _ jam.Logger) (jam.Source, error) {
		return Tour(cfg.ControlDim, cfg.TickInterval()), nil
	}
	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind string, f SourceFactory) {
	r.sources[kind] = f
}

// Source opens the source named by cfg.Source.Kind.
func (r *Registry) Source(cfg *config.Config, logger jam.Logger) (jam.Source, error) {
	f, ok := r.sources[cfg.Source.Kind]
	if !ok {
		return nil, &jam.ConfigError{Field: "source.kind", Value: cfg.Source.Kind, Reason: "unsupported source", Wrapped: jam.ErrUnknownSource}
	}
	src, err := f(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", cfg.Source.Kind, err)
	}
	return src, nil
}

func (r *Registry) Sources() []string {
	out := make([]string, 0, len(r.sources))
	for k := range r.sources {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Tour is the default script: calm, a rise to full intensity, a plateau
// and a slow fall. It lasts 40 seconds.
func Tour(dim int, tick time.Duration) *control.Scripted {
	level := func(v float64) jam.ControlVector {
		out := make(jam.ControlVector, dim)
		for i := range out {
			out[i] = v
		}
		return out
	}
	return control.NewScripted(dim, tick,
		control.Segment{Duration: 5 * time.Second, From: level(0.2)},
		control.Ramp(10*time.Second, level(0.2), level(0.9)),
		control.Segment{Duration: 10 * time.Second, From: level(0.9)},
		control.Ramp(15*time.Second, level(0.9), level(0.1)),
	)
}

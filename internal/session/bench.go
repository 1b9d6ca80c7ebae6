package session

import (
	"context"
	"time"

	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/metrics"
)

// BenchResult is the compute latency of one engine.
type BenchResult struct {
	Engine   jam.EngineKind       `json:"engine"`
	Ticks    int                  `json:"ticks"`
	Latency  metrics.LatencyStats `json:"latency"`
	Budget   time.Duration        `json:"budget"`
	Overruns int                  `json:"overruns"`
	Peak     float64              `json:"peak"`
}

// RealTime reports whether the p95 tick fits in the chunk it renders.
func (b BenchResult) RealTime() bool { return b.Latency.P95 < b.Budget }

// Bench renders ticks of each engine in turn, discarding the audio, and
// reports per-tick compute latency. Engines run one after another so they
// do not compete for the CPU.
func Bench(ctx context.Context, base *config.Config, engines []jam.EngineKind, ticks int, logger jam.Logger) ([]BenchResult, error) {
	if len(engines) == 0 {
		engines = jam.AllEngines()
	}
	out := make([]BenchResult, 0, len(engines))
	for _, kind := range engines {
		cfg := base.Clone()
		cfg.Engine.Kind = string(kind)
		s, err := Build(cfg, Options{Offline: true, Logger: logger})
		if err != nil {
			return out, err
		}
		runErr := s.Cycle.RunFor(ctx, ticks)
		s.Close()
		if runErr != nil {
			return out, runErr
		}
		sum := s.Summary()
		out = append(out, BenchResult{
			Engine:   kind,
			Ticks:    sum.Ticks,
			Latency:  sum.Latency,
			Budget:   cfg.ChunkDuration,
			Overruns: sum.Overruns,
			Peak:     sum.Peak,
		})
		jam.OrNop(logger).Debug("bench", "engine", kind, "p95", sum.Latency.P95)
	}
	return out, nil
}

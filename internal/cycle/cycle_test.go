package cycle_test

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/san-kum/brainjam/internal/control"
	"github.com/san-kum/brainjam/internal/cycle"
	"github.com/san-kum/brainjam/internal/jam"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Cycle", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("lifecycle", func() {
		var c *cycle.Cycle
		var src *onceSource

		BeforeEach(func() {
			src = &onceSource{v: jam.ControlVector{0.4, 0.4, 0.4, 0.4}}
			c = offline(testConfig(), src, nil)
		})

		It("starts idle", func() {
			Expect(c.State()).To(Equal(cycle.Idle))
			Expect(c.Telemetry().State).To(Equal("idle"))
		})

		It("rejects illegal transitions with a typed error", func() {
			err := c.Pause()
			var te *jam.TransitionError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.From).To(Equal("idle"))
			Expect(te.To).To(Equal("paused"))
			Expect(errors.Is(err, jam.ErrIllegalTransition)).To(BeTrue())

			Expect(c.Resume()).To(MatchError(jam.ErrIllegalTransition))
		})

		It("moves between running and paused", func() {
			Expect(c.Start()).To(Succeed())
			Expect(c.Start()).To(MatchError(jam.ErrIllegalTransition))
			Expect(c.Pause()).To(Succeed())
			Expect(c.State()).To(Equal(cycle.Paused))

			_, err := c.Tick()
			Expect(err).To(MatchError(cycle.ErrNotRunning))

			Expect(c.Resume()).To(Succeed())
			_, err = c.Tick()
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Ticks()).To(BeEquivalentTo(1))
		})

		It("keeps state across a pause", func() {
			Expect(c.RunFor(ctx, 5)).To(Succeed())
			before := c.Telemetry()
			Expect(c.Pause()).To(Succeed())
			Expect(c.Resume()).To(Succeed())
			f, err := c.Tick()
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Tick).To(Equal(before.Tick))
		})

		It("is terminal once stopped and closes the source", func() {
			Expect(c.Start()).To(Succeed())
			Expect(c.Stop()).To(Succeed())
			Expect(src.closed).To(BeTrue())
			Expect(c.State()).To(Equal(cycle.Stopped))
			Expect(c.Start()).To(MatchError(jam.ErrIllegalTransition))
			Expect(c.Resume()).To(MatchError(jam.ErrIllegalTransition))
			Expect(c.Stop()).To(MatchError(jam.ErrIllegalTransition))
		})

		It("reuses the last vector when the source is silent", func() {
			Expect(c.RunFor(ctx, 1)).To(Succeed())
			f, err := c.Tick()
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Fresh).To(BeFalse())
			Expect([]float64(f.Control)).To(Equal([]float64{0.4, 0.4, 0.4, 0.4}))
		})
	})

	It("rejects missing stages", func() {
		cfg := testConfig()
		st := stages(cfg, control.Constant(4, cfg.TickInterval(), 0.5), jam.SystemClock{}, nil)
		st.Mapper = nil
		_, err := cycle.New(st, cycle.Options{Tick: cfg.TickInterval()})
		Expect(err).To(MatchError(jam.ErrInvalidConfig))
	})

	It("drops new buffers when the sink falls behind", func() {
		cfg := testConfig()
		sink := &gateSink{release: make(chan struct{})}
		c, err := cycle.New(stages(cfg, control.Constant(4, cfg.TickInterval(), 0.5), jam.SystemClock{}, sink), cycle.Options{
			Tick:       cfg.TickInterval(),
			Chunk:      cfg.ChunkDuration,
			QueueDepth: 1,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Start()).To(Succeed())
		for range 5 {
			_, err := c.Tick()
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(c.Dropped()).To(BeNumerically(">=", 3))

		close(sink.release)
		Expect(c.Stop()).To(Succeed())
		Expect(int64(sink.Writes()) + c.Dropped()).To(BeEquivalentTo(5))
		Expect(c.Telemetry().Dropped).To(Equal(c.Dropped()))
	})

	It("runs on a timer until the context ends", func() {
		cfg := testConfig()
		cfg.TickRate = 100
		cfg.ChunkDuration = 10 * time.Millisecond
		sink := &peakSink{}
		c, err := cycle.New(stages(cfg, control.NewMock(4, 0.01, 0.05, 1), jam.SystemClock{}, sink), cycle.Options{
			Tick:       cfg.TickInterval(),
			Chunk:      cfg.ChunkDuration,
			QueueDepth: 2,
		})
		Expect(err).NotTo(HaveOccurred())

		runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()
		Expect(c.Run(runCtx)).To(MatchError(context.DeadlineExceeded))
		Expect(c.State()).To(Equal(cycle.Stopped))
		Expect(c.Ticks()).To(BeNumerically(">", 5))
		Expect(sink.Writes()).To(BeNumerically(">", 0))
	})

	It("returns from Run when stopped from another goroutine", func() {
		cfg := testConfig()
		c, err := cycle.New(stages(cfg, control.Constant(4, cfg.TickInterval(), 0.5), jam.SystemClock{}, nil), cycle.Options{
			Tick: 20 * time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())
		done := make(chan error, 1)
		go func() { done <- c.Run(ctx) }()
		Eventually(c.State).Should(Equal(cycle.Running))
		Expect(c.Pause()).To(Succeed())
		Expect(c.Resume()).To(Succeed())
		Expect(c.Stop()).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))
	})

	Describe("scenarios", func() {
		It("settles calm on a constant low input", func() {
			cfg := testConfig()
			sink := &peakSink{}
			rec := &recorder{}
			c := offline(cfg, control.Constant(4, cfg.TickInterval(), 0.2), sink)
			c.AddObserver(rec)

			Expect(c.RunFor(ctx, 150)).To(Succeed())
			Expect(c.Stop()).To(Succeed())

			last := rec.frames[len(rec.frames)-1]
			Expect(last.Label).To(Equal(jam.Calm))
			Expect(last.Response.DensityBias).To(BeNumerically(">=", 0.1))
			Expect(last.Response.DensityBias).To(BeNumerically("<=", 0.3))
			Expect(sink.peak).To(BeNumerically("<=", 1.0))
			Expect(sink.writes).To(Equal(150))
			for _, f := range rec.frames {
				Expect(f.Latent.IsValid()).To(BeTrue())
			}
		})

		It("reaches active within two agent half-lives of a step", func() {
			cfg := testConfig()
			tick := cfg.TickInterval()
			src := control.NewScripted(4, tick,
				control.Hold(5*time.Second, 0.1, 0.1, 0.1, 0.1),
				control.Hold(10*time.Second, 0.9, 0.9, 0.9, 0.9),
			)
			rec := &recorder{}
			c := offline(cfg, src, &peakSink{})
			c.AddObserver(rec)
			Expect(c.RunFor(ctx, 150)).To(Succeed())

			stepAt := int(5 * time.Second / tick)
			// shaper settling adds a few ticks on top of the agent's own lag
			budget := int(2*cfg.Agent.HalfLife/tick) + 5

			active := -1
			for i := stepAt; i < len(rec.frames); i++ {
				if rec.frames[i].Label == jam.Active {
					active = i
					break
				}
			}
			Expect(active).To(BeNumerically(">=", stepAt))
			Expect(active - stepAt).To(BeNumerically("<=", budget))

			band := cfg.Mapper.DriftAmplitude
			peak := 0.0
			for _, f := range rec.frames[stepAt:] {
				td := f.Params.Additive.TempoDensity
				Expect(peak - td).To(BeNumerically("<=", band))
				peak = math.Max(peak, td)
			}
			Expect(rec.frames[len(rec.frames)-1].Params.Additive.TempoDensity).
				To(BeNumerically(">", rec.frames[stepAt-1].Params.Additive.TempoDensity))
		})

		It("keeps p95 compute latency inside the chunk", func() {
			cfg := testConfig()
			rec := &recorder{}
			c := offline(cfg, control.NewMock(4, cfg.TickInterval().Seconds(), 0.05, 3), nil)
			c.AddObserver(rec)
			Expect(c.RunFor(ctx, 100)).To(Succeed())

			totals := make([]time.Duration, len(rec.frames))
			for i, f := range rec.frames {
				totals[i] = f.Timing.Total
			}
			sort.Slice(totals, func(i, j int) bool { return totals[i] < totals[j] })
			p95 := totals[int(0.95*float64(len(totals)))-1]
			Expect(p95).To(BeNumerically("<", cfg.ChunkDuration))
		})
	})
})

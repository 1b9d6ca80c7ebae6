package scenario_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/scenario"
	"github.com/san-kum/brainjam/internal/storage"
)

func baseConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Agent.CorrectionPath = ""
	cfg.Shaper.WeightsPath = ""
	return cfg
}

func mustBuiltin(name string) *scenario.Scenario {
	sc, err := scenario.Builtin(name)
	Expect(err).NotTo(HaveOccurred())
	return sc
}

var _ = Describe("Scenario files", func() {
	It("embeds the builtin scenarios", func() {
		Expect(scenario.BuiltinNames()).To(Equal([]string{"calm", "step", "symbolic", "tour"}))
		_, err := scenario.Builtin("nope")
		Expect(err).To(MatchError(ContainSubstring("calm, step")))
	})

	DescribeTable("rejects malformed scripts",
		func(doc string) {
			_, err := scenario.Parse([]byte(doc))
			Expect(err).To(MatchError(jam.ErrInvalidConfig))
		},
		Entry("no duration", "script: [{hold: 1s, value: [0.5]}]"),
		Entry("no steps", "duration: 1s"),
		Entry("hold and ramp", "duration: 1s\nscript: [{hold: 1s, ramp: 1s, value: [0.5]}]"),
		Entry("leading ramp", "duration: 1s\nscript: [{ramp: 1s, value: [0.5]}]"),
		Entry("missing value", "duration: 1s\nscript: [{hold: 1s}]"),
		Entry("unknown label", "duration: 1s\nscript: [{hold: 1s, value: [0.5]}]\nexpect: {final_label: sleepy}"),
		Entry("density range", "duration: 1s\nscript: [{hold: 1s, value: [0.5]}]\nexpect: {density_bias: [0.1]}"),
	)

	It("broadcasts single values and ramps from the previous step", func() {
		sc, err := scenario.Parse([]byte(`
duration: 4s
script:
  - hold: 1s
    value: [0.2]
  - ramp: 2s
    value: [0.8, 0.6]
`))
		Expect(err).NotTo(HaveOccurred())
		src := sc.Source(3, 100*time.Millisecond)
		Expect(src.Length()).To(Equal(3 * time.Second))
		Expect(src.At(500 * time.Millisecond)).To(Equal(jam.ControlVector{0.2, 0.2, 0.2}))
		mid := src.At(2 * time.Second)
		Expect(mid[0]).To(BeNumerically("~", 0.5, 1e-9))
		Expect(mid[2]).To(BeNumerically("~", 0.4, 1e-9))
	})

	It("takes its configuration from the preset and overrides", func() {
		sc := &scenario.Scenario{Preset: "notes", Seed: 9}
		cfg, err := sc.Config(baseConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Engine.Kind).To(Equal("symbolic"))
		Expect(cfg.Seed).To(Equal(int64(9)))
		Expect(cfg.Source.Kind).To(Equal("scripted"))
		Expect(cfg.Agent.CorrectionPath).To(BeEmpty())

		_, err = (&scenario.Scenario{Preset: "polka"}).Config(baseConfig())
		Expect(err).To(MatchError(jam.ErrInvalidConfig))
	})
})

var _ = Describe("Running scenarios", func() {
	ctx := context.Background()

	DescribeTable("builtin scenarios pass",
		func(name string) {
			rep, err := scenario.Run(ctx, mustBuiltin(name), baseConfig(), scenario.RunOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(rep.Failures()).To(BeEmpty(), rep.String())
			Expect(rep.Checks).NotTo(BeEmpty())
		},
		Entry("calm", "calm"),
		Entry("step", "step"),
		Entry("tour", "tour"),
		Entry("symbolic", "symbolic"),
	)

	It("measures how long the step takes to reach active", func() {
		rep, err := scenario.Run(ctx, mustBuiltin("step"), baseConfig(), scenario.RunOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Reached).To(BeNumerically(">", 0))
		Expect(rep.Reached).To(BeNumerically("<=", 2500*time.Millisecond))
		Expect(rep.Summary.Ticks).To(Equal(150))
	})

	It("reports unmet expectations without failing the run", func() {
		sc := mustBuiltin("calm")
		sc.Expect.FinalLabel = "active"
		rep, err := scenario.Run(ctx, sc, baseConfig(), scenario.RunOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Passed()).To(BeFalse())
		Expect(rep.Failures()).To(HaveLen(1))
		Expect(rep.Failures()[0].Name).To(Equal("final_label"))
		Expect(rep.String()).To(HavePrefix("FAIL calm"))
	})

	It("records the run when given a store", func() {
		st, err := storage.Open(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(st.Close)

		rep, err := scenario.Run(ctx, mustBuiltin("calm"), baseConfig(), scenario.RunOptions{Store: st})
		Expect(err).NotTo(HaveOccurred())
		sess, err := st.Load(rep.SessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(sess.Name).To(Equal("scenario-calm"))
		Expect(sess.Source).To(Equal("scripted"))
		Expect(sess.FinalLabel).To(Equal(jam.Calm))
	})
})

var _ = Describe("Sweeps", func() {
	ctx := context.Background()

	It("runs one scenario per value in order", func() {
		sw := scenario.Sweep{Param: "agent.half_life", Values: []float64{0.5, 1}, Workers: 2}
		points, err := sw.Run(ctx, mustBuiltin("step"), baseConfig(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(points).To(HaveLen(2))
		Expect(points[0].Value).To(Equal(0.5))
		Expect(points[0].Report.Reached).To(BeNumerically(">=", 0))
		Expect(points[0].Report.Reached).To(BeNumerically("<", points[1].Report.Reached))
	})

	It("rejects unknown tunables and invalid values", func() {
		_, err := scenario.Sweep{Param: "agent.mood", Values: []float64{1}}.Run(ctx, mustBuiltin("calm"), baseConfig(), nil)
		Expect(err).To(MatchError(jam.ErrInvalidConfig))

		_, err = scenario.Sweep{Param: "agent.half_life", Values: []float64{-1}}.Run(ctx, mustBuiltin("calm"), baseConfig(), nil)
		Expect(err).To(MatchError(jam.ErrInvalidConfig))
	})

	It("spaces values evenly", func() {
		Expect(scenario.Linspace(0, 1, 5)).To(Equal([]float64{0, 0.25, 0.5, 0.75, 1}))
		Expect(scenario.Linspace(3, 9, 1)).To(Equal([]float64{3}))
	})
})

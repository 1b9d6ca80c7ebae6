package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/scenario"
	"github.com/san-kum/brainjam/internal/session"
)

var (
	sweepParam   string
	sweepValues  string
	sweepFrom    float64
	sweepTo      float64
	sweepSteps   int
	sweepWorkers int

	benchTicks   int
	benchEngines []string
)

func scenarioCommands() []*cobra.Command {
	scenarioCmd := &cobra.Command{
		Use:   "scenario [name|file ...]",
		Short: "run scripted scenarios and check their expectations",
		Long: "Runs each scenario offline and checks its expectations. Arguments are YAML files or builtin names (" +
			strings.Join(scenario.BuiltinNames(), ", ") + "); with none, every builtin runs.",
		RunE: runScenarios,
	}
	scenarioCmd.Flags().BoolVar(&save, "save", false, "record each run")
	scenarioCmd.Flags().StringVar(&wavPath, "wav", "", "write the audio of a single scenario to this WAV file")
	scenarioCmd.Flags().BoolVar(&asJSON, "json", false, "print reports as JSON")

	sweepCmd := &cobra.Command{
		Use:   "sweep [name|file]",
		Short: "run a scenario once per value of a tunable",
		Long:  "Tunables: " + strings.Join(scenario.TunableNames(), ", ") + ". Durations are given in seconds.",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepParam, "param", "agent.half_life", "tunable to vary")
	sweepCmd.Flags().StringVar(&sweepValues, "values", "", "comma separated values")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 0.5, "first value when --values is empty")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 2, "last value when --values is empty")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 4, "number of values when --values is empty")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 0, "concurrent runs (0 runs all at once)")
	sweepCmd.Flags().BoolVar(&asJSON, "json", false, "print points as JSON")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "measure per-tick compute latency of each engine",
		RunE:  runBench,
	}
	benchCmd.Flags().IntVar(&benchTicks, "ticks", 300, "ticks per engine")
	benchCmd.Flags().StringSliceVar(&benchEngines, "engines", nil, "engines to run (default all)")

	return []*cobra.Command{scenarioCmd, sweepCmd, benchCmd}
}

func runScenarios(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		args = scenario.BuiltinNames()
	}
	if wavPath != "" && len(args) != 1 {
		return fmt.Errorf("--wav needs exactly one scenario")
	}
	opts := scenario.RunOptions{WAVPath: wavPath, Logger: logger}
	if save {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		opts.Store = st
	}

	ctx, stop := signalContext()
	defer stop()
	var reports []*scenario.Report
	failed := 0
	for _, ref := range args {
		sc, err := scenario.Resolve(ref)
		if err != nil {
			return err
		}
		rep, err := scenario.Run(ctx, sc, base, opts)
		if err != nil {
			return err
		}
		if !rep.Passed() {
			failed++
		}
		reports = append(reports, rep)
		if !asJSON {
			fmt.Print(rep)
		}
	}
	if asJSON {
		if err := writeJSON(os.Stdout, reports); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(reports))
	}
	return nil
}

func parseValues(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("bad sweep value %q: %w", f, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := scenario.Resolve(args[0])
	if err != nil {
		return err
	}
	values := scenario.Linspace(sweepFrom, sweepTo, sweepSteps)
	if sweepValues != "" {
		if values, err = parseValues(sweepValues); err != nil {
			return err
		}
	}

	ctx, stop := signalContext()
	defer stop()
	sw := scenario.Sweep{Param: sweepParam, Values: values, Workers: sweepWorkers}
	points, err := sw.Run(ctx, sc, base, logger)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(os.Stdout, points)
	}

	fmt.Printf("sweep %s over %s\n\n", sweepParam, sc.Name)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VALUE\tRESULT\tREACHED\tFINAL\tTEMPO\tSTABILITY\tFAILED CHECKS")
	for _, p := range points {
		r := p.Report
		result := "pass"
		var failedChecks []string
		for _, c := range r.Failures() {
			result = "fail"
			failedChecks = append(failedChecks, c.Name)
		}
		reached := "-"
		if r.Reached >= 0 {
			reached = r.Reached.String()
		}
		fmt.Fprintf(w, "%g\t%s\t%s\t%s\t%.1f\t%.3f\t%s\n",
			p.Value, result, reached, r.Summary.FinalLabel, r.Summary.TempoMean, r.Summary.Stability,
			strings.Join(failedChecks, ","))
	}
	return w.Flush()
}

func runBench(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var engines []jam.EngineKind
	for _, e := range benchEngines {
		kind, err := jam.ParseEngineKind(e)
		if err != nil {
			return err
		}
		engines = append(engines, kind)
	}

	ctx, stop := signalContext()
	defer stop()
	results, err := session.Bench(ctx, base, engines, benchTicks, logger)
	if err != nil {
		return err
	}

	fmt.Printf("benchmarking %d ticks per engine\n\n", benchTicks)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENGINE\tMEAN\tP95\tMAX\tBUDGET\tREAL-TIME\tOVERRUNS\tPEAK")
	for _, r := range results {
		l := r.Latency
		fmt.Fprintf(w, "%s\t%v\t%v\t%v\t%v\t%t\t%d\t%.3f\n",
			r.Engine, l.Mean, l.P95, l.Max, r.Budget, r.RealTime(), r.Overruns, r.Peak)
	}
	return w.Flush()
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/brainjam/internal/analysis"
	"github.com/san-kum/brainjam/internal/audio"
	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/storage"
	"github.com/san-kum/brainjam/internal/viz"
)

var (
	portrait  string
	threshold float64
	svgPath   string
)

func sessionCommands() []*cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded sessions",
		Args:  cobra.NoArgs,
		RunE:  listSessions,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [session] [series ...]",
		Short: "plot recorded series",
		Long:  "Series are u<i> and z<i> components, tempo, density_bias, tension_bias, fill, peak, latency_ms or an engine parameter name.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  plotSession,
	}
	plotCmd.Flags().StringVar(&portrait, "portrait", "", "draw two series against each other, e.g. z0,z1")
	plotCmd.Flags().Float64Var(&threshold, "crossings", 0, "also report where each series crosses this value")
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "also write the plot to this SVG file")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [session]",
		Short: "export session ticks to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return exportSession(args[0], storage.ExportCSV) },
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [session]",
		Short: "export a session with its ticks to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return exportSession(args[0], storage.ExportJSON) },
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	deleteCmd := &cobra.Command{
		Use:   "delete [session]",
		Short: "delete a recorded session",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteSession,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [file.wav]",
		Short: "spectral analysis of a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeWAV,
	}
	analyzeCmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return []*cobra.Command{listCmd, plotCmd, exportCSVCmd, exportJSONCmd, deleteCmd, analyzeCmd}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// loadSession opens the store and resolves ref, which may be an id prefix.
func loadSession(ref string) (*storage.Store, *storage.Session, []storage.TickRow, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	sess, err := st.Load(ref)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	rows, err := st.LoadTicks(sess.ID)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	return st, sess, rows, nil
}

func listSessions(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	sessions, err := st.List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions found")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENGINE\tSOURCE\tSTARTED\tTICKS\tFINAL")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID[:8],
			s.Name,
			s.Engine,
			s.Source,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Ticks,
			s.FinalLabel,
		)
	}
	return w.Flush()
}

func plotSession(cmd *cobra.Command, args []string) error {
	st, sess, rows, err := loadSession(args[0])
	if err != nil {
		return err
	}
	defer st.Close()
	if len(rows) < 2 {
		return fmt.Errorf("session %s has %d ticks, nothing to plot", sess.ID, len(rows))
	}

	fmt.Printf("session: %s (%s)\n", sess.ID, sess.Name)
	fmt.Printf("engine: %s  shaper: %s  ticks: %d\n\n", sess.Engine, sess.Shaper, len(rows))

	if portrait != "" {
		axes := strings.Split(portrait, ",")
		if len(axes) != 2 {
			return fmt.Errorf("--portrait wants two series, got %q", portrait)
		}
		xs, err := storage.Series(sess.Engine, rows, axes[0])
		if err != nil {
			return err
		}
		ys, err := storage.Series(sess.Engine, rows, axes[1])
		if err != nil {
			return err
		}
		p := analysis.NewPortrait(axes[0], xs, axes[1], ys)
		fmt.Println(p.ASCII(60, 20))
		if svgPath != "" {
			return writeSVG(func(w io.Writer) error { return viz.PortraitSVG(w, p, 600, 600) })
		}
		return nil
	}

	names := args[1:]
	if len(names) == 0 {
		p := jam.ParamNames(sess.Engine)
		names = append([]string{"tempo"}, p[:]...)
	}
	all := make([][]float64, 0, len(names))
	for _, n := range names {
		data, err := storage.Series(sess.Engine, rows, n)
		if err != nil {
			return err
		}
		all = append(all, data)
		fmt.Println(viz.Plot(data, n, 80, 10))
		if cmd.Flags().Changed("crossings") {
			fmt.Printf("crosses %g at ticks %v\n", threshold, roundAll(analysis.Crossings(data, threshold)))
		}
		fmt.Println()
	}
	if svgPath != "" {
		return writeSVG(func(w io.Writer) error { return viz.SeriesSVG(w, names, all, 900, 300) })
	}
	return nil
}

func writeSVG(draw func(io.Writer) error) error {
	f, err := os.Create(svgPath)
	if err != nil {
		return err
	}
	if err := draw(f); err != nil {
		f.Close()
		return err
	}
	logger.Info("plot written", "file", svgPath)
	return f.Close()
}

func roundAll(xs []float64) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = fmt.Sprintf("%.1f", x)
	}
	return out
}

func exportSession(ref string, export func(io.Writer, *storage.Session, []storage.TickRow) error) error {
	st, sess, rows, err := loadSession(ref)
	if err != nil {
		return err
	}
	defer st.Close()

	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := export(w, sess, rows); err != nil {
		return fmt.Errorf("export %s: %w", sess.ID, err)
	}
	if outPath != "" {
		logger.Info("exported", "session", sess.ID, "ticks", len(rows), "file", outPath)
	}
	return nil
}

func deleteSession(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	sess, err := st.Load(args[0])
	if err != nil {
		return err
	}
	if err := st.Delete(sess.ID); err != nil {
		return err
	}
	fmt.Printf("deleted %s (%s)\n", sess.ID, sess.Name)
	return nil
}

func analyzeWAV(cmd *cobra.Command, args []string) error {
	samples, sr, err := audio.ReadWAV(args[0])
	if err != nil {
		return err
	}
	rep := analysis.Analyze(samples, sr)
	if asJSON {
		return writeJSON(os.Stdout, rep)
	}

	fmt.Printf("file: %s\n", args[0])
	fmt.Printf("length: %.2fs at %d Hz (%d frames)\n\n", float64(len(samples))/float64(sr), sr, rep.Frames)
	if plot := viz.Spectrum(rep, 80, 12); plot != "" {
		fmt.Println(plot)
		fmt.Println()
	}
	fmt.Printf("centroid   %.0f Hz\n", rep.Centroid)
	fmt.Printf("rolloff    %.0f Hz\n", rep.Rolloff)
	fmt.Printf("rms        %.3f\n", rep.RMS)
	fmt.Printf("peak       %.3f\n", rep.Peak)
	fmt.Printf("bands      low %.2f  mid %.2f  high %.2f\n", rep.Low, rep.Mid, rep.High)
	return nil
}

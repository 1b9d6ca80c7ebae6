package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/san-kum/brainjam/internal/audio"
	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/control"
	"github.com/san-kum/brainjam/internal/jam"
	"github.com/san-kum/brainjam/internal/session"
	"github.com/san-kum/brainjam/internal/storage"
	"github.com/san-kum/brainjam/internal/viz"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string

	engine   string
	source   string
	shaper   string
	seed     int64
	duration time.Duration
	runFor   time.Duration

	save     bool
	name     string
	mute     bool
	wavPath  string
	midiPath string
	theme    string
	asJSON   bool
	outPath  string

	logger *log.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "brainjam",
		Short:         "control signals in, live music out",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(os.Stderr)
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".brainjam", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "start from a named preset")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "perform live through the audio device",
		RunE:  runPerformance,
	}
	pipelineFlags(runCmd)
	runCmd.Flags().DurationVar(&runFor, "time", 0, "stop after this long (0 runs until interrupted)")
	runCmd.Flags().BoolVar(&save, "save", false, "record the session")
	runCmd.Flags().StringVar(&name, "name", "", "session name")
	runCmd.Flags().BoolVar(&mute, "mute", false, "discard audio instead of opening the device")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "perform with the terminal dashboard and keyboard control",
		RunE:  runLive,
	}
	pipelineFlags(liveCmd)
	liveCmd.Flags().BoolVar(&save, "save", false, "record the session")
	liveCmd.Flags().StringVar(&name, "name", "", "session name")
	liveCmd.Flags().BoolVar(&mute, "mute", false, "discard audio instead of opening the device")
	liveCmd.Flags().StringVar(&theme, "theme", viz.Themes[0].Name, "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "render offline as fast as possible",
		RunE:  runRender,
	}
	pipelineFlags(renderCmd)
	renderCmd.Flags().DurationVar(&duration, "time", 30*time.Second, "length of the render")
	renderCmd.Flags().StringVar(&wavPath, "wav", "", "write audio to this WAV file")
	renderCmd.Flags().StringVar(&midiPath, "midi", "", "write symbolic notes to this MIDI file")
	renderCmd.Flags().BoolVar(&save, "save", false, "record the session")
	renderCmd.Flags().StringVar(&name, "name", "", "session name")
	renderCmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets, or print one as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "list audio outputs and MIDI inputs",
		RunE:  listDevices,
	}

	rootCmd.AddCommand(runCmd, liveCmd, renderCmd, presetsCmd, devicesCmd)
	rootCmd.AddCommand(scenarioCommands()...)
	rootCmd.AddCommand(sessionCommands()...)

	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error(err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func pipelineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&engine, "engine", config.DefaultEngineKind, "sound engine (additive, harmonic_noise, symbolic)")
	cmd.Flags().StringVar(&source, "source", config.DefaultSourceKind, "control source ("+strings.Join(config.SourceKinds, ", ")+")")
	cmd.Flags().StringVar(&shaper, "shaper", config.DefaultShaperMode, "feature shaper ("+strings.Join(config.ShaperModes, ", ")+")")
	cmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "random seed")
}

func setupLogger(w *os.File) error {
	lvl, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("bad --log-level: %w", err)
	}
	logger = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           lvl,
	})
	return nil
}

// loadConfig builds the configuration from defaults, the preset, the config
// file and finally the flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		var err error
		if cfg, err = config.LoadOver(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Lookup("engine") != nil {
		if flags.Changed("engine") {
			cfg.Engine.Kind = engine
		}
		if flags.Changed("source") {
			cfg.Source.Kind = source
		}
		if flags.Changed("shaper") {
			cfg.Shaper.Mode = shaper
		}
		if flags.Changed("seed") {
			cfg.Seed = seed
		}
	}
	return cfg, cfg.Validate()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func openStore() (*storage.Store, error) {
	return storage.Open(dataDir)
}

// liveSession is a real-time session and everything it owns.
type liveSession struct {
	*session.Session
	sink  jam.Sink
	store *storage.Store
	rec   *storage.Recorder
}

func startLive(cfg *config.Config) (*liveSession, error) {
	var sink jam.Sink = &audio.Discard{}
	if !mute {
		dev, err := audio.OpenDevice(audio.DeviceOptions{
			SampleRate: cfg.SampleRate,
			Chunk:      cfg.ChunkDuration,
			Underrun:   cfg.Cycle.Underrun,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		sink = dev
	}
	s, err := session.Build(cfg, session.Options{Sink: sink, Logger: logger})
	if err != nil {
		closeSink(sink)
		return nil, err
	}
	ls := &liveSession{Session: s, sink: sink}
	if save {
		if ls.store, err = openStore(); err != nil {
			ls.finish()
			return nil, err
		}
		if ls.rec, err = s.Record(ls.store, name, logger); err != nil {
			ls.finish()
			return nil, err
		}
	}
	return ls, nil
}

// finish stops the cycle, flushes the recording and releases the device.
func (ls *liveSession) finish() error {
	var errs []error
	errs = append(errs, ls.Close(), closeSink(ls.sink))
	if ls.rec != nil {
		errs = append(errs, ls.rec.Close(ls.Metrics.Values()))
		logger.Info("session saved", "id", ls.rec.Session().ID)
	}
	if ls.store != nil {
		errs = append(errs, ls.store.Close())
	}
	return errors.Join(errs...)
}

func closeSink(s jam.Sink) error {
	if c, ok := s.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func runPerformance(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ls, err := startLive(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	if runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runFor)
		defer cancel()
	}

	logger.Info("performing", "engine", cfg.Engine.Kind, "source", cfg.Source.Kind, "shaper", cfg.Shaper.Mode)
	runErr := ls.Cycle.Run(ctx)
	finishErr := ls.finish()
	fmt.Print(ls.Summary())
	if runErr != nil && !interrupted(runErr) {
		return runErr
	}
	return finishErr
}

func runLive(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("source") {
		source = "keyboard"
		cmd.Flags().Set("source", source)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// the dashboard owns the terminal, so logs go to a file
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(dataDir, "live.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	if err := setupLogger(logFile); err != nil {
		return err
	}

	ls, err := startLive(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ls.Cycle.Run(ctx) }()

	var keys viz.Keys
	if kb, ok := ls.Stages.Source.(*control.Keyboard); ok {
		keys = kb
	}
	dash := viz.NewDashboard(ls.Cycle, keys, viz.Options{Title: "brainjam", Theme: theme})
	_, uiErr := tea.NewProgram(dash, tea.WithAltScreen()).Run()

	cancel()
	runErr := <-done
	finishErr := ls.finish()
	fmt.Print(ls.Summary())
	if uiErr != nil {
		return uiErr
	}
	if runErr != nil && !interrupted(runErr) {
		return runErr
	}
	return finishErr
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := session.RenderOptions{
		Duration: duration,
		WAVPath:  wavPath,
		MIDIPath: midiPath,
		Name:     name,
		Logger:   logger,
	}
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
	start := time.Now()
	res, err := session.Render(ctx, cfg, opts)
	if err != nil {
		return err
	}
	logger.Info("render finished", "audio", res.Audio.Duration(), "elapsed", time.Since(start).Round(time.Millisecond))

	if asJSON {
		return writeJSON(os.Stdout, res.Summary)
	}
	fmt.Print(res.Summary)
	sp := res.Spectrum
	fmt.Printf("bands            low %.2f  mid %.2f  high %.2f (rolloff %.0f Hz)\n", sp.Low, sp.Mid, sp.High, sp.Rolloff)
	if wavPath != "" {
		fmt.Printf("wav              %s\n", wavPath)
	}
	if midiPath != "" {
		fmt.Printf("midi             %s (%d notes)\n", midiPath, res.Notes)
	}
	if res.SessionID != "" {
		fmt.Printf("session          %s\n", res.SessionID)
	}
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg := config.GetPreset(args[0])
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
		return writeYAML(os.Stdout, cfg)
	}
	for _, p := range config.ListPresets() {
		cfg := config.GetPreset(p)
		fmt.Printf("  %-10s engine=%-15s shaper=%s\n", p, cfg.Engine.Kind, cfg.Shaper.Mode)
	}
	return nil
}

func listDevices(cmd *cobra.Command, args []string) error {
	outs, err := audio.Devices()
	if err != nil {
		logger.Warn("audio devices unavailable", "err", err)
	}
	fmt.Println("audio outputs:")
	for _, d := range outs {
		fmt.Printf("  %s\n", d)
	}
	fmt.Println("midi inputs:")
	for i, p := range control.MIDIPorts() {
		fmt.Printf("  %d  %s\n", i, p)
	}
	return nil
}

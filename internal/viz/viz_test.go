package viz

import (
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/brainjam/internal/analysis"
	"github.com/san-kum/brainjam/internal/control"
	"github.com/san-kum/brainjam/internal/jam"
)

type fakePerformer struct {
	t       jam.Telemetry
	pauses  int
	resumes int
}

func (f *fakePerformer) Telemetry() jam.Telemetry { return f.t }

func (f *fakePerformer) Pause() error {
	f.pauses++
	f.t.State = "paused"
	return nil
}

func (f *fakePerformer) Resume() error {
	f.resumes++
	f.t.State = "running"
	return nil
}

func (f *fakePerformer) advance(ema float64) {
	f.t.Tick++
	f.t.EMA = ema
	f.t.Label = jam.Calm
	f.t.Response.TempoHint = 60 + 60*ema
	f.t.Timing.Total = 2 * time.Millisecond
	f.t.Params = jam.NewSynthParams(jam.EngineAdditive, [jam.NumParams]float64{ema, 0.3, 0.5, 0.1})
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func update(t *testing.T, m Dashboard, msg tea.Msg) (Dashboard, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	d, ok := next.(Dashboard)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return d, cmd
}

func TestDashboard_ForwardsControlKeys(t *testing.T) {
	kb := control.NewKeyboard(4, 0.05)
	m := NewDashboard(&fakePerformer{t: jam.Telemetry{State: "running"}}, kb, Options{})

	m, _ = update(t, m, runes("w"))
	m, _ = update(t, m, runes("w"))
	m, _ = update(t, m, runes("a"))
	got := kb.Values()
	if math.Abs(got[0]-0.6) > 1e-9 || math.Abs(got[1]-0.45) > 1e-9 {
		t.Errorf("controls = %v", got)
	}

	update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if v := kb.Values(); v[0] != 0.5 || v[1] != 0.5 {
		t.Errorf("space did not reset: %v", v)
	}
}

func TestDashboard_PauseToggle(t *testing.T) {
	perf := &fakePerformer{t: jam.Telemetry{State: "running"}}
	m := NewDashboard(perf, nil, Options{})

	m, _ = update(t, m, runes("p"))
	m, _ = update(t, m, TickMsg(time.Now()))
	if perf.pauses != 1 || !strings.Contains(m.View(), "PAUSED") {
		t.Fatalf("pauses = %d", perf.pauses)
	}
	m, _ = update(t, m, runes("p"))
	if perf.resumes != 1 {
		t.Errorf("resumes = %d", perf.resumes)
	}
}

func TestDashboard_HistoryFollowsTicks(t *testing.T) {
	perf := &fakePerformer{t: jam.Telemetry{State: "running"}}
	m := NewDashboard(perf, nil, Options{History: 3})

	for i := 0; i < 5; i++ {
		perf.advance(float64(i) / 10)
		m, _ = update(t, m, TickMsg(time.Now()))
	}
	m, _ = update(t, m, TickMsg(time.Now()))
	if len(m.intensity) != 3 || m.intensity[2] != 0.4 {
		t.Errorf("intensity = %v", m.intensity)
	}
	if m.tempo[0] != 72 || m.latency[2] != 2 {
		t.Errorf("tempo %v latency %v", m.tempo, m.latency)
	}

	view := m.View()
	for _, want := range []string{"CALM", "tempo_density", "Intensity (EMA)", "tick 5"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	m, _ = update(t, m, runes("g"))
	if !strings.Contains(m.View(), "Tempo (bpm)") {
		t.Error("graph did not switch")
	}
}

func TestDashboard_ThemeAndQuit(t *testing.T) {
	m := NewDashboard(&fakePerformer{}, nil, Options{Theme: "phosphor"})
	m, _ = update(t, m, runes("t"))
	if m.theme.Name != "sunset" {
		t.Errorf("theme = %s", m.theme.Name)
	}
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil || !m.Quitting() || m.View() != "" {
		t.Error("esc did not quit")
	}
}

func TestMeterAndSparkline(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "░░░░"},
		{0.5, "██░░"},
		{1.7, "████"},
	}
	for _, tt := range tests {
		if got := Meter(tt.v, 4); got != tt.want {
			t.Errorf("Meter(%v) = %q", tt.v, got)
		}
	}
	if got := Sparkline([]float64{0, 0.5, 1}, 0, 1, 5); got != "▁▄█  " {
		t.Errorf("Sparkline = %q", got)
	}
}

func TestSpectrumPlot(t *testing.T) {
	if got := Pool([]float64{1, 5, 2, 2, 9, 0}, 3); got[0] != 5 || got[1] != 2 || got[2] != 9 {
		t.Errorf("Pool = %v", got)
	}
	sr := 8000
	buf := make([]float32, 4096)
	for i := range buf {
		buf[i] = float32(math.Sin(2 * math.Pi * 1000 * float64(i) / float64(sr)))
	}
	out := Spectrum(analysis.Analyze(buf, sr), 40, 8)
	if !strings.Contains(out, "0 .. 4000 Hz") {
		t.Errorf("spectrum caption missing:\n%s", out)
	}
	if Plot([]float64{1}, "x", 10, 4) != "" {
		t.Error("single point plotted")
	}
}

func TestSVG(t *testing.T) {
	var buf strings.Builder
	p := analysis.NewPortrait("z0", []float64{0, 1, 2}, "z1", []float64{0, 1, 0})
	if err := PortraitSVG(&buf, p, 200, 100); err != nil {
		t.Fatalf("portrait: %v", err)
	}
	if !strings.Contains(buf.String(), `d="M`) || !strings.Contains(buf.String(), "z1 vs z0") {
		t.Errorf("portrait svg:\n%s", buf.String())
	}
	if err := PortraitSVG(&buf, analysis.NewPortrait("a", []float64{1}, "b", []float64{1}), 10, 10); err == nil {
		t.Error("single point portrait accepted")
	}

	buf.Reset()
	err := SeriesSVG(&buf, []string{"tempo", "fill"}, [][]float64{{60, 90, 120}, {0.1, 0.2, 0.3}}, 300, 100)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if got := strings.Count(buf.String(), "<polyline"); got != 2 {
		t.Errorf("polylines = %d", got)
	}
	if err := SeriesSVG(&buf, nil, [][]float64{{}}, 10, 10); err == nil {
		t.Error("empty series accepted")
	}
}

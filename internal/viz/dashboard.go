package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/brainjam/internal/control"
	"github.com/san-kum/brainjam/internal/cycle"
	"github.com/san-kum/brainjam/internal/jam"
)

const (
	DefaultRefresh = time.Second / 20
	DefaultHistory = 120
)

// Performer is the part of a cycle the dashboard drives.
type Performer interface {
	Telemetry() jam.Telemetry
	Pause() error
	Resume() error
}

// Keys receives the key presses meant for the control source.
type Keys interface {
	Press(key rune) bool
	Values() jam.ControlVector
}

type Options struct {
	Title   string
	Refresh time.Duration
	History int
	Theme   string
}

type TickMsg time.Time

type graphKind int

const (
	graphIntensity graphKind = iota
	graphTempo
	graphLatency
	numGraphs
)

func (g graphKind) String() string {
	switch g {
	case graphTempo:
		return "Tempo (bpm)"
	case graphLatency:
		return "Tick latency (ms)"
	}
	return "Intensity (EMA)"
}

// Dashboard follows a running cycle. Telemetry is sampled on every refresh;
// history only grows when the tick counter moves.
type Dashboard struct {
	perf  Performer
	keys  Keys
	opts  Options
	theme Theme
	st    styles

	last      jam.Telemetry
	intensity []float64
	tempo     []float64
	latency   []float64
	graph     graphKind
	help      bool
	err       error
	quitting  bool
}

// NewDashboard builds a dashboard for perf. keys may be nil when the
// source is not keyboard driven.
func NewDashboard(perf Performer, keys Keys, opts Options) Dashboard {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.History <= 0 {
		opts.History = DefaultHistory
	}
	if opts.Title == "" {
		opts.Title = "brainjam"
	}
	th := GetTheme(opts.Theme)
	return Dashboard{
		perf:  perf,
		keys:  keys,
		opts:  opts,
		theme: th,
		st:    newStyles(th),
		last:  perf.Telemetry(),
	}
}

func (m Dashboard) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Dashboard) Init() tea.Cmd { return m.tick() }

// Quitting reports whether the user asked to leave.
func (m Dashboard) Quitting() bool { return m.quitting }

func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "p":
			m.err = m.togglePause()
		case "t":
			m.theme = nextTheme(m.theme)
			m.st = newStyles(m.theme)
		case "g":
			m.graph = (m.graph + 1) % numGraphs
		case "?":
			m.help = !m.help
		case " ":
			if m.keys != nil {
				m.keys.Press(' ')
			}
		default:
			if m.keys != nil && msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
				m.keys.Press(msg.Runes[0])
			}
		}
	case TickMsg:
		m.sample()
		return m, m.tick()
	}
	return m, nil
}

func (m *Dashboard) togglePause() error {
	if m.last.State == cycle.Paused.String() {
		return m.perf.Resume()
	}
	return m.perf.Pause()
}

func (m *Dashboard) sample() {
	t := m.perf.Telemetry()
	fresh := t.Tick > m.last.Tick
	m.last = t
	if !fresh {
		return
	}
	m.intensity = push(m.intensity, t.EMA, m.opts.History)
	m.tempo = push(m.tempo, t.Response.TempoHint, m.opts.History)
	m.latency = push(m.latency, ms(t.Timing.Total), m.opts.History)
}

func push(h []float64, v float64, capacity int) []float64 {
	h = append(h, v)
	if len(h) > capacity {
		h = h[len(h)-capacity:]
	}
	return h
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func (m Dashboard) View() string {
	if m.quitting {
		return ""
	}
	t := m.last
	st := m.st
	var s strings.Builder

	s.WriteString(st.header.Render(strings.ToUpper(m.opts.Title)+" · "+string(t.Params.Kind)) + "\n")
	status := st.running.Render("● " + strings.ToUpper(t.State))
	if t.State == cycle.Paused.String() {
		status = st.paused.Render("❚❚ PAUSED")
	}
	fmt.Fprintf(&s, "%s   tick %d   %s\n\n", status, t.Tick, st.badge(t.Label))

	m.row(&s, "Intensity", st.level(t.EMA).Render(Meter(t.EMA, 20))+fmt.Sprintf(" %.2f", t.EMA))
	r := t.Response
	m.row(&s, "Tempo", fmt.Sprintf("%.1f bpm", r.TempoHint))
	m.row(&s, "Density / tension", fmt.Sprintf("%+.2f / %+.2f", r.DensityBias, r.TensionBias))
	m.row(&s, "Fill", fmt.Sprintf("%.2f", r.FillProbability))

	s.WriteString("\n" + st.label.Render("PARAMETERS") + "\n")
	names := jam.ParamNames(t.Params.Kind)
	for i, v := range t.Params.Values() {
		fmt.Fprintf(&s, "  %-20s %s %.2f\n", names[i], st.level(v).Render(Meter(v, 16)), v)
	}

	if m.keys != nil {
		s.WriteString("\n" + st.label.Render("CONTROLS") + "\n")
		for i, v := range m.keys.Values() {
			hint := ""
			if i < len(control.KeyPairs) {
				hint = fmt.Sprintf("%c/%c", control.KeyPairs[i][0], control.KeyPairs[i][1])
			}
			fmt.Fprintf(&s, "  c%-3d %-4s %s %.2f\n", i+1, hint, Meter(v, 16), v)
		}
	}

	if len(t.Latent) > 0 {
		parts := make([]string, len(t.Latent))
		for i, z := range t.Latent {
			parts[i] = fmt.Sprintf("%+.2f", z)
		}
		s.WriteString("\n")
		m.row(&s, "Latent", strings.Join(parts, " "))
	}

	if h := m.history(); len(h) > 1 {
		chart := asciigraph.Plot(h, asciigraph.Height(6), asciigraph.Width(48),
			asciigraph.Precision(2), asciigraph.Caption(m.graph.String()))
		s.WriteString(st.graph.Render(chart) + "\n")
	} else {
		s.WriteString("\n" + st.muted.Render(Sparkline(nil, 0, 1, 48)) + "\n")
	}

	m.row(&s, "Latency", fmt.Sprintf("%.2f ms (synth %.2f ms)", ms(t.Timing.Total), ms(t.Timing.Synth)))
	m.row(&s, "Overruns / dropped", fmt.Sprintf("%d / %d", t.Overruns, t.Dropped))
	m.row(&s, "Underruns", fmt.Sprintf("%d", t.Underruns))
	if m.err != nil {
		s.WriteString(st.high.Render(m.err.Error()) + "\n")
	}

	if m.help {
		s.WriteString("\n" + st.muted.Render(helpText))
	} else {
		s.WriteString("\n" + st.muted.Render("P:Pause G:Graph T:Theme ?:Help Esc:Quit"))
	}
	return st.panel.Render(s.String())
}

const helpText = `q/w a/s z/x e/r  lower/raise controls 1..4
Space            reset controls to 0.5
P                pause/resume
G                next history graph
T                next theme
Esc, Ctrl+C      quit`

func (m Dashboard) row(s *strings.Builder, label, value string) {
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.st.label.Render(label), m.st.value.Render(value)) + "\n")
}

func (m Dashboard) history() []float64 {
	switch m.graph {
	case graphTempo:
		return m.tempo
	case graphLatency:
		return m.latency
	}
	return m.intensity
}

package synth

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/san-kum/brainjam/internal/config"
	"github.com/san-kum/brainjam/internal/jam"
)

const chunk = 100 * time.Millisecond

func newEngine(t *testing.T, kind jam.EngineKind) jam.Engine {
	t.Helper()
	cfg := config.DefaultConfig().Engine
	cfg.Kind = kind.String()
	e, err := New(cfg, config.DefaultSampleRate, 7)
	if err != nil {
		t.Fatalf("new %s: %v", kind, err)
	}
	return e
}

func TestNew_UnknownEngine(t *testing.T) {
	cfg := config.DefaultConfig().Engine
	cfg.Kind = "fm"
	_, err := New(cfg, 44100, 1)
	if !errors.Is(err, jam.ErrUnknownEngine) || !errors.Is(err, jam.ErrInvalidConfig) {
		t.Fatalf("expected unknown engine config error, got %v", err)
	}
}

func TestEngines_ChunkLength(t *testing.T) {
	for _, kind := range jam.AllEngines() {
		t.Run(kind.String(), func(t *testing.T) {
			e := newEngine(t, kind)
			if e.Kind() != kind {
				t.Errorf("kind = %s", e.Kind())
			}
			buf := e.Generate(chunk, jam.NewSynthParams(kind, [jam.NumParams]float64{0.5, 0.5, 0.5, 0.5}))
			if len(buf.Samples) != 4410 {
				t.Errorf("expected 4410 samples, got %d", len(buf.Samples))
			}
			if buf.SampleRate != 44100 {
				t.Errorf("sample rate = %d", buf.SampleRate)
			}
		})
	}
}

func TestEngines_Safe(t *testing.T) {
	for _, kind := range jam.AllEngines() {
		t.Run(kind.String(), func(t *testing.T) {
			e := newEngine(t, kind)
			rng := rand.New(rand.NewSource(3))
			for c := 0; c < 60; c++ {
				var v [jam.NumParams]float64
				for i := range v {
					v[i] = rng.Float64()*3 - 1
				}
				p := jam.SynthParams{Kind: kind}
				switch c % 3 {
				case 0:
					p = jam.NewSynthParams(kind, v)
				case 1:
					// unclamped record straight from a caller
					p.Additive = jam.AdditiveParams{TempoDensity: v[0], HarmonicTension: math.NaN(), SpectralBrightness: v[2], NoiseBalance: math.Inf(1)}
					p.HarmonicNoise = jam.HarmonicNoiseParams{Pitch: math.Inf(-1), Brightness: v[1], Roughness: math.NaN(), Amplitude: 5}
					p.Symbolic = jam.SymbolicParams{NoteDensity: 9, PitchCenter: math.NaN(), NoteDuration: v[2], HarmonicComplexity: -4}
				default:
					p = jam.NewSynthParams(kind, [jam.NumParams]float64{1, 1, 1, 1})
				}
				buf := e.Generate(chunk, p)
				for i, s := range buf.Samples {
					x := float64(s)
					if math.IsNaN(x) || math.IsInf(x, 0) {
						t.Fatalf("chunk %d sample %d not finite", c, i)
					}
					if math.Abs(x) > config.DefaultCeiling+1e-6 {
						t.Fatalf("chunk %d sample %d = %f above ceiling", c, i, x)
					}
				}
			}
		})
	}
}

func TestEngines_ChunkBoundaries(t *testing.T) {
	for _, kind := range jam.AllEngines() {
		t.Run(kind.String(), func(t *testing.T) {
			p := jam.NewSynthParams(kind, [jam.NumParams]float64{0.8, 0.4, 0.6, 0.7})
			whole := newEngine(t, kind).Generate(3*chunk, p).Samples

			split := newEngine(t, kind)
			var joined []float32
			for range 3 {
				joined = append(joined, split.Generate(chunk, p).Samples...)
			}
			if len(joined) != len(whole) {
				t.Fatalf("length %d vs %d", len(joined), len(whole))
			}
			for i := range whole {
				if joined[i] != whole[i] {
					t.Fatalf("sample %d differs: %f vs %f", i, joined[i], whole[i])
				}
			}
		})
	}
}

func TestEngines_ParameterStepIsSmoothed(t *testing.T) {
	for _, kind := range jam.AllEngines() {
		t.Run(kind.String(), func(t *testing.T) {
			e := newEngine(t, kind)
			low := jam.NewSynthParams(kind, [jam.NumParams]float64{0.1, 0.1, 0.1, 0.1})
			high := jam.NewSynthParams(kind, [jam.NumParams]float64{0.9, 0.9, 0.9, 0.9})
			prev := e.Generate(chunk, low).Samples
			next := e.Generate(chunk, high).Samples
			edge := math.Abs(float64(next[0] - prev[len(prev)-1]))
			if inner := max(maxStep(prev), maxStep(next)); edge > inner+1e-6 {
				t.Errorf("edge step %f exceeds largest interior step %f", edge, inner)
			}
		})
	}
}

func maxStep(s []float32) float64 {
	m := 0.0
	for i := 1; i < len(s); i++ {
		m = max(m, math.Abs(float64(s[i]-s[i-1])))
	}
	return m
}

func TestHarmonicNoise_ZeroAmplitudeIsSilent(t *testing.T) {
	e := NewHarmonicNoise(Options{Seed: 1})
	buf := e.Generate(chunk, jam.NewSynthParams(jam.EngineHarmonicNoise, [jam.NumParams]float64{0.5, 1, 1, 0}))
	if peak := buf.Peak(); peak != 0 {
		t.Errorf("expected silence, peak %f", peak)
	}
}

func TestAdditive_IsAudible(t *testing.T) {
	e := NewAdditive(Options{Seed: 1})
	buf := e.Generate(time.Second, jam.NewSynthParams(jam.EngineAdditive, [jam.NumParams]float64{0.5, 0.2, 0.8, 0.1}))
	if peak := buf.Peak(); peak < 0.05 {
		t.Errorf("peak %f too quiet", peak)
	}
	if e.Elapsed() != time.Second {
		t.Errorf("elapsed = %v", e.Elapsed())
	}
}

func TestSymbolic_Notes(t *testing.T) {
	tests := []struct {
		name       string
		density    float64
		center     float64
		minN, maxN int
		lo, hi     int
	}{
		{"dense high", 1, 1, 27, 33, 79, 84},
		{"sparse low", 0, 0, 1, 2, 36, 41},
		{"centered", 0.5, 0.5, 4, 4, 55, 65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewSymbolic(Options{Seed: 11})
			var notes []NoteEvent
			e.OnNote(func(n NoteEvent) { notes = append(notes, n) })

			p := jam.NewSynthParams(jam.EngineSymbolic, [jam.NumParams]float64{tt.density, tt.center, 0.3, 0.5})
			for range 10 {
				e.Generate(chunk, p)
			}
			if len(notes) < tt.minN || len(notes) > tt.maxN {
				t.Fatalf("expected %d..%d notes, got %d", tt.minN, tt.maxN, len(notes))
			}
			for _, n := range notes {
				if n.Note < tt.lo || n.Note > tt.hi {
					t.Errorf("note %d outside %d..%d", n.Note, tt.lo, tt.hi)
				}
				if !inMajorScale(n.Note) {
					t.Errorf("note %d not in C major", n.Note)
				}
				if n.Velocity < 0.3 || n.Velocity > 0.5 {
					t.Errorf("velocity %f", n.Velocity)
				}
			}
			if notes[0].At != 0 {
				t.Errorf("first note at %v", notes[0].At)
			}
		})
	}
}

func TestSymbolic_StaysInScaleAcrossPitchCenters(t *testing.T) {
	lo, hi := math.MaxInt, math.MinInt
	for _, center := range []float64{0, 0.3, 0.55, 0.6, 1} {
		e := NewSymbolic(Options{Seed: 3})
		e.OnNote(func(n NoteEvent) {
			if !inMajorScale(n.Note) {
				t.Errorf("center %.2f: note %d not in C major", center, n.Note)
			}
			lo, hi = min(lo, n.Note), max(hi, n.Note)
		})
		p := jam.NewSynthParams(jam.EngineSymbolic, [jam.NumParams]float64{1, center, 0.3, 0.5})
		for range 20 {
			e.Generate(chunk, p)
		}
	}
	if lo != baseNote-24 || hi != baseNote+24 {
		t.Errorf("note range %d..%d, want %d..%d", lo, hi, baseNote-24, baseNote+24)
	}
}

func TestScaleNote(t *testing.T) {
	tests := []struct {
		degree, want int
	}{
		{0, 60}, {1, 62}, {6, 71}, {7, 72}, {-1, 59}, {-7, 48}, {-8, 47},
		{14, 84}, {-14, 36}, {30, 84}, {-30, 36},
	}
	for _, tt := range tests {
		if got := scaleNote(tt.degree); got != tt.want {
			t.Errorf("scaleNote(%d) = %d, want %d", tt.degree, got, tt.want)
		}
	}
	if centerDegree(0) != -14 || centerDegree(0.5) != 0 || centerDegree(1) != 14 {
		t.Errorf("center degrees %d %d %d", centerDegree(0), centerDegree(0.5), centerDegree(1))
	}
}

func TestSymbolic_VoicePoolIsBounded(t *testing.T) {
	e := NewSymbolic(Options{Seed: 2, Voices: 4})
	p := jam.NewSynthParams(jam.EngineSymbolic, [jam.NumParams]float64{1, 0.5, 1, 1})
	for range 20 {
		e.Generate(chunk, p)
		if n := e.ActiveVoices(); n > e.Voices() {
			t.Fatalf("%d active voices in a pool of %d", n, e.Voices())
		}
	}
	if e.ActiveVoices() == 0 {
		t.Error("no voices sounding at full density")
	}
}

func TestSymbolic_NotesRelease(t *testing.T) {
	e := NewSymbolic(Options{Seed: 5})
	p := jam.NewSynthParams(jam.EngineSymbolic, [jam.NumParams]float64{0, 0.5, 0.1, 0})
	e.Generate(10*time.Millisecond, p)
	if e.ActiveVoices() == 0 {
		t.Fatal("expected a sounding note")
	}
	// note plus release ends well before the next event at one second
	e.Generate(900*time.Millisecond, p)
	if n := e.ActiveVoices(); n != 0 {
		t.Errorf("expected voices to finish, %d still active", n)
	}
}

func inMajorScale(note int) bool {
	pc := ((note % 12) + 12) % 12
	for _, s := range majorScale {
		if s == pc {
			return true
		}
	}
	return false
}

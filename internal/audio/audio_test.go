package audio

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/brainjam/internal/jam"
)

func ramp(n int, scale float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = scale * float32(i+1) / float32(n)
	}
	return s
}

func TestPlayer_FIFO(t *testing.T) {
	p := NewPlayer(16, UnderrunRepeat)
	in := ramp(8, 1)
	if n := p.Push(in, time.Millisecond); n != 8 {
		t.Fatalf("pushed %d", n)
	}
	out := make([]float32, 8)
	p.Fill(out)
	for i := range out {
		if out[i] != in[i] {
			t.Fatalf("sample %d = %f, want %f", i, out[i], in[i])
		}
	}
	if p.Underruns() != 0 {
		t.Errorf("unexpected underrun")
	}
}

func TestPlayer_Underrun(t *testing.T) {
	tests := []struct {
		policy string
		want   func(i int, last []float32) float32
	}{
		{UnderrunSilence, func(int, []float32) float32 { return 0 }},
		{UnderrunRepeat, func(i int, last []float32) float32 { return last[i%len(last)] * repeatFade }},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			p := NewPlayer(16, tt.policy)
			in := ramp(4, 0.8)
			p.Push(in, time.Millisecond)

			out := make([]float32, 8)
			p.Fill(out)
			for i := 0; i < 4; i++ {
				if out[i] != in[i] {
					t.Fatalf("fresh sample %d = %f", i, out[i])
				}
			}
			for i := 4; i < 8; i++ {
				if want := tt.want(i-4, in); math.Abs(float64(out[i]-want)) > 1e-7 {
					t.Errorf("sample %d = %f, want %f", i, out[i], want)
				}
			}
			p.Fill(out)
			if p.Underruns() != 1 {
				t.Errorf("one dry spell should count once, got %d", p.Underruns())
			}
		})
	}
}

func TestPlayer_RepeatFades(t *testing.T) {
	p := NewPlayer(16, UnderrunRepeat)
	p.Push([]float32{0.8, 0.8}, time.Millisecond)
	out := make([]float32, 2)
	p.Fill(out)
	prev := float32(1)
	for range 5 {
		p.Fill(out)
		if out[0] >= prev {
			t.Fatalf("repeat did not fade: %f after %f", out[0], prev)
		}
		prev = out[0]
	}
}

func TestPlayer_PushTimesOut(t *testing.T) {
	p := NewPlayer(4, UnderrunSilence)
	if n := p.Push(ramp(6, 1), 5*time.Millisecond); n != 4 {
		t.Errorf("expected 4 queued before timeout, got %d", n)
	}
	p.Close()
	if n := p.Push(ramp(2, 1), time.Second); n != 0 {
		t.Errorf("push after close queued %d", n)
	}
}

func TestWAV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "take.wav")
	w, err := CreateWAV(path, 22050)
	if err != nil {
		t.Fatal(err)
	}
	chunk := ramp(2205, 0.9)
	for range 3 {
		if err := w.Write(jam.AudioBuffer{Samples: chunk, SampleRate: 22050}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Write(jam.AudioBuffer{Samples: chunk, SampleRate: 44100}); err == nil {
		t.Error("expected sample rate mismatch error")
	}
	if w.Samples() != 3*2205 {
		t.Errorf("samples = %d", w.Samples())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	got, sr, err := ReadWAV(path)
	if err != nil {
		t.Fatal(err)
	}
	if sr != 22050 || len(got) != 3*2205 {
		t.Fatalf("read %d samples at %d Hz", len(got), sr)
	}
	for i := 0; i < 2205; i++ {
		if d := math.Abs(float64(got[2205+i] - chunk[i])); d > 3.0/32768 {
			t.Fatalf("sample %d off by %g", i, d)
		}
	}
}

func TestReadWAV_Invalid(t *testing.T) {
	if _, _, err := ReadWAV(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}
}

type failSink struct{}

func (failSink) Write(jam.AudioBuffer) error { return errors.New("full") }

func TestTee(t *testing.T) {
	mem := NewMemorySink()
	var d Discard
	tee := Tee{mem, &d, failSink{}}
	err := tee.Write(jam.AudioBuffer{Samples: []float32{0.1, -0.6}, SampleRate: 8000})
	if err == nil {
		t.Error("expected joined error from failing sink")
	}
	if mem.Writes() != 1 || d.Samples() != 2 {
		t.Errorf("writes %d, samples %d", mem.Writes(), d.Samples())
	}
	if math.Abs(d.Peak()-0.6) > 1e-6 {
		t.Errorf("peak = %f", d.Peak())
	}
	buf := mem.Buffer()
	if buf.SampleRate != 8000 || len(buf.Samples) != 2 {
		t.Errorf("memory buffer %+v", buf)
	}
	if err := tee.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

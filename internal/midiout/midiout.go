// Package midiout collects the notes of the symbolic engine and writes them
// as a Standard MIDI File.
package midiout

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/san-kum/brainjam/internal/synth"
)

// Resolution is the number of ticks per quarter note in written files.
const Resolution = 960

// Recorder accumulates note events. Add matches the signature expected by
// synth.Symbolic.OnNote.
type Recorder struct {
	mu      sync.Mutex
	channel uint8
	notes   []synth.NoteEvent
}

func NewRecorder(channel uint8) *Recorder {
	return &Recorder{channel: channel & 0x0f}
}

func (r *Recorder) Add(ev synth.NoteEvent) {
	r.mu.Lock()
	r.notes = append(r.notes, ev)
	r.mu.Unlock()
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

type event struct {
	at  time.Duration
	on  bool
	key uint8
	vel uint8
}

// events flattens notes into note on/off pairs in time order. At equal
// times note offs sort first so a repeated key is not cut short.
func (r *Recorder) events() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event, 0, 2*len(r.notes))
	for _, n := range r.notes {
		key := uint8(min(max(n.Note, 0), 127))
		vel := uint8(min(max(int(math.Round(n.Velocity*127)), 1), 127))
		out = append(out,
			event{at: n.At, on: true, key: key, vel: vel},
			event{at: n.At + n.Length, key: key},
		)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].at != out[j].at {
			return out[i].at < out[j].at
		}
		return !out[i].on && out[j].on
	})
	return out
}

func ticks(d time.Duration, bpm float64) uint32 {
	return uint32(math.Round(d.Seconds() * bpm / 60 * Resolution))
}

// File builds a single-track file at the given tempo.
func (r *Recorder) File(name string, bpm float64) (*smf.SMF, error) {
	if bpm <= 0 {
		return nil, fmt.Errorf("midi tempo %v: must be positive", bpm)
	}
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(name))
	tr.Add(0, smf.MetaTempo(bpm))

	var last uint32
	for _, ev := range r.events() {
		at := ticks(ev.at, bpm)
		delta := at - last
		last = at
		if ev.on {
			tr.Add(delta, midi.NoteOn(r.channel, ev.key, ev.vel))
		} else {
			tr.Add(delta, midi.NoteOff(r.channel, ev.key))
		}
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(Resolution)
	if err := s.Add(tr); err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}
	return s, nil
}

func (r *Recorder) WriteTo(w io.Writer, name string, bpm float64) (int64, error) {
	s, err := r.File(name, bpm)
	if err != nil {
		return 0, err
	}
	return s.WriteTo(w)
}

func (r *Recorder) WriteFile(path, name string, bpm float64) error {
	s, err := r.File(name, bpm)
	if err != nil {
		return err
	}
	if err := s.WriteFile(path); err != nil {
		return fmt.Errorf("write midi %s: %w", path, err)
	}
	return nil
}

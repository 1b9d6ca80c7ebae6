package synth

import (
	"math"
	"math/rand"
	"time"

	"github.com/san-kum/brainjam/internal/dsp"
	"github.com/san-kum/brainjam/internal/jam"
)

var majorScale = [...]int{0, 2, 4, 5, 7, 9, 11}

const (
	baseNote     = 60
	octaveSpread = 2
	// scale degrees a chord may wander from the centre degree
	degreeSpread = 3
	maxNoteHarms = 6
	symbolicGain = 0.35

	attackTime  = 0.01
	decayTime   = 0.05
	sustainLvl  = 0.7
	releaseTime = 0.1
)

// NoteEvent describes one note started by the symbolic engine.
type NoteEvent struct {
	At       time.Duration
	Note     int
	Velocity float64
	Length   time.Duration
}

type voice struct {
	env      *dsp.ADSR
	phase    [maxNoteHarms]float64
	freq     float64
	velocity float64
	hold     int // samples until release
	started  int64
}

// Symbolic turns parameters into discrete note events on a C major scale
// and plays them on a fixed pool of enveloped additive voices.
type Symbolic struct {
	base
	voices   []voice
	rng      *rand.Rand
	sinceEvt float64
	onNote   func(NoteEvent)
}

func NewSymbolic(o Options) *Symbolic {
	o = o.withDefaults()
	s := &Symbolic{
		base:     newBase(jam.EngineSymbolic, o),
		voices:   make([]voice, o.Voices),
		rng:      rand.New(rand.NewSource(o.Seed)),
		sinceEvt: math.Inf(1),
	}
	for i := range s.voices {
		s.voices[i].env = dsp.NewADSR(s.sr, attackTime, decayTime, sustainLvl, releaseTime)
	}
	return s
}

// OnNote registers fn to be called, on the rendering goroutine, for every
// note the engine starts.
func (s *Symbolic) OnNote(fn func(NoteEvent)) { s.onNote = fn }

// Voices is the size of the voice pool.
func (s *Symbolic) Voices() int { return len(s.voices) }

// ActiveVoices counts voices that are still sounding.
func (s *Symbolic) ActiveVoices() int {
	n := 0
	for i := range s.voices {
		if s.voices[i].env.Active() {
			n++
		}
	}
	return n
}

func (s *Symbolic) Generate(d time.Duration, p jam.SynthParams) jam.AudioBuffer {
	buf := make([]float32, chunkLen(d, s.sr))
	s.Render(buf, p)
	return jam.AudioBuffer{Samples: buf, SampleRate: int(s.sr)}
}

func (s *Symbolic) Render(dst []float32, p jam.SynthParams) {
	s.setTargets(p)
	dt := 1 / s.sr

	for n := range dst {
		v := s.next()
		density, center, length, complexity := v[0], v[1], v[2], v[3]

		if s.sinceEvt >= 0.1+(1-density)*0.9 {
			notes := 1 + int(2*density)
			for range notes {
				s.trigger(center, length)
			}
			s.sinceEvt = 0
		}
		s.sinceEvt += dt

		harms := 1 + 5*complexity
		full := int(harms)
		frac := harms - float64(full)

		x := 0.0
		for i := range s.voices {
			vc := &s.voices[i]
			if !vc.env.Active() {
				continue
			}
			if vc.hold > 0 {
				vc.hold--
				if vc.hold == 0 {
					vc.env.Release()
				}
			}
			tone, norm := 0.0, 0.0
			for k := range vc.phase {
				w := 1.0
				if k == full {
					w = frac
				} else if k > full {
					w = 0
				}
				idx := float64(k + 1)
				f := vc.freq * idx
				vc.phase[k] = wrap(vc.phase[k] + f*dt)
				if w == 0 || f >= s.sr/2 {
					continue
				}
				tone += w / idx * math.Sin(twoPi*vc.phase[k])
				norm += w / idx
			}
			if norm > 0 {
				tone /= norm
			}
			x += vc.velocity * vc.env.Next() * tone
		}

		dst[n] = float32(s.limiter.Sample(symbolicGain * x))
		s.samples++
	}
}

// trigger starts one note. An idle voice is preferred; otherwise the
// oldest sounding voice is taken over from its current level.
func (s *Symbolic) trigger(center, length float64) {
	note := scaleNote(centerDegree(center) + s.rng.Intn(2*degreeSpread+1) - degreeSpread)
	seconds := 0.1 + 0.9*length
	vel := 0.3 + 0.2*s.rng.Float64()

	vc := s.steal()
	if !vc.env.Active() {
		vc.phase = [maxNoteHarms]float64{}
	}
	vc.freq = midiToFreq(note)
	vc.velocity = vel
	vc.hold = max(1, int((seconds-releaseTime)*s.sr))
	vc.started = s.samples
	vc.env.Trigger()

	if s.onNote != nil {
		s.onNote(NoteEvent{
			At:       time.Duration(s.samples) * time.Second / time.Duration(s.sr),
			Note:     note,
			Velocity: vel,
			Length:   time.Duration(seconds * float64(time.Second)),
		})
	}
}

// centerDegree maps a pitch centre in [0,1] onto a scale degree relative to
// baseNote, spanning octaveSpread octaves either way.
func centerDegree(center float64) int {
	span := float64(octaveSpread * len(majorScale))
	return int(math.Round((jam.Unit(center) - 0.5) * 2 * span))
}

// scaleNote returns the MIDI note of a C major degree, clamped to
// octaveSpread octaves around baseNote.
func scaleNote(degree int) int {
	limit := octaveSpread * len(majorScale)
	degree = min(max(degree, -limit), limit)
	octave := degree / len(majorScale)
	step := degree % len(majorScale)
	if step < 0 {
		step += len(majorScale)
		octave--
	}
	return baseNote + 12*octave + majorScale[step]
}

func (s *Symbolic) steal() *voice {
	var oldest *voice
	for i := range s.voices {
		vc := &s.voices[i]
		if !vc.env.Active() {
			return vc
		}
		if oldest == nil || vc.started < oldest.started {
			oldest = vc
		}
	}
	return oldest
}

func (s *Symbolic) Reset() {
	s.resetSmoothing()
	for i := range s.voices {
		s.voices[i].env.Reset()
		s.voices[i].hold = 0
	}
	s.sinceEvt = math.Inf(1)
}

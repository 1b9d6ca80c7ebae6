package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// Underrun policies for Player.
const (
	UnderrunRepeat  = "repeat"
	UnderrunSilence = "silence"
)

// repeatFade is the gain applied to each successive repeat of the last
// chunk while the producer stays behind.
const repeatFade = 0.5

// Player is the FIFO between the cycle's sink goroutine and a pull-based
// audio callback. Push blocks while the FIFO is full; Fill never blocks and
// covers missing audio per the underrun policy.
type Player struct {
	mu      sync.Mutex
	ring    []float32
	head    int
	size    int
	closed  bool
	repeat  bool
	last    []float32
	lastPos int
	gain    float32
	starved bool

	underruns atomic.Int64
}

// NewPlayer creates a FIFO holding capacity samples.
func NewPlayer(capacity int, policy string) *Player {
	// silence before the first chunk is not an underrun
	return &Player{
		ring:    make([]float32, max(capacity, 1)),
		repeat:  policy != UnderrunSilence,
		gain:    1,
		starved: true,
	}
}

// Push appends samples, waiting for room as the callback drains the FIFO.
// It gives up after timeout and reports how many samples were queued.
func (p *Player) Push(samples []float32, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	p.mu.Lock()
	defer p.mu.Unlock()

	written := 0
	for written < len(samples) {
		for p.size == len(p.ring) && !p.closed {
			if time.Now().After(deadline) {
				return written
			}
			p.mu.Unlock()
			time.Sleep(time.Millisecond)
			p.mu.Lock()
		}
		if p.closed {
			return written
		}
		for written < len(samples) && p.size < len(p.ring) {
			p.ring[(p.head+p.size)%len(p.ring)] = samples[written]
			p.size++
			written++
		}
	}
	p.remember(samples)
	return written
}

func (p *Player) remember(samples []float32) {
	if cap(p.last) < len(samples) {
		p.last = make([]float32, len(samples))
	}
	p.last = p.last[:len(samples)]
	copy(p.last, samples)
	p.lastPos = 0
}

// Fill writes exactly len(out) samples. When the FIFO runs dry the rest is
// either the last chunk repeated at a falling gain or silence.
func (p *Player) Fill(out []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for n < len(out) && p.size > 0 {
		out[n] = p.ring[p.head]
		p.head = (p.head + 1) % len(p.ring)
		p.size--
		n++
	}
	if n > 0 {
		p.gain = 1
		p.lastPos = 0
		p.starved = false
	}
	if n == len(out) {
		return
	}

	if !p.starved {
		p.underruns.Add(1)
		p.starved = true
	}
	if !p.repeat || len(p.last) == 0 {
		clear(out[n:])
		return
	}
	for ; n < len(out); n++ {
		if p.lastPos == 0 {
			p.gain *= repeatFade
		}
		out[n] = p.last[p.lastPos] * p.gain
		p.lastPos = (p.lastPos + 1) % len(p.last)
	}
}

// Buffered is the number of samples waiting.
func (p *Player) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Underruns counts how many times the callback found the FIFO empty.
func (p *Player) Underruns() int64 { return p.underruns.Load() }

// Close releases any blocked Push.
func (p *Player) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

package audio

import (
	"errors"
	"io"
	"sync"

	"github.com/san-kum/brainjam/internal/jam"
)

// MemorySink keeps a copy of everything written, for tests and offline
// analysis.
type MemorySink struct {
	mu         sync.Mutex
	samples    []float32
	sampleRate int
	writes     int
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (m *MemorySink) Write(buf jam.AudioBuffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, buf.Samples...)
	m.sampleRate = buf.SampleRate
	m.writes++
	return nil
}

// Buffer returns a copy of the collected audio.
func (m *MemorySink) Buffer() jam.AudioBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float32, len(m.samples))
	copy(out, m.samples)
	return jam.AudioBuffer{Samples: out, SampleRate: m.sampleRate}
}

func (m *MemorySink) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Discard drops audio but keeps count of it.
type Discard struct {
	mu      sync.Mutex
	samples int64
	peak    float64
}

func (d *Discard) Write(buf jam.AudioBuffer) error {
	d.mu.Lock()
	d.samples += int64(len(buf.Samples))
	d.peak = max(d.peak, buf.Peak())
	d.mu.Unlock()
	return nil
}

func (d *Discard) Samples() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.samples
}

func (d *Discard) Peak() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peak
}

// Tee writes every buffer to all sinks in order.
type Tee []jam.Sink

func (t Tee) Write(buf jam.AudioBuffer) error {
	var errs []error
	for _, s := range t {
		if err := s.Write(buf); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Underruns sums the counters of sinks that keep one.
func (t Tee) Underruns() int64 {
	var n int64
	for _, s := range t {
		if u, ok := s.(interface{ Underruns() int64 }); ok {
			n += u.Underruns()
		}
	}
	return n
}

// Close closes every sink that holds resources.
func (t Tee) Close() error {
	var errs []error
	for _, s := range t {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

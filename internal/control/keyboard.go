package control

import (
	"sync"

	"github.com/san-kum/brainjam/internal/jam"
)

// DefaultKeyStep is how far one key press moves a control.
const DefaultKeyStep = 0.05

// KeyPairs lists the down/up keys of each control channel.
var KeyPairs = [][2]rune{{'q', 'w'}, {'a', 's'}, {'z', 'x'}, {'e', 'r'}}

// Keyboard is a manual source driven by key presses from the UI goroutine.
type Keyboard struct {
	mu     sync.Mutex
	values jam.ControlVector
	step   float64
	dirty  bool
}

func NewKeyboard(dim int, step float64) *Keyboard {
	if step <= 0 {
		step = DefaultKeyStep
	}
	k := &Keyboard{values: make(jam.ControlVector, dim), step: step}
	k.Reset()
	return k
}

func (k *Keyboard) Dim() int { return len(k.values) }

func (k *Keyboard) Poll() (jam.ControlVector, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	fresh := k.dirty
	k.dirty = false
	return k.values.Clone(), fresh
}

// Press applies a key. It reports whether the key is bound.
func (k *Keyboard) Press(key rune) bool {
	if key == ' ' {
		k.Reset()
		return true
	}
	for i, pair := range KeyPairs {
		switch key {
		case pair[0]:
			k.Adjust(i, -k.step)
			return true
		case pair[1]:
			k.Adjust(i, k.step)
			return true
		}
	}
	return false
}

// Adjust moves control i by delta, clamped to [0,1].
func (k *Keyboard) Adjust(i int, delta float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if i < 0 || i >= len(k.values) {
		return
	}
	k.values[i] = jam.Unit(k.values[i] + delta)
	k.dirty = true
}

// Set replaces control i.
func (k *Keyboard) Set(i int, v float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if i < 0 || i >= len(k.values) {
		return
	}
	k.values[i] = jam.Unit(v)
	k.dirty = true
}

// Reset returns every control to 0.5.
func (k *Keyboard) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i := range k.values {
		k.values[i] = 0.5
	}
	k.dirty = true
}

// Values returns a copy of the current controls.
func (k *Keyboard) Values() jam.ControlVector {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.values.Clone()
}

package control

import (
	"fmt"
	"sync"

	"github.com/san-kum/brainjam/internal/jam"
	"gitlab.com/gomidi/midi/v2"
)

// DefaultControllers are the CC numbers read for channels 0..3: mod wheel,
// volume, pan and filter cutoff.
var DefaultControllers = []uint8{1, 7, 10, 74}

// MIDI reads control change messages. Controller values 0..127 map onto
// [0,1]; a channel starts at the mid point until its first message.
type MIDI struct {
	cell     jam.Cell
	mu       sync.Mutex
	values   jam.ControlVector
	controls map[uint8]int
	stop     func()
	log      jam.Logger
}

// OpenMIDI listens on the input port with the given index. A MIDI driver
// must be registered by the caller, usually through a blank import.
func OpenMIDI(port int, controllers []uint8, dim int, logger jam.Logger) (*MIDI, error) {
	m := newMIDI(controllers, dim, logger)
	in, err := midi.InPort(port)
	if err != nil {
		return nil, fmt.Errorf("open midi port %d: %w", port, err)
	}
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		m.Handle(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("listen midi port %d: %w", port, err)
	}
	m.stop = stop
	m.log.Info("midi listening", "port", in.String(), "controllers", controllers)
	return m, nil
}

// MIDIPorts names the available input ports.
func MIDIPorts() []string {
	var names []string
	for _, p := range midi.GetInPorts() {
		names = append(names, p.String())
	}
	return names
}

func newMIDI(controllers []uint8, dim int, logger jam.Logger) *MIDI {
	if len(controllers) == 0 {
		controllers = DefaultControllers
	}
	m := &MIDI{
		values:   make(jam.ControlVector, dim),
		controls: make(map[uint8]int, len(controllers)),
		log:      jam.OrNop(logger),
	}
	for i, cc := range controllers {
		if i < dim {
			m.controls[cc] = i
		}
	}
	for i := range m.values {
		m.values[i] = 0.5
	}
	return m
}

func (m *MIDI) Dim() int { return len(m.values) }

func (m *MIDI) Poll() (jam.ControlVector, bool) {
	return m.cell.Load()
}

// Handle applies one incoming message. Messages other than mapped control
// changes are ignored.
func (m *MIDI) Handle(msg midi.Message) {
	var ch, cc, val uint8
	if !msg.GetControlChange(&ch, &cc, &val) {
		return
	}
	i, ok := m.controls[cc]
	if !ok {
		return
	}
	m.mu.Lock()
	m.values[i] = float64(val) / 127
	m.cell.Store(m.values)
	m.mu.Unlock()
}

func (m *MIDI) Close() error {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	return nil
}

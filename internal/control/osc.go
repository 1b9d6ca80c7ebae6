package control

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hypebeast/go-osc/osc"

	"github.com/san-kum/brainjam/internal/jam"
)

// DefaultOSCAddr is where the OSC source listens unless configured.
const DefaultOSCAddr = ":8000"

var errBadPacket = errors.New("osc: not a message or bundle")

// OSCNames are the named addresses under /brainjam/, in channel order.
var OSCNames = []string{"intensity", "density", "variation", "brightness"}

// OSC receives control values over UDP. Accepted addresses:
//
//	/brainjam/<name> f          one named channel (see OSCNames)
//	/brainjam/control/<n> f     channel n, counting from 1
//	/brainjam/controls f f ...  all channels at once
//
// Float arguments are taken as [0,1]. Integer arguments are scaled by 1/127.
// Bundles are applied on arrival; their time tags are ignored.
type OSC struct {
	conn     net.PacketConn
	cell     jam.Cell
	dim      int
	values   jam.ControlVector
	log      jam.Logger
	received atomic.Int64
	rejected atomic.Int64
	wg       sync.WaitGroup
	closed   atomic.Bool
}

// ListenOSC binds addr and starts the receive goroutine.
func ListenOSC(addr string, dim int, logger jam.Logger) (*OSC, error) {
	if addr == "" {
		addr = DefaultOSCAddr
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	o := newOSC(dim, logger)
	o.conn = conn
	o.log.Info("osc listening", "addr", conn.LocalAddr().String())
	o.wg.Add(1)
	go o.serve()
	return o, nil
}

func newOSC(dim int, logger jam.Logger) *OSC {
	o := &OSC{dim: dim, values: make(jam.ControlVector, dim), log: jam.OrNop(logger)}
	for i := range o.values {
		o.values[i] = 0.5
	}
	return o
}

func (o *OSC) Dim() int { return o.dim }

func (o *OSC) Poll() (jam.ControlVector, bool) {
	return o.cell.Load()
}

// Addr is the bound local address.
func (o *OSC) Addr() net.Addr {
	if o.conn == nil {
		return nil
	}
	return o.conn.LocalAddr()
}

// Received counts applied messages.
func (o *OSC) Received() int64 { return o.received.Load() }

// Rejected counts packets that failed to parse.
func (o *OSC) Rejected() int64 { return o.rejected.Load() }

// Close stops the listener and waits for the receive goroutine.
func (o *OSC) Close() error {
	if o.conn == nil || !o.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := o.conn.Close()
	o.wg.Wait()
	return err
}

// serve reads packets until the connection closes. osc.Server.Serve returns
// on the first malformed packet, so the read loop stays here.
func (o *OSC) serve() {
	defer o.wg.Done()
	buf := make([]byte, 65536)
	for {
		n, _, err := o.conn.ReadFrom(buf)
		if err != nil {
			if o.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			o.log.Warn("osc read failed", "err", err)
			continue
		}
		if err := o.Apply(buf[:n]); err != nil {
			o.log.Debug("osc packet rejected", "err", err)
		}
	}
}

// Apply parses one packet and publishes the updated vector. It must only
// be called from one goroutine at a time.
func (o *OSC) Apply(packet []byte) error {
	// messages start with '/', bundles with '#'
	if len(packet) == 0 || (packet[0] != '/' && packet[0] != '#') {
		o.rejected.Add(1)
		return errBadPacket
	}
	p, err := osc.ParsePacket(string(packet))
	if err == nil && p == nil {
		err = errBadPacket
	}
	if err != nil {
		o.rejected.Add(1)
		return fmt.Errorf("parse osc packet: %w", err)
	}
	o.Dispatch(p)
	return nil
}

// Dispatch applies every message in p, nested bundles included, and
// publishes the vector once if anything changed.
func (o *OSC) Dispatch(p osc.Packet) {
	if o.dispatch(p) {
		o.cell.Store(o.values)
	}
}

func (o *OSC) dispatch(p osc.Packet) bool {
	changed := false
	switch p := p.(type) {
	case *osc.Message:
		changed = o.applyMessage(p)
	case *osc.Bundle:
		for _, m := range p.Messages {
			if o.applyMessage(m) {
				changed = true
			}
		}
		for _, b := range p.Bundles {
			if o.dispatch(b) {
				changed = true
			}
		}
	}
	return changed
}

func (o *OSC) applyMessage(m *osc.Message) bool {
	if m == nil || len(m.Arguments) == 0 {
		return false
	}
	rest, ok := strings.CutPrefix(m.Address, "/brainjam/")
	if !ok {
		return false
	}
	applied := false
	set := func(i int, arg any) {
		if v, ok := oscValue(arg); ok {
			o.values[i] = v
			applied = true
		}
	}
	switch {
	case rest == "controls":
		for i, a := range m.Arguments {
			if i >= o.dim {
				break
			}
			set(i, a)
		}
	case strings.HasPrefix(rest, "control/"):
		n, err := strconv.Atoi(strings.TrimPrefix(rest, "control/"))
		if err != nil || n < 1 || n > o.dim {
			return false
		}
		set(n-1, m.Arguments[0])
	default:
		i := indexOf(OSCNames, rest)
		if i < 0 || i >= o.dim {
			return false
		}
		set(i, m.Arguments[0])
	}
	if applied {
		o.received.Add(1)
	}
	return applied
}

// oscValue converts one argument by its OSC type. Non-numeric arguments
// are ignored.
func oscValue(arg any) (float64, bool) {
	switch v := arg.(type) {
	case float32:
		return jam.Unit(float64(v)), true
	case float64:
		return jam.Unit(v), true
	case int32:
		return jam.Unit(float64(v) / 127), true
	case int64:
		return jam.Unit(float64(v) / 127), true
	}
	return 0, false
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

package jam

import "sync/atomic"

type cellValue struct {
	v   ControlVector
	seq uint64
}

// Cell is a single-slot, last-writer-wins handoff for control vectors
// produced on another goroutine. Store never blocks and Load never waits.
type Cell struct {
	cur  atomic.Pointer[cellValue]
	seq  atomic.Uint64
	seen uint64
}

// Store publishes a copy of v.
func (c *Cell) Store(v ControlVector) {
	c.cur.Store(&cellValue{v: v.Clamped(), seq: c.seq.Add(1)})
}

// Load returns the latest vector. ok is false when nothing was stored since
// the previous Load. Load must be called from a single reader.
func (c *Cell) Load() (ControlVector, bool) {
	cv := c.cur.Load()
	if cv == nil {
		return nil, false
	}
	fresh := cv.seq != c.seen
	c.seen = cv.seq
	return cv.v, fresh
}

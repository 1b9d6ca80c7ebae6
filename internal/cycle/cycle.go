// Package cycle drives the real-time performance loop: one tick polls the
// control source, runs the shaper, agent, mapper and engine in order, and
// hands the finished buffer to a sink goroutine through a bounded queue.
package cycle

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/brainjam/internal/jam"
)

// ErrNotRunning is returned by Tick outside the Running state.
var ErrNotRunning = errors.New("cycle: not running")

// Stages are the pipeline components, in data-flow order.
type Stages struct {
	Source jam.Source
	Shaper jam.Shaper
	Agent  jam.Agent
	Mapper jam.Mapper
	Engine jam.Engine
	Sink   jam.Sink
}

type Options struct {
	Tick       time.Duration
	Chunk      time.Duration
	QueueDepth int
	// Offline writes to the sink on the cycle goroutine, so nothing is
	// ever dropped, and advances a manual clock by Tick after every tick.
	Offline bool
	Clock   jam.Clock
	Logger  jam.Logger
}

type advancer interface {
	Advance(d time.Duration)
}

type underrunCounter interface {
	Underruns() int64
}

type Cycle struct {
	st   Stages
	opts Options
	log  jam.Logger

	mu    sync.Mutex
	state State
	wake  chan struct{}

	pool      *jam.BufferPool
	queue     chan jam.AudioBuffer
	sinkDone  chan struct{}
	last      jam.ControlVector
	frame     jam.Frame
	tick      int64
	metrics   []jam.Metric
	observers []jam.Observer

	telemetry atomic.Pointer[jam.Telemetry]
	overruns  atomic.Int64
	dropped   atomic.Int64
	sinkErrs  atomic.Int64
}

// New wires the stages. Every stage except Sink is required; a nil Sink
// discards audio.
func New(st Stages, opts Options) (*Cycle, error) {
	switch {
	case st.Source == nil:
		return nil, jam.NewConfigError("source", nil, "missing stage")
	case st.Shaper == nil:
		return nil, jam.NewConfigError("shaper", nil, "missing stage")
	case st.Agent == nil:
		return nil, jam.NewConfigError("agent", nil, "missing stage")
	case st.Mapper == nil:
		return nil, jam.NewConfigError("mapper", nil, "missing stage")
	case st.Engine == nil:
		return nil, jam.NewConfigError("engine", nil, "missing stage")
	}
	if opts.Tick <= 0 {
		return nil, jam.NewConfigError("tick", opts.Tick, "must be positive")
	}
	if opts.Chunk <= 0 {
		opts.Chunk = opts.Tick
	}
	if opts.QueueDepth < 1 {
		opts.QueueDepth = 1
	}
	if opts.Clock == nil {
		opts.Clock = jam.SystemClock{}
	}
	samples := int(opts.Chunk.Seconds()*float64(st.Engine.SampleRate()) + 0.5)

	c := &Cycle{
		st:    st,
		opts:  opts,
		log:   jam.OrNop(opts.Logger),
		wake:  make(chan struct{}, 1),
		pool:  jam.NewBufferPool(samples),
		queue: make(chan jam.AudioBuffer, opts.QueueDepth),
		last:  midpoint(st.Source.Dim()),
	}
	c.publish()
	return c, nil
}

func (c *Cycle) AddMetric(m jam.Metric)     { c.metrics = append(c.metrics, m) }
func (c *Cycle) AddObserver(o jam.Observer) { c.observers = append(c.observers, o) }

func (c *Cycle) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start moves Idle to Running and launches the sink goroutine.
func (c *Cycle) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return transitionError(c.state, Running)
	}
	c.state = Running
	c.publish()
	if !c.opts.Offline {
		c.sinkDone = make(chan struct{})
		go c.drain()
	}
	c.log.Info("cycle started", "tick", c.opts.Tick, "chunk", c.opts.Chunk, "engine", c.st.Engine.Kind())
	c.notify()
	return nil
}

func (c *Cycle) Pause() error {
	return c.move(Running, Paused)
}

func (c *Cycle) Resume() error {
	return c.move(Paused, Running)
}

func (c *Cycle) move(from, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return transitionError(c.state, to)
	}
	c.state = to
	c.log.Debug("cycle state", "from", from, "to", to)
	c.notify()
	c.publish()
	return nil
}

// Stop is terminal. It waits for queued audio to reach the sink and closes
// the source when it holds resources.
func (c *Cycle) Stop() error {
	c.mu.Lock()
	if !canMove(c.state, Stopped) {
		defer c.mu.Unlock()
		return transitionError(c.state, Stopped)
	}
	c.state = Stopped
	c.notify()
	close(c.queue)
	done := c.sinkDone
	c.mu.Unlock()

	if done != nil {
		<-done
	}
	var err error
	if closer, ok := c.st.Source.(io.Closer); ok {
		err = closer.Close()
	}
	c.mu.Lock()
	c.publish()
	c.mu.Unlock()
	c.log.Info("cycle stopped", "ticks", c.Ticks(), "overruns", c.Overruns(), "dropped", c.Dropped())
	return err
}

func (c *Cycle) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Tick runs one pass through the pipeline and returns the frame it
// produced. The frame is reused by the next tick.
func (c *Cycle) Tick() (*jam.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return nil, ErrNotRunning
	}
	f := c.step()
	if c.opts.Offline {
		if a, ok := c.opts.Clock.(advancer); ok {
			a.Advance(c.opts.Tick)
		}
	}
	return f, nil
}

func (c *Cycle) step() *jam.Frame {
	f := &c.frame
	start := time.Now()

	v, fresh := c.st.Source.Poll()
	if fresh && len(v) > 0 {
		if len(c.last) != len(v) {
			c.last = make(jam.ControlVector, len(v))
		}
		v.ClampInto(c.last)
	}
	t1 := time.Now()

	latent := c.st.Shaper.Shape(c.last)
	t2 := time.Now()

	resp := c.st.Agent.Respond(latent)
	t3 := time.Now()

	params := c.st.Mapper.Map(latent, resp)
	t4 := time.Now()

	buf := c.pool.Get()
	c.st.Engine.Render(buf, params)
	t5 := time.Now()

	out := jam.AudioBuffer{Samples: buf, SampleRate: c.st.Engine.SampleRate()}
	peak := out.Peak()
	c.emit(out)

	*f = jam.Frame{
		Tick:     c.tick,
		Time:     time.Duration(c.tick) * c.opts.Tick,
		Control:  c.last,
		Fresh:    fresh,
		Latent:   latent,
		Label:    c.st.Agent.Snapshot().Label,
		Response: resp,
		Params:   params,
		Peak:     peak,
		Timing: jam.Timing{
			Poll:  t1.Sub(start),
			Shape: t2.Sub(t1),
			Agent: t3.Sub(t2),
			Map:   t4.Sub(t3),
			Synth: t5.Sub(t4),
			Total: t5.Sub(start),
		},
	}
	if f.Timing.Total > c.opts.Chunk {
		f.Overrun = true
		n := c.overruns.Add(1)
		c.log.Warn("tick overran chunk", "tick", c.tick, "elapsed", f.Timing.Total, "budget", c.opts.Chunk, "overruns", n)
	}

	for _, m := range c.metrics {
		m.Observe(f)
	}
	for _, o := range c.observers {
		o.OnTick(f)
	}
	c.tick++
	c.publish()
	return f
}

// emit hands buf to the sink. Online, a full queue drops the new buffer.
func (c *Cycle) emit(buf jam.AudioBuffer) {
	if c.opts.Offline {
		c.write(buf)
		return
	}
	select {
	case c.queue <- buf:
	default:
		n := c.dropped.Add(1)
		c.log.Debug("queue full, buffer dropped", "tick", c.tick, "dropped", n)
		c.pool.Put(buf.Samples)
	}
}

func (c *Cycle) drain() {
	defer close(c.sinkDone)
	for buf := range c.queue {
		c.write(buf)
	}
}

func (c *Cycle) write(buf jam.AudioBuffer) {
	if c.st.Sink != nil {
		if err := c.st.Sink.Write(buf); err != nil {
			if c.sinkErrs.Add(1) == 1 {
				c.log.Error("sink write failed", "err", err)
			}
		}
	}
	c.pool.Put(buf.Samples)
}

// Run ticks on a timer until ctx ends or the cycle is stopped, starting it
// first when Idle. A paused cycle holds its timer until resumed. The cycle
// is always Stopped when Run returns.
func (c *Cycle) Run(ctx context.Context) error {
	if c.State() == Idle {
		if err := c.Start(); err != nil {
			return err
		}
	}
	defer c.stopQuietly()

	ticker := time.NewTicker(c.opts.Tick)
	defer ticker.Stop()

	for {
		switch c.State() {
		case Stopped:
			return nil
		case Paused:
			ticker.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.wake:
			}
			ticker.Reset(c.opts.Tick)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		case <-ticker.C:
			if _, err := c.Tick(); err != nil && !errors.Is(err, ErrNotRunning) {
				return err
			}
		}
	}
}

// RunFor executes n ticks back to back without a timer, for offline
// renders and tests. It does not stop the cycle.
func (c *Cycle) RunFor(ctx context.Context, n int) error {
	if c.State() == Idle {
		if err := c.Start(); err != nil {
			return err
		}
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.Tick(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cycle) stopQuietly() {
	if c.State() != Stopped {
		if err := c.Stop(); err != nil {
			c.log.Warn("close source", "err", err)
		}
	}
}

func (c *Cycle) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

func (c *Cycle) Overruns() int64 { return c.overruns.Load() }
func (c *Cycle) Dropped() int64  { return c.dropped.Load() }

// Telemetry returns the latest snapshot. It is safe to call from any
// goroutine.
func (c *Cycle) Telemetry() jam.Telemetry {
	return *c.telemetry.Load()
}

// publish must be called with mu held, or before the cycle is shared.
func (c *Cycle) publish() {
	t := &jam.Telemetry{
		Tick:     c.tick,
		State:    c.state.String(),
		Overruns: c.overruns.Load(),
		Dropped:  c.dropped.Load(),
	}
	if c.tick > 0 {
		f := &c.frame
		t.Label = f.Label
		t.Timing = f.Timing
		t.Response = f.Response
		t.Params = f.Params
		t.Latent = f.Latent.Clone()
		t.EMA = c.st.Agent.Snapshot().EMAIntensity
	}
	if u, ok := c.st.Sink.(underrunCounter); ok {
		t.Underruns = u.Underruns()
	}
	c.telemetry.Store(t)
}

func midpoint(dim int) jam.ControlVector {
	v := make(jam.ControlVector, max(dim, 1))
	for i := range v {
		v[i] = 0.5
	}
	return v
}

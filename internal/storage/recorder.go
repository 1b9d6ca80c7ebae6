package storage

import (
	"errors"
	"sync"

	"github.com/san-kum/brainjam/internal/jam"
)

// DefaultBatch is the number of ticks a Recorder buffers per transaction.
const DefaultBatch = 50

// Recorder is a cycle observer that persists every frame of one session.
// Inserts run on a background goroutine so OnTick never waits on the disk.
type Recorder struct {
	store   *Store
	session Session
	batch   int
	log     jam.Logger

	pending []TickRow
	out     chan []TickRow
	done    chan struct{}
	ticks   int
	label   jam.Behavior

	mu  sync.Mutex
	err error
}

// NewRecorder creates the session row and starts the writer.
func NewRecorder(store *Store, sess Session, batch int, logger jam.Logger) (*Recorder, error) {
	if batch <= 0 {
		batch = DefaultBatch
	}
	if err := store.Create(&sess); err != nil {
		return nil, err
	}
	r := &Recorder{
		store:   store,
		session: sess,
		batch:   batch,
		log:     jam.OrNop(logger),
		pending: make([]TickRow, 0, batch),
		out:     make(chan []TickRow, 16),
		done:    make(chan struct{}),
	}
	go r.writer()
	return r, nil
}

func (r *Recorder) Session() Session { return r.session }

func (r *Recorder) OnTick(f *jam.Frame) {
	r.ticks++
	r.label = f.Label
	r.pending = append(r.pending, rowFromFrame(f))
	if len(r.pending) < r.batch {
		return
	}
	select {
	case r.out <- r.pending:
		r.pending = make([]TickRow, 0, r.batch)
	default:
		// writer is behind; keep accumulating and retry on the next tick
	}
}

func rowFromFrame(f *jam.Frame) TickRow {
	return TickRow{
		Tick:     f.Tick,
		Time:     f.Time,
		Label:    f.Label,
		Control:  append([]float64(nil), f.Control...),
		Latent:   append([]float64(nil), f.Latent...),
		Params:   f.Params.Values(),
		Response: f.Response,
		Peak:     f.Peak,
		Latency:  f.Timing.Total,
		Overrun:  f.Overrun,
	}
}

func (r *Recorder) writer() {
	defer close(r.done)
	for rows := range r.out {
		if err := r.store.InsertTicks(r.session.ID, rows); err != nil {
			r.mu.Lock()
			first := r.err == nil
			r.err = errors.Join(r.err, err)
			r.mu.Unlock()
			if first {
				r.log.Error("recording ticks", "session", r.session.ID, "err", err)
			}
		}
	}
}

// Close flushes buffered ticks, waits for the writer and stores the final
// label and metrics. It must be called after the cycle stopped.
func (r *Recorder) Close(metrics map[string]float64) error {
	if len(r.pending) > 0 {
		r.out <- r.pending
		r.pending = nil
	}
	close(r.out)
	<-r.done

	r.mu.Lock()
	err := r.err
	r.mu.Unlock()
	if ferr := r.store.Finish(r.session.ID, r.ticks, r.label, metrics); ferr != nil {
		err = errors.Join(err, ferr)
	}
	if err == nil {
		r.log.Info("session saved", "id", r.session.ID, "ticks", r.ticks)
	}
	return err
}

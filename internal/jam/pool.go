package jam

import "sync"

// BufferPool recycles sample slices of one chunk size between the engine and
// the sink.
type BufferPool struct {
	pool sync.Pool
	size int
}

func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				b := make([]float32, size)
				return &b
			},
		},
	}
}

func (p *BufferPool) Size() int { return p.size }

func (p *BufferPool) Get() []float32 {
	return *(p.pool.Get().(*[]float32))
}

// Put returns s to the pool. Slices of the wrong size are dropped.
func (p *BufferPool) Put(s []float32) {
	if len(s) != p.size {
		return
	}
	clear(s)
	p.pool.Put(&s)
}

package agent

import "github.com/san-kum/brainjam/internal/jam"

// History is a fixed-capacity ring of latent vectors. Push overwrites the
// oldest entry once full and never allocates after construction.
type History struct {
	buf  [][]float64
	dim  int
	head int
	n    int
}

func NewHistory(capacity, dim int) *History {
	if capacity < 1 {
		capacity = 1
	}
	h := &History{buf: make([][]float64, capacity), dim: dim}
	for i := range h.buf {
		h.buf[i] = make([]float64, dim)
	}
	return h
}

// Push copies v into the ring. Missing components read as 0.5.
func (h *History) Push(v jam.LatentVector) {
	slot := h.buf[h.head]
	for i := range slot {
		if i < len(v) {
			slot[i] = v[i]
		} else {
			slot[i] = 0.5
		}
	}
	h.head = (h.head + 1) % len(h.buf)
	if h.n < len(h.buf) {
		h.n++
	}
}

func (h *History) Len() int { return h.n }
func (h *History) Cap() int { return len(h.buf) }
func (h *History) Dim() int { return h.dim }

// At returns the entry k steps back; 0 is the newest.
func (h *History) At(k int) []float64 {
	if k < 0 || k >= h.n {
		return nil
	}
	i := (h.head - 1 - k + len(h.buf)) % len(h.buf)
	return h.buf[i]
}

// MeanInto writes the mean of the newest k entries into dst and returns the
// number of entries used.
func (h *History) MeanInto(dst []float64, k int) int {
	clear(dst)
	k = min(k, h.n)
	if k == 0 {
		return 0
	}
	for j := 0; j < k; j++ {
		for i, x := range h.At(j) {
			if i < len(dst) {
				dst[i] += x
			}
		}
	}
	for i := range dst {
		dst[i] /= float64(k)
	}
	return k
}

// Reset empties the ring.
func (h *History) Reset() {
	h.head, h.n = 0, 0
}

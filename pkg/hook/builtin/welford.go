// Package builtin implements the required built-in hooks of spec §4.5:
// stats, restart, drop, decimate, shift_seq, shift_ts, print.
package builtin

import "sync/atomic"

// Welford accumulates mean/variance online (Welford's algorithm), so
// moments never need the raw sample history. Guarded by the caller —
// Stats serializes updates and snapshot reads with a per-metric mutex.
// Every Stats instance owns its own Welford per metric; read-side and
// write-side instances do not share accumulators.
type Welford struct {
	count int64
	mean  float64
	m2    float64
}

func (w *Welford) Update(x float64) {
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	delta2 := x - w.mean
	w.m2 += delta * delta2
}

func (w *Welford) Count() int64 { return w.count }
func (w *Welford) Mean() float64 { return w.mean }
func (w *Welford) Variance() float64 {
	if w.count < 2 {
		return 0
	}
	return w.m2 / float64(w.count-1)
}

// Histogram is a fixed-bucket histogram over [low, high) with
// lock-free bucket increments (atomic fetch-add), per spec §5.
type Histogram struct {
	buckets    []atomic.Int64
	underflow  atomic.Int64
	overflow   atomic.Int64
	low, high  float64
	bucketSize float64
}

func NewHistogram(nbuckets int, low, high float64) *Histogram {
	if nbuckets < 1 {
		nbuckets = 1
	}
	return &Histogram{
		buckets:    make([]atomic.Int64, nbuckets),
		low:        low,
		high:       high,
		bucketSize: (high - low) / float64(nbuckets),
	}
}

func (h *Histogram) Add(x float64) {
	if x < h.low {
		h.underflow.Add(1)
		return
	}
	if x >= h.high {
		h.overflow.Add(1)
		return
	}
	idx := int((x - h.low) / h.bucketSize)
	if idx >= len(h.buckets) {
		idx = len(h.buckets) - 1
	}
	h.buckets[idx].Add(1)
}

func (h *Histogram) Counts() []int64 {
	out := make([]int64, len(h.buckets))
	for i := range h.buckets {
		out[i] = h.buckets[i].Load()
	}
	return out
}

func (h *Histogram) Underflow() int64 { return h.underflow.Load() }
func (h *Histogram) Overflow() int64  { return h.overflow.Load() }

// Package queue implements the bounded MPMC ring described in spec §3/§4.2,
// using Vyukov's per-cell sequence-counter algorithm (spec §9): CAS on
// enqueue when cell.seq == pos (advancing the cell to pos+1), CAS on
// dequeue when cell.seq == pos+1 (advancing the cell to pos+N).
//
// Cell padding follows the cache-line-isolation style used by
// hayabusa-cloud-lfq's MPMC ring (head/tail/threshold kept on separate
// lines to avoid false sharing); the cell CAS loop itself is implemented
// directly on sync/atomic rather than a third-party atomics wrapper,
// since no such wrapper is common or grounded across the example corpus.
package queue

import (
	"errors"
	"sync/atomic"
)

// ErrClosed is returned by Push/Pull once Close has been called; per
// spec §4.2 it poisons both endpoints without corrupting queue state.
var ErrClosed = errors.New("queue: closed")

type cell[T any] struct {
	seq  atomic.Uint64
	val  T
	_pad [7]uint64 // isolate adjacent cells to their own cache line
}

// Queue is a power-of-two-capacity bounded MPMC ring storing payloads of
// type T by value (in C/Villas, pointer-sized offsets from the queue
// base; Go's GC makes raw shared-memory offsets impractical, so this
// stores the payload directly — pool slot pointers in practice).
type Queue[T any] struct {
	buf  []cell[T]
	mask uint64

	_pad0    [8]uint64
	enqPos   atomic.Uint64
	_pad1    [8]uint64
	deqPos   atomic.Uint64
	_pad2    [8]uint64
	closed   atomic.Bool
}

// New returns a Queue whose capacity is rounded up to the next power of
// two (minimum 2).
func New[T any](capacity int) *Queue[T] {
	n := nextPow2(capacity)
	q := &Queue[T]{
		buf:  make([]cell[T], n),
		mask: uint64(n) - 1,
	}
	for i := range q.buf {
		q.buf[i].seq.Store(uint64(i))
	}
	return q
}

func nextPow2(n int) int {
	if n < 2 {
		return 2
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (q *Queue[T]) Cap() int { return int(q.mask) + 1 }

// Push attempts to enqueue v. It never blocks: ok is false if the queue
// is full, and err is ErrClosed if Close was called (spec §4.2
// Progress).
func (q *Queue[T]) Push(v T) (ok bool, err error) {
	if q.closed.Load() {
		return false, ErrClosed
	}
	for {
		pos := q.enqPos.Load()
		c := &q.buf[pos&q.mask]
		seq := c.seq.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if q.enqPos.CompareAndSwap(pos, pos+1) {
				c.val = v
				c.seq.Store(pos + 1)
				return true, nil
			}
		case diff < 0:
			if q.closed.Load() {
				return false, ErrClosed
			}
			return false, nil // full
		default:
			// another producer raced ahead; reload
		}
	}
}

// Pull attempts to dequeue one value. ok is false if the queue is empty;
// err is ErrClosed once Close was called and the ring has drained.
func (q *Queue[T]) Pull() (v T, ok bool, err error) {
	for {
		pos := q.deqPos.Load()
		c := &q.buf[pos&q.mask]
		seq := c.seq.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if q.deqPos.CompareAndSwap(pos, pos+1) {
				v = c.val
				var zero T
				c.val = zero
				c.seq.Store(pos + q.mask + 1)
				return v, true, nil
			}
		case diff < 0:
			if q.closed.Load() {
				return v, false, ErrClosed
			}
			return v, false, nil // empty
		default:
			// another consumer raced ahead; reload
		}
	}
}

// PushMany pushes as many of vs as fit, stopping at the first cell that
// cannot be claimed; n is the count actually pushed (spec §4.2 batch
// variants: partial success is expected).
func (q *Queue[T]) PushMany(vs []T) (n int, err error) {
	for _, v := range vs {
		ok, pushErr := q.Push(v)
		if pushErr != nil {
			return n, pushErr
		}
		if !ok {
			return n, nil
		}
		n++
	}
	return n, nil
}

// PullMany dequeues up to len(out) values into out, stopping at the
// first empty cell.
func (q *Queue[T]) PullMany(out []T) (n int, err error) {
	for i := range out {
		v, ok, pullErr := q.Pull()
		if pullErr != nil {
			return n, pullErr
		}
		if !ok {
			return n, nil
		}
		out[i] = v
		n++
	}
	return n, nil
}

// Close poisons the queue: idempotent, observable by any producer or
// consumer via ErrClosed (spec §4.2).
func (q *Queue[T]) Close() {
	q.closed.Store(true)
}

func (q *Queue[T]) Closed() bool { return q.closed.Load() }

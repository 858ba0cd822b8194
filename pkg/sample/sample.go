// Package sample implements the fixed-capacity measurement record (spec
// §3) and its backing Pool/free-list (spec §3, §4.1). Sample and Pool
// live in one package because a Sample's decref path must reach back
// into the Pool it was allocated from (pool_off in spec terms) without a
// Pool<->Sample import cycle.
package sample

import (
	"sync/atomic"
	"time"

	"github.com/govillas/villasd/pkg/signal"
)

// Flags enumerates which optional Sample fields are populated.
type Flags uint8

const (
	HasSequence Flags = 1 << iota
	HasTsOrigin
	HasTsReceived
	HasOffset
	HasData
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Sample is a fixed-capacity, reference-counted record of typed scalar
// values (spec §3). It is always read-only once Refcnt() > 1; the
// producer that allocated it may keep mutating until the first extra
// Incref.
type Sample struct {
	Sequence   uint64
	TsOrigin   time.Time
	TsReceived time.Time
	Offset     time.Duration
	Flags      Flags

	Length   int
	Capacity int
	Signals  signal.List
	Data     []signal.Value

	refcnt int32
	pool   *Pool // back-pointer; nil for samples not pool-owned (e.g. tests)
}

// Incref atomically increments the reference count and returns the new
// value.
func (s *Sample) Incref() int32 {
	return atomic.AddInt32(&s.refcnt, 1)
}

// Decref atomically decrements the reference count. At zero, the
// sample is returned to its originating pool (if any) via its pool_off
// back-pointer. Decrementing below zero is a double-decref and is a
// StateError: it indicates a broken invariant (spec §7) and must not be
// swallowed.
func (s *Sample) Decref() int32 {
	n := atomic.AddInt32(&s.refcnt, -1)
	if n < 0 {
		panic("sample: double decref")
	}
	if n == 0 && s.pool != nil {
		s.pool.release(s)
	}
	return n
}

func (s *Sample) Refcnt() int32 { return atomic.LoadInt32(&s.refcnt) }

// reset clears a slot for reuse, preserving Capacity and the backing
// Data/Signals arrays (spec §3: "Returning to the pool preserves
// capacity; length is reset on reuse").
func (s *Sample) reset() {
	s.Sequence = 0
	s.TsOrigin = time.Time{}
	s.TsReceived = time.Time{}
	s.Offset = 0
	s.Flags = 0
	s.Length = 0
	s.Signals = s.Signals[:0]
	for i := range s.Data {
		s.Data[i] = signal.Value{}
	}
	atomic.StoreInt32(&s.refcnt, 1)
}

// CopyShallow copies the header and the first src.Length values from src
// into dst verbatim. Signal references are NOT deep-copied: dst.Signals
// is assigned the same slice so readers rely on signal-list identity to
// interpret the values, per spec §4.1.
func CopyShallow(dst, src *Sample) {
	dst.Sequence = src.Sequence
	dst.TsOrigin = src.TsOrigin
	dst.TsReceived = src.TsReceived
	dst.Offset = src.Offset
	dst.Flags = src.Flags
	dst.Length = src.Length
	dst.Signals = src.Signals
	n := src.Length
	if n > dst.Capacity {
		n = dst.Capacity
	}
	copy(dst.Data[:n], src.Data[:n])
}

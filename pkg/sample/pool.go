package sample

import (
	"sync/atomic"

	"github.com/govillas/villasd/pkg/queue"
	"github.com/govillas/villasd/pkg/signal"
)

// MemoryType selects the allocator backing a Pool's slots. Numa/hugepage
// allocation is a performance, not correctness, concern (spec §3): this
// port tracks the type for parity with the config schema but only
// MemoryHeap affects actual allocation, since Go has no portable
// hugepage/mmap allocator in the standard library.
type MemoryType int

const (
	MemoryHeap MemoryType = iota
	MemoryMmapHugepage
	MemoryManagedRegion
)

// Pool is a fixed-count array of equally sized Sample slots plus a
// lock-free free-queue of slot pointers (spec §3, §4.1). No ABA concern
// arises because slot addresses are stable for the Pool's lifetime.
type Pool struct {
	slots    []Sample
	free     *queue.Queue[*Sample]
	capacity int
	memType  MemoryType

	allocTotal int64
	freeTotal  int64
}

// NewPool allocates count slots, each able to hold up to capacity
// values, and seeds the free-queue with pointers to every slot.
func NewPool(count, capacity int, memType MemoryType) *Pool {
	p := &Pool{
		slots:    make([]Sample, count),
		free:     queue.New[*Sample](count),
		capacity: capacity,
		memType:  memType,
	}
	for i := range p.slots {
		s := &p.slots[i]
		s.Capacity = capacity
		s.Data = make([]signal.Value, capacity)
		s.Signals = make(signal.List, 0, capacity)
		s.pool = p
		s.refcnt = 0
		ok, _ := p.free.Push(s)
		if !ok {
			panic("sample: pool free-queue undersized")
		}
	}
	return p
}

// Alloc pulls up to n slots from the free queue into out, returning the
// count obtained. A return below n means starvation: the caller must
// handle the underrun (drop oldest data or refuse), spec §4.1. Every
// returned slot has Refcnt()==1, Length==0, cleared flags.
func (p *Pool) Alloc(n int, out []*Sample) int {
	if n > len(out) {
		n = len(out)
	}
	got := 0
	for got < n {
		s, ok, _ := p.free.Pull()
		if !ok {
			break
		}
		s.reset()
		out[got] = s
		got++
	}
	atomic.AddInt64(&p.allocTotal, int64(got))
	return got
}

// release returns a drained slot to the free queue. Called by
// Sample.Decref when refcnt reaches zero.
func (p *Pool) release(s *Sample) {
	ok, _ := p.free.Push(s)
	if !ok {
		// Free queue sized to slot count: this can only happen on a
		// double-release, which is the same invariant violation as a
		// double-decref.
		panic("sample: pool free-queue overrun (double release)")
	}
	atomic.AddInt64(&p.freeTotal, 1)
}

// AllocTotal and FreeTotal are cumulative counters used to check the
// pool-balance invariant of spec §8: allocated_total - freed_total ==
// outstanding_total at every observable point.
func (p *Pool) AllocTotal() int64 { return atomic.LoadInt64(&p.allocTotal) }
func (p *Pool) FreeTotal() int64  { return atomic.LoadInt64(&p.freeTotal) }
func (p *Pool) Outstanding() int64 {
	return p.AllocTotal() - p.FreeTotal()
}

func (p *Pool) Capacity() int { return p.capacity }
func (p *Pool) Count() int    { return len(p.slots) }

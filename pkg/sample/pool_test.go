package sample

import (
	"testing"

	"github.com/govillas/villasd/pkg/signal"
)

func TestPoolAllocRelease(t *testing.T) {
	p := NewPool(4, 8, MemoryHeap)

	out := make([]*Sample, 2)
	n := p.Alloc(2, out)
	if n != 2 {
		t.Fatalf("Alloc(2) = %d, want 2", n)
	}
	if p.Outstanding() != 2 {
		t.Fatalf("Outstanding() = %d, want 2", p.Outstanding())
	}

	for _, s := range out {
		if s.Refcnt() != 1 {
			t.Errorf("fresh slot refcnt = %d, want 1", s.Refcnt())
		}
		if s.Length != 0 {
			t.Errorf("fresh slot length = %d, want 0", s.Length)
		}
		if s.Capacity != 8 {
			t.Errorf("slot capacity = %d, want 8", s.Capacity)
		}
	}

	out[0].Decref()
	if p.Outstanding() != 1 {
		t.Fatalf("Outstanding() after one release = %d, want 1", p.Outstanding())
	}
	out[1].Decref()
	if p.Outstanding() != 0 {
		t.Fatalf("Outstanding() after full release = %d, want 0", p.Outstanding())
	}
}

func TestPoolStarvation(t *testing.T) {
	p := NewPool(2, 4, MemoryHeap)

	out := make([]*Sample, 5)
	n := p.Alloc(5, out)
	if n != 2 {
		t.Fatalf("Alloc(5) from a 2-slot pool = %d, want 2 (partial, not a crash)", n)
	}

	n2 := p.Alloc(1, out)
	if n2 != 0 {
		t.Fatalf("Alloc(1) on exhausted pool = %d, want 0", n2)
	}
}

func TestSampleDoubleDecrefPanics(t *testing.T) {
	p := NewPool(1, 2, MemoryHeap)
	out := make([]*Sample, 1)
	p.Alloc(1, out)
	s := out[0]

	s.Decref() // refcnt -> 0, returned to pool

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on double decref")
		}
	}()
	s.Decref()
}

func TestCopyShallowPreservesSignalIdentity(t *testing.T) {
	p := NewPool(2, 4, MemoryHeap)
	out := make([]*Sample, 2)
	p.Alloc(2, out)
	src, dst := out[0], out[1]

	src.Length = 2
	src.Sequence = 42
	src.Signals = append(src.Signals, signal.New("v1", "", signal.TypeFloat, signal.Value{}))
	src.Data[0] = signal.Float(1.5)
	src.Data[1] = signal.Float(2.5)

	CopyShallow(dst, src)
	if dst.Sequence != 42 || dst.Length != 2 {
		t.Fatalf("CopyShallow did not copy header: %+v", dst)
	}
	if len(dst.Signals) != 1 || dst.Signals[0] != src.Signals[0] {
		t.Fatalf("CopyShallow did not share signal-list identity")
	}
	if dst.Data[0].F != 1.5 || dst.Data[1].F != 2.5 {
		t.Fatalf("CopyShallow did not copy values: %+v", dst.Data[:2])
	}
}
